// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"
)

// Service provides the authentication operations: login, registration,
// session resolution, and logout.
//
// Each invocation performs exactly one user-store read and at most one
// user-store write, plus one session-store write on success. All concurrent
// exclusion is delegated to the store's uniqueness constraint; the service
// holds no locks.
type Service struct {
	users    UserRepository
	sessions SessionRepository
	hasher   PasswordHasher
	logger   *slog.Logger
}

// NewService creates a Service with a no-op logger.
// Returns an error if any required dependency is nil.
func NewService(users UserRepository, sessions SessionRepository, hasher PasswordHasher) (*Service, error) {
	return NewServiceWithLogger(users, sessions, hasher, slog.New(slog.DiscardHandler))
}

// NewServiceWithLogger creates a Service with the provided logger.
// Returns an error if any required dependency is nil.
func NewServiceWithLogger(users UserRepository, sessions SessionRepository, hasher PasswordHasher, logger *slog.Logger) (*Service, error) {
	if users == nil {
		return nil, oops.Errorf("users repository is required")
	}
	if sessions == nil {
		return nil, oops.Errorf("sessions repository is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	return &Service{
		users:    users,
		sessions: sessions,
		hasher:   hasher,
		logger:   logger,
	}, nil
}

// dummyPasswordHash is used when a user doesn't exist to prevent timing attacks.
// We still run password verification to make response time consistent.
// This is NOT a real credential - it's a fake hash that will never match any password.
//
//nolint:gosec // G101: This is an intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Login authenticates a user by email and password and issues a session.
// Returns the session and its plaintext token.
//
// Validation failures are returned verbatim (AUTH_VALIDATION_FAILED) before
// any store access. An unknown email and a wrong password both yield the
// same AUTH_INVALID_CREDENTIALS error; a dummy hash is verified for unknown
// emails so response time does not reveal which case occurred.
func (s *Service) Login(ctx context.Context, email, password, userAgent, ipAddress string) (*Session, string, error) {
	creds, err := ValidateLogin(email, password)
	if err != nil {
		return nil, "", err
	}

	user, lookupErr := s.users.GetByEmail(ctx, creds.Email)

	// Determine which hash to verify against (real or dummy for timing attack prevention)
	var targetHash string
	var userExists bool

	if lookupErr != nil {
		if errors.Is(lookupErr, ErrNotFound) {
			// Use dummy hash - still perform verification to maintain constant time
			targetHash = dummyPasswordHash
			userExists = false
		} else {
			return nil, "", oops.Code("AUTH_LOGIN_FAILED").
				With("operation", "get user by email").
				Wrap(lookupErr)
		}
	} else {
		targetHash = user.PasswordHash
		userExists = true
	}

	// Always verify password (constant-time operation for timing attack prevention)
	valid, verifyErr := s.hasher.Verify(creds.Password, targetHash)
	if verifyErr != nil {
		// For dummy hash verification errors, just treat as invalid
		if !userExists {
			return nil, "", invalidCredentials()
		}
		return nil, "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			Wrap(verifyErr)
	}

	// If the user doesn't exist OR the password is wrong, return the same error
	if !userExists || !valid {
		return nil, "", invalidCredentials()
	}

	// Transparently upgrade legacy hashes (e.g., bcrypt to argon2id).
	// Best effort - login succeeds even if the upgrade write fails.
	if s.hasher.NeedsUpgrade(user.PasswordHash) {
		if newHash, hashErr := s.hasher.Hash(creds.Password); hashErr == nil {
			if updateErr := s.users.UpdatePasswordHash(ctx, user.ID, newHash); updateErr != nil {
				s.logger.Warn("password hash upgrade failed",
					"user_id", user.ID.String(),
					"error", updateErr)
			}
		}
	}

	return s.issueSession(ctx, user, userAgent, ipAddress)
}

// Register creates a new account and logs it in.
//
// A successful registration always results in an authenticated session;
// there is no separate "please log in" step. A duplicate email yields
// AUTH_EMAIL_TAKEN; any other store failure collapses to AUTH_CREATE_FAILED
// so the caller cannot distinguish store error classes.
func (s *Service) Register(ctx context.Context, name, email, password, userAgent, ipAddress string) (*User, *Session, string, error) {
	reg, err := ValidateRegistration(name, email, password)
	if err != nil {
		return nil, nil, "", err
	}

	_, lookupErr := s.users.GetByEmail(ctx, reg.Email)
	if lookupErr == nil {
		return nil, nil, "", emailTaken(reg.Email)
	}
	if !errors.Is(lookupErr, ErrNotFound) {
		// Collapse non-duplicate store errors into a generic creation failure
		return nil, nil, "", oops.Code("AUTH_CREATE_FAILED").
			With("operation", "get user by email").
			Wrap(lookupErr)
	}

	hash, err := s.hasher.Hash(reg.Password)
	if err != nil {
		return nil, nil, "", oops.Code("AUTH_CREATE_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	user, err := NewUser(reg.Name, reg.Email, hash)
	if err != nil {
		return nil, nil, "", oops.Code("AUTH_CREATE_FAILED").
			With("operation", "construct user").
			Wrap(err)
	}

	if err := s.users.Create(ctx, user); err != nil {
		// Two concurrent registrations for one email race on the store's
		// uniqueness constraint; the loser lands here.
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, nil, "", emailTaken(reg.Email)
		}
		return nil, nil, "", oops.Code("AUTH_CREATE_FAILED").
			With("operation", "create user").
			Wrap(err)
	}

	s.logger.Info("user registered", "user_id", user.ID.String())

	session, token, err := s.issueSession(ctx, user, userAgent, ipAddress)
	if err != nil {
		return nil, nil, "", err
	}
	return user, session, token, nil
}

// Resolve validates a session token and returns the session if it is valid
// and unexpired. Also refreshes the LastSeenAt timestamp best-effort.
func (s *Service) Resolve(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, oops.Code("SESSION_TOKEN_EMPTY").Errorf("session token cannot be empty")
	}

	tokenHash := HashSessionToken(token)

	session, err := s.sessions.GetByTokenHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("SESSION_INVALID").Errorf("invalid session token")
		}
		return nil, oops.Code("SESSION_RESOLVE_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
	}

	if session.IsExpired() {
		return nil, oops.Code("SESSION_EXPIRED").Errorf("session has expired")
	}

	_ = s.sessions.UpdateLastSeen(ctx, session.ID, time.Now()) //nolint:errcheck // Best effort, resolution succeeds regardless

	return session, nil
}

// SessionUser resolves a token and loads the user it is bound to.
// This is the access-gate entry point: a nil error means Allowed(user).
func (s *Service) SessionUser(ctx context.Context, token string) (*User, *Session, error) {
	session, err := s.Resolve(ctx, token)
	if err != nil {
		return nil, nil, err
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// The account vanished out from under the session; treat the
			// session as invalid rather than surfacing a store error.
			return nil, nil, oops.Code("SESSION_INVALID").Errorf("invalid session token")
		}
		return nil, nil, oops.Code("SESSION_RESOLVE_FAILED").
			With("operation", "get user by id").
			Wrap(err)
	}

	return user, session, nil
}

// Logout revokes the session identified by the given token.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return oops.Code("SESSION_TOKEN_EMPTY").Errorf("session token cannot be empty")
	}

	tokenHash := HashSessionToken(token)
	if err := s.sessions.DeleteByTokenHash(ctx, tokenHash); err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code("SESSION_NOT_FOUND").Wrap(err)
		}
		return oops.Code("AUTH_LOGOUT_FAILED").
			With("operation", "delete session").
			Wrap(err)
	}
	return nil
}

// SweepExpiredSessions removes expired sessions from the store and returns
// the number deleted. Intended to be called periodically by the serve loop.
func (s *Service) SweepExpiredSessions(ctx context.Context) (int64, error) {
	count, err := s.sessions.DeleteExpired(ctx)
	if err != nil {
		return 0, oops.Code("SESSION_SWEEP_FAILED").Wrap(err)
	}
	if count > 0 {
		s.logger.Info("expired sessions removed", "count", count)
	}
	return count, nil
}

// issueSession generates a token and persists a new session for the user.
func (s *Service) issueSession(ctx context.Context, user *User, userAgent, ipAddress string) (*Session, string, error) {
	token, tokenHash, err := GenerateSessionToken()
	if err != nil {
		return nil, "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "generate session token").
			Wrap(err)
	}

	session, err := NewSession(user.ID, tokenHash, userAgent, ipAddress, time.Now().Add(SessionTTL))
	if err != nil {
		return nil, "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "create session").
			Wrap(err)
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, "", oops.Code("AUTH_SESSION_CREATE_FAILED").
			With("operation", "persist session").
			Wrap(err)
	}

	return session, token, nil
}

func invalidCredentials() error {
	return oops.Code("AUTH_INVALID_CREDENTIALS").Errorf("invalid email or password")
}

func emailTaken(email string) error {
	return oops.Code("AUTH_EMAIL_TAKEN").
		With("email", email).
		Errorf("a user with this email already exists")
}
