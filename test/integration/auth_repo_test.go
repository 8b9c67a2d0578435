// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

//go:build integration

package integration

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/gatehouse/gatehouse/internal/auth"
)

func createTestUser(name, email string) *auth.User {
	user, err := auth.NewUser(name, email, "$argon2id$v=19$m=65536,t=1,p=4$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaGhhc2hoYXNoaGFzaGhhc2g")
	Expect(err).NotTo(HaveOccurred())
	return user
}

func createTestSession(userID ulid.ULID, expiresAt time.Time) (*auth.Session, string) {
	token, hash, err := auth.GenerateSessionToken()
	Expect(err).NotTo(HaveOccurred())
	session, err := auth.NewSession(userID, hash, "integration-test", "127.0.0.1", expiresAt)
	Expect(err).NotTo(HaveOccurred())
	return session, token
}

var _ = Describe("UserRepository", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
		truncateAll(ctx, env.pool)
	})

	Describe("Create", func() {
		It("persists all user fields", func() {
			user := createTestUser("Alice Example", "alice@example.com")

			Expect(env.Users.Create(ctx, user)).To(Succeed())

			got, err := env.Users.GetByID(ctx, user.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Name).To(Equal("Alice Example"))
			Expect(got.Email).To(Equal("alice@example.com"))
			Expect(got.PasswordHash).To(Equal(user.PasswordHash))
			Expect(got.CreatedAt).To(BeTemporally("~", user.CreatedAt, time.Second))
		})

		It("rejects a duplicate email", func() {
			Expect(env.Users.Create(ctx, createTestUser("Alice", "alice@example.com"))).To(Succeed())

			err := env.Users.Create(ctx, createTestUser("Impostor", "alice@example.com"))
			Expect(err).To(MatchError(auth.ErrDuplicateEmail))
		})

		It("rejects a duplicate email differing only in case", func() {
			Expect(env.Users.Create(ctx, createTestUser("Alice", "alice@example.com"))).To(Succeed())

			err := env.Users.Create(ctx, createTestUser("Impostor", "ALICE@example.com"))
			Expect(err).To(MatchError(auth.ErrDuplicateEmail))
		})
	})

	Describe("GetByEmail", func() {
		It("matches case-insensitively", func() {
			user := createTestUser("Alice", "alice@example.com")
			Expect(env.Users.Create(ctx, user)).To(Succeed())

			got, err := env.Users.GetByEmail(ctx, "Alice@Example.COM")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ID).To(Equal(user.ID))
		})

		It("returns ErrNotFound for unknown email", func() {
			_, err := env.Users.GetByEmail(ctx, "nobody@example.com")
			Expect(err).To(MatchError(auth.ErrNotFound))
		})
	})

	Describe("UpdatePasswordHash", func() {
		It("replaces the stored hash", func() {
			user := createTestUser("Alice", "alice@example.com")
			Expect(env.Users.Create(ctx, user)).To(Succeed())

			newHash := "$argon2id$v=19$m=65536,t=1,p=4$bmV3c2FsdG5ld3NhbHQx$bmV3aGFzaG5ld2hhc2huZXdoYXNobmV3aGFzaDEy"
			Expect(env.Users.UpdatePasswordHash(ctx, user.ID, newHash)).To(Succeed())

			got, err := env.Users.GetByID(ctx, user.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.PasswordHash).To(Equal(newHash))
		})

		It("returns ErrNotFound for unknown user", func() {
			err := env.Users.UpdatePasswordHash(ctx, ulid.Make(), "some-hash")
			Expect(err).To(MatchError(auth.ErrNotFound))
		})
	})
})

var _ = Describe("SessionRepository", func() {
	var (
		ctx  context.Context
		user *auth.User
	)

	BeforeEach(func() {
		ctx = context.Background()
		truncateAll(ctx, env.pool)

		user = createTestUser("Alice", "alice@example.com")
		Expect(env.Users.Create(ctx, user)).To(Succeed())
	})

	Describe("Create and GetByTokenHash", func() {
		It("round-trips a session", func() {
			session, _ := createTestSession(user.ID, time.Now().Add(auth.SessionTTL))

			Expect(env.Sessions.Create(ctx, session)).To(Succeed())

			got, err := env.Sessions.GetByTokenHash(ctx, session.TokenHash)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ID).To(Equal(session.ID))
			Expect(got.UserID).To(Equal(user.ID))
			Expect(got.UserAgent).To(Equal("integration-test"))
			Expect(got.ExpiresAt).To(BeTemporally("~", session.ExpiresAt, time.Second))
		})

		It("returns ErrNotFound for unknown hash", func() {
			_, err := env.Sessions.GetByTokenHash(ctx, auth.HashSessionToken("no-such-token"))
			Expect(err).To(MatchError(auth.ErrNotFound))
		})
	})

	Describe("DeleteByTokenHash", func() {
		It("removes the session", func() {
			session, _ := createTestSession(user.ID, time.Now().Add(auth.SessionTTL))
			Expect(env.Sessions.Create(ctx, session)).To(Succeed())

			Expect(env.Sessions.DeleteByTokenHash(ctx, session.TokenHash)).To(Succeed())

			_, err := env.Sessions.GetByTokenHash(ctx, session.TokenHash)
			Expect(err).To(MatchError(auth.ErrNotFound))
		})
	})

	Describe("DeleteExpired", func() {
		It("removes only expired sessions", func() {
			expired, _ := createTestSession(user.ID, time.Now().Add(-time.Hour))
			live, _ := createTestSession(user.ID, time.Now().Add(auth.SessionTTL))
			Expect(env.Sessions.Create(ctx, expired)).To(Succeed())
			Expect(env.Sessions.Create(ctx, live)).To(Succeed())

			deleted, err := env.Sessions.DeleteExpired(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(deleted).To(Equal(int64(1)))

			_, err = env.Sessions.GetByTokenHash(ctx, expired.TokenHash)
			Expect(err).To(MatchError(auth.ErrNotFound))
			_, err = env.Sessions.GetByTokenHash(ctx, live.TokenHash)
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("cascade delete", func() {
		It("drops sessions when the user row is deleted", func() {
			session, _ := createTestSession(user.ID, time.Now().Add(auth.SessionTTL))
			Expect(env.Sessions.Create(ctx, session)).To(Succeed())

			_, err := env.pool.Exec(ctx, "DELETE FROM users WHERE id = $1", user.ID.String())
			Expect(err).NotTo(HaveOccurred())

			_, err = env.Sessions.GetByTokenHash(ctx, session.TokenHash)
			Expect(err).To(MatchError(auth.ErrNotFound))
		})
	})
})
