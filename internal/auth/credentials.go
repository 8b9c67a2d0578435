// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"regexp"
	"strings"

	"github.com/samber/oops"
)

// Credential validation constraints.
const (
	MinPasswordLength = 6
	MinNameLength     = 2
)

// emailRegex matches a practical address grammar: one or more non-space,
// non-@ characters, an @, a domain with at least one dot.
var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Credentials is a normalized email/password pair. It exists only for the
// duration of a single request and is never persisted.
type Credentials struct {
	Email    string
	Password string
}

// Registration carries the normalized fields of a registration request.
type Registration struct {
	Name     string
	Email    string
	Password string
}

// ValidateLogin normalizes and validates login fields, failing fast on the
// first violated rule. Checks run in declared order: email, then password.
// The returned error messages are safe to surface to the user verbatim.
func ValidateLogin(email, password string) (Credentials, error) {
	normalized, err := validateEmail(email)
	if err != nil {
		return Credentials{}, err
	}
	if err := validatePassword(password); err != nil {
		return Credentials{}, err
	}
	return Credentials{Email: normalized, Password: password}, nil
}

// ValidateRegistration normalizes and validates registration fields, failing
// fast on the first violated rule. Checks run in declared order: email,
// password, then name.
func ValidateRegistration(name, email, password string) (Registration, error) {
	normalized, err := validateEmail(email)
	if err != nil {
		return Registration{}, err
	}
	if err := validatePassword(password); err != nil {
		return Registration{}, err
	}
	trimmedName := strings.TrimSpace(name)
	if len(trimmedName) < MinNameLength {
		return Registration{}, oops.Code("AUTH_VALIDATION_FAILED").
			With("field", "name").
			Errorf("Name must be at least %d characters", MinNameLength)
	}
	return Registration{Name: trimmedName, Email: normalized, Password: password}, nil
}

func validateEmail(email string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if !emailRegex.MatchString(normalized) {
		return "", oops.Code("AUTH_VALIDATION_FAILED").
			With("field", "email").
			Errorf("Invalid email address")
	}
	return normalized, nil
}

func validatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return oops.Code("AUTH_VALIDATION_FAILED").
			With("field", "password").
			Errorf("Password must be at least %d characters", MinPasswordLength)
	}
	return nil
}
