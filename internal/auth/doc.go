// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package auth provides credential authentication primitives for Gatehouse.
//
// # Domain Types
//
// Domain types (User, Session) should be created using their respective
// constructors:
//   - NewUser - creates a User with a validated name, email, and password hash
//   - NewSession - creates a Session with a validated user and expiry
//
// Direct struct initialization bypasses validation and may create invalid
// state. Repository implementations receive pre-validated types from these
// constructors.
//
// # Services
//
// Service coordinates the authentication flow: credential validation, user
// lookup, password verification, and session issuance. It never reveals
// whether a login failure was caused by an unknown email or a wrong
// password; both collapse to the same AUTH_INVALID_CREDENTIALS error.
package auth
