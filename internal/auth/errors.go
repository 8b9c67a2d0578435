// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import "errors"

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateEmail is returned when creating a user whose email is already
// registered. Repositories wrap this sentinel around the store's
// unique-violation error so callers can distinguish conflicts from other
// store failures with errors.Is.
var ErrDuplicateEmail = errors.New("duplicate email")
