// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Contributors

package auth

import "errors"

// Sentinel errors shared by the service and store implementations.
// Store and service failures wrap these (usually through oops codes),
// so callers match with errors.Is.
var (
	// ErrNotFound is returned when a requested user does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateEmail is returned when registration or insert targets
	// an email that is already on record.
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrInvalidHashFormat is returned when a stored password hash cannot
	// be parsed. This is a data-integrity failure, never "wrong password".
	ErrInvalidHashFormat = errors.New("invalid password hash format")

	// ErrInvalidQuery is returned for a lookup predicate the store does
	// not recognize. A programming error, never retried.
	ErrInvalidQuery = errors.New("invalid query predicate")

	// ErrInvalidField is returned for an update field the store does not
	// recognize as mutable. A programming error, never retried.
	ErrInvalidField = errors.New("invalid update field")
)
