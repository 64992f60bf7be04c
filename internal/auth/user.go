// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Contributors

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

// User is an identity record. HashedPassword is opaque and never leaves
// the auth packages in clear; a nil SessionID means "no active session".
type User struct {
	ID             ulid.ULID
	Email          string
	HashedPassword string
	SessionID      *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Redacted returns a copy safe to hand outside the auth boundary:
// the password hash is cleared.
func (u *User) Redacted() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.HashedPassword = ""
	return &c
}

// HasSession reports whether the user currently holds a session token.
func (u *User) HasSession() bool {
	return u.SessionID != nil && *u.SessionID != ""
}

// Field names a user attribute recognized by the store.
type Field string

// Recognized fields. Only FieldSessionID is mutable through Update.
const (
	FieldID        Field = "id"
	FieldEmail     Field = "email"
	FieldSessionID Field = "session_id"
)

// Fields carries the attribute updates for UserStore.Update. A nil value
// for FieldSessionID clears the session.
type Fields map[Field]*string

// Predicate is a closed lookup key for UserStore.FindBy. Construct one
// with ByID, ByEmail, or BySessionID; the zero Predicate is invalid and
// fails with ErrInvalidQuery.
type Predicate struct {
	field Field
	value string
}

// ByID matches the user with the given store-assigned ID.
func ByID(id ulid.ULID) Predicate {
	return Predicate{field: FieldID, value: id.String()}
}

// ByEmail matches the user with the given email.
func ByEmail(email string) Predicate {
	return Predicate{field: FieldEmail, value: email}
}

// BySessionID matches the user holding the given session token.
func BySessionID(sessionID string) Predicate {
	return Predicate{field: FieldSessionID, value: sessionID}
}

// Field returns the attribute the predicate matches on.
func (p Predicate) Field() Field { return p.field }

// Value returns the value the predicate matches against.
func (p Predicate) Value() string { return p.value }

// Valid reports whether the predicate was built by one of the
// constructors above.
func (p Predicate) Valid() bool {
	switch p.field {
	case FieldID, FieldEmail, FieldSessionID:
		return true
	default:
		return false
	}
}

// UserStore is the persistence port for user records.
//
// Implementations must enforce email uniqueness at the storage layer, so
// that concurrent registrations racing past the service-level duplicate
// check still collapse to a single record. Single-record write ordering
// is the store's responsibility.
type UserStore interface {
	// Insert creates and persists a new record with a store-assigned ID
	// and no active session. Fails with ErrDuplicateEmail if an equal
	// email already exists.
	Insert(ctx context.Context, email, hashedPassword string) (*User, error)

	// FindBy returns the first record matching the predicate. Fails with
	// ErrNotFound if none matches and ErrInvalidQuery for a predicate
	// that was not built by ByID/ByEmail/BySessionID.
	FindBy(ctx context.Context, pred Predicate) (*User, error)

	// Update applies all given field updates to the record. Fails with
	// ErrNotFound if no such id exists and ErrInvalidField if any field
	// is not a recognized mutable attribute (only FieldSessionID is).
	// Either all fields apply or none do.
	Update(ctx context.Context, id ulid.ULID, fields Fields) error
}
