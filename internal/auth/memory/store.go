// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Contributors

// Package memory provides an in-memory auth.UserStore, used for tests
// and single-process deployments. A single synchronized instance owns
// all records; there is no shared package-level state.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/keyfold/keyfold/internal/auth"
)

// UserStore is an in-memory auth.UserStore. The mutex serializes
// conflicting writes to the same record, which is all the concurrency
// the contract asks of a store.
type UserStore struct {
	mu       sync.RWMutex
	users    map[ulid.ULID]*auth.User
	byEmail  map[string]ulid.ULID
	bySessID map[string]ulid.ULID
}

// NewUserStore creates an empty in-memory user store.
func NewUserStore() *UserStore {
	return &UserStore{
		users:    make(map[ulid.ULID]*auth.User),
		byEmail:  make(map[string]ulid.ULID),
		bySessID: make(map[string]ulid.ULID),
	}
}

// Insert creates a new record. Uniqueness is checked under the write
// lock, so concurrent inserts for one email cannot both succeed.
func (s *UserStore) Insert(_ context.Context, email, hashedPassword string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[email]; exists {
		return nil, oops.Code("STORE_DUPLICATE_EMAIL").
			With("email", email).
			Wrap(auth.ErrDuplicateEmail)
	}

	now := time.Now()
	user := &auth.User{
		ID:             ulid.Make(),
		Email:          email,
		HashedPassword: hashedPassword,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	s.users[user.ID] = user
	s.byEmail[email] = user.ID

	return cloneUser(user), nil
}

// FindBy returns the first record matching the predicate.
func (s *UserStore) FindBy(_ context.Context, pred auth.Predicate) (*auth.User, error) {
	if !pred.Valid() {
		return nil, oops.Code("STORE_INVALID_QUERY").
			With("field", string(pred.Field())).
			Wrap(auth.ErrInvalidQuery)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		id ulid.ULID
		ok bool
	)
	switch pred.Field() {
	case auth.FieldID:
		parsed, err := ulid.Parse(pred.Value())
		if err != nil {
			return nil, notFound(pred)
		}
		id, ok = parsed, true
		if _, exists := s.users[id]; !exists {
			ok = false
		}
	case auth.FieldEmail:
		id, ok = s.byEmail[pred.Value()]
	case auth.FieldSessionID:
		id, ok = s.bySessID[pred.Value()]
	}
	if !ok {
		return nil, notFound(pred)
	}

	return cloneUser(s.users[id]), nil
}

// Update applies all field updates to the record, or none of them.
func (s *UserStore) Update(_ context.Context, id ulid.ULID, fields auth.Fields) error {
	// Validate before taking the write lock so a bad field never
	// partially applies.
	for f := range fields {
		if f != auth.FieldSessionID {
			return oops.Code("STORE_INVALID_FIELD").
				With("field", string(f)).
				Wrap(auth.ErrInvalidField)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.users[id]
	if !exists {
		return oops.Code("STORE_USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}

	if sessID, present := fields[auth.FieldSessionID]; present {
		if user.SessionID != nil {
			delete(s.bySessID, *user.SessionID)
		}
		if sessID != nil {
			v := *sessID
			user.SessionID = &v
			s.bySessID[v] = id
		} else {
			user.SessionID = nil
		}
		user.UpdatedAt = time.Now()
	}

	return nil
}

func notFound(pred auth.Predicate) error {
	return oops.Code("STORE_USER_NOT_FOUND").
		With("field", string(pred.Field())).
		Wrap(auth.ErrNotFound)
}

func cloneUser(u *auth.User) *auth.User {
	c := *u
	if u.SessionID != nil {
		v := *u.SessionID
		c.SessionID = &v
	}
	return &c
}

// Compile-time interface check.
var _ auth.UserStore = (*UserStore)(nil)
