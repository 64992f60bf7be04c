// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Service provides registration, credential validation, and session
// lifecycle operations. It performs no retries: store failures propagate
// synchronously to the caller.
type Service struct {
	store  UserStore
	hasher PasswordHasher
	logger *slog.Logger
}

// NewService creates a new Service with the default logger.
func NewService(store UserStore, hasher PasswordHasher) (*Service, error) {
	return NewServiceWithLogger(store, hasher, slog.Default())
}

// NewServiceWithLogger creates a new Service with an explicit logger.
func NewServiceWithLogger(store UserStore, hasher PasswordHasher, logger *slog.Logger) (*Service, error) {
	if store == nil {
		return nil, oops.Code("AUTH_BAD_DEPENDENCY").Errorf("user store is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_BAD_DEPENDENCY").Errorf("password hasher is required")
	}
	if logger == nil {
		return nil, oops.Code("AUTH_BAD_DEPENDENCY").Errorf("logger is required")
	}
	return &Service{store: store, hasher: hasher, logger: logger}, nil
}

// dummyPasswordHash is verified against when an email is unknown, so the
// unknown-email path does comparable work to the wrong-password path.
// This is NOT a real credential - it's a fake hash that will never match
// any password.
//
//nolint:gosec // G101: intentionally fake hash, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Register creates a new user with a freshly salted password hash and
// returns the store-assigned identity. Fails with an
// ErrDuplicateEmail-wrapping error if the email is already on record.
//
// The duplicate check and the insert are two store calls; concurrent
// registrations racing between them are caught by the store's own
// uniqueness constraint and surface the same error.
func (s *Service) Register(ctx context.Context, email, password string) (ulid.ULID, error) {
	_, err := s.store.FindBy(ctx, ByEmail(email))
	switch {
	case err == nil:
		return ulid.ULID{}, oops.Code("AUTH_USER_EXISTS").Wrap(ErrDuplicateEmail)
	case !errors.Is(err, ErrNotFound):
		return ulid.ULID{}, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "find user by email").
			Wrap(err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return ulid.ULID{}, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	user, err := s.store.Insert(ctx, email, hash)
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			// Lost the check-then-insert race; same outcome as the
			// up-front check.
			return ulid.ULID{}, oops.Code("AUTH_USER_EXISTS").Wrap(err)
		}
		return ulid.ULID{}, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "insert user").
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID.String())
	return user.ID, nil
}

// ValidCredentials reports whether the email/password pair matches a
// stored credential. Unknown email and wrong password are both
// (false, nil); the two cases are indistinguishable to the caller, which
// prevents account enumeration through this path. A stored hash that
// cannot be parsed surfaces as an ErrInvalidHashFormat-wrapping error
// since it indicates corruption, not a bad password.
func (s *Service) ValidCredentials(ctx context.Context, email, password string) (bool, error) {
	user, err := s.store.FindBy(ctx, ByEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Burn a verification against the dummy hash anyway.
			_, _ = s.hasher.Verify(password, dummyPasswordHash) //nolint:errcheck // result is discarded on purpose
			return false, nil
		}
		return false, oops.Code("AUTH_VALIDATE_FAILED").
			With("operation", "find user by email").
			Wrap(err)
	}

	valid, err := s.hasher.Verify(password, user.HashedPassword)
	if err != nil {
		return false, oops.Code("AUTH_VALIDATE_FAILED").
			With("operation", "verify password").
			With("user_id", user.ID.String()).
			Wrap(err)
	}
	return valid, nil
}

// CreateSession mints a fresh opaque session token for the user with the
// given email, persists it on the record, and returns it. Each call
// issues a new token even if one already exists: last write wins, and a
// previously issued token stops resolving once overwritten in storage.
// Fails with an ErrNotFound-wrapping error if the email is unknown.
func (s *Service) CreateSession(ctx context.Context, email string) (string, error) {
	user, err := s.store.FindBy(ctx, ByEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", oops.Code("AUTH_USER_NOT_FOUND").Wrap(err)
		}
		return "", oops.Code("AUTH_SESSION_CREATE_FAILED").
			With("operation", "find user by email").
			Wrap(err)
	}

	token, err := newSessionID()
	if err != nil {
		return "", oops.Code("AUTH_SESSION_CREATE_FAILED").
			With("operation", "generate session id").
			Wrap(err)
	}

	if err := s.store.Update(ctx, user.ID, Fields{FieldSessionID: &token}); err != nil {
		return "", oops.Code("AUTH_SESSION_CREATE_FAILED").
			With("operation", "persist session id").
			With("user_id", user.ID.String()).
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "session created", "user_id", user.ID.String())
	return token, nil
}

// UserFromSession resolves a session token to its user. Absence is a
// normal value, not an error: an empty token returns (nil, nil) without
// a store round trip, and an unknown token returns (nil, nil). The
// returned record has its password hash redacted.
func (s *Service) UserFromSession(ctx context.Context, sessionID string) (*User, error) {
	if sessionID == "" {
		return nil, nil
	}

	user, err := s.store.FindBy(ctx, BySessionID(sessionID))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, oops.Code("AUTH_SESSION_LOOKUP_FAILED").
			With("operation", "find user by session id").
			Wrap(err)
	}
	return user.Redacted(), nil
}

// DestroySession clears the user's active session. Idempotent: clearing
// an already-absent session succeeds silently. Fails with an
// ErrNotFound-wrapping error if the user id is unknown.
func (s *Service) DestroySession(ctx context.Context, userID ulid.ULID) error {
	if _, err := s.store.FindBy(ctx, ByID(userID)); err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code("AUTH_USER_NOT_FOUND").Wrap(err)
		}
		return oops.Code("AUTH_SESSION_DESTROY_FAILED").
			With("operation", "find user by id").
			Wrap(err)
	}

	if err := s.store.Update(ctx, userID, Fields{FieldSessionID: nil}); err != nil {
		return oops.Code("AUTH_SESSION_DESTROY_FAILED").
			With("operation", "clear session id").
			With("user_id", userID.String()).
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "session destroyed", "user_id", userID.String())
	return nil
}

// newSessionID generates a cryptographically random opaque token.
func newSessionID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err //nolint:wrapcheck // caller attaches the oops code
	}
	return id.String(), nil
}
