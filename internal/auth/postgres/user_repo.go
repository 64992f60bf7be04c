// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Contributors

// Package postgres implements the auth.UserStore using PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/keyfold/keyfold/internal/auth"
)

// poolIface is the subset of pgxpool.Pool the store uses. It is also
// satisfied by pgxmock.PgxPoolIface, which keeps the unit tests off a
// real database.
type poolIface interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// UserStore implements auth.UserStore using PostgreSQL. Email
// uniqueness is enforced by the users table's UNIQUE constraint, not
// just by the service-level check.
type UserStore struct {
	pool poolIface
}

// NewUserStore creates a new PostgreSQL-backed user store.
func NewUserStore(pool poolIface) *UserStore {
	return &UserStore{pool: pool}
}

const userColumns = `id, email, hashed_password, session_id, created_at, updated_at`

// Insert creates a new record with a store-assigned ULID.
func (s *UserStore) Insert(ctx context.Context, email, hashedPassword string) (*auth.User, error) {
	now := time.Now()
	user := &auth.User{
		ID:             ulid.Make(),
		Email:          email,
		HashedPassword: hashedPassword,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, email, hashed_password, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`,
		user.ID.String(),
		user.Email,
		user.HashedPassword,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, oops.Code("STORE_DUPLICATE_EMAIL").
				With("email", email).
				Wrap(auth.ErrDuplicateEmail)
		}
		return nil, oops.Code("STORE_INSERT_FAILED").
			With("operation", "insert user").
			Wrap(err)
	}
	return user, nil
}

// FindBy returns the first record matching the predicate.
func (s *UserStore) FindBy(ctx context.Context, pred auth.Predicate) (*auth.User, error) {
	var query string
	switch pred.Field() {
	case auth.FieldID:
		query = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	case auth.FieldEmail:
		query = `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	case auth.FieldSessionID:
		query = `SELECT ` + userColumns + ` FROM users WHERE session_id = $1`
	default:
		return nil, oops.Code("STORE_INVALID_QUERY").
			With("field", string(pred.Field())).
			Wrap(auth.ErrInvalidQuery)
	}

	user, err := scanUser(s.pool.QueryRow(ctx, query, pred.Value()))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("STORE_USER_NOT_FOUND").
			With("field", string(pred.Field())).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("STORE_FIND_FAILED").
			With("operation", "find user").
			With("field", string(pred.Field())).
			Wrap(err)
	}
	return user, nil
}

// Update applies the field updates in one statement, so either all of
// them land or none do.
func (s *UserStore) Update(ctx context.Context, id ulid.ULID, fields auth.Fields) error {
	for f := range fields {
		if f != auth.FieldSessionID {
			return oops.Code("STORE_INVALID_FIELD").
				With("field", string(f)).
				Wrap(auth.ErrInvalidField)
		}
	}

	sessID, present := fields[auth.FieldSessionID]
	if !present {
		// Nothing to apply; still report a missing record.
		var exists bool
		err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, id.String()).Scan(&exists)
		if err != nil {
			return oops.Code("STORE_UPDATE_FAILED").
				With("operation", "check user exists").
				With("id", id.String()).
				Wrap(err)
		}
		if !exists {
			return oops.Code("STORE_USER_NOT_FOUND").
				With("id", id.String()).
				Wrap(auth.ErrNotFound)
		}
		return nil
	}

	result, err := s.pool.Exec(ctx, `
		UPDATE users SET session_id = $2, updated_at = $3
		WHERE id = $1
	`, id.String(), sessID, time.Now())
	if err != nil {
		return oops.Code("STORE_UPDATE_FAILED").
			With("operation", "update session id").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("STORE_USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// scanUser scans a single row into a User. Callers are responsible for
// handling pgx.ErrNoRows.
func scanUser(row pgx.Row) (*auth.User, error) {
	var (
		idStr     string
		email     string
		hash      string
		sessionID *string
		createdAt time.Time
		updatedAt time.Time
	)

	err := row.Scan(&idStr, &email, &hash, &sessionID, &createdAt, &updatedAt)
	if err != nil {
		// Propagate pgx.ErrNoRows unchanged for callers to handle with context.
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // callers wrap with context-specific info
		}
		return nil, oops.Code("STORE_SCAN_FAILED").
			With("operation", "scan user").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("STORE_INVALID_ID").
			With("operation", "parse user id").
			With("id", idStr).
			Wrap(err)
	}

	return &auth.User{
		ID:             id,
		Email:          email,
		HashedPassword: hash,
		SessionID:      sessionID,
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
	}, nil
}

// Compile-time interface check.
var _ auth.UserStore = (*UserStore)(nil)
