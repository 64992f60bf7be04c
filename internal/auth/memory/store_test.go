// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Contributors

package memory_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyfold/keyfold/internal/auth"
	"github.com/keyfold/keyfold/internal/auth/memory"
)

func TestUserStore_Insert(t *testing.T) {
	ctx := context.Background()

	t.Run("assigns id and timestamps", func(t *testing.T) {
		store := memory.NewUserStore()

		user, err := store.Insert(ctx, "a@x.com", "hash")
		require.NoError(t, err)
		assert.NotEqual(t, ulid.ULID{}, user.ID)
		assert.Equal(t, "a@x.com", user.Email)
		assert.Equal(t, "hash", user.HashedPassword)
		assert.Nil(t, user.SessionID)
		assert.False(t, user.CreatedAt.IsZero())
	})

	t.Run("rejects duplicate email", func(t *testing.T) {
		store := memory.NewUserStore()

		_, err := store.Insert(ctx, "a@x.com", "hash1")
		require.NoError(t, err)

		_, err = store.Insert(ctx, "a@x.com", "hash2")
		assert.ErrorIs(t, err, auth.ErrDuplicateEmail)
	})

	t.Run("concurrent inserts for one email yield exactly one record", func(t *testing.T) {
		store := memory.NewUserStore()

		const goroutines = 16
		var wg sync.WaitGroup
		errs := make([]error, goroutines)
		for i := range goroutines {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, errs[i] = store.Insert(ctx, "race@x.com", fmt.Sprintf("hash-%d", i))
			}()
		}
		wg.Wait()

		var succeeded int
		for _, err := range errs {
			if err == nil {
				succeeded++
			} else {
				assert.ErrorIs(t, err, auth.ErrDuplicateEmail)
			}
		}
		assert.Equal(t, 1, succeeded)
	})
}

func TestUserStore_FindBy(t *testing.T) {
	ctx := context.Background()

	t.Run("finds by id, email, and session id", func(t *testing.T) {
		store := memory.NewUserStore()
		created, err := store.Insert(ctx, "a@x.com", "hash")
		require.NoError(t, err)

		sess := "token-1"
		require.NoError(t, store.Update(ctx, created.ID, auth.Fields{auth.FieldSessionID: &sess}))

		byID, err := store.FindBy(ctx, auth.ByID(created.ID))
		require.NoError(t, err)
		assert.Equal(t, created.ID, byID.ID)

		byEmail, err := store.FindBy(ctx, auth.ByEmail("a@x.com"))
		require.NoError(t, err)
		assert.Equal(t, created.ID, byEmail.ID)

		bySess, err := store.FindBy(ctx, auth.BySessionID("token-1"))
		require.NoError(t, err)
		assert.Equal(t, created.ID, bySess.ID)
	})

	t.Run("no match is ErrNotFound", func(t *testing.T) {
		store := memory.NewUserStore()

		_, err := store.FindBy(ctx, auth.ByEmail("missing@x.com"))
		assert.ErrorIs(t, err, auth.ErrNotFound)

		_, err = store.FindBy(ctx, auth.ByID(ulid.Make()))
		assert.ErrorIs(t, err, auth.ErrNotFound)

		_, err = store.FindBy(ctx, auth.BySessionID("nope"))
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("zero predicate is ErrInvalidQuery", func(t *testing.T) {
		store := memory.NewUserStore()

		_, err := store.FindBy(ctx, auth.Predicate{})
		assert.ErrorIs(t, err, auth.ErrInvalidQuery)
	})

	t.Run("returned record is a copy", func(t *testing.T) {
		store := memory.NewUserStore()
		created, err := store.Insert(ctx, "a@x.com", "hash")
		require.NoError(t, err)

		got, err := store.FindBy(ctx, auth.ByID(created.ID))
		require.NoError(t, err)
		got.Email = "mutated@x.com"

		again, err := store.FindBy(ctx, auth.ByEmail("a@x.com"))
		require.NoError(t, err)
		assert.Equal(t, "a@x.com", again.Email)
	})
}

func TestUserStore_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("sets and clears the session id", func(t *testing.T) {
		store := memory.NewUserStore()
		created, err := store.Insert(ctx, "a@x.com", "hash")
		require.NoError(t, err)

		sess := "token-1"
		require.NoError(t, store.Update(ctx, created.ID, auth.Fields{auth.FieldSessionID: &sess}))

		got, err := store.FindBy(ctx, auth.ByID(created.ID))
		require.NoError(t, err)
		require.NotNil(t, got.SessionID)
		assert.Equal(t, "token-1", *got.SessionID)

		require.NoError(t, store.Update(ctx, created.ID, auth.Fields{auth.FieldSessionID: nil}))

		got, err = store.FindBy(ctx, auth.ByID(created.ID))
		require.NoError(t, err)
		assert.Nil(t, got.SessionID)

		// Reverse lookup is gone too.
		_, err = store.FindBy(ctx, auth.BySessionID("token-1"))
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("overwriting releases the previous token", func(t *testing.T) {
		store := memory.NewUserStore()
		created, err := store.Insert(ctx, "a@x.com", "hash")
		require.NoError(t, err)

		first, second := "token-1", "token-2"
		require.NoError(t, store.Update(ctx, created.ID, auth.Fields{auth.FieldSessionID: &first}))
		require.NoError(t, store.Update(ctx, created.ID, auth.Fields{auth.FieldSessionID: &second}))

		_, err = store.FindBy(ctx, auth.BySessionID("token-1"))
		assert.ErrorIs(t, err, auth.ErrNotFound)

		got, err := store.FindBy(ctx, auth.BySessionID("token-2"))
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)
	})

	t.Run("unknown id is ErrNotFound", func(t *testing.T) {
		store := memory.NewUserStore()

		sess := "token"
		err := store.Update(ctx, ulid.Make(), auth.Fields{auth.FieldSessionID: &sess})
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("unrecognized field is ErrInvalidField and applies nothing", func(t *testing.T) {
		store := memory.NewUserStore()
		created, err := store.Insert(ctx, "a@x.com", "hash")
		require.NoError(t, err)

		sess := "token"
		err = store.Update(ctx, created.ID, auth.Fields{
			auth.FieldSessionID: &sess,
			auth.FieldEmail:     &sess,
		})
		assert.ErrorIs(t, err, auth.ErrInvalidField)

		got, err := store.FindBy(ctx, auth.ByID(created.ID))
		require.NoError(t, err)
		assert.Nil(t, got.SessionID)
	})
}
