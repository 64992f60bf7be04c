// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Contributors

//go:build integration

package postgres_test

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/keyfold/keyfold/internal/auth"
	authpg "github.com/keyfold/keyfold/internal/auth/postgres"
	"github.com/keyfold/keyfold/internal/store"
)

// setupPostgresContainer starts a PostgreSQL container, runs migrations,
// and returns a ready user store.
func setupPostgresContainer() (*authpg.UserStore, func(), error) {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("keyfold_test"),
		tcpostgres.WithUsername("keyfold"),
		tcpostgres.WithPassword("keyfold"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, nil, err
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, nil, err
	}

	migrator, err := store.NewMigrator(connStr)
	if err != nil {
		return nil, nil, err
	}
	if err := migrator.Up(); err != nil {
		return nil, nil, err
	}
	if err := migrator.Close(); err != nil {
		return nil, nil, err
	}

	pool, err := store.Open(ctx, connStr)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		pool.Close()
		_ = container.Terminate(ctx)
	}

	return authpg.NewUserStore(pool), cleanup, nil
}

var _ = Describe("UserStore", func() {
	var userStore *authpg.UserStore
	var cleanup func()

	BeforeEach(func() {
		var err error
		userStore, cleanup, err = setupPostgresContainer()
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		cleanup()
	})

	Describe("Insert", func() {
		It("persists a user and assigns an ID", func() {
			ctx := context.Background()

			user, err := userStore.Insert(ctx, "a@x.com", "hash-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(user.ID).NotTo(Equal(ulid.ULID{}))

			found, err := userStore.FindBy(ctx, auth.ByEmail("a@x.com"))
			Expect(err).NotTo(HaveOccurred())
			Expect(found.ID).To(Equal(user.ID))
			Expect(found.HashedPassword).To(Equal("hash-1"))
			Expect(found.SessionID).To(BeNil())
		})

		It("rejects a duplicate email", func() {
			ctx := context.Background()

			_, err := userStore.Insert(ctx, "a@x.com", "hash-1")
			Expect(err).NotTo(HaveOccurred())

			_, err = userStore.Insert(ctx, "a@x.com", "hash-2")
			Expect(err).To(MatchError(auth.ErrDuplicateEmail))
		})
	})

	Describe("FindBy", func() {
		It("reports a missing email as not found", func() {
			ctx := context.Background()

			_, err := userStore.FindBy(ctx, auth.ByEmail("missing@x.com"))
			Expect(err).To(MatchError(auth.ErrNotFound))
		})

		It("finds by ID", func() {
			ctx := context.Background()

			user, err := userStore.Insert(ctx, "a@x.com", "hash-1")
			Expect(err).NotTo(HaveOccurred())

			found, err := userStore.FindBy(ctx, auth.ByID(user.ID))
			Expect(err).NotTo(HaveOccurred())
			Expect(found.Email).To(Equal("a@x.com"))
		})
	})

	Describe("Update", func() {
		It("sets, resolves, and clears a session", func() {
			ctx := context.Background()

			user, err := userStore.Insert(ctx, "a@x.com", "hash-1")
			Expect(err).NotTo(HaveOccurred())

			sess := "session-token-1"
			err = userStore.Update(ctx, user.ID, auth.Fields{auth.FieldSessionID: &sess})
			Expect(err).NotTo(HaveOccurred())

			found, err := userStore.FindBy(ctx, auth.BySessionID(sess))
			Expect(err).NotTo(HaveOccurred())
			Expect(found.ID).To(Equal(user.ID))

			err = userStore.Update(ctx, user.ID, auth.Fields{auth.FieldSessionID: nil})
			Expect(err).NotTo(HaveOccurred())

			_, err = userStore.FindBy(ctx, auth.BySessionID(sess))
			Expect(err).To(MatchError(auth.ErrNotFound))
		})

		It("reports an unknown user as not found", func() {
			ctx := context.Background()

			sess := "session-token-1"
			err := userStore.Update(ctx, ulid.Make(), auth.Fields{auth.FieldSessionID: &sess})
			Expect(err).To(MatchError(auth.ErrNotFound))
		})
	})
})
