// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Contributors

// Package auth is the credential-and-session core of Keyfold.
//
// # Domain Types
//
// A User is an identity record keyed by a store-assigned ULID, a unique
// email, an opaque salted password hash, and an optional session token.
// The hash is produced by a PasswordHasher and never leaves the auth
// packages; callers see it redacted.
//
// # Store Contract
//
// UserStore is the persistence port: insert with email uniqueness,
// predicate lookup over a closed set of fields (id, email, session id),
// and all-or-nothing field updates. Implementations live in the memory
// and postgres subpackages.
//
// # Service
//
// Service orchestrates registration, credential validation, and session
// issuance/teardown on top of UserStore and PasswordHasher. It holds no
// mutable state of its own and is safe to run concurrently against one
// store.
package auth
