// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package passkey

import (
	"context"
)

// CredentialStore manages the durable credential record per user identity.
// At most one record exists per user; enrollment overwrites.
type CredentialStore interface {
	// Put inserts or overwrites the credential record for a user.
	Put(ctx context.Context, user UserID, cred *CredentialRecord) error

	// Get retrieves the credential record for a user.
	// Returns ErrNotEnrolled if no record exists; this is a normal outcome,
	// not an internal fault.
	Get(ctx context.Context, user UserID) (*CredentialRecord, error)

	// UpdateCounter sets the signature counter for the user's credential and
	// stamps LastUsedAt. The new value must be strictly greater than the
	// stored value; otherwise ErrCounterRegression is returned and the
	// record is left unchanged. Monotonicity is a security property: a
	// non-advancing counter signals a cloned authenticator.
	UpdateCounter(ctx context.Context, user UserID, newCount uint32) error
}

// CeremonyStore tracks in-flight ceremony state, one registration slot and
// one authentication slot per user identity. Put overwrites any existing
// state for the user (last writer wins). Take is an atomic
// remove-and-return: two concurrent Take calls for the same user cannot
// both observe the same pending state.
type CeremonyStore interface {
	// PutRegistration stores pending registration state for a user.
	PutRegistration(ctx context.Context, user UserID, pending *PendingRegistration) error

	// TakeRegistration atomically removes and returns the pending
	// registration state for a user. Returns ErrNoPendingRegistration if
	// absent, or ErrCeremonyExpired if the state outlived its TTL.
	TakeRegistration(ctx context.Context, user UserID) (*PendingRegistration, error)

	// PutAuthentication stores pending authentication state for a user,
	// replacing any prior in-flight authentication for that user.
	PutAuthentication(ctx context.Context, user UserID, pending *PendingAuthentication) error

	// TakeAuthentication atomically removes and returns the pending
	// authentication state for a user. Returns ErrNoPendingAuthentication
	// if absent, or ErrCeremonyExpired if the state outlived its TTL.
	TakeAuthentication(ctx context.Context, user UserID) (*PendingAuthentication, error)
}
