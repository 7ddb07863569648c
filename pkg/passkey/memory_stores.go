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
	"sync"
	"time"
)

// MemoryCredentialStore is an in-memory implementation of CredentialStore.
// State is process-volatile; durability across restarts is out of scope.
type MemoryCredentialStore struct {
	mu    sync.RWMutex
	creds map[UserID]*CredentialRecord
}

// NewMemoryCredentialStore creates a new in-memory credential store.
func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{
		creds: make(map[UserID]*CredentialRecord),
	}
}

// Put inserts or overwrites the credential record for a user.
func (s *MemoryCredentialStore) Put(ctx context.Context, user UserID, cred *CredentialRecord) error {
	if cred == nil {
		return ErrInvalidRequest
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.creds[user] = cred
	return nil
}

// Get retrieves the credential record for a user.
func (s *MemoryCredentialStore) Get(ctx context.Context, user UserID) (*CredentialRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cred, ok := s.creds[user]
	if !ok {
		return nil, ErrNotEnrolled
	}

	// Return a copy so callers cannot mutate stored state outside the
	// store's contract.
	c := *cred
	return &c, nil
}

// UpdateCounter sets the signature counter if, and only if, the new value is
// strictly greater than the stored value.
func (s *MemoryCredentialStore) UpdateCounter(ctx context.Context, user UserID, newCount uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, ok := s.creds[user]
	if !ok {
		return ErrNotEnrolled
	}

	if newCount <= cred.Authenticator.SignCount {
		return ErrCounterRegression
	}

	cred.Authenticator.SignCount = newCount
	cred.LastUsedAt = time.Now().UTC()
	return nil
}

// Count returns the number of enrolled credentials.
func (s *MemoryCredentialStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.creds)
}

// Clear removes all credential records.
func (s *MemoryCredentialStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = make(map[UserID]*CredentialRecord)
}

// MemoryCeremonyStore is an in-memory implementation of CeremonyStore. The
// registration and authentication slots are independent maps keyed by user
// identity; each mutation holds the store lock so Take is a single atomic
// step.
type MemoryCeremonyStore struct {
	mu            sync.Mutex
	registrations map[UserID]*PendingRegistration
	logins        map[UserID]*PendingAuthentication
	ttl           time.Duration
}

// NewMemoryCeremonyStore creates a new in-memory ceremony store with the
// default 2 minute TTL for abandoned ceremonies.
func NewMemoryCeremonyStore() *MemoryCeremonyStore {
	return NewMemoryCeremonyStoreWithTTL(2 * time.Minute)
}

// NewMemoryCeremonyStoreWithTTL creates a new in-memory ceremony store with
// a custom TTL.
func NewMemoryCeremonyStoreWithTTL(ttl time.Duration) *MemoryCeremonyStore {
	return &MemoryCeremonyStore{
		registrations: make(map[UserID]*PendingRegistration),
		logins:        make(map[UserID]*PendingAuthentication),
		ttl:           ttl,
	}
}

// PutRegistration stores pending registration state for a user.
func (s *MemoryCeremonyStore) PutRegistration(ctx context.Context, user UserID, pending *PendingRegistration) error {
	if pending == nil {
		return ErrInvalidRequest
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.registrations[user] = pending
	return nil
}

// TakeRegistration atomically removes and returns the pending registration
// state for a user.
func (s *MemoryCeremonyStore) TakeRegistration(ctx context.Context, user UserID) (*PendingRegistration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending, ok := s.registrations[user]
	if !ok {
		return nil, ErrNoPendingRegistration
	}
	delete(s.registrations, user)

	if s.expired(pending.CreatedAt) {
		return nil, ErrCeremonyExpired
	}
	return pending, nil
}

// PutAuthentication stores pending authentication state for a user. Any
// prior in-flight authentication for the user is silently replaced; its
// challenge is invalidated.
func (s *MemoryCeremonyStore) PutAuthentication(ctx context.Context, user UserID, pending *PendingAuthentication) error {
	if pending == nil {
		return ErrInvalidRequest
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.logins[user] = pending
	return nil
}

// TakeAuthentication atomically removes and returns the pending
// authentication state for a user.
func (s *MemoryCeremonyStore) TakeAuthentication(ctx context.Context, user UserID) (*PendingAuthentication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending, ok := s.logins[user]
	if !ok {
		return nil, ErrNoPendingAuthentication
	}
	delete(s.logins, user)

	if s.expired(pending.CreatedAt) {
		return nil, ErrCeremonyExpired
	}
	return pending, nil
}

// expired reports whether a ceremony created at t has outlived the TTL.
// A zero TTL disables expiry.
func (s *MemoryCeremonyStore) expired(t time.Time) bool {
	return s.ttl > 0 && time.Since(t) > s.ttl
}

// Count returns the number of in-flight ceremonies (both phases).
func (s *MemoryCeremonyStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.registrations) + len(s.logins)
}

// Clear removes all in-flight ceremony state.
func (s *MemoryCeremonyStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registrations = make(map[UserID]*PendingRegistration)
	s.logins = make(map[UserID]*PendingAuthentication)
}

// Cleanup removes expired ceremony state and returns the number of entries
// removed. Intended to be driven by a periodic janitor.
func (s *MemoryCeremonyStore) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for user, pending := range s.registrations {
		if s.expired(pending.CreatedAt) {
			delete(s.registrations, user)
			removed++
		}
	}
	for user, pending := range s.logins {
		if s.expired(pending.CreatedAt) {
			delete(s.logins, user)
			removed++
		}
	}
	return removed
}
