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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTestConfig() *Config {
	return &Config{
		RPID:          "example.com",
		RPDisplayName: "Example",
		RPOrigin:      "https://example.com",
	}
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Config:          validTestConfig(),
		CredentialStore: NewMemoryCredentialStore(),
		CeremonyStore:   NewMemoryCeremonyStore(),
	})
	require.NoError(t, err)
	return svc
}

func TestNewService(t *testing.T) {
	tests := []struct {
		name    string
		params  ServiceParams
		wantErr string
	}{
		{
			name:    "nil config",
			params:  ServiceParams{},
			wantErr: "config is required",
		},
		{
			name: "nil credential store",
			params: ServiceParams{
				Config: validTestConfig(),
			},
			wantErr: "credential store is required",
		},
		{
			name: "nil ceremony store",
			params: ServiceParams{
				Config:          validTestConfig(),
				CredentialStore: NewMemoryCredentialStore(),
			},
			wantErr: "ceremony store is required",
		},
		{
			name: "invalid config",
			params: ServiceParams{
				Config:          &Config{}, // missing required fields
				CredentialStore: NewMemoryCredentialStore(),
				CeremonyStore:   NewMemoryCeremonyStore(),
			},
			wantErr: "invalid config",
		},
		{
			name: "valid params",
			params: ServiceParams{
				Config:          validTestConfig(),
				CredentialStore: NewMemoryCredentialStore(),
				CeremonyStore:   NewMemoryCeremonyStore(),
			},
			wantErr: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := NewService(tt.params)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Nil(t, svc)
			} else {
				require.NoError(t, err)
				assert.NotNil(t, svc)
				assert.NotNil(t, svc.Config())
			}
		})
	}
}

func TestService_BeginRegistration(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	user, options, err := svc.BeginRegistration(ctx, "alice@example.com", "Alice A")
	require.NoError(t, err)
	assert.NotEqual(t, UserID{}, user)
	require.NotNil(t, options)
	assert.Equal(t, "example.com", options.Response.RelyingParty.ID)
	assert.Equal(t, "alice@example.com", options.Response.User.Name)
	assert.Equal(t, "Alice A", options.Response.User.DisplayName)
	assert.NotNil(t, options.Response.User.ID)
	assert.NotEmpty(t, options.Response.Challenge)
}

func TestService_BeginRegistration_FreshIdentityPerCall(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	first, _, err := svc.BeginRegistration(ctx, "alice@example.com", "Alice")
	require.NoError(t, err)

	// A second begin for the same username mints a new identity; the first
	// ceremony stays in flight under its own key.
	second, _, err := svc.BeginRegistration(ctx, "alice@example.com", "Alice")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestService_BeginRegistration_EmptyUsername(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, _, err := svc.BeginRegistration(ctx, "", "No Name")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestService_FinishRegistration_NoPending(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	err := svc.FinishRegistration(ctx, NewUserID(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestService_BeginAuthentication_NotEnrolled(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	// Unknown identity and a started-but-unfinished registration must fail
	// the same way; the caller cannot enumerate enrolled users.
	_, err := svc.BeginAuthentication(ctx, NewUserID())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotEnrolled)

	pending, _, err := svc.BeginRegistration(ctx, "alice@example.com", "Alice")
	require.NoError(t, err)

	_, err = svc.BeginAuthentication(ctx, pending)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotEnrolled)
}

func TestService_FinishAuthentication_NoPending(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	err := svc.FinishAuthentication(ctx, NewUserID(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestService_IsEnrolled(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	enrolled, err := svc.IsEnrolled(ctx, NewUserID())
	require.NoError(t, err)
	assert.False(t, enrolled)

	// A begin without a finish does not enroll
	user, _, err := svc.BeginRegistration(ctx, "alice@example.com", "Alice")
	require.NoError(t, err)

	enrolled, err = svc.IsEnrolled(ctx, user)
	require.NoError(t, err)
	assert.False(t, enrolled)
}

func TestService_Credential_NotEnrolled(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, err := svc.Credential(ctx, NewUserID())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotEnrolled)
}

func TestService_NotConfigured(t *testing.T) {
	svc := &Service{configured: false}
	ctx := context.Background()
	user := NewUserID()

	_, _, err := svc.BeginRegistration(ctx, "alice@example.com", "Alice")
	assert.ErrorIs(t, err, ErrNotConfigured)

	err = svc.FinishRegistration(ctx, user, nil)
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = svc.BeginAuthentication(ctx, user)
	assert.ErrorIs(t, err, ErrNotConfigured)

	err = svc.FinishAuthentication(ctx, user, nil)
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = svc.IsEnrolled(ctx, user)
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = svc.Credential(ctx, user)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestService_Config(t *testing.T) {
	svc := newTestService(t)
	cfg := svc.Config()
	assert.NotNil(t, cfg)
	assert.Equal(t, "example.com", cfg.RPID)
}
