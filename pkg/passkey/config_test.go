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
	"testing"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{
			name:    "missing RPID",
			config:  Config{RPDisplayName: "Test", RPOrigin: "https://example.com"},
			wantErr: "RPID is required",
		},
		{
			name:    "missing display name",
			config:  Config{RPID: "example.com", RPOrigin: "https://example.com"},
			wantErr: "RPDisplayName is required",
		},
		{
			name:    "missing origin",
			config:  Config{RPID: "example.com", RPDisplayName: "Test"},
			wantErr: "RPOrigin is required",
		},
		{
			name:    "malformed origin",
			config:  Config{RPID: "example.com", RPDisplayName: "Test", RPOrigin: "not a url"},
			wantErr: "invalid RPOrigin",
		},
		{
			name: "invalid user verification",
			config: Config{
				RPID: "example.com", RPDisplayName: "Test",
				RPOrigin: "https://example.com", UserVerification: "maybe",
			},
			wantErr: "invalid user verification",
		},
		{
			name: "invalid attestation preference",
			config: Config{
				RPID: "example.com", RPDisplayName: "Test",
				RPOrigin: "https://example.com", AttestationPreference: "always",
			},
			wantErr: "invalid attestation preference",
		},
		{
			name:   "valid minimal",
			config: Config{RPID: "example.com", RPDisplayName: "Test", RPOrigin: "https://example.com"},
		},
		{
			name: "valid full",
			config: Config{
				RPID:                  "example.com",
				RPDisplayName:         "Test",
				RPOrigin:              "https://example.com",
				Timeout:               30 * time.Second,
				CeremonyTTL:           time.Minute,
				UserVerification:      "required",
				AttestationPreference: "direct",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_SetDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.SetDefaults()

	assert.Equal(t, 60*time.Second, cfg.Timeout)
	assert.Equal(t, 2*time.Minute, cfg.CeremonyTTL)
	assert.Equal(t, "preferred", cfg.UserVerification)
	assert.Equal(t, "none", cfg.AttestationPreference)
}

func TestConfig_SetDefaults_PreservesExisting(t *testing.T) {
	cfg := &Config{
		Timeout:               10 * time.Second,
		CeremonyTTL:           time.Minute,
		UserVerification:      "required",
		AttestationPreference: "direct",
	}
	cfg.SetDefaults()

	assert.Equal(t, 10*time.Second, cfg.Timeout)
	assert.Equal(t, time.Minute, cfg.CeremonyTTL)
	assert.Equal(t, "required", cfg.UserVerification)
	assert.Equal(t, "direct", cfg.AttestationPreference)
}

func TestConfig_ToWebAuthnConfig(t *testing.T) {
	cfg := &Config{
		RPID:                  "example.com",
		RPDisplayName:         "Example Corp",
		RPOrigin:              "https://example.com",
		Timeout:               45 * time.Second,
		UserVerification:      "required",
		AttestationPreference: "direct",
	}

	wcfg := cfg.ToWebAuthnConfig()

	assert.Equal(t, "example.com", wcfg.RPID)
	assert.Equal(t, "Example Corp", wcfg.RPDisplayName)
	assert.Equal(t, []string{"https://example.com"}, wcfg.RPOrigins)
	assert.True(t, wcfg.Timeouts.Login.Enforce)
	assert.Equal(t, 45*time.Second, wcfg.Timeouts.Registration.Timeout)
	assert.Equal(t, protocol.PreferDirectAttestation, wcfg.AttestationPreference)
	assert.Equal(t, protocol.VerificationRequired, wcfg.AuthenticatorSelection.UserVerification)
}
