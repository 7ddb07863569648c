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

package rest

import (
	"strings"
	"testing"
)

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name     string
		username string
		wantErr  bool
	}{
		{"Valid email style", "alice@example.com", false},
		{"Valid plain", "alice", false},
		{"Valid unicode", "ålice", false},
		{"Empty", "", true},
		{"Control character", "alice\x00", true},
		{"Newline", "alice\nbob", true},
		{"DEL character", "alice\x7f", true},
		{"Too long", strings.Repeat("a", maxUsernameLength+1), true},
		{"Max length", strings.Repeat("a", maxUsernameLength), false},
		{"Invalid UTF-8", string([]byte{0xff, 0xfe}), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUsername(tt.username)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateUsername(%q) error = %v, wantErr %v", tt.username, err, tt.wantErr)
			}
		})
	}
}

func TestValidateDisplayName(t *testing.T) {
	tests := []struct {
		name        string
		displayName string
		wantErr     bool
	}{
		{"Valid", "Alice A", false},
		{"Empty is allowed", "", false},
		{"Control character", "Alice\x00", true},
		{"Too long", strings.Repeat("a", maxDisplayNameLength+1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDisplayName(tt.displayName)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateDisplayName(%q) error = %v, wantErr %v", tt.displayName, err, tt.wantErr)
			}
		})
	}
}

func TestSanitizeString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Plain path", "/register/start", "/register/start"},
		{"Strips newline", "/register\n/start", "/register/start"},
		{"Strips carriage return", "/a\rb", "/ab"},
		{"Empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeString(tt.input)
			if got != tt.expected {
				t.Errorf("SanitizeString(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}

	t.Run("Caps length", func(t *testing.T) {
		long := strings.Repeat("a", 2000)
		got := SanitizeString(long)
		if len(got) != 1003 || !strings.HasSuffix(got, "...") {
			t.Errorf("Expected 1000 characters plus ellipsis, got length %d", len(got))
		}
	})
}
