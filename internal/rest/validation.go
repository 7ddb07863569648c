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
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	maxUsernameLength    = 255
	maxDisplayNameLength = 255
)

// ValidateUsername checks if a username is safe to store and echo back
// in credential creation options.
// - Rejects empty strings
// - Rejects null bytes and control characters
// - Rejects invalid UTF-8
// - Enforces a length limit (prevent DoS via extremely long names)
func ValidateUsername(username string) error {
	if username == "" {
		return fmt.Errorf("username cannot be empty")
	}

	if !utf8.ValidString(username) {
		return fmt.Errorf("username is not valid UTF-8")
	}

	for _, r := range username {
		if r < 32 || r == 127 {
			return fmt.Errorf("username contains invalid characters")
		}
	}

	if len(username) > maxUsernameLength {
		return fmt.Errorf("username too long (max %d characters)", maxUsernameLength)
	}

	return nil
}

// ValidateDisplayName checks if a display name is safe. An empty display
// name is allowed; the username is used in its place.
func ValidateDisplayName(displayName string) error {
	if displayName == "" {
		return nil
	}

	if !utf8.ValidString(displayName) {
		return fmt.Errorf("display name is not valid UTF-8")
	}

	for _, r := range displayName {
		if r < 32 || r == 127 {
			return fmt.Errorf("display name contains invalid characters")
		}
	}

	if len(displayName) > maxDisplayNameLength {
		return fmt.Errorf("display name too long (max %d characters)", maxDisplayNameLength)
	}

	return nil
}

// SanitizeString removes potentially dangerous characters from a string.
// Used for log messages and error outputs to prevent log injection.
func SanitizeString(s string) string {
	// Remove control characters and null bytes
	s = strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, s)

	// Limit length
	if len(s) > 1000 {
		s = s[:1000] + "..."
	}

	return s
}
