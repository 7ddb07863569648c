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

// Package passkey implements the Relying Party side of the WebAuthn (FIDO2)
// registration and authentication ceremonies.
//
// The package wraps the go-webauthn/webauthn library and provides:
//   - A ceremony orchestrator (Service) that tracks one in-flight
//     registration and one in-flight authentication per user identity
//   - Pluggable storage interfaces for enrolled credentials and pending
//     ceremony state
//   - In-memory storage implementations for development/testing
//
// # Ceremony model
//
// Every registration mints a fresh user identity; the client echoes it back
// to finish the ceremony and to authenticate later. A user holds at most one
// enrolled credential. Ceremonies are single-attempt: the finish call
// consumes the pending state atomically whether verification succeeds or
// fails, so a challenge can never be replayed. Starting a new authentication
// replaces any prior in-flight one for the same user.
//
//	svc, err := passkey.NewService(passkey.ServiceParams{
//	    Config: &passkey.Config{
//	        RPID:          "localhost",
//	        RPDisplayName: "My App",
//	        RPOrigin:      "https://localhost:3000",
//	    },
//	    CredentialStore: passkey.NewMemoryCredentialStore(),
//	    CeremonyStore:   passkey.NewMemoryCeremonyStore(),
//	})
//
// For production, implement the storage interfaces with your database.
//
// # WebAuthn Specification Compliance
//
// This implementation follows the W3C Web Authentication specification:
//   - https://www.w3.org/TR/webauthn-2/
//   - https://www.w3.org/TR/webauthn-3/
//
// Note: WebAuthn requires HTTPS for all operations. Browsers will only
// expose the WebAuthn API in secure contexts.
package passkey
