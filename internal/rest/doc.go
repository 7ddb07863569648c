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

// Package rest provides the HTTP API server for the go-passkey service.
//
// The REST API exposes the WebAuthn ceremony endpoints over HTTP, allowing
// browsers to enroll passkeys and authenticate with them.
//
// # Server Setup
//
// Create a REST server by providing a configuration with a ceremony service:
//
//	import (
//	    "github.com/jeremyhahn/go-passkey/internal/rest"
//	    "github.com/jeremyhahn/go-passkey/pkg/passkey"
//	)
//
//	// Create the ceremony service
//	svc, _ := passkey.NewService(passkey.ServiceParams{
//	    Config: &passkey.Config{
//	        RPID:          "example.com",
//	        RPDisplayName: "Example Corp",
//	        RPOrigin:      "https://example.com",
//	    },
//	    CredentialStore: passkey.NewMemoryCredentialStore(),
//	    CeremonyStore:   passkey.NewMemoryCeremonyStore(),
//	})
//
//	// Create REST server
//	server, _ := rest.NewServer(&rest.Config{
//	    Addr:           ":8080",
//	    Service:        svc,
//	    AllowedOrigins: []string{"https://example.com"},
//	    Version:        "1.0.0",
//	})
//
//	// Start server
//	go server.Start()
//
//	// Graceful shutdown
//	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
//	defer cancel()
//	server.Stop(ctx)
//
// # API Endpoints
//
// Ceremonies:
//   - POST /register/start - Mint a user ID and open a registration ceremony
//   - POST /register/finish - Verify the attestation response and enroll the credential
//   - POST /auth/start - Open an authentication ceremony for an enrolled user
//   - POST /auth/finish - Verify the assertion response and advance the sign counter
//
// Health Check:
//   - GET / - Plain-text liveness string
//   - GET /health - Returns server health status
//   - GET /health/live - Kubernetes liveness probe
//   - GET /health/ready - Kubernetes readiness probe
//   - GET /health/startup - Kubernetes startup probe
//
// Metrics:
//   - GET /metrics - Prometheus metrics (when enabled)
//
// # Error Handling
//
// Finish endpoints return a JSON body of the form:
//
//	{"success": false, "err": {"code": "verification_failed", "message": "..."}}
//
// Protocol misuse (no pending ceremony, expired ceremony, malformed input)
// yields HTTP 400. Failed verification and clone detection yield HTTP 401.
// Authentication attempts for unknown user IDs yield the same HTTP 400 shape
// as protocol errors so that enrollment status cannot be probed.
package rest
