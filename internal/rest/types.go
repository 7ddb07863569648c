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
	"encoding/json"

	"github.com/go-webauthn/webauthn/protocol"
)

// RegisterStartRequest is the request body for POST /register/start.
type RegisterStartRequest struct {
	// Username is the account identifier shown in authenticator UIs
	Username string `json:"username"`
	// DisplayName is the friendly name shown in authenticator UIs (optional)
	DisplayName string `json:"display_name,omitempty"`
}

// RegisterStartResponse is the response body for POST /register/start.
type RegisterStartResponse struct {
	// UserID is the server-minted identity for this enrollment
	UserID string `json:"user_id"`
	// Options are the credential creation options to pass to
	// navigator.credentials.create()
	Options *protocol.CredentialCreation `json:"ccr"`
}

// RegisterFinishRequest is the request body for POST /register/finish.
type RegisterFinishRequest struct {
	// UserID is the identity returned by /register/start
	UserID string `json:"user_id"`
	// Response is the raw attestation response produced by the browser
	Response json.RawMessage `json:"response"`
}

// AuthStartRequest is the request body for POST /auth/start.
type AuthStartRequest struct {
	// UserID is the identity of the enrolled user
	UserID string `json:"user_id"`
}

// AuthStartResponse is the response body for POST /auth/start.
type AuthStartResponse struct {
	// Options are the credential request options to pass to
	// navigator.credentials.get()
	Options *protocol.CredentialAssertion `json:"rcr"`
}

// AuthFinishRequest is the request body for POST /auth/finish.
type AuthFinishRequest struct {
	// UserID is the identity of the enrolled user
	UserID string `json:"user_id"`
	// Response is the raw assertion response produced by the browser
	Response json.RawMessage `json:"auth"`
}

// CeremonyResultResponse is the response body for ceremony finish endpoints.
type CeremonyResultResponse struct {
	Success bool         `json:"success"`
	Error   *ErrorDetail `json:"err,omitempty"`
}

// ErrorDetail carries a machine-readable error code and human-readable message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse is the generic error response body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// parseCreationResponse parses a raw browser attestation response into the
// format expected by the ceremony service.
func parseCreationResponse(raw json.RawMessage) (*protocol.ParsedCredentialCreationData, error) {
	var ccr protocol.CredentialCreationResponse
	if err := json.Unmarshal(raw, &ccr); err != nil {
		return nil, err
	}
	return ccr.Parse()
}

// parseAssertionResponse parses a raw browser assertion response into the
// format expected by the ceremony service.
func parseAssertionResponse(raw json.RawMessage) (*protocol.ParsedCredentialAssertionData, error) {
	var car protocol.CredentialAssertionResponse
	if err := json.Unmarshal(raw, &car); err != nil {
		return nil, err
	}
	return car.Parse()
}
