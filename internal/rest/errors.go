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
	"errors"
	"log"
	"net/http"

	"github.com/jeremyhahn/go-passkey/pkg/metrics"
	"github.com/jeremyhahn/go-passkey/pkg/passkey"
)

// Common errors
var (
	ErrInvalidRequestBody        = errors.New("invalid request body")
	ErrInvalidUserID             = errors.New("invalid user_id")
	ErrInvalidCredentialResponse = errors.New("invalid credential response")
	ErrInternalError             = errors.New("internal server error")
)

// notEnrolledMessage is deliberately vague so that authentication attempts
// cannot be used to probe which user IDs exist.
const notEnrolledMessage = "ceremony cannot proceed"

// writeError writes an error response to the client.
func writeError(w http.ResponseWriter, err error, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	resp := ErrorResponse{
		Error: err.Error(),
		Code:  statusCode,
	}

	if encErr := json.NewEncoder(w).Encode(resp); encErr != nil {
		log.Printf("Failed to encode error response: %v", encErr)
	}
}

// writeErrorWithMessage writes an error response with a custom message.
func writeErrorWithMessage(w http.ResponseWriter, err error, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	resp := ErrorResponse{
		Error:   err.Error(),
		Message: message,
		Code:    statusCode,
	}

	if encErr := json.NewEncoder(w).Encode(resp); encErr != nil {
		log.Printf("Failed to encode error response: %v", encErr)
	}
}

// ceremonyErrorCode maps ceremony errors to machine-readable codes.
func ceremonyErrorCode(err error) string {
	switch {
	case errors.Is(err, passkey.ErrNoPendingRegistration):
		return "no_pending_registration"
	case errors.Is(err, passkey.ErrNoPendingAuthentication):
		return "no_pending_authentication"
	case errors.Is(err, passkey.ErrCeremonyExpired):
		return "ceremony_expired"
	case errors.Is(err, passkey.ErrCounterRegression),
		errors.Is(err, passkey.ErrClonedAuthenticator):
		return "cloned_authenticator"
	case errors.Is(err, passkey.ErrVerificationFailed):
		return "verification_failed"
	case errors.Is(err, passkey.ErrNotEnrolled):
		return "cannot_proceed"
	case errors.Is(err, passkey.ErrInvalidRequest):
		return "invalid_request"
	default:
		return "internal_error"
	}
}

// handleCeremonyError maps a ceremony service error to an HTTP response and
// records the failure.
//
// Protocol misuse (no pending ceremony, expired ceremony, bad input) is a
// client error. Verification and clone-detection failures are authentication
// failures. An unenrolled user gets the same response shape as a protocol
// error so that user IDs cannot be enumerated.
func handleCeremonyError(w http.ResponseWriter, err error, ceremony, phase string) {
	code := ceremonyErrorCode(err)
	metrics.RecordError(ceremony, phase, code)

	switch {
	case passkey.IsNotEnrolled(err):
		writeCeremonyFailure(w, code, notEnrolledMessage, http.StatusBadRequest)
	case passkey.IsProtocolError(err), errors.Is(err, passkey.ErrInvalidRequest):
		writeCeremonyFailure(w, code, err.Error(), http.StatusBadRequest)
	case passkey.IsVerificationFailed(err), passkey.IsClonedAuthenticator(err):
		writeCeremonyFailure(w, code, err.Error(), http.StatusUnauthorized)
	default:
		writeCeremonyFailure(w, code, ErrInternalError.Error(), http.StatusInternalServerError)
	}
}

// writeCeremonyFailure writes a failed ceremony result.
func writeCeremonyFailure(w http.ResponseWriter, code, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	resp := CeremonyResultResponse{
		Success: false,
		Error: &ErrorDetail{
			Code:    code,
			Message: message,
		},
	}

	if encErr := json.NewEncoder(w).Encode(resp); encErr != nil {
		log.Printf("Failed to encode error response: %v", encErr)
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Failed to encode JSON response: %v", err)
		writeError(w, err, http.StatusInternalServerError)
	}
}
