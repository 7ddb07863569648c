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
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jeremyhahn/go-passkey/pkg/health"
	"github.com/jeremyhahn/go-passkey/pkg/metrics"
	"github.com/jeremyhahn/go-passkey/pkg/passkey"
)

// HandlerContext holds dependencies for REST handlers.
type HandlerContext struct {
	// Service is the ceremony orchestration service
	Service *passkey.Service
	// Version is the API version
	Version string
	// HealthChecker manages health check probes
	HealthChecker HealthChecker
}

// HealthChecker defines the interface for health checking.
type HealthChecker interface {
	Live(ctx context.Context) health.CheckResult
	Ready(ctx context.Context) []health.CheckResult
	Startup(ctx context.Context) health.CheckResult
}

// NewHandlerContext creates a new handler context.
func NewHandlerContext(service *passkey.Service, version string) *HandlerContext {
	return &HandlerContext{
		Service: service,
		Version: version,
	}
}

// SetHealthChecker sets the health checker for the handler context.
func (h *HandlerContext) SetHealthChecker(checker HealthChecker) {
	h.HealthChecker = checker
}

// IndexHandler handles GET / requests with a plain liveness string.
func (h *HandlerContext) IndexHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("passkey server is running\n"))
}

// HealthHandler handles GET /health requests.
func (h *HandlerContext) HealthHandler(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "healthy",
		Version: h.Version,
	}
	writeJSON(w, resp, http.StatusOK)
}

// RegisterStartHandler handles POST /register/start requests.
//
// It mints a fresh user identity, opens a registration ceremony, and returns
// the credential creation options for navigator.credentials.create().
func (h *HandlerContext) RegisterStartHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req RegisterStartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, ErrInvalidRequestBody, http.StatusBadRequest)
		return
	}

	if err := ValidateUsername(req.Username); err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}
	if err := ValidateDisplayName(req.DisplayName); err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}

	user, options, err := h.Service.BeginRegistration(r.Context(), req.Username, req.DisplayName)
	if err != nil {
		metrics.RecordCeremony(metrics.CeremonyRegistration, metrics.PhaseBegin,
			metrics.StatusError, time.Since(start).Seconds())
		handleCeremonyError(w, err, metrics.CeremonyRegistration, metrics.PhaseBegin)
		return
	}

	metrics.RecordCeremony(metrics.CeremonyRegistration, metrics.PhaseBegin,
		metrics.StatusSuccess, time.Since(start).Seconds())

	resp := RegisterStartResponse{
		UserID:  user.String(),
		Options: options,
	}
	writeJSON(w, resp, http.StatusOK)
}

// RegisterFinishHandler handles POST /register/finish requests.
//
// It consumes the pending registration ceremony, verifies the authenticator's
// attestation response, and enrolls the credential.
func (h *HandlerContext) RegisterFinishHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req RegisterFinishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, ErrInvalidRequestBody, http.StatusBadRequest)
		return
	}

	user, err := uuid.Parse(req.UserID)
	if err != nil {
		writeError(w, ErrInvalidUserID, http.StatusBadRequest)
		return
	}

	response, err := parseCreationResponse(req.Response)
	if err != nil {
		writeError(w, ErrInvalidCredentialResponse, http.StatusBadRequest)
		return
	}

	if err := h.Service.FinishRegistration(r.Context(), user, response); err != nil {
		metrics.RecordCeremony(metrics.CeremonyRegistration, metrics.PhaseFinish,
			metrics.StatusError, time.Since(start).Seconds())
		handleCeremonyError(w, err, metrics.CeremonyRegistration, metrics.PhaseFinish)
		return
	}

	metrics.RecordCeremony(metrics.CeremonyRegistration, metrics.PhaseFinish,
		metrics.StatusSuccess, time.Since(start).Seconds())

	writeJSON(w, CeremonyResultResponse{Success: true}, http.StatusOK)
}

// AuthStartHandler handles POST /auth/start requests.
//
// It opens an authentication ceremony for an enrolled user and returns the
// credential request options for navigator.credentials.get().
func (h *HandlerContext) AuthStartHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req AuthStartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, ErrInvalidRequestBody, http.StatusBadRequest)
		return
	}

	user, err := uuid.Parse(req.UserID)
	if err != nil {
		writeError(w, ErrInvalidUserID, http.StatusBadRequest)
		return
	}

	options, err := h.Service.BeginAuthentication(r.Context(), user)
	if err != nil {
		metrics.RecordCeremony(metrics.CeremonyAuthentication, metrics.PhaseBegin,
			metrics.StatusError, time.Since(start).Seconds())
		handleCeremonyError(w, err, metrics.CeremonyAuthentication, metrics.PhaseBegin)
		return
	}

	metrics.RecordCeremony(metrics.CeremonyAuthentication, metrics.PhaseBegin,
		metrics.StatusSuccess, time.Since(start).Seconds())

	resp := AuthStartResponse{
		Options: options,
	}
	writeJSON(w, resp, http.StatusOK)
}

// AuthFinishHandler handles POST /auth/finish requests.
//
// It consumes the pending authentication ceremony, verifies the assertion
// signature, and advances the credential's sign counter.
func (h *HandlerContext) AuthFinishHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req AuthFinishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, ErrInvalidRequestBody, http.StatusBadRequest)
		return
	}

	user, err := uuid.Parse(req.UserID)
	if err != nil {
		writeError(w, ErrInvalidUserID, http.StatusBadRequest)
		return
	}

	response, err := parseAssertionResponse(req.Response)
	if err != nil {
		writeError(w, ErrInvalidCredentialResponse, http.StatusBadRequest)
		return
	}

	if err := h.Service.FinishAuthentication(r.Context(), user, response); err != nil {
		metrics.RecordCeremony(metrics.CeremonyAuthentication, metrics.PhaseFinish,
			metrics.StatusError, time.Since(start).Seconds())
		handleCeremonyError(w, err, metrics.CeremonyAuthentication, metrics.PhaseFinish)
		return
	}

	metrics.RecordCeremony(metrics.CeremonyAuthentication, metrics.PhaseFinish,
		metrics.StatusSuccess, time.Since(start).Seconds())

	writeJSON(w, CeremonyResultResponse{Success: true}, http.StatusOK)
}
