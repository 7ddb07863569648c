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

// Package client provides an HTTP client for the passkey ceremony server.
// It wraps the /register and /auth endpoints with typed requests and
// responses so relying party backends can drive ceremonies without
// hand-building HTTP calls.
package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

var (
	// ErrConnectionFailed is returned when the server cannot be reached
	ErrConnectionFailed = errors.New("connection failed")
	// ErrServerError is returned for unexpected non-ceremony failures
	ErrServerError = errors.New("server error")
)

// CeremonyFailure is returned when the server rejects a ceremony request.
// Code carries the machine-readable reason emitted by the server.
type CeremonyFailure struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *CeremonyFailure) Error() string {
	return fmt.Sprintf("ceremony failed: %s (%s)", e.Message, e.Code)
}

// Config configures the passkey client.
type Config struct {
	// BaseURL is the server address, e.g. https://passkey.example.com
	BaseURL string

	// Timeout is the per-request timeout (default: 30s)
	Timeout time.Duration

	// TLSInsecureSkipVerify skips TLS certificate verification (not recommended)
	TLSInsecureSkipVerify bool

	// TLSCAFile is the path to the CA certificate file
	TLSCAFile string

	// TLSCertFile is the path to the client certificate file (for mTLS)
	TLSCertFile string

	// TLSKeyFile is the path to the client key file (for mTLS)
	TLSKeyFile string

	// Headers are additional HTTP headers to include in requests
	Headers map[string]string
}

// Client speaks the ceremony server's REST API.
type Client struct {
	config     *Config
	httpClient *http.Client
	baseURL    string
}

// RegisterStartResponse is the server's answer to a registration begin call.
type RegisterStartResponse struct {
	// UserID is the server-minted identity for this enrollment
	UserID string `json:"user_id"`
	// Options are the raw credential creation options to hand to
	// navigator.credentials.create()
	Options json.RawMessage `json:"ccr"`
}

// AuthStartResponse is the server's answer to an authentication begin call.
type AuthStartResponse struct {
	// Options are the raw credential request options to hand to
	// navigator.credentials.get()
	Options json.RawMessage `json:"rcr"`
}

// HealthResponse is the server's health report.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

type registerStartRequest struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name,omitempty"`
}

type registerFinishRequest struct {
	UserID   string          `json:"user_id"`
	Response json.RawMessage `json:"response"`
}

type authStartRequest struct {
	UserID string `json:"user_id"`
}

type authFinishRequest struct {
	UserID   string          `json:"user_id"`
	Response json.RawMessage `json:"auth"`
}

type ceremonyResult struct {
	Success bool `json:"success"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"err,omitempty"`
}

// NewClient creates a new passkey client.
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}

	baseURL := cfg.BaseURL
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "https://" + baseURL
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	tlsConfig, err := buildTLSConfig(cfg)
	if err != nil {
		return nil, err
	}

	return &Client{
		config: cfg,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				TLSClientConfig: tlsConfig,
			},
		},
		baseURL: baseURL,
	}, nil
}

// buildTLSConfig assembles the client TLS configuration.
func buildTLSConfig(cfg *Config) (*tls.Config, error) {
	if !cfg.TLSInsecureSkipVerify && cfg.TLSCAFile == "" && cfg.TLSCertFile == "" {
		return nil, nil
	}

	tlsConfig := &tls.Config{
		InsecureSkipVerify: cfg.TLSInsecureSkipVerify, // #nosec G402 - operator opt-in
		MinVersion:         tls.VersionTLS12,
	}

	if cfg.TLSCAFile != "" {
		caCert, err := os.ReadFile(cfg.TLSCAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate: %w", err)
		}
		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA certificate")
		}
		tlsConfig.RootCAs = caCertPool
	}

	if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.TLSCertFile, cfg.TLSKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// Health checks the health of the server.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: health check returned %d", ErrServerError, resp.StatusCode)
	}

	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return nil, fmt.Errorf("failed to decode health response: %w", err)
	}
	return &health, nil
}

// RegisterStart begins a registration ceremony. The returned options are
// forwarded verbatim to the browser.
func (c *Client) RegisterStart(ctx context.Context, username, displayName string) (*RegisterStartResponse, error) {
	var out RegisterStartResponse
	err := c.postJSON(ctx, "/register/start", registerStartRequest{
		Username:    username,
		DisplayName: displayName,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// RegisterFinish completes a registration ceremony with the browser's
// attestation response.
func (c *Client) RegisterFinish(ctx context.Context, userID string, response json.RawMessage) error {
	var out ceremonyResult
	if err := c.postJSON(ctx, "/register/finish", registerFinishRequest{
		UserID:   userID,
		Response: response,
	}, &out); err != nil {
		return err
	}
	if !out.Success {
		return resultError(&out, http.StatusOK)
	}
	return nil
}

// AuthStart begins an authentication ceremony. The returned options are
// forwarded verbatim to the browser.
func (c *Client) AuthStart(ctx context.Context, userID string) (*AuthStartResponse, error) {
	var out AuthStartResponse
	if err := c.postJSON(ctx, "/auth/start", authStartRequest{UserID: userID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AuthFinish completes an authentication ceremony with the browser's
// assertion response.
func (c *Client) AuthFinish(ctx context.Context, userID string, response json.RawMessage) error {
	var out ceremonyResult
	if err := c.postJSON(ctx, "/auth/finish", authFinishRequest{
		UserID:   userID,
		Response: response,
	}, &out); err != nil {
		return err
	}
	if !out.Success {
		return resultError(&out, http.StatusOK)
	}
	return nil
}

// postJSON issues a POST with a JSON body and decodes the response. Ceremony
// rejections are surfaced as *CeremonyFailure.
func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		// Ceremony rejections arrive as a failed result body
		var result ceremonyResult
		if err := json.Unmarshal(data, &result); err == nil && result.Error != nil {
			return resultError(&result, resp.StatusCode)
		}

		// Validation errors arrive as a generic error body
		var apiErr struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Error != "" {
			return &CeremonyFailure{
				StatusCode: resp.StatusCode,
				Code:       "invalid_request",
				Message:    apiErr.Error,
			}
		}

		return fmt.Errorf("%w: unexpected status %d", ErrServerError, resp.StatusCode)
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// setHeaders applies configured extra headers to a request.
func (c *Client) setHeaders(req *http.Request) {
	for k, v := range c.config.Headers {
		req.Header.Set(k, v)
	}
}

// resultError converts a failed ceremony result into a *CeremonyFailure.
func resultError(result *ceremonyResult, statusCode int) error {
	failure := &CeremonyFailure{StatusCode: statusCode}
	if result.Error != nil {
		failure.Code = result.Error.Code
		failure.Message = result.Error.Message
	}
	return failure
}
