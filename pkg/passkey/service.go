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
	"fmt"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/jeremyhahn/go-passkey/pkg/logging"
)

// Service orchestrates the two-phase WebAuthn ceremonies. It combines the
// cryptographic engine with the ceremony and credential stores and drives
// each ceremony from its begin call to enrollment, authentication, or
// rejection. Ceremonies are single-attempt: pending state is consumed by the
// matching finish call whether verification succeeds or fails, so a client
// can never retry a challenge.
type Service struct {
	webauthn   *webauthn.WebAuthn
	config     *Config
	creds      CredentialStore
	ceremonies CeremonyStore
	log        *logging.Logger
	configured bool
}

// ServiceParams contains dependencies for creating a passkey service.
type ServiceParams struct {
	// Config is the Relying Party configuration (required).
	Config *Config

	// CredentialStore is the enrolled credential persistence layer (required).
	CredentialStore CredentialStore

	// CeremonyStore tracks in-flight ceremony state (required).
	CeremonyStore CeremonyStore
}

// NewService creates a new passkey service with the provided dependencies.
func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if params.CredentialStore == nil {
		return nil, fmt.Errorf("credential store is required")
	}
	if params.CeremonyStore == nil {
		return nil, fmt.Errorf("ceremony store is required")
	}

	// Set defaults and validate
	params.Config.SetDefaults()
	if err := params.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	wa, err := webauthn.New(params.Config.ToWebAuthnConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create webauthn instance: %w", err)
	}

	return &Service{
		webauthn:   wa,
		config:     params.Config,
		creds:      params.CredentialStore,
		ceremonies: params.CeremonyStore,
		log:        logging.NewLogger(params.Config.Debug),
		configured: true,
	}, nil
}

// BeginRegistration starts a registration ceremony. It mints a fresh user
// identity, produces the creation options to send to the client, and retains
// the pending registration state keyed by the new identity. No credential
// record exists until the matching FinishRegistration succeeds.
func (s *Service) BeginRegistration(ctx context.Context, username, displayName string) (UserID, *protocol.CredentialCreation, error) {
	if !s.configured {
		return UserID{}, nil, ErrNotConfigured
	}
	if username == "" {
		return UserID{}, nil, NewError("begin registration", fmt.Errorf("%w: username is required", ErrInvalidRequest))
	}

	user := NewUserID()
	ceremony := &ceremonyUser{
		id:          user,
		name:        username,
		displayName: displayName,
	}

	options, session, err := s.webauthn.BeginRegistration(ceremony)
	if err != nil {
		return UserID{}, nil, WrapError("begin registration", err)
	}

	pending := &PendingRegistration{
		Session:     session,
		Username:    username,
		DisplayName: displayName,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.ceremonies.PutRegistration(ctx, user, pending); err != nil {
		return UserID{}, nil, WrapError("store pending registration", err)
	}

	s.log.Debug("registration ceremony opened", "user", user.String(), "username", username)

	return user, options, nil
}

// FinishRegistration completes a registration ceremony. The pending state is
// consumed before verification; a second finish for the same identity fails
// with ErrNoPendingRegistration regardless of the first call's outcome. On
// verification success the resulting credential record is enrolled for the
// user.
func (s *Service) FinishRegistration(ctx context.Context, user UserID, response *protocol.ParsedCredentialCreationData) error {
	if !s.configured {
		return ErrNotConfigured
	}
	if response == nil {
		return NewError("finish registration", fmt.Errorf("%w: missing attestation response", ErrInvalidRequest))
	}

	pending, err := s.ceremonies.TakeRegistration(ctx, user)
	if err != nil {
		return WrapError("take pending registration", err)
	}

	ceremony := &ceremonyUser{
		id:          user,
		name:        pending.Username,
		displayName: pending.DisplayName,
	}

	credential, err := s.webauthn.CreateCredential(ceremony, *pending.Session, response)
	if err != nil {
		return NewError("verify attestation", fmt.Errorf("%w: %v", ErrVerificationFailed, err))
	}

	if err := s.creds.Put(ctx, user, FromWebAuthnCredential(user, credential)); err != nil {
		return WrapError("store credential", err)
	}

	s.log.Debug("credential enrolled", "user", user.String())

	return nil
}

// BeginAuthentication starts an authentication ceremony for an enrolled
// user. The challenge is scoped to the user's single enrolled credential.
// Any prior in-flight authentication for the user is replaced, invalidating
// its challenge. An identity without an enrolled credential fails with
// ErrNotEnrolled; the error does not distinguish an unknown identity from a
// known one that never completed enrollment.
func (s *Service) BeginAuthentication(ctx context.Context, user UserID) (*protocol.CredentialAssertion, error) {
	if !s.configured {
		return nil, ErrNotConfigured
	}

	cred, err := s.creds.Get(ctx, user)
	if err != nil {
		return nil, WrapError("lookup credential", err)
	}

	ceremony := &ceremonyUser{
		id:          user,
		credentials: []webauthn.Credential{cred.ToWebAuthn()},
	}

	options, session, err := s.webauthn.BeginLogin(ceremony)
	if err != nil {
		return nil, WrapError("begin authentication", err)
	}

	pending := &PendingAuthentication{
		Session:   session,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.ceremonies.PutAuthentication(ctx, user, pending); err != nil {
		return nil, WrapError("store pending authentication", err)
	}

	return options, nil
}

// FinishAuthentication completes an authentication ceremony. The pending
// state is consumed before verification, so a failed assertion forces a
// fresh BeginAuthentication rather than permitting challenge replay. On
// success the stored signature counter advances to the engine-reported
// value; a counter that does not strictly increase fails the ceremony with
// ErrClonedAuthenticator and leaves the stored record unchanged.
func (s *Service) FinishAuthentication(ctx context.Context, user UserID, response *protocol.ParsedCredentialAssertionData) error {
	if !s.configured {
		return ErrNotConfigured
	}
	if response == nil {
		return NewError("finish authentication", fmt.Errorf("%w: missing assertion response", ErrInvalidRequest))
	}

	pending, err := s.ceremonies.TakeAuthentication(ctx, user)
	if err != nil {
		return WrapError("take pending authentication", err)
	}

	stored, err := s.creds.Get(ctx, user)
	if err != nil {
		return WrapError("lookup credential", err)
	}

	ceremony := &ceremonyUser{
		id:          user,
		credentials: []webauthn.Credential{stored.ToWebAuthn()},
	}

	validated, err := s.webauthn.ValidateLogin(ceremony, *pending.Session, response)
	if err != nil {
		return NewError("verify assertion", fmt.Errorf("%w: %v", ErrVerificationFailed, err))
	}

	if validated.Authenticator.CloneWarning ||
		validated.Authenticator.SignCount <= stored.Authenticator.SignCount {
		s.log.Warn("authenticator clone suspected", "user", user.String(),
			"reported", validated.Authenticator.SignCount,
			"stored", stored.Authenticator.SignCount)
		return NewError("verify assertion", ErrClonedAuthenticator)
	}

	s.log.Debug("authentication verified", "user", user.String(),
		"sign_count", validated.Authenticator.SignCount)

	if err := s.creds.UpdateCounter(ctx, user, validated.Authenticator.SignCount); err != nil {
		return WrapError("update counter", err)
	}

	return nil
}

// IsEnrolled reports whether the user has completed registration.
func (s *Service) IsEnrolled(ctx context.Context, user UserID) (bool, error) {
	if !s.configured {
		return false, ErrNotConfigured
	}

	if _, err := s.creds.Get(ctx, user); err != nil {
		if IsNotEnrolled(err) {
			return false, nil
		}
		return false, WrapError("lookup credential", err)
	}
	return true, nil
}

// Credential retrieves the enrolled credential record for a user.
func (s *Service) Credential(ctx context.Context, user UserID) (*CredentialRecord, error) {
	if !s.configured {
		return nil, ErrNotConfigured
	}

	return s.creds.Get(ctx, user)
}

// Config returns the service configuration.
func (s *Service) Config() *Config {
	return s.config
}
