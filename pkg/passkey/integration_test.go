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
	"encoding/json"
	"sync"
	"testing"

	"github.com/descope/virtualwebauthn"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRelyingParty(cfg *Config) virtualwebauthn.RelyingParty {
	return virtualwebauthn.RelyingParty{
		Name:   cfg.RPDisplayName,
		ID:     cfg.RPID,
		Origin: cfg.RPOrigin,
	}
}

// enroll runs a full registration ceremony against svc with a virtual
// authenticator and returns the enrolled identity.
func enroll(t *testing.T, svc *Service, rp virtualwebauthn.RelyingParty,
	auth *virtualwebauthn.Authenticator, cred *virtualwebauthn.Credential,
	username, displayName string) UserID {
	t.Helper()
	ctx := context.Background()

	user, options, err := svc.BeginRegistration(ctx, username, displayName)
	require.NoError(t, err)

	optionsJSON, err := json.Marshal(options.Response)
	require.NoError(t, err)

	parsedOptions, err := virtualwebauthn.ParseAttestationOptions(string(optionsJSON))
	require.NoError(t, err)

	attestation := virtualwebauthn.CreateAttestationResponse(rp, *auth, *cred, *parsedOptions)
	response, err := parseAttestationResponse(attestation)
	require.NoError(t, err)

	require.NoError(t, svc.FinishRegistration(ctx, user, response))

	return user
}

// assertionFor runs BeginAuthentication and produces a signed assertion for
// the issued challenge.
func assertionFor(t *testing.T, svc *Service, rp virtualwebauthn.RelyingParty,
	auth *virtualwebauthn.Authenticator, cred *virtualwebauthn.Credential,
	user UserID) *protocol.ParsedCredentialAssertionData {
	t.Helper()
	ctx := context.Background()

	options, err := svc.BeginAuthentication(ctx, user)
	require.NoError(t, err)
	require.NotEmpty(t, options.Response.Challenge)

	optionsJSON, err := json.Marshal(options.Response)
	require.NoError(t, err)

	parsedOptions, err := virtualwebauthn.ParseAssertionOptions(string(optionsJSON))
	require.NoError(t, err)

	assertion := virtualwebauthn.CreateAssertionResponse(rp, *auth, *cred, *parsedOptions)
	response, err := parseAssertionResponse(assertion)
	require.NoError(t, err)

	return response
}

func TestIntegration_FullCeremonyFlow(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	rp := testRelyingParty(svc.Config())

	auth := virtualwebauthn.NewAuthenticator()
	cred := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)

	// Registration
	user := enroll(t, svc, rp, &auth, &cred, "alice@example.com", "Alice A")

	enrolled, err := svc.IsEnrolled(ctx, user)
	require.NoError(t, err)
	assert.True(t, enrolled)

	rec, err := svc.Credential(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, user, rec.UserID)
	assert.NotEmpty(t, rec.PublicKey)

	// Authentication
	cred.Counter++
	response := assertionFor(t, svc, rp, &auth, &cred, user)
	require.NoError(t, svc.FinishAuthentication(ctx, user, response))

	rec, err = svc.Credential(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), rec.Authenticator.SignCount)
	assert.False(t, rec.LastUsedAt.IsZero())
}

func TestIntegration_FinishRegistrationIsSingleAttempt(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	rp := testRelyingParty(svc.Config())

	auth := virtualwebauthn.NewAuthenticator()
	cred := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)

	user, options, err := svc.BeginRegistration(ctx, "bob@example.com", "Bob")
	require.NoError(t, err)

	optionsJSON, _ := json.Marshal(options.Response)
	parsedOptions, err := virtualwebauthn.ParseAttestationOptions(string(optionsJSON))
	require.NoError(t, err)
	attestation := virtualwebauthn.CreateAttestationResponse(rp, auth, cred, *parsedOptions)
	response, err := parseAttestationResponse(attestation)
	require.NoError(t, err)

	require.NoError(t, svc.FinishRegistration(ctx, user, response))

	// The first finish consumed the pending state
	err = svc.FinishRegistration(ctx, user, response)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoPendingRegistration)
}

func TestIntegration_FailedRegistrationConsumesPendingState(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	// Challenge issued by a foreign relying party fails verification here
	foreign := virtualwebauthn.RelyingParty{
		Name: "Evil", ID: "evil.test", Origin: "https://evil.test",
	}
	auth := virtualwebauthn.NewAuthenticator()
	cred := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)

	user, options, err := svc.BeginRegistration(ctx, "carol@example.com", "Carol")
	require.NoError(t, err)

	optionsJSON, _ := json.Marshal(options.Response)
	parsedOptions, err := virtualwebauthn.ParseAttestationOptions(string(optionsJSON))
	require.NoError(t, err)
	attestation := virtualwebauthn.CreateAttestationResponse(foreign, auth, cred, *parsedOptions)
	response, err := parseAttestationResponse(attestation)
	require.NoError(t, err)

	err = svc.FinishRegistration(ctx, user, response)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrVerificationFailed)

	// No credential was enrolled
	enrolled, err := svc.IsEnrolled(ctx, user)
	require.NoError(t, err)
	assert.False(t, enrolled)

	// The failed attempt consumed the ceremony; no replay with a fixed-up
	// response is possible.
	err = svc.FinishRegistration(ctx, user, response)
	assert.ErrorIs(t, err, ErrNoPendingRegistration)
}

func TestIntegration_FailedAuthenticationForcesFreshBegin(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	rp := testRelyingParty(svc.Config())

	auth := virtualwebauthn.NewAuthenticator()
	cred := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	user := enroll(t, svc, rp, &auth, &cred, "dave@example.com", "Dave")

	// An assertion whose counter did not advance is rejected as a clone
	// signal (counter stays at the registration value).
	response := assertionFor(t, svc, rp, &auth, &cred, user)
	err := svc.FinishAuthentication(ctx, user, response)
	require.Error(t, err)
	assert.True(t, IsClonedAuthenticator(err))

	// The failure consumed the pending state: no challenge replay
	err = svc.FinishAuthentication(ctx, user, response)
	assert.ErrorIs(t, err, ErrNoPendingAuthentication)

	// A fresh ceremony with an advanced counter succeeds
	cred.Counter++
	response = assertionFor(t, svc, rp, &auth, &cred, user)
	require.NoError(t, svc.FinishAuthentication(ctx, user, response))
}

func TestIntegration_CounterMonotonicity(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	rp := testRelyingParty(svc.Config())

	auth := virtualwebauthn.NewAuthenticator()
	cred := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	user := enroll(t, svc, rp, &auth, &cred, "erin@example.com", "Erin")

	// Three successful logins advance the stored counter each time
	for i := uint32(1); i <= 3; i++ {
		cred.Counter++
		response := assertionFor(t, svc, rp, &auth, &cred, user)
		require.NoError(t, svc.FinishAuthentication(ctx, user, response))

		rec, err := svc.Credential(ctx, user)
		require.NoError(t, err)
		assert.Equal(t, i, rec.Authenticator.SignCount)
	}

	// A rolled-back counter (cloned authenticator) fails the ceremony and
	// leaves the stored counter untouched.
	cred.Counter = 1
	response := assertionFor(t, svc, rp, &auth, &cred, user)
	err := svc.FinishAuthentication(ctx, user, response)
	require.Error(t, err)
	assert.True(t, IsClonedAuthenticator(err))

	rec, err := svc.Credential(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), rec.Authenticator.SignCount)
}

func TestIntegration_NewBeginAuthenticationInvalidatesPrior(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	rp := testRelyingParty(svc.Config())

	auth := virtualwebauthn.NewAuthenticator()
	cred := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	user := enroll(t, svc, rp, &auth, &cred, "frank@example.com", "Frank")

	// Sign the first challenge, then start a second ceremony before
	// finishing. Last writer wins: the first assertion no longer matches.
	cred.Counter++
	staleResponse := assertionFor(t, svc, rp, &auth, &cred, user)

	_, err := svc.BeginAuthentication(ctx, user)
	require.NoError(t, err)

	err = svc.FinishAuthentication(ctx, user, staleResponse)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrVerificationFailed)
}

func TestIntegration_ConcurrentFinishRegistration(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	rp := testRelyingParty(svc.Config())

	auth := virtualwebauthn.NewAuthenticator()
	cred := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)

	user, options, err := svc.BeginRegistration(ctx, "grace@example.com", "Grace")
	require.NoError(t, err)

	optionsJSON, _ := json.Marshal(options.Response)
	parsedOptions, err := virtualwebauthn.ParseAttestationOptions(string(optionsJSON))
	require.NoError(t, err)
	attestation := virtualwebauthn.CreateAttestationResponse(rp, auth, cred, *parsedOptions)
	response, err := parseAttestationResponse(attestation)
	require.NoError(t, err)

	const n = 16
	var wg sync.WaitGroup
	results := make(chan error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- svc.FinishRegistration(ctx, user, response)
		}()
	}
	wg.Wait()
	close(results)

	successes := 0
	for err := range results {
		if err == nil {
			successes++
		} else {
			assert.ErrorIs(t, err, ErrNoPendingRegistration)
		}
	}
	assert.Equal(t, 1, successes, "exactly one concurrent finish must enroll")

	enrolled, err := svc.IsEnrolled(ctx, user)
	require.NoError(t, err)
	assert.True(t, enrolled)
}

func TestIntegration_UnknownUserLeavesNoState(t *testing.T) {
	ctx := context.Background()

	store := NewMemoryCeremonyStore()
	svc, err := NewService(ServiceParams{
		Config:          validTestConfig(),
		CredentialStore: NewMemoryCredentialStore(),
		CeremonyStore:   store,
	})
	require.NoError(t, err)

	unknown := NewUserID()
	_, err = svc.BeginAuthentication(ctx, unknown)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotEnrolled)

	// No pending authentication state was created for the failed begin
	assert.Equal(t, 0, store.Count())
}

// parseAttestationResponse parses a virtual authenticator attestation
// response into the format expected by go-webauthn.
func parseAttestationResponse(attestation string) (*protocol.ParsedCredentialCreationData, error) {
	var ccr protocol.CredentialCreationResponse
	if err := json.Unmarshal([]byte(attestation), &ccr); err != nil {
		return nil, err
	}
	return ccr.Parse()
}

// parseAssertionResponse parses a virtual authenticator assertion response
// into the format expected by go-webauthn.
func parseAssertionResponse(assertion string) (*protocol.ParsedCredentialAssertionData, error) {
	var car protocol.CredentialAssertionResponse
	if err := json.Unmarshal([]byte(assertion), &car); err != nil {
		return nil, err
	}
	return car.Parse()
}
