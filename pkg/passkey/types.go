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
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"
)

// UserID is the opaque identity the Relying Party assigns at registration
// start. A fresh, collision-resistant value is minted for every registration
// ceremony and never reused; the client echoes it back unchanged in all
// subsequent calls.
type UserID = uuid.UUID

// NewUserID mints a fresh user identity.
func NewUserID() UserID {
	return uuid.New()
}

// CredentialRecord is the durable enrolled public-key credential for a user.
// Exactly one record exists per user identity once enrollment succeeds.
// It is created only by FinishRegistration and mutated only by
// FinishAuthentication (counter update).
type CredentialRecord struct {
	// ID is the credential identifier assigned by the authenticator.
	ID []byte `json:"id"`

	// UserID is the identity this credential belongs to.
	UserID UserID `json:"user_id"`

	// PublicKey is the credential's public key in COSE format.
	PublicKey []byte `json:"public_key"`

	// AttestationType indicates the type of attestation used.
	AttestationType string `json:"attestation_type"`

	// Transport lists the transports supported by the authenticator.
	Transport []protocol.AuthenticatorTransport `json:"transport,omitempty"`

	// Flags contains authenticator flags.
	Flags CredentialFlags `json:"flags"`

	// Authenticator contains authenticator-specific data.
	Authenticator AuthenticatorData `json:"authenticator"`

	// CreatedAt is when the credential was enrolled.
	CreatedAt time.Time `json:"created_at"`

	// LastUsedAt is when the credential was last used for authentication.
	LastUsedAt time.Time `json:"last_used_at,omitempty"`
}

// CredentialFlags contains authenticator capability flags.
type CredentialFlags struct {
	// UserPresent indicates the user was present during the operation.
	UserPresent bool `json:"user_present"`

	// UserVerified indicates the user was verified (e.g., biometric, PIN).
	UserVerified bool `json:"user_verified"`

	// BackupEligible indicates the credential can be backed up.
	BackupEligible bool `json:"backup_eligible"`

	// BackupState indicates the credential is currently backed up.
	BackupState bool `json:"backup_state"`
}

// AuthenticatorData contains authenticator-specific information.
type AuthenticatorData struct {
	// AAGUID is the authenticator's unique identifier.
	AAGUID []byte `json:"aaguid"`

	// SignCount is the signature counter for clone detection.
	SignCount uint32 `json:"sign_count"`

	// CloneWarning indicates a potential cloned authenticator.
	CloneWarning bool `json:"clone_warning"`
}

// ToWebAuthn converts a CredentialRecord to the go-webauthn Credential type.
func (c *CredentialRecord) ToWebAuthn() webauthn.Credential {
	return webauthn.Credential{
		ID:              c.ID,
		PublicKey:       c.PublicKey,
		AttestationType: c.AttestationType,
		Transport:       c.Transport,
		Flags: webauthn.CredentialFlags{
			UserPresent:    c.Flags.UserPresent,
			UserVerified:   c.Flags.UserVerified,
			BackupEligible: c.Flags.BackupEligible,
			BackupState:    c.Flags.BackupState,
		},
		Authenticator: webauthn.Authenticator{
			AAGUID:       c.Authenticator.AAGUID,
			SignCount:    c.Authenticator.SignCount,
			CloneWarning: c.Authenticator.CloneWarning,
		},
	}
}

// Descriptor returns the credential descriptor offered to the client at
// authentication start.
func (c *CredentialRecord) Descriptor() protocol.CredentialDescriptor {
	return protocol.CredentialDescriptor{
		Type:         protocol.PublicKeyCredentialType,
		CredentialID: c.ID,
		Transport:    c.Transport,
	}
}

// FromWebAuthnCredential creates a CredentialRecord from the go-webauthn type.
func FromWebAuthnCredential(user UserID, wc *webauthn.Credential) *CredentialRecord {
	return &CredentialRecord{
		ID:              wc.ID,
		UserID:          user,
		PublicKey:       wc.PublicKey,
		AttestationType: wc.AttestationType,
		Transport:       wc.Transport,
		Flags: CredentialFlags{
			UserPresent:    wc.Flags.UserPresent,
			UserVerified:   wc.Flags.UserVerified,
			BackupEligible: wc.Flags.BackupEligible,
			BackupState:    wc.Flags.BackupState,
		},
		Authenticator: AuthenticatorData{
			AAGUID:       wc.Authenticator.AAGUID,
			SignCount:    wc.Authenticator.SignCount,
			CloneWarning: wc.Authenticator.CloneWarning,
		},
		CreatedAt: time.Now().UTC(),
	}
}

// PendingRegistration is the opaque server-side state of an in-flight
// registration ceremony: the engine's session data (challenge, user handle,
// verification policy) plus the enrollment attributes echoed back in the
// credential record.
type PendingRegistration struct {
	Session     *webauthn.SessionData `json:"session"`
	Username    string                `json:"username"`
	DisplayName string                `json:"display_name"`
	CreatedAt   time.Time             `json:"created_at"`
}

// PendingAuthentication is the opaque server-side state of an in-flight
// authentication ceremony.
type PendingAuthentication struct {
	Session   *webauthn.SessionData `json:"session"`
	CreatedAt time.Time             `json:"created_at"`
}

// ceremonyUser adapts a user identity to the webauthn.User interface for the
// duration of a single ceremony. The service owns no user model beyond the
// identity and its single credential.
type ceremonyUser struct {
	id          UserID
	name        string
	displayName string
	credentials []webauthn.Credential
}

// WebAuthnID returns the user handle bound into the ceremony.
func (u *ceremonyUser) WebAuthnID() []byte {
	return u.id[:]
}

// WebAuthnName returns the username supplied at registration start.
func (u *ceremonyUser) WebAuthnName() string {
	return u.name
}

// WebAuthnDisplayName returns the display name supplied at registration start.
func (u *ceremonyUser) WebAuthnDisplayName() string {
	if u.displayName == "" {
		return u.name
	}
	return u.displayName
}

// WebAuthnCredentials returns the credentials acceptable for this ceremony.
func (u *ceremonyUser) WebAuthnCredentials() []webauthn.Credential {
	return u.credentials
}
