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
	"errors"
	"fmt"
)

// Sentinel errors for ceremony operations.
var (
	// ErrInvalidRequest is returned when request input is malformed
	// (empty username, zero user ID, nil response).
	ErrInvalidRequest = errors.New("invalid request")

	// ErrNoPendingRegistration is returned when a registration finish
	// arrives with no matching in-flight ceremony for the user. The
	// ceremony was never started, expired, or was already consumed.
	ErrNoPendingRegistration = errors.New("no pending registration")

	// ErrNoPendingAuthentication is returned when an authentication finish
	// arrives with no matching in-flight ceremony for the user.
	ErrNoPendingAuthentication = errors.New("no pending authentication")

	// ErrCeremonyExpired is returned when pending ceremony state exists
	// but its TTL has elapsed.
	ErrCeremonyExpired = errors.New("ceremony expired")

	// ErrNotEnrolled is returned when authentication is requested for an
	// identity with no enrolled credential. Callers must not distinguish
	// "unknown user" from "known user without a credential".
	ErrNotEnrolled = errors.New("user not enrolled")

	// ErrAlreadyEnrolled is returned when enrollment would overwrite an
	// existing credential record outside the credential store's contract.
	ErrAlreadyEnrolled = errors.New("user already enrolled")

	// ErrVerificationFailed is returned when the authenticator response
	// fails cryptographic verification.
	ErrVerificationFailed = errors.New("verification failed")

	// ErrClonedAuthenticator is returned when the signature counter in an
	// assertion did not advance past the stored value.
	ErrClonedAuthenticator = errors.New("cloned authenticator detected")

	// ErrCounterRegression is returned by the credential store when a
	// counter update is not strictly greater than the stored value.
	ErrCounterRegression = errors.New("signature counter regression")

	// ErrNotConfigured is returned when the service is not properly configured.
	ErrNotConfigured = errors.New("passkey service not configured")
)

// CeremonyError wraps an error with the operation that produced it.
type CeremonyError struct {
	Op  string // Operation that failed
	Err error  // Underlying error
}

// Error returns the error message.
func (e *CeremonyError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *CeremonyError) Unwrap() error {
	return e.Err
}

// Is reports whether the target error matches.
func (e *CeremonyError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewError creates a new CeremonyError with the given operation and error.
func NewError(op string, err error) error {
	return &CeremonyError{
		Op:  op,
		Err: err,
	}
}

// WrapError wraps an error with an operation name if it's not nil.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return NewError(op, err)
}

// IsProtocolError returns true if the error indicates a finish call with no
// matching in-flight ceremony.
func IsProtocolError(err error) bool {
	return errors.Is(err, ErrNoPendingRegistration) ||
		errors.Is(err, ErrNoPendingAuthentication) ||
		errors.Is(err, ErrCeremonyExpired)
}

// IsNotEnrolled returns true if the error indicates an identity without an
// enrolled credential.
func IsNotEnrolled(err error) bool {
	return errors.Is(err, ErrNotEnrolled)
}

// IsVerificationFailed returns true if the error indicates the authenticator
// response failed verification.
func IsVerificationFailed(err error) bool {
	return errors.Is(err, ErrVerificationFailed)
}

// IsClonedAuthenticator returns true if the error indicates a signature
// counter that did not advance.
func IsClonedAuthenticator(err error) bool {
	return errors.Is(err, ErrClonedAuthenticator) ||
		errors.Is(err, ErrCounterRegression)
}
