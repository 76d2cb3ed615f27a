package domain

import (
	"errors"
	"fmt"
)

// Stable failure kinds surfaced to callers. Handlers map these to HTTP
// statuses and machine-readable codes; services wrap lower-layer errors
// with %w so errors.Is keeps working across layers.
var (
	// ErrValidation is returned for malformed input, before any mutation
	ErrValidation = errors.New("invalid input")

	// ErrEmailExists is returned on signup with an already-registered email
	ErrEmailExists = errors.New("email already registered")

	// ErrUserNotFound is returned when no user matches the given key
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidCredentials covers both unknown email and wrong password,
	// so login responses never reveal whether an email is registered
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrAccountDisabled is returned for DISABLED accounts at login
	ErrAccountDisabled = errors.New("account is disabled")

	// ErrAccountLocked is returned for LOCKED accounts at login
	ErrAccountLocked = errors.New("account is locked")

	// ErrAccountNotActive is returned when an operation requires ACTIVE status
	ErrAccountNotActive = errors.New("account is not active")

	// ErrInvalidToken is returned when access token verification fails
	ErrInvalidToken = errors.New("invalid or expired token")

	// ErrRefreshTokenExpired is returned for a known but expired refresh token
	ErrRefreshTokenExpired = errors.New("refresh token has expired")

	// ErrRefreshTokenRevoked is returned for a known but revoked refresh token
	ErrRefreshTokenRevoked = errors.New("refresh token has been revoked")

	// ErrProofTokenSpent is returned when a proof token is expired or
	// already consumed
	ErrProofTokenSpent = errors.New("token has expired or already been used")

	// ErrUnsupportedProvider is returned for an unknown OAuth2 provider name
	ErrUnsupportedProvider = errors.New("unsupported oauth2 provider")

	// ErrMissingEmail is returned when an OAuth2 provider supplies no email
	ErrMissingEmail = errors.New("email not provided by oauth2 provider")
)

// OAuth2ExchangeError wraps any failure during the OAuth2 token exchange
// into a single caller-facing kind carrying the original cause.
type OAuth2ExchangeError struct {
	Cause error
}

func (e *OAuth2ExchangeError) Error() string {
	return fmt.Sprintf("failed to exchange oauth2 token: %v", e.Cause)
}

func (e *OAuth2ExchangeError) Unwrap() error {
	return e.Cause
}
