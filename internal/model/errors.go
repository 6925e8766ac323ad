package model

import "errors"

var (
	// Session decode failures. Distinct values for logging; handlers
	// collapse all of them into one generic client message.
	ErrSessionExpired      = errors.New("session expired")
	ErrBadSignature        = errors.New("session signature invalid")
	ErrFingerprintMismatch = errors.New("session fingerprint mismatch")
	ErrMalformedSession    = errors.New("session payload malformed")

	// Authentication and access errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account temporarily locked")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrForbidden          = errors.New("forbidden")
	ErrRateLimited        = errors.New("rate limited")

	// Privilege state machine errors
	ErrNotElevationEligible = errors.New("role is not elevation eligible")
	ErrNotAssumeEligible    = errors.New("role may not be assumed by this identity")
	ErrAssumptionActive     = errors.New("another role assumption is still active")
	ErrNoActiveElevation    = errors.New("no active elevation")
	ErrNoActiveAssumption   = errors.New("no active role assumption")

	// Store errors
	ErrUserNotFound     = errors.New("user not found")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrInvalidInput     = errors.New("invalid input")
)
