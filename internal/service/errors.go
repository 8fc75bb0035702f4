package service

import "errors"

// Common service errors. Authorization outcomes are never errors: a denied
// read returns nil data and a denied write affects nothing.
var (
	// ErrNotFound is returned when a resource is not found
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict is returned when there's a conflict (e.g., duplicate)
	ErrConflict = errors.New("resource conflict")

	// ErrUnauthorized is returned when an operation needs an authenticated user
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvariantViolation is returned when a write would break a data invariant
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrUserExists is returned when the caller already has a profile
	ErrUserExists = errors.New("user already exists")

	// ErrInvalidRole is returned when an invalid role type is provided
	ErrInvalidRole = errors.New("invalid role type")

	// ErrShortCodeExhausted is returned when no unique short code could be generated
	ErrShortCodeExhausted = errors.New("could not generate a unique short code")
)
