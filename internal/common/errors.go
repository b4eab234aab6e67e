// Package common defines shared constants and sentinel errors used across
// Nocturne components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository / store level errors.
	ErrNotFound = errors.New("not found")

	// ErrMissingRemoteID is returned when an update or delete reaches the
	// backend path for an entry whose create was never confirmed. Given the
	// queue ordering guarantee this indicates a broken invariant, not a
	// normal runtime condition.
	ErrMissingRemoteID = errors.New("missing remote identifier")

	// Remote call errors.
	ErrRemoteOperation = errors.New("remote operation failed")
	ErrUnauthorized    = errors.New("unauthorized")

	// Token lifecycle errors.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
