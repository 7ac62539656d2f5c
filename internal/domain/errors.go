// Package domain provides shared domain-level sentinel errors and their
// taxonomy codes.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates a concurrent modification conflict.
var ErrConflict = errors.New("conflict: resource was modified by another request")

// ErrValidation indicates a missing or malformed input field.
var ErrValidation = errors.New("validation error")

// ErrUnknownAgentKind indicates a dispatch to an agent kind with no registered agent.
var ErrUnknownAgentKind = errors.New("unknown agent kind")

// ErrInvalidTransition indicates a state change that the entity's lifecycle forbids.
var ErrInvalidTransition = errors.New("invalid transition")

// ErrStorage indicates the backing store failed or is unreachable.
var ErrStorage = errors.New("storage error")

// ErrUnauthorized indicates missing or invalid credentials.
var ErrUnauthorized = errors.New("unauthorized")

// Taxonomy codes carried in structured error results.
const (
	CodeNotFound          = "not_found"
	CodeConflict          = "conflict"
	CodeValidation        = "validation_error"
	CodeUnknownAgentKind  = "unknown_agent_kind"
	CodeInvalidTransition = "invalid_transition"
	CodeStorage           = "storage_error"
	CodeUnauthorized      = "unauthorized"
	CodeInternal          = "internal"
)

// Code returns the taxonomy tag for err. Errors outside the taxonomy map to CodeInternal.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnknownAgentKind):
		return CodeUnknownAgentKind
	case errors.Is(err, ErrInvalidTransition):
		return CodeInvalidTransition
	case errors.Is(err, ErrValidation):
		return CodeValidation
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrConflict):
		return CodeConflict
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized
	case errors.Is(err, ErrStorage):
		return CodeStorage
	default:
		return CodeInternal
	}
}
