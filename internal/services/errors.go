// Package services defines the business logic for interaction moderation,
// review, and dataset reporting. This file centralizes common service-level
// error values so that they can be consistently returned by service methods
// and checked by callers.
//
// These errors are intended for internal use by the service layer; translation
// into user-facing messages or HTTP status codes is performed at the
// handler layer.
package services

import "errors"

var (
	// ErrValidation indicates a structurally invalid request, such as a
	// missing contributor id. The request is rejected before anything is
	// persisted.
	ErrValidation = errors.New("invalid request")

	// ErrEmptyInput is returned when a submitted turn carries no input
	// segment. Instructions and output may be empty, input may not.
	ErrEmptyInput = errors.New("turn input is empty")

	// ErrTooLong is returned when a turn segment exceeds the maximum
	// configured length limit.
	ErrTooLong = errors.New("turn segment too long")

	// ErrInteractionNotFound indicates that the requested interaction does
	// not exist.
	ErrInteractionNotFound = errors.New("interaction not found")

	// ErrContributorNotFound indicates that the referenced contributor is
	// not known to the registry. Contributor lifecycle is owned externally;
	// submissions never register new contributors.
	ErrContributorNotFound = errors.New("contributor not found")

	// ErrInvalidState is returned when an operation is attempted against an
	// interaction that is not in the state the operation requires, e.g.
	// reviewing an already verified record.
	ErrInvalidState = errors.New("interaction is not in a reviewable state")

	// ErrInvalidDecision is returned when a reviewer decision is malformed:
	// unknown action or missing reviewer identity.
	ErrInvalidDecision = errors.New("invalid reviewer decision")

	// ErrRuleSetUnavailable is returned when no rule set has been loaded yet,
	// so no evaluation can take place.
	ErrRuleSetUnavailable = errors.New("no active rule set")

	// ErrStoreUnavailable wraps persistence failures. The request may be
	// retried; completed transitions are never partially visible.
	ErrStoreUnavailable = errors.New("store unavailable")
)
