package service

import "errors"

// Common service errors
var (
	// ErrPermissionDenied is returned when a user doesn't have permission for an action
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotFound is returned when a resource is not found
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized is returned when user is not authenticated
	ErrUnauthorized = errors.New("unauthorized")

	// ErrUserNotFound is returned when a user is not found
	ErrUserNotFound = errors.New("user not found")

	// ErrDocumentNotFound is returned when a document is not found or access-denied
	// lookups must be indistinguishable from missing documents
	ErrDocumentNotFound = errors.New("document not found")

	// ErrStageNotFound is returned when a workflow stage is not found
	ErrStageNotFound = errors.New("workflow stage not found")

	// ErrVersionNotFound is returned when a document version is not found
	ErrVersionNotFound = errors.New("document version not found")

	// ErrStageNotActionable is returned when the stage is not in a state that
	// accepts the requested action (terminal, or not yet reached)
	ErrStageNotActionable = errors.New("stage is not actionable")

	// ErrSignedUploadRequired is returned when completing a stage that still
	// waits for its signed version upload
	ErrSignedUploadRequired = errors.New("stage requires a signed version upload before completion")

	// ErrAlreadySigned is returned when a user signs the same stage twice
	ErrAlreadySigned = errors.New("stage already signed by this user")

	// ErrRejectionReasonRequired is returned when rejecting a stage without a reason
	ErrRejectionReasonRequired = errors.New("rejection requires a reason")

	// ErrDocumentTerminal is returned when mutating a completed or rejected document
	ErrDocumentTerminal = errors.New("document workflow already finished")

	// ErrFileTooLarge is returned when an upload exceeds the configured size limit
	ErrFileTooLarge = errors.New("file exceeds maximum allowed size")

	// ErrRecordsClientNotAvailable is returned when the legacy records lookup
	// is requested but no client is configured
	ErrRecordsClientNotAvailable = errors.New("legacy records client not available")
)
