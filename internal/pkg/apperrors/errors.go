package apperrors

import "errors"

// Workflow error taxonomy. Every error returned by the services matches one of
// these with errors.Is.
var (
	// Resource errors
	ErrNotFound = errors.New("resource not found")
	ErrConflict = errors.New("conflict")

	// Workflow rule errors
	ErrLockedAssignment = errors.New("assignment is locked until the offer letter is approved")
	ErrNotEligible      = errors.New("student is not eligible")
	ErrAlreadyAwarded   = errors.New("credits already awarded")

	// Collaborator errors
	ErrUpstreamUnavailable = errors.New("upstream service unavailable")

	// Authorization errors
	ErrPermissionDenied = errors.New("permission denied")

	// Validation errors
	ErrValidationFailed = errors.New("validation failed")
)

// Specialised errors. Each unwraps to one of the taxonomy sentinels above, so
// callers can match either the precise or the general kind.
var (
	ErrStudentNotFound      = NewCustomError(ErrNotFound, "student not found").WithCode("STUDENT_NOT_FOUND")
	ErrSubmissionNotFound   = NewCustomError(ErrNotFound, "submission not found").WithCode("SUBMISSION_NOT_FOUND")
	ErrApprovalNotFound     = NewCustomError(ErrNotFound, "approval record not found").WithCode("APPROVAL_NOT_FOUND")
	ErrEventNotFound        = NewCustomError(ErrNotFound, "placement event not found").WithCode("EVENT_NOT_FOUND")
	ErrRequirementNotFound  = NewCustomError(ErrNotFound, "placement requirement not found").WithCode("REQUIREMENT_NOT_FOUND")
	ErrApplicationNotFound  = NewCustomError(ErrNotFound, "application not found").WithCode("APPLICATION_NOT_FOUND")
	ErrNotificationNotFound = NewCustomError(ErrNotFound, "notification not found").WithCode("NOTIFICATION_NOT_FOUND")

	ErrAlreadyApplied     = NewCustomError(ErrConflict, "student already applied to this event").WithCode("ALREADY_APPLIED")
	ErrStudentExists      = NewCustomError(ErrConflict, "student with this uid or email already exists").WithCode("STUDENT_EXISTS")
	ErrInvalidTransition  = NewCustomError(ErrConflict, "status transition not allowed").WithCode("INVALID_TRANSITION")
	ErrSubmissionFinal    = NewCustomError(ErrConflict, "approved submissions cannot be withdrawn").WithCode("SUBMISSION_FINAL")
	ErrCreditsOutstanding = NewCustomError(ErrConflict, "credits are awarded for this completion letter; revoke them first").WithCode("CREDITS_OUTSTANDING")
	ErrCreditsNotAwarded  = NewCustomError(ErrConflict, "credits have not been awarded").WithCode("CREDITS_NOT_AWARDED")
	ErrNotAccepted        = NewCustomError(ErrConflict, "application has not been accepted").WithCode("NOT_ACCEPTED")

	ErrAlreadyPlaced = NewCustomError(ErrNotEligible, "student already holds an accepted application").WithCode("ALREADY_PLACED")
	ErrEventClosed   = NewCustomError(ErrNotEligible, "placement event is closed").WithCode("EVENT_CLOSED")
	ErrClassExcluded = NewCustomError(ErrNotEligible, "student's class is not eligible for this event").WithCode("CLASS_EXCLUDED")

	ErrUnknownAssignment = NewCustomError(ErrValidationFailed, "unknown assignment type").WithCode("UNKNOWN_ASSIGNMENT")
	ErrInvalidDecision   = NewCustomError(ErrValidationFailed, "decision must be approved or rejected").WithCode("INVALID_DECISION")

	ErrReadOnly = NewCustomError(ErrUpstreamUnavailable, "record store is running in read-only demo mode").WithCode("READ_ONLY")
)

// NewNotFoundError creates a not-found error with a message
func NewNotFoundError(message string) error {
	return &CustomError{
		Err:     ErrNotFound,
		Message: message,
	}
}

// NewConflictError creates a conflict error with a message
func NewConflictError(message string) error {
	return &CustomError{
		Err:     ErrConflict,
		Message: message,
	}
}

// NewForbiddenError creates a permission error with a message
func NewForbiddenError(message string) error {
	return &CustomError{
		Err:     ErrPermissionDenied,
		Message: message,
	}
}

// NewValidationError creates a validation error with a message
func NewValidationError(message string) error {
	return &CustomError{
		Err:     ErrValidationFailed,
		Message: message,
	}
}

// NewUpstreamError wraps a collaborator failure as ErrUpstreamUnavailable.
func NewUpstreamError(cause error, message string) error {
	return &CustomError{
		Err:     ErrUpstreamUnavailable,
		Message: message,
		Cause:   cause,
	}
}

// CustomError represents application-specific errors with additional context
type CustomError struct {
	Err     error
	Message string
	Code    string
	// Cause is the collaborator error behind an upstream failure, kept for logs.
	Cause error
}

// Error implements error interface
func (e *CustomError) Error() string {
	if e.Message != "" {
		if e.Cause != nil {
			return e.Message + ": " + e.Cause.Error()
		}
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "unknown error"
}

// Unwrap implements errors.Unwrap interface
func (e *CustomError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Err, e.Cause}
	}
	return []error{e.Err}
}

// NewCustomError creates a CustomError with underlying error
func NewCustomError(err error, message string) *CustomError {
	return &CustomError{
		Err:     err,
		Message: message,
	}
}

// WithCode adds an error code
func (e *CustomError) WithCode(code string) *CustomError {
	e.Code = code
	return e
}

// CodeOf returns the code of the first CustomError in err's chain, if any.
func CodeOf(err error) string {
	var ce *CustomError
	if errors.As(err, &ce) && ce.Code != "" {
		return ce.Code
	}
	return ""
}
