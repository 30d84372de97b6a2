package errors

import stderrors "errors"

// Error is the domain error type with a code and an optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Wrapped underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// Kind returns the handling category of the error.
func (e *Error) Kind() Kind {
	return e.Code.Kind()
}

// New creates a simple domain error with a code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Sentinels for errors.Is comparisons. Matching is by code, so wrapped or
// re-messaged errors with the same code compare equal.
var (
	ErrAlreadyActive     = New(CodeAlreadyActive, "session already active")
	ErrNoActiveSession   = New(CodeNoActiveSession, "no active session")
	ErrOperationInFlight = New(CodeOperationInFlight, "another session operation is in flight")
	ErrNotOwner          = New(CodeNotOwner, "users may only start or stop their own session")
	ErrUserNotFound      = New(CodeUserNotFound, "user not found")
	ErrStoreUnavailable  = New(CodeStoreUnavailable, "store unavailable")
	ErrFeedGap           = New(CodeFeedGap, "change feed dropped")
	ErrFeedClosed        = New(CodeFeedClosed, "change feed closed")
	ErrMalformedRule     = New(CodeMalformedRule, "malformed achievement rule")
)

// CodeOf extracts the code of the first *Error in err's chain.
func CodeOf(err error) Code {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// KindOf extracts the handling category of err.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return CodeOf(err).Kind()
}

// IsValidation reports whether err is a local validation failure.
func IsValidation(err error) bool {
	return KindOf(err) == KindValidation
}

// IsPersistence reports whether err is a storage failure.
func IsPersistence(err error) bool {
	return KindOf(err) == KindPersistence
}
