// Package errors provides the error taxonomy for session, store, feed and
// achievement failures.
package errors

// Code is a machine-readable error code.
type Code string

// Kind groups codes by how callers are expected to react.
type Kind string

const (
	// KindValidation errors are surfaced synchronously and never retried.
	KindValidation Kind = "validation"
	// KindPersistence errors leave local state untouched; retry is the caller's call.
	KindPersistence Kind = "persistence"
	// KindReconciliationGap errors are recovered locally by a full re-fetch.
	KindReconciliationGap Kind = "reconciliation_gap"
	// KindEvaluation errors fail one achievement evaluation pass only.
	KindEvaluation Kind = "evaluation"
	// KindUnknown is returned for errors outside the taxonomy.
	KindUnknown Kind = "unknown"
)

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Session lifecycle errors
	CodeAlreadyActive     Code = "ALREADY_ACTIVE"
	CodeNoActiveSession   Code = "NO_ACTIVE_SESSION"
	CodeOperationInFlight Code = "OPERATION_IN_FLIGHT"
	CodeNotOwner          Code = "NOT_OWNER"

	// User errors
	CodeUserNotFound    Code = "USER_NOT_FOUND"
	CodeUserNameEmpty   Code = "USER_NAME_EMPTY"
	CodeUserNameTaken   Code = "USER_NAME_TAKEN"
	CodeUserNameInvalid Code = "USER_NAME_INVALID"
	CodeUserAmbiguous   Code = "USER_AMBIGUOUS"
	CodeUserUnspecified Code = "USER_UNSPECIFIED"

	// Storage errors
	CodeStoreUnavailable Code = "STORE_UNAVAILABLE"
	CodeWriteRejected    Code = "WRITE_REJECTED"

	// Feed errors
	CodeFeedGap    Code = "FEED_GAP"
	CodeFeedClosed Code = "FEED_CLOSED"

	// Achievement errors
	CodeMalformedRule  Code = "MALFORMED_RULE"
	CodeInvalidCatalog Code = "INVALID_CATALOG"
)

// Kind maps a code to its handling category.
func (c Code) Kind() Kind {
	switch c {
	case CodeAlreadyActive, CodeNoActiveSession, CodeOperationInFlight, CodeNotOwner,
		CodeUserNotFound, CodeUserNameEmpty, CodeUserNameTaken, CodeUserNameInvalid, CodeUserAmbiguous, CodeUserUnspecified:
		return KindValidation
	case CodeStoreUnavailable, CodeWriteRejected:
		return KindPersistence
	case CodeFeedGap, CodeFeedClosed:
		return KindReconciliationGap
	case CodeMalformedRule, CodeInvalidCatalog:
		return KindEvaluation
	default:
		return KindUnknown
	}
}
