package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common error codes
const (
	CodeOK                 ErrorCode = "OK"
	CodeUnknown            ErrorCode = "COMMON_000"
	CodeInternal           ErrorCode = "COMMON_001"
	CodeInvalidParam       ErrorCode = "COMMON_002"
	CodeUnauthorized       ErrorCode = "COMMON_003"
	CodeForbidden          ErrorCode = "COMMON_004"
	CodeNotFound           ErrorCode = "COMMON_005"
	CodeConflict           ErrorCode = "COMMON_006"
	CodeRateLimit          ErrorCode = "COMMON_007"
	CodeServiceUnavailable ErrorCode = "COMMON_008"
	CodeTimeout            ErrorCode = "COMMON_009"
	CodeValidation         ErrorCode = "COMMON_010"
	CodeSerialization      ErrorCode = "COMMON_011"
	CodeDatabaseError      ErrorCode = "COMMON_012"
	CodeCacheError         ErrorCode = "COMMON_013"
	CodeExternalService    ErrorCode = "COMMON_014"
	CodeNotImplemented     ErrorCode = "COMMON_015"
)

// Scheduling engine error codes
const (
	// CodeProjectNotFound: the referenced planning project does not exist.
	CodeProjectNotFound ErrorCode = "SCHED_001"

	// CodeDeadlineNotFound: the referenced deadline definition does not exist
	// for the project's size class.
	CodeDeadlineNotFound ErrorCode = "SCHED_002"

	// CodeDependencyCycle: the authored calculation rules form a dependency
	// cycle.  Cycles were never a supported input; the scheduler fails the
	// affected node fast instead of recursing without bound.
	CodeDependencyCycle ErrorCode = "SCHED_003"

	// CodeScheduleLocked: an attempt was made to overwrite a confirmed or
	// manually edited project deadline.
	CodeScheduleLocked ErrorCode = "SCHED_004"
)

// Calendar / date pool error codes
const (
	// CodeInvalidRecurrence: an AutomaticDate definition sets zero or more
	// than one of its mutually exclusive rule fields, or an invalid dd.mm.
	// date string.  Rejected at authoring time.
	CodeInvalidRecurrence ErrorCode = "CAL_001"

	// CodeDateTypeNotFound: the referenced date pool does not exist.
	CodeDateTypeNotFound ErrorCode = "CAL_002"

	// CodeDateTypeExhausted: a date-offset walk ran out of valid days within
	// the bounded year search and gave up.
	CodeDateTypeExhausted ErrorCode = "CAL_003"
)

// Distance validation error codes
const (
	// CodeMinDistanceViolation: a user-supplied date violates a configured
	// minimum distance to an adjacent deadline.  Surfaced at the interactive
	// edit boundary together with a suggested first possible date.
	CodeMinDistanceViolation ErrorCode = "DIST_001"

	// CodeDateTypeMismatch: a user-supplied date is not a valid day in the
	// deadline's date pool.
	CodeDateTypeMismatch ErrorCode = "DIST_002"
)

// HTTPStatus maps an ErrorCode to the HTTP status code emitted by the
// interface layer.  Unknown codes map to 500.
func (c ErrorCode) HTTPStatus() int {
	switch c {
	case CodeOK:
		return http.StatusOK
	case CodeInvalidParam, CodeValidation, CodeInvalidRecurrence,
		CodeMinDistanceViolation, CodeDateTypeMismatch:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden, CodeScheduleLocked:
		return http.StatusForbidden
	case CodeNotFound, CodeProjectNotFound, CodeDeadlineNotFound, CodeDateTypeNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeDependencyCycle:
		return http.StatusConflict
	case CodeRateLimit:
		return http.StatusTooManyRequests
	case CodeServiceUnavailable:
		return http.StatusServiceUnavailable
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeNotImplemented:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// IsClientError reports whether the code denotes a caller mistake (4xx)
// rather than a server-side failure.
func (c ErrorCode) IsClientError() bool {
	s := c.HTTPStatus()
	return s >= 400 && s < 500
}

// Module returns the module prefix of the code ("COMMON", "SCHED", "CAL",
// "DIST"), used as a metric label by the monitoring layer.
func (c ErrorCode) Module() string {
	if i := strings.IndexByte(string(c), '_'); i > 0 {
		return string(c)[:i]
	}
	return string(c)
}
