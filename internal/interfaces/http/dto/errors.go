package dto

import (
	"net/http"

	"github.com/erp/icledger/internal/domain/shared"
)

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	// ErrCodeUnknown is used when the error type is unknown
	ErrCodeUnknown = "ERR_UNKNOWN"
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
)

// Validation error codes
const (
	ErrCodeValidation = "ERR_VALIDATION"
)

// Resource error codes
const (
	ErrCodeNotFound = "ERR_NOT_FOUND"
	ErrCodeConflict = "ERR_CONFLICT"
)

// Input error codes
const (
	// ErrCodeBadRequest is used for malformed requests and rejected input
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeMissingGroup is used when the X-Group-ID header is absent or malformed
	ErrCodeMissingGroup = "ERR_MISSING_GROUP"
	// ErrCodeRequestTooLarge is used when the body exceeds the configured limit
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
)

// Ledger error codes
const (
	ErrCodeInvalidAllocation   = "ERR_INVALID_ALLOCATION"
	ErrCodeNotConfigured       = "ERR_NOT_CONFIGURED"
	ErrCodeNotAllocated        = "ERR_NOT_ALLOCATED"
	ErrCodeWhtRequired         = "ERR_WHT_REQUIRED"
	ErrCodeWhtMismatch         = "ERR_WHT_MISMATCH"
	ErrCodePeriodLocked        = "ERR_PERIOD_LOCKED"
	ErrCodeReportingOnly       = "ERR_REPORTING_ONLY_ACCOUNT"
	ErrCodeCreditLimitExceeded = "ERR_CREDIT_LIMIT_EXCEEDED"
	ErrCodeNothingToRemit      = "ERR_NOTHING_TO_REMIT"
	ErrCodeCloseInProgress     = "ERR_CLOSE_IN_PROGRESS"
)

// Queue error codes
const (
	// ErrCodeQueueUnavailable is used when background jobs are not configured
	ErrCodeQueueUnavailable = "ERR_QUEUE_UNAVAILABLE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeValidation:      http.StatusBadRequest,
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeMissingGroup:    http.StatusBadRequest,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,

	ErrCodeNotFound: http.StatusNotFound,
	ErrCodeConflict: http.StatusConflict,

	// State conflicts -> 409
	ErrCodePeriodLocked:    http.StatusConflict,
	ErrCodeCloseInProgress: http.StatusConflict,

	// Business rule errors -> 422 Unprocessable Entity
	ErrCodeInvalidAllocation:   http.StatusUnprocessableEntity,
	ErrCodeNotConfigured:       http.StatusUnprocessableEntity,
	ErrCodeNotAllocated:        http.StatusUnprocessableEntity,
	ErrCodeWhtRequired:         http.StatusUnprocessableEntity,
	ErrCodeWhtMismatch:         http.StatusUnprocessableEntity,
	ErrCodeReportingOnly:       http.StatusUnprocessableEntity,
	ErrCodeCreditLimitExceeded: http.StatusUnprocessableEntity,
	ErrCodeNothingToRemit:      http.StatusUnprocessableEntity,

	ErrCodeQueueUnavailable: http.StatusServiceUnavailable,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps domain error codes to API error codes
var DomainErrorCodeMapping = map[string]string{
	shared.CodeBadRequest:          ErrCodeBadRequest,
	shared.CodeNotFound:            ErrCodeNotFound,
	shared.CodeInvalidAllocation:   ErrCodeInvalidAllocation,
	shared.CodeNotConfigured:       ErrCodeNotConfigured,
	shared.CodeNotAllocated:        ErrCodeNotAllocated,
	shared.CodeWhtRequired:         ErrCodeWhtRequired,
	shared.CodeWhtMismatch:         ErrCodeWhtMismatch,
	shared.CodePeriodLocked:        ErrCodePeriodLocked,
	shared.CodeReportingOnly:       ErrCodeReportingOnly,
	shared.CodeCreditLimitExceeded: ErrCodeCreditLimitExceeded,
	shared.CodeNothingToRemit:      ErrCodeNothingToRemit,
	shared.CodeCloseInProgress:     ErrCodeCloseInProgress,
}

// NormalizeErrorCode converts a domain error code to the API format.
// Codes already in the API format, or unknown, are returned as-is.
func NormalizeErrorCode(code string) string {
	if apiCode, ok := DomainErrorCodeMapping[code]; ok {
		return apiCode
	}
	return code
}
