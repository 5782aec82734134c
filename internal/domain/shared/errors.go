package shared

import "fmt"

// Error codes surfaced to callers of the finance engine.
const (
	CodeBadRequest          = "BAD_REQUEST"
	CodeNotFound            = "NOT_FOUND"
	CodeInvalidAllocation   = "INVALID_ALLOCATION"
	CodeNotConfigured       = "NOT_CONFIGURED"
	CodeNotAllocated        = "NOT_ALLOCATED"
	CodeWhtRequired         = "WHT_REQUIRED"
	CodeWhtMismatch         = "WHT_MISMATCH"
	CodePeriodLocked        = "PERIOD_LOCKED"
	CodeReportingOnly       = "REPORTING_ONLY_ACCOUNT"
	CodeCreditLimitExceeded = "CREDIT_LIMIT_EXCEEDED"
	CodeNothingToRemit      = "NOTHING_TO_REMIT"
	CodeCloseInProgress     = "CLOSE_IN_PROGRESS"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is reports whether target carries the same code, so a sentinel such as
// ErrPeriodLocked matches any PERIOD_LOCKED error regardless of message.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Sentinel errors, one per code
var (
	ErrBadRequest          = NewDomainError(CodeBadRequest, "Bad request")
	ErrNotFound            = NewDomainError(CodeNotFound, "Resource not found")
	ErrInvalidAllocation   = NewDomainError(CodeInvalidAllocation, "Allocation weights are invalid")
	ErrNotConfigured       = NewDomainError(CodeNotConfigured, "Required configuration is missing")
	ErrNotAllocated        = NewDomainError(CodeNotAllocated, "Cost pool has not been allocated")
	ErrWhtRequired         = NewDomainError(CodeWhtRequired, "Withholding tax amount is required")
	ErrWhtMismatch         = NewDomainError(CodeWhtMismatch, "Withholding tax amount does not match")
	ErrPeriodLocked        = NewDomainError(CodePeriodLocked, "Period is locked")
	ErrReportingOnly       = NewDomainError(CodeReportingOnly, "Account code is reporting-only")
	ErrCreditLimitExceeded = NewDomainError(CodeCreditLimitExceeded, "Credit limit exceeded")
	ErrNothingToRemit      = NewDomainError(CodeNothingToRemit, "Nothing to remit")
	ErrCloseInProgress     = NewDomainError(CodeCloseInProgress, "Month close already in progress")
)

// BadRequestf builds a BAD_REQUEST error with a formatted message.
func BadRequestf(format string, args ...any) *DomainError {
	return NewDomainError(CodeBadRequest, fmt.Sprintf(format, args...))
}

// NotFoundf builds a NOT_FOUND error with a formatted message.
func NotFoundf(format string, args ...any) *DomainError {
	return NewDomainError(CodeNotFound, fmt.Sprintf(format, args...))
}
