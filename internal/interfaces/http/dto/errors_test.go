package dto

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/erp/icledger/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{ErrCodeInternal, http.StatusInternalServerError},
		{ErrCodeValidation, http.StatusBadRequest},
		{ErrCodeBadRequest, http.StatusBadRequest},
		{ErrCodeMissingGroup, http.StatusBadRequest},
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodePeriodLocked, http.StatusConflict},
		{ErrCodeCloseInProgress, http.StatusConflict},
		{ErrCodeInvalidAllocation, http.StatusUnprocessableEntity},
		{ErrCodeWhtMismatch, http.StatusUnprocessableEntity},
		{ErrCodeCreditLimitExceeded, http.StatusUnprocessableEntity},
		{ErrCodeNothingToRemit, http.StatusUnprocessableEntity},
		{ErrCodeQueueUnavailable, http.StatusServiceUnavailable},
		{"UNKNOWN_CODE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetHTTPStatus(tt.code))
		})
	}
}

func TestEveryDomainCodeHasAStatus(t *testing.T) {
	domainCodes := []string{
		shared.CodeBadRequest,
		shared.CodeNotFound,
		shared.CodeInvalidAllocation,
		shared.CodeNotConfigured,
		shared.CodeNotAllocated,
		shared.CodeWhtRequired,
		shared.CodeWhtMismatch,
		shared.CodePeriodLocked,
		shared.CodeReportingOnly,
		shared.CodeCreditLimitExceeded,
		shared.CodeNothingToRemit,
		shared.CodeCloseInProgress,
	}
	for _, code := range domainCodes {
		t.Run(code, func(t *testing.T) {
			apiCode := NormalizeErrorCode(code)
			assert.Equal(t, "ERR_"+code, apiCode)
			_, ok := ErrorCodeHTTPStatus[apiCode]
			assert.True(t, ok, "%s has no HTTP status", apiCode)
		})
	}
}

func TestNormalizeErrorCode_PassThrough(t *testing.T) {
	assert.Equal(t, ErrCodeNotFound, NormalizeErrorCode(ErrCodeNotFound))
	assert.Equal(t, "CUSTOM_ERROR", NormalizeErrorCode("CUSTOM_ERROR"))
}

func TestNewErrorResponse(t *testing.T) {
	resp := NewErrorResponse("NOT_FOUND", "Resource not found")

	assert.False(t, resp.Success)
	assert.Nil(t, resp.Data)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
	assert.Equal(t, "Resource not found", resp.Error.Message)
	assert.NotZero(t, resp.Error.Timestamp)
}

func TestNewValidationErrorResponse(t *testing.T) {
	details := []ValidationDetail{
		{Field: "holdco_id", Message: "This field is required"},
		{Field: "period", Message: "Invalid value"},
	}
	resp := NewValidationErrorResponse("Request validation failed", "req-789", details)

	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeValidation, resp.Error.Code)
	assert.Equal(t, "req-789", resp.Error.RequestID)
	require.Len(t, resp.Error.Details, 2)
	assert.Equal(t, "holdco_id", resp.Error.Details[0].Field)
}

func TestErrorResponseJSON(t *testing.T) {
	before := time.Now()
	resp := NewErrorResponseWithRequestID(shared.CodePeriodLocked, "period 2025-03 is locked", "req-test-123")

	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded Response
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.False(t, decoded.Success)
	require.NotNil(t, decoded.Error)
	assert.Equal(t, ErrCodePeriodLocked, decoded.Error.Code)
	assert.Equal(t, "req-test-123", decoded.Error.RequestID)
	assert.False(t, decoded.Error.Timestamp.Before(before.Truncate(time.Second)))
}

func TestNewListResponse(t *testing.T) {
	resp := NewListResponse([]string{"a", "b"}, 2)

	assert.True(t, resp.Success)
	assert.Nil(t, resp.Error)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, 2, resp.Meta.Total)
}
