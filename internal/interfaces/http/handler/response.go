package handler

import (
	"github.com/erp/icledger/internal/application/finance"
	"github.com/erp/icledger/internal/interfaces/http/dto"
)

// APIResponse is the typed form of dto.Response, used by clients and tests
// to decode a payload without going through map[string]any.
type APIResponse[T any] struct {
	Success bool           `json:"success"`
	Data    T              `json:"data,omitempty"`
	Error   *dto.ErrorInfo `json:"error,omitempty"`
	Meta    *dto.Meta      `json:"meta,omitempty"`
}

// RepostResponse reports how many invoices were reposted
type RepostResponse struct {
	Period string `json:"period"`
	Posted int    `json:"posted"`
}

// LockStatusResponse reports whether a company period is locked
type LockStatusResponse struct {
	CompanyID string `json:"company_id"`
	Period    string `json:"period"`
	Locked    bool   `json:"locked"`
}

// EnqueuedResponse describes a task accepted by the worker queue
type EnqueuedResponse struct {
	TaskID string `json:"task_id"`
	Queue  string `json:"queue"`
	Type   string `json:"type"`
}

// MonthCloseResponse is the outcome of a synchronous close
type MonthCloseResponse struct {
	Run      dto.CloseRunResponse       `json:"run"`
	PoolID   string                     `json:"pool_id"`
	Invoices []finance.GeneratedInvoice `json:"invoices"`
}
