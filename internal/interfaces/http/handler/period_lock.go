package handler

import (
	"github.com/erp/icledger/internal/application/finance"
	"github.com/erp/icledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// PeriodLockHandler handles period lock endpoints
type PeriodLockHandler struct {
	BaseHandler
	locks *finance.PeriodLockService
}

// NewPeriodLockHandler creates a new PeriodLockHandler
func NewPeriodLockHandler(locks *finance.PeriodLockService) *PeriodLockHandler {
	return &PeriodLockHandler{locks: locks}
}

// PeriodLockRequest is the body of lock and unlock
type PeriodLockRequest struct {
	CompanyID string `json:"company_id" binding:"required,uuid"`
	Period    string `json:"period" binding:"required,period"`
	Reason    string `json:"reason" binding:"max=500"`
}

// LockStatusQuery selects the period for GET /periods/lock
type LockStatusQuery struct {
	CompanyID string `form:"company_id" binding:"required,uuid"`
	Period    string `form:"period" binding:"required,period"`
}

// RegisterRoutes mounts the period lock endpoints
func (h *PeriodLockHandler) RegisterRoutes(rg *gin.RouterGroup) {
	periods := rg.Group("/periods")
	periods.GET("/lock", h.Status)
	periods.POST("/lock", h.Lock)
	periods.POST("/unlock", h.Unlock)
}

// Lock closes a company period to further postings
func (h *PeriodLockHandler) Lock(c *gin.Context) {
	groupID, ok := h.groupOrAbort(c)
	if !ok {
		return
	}
	var req PeriodLockRequest
	if !h.bindJSON(c, &req) {
		return
	}
	period, ok := h.parsePeriod(c, "period", req.Period)
	if !ok {
		return
	}

	lock, err := h.locks.Lock(c.Request.Context(), groupID, uuid.MustParse(req.CompanyID), period, getActor(c), req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToPeriodLockResponse(lock))
}

// Unlock reopens a company period
func (h *PeriodLockHandler) Unlock(c *gin.Context) {
	groupID, ok := h.groupOrAbort(c)
	if !ok {
		return
	}
	var req PeriodLockRequest
	if !h.bindJSON(c, &req) {
		return
	}
	period, ok := h.parsePeriod(c, "period", req.Period)
	if !ok {
		return
	}

	lock, err := h.locks.Unlock(c.Request.Context(), groupID, uuid.MustParse(req.CompanyID), period, getActor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToPeriodLockResponse(lock))
}

// Status reports whether a company period is locked
func (h *PeriodLockHandler) Status(c *gin.Context) {
	groupID, ok := h.groupOrAbort(c)
	if !ok {
		return
	}
	var q LockStatusQuery
	if !h.bindQuery(c, &q) {
		return
	}
	period, ok := h.parsePeriod(c, "period", q.Period)
	if !ok {
		return
	}

	locked, err := h.locks.IsLocked(c.Request.Context(), groupID, uuid.MustParse(q.CompanyID), period)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, LockStatusResponse{CompanyID: q.CompanyID, Period: period.String(), Locked: locked})
}
