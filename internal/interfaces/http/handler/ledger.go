package handler

import (
	"github.com/erp/icledger/internal/application/finance"
	"github.com/erp/icledger/internal/infrastructure/scheduler"
	"github.com/erp/icledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// LedgerHandler handles posting and trial balance endpoints
type LedgerHandler struct {
	BaseHandler
	poster *finance.LedgerPoster
	queue  TaskQueue
}

// NewLedgerHandler creates a new LedgerHandler. queue may be nil, in which
// case only synchronous reposts are served.
func NewLedgerHandler(poster *finance.LedgerPoster, queue TaskQueue) *LedgerHandler {
	return &LedgerHandler{poster: poster, queue: queue}
}

// RepostRequest is the body of POST /ledger/repost
type RepostRequest struct {
	Period string `json:"period" binding:"required,period"`
	Async  bool   `json:"async"`
}

// LedgerQuery selects the period for GET /companies/:company_id/ledger
type LedgerQuery struct {
	Period string `form:"period" binding:"required,period"`
}

// RegisterRoutes mounts the ledger endpoints
func (h *LedgerHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/invoices/:id/post", h.PostInvoice)
	rg.POST("/ledger/repost", h.Repost)
	rg.GET("/companies/:company_id/ledger", h.TrialBalance)
}

// PostInvoice (re)writes the ledger entries of one invoice
func (h *LedgerHandler) PostInvoice(c *gin.Context) {
	groupID, ok := h.groupOrAbort(c)
	if !ok {
		return
	}
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	entries, err := h.poster.PostInvoice(c.Request.Context(), groupID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessList(c, dto.ToEntryResponses(entries), len(entries))
}

// Repost rewrites the postings of every non-void invoice in a period.
// With async set the work is queued and 202 is returned.
func (h *LedgerHandler) Repost(c *gin.Context) {
	groupID, ok := h.groupOrAbort(c)
	if !ok {
		return
	}
	var req RepostRequest
	if !h.bindJSON(c, &req) {
		return
	}
	period, ok := h.parsePeriod(c, "period", req.Period)
	if !ok {
		return
	}

	if req.Async {
		if h.queue == nil {
			h.ErrorWithCode(c, dto.ErrCodeQueueUnavailable, "Background worker is not configured")
			return
		}
		info, err := h.queue.EnqueueRepostPeriod(c.Request.Context(), scheduler.RepostPeriodPayload{
			GroupID: groupID,
			Period:  period.String(),
		})
		if err != nil {
			h.HandleError(c, err)
			return
		}
		h.Accepted(c, toEnqueuedResponse(info))
		return
	}

	posted, err := h.poster.PostAllForPeriod(c.Request.Context(), groupID, period)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, RepostResponse{Period: period.String(), Posted: posted})
}

// TrialBalance returns a company's account balances for a period
func (h *LedgerHandler) TrialBalance(c *gin.Context) {
	groupID, ok := h.groupOrAbort(c)
	if !ok {
		return
	}
	companyID, ok := h.parseUUIDParam(c, "company_id")
	if !ok {
		return
	}
	var q LedgerQuery
	if !h.bindQuery(c, &q) {
		return
	}
	period, ok := h.parsePeriod(c, "period", q.Period)
	if !ok {
		return
	}

	tb, err := h.poster.LedgerFor(c.Request.Context(), groupID, companyID, period)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, tb)
}
