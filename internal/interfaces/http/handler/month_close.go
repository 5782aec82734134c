package handler

import (
	"github.com/erp/icledger/internal/application/finance"
	"github.com/erp/icledger/internal/infrastructure/scheduler"
	"github.com/erp/icledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// MonthCloseHandler handles the month-end close endpoints
type MonthCloseHandler struct {
	BaseHandler
	closer *finance.MonthCloseOrchestrator
	queue  TaskQueue
}

// NewMonthCloseHandler creates a new MonthCloseHandler. Without a queue
// POST /month-close/async answers 503.
func NewMonthCloseHandler(closer *finance.MonthCloseOrchestrator, queue TaskQueue) *MonthCloseHandler {
	return &MonthCloseHandler{closer: closer, queue: queue}
}

// MonthCloseRequest is the body of both close endpoints. issue_date and
// due_days default as for POST /invoices/generate.
type MonthCloseRequest struct {
	HoldcoID  string            `json:"holdco_id" binding:"required,uuid"`
	Period    string            `json:"period" binding:"required,period"`
	Lines     []CostLineRequest `json:"lines" binding:"required,min=1,dive"`
	Weights   []WeightRequest   `json:"weights" binding:"required,min=1,dive"`
	IssueDate string            `json:"issue_date" binding:"omitempty,datetime=2006-01-02"`
	DueDays   *int              `json:"due_days" binding:"omitempty,gte=0,lte=365"`
}

// CloseRunQuery selects the run for GET /month-close
type CloseRunQuery struct {
	HoldcoID string `form:"holdco_id" binding:"required,uuid"`
	Period   string `form:"period" binding:"required,period"`
}

// RegisterRoutes mounts the month close endpoints
func (h *MonthCloseHandler) RegisterRoutes(rg *gin.RouterGroup) {
	closeGroup := rg.Group("/month-close")
	closeGroup.POST("", h.Run)
	closeGroup.POST("/async", h.Enqueue)
	closeGroup.GET("", h.Latest)
}

// Run executes the close inline: pool, allocation, invoices, then the holdco lock
func (h *MonthCloseHandler) Run(c *gin.Context) {
	groupID, ok := h.groupOrAbort(c)
	if !ok {
		return
	}
	var req MonthCloseRequest
	if !h.bindJSON(c, &req) {
		return
	}
	period, ok := h.parsePeriod(c, "period", req.Period)
	if !ok {
		return
	}
	issueDate, ok := h.parseOptionalDate(c, "issue_date", req.IssueDate)
	if !ok {
		return
	}

	result, err := h.closer.RunMonthClose(c.Request.Context(), finance.MonthCloseInput{
		GroupID:   groupID,
		HoldcoID:  uuid.MustParse(req.HoldcoID),
		Period:    period,
		Lines:     toLineInputs(req.Lines),
		Weights:   toWeightInputs(req.Weights),
		IssueDate: issueDate,
		DueDays:   req.DueDays,
		Actor:     getActor(c),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, MonthCloseResponse{
		Run:      dto.ToCloseRunResponse(result.Run),
		PoolID:   result.PoolID.String(),
		Invoices: result.Invoices,
	})
}

// Enqueue hands the close to the background worker. A close already queued
// for the same holdco and period answers 409.
func (h *MonthCloseHandler) Enqueue(c *gin.Context) {
	groupID, ok := h.groupOrAbort(c)
	if !ok {
		return
	}
	if h.queue == nil {
		h.ErrorWithCode(c, dto.ErrCodeQueueUnavailable, "Background worker is not configured")
		return
	}
	var req MonthCloseRequest
	if !h.bindJSON(c, &req) {
		return
	}

	payload := scheduler.MonthClosePayload{
		GroupID:   groupID,
		HoldcoID:  uuid.MustParse(req.HoldcoID),
		Period:    req.Period,
		IssueDate: req.IssueDate,
		DueDays:   req.DueDays,
		Actor:     getActor(c),
	}
	for _, l := range req.Lines {
		payload.Lines = append(payload.Lines, scheduler.CostLine{Category: l.Category, Amount: l.Amount})
	}
	for _, w := range req.Weights {
		payload.Weights = append(payload.Weights, scheduler.RecipientWeight{RecipientID: uuid.MustParse(w.RecipientID), Weight: w.Weight})
	}

	info, err := h.queue.EnqueueMonthClose(c.Request.Context(), payload)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Accepted(c, toEnqueuedResponse(info))
}

// Latest returns the most recent close run for a holdco and period
func (h *MonthCloseHandler) Latest(c *gin.Context) {
	groupID, ok := h.groupOrAbort(c)
	if !ok {
		return
	}
	var q CloseRunQuery
	if !h.bindQuery(c, &q) {
		return
	}
	period, ok := h.parsePeriod(c, "period", q.Period)
	if !ok {
		return
	}

	run, err := h.closer.LatestRun(c.Request.Context(), groupID, uuid.MustParse(q.HoldcoID), period)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToCloseRunResponse(run))
}
