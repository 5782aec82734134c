package handler

import (
	"github.com/erp/icledger/internal/application/finance"
	"github.com/erp/icledger/internal/domain/intercompany"
	"github.com/erp/icledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceHandler handles invoice generation and lifecycle endpoints
type InvoiceHandler struct {
	BaseHandler
	invoices *finance.InvoiceGenerator
}

// NewInvoiceHandler creates a new InvoiceHandler
func NewInvoiceHandler(invoices *finance.InvoiceGenerator) *InvoiceHandler {
	return &InvoiceHandler{invoices: invoices}
}

// GenerateInvoicesRequest is the body of POST /invoices/generate. Without
// issue_date the invoices are dated on the last day of the period; without
// due_days the configured default applies.
type GenerateInvoicesRequest struct {
	HoldcoID  string `json:"holdco_id" binding:"required,uuid"`
	Period    string `json:"period" binding:"required,period"`
	IssueDate string `json:"issue_date" binding:"omitempty,datetime=2006-01-02"`
	DueDays   *int   `json:"due_days" binding:"omitempty,gte=0,lte=365"`
}

// ExternalLineRequest is one line of a third-party sale
type ExternalLineRequest struct {
	Description string          `json:"description" binding:"required,max=500"`
	Net         decimal.Decimal `json:"net"`
	VatRate     decimal.Decimal `json:"vat_rate"`
}

// ExternalInvoiceRequest is the body of POST /invoices/external
type ExternalInvoiceRequest struct {
	SellerID   string                `json:"seller_id" binding:"required,uuid"`
	CustomerID string                `json:"customer_id" binding:"required,uuid"`
	Period     string                `json:"period" binding:"required,period"`
	IssueDate  string                `json:"issue_date" binding:"omitempty,datetime=2006-01-02"`
	DueDays    *int                  `json:"due_days" binding:"omitempty,gte=0,lte=365"`
	Lines      []ExternalLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// VoidInvoiceRequest is the body of POST /invoices/:id/void
type VoidInvoiceRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// ListInvoicesQuery filters GET /invoices
type ListInvoicesQuery struct {
	Period      string   `form:"period" binding:"omitempty,period"`
	CompanyID   string   `form:"company_id" binding:"omitempty,uuid"`
	SellerID    string   `form:"seller_id" binding:"omitempty,uuid"`
	BuyerID     string   `form:"buyer_id" binding:"omitempty,uuid"`
	RelatedID   string   `form:"related_invoice_id" binding:"omitempty,uuid"`
	Status      []string `form:"status" binding:"omitempty,dive,oneof=DRAFT ISSUED PART_PAID PAID VOID"`
	ExcludeVoid bool     `form:"exclude_void"`
}

// RegisterRoutes mounts the invoice endpoints
func (h *InvoiceHandler) RegisterRoutes(rg *gin.RouterGroup) {
	invoices := rg.Group("/invoices")
	invoices.GET("", h.List)
	invoices.POST("/generate", h.Generate)
	invoices.POST("/external", h.CreateExternal)
	invoices.GET("/:id", h.Get)
	invoices.POST("/:id/issue", h.Issue)
	invoices.POST("/:id/void", h.Void)
}

// Generate raises one intercompany invoice per recipient for the period
func (h *InvoiceHandler) Generate(c *gin.Context) {
	groupID, ok := h.groupOrAbort(c)
	if !ok {
		return
	}
	var req GenerateInvoicesRequest
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

	generated, err := h.invoices.Generate(c.Request.Context(), finance.GenerateInput{
		GroupID:   groupID,
		HoldcoID:  uuid.MustParse(req.HoldcoID),
		Period:    period,
		IssueDate: issueDate,
		DueDays:   req.DueDays,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessList(c, generated, len(generated))
}

// CreateExternal records a sale to a customer outside the group
func (h *InvoiceHandler) CreateExternal(c *gin.Context) {
	groupID, ok := h.groupOrAbort(c)
	if !ok {
		return
	}
	var req ExternalInvoiceRequest
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

	lines := make([]finance.ExternalLineInput, len(req.Lines))
	for i, l := range req.Lines {
		lines[i] = finance.ExternalLineInput{Description: l.Description, Net: l.Net, VatRate: l.VatRate}
	}
	inv, err := h.invoices.CreateExternalInvoice(c.Request.Context(), finance.ExternalInvoiceInput{
		GroupID:    groupID,
		SellerID:   uuid.MustParse(req.SellerID),
		CustomerID: uuid.MustParse(req.CustomerID),
		Period:     period,
		IssueDate:  issueDate,
		DueDays:    req.DueDays,
		Lines:      lines,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, dto.ToInvoiceResponse(inv))
}

// Issue moves a draft invoice to ISSUED and posts it
func (h *InvoiceHandler) Issue(c *gin.Context) {
	groupID, ok := h.groupOrAbort(c)
	if !ok {
		return
	}
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	inv, err := h.invoices.Issue(c.Request.Context(), groupID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToInvoiceResponse(inv))
}

// Void cancels an unpaid invoice and reverses its postings
func (h *InvoiceHandler) Void(c *gin.Context) {
	groupID, ok := h.groupOrAbort(c)
	if !ok {
		return
	}
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req VoidInvoiceRequest
	if !h.bindJSON(c, &req) {
		return
	}
	inv, err := h.invoices.Void(c.Request.Context(), groupID, id, req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToInvoiceResponse(inv))
}

// Get returns one invoice with its lines
func (h *InvoiceHandler) Get(c *gin.Context) {
	groupID, ok := h.groupOrAbort(c)
	if !ok {
		return
	}
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	inv, err := h.invoices.GetInvoice(c.Request.Context(), groupID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToInvoiceResponse(inv))
}

// List returns invoices matching the query filters
func (h *InvoiceHandler) List(c *gin.Context) {
	groupID, ok := h.groupOrAbort(c)
	if !ok {
		return
	}
	var q ListInvoicesQuery
	if !h.bindQuery(c, &q) {
		return
	}

	filter := intercompany.InvoiceFilter{ExcludeVoid: q.ExcludeVoid}
	if q.Period != "" {
		period, ok := h.parsePeriod(c, "period", q.Period)
		if !ok {
			return
		}
		filter.Period = &period
	}
	if filter.CompanyID, ok = h.parseOptionalUUID(c, "company_id", q.CompanyID); !ok {
		return
	}
	if filter.SellerID, ok = h.parseOptionalUUID(c, "seller_id", q.SellerID); !ok {
		return
	}
	if filter.BuyerID, ok = h.parseOptionalUUID(c, "buyer_id", q.BuyerID); !ok {
		return
	}
	if filter.RelatedInvoiceID, ok = h.parseOptionalUUID(c, "related_invoice_id", q.RelatedID); !ok {
		return
	}
	for _, s := range q.Status {
		filter.Statuses = append(filter.Statuses, intercompany.InvoiceStatus(s))
	}

	list, err := h.invoices.ListInvoices(c.Request.Context(), groupID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessList(c, dto.ToInvoiceResponses(list), len(list))
}
