package handler

import (
	"github.com/erp/icledger/internal/application/finance"
	"github.com/erp/icledger/internal/domain/intercompany"
	"github.com/erp/icledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentHandler handles settlement and credit note endpoints
type PaymentHandler struct {
	BaseHandler
	payments *finance.PaymentReconciler
	credits  *finance.CreditNoteIssuer
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(payments *finance.PaymentReconciler, credits *finance.CreditNoteIssuer) *PaymentHandler {
	return &PaymentHandler{payments: payments, credits: credits}
}

// RecordPaymentRequest is the body of POST /invoices/:id/payments.
// WhtWithheld is required whenever the invoice carries withholding.
type RecordPaymentRequest struct {
	Date        string           `json:"date" binding:"required,datetime=2006-01-02"`
	AmountPaid  *decimal.Decimal `json:"amount_paid" binding:"required"`
	WhtWithheld *decimal.Decimal `json:"wht_withheld"`
	Reference   string           `json:"reference" binding:"max=100"`
}

// CreditNoteRequest is the body of POST /invoices/:id/credit-notes.
// Omitting line_credits reverses every line in full.
type CreditNoteRequest struct {
	IssueDate   string                     `json:"issue_date" binding:"omitempty,datetime=2006-01-02"`
	Reason      string                     `json:"reason" binding:"required,max=500"`
	LineCredits map[string]decimal.Decimal `json:"line_credits"`
}

// RegisterRoutes mounts the payment endpoints
func (h *PaymentHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/invoices/:id/payments", h.Record)
	rg.GET("/invoices/:id/payments", h.List)
	rg.POST("/invoices/:id/credit-notes", h.CreateCreditNote)
}

// Record applies a payment to an invoice, raising WHT credit notes for any tax withheld
func (h *PaymentHandler) Record(c *gin.Context) {
	groupID, ok := h.groupOrAbort(c)
	if !ok {
		return
	}
	invoiceID, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req RecordPaymentRequest
	if !h.bindJSON(c, &req) {
		return
	}
	date, ok := h.parseOptionalDate(c, "date", req.Date)
	if !ok {
		return
	}

	result, err := h.payments.RecordPayment(c.Request.Context(), finance.RecordPaymentInput{
		GroupID:     groupID,
		InvoiceID:   invoiceID,
		Date:        date,
		AmountPaid:  *req.AmountPaid,
		WhtWithheld: req.WhtWithheld,
		Reference:   req.Reference,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, dto.ToPaymentResultResponse(result.Payment, result.Invoice, result.Settled, result.CreditNotes))
}

// List returns the payments recorded against an invoice
func (h *PaymentHandler) List(c *gin.Context) {
	groupID, ok := h.groupOrAbort(c)
	if !ok {
		return
	}
	invoiceID, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	list, err := h.payments.ListPayments(c.Request.Context(), groupID, invoiceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessList(c, dto.ToPaymentResponses(list), len(list))
}

// CreateCreditNote issues a full or partial reversal of an invoice
func (h *PaymentHandler) CreateCreditNote(c *gin.Context) {
	groupID, ok := h.groupOrAbort(c)
	if !ok {
		return
	}
	invoiceID, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req CreditNoteRequest
	if !h.bindJSON(c, &req) {
		return
	}
	issueDate, ok := h.parseOptionalDate(c, "issue_date", req.IssueDate)
	if !ok {
		return
	}

	note := intercompany.CreditNoteRequest{IssueDate: issueDate, Reason: req.Reason}
	if req.LineCredits != nil {
		note.LineCredits = make(map[uuid.UUID]decimal.Decimal, len(req.LineCredits))
		for k, v := range req.LineCredits {
			lineID, err := uuid.Parse(k)
			if err != nil {
				h.ValidationError(c, "line_credits", "Keys must be invoice line UUIDs")
				return
			}
			note.LineCredits[lineID] = v
		}
	}

	inv, err := h.credits.CreateCreditNote(c.Request.Context(), groupID, invoiceID, note)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, dto.ToInvoiceResponse(inv))
}
