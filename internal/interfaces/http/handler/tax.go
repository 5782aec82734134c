package handler

import (
	"github.com/erp/icledger/internal/application/finance"
	"github.com/erp/icledger/internal/domain/intercompany"
	"github.com/erp/icledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// TaxHandler handles VAT, withholding and reporting endpoints
type TaxHandler struct {
	BaseHandler
	tax *finance.TaxEngine
}

// NewTaxHandler creates a new TaxHandler
func NewTaxHandler(tax *finance.TaxEngine) *TaxHandler {
	return &TaxHandler{tax: tax}
}

// PeriodQuery selects a period
type PeriodQuery struct {
	Period string `form:"period" binding:"required,period"`
}

// FileVatReturnRequest is the body of POST /companies/:company_id/vat-return/file
type FileVatReturnRequest struct {
	Period     string `json:"period" binding:"required,period"`
	PaymentRef string `json:"payment_ref" binding:"max=100"`
}

// RemitWhtRequest is the body of POST /companies/:company_id/wht-remittances
type RemitWhtRequest struct {
	Period     string `json:"period" binding:"required,period"`
	TaxType    string `json:"tax_type" binding:"omitempty,oneof=SERVICES ROYALTIES RENT"`
	Date       string `json:"date" binding:"omitempty,datetime=2006-01-02"`
	ReceiptRef string `json:"receipt_ref" binding:"required,max=100"`
}

// ConsolidatedPLQuery selects the period and whether intercompany lines are kept
type ConsolidatedPLQuery struct {
	Period              string `form:"period" binding:"required,period"`
	IncludeIntercompany bool   `form:"include_intercompany"`
}

// RegisterRoutes mounts the tax endpoints
func (h *TaxHandler) RegisterRoutes(rg *gin.RouterGroup) {
	company := rg.Group("/companies/:company_id")
	company.GET("/vat-return", h.ComputeVatReturn)
	company.POST("/vat-return/file", h.FileVatReturn)
	company.GET("/wht-schedule", h.WhtSchedule)
	company.POST("/wht-remittances", h.MarkRemitted)
	company.GET("/tax-impact", h.TaxImpact)
	rg.GET("/reports/consolidated-pl", h.ConsolidatedPL)
}

// ComputeVatReturn recomputes a company's VAT position without filing it
func (h *TaxHandler) ComputeVatReturn(c *gin.Context) {
	groupID, ok := h.groupOrAbort(c)
	if !ok {
		return
	}
	companyID, ok := h.parseUUIDParam(c, "company_id")
	if !ok {
		return
	}
	var q PeriodQuery
	if !h.bindQuery(c, &q) {
		return
	}
	period, ok := h.parsePeriod(c, "period", q.Period)
	if !ok {
		return
	}

	ret, err := h.tax.ComputeVatReturn(c.Request.Context(), groupID, companyID, period)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToVatReturnResponse(ret))
}

// FileVatReturn freezes the VAT return for the period
func (h *TaxHandler) FileVatReturn(c *gin.Context) {
	groupID, ok := h.groupOrAbort(c)
	if !ok {
		return
	}
	companyID, ok := h.parseUUIDParam(c, "company_id")
	if !ok {
		return
	}
	var req FileVatReturnRequest
	if !h.bindJSON(c, &req) {
		return
	}
	period, ok := h.parsePeriod(c, "period", req.Period)
	if !ok {
		return
	}

	ret, err := h.tax.FileVatReturn(c.Request.Context(), groupID, companyID, period, req.PaymentRef)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToVatReturnResponse(ret))
}

// WhtSchedule lists tax withheld by the issuer in a period, grouped by tax type
func (h *TaxHandler) WhtSchedule(c *gin.Context) {
	groupID, ok := h.groupOrAbort(c)
	if !ok {
		return
	}
	issuerID, ok := h.parseUUIDParam(c, "company_id")
	if !ok {
		return
	}
	var q PeriodQuery
	if !h.bindQuery(c, &q) {
		return
	}
	period, ok := h.parsePeriod(c, "period", q.Period)
	if !ok {
		return
	}

	schedule, err := h.tax.WhtSchedule(c.Request.Context(), groupID, issuerID, period)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, schedule)
}

// MarkRemitted records remittance of withheld tax to the authority
func (h *TaxHandler) MarkRemitted(c *gin.Context) {
	groupID, ok := h.groupOrAbort(c)
	if !ok {
		return
	}
	issuerID, ok := h.parseUUIDParam(c, "company_id")
	if !ok {
		return
	}
	var req RemitWhtRequest
	if !h.bindJSON(c, &req) {
		return
	}
	period, ok := h.parsePeriod(c, "period", req.Period)
	if !ok {
		return
	}
	date, ok := h.parseOptionalDate(c, "date", req.Date)
	if !ok {
		return
	}

	in := finance.MarkRemittedInput{
		GroupID:    groupID,
		IssuerID:   issuerID,
		Period:     period,
		Date:       date,
		ReceiptRef: req.ReceiptRef,
	}
	if req.TaxType != "" {
		t := intercompany.TaxType(req.TaxType)
		in.TaxType = &t
	}
	notes, err := h.tax.MarkRemitted(c.Request.Context(), in)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessList(c, dto.ToWhtCreditNoteResponses(notes), len(notes))
}

// TaxImpact summarizes a company's intercompany income, expense and tax effect
func (h *TaxHandler) TaxImpact(c *gin.Context) {
	groupID, ok := h.groupOrAbort(c)
	if !ok {
		return
	}
	companyID, ok := h.parseUUIDParam(c, "company_id")
	if !ok {
		return
	}
	var q PeriodQuery
	if !h.bindQuery(c, &q) {
		return
	}
	period, ok := h.parsePeriod(c, "period", q.Period)
	if !ok {
		return
	}

	impact, err := h.tax.TaxImpact(c.Request.Context(), groupID, companyID, period)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, impact)
}

// ConsolidatedPL returns the group P&L, eliminating intercompany lines unless asked not to
func (h *TaxHandler) ConsolidatedPL(c *gin.Context) {
	groupID, ok := h.groupOrAbort(c)
	if !ok {
		return
	}
	var q ConsolidatedPLQuery
	if !h.bindQuery(c, &q) {
		return
	}
	period, ok := h.parsePeriod(c, "period", q.Period)
	if !ok {
		return
	}

	pl, err := h.tax.ConsolidatedPL(c.Request.Context(), groupID, period, q.IncludeIntercompany)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, pl)
}
