package handler

import (
	"github.com/erp/icledger/internal/application/finance"
	"github.com/erp/icledger/internal/domain/intercompany"
	"github.com/erp/icledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AgreementHandler handles intercompany agreement endpoints
type AgreementHandler struct {
	BaseHandler
	agreements *finance.AgreementGovernor
}

// NewAgreementHandler creates a new AgreementHandler
func NewAgreementHandler(agreements *finance.AgreementGovernor) *AgreementHandler {
	return &AgreementHandler{agreements: agreements}
}

// PricingRequest flattens the pricing variants. Rate is the cost-plus
// markup or royalty percentage; Fee is the fixed monthly amount.
type PricingRequest struct {
	Model string          `json:"model" binding:"required,oneof=COST_PLUS FIXED_MONTHLY ROYALTY_PERCENT"`
	Rate  decimal.Decimal `json:"rate"`
	Fee   decimal.Decimal `json:"fee"`
}

// TaxTermsRequest describes VAT or WHT treatment
type TaxTermsRequest struct {
	Applies bool            `json:"applies"`
	Rate    decimal.Decimal `json:"rate"`
	TaxType string          `json:"tax_type" binding:"omitempty,oneof=SERVICES ROYALTIES RENT"`
}

// AgreementRequest is the body of agreement create and update
type AgreementRequest struct {
	ProviderID    string          `json:"provider_id" binding:"required,uuid"`
	RecipientID   string          `json:"recipient_id" binding:"required,uuid"`
	Type          string          `json:"type" binding:"required,oneof=MANAGEMENT IP_LICENSE PRODUCT_SUPPLY LOGISTICS"`
	Pricing       PricingRequest  `json:"pricing"`
	VAT           TaxTermsRequest `json:"vat"`
	WHT           TaxTermsRequest `json:"wht"`
	EffectiveFrom string          `json:"effective_from" binding:"required,datetime=2006-01-02"`
	EffectiveTo   string          `json:"effective_to" binding:"omitempty,datetime=2006-01-02"`
}

// ListAgreementsQuery filters GET /agreements
type ListAgreementsQuery struct {
	ProviderID  string `form:"provider_id" binding:"omitempty,uuid"`
	RecipientID string `form:"recipient_id" binding:"omitempty,uuid"`
	Type        string `form:"type" binding:"omitempty,oneof=MANAGEMENT IP_LICENSE PRODUCT_SUPPLY LOGISTICS"`
}

// RegisterRoutes mounts the agreement endpoints
func (h *AgreementHandler) RegisterRoutes(rg *gin.RouterGroup) {
	agreements := rg.Group("/agreements")
	agreements.POST("", h.Create)
	agreements.GET("", h.List)
	agreements.GET("/:id", h.Get)
	agreements.PUT("/:id", h.Update)
}

// toTerms converts the request into domain terms, answering 400 on failure
func (h *AgreementHandler) toTerms(c *gin.Context, req AgreementRequest) (intercompany.AgreementTerms, bool) {
	pricing, err := intercompany.PricingFromParts(intercompany.PricingModel(req.Pricing.Model), req.Pricing.Rate, req.Pricing.Fee)
	if err != nil {
		h.HandleError(c, err)
		return intercompany.AgreementTerms{}, false
	}
	from, ok := h.parseOptionalDate(c, "effective_from", req.EffectiveFrom)
	if !ok {
		return intercompany.AgreementTerms{}, false
	}
	terms := intercompany.AgreementTerms{
		ProviderID:    uuid.MustParse(req.ProviderID),
		RecipientID:   uuid.MustParse(req.RecipientID),
		Type:          intercompany.AgreementType(req.Type),
		Pricing:       pricing,
		VAT:           intercompany.VatTerms{Applies: req.VAT.Applies, Rate: req.VAT.Rate},
		WHT:           intercompany.WhtTerms{Applies: req.WHT.Applies, Rate: req.WHT.Rate, TaxType: intercompany.TaxType(req.WHT.TaxType)},
		EffectiveFrom: from,
	}
	if req.EffectiveTo != "" {
		to, ok := h.parseOptionalDate(c, "effective_to", req.EffectiveTo)
		if !ok {
			return intercompany.AgreementTerms{}, false
		}
		terms.EffectiveTo = &to
	}
	return terms, true
}

// Create registers a new agreement between two group companies
func (h *AgreementHandler) Create(c *gin.Context) {
	groupID, ok := h.groupOrAbort(c)
	if !ok {
		return
	}
	var req AgreementRequest
	if !h.bindJSON(c, &req) {
		return
	}
	terms, ok := h.toTerms(c, req)
	if !ok {
		return
	}

	agreement, err := h.agreements.CreateAgreement(c.Request.Context(), groupID, terms)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, dto.ToAgreementResponse(agreement))
}

// Update replaces the terms of an existing agreement
func (h *AgreementHandler) Update(c *gin.Context) {
	groupID, ok := h.groupOrAbort(c)
	if !ok {
		return
	}
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req AgreementRequest
	if !h.bindJSON(c, &req) {
		return
	}
	terms, ok := h.toTerms(c, req)
	if !ok {
		return
	}

	agreement, err := h.agreements.UpdateAgreement(c.Request.Context(), groupID, id, terms)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToAgreementResponse(agreement))
}

// Get returns one agreement
func (h *AgreementHandler) Get(c *gin.Context) {
	groupID, ok := h.groupOrAbort(c)
	if !ok {
		return
	}
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	agreement, err := h.agreements.GetAgreement(c.Request.Context(), groupID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToAgreementResponse(agreement))
}

// List returns agreements matching the optional provider, recipient and type filters
func (h *AgreementHandler) List(c *gin.Context) {
	groupID, ok := h.groupOrAbort(c)
	if !ok {
		return
	}
	var q ListAgreementsQuery
	if !h.bindQuery(c, &q) {
		return
	}

	var filter intercompany.AgreementFilter
	if filter.ProviderID, ok = h.parseOptionalUUID(c, "provider_id", q.ProviderID); !ok {
		return
	}
	if filter.RecipientID, ok = h.parseOptionalUUID(c, "recipient_id", q.RecipientID); !ok {
		return
	}
	if q.Type != "" {
		t := intercompany.AgreementType(q.Type)
		filter.Type = &t
	}

	list, err := h.agreements.ListAgreements(c.Request.Context(), groupID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessList(c, dto.ToAgreementResponses(list), len(list))
}
