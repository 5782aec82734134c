package handler

import (
	"github.com/erp/icledger/internal/application/finance"
	"github.com/erp/icledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreditHandler handles reseller credit line endpoints
type CreditHandler struct {
	BaseHandler
	credit *finance.CreditLedger
}

// NewCreditHandler creates a new CreditHandler
func NewCreditHandler(credit *finance.CreditLedger) *CreditHandler {
	return &CreditHandler{credit: credit}
}

// OpenCreditAccountRequest is the body of POST /credit-accounts
type OpenCreditAccountRequest struct {
	SubsidiaryID string           `json:"subsidiary_id" binding:"required,uuid"`
	ResellerID   string           `json:"reseller_id" binding:"required,uuid"`
	Limit        *decimal.Decimal `json:"limit" binding:"required"`
}

// ReserveCreditRequest is the body of POST /credit-reservations
type ReserveCreditRequest struct {
	SubsidiaryID  string           `json:"subsidiary_id" binding:"required,uuid"`
	ResellerID    string           `json:"reseller_id" binding:"required,uuid"`
	Amount        *decimal.Decimal `json:"amount" binding:"required"`
	AllowOverride bool             `json:"allow_override"`
}

// CreditOrderRequest is the body of POST /credit-orders
type CreditOrderRequest struct {
	ReserveCreditRequest
	Reference string `json:"reference" binding:"required,max=100"`
	CreatedAt string `json:"created_at" binding:"omitempty,datetime=2006-01-02"`
}

// RepaymentRequest is the body of POST /credit-accounts/:id/repayments
type RepaymentRequest struct {
	SubsidiaryID string           `json:"subsidiary_id" binding:"required,uuid"`
	Amount       *decimal.Decimal `json:"amount" binding:"required"`
	Method       string           `json:"method" binding:"required,max=50"`
	PaidAt       string           `json:"paid_at" binding:"omitempty,datetime=2006-01-02"`
}

// RegisterRoutes mounts the credit endpoints
func (h *CreditHandler) RegisterRoutes(rg *gin.RouterGroup) {
	accounts := rg.Group("/credit-accounts")
	accounts.POST("", h.Open)
	accounts.GET("/:id", h.Get)
	accounts.GET("/:id/orders", h.ListOrders)
	accounts.POST("/:id/repayments", h.Repay)
	rg.POST("/credit-reservations", h.Reserve)
	rg.POST("/credit-orders", h.RecordOrder)
}

func (r ReserveCreditRequest) input(groupID uuid.UUID) finance.ReserveCreditInput {
	return finance.ReserveCreditInput{
		GroupID:       groupID,
		SubsidiaryID:  uuid.MustParse(r.SubsidiaryID),
		ResellerID:    uuid.MustParse(r.ResellerID),
		Amount:        *r.Amount,
		AllowOverride: r.AllowOverride,
	}
}

// Open creates a credit line for a reseller of a subsidiary
func (h *CreditHandler) Open(c *gin.Context) {
	groupID, ok := h.groupOrAbort(c)
	if !ok {
		return
	}
	var req OpenCreditAccountRequest
	if !h.bindJSON(c, &req) {
		return
	}
	account, err := h.credit.OpenCreditAccount(c.Request.Context(), finance.OpenCreditAccountInput{
		GroupID:      groupID,
		SubsidiaryID: uuid.MustParse(req.SubsidiaryID),
		ResellerID:   uuid.MustParse(req.ResellerID),
		Limit:        *req.Limit,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, dto.ToCreditAccountResponse(account))
}

// Reserve takes headroom on the reseller's credit line
func (h *CreditHandler) Reserve(c *gin.Context) {
	groupID, ok := h.groupOrAbort(c)
	if !ok {
		return
	}
	var req ReserveCreditRequest
	if !h.bindJSON(c, &req) {
		return
	}
	account, err := h.credit.ReserveCreditUsage(c.Request.Context(), req.input(groupID))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToCreditAccountResponse(account))
}

// RecordOrder reserves credit and records the order in one step
func (h *CreditHandler) RecordOrder(c *gin.Context) {
	groupID, ok := h.groupOrAbort(c)
	if !ok {
		return
	}
	var req CreditOrderRequest
	if !h.bindJSON(c, &req) {
		return
	}
	createdAt, ok := h.parseOptionalDate(c, "created_at", req.CreatedAt)
	if !ok {
		return
	}

	order, err := h.credit.RecordCreditOrder(c.Request.Context(), finance.CreditOrderInput{
		ReserveCreditInput: req.input(groupID),
		Reference:          req.Reference,
		CreatedAt:          createdAt,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, dto.ToCreditOrderResponse(order))
}

// Repay applies a repayment to the account's open orders, oldest first
func (h *CreditHandler) Repay(c *gin.Context) {
	groupID, ok := h.groupOrAbort(c)
	if !ok {
		return
	}
	accountID, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req RepaymentRequest
	if !h.bindJSON(c, &req) {
		return
	}

	in := finance.RepaymentInput{
		GroupID:         groupID,
		SubsidiaryID:    uuid.MustParse(req.SubsidiaryID),
		CreditAccountID: accountID,
		Amount:          *req.Amount,
		Method:          req.Method,
	}
	if req.PaidAt != "" {
		paidAt, ok := h.parseOptionalDate(c, "paid_at", req.PaidAt)
		if !ok {
			return
		}
		in.PaidAt = &paidAt
	}
	repayment, err := h.credit.CreateRepayment(c.Request.Context(), in)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, dto.ToRepaymentResponse(repayment))
}

// Get returns a credit account with its available headroom
func (h *CreditHandler) Get(c *gin.Context) {
	groupID, ok := h.groupOrAbort(c)
	if !ok {
		return
	}
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	account, err := h.credit.GetAccount(c.Request.Context(), groupID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToCreditAccountResponse(account))
}

// ListOrders returns the orders drawn on a credit account
func (h *CreditHandler) ListOrders(c *gin.Context) {
	groupID, ok := h.groupOrAbort(c)
	if !ok {
		return
	}
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	orders, err := h.credit.ListOrders(c.Request.Context(), groupID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessList(c, dto.ToCreditOrderResponses(orders), len(orders))
}
