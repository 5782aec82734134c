package handler

import (
	"github.com/erp/icledger/internal/application/finance"
	"github.com/erp/icledger/internal/domain/intercompany"
	"github.com/erp/icledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CostPoolHandler handles shared-cost pool endpoints
type CostPoolHandler struct {
	BaseHandler
	pools *finance.CostPoolAllocator
}

// NewCostPoolHandler creates a new CostPoolHandler
func NewCostPoolHandler(pools *finance.CostPoolAllocator) *CostPoolHandler {
	return &CostPoolHandler{pools: pools}
}

// CostLineRequest is one category of holdco cost
type CostLineRequest struct {
	Category string          `json:"category" binding:"required,max=100"`
	Amount   decimal.Decimal `json:"amount"`
}

// WeightRequest is one recipient's share of the pool
type WeightRequest struct {
	RecipientID string          `json:"recipient_id" binding:"required,uuid"`
	Weight      decimal.Decimal `json:"weight"`
}

// CreateCostPoolRequest is the body of POST /cost-pools
type CreateCostPoolRequest struct {
	HoldcoID string            `json:"holdco_id" binding:"required,uuid"`
	Period   string            `json:"period" binding:"required,period"`
	Lines    []CostLineRequest `json:"lines" binding:"required,min=1,dive"`
	Weights  []WeightRequest   `json:"weights" binding:"required,min=1,dive"`
}

// RegisterRoutes mounts the cost pool endpoints
func (h *CostPoolHandler) RegisterRoutes(rg *gin.RouterGroup) {
	pools := rg.Group("/cost-pools")
	pools.POST("", h.Create)
	pools.GET("/:id", h.Get)
	pools.POST("/:id/allocate", h.Allocate)
}

func toLineInputs(lines []CostLineRequest) []intercompany.LineInput {
	out := make([]intercompany.LineInput, len(lines))
	for i, l := range lines {
		out[i] = intercompany.LineInput{Category: l.Category, Amount: l.Amount}
	}
	return out
}

func toWeightInputs(weights []WeightRequest) []intercompany.WeightInput {
	out := make([]intercompany.WeightInput, len(weights))
	for i, w := range weights {
		out[i] = intercompany.WeightInput{RecipientID: uuid.MustParse(w.RecipientID), Weight: w.Weight}
	}
	return out
}

// Create stores a pool with its cost lines and allocation weights
func (h *CostPoolHandler) Create(c *gin.Context) {
	groupID, ok := h.groupOrAbort(c)
	if !ok {
		return
	}
	var req CreateCostPoolRequest
	if !h.bindJSON(c, &req) {
		return
	}
	period, ok := h.parsePeriod(c, "period", req.Period)
	if !ok {
		return
	}

	pool, err := h.pools.CreateCostPool(c.Request.Context(), finance.CreateCostPoolInput{
		GroupID:  groupID,
		HoldcoID: uuid.MustParse(req.HoldcoID),
		Period:   period,
		Lines:    toLineInputs(req.Lines),
		Weights:  toWeightInputs(req.Weights),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, dto.ToCostPoolResponse(pool))
}

// Allocate splits the pool across its recipients
func (h *CostPoolHandler) Allocate(c *gin.Context) {
	groupID, ok := h.groupOrAbort(c)
	if !ok {
		return
	}
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	pool, err := h.pools.AllocateCostPool(c.Request.Context(), groupID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToCostPoolResponse(pool))
}

// Get returns a pool with any allocations
func (h *CostPoolHandler) Get(c *gin.Context) {
	groupID, ok := h.groupOrAbort(c)
	if !ok {
		return
	}
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	pool, err := h.pools.GetCostPool(c.Request.Context(), groupID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToCostPoolResponse(pool))
}
