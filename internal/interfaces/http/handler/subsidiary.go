package handler

import (
	"github.com/erp/icledger/internal/application/finance"
	"github.com/erp/icledger/internal/domain/group"
	"github.com/erp/icledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// SubsidiaryHandler handles group membership endpoints
type SubsidiaryHandler struct {
	BaseHandler
	tenancy *finance.TenancyGuard
}

// NewSubsidiaryHandler creates a new SubsidiaryHandler
func NewSubsidiaryHandler(tenancy *finance.TenancyGuard) *SubsidiaryHandler {
	return &SubsidiaryHandler{tenancy: tenancy}
}

// RegisterSubsidiaryRequest is the body of POST /subsidiaries
type RegisterSubsidiaryRequest struct {
	Name string `json:"name" binding:"required,min=1,max=200"`
	Role string `json:"role" binding:"required,oneof=HOLDCO PROCUREMENT_TRADING RETAIL RESELLER DIGITAL_COMMERCE LOGISTICS"`
}

// RegisterRoutes mounts the subsidiary endpoints
func (h *SubsidiaryHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/subsidiaries", h.Register)
	rg.GET("/subsidiaries", h.List)
}

// Register adds a company to the caller's group and seeds its chart of accounts
func (h *SubsidiaryHandler) Register(c *gin.Context) {
	groupID, ok := h.groupOrAbort(c)
	if !ok {
		return
	}
	var req RegisterSubsidiaryRequest
	if !h.bindJSON(c, &req) {
		return
	}

	sub, err := h.tenancy.RegisterSubsidiary(c.Request.Context(), groupID, req.Name, group.Role(req.Role))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, dto.ToSubsidiaryResponse(sub))
}

// List returns the group's subsidiaries
func (h *SubsidiaryHandler) List(c *gin.Context) {
	groupID, ok := h.groupOrAbort(c)
	if !ok {
		return
	}
	subs, err := h.tenancy.ListSubsidiaries(c.Request.Context(), groupID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessList(c, dto.ToSubsidiaryResponses(subs), len(subs))
}
