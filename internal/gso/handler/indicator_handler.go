package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/jekmagalaman/gso/internal/gso/service"
)

type IndicatorHandler struct {
	svc *service.IndicatorService
}

func NewIndicatorHandler(svc *service.IndicatorService) *IndicatorHandler {
	return &IndicatorHandler{svc: svc}
}

// List GET /indicators?unit_id=&active_only=true
func (h *IndicatorHandler) List(c *gin.Context) {
	activeOnly := c.Query("active_only") != "false"
	items, err := h.svc.List(c.Request.Context(), GetActor(c), c.Query("unit_id"), activeOnly)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	Success(c, gin.H{"items": items})
}

// Create POST /indicators
func (h *IndicatorHandler) Create(c *gin.Context) {
	var input service.CreateIndicatorInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	ind, err := h.svc.Create(c.Request.Context(), GetActor(c), input)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	Created(c, ind)
}

// Deactivate DELETE /indicators/:id
func (h *IndicatorHandler) Deactivate(c *gin.Context) {
	if err := h.svc.Deactivate(c.Request.Context(), GetActor(c), c.Param("id")); err != nil {
		handleServiceError(c, err)
		return
	}
	Success(c, nil)
}
