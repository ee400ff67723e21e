package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/jekmagalaman/gso/internal/gso/repository"
	"github.com/jekmagalaman/gso/internal/gso/service"
)

// InventoryHandler serves unit stock.
type InventoryHandler struct {
	svc *service.InventoryService
}

func NewInventoryHandler(svc *service.InventoryService) *InventoryHandler {
	return &InventoryHandler{svc: svc}
}

// List GET /inventory?unit_id=&category=&q=
func (h *InventoryHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	items, total, err := h.svc.List(c.Request.Context(), GetActor(c), repository.InventoryQuery{
		UnitID:   c.Query("unit_id"),
		Category: c.Query("category"),
		Search:   c.Query("q"),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}
	Success(c, ListResponse{Items: items, Pagination: newPagination(page, pageSize, total)})
}

// Create POST /inventory
func (h *InventoryHandler) Create(c *gin.Context) {
	var input service.CreateItemInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	item, err := h.svc.CreateItem(c.Request.Context(), GetActor(c), input)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	Created(c, item)
}

// Get GET /inventory/:id
func (h *InventoryHandler) Get(c *gin.Context) {
	item, err := h.svc.GetItem(c.Request.Context(), GetActor(c), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	Success(c, item)
}

// Adjust applies a manual stock correction
// POST /inventory/:id/adjust
func (h *InventoryHandler) Adjust(c *gin.Context) {
	var input service.AdjustInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	item, err := h.svc.Adjust(c.Request.Context(), GetActor(c), c.Param("id"), input)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	Success(c, item)
}

// Transactions GET /inventory/:id/transactions
func (h *InventoryHandler) Transactions(c *gin.Context) {
	txs, err := h.svc.Transactions(c.Request.Context(), GetActor(c), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	Success(c, gin.H{"items": txs})
}

// Summary GET /inventory/summary
func (h *InventoryHandler) Summary(c *gin.Context) {
	summary, err := h.svc.Summary(c.Request.Context(), GetActor(c))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	Success(c, summary)
}
