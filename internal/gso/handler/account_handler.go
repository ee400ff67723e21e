package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/jekmagalaman/gso/internal/gso/entity"
	"github.com/jekmagalaman/gso/internal/gso/repository"
	"github.com/jekmagalaman/gso/internal/gso/service"
)

// AccountHandler serves users, units and departments.
type AccountHandler struct {
	svc *service.AccountService
}

func NewAccountHandler(svc *service.AccountService) *AccountHandler {
	return &AccountHandler{svc: svc}
}

// ListUsers GET /users?role=&unit_id=&q=
func (h *AccountHandler) ListUsers(c *gin.Context) {
	users, err := h.svc.ListUsers(c.Request.Context(), GetActor(c), repository.UserQuery{
		Role:   entity.Role(c.Query("role")),
		UnitID: c.Query("unit_id"),
		Search: c.Query("q"),
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}
	Success(c, gin.H{"items": users})
}

// CreateUser POST /users
func (h *AccountHandler) CreateUser(c *gin.Context) {
	var input service.CreateUserInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	user, err := h.svc.CreateUser(c.Request.Context(), GetActor(c), input)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	Created(c, user)
}

// AvailablePersonnel lists personnel free for assignment
// GET /personnel/available?unit_id=
func (h *AccountHandler) AvailablePersonnel(c *gin.Context) {
	users, err := h.svc.AvailablePersonnel(c.Request.Context(), GetActor(c), c.Query("unit_id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	Success(c, gin.H{"items": users})
}

// ListUnits GET /units
func (h *AccountHandler) ListUnits(c *gin.Context) {
	units, err := h.svc.ListUnits(c.Request.Context())
	if err != nil {
		handleServiceError(c, err)
		return
	}
	Success(c, gin.H{"items": units})
}

type nameRequest struct {
	Name string `json:"name" binding:"required"`
}

// CreateUnit POST /units
func (h *AccountHandler) CreateUnit(c *gin.Context) {
	var req nameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "name is required")
		return
	}
	unit, err := h.svc.CreateUnit(c.Request.Context(), GetActor(c), req.Name)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	Created(c, unit)
}

// ListDepartments GET /departments
func (h *AccountHandler) ListDepartments(c *gin.Context) {
	depts, err := h.svc.ListDepartments(c.Request.Context())
	if err != nil {
		handleServiceError(c, err)
		return
	}
	Success(c, gin.H{"items": depts})
}

// CreateDepartment POST /departments
func (h *AccountHandler) CreateDepartment(c *gin.Context) {
	var req nameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "name is required")
		return
	}
	dept, err := h.svc.CreateDepartment(c.Request.Context(), GetActor(c), req.Name)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	Created(c, dept)
}
