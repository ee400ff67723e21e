package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/jekmagalaman/gso/internal/gso/service"
)

// FeedbackHandler serves client satisfaction feedback.
type FeedbackHandler struct {
	svc *service.FeedbackService
}

func NewFeedbackHandler(svc *service.FeedbackService) *FeedbackHandler {
	return &FeedbackHandler{svc: svc}
}

// Submit POST /requests/:id/feedback
func (h *FeedbackHandler) Submit(c *gin.Context) {
	var input service.FeedbackInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	fb, err := h.svc.Submit(c.Request.Context(), GetActor(c), c.Param("id"), input)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	Created(c, fb)
}

// Get GET /requests/:id/feedback
func (h *FeedbackHandler) Get(c *gin.Context) {
	fb, err := h.svc.Get(c.Request.Context(), GetActor(c), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	Success(c, fb)
}

// List GET /feedback?unit_id=&year=&month=
func (h *FeedbackHandler) List(c *gin.Context) {
	year, month, ok := getMonth(c)
	if !ok {
		return
	}
	items, err := h.svc.List(c.Request.Context(), GetActor(c), service.FeedbackFilter{
		UnitID: c.Query("unit_id"),
		Year:   year,
		Month:  month,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}
	Success(c, gin.H{"items": items})
}
