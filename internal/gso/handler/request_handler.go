package handler

import (
	"io"
	"mime"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/jekmagalaman/gso/internal/gso/repository"
	"github.com/jekmagalaman/gso/internal/gso/service"
	"go.uber.org/zap"
)

const maxAttachmentSize = 20 << 20

// RequestHandler serves the request lifecycle.
type RequestHandler struct {
	svc    *service.RequestService
	logger *zap.Logger
}

func NewRequestHandler(svc *service.RequestService, logger *zap.Logger) *RequestHandler {
	return &RequestHandler{svc: svc, logger: logger}
}

// List lists requests visible to the caller
// GET /requests?status=&q=&unit_id=&order=emergency_first|newest
func (h *RequestHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	order := repository.RequestOrder(c.DefaultQuery("order", string(repository.OrderEmergencyFirst)))

	items, total, err := h.svc.ListRequests(c.Request.Context(), GetActor(c), service.RequestFilter{
		Status:   c.Query("status"),
		Query:    c.Query("q"),
		UnitID:   c.Query("unit_id"),
		Order:    order,
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}
	Success(c, ListResponse{Items: items, Pagination: newPagination(page, pageSize, total)})
}

// Create files a new request
// POST /requests
func (h *RequestHandler) Create(c *gin.Context) {
	var req service.CreateRequestInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	created, err := h.svc.Create(c.Request.Context(), GetActor(c), req)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	Created(c, created)
}

// Get GET /requests/:id
func (h *RequestHandler) Get(c *gin.Context) {
	req, err := h.svc.Get(c.Request.Context(), GetActor(c), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	Success(c, req)
}

// Approve POST /requests/:id/approve
func (h *RequestHandler) Approve(c *gin.Context) {
	req, err := h.svc.Approve(c.Request.Context(), GetActor(c), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	Success(c, req)
}

// Assign replaces personnel and materials
// PUT /requests/:id/assignment
func (h *RequestHandler) Assign(c *gin.Context) {
	var input service.AssignInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	req, err := h.svc.Assign(c.Request.Context(), GetActor(c), c.Param("id"), input)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	Success(c, req)
}

// Start POST /requests/:id/start
func (h *RequestHandler) Start(c *gin.Context) {
	req, err := h.svc.Start(c.Request.Context(), GetActor(c), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	Success(c, req)
}

type submitRequest struct {
	IndicatorID string `json:"indicator_id"`
}

// Submit sends work for review
// POST /requests/:id/submit
func (h *RequestHandler) Submit(c *gin.Context) {
	var body submitRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			BadRequest(c, "Invalid request body: "+err.Error())
			return
		}
	}
	req, err := h.svc.SubmitForReview(c.Request.Context(), GetActor(c), c.Param("id"), body.IndicatorID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	Success(c, req)
}

// ApproveCompletion completes a request and returns its WAR
// POST /requests/:id/complete
func (h *RequestHandler) ApproveCompletion(c *gin.Context) {
	result, err := h.svc.ApproveCompletion(c.Request.Context(), GetActor(c), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	Success(c, result)
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

func bindReason(c *gin.Context) (string, bool) {
	var body reasonRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			BadRequest(c, "Invalid request body: "+err.Error())
			return "", false
		}
	}
	return body.Reason, true
}

// RejectCompletion sends work back to In Progress
// POST /requests/:id/reject
func (h *RequestHandler) RejectCompletion(c *gin.Context) {
	reason, ok := bindReason(c)
	if !ok {
		return
	}
	req, err := h.svc.RejectCompletion(c.Request.Context(), GetActor(c), c.Param("id"), reason)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	Success(c, req)
}

// Cancel POST /requests/:id/cancel
func (h *RequestHandler) Cancel(c *gin.Context) {
	reason, ok := bindReason(c)
	if !ok {
		return
	}
	req, err := h.svc.Cancel(c.Request.Context(), GetActor(c), c.Param("id"), reason)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	Success(c, req)
}

type taskReportRequest struct {
	ReportText string `json:"report_text" binding:"required"`
}

// AddReport appends a task report
// POST /requests/:id/reports
func (h *RequestHandler) AddReport(c *gin.Context) {
	var body taskReportRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		BadRequest(c, "report_text is required")
		return
	}
	report, err := h.svc.AddTaskReport(c.Request.Context(), GetActor(c), c.Param("id"), body.ReportText)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	Created(c, report)
}

// ListReports GET /requests/:id/reports
func (h *RequestHandler) ListReports(c *gin.Context) {
	reports, err := h.svc.ListReports(c.Request.Context(), GetActor(c), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	Success(c, gin.H{"items": reports})
}

// SelectIndicator PUT /requests/:id/indicator
func (h *RequestHandler) SelectIndicator(c *gin.Context) {
	var body submitRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	req, err := h.svc.SelectIndicator(c.Request.Context(), GetActor(c), c.Param("id"), body.IndicatorID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	Success(c, req)
}

// History GET /requests/:id/history
func (h *RequestHandler) History(c *gin.Context) {
	logs, err := h.svc.History(c.Request.Context(), GetActor(c), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	Success(c, gin.H{"items": logs})
}

// UploadAttachment stores the multipart "file" field
// POST /requests/:id/attachment
func (h *RequestHandler) UploadAttachment(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "file is required")
		return
	}
	if fileHeader.Size > maxAttachmentSize {
		BadRequest(c, "file exceeds 20MB")
		return
	}
	src, err := fileHeader.Open()
	if err != nil {
		InternalError(c, "Failed to read upload")
		return
	}
	defer src.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req, err := h.svc.UploadAttachment(c.Request.Context(), GetActor(c), c.Param("id"),
		fileHeader.Filename, src, fileHeader.Size, contentType)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	Success(c, req)
}

// DownloadAttachment GET /requests/:id/attachment
func (h *RequestHandler) DownloadAttachment(c *gin.Context) {
	rc, name, err := h.svc.OpenAttachment(c.Request.Context(), GetActor(c), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Type", contentType)
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	if _, err := io.Copy(c.Writer, rc); err != nil {
		h.logger.Warn("attachment download interrupted", zap.String("request_id", c.Param("id")), zap.Error(err))
	}
}

// Dashboard GET /dashboard
func (h *RequestHandler) Dashboard(c *gin.Context) {
	d, err := h.svc.Dashboard(c.Request.Context(), GetActor(c))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	Success(c, d)
}
