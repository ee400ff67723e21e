package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jekmagalaman/gso/internal/gso/entity"
	"github.com/jekmagalaman/gso/internal/gso/service"
	"github.com/jekmagalaman/gso/internal/gso/sse"
	"go.uber.org/zap"
)

// Handlers groups the HTTP handlers.
type Handlers struct {
	Auth         *AuthHandler
	Account      *AccountHandler
	Request      *RequestHandler
	Inventory    *InventoryHandler
	Indicator    *IndicatorHandler
	Report       *ReportHandler
	Feedback     *FeedbackHandler
	Notification *NotificationHandler
	SSE          *SSEHandler
}

// NewHandlers creates the handler set.
func NewHandlers(svc *service.Services, hub *sse.Hub, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		Auth:         NewAuthHandler(svc.Auth),
		Account:      NewAccountHandler(svc.Account),
		Request:      NewRequestHandler(svc.Request, logger),
		Inventory:    NewInventoryHandler(svc.Inventory),
		Indicator:    NewIndicatorHandler(svc.Indicator),
		Report:       NewReportHandler(svc.WAR, svc.IPMT, svc.Export, logger),
		Feedback:     NewFeedbackHandler(svc.Feedback),
		Notification: NewNotificationHandler(svc.Notification),
		SSE:          NewSSEHandler(hub),
	}
}

// Response is the JSON envelope of every endpoint.
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ListResponse is the data of a paginated list.
type ListResponse struct {
	Items      interface{} `json:"items"`
	Pagination *Pagination `json:"pagination"`
}

type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

func newPagination(page, pageSize int, total int64) *Pagination {
	pages := 0
	if pageSize > 0 {
		pages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return &Pagination{Page: page, PageSize: pageSize, Total: int(total), TotalPages: pages}
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(201, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Error writes an error envelope. The HTTP status is code/100.
func Error(c *gin.Context, code int, message string) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
	})
}

func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

func Unauthorized(c *gin.Context, message string) {
	Error(c, 40100, message)
}

func Forbidden(c *gin.Context, message string) {
	Error(c, 40300, message)
}

func NotFound(c *gin.Context, message string) {
	Error(c, 40400, message)
}

func Conflict(c *gin.Context, code int, message string) {
	Error(c, code, message)
}

func InternalError(c *gin.Context, message string) {
	Error(c, 50000, message)
}

// handleServiceError maps service errors to the response envelope.
func handleServiceError(c *gin.Context, err error) {
	var (
		validation *service.ValidationError
		authz      *service.AuthorizationError
		illegal    *service.IllegalTransitionError
		stock      *service.InsufficientStockError
		missing    *service.NotFoundError
	)
	switch {
	case errors.As(err, &validation):
		BadRequest(c, validation.Error())
	case errors.As(err, &authz):
		Forbidden(c, authz.Error())
	case errors.As(err, &illegal):
		Conflict(c, 40900, illegal.Error())
	case errors.As(err, &stock):
		c.JSON(409, Response{
			Code:    40910,
			Message: stock.Error(),
			Data: gin.H{
				"item_id":   stock.ItemID,
				"requested": stock.Requested,
				"available": stock.Available,
			},
		})
	case errors.As(err, &missing):
		NotFound(c, missing.Error())
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrInvalidToken):
		Unauthorized(c, err.Error())
	default:
		_ = c.Error(err)
		InternalError(c, "Internal server error")
	}
}

func GetUserID(c *gin.Context) string {
	userID, _ := c.Get("user_id")
	if id, ok := userID.(string); ok {
		return id
	}
	return ""
}

// GetActor builds the acting user from the authenticated context.
func GetActor(c *gin.Context) service.Actor {
	return service.Actor{
		UserID: GetUserID(c),
		Name:   c.GetString("user_name"),
		Role:   entity.Role(c.GetString("role")),
		UnitID: c.GetString("unit_id"),
	}
}

// GetPagination reads page and page_size, defaulting to 1 and 20.
func GetPagination(c *gin.Context) (page, pageSize int) {
	page = 1
	pageSize = 20

	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}

	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v
		}
	}

	return page, pageSize
}

// getMonth reads the year and month query parameters. Missing values are zero.
func getMonth(c *gin.Context) (year, month int, ok bool) {
	var err error
	if y := c.Query("year"); y != "" {
		if year, err = strconv.Atoi(y); err != nil {
			BadRequest(c, "year must be a number")
			return 0, 0, false
		}
	}
	if m := c.Query("month"); m != "" {
		if month, err = strconv.Atoi(m); err != nil {
			BadRequest(c, "month must be a number")
			return 0, 0, false
		}
	}
	return year, month, true
}
