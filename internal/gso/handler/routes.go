package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/jekmagalaman/gso/internal/gso/entity"
	"github.com/jekmagalaman/gso/internal/middleware"
)

// RegisterRoutes mounts the API on v1.
func RegisterRoutes(v1 *gin.RouterGroup, h *Handlers, jwtSecret string) {
	auth := v1.Group("/auth")
	{
		auth.POST("/login", h.Auth.Login)
		auth.POST("/refresh", h.Auth.Refresh)
	}

	// EventSource cannot set headers; JWTAuth also reads ?token=
	v1.GET("/events", middleware.JWTAuth(jwtSecret), h.SSE.Stream)

	authorized := v1.Group("")
	authorized.Use(middleware.JWTAuth(jwtSecret))
	{
		authorized.GET("/auth/me", h.Auth.Me)
		authorized.POST("/auth/logout", h.Auth.Logout)
		authorized.GET("/dashboard", h.Request.Dashboard)

		admin := middleware.RequireRole(string(entity.RoleGSO), string(entity.RoleDirector))
		authorized.GET("/units", h.Account.ListUnits)
		authorized.POST("/units", admin, h.Account.CreateUnit)
		authorized.GET("/departments", h.Account.ListDepartments)
		authorized.POST("/departments", admin, h.Account.CreateDepartment)

		users := authorized.Group("/users")
		{
			users.GET("", h.Account.ListUsers)
			users.POST("", admin, h.Account.CreateUser)
		}
		authorized.GET("/personnel/available", h.Account.AvailablePersonnel)

		requests := authorized.Group("/requests")
		{
			requests.GET("", h.Request.List)
			requests.POST("", h.Request.Create)
			requests.GET("/:id", h.Request.Get)
			requests.POST("/:id/approve", h.Request.Approve)
			requests.PUT("/:id/assignment", h.Request.Assign)
			requests.POST("/:id/start", h.Request.Start)
			requests.POST("/:id/submit", h.Request.Submit)
			requests.POST("/:id/complete", h.Request.ApproveCompletion)
			requests.POST("/:id/reject", h.Request.RejectCompletion)
			requests.POST("/:id/cancel", h.Request.Cancel)
			requests.GET("/:id/reports", h.Request.ListReports)
			requests.POST("/:id/reports", h.Request.AddReport)
			requests.PUT("/:id/indicator", h.Request.SelectIndicator)
			requests.GET("/:id/history", h.Request.History)
			requests.POST("/:id/attachment", h.Request.UploadAttachment)
			requests.GET("/:id/attachment", h.Request.DownloadAttachment)
			requests.POST("/:id/feedback", h.Feedback.Submit)
			requests.GET("/:id/feedback", h.Feedback.Get)
		}

		authorized.GET("/feedback", h.Feedback.List)

		inventory := authorized.Group("/inventory")
		{
			inventory.GET("", h.Inventory.List)
			inventory.POST("", h.Inventory.Create)
			inventory.GET("/summary", h.Inventory.Summary)
			inventory.GET("/:id", h.Inventory.Get)
			inventory.POST("/:id/adjust", h.Inventory.Adjust)
			inventory.GET("/:id/transactions", h.Inventory.Transactions)
		}

		indicators := authorized.Group("/indicators")
		{
			indicators.GET("", h.Indicator.List)
			indicators.POST("", h.Indicator.Create)
			indicators.DELETE("/:id", h.Indicator.Deactivate)
		}

		wars := authorized.Group("/wars")
		{
			wars.GET("", h.Report.ListWARs)
			wars.GET("/export", h.Report.ExportWAR)
			wars.GET("/:id", h.Report.GetWAR)
			wars.PUT("/:id", h.Report.UpdateWAR)
			wars.POST("/:id/regenerate", h.Report.RegenerateWAR)
		}

		ipmt := authorized.Group("/ipmt")
		{
			ipmt.GET("", h.Report.ListIPMT)
			ipmt.POST("", h.Report.SaveIPMT)
			ipmt.POST("/preview", h.Report.PreviewIPMT)
			ipmt.GET("/export", h.Report.ExportIPMT)
			ipmt.POST("/:id/regenerate", h.Report.RegenerateIPMT)
		}

		notifications := authorized.Group("/notifications")
		{
			notifications.GET("", h.Notification.List)
			notifications.POST("/read-all", h.Notification.MarkAllRead)
			notifications.POST("/:id/read", h.Notification.MarkRead)
		}
	}
}
