package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/ToasterTechHelp/Yoink-Core/api/handlers"
	"github.com/ToasterTechHelp/Yoink-Core/api/middleware"
)

// Setup registers the /api/v1 route tree.
func Setup(r *gin.Engine, h *handlers.Handlers, corsOrigins []string) {
	r.Use(middleware.CORS(corsOrigins))
	r.Use(middleware.OwnerIdentity())

	r.GET("/health", h.Health)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", h.Health)
		v1.POST("/extract", h.Extract.Submit)

		jobs := v1.Group("/jobs")
		{
			jobs.GET("/:id", h.Jobs.Status)
			jobs.GET("/:id/result", h.Jobs.Result)
			jobs.GET("/:id/result/components", h.Jobs.Components)
			jobs.PATCH("/:id/rename", h.Jobs.Rename)
			jobs.DELETE("/:id", h.Jobs.Delete)
			jobs.GET("/:id/components/:componentID/image", h.Artifacts.ComponentImage)
		}
	}
}
