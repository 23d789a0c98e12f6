package api

import (
	"github.com/gin-gonic/gin"
)

// SetupRoutes configures all API routes
func SetupRoutes(r *gin.Engine, store StoreInterface, analyzer Analyzer, scheduler SchedulerInterface, backend string) {
	handlers := NewHandlers(store, analyzer, scheduler, backend)

	v1 := r.Group("/api")
	{
		// Health check (handle both GET and HEAD)
		v1.GET("/health", handlers.HealthCheck)
		v1.HEAD("/health", handlers.HealthCheck)

		// History
		v1.GET("/history", handlers.GetHistory)
		v1.POST("/history", handlers.CreateEntry)
		v1.DELETE("/history", handlers.ClearHistory)
		v1.GET("/history/:id", handlers.GetEntry)
		v1.PUT("/history/:id", handlers.PutEntry)
		v1.DELETE("/history/:id", handlers.DeleteEntry)

		// Settings
		v1.GET("/settings", handlers.GetSettings)
		v1.PATCH("/settings", handlers.UpdateSettings)

		// Stats
		v1.GET("/stats", handlers.GetStats)

		// Analysis
		v1.POST("/analyze", handlers.Analyze)

		// Re-pricing (no authentication, keep behind a trusted network)
		v1.GET("/admin/reprice-status", handlers.GetRepriceStatus)
		v1.POST("/admin/reprice", handlers.TriggerReprice)
	}
}
