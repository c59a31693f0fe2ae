// Package routes provides HTTP route configuration for the presentation layer.
package routes

import (
	"github.com/escolahabilidade/habilidade-go/internal/application/container"
	"github.com/escolahabilidade/habilidade-go/internal/presentation/http/handlers"
	"github.com/escolahabilidade/habilidade-go/internal/presentation/http/middleware"
	"github.com/gin-gonic/gin"
)

// SetupRoutes configures all HTTP routes and middleware with dependency injection.
func SetupRoutes(container *container.Container) *gin.Engine {
	r := gin.Default()

	r.Use(middleware.CORSMiddleware())

	// Rendered image variants are served straight off disk.
	r.Static("/media", container.MediaBasePath)

	// Initialize handlers
	contentHandlers := handlers.NewContentHandlers(container.CacheService, container.Logger, container.PerfTracker)
	analyticsHandlers := handlers.NewAnalyticsHandlers(container.AnalyticsService, container.Logger, container.PerfTracker)
	signalHandlers := handlers.NewSignalHandlers(container.GateRegistry, container.Observers, container.Logger)
	schemaHandlers := handlers.NewSchemaHandlers(container.SchemaFragments)
	cacheHandlers := handlers.NewCacheHandlers(container.CacheService, container.Broadcaster, container.Logger, container.PerfTracker)
	imageHandlers := handlers.NewImageHandlers(container.ImageService, container.Logger)
	authHandlers := handlers.NewAuthHandlers(container.Logger)

	api := r.Group("/api/v1")
	{
		// Blog content
		blog := api.Group("/blog")
		{
			blog.GET("/posts", contentHandlers.GetPosts)
			blog.GET("/posts/:slug", contentHandlers.GetPost)
			blog.GET("/categories", contentHandlers.GetCategories)
			blog.GET("/search", contentHandlers.SearchPosts)
		}

		// Analytics
		analytics := api.Group("/analytics")
		{
			analytics.POST("/events", analyticsHandlers.PostEvents)
			analytics.POST("/view", analyticsHandlers.PostView)
			analytics.GET("/consent", analyticsHandlers.GetConsent)
			analytics.POST("/consent", analyticsHandlers.PostConsent)
		}

		// Deferred loading signals
		api.POST("/signals", signalHandlers.PostSignal)
		api.GET("/signals/status", signalHandlers.GetStatus)

		// Structured data
		api.GET("/fragments/schema", schemaHandlers.GetFragments)
		api.GET("/fragments/schema/html", schemaHandlers.GetFragmentsHTML)

		// Auth
		api.POST("/auth/login", authHandlers.PostLogin)

		// Admin endpoints
		admin := api.Group("/admin")
		admin.Use(middleware.AdminAuthMiddleware())
		{
			admin.GET("/auth/status", authHandlers.GetStatus)
			admin.GET("/analytics/summary", analyticsHandlers.GetSummary)

			admin.GET("/cache/stats", cacheHandlers.GetStats)
			admin.POST("/cache/invalidate", cacheHandlers.PostInvalidate)
			admin.POST("/cache/clear", cacheHandlers.PostClear)
			admin.POST("/cache/warm", cacheHandlers.PostWarm)

			admin.GET("/logs/levels", cacheHandlers.GetLogLevels)
			admin.POST("/logs/levels", cacheHandlers.SetLogLevel)

			admin.POST("/images/upload", imageHandlers.PostUpload)
			admin.GET("/images/status/:id", imageHandlers.GetStatus)
			admin.POST("/images/cancel/:id", imageHandlers.PostCancel)
		}
	}

	// Cache event stream is a special case and stays at top level
	r.GET("/ws/cache", cacheHandlers.StreamEvents)

	return r
}
