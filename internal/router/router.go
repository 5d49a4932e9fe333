package router

import (
	"github.com/brroMonta/gifting/config"
	"github.com/brroMonta/gifting/internal/app/controller"
	"github.com/brroMonta/gifting/internal/metrics"
	"github.com/brroMonta/gifting/internal/middleware"
	"github.com/gin-gonic/gin"
)

type Router struct {
	personController      *controller.PersonController
	giftMapController     *controller.GiftMapController
	sharedController      *controller.SharedGiftMapController
	urlMetadataController *controller.URLMetadataController
	authMiddleware        *middleware.AuthMiddleware
	rateLimiter           middleware.RateLimiter
	config                *config.Config
}

// NewRouter wires the HTTP surface. rateLimiter may be nil.
func NewRouter(
	personController *controller.PersonController,
	giftMapController *controller.GiftMapController,
	sharedController *controller.SharedGiftMapController,
	urlMetadataController *controller.URLMetadataController,
	authMiddleware *middleware.AuthMiddleware,
	rateLimiter middleware.RateLimiter,
	cfg *config.Config,
) *Router {
	return &Router{
		personController:      personController,
		giftMapController:     giftMapController,
		sharedController:      sharedController,
		urlMetadataController: urlMetadataController,
		authMiddleware:        authMiddleware,
		rateLimiter:           rateLimiter,
		config:                cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	gin.SetMode(r.config.Server.GinMode)

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.LoggingMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(corsMiddleware(r.config.CORS.AllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"message": "Gifting API is running",
		})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := router.Group("/api/v1")
	{
		owner := v1.Group("", r.authMiddleware.Authenticate())
		{
			people := owner.Group("/people")
			{
				people.POST("", r.personController.CreatePerson)
				people.GET("", r.personController.ListPeople)
				people.GET("/:person_id", r.personController.GetPerson)
				people.PUT("/:person_id", r.personController.UpdatePerson)
				people.DELETE("/:person_id", r.personController.DeletePerson)

				giftMap := people.Group("/:person_id/gift-map")
				{
					giftMap.GET("", r.giftMapController.GetGiftMap)
					giftMap.POST("/items", r.giftMapController.AddItem)
					giftMap.PATCH("/items/:item_id", r.giftMapController.UpdateItem)
					giftMap.DELETE("/items/:item_id", r.giftMapController.DeleteItem)
					giftMap.POST("/share", r.giftMapController.EnableSharing)
					giftMap.DELETE("/share", r.giftMapController.DisableSharing)
				}
			}

			owner.GET("/url-metadata", r.urlMetadataController.GetMetadata)
		}

		limit := r.config.RateLimit
		shared := v1.Group("/shared/:token", middleware.RateLimit(r.rateLimiter, "shared", limit.PublicLimit, limit.PublicWindow))
		{
			shared.GET("", r.sharedController.GetSharedGiftMap)
			shared.POST("/items/:item_id/reserve", r.sharedController.Reserve)
			shared.DELETE("/items/:item_id/reserve", r.sharedController.Unreserve)
			shared.GET("/ws", r.sharedController.Watch)
		}
	}

	return router
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		allowed := false
		for _, allowedOrigin := range allowedOrigins {
			if origin == allowedOrigin || allowedOrigin == "*" {
				allowed = true
				break
			}
		}

		if allowed {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID, X-RateLimit-Remaining, Retry-After")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
