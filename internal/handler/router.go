package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/snipvault/snipvault/internal/middleware"
)

type RouterDeps struct {
	Shares    *ShareHandler
	Access    *AccessHandler
	Stats     *StatsHandler
	Bulk      *BulkHandler
	JWTSecret []byte
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	authGroup := api.Group("")
	authGroup.Use(middleware.JWTAuth(deps.JWTSecret))
	authGroup.POST("/shares", deps.Shares.Create)
	authGroup.GET("/shares", deps.Shares.List)
	authGroup.GET("/shares/:id", deps.Shares.Get)
	authGroup.PATCH("/shares/:id", deps.Shares.Update)
	authGroup.DELETE("/shares/:id", deps.Shares.Delete)
	authGroup.POST("/shares/:id/revoke", deps.Shares.Revoke)
	authGroup.GET("/shares/:id/stats", deps.Stats.TokenStats)
	authGroup.GET("/shares/:id/access-logs", deps.Stats.AccessLogs)
	authGroup.POST("/shares/bulk", deps.Bulk.Apply)

	// The attempt endpoint is left out of the request limiter: access
	// bounds are enforced by the engine and a front-side limiter would
	// mask LimitReached semantics.
	public := api.Group("/public")
	public.POST("/shares/:token/access", deps.Access.Attempt)
	public.POST("/shares/access-logs/:log_id/duration",
		middleware.RateLimit(500*time.Millisecond), deps.Access.RecordDuration)
}
