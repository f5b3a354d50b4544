package api

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"attendance-dashboard-backend/config"
	"attendance-dashboard-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router. responses may be shared with the
// sync service so it can be flushed when records change.
func NewRouter(h *Handler, server config.ServerConfig, responses *mw.ResponseCache) *gin.Engine {
	r := gin.Default()

	rateLimiter := mw.RateLimiter(rate.Limit(server.RateLimitPerSec), server.RateLimitBurst)
	caching := responses.Handler()
	authRequired := mw.AuthRequired(h.auth)

	r.GET("/healthz", h.Healthz)

	// API group
	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.POST("/auth/login", h.Login)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)

		private := api.Group("")
		private.Use(authRequired)
		{
			private.POST("/auth/logout", h.Logout)
			private.GET("/auth/session", h.GetSession)

			private.GET("/records", caching, h.GetRecords)
			private.GET("/records/by-weekday", caching, h.GetRecordsByWeekday)
			private.GET("/records/chart", caching, h.GetChart)
			private.GET("/records/export", h.ExportRecords)
			private.DELETE("/records", h.PurgeRecords)
			private.POST("/sync", h.TriggerSync)

			private.GET("/subscriptions", h.GetSubscription)
			private.PUT("/subscriptions", h.PutSubscription)
			private.DELETE("/subscriptions", h.DeleteSubscription)
		}
	}

	return r
}
