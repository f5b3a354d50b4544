package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"

	"attendance-dashboard-backend/config"
	"attendance-dashboard-backend/internal/attendance"
	"attendance-dashboard-backend/internal/auth"
	"attendance-dashboard-backend/internal/source"
	"attendance-dashboard-backend/internal/store"
)

// Source syncs and purges the record table.
type Source interface {
	SyncOnce(ctx context.Context) (source.SyncResult, error)
	Purge(ctx context.Context) (int64, error)
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store     store.Store
	auth      *auth.Manager
	source    Source
	purgeHash string
	export    config.ExportConfig
	webpush   *webpush.Options
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, authManager *auth.Manager, src Source, cfg *config.Config, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		store:     s,
		auth:      authManager,
		source:    src,
		purgeHash: cfg.Purge.PasswordHash,
		export:    cfg.Export,
		webpush:   webpushOptions,
	}
}

// Healthz reports whether the service can reach its database.
func (h *Handler) Healthz(c *gin.Context) {
	sqlDB, err := h.store.DB().DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// recordError writes the response for a failure to load or process records.
func recordError(c *gin.Context, err error) {
	if errors.Is(err, attendance.ErrInvalidRecord) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve records"})
}
