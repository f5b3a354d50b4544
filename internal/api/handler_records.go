package api

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"attendance-dashboard-backend/internal/attendance"
	"attendance-dashboard-backend/internal/auth"
	"attendance-dashboard-backend/internal/export"
	"attendance-dashboard-backend/internal/mw"
	"attendance-dashboard-backend/internal/parse"
	"attendance-dashboard-backend/internal/source"
)

// bindQuery reads the search and date parameters. It writes a 400 response and returns
// false when the date is malformed.
func bindQuery(c *gin.Context) (attendance.Query, bool) {
	q := attendance.Query{Search: strings.TrimSpace(c.Query("search"))}
	if raw := strings.TrimSpace(c.Query("date")); raw != "" {
		if _, err := time.Parse(parse.DateLayout, raw); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'date' format. Use YYYY-MM-DD."})
			return q, false
		}
		q.Date = raw
	}
	return q, true
}

// filteredRecords loads every record and applies the request's query.
func (h *Handler) filteredRecords(c *gin.Context) ([]attendance.Record, bool) {
	q, ok := bindQuery(c)
	if !ok {
		return nil, false
	}
	records, err := h.store.ListRecords(c.Request.Context())
	if err != nil {
		recordError(c, err)
		return nil, false
	}
	return attendance.Filter(records, q), true
}

// GetRecords handles GET /api/records.
func (h *Handler) GetRecords(c *gin.Context) {
	records, ok := h.filteredRecords(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, records)
}

// GetRecordsByWeekday handles GET /api/records/by-weekday.
func (h *Handler) GetRecordsByWeekday(c *gin.Context) {
	records, ok := h.filteredRecords(c)
	if !ok {
		return
	}
	groups, err := attendance.GroupByWeekday(records)
	if err != nil {
		recordError(c, err)
		return
	}
	c.JSON(http.StatusOK, groups)
}

// GetChart handles GET /api/records/chart. The search parameter is ignored; only the
// date narrows the chart.
func (h *Handler) GetChart(c *gin.Context) {
	q, ok := bindQuery(c)
	if !ok {
		return
	}
	records, err := h.store.ListRecords(c.Request.Context())
	if err != nil {
		recordError(c, err)
		return
	}

	buckets, err := attendance.HistogramOf(attendance.Filter(records, attendance.Query{Date: q.Date}))
	if err != nil {
		recordError(c, err)
		return
	}
	c.JSON(http.StatusOK, buckets)
}

// ExportRecords handles GET /api/records/export.
func (h *Handler) ExportRecords(c *gin.Context) {
	scope := c.DefaultQuery("scope", "all")
	var records []attendance.Record
	switch scope {
	case "all":
		var err error
		records, err = h.store.ListRecords(c.Request.Context())
		if err != nil {
			recordError(c, err)
			return
		}
	case "filtered":
		var ok bool
		records, ok = h.filteredRecords(c)
		if !ok {
			return
		}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "scope must be 'all' or 'filtered'"})
		return
	}

	var buf bytes.Buffer
	if err := export.WriteWorkbook(&buf, h.export.SheetName, records); err != nil {
		log.Printf("Error exporting %d records: %v", len(records), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to export records"})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, h.export.FileName))
	c.Data(http.StatusOK, export.ContentType, buf.Bytes())
}

type purgeRequest struct {
	Password string `json:"password" binding:"required"`
}

// PurgeRecords handles DELETE /api/records.
func (h *Handler) PurgeRecords(c *gin.Context) {
	var req purgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password is required"})
		return
	}
	if !auth.CheckPassword(h.purgeHash, req.Password) {
		c.JSON(http.StatusForbidden, gin.H{"error": "incorrect password"})
		return
	}

	deleted, err := h.source.Purge(c.Request.Context())
	if errors.Is(err, source.ErrPurgeInProgress) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		log.Printf("Error purging records: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete records"})
		return
	}

	if claims, ok := mw.ClaimsFrom(c); ok {
		log.Printf("User %s purged %d records", claims.Email, deleted)
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

// TriggerSync handles POST /api/sync.
func (h *Handler) TriggerSync(c *gin.Context) {
	result, err := h.source.SyncOnce(c.Request.Context())
	if err != nil {
		log.Printf("Error running requested sync: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "result": result})
		return
	}
	c.JSON(http.StatusOK, result)
}
