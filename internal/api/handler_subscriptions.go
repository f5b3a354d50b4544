package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"attendance-dashboard-backend/internal/model"
	"attendance-dashboard-backend/internal/mw"
	"attendance-dashboard-backend/internal/store"
)

type putSubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
	P256DH   string `json:"p256dh" binding:"required"`
	Auth     string `json:"auth" binding:"required"`
}

type subscriptionResponse struct {
	Endpoint  string    `json:"endpoint"`
	CreatedAt time.Time `json:"created_at"`
}

// PutSubscription handles the creation or replacement of the caller's subscription.
func (h *Handler) PutSubscription(c *gin.Context) {
	var req putSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	claims, _ := mw.ClaimsFrom(c)

	subscription := model.PushSubscription{
		Endpoint: req.Endpoint,
		P256DH:   req.P256DH,
		Auth:     req.Auth,
		UserID:   claims.UserID,
	}
	err := h.store.SaveSubscription(c.Request.Context(), &subscription)
	if errors.Is(err, store.ErrSubscriptionTaken) {
		c.JSON(http.StatusConflict, gin.H{"error": "subscription belongs to another user"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Status(http.StatusCreated)
}

type deleteSubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}

// DeleteSubscription handles the deletion of one of the caller's subscriptions.
func (h *Handler) DeleteSubscription(c *gin.Context) {
	var req deleteSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	claims, _ := mw.ClaimsFrom(c)

	err := h.store.DeleteSubscription(c.Request.Context(), claims.UserID, req.Endpoint)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "subscription not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Status(http.StatusNoContent)
}

// GetSubscription lists the caller's subscriptions, or looks up a single one when the
// endpoint query parameter is given.
func (h *Handler) GetSubscription(c *gin.Context) {
	claims, _ := mw.ClaimsFrom(c)

	subs, err := h.store.SubscriptionsForUser(c.Request.Context(), claims.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	endpoint, filtered := c.GetQuery("endpoint")
	if filtered && endpoint == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "endpoint is required"})
		return
	}

	response := make([]subscriptionResponse, 0, len(subs))
	for _, sub := range subs {
		if filtered && sub.Endpoint != endpoint {
			continue
		}
		response = append(response, subscriptionResponse{Endpoint: sub.Endpoint, CreatedAt: sub.CreatedAt})
	}

	if filtered {
		if len(response) == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "subscription not found"})
			return
		}
		c.JSON(http.StatusOK, response[0])
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscriptions": response})
}

// GetVAPIDPublicKey returns the key browsers need to subscribe to expiry warnings.
func (h *Handler) GetVAPIDPublicKey(c *gin.Context) {
	if h.webpush == nil || h.webpush.VAPIDPublicKey == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "push notifications are disabled"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"public_key": h.webpush.VAPIDPublicKey})
}
