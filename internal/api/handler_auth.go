package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"attendance-dashboard-backend/internal/auth"
	"attendance-dashboard-backend/internal/mw"
)

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login handles POST /api/auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	token, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		log.Printf("Error signing in %s: %v", req.Email, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to sign in"})
		return
	}

	c.JSON(http.StatusOK, token)
}

// Logout handles POST /api/auth/logout.
func (h *Handler) Logout(c *gin.Context) {
	claims, _ := mw.ClaimsFrom(c)
	if err := h.auth.Logout(c.Request.Context(), claims.SessionID()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to sign out"})
		return
	}
	c.Status(http.StatusNoContent)
}

// GetSession handles GET /api/auth/session.
func (h *Handler) GetSession(c *gin.Context) {
	claims, _ := mw.ClaimsFrom(c)
	status, err := h.auth.Status(c.Request.Context(), claims.SessionID())
	switch {
	case err == nil:
		c.JSON(http.StatusOK, status)
	case errors.Is(err, auth.ErrSessionExpired), errors.Is(err, auth.ErrInvalidToken):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read session"})
	}
}
