package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"travel_backend_project/cache"
	"travel_backend_project/middleware"
	"travel_backend_project/models"
	"travel_backend_project/notify"
)

// AlertController handles price alert requests. All routes require an
// authenticated user.
type AlertController struct {
	prices *cache.PriceCache
	hub    *notify.Hub
}

// NewAlertController creates a new alert controller
func NewAlertController(prices *cache.PriceCache, hub *notify.Hub) *AlertController {
	return &AlertController{prices: prices, hub: hub}
}

// CreateAlertRequest is the payload for creating a price alert
type CreateAlertRequest struct {
	Kind         string              `json:"kind" binding:"required"`
	SearchParams models.SearchParams `json:"search_params" binding:"required"`
	TargetPrice  decimal.Decimal     `json:"target_price" binding:"required"`
}

// CreateAlert creates a price alert for the authenticated user
// POST /api/v1/alerts
func (ac *AlertController) CreateAlert(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req CreateAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	kind, err := models.ParseSearchKind(req.Kind)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !req.TargetPrice.IsPositive() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "target_price must be positive"})
		return
	}

	alert := ac.prices.CreateAlert(c.Request.Context(), userID, kind, req.SearchParams, req.TargetPrice)
	if alert == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to create alert"})
		return
	}
	c.JSON(http.StatusCreated, alert)
}

// GetUserAlerts lists the authenticated user's alerts
// GET /api/v1/alerts
func (ac *AlertController) GetUserAlerts(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	alerts := ac.prices.GetUserAlerts(c.Request.Context(), userID)
	c.JSON(http.StatusOK, gin.H{
		"data":  alerts,
		"count": len(alerts),
	})
}

// DeleteAlert deletes one of the authenticated user's alerts
// DELETE /api/v1/alerts/:id
func (ac *AlertController) DeleteAlert(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	if !ac.prices.DeleteAlert(c.Request.Context(), c.Param("id"), userID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Alert not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// HandleNotifications attaches the authenticated user to the
// notification hub over WebSocket
// GET /ws/notifications
func (ac *AlertController) HandleNotifications(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	ac.hub.HandleWebSocket(c.Writer, c.Request, userID)
}
