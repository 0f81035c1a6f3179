package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"travel_backend_project/cache"
	"travel_backend_project/models"
	"travel_backend_project/scheduler"
)

// MonitorController handles monitoring job and cached price requests
type MonitorController struct {
	scheduler *scheduler.PriceScheduler
	prices    *cache.PriceCache
}

// NewMonitorController creates a new monitor controller
func NewMonitorController(sched *scheduler.PriceScheduler, prices *cache.PriceCache) *MonitorController {
	return &MonitorController{scheduler: sched, prices: prices}
}

// AddJobRequest is the payload for registering a monitoring job
type AddJobRequest struct {
	Kind         string              `json:"kind" binding:"required"`
	SearchParams models.SearchParams `json:"search_params" binding:"required"`
	PriorityTier string              `json:"priority_tier" binding:"required"`
	OwnerUserID  string              `json:"owner_user_id"`
}

// AddJob registers a new monitoring job
// POST /api/v1/monitor/jobs
func (mc *MonitorController) AddJob(c *gin.Context) {
	var req AddJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	jobID, err := mc.scheduler.AddJob(
		models.SearchKind(req.Kind),
		req.SearchParams,
		models.PriorityTier(req.PriorityTier),
		req.OwnerUserID,
	)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"job_id": jobID})
}

// RemoveJob deletes a monitoring job
// DELETE /api/v1/monitor/jobs/:id
func (mc *MonitorController) RemoveJob(c *gin.Context) {
	jobID := c.Param("id")
	if !mc.scheduler.RemoveJob(jobID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": true})
}

// GetJob returns one monitoring job
// GET /api/v1/monitor/jobs/:id
func (mc *MonitorController) GetJob(c *gin.Context) {
	job, ok := mc.scheduler.GetJob(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}
	c.JSON(http.StatusOK, job)
}

// GetStats returns the scheduler's observable state
// GET /api/v1/monitor/stats
func (mc *MonitorController) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, mc.scheduler.Stats())
}

// searchParamsFromQuery builds search params from the query string,
// skipping reserved parameters
func searchParamsFromQuery(c *gin.Context, reserved ...string) models.SearchParams {
	skip := make(map[string]bool, len(reserved))
	for _, key := range reserved {
		skip[key] = true
	}
	params := models.SearchParams{}
	for key, values := range c.Request.URL.Query() {
		if skip[key] || len(values) == 0 {
			continue
		}
		params[key] = values[0]
	}
	return params
}

// GetCachedPrice returns the cached quote set for a search
// GET /api/v1/prices/:kind?origin=NYC&destination=LAX&...
func (mc *MonitorController) GetCachedPrice(c *gin.Context) {
	kind, err := models.ParseSearchKind(c.Param("kind"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	params := searchParamsFromQuery(c)
	if len(params) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "search params are required"})
		return
	}

	quoteSet, ok := mc.prices.GetCachedPrice(c.Request.Context(), kind, params)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "No cached price for this search"})
		return
	}
	c.JSON(http.StatusOK, quoteSet)
}

// GetPriceHistory returns the price history for a search
// GET /api/v1/prices/:kind/history?days=14&origin=NYC&...
func (mc *MonitorController) GetPriceHistory(c *gin.Context) {
	kind, err := models.ParseSearchKind(c.Param("kind"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))
	params := searchParamsFromQuery(c, "days")
	if len(params) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "search params are required"})
		return
	}

	points := mc.prices.GetPriceHistory(c.Request.Context(), kind, params, days)
	c.JSON(http.StatusOK, gin.H{
		"data":  points,
		"count": len(points),
		"days":  days,
	})
}
