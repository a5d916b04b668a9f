package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/postpilot/internal/logger"
)

func (h handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (h handler) postingStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.deps.Scheduler.GetStats())
}

func (h handler) diversityStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.deps.Diversity.GetStats())
}

func (h handler) rateLimitStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.deps.Limiter.GetUsage())
}

type adjustPatternRequest struct {
	Pattern string `json:"pattern" binding:"required"`
}

func (h handler) adjustPattern(c *gin.Context) {
	var req adjustPatternRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "pattern is required"})
		return
	}

	if !h.deps.Scheduler.AdjustPattern(req.Pattern) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown pattern: " + req.Pattern})
		return
	}

	name, pattern := h.deps.Scheduler.ActivePattern()
	c.JSON(http.StatusOK, gin.H{"pattern": name, "config": pattern})
}

func (h handler) postHistory(c *gin.Context) {
	history := h.deps.Scheduler.History()
	c.JSON(http.StatusOK, gin.H{"count": len(history), "posts": history})
}

func (h handler) archiveSummary(c *gin.Context) {
	summary, err := h.deps.Archive.GetSummary(c.Request.Context())
	if err != nil {
		h.deps.Logger.Error("Archive summary failed", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "archive unavailable"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h handler) archiveRecent(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	entries, err := h.deps.Archive.Recent(c.Request.Context(), limit)
	if err != nil {
		h.deps.Logger.Error("Archive query failed", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "archive unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(entries), "entries": entries})
}
