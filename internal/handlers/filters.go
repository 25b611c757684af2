package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fulfilld/sourcing-service/internal/cache"
)

// FilterMetrics handles GET /api/filters/metrics.
func FilterMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, filterEngine.Metrics())
}

// InvalidateFilter handles POST /api/filters/invalidate/:id. The next
// evaluation of the filter recompiles and recomputes from scratch.
func InvalidateFilter(c *gin.Context) {
	id := c.Param("id")
	filterEngine.Invalidate(id)
	c.JSON(http.StatusOK, gin.H{"invalidated": id})
}

// InvalidateAllFilters handles POST /api/filters/invalidate.
func InvalidateAllFilters(c *gin.Context) {
	filterEngine.InvalidateAll()
	c.JSON(http.StatusOK, gin.H{"invalidated": "all"})
}

// WarmupFilters handles POST /api/filters/warmup. The sweep runs in the
// background; the request returns immediately.
func WarmupFilters(c *gin.Context) {
	go filterEngine.WarmStart(context.Background())
	c.JSON(http.StatusAccepted, gin.H{"status": "warmup started"})
}

// ListCaches handles GET /api/caches, a diagnostic view of the named
// reference-data caches.
func ListCaches(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"caches": cache.Sizes()})
}
