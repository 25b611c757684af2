package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fulfilld/sourcing-service/internal/database"
	"github.com/fulfilld/sourcing-service/internal/model"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status        string                       `json:"status"`
	Database      string                       `json:"database"`
	FilterMetrics *model.FilterMetricsSnapshot `json:"filterMetrics,omitempty"`
}

// HealthCheck handles the health check endpoint
func HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status: "ok",
	}

	if filterEngine != nil {
		snapshot := filterEngine.Metrics()
		response.FilterMetrics = &snapshot
	}

	// Check database connection
	if database.Pool() != nil {
		err := database.Status(c.Request.Context())
		if err != nil {
			response.Database = "disconnected"
			c.JSON(http.StatusServiceUnavailable, response)
			return
		}
		response.Database = "connected"
	} else {
		response.Database = "not configured"
	}

	c.JSON(http.StatusOK, response)
}
