// Package handlers exposes the sourcing engine over HTTP.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/fulfilld/sourcing-service/internal/filter"
	"github.com/fulfilld/sourcing-service/internal/model"
	"github.com/fulfilld/sourcing-service/internal/sourcing"
)

// Package-level engine instances, wired once at startup.
var (
	orchestrator *sourcing.Orchestrator
	filterEngine *filter.Engine
	filterSource filter.FilterSource
)

// InitEngines wires the handler package to the engines. Must be called
// before the routes are served.
func InitEngines(o *sourcing.Orchestrator, fe *filter.Engine, fs filter.FilterSource) {
	orchestrator = o
	filterEngine = fe
	filterSource = fs
}

// SourceOrder handles POST /api/sourcing/source. The engine itself never
// fails outward, so anything past binding is a 200 with diagnostics in
// the response metadata.
func SourceOrder(c *gin.Context) {
	var req model.OrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp := orchestrator.Source(c.Request.Context(), &req)
	c.JSON(http.StatusOK, resp)
}

// FilterValidation is one row of the validate response.
type FilterValidation struct {
	FilterID string `json:"filterId"`
	Valid    bool   `json:"valid"`
}

// ValidateResponse reports whether an order's filters are usable.
type ValidateResponse struct {
	OrderID string             `json:"orderId"`
	Valid   bool               `json:"valid"`
	Filters []FilterValidation `json:"filters"`
}

// ValidateOrder handles POST /api/sourcing/validate. It checks that every
// filter the order references exists and is active, without sourcing.
func ValidateOrder(c *gin.Context) {
	var req model.OrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp := ValidateResponse{OrderID: req.OrderID, Valid: true}
	seen := make(map[string]bool)
	for _, item := range req.Items {
		if seen[item.LocationFilterID] {
			continue
		}
		seen[item.LocationFilterID] = true

		def, err := filterSource.FindByID(c.Request.Context(), item.LocationFilterID)
		if err != nil {
			log.Error().Err(err).Str("filter_id", item.LocationFilterID).Msg("filter lookup failed during validation")
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "filter lookup failed"})
			return
		}
		valid := def != nil
		if !valid {
			resp.Valid = false
		}
		resp.Filters = append(resp.Filters, FilterValidation{FilterID: item.LocationFilterID, Valid: valid})
	}
	c.JSON(http.StatusOK, resp)
}
