package model

import "time"

// DeliveryTiming is the promise attached to one allocation.
type DeliveryTiming struct {
	EstimatedShipDate     time.Time `json:"estimatedShipDate"`
	EstimatedDeliveryDate time.Time `json:"estimatedDeliveryDate"`
	TransitTimeDays       int       `json:"transitTimeDays"`
	ProcessingTimeHours   int       `json:"processingTimeHours"`
}

// LocationAllocation assigns part of a line to one location.
type LocationAllocation struct {
	LocationID        int             `json:"locationId"`
	LocationName      string          `json:"locationName"`
	AllocatedQuantity int             `json:"allocatedQuantity"`
	LocationScore     float64         `json:"locationScore"`
	DeliveryTiming    *DeliveryTiming `json:"deliveryTiming,omitempty"`
}

// FulfillmentPlan is the sourcing outcome for one order line.
type FulfillmentPlan struct {
	SKU                  string               `json:"sku"`
	RequestedQuantity    int                  `json:"requestedQuantity"`
	TotalFulfilled       int                  `json:"totalFulfilled"`
	IsPartialFulfillment bool                 `json:"isPartialFulfillment"`
	OverallScore         float64              `json:"overallScore"`
	LocationAllocations  []LocationAllocation `json:"locationAllocations"`
}

// FilterRuleMetrics is one filter's evaluation counters.
type FilterRuleMetrics struct {
	Executions           int64   `json:"executions"`
	TotalTimeMs          int64   `json:"totalTimeMs"`
	PrecomputedHits      int64   `json:"precomputedHits"`
	ComputedExecutions   int64   `json:"computedExecutions"`
	Errors               int64   `json:"errors"`
	AverageExecutionTime float64 `json:"averageExecutionTime"`
}

// FilterMetricsSnapshot is the rule engine counter set included in
// response metadata and the health endpoint. Filters breaks the
// aggregate down by filter id.
type FilterMetricsSnapshot struct {
	TotalExecutions      int64                        `json:"totalExecutions"`
	TotalTimeMs          int64                        `json:"totalTimeMs"`
	PrecomputedHits      int64                        `json:"precomputedHits"`
	ComputedExecutions   int64                        `json:"computedExecutions"`
	Errors               int64                        `json:"errors"`
	AverageExecutionTime float64                      `json:"averageExecutionTime"`
	CacheHitRate         float64                      `json:"cacheHitRate"`
	Filters              map[string]FilterRuleMetrics `json:"filters,omitempty"`
}

// ResponseMetadata carries diagnostics about how the request was processed.
type ResponseMetadata struct {
	Strategy            string                 `json:"strategy"`
	ProcessingTimeMs    int64                  `json:"processingTimeMs"`
	FilterTimeMs        int64                  `json:"filterTimeMs"`
	PromiseTimeMs       int64                  `json:"promiseTimeMs"`
	PerformanceWarnings []string               `json:"performanceWarnings,omitempty"`
	FilterMetrics       *FilterMetricsSnapshot `json:"filterMetrics,omitempty"`
	Error               string                 `json:"error,omitempty"`
}

// SourcingResponse is the engine output. FulfillmentPlans is never nil:
// failures produce an empty slice plus diagnostic metadata.
type SourcingResponse struct {
	OrderID          string            `json:"orderId"`
	RequestID        string            `json:"requestId"`
	ProcessedAt      time.Time         `json:"processedAt"`
	FulfillmentPlans []FulfillmentPlan `json:"fulfillmentPlans"`
	Metadata         ResponseMetadata  `json:"metadata"`
}
