package model

import "time"

// Delivery types accepted on order items.
const (
	DeliverySameDay       = "SAME_DAY"
	DeliveryNextDay       = "NEXT_DAY"
	DeliveryStandard      = "STANDARD"
	DeliveryShipFromStore = "SHIP_FROM_STORE"
)

// Location is a fulfillment node (warehouse, store, dark store).
type Location struct {
	ID          int       `json:"id"`
	Name        string    `json:"name"`
	TransitTime int       `json:"transit_time"` // days, node-level default
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Inventory is the available-to-promise position of a SKU at a location.
type Inventory struct {
	ID             int    `json:"id"`
	LocationID     int    `json:"location_id"`
	SKU            string `json:"sku"`
	Quantity       int    `json:"quantity"`        // available to promise
	ProcessingTime int    `json:"processing_time"` // days before carrier handoff
}

// LocationFilter is an operator-authored eligibility rule. FilterScript is
// source text in the rules expression language, evaluated per location.
type LocationFilter struct {
	ID                   string    `json:"id"`
	Name                 string    `json:"name"`
	Description          *string   `json:"description"`
	FilterScript         string    `json:"filter_script"`
	IsActive             bool      `json:"is_active"`
	EnablePrecomputation bool      `json:"enable_precomputation"`
	CacheTTLMinutes      int       `json:"cache_ttl_minutes"`
	ExecutionPriority    int       `json:"execution_priority"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// CarrierConfiguration describes one carrier service offering for a
// delivery type. Time-of-day fields are "HH:MM" strings as stored.
type CarrierConfiguration struct {
	ID                    int      `json:"id"`
	CarrierCode           string   `json:"carrier_code"`
	ServiceLevel          string   `json:"service_level"`
	DeliveryType          string   `json:"delivery_type"`
	BaseTransitDays       int      `json:"base_transit_days"`
	MaxTransitDays        *int     `json:"max_transit_days"`
	TransitTimeMultiplier float64  `json:"transit_time_multiplier"`
	PickupCutoffTime      *string  `json:"pickup_cutoff_time"`
	NextPickupTime        *string  `json:"next_pickup_time"`
	DeliveryStartTime     *string  `json:"delivery_start_time"`
	DeliveryEndTime       *string  `json:"delivery_end_time"`
	WeekendPickup         bool     `json:"weekend_pickup"`
	WeekendDelivery       bool     `json:"weekend_delivery"`
	MaxDistanceKm         *float64 `json:"max_distance_km"`
	CarrierPriority       int      `json:"carrier_priority"`
	SupportsHazmat        bool     `json:"supports_hazmat"`
	SupportsColdChain     bool     `json:"supports_cold_chain"`
	SupportsHighValue     bool     `json:"supports_high_value"`
	MaxValueLimit         *float64 `json:"max_value_limit"`
	OnTimePerformance     *float64 `json:"on_time_performance"`
	PeakSeasonDelayDays   int      `json:"peak_season_delay_days"`
	IsActive              bool     `json:"is_active"`
}

// ScoringConfiguration holds the weight set used to score locations and
// penalize shipment splits. Rows are keyed by a string ID so orders can
// reference tenant-specific configurations per item.
type ScoringConfiguration struct {
	ID                     string  `json:"id"`
	Name                   string  `json:"name"`
	Description            string  `json:"description"`
	Category               string  `json:"category"`
	ExecutionPriority      int     `json:"execution_priority"`
	IsActive               bool    `json:"is_active"`
	TransitTimeWeight      float64 `json:"transit_time_weight"`
	ProcessingTimeWeight   float64 `json:"processing_time_weight"`
	InventoryWeight        float64 `json:"inventory_weight"`
	ExpressWeight          float64 `json:"express_weight"`
	SplitPenaltyBase       float64 `json:"split_penalty_base"`
	SplitPenaltyExponent   float64 `json:"split_penalty_exponent"`
	SplitPenaltyMultiplier float64 `json:"split_penalty_multiplier"`
	HighValueThreshold     float64 `json:"high_value_threshold"`
	HighValuePenalty       float64 `json:"high_value_penalty"`
	SameDayPenalty         float64 `json:"same_day_penalty"`
	NextDayPenalty         float64 `json:"next_day_penalty"`
	DistanceWeight         float64 `json:"distance_weight"`
	DistanceThreshold      float64 `json:"distance_threshold"`
	BaseConfidence         float64 `json:"base_confidence"`
	PeakSeasonAdjustment   float64 `json:"peak_season_adjustment"`
	WeatherAdjustment      float64 `json:"weather_adjustment"`
	HazmatAdjustment       float64 `json:"hazmat_adjustment"`
}

// PromiseDateBreakdown is the delivery timing computed for one candidate
// (item, location) pairing. A nil breakdown means the pairing is infeasible.
type PromiseDateBreakdown struct {
	LocationID            int       `json:"location_id"`
	CarrierCode           string    `json:"carrier_code"`
	ServiceLevel          string    `json:"service_level"`
	EstimatedShipDate     time.Time `json:"estimated_ship_date"`
	EstimatedDeliveryDate time.Time `json:"estimated_delivery_date"`
	TransitTimeDays       int       `json:"transit_time_days"`
	ProcessingTimeHours   int       `json:"processing_time_hours"`
}
