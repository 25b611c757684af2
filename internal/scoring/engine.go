// Package scoring resolves scoring configurations and computes location
// scores and split penalties for the fulfillment optimizer.
package scoring

import (
	"context"
	"math"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fulfilld/sourcing-service/internal/cache"
	"github.com/fulfilld/sourcing-service/internal/model"
)

// DefaultConfigID is the well-known row tenants seed to override the
// built-in fallback weights.
const DefaultConfigID = "DEFAULT_SCORING"

// ConfigSource supplies scoring configuration rows. FindActiveByID returns
// (nil, nil) when the row does not exist or is inactive.
type ConfigSource interface {
	FindActiveByID(ctx context.Context, id string) (*model.ScoringConfiguration, error)
}

// ScoreContext carries the per-candidate inputs that come from inventory
// and geography rather than the location row itself.
type ScoreContext struct {
	ProcessingTime int
	InventoryRatio float64
	Distance       *float64 // nil when the order has no coordinates
}

// Engine resolves configurations (with TTL caching) and applies the
// scoring formulas. Safe for concurrent use.
type Engine struct {
	source ConfigSource
	store  *cache.Store
	logger zerolog.Logger
}

// NewEngine builds a scoring engine. store may be nil to disable caching.
func NewEngine(source ConfigSource, store *cache.Store) *Engine {
	return &Engine{
		source: source,
		store:  store,
		logger: log.With().Str("component", "scoring").Logger(),
	}
}

// ConfigForItem resolves the configuration for an order line: the item's
// scoringConfigurationId when active, else the DEFAULT_SCORING row, else
// the built-in defaults.
func (e *Engine) ConfigForItem(ctx context.Context, item *model.OrderItem) *model.ScoringConfiguration {
	if item.ScoringConfigurationID != "" {
		if cfg := e.lookup(ctx, item.ScoringConfigurationID); cfg != nil {
			return cfg
		}
		e.logger.Debug().
			Str("config_id", item.ScoringConfigurationID).
			Str("sku", item.SKU).
			Msg("scoring configuration not found, falling back to default")
	}
	return e.DefaultConfig(ctx)
}

// DefaultConfig returns the DEFAULT_SCORING row when present, else the
// built-in weight set.
func (e *Engine) DefaultConfig(ctx context.Context) *model.ScoringConfiguration {
	if cfg := e.lookup(ctx, DefaultConfigID); cfg != nil {
		return cfg
	}
	return BuiltinDefault()
}

func (e *Engine) lookup(ctx context.Context, id string) *model.ScoringConfiguration {
	if e.store != nil {
		if v, ok := e.store.Get(id); ok {
			return v.(*model.ScoringConfiguration)
		}
	}
	cfg, err := e.source.FindActiveByID(ctx, id)
	if err != nil {
		e.logger.Error().Err(err).Str("config_id", id).Msg("scoring configuration load failed")
		return nil
	}
	if cfg == nil {
		return nil
	}
	if e.store != nil {
		e.store.Set(id, cfg)
	}
	return cfg
}

// LocationScore applies the weighted scoring formula to one candidate.
func (e *Engine) LocationScore(loc *model.Location, cfg *model.ScoringConfiguration, item *model.OrderItem, sctx ScoreContext) float64 {
	score := float64(loc.TransitTime) * cfg.TransitTimeWeight
	score += float64(sctx.ProcessingTime) * cfg.ProcessingTimeWeight
	score += sctx.InventoryRatio * cfg.InventoryWeight

	if item.IsExpressPriority && loc.TransitTime <= 1 {
		score += cfg.ExpressWeight
	}
	if sctx.Distance != nil && *sctx.Distance <= cfg.DistanceThreshold {
		score += *sctx.Distance * cfg.DistanceWeight
	}
	return score
}

// SplitPenalty computes the cost of splitting a line across locations.
// A single location never incurs a penalty.
func (e *Engine) SplitPenalty(locationCount int, totalValue float64, cfg *model.ScoringConfiguration, item *model.OrderItem) float64 {
	if locationCount <= 1 {
		return 0
	}
	penalty := cfg.SplitPenaltyBase
	penalty += math.Pow(float64(locationCount-1), cfg.SplitPenaltyExponent) * cfg.SplitPenaltyMultiplier
	if totalValue > cfg.HighValueThreshold {
		penalty += cfg.HighValuePenalty
	}
	switch item.DeliveryType {
	case model.DeliverySameDay:
		penalty += cfg.SameDayPenalty
	case model.DeliveryNextDay:
		penalty += cfg.NextDayPenalty
	}
	return penalty
}

// WeightsMap exposes a configuration to the rule environment.
func WeightsMap(cfg *model.ScoringConfiguration) map[string]any {
	return map[string]any{
		"transitTimeWeight":      cfg.TransitTimeWeight,
		"processingTimeWeight":   cfg.ProcessingTimeWeight,
		"inventoryWeight":        cfg.InventoryWeight,
		"expressWeight":          cfg.ExpressWeight,
		"splitPenaltyBase":       cfg.SplitPenaltyBase,
		"splitPenaltyExponent":   cfg.SplitPenaltyExponent,
		"splitPenaltyMultiplier": cfg.SplitPenaltyMultiplier,
		"highValueThreshold":     cfg.HighValueThreshold,
		"highValuePenalty":       cfg.HighValuePenalty,
		"sameDayPenalty":         cfg.SameDayPenalty,
		"nextDayPenalty":         cfg.NextDayPenalty,
		"distanceWeight":         cfg.DistanceWeight,
		"distanceThreshold":      cfg.DistanceThreshold,
		"baseConfidence":         cfg.BaseConfidence,
		"peakSeasonAdjustment":   cfg.PeakSeasonAdjustment,
		"weatherAdjustment":      cfg.WeatherAdjustment,
		"hazmatAdjustment":       cfg.HazmatAdjustment,
	}
}

// BuiltinDefault is the hard-coded fallback used when no DEFAULT_SCORING
// row has been seeded.
func BuiltinDefault() *model.ScoringConfiguration {
	return &model.ScoringConfiguration{
		ID:                     DefaultConfigID,
		Name:                   "Default Scoring Configuration",
		Description:            "Fallback weights used when no configuration row exists",
		Category:               "DEFAULT",
		ExecutionPriority:      999,
		IsActive:               true,
		TransitTimeWeight:      -10.0,
		ProcessingTimeWeight:   -5.0,
		InventoryWeight:        50.0,
		ExpressWeight:          20.0,
		SplitPenaltyBase:       15.0,
		SplitPenaltyExponent:   1.5,
		SplitPenaltyMultiplier: 10.0,
		HighValueThreshold:     500.0,
		HighValuePenalty:       20.0,
		SameDayPenalty:         25.0,
		NextDayPenalty:         15.0,
		DistanceWeight:         -0.5,
		DistanceThreshold:      100.0,
		BaseConfidence:         0.8,
		PeakSeasonAdjustment:   -0.1,
		WeatherAdjustment:      -0.05,
		HazmatAdjustment:       -0.15,
	}
}
