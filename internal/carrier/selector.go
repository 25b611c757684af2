// Package carrier picks carrier configurations for order lines and models
// transit and pickup timing.
package carrier

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fulfilld/sourcing-service/internal/cache"
	"github.com/fulfilld/sourcing-service/internal/model"
)

// ConfigSource supplies active carrier configurations for a delivery type,
// ordered by ascending carrier priority.
type ConfigSource interface {
	FindActiveByDeliveryType(ctx context.Context, deliveryType string) ([]model.CarrierConfiguration, error)
}

// Selector chooses the best carrier for a line. Safe for concurrent use.
type Selector struct {
	source ConfigSource
	store  *cache.Store
	logger zerolog.Logger
}

// NewSelector builds a selector. store caches the per-delivery-type config
// lists; nil disables caching.
func NewSelector(source ConfigSource, store *cache.Store) *Selector {
	return &Selector{
		source: source,
		store:  store,
		logger: log.With().Str("component", "carrier").Logger(),
	}
}

// SelectBest returns the highest-priority carrier that can handle the line
// at the given distance, or nil when none qualifies. distanceKm may be nil
// when the order has no coordinates; range checks are then skipped.
func (s *Selector) SelectBest(ctx context.Context, deliveryType string, distanceKm *float64, item *model.OrderItem) (*model.CarrierConfiguration, error) {
	configs, err := s.configs(ctx, deliveryType)
	if err != nil {
		return nil, err
	}
	for i := range configs {
		c := &configs[i]
		if !s.eligible(c, distanceKm, item) {
			continue
		}
		out := *c
		return &out, nil
	}
	s.logger.Debug().
		Str("delivery_type", deliveryType).
		Str("sku", item.SKU).
		Msg("no eligible carrier")
	return nil, nil
}

func (s *Selector) eligible(c *model.CarrierConfiguration, distanceKm *float64, item *model.OrderItem) bool {
	if c.MaxDistanceKm != nil && distanceKm != nil && *distanceKm > *c.MaxDistanceKm {
		return false
	}
	if item.IsHazmat && !c.SupportsHazmat {
		return false
	}
	if item.RequiresColdChain && !c.SupportsColdChain {
		return false
	}
	if item.RequiresHighSecurity() && !c.SupportsHighValue {
		return false
	}
	if c.MaxValueLimit != nil && item.Value() > *c.MaxValueLimit {
		return false
	}
	return true
}

func (s *Selector) configs(ctx context.Context, deliveryType string) ([]model.CarrierConfiguration, error) {
	if s.store != nil {
		if v, ok := s.store.Get(deliveryType); ok {
			return v.([]model.CarrierConfiguration), nil
		}
	}
	configs, err := s.source.FindActiveByDeliveryType(ctx, deliveryType)
	if err != nil {
		return nil, fmt.Errorf("loading carriers for %s: %w", deliveryType, err)
	}
	if s.store != nil {
		s.store.Set(deliveryType, configs)
	}
	return configs, nil
}
