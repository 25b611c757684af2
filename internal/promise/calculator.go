// Package promise computes delivery promises for candidate allocations.
// The model is deliberately simple: processing time gates the carrier
// handoff, the carrier's base transit sets the delivery date, and a line
// with no eligible carrier gets no promise at all.
package promise

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/fulfilld/sourcing-service/internal/carrier"
	"github.com/fulfilld/sourcing-service/internal/model"
)

// Calculator derives promise dates. Safe for concurrent use.
type Calculator struct {
	carriers      *carrier.Selector
	slowThreshold time.Duration
	logger        zerolog.Logger
}

// NewCalculator builds a calculator. slowThreshold <= 0 defaults to 100ms.
func NewCalculator(carriers *carrier.Selector, slowThreshold time.Duration) *Calculator {
	if slowThreshold <= 0 {
		slowThreshold = 100 * time.Millisecond
	}
	return &Calculator{
		carriers:      carriers,
		slowThreshold: slowThreshold,
		logger:        log.With().Str("component", "promise").Logger(),
	}
}

// Compute returns the promise for fulfilling item from loc with the given
// inventory position, or (nil, nil) when no carrier can take the line.
func (c *Calculator) Compute(ctx context.Context, item *model.OrderItem, loc *model.Location, inv *model.Inventory, order *model.OrderRequest, now time.Time) (*model.PromiseDateBreakdown, error) {
	started := time.Now()

	var distance *float64
	if order.HasCoordinates() {
		d := model.DistanceKm(*order.Latitude, *order.Longitude, loc.Latitude, loc.Longitude)
		distance = &d
	}

	cfg, err := c.carriers.SelectBest(ctx, item.DeliveryType, distance, item)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, nil
	}

	processingHours := inv.ProcessingTime * 24
	pickup := now.Add(time.Duration(processingHours) * time.Hour)
	delivery := pickup.Add(time.Duration(cfg.BaseTransitDays) * 24 * time.Hour)

	if elapsed := time.Since(started); elapsed >= c.slowThreshold {
		c.logger.Warn().
			Str("sku", item.SKU).
			Int("location_id", loc.ID).
			Dur("elapsed", elapsed).
			Msg("slow promise calculation")
	}

	return &model.PromiseDateBreakdown{
		LocationID:            loc.ID,
		CarrierCode:           cfg.CarrierCode,
		ServiceLevel:          cfg.ServiceLevel,
		EstimatedShipDate:     pickup,
		EstimatedDeliveryDate: delivery,
		TransitTimeDays:       cfg.BaseTransitDays,
		ProcessingTimeHours:   processingHours,
	}, nil
}

// ComputeBatch resolves promises for every order line concurrently. For
// each item the eligible locations are tried in filter order against the
// batched inventory; the first feasible pairing wins. Items with no
// feasible pairing are absent from the result.
func (c *Calculator) ComputeBatch(ctx context.Context, order *model.OrderRequest, eligibleByItem map[int][]model.Location, inventoryBySku map[string][]model.Inventory) map[int]*model.PromiseDateBreakdown {
	now := order.EffectiveOrderTime()
	results := make(map[int]*model.PromiseDateBreakdown, len(order.Items))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for i := range order.Items {
		g.Go(func() error {
			item := &order.Items[i]
			breakdown := c.firstFeasible(gctx, item, eligibleByItem[i], inventoryBySku[item.SKU], order, now)
			if breakdown != nil {
				mu.Lock()
				results[i] = breakdown
				mu.Unlock()
			}
			return nil
		})
	}
	g.Wait() //nolint:errcheck // per-item failures degrade to absence
	return results
}

// firstFeasible tries eligible locations in filter order. Locations that
// cover the full quantity are preferred; when none does, any stocked
// location still yields a promise so split fulfillment stays viable.
func (c *Calculator) firstFeasible(ctx context.Context, item *model.OrderItem, eligible []model.Location, positions []model.Inventory, order *model.OrderRequest, now time.Time) *model.PromiseDateBreakdown {
	for _, requireFull := range []bool{true, false} {
		for li := range eligible {
			loc := &eligible[li]
			inv := matchInventory(positions, loc.ID, item.Quantity)
			if inv == nil {
				continue
			}
			if requireFull && inv.Quantity < item.Quantity {
				continue
			}
			breakdown, err := c.Compute(ctx, item, loc, inv, order, now)
			if err != nil {
				c.logger.Warn().Err(err).
					Str("sku", item.SKU).
					Int("location_id", loc.ID).
					Msg("promise calculation failed, trying next location")
				continue
			}
			if breakdown != nil {
				return breakdown
			}
		}
	}
	return nil
}

// matchInventory prefers a row covering the full quantity but settles for
// any stocked row; a short position still supports split fulfillment.
func matchInventory(positions []model.Inventory, locationID, quantity int) *model.Inventory {
	var fallback *model.Inventory
	for i := range positions {
		if positions[i].LocationID != locationID || positions[i].Quantity <= 0 {
			continue
		}
		if positions[i].Quantity >= quantity {
			return &positions[i]
		}
		if fallback == nil {
			fallback = &positions[i]
		}
	}
	return fallback
}
