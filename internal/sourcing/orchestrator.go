// Package sourcing orchestrates the order sourcing pipeline: strategy
// decision, concurrent filter/inventory fan-out, promise calculation, and
// fulfillment plan assembly. The entry point never fails outward; every
// error degrades into an empty-plan response with diagnostic metadata.
package sourcing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/fulfilld/sourcing-service/internal/filter"
	"github.com/fulfilld/sourcing-service/internal/inventory"
	"github.com/fulfilld/sourcing-service/internal/model"
	"github.com/fulfilld/sourcing-service/internal/optimizer"
	"github.com/fulfilld/sourcing-service/internal/promise"
	"github.com/fulfilld/sourcing-service/internal/scoring"
)

// Sourcing strategies.
const (
	StrategyBatch      = "BATCH"
	StrategySequential = "SEQUENTIAL"
)

// Config tunes the orchestrator.
type Config struct {
	// RequestTimeout bounds one sourcing request. Default 5s.
	RequestTimeout time.Duration
	// FilterWarnThreshold flags slow filter stages. Default 200ms.
	FilterWarnThreshold time.Duration
	// PromiseWarnThreshold flags slow promise stages. Default 100ms.
	PromiseWarnThreshold time.Duration
	// BatchItemThreshold: item count at or above which batch mode kicks in. Default 3.
	BatchItemThreshold int
	// BatchQuantityThreshold: total quantity at or above which batch mode kicks in. Default 10.
	BatchQuantityThreshold int
	// LargeItemQuantity: single line quantity above which the order is "large". Default 10.
	LargeItemQuantity int
	// LargeOrderItems: item count above which the order is "large". Default 5.
	LargeOrderItems int
	// SequentialMaxQuantity: single-line quantity cap for the sequential path. Default 5.
	SequentialMaxQuantity int
}

func (c *Config) applyDefaults() {
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 5 * time.Second
	}
	if c.FilterWarnThreshold <= 0 {
		c.FilterWarnThreshold = 200 * time.Millisecond
	}
	if c.PromiseWarnThreshold <= 0 {
		c.PromiseWarnThreshold = 100 * time.Millisecond
	}
	if c.BatchItemThreshold <= 0 {
		c.BatchItemThreshold = 3
	}
	if c.BatchQuantityThreshold <= 0 {
		c.BatchQuantityThreshold = 10
	}
	if c.LargeItemQuantity <= 0 {
		c.LargeItemQuantity = 10
	}
	if c.LargeOrderItems <= 0 {
		c.LargeOrderItems = 5
	}
	if c.SequentialMaxQuantity <= 0 {
		c.SequentialMaxQuantity = 5
	}
}

// Orchestrator runs sourcing requests. Safe for concurrent use.
type Orchestrator struct {
	filters   *filter.Engine
	inventory *inventory.Reader
	promises  *promise.Calculator
	optimizer *optimizer.Optimizer
	scorer    *scoring.Engine
	cfg       Config
	tracer    trace.Tracer
	logger    zerolog.Logger
}

// NewOrchestrator wires the pipeline.
func NewOrchestrator(filters *filter.Engine, inv *inventory.Reader, promises *promise.Calculator, opt *optimizer.Optimizer, scorer *scoring.Engine, cfg Config) *Orchestrator {
	cfg.applyDefaults()
	return &Orchestrator{
		filters:   filters,
		inventory: inv,
		promises:  promises,
		optimizer: opt,
		scorer:    scorer,
		cfg:       cfg,
		tracer:    otel.Tracer("sourcing"),
		logger:    log.With().Str("component", "sourcing").Logger(),
	}
}

// DecideStrategy picks the processing mode for an order.
func (o *Orchestrator) DecideStrategy(order *model.OrderRequest) string {
	items := len(order.Items)
	totalQty := order.TotalQuantity()

	large := items > o.cfg.LargeOrderItems
	for _, item := range order.Items {
		if item.Quantity > o.cfg.LargeItemQuantity {
			large = true
			break
		}
	}

	if items >= o.cfg.BatchItemThreshold ||
		totalQty >= o.cfg.BatchQuantityThreshold ||
		order.DistinctDeliveryTypes() > 1 ||
		large {
		return StrategyBatch
	}

	if items == 1 && !order.Items[0].IsTimeSensitive() && order.Items[0].Quantity <= o.cfg.SequentialMaxQuantity {
		return StrategySequential
	}
	return StrategyBatch
}

// Source runs the full pipeline for one order. The returned response is
// always well formed: FulfillmentPlans is empty, never nil, on failure.
func (o *Orchestrator) Source(ctx context.Context, order *model.OrderRequest) *model.SourcingResponse {
	started := time.Now()
	requestID := uuid.NewString()

	ctx, cancel := context.WithTimeout(ctx, o.cfg.RequestTimeout)
	defer cancel()

	ctx, span := o.tracer.Start(ctx, "sourcing.source",
		trace.WithAttributes(
			attribute.String("order.id", order.OrderID),
			attribute.Int("order.items", len(order.Items)),
		))
	defer span.End()

	st := newTracker(requestID, order.OrderID, o.logger)
	resp := &model.SourcingResponse{
		OrderID:          order.OrderID,
		RequestID:        requestID,
		ProcessedAt:      started,
		FulfillmentPlans: []model.FulfillmentPlan{},
	}

	if err := order.Validate(); err != nil {
		st.fail(err.Error())
		resp.Metadata.Error = err.Error()
		resp.Metadata.ProcessingTimeMs = time.Since(started).Milliseconds()
		recordRequest("invalid", "rejected", time.Since(started))
		return resp
	}

	strategy := o.DecideStrategy(order)
	span.SetAttributes(attribute.String("sourcing.strategy", strategy))
	resp.Metadata.Strategy = strategy
	st.transition(StateStrategyDecided)

	var plans []model.FulfillmentPlan
	if strategy == StrategyBatch {
		plans = o.sourceBatch(ctx, order, st, &resp.Metadata)
	} else {
		plans = o.sourceSequential(ctx, order, st, &resp.Metadata)
	}
	if plans == nil {
		plans = []model.FulfillmentPlan{}
	}
	resp.FulfillmentPlans = plans
	st.transition(StatePlansBuilt)

	elapsed := time.Since(started)
	resp.Metadata.ProcessingTimeMs = elapsed.Milliseconds()
	o.collectWarnings(&resp.Metadata)
	snapshot := o.filters.Metrics()
	resp.Metadata.FilterMetrics = &snapshot

	outcome := "ok"
	empty := true
	for _, p := range plans {
		if p.TotalFulfilled > 0 {
			empty = false
			break
		}
	}
	if empty {
		outcome = "empty"
		promPlansEmpty.Inc()
	}
	recordRequest(strategy, outcome, elapsed)

	st.transition(StateResponseEmitted)
	o.logger.Info().
		Str("request_id", requestID).
		Str("order_id", order.OrderID).
		Str("strategy", strategy).
		Int("plans", len(plans)).
		Dur("elapsed", elapsed).
		Msg("sourcing complete")
	return resp
}

// sourceBatch fans out filter evaluation and the batched inventory fetch,
// joins, computes promises, then builds plans per item.
func (o *Orchestrator) sourceBatch(ctx context.Context, order *model.OrderRequest, st *tracker, meta *model.ResponseMetadata) []model.FulfillmentPlan {
	st.transition(StateFanoutLaunched)
	fanoutStart := time.Now()

	filterIDs := make([]string, len(order.Items))
	skus := make([]string, len(order.Items))
	for i, item := range order.Items {
		filterIDs[i] = item.LocationFilterID
		skus[i] = item.SKU
	}

	var (
		mu           sync.Mutex
		filterResult map[string][]model.Location
		invBySku     map[string][]model.Inventory
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, span := o.tracer.Start(gctx, "sourcing.filters")
		defer span.End()
		res := o.filters.EvaluateAll(gctx, filterIDs, order)
		mu.Lock()
		filterResult = res
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		_, span := o.tracer.Start(gctx, "sourcing.inventory")
		defer span.End()
		res, err := o.inventory.BatchFetch(gctx, skus)
		if err != nil {
			o.logger.Error().Err(err).Str("order_id", order.OrderID).Msg("inventory fetch failed, treating as out of stock")
			mu.Lock()
			meta.Error = fmt.Sprintf("inventory unavailable: %v", err)
			mu.Unlock()
			res = map[string][]model.Inventory{}
		}
		mu.Lock()
		invBySku = res
		mu.Unlock()
		return nil
	})
	g.Wait() //nolint:errcheck // stage errors degrade in place

	meta.FilterTimeMs = time.Since(fanoutStart).Milliseconds()
	recordStage("fanout", time.Since(fanoutStart))
	st.transition(StateFanoutJoined)

	eligibleByItem := make(map[int][]model.Location, len(order.Items))
	for i, item := range order.Items {
		eligibleByItem[i] = filterResult[item.LocationFilterID]
	}

	promiseStart := time.Now()
	_, pspan := o.tracer.Start(ctx, "sourcing.promises")
	breakdowns := o.promises.ComputeBatch(ctx, order, eligibleByItem, invBySku)
	pspan.End()
	meta.PromiseTimeMs = time.Since(promiseStart).Milliseconds()
	recordStage("promise", time.Since(promiseStart))

	plans := make([]model.FulfillmentPlan, 0, len(order.Items))
	for i := range order.Items {
		item := &order.Items[i]
		plan, ok := o.buildPlan(ctx, item, order, eligibleByItem[i], invBySku[item.SKU], breakdowns[i])
		if !ok {
			o.logger.Debug().Str("sku", item.SKU).Msg("line infeasible, dropped from response")
			continue
		}
		plans = append(plans, plan)
	}
	return plans
}

// sourceSequential runs the stages inline per item, no fan-out. Only taken
// for small single-line orders where goroutine overhead buys nothing.
func (o *Orchestrator) sourceSequential(ctx context.Context, order *model.OrderRequest, st *tracker, meta *model.ResponseMetadata) []model.FulfillmentPlan {
	st.transition(StateFanoutLaunched)
	st.transition(StateFanoutJoined)

	now := order.EffectiveOrderTime()
	plans := make([]model.FulfillmentPlan, 0, len(order.Items))
	for i := range order.Items {
		item := &order.Items[i]

		filterStart := time.Now()
		eligible, err := o.filters.Evaluate(ctx, item.LocationFilterID, order)
		if err != nil {
			o.logger.Error().Err(err).Str("filter_id", item.LocationFilterID).Msg("filter evaluation failed, treating as empty")
			eligible = []model.Location{}
		}
		meta.FilterTimeMs += time.Since(filterStart).Milliseconds()

		positions, err := o.inventory.BatchFetch(ctx, []string{item.SKU})
		if err != nil {
			o.logger.Error().Err(err).Str("sku", item.SKU).Msg("inventory fetch failed, treating as out of stock")
			meta.Error = fmt.Sprintf("inventory unavailable: %v", err)
			positions = map[string][]model.Inventory{}
		}
		stock := positions[item.SKU]

		promiseStart := time.Now()
		var breakdown *model.PromiseDateBreakdown
		for li := range eligible {
			loc := &eligible[li]
			inv := firstPosition(stock, loc.ID, item.Quantity)
			if inv == nil {
				continue
			}
			b, err := o.promises.Compute(ctx, item, loc, inv, order, now)
			if err != nil {
				continue
			}
			if b != nil {
				breakdown = b
				break
			}
		}
		meta.PromiseTimeMs += time.Since(promiseStart).Milliseconds()

		plan, ok := o.buildPlan(ctx, item, order, eligible, stock, breakdown)
		if !ok {
			o.logger.Debug().Str("sku", item.SKU).Msg("line infeasible, dropped from response")
			continue
		}
		plans = append(plans, plan)
	}
	return plans
}

// buildPlan scores candidates, runs the optimizer, and converts the chosen
// strategy into the response plan. Infeasible lines yield ok=false and no
// plan at all: a nil breakdown means no carrier could promise the line
// from any stocked eligible location, and a nil strategy means no
// allocation satisfies the line's policies. Callers drop such lines from
// the response.
func (o *Orchestrator) buildPlan(ctx context.Context, item *model.OrderItem, order *model.OrderRequest, eligible []model.Location, stock []model.Inventory, breakdown *model.PromiseDateBreakdown) (model.FulfillmentPlan, bool) {
	if breakdown == nil || len(eligible) == 0 || len(stock) == 0 {
		return model.FulfillmentPlan{}, false
	}

	plan := model.FulfillmentPlan{
		SKU:                 item.SKU,
		RequestedQuantity:   item.Quantity,
		LocationAllocations: []model.LocationAllocation{},
	}

	cfg := o.scorer.ConfigForItem(ctx, item)
	candidates := o.buildCandidates(item, order, eligible, stock, cfg)

	strategy := o.optimizer.Optimize(item, order, candidates, cfg)
	if strategy == nil {
		if item.BackorderAllowed(order) {
			o.logger.Debug().Str("sku", item.SKU).Msg("no allocatable stock, line left for backorder")
		}
		return model.FulfillmentPlan{}, false
	}

	now := order.EffectiveOrderTime()
	allocations := strategy.Allocations()
	plan.LocationAllocations = make([]model.LocationAllocation, 0, len(allocations))
	for i := range allocations {
		a := &allocations[i]
		out := model.LocationAllocation{
			LocationID:        a.Location.ID,
			LocationName:      a.Location.Name,
			AllocatedQuantity: a.Quantity,
			LocationScore:     a.Score,
		}
		if b, err := o.promises.Compute(ctx, item, &a.Location, &a.Inventory, order, now); err == nil && b != nil {
			out.DeliveryTiming = &model.DeliveryTiming{
				EstimatedShipDate:     b.EstimatedShipDate,
				EstimatedDeliveryDate: b.EstimatedDeliveryDate,
				TransitTimeDays:       b.TransitTimeDays,
				ProcessingTimeHours:   b.ProcessingTimeHours,
			}
		}
		plan.LocationAllocations = append(plan.LocationAllocations, out)
	}

	plan.TotalFulfilled = strategy.TotalFulfilled()
	plan.IsPartialFulfillment = plan.TotalFulfilled < item.Quantity
	plan.OverallScore = strategy.OverallScore()
	return plan, true
}

func (o *Orchestrator) buildCandidates(item *model.OrderItem, order *model.OrderRequest, eligible []model.Location, stock []model.Inventory, cfg *model.ScoringConfiguration) []optimizer.Candidate {
	candidates := make([]optimizer.Candidate, 0, len(eligible))
	for li := range eligible {
		loc := &eligible[li]
		inv := firstPosition(stock, loc.ID, 1)
		if inv == nil {
			continue
		}

		ratio := float64(inv.Quantity) / float64(item.Quantity)
		if ratio > 1 {
			ratio = 1
		}
		sctx := scoring.ScoreContext{
			ProcessingTime: inv.ProcessingTime,
			InventoryRatio: ratio,
		}
		if order.HasCoordinates() {
			d := model.DistanceKm(*order.Latitude, *order.Longitude, loc.Latitude, loc.Longitude)
			sctx.Distance = &d
		}

		candidates = append(candidates, optimizer.Candidate{
			Location:  *loc,
			Inventory: *inv,
			Score:     o.scorer.LocationScore(loc, cfg, item, sctx),
		})
	}
	return candidates
}

func (o *Orchestrator) collectWarnings(meta *model.ResponseMetadata) {
	if time.Duration(meta.FilterTimeMs)*time.Millisecond >= o.cfg.FilterWarnThreshold {
		meta.PerformanceWarnings = append(meta.PerformanceWarnings,
			fmt.Sprintf("filter evaluation took %dms", meta.FilterTimeMs))
	}
	if time.Duration(meta.PromiseTimeMs)*time.Millisecond >= o.cfg.PromiseWarnThreshold {
		meta.PerformanceWarnings = append(meta.PerformanceWarnings,
			fmt.Sprintf("promise calculation took %dms", meta.PromiseTimeMs))
	}
}

// firstPosition finds a stocked row for the location covering quantity,
// falling back to any stocked row when none covers it fully.
func firstPosition(stock []model.Inventory, locationID, quantity int) *model.Inventory {
	var fallback *model.Inventory
	for i := range stock {
		if stock[i].LocationID != locationID || stock[i].Quantity <= 0 {
			continue
		}
		if stock[i].Quantity >= quantity {
			return &stock[i]
		}
		if fallback == nil {
			fallback = &stock[i]
		}
	}
	return fallback
}
