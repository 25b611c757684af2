// Package filter evaluates operator-authored eligibility rules against the
// location fleet. Compiled programs are cached per filter; filters that opt
// into precomputation get full-fleet snapshots with a per-filter TTL.
package filter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/fulfilld/sourcing-service/internal/model"
	"github.com/fulfilld/sourcing-service/internal/rules"
)

// Neutral probe coordinates for warm-start sweeps. Chosen so distance
// terms resolve without favoring any real order geography.
const (
	WarmStartLatitude  = 40.7128
	WarmStartLongitude = -74.0060
)

// LocationSource supplies the active fleet.
type LocationSource interface {
	FindActive(ctx context.Context) ([]model.Location, error)
}

// FilterSource supplies rule definitions. FindByID returns (nil, nil) when
// the filter does not exist or is inactive.
type FilterSource interface {
	FindByID(ctx context.Context, id string) (*model.LocationFilter, error)
	FindPrecomputeEnabled(ctx context.Context) ([]model.LocationFilter, error)
}

// WeightsFunc resolves the scoring weight map exposed to rule scripts.
// May be nil; rules referencing `scoring` then fail per-location.
type WeightsFunc func(ctx context.Context, order *model.OrderRequest) map[string]any

type snapshot struct {
	locations  []model.Location
	computedAt time.Time
}

// Engine is the rule execution engine. Safe for concurrent use.
type Engine struct {
	filters   FilterSource
	locations LocationSource
	weightsFn WeightsFunc

	mu        sync.RWMutex
	programs  map[string]*rules.Program
	snapshots map[string]snapshot

	flightMu sync.Mutex
	flight   map[string]chan struct{}

	metrics       metrics
	slowThreshold time.Duration
	warmupSlots   int64
	logger        zerolog.Logger

	now func() time.Time
}

// Options tunes engine behavior. Zero values get sensible defaults.
type Options struct {
	// SlowThreshold triggers a warning log per evaluation. Default 200ms.
	SlowThreshold time.Duration
	// WarmupConcurrency bounds the warm-start sweep. Default 4.
	WarmupConcurrency int64
	// WeightsFn exposes scoring weights to rule scripts.
	WeightsFn WeightsFunc
}

// NewEngine builds a rule engine over the given sources.
func NewEngine(filters FilterSource, locations LocationSource, opts Options) *Engine {
	if opts.SlowThreshold <= 0 {
		opts.SlowThreshold = 200 * time.Millisecond
	}
	if opts.WarmupConcurrency <= 0 {
		opts.WarmupConcurrency = 4
	}
	return &Engine{
		filters:       filters,
		locations:     locations,
		weightsFn:     opts.WeightsFn,
		programs:      make(map[string]*rules.Program),
		snapshots:     make(map[string]snapshot),
		flight:        make(map[string]chan struct{}),
		slowThreshold: opts.SlowThreshold,
		warmupSlots:   opts.WarmupConcurrency,
		logger:        log.With().Str("component", "filter-engine").Logger(),
		now:           time.Now,
	}
}

// Evaluate returns the locations eligible under one filter for one order.
// Unknown or inactive filters yield an empty list, not an error. Rule
// evaluation errors exclude the affected location and are counted.
func (e *Engine) Evaluate(ctx context.Context, filterID string, order *model.OrderRequest) ([]model.Location, error) {
	start := e.now()

	def, err := e.filters.FindByID(ctx, filterID)
	if err != nil {
		e.metrics.recordError(filterID, e.now().Sub(start))
		return nil, fmt.Errorf("loading filter %s: %w", filterID, err)
	}
	if def == nil {
		e.metrics.recordComputed(filterID, e.now().Sub(start))
		e.logger.Debug().Str("filter_id", filterID).Msg("filter unknown or inactive, no eligible locations")
		return []model.Location{}, nil
	}

	if def.EnablePrecomputation {
		if locs, ok := e.freshSnapshot(def); ok {
			elapsed := e.now().Sub(start)
			e.metrics.recordPrecomputedHit(filterID, elapsed)
			e.warnIfSlow(filterID, elapsed, true)
			return locs, nil
		}
	}

	locs, err := e.compute(ctx, def, order)
	elapsed := e.now().Sub(start)
	if err != nil {
		e.metrics.recordError(filterID, elapsed)
		return nil, err
	}
	e.metrics.recordComputed(filterID, elapsed)
	e.warnIfSlow(filterID, elapsed, false)

	if def.EnablePrecomputation {
		e.mu.Lock()
		e.snapshots[def.ID] = snapshot{locations: locs, computedAt: e.now()}
		e.mu.Unlock()
	}
	return locs, nil
}

// EvaluateAll runs each distinct filter concurrently. A failed filter
// contributes an empty list; the request is never aborted by one rule.
func (e *Engine) EvaluateAll(ctx context.Context, filterIDs []string, order *model.OrderRequest) map[string][]model.Location {
	distinct := make([]string, 0, len(filterIDs))
	seen := make(map[string]struct{}, len(filterIDs))
	for _, id := range filterIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		distinct = append(distinct, id)
	}

	results := make(map[string][]model.Location, len(distinct))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, id := range distinct {
		g.Go(func() error {
			locs, err := e.Evaluate(gctx, id, order)
			if err != nil {
				e.logger.Error().Err(err).Str("filter_id", id).Msg("filter evaluation failed, treating as empty")
				locs = []model.Location{}
			}
			mu.Lock()
			results[id] = locs
			mu.Unlock()
			return nil
		})
	}
	g.Wait() //nolint:errcheck // goroutines never return errors
	return results
}

// WarmStart precomputes snapshots for every precompute-enabled filter
// using a neutral probe order. Runs synchronously; callers typically
// launch it in a goroutine at startup. Failures are logged, not fatal.
func (e *Engine) WarmStart(ctx context.Context) {
	defs, err := e.filters.FindPrecomputeEnabled(ctx)
	if err != nil {
		e.logger.Error().Err(err).Msg("warm start aborted, cannot list filters")
		return
	}
	if len(defs) == 0 {
		return
	}

	lat, lon := WarmStartLatitude, WarmStartLongitude
	probe := &model.OrderRequest{
		OrderID:   "WARM-START-PROBE",
		Latitude:  &lat,
		Longitude: &lon,
	}

	sem := semaphore.NewWeighted(e.warmupSlots)
	var wg sync.WaitGroup
	started := e.now()
	for _, def := range defs {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(id string) {
			defer sem.Release(1)
			defer wg.Done()
			if _, err := e.Evaluate(ctx, id, probe); err != nil {
				e.logger.Warn().Err(err).Str("filter_id", id).Msg("warm start failed for filter")
			}
		}(def.ID)
	}
	wg.Wait()
	e.logger.Info().
		Int("filters", len(defs)).
		Dur("elapsed", e.now().Sub(started)).
		Msg("filter warm start complete")
}

// Invalidate drops the snapshot and compiled program for one filter.
// The next evaluation is a cold run.
func (e *Engine) Invalidate(filterID string) {
	e.mu.Lock()
	delete(e.snapshots, filterID)
	delete(e.programs, filterID)
	e.mu.Unlock()
	e.logger.Info().Str("filter_id", filterID).Msg("filter cache invalidated")
}

// InvalidateAll drops every snapshot and compiled program.
func (e *Engine) InvalidateAll() {
	e.mu.Lock()
	e.snapshots = make(map[string]snapshot)
	e.programs = make(map[string]*rules.Program)
	e.mu.Unlock()
	e.logger.Info().Msg("all filter caches invalidated")
}

// Metrics returns the current counter snapshot.
func (e *Engine) Metrics() model.FilterMetricsSnapshot {
	return e.metrics.snapshot()
}

func (e *Engine) freshSnapshot(def *model.LocationFilter) ([]model.Location, bool) {
	e.mu.RLock()
	snap, ok := e.snapshots[def.ID]
	e.mu.RUnlock()
	if !ok {
		return nil, false
	}
	ttl := time.Duration(def.CacheTTLMinutes) * time.Minute
	if ttl <= 0 || e.now().Sub(snap.computedAt) >= ttl {
		return nil, false
	}
	out := make([]model.Location, len(snap.locations))
	copy(out, snap.locations)
	return out, true
}

// compute evaluates the rule against every active location. Concurrent
// callers for the same filter share one compilation via a flight channel.
func (e *Engine) compute(ctx context.Context, def *model.LocationFilter, order *model.OrderRequest) ([]model.Location, error) {
	prog, err := e.program(def)
	if err != nil {
		return nil, err
	}

	fleet, err := e.locations.FindActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading locations for filter %s: %w", def.ID, err)
	}

	var weights map[string]any
	if e.weightsFn != nil {
		weights = e.weightsFn(ctx, order)
	}

	now := order.EffectiveOrderTime()
	eligible := make([]model.Location, 0, len(fleet))
	for i := range fleet {
		loc := &fleet[i]
		env := rules.BuildEnv(loc, order, now, weights)
		ok, err := prog.EvalBool(env)
		if err != nil {
			e.metrics.recordRuleError(def.ID)
			e.logger.Debug().Err(err).
				Str("filter_id", def.ID).
				Int("location_id", loc.ID).
				Msg("rule error, location excluded")
			continue
		}
		if ok {
			eligible = append(eligible, *loc)
		}
	}
	return eligible, nil
}

func (e *Engine) program(def *model.LocationFilter) (*rules.Program, error) {
	e.mu.RLock()
	prog, ok := e.programs[def.ID]
	e.mu.RUnlock()
	if ok {
		return prog, nil
	}

	// Single-flight the compile so a burst on a cold filter parses once.
	e.flightMu.Lock()
	ch, inFlight := e.flight[def.ID]
	if !inFlight {
		ch = make(chan struct{})
		e.flight[def.ID] = ch
	}
	e.flightMu.Unlock()

	if inFlight {
		<-ch
		e.mu.RLock()
		prog, ok = e.programs[def.ID]
		e.mu.RUnlock()
		if ok {
			return prog, nil
		}
		// Leader failed; fall through and compile ourselves.
	}

	defer func() {
		e.flightMu.Lock()
		if cur, still := e.flight[def.ID]; still && cur == ch {
			if !inFlight {
				close(ch)
			}
			delete(e.flight, def.ID)
		}
		e.flightMu.Unlock()
	}()

	compiled, err := rules.Compile(def.FilterScript)
	if err != nil {
		return nil, fmt.Errorf("compiling filter %s: %w", def.ID, err)
	}
	e.mu.Lock()
	e.programs[def.ID] = compiled
	e.mu.Unlock()
	return compiled, nil
}

func (e *Engine) warnIfSlow(filterID string, elapsed time.Duration, precomputed bool) {
	if elapsed < e.slowThreshold {
		return
	}
	e.logger.Warn().
		Str("filter_id", filterID).
		Dur("elapsed", elapsed).
		Bool("precomputed", precomputed).
		Msg("slow filter evaluation")
}
