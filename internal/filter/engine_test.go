package filter

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fulfilld/sourcing-service/internal/model"
)

type mockFilterSource struct {
	filters     map[string]*model.LocationFilter
	findErr     error
	findByIDCnt atomic.Int64
}

func (m *mockFilterSource) FindByID(_ context.Context, id string) (*model.LocationFilter, error) {
	m.findByIDCnt.Add(1)
	if m.findErr != nil {
		return nil, m.findErr
	}
	return m.filters[id], nil
}

func (m *mockFilterSource) FindPrecomputeEnabled(_ context.Context) ([]model.LocationFilter, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	var out []model.LocationFilter
	for _, f := range m.filters {
		if f.EnablePrecomputation {
			out = append(out, *f)
		}
	}
	return out, nil
}

type mockLocationSource struct {
	locations []model.Location
	err       error
	calls     atomic.Int64
}

func (m *mockLocationSource) FindActive(_ context.Context) ([]model.Location, error) {
	m.calls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	out := make([]model.Location, len(m.locations))
	copy(out, m.locations)
	return out, nil
}

func testFleet() []model.Location {
	return []model.Location{
		{ID: 1, Name: "Near Fast", TransitTime: 1, Latitude: 40.71, Longitude: -74.0, IsActive: true},
		{ID: 2, Name: "Near Slow", TransitTime: 4, Latitude: 40.73, Longitude: -74.01, IsActive: true},
		{ID: 3, Name: "Far Fast", TransitTime: 1, Latitude: 47.6, Longitude: -122.33, IsActive: true},
	}
}

func filterDef(id, script string, precompute bool, ttlMinutes int) *model.LocationFilter {
	return &model.LocationFilter{
		ID:                   id,
		Name:                 id,
		FilterScript:         script,
		IsActive:             true,
		EnablePrecomputation: precompute,
		CacheTTLMinutes:      ttlMinutes,
	}
}

func probeOrder() *model.OrderRequest {
	lat, lon := 40.7128, -74.0060
	return &model.OrderRequest{
		OrderID:   "ORD-1",
		Latitude:  &lat,
		Longitude: &lon,
		Items: []model.OrderItem{
			{SKU: "A", Quantity: 1, DeliveryType: model.DeliveryStandard, LocationFilterID: "fast"},
		},
	}
}

func TestEvaluateFiltersLocations(t *testing.T) {
	filters := &mockFilterSource{filters: map[string]*model.LocationFilter{
		"fast": filterDef("fast", "location.transitTime <= 2", false, 0),
	}}
	engine := NewEngine(filters, &mockLocationSource{locations: testFleet()}, Options{})

	locs, err := engine.Evaluate(context.Background(), "fast", probeOrder())
	require.NoError(t, err)
	require.Len(t, locs, 2)
	assert.Equal(t, 1, locs[0].ID)
	assert.Equal(t, 3, locs[1].ID)
}

func TestEvaluateDistanceRule(t *testing.T) {
	filters := &mockFilterSource{filters: map[string]*model.LocationFilter{
		"near": filterDef("near", "distance.calculate(location.latitude, location.longitude) < 100", false, 0),
	}}
	engine := NewEngine(filters, &mockLocationSource{locations: testFleet()}, Options{})

	locs, err := engine.Evaluate(context.Background(), "near", probeOrder())
	require.NoError(t, err)
	require.Len(t, locs, 2)
	assert.Equal(t, 1, locs[0].ID)
	assert.Equal(t, 2, locs[1].ID)
}

func TestEvaluateUnknownFilterIsEmpty(t *testing.T) {
	filters := &mockFilterSource{filters: map[string]*model.LocationFilter{}}
	engine := NewEngine(filters, &mockLocationSource{locations: testFleet()}, Options{})

	locs, err := engine.Evaluate(context.Background(), "nope", probeOrder())
	require.NoError(t, err)
	assert.NotNil(t, locs)
	assert.Empty(t, locs)
}

func TestEvaluateSourceErrorPropagates(t *testing.T) {
	filters := &mockFilterSource{findErr: errors.New("db down")}
	engine := NewEngine(filters, &mockLocationSource{locations: testFleet()}, Options{})

	_, err := engine.Evaluate(context.Background(), "fast", probeOrder())
	require.Error(t, err)

	m := engine.Metrics()
	assert.Equal(t, int64(1), m.Errors)
}

func TestEvaluateCompileErrorPropagates(t *testing.T) {
	filters := &mockFilterSource{filters: map[string]*model.LocationFilter{
		"broken": filterDef("broken", "location.transitTime <=", false, 0),
	}}
	engine := NewEngine(filters, &mockLocationSource{locations: testFleet()}, Options{})

	_, err := engine.Evaluate(context.Background(), "broken", probeOrder())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compiling filter broken")
}

// Runtime rule errors exclude only the affected location.
func TestEvaluateRuleErrorExcludesLocation(t *testing.T) {
	// transitTime == 4 triggers a division by zero for exactly one location.
	script := "100 / (location.transitTime - 4) > 0 || location.transitTime <= 2"
	filters := &mockFilterSource{filters: map[string]*model.LocationFilter{
		"partial": filterDef("partial", script, false, 0),
	}}
	engine := NewEngine(filters, &mockLocationSource{locations: testFleet()}, Options{})

	locs, err := engine.Evaluate(context.Background(), "partial", probeOrder())
	require.NoError(t, err)
	for _, loc := range locs {
		assert.NotEqual(t, 2, loc.ID, "the erroring location must be excluded")
	}
	require.Len(t, locs, 2)
}

func TestEvaluatePrecomputedSnapshot(t *testing.T) {
	filters := &mockFilterSource{filters: map[string]*model.LocationFilter{
		"pre": filterDef("pre", "location.transitTime <= 2", true, 30),
	}}
	locations := &mockLocationSource{locations: testFleet()}
	engine := NewEngine(filters, locations, Options{})

	clock := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	engine.now = func() time.Time { return clock }

	// Cold run computes and stores a snapshot.
	locs, err := engine.Evaluate(context.Background(), "pre", probeOrder())
	require.NoError(t, err)
	require.Len(t, locs, 2)
	assert.Equal(t, int64(1), locations.calls.Load())

	// Second run within the TTL serves the snapshot.
	clock = clock.Add(10 * time.Minute)
	locs, err = engine.Evaluate(context.Background(), "pre", probeOrder())
	require.NoError(t, err)
	require.Len(t, locs, 2)
	assert.Equal(t, int64(1), locations.calls.Load(), "snapshot hit must not reload the fleet")

	m := engine.Metrics()
	assert.Equal(t, int64(2), m.TotalExecutions)
	assert.Equal(t, int64(1), m.PrecomputedHits)
	assert.Equal(t, int64(1), m.ComputedExecutions)
	assert.InDelta(t, 0.5, m.CacheHitRate, 0.0001)

	// Past the TTL the snapshot is stale and a recompute happens.
	clock = clock.Add(30 * time.Minute)
	_, err = engine.Evaluate(context.Background(), "pre", probeOrder())
	require.NoError(t, err)
	assert.Equal(t, int64(2), locations.calls.Load())
}

func TestEvaluateNoPrecomputationAlwaysComputes(t *testing.T) {
	filters := &mockFilterSource{filters: map[string]*model.LocationFilter{
		"live": filterDef("live", "location.transitTime <= 2", false, 30),
	}}
	locations := &mockLocationSource{locations: testFleet()}
	engine := NewEngine(filters, locations, Options{})

	for i := 0; i < 3; i++ {
		_, err := engine.Evaluate(context.Background(), "live", probeOrder())
		require.NoError(t, err)
	}
	assert.Equal(t, int64(3), locations.calls.Load())
	assert.Equal(t, int64(0), engine.Metrics().PrecomputedHits)
}

func TestInvalidateForcesColdRun(t *testing.T) {
	filters := &mockFilterSource{filters: map[string]*model.LocationFilter{
		"pre": filterDef("pre", "location.transitTime <= 2", true, 30),
	}}
	locations := &mockLocationSource{locations: testFleet()}
	engine := NewEngine(filters, locations, Options{})

	_, err := engine.Evaluate(context.Background(), "pre", probeOrder())
	require.NoError(t, err)
	assert.Equal(t, int64(1), locations.calls.Load())

	engine.Invalidate("pre")

	_, err = engine.Evaluate(context.Background(), "pre", probeOrder())
	require.NoError(t, err)
	assert.Equal(t, int64(2), locations.calls.Load(), "invalidation must force a recompute")
}

func TestInvalidateAll(t *testing.T) {
	filters := &mockFilterSource{filters: map[string]*model.LocationFilter{
		"a": filterDef("a", "true", true, 30),
		"b": filterDef("b", "true", true, 30),
	}}
	locations := &mockLocationSource{locations: testFleet()}
	engine := NewEngine(filters, locations, Options{})

	_, _ = engine.Evaluate(context.Background(), "a", probeOrder())
	_, _ = engine.Evaluate(context.Background(), "b", probeOrder())
	require.Equal(t, int64(2), locations.calls.Load())

	engine.InvalidateAll()

	_, _ = engine.Evaluate(context.Background(), "a", probeOrder())
	_, _ = engine.Evaluate(context.Background(), "b", probeOrder())
	assert.Equal(t, int64(4), locations.calls.Load())
}

func TestEvaluateAll(t *testing.T) {
	filters := &mockFilterSource{filters: map[string]*model.LocationFilter{
		"fast":   filterDef("fast", "location.transitTime <= 2", false, 0),
		"all":    filterDef("all", "location.isActive", false, 0),
		"broken": filterDef("broken", "location.transitTime <=", false, 0),
	}}
	engine := NewEngine(filters, &mockLocationSource{locations: testFleet()}, Options{})

	results := engine.EvaluateAll(context.Background(), []string{"fast", "all", "broken", "fast"}, probeOrder())

	require.Len(t, results, 3)
	assert.Len(t, results["fast"], 2)
	assert.Len(t, results["all"], 3)
	assert.NotNil(t, results["broken"])
	assert.Empty(t, results["broken"], "a failed filter yields an empty list")

	// "fast" was requested twice but evaluated once.
	assert.Equal(t, int64(3), filters.findByIDCnt.Load())
}

func TestWarmStart(t *testing.T) {
	filters := &mockFilterSource{filters: map[string]*model.LocationFilter{
		"pre1": filterDef("pre1", "location.transitTime <= 2", true, 30),
		"pre2": filterDef("pre2", "location.isActive", true, 30),
		"live": filterDef("live", "true", false, 0),
	}}
	locations := &mockLocationSource{locations: testFleet()}
	engine := NewEngine(filters, locations, Options{WarmupConcurrency: 2})

	engine.WarmStart(context.Background())

	m := engine.Metrics()
	assert.Equal(t, int64(2), m.TotalExecutions, "only precompute-enabled filters are swept")
	assert.Equal(t, int64(2), m.ComputedExecutions)

	// Snapshots are hot afterwards.
	_, err := engine.Evaluate(context.Background(), "pre1", probeOrder())
	require.NoError(t, err)
	assert.Equal(t, int64(1), engine.Metrics().PrecomputedHits)
}

func TestWeightsExposedToRules(t *testing.T) {
	filters := &mockFilterSource{filters: map[string]*model.LocationFilter{
		"weighted": filterDef("weighted", "scoring.expressBonus >= 20", false, 0),
	}}
	weightsFn := func(_ context.Context, _ *model.OrderRequest) map[string]any {
		return map[string]any{"expressBonus": 20.0}
	}
	engine := NewEngine(filters, &mockLocationSource{locations: testFleet()}, Options{WeightsFn: weightsFn})

	locs, err := engine.Evaluate(context.Background(), "weighted", probeOrder())
	require.NoError(t, err)
	assert.Len(t, locs, 3)
}

func TestMetricsSnapshotAverages(t *testing.T) {
	var m metrics
	m.recordComputed("east", 10*time.Millisecond)
	m.recordComputed("east", 30*time.Millisecond)
	m.recordPrecomputedHit("east", 2*time.Millisecond)
	m.recordError("west", 5*time.Millisecond)

	s := m.snapshot()
	assert.Equal(t, int64(4), s.TotalExecutions)
	assert.Equal(t, int64(2), s.ComputedExecutions)
	assert.Equal(t, int64(1), s.PrecomputedHits)
	assert.Equal(t, int64(1), s.Errors)
	assert.Equal(t, int64(47), s.TotalTimeMs)
	assert.InDelta(t, 11.75, s.AverageExecutionTime, 0.0001)
	assert.InDelta(t, 0.25, s.CacheHitRate, 0.0001)
}

func TestMetricsSnapshotPerFilter(t *testing.T) {
	var m metrics
	m.recordComputed("east", 10*time.Millisecond)
	m.recordPrecomputedHit("east", 2*time.Millisecond)
	m.recordComputed("west", 20*time.Millisecond)
	m.recordError("west", 4*time.Millisecond)

	s := m.snapshot()
	require.Len(t, s.Filters, 2)

	east := s.Filters["east"]
	assert.Equal(t, int64(2), east.Executions)
	assert.Equal(t, int64(1), east.ComputedExecutions)
	assert.Equal(t, int64(1), east.PrecomputedHits)
	assert.Equal(t, int64(0), east.Errors)
	assert.Equal(t, int64(12), east.TotalTimeMs)
	assert.InDelta(t, 6.0, east.AverageExecutionTime, 0.0001)

	west := s.Filters["west"]
	assert.Equal(t, int64(2), west.Executions)
	assert.Equal(t, int64(1), west.Errors)
	assert.Equal(t, int64(24), west.TotalTimeMs)
}

func TestEngineMetricsBrokenDownByFilter(t *testing.T) {
	filters := &mockFilterSource{filters: map[string]*model.LocationFilter{
		"all":  filterDef("all", "true", false, 0),
		"none": filterDef("none", "false", false, 0),
	}}
	engine := NewEngine(filters, &mockLocationSource{locations: testFleet()}, Options{})

	_, err := engine.Evaluate(context.Background(), "all", probeOrder())
	require.NoError(t, err)
	_, err = engine.Evaluate(context.Background(), "all", probeOrder())
	require.NoError(t, err)
	_, err = engine.Evaluate(context.Background(), "none", probeOrder())
	require.NoError(t, err)

	s := engine.Metrics()
	assert.Equal(t, int64(3), s.TotalExecutions)
	require.Contains(t, s.Filters, "all")
	require.Contains(t, s.Filters, "none")
	assert.Equal(t, int64(2), s.Filters["all"].Executions)
	assert.Equal(t, int64(1), s.Filters["none"].Executions)
}
