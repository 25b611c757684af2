package promise

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fulfilld/sourcing-service/internal/carrier"
	"github.com/fulfilld/sourcing-service/internal/model"
)

type mockCarrierSource struct {
	configs map[string][]model.CarrierConfiguration
}

func (m *mockCarrierSource) FindActiveByDeliveryType(_ context.Context, deliveryType string) ([]model.CarrierConfiguration, error) {
	return m.configs[deliveryType], nil
}

func standardCarrier() model.CarrierConfiguration {
	return model.CarrierConfiguration{
		CarrierCode:           "GROUND",
		ServiceLevel:          "STANDARD",
		DeliveryType:          model.DeliveryStandard,
		BaseTransitDays:       3,
		TransitTimeMultiplier: 1.0,
		CarrierPriority:       1,
		IsActive:              true,
	}
}

func newTestCalculator(configs map[string][]model.CarrierConfiguration) *Calculator {
	sel := carrier.NewSelector(&mockCarrierSource{configs: configs}, nil)
	return NewCalculator(sel, 0)
}

func TestComputeHappyPath(t *testing.T) {
	calc := newTestCalculator(map[string][]model.CarrierConfiguration{
		model.DeliveryStandard: {standardCarrier()},
	})

	now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	item := &model.OrderItem{SKU: "A", Quantity: 2, DeliveryType: model.DeliveryStandard}
	loc := &model.Location{ID: 7, Latitude: 40.71, Longitude: -74.0}
	inv := &model.Inventory{LocationID: 7, SKU: "A", Quantity: 10, ProcessingTime: 1}
	order := &model.OrderRequest{OrderID: "ORD-1", Items: []model.OrderItem{*item}}

	breakdown, err := calc.Compute(context.Background(), item, loc, inv, order, now)
	require.NoError(t, err)
	require.NotNil(t, breakdown)

	assert.Equal(t, 7, breakdown.LocationID)
	assert.Equal(t, "GROUND", breakdown.CarrierCode)
	assert.Equal(t, "STANDARD", breakdown.ServiceLevel)
	assert.Equal(t, 24, breakdown.ProcessingTimeHours)
	assert.Equal(t, 3, breakdown.TransitTimeDays)
	assert.Equal(t, now.Add(24*time.Hour), breakdown.EstimatedShipDate)
	assert.Equal(t, now.Add(24*time.Hour).Add(3*24*time.Hour), breakdown.EstimatedDeliveryDate)
}

func TestComputeZeroProcessingTimeShipsImmediately(t *testing.T) {
	calc := newTestCalculator(map[string][]model.CarrierConfiguration{
		model.DeliveryStandard: {standardCarrier()},
	})

	now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	item := &model.OrderItem{SKU: "A", Quantity: 1, DeliveryType: model.DeliveryStandard}
	loc := &model.Location{ID: 7}
	inv := &model.Inventory{LocationID: 7, SKU: "A", Quantity: 5, ProcessingTime: 0}
	order := &model.OrderRequest{OrderID: "ORD-1", Items: []model.OrderItem{*item}}

	breakdown, err := calc.Compute(context.Background(), item, loc, inv, order, now)
	require.NoError(t, err)
	require.NotNil(t, breakdown)
	assert.Equal(t, now, breakdown.EstimatedShipDate)
	assert.Equal(t, 0, breakdown.ProcessingTimeHours)
}

func TestComputeNoCarrierIsInfeasible(t *testing.T) {
	calc := newTestCalculator(map[string][]model.CarrierConfiguration{})

	now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	item := &model.OrderItem{SKU: "A", Quantity: 1, DeliveryType: model.DeliverySameDay}
	loc := &model.Location{ID: 7}
	inv := &model.Inventory{LocationID: 7, SKU: "A", Quantity: 5, ProcessingTime: 1}
	order := &model.OrderRequest{OrderID: "ORD-1", Items: []model.OrderItem{*item}}

	breakdown, err := calc.Compute(context.Background(), item, loc, inv, order, now)
	require.NoError(t, err)
	assert.Nil(t, breakdown)
}

func TestComputeDistanceLimitsCarrier(t *testing.T) {
	maxDist := 100.0
	shortHaul := standardCarrier()
	shortHaul.MaxDistanceKm = &maxDist

	calc := newTestCalculator(map[string][]model.CarrierConfiguration{
		model.DeliveryStandard: {shortHaul},
	})

	now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	lat, lon := 40.7128, -74.0060
	item := &model.OrderItem{SKU: "A", Quantity: 1, DeliveryType: model.DeliveryStandard}
	inv := &model.Inventory{SKU: "A", Quantity: 5, ProcessingTime: 1}
	order := &model.OrderRequest{OrderID: "ORD-1", Latitude: &lat, Longitude: &lon, Items: []model.OrderItem{*item}}

	near := &model.Location{ID: 1, Latitude: 40.72, Longitude: -74.01}
	inv.LocationID = 1
	breakdown, err := calc.Compute(context.Background(), item, near, inv, order, now)
	require.NoError(t, err)
	assert.NotNil(t, breakdown)

	far := &model.Location{ID: 2, Latitude: 47.6, Longitude: -122.33}
	inv.LocationID = 2
	breakdown, err = calc.Compute(context.Background(), item, far, inv, order, now)
	require.NoError(t, err)
	assert.Nil(t, breakdown, "no carrier can reach the far location")
}

func TestComputeBatchFirstFeasibleWins(t *testing.T) {
	calc := newTestCalculator(map[string][]model.CarrierConfiguration{
		model.DeliveryStandard: {standardCarrier()},
	})

	order := &model.OrderRequest{
		OrderID:   "ORD-1",
		OrderTime: time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC),
		Items: []model.OrderItem{
			{SKU: "A", Quantity: 5, DeliveryType: model.DeliveryStandard, LocationFilterID: "f"},
		},
	}
	eligible := map[int][]model.Location{
		0: {
			{ID: 1, Name: "First"},
			{ID: 2, Name: "Second"},
		},
	}
	inventory := map[string][]model.Inventory{
		// First location is short on stock; the second covers the line.
		"A": {
			{LocationID: 1, SKU: "A", Quantity: 2, ProcessingTime: 1},
			{LocationID: 2, SKU: "A", Quantity: 10, ProcessingTime: 2},
		},
	}

	results := calc.ComputeBatch(context.Background(), order, eligible, inventory)
	require.Contains(t, results, 0)
	assert.Equal(t, 2, results[0].LocationID)
	assert.Equal(t, 48, results[0].ProcessingTimeHours)
}

func TestComputeBatchPrefersFilterOrder(t *testing.T) {
	calc := newTestCalculator(map[string][]model.CarrierConfiguration{
		model.DeliveryStandard: {standardCarrier()},
	})

	order := &model.OrderRequest{
		OrderID:   "ORD-1",
		OrderTime: time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC),
		Items: []model.OrderItem{
			{SKU: "A", Quantity: 1, DeliveryType: model.DeliveryStandard, LocationFilterID: "f"},
		},
	}
	eligible := map[int][]model.Location{
		0: {{ID: 3}, {ID: 1}},
	}
	inventory := map[string][]model.Inventory{
		"A": {
			{LocationID: 1, SKU: "A", Quantity: 10, ProcessingTime: 1},
			{LocationID: 3, SKU: "A", Quantity: 10, ProcessingTime: 1},
		},
	}

	results := calc.ComputeBatch(context.Background(), order, eligible, inventory)
	require.Contains(t, results, 0)
	assert.Equal(t, 3, results[0].LocationID, "eligible locations are tried in filter order")
}

func TestComputeBatchInfeasibleItemsAbsent(t *testing.T) {
	calc := newTestCalculator(map[string][]model.CarrierConfiguration{
		model.DeliveryStandard: {standardCarrier()},
	})

	order := &model.OrderRequest{
		OrderID:   "ORD-1",
		OrderTime: time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC),
		Items: []model.OrderItem{
			{SKU: "A", Quantity: 1, DeliveryType: model.DeliveryStandard, LocationFilterID: "f"},
			{SKU: "B", Quantity: 1, DeliveryType: model.DeliverySameDay, LocationFilterID: "f"},
			{SKU: "C", Quantity: 99, DeliveryType: model.DeliveryStandard, LocationFilterID: "f"},
		},
	}
	eligible := map[int][]model.Location{
		0: {{ID: 1}},
		1: {{ID: 1}},
		2: {{ID: 1}},
	}
	inventory := map[string][]model.Inventory{
		"A": {{LocationID: 1, SKU: "A", Quantity: 10, ProcessingTime: 1}},
		"B": {{LocationID: 1, SKU: "B", Quantity: 10, ProcessingTime: 1}},
	}

	results := calc.ComputeBatch(context.Background(), order, eligible, inventory)

	assert.Contains(t, results, 0)
	assert.NotContains(t, results, 1, "no same-day carrier exists")
	assert.NotContains(t, results, 2, "no stocked location at all")
}

// When no single location covers the quantity the promise falls back to a
// stocked location so a split can still be planned.
func TestComputeBatchShortStockStillPromises(t *testing.T) {
	calc := newTestCalculator(map[string][]model.CarrierConfiguration{
		model.DeliveryStandard: {standardCarrier()},
	})

	order := &model.OrderRequest{
		OrderID:   "ORD-1",
		OrderTime: time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC),
		Items: []model.OrderItem{
			{SKU: "A", Quantity: 12, DeliveryType: model.DeliveryStandard, LocationFilterID: "f"},
		},
	}
	eligible := map[int][]model.Location{
		0: {{ID: 1}, {ID: 2}},
	}
	inventory := map[string][]model.Inventory{
		"A": {
			{LocationID: 1, SKU: "A", Quantity: 8, ProcessingTime: 1},
			{LocationID: 2, SKU: "A", Quantity: 6, ProcessingTime: 1},
		},
	}

	results := calc.ComputeBatch(context.Background(), order, eligible, inventory)
	require.Contains(t, results, 0)
	assert.Equal(t, 1, results[0].LocationID, "first stocked location in filter order")
}

func TestComputeBatchNoEligibleLocations(t *testing.T) {
	calc := newTestCalculator(map[string][]model.CarrierConfiguration{
		model.DeliveryStandard: {standardCarrier()},
	})

	order := &model.OrderRequest{
		OrderID:   "ORD-1",
		OrderTime: time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC),
		Items: []model.OrderItem{
			{SKU: "A", Quantity: 1, DeliveryType: model.DeliveryStandard, LocationFilterID: "f"},
		},
	}

	results := calc.ComputeBatch(context.Background(), order, map[int][]model.Location{}, map[string][]model.Inventory{})
	assert.Empty(t, results)
}
