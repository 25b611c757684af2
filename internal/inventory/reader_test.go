package inventory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fulfilld/sourcing-service/internal/cache"
	"github.com/fulfilld/sourcing-service/internal/model"
)

type mockInventorySource struct {
	rows       map[string][]model.Inventory
	err        error
	batchCalls int
	lastBatch  []string
}

func (m *mockInventorySource) FindBySkusWithStock(_ context.Context, skus []string) ([]model.Inventory, error) {
	m.batchCalls++
	m.lastBatch = skus
	if m.err != nil {
		return nil, m.err
	}
	var out []model.Inventory
	for _, sku := range skus {
		out = append(out, m.rows[sku]...)
	}
	return out, nil
}

func (m *mockInventorySource) FindBySkuAndQuantity(_ context.Context, sku string, quantity int) ([]model.Inventory, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []model.Inventory
	for _, row := range m.rows[sku] {
		if row.Quantity >= quantity {
			out = append(out, row)
		}
	}
	return out, nil
}

func testRows() map[string][]model.Inventory {
	return map[string][]model.Inventory{
		"A": {
			{ID: 1, LocationID: 1, SKU: "A", Quantity: 10, ProcessingTime: 1},
			{ID: 2, LocationID: 2, SKU: "A", Quantity: 3, ProcessingTime: 2},
		},
		"B": {
			{ID: 3, LocationID: 1, SKU: "B", Quantity: 5, ProcessingTime: 1},
		},
	}
}

func TestBatchFetchGroupsBySku(t *testing.T) {
	source := &mockInventorySource{rows: testRows()}
	reader := NewReader(source, nil)

	got, err := reader.BatchFetch(context.Background(), []string{"A", "B"})
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Len(t, got["A"], 2)
	assert.Len(t, got["B"], 1)
	assert.Equal(t, 1, source.batchCalls)
}

func TestBatchFetchEmptySliceForNoStock(t *testing.T) {
	source := &mockInventorySource{rows: testRows()}
	reader := NewReader(source, nil)

	got, err := reader.BatchFetch(context.Background(), []string{"A", "GHOST"})
	require.NoError(t, err)

	require.Contains(t, got, "GHOST")
	assert.NotNil(t, got["GHOST"])
	assert.Empty(t, got["GHOST"])
}

func TestBatchFetchDedupes(t *testing.T) {
	source := &mockInventorySource{rows: testRows()}
	reader := NewReader(source, nil)

	got, err := reader.BatchFetch(context.Background(), []string{"B", "A", "A", "B"})
	require.NoError(t, err)

	assert.Len(t, got, 2)
	assert.Equal(t, []string{"A", "B"}, source.lastBatch, "misses are deduped and sorted")
}

func TestBatchFetchUsesCache(t *testing.T) {
	source := &mockInventorySource{rows: testRows()}
	store := cache.NewStore("inventory-test", time.Minute)
	reader := NewReader(source, store)

	_, err := reader.BatchFetch(context.Background(), []string{"A", "B"})
	require.NoError(t, err)
	require.Equal(t, 1, source.batchCalls)

	// Fully cached: no second query.
	_, err = reader.BatchFetch(context.Background(), []string{"A", "B"})
	require.NoError(t, err)
	assert.Equal(t, 1, source.batchCalls)

	// Partial miss queries only the missing SKU.
	got, err := reader.BatchFetch(context.Background(), []string{"A", "GHOST"})
	require.NoError(t, err)
	assert.Equal(t, 2, source.batchCalls)
	assert.Equal(t, []string{"GHOST"}, source.lastBatch)
	assert.Len(t, got["A"], 2)

	// Empty results are cached too.
	_, err = reader.BatchFetch(context.Background(), []string{"GHOST"})
	require.NoError(t, err)
	assert.Equal(t, 2, source.batchCalls)
}

func TestBatchFetchSourceError(t *testing.T) {
	source := &mockInventorySource{err: errors.New("db down")}
	reader := NewReader(source, nil)

	_, err := reader.BatchFetch(context.Background(), []string{"A"})
	require.Error(t, err)
}

func TestInvalidate(t *testing.T) {
	source := &mockInventorySource{rows: testRows()}
	store := cache.NewStore("inventory-inv-test", time.Minute)
	reader := NewReader(source, store)

	_, err := reader.BatchFetch(context.Background(), []string{"A"})
	require.NoError(t, err)
	require.Equal(t, 1, source.batchCalls)

	reader.Invalidate("A")

	_, err = reader.BatchFetch(context.Background(), []string{"A"})
	require.NoError(t, err)
	assert.Equal(t, 2, source.batchCalls)
}

func TestFetchBySku(t *testing.T) {
	source := &mockInventorySource{rows: testRows()}
	reader := NewReader(source, cache.NewStore("inventory-qty-test", time.Minute))

	got, err := reader.FetchBySku(context.Background(), "A", 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].LocationID)
}
