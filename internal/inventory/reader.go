// Package inventory fronts the inventory repository with a short TTL cache
// so repeated sourcing of hot SKUs does not hammer the database.
package inventory

import (
	"context"
	"fmt"
	"sort"

	"github.com/fulfilld/sourcing-service/internal/cache"
	"github.com/fulfilld/sourcing-service/internal/model"
)

// Source supplies stocked inventory rows per SKU.
type Source interface {
	FindBySkusWithStock(ctx context.Context, skus []string) ([]model.Inventory, error)
	FindBySkuAndQuantity(ctx context.Context, sku string, quantity int) ([]model.Inventory, error)
}

// Reader batches and caches inventory lookups. Safe for concurrent use.
type Reader struct {
	source Source
	store  *cache.Store
}

// NewReader builds a reader. store may be nil to disable caching.
func NewReader(source Source, store *cache.Store) *Reader {
	return &Reader{source: source, store: store}
}

// BatchFetch returns stocked positions grouped by SKU. SKUs with no stock
// map to an empty slice so callers can distinguish "no stock" from "not
// asked". Cached per SKU.
func (r *Reader) BatchFetch(ctx context.Context, skus []string) (map[string][]model.Inventory, error) {
	distinct := dedupe(skus)
	out := make(map[string][]model.Inventory, len(distinct))

	var misses []string
	for _, sku := range distinct {
		if r.store != nil {
			if v, ok := r.store.Get(sku); ok {
				out[sku] = v.([]model.Inventory)
				continue
			}
		}
		misses = append(misses, sku)
	}

	if len(misses) > 0 {
		rows, err := r.source.FindBySkusWithStock(ctx, misses)
		if err != nil {
			return nil, fmt.Errorf("batch inventory fetch: %w", err)
		}
		grouped := make(map[string][]model.Inventory, len(misses))
		for _, row := range rows {
			grouped[row.SKU] = append(grouped[row.SKU], row)
		}
		for _, sku := range misses {
			positions := grouped[sku]
			if positions == nil {
				positions = []model.Inventory{}
			}
			out[sku] = positions
			if r.store != nil {
				r.store.Set(sku, positions)
			}
		}
	}
	return out, nil
}

// FetchBySku returns positions able to cover the quantity, processing
// time ascending. Uncached: the quantity predicate makes keys unbounded.
func (r *Reader) FetchBySku(ctx context.Context, sku string, quantity int) ([]model.Inventory, error) {
	return r.source.FindBySkuAndQuantity(ctx, sku, quantity)
}

// Invalidate drops the cached positions for one SKU.
func (r *Reader) Invalidate(sku string) {
	if r.store != nil {
		r.store.Delete(sku)
	}
}

func dedupe(skus []string) []string {
	seen := make(map[string]struct{}, len(skus))
	out := make([]string, 0, len(skus))
	for _, s := range skus {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
