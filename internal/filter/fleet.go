package filter

import (
	"context"

	"github.com/fulfilld/sourcing-service/internal/cache"
	"github.com/fulfilld/sourcing-service/internal/model"
)

const fleetKey = "active"

// CachedFleet decorates a LocationSource with a TTL store so snapshot
// recomputes and cold filter runs within the TTL share one fleet read.
type CachedFleet struct {
	source LocationSource
	store  *cache.Store
}

// NewCachedFleet wraps source. A nil store disables caching.
func NewCachedFleet(source LocationSource, store *cache.Store) *CachedFleet {
	return &CachedFleet{source: source, store: store}
}

// FindActive returns the active fleet, served from cache when fresh.
// Callers get a copy; mutating the result does not poison the cache.
func (f *CachedFleet) FindActive(ctx context.Context) ([]model.Location, error) {
	if f.store != nil {
		if v, ok := f.store.Get(fleetKey); ok {
			return copyFleet(v.([]model.Location)), nil
		}
	}
	fleet, err := f.source.FindActive(ctx)
	if err != nil {
		return nil, err
	}
	if f.store != nil {
		f.store.Set(fleetKey, copyFleet(fleet))
	}
	return fleet, nil
}

// Invalidate drops the cached fleet.
func (f *CachedFleet) Invalidate() {
	if f.store != nil {
		f.store.Delete(fleetKey)
	}
}

func copyFleet(fleet []model.Location) []model.Location {
	out := make([]model.Location, len(fleet))
	copy(out, fleet)
	return out
}
