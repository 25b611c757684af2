package filter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fulfilld/sourcing-service/internal/cache"
	"github.com/fulfilld/sourcing-service/internal/model"
)

func TestCachedFleetServesFromCache(t *testing.T) {
	src := &mockLocationSource{locations: testFleet()}
	fleet := NewCachedFleet(src, cache.NewStore("locations", time.Minute))

	for i := 0; i < 3; i++ {
		locs, err := fleet.FindActive(context.Background())
		if err != nil {
			t.Fatalf("FindActive() error = %v", err)
		}
		if len(locs) != 3 {
			t.Fatalf("FindActive() returned %d locations, want 3", len(locs))
		}
	}
	if got := src.calls.Load(); got != 1 {
		t.Errorf("source called %d times, want 1", got)
	}
}

func TestCachedFleetCopyIsolation(t *testing.T) {
	src := &mockLocationSource{locations: testFleet()}
	fleet := NewCachedFleet(src, cache.NewStore("locations", time.Minute))

	first, err := fleet.FindActive(context.Background())
	if err != nil {
		t.Fatalf("FindActive() error = %v", err)
	}
	first[0].Name = "Mutated"

	second, err := fleet.FindActive(context.Background())
	if err != nil {
		t.Fatalf("FindActive() error = %v", err)
	}
	if second[0].Name == "Mutated" {
		t.Error("cached fleet was mutated through a returned slice")
	}
}

func TestCachedFleetErrorNotCached(t *testing.T) {
	src := &mockLocationSource{err: errors.New("db down")}
	fleet := NewCachedFleet(src, cache.NewStore("locations", time.Minute))

	if _, err := fleet.FindActive(context.Background()); err == nil {
		t.Fatal("FindActive() expected error")
	}

	src.err = nil
	src.locations = testFleet()
	locs, err := fleet.FindActive(context.Background())
	if err != nil {
		t.Fatalf("FindActive() after recovery error = %v", err)
	}
	if len(locs) != 3 {
		t.Errorf("FindActive() returned %d locations, want 3", len(locs))
	}
}

func TestCachedFleetInvalidate(t *testing.T) {
	src := &mockLocationSource{locations: testFleet()}
	fleet := NewCachedFleet(src, cache.NewStore("locations", time.Minute))

	if _, err := fleet.FindActive(context.Background()); err != nil {
		t.Fatalf("FindActive() error = %v", err)
	}
	fleet.Invalidate()
	if _, err := fleet.FindActive(context.Background()); err != nil {
		t.Fatalf("FindActive() error = %v", err)
	}
	if got := src.calls.Load(); got != 2 {
		t.Errorf("source called %d times after invalidate, want 2", got)
	}
}

func TestCachedFleetNilStorePassesThrough(t *testing.T) {
	src := &mockLocationSource{locations: []model.Location{{ID: 1, IsActive: true}}}
	fleet := NewCachedFleet(src, nil)

	for i := 0; i < 2; i++ {
		if _, err := fleet.FindActive(context.Background()); err != nil {
			t.Fatalf("FindActive() error = %v", err)
		}
	}
	if got := src.calls.Load(); got != 2 {
		t.Errorf("source called %d times, want 2 without a store", got)
	}
}
