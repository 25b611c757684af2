package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/fulfilld/sourcing-service/internal/model"
)

// Repositories are thin structs over the package pool so callers can hand
// them to engines as interfaces.

// LocationRepo reads fulfillment locations.
type LocationRepo struct{}

// FindActive returns the active fleet, ID ascending.
func (LocationRepo) FindActive(ctx context.Context) ([]model.Location, error) {
	query := `
		SELECT id, name, transit_time, latitude, longitude, is_active, created_at, updated_at
		FROM locations
		WHERE is_active
		ORDER BY id
	`
	rows, err := Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying active locations: %w", err)
	}
	defer rows.Close()
	return scanLocations(rows)
}

// FindByIDs returns locations by ID, ID ascending. Missing IDs are skipped.
func (LocationRepo) FindByIDs(ctx context.Context, ids []int) ([]model.Location, error) {
	query := `
		SELECT id, name, transit_time, latitude, longitude, is_active, created_at, updated_at
		FROM locations
		WHERE id = ANY($1)
		ORDER BY id
	`
	rows, err := Pool().Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("querying locations by ids: %w", err)
	}
	defer rows.Close()
	return scanLocations(rows)
}

func scanLocations(rows pgx.Rows) ([]model.Location, error) {
	var out []model.Location
	for rows.Next() {
		var loc model.Location
		if err := rows.Scan(&loc.ID, &loc.Name, &loc.TransitTime, &loc.Latitude, &loc.Longitude,
			&loc.IsActive, &loc.CreatedAt, &loc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning location: %w", err)
		}
		out = append(out, loc)
	}
	return out, rows.Err()
}

// InventoryRepo reads available-to-promise positions.
type InventoryRepo struct{}

// FindBySkuAndQuantity returns positions able to cover the quantity,
// fastest processing first.
func (InventoryRepo) FindBySkuAndQuantity(ctx context.Context, sku string, quantity int) ([]model.Inventory, error) {
	query := `
		SELECT id, location_id, sku, quantity, processing_time
		FROM inventory
		WHERE sku = $1 AND quantity >= $2
		ORDER BY processing_time, location_id
	`
	rows, err := Pool().Query(ctx, query, sku, quantity)
	if err != nil {
		return nil, fmt.Errorf("querying inventory for %s: %w", sku, err)
	}
	defer rows.Close()
	return scanInventory(rows)
}

// FindBySkusWithStock returns every stocked position for the SKUs in one
// round trip, deepest stock first.
func (InventoryRepo) FindBySkusWithStock(ctx context.Context, skus []string) ([]model.Inventory, error) {
	query := `
		SELECT id, location_id, sku, quantity, processing_time
		FROM inventory
		WHERE sku = ANY($1) AND quantity > 0
		ORDER BY quantity DESC, location_id
	`
	rows, err := Pool().Query(ctx, query, skus)
	if err != nil {
		return nil, fmt.Errorf("querying inventory batch: %w", err)
	}
	defer rows.Close()
	return scanInventory(rows)
}

// FindByLocationAndSku returns one position, or (nil, nil) when absent.
func (InventoryRepo) FindByLocationAndSku(ctx context.Context, locationID int, sku string) (*model.Inventory, error) {
	query := `
		SELECT id, location_id, sku, quantity, processing_time
		FROM inventory
		WHERE location_id = $1 AND sku = $2
		LIMIT 1
	`
	var inv model.Inventory
	err := Pool().QueryRow(ctx, query, locationID, sku).
		Scan(&inv.ID, &inv.LocationID, &inv.SKU, &inv.Quantity, &inv.ProcessingTime)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying inventory position: %w", err)
	}
	return &inv, nil
}

func scanInventory(rows pgx.Rows) ([]model.Inventory, error) {
	var out []model.Inventory
	for rows.Next() {
		var inv model.Inventory
		if err := rows.Scan(&inv.ID, &inv.LocationID, &inv.SKU, &inv.Quantity, &inv.ProcessingTime); err != nil {
			return nil, fmt.Errorf("scanning inventory: %w", err)
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// FilterRepo reads location filter definitions.
type FilterRepo struct{}

const filterColumns = `id, name, description, filter_script, is_active,
	enable_precomputation, cache_ttl_minutes, execution_priority, updated_at`

// FindByID returns an active filter, or (nil, nil) when the ID is unknown
// or the filter is inactive.
func (FilterRepo) FindByID(ctx context.Context, id string) (*model.LocationFilter, error) {
	query := `SELECT ` + filterColumns + ` FROM location_filters WHERE id = $1 AND is_active`
	var f model.LocationFilter
	err := Pool().QueryRow(ctx, query, id).Scan(&f.ID, &f.Name, &f.Description, &f.FilterScript,
		&f.IsActive, &f.EnablePrecomputation, &f.CacheTTLMinutes, &f.ExecutionPriority, &f.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying filter %s: %w", id, err)
	}
	return &f, nil
}

// FindActive returns active filters, execution priority ascending.
func (FilterRepo) FindActive(ctx context.Context) ([]model.LocationFilter, error) {
	query := `SELECT ` + filterColumns + ` FROM location_filters WHERE is_active ORDER BY execution_priority, id`
	rows, err := Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying active filters: %w", err)
	}
	defer rows.Close()
	return scanFilters(rows)
}

// FindPrecomputeEnabled returns active filters that opted into snapshot
// precomputation.
func (FilterRepo) FindPrecomputeEnabled(ctx context.Context) ([]model.LocationFilter, error) {
	query := `SELECT ` + filterColumns + ` FROM location_filters
		WHERE is_active AND enable_precomputation
		ORDER BY execution_priority, id`
	rows, err := Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying precompute filters: %w", err)
	}
	defer rows.Close()
	return scanFilters(rows)
}

func scanFilters(rows pgx.Rows) ([]model.LocationFilter, error) {
	var out []model.LocationFilter
	for rows.Next() {
		var f model.LocationFilter
		if err := rows.Scan(&f.ID, &f.Name, &f.Description, &f.FilterScript, &f.IsActive,
			&f.EnablePrecomputation, &f.CacheTTLMinutes, &f.ExecutionPriority, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning filter: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// CarrierRepo reads and writes carrier configurations.
type CarrierRepo struct{}

const carrierColumns = `id, carrier_code, service_level, delivery_type, base_transit_days,
	max_transit_days, transit_time_multiplier, pickup_cutoff_time, next_pickup_time,
	delivery_start_time, delivery_end_time, weekend_pickup, weekend_delivery,
	max_distance_km, carrier_priority, supports_hazmat, supports_cold_chain,
	supports_high_value, max_value_limit, on_time_performance, peak_season_delay_days, is_active`

// FindActiveByDeliveryType returns active configurations for a delivery
// type, priority ascending.
func (CarrierRepo) FindActiveByDeliveryType(ctx context.Context, deliveryType string) ([]model.CarrierConfiguration, error) {
	query := `SELECT ` + carrierColumns + ` FROM carrier_configurations
		WHERE delivery_type = $1 AND is_active
		ORDER BY carrier_priority, id`
	rows, err := Pool().Query(ctx, query, deliveryType)
	if err != nil {
		return nil, fmt.Errorf("querying carriers for %s: %w", deliveryType, err)
	}
	defer rows.Close()

	var out []model.CarrierConfiguration
	for rows.Next() {
		var c model.CarrierConfiguration
		if err := rows.Scan(&c.ID, &c.CarrierCode, &c.ServiceLevel, &c.DeliveryType, &c.BaseTransitDays,
			&c.MaxTransitDays, &c.TransitTimeMultiplier, &c.PickupCutoffTime, &c.NextPickupTime,
			&c.DeliveryStartTime, &c.DeliveryEndTime, &c.WeekendPickup, &c.WeekendDelivery,
			&c.MaxDistanceKm, &c.CarrierPriority, &c.SupportsHazmat, &c.SupportsColdChain,
			&c.SupportsHighValue, &c.MaxValueLimit, &c.OnTimePerformance, &c.PeakSeasonDelayDays,
			&c.IsActive); err != nil {
			return nil, fmt.Errorf("scanning carrier: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Upsert inserts or updates a configuration keyed by
// (carrier_code, service_level, delivery_type). Used by the import CLI.
func (CarrierRepo) Upsert(ctx context.Context, c *model.CarrierConfiguration) error {
	query := `
		INSERT INTO carrier_configurations (
			carrier_code, service_level, delivery_type, base_transit_days,
			max_transit_days, transit_time_multiplier, pickup_cutoff_time, next_pickup_time,
			delivery_start_time, delivery_end_time, weekend_pickup, weekend_delivery,
			max_distance_km, carrier_priority, supports_hazmat, supports_cold_chain,
			supports_high_value, max_value_limit, on_time_performance, peak_season_delay_days, is_active
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21
		)
		ON CONFLICT (carrier_code, service_level, delivery_type) DO UPDATE SET
			base_transit_days = EXCLUDED.base_transit_days,
			max_transit_days = EXCLUDED.max_transit_days,
			transit_time_multiplier = EXCLUDED.transit_time_multiplier,
			pickup_cutoff_time = EXCLUDED.pickup_cutoff_time,
			next_pickup_time = EXCLUDED.next_pickup_time,
			delivery_start_time = EXCLUDED.delivery_start_time,
			delivery_end_time = EXCLUDED.delivery_end_time,
			weekend_pickup = EXCLUDED.weekend_pickup,
			weekend_delivery = EXCLUDED.weekend_delivery,
			max_distance_km = EXCLUDED.max_distance_km,
			carrier_priority = EXCLUDED.carrier_priority,
			supports_hazmat = EXCLUDED.supports_hazmat,
			supports_cold_chain = EXCLUDED.supports_cold_chain,
			supports_high_value = EXCLUDED.supports_high_value,
			max_value_limit = EXCLUDED.max_value_limit,
			on_time_performance = EXCLUDED.on_time_performance,
			peak_season_delay_days = EXCLUDED.peak_season_delay_days,
			is_active = EXCLUDED.is_active
	`
	_, err := Pool().Exec(ctx, query,
		c.CarrierCode, c.ServiceLevel, c.DeliveryType, c.BaseTransitDays,
		c.MaxTransitDays, c.TransitTimeMultiplier, c.PickupCutoffTime, c.NextPickupTime,
		c.DeliveryStartTime, c.DeliveryEndTime, c.WeekendPickup, c.WeekendDelivery,
		c.MaxDistanceKm, c.CarrierPriority, c.SupportsHazmat, c.SupportsColdChain,
		c.SupportsHighValue, c.MaxValueLimit, c.OnTimePerformance, c.PeakSeasonDelayDays, c.IsActive)
	if err != nil {
		return fmt.Errorf("upserting carrier %s/%s: %w", c.CarrierCode, c.ServiceLevel, err)
	}
	return nil
}

// ScoringRepo reads scoring configurations.
type ScoringRepo struct{}

const scoringColumns = `id, name, description, category, execution_priority, is_active,
	transit_time_weight, processing_time_weight, inventory_weight, express_weight,
	split_penalty_base, split_penalty_exponent, split_penalty_multiplier,
	high_value_threshold, high_value_penalty, same_day_penalty, next_day_penalty,
	distance_weight, distance_threshold, base_confidence, peak_season_adjustment,
	weather_adjustment, hazmat_adjustment`

// FindActiveByID returns one active configuration, or (nil, nil).
func (ScoringRepo) FindActiveByID(ctx context.Context, id string) (*model.ScoringConfiguration, error) {
	query := `SELECT ` + scoringColumns + ` FROM scoring_configurations WHERE id = $1 AND is_active`
	var cfg model.ScoringConfiguration
	err := scanScoringRow(Pool().QueryRow(ctx, query, id), &cfg)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying scoring config %s: %w", id, err)
	}
	return &cfg, nil
}

// FindActiveByIDs returns active configurations for the given IDs.
func (ScoringRepo) FindActiveByIDs(ctx context.Context, ids []string) ([]model.ScoringConfiguration, error) {
	query := `SELECT ` + scoringColumns + ` FROM scoring_configurations WHERE id = ANY($1) AND is_active`
	rows, err := Pool().Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("querying scoring configs: %w", err)
	}
	defer rows.Close()

	var out []model.ScoringConfiguration
	for rows.Next() {
		var cfg model.ScoringConfiguration
		if err := scanScoringRow(rows, &cfg); err != nil {
			return nil, fmt.Errorf("scanning scoring config: %w", err)
		}
		out = append(out, cfg)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanScoringRow(row rowScanner, cfg *model.ScoringConfiguration) error {
	return row.Scan(&cfg.ID, &cfg.Name, &cfg.Description, &cfg.Category, &cfg.ExecutionPriority,
		&cfg.IsActive, &cfg.TransitTimeWeight, &cfg.ProcessingTimeWeight, &cfg.InventoryWeight,
		&cfg.ExpressWeight, &cfg.SplitPenaltyBase, &cfg.SplitPenaltyExponent, &cfg.SplitPenaltyMultiplier,
		&cfg.HighValueThreshold, &cfg.HighValuePenalty, &cfg.SameDayPenalty, &cfg.NextDayPenalty,
		&cfg.DistanceWeight, &cfg.DistanceThreshold, &cfg.BaseConfidence, &cfg.PeakSeasonAdjustment,
		&cfg.WeatherAdjustment, &cfg.HazmatAdjustment)
}
