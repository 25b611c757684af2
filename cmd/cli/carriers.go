package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/xuri/excelize/v2"

	"github.com/fulfilld/sourcing-service/internal/database"
	"github.com/fulfilld/sourcing-service/internal/model"
)

var carriersCmd = &cobra.Command{
	Use:   "carriers",
	Short: "Carrier configuration management",
}

var carriersImportCmd = &cobra.Command{
	Use:   "import <workbook.xlsx>",
	Short: "Import carrier configurations from an XLSX workbook",
	Long: `Reads carrier configurations from the first sheet of an XLSX workbook
and upserts them keyed by (carrier_code, service_level, delivery_type).
The header row names the columns; unknown columns are ignored.`,
	Args: cobra.ExactArgs(1),
	RunE: runCarriersImport,
}

func init() {
	carriersCmd.AddCommand(carriersImportCmd)
	rootCmd.AddCommand(carriersCmd)
}

func runCarriersImport(cmd *cobra.Command, args []string) error {
	f, err := excelize.OpenFile(args[0])
	if err != nil {
		return fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return fmt.Errorf("reading sheet %s: %w", sheets[0], err)
	}
	if len(rows) < 2 {
		return fmt.Errorf("sheet %s has no data rows", sheets[0])
	}

	header := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		header[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"carrier_code", "service_level", "delivery_type", "base_transit_days"} {
		if _, ok := header[required]; !ok {
			return fmt.Errorf("missing required column %s", required)
		}
	}

	repo := database.CarrierRepo{}
	ctx := context.Background()
	imported, skipped := 0, 0

	for rowNum, row := range rows[1:] {
		cfg, err := carrierFromRow(header, row)
		if err != nil {
			logger.Warn().Err(err).Int("row", rowNum+2).Msg("skipping row")
			skipped++
			continue
		}
		if err := repo.Upsert(ctx, cfg); err != nil {
			return fmt.Errorf("row %d: %w", rowNum+2, err)
		}
		imported++
	}

	logger.Info().Int("imported", imported).Int("skipped", skipped).Msg("carrier import complete")
	return nil
}

func carrierFromRow(header map[string]int, row []string) (*model.CarrierConfiguration, error) {
	cell := func(name string) string {
		idx, ok := header[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	code := cell("carrier_code")
	if code == "" {
		return nil, fmt.Errorf("empty carrier_code")
	}
	baseTransit, err := strconv.Atoi(cell("base_transit_days"))
	if err != nil {
		return nil, fmt.Errorf("bad base_transit_days %q", cell("base_transit_days"))
	}

	cfg := &model.CarrierConfiguration{
		CarrierCode:           code,
		ServiceLevel:          defaultStr(cell("service_level"), "STANDARD"),
		DeliveryType:          defaultStr(cell("delivery_type"), model.DeliveryStandard),
		BaseTransitDays:       baseTransit,
		TransitTimeMultiplier: parseFloatDefault(cell("transit_time_multiplier"), 1.0),
		MaxTransitDays:        parseIntPtr(cell("max_transit_days")),
		PickupCutoffTime:      strPtr(cell("pickup_cutoff_time")),
		NextPickupTime:        strPtr(cell("next_pickup_time")),
		DeliveryStartTime:     strPtr(cell("delivery_start_time")),
		DeliveryEndTime:       strPtr(cell("delivery_end_time")),
		WeekendPickup:         parseBool(cell("weekend_pickup")),
		WeekendDelivery:       parseBool(cell("weekend_delivery")),
		MaxDistanceKm:         parseFloatPtr(cell("max_distance_km")),
		CarrierPriority:       int(parseFloatDefault(cell("carrier_priority"), 1)),
		SupportsHazmat:        parseBool(cell("supports_hazmat")),
		SupportsColdChain:     parseBool(cell("supports_cold_chain")),
		SupportsHighValue:     parseBool(cell("supports_high_value")),
		MaxValueLimit:         parseFloatPtr(cell("max_value_limit")),
		OnTimePerformance:     parseFloatPtr(cell("on_time_performance")),
		PeakSeasonDelayDays:   int(parseFloatDefault(cell("peak_season_delay_days"), 0)),
		IsActive:              cell("is_active") == "" || parseBool(cell("is_active")),
	}
	return cfg, nil
}

func defaultStr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "true", "yes", "y", "1":
		return true
	}
	return false
}

func parseIntPtr(s string) *int {
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}

func parseFloatPtr(s string) *float64 {
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}

func parseFloatDefault(s string, fallback float64) float64 {
	if s == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fallback
	}
	return f
}
