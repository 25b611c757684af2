package carrier

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fulfilld/sourcing-service/internal/model"
)

func ptrI(n int) *int          { return &n }
func ptrS(s string) *string    { return &s }
func weekday() time.Time       { return time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC) } // Wednesday
func saturday() time.Time      { return time.Date(2026, 3, 7, 10, 0, 0, 0, time.UTC) }
func testLoc() *model.Location { return &model.Location{Latitude: 40.7128, Longitude: -74.0060} }

func TestTransitTimeBase(t *testing.T) {
	c := carrierCfg("X", 1)
	c.BaseTransitDays = 2

	// Wednesday plus two days lands on Friday, no weekend adjustment.
	got := TransitTime(&c, testLoc(), nil, nil, weekday(), false)
	assert.Equal(t, 2, got)
}

func TestTransitTimeDistanceSurcharge(t *testing.T) {
	c := carrierCfg("X", 1)
	c.BaseTransitDays = 2
	c.WeekendDelivery = true

	// Same point, no surcharge.
	lat, lon := 40.7128, -74.0060
	assert.Equal(t, 2, TransitTime(&c, testLoc(), &lat, &lon, weekday(), false))

	// ~5 degrees of latitude is ~557km: ceil(557/1000) = 1 extra day.
	farLat := 45.7128
	assert.Equal(t, 3, TransitTime(&c, testLoc(), &farLat, &lon, weekday(), false))

	// ~20 degrees is ~2226km: ceil(2226/1000) = 3 extra days.
	veryFarLat := 60.7128
	assert.Equal(t, 5, TransitTime(&c, testLoc(), &veryFarLat, &lon, weekday(), false))
}

func TestTransitTimeMultiplier(t *testing.T) {
	c := carrierCfg("X", 1)
	c.BaseTransitDays = 3
	c.WeekendDelivery = true
	c.TransitTimeMultiplier = 1.5

	// ceil(3 * 1.5) = 5
	assert.Equal(t, 5, TransitTime(&c, testLoc(), nil, nil, weekday(), false))

	// Multiplier of exactly 1 changes nothing.
	c.TransitTimeMultiplier = 1.0
	assert.Equal(t, 3, TransitTime(&c, testLoc(), nil, nil, weekday(), false))

	// Zero multiplier is treated as unset.
	c.TransitTimeMultiplier = 0
	assert.Equal(t, 3, TransitTime(&c, testLoc(), nil, nil, weekday(), false))
}

func TestTransitTimePeakSeason(t *testing.T) {
	c := carrierCfg("X", 1)
	c.BaseTransitDays = 3
	c.WeekendDelivery = true
	c.PeakSeasonDelayDays = 2

	assert.Equal(t, 5, TransitTime(&c, testLoc(), nil, nil, weekday(), true))
	assert.Equal(t, 3, TransitTime(&c, testLoc(), nil, nil, weekday(), false))
}

func TestTransitTimeWeekendArrival(t *testing.T) {
	c := carrierCfg("X", 1)
	c.BaseTransitDays = 3

	// Wednesday plus three days projects a Saturday arrival: without
	// weekend delivery the parcel waits until Monday.
	assert.Equal(t, 5, TransitTime(&c, testLoc(), nil, nil, weekday(), false))

	c.WeekendDelivery = true
	assert.Equal(t, 3, TransitTime(&c, testLoc(), nil, nil, weekday(), false))

	// Five days from Wednesday is Monday; no adjustment needed.
	c.WeekendDelivery = false
	c.BaseTransitDays = 5
	assert.Equal(t, 5, TransitTime(&c, testLoc(), nil, nil, weekday(), false))

	// The order day itself does not matter, only where the parcel lands:
	// Saturday plus two days is Monday.
	c.BaseTransitDays = 2
	assert.Equal(t, 2, TransitTime(&c, testLoc(), nil, nil, saturday(), false))
}

func TestTransitTimeOnTimePerformance(t *testing.T) {
	c := carrierCfg("X", 1)
	c.BaseTransitDays = 3
	c.WeekendDelivery = true

	poor := 0.85
	c.OnTimePerformance = &poor
	assert.Equal(t, 4, TransitTime(&c, testLoc(), nil, nil, weekday(), false))

	good := 0.95
	c.OnTimePerformance = &good
	assert.Equal(t, 3, TransitTime(&c, testLoc(), nil, nil, weekday(), false))
}

func TestTransitTimeClampedAtMax(t *testing.T) {
	c := carrierCfg("X", 1)
	c.BaseTransitDays = 3
	c.PeakSeasonDelayDays = 5
	c.MaxTransitDays = ptrI(4)

	assert.Equal(t, 4, TransitTime(&c, testLoc(), nil, nil, weekday(), true))
}

func TestPickupTimeBeforeCutoff(t *testing.T) {
	c := carrierCfg("X", 1)
	c.PickupCutoffTime = ptrS("14:00")

	orderTime := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	pickup := PickupTime(&c, orderTime)
	assert.Equal(t, time.Date(2026, 3, 4, 14, 0, 0, 0, time.UTC), pickup)
}

func TestPickupTimeAfterCutoff(t *testing.T) {
	c := carrierCfg("X", 1)
	c.PickupCutoffTime = ptrS("14:00")
	c.NextPickupTime = ptrS("09:30")

	orderTime := time.Date(2026, 3, 4, 15, 0, 0, 0, time.UTC)
	pickup := PickupTime(&c, orderTime)
	assert.Equal(t, time.Date(2026, 3, 5, 9, 30, 0, 0, time.UTC), pickup)
}

func TestPickupTimeAfterCutoffWithoutNextPickup(t *testing.T) {
	c := carrierCfg("X", 1)
	c.PickupCutoffTime = ptrS("14:00")

	// Next-day pickup falls back to the cutoff time.
	orderTime := time.Date(2026, 3, 4, 15, 0, 0, 0, time.UTC)
	pickup := PickupTime(&c, orderTime)
	assert.Equal(t, time.Date(2026, 3, 5, 14, 0, 0, 0, time.UTC), pickup)
}

func TestPickupTimeDefaultCutoff(t *testing.T) {
	c := carrierCfg("X", 1)

	orderTime := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	pickup := PickupTime(&c, orderTime)
	assert.Equal(t, time.Date(2026, 3, 4, 15, 0, 0, 0, time.UTC), pickup)
}

func TestPickupTimeMalformedCutoffFallsBack(t *testing.T) {
	c := carrierCfg("X", 1)
	c.PickupCutoffTime = ptrS("25:99")

	orderTime := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	pickup := PickupTime(&c, orderTime)
	assert.Equal(t, time.Date(2026, 3, 4, 15, 0, 0, 0, time.UTC), pickup)
}

func TestPickupTimeWeekendRollsToMonday(t *testing.T) {
	c := carrierCfg("X", 1)
	c.PickupCutoffTime = ptrS("14:00")

	// Saturday morning order, no weekend pickup: Monday at the cutoff.
	orderTime := time.Date(2026, 3, 7, 10, 0, 0, 0, time.UTC)
	pickup := PickupTime(&c, orderTime)
	assert.Equal(t, time.Date(2026, 3, 9, 14, 0, 0, 0, time.UTC), pickup)
	assert.Equal(t, time.Monday, pickup.Weekday())
}

func TestPickupTimeWeekendPickupAllowed(t *testing.T) {
	c := carrierCfg("X", 1)
	c.PickupCutoffTime = ptrS("14:00")
	c.WeekendPickup = true

	orderTime := time.Date(2026, 3, 7, 10, 0, 0, 0, time.UTC)
	pickup := PickupTime(&c, orderTime)
	assert.Equal(t, time.Date(2026, 3, 7, 14, 0, 0, 0, time.UTC), pickup)
}

func TestPickupTimeFridayAfterCutoff(t *testing.T) {
	c := carrierCfg("X", 1)
	c.PickupCutoffTime = ptrS("14:00")

	// Friday evening order: next day is Saturday, rolled to Monday.
	orderTime := time.Date(2026, 3, 6, 16, 0, 0, 0, time.UTC)
	pickup := PickupTime(&c, orderTime)
	assert.Equal(t, time.Date(2026, 3, 9, 14, 0, 0, 0, time.UTC), pickup)
}

func TestDeliveryWindow(t *testing.T) {
	c := carrierCfg("X", 1)
	c.DeliveryStartTime = ptrS("09:00")
	c.DeliveryEndTime = ptrS("18:00")

	day := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
	start, end := DeliveryWindow(&c, day)
	assert.Equal(t, time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2026, 3, 4, 18, 0, 0, 0, time.UTC), end)
}

func TestDeliveryWindowDefaults(t *testing.T) {
	c := carrierCfg("X", 1)

	day := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
	start, end := DeliveryWindow(&c, day)
	assert.Equal(t, 8, start.Hour())
	assert.Equal(t, 20, end.Hour())
}
