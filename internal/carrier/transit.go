package carrier

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/fulfilld/sourcing-service/internal/model"
)

// DefaultPickupCutoff applies when a configuration carries no cutoff.
const DefaultPickupCutoff = "15:00"

// TransitTime estimates door-to-door transit days for a carrier shipping
// from a location to the customer point. custLat/custLon may be nil;
// distance surcharges are then skipped.
func TransitTime(c *model.CarrierConfiguration, from *model.Location, custLat, custLon *float64, orderTime time.Time, isPeakSeason bool) int {
	transit := float64(c.BaseTransitDays)

	if custLat != nil && custLon != nil {
		distance := model.DistanceKm(from.Latitude, from.Longitude, *custLat, *custLon)
		if distance > 500 {
			transit += math.Ceil(distance / 1000)
		}
	}

	if c.TransitTimeMultiplier > 0 && c.TransitTimeMultiplier != 1 {
		transit = math.Ceil(transit * c.TransitTimeMultiplier)
	}

	if isPeakSeason {
		transit += float64(c.PeakSeasonDelayDays)
	}

	// Project the arrival date with the days accumulated so far; landing
	// on a weekend pushes delivery to the next business window.
	arrival := orderTime.AddDate(0, 0, int(transit))
	if wd := arrival.Weekday(); (wd == time.Saturday || wd == time.Sunday) && !c.WeekendDelivery {
		transit += 2
	}

	if c.OnTimePerformance != nil && *c.OnTimePerformance < 0.9 {
		transit++
	}

	days := int(transit)
	if c.MaxTransitDays != nil && days > *c.MaxTransitDays {
		days = *c.MaxTransitDays
	}
	return days
}

// PickupTime returns when the carrier collects a shipment ready at
// orderTime. Before the cutoff the pickup is same-day at the cutoff;
// after, next day at the next-pickup time. Carriers without weekend
// pickup roll forward to Monday.
func PickupTime(c *model.CarrierConfiguration, orderTime time.Time) time.Time {
	cutoffH, cutoffM := parseTimeOfDay(c.PickupCutoffTime, DefaultPickupCutoff)
	cutoff := time.Date(orderTime.Year(), orderTime.Month(), orderTime.Day(), cutoffH, cutoffM, 0, 0, orderTime.Location())

	var pickup time.Time
	if orderTime.Before(cutoff) {
		pickup = cutoff
	} else {
		next := c.NextPickupTime
		if next == nil {
			next = c.PickupCutoffTime
		}
		h, m := parseTimeOfDay(next, DefaultPickupCutoff)
		tomorrow := orderTime.AddDate(0, 0, 1)
		pickup = time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), h, m, 0, 0, orderTime.Location())
	}

	if !c.WeekendPickup {
		for pickup.Weekday() == time.Saturday || pickup.Weekday() == time.Sunday {
			pickup = pickup.AddDate(0, 0, 1)
		}
	}
	return pickup
}

// DeliveryWindow returns the carrier's delivery window on the given day.
func DeliveryWindow(c *model.CarrierConfiguration, deliveryDate time.Time) (time.Time, time.Time) {
	startH, startM := parseTimeOfDay(c.DeliveryStartTime, "08:00")
	endH, endM := parseTimeOfDay(c.DeliveryEndTime, "20:00")
	start := time.Date(deliveryDate.Year(), deliveryDate.Month(), deliveryDate.Day(), startH, startM, 0, 0, deliveryDate.Location())
	end := time.Date(deliveryDate.Year(), deliveryDate.Month(), deliveryDate.Day(), endH, endM, 0, 0, deliveryDate.Location())
	return start, end
}

func parseTimeOfDay(s *string, fallback string) (int, int) {
	raw := fallback
	if s != nil && *s != "" {
		raw = *s
	}
	parts := strings.SplitN(raw, ":", 2)
	if len(parts) == 2 {
		h, errH := strconv.Atoi(parts[0])
		m, errM := strconv.Atoi(parts[1])
		if errH == nil && errM == nil && h >= 0 && h < 24 && m >= 0 && m < 60 {
			return h, m
		}
	}
	// Malformed stored value, fall back to the default cutoff.
	parts = strings.SplitN(DefaultPickupCutoff, ":", 2)
	h, _ := strconv.Atoi(parts[0])
	m, _ := strconv.Atoi(parts[1])
	return h, m
}
