package rules

import (
	"fmt"
	"math"
	"time"

	"github.com/fulfilld/sourcing-service/internal/model"
)

// BuildEnv assembles the evaluation scope for one (location, order)
// pairing. weights may be nil when no scoring configuration applies to
// the item being filtered.
func BuildEnv(loc *model.Location, order *model.OrderRequest, now time.Time, weights map[string]any) Env {
	env := Env{
		"location": locationScope(loc),
		"order":    orderScope(order),
		"time":     timeScope(now),
		"math":     mathScope(),
		"business": businessScope(now),
	}

	calc := Func(func(args ...any) (any, error) {
		if err := wantArgs("calculateDistance", args, 4); err != nil {
			return nil, err
		}
		nums, err := numberArgs("calculateDistance", args)
		if err != nil {
			return nil, err
		}
		return model.DistanceKm(nums[0], nums[1], nums[2], nums[3]), nil
	})
	env["calculateDistance"] = calc

	env["distance"] = map[string]any{
		"calculate": Func(func(args ...any) (any, error) {
			if err := wantArgs("distance.calculate", args, 2); err != nil {
				return nil, err
			}
			if !order.HasCoordinates() {
				return nil, fmt.Errorf("order has no delivery coordinates")
			}
			nums, err := numberArgs("distance.calculate", args)
			if err != nil {
				return nil, err
			}
			return model.DistanceKm(*order.Latitude, *order.Longitude, nums[0], nums[1]), nil
		}),
	}

	if weights != nil {
		env["scoring"] = weights
	}
	return env
}

func locationScope(loc *model.Location) map[string]any {
	return map[string]any{
		"id":          float64(loc.ID),
		"name":        loc.Name,
		"transitTime": float64(loc.TransitTime),
		"latitude":    loc.Latitude,
		"longitude":   loc.Longitude,
		"isActive":    loc.IsActive,
	}
}

func orderScope(order *model.OrderRequest) map[string]any {
	items := make([]any, len(order.Items))
	for i, it := range order.Items {
		items[i] = map[string]any{
			"sku":               it.SKU,
			"quantity":          float64(it.Quantity),
			"deliveryType":      it.DeliveryType,
			"unitPrice":         it.UnitPrice,
			"productCategory":   it.ProductCategory,
			"isExpressPriority": it.IsExpressPriority,
			"isHazmat":          it.IsHazmat,
			"requiresColdChain": it.RequiresColdChain,
			"value":             it.Value(),
		}
	}
	scope := map[string]any{
		"tempOrderId":   order.OrderID,
		"orderItems":    items,
		"itemCount":     float64(len(order.Items)),
		"totalQuantity": float64(order.TotalQuantity()),
	}
	if order.HasCoordinates() {
		scope["latitude"] = *order.Latitude
		scope["longitude"] = *order.Longitude
	} else {
		scope["latitude"] = nil
		scope["longitude"] = nil
	}
	return scope
}

// timeScope exposes the order clock. dayOfWeek is ISO: Monday=1, Sunday=7.
func timeScope(now time.Time) map[string]any {
	dow := int(now.Weekday())
	if dow == 0 {
		dow = 7
	}
	return map[string]any{
		"hour":            float64(now.Hour()),
		"dayOfWeek":       float64(dow),
		"month":           float64(int(now.Month())),
		"isWeekend":       dow >= 6,
		"isBusinessHours": now.Hour() >= 9 && now.Hour() < 17,
	}
}

func mathScope() map[string]any {
	unary := func(name string, f func(float64) float64) Func {
		return func(args ...any) (any, error) {
			if err := wantArgs("math."+name, args, 1); err != nil {
				return nil, err
			}
			nums, err := numberArgs("math."+name, args)
			if err != nil {
				return nil, err
			}
			return f(nums[0]), nil
		}
	}
	binary := func(name string, f func(float64, float64) float64) Func {
		return func(args ...any) (any, error) {
			if err := wantArgs("math."+name, args, 2); err != nil {
				return nil, err
			}
			nums, err := numberArgs("math."+name, args)
			if err != nil {
				return nil, err
			}
			return f(nums[0], nums[1]), nil
		}
	}
	return map[string]any{
		"sqrt":  unary("sqrt", math.Sqrt),
		"abs":   unary("abs", math.Abs),
		"ceil":  unary("ceil", math.Ceil),
		"floor": unary("floor", math.Floor),
		"pow":   binary("pow", math.Pow),
		"min":   binary("min", math.Min),
		"max":   binary("max", math.Max),
	}
}

func businessScope(now time.Time) map[string]any {
	return map[string]any{
		"isPeakSeason": Func(func(args ...any) (any, error) {
			if err := wantArgs("business.isPeakSeason", args, 0); err != nil {
				return nil, err
			}
			return IsPeakSeason(now), nil
		}),
		"isHoliday": Func(func(args ...any) (any, error) {
			if err := wantArgs("business.isHoliday", args, 0); err != nil {
				return nil, err
			}
			return IsHoliday(now), nil
		}),
	}
}

// IsPeakSeason reports the November-December shipping peak.
func IsPeakSeason(t time.Time) bool {
	return t.Month() == time.November || t.Month() == time.December
}

// IsHoliday reports carrier no-op days (Christmas, New Year's Day).
func IsHoliday(t time.Time) bool {
	m, d := t.Month(), t.Day()
	return (m == time.December && d == 25) || (m == time.January && d == 1)
}

func wantArgs(name string, args []any, n int) error {
	if len(args) != n {
		return fmt.Errorf("%s takes %d argument(s), got %d", name, n, len(args))
	}
	return nil
}

func numberArgs(name string, args []any) ([]float64, error) {
	out := make([]float64, len(args))
	for i, a := range args {
		f, ok := toNumber(a)
		if !ok {
			return nil, fmt.Errorf("%s: argument %d is %T, want number", name, i+1, a)
		}
		out[i] = f
	}
	return out, nil
}
