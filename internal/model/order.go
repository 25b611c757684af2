package model

import (
	"fmt"
	"strings"
	"time"
)

// OrderItem is one requested line on a sourcing request.
type OrderItem struct {
	SKU                    string  `json:"sku" binding:"required"`
	Quantity               int     `json:"quantity" binding:"required,min=1"`
	DeliveryType           string  `json:"deliveryType" binding:"required"`
	LocationFilterID       string  `json:"locationFilterId" binding:"required"`
	UnitPrice              float64 `json:"unitPrice"`
	ProductCategory        string  `json:"productCategory"`
	ScoringConfigurationID string  `json:"scoringConfigurationId"`
	IsExpressPriority      bool    `json:"isExpressPriority"`
	IsHazmat               bool    `json:"isHazmat"`
	RequiresColdChain      bool    `json:"requiresColdChain"`

	// Per-item policy overrides. Nil means inherit the order-level flag.
	AllowPartialFulfillment *bool `json:"allowPartialFulfillment"`
	PreferSingleLocation    *bool `json:"preferSingleLocation"`
	RequireFullQuantity     *bool `json:"requireFullQuantity"`
	AllowBackorder          *bool `json:"allowBackorder"`
}

// OrderRequest is the sourcing request body. The order identifier is
// provisional: sourcing runs before order creation, so callers send the
// temporary id they hold at checkout time.
type OrderRequest struct {
	OrderID   string      `json:"tempOrderId" binding:"required"`
	Latitude  *float64    `json:"latitude"`
	Longitude *float64    `json:"longitude"`
	OrderTime time.Time   `json:"orderTime"` // zero value means "now"
	Items     []OrderItem `json:"orderItems" binding:"required,min=1,dive"`

	// AllowPartialFulfillment defaults to true when omitted.
	AllowPartialFulfillment *bool `json:"allowPartialFulfillment"`
	PreferSingleLocation    bool  `json:"preferSingleLocation"`
	AllowBackorder          bool  `json:"allowBackorder"`
}

// ErrInvalidRequest describes a request field that failed validation.
type ErrInvalidRequest struct {
	Field  string
	Reason string
	Index  int // item index, -1 for order-level fields
}

func (e ErrInvalidRequest) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("invalid request: items[%d].%s: %s", e.Index, e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid request: %s: %s", e.Field, e.Reason)
}

// Validate checks constraints the binding tags cannot express.
func (r *OrderRequest) Validate() error {
	if strings.TrimSpace(r.OrderID) == "" {
		return ErrInvalidRequest{Field: "tempOrderId", Reason: "must not be blank", Index: -1}
	}
	if (r.Latitude == nil) != (r.Longitude == nil) {
		return ErrInvalidRequest{Field: "latitude/longitude", Reason: "must be provided together", Index: -1}
	}
	if r.Latitude != nil && (*r.Latitude < -90 || *r.Latitude > 90) {
		return ErrInvalidRequest{Field: "latitude", Reason: "out of range", Index: -1}
	}
	if r.Longitude != nil && (*r.Longitude < -180 || *r.Longitude > 180) {
		return ErrInvalidRequest{Field: "longitude", Reason: "out of range", Index: -1}
	}
	if len(r.Items) == 0 {
		return ErrInvalidRequest{Field: "orderItems", Reason: "must not be empty", Index: -1}
	}
	for i, item := range r.Items {
		if strings.TrimSpace(item.SKU) == "" {
			return ErrInvalidRequest{Field: "sku", Reason: "must not be blank", Index: i}
		}
		if item.Quantity < 1 {
			return ErrInvalidRequest{Field: "quantity", Reason: "must be at least 1", Index: i}
		}
		if strings.TrimSpace(item.LocationFilterID) == "" {
			return ErrInvalidRequest{Field: "locationFilterId", Reason: "must not be blank", Index: i}
		}
		switch item.DeliveryType {
		case DeliverySameDay, DeliveryNextDay, DeliveryStandard, DeliveryShipFromStore:
		default:
			return ErrInvalidRequest{Field: "deliveryType", Reason: "unknown delivery type", Index: i}
		}
		if item.UnitPrice < 0 {
			return ErrInvalidRequest{Field: "unitPrice", Reason: "must not be negative", Index: i}
		}
	}
	return nil
}

// EffectiveOrderTime returns the order timestamp, defaulting to now.
func (r *OrderRequest) EffectiveOrderTime() time.Time {
	if r.OrderTime.IsZero() {
		return time.Now()
	}
	return r.OrderTime
}

// HasCoordinates reports whether the order carries a delivery point.
func (r *OrderRequest) HasCoordinates() bool {
	return r.Latitude != nil && r.Longitude != nil
}

// TotalQuantity sums the quantities across all items.
func (r *OrderRequest) TotalQuantity() int {
	total := 0
	for _, item := range r.Items {
		total += item.Quantity
	}
	return total
}

// DistinctDeliveryTypes counts the delivery types requested on the order.
func (r *OrderRequest) DistinctDeliveryTypes() int {
	seen := make(map[string]struct{}, len(r.Items))
	for _, item := range r.Items {
		seen[item.DeliveryType] = struct{}{}
	}
	return len(seen)
}

// Value is the monetary value of the line.
func (it *OrderItem) Value() float64 {
	return it.UnitPrice * float64(it.Quantity)
}

// IsTimeSensitive reports whether the line demands an expedited service.
func (it *OrderItem) IsTimeSensitive() bool {
	return it.DeliveryType == DeliverySameDay || it.DeliveryType == DeliveryNextDay
}

// RequiresHighSecurity flags lines that only high-value capable carriers
// may handle: expensive units or theft-prone categories.
func (it *OrderItem) RequiresHighSecurity() bool {
	if it.UnitPrice > 1000 {
		return true
	}
	cat := strings.ToUpper(it.ProductCategory)
	return strings.HasPrefix(cat, "ELECTRONICS") || strings.HasPrefix(cat, "JEWELRY")
}

// PartialAllowed resolves the partial-fulfillment policy, item over order.
// Partials are on unless somebody turned them off.
func (it *OrderItem) PartialAllowed(order *OrderRequest) bool {
	if it.AllowPartialFulfillment != nil {
		return *it.AllowPartialFulfillment
	}
	if order.AllowPartialFulfillment != nil {
		return *order.AllowPartialFulfillment
	}
	return true
}

// PrefersSingleLocation resolves the single-location preference, item over order.
func (it *OrderItem) PrefersSingleLocation(order *OrderRequest) bool {
	if it.PreferSingleLocation != nil {
		return *it.PreferSingleLocation
	}
	return order.PreferSingleLocation
}

// FullQuantityRequired reports the all-or-nothing policy. There is no
// order-level counterpart; the flag only makes sense per line.
func (it *OrderItem) FullQuantityRequired() bool {
	return it.RequireFullQuantity != nil && *it.RequireFullQuantity
}

// BackorderAllowed resolves the backorder policy, item over order.
func (it *OrderItem) BackorderAllowed(order *OrderRequest) bool {
	if it.AllowBackorder != nil {
		return *it.AllowBackorder
	}
	return order.AllowBackorder
}
