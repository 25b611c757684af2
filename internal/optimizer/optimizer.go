// Package optimizer decides how an order line is split across locations.
// It is pure: inputs are candidates with scores already attached, outputs
// are strategies, and nothing here touches storage or the clock.
package optimizer

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fulfilld/sourcing-service/internal/model"
	"github.com/fulfilld/sourcing-service/internal/scoring"
)

// PreferSingleBias is the flat penalty subtracted from a multi-location
// strategy's score when the line prefers not to split.
const PreferSingleBias = 50.0

// Optimizer evaluates single- against multi-location fulfillment.
type Optimizer struct {
	scorer *scoring.Engine
	logger zerolog.Logger
}

// New builds an optimizer over a scoring engine.
func New(scorer *scoring.Engine) *Optimizer {
	return &Optimizer{
		scorer: scorer,
		logger: log.With().Str("component", "optimizer").Logger(),
	}
}

// Optimize picks the best strategy for one line, or nil when no candidate
// can contribute under the line's policies. Candidates may arrive in any
// order; the input slice is not modified.
func (o *Optimizer) Optimize(item *model.OrderItem, order *model.OrderRequest, candidates []Candidate, cfg *model.ScoringConfiguration) Strategy {
	viable := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Inventory.Quantity > 0 {
			viable = append(viable, c)
		}
	}
	if len(viable) == 0 {
		return nil
	}
	sortCandidates(viable)

	single := o.evaluateSingle(item, order, viable)
	multi := o.evaluateMulti(item, order, viable, cfg)

	switch {
	case single == nil && multi == nil:
		return nil
	case multi == nil:
		return single
	case single == nil:
		return multi
	}

	// The single-location bias is already baked into the multi score.
	// A strategy fulfilling more of the line wins regardless of score;
	// scores only arbitrate between equally complete options.
	singleScore := single.OverallScore()
	multiScore := multi.OverallScore()
	if multi.TotalFulfilled() > single.TotalFulfilled() {
		if !item.PrefersSingleLocation(order) || multiScore > singleScore {
			return multi
		}
	}
	if singleScore >= multiScore {
		return single
	}
	return multi
}

// evaluateSingle ships from the top-ranked location, whatever it holds.
// A short top location is a partial, rejected when the line's policies
// forbid one. Lower-ranked locations with deeper stock do not get a
// look; covering more of the line is the split path's job.
func (o *Optimizer) evaluateSingle(item *model.OrderItem, order *model.OrderRequest, sorted []Candidate) Strategy {
	best := sorted[0]
	qty := best.Inventory.Quantity
	if qty > item.Quantity {
		qty = item.Quantity
	}

	partial := best.Inventory.Quantity < item.Quantity
	if partial && (item.FullQuantityRequired() || !item.PartialAllowed(order)) {
		return nil
	}

	return &SingleLocation{
		Requested: item.Quantity,
		Allocation: Allocation{
			Location:  best.Location,
			Inventory: best.Inventory,
			Quantity:  qty,
			Score:     best.Score,
		},
	}
}

// evaluateMulti greedily drains candidates best-first until the line is
// covered. Collapses to a single-location strategy when one node suffices.
func (o *Optimizer) evaluateMulti(item *model.OrderItem, order *model.OrderRequest, sorted []Candidate, cfg *model.ScoringConfiguration) Strategy {
	remaining := item.Quantity
	var parts []Allocation
	for _, c := range sorted {
		if remaining == 0 {
			break
		}
		qty := c.Inventory.Quantity
		if qty > remaining {
			qty = remaining
		}
		parts = append(parts, Allocation{
			Location:  c.Location,
			Inventory: c.Inventory,
			Quantity:  qty,
			Score:     c.Score,
		})
		remaining -= qty
	}

	if len(parts) == 0 {
		return nil
	}
	if remaining > 0 {
		if item.FullQuantityRequired() {
			return nil
		}
		if !item.PartialAllowed(order) {
			return nil
		}
	}

	if len(parts) == 1 {
		return &SingleLocation{Requested: item.Quantity, Allocation: parts[0]}
	}

	fulfilled := item.Quantity - remaining
	weighted := 0.0
	for _, p := range parts {
		weighted += p.Score * float64(p.Quantity) / float64(fulfilled)
	}
	penalty := o.scorer.SplitPenalty(len(parts), item.Value(), cfg, item)

	net := weighted - penalty
	if item.PrefersSingleLocation(order) {
		net -= PreferSingleBias
	}

	return &MultiLocation{
		Parts:        parts,
		Requested:    item.Quantity,
		SplitPenalty: penalty,
		NetScore:     net,
	}
}
