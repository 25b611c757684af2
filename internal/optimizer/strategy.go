package optimizer

import (
	"sort"

	"github.com/fulfilld/sourcing-service/internal/model"
)

// Candidate is one location considered for an order line, with its
// inventory position and precomputed score.
type Candidate struct {
	Location  model.Location
	Inventory model.Inventory
	Score     float64
}

// Allocation assigns a quantity of the line to one candidate.
type Allocation struct {
	Location  model.Location
	Inventory model.Inventory
	Quantity  int
	Score     float64
}

// Strategy is the outcome of optimizing one line. Exactly two variants
// exist: SingleLocation and MultiLocation. Callers switch on the concrete
// type only to label the outcome; the shared accessors carry everything
// needed to build a plan.
type Strategy interface {
	Allocations() []Allocation
	OverallScore() float64
	TotalFulfilled() int
	Partial() bool

	strategy()
}

// SingleLocation fulfills the line from one node.
type SingleLocation struct {
	Allocation Allocation
	Requested  int
}

func (s *SingleLocation) strategy() {}

func (s *SingleLocation) Allocations() []Allocation { return []Allocation{s.Allocation} }
func (s *SingleLocation) OverallScore() float64     { return s.Allocation.Score }
func (s *SingleLocation) TotalFulfilled() int       { return s.Allocation.Quantity }
func (s *SingleLocation) Partial() bool             { return s.Allocation.Quantity < s.Requested }

// MultiLocation splits the line across nodes. Score is the
// quantity-weighted location score net of the split penalty.
type MultiLocation struct {
	Parts        []Allocation
	Requested    int
	SplitPenalty float64
	NetScore     float64
}

func (m *MultiLocation) strategy() {}

func (m *MultiLocation) Allocations() []Allocation { return m.Parts }
func (m *MultiLocation) OverallScore() float64     { return m.NetScore }
func (m *MultiLocation) Partial() bool             { return m.TotalFulfilled() < m.Requested }

func (m *MultiLocation) TotalFulfilled() int {
	total := 0
	for _, a := range m.Parts {
		total += a.Quantity
	}
	return total
}

// sortCandidates orders by score descending, then location ID ascending.
// The tie-break keeps allocation order deterministic across runs.
func sortCandidates(cands []Candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].Score != cands[j].Score {
			return cands[i].Score > cands[j].Score
		}
		return cands[i].Location.ID < cands[j].Location.ID
	})
}
