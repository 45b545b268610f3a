package pricing

import (
	"fmt"
	"math"

	"market-clearing/internal/model"
	"market-clearing/internal/solver"
)

const (
	DefaultFloor = 0.0
	DefaultCap   = 3000.0
)

// Policy bounds every published price to [Floor, Cap].
type Policy struct {
	Floor float64
	Cap   float64
}

func DefaultPolicy() Policy {
	return Policy{Floor: DefaultFloor, Cap: DefaultCap}
}

func (p Policy) Validate() error {
	if p.Floor < 0 {
		return &model.DomainError{Field: "pricing.floor", Value: p.Floor, Rule: "must be >= 0"}
	}
	if p.Cap < p.Floor {
		return &model.DomainError{Field: "pricing.cap", Value: p.Cap, Rule: "must be >= pricing.floor"}
	}
	return nil
}

func (p Policy) Clip(price float64) float64 {
	return math.Max(p.Floor, math.Min(p.Cap, price))
}

// Edge applies the demand-edge rules shared by all strategies. When ok is
// true the step needs no dispatch:
// - effective demand <= 0: nothing has to run, price = floor
// - effective demand > fleet capacity: scarcity, price = cap
func (p Policy) Edge(effectiveDemand, totalCapacity float64) (price float64, status model.Status, ok bool) {
	switch {
	case effectiveDemand <= 0:
		return p.Floor, model.StatusFloor, true
	case effectiveDemand > totalCapacity:
		return p.Cap, model.StatusScarcity, true
	default:
		return 0, "", false
	}
}

// FromSolution turns the solver status and the dual of a demand constraint
// into a price. An infeasible model yields model.ErrInfeasible and no price.
func (p Policy) FromSolution(status solver.Status, dual float64) (float64, model.Status, error) {
	switch status {
	case solver.Optimal:
		if math.IsNaN(dual) || math.IsInf(dual, 0) {
			return 0, "", fmt.Errorf("%w: non-finite dual %v", model.ErrSolverFailure, dual)
		}
		return p.Clip(dual), model.StatusCleared, nil
	case solver.Infeasible:
		return 0, model.StatusInfeasible, model.ErrInfeasible
	default:
		return 0, "", fmt.Errorf("%w: status %s", model.ErrSolverFailure, status)
	}
}
