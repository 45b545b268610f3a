// Package solver adapts numerical LP/MILP solvers to dispatch models.
package solver

import (
	"context"
	"fmt"

	"market-clearing/internal/dispatch"
)

type Status int

const (
	Optimal Status = iota
	Infeasible
	Unbounded
)

func (s Status) String() string {
	switch s {
	case Optimal:
		return "optimal"
	case Infeasible:
		return "infeasible"
	case Unbounded:
		return "unbounded"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Solution is the solver response. Primal is indexed like Model.Variables and
// Dual like Model.Constraints; both are only set when Status is Optimal.
//
// For mixed-integer models Dual belongs to the LP obtained by fixing the
// integer variables at their optimal values.
type Solution struct {
	Status    Status
	Objective float64
	Primal    []float64
	Dual      []float64
}

// Solver solves a dispatch model. A non-nil error means no definitive status
// could be produced (model.ErrSolverFailure, model.ErrSolverTimeout);
// infeasibility is a status, not an error.
type Solver interface {
	Solve(ctx context.Context, m *dispatch.Model) (*Solution, error)
}
