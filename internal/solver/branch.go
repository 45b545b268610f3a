package solver

import (
	"context"
	"fmt"
	"math"

	"market-clearing/internal/dispatch"
	"market-clearing/internal/model"
)

type node struct {
	lower, upper []float64
}

func (n node) clone() node {
	return node{
		lower: append([]float64(nil), n.lower...),
		upper: append([]float64(nil), n.upper...),
	}
}

// solveMIP runs a depth-first branch and bound over LP relaxations, then
// fixes the integer variables at the incumbent and re-solves the LP. The
// duals of a mixed-integer program are only meaningful for that fixed LP.
func (s *Simplex) solveMIP(ctx context.Context, m *dispatch.Model) (*Solution, error) {
	var ints []int
	for j, v := range m.Variables {
		if v.Kind == dispatch.Binary {
			ints = append(ints, j)
		}
	}

	lower, upper := modelBounds(m)
	for _, j := range ints {
		lower[j] = math.Ceil(lower[j] - integralityTol)
		upper[j] = math.Floor(upper[j] + integralityTol)
	}

	best := math.Inf(1)
	var incumbent []float64
	stack := []node{{lower: lower, upper: upper}}

	for nodes := 0; len(stack) > 0; nodes++ {
		if err := checkContext(ctx); err != nil {
			return nil, err
		}
		if nodes >= s.maxNodes() {
			return nil, fmt.Errorf("%w: branch and bound node limit %d reached", model.ErrSolverFailure, s.maxNodes())
		}

		nd := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		sf, status := newStandardForm(m, nd.lower, nd.upper)
		if status == Unbounded {
			return &Solution{Status: Unbounded}, nil
		}
		if status == Infeasible {
			continue
		}
		relax, err := sf.solvePrimal(s.tol())
		if err != nil {
			return nil, err
		}
		switch relax.status {
		case Infeasible:
			continue
		case Unbounded:
			return &Solution{Status: Unbounded}, nil
		}
		if relax.objective >= best-s.tol()*math.Max(1, math.Abs(best)) {
			continue
		}

		j := mostFractional(relax.x, ints)
		if j < 0 {
			best = relax.objective
			incumbent = relax.x
			continue
		}

		v := relax.x[j]
		down := nd.clone()
		down.upper[j] = math.Floor(v)
		up := nd.clone()
		up.lower[j] = math.Ceil(v)
		// Depth first, nearer rounding explored first.
		if v-math.Floor(v) < 0.5 {
			stack = append(stack, up, down)
		} else {
			stack = append(stack, down, up)
		}
	}

	if incumbent == nil {
		return &Solution{Status: Infeasible}, nil
	}

	lower, upper = modelBounds(m)
	for _, j := range ints {
		r := math.Round(incumbent[j])
		lower[j], upper[j] = r, r
	}
	return s.solveLP(ctx, m, lower, upper)
}

// mostFractional returns the integer variable farthest from integrality, or
// -1 when x is integral on all of ints.
func mostFractional(x []float64, ints []int) int {
	best, bestDist := -1, integralityTol
	for _, j := range ints {
		f := x[j] - math.Floor(x[j])
		dist := math.Min(f, 1-f)
		if dist > bestDist {
			best, bestDist = j, dist
		}
	}
	return best
}
