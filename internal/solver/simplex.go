package solver

import (
	"context"
	"errors"
	"fmt"
	"math"

	"market-clearing/internal/dispatch"
	"market-clearing/internal/model"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

const (
	DefaultTolerance = 1e-9
	DefaultMaxNodes  = 10000

	integralityTol = 1e-6
	dualityGapTol  = 1e-6
	feasibilityTol = 1e-9
)

// Simplex solves dispatch models with gonum's dense simplex. Duals are
// obtained by solving the dual program with the same method; mixed-integer
// models go through branch and bound first. Models are split into blocks that
// share no constraint and each block is solved on its own, so the periods of a
// unit-commitment model are branched on separately.
type Simplex struct {
	Tolerance float64
	MaxNodes  int
}

var _ Solver = (*Simplex)(nil)

func (s *Simplex) tol() float64 {
	if s.Tolerance <= 0 {
		return DefaultTolerance
	}
	return s.Tolerance
}

func (s *Simplex) maxNodes() int {
	if s.MaxNodes <= 0 {
		return DefaultMaxNodes
	}
	return s.MaxNodes
}

func (s *Simplex) Solve(ctx context.Context, m *dispatch.Model) (*Solution, error) {
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrSolverFailure, err)
	}
	blocks := splitBlocks(m)
	if len(blocks) == 1 {
		return s.solveBlock(ctx, m)
	}

	out := &Solution{
		Status: Optimal,
		Primal: make([]float64, len(m.Variables)),
		Dual:   make([]float64, len(m.Constraints)),
	}
	for _, b := range blocks {
		sol, err := s.solveBlock(ctx, b.model(m))
		if err != nil {
			return nil, err
		}
		switch sol.Status {
		case Infeasible:
			return &Solution{Status: Infeasible}, nil
		case Unbounded:
			out.Status = Unbounded
			continue
		}
		out.Objective += sol.Objective
		for k, j := range b.vars {
			out.Primal[j] = sol.Primal[k]
		}
		for k, i := range b.cons {
			out.Dual[i] = sol.Dual[k]
		}
	}
	if out.Status != Optimal {
		return &Solution{Status: out.Status}, nil
	}
	return out, nil
}

func (s *Simplex) solveBlock(ctx context.Context, m *dispatch.Model) (*Solution, error) {
	if m.HasIntegers() {
		return s.solveMIP(ctx, m)
	}
	lower, upper := modelBounds(m)
	return s.solveLP(ctx, m, lower, upper)
}

// solveLP solves the continuous program under the given variable bounds,
// then its dual.
func (s *Simplex) solveLP(ctx context.Context, m *dispatch.Model, lower, upper []float64) (*Solution, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	sf, status := newStandardForm(m, lower, upper)
	if status != Optimal {
		return &Solution{Status: status}, nil
	}
	p, err := sf.solvePrimal(s.tol())
	if err != nil {
		return nil, err
	}
	if p.status != Optimal {
		return &Solution{Status: p.status}, nil
	}
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	dual, err := sf.solveDual(s.tol(), p.reduced)
	if err != nil {
		return nil, err
	}
	return &Solution{
		Status:    Optimal,
		Objective: p.objective,
		Primal:    p.x,
		Dual:      dual,
	}, nil
}

type primalResult struct {
	status    Status
	objective float64
	x         []float64
	reduced   float64 // objective without the bound-shift constant
}

// standardForm is
//
//	min c'x  s.t.  A x = b, x >= 0
//
// built from the model by shifting each variable to x - lower, adding a
// slack row for every finite upper bound, and a slack (<=) or surplus (>=)
// column for every inequality. Fixed variables, zero columns and rows left
// with no columns are dropped: gonum rejects empty ones and fails on the
// degenerate x + s = 0 bound rows of fixed variables.
type standardForm struct {
	c []float64
	a *mat.Dense
	b []float64

	lower  []float64
	colOf  []int // model variable -> column, -1 if dropped (fixed at lower)
	rowOf  []int // model constraint -> row, -1 if dropped
	offset float64
}

func newStandardForm(m *dispatch.Model, lower, upper []float64) (*standardForm, Status) {
	nv := len(m.Variables)

	cost := make([]float64, nv)
	for _, t := range m.Objective {
		cost[t.Var] += t.Coef
	}

	// Dense coefficients per constraint; models are small enough for this.
	coef := make([][]float64, len(m.Constraints))
	used := make([]bool, nv)
	for r, c := range m.Constraints {
		coef[r] = make([]float64, nv)
		for _, t := range c.Terms {
			coef[r][t.Var] += t.Coef
		}
		for j, v := range coef[r] {
			if v != 0 {
				used[j] = true
			}
		}
	}

	sf := &standardForm{
		lower: lower,
		colOf: make([]int, nv),
		rowOf: make([]int, len(m.Constraints)),
	}
	for j := range lower {
		sf.offset += cost[j] * lower[j]
	}

	ncol := 0
	var bounded []int
	for j := 0; j < nv; j++ {
		finite := !math.IsInf(upper[j], 1)
		if finite && upper[j] < lower[j] {
			return nil, Infeasible
		}
		if finite && upper[j] == lower[j] {
			// Fixed; the rhs shift below substitutes it at lower.
			sf.colOf[j] = -1
			continue
		}
		if !used[j] && !finite {
			if cost[j] < 0 {
				return nil, Unbounded
			}
			sf.colOf[j] = -1
			continue
		}
		sf.colOf[j] = ncol
		ncol++
		if finite {
			bounded = append(bounded, j)
		}
	}

	type row struct {
		coef  []float64 // by model variable
		slack float64   // +1 (<=), -1 (>=), 0 (=)
		rhs   float64
		bound int // model variable for bound rows, else -1
	}
	var rows []row
	for r, c := range m.Constraints {
		rhs := c.RHS
		zero := true
		for j, v := range coef[r] {
			rhs -= v * lower[j]
			if v != 0 && sf.colOf[j] >= 0 {
				zero = false
			}
		}
		slack := 0.0
		switch c.Sense {
		case dispatch.LessEqual:
			slack = 1
		case dispatch.GreaterEqual:
			slack = -1
		}
		if zero {
			// Only fixed variables left: a constant check, not a row.
			if !holds(slack, rhs) {
				return nil, Infeasible
			}
			sf.rowOf[r] = -1
			continue
		}
		sf.rowOf[r] = len(rows)
		rows = append(rows, row{coef: coef[r], slack: slack, rhs: rhs, bound: -1})
	}
	for _, j := range bounded {
		rows = append(rows, row{slack: 1, rhs: upper[j] - lower[j], bound: j})
	}

	nslack := 0
	for _, r := range rows {
		if r.slack != 0 {
			nslack++
		}
	}
	if len(rows) == 0 {
		// Nothing constrains the kept columns; they sit at their lower bound.
		for j := range cost {
			if sf.colOf[j] >= 0 && cost[j] < 0 {
				return nil, Unbounded
			}
		}
	}

	total := ncol + nslack
	sf.c = make([]float64, total)
	for j := 0; j < nv; j++ {
		if col := sf.colOf[j]; col >= 0 {
			sf.c[col] = cost[j]
		}
	}
	sf.b = make([]float64, len(rows))
	if len(rows) > 0 {
		sf.a = mat.NewDense(len(rows), total, nil)
	}
	next := ncol
	for i, r := range rows {
		if r.bound >= 0 {
			sf.a.Set(i, sf.colOf[r.bound], 1)
		} else {
			for j, v := range r.coef {
				if col := sf.colOf[j]; col >= 0 && v != 0 {
					sf.a.Set(i, col, v)
				}
			}
		}
		if r.slack != 0 {
			sf.a.Set(i, next, r.slack)
			next++
		}
		sf.b[i] = r.rhs
	}
	return sf, Optimal
}

// holds reports whether 0 (sense) rhs is satisfied, where slack encodes the
// sense as in standardForm rows.
func holds(slack, rhs float64) bool {
	switch {
	case slack > 0:
		return rhs >= -feasibilityTol
	case slack < 0:
		return rhs <= feasibilityTol
	default:
		return math.Abs(rhs) <= feasibilityTol
	}
}

func (sf *standardForm) solvePrimal(tol float64) (primalResult, error) {
	var (
		opt float64
		xs  []float64
	)
	if sf.a != nil {
		var err error
		opt, xs, err = simplex(sf.c, sf.a, sf.b, tol)
		switch {
		case errors.Is(err, lp.ErrInfeasible):
			return primalResult{status: Infeasible}, nil
		case errors.Is(err, lp.ErrUnbounded):
			return primalResult{status: Unbounded}, nil
		case err != nil:
			return primalResult{}, fmt.Errorf("%w: primal: %v", model.ErrSolverFailure, err)
		}
	} else {
		xs = make([]float64, len(sf.c))
	}

	x := make([]float64, len(sf.colOf))
	for j, col := range sf.colOf {
		x[j] = sf.lower[j]
		if col >= 0 {
			x[j] += xs[col]
		}
	}
	return primalResult{status: Optimal, objective: opt + sf.offset, x: x, reduced: opt}, nil
}

// solveDual solves
//
//	max b'y  s.t.  A'y <= c,  y free
//
// as  min -b'(y+ - y-)  s.t.  A'y+ - A'y- + t = c,  y+, y-, t >= 0
// and maps y back onto the model constraints. primalOpt is checked against
// the dual optimum (strong duality).
func (sf *standardForm) solveDual(tol, primalOpt float64) ([]float64, error) {
	duals := make([]float64, len(sf.rowOf))
	if sf.a == nil {
		return duals, nil
	}
	m, n := sf.a.Dims()

	d := mat.NewDense(n, 2*m+n, nil)
	cost := make([]float64, 2*m+n)
	for i := 0; i < m; i++ {
		cost[i] = -sf.b[i]
		cost[m+i] = sf.b[i]
		for j := 0; j < n; j++ {
			v := sf.a.At(i, j)
			if v != 0 {
				d.Set(j, i, v)
				d.Set(j, m+i, -v)
			}
		}
	}
	for j := 0; j < n; j++ {
		d.Set(j, 2*m+j, 1)
	}

	opt, ys, err := simplex(cost, d, sf.c, tol)
	if err != nil {
		return nil, fmt.Errorf("%w: dual: %v", model.ErrSolverFailure, err)
	}
	if gap := math.Abs(-opt - primalOpt); gap > dualityGapTol*math.Max(1, math.Abs(primalOpt)) {
		return nil, fmt.Errorf("%w: duality gap %g", model.ErrSolverFailure, gap)
	}

	for r, row := range sf.rowOf {
		if row >= 0 {
			duals[r] = ys[row] - ys[m+row]
		}
	}
	return duals, nil
}

// simplex calls lp.Simplex, turning its panics on malformed input into errors.
func simplex(c []float64, a mat.Matrix, b []float64, tol float64) (opt float64, x []float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("simplex: %v", r)
		}
	}()
	return lp.Simplex(c, a, b, tol, nil)
}

func modelBounds(m *dispatch.Model) (lower, upper []float64) {
	lower = make([]float64, len(m.Variables))
	upper = make([]float64, len(m.Variables))
	for j, v := range m.Variables {
		lower[j] = v.Lower
		upper[j] = v.Upper
	}
	return lower, upper
}

func checkContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", model.ErrSolverTimeout, err)
	}
	return nil
}
