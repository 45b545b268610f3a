// Package strategy turns per-step snapshots into market clearing prices.
package strategy

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"market-clearing/internal/dispatch"
	"market-clearing/internal/metrics"
	"market-clearing/internal/model"
	"market-clearing/internal/pricing"
	"market-clearing/internal/solver"

	"github.com/sirupsen/logrus"
)

const (
	NameMeritOrder     = "merit-order"
	NameDispatch       = "dispatch"
	NameUnitCommitment = "unit-commitment"

	DefaultMinOutputFraction = 0.1
)

// Strategy clears a sequence of time steps. The result has one Clearing per
// snapshot, in the same order. Infeasible steps come back with
// model.StatusInfeasible; any returned error aborts the whole run.
type Strategy interface {
	Name() string
	Clear(ctx context.Context, snaps []model.Snapshot) ([]model.Clearing, error)
}

// Names lists the strategies New understands.
func Names() []string {
	return []string{NameMeritOrder, NameDispatch, NameUnitCommitment}
}

// Deps are shared by every strategy built through New.
type Deps struct {
	Policy  pricing.Policy
	Solver  solver.Solver
	Timeout time.Duration // per solver call, 0 = none
	Workers int
	Logger  *logrus.Logger
	Metrics *metrics.Metrics
}

// New builds the named strategy. params come straight from config or a
// request body.
func New(name string, params map[string]any, deps Deps) (Strategy, error) {
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}
	if deps.Solver == nil && name != NameMeritOrder {
		deps.Solver = &solver.Simplex{}
	}

	switch name {
	case NameMeritOrder:
		return &MeritOrder{Policy: deps.Policy, Workers: deps.Workers}, nil
	case NameDispatch:
		return &Dispatch{
			Policy:  deps.Policy,
			Solver:  deps.Solver,
			Timeout: deps.Timeout,
			Logger:  deps.Logger,
			Metrics: deps.Metrics,
		}, nil
	case NameUnitCommitment:
		frac, err := num(params, "min_output_fraction", DefaultMinOutputFraction)
		if err != nil {
			return nil, err
		}
		if frac < 0 || frac > 1 {
			return nil, &model.DomainError{Field: "min_output_fraction", Value: frac, Rule: "must be in [0, 1]"}
		}
		horizon, err := num(params, "horizon", 0)
		if err != nil {
			return nil, err
		}
		if horizon < 0 || horizon != math.Trunc(horizon) {
			return nil, &model.DomainError{Field: "horizon", Value: horizon, Rule: "must be a non-negative integer"}
		}
		return &UnitCommitment{
			Policy:            deps.Policy,
			Solver:            deps.Solver,
			MinOutputFraction: frac,
			Horizon:           int(horizon),
			Timeout:           deps.Timeout,
			Logger:            deps.Logger,
			Metrics:           deps.Metrics,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported strategy: %q", name)
	}
}

// num reads a numeric parameter. YAML decodes integers as int, JSON as
// float64; both are accepted.
func num(params map[string]any, key string, def float64) (float64, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return def, nil
	}
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	default:
		return 0, fmt.Errorf("strategy param %q: expected a number, got %T", key, v)
	}
}

// solve runs one solver call under the per-call timeout.
func solve(ctx context.Context, s solver.Solver, m *dispatch.Model, timeout time.Duration, name string, mt *metrics.Metrics) (*solver.Solution, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	start := time.Now()
	sol, err := s.Solve(ctx, m)
	mt.ObserveSolve(name, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	if sol == nil {
		return nil, fmt.Errorf("%w: empty solution", model.ErrSolverFailure)
	}
	return sol, nil
}

func dualOf(sol *solver.Solution, row int) float64 {
	if row < 0 || row >= len(sol.Dual) {
		return math.NaN()
	}
	return sol.Dual[row]
}

// outputs reads the dispatch of period t out of a solution.
func outputs(m *dispatch.Model, sol *solver.Solution, t int) map[string]float64 {
	out := make(map[string]float64, len(m.Units))
	for u, id := range m.Units {
		v := sol.Primal[m.Output(t, u)]
		if math.Abs(v) < 1e-9 {
			v = 0
		}
		out[id] = v
	}
	return out
}

// marginalUnit names the producing unit whose marginal cost equals price,
// cheapest first in fleet order.
func marginalUnit(units []model.PricedUnit, disp map[string]float64, price float64) (string, model.Technology) {
	tol := 1e-6 * math.Max(1, math.Abs(price))
	for _, u := range units {
		if disp[u.ID] > 1e-9 && math.Abs(u.MarginalCost-price) <= tol {
			return u.ID, u.Technology
		}
	}
	return "", ""
}

func stepError(ts time.Time, err error) error {
	var se *model.StepError
	if errors.As(err, &se) {
		return err
	}
	return &model.StepError{TimeStep: ts, Err: err}
}
