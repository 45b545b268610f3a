package strategy

import (
	"context"
	"errors"
	"time"

	"market-clearing/internal/dispatch"
	"market-clearing/internal/metrics"
	"market-clearing/internal/model"
	"market-clearing/internal/pricing"
	"market-clearing/internal/solver"

	"github.com/sirupsen/logrus"
)

// Dispatch solves a single-period economic dispatch LP per step and reads
// the price from the dual of the demand balance.
type Dispatch struct {
	Policy  pricing.Policy
	Solver  solver.Solver
	Timeout time.Duration
	Logger  *logrus.Logger
	Metrics *metrics.Metrics
}

func (s *Dispatch) Name() string { return NameDispatch }

func (s *Dispatch) Clear(ctx context.Context, snaps []model.Snapshot) ([]model.Clearing, error) {
	out := make([]model.Clearing, 0, len(snaps))
	for _, snap := range snaps {
		c, err := s.clearStep(ctx, snap)
		if err != nil {
			return nil, stepError(snap.TimeStep, err)
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *Dispatch) clearStep(ctx context.Context, snap model.Snapshot) (model.Clearing, error) {
	c := model.Clearing{TimeStep: snap.TimeStep}
	if price, status, ok := s.Policy.Edge(snap.EffectiveDemand(), snap.TotalCapacity()); ok {
		c.Price, c.Status = price, status
		return c, nil
	}

	m, err := dispatch.SinglePeriod(snap)
	if err != nil {
		return c, err
	}
	sol, err := solve(ctx, s.Solver, m, s.Timeout, s.Name(), s.Metrics)
	if err != nil {
		return c, err
	}

	price, status, err := s.Policy.FromSolution(sol.Status, dualOf(sol, m.DemandConstraint(0)))
	if errors.Is(err, model.ErrInfeasible) {
		s.Logger.WithFields(logrus.Fields{
			"strategy":  s.Name(),
			"time_step": snap.TimeStep,
			"demand":    snap.EffectiveDemand(),
		}).Warn("[Dispatch] no feasible dispatch")
		c.Status = status
		return c, nil
	}
	if err != nil {
		return c, err
	}

	c.Price, c.Status = price, status
	c.Dispatch = outputs(m, sol, 0)
	c.PriceSetter, c.SetterTechnology = marginalUnit(snap.Units, c.Dispatch, sol.Dual[m.DemandConstraint(0)])
	return c, nil
}
