package strategy

import (
	"context"
	"time"

	"market-clearing/internal/dispatch"
	"market-clearing/internal/metrics"
	"market-clearing/internal/model"
	"market-clearing/internal/pricing"
	"market-clearing/internal/solver"

	"github.com/sirupsen/logrus"
)

// UnitCommitment solves one mixed-integer model over the horizon, with on/off
// decisions and minimum output per unit and step. Prices are the duals of the
// demand balances of the LP with commitments fixed.
//
// Steps caught by the demand-edge rules never enter the model. Horizon > 0
// splits the remaining steps into models of at most Horizon steps.
type UnitCommitment struct {
	Policy            pricing.Policy
	Solver            solver.Solver
	MinOutputFraction float64
	Horizon           int
	Timeout           time.Duration
	Logger            *logrus.Logger
	Metrics           *metrics.Metrics
}

func (s *UnitCommitment) Name() string { return NameUnitCommitment }

func (s *UnitCommitment) Clear(ctx context.Context, snaps []model.Snapshot) ([]model.Clearing, error) {
	out := make([]model.Clearing, len(snaps))
	var pending []int
	for i, snap := range snaps {
		out[i].TimeStep = snap.TimeStep
		if price, status, ok := s.Policy.Edge(snap.EffectiveDemand(), snap.TotalCapacity()); ok {
			out[i].Price, out[i].Status = price, status
			continue
		}
		pending = append(pending, i)
	}

	for _, idx := range chunk(pending, s.Horizon) {
		if err := s.clearSteps(ctx, snaps, idx, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// clearSteps solves the steps idx jointly and writes their clearings into
// out. An infeasible joint model is re-solved one step at a time so that
// only the offending steps are marked infeasible.
func (s *UnitCommitment) clearSteps(ctx context.Context, snaps []model.Snapshot, idx []int, out []model.Clearing) error {
	sub := make([]model.Snapshot, len(idx))
	for k, i := range idx {
		sub[k] = snaps[i]
	}
	first := sub[0].TimeStep

	m, err := dispatch.UnitCommitment(sub, s.MinOutputFraction)
	if err != nil {
		return stepError(first, err)
	}
	sol, err := solve(ctx, s.Solver, m, s.Timeout, s.Name(), s.Metrics)
	if err != nil {
		return stepError(first, err)
	}

	if sol.Status == solver.Infeasible {
		if len(idx) == 1 {
			s.Logger.WithFields(logrus.Fields{
				"strategy":  s.Name(),
				"time_step": first,
				"demand":    sub[0].EffectiveDemand(),
			}).Warn("[UnitCommitment] no feasible commitment")
			out[idx[0]].Status = model.StatusInfeasible
			return nil
		}
		s.Logger.WithFields(logrus.Fields{
			"strategy": s.Name(),
			"from":     first,
			"steps":    len(idx),
		}).Info("[UnitCommitment] joint model infeasible, solving steps individually")
		for _, i := range idx {
			if err := s.clearSteps(ctx, snaps, []int{i}, out); err != nil {
				return err
			}
		}
		return nil
	}

	for t, i := range idx {
		dual := dualOf(sol, m.DemandConstraint(t))
		price, status, err := s.Policy.FromSolution(sol.Status, dual)
		if err != nil {
			return stepError(snaps[i].TimeStep, err)
		}
		c := &out[i]
		c.Price, c.Status = price, status
		c.Dispatch = outputs(m, sol, t)
		c.PriceSetter, c.SetterTechnology = marginalUnit(snaps[i].Units, c.Dispatch, dual)
	}
	return nil
}

// chunk splits idx into consecutive groups of at most size; size <= 0 keeps
// a single group.
func chunk(idx []int, size int) [][]int {
	if len(idx) == 0 {
		return nil
	}
	if size <= 0 || size >= len(idx) {
		return [][]int{idx}
	}
	var out [][]int
	for len(idx) > 0 {
		n := size
		if n > len(idx) {
			n = len(idx)
		}
		out = append(out, idx[:n])
		idx = idx[n:]
	}
	return out
}
