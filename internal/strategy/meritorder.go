package strategy

import (
	"context"
	"runtime"
	"sort"

	"market-clearing/internal/model"
	"market-clearing/internal/pricing"

	"golang.org/x/sync/errgroup"
)

// ClearMeritOrder stacks units by ascending marginal cost and returns the
// cost of the first unit whose cumulative capacity covers effectiveDemand.
// Units with equal cost keep their input order.
//
// The clearing carries the price-setting unit and the merit-order dispatch:
// cheaper units fully loaded, the setter partially, the rest idle. Edge cases
// (no residual demand, demand above capacity) carry no dispatch.
func ClearMeritOrder(units []model.PricedUnit, effectiveDemand float64, p pricing.Policy) model.Clearing {
	if price, status, ok := p.Edge(effectiveDemand, model.TotalCapacity(units)); ok {
		return model.Clearing{Price: price, Status: status}
	}

	sorted := make([]model.PricedUnit, len(units))
	copy(sorted, units)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].MarginalCost < sorted[j].MarginalCost })

	setter := len(sorted) - 1
	cum := 0.0
	for i, u := range sorted {
		if cum+u.CapacityMW >= effectiveDemand {
			setter = i
			break
		}
		cum += u.CapacityMW
	}
	// Summation order can leave cum a hair short of demand == capacity; the
	// most expensive unit then sets the price.
	if setter == len(sorted)-1 {
		cum = model.TotalCapacity(sorted[:setter])
	}

	disp := make(map[string]float64, len(sorted))
	for i, u := range sorted {
		switch {
		case i < setter:
			disp[u.ID] = u.CapacityMW
		case i == setter:
			disp[u.ID] = effectiveDemand - cum
		default:
			disp[u.ID] = 0
		}
	}

	s := sorted[setter]
	return model.Clearing{
		Price:            p.Clip(s.MarginalCost),
		Status:           model.StatusCleared,
		PriceSetter:      s.ID,
		SetterTechnology: s.Technology,
		Dispatch:         disp,
	}
}

// MeritOrder clears every step independently with ClearMeritOrder. Steps
// run concurrently, at most Workers at a time.
type MeritOrder struct {
	Policy  pricing.Policy
	Workers int
}

func (s *MeritOrder) Name() string { return NameMeritOrder }

func (s *MeritOrder) Clear(ctx context.Context, snaps []model.Snapshot) ([]model.Clearing, error) {
	workers := s.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	out := make([]model.Clearing, len(snaps))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range snaps {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			snap := snaps[i]
			c := ClearMeritOrder(snap.Units, snap.EffectiveDemand(), s.Policy)
			c.TimeStep = snap.TimeStep
			out[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
