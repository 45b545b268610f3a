package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"market-clearing/internal/metrics"
	"market-clearing/internal/model"
	"market-clearing/internal/strategy"

	"github.com/sirupsen/logrus"
)

type Engine struct {
	logger  *logrus.Logger
	metrics *metrics.Metrics
}

// New returns an engine. metrics may be nil.
func New(logger *logrus.Logger, m *metrics.Metrics) *Engine {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Engine{logger: logger, metrics: m}
}

// Run clears every step of in with strat. Infeasible steps are recorded in
// the ledger; domain, lookup and solver errors abort the run and name the
// offending time step.
func (e *Engine) Run(ctx context.Context, in model.ClearingInputs, strat strategy.Strategy) (*Result, error) {
	res, err := e.run(ctx, in, strat)
	if strat != nil {
		e.metrics.ObserveRun(strat.Name(), err)
	}
	return res, err
}

func (e *Engine) run(ctx context.Context, in model.ClearingInputs, strat strategy.Strategy) (*Result, error) {
	if strat == nil {
		return nil, errors.New("strategy is nil")
	}
	if in.Dataset == nil {
		return nil, errors.New("dataset is nil")
	}
	if len(in.Steps) == 0 {
		return nil, errors.New("no time steps")
	}

	snaps := make([]model.Snapshot, len(in.Steps))
	for i, ts := range in.Steps {
		s, err := in.Dataset.Snapshot(ts, in.InstalledRenewablesMW)
		if err != nil {
			return nil, fmt.Errorf("snapshot %d: %w", i, err)
		}
		snaps[i] = s
	}

	log := e.logger.WithFields(logrus.Fields{
		"strategy": strat.Name(),
		"steps":    len(snaps),
		"from":     snaps[0].TimeStep.Format(time.RFC3339),
	})
	log.Info("[Engine] clearing started")
	start := time.Now()

	clearings, err := strat.Clear(ctx, snaps)
	if err != nil {
		log.WithError(err).Error("[Engine] clearing aborted")
		return nil, fmt.Errorf("%s: %w", strat.Name(), err)
	}
	if len(clearings) != len(snaps) {
		return nil, fmt.Errorf("%s: returned %d clearings for %d steps", strat.Name(), len(clearings), len(snaps))
	}

	ledger := make([]LedgerRow, 0, len(snaps))
	for i, s := range snaps {
		c := clearings[i]
		if !c.TimeStep.Equal(s.TimeStep) {
			return nil, fmt.Errorf("%s: clearing %d is for %s, want %s", strat.Name(), i, c.TimeStep, s.TimeStep)
		}
		row := LedgerRow{
			Index:    i,
			TimeStep: s.TimeStep,

			DemandMW:          s.DemandMW,
			RenewableMW:       s.RenewableMW,
			EffectiveDemandMW: s.EffectiveDemand(),
			CapacityMW:        s.TotalCapacity(),

			Price:  c.Price,
			Status: c.Status,

			PriceSetter:      c.PriceSetter,
			SetterTechnology: c.SetterTechnology,

			Dispatch: c.Dispatch,
		}
		if !c.HasPrice() {
			row.Price = 0
		}
		if h, ok := in.Dataset.HistoricalPrices[s.TimeStep]; ok {
			row.HistoricalPrice, row.HasHistorical = h, true
		}
		e.metrics.ObserveStep(strat.Name(), c)
		ledger = append(ledger, row)
	}

	units := make([]string, len(in.Dataset.Units))
	for i, u := range in.Dataset.Units {
		units[i] = u.ID
	}

	summary := summarize(ledger)
	log.WithFields(logrus.Fields{
		"cleared":    summary.Cleared,
		"infeasible": summary.Infeasible,
		"elapsed":    time.Since(start).String(),
	}).Info("[Engine] clearing finished")

	return &Result{
		Strategy: strat.Name(),
		Units:    units,
		Ledger:   ledger,
		Summary:  summary,
	}, nil
}
