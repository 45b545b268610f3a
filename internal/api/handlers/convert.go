package handlers

import (
	"time"

	"market-clearing/internal/analysis"
	"market-clearing/internal/api/models"
	"market-clearing/internal/backtest"
	"market-clearing/internal/config"
)

func toConfig(req models.ClearingConfig) config.Config {
	return config.Config{
		Strategy: config.StrategyConfig{
			Name:   req.Strategy.Name,
			Params: req.Strategy.Params,
		},
		Pricing: config.PricingConfig{
			Floor: req.Pricing.Floor,
			Cap:   req.Pricing.Cap,
		},
		Solver: config.SolverConfig{
			Timeout:    time.Duration(req.Solver.TimeoutMs) * time.Millisecond,
			MaxRetries: req.Solver.MaxRetries,
			MaxNodes:   req.Solver.MaxNodes,
		},
	}
}

func toSummary(res *backtest.Result) models.ClearingSummary {
	s := models.ClearingSummary{
		Steps:      res.Summary.Steps,
		Cleared:    res.Summary.Cleared,
		Floor:      res.Summary.Floor,
		Scarcity:   res.Summary.Scarcity,
		Infeasible: res.Summary.Infeasible,
		MeanPrice:  res.Summary.MeanPrice,
		MinPrice:   res.Summary.MinPrice,
		MaxPrice:   res.Summary.MaxPrice,
	}
	if n := len(res.Ledger); n > 0 {
		s.Window = models.TimeWindow{Start: res.Ledger[0].TimeStep, End: res.Ledger[n-1].TimeStep}
	}
	return s
}

// toAccuracy returns nil when no step has a historical price.
func toAccuracy(a analysis.Accuracy) *models.Accuracy {
	if a.Count == 0 {
		return nil
	}
	return &models.Accuracy{
		Count:          a.Count,
		MAE:            a.MAE,
		RMSE:           a.RMSE,
		Bias:           a.Bias,
		Correlation:    a.Correlation,
		MeanSimulated:  a.MeanSimulated,
		MeanHistorical: a.MeanHistorical,
		P05Error:       a.P05Error,
		P95Error:       a.P95Error,
	}
}

func toSetters(in []analysis.SetterShare) []models.PriceSetter {
	out := make([]models.PriceSetter, len(in))
	for i, s := range in {
		out[i] = models.PriceSetter{
			Technology: string(s.Technology),
			Steps:      s.Steps,
			Share:      s.Share,
			MeanPrice:  s.MeanPrice,
		}
	}
	return out
}

func toLedger(ledger []backtest.LedgerRow, includeDispatch bool) []models.LedgerRow {
	out := make([]models.LedgerRow, len(ledger))
	for i, row := range ledger {
		r := models.LedgerRow{
			Index:             row.Index,
			TimeStep:          row.TimeStep,
			DemandMW:          row.DemandMW,
			RenewableMW:       row.RenewableMW,
			EffectiveDemandMW: row.EffectiveDemandMW,
			CapacityMW:        row.CapacityMW,
			Status:            string(row.Status),
			PriceSetter:       row.PriceSetter,
			SetterTechnology:  string(row.SetterTechnology),
		}
		if row.HasPrice() {
			price := row.Price
			r.Price = &price
		}
		if row.HasHistorical {
			h := row.HistoricalPrice
			r.HistoricalPrice = &h
		}
		if includeDispatch {
			r.Dispatch = row.Dispatch
		}
		out[i] = r
	}
	return out
}
