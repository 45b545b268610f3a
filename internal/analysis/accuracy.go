package analysis

import (
	"math"
	"sort"
	"time"

	"market-clearing/internal/backtest"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Accuracy compares simulated prices with historical ones over the steps
// that have both.
type Accuracy struct {
	Count int

	MAE  float64
	RMSE float64
	// Bias is mean(simulated - historical).
	Bias float64
	// Correlation is Pearson's r; 0 when either series is constant.
	Correlation float64

	MeanSimulated  float64
	MeanHistorical float64

	// Error quantiles (simulated - historical).
	P05Error float64
	P95Error float64
}

func ComputeAccuracy(ledger []backtest.LedgerRow) Accuracy {
	var sim, hist []float64
	for _, r := range ledger {
		if r.HasPrice() && r.HasHistorical {
			sim = append(sim, r.Price)
			hist = append(hist, r.HistoricalPrice)
		}
	}
	a := Accuracy{Count: len(sim)}
	if a.Count == 0 {
		return a
	}

	diff := make([]float64, len(sim))
	floats.SubTo(diff, sim, hist)

	abs := make([]float64, len(diff))
	for i, d := range diff {
		abs[i] = math.Abs(d)
	}
	a.MAE = stat.Mean(abs, nil)
	a.RMSE = floats.Norm(diff, 2) / math.Sqrt(float64(len(diff)))
	a.Bias = stat.Mean(diff, nil)
	a.MeanSimulated = stat.Mean(sim, nil)
	a.MeanHistorical = stat.Mean(hist, nil)

	if a.Count > 1 {
		if r := stat.Correlation(sim, hist, nil); !math.IsNaN(r) {
			a.Correlation = r
		}
	}

	sort.Float64s(diff)
	a.P05Error = stat.Quantile(0.05, stat.LinInterp, diff, nil)
	a.P95Error = stat.Quantile(0.95, stat.LinInterp, diff, nil)
	return a
}

// PriceStats summarizes the simulated prices of a run.
type PriceStats struct {
	StartUTC time.Time
	EndUTC   time.Time

	Count int

	Min    float64
	Max    float64
	Mean   float64
	StdDev float64
	P05    float64
	P95    float64

	SpreadP95P05 float64
}

func ComputePriceStats(ledger []backtest.LedgerRow) PriceStats {
	p := PriceStats{}
	if len(ledger) == 0 {
		return p
	}
	p.StartUTC = ledger[0].TimeStep
	p.EndUTC = ledger[len(ledger)-1].TimeStep

	vals := make([]float64, 0, len(ledger))
	for _, r := range ledger {
		if r.HasPrice() {
			vals = append(vals, r.Price)
		}
	}
	p.Count = len(vals)
	if p.Count == 0 {
		return p
	}
	sort.Float64s(vals)
	p.Min = vals[0]
	p.Max = vals[len(vals)-1]
	p.Mean, p.StdDev = stat.MeanStdDev(vals, nil)
	if p.Count == 1 {
		p.StdDev = 0
	}
	p.P05 = stat.Quantile(0.05, stat.LinInterp, vals, nil)
	p.P95 = stat.Quantile(0.95, stat.LinInterp, vals, nil)
	p.SpreadP95P05 = p.P95 - p.P05
	return p
}
