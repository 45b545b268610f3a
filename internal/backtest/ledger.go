package backtest

import (
	"time"

	"market-clearing/internal/model"
)

// LedgerRow is one row of per-step output.
// This is the primary artifact for "what happened" in a clearing run.
type LedgerRow struct {
	Index    int
	TimeStep time.Time

	DemandMW          float64
	RenewableMW       float64
	EffectiveDemandMW float64
	CapacityMW        float64

	// Price is meaningful only when Status is not INFEASIBLE.
	Price  float64
	Status model.Status

	PriceSetter      string
	SetterTechnology model.Technology

	HistoricalPrice float64
	HasHistorical   bool

	// Dispatch maps unit ID to MW; nil when the step produced no dispatch.
	Dispatch map[string]float64
}

func (r LedgerRow) HasPrice() bool {
	return r.Status != model.StatusInfeasible
}

// Summary counts steps by status and describes the priced steps.
type Summary struct {
	Steps      int
	Cleared    int
	Floor      int
	Scarcity   int
	Infeasible int

	MeanPrice float64
	MinPrice  float64
	MaxPrice  float64
}

type Result struct {
	Strategy string
	Units    []string
	Ledger   []LedgerRow
	Summary  Summary
}

func summarize(ledger []LedgerRow) Summary {
	s := Summary{Steps: len(ledger)}
	priced := 0
	sum := 0.0
	for _, r := range ledger {
		switch r.Status {
		case model.StatusCleared:
			s.Cleared++
		case model.StatusFloor:
			s.Floor++
		case model.StatusScarcity:
			s.Scarcity++
		case model.StatusInfeasible:
			s.Infeasible++
		}
		if !r.HasPrice() {
			continue
		}
		if priced == 0 || r.Price < s.MinPrice {
			s.MinPrice = r.Price
		}
		if priced == 0 || r.Price > s.MaxPrice {
			s.MaxPrice = r.Price
		}
		sum += r.Price
		priced++
	}
	if priced > 0 {
		s.MeanPrice = sum / float64(priced)
	}
	return s
}

// Clearings recovers the per-step prices of a run, e.g. for pricing.Reconcile.
func (r *Result) Clearings() []model.Clearing {
	out := make([]model.Clearing, len(r.Ledger))
	for i, row := range r.Ledger {
		out[i] = model.Clearing{
			TimeStep:         row.TimeStep,
			Price:            row.Price,
			Status:           row.Status,
			PriceSetter:      row.PriceSetter,
			SetterTechnology: row.SetterTechnology,
			Dispatch:         row.Dispatch,
		}
	}
	return out
}
