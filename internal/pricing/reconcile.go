package pricing

import (
	"fmt"
	"math"
	"sort"
	"time"

	"market-clearing/internal/model"
)

// Mismatch is a time step where two clearing series disagree.
type Mismatch struct {
	TimeStep time.Time
	A, B     model.Clearing
	Diff     float64
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s: %s=%.4f vs %s=%.4f", m.TimeStep.Format(time.RFC3339), m.A.Status, m.A.Price, m.B.Status, m.B.Price)
}

// Reconcile compares two clearing series step by step. Steps present in only
// one series, or with a price in only one, count as mismatches. For a fleet
// without commitment constraints the LP dual and the merit-order price must
// agree, so an empty result is the expected outcome of a cross-validation.
func Reconcile(a, b []model.Clearing, tol float64) []Mismatch {
	byStep := make(map[time.Time]model.Clearing, len(b))
	for _, c := range b {
		byStep[c.TimeStep] = c
	}

	var out []Mismatch
	for _, ca := range a {
		cb, ok := byStep[ca.TimeStep]
		if !ok {
			out = append(out, Mismatch{TimeStep: ca.TimeStep, A: ca, Diff: math.Inf(1)})
			continue
		}
		delete(byStep, ca.TimeStep)
		if ca.HasPrice() != cb.HasPrice() {
			out = append(out, Mismatch{TimeStep: ca.TimeStep, A: ca, B: cb, Diff: math.Inf(1)})
			continue
		}
		if !ca.HasPrice() {
			continue
		}
		if d := math.Abs(ca.Price - cb.Price); d > tol {
			out = append(out, Mismatch{TimeStep: ca.TimeStep, A: ca, B: cb, Diff: d})
		}
	}
	for ts, cb := range byStep {
		out = append(out, Mismatch{TimeStep: ts, B: cb, Diff: math.Inf(1)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TimeStep.Before(out[j].TimeStep) })
	return out
}
