package analysis

import (
	"sort"

	"market-clearing/internal/backtest"
	"market-clearing/internal/model"
)

// SetterShare is how often a technology set the price.
type SetterShare struct {
	Technology model.Technology
	Steps      int
	Share      float64
	MeanPrice  float64
}

// RankPriceSetters counts cleared steps by price-setting technology, most
// frequent first. Steps without a named setter are ignored.
func RankPriceSetters(ledger []backtest.LedgerRow) []SetterShare {
	byTech := map[model.Technology]*SetterShare{}
	total := 0
	for _, r := range ledger {
		if r.Status != model.StatusCleared || r.SetterTechnology == "" {
			continue
		}
		s, ok := byTech[r.SetterTechnology]
		if !ok {
			s = &SetterShare{Technology: r.SetterTechnology}
			byTech[r.SetterTechnology] = s
		}
		s.Steps++
		s.MeanPrice += r.Price
		total++
	}

	out := make([]SetterShare, 0, len(byTech))
	for _, s := range byTech {
		s.MeanPrice /= float64(s.Steps)
		s.Share = float64(s.Steps) / float64(total)
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Steps != out[j].Steps {
			return out[i].Steps > out[j].Steps
		}
		return out[i].Technology < out[j].Technology
	})
	return out
}
