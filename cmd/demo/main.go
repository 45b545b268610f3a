package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"market-clearing/internal/backtest"
	"market-clearing/internal/data"
	"market-clearing/internal/pricing"
	"market-clearing/internal/strategy"

	"github.com/sirupsen/logrus"
)

// Demo:
// - Build (or load) a three-unit scenario
// - Clear it with merit order, LP dispatch and unit commitment
// - Show that the prices agree and where they come from
func main() {
	scenarioPath := flag.String("scenario", "", "Optional: path to a scenario JSON (default: built-in three-unit fleet)")
	outCSV := flag.String("out", "", "Optional path to write the merit-order ledger CSV (e.g. results/demo.csv)")
	verbose := flag.Bool("v", false, "Log solver and engine activity")
	flag.Parse()

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	scenario := threeUnitScenario()
	if *scenarioPath != "" {
		s, err := data.LoadScenarioJSON(*scenarioPath)
		if err != nil {
			logger.WithError(err).Fatal("failed to load scenario")
		}
		scenario = s
	}

	in, err := scenario.Inputs()
	if err != nil {
		logger.WithError(err).Fatal("invalid scenario")
	}

	fmt.Printf("Scenario %q: %d units, %d steps\n\n", scenario.Name, len(in.Dataset.Units), len(in.Steps))

	engine := backtest.New(logger, nil)
	deps := strategy.Deps{Policy: pricing.DefaultPolicy(), Timeout: 10 * time.Second, Logger: logger}

	var results []*backtest.Result
	for _, name := range strategy.Names() {
		strat, err := strategy.New(name, nil, deps)
		if err != nil {
			logger.WithError(err).Fatal("invalid strategy")
		}
		res, err := engine.Run(context.Background(), in, strat)
		if err != nil {
			logger.WithError(err).WithField("strategy", name).Fatal("clearing failed")
		}
		results = append(results, res)
	}

	fmt.Printf("%-17s %8s %8s %8s", "time step", "demand", "renew", "eff")
	for _, res := range results {
		fmt.Printf(" %16s", res.Strategy)
	}
	fmt.Printf("  %s\n", "setter")
	for i, row := range results[0].Ledger {
		fmt.Printf("%-17s %8.1f %8.1f %8.1f", row.TimeStep.Format("2006-01-02 15:04"), row.DemandMW, row.RenewableMW, row.EffectiveDemandMW)
		for _, res := range results {
			r := res.Ledger[i]
			if !r.HasPrice() {
				fmt.Printf(" %16s", r.Status)
				continue
			}
			fmt.Printf(" %7.2f %-8s", r.Price, r.Status)
		}
		fmt.Printf("  %s\n", row.PriceSetter)
	}
	fmt.Println()

	for _, res := range results[1:] {
		if m := pricing.Reconcile(results[0].Clearings(), res.Clearings(), 1e-6); len(m) > 0 {
			fmt.Printf("%s differs from %s on %d steps\n", res.Strategy, results[0].Strategy, len(m))
		} else {
			fmt.Printf("%s matches %s on every step\n", res.Strategy, results[0].Strategy)
		}
	}

	if *outCSV != "" {
		if err := backtest.WriteLedgerCSV(*outCSV, results[0].Ledger, backtest.DefaultPriceDecimals); err != nil {
			logger.WithError(err).Fatal("failed to write CSV")
		}
		fmt.Printf("\nWrote CSV: %s\n", *outCSV)
	}
}

// threeUnitScenario: A 100 MW at 20, B 50 MW at 40, C 200 MW at 60. The
// last step has 80 MW of solar feed-in against 120 MW of demand.
func threeUnitScenario() *data.Scenario {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	fuel := map[string]float64{"lignite": 20, "hard coal": 40, "natural gas": 60}

	s := &data.Scenario{
		Name: "three-unit",
		Units: []data.ScenarioUnit{
			{ID: "A", Technology: "lignite", CapacityMW: 100, Efficiency: 1},
			{ID: "B", Technology: "hard coal", CapacityMW: 50, Efficiency: 1},
			{ID: "C", Technology: "natural gas", CapacityMW: 200, Efficiency: 1},
		},
		EmissionFactors:       map[string]float64{"lignite": 0.4, "hard coal": 0.34, "natural gas": 0.2},
		InstalledRenewablesMW: map[string]float64{"solar": 100},
	}
	for i, demand := range []float64{120, 10, 400, 0, 120} {
		cf := 0.0
		if i == 4 {
			cf = 0.8
		}
		s.Steps = append(s.Steps, data.ScenarioStep{
			Timestamp:       start.Add(time.Duration(i) * time.Hour),
			DemandMW:        demand,
			FuelPrices:      fuel,
			CapacityFactors: map[string]float64{"solar": cf},
		})
	}
	return s
}
