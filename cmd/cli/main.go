package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"market-clearing/internal/analysis"
	"market-clearing/internal/backtest"
	"market-clearing/internal/config"
	"market-clearing/internal/pricing"
	"market-clearing/internal/strategy"

	"github.com/sirupsen/logrus"
)

var logger = logrus.New()

func main() {
	logger.SetOutput(os.Stderr)
	if lvl, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		logger.SetLevel(lvl)
	}

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch os.Args[1] {
	case "clear":
		cmdClear(ctx, os.Args[2:])
	case "compare":
		cmdCompare(ctx, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Println("usage:")
	fmt.Println("  cli clear --config examples/config.yaml --out results/prices.csv [--dispatch results/dispatch.csv]")
	fmt.Println("  cli compare --config examples/config.yaml")
	fmt.Println("")
	fmt.Println("notes:")
	fmt.Println("  - clear writes one row per hour with price and status=CLEARED/FLOOR/SCARCITY/INFEASIBLE")
	fmt.Println("  - compare cross-checks merit order against the LP dual and scores both against historical prices")
}

func cmdClear(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("clear", flag.ExitOnError)
	cfgPath := fs.String("config", "", "Path to YAML config")
	outPath := fs.String("out", "results/prices.csv", "Output price CSV path")
	dispatchPath := fs.String("dispatch", "", "Optional: write per-unit dispatch CSV")
	strategyName := fs.String("strategy", "", "Optional: override strategy.name from the config")
	_ = fs.Parse(args)

	cfg := loadConfig(*cfgPath, *strategyName)
	in, err := cfg.LoadInputs()
	if err != nil {
		logger.WithError(err).Fatal("failed to load inputs")
	}

	strat, err := strategy.New(cfg.Strategy.Name, cfg.Strategy.Params, cfg.StrategyDeps(strategy.Deps{Logger: logger}))
	if err != nil {
		logger.WithError(err).Fatal("invalid strategy")
	}

	res, err := backtest.New(logger, nil).Run(ctx, in, strat)
	if err != nil {
		logger.WithError(err).Fatal("clearing failed")
	}

	mustWrite(*outPath, func(path string) error { return backtest.WriteLedgerCSV(path, res.Ledger, cfg.PriceDecimals()) })
	fmt.Printf("Wrote %d rows to %s\n", len(res.Ledger), *outPath)
	if *dispatchPath != "" {
		mustWrite(*dispatchPath, func(path string) error { return backtest.WriteDispatchCSV(path, res.Ledger, res.Units) })
		fmt.Printf("Wrote dispatch to %s\n", *dispatchPath)
	}

	s := res.Summary
	fmt.Printf("Strategy=%s steps=%d cleared=%d floor=%d scarcity=%d infeasible=%d\n",
		res.Strategy, s.Steps, s.Cleared, s.Floor, s.Scarcity, s.Infeasible)
	fmt.Printf("Price mean=%.2f min=%.2f max=%.2f\n", s.MeanPrice, s.MinPrice, s.MaxPrice)
	printAnalysis(res)
}

func cmdCompare(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("compare", flag.ExitOnError)
	cfgPath := fs.String("config", "", "Path to YAML config")
	tol := fs.Float64("tol", 1e-6, "Price tolerance for the merit order vs LP check")
	_ = fs.Parse(args)

	cfg := loadConfig(*cfgPath, "")
	in, err := cfg.LoadInputs()
	if err != nil {
		logger.WithError(err).Fatal("failed to load inputs")
	}

	names := []string{strategy.NameMeritOrder, strategy.NameDispatch}
	if cfg.Strategy.Name == strategy.NameUnitCommitment {
		names = append(names, strategy.NameUnitCommitment)
	}

	engine := backtest.New(logger, nil)
	results := make(map[string]*backtest.Result, len(names))
	for _, name := range names {
		strat, err := strategy.New(name, cfg.Strategy.Params, cfg.StrategyDeps(strategy.Deps{Logger: logger}))
		if err != nil {
			logger.WithError(err).Fatal("invalid strategy")
		}
		res, err := engine.Run(ctx, in, strat)
		if err != nil {
			logger.WithError(err).WithField("strategy", name).Fatal("clearing failed")
		}
		results[name] = res
	}

	mismatches := pricing.Reconcile(
		results[strategy.NameMeritOrder].Clearings(),
		results[strategy.NameDispatch].Clearings(),
		*tol,
	)
	if len(mismatches) == 0 {
		fmt.Printf("merit-order and LP dual agree on all %d steps (tol=%g)\n\n", len(in.Steps), *tol)
	} else {
		fmt.Printf("merit-order and LP dual disagree on %d of %d steps:\n", len(mismatches), len(in.Steps))
		for i, m := range mismatches {
			if i == 10 {
				fmt.Printf("  ... %d more\n", len(mismatches)-i)
				break
			}
			fmt.Printf("  %s\n", m)
		}
		fmt.Println()
	}

	fmt.Printf("%-16s %-8s %-10s %-10s %-10s %-10s %-8s\n", "strategy", "count", "mae", "rmse", "bias", "corr", "infeas")
	for _, name := range names {
		res := results[name]
		a := analysis.ComputeAccuracy(res.Ledger)
		fmt.Printf("%-16s %-8d %-10.2f %-10.2f %-10.2f %-10.3f %-8d\n",
			name, a.Count, a.MAE, a.RMSE, a.Bias, a.Correlation, res.Summary.Infeasible)
	}

	fmt.Println("\nprice setters (merit order):")
	for _, s := range analysis.RankPriceSetters(results[strategy.NameMeritOrder].Ledger) {
		fmt.Printf("  %-14s %6.1f%%  mean=%.2f\n", s.Technology, 100*s.Share, s.MeanPrice)
	}
}

func loadConfig(path, strategyOverride string) *config.Config {
	if path == "" {
		fmt.Println("--config is required")
		os.Exit(2)
	}
	cfg, err := config.LoadUnchecked(path)
	if err != nil {
		logger.WithError(err).Fatal("failed to read config")
	}
	if strategyOverride != "" {
		cfg.Strategy.Name = strategyOverride
	}
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("invalid config")
	}
	return cfg
}

func printAnalysis(res *backtest.Result) {
	if p := analysis.ComputePriceStats(res.Ledger); p.Count > 0 {
		fmt.Printf("Price p05=%.2f p95=%.2f spread=%.2f std=%.2f\n", p.P05, p.P95, p.SpreadP95P05, p.StdDev)
	}
	if a := analysis.ComputeAccuracy(res.Ledger); a.Count > 0 {
		fmt.Printf("Versus history (%d steps): MAE=%.2f RMSE=%.2f bias=%.2f corr=%.3f\n", a.Count, a.MAE, a.RMSE, a.Bias, a.Correlation)
	}
	setters := analysis.RankPriceSetters(res.Ledger)
	parts := make([]string, 0, len(setters))
	for _, s := range setters {
		parts = append(parts, fmt.Sprintf("%s %.0f%%", s.Technology, 100*s.Share))
	}
	if len(parts) > 0 {
		fmt.Printf("Price setters: %s\n", strings.Join(parts, ", "))
	}
}

// mustWrite ensures the output dir exists before writing.
func mustWrite(path string, write func(string) error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		logger.WithError(err).Fatal("failed to create output directory")
	}
	if err := write(path); err != nil {
		logger.WithError(err).WithField("path", path).Fatal("failed to write output")
	}
}
