package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"market-clearing/internal/data"
	"market-clearing/internal/model"
	"market-clearing/internal/pricing"
	"market-clearing/internal/solver"
	"market-clearing/internal/strategy"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk configuration shape (YAML).
type Config struct {
	Inputs     InputsConfig     `yaml:"inputs"`
	Renewables RenewablesConfig `yaml:"renewables"`
	Period     PeriodConfig     `yaml:"period"`
	Strategy   StrategyConfig   `yaml:"strategy"`
	Pricing    PricingConfig    `yaml:"pricing"`
	Solver     SolverConfig     `yaml:"solver"`
	Output     OutputConfig     `yaml:"output"`

	// Workers bounds concurrent time steps for the merit order (0 = GOMAXPROCS).
	Workers int `yaml:"workers"`
}

// InputsConfig holds table paths. Relative paths are resolved against the
// directory of the config file.
type InputsConfig struct {
	Units            string `yaml:"units"`
	Emissions        string `yaml:"emissions"`
	FuelPrices       string `yaml:"fuel_prices"`
	Renewables       string `yaml:"renewables"`
	Demand           string `yaml:"demand"`
	HistoricalPrices string `yaml:"historical_prices"`
	HistoricalColumn string `yaml:"historical_column"`
}

type RenewablesConfig struct {
	InstalledCapacityMW map[string]float64 `yaml:"installed_capacity_mw"`
}

// PeriodConfig is an inclusive range of hourly steps. Empty bounds default
// to the first and last demand timestamp.
type PeriodConfig struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

type StrategyConfig struct {
	Name   string         `yaml:"name"`
	Params map[string]any `yaml:"params"`
}

// PricingConfig uses pointers so that an explicit 0 floor is distinguishable
// from an absent one.
type PricingConfig struct {
	Floor *float64 `yaml:"floor"`
	Cap   *float64 `yaml:"cap"`
}

type SolverConfig struct {
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
	Tolerance  float64       `yaml:"tolerance"`
	MaxNodes   int           `yaml:"max_nodes"`
}

type OutputConfig struct {
	PriceDecimals *int `yaml:"price_decimals"`
}

func Load(path string) (*Config, error) {
	c, err := LoadUnchecked(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadUnchecked loads the config and resolves input paths, but does not
// validate it. Useful for debugging/printing partial configs.
func LoadUnchecked(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, err
	}
	c.Inputs = c.Inputs.resolve(filepath.Dir(path))
	return &c, nil
}

func (in InputsConfig) resolve(dir string) InputsConfig {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		// Prefer interpreting relative paths as relative to the config file directory,
		// but fall back to the provided path (relative to cwd) if that doesn't exist.
		cand := filepath.Join(dir, p)
		if _, err := os.Stat(cand); err == nil {
			return cand
		}
		return p
	}
	out := in
	out.Units = abs(in.Units)
	out.Emissions = abs(in.Emissions)
	out.FuelPrices = abs(in.FuelPrices)
	out.Renewables = abs(in.Renewables)
	out.Demand = abs(in.Demand)
	out.HistoricalPrices = abs(in.HistoricalPrices)
	return out
}

func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.Strategy.Name == "" {
		return errors.New("strategy.name is required")
	}
	known := false
	for _, n := range strategy.Names() {
		known = known || n == c.Strategy.Name
	}
	if !known {
		return fmt.Errorf("strategy.name %q is not one of %v", c.Strategy.Name, strategy.Names())
	}
	if c.Inputs.Units == "" || c.Inputs.Emissions == "" || c.Inputs.FuelPrices == "" || c.Inputs.Demand == "" {
		return errors.New("inputs.units, inputs.emissions, inputs.fuel_prices and inputs.demand are required")
	}
	if len(c.Renewables.InstalledCapacityMW) > 0 && c.Inputs.Renewables == "" {
		return errors.New("inputs.renewables is required when renewables.installed_capacity_mw is set")
	}
	for src, mw := range c.Renewables.InstalledCapacityMW {
		if mw < 0 {
			return fmt.Errorf("renewables.installed_capacity_mw.%s must be >= 0", src)
		}
	}
	if _, _, err := c.Period.Bounds(); err != nil {
		return err
	}
	if err := c.Policy().Validate(); err != nil {
		return fmt.Errorf("pricing config invalid: %w", err)
	}
	if c.Solver.Timeout < 0 || c.Solver.MaxRetries < 0 || c.Solver.Tolerance < 0 || c.Solver.MaxNodes < 0 {
		return errors.New("solver settings must be >= 0")
	}
	if c.Workers < 0 {
		return errors.New("workers must be >= 0")
	}
	if d := c.PriceDecimals(); d < 0 || d > 8 {
		return fmt.Errorf("output.price_decimals must be in [0, 8], got %d", d)
	}
	return nil
}

// Bounds parses the period. Zero times mean "not set".
func (p PeriodConfig) Bounds() (start, end time.Time, err error) {
	if p.Start != "" {
		if start, err = data.ParseTimestamp(p.Start); err != nil {
			return start, end, fmt.Errorf("period.start: %w", err)
		}
	}
	if p.End != "" {
		if end, err = data.ParseTimestamp(p.End); err != nil {
			return start, end, fmt.Errorf("period.end: %w", err)
		}
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return start, end, errors.New("period.end is before period.start")
	}
	return start, end, nil
}

// Steps lists the hourly steps of the period, filling open bounds from the
// demand table.
func (c *Config) Steps(ds *model.Dataset) ([]time.Time, error) {
	start, end, err := c.Period.Bounds()
	if err != nil {
		return nil, err
	}
	if start.IsZero() || end.IsZero() {
		first, last, ok := demandRange(ds)
		if !ok {
			return nil, errors.New("demand table is empty")
		}
		if start.IsZero() {
			start = first
		}
		if end.IsZero() {
			end = last
		}
	}
	steps := model.HourlySteps(start, end)
	if len(steps) == 0 {
		return nil, errors.New("period contains no time steps")
	}
	return steps, nil
}

func demandRange(ds *model.Dataset) (first, last time.Time, ok bool) {
	for ts := range ds.DemandMW {
		if !ok || ts.Before(first) {
			first = ts
		}
		if !ok || ts.After(last) {
			last = ts
		}
		ok = true
	}
	return first, last, ok
}

// LoadInputs reads the input tables and lists the steps to clear.
func (c *Config) LoadInputs() (model.ClearingInputs, error) {
	ds, err := data.LoadDataset(c.Paths())
	if err != nil {
		return model.ClearingInputs{}, err
	}
	steps, err := c.Steps(ds)
	if err != nil {
		return model.ClearingInputs{}, err
	}
	return model.ClearingInputs{
		Dataset:               ds,
		InstalledRenewablesMW: c.Renewables.InstalledCapacityMW,
		Steps:                 steps,
	}, nil
}

func (c *Config) Policy() pricing.Policy {
	p := pricing.DefaultPolicy()
	if c.Pricing.Floor != nil {
		p.Floor = *c.Pricing.Floor
	}
	if c.Pricing.Cap != nil {
		p.Cap = *c.Pricing.Cap
	}
	return p
}

func (c *Config) PriceDecimals() int {
	if c.Output.PriceDecimals == nil {
		return 2
	}
	return *c.Output.PriceDecimals
}

func (c *Config) Paths() data.Paths {
	return data.Paths{
		Units:            c.Inputs.Units,
		Emissions:        c.Inputs.Emissions,
		FuelPrices:       c.Inputs.FuelPrices,
		Renewables:       c.Inputs.Renewables,
		Demand:           c.Inputs.Demand,
		HistoricalPrices: c.Inputs.HistoricalPrices,
		HistoricalColumn: c.Inputs.HistoricalColumn,
	}
}

// NewSolver builds the configured solver, wrapped in retries when
// max_retries is set.
func (c *Config) NewSolver(deps strategy.Deps) solver.Solver {
	var s solver.Solver = &solver.Simplex{Tolerance: c.Solver.Tolerance, MaxNodes: c.Solver.MaxNodes}
	if c.Solver.MaxRetries > 0 {
		s = &solver.Retrying{Solver: s, Attempts: c.Solver.MaxRetries + 1, Logger: deps.Logger}
	}
	return s
}

// StrategyDeps fills the solver-related dependencies from config on top of
// the given logger and metrics.
func (c *Config) StrategyDeps(deps strategy.Deps) strategy.Deps {
	deps.Policy = c.Policy()
	deps.Timeout = c.Solver.Timeout
	deps.Workers = c.Workers
	deps.Solver = c.NewSolver(deps)
	return deps
}

// Merge overlays non-zero fields from override onto base.
// This is used when a request body overrides parts of a stored config.
func Merge(base, override Config) Config {
	out := base
	if override.Strategy.Name != "" {
		out.Strategy.Name = override.Strategy.Name
	}
	if len(override.Strategy.Params) > 0 {
		params := make(map[string]any, len(base.Strategy.Params)+len(override.Strategy.Params))
		for k, v := range base.Strategy.Params {
			params[k] = v
		}
		for k, v := range override.Strategy.Params {
			params[k] = v
		}
		out.Strategy.Params = params
	}
	if override.Pricing.Floor != nil {
		out.Pricing.Floor = override.Pricing.Floor
	}
	if override.Pricing.Cap != nil {
		out.Pricing.Cap = override.Pricing.Cap
	}
	if override.Period.Start != "" {
		out.Period.Start = override.Period.Start
	}
	if override.Period.End != "" {
		out.Period.End = override.Period.End
	}
	if override.Solver.Timeout != 0 {
		out.Solver.Timeout = override.Solver.Timeout
	}
	if override.Solver.MaxRetries != 0 {
		out.Solver.MaxRetries = override.Solver.MaxRetries
	}
	if override.Solver.Tolerance != 0 {
		out.Solver.Tolerance = override.Solver.Tolerance
	}
	if override.Solver.MaxNodes != 0 {
		out.Solver.MaxNodes = override.Solver.MaxNodes
	}
	if override.Workers != 0 {
		out.Workers = override.Workers
	}
	if len(override.Renewables.InstalledCapacityMW) > 0 {
		out.Renewables.InstalledCapacityMW = override.Renewables.InstalledCapacityMW
	}
	if override.Output.PriceDecimals != nil {
		out.Output.PriceDecimals = override.Output.PriceDecimals
	}
	return out
}
