package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"market-clearing/internal/backtest"
	"market-clearing/internal/model"
	"market-clearing/internal/pricing"
	"market-clearing/internal/solver"
	"market-clearing/internal/strategy"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
inputs:
  units: units.csv
  emissions: emissions.csv
  fuel_prices: fuel.csv
  renewables: renewables.csv
  demand: demand.csv
  historical_prices: /data/prices.csv
  historical_column: "Deutschland [EUR/MWh]"
renewables:
  installed_capacity_mw:
    solar: 54360
    onshore: 54250
    offshore: 7860
period:
  start: "2020-01-01 00:00:00"
  end: "2020-01-01 23:00:00"
strategy:
  name: unit-commitment
  params:
    min_output_fraction: 0.2
    horizon: 24
pricing:
  floor: 0
  cap: 500
solver:
  timeout: 30s
  max_retries: 2
workers: 4
output:
  price_decimals: 3
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "units.csv"), []byte("index\n"), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, sampleYAML)
	c, err := Load(path)
	require.NoError(t, err)

	// Existing files resolve next to the config, others stay as written.
	assert.Equal(t, filepath.Join(filepath.Dir(path), "units.csv"), c.Inputs.Units)
	assert.Equal(t, "emissions.csv", c.Inputs.Emissions)
	assert.Equal(t, "/data/prices.csv", c.Inputs.HistoricalPrices)
	assert.Equal(t, "Deutschland [EUR/MWh]", c.Paths().HistoricalColumn)

	assert.Equal(t, 54360.0, c.Renewables.InstalledCapacityMW["solar"])
	assert.Equal(t, 30*time.Second, c.Solver.Timeout)
	assert.Equal(t, pricing.Policy{Floor: 0, Cap: 500}, c.Policy())
	assert.Equal(t, 3, c.PriceDecimals())

	deps := c.StrategyDeps(strategy.Deps{})
	assert.Equal(t, 4, deps.Workers)
	retrying, ok := deps.Solver.(*solver.Retrying)
	require.True(t, ok)
	assert.Equal(t, 3, retrying.Attempts)

	s, err := strategy.New(c.Strategy.Name, c.Strategy.Params, deps)
	require.NoError(t, err)
	uc := s.(*strategy.UnitCommitment)
	assert.Equal(t, 0.2, uc.MinOutputFraction)
	assert.Equal(t, 24, uc.Horizon)
	assert.Equal(t, 30*time.Second, uc.Timeout)
}

func TestLoad_Defaults(t *testing.T) {
	c, err := Load(writeConfig(t, `
inputs: {units: u.csv, emissions: e.csv, fuel_prices: f.csv, demand: d.csv}
strategy: {name: merit-order}
`))
	require.NoError(t, err)
	assert.Equal(t, pricing.DefaultPolicy(), c.Policy())
	assert.Equal(t, 2, c.PriceDecimals())
	_, isSimplex := c.NewSolver(strategy.Deps{}).(*solver.Simplex)
	assert.True(t, isSimplex)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		c, err := LoadUnchecked(writeConfig(t, sampleYAML))
		require.NoError(t, err)
		return c
	}
	neg := -5.0
	badDecimals := 12

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"no strategy", func(c *Config) { c.Strategy.Name = "" }},
		{"unknown strategy", func(c *Config) { c.Strategy.Name = "oracle" }},
		{"missing demand", func(c *Config) { c.Inputs.Demand = "" }},
		{"renewables without table", func(c *Config) { c.Inputs.Renewables = "" }},
		{"negative installed", func(c *Config) { c.Renewables.InstalledCapacityMW["solar"] = -1 }},
		{"bad period", func(c *Config) { c.Period.Start = "yesterday" }},
		{"inverted period", func(c *Config) { c.Period.Start, c.Period.End = "2020-02-01", "2020-01-01" }},
		{"negative floor", func(c *Config) { c.Pricing.Floor = &neg }},
		{"negative workers", func(c *Config) { c.Workers = -1 }},
		{"price decimals", func(c *Config) { c.Output.PriceDecimals = &badDecimals }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			require.NoError(t, c.Validate())
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestSteps(t *testing.T) {
	h := func(n int) time.Time { return time.Date(2020, 1, 1, n, 0, 0, 0, time.UTC) }
	ds := &model.Dataset{DemandMW: map[time.Time]float64{h(2): 1, h(0): 1, h(5): 1}}

	c := &Config{}
	steps, err := c.Steps(ds)
	require.NoError(t, err)
	assert.Len(t, steps, 6)
	assert.Equal(t, h(0), steps[0])
	assert.Equal(t, h(5), steps[5])

	c.Period.Start = "2020-01-01 03:00:00"
	steps, err = c.Steps(ds)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{h(3), h(4), h(5)}, steps)

	_, err = c.Steps(&model.Dataset{})
	assert.Error(t, err)
}

func TestMerge(t *testing.T) {
	capPrice := 200.0
	base := Config{
		Strategy: StrategyConfig{Name: "dispatch", Params: map[string]any{"horizon": 24}},
		Workers:  2,
	}
	out := Merge(base, Config{
		Strategy: StrategyConfig{Name: "unit-commitment", Params: map[string]any{"min_output_fraction": 0.3}},
		Pricing:  PricingConfig{Cap: &capPrice},
	})

	assert.Equal(t, "unit-commitment", out.Strategy.Name)
	assert.Equal(t, map[string]any{"horizon": 24, "min_output_fraction": 0.3}, out.Strategy.Params)
	assert.Equal(t, 200.0, out.Policy().Cap)
	assert.Equal(t, 2, out.Workers)
	assert.Len(t, base.Strategy.Params, 1)
}

func TestLoadInputs(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	write("units.csv", "index,technology,capacity,efficiency,operational_cost\nA,lignite,100,1,0\n")
	write("emissions.csv", "technology,emissions\nlignite,0\n")
	write("fuel.csv", "timestamp,lignite,co2\n2020-01-01 00:00:00,20,0\n2020-01-01 01:00:00,20,0\n")
	write("demand.csv", "timestamp,demand\n2020-01-01 00:00:00,50\n2020-01-01 01:00:00,60\n")
	write("config.yaml", `
inputs: {units: units.csv, emissions: emissions.csv, fuel_prices: fuel.csv, demand: demand.csv}
strategy: {name: merit-order}
`)

	c, err := Load(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)
	in, err := c.LoadInputs()
	require.NoError(t, err)
	assert.Len(t, in.Steps, 2)
	assert.Len(t, in.Dataset.Units, 1)
	assert.Equal(t, 60.0, in.Dataset.DemandMW[in.Steps[1]])
}

func TestExampleConfig_UnitCommitment(t *testing.T) {
	c, err := LoadUnchecked(filepath.Join("..", "..", "examples", "config.yaml"))
	require.NoError(t, err)
	c.Strategy.Name = strategy.NameUnitCommitment
	require.NoError(t, c.Validate())
	require.Equal(t, 30*time.Second, c.Solver.Timeout)

	in, err := c.LoadInputs()
	require.NoError(t, err)
	require.Len(t, in.Steps, 24)

	logger, _ := test.NewNullLogger()
	strat, err := strategy.New(c.Strategy.Name, c.Strategy.Params, c.StrategyDeps(strategy.Deps{Logger: logger}))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), c.Solver.Timeout)
	defer cancel()
	res, err := backtest.New(logger, nil).Run(ctx, in, strat)
	require.NoError(t, err)
	require.Len(t, res.Ledger, 24)
	assert.Zero(t, res.Summary.Infeasible)

	for _, row := range res.Ledger {
		require.True(t, row.HasPrice(), "%s", row.TimeStep)
		assert.GreaterOrEqual(t, row.Price, 0.0)
		assert.LessOrEqual(t, row.Price, 3000.0)
		if row.Status != model.StatusCleared {
			continue
		}
		total := 0.0
		for _, mw := range row.Dispatch {
			total += mw
		}
		assert.InDelta(t, row.EffectiveDemandMW, total, 1e-5, "%s", row.TimeStep)
	}
}
