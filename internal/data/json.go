package data

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"market-clearing/internal/model"
)

// Scenario is a self-contained clearing input in JSON, used by the API and
// the demo. Every step carries its own fuel prices and capacity factors.
type Scenario struct {
	Name                  string             `json:"name,omitempty"`
	Units                 []ScenarioUnit     `json:"units"`
	EmissionFactors       map[string]float64 `json:"emission_factors"`
	InstalledRenewablesMW map[string]float64 `json:"installed_renewables_mw,omitempty"`
	Steps                 []ScenarioStep     `json:"steps"`
}

type ScenarioUnit struct {
	ID                string   `json:"id"`
	Technology        string   `json:"technology"`
	CapacityMW        float64  `json:"capacity_mw"`
	Efficiency        float64  `json:"efficiency"`
	OperationalCost   float64  `json:"operational_cost"`
	MinOutputFraction *float64 `json:"min_output_fraction,omitempty"`
}

type ScenarioStep struct {
	Timestamp       time.Time          `json:"timestamp"`
	DemandMW        float64            `json:"demand_mw"`
	FuelPrices      map[string]float64 `json:"fuel_prices"`
	CO2Price        float64            `json:"co2_price"`
	CapacityFactors map[string]float64 `json:"capacity_factors,omitempty"`
	HistoricalPrice *float64           `json:"historical_price,omitempty"`
}

func LoadScenarioJSON(path string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s Scenario
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("failed to parse scenario %s: %w", path, err)
	}
	return &s, nil
}

// Dataset converts the scenario into validated input tables.
func (s *Scenario) Dataset() (*model.Dataset, error) {
	if s == nil {
		return nil, errors.New("scenario is nil")
	}
	ds := &model.Dataset{
		Units:            UnitsFromScenario(s.Units),
		Emissions:        make(model.EmissionFactors, len(s.EmissionFactors)),
		FuelPrices:       make(map[time.Time]model.FuelPrices, len(s.Steps)),
		CapacityFactors:  make(map[time.Time]map[string]float64, len(s.Steps)),
		DemandMW:         make(map[time.Time]float64, len(s.Steps)),
		HistoricalPrices: make(map[time.Time]float64),
	}
	for tech, ef := range s.EmissionFactors {
		ds.Emissions[model.Technology(tech)] = ef
	}
	for i, st := range s.Steps {
		if st.Timestamp.IsZero() {
			return nil, fmt.Errorf("step %d: timestamp is required", i)
		}
		ts := st.Timestamp.UTC()
		if _, dup := ds.DemandMW[ts]; dup {
			return nil, fmt.Errorf("step %d: duplicate timestamp %s", i, ts.Format(time.RFC3339))
		}
		fp := model.FuelPrices{ByTechnology: make(map[model.Technology]float64, len(st.FuelPrices)), CO2: st.CO2Price}
		for tech, p := range st.FuelPrices {
			fp.ByTechnology[model.Technology(tech)] = p
		}
		ds.FuelPrices[ts] = fp
		ds.DemandMW[ts] = st.DemandMW
		if st.CapacityFactors != nil {
			ds.CapacityFactors[ts] = st.CapacityFactors
		}
		if st.HistoricalPrice != nil {
			ds.HistoricalPrices[ts] = *st.HistoricalPrice
		}
	}
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	return ds, nil
}

// Inputs converts the scenario into a run over all of its steps, in order.
func (s *Scenario) Inputs() (model.ClearingInputs, error) {
	ds, err := s.Dataset()
	if err != nil {
		return model.ClearingInputs{}, err
	}
	steps := make([]time.Time, len(s.Steps))
	for i, st := range s.Steps {
		steps[i] = st.Timestamp.UTC()
	}
	return model.ClearingInputs{
		Dataset:               ds,
		InstalledRenewablesMW: s.InstalledRenewablesMW,
		Steps:                 steps,
	}, nil
}

func UnitsFromScenario(in []ScenarioUnit) []model.Unit {
	out := make([]model.Unit, len(in))
	for i, u := range in {
		out[i] = model.Unit{
			ID:                u.ID,
			Technology:        model.Technology(u.Technology),
			CapacityMW:        u.CapacityMW,
			Efficiency:        u.Efficiency,
			OperationalCost:   u.OperationalCost,
			MinOutputFraction: u.MinOutputFraction,
		}
	}
	return out
}

// WithUnits returns a copy of the scenario running the given fleet instead of
// its own units.
func (s *Scenario) WithUnits(units []model.Unit) *Scenario {
	out := *s
	out.Units = make([]ScenarioUnit, len(units))
	for i, u := range units {
		out.Units[i] = ScenarioUnit{
			ID:                u.ID,
			Technology:        string(u.Technology),
			CapacityMW:        u.CapacityMW,
			Efficiency:        u.Efficiency,
			OperationalCost:   u.OperationalCost,
			MinOutputFraction: u.MinOutputFraction,
		}
	}
	return &out
}
