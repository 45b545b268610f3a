package model

import (
	"sort"
	"time"
)

// Dataset bundles the ingested input tables. All time keys are UTC.
//
// It is read-only once loaded; per-step state lives in Snapshot.
type Dataset struct {
	Units     []Unit
	Emissions EmissionFactors

	FuelPrices      map[time.Time]FuelPrices
	CapacityFactors map[time.Time]map[string]float64
	DemandMW        map[time.Time]float64

	// HistoricalPrices is optional; used only for comparison.
	HistoricalPrices map[time.Time]float64
}

// Validate checks the fleet and that every unit technology can be priced.
// This keeps lookup failures at the ingestion boundary instead of deep inside
// the per-step loop.
func (d *Dataset) Validate() error {
	if len(d.Units) == 0 {
		return &DomainError{Field: "units", Rule: "fleet must not be empty"}
	}
	seen := make(map[string]bool, len(d.Units))
	for _, u := range d.Units {
		if err := u.Validate(); err != nil {
			return err
		}
		if seen[u.ID] {
			return &DomainError{Unit: u.ID, Field: "id", Rule: "must be unique"}
		}
		seen[u.ID] = true
		if _, ok := d.Emissions[u.Technology]; !ok {
			return &LookupError{Table: "emission_factors", Key: string(u.Technology)}
		}
	}
	for _, ts := range sortedKeys(d.FuelPrices) {
		fp := d.FuelPrices[ts]
		for _, u := range d.Units {
			if _, ok := fp.ByTechnology[u.Technology]; !ok {
				return &LookupError{Table: "fuel_prices", Key: string(u.Technology), TimeStep: ts}
			}
		}
	}
	return nil
}

// Snapshot is the immutable view of one time step handed to a strategy.
type Snapshot struct {
	TimeStep    time.Time
	Units       []PricedUnit
	DemandMW    float64
	RenewableMW float64
}

// EffectiveDemand is the residual load the dispatchable fleet must serve.
// It may be negative.
func (s Snapshot) EffectiveDemand() float64 {
	return s.DemandMW - s.RenewableMW
}

func (s Snapshot) TotalCapacity() float64 {
	return TotalCapacity(s.Units)
}

// Snapshot builds the time step ts: marginal costs from that step's fuel and
// carbon prices, and renewable feed-in as sum(cf * installed capacity).
func (d *Dataset) Snapshot(ts time.Time, installedMW map[string]float64) (Snapshot, error) {
	ts = ts.UTC()
	demand, ok := d.DemandMW[ts]
	if !ok {
		return Snapshot{}, &LookupError{Table: "demand", Key: "demand", TimeStep: ts}
	}
	fuel, ok := d.FuelPrices[ts]
	if !ok {
		return Snapshot{}, &LookupError{Table: "fuel_prices", Key: "timestamp", TimeStep: ts}
	}
	units, err := PriceFleet(d.Units, fuel, d.Emissions)
	if err != nil {
		return Snapshot{}, withTimeStep(err, ts)
	}

	renewable := 0.0
	if len(installedMW) > 0 {
		cf, ok := d.CapacityFactors[ts]
		if !ok {
			return Snapshot{}, &LookupError{Table: "renewables", Key: "timestamp", TimeStep: ts}
		}
		for _, tech := range sortedStrings(installedMW) {
			f, ok := cf[tech]
			if !ok {
				return Snapshot{}, &LookupError{Table: "renewables", Key: tech, TimeStep: ts}
			}
			renewable += f * installedMW[tech]
		}
	}

	return Snapshot{
		TimeStep:    ts,
		Units:       units,
		DemandMW:    demand,
		RenewableMW: renewable,
	}, nil
}

// HourlySteps lists every hour in [start, end], both inclusive.
func HourlySteps(start, end time.Time) []time.Time {
	var out []time.Time
	for t := start.UTC(); !t.After(end.UTC()); t = t.Add(time.Hour) {
		out = append(out, t)
	}
	return out
}

func withTimeStep(err error, ts time.Time) error {
	if le, ok := err.(*LookupError); ok && le.TimeStep.IsZero() {
		cp := *le
		cp.TimeStep = ts
		return &cp
	}
	return &StepError{TimeStep: ts, Err: err}
}

func sortedKeys(m map[time.Time]FuelPrices) []time.Time {
	out := make([]time.Time, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

func sortedStrings(m map[string]float64) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
