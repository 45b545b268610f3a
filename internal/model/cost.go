package model

// FuelPrices are the fuel prices of one time step, per technology, plus the
// carbon price. Fuel prices are currency/MWh thermal, CO2 is currency/t.
type FuelPrices struct {
	ByTechnology map[Technology]float64
	CO2          float64
}

// EmissionFactors are t CO2 per MWh thermal, per technology.
type EmissionFactors map[Technology]float64

// MarginalCost returns the cost of one more MWh from u:
//
//	fuel/efficiency + co2*emission/efficiency + operational cost
func MarginalCost(u Unit, fuel FuelPrices, ef EmissionFactors) (float64, error) {
	if u.Efficiency <= 0 {
		return 0, &DomainError{Unit: u.ID, Field: "efficiency", Value: u.Efficiency, Rule: "must be > 0"}
	}
	fuelPrice, ok := fuel.ByTechnology[u.Technology]
	if !ok {
		return 0, &LookupError{Table: "fuel_prices", Key: string(u.Technology)}
	}
	emission, ok := ef[u.Technology]
	if !ok {
		return 0, &LookupError{Table: "emission_factors", Key: string(u.Technology)}
	}

	fuelCost := fuelPrice / u.Efficiency
	emissionsCost := fuel.CO2 * emission / u.Efficiency
	return fuelCost + emissionsCost + u.OperationalCost, nil
}

// PriceFleet computes the marginal cost of every unit for one time step.
// The returned slice is a fresh snapshot; units is not modified.
func PriceFleet(units []Unit, fuel FuelPrices, ef EmissionFactors) ([]PricedUnit, error) {
	out := make([]PricedUnit, len(units))
	for i, u := range units {
		mc, err := MarginalCost(u, fuel, ef)
		if err != nil {
			return nil, err
		}
		out[i] = PricedUnit{Unit: u, MarginalCost: mc}
	}
	return out, nil
}
