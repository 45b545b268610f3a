package model

// Technology is the fuel/plant category of a unit. Values match the column
// names used by the fuel price and emission factor tables.
type Technology string

const (
	Nuclear    Technology = "nuclear"
	Lignite    Technology = "lignite"
	HardCoal   Technology = "hard coal"
	NaturalGas Technology = "natural gas"
	Oil        Technology = "oil"
)

// Unit defines a dispatchable generating plant.
// Units:
// - CapacityMW: MW
// - Efficiency: 0..1 (fuel to electricity)
// - OperationalCost: currency/MWh, variable O&M
// - MinOutputFraction: fraction of capacity when committed (unit commitment only, nil = use default)
type Unit struct {
	ID                string
	Technology        Technology
	CapacityMW        float64
	Efficiency        float64
	OperationalCost   float64
	MinOutputFraction *float64
}

// Fraction returns a pointer to f, for setting Unit.MinOutputFraction.
func Fraction(f float64) *float64 { return &f }

func (u Unit) Validate() error {
	if u.ID == "" {
		return &DomainError{Field: "id", Rule: "must not be empty"}
	}
	if u.Technology == "" {
		return &DomainError{Unit: u.ID, Field: "technology", Rule: "must not be empty"}
	}
	if u.CapacityMW < 0 {
		return &DomainError{Unit: u.ID, Field: "capacity", Value: u.CapacityMW, Rule: "must be >= 0"}
	}
	if u.Efficiency <= 0 || u.Efficiency > 1 {
		return &DomainError{Unit: u.ID, Field: "efficiency", Value: u.Efficiency, Rule: "must be in (0, 1]"}
	}
	if u.OperationalCost < 0 {
		return &DomainError{Unit: u.ID, Field: "operational_cost", Value: u.OperationalCost, Rule: "must be >= 0"}
	}
	if f := u.MinOutputFraction; f != nil && (*f < 0 || *f > 1) {
		return &DomainError{Unit: u.ID, Field: "min_output", Value: *f, Rule: "must be in [0, 1]"}
	}
	return nil
}

// MinOutputMW returns the committed minimum output, falling back to def when
// the unit carries no value of its own. An explicit 0 means no minimum.
func (u Unit) MinOutputMW(def float64) float64 {
	f := def
	if u.MinOutputFraction != nil {
		f = *u.MinOutputFraction
	}
	return f * u.CapacityMW
}

// PricedUnit is a unit together with its marginal cost for one time step.
type PricedUnit struct {
	Unit
	MarginalCost float64
}

// TotalCapacity sums the capacity of a fleet.
func TotalCapacity(units []PricedUnit) float64 {
	total := 0.0
	for _, u := range units {
		total += u.CapacityMW
	}
	return total
}
