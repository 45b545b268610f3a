package model

import "time"

// Status describes how the price of a time step was formed.
// Keep these values stable; they are intended for CSV output.
type Status string

const (
	StatusCleared    Status = "CLEARED"
	StatusFloor      Status = "FLOOR"
	StatusScarcity   Status = "SCARCITY"
	StatusInfeasible Status = "INFEASIBLE"
)

// Clearing is the outcome of one time step.
type Clearing struct {
	TimeStep time.Time
	Price    float64
	Status   Status

	// PriceSetter is the unit whose cost set the price, when a strategy can
	// name one (merit order only).
	PriceSetter      string
	SetterTechnology Technology

	// Dispatch maps unit ID to output in MW. Nil when the strategy did not
	// produce a dispatch (edge cases, infeasible steps).
	Dispatch map[string]float64
}

// HasPrice reports whether Price carries a market price. Infeasible steps have none.
func (c Clearing) HasPrice() bool {
	return c.Status != StatusInfeasible
}
