package model

import "time"

// ClearingInputs is the canonical "inputs to the system" object: ingested
// tables plus the run parameters that turn them into per-step snapshots.
type ClearingInputs struct {
	Dataset *Dataset

	// InstalledRenewablesMW maps a capacity factor column (solar, onshore, ...)
	// to installed capacity. Empty means no renewable feed-in.
	InstalledRenewablesMW map[string]float64

	Steps []time.Time
}
