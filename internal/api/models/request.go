package models

import "market-clearing/internal/data"

// ClearingRequest represents the request body for a clearing run
type ClearingRequest struct {
	Scenario *data.Scenario `json:"scenario" binding:"required"`
	// FleetID replaces the scenario's units with a stored fleet table.
	FleetID string          `json:"fleet_id,omitempty"`
	Config  ClearingConfig  `json:"config"`
	Options ClearingOptions `json:"options,omitempty"`
}

// ClearingConfig contains strategy, pricing and solver settings
type ClearingConfig struct {
	Strategy StrategyConfig `json:"strategy"`
	Pricing  PricingConfig  `json:"pricing,omitempty"`
	Solver   SolverConfig   `json:"solver,omitempty"`
}

// StrategyConfig defines strategy and its parameters
type StrategyConfig struct {
	Name   string                 `json:"name"`
	Params map[string]interface{} `json:"params,omitempty"`
}

// PricingConfig overrides the default price floor and cap
type PricingConfig struct {
	Floor *float64 `json:"floor,omitempty"`
	Cap   *float64 `json:"cap,omitempty"`
}

// SolverConfig bounds solver work per call
type SolverConfig struct {
	TimeoutMs  int `json:"timeout_ms,omitempty"`
	MaxRetries int `json:"max_retries,omitempty"`
	MaxNodes   int `json:"max_nodes,omitempty"`
}

// ClearingOptions contains optional output switches
type ClearingOptions struct {
	IncludeLedger   bool `json:"include_ledger,omitempty"`
	IncludeDispatch bool `json:"include_dispatch,omitempty"` // only with include_ledger
}

// CompareRequest runs several configurations on the same scenario
type CompareRequest struct {
	Scenario   *data.Scenario      `json:"scenario" binding:"required"`
	FleetID    string              `json:"fleet_id,omitempty"`
	BaseConfig ClearingConfig      `json:"base_config"`
	Variations []ClearingVariation `json:"variations" binding:"required,min=1"`
	// Tolerance for counting price mismatches against the base run.
	Tolerance float64 `json:"tolerance,omitempty"`
}

// ClearingVariation is a named override of the base config
type ClearingVariation struct {
	Name   string         `json:"name" binding:"required"`
	Config ClearingConfig `json:"config"`
}
