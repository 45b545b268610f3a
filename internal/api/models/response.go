package models

import "time"

// ClearingResponse represents the response from a clearing run
type ClearingResponse struct {
	ID           string          `json:"id,omitempty"`
	Status       string          `json:"status"`
	Strategy     string          `json:"strategy"`
	Summary      ClearingSummary `json:"summary"`
	Accuracy     *Accuracy       `json:"accuracy,omitempty"`
	PriceSetters []PriceSetter   `json:"price_setters,omitempty"`
	Ledger       []LedgerRow     `json:"ledger,omitempty"`
}

// ClearingSummary contains aggregated run results
type ClearingSummary struct {
	Steps      int        `json:"steps"`
	Cleared    int        `json:"cleared"`
	Floor      int        `json:"floor"`
	Scarcity   int        `json:"scarcity"`
	Infeasible int        `json:"infeasible"`
	MeanPrice  float64    `json:"mean_price"`
	MinPrice   float64    `json:"min_price"`
	MaxPrice   float64    `json:"max_price"`
	Window     TimeWindow `json:"window"`
}

// TimeWindow represents a time range
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Accuracy compares simulated with historical prices
type Accuracy struct {
	Count          int     `json:"count"`
	MAE            float64 `json:"mae"`
	RMSE           float64 `json:"rmse"`
	Bias           float64 `json:"bias"`
	Correlation    float64 `json:"correlation"`
	MeanSimulated  float64 `json:"mean_simulated"`
	MeanHistorical float64 `json:"mean_historical"`
	P05Error       float64 `json:"p05_error"`
	P95Error       float64 `json:"p95_error"`
}

// PriceSetter is one technology's share of price-setting steps
type PriceSetter struct {
	Technology string  `json:"technology"`
	Steps      int     `json:"steps"`
	Share      float64 `json:"share"`
	MeanPrice  float64 `json:"mean_price"`
}

// LedgerRow represents one time step of a clearing run
type LedgerRow struct {
	Index             int                `json:"index"`
	TimeStep          time.Time          `json:"timestamp"`
	DemandMW          float64            `json:"demand_mw"`
	RenewableMW       float64            `json:"renewables_mw"`
	EffectiveDemandMW float64            `json:"effective_demand_mw"`
	CapacityMW        float64            `json:"capacity_mw"`
	Price             *float64           `json:"price"` // null when infeasible
	Status            string             `json:"status"`
	PriceSetter       string             `json:"price_setter,omitempty"`
	SetterTechnology  string             `json:"setter_technology,omitempty"`
	HistoricalPrice   *float64           `json:"historical_price,omitempty"`
	Dispatch          map[string]float64 `json:"dispatch,omitempty"`
}

// CompareResponse represents the response from a comparison
type CompareResponse struct {
	Base       ComparisonResult   `json:"base"`
	Comparison []ComparisonResult `json:"comparison"`
}

// ComparisonResult contains results for one variation
type ComparisonResult struct {
	Name     string           `json:"name"`
	Strategy string           `json:"strategy,omitempty"`
	Summary  *ClearingSummary `json:"summary,omitempty"`
	Accuracy *Accuracy        `json:"accuracy,omitempty"`
	// Mismatches counts steps whose price differs from the base run.
	Mismatches int          `json:"mismatches"`
	Error      *ErrorDetail `json:"error,omitempty"`
}

// FleetInfo represents a stored unit table
type FleetInfo struct {
	ID             string             `json:"id"`
	File           string             `json:"file"`
	Units          int                `json:"units"`
	CapacityMW     float64            `json:"capacity_mw"`
	CapacityByTech map[string]float64 `json:"capacity_by_technology"`
}

// StrategyInfo represents information about a strategy
type StrategyInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  []ParameterInfo `json:"parameters"`
}

// ParameterInfo describes a strategy parameter
type ParameterInfo struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"` // "float", "int"
	Description string      `json:"description"`
	Default     interface{} `json:"default,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}
