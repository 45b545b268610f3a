package model

import (
	"errors"
	"fmt"
	"time"
)

// Error kinds. Use errors.Is against these; the typed errors below unwrap to them.
var (
	ErrDomain        = errors.New("domain error")
	ErrLookup        = errors.New("lookup error")
	ErrInfeasible    = errors.New("infeasible dispatch")
	ErrSolverFailure = errors.New("solver failure")
	ErrSolverTimeout = errors.New("solver timeout")
)

// DomainError reports a field value outside its physical domain.
type DomainError struct {
	Unit  string
	Field string
	Value float64
	Rule  string
}

func (e *DomainError) Error() string {
	if e.Unit == "" {
		return fmt.Sprintf("%s=%g: %s", e.Field, e.Value, e.Rule)
	}
	return fmt.Sprintf("unit %q: %s=%g: %s", e.Unit, e.Field, e.Value, e.Rule)
}

func (e *DomainError) Unwrap() error { return ErrDomain }

// LookupError reports a key missing from an input table.
type LookupError struct {
	Table    string
	Key      string
	TimeStep time.Time
}

func (e *LookupError) Error() string {
	if e.TimeStep.IsZero() {
		return fmt.Sprintf("%s: missing key %q", e.Table, e.Key)
	}
	return fmt.Sprintf("%s: missing key %q at %s", e.Table, e.Key, e.TimeStep.Format(time.RFC3339))
}

func (e *LookupError) Unwrap() error { return ErrLookup }

// StepError attaches a time step to an error raised while clearing it.
type StepError struct {
	TimeStep time.Time
	Err      error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("time step %s: %v", e.TimeStep.Format(time.RFC3339), e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
