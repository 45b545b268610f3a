// Package dispatch builds solver-neutral optimization models for cost-minimal
// economic dispatch and unit commitment.
package dispatch

import (
	"errors"
	"fmt"
	"math"
	"time"
)

type VarKind int

const (
	Continuous VarKind = iota
	Binary
)

type Variable struct {
	Name  string
	Kind  VarKind
	Lower float64
	Upper float64 // math.Inf(1) when unbounded
}

type Sense int

const (
	Equal Sense = iota
	LessEqual
	GreaterEqual
)

func (s Sense) String() string {
	switch s {
	case Equal:
		return "="
	case LessEqual:
		return "<="
	case GreaterEqual:
		return ">="
	default:
		return fmt.Sprintf("Sense(%d)", int(s))
	}
}

// Term is coef * variable.
type Term struct {
	Var  int
	Coef float64
}

type Constraint struct {
	Name  string
	Terms []Term
	Sense Sense
	RHS   float64
}

// Model is a linear (mixed-integer) minimization problem over an index of
// periods x units. It is owned by one builder and one solve.
type Model struct {
	Variables   []Variable
	Constraints []Constraint
	Objective   []Term

	Periods []time.Time
	Units   []string

	output   [][]int
	commit   [][]int
	capacity [][]int
	minOut   [][]int
	demand   []int
}

func newModel(periods []time.Time, units []string) *Model {
	m := &Model{
		Periods:  periods,
		Units:    units,
		output:   grid(len(periods), len(units)),
		commit:   grid(len(periods), len(units)),
		capacity: grid(len(periods), len(units)),
		minOut:   grid(len(periods), len(units)),
		demand:   make([]int, len(periods)),
	}
	for t := range m.demand {
		m.demand[t] = -1
	}
	return m
}

func grid(rows, cols int) [][]int {
	g := make([][]int, rows)
	for i := range g {
		g[i] = make([]int, cols)
		for j := range g[i] {
			g[i][j] = -1
		}
	}
	return g
}

func (m *Model) AddVariable(v Variable) int {
	m.Variables = append(m.Variables, v)
	return len(m.Variables) - 1
}

func (m *Model) AddConstraint(c Constraint) int {
	m.Constraints = append(m.Constraints, c)
	return len(m.Constraints) - 1
}

// Output is the index of the output variable of unit u in period t.
func (m *Model) Output(t, u int) int { return m.output[t][u] }

// Commitment is the index of the on/off variable of unit u in period t, if
// the model has one.
func (m *Model) Commitment(t, u int) (int, bool) {
	idx := m.commit[t][u]
	return idx, idx >= 0
}

// DemandConstraint is the index of the demand balance of period t. Its dual
// is the market clearing price.
func (m *Model) DemandConstraint(t int) int { return m.demand[t] }

func (m *Model) CapacityConstraint(t, u int) int { return m.capacity[t][u] }

func (m *Model) MinOutputConstraint(t, u int) (int, bool) {
	idx := m.minOut[t][u]
	return idx, idx >= 0
}

func (m *Model) HasIntegers() bool {
	for _, v := range m.Variables {
		if v.Kind == Binary {
			return true
		}
	}
	return false
}

// Evaluate computes the objective for the primal values x. It does not
// depend on any solver and is used to check reported objective values.
func (m *Model) Evaluate(x []float64) float64 {
	total := 0.0
	for _, term := range m.Objective {
		total += term.Coef * x[term.Var]
	}
	return total
}

// Validate checks structural soundness before handing the model to a solver.
func (m *Model) Validate() error {
	if len(m.Variables) == 0 {
		return errors.New("dispatch: model has no variables")
	}
	for i, v := range m.Variables {
		if math.IsInf(v.Lower, 0) || math.IsNaN(v.Lower) {
			return fmt.Errorf("dispatch: variable %s: lower bound must be finite", v.Name)
		}
		if v.Upper < v.Lower {
			return fmt.Errorf("dispatch: variable %d (%s): upper bound %g < lower bound %g", i, v.Name, v.Upper, v.Lower)
		}
	}
	check := func(where string, terms []Term) error {
		for _, t := range terms {
			if t.Var < 0 || t.Var >= len(m.Variables) {
				return fmt.Errorf("dispatch: %s references unknown variable %d", where, t.Var)
			}
		}
		return nil
	}
	if err := check("objective", m.Objective); err != nil {
		return err
	}
	for _, c := range m.Constraints {
		if len(c.Terms) == 0 {
			return fmt.Errorf("dispatch: constraint %s has no terms", c.Name)
		}
		if err := check("constraint "+c.Name, c.Terms); err != nil {
			return err
		}
	}
	return nil
}
