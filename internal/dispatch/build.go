package dispatch

import (
	"fmt"
	"math"
	"time"

	"market-clearing/internal/model"
)

// SinglePeriod builds the economic dispatch of one time step:
//
//	min  sum mc_u * p_u
//	s.t. sum p_u + renewables = demand   (dual = MCP)
//	     p_u <= capacity_u
//	     p_u >= 0
func SinglePeriod(s model.Snapshot) (*Model, error) {
	if len(s.Units) == 0 {
		return nil, &model.DomainError{Field: "units", Rule: "fleet must not be empty"}
	}
	m := newModel([]time.Time{s.TimeStep}, unitIDs(s.Units))

	demand := Constraint{Name: label("demand", s.TimeStep, ""), Sense: Equal, RHS: s.EffectiveDemand()}
	for u, pu := range s.Units {
		p := m.AddVariable(Variable{Name: label("p", s.TimeStep, pu.ID), Kind: Continuous, Upper: math.Inf(1)})
		m.output[0][u] = p
		m.capacity[0][u] = m.AddConstraint(Constraint{
			Name:  label("capacity", s.TimeStep, pu.ID),
			Terms: []Term{{Var: p, Coef: 1}},
			Sense: LessEqual,
			RHS:   pu.CapacityMW,
		})
		demand.Terms = append(demand.Terms, Term{Var: p, Coef: 1})
		m.Objective = append(m.Objective, Term{Var: p, Coef: pu.MarginalCost})
	}
	m.demand[0] = m.AddConstraint(demand)
	return m, nil
}

// UnitCommitment builds one model spanning every snapshot:
//
//	min  sum_t sum_u mc_{t,u} * p_{t,u}
//	s.t. sum_u p_{t,u} = demand_t - renewables_t          per t (dual = MCP_t)
//	     p_{t,u} - capacity_u * on_{t,u} <= 0
//	     p_{t,u} - min_u * on_{t,u}      >= 0
//	     p_{t,u} >= 0, on_{t,u} in {0,1}
//
// min_u is the unit's own minimum output fraction when set, else
// defaultMinOutput, times capacity. Marginal costs come from each snapshot, so
// they may differ between periods. Every snapshot must carry the same fleet.
func UnitCommitment(snaps []model.Snapshot, defaultMinOutput float64) (*Model, error) {
	if len(snaps) == 0 {
		return nil, &model.DomainError{Field: "periods", Rule: "at least one time step is required"}
	}
	if defaultMinOutput < 0 || defaultMinOutput > 1 {
		return nil, &model.DomainError{Field: "min_output_fraction", Value: defaultMinOutput, Rule: "must be in [0, 1]"}
	}
	fleet := snaps[0].Units
	if len(fleet) == 0 {
		return nil, &model.DomainError{Field: "units", Rule: "fleet must not be empty"}
	}

	periods := make([]time.Time, len(snaps))
	for t, s := range snaps {
		if len(s.Units) != len(fleet) {
			return nil, &model.LookupError{Table: "units", Key: fmt.Sprintf("fleet size %d", len(s.Units)), TimeStep: s.TimeStep}
		}
		for u := range s.Units {
			if s.Units[u].ID != fleet[u].ID {
				return nil, &model.LookupError{Table: "units", Key: fleet[u].ID, TimeStep: s.TimeStep}
			}
		}
		periods[t] = s.TimeStep
	}

	m := newModel(periods, unitIDs(fleet))
	for t, s := range snaps {
		demand := Constraint{Name: label("demand", s.TimeStep, ""), Sense: Equal, RHS: s.EffectiveDemand()}
		for u, pu := range s.Units {
			p := m.AddVariable(Variable{Name: label("p", s.TimeStep, pu.ID), Kind: Continuous, Upper: math.Inf(1)})
			on := m.AddVariable(Variable{Name: label("on", s.TimeStep, pu.ID), Kind: Binary, Upper: 1})
			m.output[t][u] = p
			m.commit[t][u] = on

			m.capacity[t][u] = m.AddConstraint(Constraint{
				Name:  label("capacity", s.TimeStep, pu.ID),
				Terms: []Term{{Var: p, Coef: 1}, {Var: on, Coef: -pu.CapacityMW}},
				Sense: LessEqual,
			})
			m.minOut[t][u] = m.AddConstraint(Constraint{
				Name:  label("min_output", s.TimeStep, pu.ID),
				Terms: []Term{{Var: p, Coef: 1}, {Var: on, Coef: -pu.MinOutputMW(defaultMinOutput)}},
				Sense: GreaterEqual,
			})

			demand.Terms = append(demand.Terms, Term{Var: p, Coef: 1})
			m.Objective = append(m.Objective, Term{Var: p, Coef: pu.MarginalCost})
		}
		m.demand[t] = m.AddConstraint(demand)
	}
	return m, nil
}

func unitIDs(units []model.PricedUnit) []string {
	ids := make([]string, len(units))
	for i, u := range units {
		ids[i] = u.ID
	}
	return ids
}

func label(kind string, ts time.Time, unit string) string {
	if unit == "" {
		return fmt.Sprintf("%s[%s]", kind, ts.Format(time.RFC3339))
	}
	return fmt.Sprintf("%s[%s,%s]", kind, ts.Format(time.RFC3339), unit)
}
