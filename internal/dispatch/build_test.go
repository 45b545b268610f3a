package dispatch

import (
	"testing"
	"time"

	"market-clearing/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func fleet() []model.PricedUnit {
	return []model.PricedUnit{
		{Unit: model.Unit{ID: "A", Technology: model.Lignite, CapacityMW: 100, Efficiency: 0.4}, MarginalCost: 20},
		{Unit: model.Unit{ID: "B", Technology: model.HardCoal, CapacityMW: 50, Efficiency: 0.4, MinOutputFraction: model.Fraction(0.5)}, MarginalCost: 40},
		{Unit: model.Unit{ID: "C", Technology: model.NaturalGas, CapacityMW: 200, Efficiency: 0.5}, MarginalCost: 60},
	}
}

func TestSinglePeriod(t *testing.T) {
	s := model.Snapshot{TimeStep: t0, Units: fleet(), DemandMW: 150, RenewableMW: 30}

	m, err := SinglePeriod(s)
	require.NoError(t, err)
	require.NoError(t, m.Validate())

	assert.False(t, m.HasIntegers())
	assert.Len(t, m.Variables, 3)
	assert.Len(t, m.Constraints, 4)
	assert.Equal(t, []string{"A", "B", "C"}, m.Units)

	d := m.Constraints[m.DemandConstraint(0)]
	assert.Equal(t, Equal, d.Sense)
	assert.InDelta(t, 120.0, d.RHS, 1e-9)
	assert.Len(t, d.Terms, 3)

	c := m.Constraints[m.CapacityConstraint(0, 2)]
	assert.Equal(t, LessEqual, c.Sense)
	assert.Equal(t, 200.0, c.RHS)
	assert.Equal(t, "capacity[2024-01-01T00:00:00Z,C]", c.Name)

	_, ok := m.Commitment(0, 0)
	assert.False(t, ok)
	_, ok = m.MinOutputConstraint(0, 0)
	assert.False(t, ok)

	x := []float64{100, 20, 0}
	assert.InDelta(t, 100*20.0+20*40.0, m.Evaluate(x), 1e-9)
}

func TestSinglePeriod_EmptyFleet(t *testing.T) {
	_, err := SinglePeriod(model.Snapshot{TimeStep: t0, DemandMW: 10})
	assert.ErrorIs(t, err, model.ErrDomain)
}

func TestUnitCommitment(t *testing.T) {
	snaps := []model.Snapshot{
		{TimeStep: t0, Units: fleet(), DemandMW: 120},
		{TimeStep: t0.Add(time.Hour), Units: fleet(), DemandMW: 80},
	}

	m, err := UnitCommitment(snaps, 0.1)
	require.NoError(t, err)
	require.NoError(t, m.Validate())

	assert.True(t, m.HasIntegers())
	assert.Len(t, m.Variables, 2*3*2)
	// capacity + min output per (t, u), plus one demand row per t.
	assert.Len(t, m.Constraints, 2*3*2+2)
	assert.Equal(t, snaps[1].TimeStep, m.Periods[1])

	on, ok := m.Commitment(1, 1)
	require.True(t, ok)
	assert.Equal(t, Binary, m.Variables[on].Kind)
	assert.Equal(t, 1.0, m.Variables[on].Upper)

	idx, ok := m.MinOutputConstraint(1, 1)
	require.True(t, ok)
	mo := m.Constraints[idx]
	assert.Equal(t, GreaterEqual, mo.Sense)
	// B carries its own 0.5 fraction.
	assert.Contains(t, mo.Terms, Term{Var: on, Coef: -25})

	idx, _ = m.MinOutputConstraint(0, 2)
	assert.Contains(t, m.Constraints[idx].Terms, Term{Var: m.commit[0][2], Coef: -20})

	capRow := m.Constraints[m.CapacityConstraint(0, 0)]
	assert.Contains(t, capRow.Terms, Term{Var: m.commit[0][0], Coef: -100})

	assert.InDelta(t, 80.0, m.Constraints[m.DemandConstraint(1)].RHS, 1e-9)
}

func TestUnitCommitment_Errors(t *testing.T) {
	t.Run("no periods", func(t *testing.T) {
		_, err := UnitCommitment(nil, 0.1)
		assert.ErrorIs(t, err, model.ErrDomain)
	})

	t.Run("bad min output", func(t *testing.T) {
		_, err := UnitCommitment([]model.Snapshot{{TimeStep: t0, Units: fleet()}}, 1.5)
		assert.ErrorIs(t, err, model.ErrDomain)
	})

	t.Run("fleet changes between periods", func(t *testing.T) {
		other := fleet()
		other[1].ID = "D"
		snaps := []model.Snapshot{
			{TimeStep: t0, Units: fleet(), DemandMW: 100},
			{TimeStep: t0.Add(time.Hour), Units: other, DemandMW: 100},
		}
		_, err := UnitCommitment(snaps, 0.1)
		assert.ErrorIs(t, err, model.ErrLookup)
	})
}

func TestModelValidate(t *testing.T) {
	m := newModel([]time.Time{t0}, []string{"A"})
	assert.Error(t, m.Validate())

	v := m.AddVariable(Variable{Name: "x", Upper: 1})
	m.AddConstraint(Constraint{Name: "bad", Terms: []Term{{Var: v + 1, Coef: 1}}})
	assert.Error(t, m.Validate())

	m.Constraints[0].Terms[0].Var = v
	assert.NoError(t, m.Validate())

	m.Variables[0].Upper = -1
	assert.Error(t, m.Validate())
}
