package pricing

import (
	"math"
	"testing"
	"time"

	"market-clearing/internal/model"
	"market-clearing/internal/solver"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicyValidate(t *testing.T) {
	assert.NoError(t, DefaultPolicy().Validate())
	assert.NoError(t, Policy{Floor: 10, Cap: 10}.Validate())
	assert.ErrorIs(t, Policy{Floor: -1, Cap: 10}.Validate(), model.ErrDomain)
	assert.ErrorIs(t, Policy{Floor: 100, Cap: 10}.Validate(), model.ErrDomain)
}

func TestEdge(t *testing.T) {
	p := DefaultPolicy()

	price, status, ok := p.Edge(0, 350)
	assert.True(t, ok)
	assert.Equal(t, 0.0, price)
	assert.Equal(t, model.StatusFloor, status)

	price, status, ok = p.Edge(350.5, 350)
	assert.True(t, ok)
	assert.Equal(t, DefaultCap, price)
	assert.Equal(t, model.StatusScarcity, status)

	_, _, ok = p.Edge(350, 350)
	assert.False(t, ok)
}

func TestFromSolution(t *testing.T) {
	p := Policy{Floor: 0, Cap: 100}

	price, status, err := p.FromSolution(solver.Optimal, 42)
	require.NoError(t, err)
	assert.Equal(t, 42.0, price)
	assert.Equal(t, model.StatusCleared, status)

	price, _, err = p.FromSolution(solver.Optimal, 250)
	require.NoError(t, err)
	assert.Equal(t, 100.0, price)

	price, _, err = p.FromSolution(solver.Optimal, -3)
	require.NoError(t, err)
	assert.Equal(t, 0.0, price)

	_, status, err = p.FromSolution(solver.Infeasible, 0)
	assert.ErrorIs(t, err, model.ErrInfeasible)
	assert.Equal(t, model.StatusInfeasible, status)

	_, _, err = p.FromSolution(solver.Unbounded, 0)
	assert.ErrorIs(t, err, model.ErrSolverFailure)

	_, _, err = p.FromSolution(solver.Optimal, math.NaN())
	assert.ErrorIs(t, err, model.ErrSolverFailure)
}

func TestReconcile(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	at := func(h int) time.Time { return t0.Add(time.Duration(h) * time.Hour) }

	a := []model.Clearing{
		{TimeStep: at(0), Price: 40, Status: model.StatusCleared},
		{TimeStep: at(1), Price: 20, Status: model.StatusCleared},
		{TimeStep: at(2), Status: model.StatusInfeasible},
		{TimeStep: at(3), Price: 60, Status: model.StatusCleared},
	}
	b := []model.Clearing{
		{TimeStep: at(0), Price: 40.0000001, Status: model.StatusCleared},
		{TimeStep: at(1), Price: 25, Status: model.StatusCleared},
		{TimeStep: at(2), Status: model.StatusInfeasible},
		{TimeStep: at(4), Price: 60, Status: model.StatusCleared},
	}

	got := Reconcile(a, b, 1e-6)
	require.Len(t, got, 3)
	assert.Equal(t, at(1), got[0].TimeStep)
	assert.InDelta(t, 5, got[0].Diff, 1e-9)
	assert.Equal(t, at(3), got[1].TimeStep)
	assert.True(t, math.IsInf(got[1].Diff, 1))
	assert.Equal(t, at(4), got[2].TimeStep)
	assert.Contains(t, got[0].String(), "CLEARED=20.0000")
}
