package solver

import (
	"context"
	"errors"
	"time"

	"market-clearing/internal/dispatch"
	"market-clearing/internal/model"

	"github.com/sirupsen/logrus"
)

// Retrying retries solves that end in model.ErrSolverFailure. Timeouts and
// cancellation are returned immediately.
type Retrying struct {
	Solver   Solver
	Attempts int
	Backoff  time.Duration
	Logger   *logrus.Logger
}

var _ Solver = (*Retrying)(nil)

func (r *Retrying) Solve(ctx context.Context, m *dispatch.Model) (*Solution, error) {
	attempts := r.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 1; i <= attempts; i++ {
		var sol *Solution
		sol, err = r.Solver.Solve(ctx, m)
		if err == nil {
			return sol, nil
		}
		if !errors.Is(err, model.ErrSolverFailure) || i == attempts {
			break
		}
		if r.Logger != nil {
			r.Logger.WithError(err).WithField("attempt", i).Warn("[Solver] retrying failed solve")
		}
		if r.Backoff > 0 {
			select {
			case <-ctx.Done():
				return nil, checkContext(ctx)
			case <-time.After(r.Backoff):
			}
		}
	}
	return nil, err
}
