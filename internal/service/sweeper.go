package service

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"propdesk/internal/domain"
	"propdesk/internal/metrics"
	"propdesk/internal/repository"
)

const defaultSweepWorkers = 8

// Sweeper re-evaluates every trading account on a schedule. One account
// failing does not stop the others.
type Sweeper struct {
	Accounts *AccountService
	Repo     repository.Repository
	Settings *SystemSettingsService
	Workers  int
	// Timeout bounds a whole sweep so runs do not overlap.
	Timeout time.Duration
	Logger  *zap.Logger
}

type SweepReport struct {
	Accounts    int
	Evaluated   int
	Failed      int
	Transitions int
	Violations  int
	Skipped     bool
	Duration    time.Duration
}

func (s *Sweeper) RunOnce(ctx context.Context) (SweepReport, error) {
	var rep SweepReport
	if !s.Settings.IsEnabled(ctx, FeatureSweep, true) {
		rep.Skipped = true
		return rep, nil
	}
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	start := time.Now()

	ids, err := s.Repo.ListAccountIDsByStates(ctx, []domain.State{
		domain.StateEvaluationActive,
		domain.StateFundedActive,
	})
	if err != nil {
		return rep, err
	}
	rep.Accounts = len(ids)

	workers := s.Workers
	if workers <= 0 {
		workers = defaultSweepWorkers
	}
	var evaluated, failed, transitions, violations int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			if gctx.Err() != nil {
				atomic.AddInt64(&failed, 1)
				return nil
			}
			res, err := s.Accounts.EvaluateAccount(gctx, id)
			if err != nil {
				atomic.AddInt64(&failed, 1)
				if s.Logger != nil {
					s.Logger.Warn("sweep: evaluation failed", zap.Uint64("account_id", id), zap.Error(err))
				}
				return nil
			}
			atomic.AddInt64(&evaluated, 1)
			atomic.AddInt64(&violations, int64(res.Recorded))
			if res.Transition != nil {
				atomic.AddInt64(&transitions, 1)
			}
			return nil
		})
	}
	_ = g.Wait()

	rep.Evaluated = int(evaluated)
	rep.Failed = int(failed)
	rep.Transitions = int(transitions)
	rep.Violations = int(violations)
	rep.Duration = time.Since(start)
	metrics.ObserveSweep(rep.Accounts, rep.Failed, rep.Duration)
	if s.Logger != nil {
		s.Logger.Info("sweep finished",
			zap.Int("accounts", rep.Accounts),
			zap.Int("evaluated", rep.Evaluated),
			zap.Int("failed", rep.Failed),
			zap.Int("transitions", rep.Transitions),
			zap.Int("violations", rep.Violations),
			zap.Duration("took", rep.Duration),
		)
	}
	return rep, ctx.Err()
}
