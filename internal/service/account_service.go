package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"propdesk/internal/audit"
	"propdesk/internal/balance"
	"propdesk/internal/domain"
	"propdesk/internal/idgen"
	"propdesk/internal/lifecycle"
	"propdesk/internal/marketdata"
	"propdesk/internal/metrics"
	"propdesk/internal/recorder"
	"propdesk/internal/repository"
	"propdesk/internal/risk"
	"propdesk/internal/rules"
)

const defaultMaxAttempts = 4

// AccountService owns every mutation of an account. Each one runs under a
// per-account lock inside a repository transaction and saves the account
// guarded by the version it was read at.
type AccountService struct {
	Repo     repository.Repository
	Prices   marketdata.Resolver
	Boundary balance.DayBoundary
	Recorder *recorder.Recorder
	Risk     *risk.Manager
	Settings *SystemSettingsService
	Audit    *audit.Client
	Logger   *zap.Logger

	// MaxAttempts bounds retries after a ConcurrentModification.
	MaxAttempts int
	Now         func() time.Time

	locks keyedLocks
}

type EvaluationResult struct {
	AccountID     uint64
	PreviousState domain.State
	NewState      domain.State
	Violations    []domain.Violation
	Recorded      int
	Transition    *lifecycle.Transition
	Metrics       balance.Metrics
	Account       domain.Account
	Attempts      int
}

// EvaluateAccount refreshes metrics, records violations and applies any
// automatic transition. Market data is fetched before the account is locked.
func (s *AccountService) EvaluateAccount(ctx context.Context, id uint64) (*EvaluationResult, error) {
	start := time.Now()
	defer func() { metrics.ObserveEvaluationLatency(time.Since(start)) }()

	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts(); attempt++ {
		res, err := s.evaluateOnce(ctx, id)
		if err == nil {
			res.Attempts = attempt
			metrics.IncEvaluation(metrics.OutcomeOK)
			s.afterTransition(res.Transition, res.Account)
			return res, nil
		}
		if !domain.Retryable(err) {
			metrics.IncEvaluation(outcomeOf(err))
			return nil, err
		}
		lastErr = err
		metrics.IncEvaluationRetry()
		if s.Logger != nil {
			s.Logger.Debug("evaluation conflict, retrying",
				zap.Uint64("account_id", id),
				zap.Int("attempt", attempt),
			)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	metrics.IncEvaluation(metrics.OutcomeConflict)
	return nil, lastErr
}

func (s *AccountService) evaluateOnce(ctx context.Context, id uint64) (*EvaluationResult, error) {
	const op = "evaluate_account"
	snap, err := s.Repo.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, domain.NotFound(op, "account", id)
	}
	if snap.State.Terminal() {
		return nil, domain.TerminalAccount(op, id, snap.State)
	}
	plan, err := s.plan(ctx, op, snap.PlanID)
	if err != nil {
		return nil, err
	}
	trades, err := s.Repo.ListTrades(ctx, id)
	if err != nil {
		return nil, err
	}
	marks := s.Prices.Resolve(ctx, balance.OpenAssets(trades))

	unlock := s.locks.Lock(id)
	defer unlock()

	var res *EvaluationResult
	err = s.Repo.InTx(ctx, func(tx repository.Tx) error {
		a, err := tx.GetAccount(ctx, id)
		if err != nil {
			return err
		}
		if a == nil {
			return domain.NotFound(op, "account", id)
		}
		if a.Version != snap.Version {
			return domain.ConcurrentModification(op, id)
		}
		if a.State.Terminal() {
			return domain.TerminalAccount(op, id, a.State)
		}
		r, err := s.evaluateLocked(ctx, tx, a, *plan, trades, marks)
		if err != nil {
			return err
		}
		if err := tx.SaveAccount(ctx, a, snap.Version); err != nil {
			if errors.Is(err, repository.ErrVersionConflict) {
				return domain.ConcurrentModification(op, id)
			}
			return err
		}
		r.Account = a.Clone()
		res = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *AccountService) evaluateLocked(ctx context.Context, tx repository.Tx, a *domain.Account, plan domain.Plan, trades []domain.Trade, marks map[string]balance.Mark) (*EvaluationResult, error) {
	now := s.now()
	rec := s.recorder()

	m := balance.Tracker{Boundary: s.Boundary}.Compute(balance.Input{
		Account: *a,
		Trades:  trades,
		Marks:   marks,
		Now:     now,
	})
	if m.StaleMarks > 0 {
		metrics.AddStaleMarks(m.StaleMarks)
		if s.Logger != nil {
			s.Logger.Warn("evaluating with fallback prices",
				zap.Uint64("account_id", a.ID),
				zap.Error(domain.StaleMarketData("evaluate_account", a.ID, "%d open positions priced from last known or entry price", m.StaleMarks)),
			)
		}
	}

	res := &EvaluationResult{
		AccountID:     a.ID,
		PreviousState: a.State,
		Metrics:       m,
		Violations:    []domain.Violation{},
	}
	m.Apply(a, now)

	if _, err := rec.ObserveTrades(ctx, tx, a.ID, trades); err != nil {
		return nil, err
	}

	if a.State.Trading() {
		if _, err := rec.ResolveStaleDailyLoss(ctx, tx, a.ID, m.TradingDay); err != nil {
			return nil, err
		}
		th := rules.ThresholdsFromPlan(plan)
		candidates := rules.Evaluate(m, th)
		outcome, err := rec.RecordViolations(ctx, tx, a.ID, candidates)
		if err != nil {
			return nil, err
		}
		res.Violations = outcome.All()
		res.Recorded = len(outcome.Recorded)
		for _, v := range outcome.Recorded {
			metrics.IncViolation(string(v.Type))
		}

		unresolved, err := tx.CountUnresolvedViolations(ctx, a.ID, domain.TerminalViolationTypes())
		if err != nil {
			return nil, err
		}
		ev, ok := lifecycle.Decide(lifecycle.Facts{
			State:              a.State,
			Metrics:            m,
			Candidates:         candidates,
			UnresolvedTerminal: unresolved,
		}, th)
		if ok {
			reason := transitionReason(ev, candidates, m, th)
			tr, err := lifecycle.Apply(a, ev, reason, now)
			if err != nil {
				return nil, err
			}
			if err := rec.StatusChange(ctx, tx, a.ID, tr.From, tr.To, reason); err != nil {
				return nil, err
			}
			res.Transition = &tr
		}
	}

	res.NewState = a.State
	return res, nil
}

func transitionReason(ev lifecycle.Event, candidates []rules.Candidate, m balance.Metrics, th rules.Thresholds) string {
	switch ev {
	case lifecycle.EventTerminalViolation:
		return lifecycle.FailureReason(candidates)
	case lifecycle.EventTargetReached:
		return fmt.Sprintf("profit %s reached target %s over %d trading days", m.ProfitEarned, th.ProfitTarget(), m.TradingDayCount())
	}
	return ""
}

// PromoteToFunded moves a passed evaluation to FUNDED_ACTIVE. When the plan
// names a funded plan the account is rebound to it. Profit for payouts is
// measured from the balance at promotion.
func (s *AccountService) PromoteToFunded(ctx context.Context, id uint64) (*domain.Account, error) {
	const op = "promote_to_funded"
	var tr lifecycle.Transition
	a, err := s.mutate(ctx, op, id, false, func(tx repository.Tx, a *domain.Account, now time.Time) error {
		plan, err := s.plan(ctx, op, a.PlanID)
		if err != nil {
			return err
		}
		t, err := lifecycle.Apply(a, lifecycle.EventPromote, "evaluation passed", now)
		if err != nil {
			return err
		}
		if plan.FundedPlanID != 0 {
			funded, err := s.plan(ctx, op, plan.FundedPlanID)
			if err != nil {
				return err
			}
			a.PlanID = funded.ID
		}
		a.PayoutBaseline = a.CurrentBalance
		a.ProfitEarned = 0
		tr = t
		return s.recorder().StatusChange(ctx, tx, a.ID, t.From, t.To, t.Reason)
	})
	if err != nil {
		return nil, err
	}
	s.afterTransition(&tr, *a)
	return a, nil
}

// CloseAccount closes a funded account. Outstanding payouts must be settled
// or rejected first.
func (s *AccountService) CloseAccount(ctx context.Context, id uint64, reason string) (*domain.Account, error) {
	const op = "close_account"
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "closed by operator"
	}
	var tr lifecycle.Transition
	a, err := s.mutate(ctx, op, id, false, func(tx repository.Tx, a *domain.Account, now time.Time) error {
		if _, err := lifecycle.Next(a.ID, a.State, lifecycle.EventClose); err != nil {
			return err
		}
		outstanding, err := tx.GetOutstandingPayout(ctx, a.ID)
		if err != nil {
			return err
		}
		if outstanding != nil {
			return domain.Validation(op, "payout %d is still %s", outstanding.ID, outstanding.Status)
		}
		t, err := lifecycle.Apply(a, lifecycle.EventClose, reason, now)
		if err != nil {
			return err
		}
		tr = t
		return s.recorder().StatusChange(ctx, tx, a.ID, t.From, t.To, reason)
	})
	if err != nil {
		return nil, err
	}
	s.afterTransition(&tr, *a)
	return a, nil
}

// ConfirmPayment activates a PENDING account once the challenge fee is paid.
func (s *AccountService) ConfirmPayment(ctx context.Context, id uint64) (*domain.Account, error) {
	return s.paymentEvent(ctx, "confirm_payment", id, lifecycle.EventPaymentConfirmed, domain.ActivityActivated, "payment confirmed")
}

// FailPayment closes a PENDING account whose payment did not go through.
func (s *AccountService) FailPayment(ctx context.Context, id uint64, reason string) (*domain.Account, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "payment failed"
	}
	return s.paymentEvent(ctx, "fail_payment", id, lifecycle.EventPaymentFailed, domain.ActivityPaymentFailed, reason)
}

func (s *AccountService) paymentEvent(ctx context.Context, op string, id uint64, ev lifecycle.Event, typ domain.ActivityType, reason string) (*domain.Account, error) {
	var tr lifecycle.Transition
	a, err := s.mutate(ctx, op, id, false, func(tx repository.Tx, a *domain.Account, now time.Time) error {
		t, err := lifecycle.Apply(a, ev, reason, now)
		if err != nil {
			return err
		}
		tr = t
		return s.recorder().Transition(ctx, tx, a.ID, typ, t.From, t.To, reason)
	})
	if err != nil {
		return nil, err
	}
	s.afterTransition(&tr, *a)
	return a, nil
}

// mutate runs fn on the freshly read, locked account and saves it under the
// version it was read at, retrying on conflict. Terminal accounts are
// rejected unless allowTerminal is set, in which case they are not saved.
func (s *AccountService) mutate(ctx context.Context, op string, id uint64, allowTerminal bool, fn func(tx repository.Tx, a *domain.Account, now time.Time) error) (*domain.Account, error) {
	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts(); attempt++ {
		a, err := s.mutateOnce(ctx, op, id, allowTerminal, fn)
		if err == nil {
			return a, nil
		}
		if !domain.Retryable(err) {
			return nil, err
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

func (s *AccountService) mutateOnce(ctx context.Context, op string, id uint64, allowTerminal bool, fn func(tx repository.Tx, a *domain.Account, now time.Time) error) (*domain.Account, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	var out *domain.Account
	err := s.Repo.InTx(ctx, func(tx repository.Tx) error {
		a, err := tx.GetAccount(ctx, id)
		if err != nil {
			return err
		}
		if a == nil {
			return domain.NotFound(op, "account", id)
		}
		terminal := a.State.Terminal()
		if terminal && !allowTerminal {
			return domain.TerminalAccount(op, id, a.State)
		}
		version := a.Version
		if err := fn(tx, a, s.now()); err != nil {
			return err
		}
		if !terminal {
			if err := tx.SaveAccount(ctx, a, version); err != nil {
				if errors.Is(err, repository.ErrVersionConflict) {
					return domain.ConcurrentModification(op, id)
				}
				return err
			}
		}
		c := a.Clone()
		out = &c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// OpenAccount creates a PENDING account bound to an active plan.
func (s *AccountService) OpenAccount(ctx context.Context, planID uint64) (*domain.Account, error) {
	const op = "open_account"
	plan, err := s.plan(ctx, op, planID)
	if err != nil {
		return nil, err
	}
	if !plan.Active {
		return nil, domain.Validation(op, "plan %d is retired", plan.ID)
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}

	var a domain.Account
	for i := 0; i < 3; i++ {
		number, err := idgen.AccountNumber()
		if err != nil {
			return nil, err
		}
		a = domain.NewAccount(number, *plan, s.now())
		if err := a.Validate(); err != nil {
			return nil, err
		}
		err = s.Repo.CreateAccount(ctx, &a)
		if errors.Is(err, repository.ErrDuplicate) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if _, err := s.recorder().Append(ctx, s.Repo, domain.Activity{
			AccountID:   a.ID,
			Type:        domain.ActivityCreated,
			Description: fmt.Sprintf("Account %s created on plan %s v%d", a.AccountNumber, plan.Name, plan.Version),
			Metadata:    map[string]any{"plan_id": plan.ID, "starting_balance": a.StartingBalance.String()},
		}); err != nil {
			return nil, err
		}
		if s.Logger != nil {
			s.Logger.Info("account opened",
				zap.Uint64("account_id", a.ID),
				zap.String("account_number", a.AccountNumber),
				zap.Uint64("plan_id", plan.ID),
			)
		}
		return &a, nil
	}
	return nil, fmt.Errorf("%s: could not allocate a unique account number", op)
}

// AddNote appends an operator note to the activity log.
func (s *AccountService) AddNote(ctx context.Context, id uint64, text string) (*domain.Activity, error) {
	const op = "add_note"
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, domain.Validation(op, "note text is required")
	}
	a, err := s.Repo.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, domain.NotFound(op, "account", id)
	}
	entry := domain.Activity{
		AccountID:   id,
		Type:        domain.ActivityNoteAdded,
		Description: text,
		CreatedAt:   s.now(),
		Seq:         s.seq(),
	}
	entry.Metadata = map[string]any{}
	if _, err := s.Repo.AppendActivity(ctx, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *AccountService) afterTransition(tr *lifecycle.Transition, a domain.Account) {
	if tr == nil || tr.From == tr.To {
		return
	}
	metrics.IncTransition(string(tr.From), string(tr.To))
	if s.Logger != nil {
		s.Logger.Info("account transitioned",
			zap.Uint64("account_id", a.ID),
			zap.String("from", string(tr.From)),
			zap.String("to", string(tr.To)),
			zap.String("reason", tr.Reason),
		)
	}
	s.Audit.Record(audit.TransitionEvent(a, tr.From, tr.To, tr.Reason))
}

func (s *AccountService) plan(ctx context.Context, op string, id uint64) (*domain.Plan, error) {
	p, err := s.Repo.GetPlan(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domain.NotFound(op, "plan", id)
	}
	return p, nil
}

func (s *AccountService) recorder() *recorder.Recorder {
	if s.Recorder != nil {
		return s.Recorder
	}
	return &recorder.Recorder{Logger: s.Logger, Seq: idgen.Next, Now: s.now}
}

func (s *AccountService) seq() string {
	if s.Recorder != nil && s.Recorder.Seq != nil {
		return s.Recorder.Seq()
	}
	return idgen.Next()
}

func (s *AccountService) maxAttempts() int {
	if s.MaxAttempts <= 0 {
		return defaultMaxAttempts
	}
	return s.MaxAttempts
}

func (s *AccountService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, domain.ErrTerminalAccount),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidTransition):
		return metrics.OutcomeRejected
	}
	return metrics.OutcomeError
}
