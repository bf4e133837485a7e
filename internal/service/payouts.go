package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"propdesk/internal/audit"
	"propdesk/internal/domain"
	"propdesk/internal/idgen"
	"propdesk/internal/metrics"
	"propdesk/internal/payout"
	"propdesk/internal/repository"
)

// RequestPayout snapshots the funded account's profit and files a PENDING
// request. At most one request may be outstanding per account.
func (s *AccountService) RequestPayout(ctx context.Context, id uint64, method string, details map[string]any) (*domain.PayoutRequest, error) {
	const op = "request_payout"
	var req domain.PayoutRequest
	_, err := s.mutate(ctx, op, id, true, func(tx repository.Tx, a *domain.Account, now time.Time) error {
		outstanding, err := tx.GetOutstandingPayout(ctx, a.ID)
		if err != nil {
			return err
		}
		if err := payout.CheckEligibility(*a, outstanding); err != nil {
			return err
		}
		plan, err := s.plan(ctx, op, a.PlanID)
		if err != nil {
			return err
		}
		req = payout.NewRequest(*a, *plan, method, details, now)
		req.Reference = idgen.Reference()
		if req.Amount <= 0 {
			return domain.IneligiblePayout(op, a.ID, "payout amount rounds to zero")
		}
		if err := tx.InsertPayout(ctx, &req); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return domain.IneligiblePayout(op, a.ID, "another payout is already outstanding")
			}
			return err
		}
		_, err = s.recorder().Append(ctx, tx, domain.Activity{
			AccountID:   a.ID,
			Type:        domain.ActivityPayoutRequested,
			Description: "Payout of " + req.Amount.String() + " requested",
			Metadata: map[string]any{
				"payout_id":     req.ID,
				"reference":     req.Reference,
				"amount":        req.Amount.String(),
				"profit_earned": req.ProfitEarned.String(),
				"profit_split":  req.ProfitSplit.String(),
				"method":        req.Method,
			},
		})
		return err
	})
	if err != nil {
		if errors.Is(err, domain.ErrIneligiblePayout) {
			metrics.IncPayout("ineligible")
		}
		return nil, err
	}
	metrics.IncPayout(string(domain.PayoutPending))
	if s.Logger != nil {
		s.Logger.Info("payout requested",
			zap.Uint64("account_id", id),
			zap.Uint64("payout_id", req.ID),
			zap.String("amount", req.Amount.String()),
		)
	}
	s.Audit.Record(audit.PayoutEvent(req))
	return &req, nil
}

// ApprovePayout moves a PENDING request to APPROVED.
func (s *AccountService) ApprovePayout(ctx context.Context, payoutID uint64) (*domain.PayoutRequest, error) {
	return s.updatePayout(ctx, "approve_payout", payoutID, false, func(tx repository.Tx, a *domain.Account, p *domain.PayoutRequest, now time.Time) (domain.ActivityType, error) {
		return domain.ActivityPayoutApproved, payout.Approve(p, now)
	})
}

// CompletePayout settles an outstanding request: the amount is added to the
// account's paid-out total and profit restarts from the current balance.
func (s *AccountService) CompletePayout(ctx context.Context, payoutID uint64) (*domain.PayoutRequest, error) {
	return s.updatePayout(ctx, "complete_payout", payoutID, false, func(tx repository.Tx, a *domain.Account, p *domain.PayoutRequest, now time.Time) (domain.ActivityType, error) {
		if err := payout.CanComplete(*p); err != nil {
			return "", err
		}
		payout.Settle(a, p, now)
		return domain.ActivityPayoutCompleted, nil
	})
}

// RejectPayout closes an outstanding request without touching the account
// balances. Requests on accounts that have since become terminal can still
// be rejected.
func (s *AccountService) RejectPayout(ctx context.Context, payoutID uint64, notes string) (*domain.PayoutRequest, error) {
	return s.updatePayout(ctx, "reject_payout", payoutID, true, func(tx repository.Tx, a *domain.Account, p *domain.PayoutRequest, now time.Time) (domain.ActivityType, error) {
		return domain.ActivityPayoutRejected, payout.Reject(p, notes, now)
	})
}

type payoutStep func(tx repository.Tx, a *domain.Account, p *domain.PayoutRequest, now time.Time) (domain.ActivityType, error)

func (s *AccountService) updatePayout(ctx context.Context, op string, payoutID uint64, allowTerminal bool, step payoutStep) (*domain.PayoutRequest, error) {
	p, err := s.Repo.GetPayout(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domain.NotFound(op, "payout", payoutID)
	}

	var out domain.PayoutRequest
	_, err = s.mutate(ctx, op, p.AccountID, allowTerminal, func(tx repository.Tx, a *domain.Account, now time.Time) error {
		current, err := tx.GetPayout(ctx, payoutID)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.NotFound(op, "payout", payoutID)
		}
		typ, err := step(tx, a, current, now)
		if err != nil {
			return err
		}
		if err := tx.UpdatePayout(ctx, current); err != nil {
			return err
		}
		meta := map[string]any{
			"payout_id": current.ID,
			"reference": current.Reference,
			"amount":    current.Amount.String(),
			"status":    string(current.Status),
		}
		if current.Notes != "" {
			meta["notes"] = current.Notes
		}
		if _, err := s.recorder().Append(ctx, tx, domain.Activity{
			AccountID:   a.ID,
			Type:        typ,
			Description: "Payout " + current.Reference + " " + string(current.Status),
			Metadata:    meta,
		}); err != nil {
			return err
		}
		out = *current
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.IncPayout(string(out.Status))
	s.Audit.Record(audit.PayoutEvent(out))
	return &out, nil
}
