// Package recorder writes violations and activity log entries inside the
// evaluation transaction.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"propdesk/internal/domain"
	"propdesk/internal/repository"
	"propdesk/internal/rules"
)

type Recorder struct {
	Logger *zap.Logger
	// Seq returns monotonic activity sequence keys.
	Seq func() string
	Now func() time.Time
}

// Outcome lists what happened to each candidate.
type Outcome struct {
	Recorded []domain.Violation
	Existing []domain.Violation
}

func (o Outcome) All() []domain.Violation {
	out := make([]domain.Violation, 0, len(o.Recorded)+len(o.Existing))
	out = append(out, o.Recorded...)
	out = append(out, o.Existing...)
	return out
}

// RecordViolations inserts each candidate unless an unresolved violation of
// the same type already exists for the account and trading day. Every newly
// recorded violation gets one RULE_VIOLATION activity.
func (r *Recorder) RecordViolations(ctx context.Context, tx repository.Tx, accountID uint64, candidates []rules.Candidate) (Outcome, error) {
	var out Outcome
	for _, c := range candidates {
		existing, err := tx.FindUnresolvedViolation(ctx, accountID, c.Type, c.TradingDay)
		if err != nil {
			return out, err
		}
		if existing != nil {
			out.Existing = append(out.Existing, *existing)
			continue
		}
		v := c.Violation(accountID)
		v.CreatedAt = r.now()
		if err := tx.InsertViolation(ctx, &v); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return out, domain.ConcurrentModification("record_violation", accountID)
			}
			return out, err
		}
		out.Recorded = append(out.Recorded, v)
		if _, err := r.Append(ctx, tx, domain.Activity{
			AccountID:   accountID,
			Type:        domain.ActivityRuleViolation,
			Description: v.Description,
			Metadata: map[string]any{
				"violation_id": v.ID,
				"type":         string(v.Type),
				"severity":     string(v.Severity),
				"threshold":    v.Threshold.String(),
				"actual":       v.Actual.String(),
				"trading_day":  string(v.TradingDay),
			},
		}); err != nil {
			return out, err
		}
		if r.Logger != nil {
			r.Logger.Info("rule violation recorded",
				zap.Uint64("account_id", accountID),
				zap.String("type", string(v.Type)),
				zap.String("threshold", v.Threshold.String()),
				zap.String("actual", v.Actual.String()),
			)
		}
	}
	return out, nil
}

// ResolveStaleDailyLoss closes DAILY_LOSS violations from days before today.
func (r *Recorder) ResolveStaleDailyLoss(ctx context.Context, tx repository.Tx, accountID uint64, today domain.Day) (int, error) {
	resolved, err := tx.ResolveViolationsBefore(ctx, accountID, domain.ViolationDailyLoss, today, r.now())
	if err != nil {
		return 0, err
	}
	for _, v := range resolved {
		if _, err := r.Append(ctx, tx, domain.Activity{
			AccountID:   accountID,
			Type:        domain.ActivityViolationResolved,
			Description: fmt.Sprintf("Daily loss violation of %s resolved at day rollover", v.TradingDay),
			Metadata:    map[string]any{"violation_id": v.ID, "trading_day": string(v.TradingDay)},
			DedupKey:    fmt.Sprintf("violation_resolved:%d", v.ID),
		}); err != nil {
			return 0, err
		}
	}
	return len(resolved), nil
}

// ObserveTrades logs TRADE_OPENED and TRADE_CLOSED once per trade.
func (r *Recorder) ObserveTrades(ctx context.Context, tx repository.Tx, accountID uint64, trades []domain.Trade) (int, error) {
	n := 0
	for _, tr := range trades {
		if tr.Status == domain.TradeCancelled {
			continue
		}
		ok, err := r.Append(ctx, tx, domain.Activity{
			AccountID:   accountID,
			Type:        domain.ActivityTradeOpened,
			Description: fmt.Sprintf("%s %s %s @ %s", tr.Direction, tr.Quantity.String(), tr.AssetID, tr.EntryPrice.String()),
			Metadata:    map[string]any{"trade_id": tr.ID, "asset_id": tr.AssetID, "opened_at": tr.OpenedAt},
			DedupKey:    fmt.Sprintf("trade_opened:%d", tr.ID),
		})
		if err != nil {
			return n, err
		}
		if ok {
			n++
		}
		if tr.Status != domain.TradeClosed {
			continue
		}
		pnl := tr.Realized()
		meta := map[string]any{"trade_id": tr.ID, "asset_id": tr.AssetID, "realized_pnl": pnl.String()}
		if tr.ClosedAt != nil {
			meta["closed_at"] = *tr.ClosedAt
		}
		ok, err = r.Append(ctx, tx, domain.Activity{
			AccountID:   accountID,
			Type:        domain.ActivityTradeClosed,
			Description: fmt.Sprintf("Closed %s %s, realized P&L $%s", tr.Direction, tr.AssetID, pnl),
			Metadata:    meta,
			DedupKey:    fmt.Sprintf("trade_closed:%d", tr.ID),
		})
		if err != nil {
			return n, err
		}
		if ok {
			n++
		}
	}
	return n, nil
}

// StatusChange logs a lifecycle transition.
func (r *Recorder) StatusChange(ctx context.Context, tx repository.Tx, accountID uint64, from, to domain.State, reason string) error {
	return r.Transition(ctx, tx, accountID, domain.ActivityStatusChange, from, to, reason)
}

// Transition logs a lifecycle transition under a specific activity type,
// e.g. ACTIVATED for a confirmed payment.
func (r *Recorder) Transition(ctx context.Context, tx repository.Tx, accountID uint64, typ domain.ActivityType, from, to domain.State, reason string) error {
	desc := fmt.Sprintf("Status changed from %s to %s", from, to)
	if reason != "" {
		desc += ": " + reason
	}
	_, err := r.Append(ctx, tx, domain.Activity{
		AccountID:   accountID,
		Type:        typ,
		Description: desc,
		Metadata:    map[string]any{"from": string(from), "to": string(to), "reason": reason},
	})
	return err
}

// Append stamps and writes one activity entry.
func (r *Recorder) Append(ctx context.Context, tx repository.Tx, entry domain.Activity) (bool, error) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.now()
	}
	if r.Seq != nil {
		entry.Seq = r.Seq()
	}
	if entry.Metadata == nil {
		entry.Metadata = map[string]any{}
	}
	return tx.AppendActivity(ctx, &entry)
}

func (r *Recorder) now() time.Time {
	if r != nil && r.Now != nil {
		return r.Now()
	}
	return time.Now().UTC()
}
