package memory

import (
	"context"
	"time"

	"propdesk/internal/domain"
)

// tx routes writes through the Store and remembers how to revert each one.
// Reads fall through to the embedded Store.
type tx struct {
	*Store
	undo []func(d *data)
}

func (t *tx) rollback() {
	t.Store.mu.Lock()
	defer t.Store.mu.Unlock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i](t.Store.d)
	}
	t.undo = nil
}

func (t *tx) SaveAccount(ctx context.Context, item *domain.Account, expectedVersion int64) error {
	if item == nil {
		return nil
	}
	t.Store.mu.RLock()
	prev, existed := t.Store.d.accounts[item.ID]
	t.Store.mu.RUnlock()
	prev = prev.Clone()
	if err := t.Store.SaveAccount(ctx, item, expectedVersion); err != nil {
		return err
	}
	id := item.ID
	t.undo = append(t.undo, func(d *data) {
		if existed {
			d.accounts[id] = prev
		} else {
			delete(d.accounts, id)
		}
		t.Store.Saves--
	})
	return nil
}

func (t *tx) InsertViolation(ctx context.Context, item *domain.Violation) error {
	if err := t.Store.InsertViolation(ctx, item); err != nil || item == nil {
		return err
	}
	id := item.ID
	t.undo = append(t.undo, func(d *data) {
		for i := range d.violations {
			if d.violations[i].ID == id {
				d.violations = append(d.violations[:i], d.violations[i+1:]...)
				return
			}
		}
	})
	return nil
}

func (t *tx) ResolveViolationsBefore(ctx context.Context, accountID uint64, typ domain.ViolationType, day domain.Day, at time.Time) ([]domain.Violation, error) {
	out, err := t.Store.ResolveViolationsBefore(ctx, accountID, typ, day, at)
	if err != nil || len(out) == 0 {
		return out, err
	}
	ids := make(map[uint64]struct{}, len(out))
	for _, v := range out {
		ids[v.ID] = struct{}{}
	}
	t.undo = append(t.undo, func(d *data) {
		for i := range d.violations {
			if _, ok := ids[d.violations[i].ID]; ok {
				d.violations[i].Resolved = false
				d.violations[i].ResolvedAt = nil
			}
		}
	})
	return out, nil
}

func (t *tx) AppendActivity(ctx context.Context, item *domain.Activity) (bool, error) {
	inserted, err := t.Store.AppendActivity(ctx, item)
	if err != nil || !inserted {
		return inserted, err
	}
	id := item.ID
	t.undo = append(t.undo, func(d *data) {
		for i := range d.activities {
			if d.activities[i].ID == id {
				d.activities = append(d.activities[:i], d.activities[i+1:]...)
				return
			}
		}
	})
	return true, nil
}

func (t *tx) InsertPayout(ctx context.Context, item *domain.PayoutRequest) error {
	if err := t.Store.InsertPayout(ctx, item); err != nil || item == nil {
		return err
	}
	id := item.ID
	t.undo = append(t.undo, func(d *data) {
		for i := range d.payouts {
			if d.payouts[i].ID == id {
				d.payouts = append(d.payouts[:i], d.payouts[i+1:]...)
				return
			}
		}
	})
	return nil
}

func (t *tx) UpdatePayout(ctx context.Context, item *domain.PayoutRequest) error {
	if item == nil {
		return nil
	}
	var (
		prev  domain.PayoutRequest
		found bool
	)
	t.Store.mu.RLock()
	for _, p := range t.Store.d.payouts {
		if p.ID == item.ID {
			prev, found = p, true
			break
		}
	}
	t.Store.mu.RUnlock()
	if err := t.Store.UpdatePayout(ctx, item); err != nil || !found {
		return err
	}
	t.undo = append(t.undo, func(d *data) {
		for i := range d.payouts {
			if d.payouts[i].ID == prev.ID {
				d.payouts[i] = prev
				return
			}
		}
	})
	return nil
}
