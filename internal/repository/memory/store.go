// Package memory is an in-process Repository used by tests and local runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"propdesk/internal/domain"
	"propdesk/internal/repository"
)

type data struct {
	plans      map[uint64]domain.Plan
	accounts   map[uint64]domain.Account
	trades     map[uint64][]domain.Trade
	violations []domain.Violation
	activities []domain.Activity
	payouts    []domain.PayoutRequest
	settings   map[string][]byte
	prices     map[string]price
	nextID     uint64
}

type price struct {
	value decimal.Decimal
	at    time.Time
}

// Store keeps everything in maps. InTx serialises transactions and undoes the
// transaction's own writes when fn fails; writes made outside it survive.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	d    *data

	// Saves counts successful SaveAccount calls.
	Saves int
}

func New() *Store {
	return &Store{d: &data{
		plans:    map[uint64]domain.Plan{},
		accounts: map[uint64]domain.Account{},
		trades:   map[uint64][]domain.Trade{},
		settings: map[string][]byte{},
		prices:   map[string]price{},
	}}
}

func (s *Store) InTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	t := &tx{Store: s}
	if err := fn(t); err != nil {
		t.rollback()
		return err
	}
	return nil
}

func (s *Store) id() uint64 {
	s.d.nextID++
	return s.d.nextID
}

// --- trades (ledger side, used to seed tests) -------------------------------

func (s *Store) PutTrade(accountID uint64, tr domain.Trade) domain.Trade {
	s.mu.Lock()
	defer s.mu.Unlock()
	tr.AccountID = accountID
	list := s.d.trades[accountID]
	for i := range list {
		if tr.ID != 0 && list[i].ID == tr.ID {
			list[i] = tr
			return tr
		}
	}
	if tr.ID == 0 {
		tr.ID = s.id()
	}
	s.d.trades[accountID] = append(list, tr)
	return tr
}

func (s *Store) ListTrades(ctx context.Context, accountID uint64) ([]domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Trade(nil), s.d.trades[accountID]...), nil
}

// --- prices ----------------------------------------------------------------

func (s *Store) LastAssetPrice(ctx context.Context, assetID string) (decimal.Decimal, time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.d.prices[assetID]
	return p.value, p.at, ok, nil
}

func (s *Store) UpsertAssetPrice(ctx context.Context, assetID string, value decimal.Decimal, at time.Time, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.d.prices[assetID] = price{value: value, at: at}
	return nil
}

func (s *Store) ListOpenAssets(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := map[string]struct{}{}
	out := []string{}
	for _, list := range s.d.trades {
		for _, tr := range list {
			if tr.Status != domain.TradeOpen {
				continue
			}
			if _, ok := seen[tr.AssetID]; ok {
				continue
			}
			seen[tr.AssetID] = struct{}{}
			out = append(out, tr.AssetID)
		}
	}
	sort.Strings(out)
	return out, nil
}

// --- plans -----------------------------------------------------------------

func (s *Store) CreatePlan(ctx context.Context, item *domain.Plan) error {
	if item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	item.ID = s.id()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	s.d.plans[item.ID] = *item
	return nil
}

func (s *Store) GetPlan(ctx context.Context, id uint64) (*domain.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.d.plans[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *Store) ListPlans(ctx context.Context, activeOnly bool) ([]domain.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Plan, 0, len(s.d.plans))
	for _, p := range s.d.plans {
		if activeOnly && !p.Active {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) RevisePlan(ctx context.Context, previousID uint64, next *domain.Plan) error {
	if next == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.d.plans[previousID]
	if ok {
		prev.Active = false
		s.d.plans[previousID] = prev
	}
	next.ID = s.id()
	if next.CreatedAt.IsZero() {
		next.CreatedAt = time.Now().UTC()
	}
	s.d.plans[next.ID] = *next
	return nil
}

// --- accounts --------------------------------------------------------------

func (s *Store) CreateAccount(ctx context.Context, item *domain.Account) error {
	if item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	item.ID = s.id()
	item.Version = 1
	s.d.accounts[item.ID] = item.Clone()
	return nil
}

func (s *Store) GetAccount(ctx context.Context, id uint64) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.d.accounts[id]
	if !ok {
		return nil, nil
	}
	c := a.Clone()
	return &c, nil
}

func (s *Store) GetAccountByNumber(ctx context.Context, number string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.d.accounts {
		if a.AccountNumber == number {
			c := a.Clone()
			return &c, nil
		}
	}
	return nil, nil
}

func (s *Store) SaveAccount(ctx context.Context, item *domain.Account, expectedVersion int64) error {
	if item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.d.accounts[item.ID]
	if !ok || cur.Version != expectedVersion {
		return repository.ErrVersionConflict
	}
	item.Version = expectedVersion + 1
	item.UpdatedAt = time.Now().UTC()
	s.d.accounts[item.ID] = item.Clone()
	s.Saves++
	return nil
}

func (s *Store) filterAccounts(params repository.ListAccountsParams) []domain.Account {
	out := make([]domain.Account, 0, len(s.d.accounts))
	for _, a := range s.d.accounts {
		if params.State != nil && a.State != *params.State {
			continue
		}
		if params.PlanID != nil && a.PlanID != *params.PlanID {
			continue
		}
		out = append(out, a.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) ListAccounts(ctx context.Context, params repository.ListAccountsParams) ([]domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return page(s.filterAccounts(params), params.Limit, params.Offset), nil
}

func (s *Store) CountAccounts(ctx context.Context, params repository.ListAccountsParams) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.filterAccounts(params))), nil
}

func (s *Store) ListAccountIDsByStates(ctx context.Context, states []domain.State) ([]uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want := map[domain.State]struct{}{}
	for _, st := range states {
		want[st] = struct{}{}
	}
	out := []uint64{}
	for id, a := range s.d.accounts {
		if _, ok := want[a.State]; ok {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// --- violations ------------------------------------------------------------

func (s *Store) FindUnresolvedViolation(ctx context.Context, accountID uint64, typ domain.ViolationType, day domain.Day) (*domain.Violation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, v := range s.d.violations {
		if v.AccountID == accountID && v.Type == typ && v.TradingDay == day && !v.Resolved {
			out := v
			return &out, nil
		}
	}
	return nil, nil
}

func (s *Store) InsertViolation(ctx context.Context, item *domain.Violation) error {
	if item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.d.violations {
		if v.AccountID == item.AccountID && v.Type == item.Type && v.TradingDay == item.TradingDay && !v.Resolved {
			return repository.ErrDuplicate
		}
	}
	item.ID = s.id()
	s.d.violations = append(s.d.violations, *item)
	return nil
}

func (s *Store) ResolveViolationsBefore(ctx context.Context, accountID uint64, typ domain.ViolationType, day domain.Day, at time.Time) ([]domain.Violation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Violation
	for i := range s.d.violations {
		v := &s.d.violations[i]
		if v.AccountID != accountID || v.Type != typ || v.Resolved || v.TradingDay >= day {
			continue
		}
		ts := at
		v.Resolved = true
		v.ResolvedAt = &ts
		out = append(out, *v)
	}
	return out, nil
}

func (s *Store) CountUnresolvedViolations(ctx context.Context, accountID uint64, types []domain.ViolationType) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, v := range s.d.violations {
		if v.AccountID != accountID || v.Resolved {
			continue
		}
		for _, t := range types {
			if v.Type == t {
				n++
				break
			}
		}
	}
	return n, nil
}

func (s *Store) ListViolations(ctx context.Context, params repository.ListViolationsParams) ([]domain.Violation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.Violation{}
	for i := len(s.d.violations) - 1; i >= 0; i-- {
		v := s.d.violations[i]
		if params.AccountID != 0 && v.AccountID != params.AccountID {
			continue
		}
		if params.Type != nil && v.Type != *params.Type {
			continue
		}
		if params.Unresolved && v.Resolved {
			continue
		}
		out = append(out, v)
	}
	return page(out, params.Limit, params.Offset), nil
}

// --- activities ------------------------------------------------------------

func (s *Store) AppendActivity(ctx context.Context, item *domain.Activity) (bool, error) {
	if item == nil {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if item.DedupKey != "" {
		for _, a := range s.d.activities {
			if a.AccountID == item.AccountID && a.DedupKey == item.DedupKey {
				return false, nil
			}
		}
	}
	item.ID = s.id()
	s.d.activities = append(s.d.activities, *item)
	return true, nil
}

func (s *Store) ListActivities(ctx context.Context, params repository.ListActivitiesParams) ([]domain.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.Activity{}
	for i := len(s.d.activities) - 1; i >= 0; i-- {
		a := s.d.activities[i]
		if params.AccountID != 0 && a.AccountID != params.AccountID {
			continue
		}
		if params.Type != nil && a.Type != *params.Type {
			continue
		}
		out = append(out, a)
	}
	return page(out, params.Limit, params.Offset), nil
}

// --- payouts ---------------------------------------------------------------

func (s *Store) GetOutstandingPayout(ctx context.Context, accountID uint64) (*domain.PayoutRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.d.payouts {
		if p.AccountID == accountID && p.Status.Outstanding() {
			out := p
			return &out, nil
		}
	}
	return nil, nil
}

func (s *Store) GetPayout(ctx context.Context, id uint64) (*domain.PayoutRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.d.payouts {
		if p.ID == id {
			out := p
			return &out, nil
		}
	}
	return nil, nil
}

func (s *Store) InsertPayout(ctx context.Context, item *domain.PayoutRequest) error {
	if item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if item.Status.Outstanding() {
		for _, p := range s.d.payouts {
			if p.AccountID == item.AccountID && p.Status.Outstanding() {
				return repository.ErrDuplicate
			}
		}
	}
	item.ID = s.id()
	s.d.payouts = append(s.d.payouts, *item)
	return nil
}

func (s *Store) UpdatePayout(ctx context.Context, item *domain.PayoutRequest) error {
	if item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.d.payouts {
		if s.d.payouts[i].ID == item.ID {
			s.d.payouts[i] = *item
			return nil
		}
	}
	return nil
}

func (s *Store) ListPayouts(ctx context.Context, params repository.ListPayoutsParams) ([]domain.PayoutRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.PayoutRequest{}
	for i := len(s.d.payouts) - 1; i >= 0; i-- {
		p := s.d.payouts[i]
		if params.AccountID != 0 && p.AccountID != params.AccountID {
			continue
		}
		if params.Status != nil && p.Status != *params.Status {
			continue
		}
		out = append(out, p)
	}
	return page(out, params.Limit, params.Offset), nil
}

// --- settings --------------------------------------------------------------

func (s *Store) GetSetting(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.d.settings[key]
	return append([]byte(nil), v...), ok, nil
}

func (s *Store) UpsertSetting(ctx context.Context, key string, value []byte, description string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.d.settings[key] = append([]byte(nil), value...)
	return nil
}

func (s *Store) ListSettings(ctx context.Context) (map[string][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]byte, len(s.d.settings))
	for k, v := range s.d.settings {
		out[k] = append([]byte(nil), v...)
	}
	return out, nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

var _ repository.Repository = (*Store)(nil)
