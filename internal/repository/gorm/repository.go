package gormrepository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"propdesk/internal/domain"
	"propdesk/internal/models"
	"propdesk/internal/repository"
)

// ErrNoDatabase is returned by InTx on a Store without a connection.
var ErrNoDatabase = errors.New("gorm store has no database")

type Store struct {
	db *gorm.DB
	// inTx makes account reads take a row lock.
	inTx bool
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	if s == nil || s.db == nil {
		return ErrNoDatabase
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx, inTx: true})
	})
}

// --- trades & prices -------------------------------------------------------

func (s *Store) ListTrades(ctx context.Context, accountID uint64) ([]domain.Trade, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var rows []models.Trade
	if err := s.db.WithContext(ctx).
		Model(&models.Trade{}).
		Where("account_id = ?", accountID).
		Where("status IN ?", []string{string(domain.TradeOpen), string(domain.TradeClosed)}).
		Order("id asc").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Trade, 0, len(rows))
	for _, r := range rows {
		out = append(out, tradeFromRow(r))
	}
	return out, nil
}

func (s *Store) ListOpenAssets(ctx context.Context) ([]string, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var assets []string
	if err := s.db.WithContext(ctx).
		Model(&models.Trade{}).
		Where("status = ?", string(domain.TradeOpen)).
		Distinct("asset_id").
		Order("asset_id asc").
		Pluck("asset_id", &assets).Error; err != nil {
		return nil, err
	}
	return cleanStrings(assets), nil
}

func (s *Store) LastAssetPrice(ctx context.Context, assetID string) (decimal.Decimal, time.Time, bool, error) {
	if s == nil || s.db == nil {
		return decimal.Zero, time.Time{}, false, nil
	}
	var row models.AssetPrice
	err := s.db.WithContext(ctx).Where("asset_id = ?", strings.TrimSpace(assetID)).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, time.Time{}, false, nil
	}
	if err != nil {
		return decimal.Zero, time.Time{}, false, err
	}
	return row.Price, row.PricedAt, true, nil
}

func (s *Store) UpsertAssetPrice(ctx context.Context, assetID string, price decimal.Decimal, at time.Time, source string) error {
	if s == nil || s.db == nil {
		return nil
	}
	row := models.AssetPrice{
		AssetID:   strings.TrimSpace(assetID),
		Price:     price,
		PricedAt:  at,
		UpdatedAt: time.Now().UTC(),
	}
	if source != "" {
		row.Source = &source
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "asset_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"price", "priced_at", "source", "updated_at"}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "asset_prices.priced_at <= excluded.priced_at"},
		}},
	}).Create(&row).Error
}

// --- plans -----------------------------------------------------------------

func (s *Store) CreatePlan(ctx context.Context, item *domain.Plan) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	row := planRow(item)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return err
	}
	item.ID = row.ID
	item.CreatedAt = row.CreatedAt
	return nil
}

func (s *Store) GetPlan(ctx context.Context, id uint64) (*domain.Plan, error) {
	if s == nil || s.db == nil || id == 0 {
		return nil, nil
	}
	var row models.Plan
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p := planFromRow(row)
	return &p, nil
}

func (s *Store) ListPlans(ctx context.Context, activeOnly bool) ([]domain.Plan, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.Plan{})
	if activeOnly {
		query = query.Where("active = ?", true)
	}
	var rows []models.Plan
	if err := query.Order("id asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Plan, 0, len(rows))
	for _, r := range rows {
		out = append(out, planFromRow(r))
	}
	return out, nil
}

func (s *Store) RevisePlan(ctx context.Context, previousID uint64, next *domain.Plan) error {
	if s == nil || s.db == nil || next == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Plan{}).
			Where("id = ?", previousID).
			Update("active", false).Error; err != nil {
			return err
		}
		row := planRow(next)
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		next.ID = row.ID
		next.CreatedAt = row.CreatedAt
		return nil
	})
}

// --- accounts --------------------------------------------------------------

func (s *Store) CreateAccount(ctx context.Context, item *domain.Account) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	item.Version = 1
	row := accountRow(item)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return translate(err)
	}
	item.ID = row.ID
	item.CreatedAt = row.CreatedAt
	item.UpdatedAt = row.UpdatedAt
	return nil
}

func (s *Store) GetAccount(ctx context.Context, id uint64) (*domain.Account, error) {
	if s == nil || s.db == nil || id == 0 {
		return nil, nil
	}
	query := s.db.WithContext(ctx)
	if s.inTx {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var row models.Account
	err := query.Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a := accountFromRow(row)
	return &a, nil
}

func (s *Store) GetAccountByNumber(ctx context.Context, number string) (*domain.Account, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, nil
	}
	var row models.Account
	err := s.db.WithContext(ctx).Where("account_number = ?", number).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a := accountFromRow(row)
	return &a, nil
}

// SaveAccount writes every mutable column guarded by the version check.
func (s *Store) SaveAccount(ctx context.Context, item *domain.Account, expectedVersion int64) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	now := time.Now().UTC()
	row := accountRow(item)
	res := s.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ? AND version = ?", item.ID, expectedVersion).
		Updates(map[string]any{
			"plan_id":                row.PlanID,
			"state":                  row.State,
			"current_balance_cents":  row.CurrentBalanceCents,
			"high_water_mark_cents":  row.HighWaterMarkCents,
			"day_open_balance_cents": row.DayOpenBalanceCents,
			"daily_loss_cents":       row.DailyLossCents,
			"total_loss_cents":       row.TotalLossCents,
			"profit_earned_cents":    row.ProfitEarnedCents,
			"payout_baseline_cents":  row.PayoutBaselineCents,
			"total_paid_out_cents":   row.TotalPaidOutCents,
			"trading_day":            row.TradingDay,
			"trading_days":           row.TradingDays,
			"stale_marks":            row.StaleMarks,
			"failure_reason":         row.FailureReason,
			"closure_reason":         row.ClosureReason,
			"last_evaluated_at":      row.LastEvaluatedAt,
			"activated_at":           row.ActivatedAt,
			"passed_at":              row.PassedAt,
			"funded_at":              row.FundedAt,
			"failed_at":              row.FailedAt,
			"closed_at":              row.ClosedAt,
			"version":                expectedVersion + 1,
			"updated_at":             now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repository.ErrVersionConflict
	}
	item.Version = expectedVersion + 1
	item.UpdatedAt = now
	return nil
}

var accountOrderColumns = map[string]string{
	"id":                "id",
	"created_at":        "created_at",
	"updated_at":        "updated_at",
	"current_balance":   "current_balance_cents",
	"profit_earned":     "profit_earned_cents",
	"last_evaluated_at": "last_evaluated_at",
}

func (s *Store) accountQuery(ctx context.Context, params repository.ListAccountsParams) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&models.Account{})
	if params.State != nil && *params.State != "" {
		query = query.Where("state = ?", string(*params.State))
	}
	if params.PlanID != nil && *params.PlanID != 0 {
		query = query.Where("plan_id = ?", *params.PlanID)
	}
	return query
}

func (s *Store) ListAccounts(ctx context.Context, params repository.ListAccountsParams) ([]domain.Account, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.accountQuery(ctx, params)
	query = applyOrder(query, accountOrderColumns[strings.TrimSpace(params.OrderBy)], params.Asc, "id")
	var rows []models.Account
	if err := query.Limit(normalizeLimit(params.Limit, 100)).Offset(normalizeOffset(params.Offset)).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Account, 0, len(rows))
	for _, r := range rows {
		out = append(out, accountFromRow(r))
	}
	return out, nil
}

func (s *Store) CountAccounts(ctx context.Context, params repository.ListAccountsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var n int64
	if err := s.accountQuery(ctx, params).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) ListAccountIDsByStates(ctx context.Context, states []domain.State) ([]uint64, error) {
	if s == nil || s.db == nil || len(states) == 0 {
		return nil, nil
	}
	raw := make([]string, 0, len(states))
	for _, st := range states {
		raw = append(raw, string(st))
	}
	var ids []uint64
	if err := s.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("state IN ?", raw).
		Order("id asc").
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// --- violations ------------------------------------------------------------

func (s *Store) FindUnresolvedViolation(ctx context.Context, accountID uint64, typ domain.ViolationType, day domain.Day) (*domain.Violation, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var row models.Violation
	err := s.db.WithContext(ctx).
		Where("account_id = ? AND type = ? AND trading_day = ? AND resolved = ?", accountID, string(typ), string(day), false).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	v := violationFromRow(row)
	return &v, nil
}

func (s *Store) InsertViolation(ctx context.Context, item *domain.Violation) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	row := violationRow(item)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return translate(err)
	}
	item.ID = row.ID
	item.CreatedAt = row.CreatedAt
	return nil
}

func (s *Store) ResolveViolationsBefore(ctx context.Context, accountID uint64, typ domain.ViolationType, day domain.Day, at time.Time) ([]domain.Violation, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var rows []models.Violation
	if err := s.db.WithContext(ctx).
		Where("account_id = ? AND type = ? AND resolved = ? AND trading_day < ?", accountID, string(typ), false, string(day)).
		Order("id asc").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	ids := make([]uint64, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	if err := s.db.WithContext(ctx).
		Model(&models.Violation{}).
		Where("id IN ?", ids).
		Updates(map[string]any{"resolved": true, "resolved_at": at}).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Violation, 0, len(rows))
	for _, r := range rows {
		v := violationFromRow(r)
		ts := at
		v.Resolved = true
		v.ResolvedAt = &ts
		out = append(out, v)
	}
	return out, nil
}

func (s *Store) CountUnresolvedViolations(ctx context.Context, accountID uint64, types []domain.ViolationType) (int64, error) {
	if s == nil || s.db == nil || len(types) == 0 {
		return 0, nil
	}
	raw := make([]string, 0, len(types))
	for _, t := range types {
		raw = append(raw, string(t))
	}
	var n int64
	if err := s.db.WithContext(ctx).
		Model(&models.Violation{}).
		Where("account_id = ? AND resolved = ? AND type IN ?", accountID, false, raw).
		Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) ListViolations(ctx context.Context, params repository.ListViolationsParams) ([]domain.Violation, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.Violation{})
	if params.AccountID != 0 {
		query = query.Where("account_id = ?", params.AccountID)
	}
	if params.Type != nil && *params.Type != "" {
		query = query.Where("type = ?", string(*params.Type))
	}
	if params.Unresolved {
		query = query.Where("resolved = ?", false)
	}
	var rows []models.Violation
	if err := query.Order("id desc").
		Limit(normalizeLimit(params.Limit, 200)).
		Offset(normalizeOffset(params.Offset)).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Violation, 0, len(rows))
	for _, r := range rows {
		out = append(out, violationFromRow(r))
	}
	return out, nil
}

// --- activities ------------------------------------------------------------

func (s *Store) AppendActivity(ctx context.Context, item *domain.Activity) (bool, error) {
	if s == nil || s.db == nil || item == nil {
		return false, nil
	}
	row, err := activityRow(item)
	if err != nil {
		return false, err
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}, {Name: "dedup_key"}},
		DoNothing: true,
	}).Create(&row)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	item.ID = row.ID
	return true, nil
}

func (s *Store) ListActivities(ctx context.Context, params repository.ListActivitiesParams) ([]domain.Activity, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.AccountActivity{})
	if params.AccountID != 0 {
		query = query.Where("account_id = ?", params.AccountID)
	}
	if params.Type != nil && *params.Type != "" {
		query = query.Where("type = ?", string(*params.Type))
	}
	var rows []models.AccountActivity
	if err := query.Order("seq desc").
		Limit(normalizeLimit(params.Limit, 200)).
		Offset(normalizeOffset(params.Offset)).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Activity, 0, len(rows))
	for _, r := range rows {
		out = append(out, activityFromRow(r))
	}
	return out, nil
}

// --- payouts ---------------------------------------------------------------

func (s *Store) GetOutstandingPayout(ctx context.Context, accountID uint64) (*domain.PayoutRequest, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var row models.PayoutRequest
	err := s.db.WithContext(ctx).
		Where("account_id = ? AND status IN ?", accountID, []string{string(domain.PayoutPending), string(domain.PayoutApproved)}).
		Order("id desc").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p := payoutFromRow(row)
	return &p, nil
}

func (s *Store) GetPayout(ctx context.Context, id uint64) (*domain.PayoutRequest, error) {
	if s == nil || s.db == nil || id == 0 {
		return nil, nil
	}
	var row models.PayoutRequest
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p := payoutFromRow(row)
	return &p, nil
}

func (s *Store) InsertPayout(ctx context.Context, item *domain.PayoutRequest) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	row, err := payoutRow(item)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return translate(err)
	}
	item.ID = row.ID
	return nil
}

func (s *Store) UpdatePayout(ctx context.Context, item *domain.PayoutRequest) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	row, err := payoutRow(item)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).
		Model(&models.PayoutRequest{}).
		Where("id = ?", item.ID).
		Updates(map[string]any{
			"status":       row.Status,
			"notes":        row.Notes,
			"approved_at":  row.ApprovedAt,
			"completed_at": row.CompletedAt,
			"rejected_at":  row.RejectedAt,
		}).Error
}

func (s *Store) ListPayouts(ctx context.Context, params repository.ListPayoutsParams) ([]domain.PayoutRequest, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.PayoutRequest{})
	if params.AccountID != 0 {
		query = query.Where("account_id = ?", params.AccountID)
	}
	if params.Status != nil && *params.Status != "" {
		query = query.Where("status = ?", string(*params.Status))
	}
	var rows []models.PayoutRequest
	if err := query.Order("id desc").
		Limit(normalizeLimit(params.Limit, 200)).
		Offset(normalizeOffset(params.Offset)).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.PayoutRequest, 0, len(rows))
	for _, r := range rows {
		out = append(out, payoutFromRow(r))
	}
	return out, nil
}

// --- settings --------------------------------------------------------------

func (s *Store) GetSetting(ctx context.Context, key string) ([]byte, bool, error) {
	if s == nil || s.db == nil {
		return nil, false, nil
	}
	var row models.SystemSetting
	err := s.db.WithContext(ctx).Where("key = ?", strings.TrimSpace(key)).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return []byte(row.Value), true, nil
}

func (s *Store) UpsertSetting(ctx context.Context, key string, value []byte, description string) error {
	if s == nil || s.db == nil {
		return nil
	}
	row := models.SystemSetting{
		Key:         strings.TrimSpace(key),
		Value:       value,
		Description: description,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "description", "updated_at"}),
	}).Create(&row).Error
}

func (s *Store) ListSettings(ctx context.Context) (map[string][]byte, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var rows []models.SystemSetting
	if err := s.db.WithContext(ctx).Order("key asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(rows))
	for _, r := range rows {
		out[r.Key] = []byte(r.Value)
	}
	return out, nil
}

// --- helpers ---------------------------------------------------------------

func translate(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return repository.ErrDuplicate
	}
	return err
}

func applyOrder(query *gorm.DB, orderBy string, asc *bool, fallback string) *gorm.DB {
	column := strings.TrimSpace(orderBy)
	if column == "" {
		column = fallback
	}
	direction := "desc"
	if asc != nil && *asc {
		direction = "asc"
	}
	return query.Order(column + " " + direction)
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 500 {
		return 500
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	seen := map[string]struct{}{}
	for _, raw := range items {
		val := strings.TrimSpace(raw)
		if val == "" {
			continue
		}
		if _, ok := seen[val]; ok {
			continue
		}
		seen[val] = struct{}{}
		out = append(out, val)
	}
	return out
}

var _ repository.Repository = (*Store)(nil)
