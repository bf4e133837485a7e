package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"propdesk/internal/domain"
)

// ErrVersionConflict is returned by SaveAccount when the stored version no
// longer matches the expected one.
var ErrVersionConflict = errors.New("account version conflict")

// ErrDuplicate is returned when a uniqueness rule (one unresolved violation
// per account, type and day; one outstanding payout per account) would break.
var ErrDuplicate = errors.New("duplicate row")

// Tx is the set of writes that must commit together with an account save.
// Lookups that return nothing yield (nil, nil).
type Tx interface {
	GetAccount(ctx context.Context, id uint64) (*domain.Account, error)
	SaveAccount(ctx context.Context, item *domain.Account, expectedVersion int64) error

	FindUnresolvedViolation(ctx context.Context, accountID uint64, typ domain.ViolationType, day domain.Day) (*domain.Violation, error)
	InsertViolation(ctx context.Context, item *domain.Violation) error
	ResolveViolationsBefore(ctx context.Context, accountID uint64, typ domain.ViolationType, day domain.Day, at time.Time) ([]domain.Violation, error)
	CountUnresolvedViolations(ctx context.Context, accountID uint64, types []domain.ViolationType) (int64, error)

	// AppendActivity returns false when an entry with the same DedupKey exists.
	AppendActivity(ctx context.Context, item *domain.Activity) (bool, error)

	GetOutstandingPayout(ctx context.Context, accountID uint64) (*domain.PayoutRequest, error)
	GetPayout(ctx context.Context, id uint64) (*domain.PayoutRequest, error)
	InsertPayout(ctx context.Context, item *domain.PayoutRequest) error
	UpdatePayout(ctx context.Context, item *domain.PayoutRequest) error
}

// TradeLedger supplies the trades of an account. The engine never writes them.
type TradeLedger interface {
	ListTrades(ctx context.Context, accountID uint64) ([]domain.Trade, error)
}

// PriceBook stores the last trade price per asset.
type PriceBook interface {
	LastAssetPrice(ctx context.Context, assetID string) (decimal.Decimal, time.Time, bool, error)
	UpsertAssetPrice(ctx context.Context, assetID string, price decimal.Decimal, at time.Time, source string) error
	ListOpenAssets(ctx context.Context) ([]string, error)
}

type Repository interface {
	Tx
	TradeLedger
	PriceBook

	InTx(ctx context.Context, fn func(tx Tx) error) error

	CreatePlan(ctx context.Context, item *domain.Plan) error
	GetPlan(ctx context.Context, id uint64) (*domain.Plan, error)
	ListPlans(ctx context.Context, activeOnly bool) ([]domain.Plan, error)
	// RevisePlan deactivates previous and inserts next as its successor.
	RevisePlan(ctx context.Context, previousID uint64, next *domain.Plan) error

	CreateAccount(ctx context.Context, item *domain.Account) error
	GetAccountByNumber(ctx context.Context, number string) (*domain.Account, error)
	ListAccounts(ctx context.Context, params ListAccountsParams) ([]domain.Account, error)
	CountAccounts(ctx context.Context, params ListAccountsParams) (int64, error)
	ListAccountIDsByStates(ctx context.Context, states []domain.State) ([]uint64, error)

	ListViolations(ctx context.Context, params ListViolationsParams) ([]domain.Violation, error)
	ListActivities(ctx context.Context, params ListActivitiesParams) ([]domain.Activity, error)
	ListPayouts(ctx context.Context, params ListPayoutsParams) ([]domain.PayoutRequest, error)

	GetSetting(ctx context.Context, key string) ([]byte, bool, error)
	UpsertSetting(ctx context.Context, key string, value []byte, description string) error
	ListSettings(ctx context.Context) (map[string][]byte, error)
}

type ListAccountsParams struct {
	Limit   int
	Offset  int
	State   *domain.State
	PlanID  *uint64
	OrderBy string
	Asc     *bool
}

type ListViolationsParams struct {
	AccountID  uint64
	Type       *domain.ViolationType
	Unresolved bool
	Limit      int
	Offset     int
}

type ListActivitiesParams struct {
	AccountID uint64
	Type      *domain.ActivityType
	Limit     int
	Offset    int
}

type ListPayoutsParams struct {
	AccountID uint64
	Status    *domain.PayoutStatus
	Limit     int
	Offset    int
}
