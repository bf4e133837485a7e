package domain

import (
	"strings"
	"time"

	"propdesk/internal/money"
)

type PlanType string

const (
	PlanEvaluation PlanType = "EVALUATION"
	PlanFunded     PlanType = "FUNDED"
)

const (
	DefaultMinTradingDays  = 5
	DefaultMaxPositionSize = money.BasisPoints(10000)
	DefaultProfitSplit     = money.BasisPoints(8000)
)

// Plan is an immutable set of rule thresholds. Changing a plan means creating
// a new version; accounts keep the version they were bound to.
type Plan struct {
	ID              uint64
	Name            string
	Description     string
	Version         int
	SupersedesID    uint64
	Type            PlanType
	StartingBalance money.Cents
	Price           money.Cents
	MaxDailyLoss    money.Cents
	MaxTotalLoss    money.Cents
	// ProfitTarget of zero means the plan has no target.
	ProfitTarget    money.Cents
	MinTradingDays  int
	MaxPositionSize money.BasisPoints
	ProfitSplit     money.BasisPoints
	FundedPlanID    uint64
	Active          bool
	CreatedAt       time.Time
}

func (p *Plan) ApplyDefaults() {
	if p.Type == "" {
		p.Type = PlanEvaluation
	}
	if p.MinTradingDays == 0 {
		p.MinTradingDays = DefaultMinTradingDays
	}
	if p.MaxPositionSize == 0 {
		p.MaxPositionSize = DefaultMaxPositionSize
	}
	if p.ProfitSplit == 0 {
		p.ProfitSplit = DefaultProfitSplit
	}
	if p.Version == 0 {
		p.Version = 1
	}
}

func (p Plan) Validate() error {
	const op = "plan.validate"
	switch {
	case strings.TrimSpace(p.Name) == "":
		return Validation(op, "name is required")
	case p.Type != PlanEvaluation && p.Type != PlanFunded:
		return Validation(op, "unknown plan type %q", p.Type)
	case p.StartingBalance <= 0:
		return Validation(op, "starting balance must be positive")
	case p.Price < 0:
		return Validation(op, "price must not be negative")
	case p.MaxDailyLoss <= 0:
		return Validation(op, "max daily loss must be positive")
	case p.MaxTotalLoss <= 0:
		return Validation(op, "max total loss must be positive")
	case p.MaxDailyLoss > p.MaxTotalLoss:
		return Validation(op, "max daily loss %s exceeds max total loss %s", p.MaxDailyLoss, p.MaxTotalLoss)
	case p.ProfitTarget < 0:
		return Validation(op, "profit target must not be negative")
	case p.MinTradingDays < 0:
		return Validation(op, "min trading days must not be negative")
	case p.MaxPositionSize <= 0 || p.MaxPositionSize > 100*10000:
		return Validation(op, "max position size %s%% out of range", p.MaxPositionSize)
	case p.ProfitSplit < 0 || p.ProfitSplit > 10000:
		return Validation(op, "profit split %s%% out of range", p.ProfitSplit)
	}
	return nil
}
