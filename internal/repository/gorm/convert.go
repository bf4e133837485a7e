package gormrepository

import (
	"encoding/json"

	"gorm.io/datatypes"

	"propdesk/internal/domain"
	"propdesk/internal/models"
	"propdesk/internal/money"
)

func planRow(p *domain.Plan) models.Plan {
	return models.Plan{
		ID:                   p.ID,
		Name:                 p.Name,
		Description:          p.Description,
		Version:              p.Version,
		SupersedesID:         optionalID(p.SupersedesID),
		Type:                 string(p.Type),
		StartingBalanceCents: int64(p.StartingBalance),
		PriceCents:           int64(p.Price),
		MaxDailyLossCents:    int64(p.MaxDailyLoss),
		MaxTotalLossCents:    int64(p.MaxTotalLoss),
		ProfitTargetCents:    int64(p.ProfitTarget),
		MinTradingDays:       p.MinTradingDays,
		MaxPositionSizeBps:   int64(p.MaxPositionSize),
		ProfitSplitBps:       int64(p.ProfitSplit),
		FundedPlanID:         optionalID(p.FundedPlanID),
		Active:               p.Active,
		CreatedAt:            p.CreatedAt,
	}
}

func planFromRow(r models.Plan) domain.Plan {
	return domain.Plan{
		ID:              r.ID,
		Name:            r.Name,
		Description:     r.Description,
		Version:         r.Version,
		SupersedesID:    derefID(r.SupersedesID),
		Type:            domain.PlanType(r.Type),
		StartingBalance: money.Cents(r.StartingBalanceCents),
		Price:           money.Cents(r.PriceCents),
		MaxDailyLoss:    money.Cents(r.MaxDailyLossCents),
		MaxTotalLoss:    money.Cents(r.MaxTotalLossCents),
		ProfitTarget:    money.Cents(r.ProfitTargetCents),
		MinTradingDays:  r.MinTradingDays,
		MaxPositionSize: money.BasisPoints(r.MaxPositionSizeBps),
		ProfitSplit:     money.BasisPoints(r.ProfitSplitBps),
		FundedPlanID:    derefID(r.FundedPlanID),
		Active:          r.Active,
		CreatedAt:       r.CreatedAt,
	}
}

func accountRow(a *domain.Account) models.Account {
	days := make(datatypes.JSONSlice[string], 0, len(a.TradingDays))
	for _, d := range a.TradingDays {
		days = append(days, string(d))
	}
	return models.Account{
		ID:                   a.ID,
		AccountNumber:        a.AccountNumber,
		PlanID:               a.PlanID,
		State:                string(a.State),
		StartingBalanceCents: int64(a.StartingBalance),
		CurrentBalanceCents:  int64(a.CurrentBalance),
		HighWaterMarkCents:   int64(a.HighWaterMark),
		DayOpenBalanceCents:  int64(a.DayOpenBalance),
		DailyLossCents:       int64(a.DailyLoss),
		TotalLossCents:       int64(a.TotalLoss),
		ProfitEarnedCents:    int64(a.ProfitEarned),
		PayoutBaselineCents:  int64(a.PayoutBaseline),
		TotalPaidOutCents:    int64(a.TotalPaidOut),
		TradingDay:           string(a.TradingDay),
		TradingDays:          days,
		StaleMarks:           a.StaleMarks,
		FailureReason:        a.FailureReason,
		ClosureReason:        a.ClosureReason,
		LastEvaluatedAt:      a.LastEvaluatedAt,
		ActivatedAt:          a.ActivatedAt,
		PassedAt:             a.PassedAt,
		FundedAt:             a.FundedAt,
		FailedAt:             a.FailedAt,
		ClosedAt:             a.ClosedAt,
		Version:              a.Version,
		CreatedAt:            a.CreatedAt,
		UpdatedAt:            a.UpdatedAt,
	}
}

func accountFromRow(r models.Account) domain.Account {
	days := make([]domain.Day, 0, len(r.TradingDays))
	for _, d := range r.TradingDays {
		days = append(days, domain.Day(d))
	}
	return domain.Account{
		ID:              r.ID,
		AccountNumber:   r.AccountNumber,
		PlanID:          r.PlanID,
		State:           domain.State(r.State),
		StartingBalance: money.Cents(r.StartingBalanceCents),
		CurrentBalance:  money.Cents(r.CurrentBalanceCents),
		HighWaterMark:   money.Cents(r.HighWaterMarkCents),
		DayOpenBalance:  money.Cents(r.DayOpenBalanceCents),
		TradingDay:      domain.Day(r.TradingDay),
		DailyLoss:       money.Cents(r.DailyLossCents),
		TotalLoss:       money.Cents(r.TotalLossCents),
		ProfitEarned:    money.Cents(r.ProfitEarnedCents),
		PayoutBaseline:  money.Cents(r.PayoutBaselineCents),
		TotalPaidOut:    money.Cents(r.TotalPaidOutCents),
		TradingDays:     days,
		StaleMarks:      r.StaleMarks,
		FailureReason:   r.FailureReason,
		ClosureReason:   r.ClosureReason,
		LastEvaluatedAt: r.LastEvaluatedAt,
		ActivatedAt:     r.ActivatedAt,
		PassedAt:        r.PassedAt,
		FundedAt:        r.FundedAt,
		FailedAt:        r.FailedAt,
		ClosedAt:        r.ClosedAt,
		Version:         r.Version,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func tradeFromRow(r models.Trade) domain.Trade {
	t := domain.Trade{
		ID:         r.ID,
		AccountID:  r.AccountID,
		AssetID:    r.AssetID,
		Direction:  domain.Direction(r.Direction),
		Quantity:   r.Quantity,
		EntryPrice: r.EntryPrice,
		ExitPrice:  r.ExitPrice,
		LastPrice:  r.LastPrice,
		Commission: money.Cents(r.CommissionCents),
		Status:     domain.TradeStatus(r.Status),
		OpenedAt:   r.OpenedAt,
		ClosedAt:   r.ClosedAt,
	}
	if r.RealizedPnLCents != nil {
		pnl := money.Cents(*r.RealizedPnLCents)
		t.RealizedPnL = &pnl
	}
	return t
}

func violationRow(v *domain.Violation) models.Violation {
	return models.Violation{
		ID:             v.ID,
		AccountID:      v.AccountID,
		Type:           string(v.Type),
		TradingDay:     string(v.TradingDay),
		Severity:       string(v.Severity),
		ThresholdCents: int64(v.Threshold),
		ActualCents:    int64(v.Actual),
		TradeID:        v.TradeID,
		Description:    v.Description,
		Resolved:       v.Resolved,
		ResolvedAt:     v.ResolvedAt,
		CreatedAt:      v.CreatedAt,
	}
}

func violationFromRow(r models.Violation) domain.Violation {
	return domain.Violation{
		ID:          r.ID,
		AccountID:   r.AccountID,
		Type:        domain.ViolationType(r.Type),
		Severity:    domain.Severity(r.Severity),
		Threshold:   money.Cents(r.ThresholdCents),
		Actual:      money.Cents(r.ActualCents),
		TradingDay:  domain.Day(r.TradingDay),
		TradeID:     r.TradeID,
		Description: r.Description,
		Resolved:    r.Resolved,
		ResolvedAt:  r.ResolvedAt,
		CreatedAt:   r.CreatedAt,
	}
}

func activityRow(a *domain.Activity) (models.AccountActivity, error) {
	row := models.AccountActivity{
		ID:          a.ID,
		Seq:         a.Seq,
		AccountID:   a.AccountID,
		Type:        string(a.Type),
		Description: a.Description,
		CreatedAt:   a.CreatedAt,
	}
	if len(a.Metadata) > 0 {
		b, err := json.Marshal(a.Metadata)
		if err != nil {
			return row, err
		}
		row.Metadata = datatypes.JSON(b)
	}
	if a.DedupKey != "" {
		key := a.DedupKey
		row.DedupKey = &key
	}
	return row, nil
}

func activityFromRow(r models.AccountActivity) domain.Activity {
	a := domain.Activity{
		ID:          r.ID,
		Seq:         r.Seq,
		AccountID:   r.AccountID,
		Type:        domain.ActivityType(r.Type),
		Description: r.Description,
		CreatedAt:   r.CreatedAt,
	}
	if len(r.Metadata) > 0 {
		_ = json.Unmarshal(r.Metadata, &a.Metadata)
	}
	if r.DedupKey != nil {
		a.DedupKey = *r.DedupKey
	}
	return a
}

func payoutRow(p *domain.PayoutRequest) (models.PayoutRequest, error) {
	row := models.PayoutRequest{
		ID:                p.ID,
		Reference:         p.Reference,
		AccountID:         p.AccountID,
		AmountCents:       int64(p.Amount),
		ProfitEarnedCents: int64(p.ProfitEarned),
		ProfitSplitBps:    int64(p.ProfitSplit),
		Method:            p.Method,
		Status:            string(p.Status),
		Notes:             p.Notes,
		RequestedAt:       p.RequestedAt,
		ApprovedAt:        p.ApprovedAt,
		CompletedAt:       p.CompletedAt,
		RejectedAt:        p.RejectedAt,
	}
	if len(p.Details) > 0 {
		b, err := json.Marshal(p.Details)
		if err != nil {
			return row, err
		}
		row.Details = datatypes.JSON(b)
	}
	return row, nil
}

func payoutFromRow(r models.PayoutRequest) domain.PayoutRequest {
	p := domain.PayoutRequest{
		ID:           r.ID,
		Reference:    r.Reference,
		AccountID:    r.AccountID,
		Amount:       money.Cents(r.AmountCents),
		ProfitEarned: money.Cents(r.ProfitEarnedCents),
		ProfitSplit:  money.BasisPoints(r.ProfitSplitBps),
		Method:       r.Method,
		Status:       domain.PayoutStatus(r.Status),
		Notes:        r.Notes,
		RequestedAt:  r.RequestedAt,
		ApprovedAt:   r.ApprovedAt,
		CompletedAt:  r.CompletedAt,
		RejectedAt:   r.RejectedAt,
	}
	if len(r.Details) > 0 {
		_ = json.Unmarshal(r.Details, &p.Details)
	}
	return p
}

func optionalID(id uint64) *uint64 {
	if id == 0 {
		return nil
	}
	return &id
}

func derefID(id *uint64) uint64 {
	if id == nil {
		return 0
	}
	return *id
}
