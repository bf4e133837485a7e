package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"propdesk/internal/domain"
	"propdesk/internal/repository"
)

// PlanService manages plan versions. Plans are never edited in place;
// RevisePlan retires the previous version and creates the next one.
type PlanService struct {
	Repo   repository.Repository
	Logger *zap.Logger
}

func (s *PlanService) CreatePlan(ctx context.Context, p domain.Plan) (*domain.Plan, error) {
	p.ID = 0
	p.SupersedesID = 0
	p.Version = 1
	p.Active = true
	p.Name = strings.TrimSpace(p.Name)
	p.ApplyDefaults()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := s.checkFundedPlan(ctx, "create_plan", p); err != nil {
		return nil, err
	}
	if err := s.Repo.CreatePlan(ctx, &p); err != nil {
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.Info("plan created", zap.Uint64("plan_id", p.ID), zap.String("name", p.Name))
	}
	return &p, nil
}

// RevisePlan creates version N+1 of an active plan. Accounts bound to the
// previous version keep evaluating against it.
func (s *PlanService) RevisePlan(ctx context.Context, id uint64, next domain.Plan) (*domain.Plan, error) {
	const op = "revise_plan"
	prev, err := s.Repo.GetPlan(ctx, id)
	if err != nil {
		return nil, err
	}
	if prev == nil {
		return nil, domain.NotFound(op, "plan", id)
	}
	if !prev.Active {
		return nil, domain.Validation(op, "plan %d was already superseded", id)
	}
	next.ID = 0
	next.Name = strings.TrimSpace(next.Name)
	if next.Name == "" {
		next.Name = prev.Name
	}
	if next.Type == "" {
		next.Type = prev.Type
	}
	next.Version = prev.Version + 1
	next.SupersedesID = prev.ID
	next.Active = true
	next.ApplyDefaults()
	if err := next.Validate(); err != nil {
		return nil, err
	}
	if err := s.checkFundedPlan(ctx, op, next); err != nil {
		return nil, err
	}
	if err := s.Repo.RevisePlan(ctx, prev.ID, &next); err != nil {
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.Info("plan revised",
			zap.Uint64("previous_id", prev.ID),
			zap.Uint64("plan_id", next.ID),
			zap.Int("version", next.Version),
		)
	}
	return &next, nil
}

func (s *PlanService) GetPlan(ctx context.Context, id uint64) (*domain.Plan, error) {
	p, err := s.Repo.GetPlan(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domain.NotFound("get_plan", "plan", id)
	}
	return p, nil
}

func (s *PlanService) ListPlans(ctx context.Context, activeOnly bool) ([]domain.Plan, error) {
	return s.Repo.ListPlans(ctx, activeOnly)
}

func (s *PlanService) checkFundedPlan(ctx context.Context, op string, p domain.Plan) error {
	if p.FundedPlanID == 0 {
		return nil
	}
	if p.Type == domain.PlanFunded {
		return domain.Validation(op, "funded plans cannot name a funded plan")
	}
	funded, err := s.Repo.GetPlan(ctx, p.FundedPlanID)
	if err != nil {
		return err
	}
	if funded == nil {
		return domain.NotFound(op, "plan", p.FundedPlanID)
	}
	if funded.Type != domain.PlanFunded {
		return domain.Validation(op, "plan %d is not a funded plan", funded.ID)
	}
	return nil
}
