package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jekmagalaman/gso/internal/gso/entity"
	"github.com/jekmagalaman/gso/internal/gso/repository"
)

// IndicatorService manages success indicators.
type IndicatorService struct {
	repo     *repository.IndicatorRepository
	unitRepo *repository.UnitRepository
}

func NewIndicatorService(repo *repository.IndicatorRepository, unitRepo *repository.UnitRepository) *IndicatorService {
	return &IndicatorService{repo: repo, unitRepo: unitRepo}
}

// Ensure returns the unit's indicator with code, creating it when missing.
func (s *IndicatorService) Ensure(ctx context.Context, unitID, code, description string) (*entity.SuccessIndicator, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, validationErr("indicator_code", "is required")
	}
	ind, err := s.repo.FindByCode(ctx, unitID, code)
	if err == nil {
		return ind, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("find indicator: %w", err)
	}

	ind = &entity.SuccessIndicator{
		UnitID:      unitID,
		Code:        code,
		Description: strings.TrimSpace(description),
		IsActive:    true,
	}
	if err := s.repo.Create(ctx, ind); err != nil {
		// lost a race on the unique (unit, code) index
		if existing, ferr := s.repo.FindByCode(ctx, unitID, code); ferr == nil {
			return existing, nil
		}
		return nil, fmt.Errorf("create indicator: %w", err)
	}
	return ind, nil
}

// List returns the indicators of unitID, or of the actor's unit when empty.
func (s *IndicatorService) List(ctx context.Context, actor Actor, unitID string, activeOnly bool) ([]entity.SuccessIndicator, error) {
	if err := authorize(actor, ActionViewRequest); err != nil {
		return nil, err
	}
	if unitID == "" {
		unitID = actor.UnitID
	}
	if unitID == "" {
		return nil, validationErr("unit_id", "is required")
	}
	items, err := s.repo.ListByUnit(ctx, unitID, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list indicators: %w", err)
	}
	return items, nil
}

// CreateIndicatorInput defines a new indicator.
type CreateIndicatorInput struct {
	UnitID      string `json:"unit_id" validate:"required"`
	Code        string `json:"code" validate:"required,max=50"`
	Description string `json:"description"`
}

func (s *IndicatorService) Create(ctx context.Context, actor Actor, input CreateIndicatorInput) (*entity.SuccessIndicator, error) {
	if err := authorize(actor, ActionManageIndicators); err != nil {
		return nil, err
	}
	input.Code = strings.TrimSpace(input.Code)
	if err := validateStruct(input); err != nil {
		return nil, err
	}
	if err := requireUnit(actor, ActionManageIndicators, input.UnitID); err != nil {
		return nil, err
	}
	if _, err := s.unitRepo.FindByID(ctx, input.UnitID); err != nil {
		return nil, lookupErr(err, "unit", input.UnitID)
	}
	if _, err := s.repo.FindByCode(ctx, input.UnitID, input.Code); err == nil {
		return nil, validationErr("code", "already exists in this unit")
	}

	ind := &entity.SuccessIndicator{
		UnitID:      input.UnitID,
		Code:        input.Code,
		Description: strings.TrimSpace(input.Description),
		IsActive:    true,
	}
	if err := s.repo.Create(ctx, ind); err != nil {
		return nil, fmt.Errorf("create indicator: %w", err)
	}
	return ind, nil
}

// Deactivate hides an indicator from IPMT aggregation. Existing WARs keep it.
func (s *IndicatorService) Deactivate(ctx context.Context, actor Actor, id string) error {
	if err := authorize(actor, ActionManageIndicators); err != nil {
		return err
	}
	ind, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return lookupErr(err, "indicator", id)
	}
	if err := requireUnit(actor, ActionManageIndicators, ind.UnitID); err != nil {
		return err
	}
	if err := s.repo.SetActive(ctx, id, false); err != nil {
		return fmt.Errorf("deactivate indicator: %w", err)
	}
	return nil
}
