package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jekmagalaman/gso/internal/gso/entity"
	"github.com/jekmagalaman/gso/internal/gso/repository"
)

// AccountService manages users, units and departments.
type AccountService struct {
	userRepo *repository.UserRepository
	unitRepo *repository.UnitRepository
}

func NewAccountService(userRepo *repository.UserRepository, unitRepo *repository.UnitRepository) *AccountService {
	return &AccountService{userRepo: userRepo, unitRepo: unitRepo}
}

// CreateUserInput defines a new account.
type CreateUserInput struct {
	Username         string `json:"username" validate:"required,min=3,max=64"`
	Password         string `json:"password" validate:"required,min=8"`
	FirstName        string `json:"first_name" validate:"max=64"`
	LastName         string `json:"last_name" validate:"max=64"`
	Email            string `json:"email" validate:"omitempty,email"`
	Role             string `json:"role" validate:"required,oneof=requestor personnel unit_head gso director"`
	UnitID           string `json:"unit_id"`
	DepartmentID     string `json:"department_id"`
	EmploymentStatus string `json:"employment_status" validate:"max=50"`
	Position         string `json:"position" validate:"max=100"`
}

func (s *AccountService) CreateUser(ctx context.Context, actor Actor, input CreateUserInput) (*entity.User, error) {
	if err := authorize(actor, ActionManageAccounts); err != nil {
		return nil, err
	}
	input.Username = strings.TrimSpace(input.Username)
	if err := validateStruct(input); err != nil {
		return nil, err
	}
	role := entity.Role(input.Role)
	if (role == entity.RolePersonnel || role == entity.RoleUnitHead) && input.UnitID == "" {
		return nil, validationErr("unit_id", "is required for "+input.Role)
	}
	if _, err := s.userRepo.FindByUsername(ctx, input.Username); err == nil {
		return nil, validationErr("username", "is already taken")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("check username: %w", err)
	}

	user := &entity.User{
		Username:         input.Username,
		FirstName:        strings.TrimSpace(input.FirstName),
		LastName:         strings.TrimSpace(input.LastName),
		Email:            strings.TrimSpace(input.Email),
		Role:             role,
		EmploymentStatus: input.EmploymentStatus,
		Position:         input.Position,
		IsActive:         true,
	}
	if input.UnitID != "" {
		if _, err := s.unitRepo.FindByID(ctx, input.UnitID); err != nil {
			return nil, lookupErr(err, "unit", input.UnitID)
		}
		user.UnitID = &input.UnitID
	}
	if input.DepartmentID != "" {
		if _, err := s.unitRepo.FindDepartmentByID(ctx, input.DepartmentID); err != nil {
			return nil, lookupErr(err, "department", input.DepartmentID)
		}
		user.DepartmentID = &input.DepartmentID
	}

	hash, err := HashPassword(input.Password)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = hash

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func (s *AccountService) ListUsers(ctx context.Context, actor Actor, q repository.UserQuery) ([]entity.User, error) {
	if err := authorize(actor, ActionViewPersonnel); err != nil {
		return nil, err
	}
	if !isOverseer(actor) {
		q.UnitID = actor.UnitID
	}
	users, err := s.userRepo.List(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// AvailablePersonnel lists unit personnel with no Pending, Approved or
// In Progress assignment.
func (s *AccountService) AvailablePersonnel(ctx context.Context, actor Actor, unitID string) ([]entity.User, error) {
	if err := authorize(actor, ActionViewPersonnel); err != nil {
		return nil, err
	}
	if unitID == "" {
		unitID = actor.UnitID
	}
	if err := requireUnit(actor, ActionViewPersonnel, unitID); err != nil {
		return nil, err
	}
	users, err := s.userRepo.FindAvailablePersonnel(ctx, unitID, activeStatuses)
	if err != nil {
		return nil, fmt.Errorf("list available personnel: %w", err)
	}
	return users, nil
}

func (s *AccountService) ListUnits(ctx context.Context) ([]entity.Unit, error) {
	units, err := s.unitRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list units: %w", err)
	}
	return units, nil
}

func (s *AccountService) CreateUnit(ctx context.Context, actor Actor, name string) (*entity.Unit, error) {
	if err := authorize(actor, ActionManageAccounts); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationErr("name", "is required")
	}
	unit := &entity.Unit{Name: name}
	if err := s.unitRepo.Create(ctx, unit); err != nil {
		return nil, fmt.Errorf("create unit: %w", err)
	}
	return unit, nil
}

func (s *AccountService) ListDepartments(ctx context.Context) ([]entity.Department, error) {
	depts, err := s.unitRepo.ListDepartments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	return depts, nil
}

func (s *AccountService) CreateDepartment(ctx context.Context, actor Actor, name string) (*entity.Department, error) {
	if err := authorize(actor, ActionManageAccounts); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationErr("name", "is required")
	}
	dept := &entity.Department{Name: name}
	if err := s.unitRepo.CreateDepartment(ctx, dept); err != nil {
		return nil, fmt.Errorf("create department: %w", err)
	}
	return dept, nil
}
