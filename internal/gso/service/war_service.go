package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jekmagalaman/gso/internal/gso/entity"
	"github.com/jekmagalaman/gso/internal/gso/repository"
	"github.com/jekmagalaman/gso/internal/shared/textgen"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// WARService derives and maintains work accomplishment reports.
type WARService struct {
	warRepo    *repository.WARRepository
	reqRepo    *repository.RequestRepository
	userRepo   *repository.UserRepository
	unitRepo   *repository.UnitRepository
	indRepo    *repository.IndicatorRepository
	indicators *IndicatorService
	narrator   *Narrator
	logger     *zap.Logger
}

func NewWARService(repos *repository.Repositories, indicators *IndicatorService, narrator *Narrator, logger *zap.Logger) *WARService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WARService{
		warRepo:    repos.WAR,
		reqRepo:    repos.Request,
		userRepo:   repos.User,
		unitRepo:   repos.Unit,
		indRepo:    repos.Indicator,
		indicators: indicators,
		narrator:   narrator,
		logger:     logger,
	}
}

// warDraft is a WAR computed from a request, ready to insert.
type warDraft struct {
	war          *entity.WorkAccomplishmentReport
	personnelIDs []string
}

// draftFromRequest builds the WAR of a request about to complete. It reads
// only and may call the text generator; nothing is written.
func (s *WARService) draftFromRequest(ctx context.Context, req *entity.ServiceRequest) (*warDraft, error) {
	unit, err := s.unitRepo.FindByID(ctx, req.UnitID)
	if err != nil {
		return nil, lookupErr(err, "unit", req.UnitID)
	}

	ids, err := s.reqRepo.AssignedUserIDs(ctx, req.ID)
	if err != nil {
		return nil, fmt.Errorf("load assignments: %w", err)
	}
	users, err := s.userRepo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load personnel: %w", err)
	}
	names := orderedNames(ids, users)

	reports, err := s.reqRepo.ListReports(ctx, req.ID)
	if err != nil {
		return nil, fmt.Errorf("load task reports: %w", err)
	}
	texts := make([]string, 0, len(reports))
	for _, r := range reports {
		texts = append(texts, r.ReportText)
	}

	materials, err := s.reqRepo.ListMaterials(ctx, req.ID)
	if err != nil {
		return nil, fmt.Errorf("load materials: %w", err)
	}
	materialCost := decimal.Zero
	for _, m := range materials {
		if m.Item == nil {
			continue
		}
		materialCost = materialCost.Add(m.Item.UnitCost.Mul(decimal.NewFromInt(int64(m.Quantity))))
	}

	office, err := s.requestingOffice(ctx, req)
	if err != nil {
		return nil, err
	}

	description := s.narrator.WARDescription(ctx, unit.Name, req.Description, texts)
	if textgen.IsSoftFailure(description) {
		s.logger.Warn("war description generation failed",
			zap.String("request_id", req.ID),
			zap.String("result", description))
	}

	started := req.CreatedAt
	if req.StartedAt != nil {
		started = *req.StartedAt
	}

	war := &entity.WorkAccomplishmentReport{
		ID:                   repository.NewID(),
		RequestID:            req.ID,
		UnitID:               req.UnitID,
		RequestingOfficeName: office,
		PersonnelNames:       names,
		ActivityName:         activityName(req),
		Description:          description,
		IndicatorID:          req.SelectedIndicatorID,
		Status:               entity.RequestStatusCompleted,
		DateStarted:          started,
		MaterialCost:         materialCost,
		LaborCost:            decimal.Zero,
		TotalCost:            materialCost,
	}
	return &warDraft{war: war, personnelIDs: ids}, nil
}

// persist inserts a drafted WAR inside tx with the next control number of
// the completion month.
func (s *WARService) persist(ctx context.Context, tx *gorm.DB, d *warDraft, completedAt time.Time) error {
	repo := s.warRepo.WithTx(tx)
	month := completedAt.Format("200601")
	n, err := repo.NextControlNumber(ctx, month)
	if err != nil {
		return fmt.Errorf("next control number: %w", err)
	}
	d.war.ControlNumber = fmt.Sprintf("WAR-%s-%04d", month, n)
	d.war.DateCompleted = completedAt
	if err := repo.Create(ctx, d.war, d.personnelIDs); err != nil {
		return fmt.Errorf("create war: %w", err)
	}
	return nil
}

func (s *WARService) requestingOffice(ctx context.Context, req *entity.ServiceRequest) (string, error) {
	if req.DepartmentID != nil {
		dept, err := s.unitRepo.FindDepartmentByID(ctx, *req.DepartmentID)
		if err == nil {
			return dept.Name, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return "", fmt.Errorf("load department: %w", err)
		}
	}
	if req.CustomFullName != "" {
		return req.CustomFullName, nil
	}
	requestor, err := s.userRepo.FindByID(ctx, req.RequestorID)
	if err != nil {
		return "", lookupErr(err, "requestor", req.RequestorID)
	}
	return requestor.FullName(), nil
}

func orderedNames(ids []string, users []entity.User) []string {
	byID := make(map[string]string, len(users))
	for i := range users {
		byID[users[i].ID] = users[i].FullName()
	}
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if n, ok := byID[id]; ok {
			names = append(names, n)
		}
	}
	return names
}

func activityName(req *entity.ServiceRequest) string {
	if name := strings.TrimSpace(req.ActivityName); name != "" {
		return name
	}
	d := strings.TrimSpace(req.Description)
	if utf8.RuneCountInString(d) <= 255 {
		return d
	}
	return string([]rune(d)[:255])
}

// WARFilter selects WARs. Year and Month bound date_started when both are set.
type WARFilter struct {
	UnitID      string
	PersonnelID string
	IndicatorID string
	Year        int
	Month       int
}

// List returns WARs visible to the actor ordered by start date.
func (s *WARService) List(ctx context.Context, actor Actor, f WARFilter) ([]entity.WorkAccomplishmentReport, error) {
	if err := authorize(actor, ActionViewReports); err != nil {
		return nil, err
	}
	q, err := s.query(actor, f)
	if err != nil {
		return nil, err
	}
	items, err := s.warRepo.List(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list wars: %w", err)
	}
	return items, nil
}

func (s *WARService) query(actor Actor, f WARFilter) (repository.WARQuery, error) {
	q := repository.WARQuery{
		UnitID:      f.UnitID,
		PersonnelID: f.PersonnelID,
		IndicatorID: f.IndicatorID,
	}
	if !isOverseer(actor) {
		q.UnitID = actor.UnitID
	}
	if f.Year != 0 || f.Month != 0 {
		if f.Month < 1 || f.Month > 12 {
			return q, validationErr("month", "must be between 1 and 12")
		}
		if f.Year < 1 {
			return q, validationErr("year", "is required with month")
		}
		from, to := MonthRange(f.Year, f.Month)
		q.From, q.To = &from, &to
	}
	return q, nil
}

func (s *WARService) Get(ctx context.Context, actor Actor, id string) (*entity.WorkAccomplishmentReport, error) {
	if err := authorize(actor, ActionViewReports); err != nil {
		return nil, err
	}
	return s.find(ctx, actor, ActionViewReports, id)
}

func (s *WARService) find(ctx context.Context, actor Actor, action Action, id string) (*entity.WorkAccomplishmentReport, error) {
	war, err := s.warRepo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "war", id)
	}
	if err := requireUnit(actor, action, war.UnitID); err != nil {
		return nil, err
	}
	return war, nil
}

// UpdateWARInput edits a WAR. Nil fields are left alone. IndicatorCode is
// looked up or created in the WAR's unit.
type UpdateWARInput struct {
	Description   *string          `json:"description"`
	IndicatorID   *string          `json:"indicator_id"`
	IndicatorCode *string          `json:"indicator_code"`
	LaborCost     *decimal.Decimal `json:"labor_cost"`
}

func (s *WARService) Update(ctx context.Context, actor Actor, id string, input UpdateWARInput) (*entity.WorkAccomplishmentReport, error) {
	if err := authorize(actor, ActionEditReports); err != nil {
		return nil, err
	}
	war, err := s.find(ctx, actor, ActionEditReports, id)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if input.Description != nil {
		updates["description"] = strings.TrimSpace(*input.Description)
	}
	switch {
	case input.IndicatorID != nil && *input.IndicatorID != "":
		ind, err := s.indRepo.FindByID(ctx, *input.IndicatorID)
		if err != nil {
			return nil, lookupErr(err, "indicator", *input.IndicatorID)
		}
		if ind.UnitID != war.UnitID {
			return nil, validationErr("indicator_id", "indicator belongs to another unit")
		}
		updates["indicator_id"] = ind.ID
	case input.IndicatorCode != nil && strings.TrimSpace(*input.IndicatorCode) != "":
		ind, err := s.indicators.Ensure(ctx, war.UnitID, *input.IndicatorCode, "")
		if err != nil {
			return nil, err
		}
		updates["indicator_id"] = ind.ID
	}
	if input.LaborCost != nil {
		if input.LaborCost.IsNegative() {
			return nil, validationErr("labor_cost", "must not be negative")
		}
		updates["labor_cost"] = *input.LaborCost
		updates["total_cost"] = war.MaterialCost.Add(*input.LaborCost)
	}
	if len(updates) == 0 {
		return war, nil
	}

	if err := s.warRepo.Update(ctx, war.ID, updates); err != nil {
		return nil, fmt.Errorf("update war: %w", err)
	}
	return s.find(ctx, actor, ActionEditReports, id)
}

// RegenerateDescription asks the generator for a new WAR sentence and stores
// the result, soft failures included.
func (s *WARService) RegenerateDescription(ctx context.Context, actor Actor, id string) (*entity.WorkAccomplishmentReport, error) {
	if err := authorize(actor, ActionEditReports); err != nil {
		return nil, err
	}
	war, err := s.find(ctx, actor, ActionEditReports, id)
	if err != nil {
		return nil, err
	}
	req, err := s.reqRepo.FindByID(ctx, war.RequestID)
	if err != nil {
		return nil, lookupErr(err, "request", war.RequestID)
	}
	reports, err := s.reqRepo.ListReports(ctx, req.ID)
	if err != nil {
		return nil, fmt.Errorf("load task reports: %w", err)
	}
	texts := make([]string, 0, len(reports))
	for _, r := range reports {
		texts = append(texts, r.ReportText)
	}
	unitName := ""
	if war.Unit != nil {
		unitName = war.Unit.Name
	}

	text := s.narrator.GenerateWARSummary(ctx, unitName, req.Description, texts)
	if textgen.IsSoftFailure(text) {
		s.logger.Warn("war description regeneration failed", zap.String("war_id", war.ID), zap.String("result", text))
	}
	if err := s.warRepo.Update(ctx, war.ID, map[string]interface{}{"description": text}); err != nil {
		return nil, fmt.Errorf("update war: %w", err)
	}
	return s.find(ctx, actor, ActionEditReports, id)
}
