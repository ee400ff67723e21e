package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jekmagalaman/gso/internal/gso/entity"
	"github.com/jekmagalaman/gso/internal/gso/repository"
	"gorm.io/gorm"
)

// IPMTService aggregates WARs into monthly per-person, per-indicator entries.
type IPMTService struct {
	db         *gorm.DB
	repo       *repository.IPMTRepository
	warRepo    *repository.WARRepository
	userRepo   *repository.UserRepository
	unitRepo   *repository.UnitRepository
	indRepo    *repository.IndicatorRepository
	indicators *IndicatorService
	narrator   *Narrator
}

func NewIPMTService(db *gorm.DB, repos *repository.Repositories, indicators *IndicatorService, narrator *Narrator) *IPMTService {
	return &IPMTService{
		db:         db,
		repo:       repos.IPMT,
		warRepo:    repos.WAR,
		userRepo:   repos.User,
		unitRepo:   repos.Unit,
		indRepo:    repos.Indicator,
		indicators: indicators,
		narrator:   narrator,
	}
}

// PreviewInput selects the people and month to aggregate. Personnel holds
// ids, usernames or names. Regenerate ignores stored narratives.
type PreviewInput struct {
	UnitID     string   `json:"unit_id" validate:"required"`
	Year       int      `json:"year" validate:"required,min=2000,max=9999"`
	Month      int      `json:"month" validate:"required,min=1,max=12"`
	Personnel  []string `json:"personnel" validate:"required,min=1"`
	Regenerate bool     `json:"regenerate"`
}

// IPMTRow is one indicator line of a person's table.
type IPMTRow struct {
	IndicatorID          string   `json:"indicator_id"`
	IndicatorCode        string   `json:"indicator_code"`
	IndicatorDescription string   `json:"indicator_description"`
	Accomplishment       string   `json:"accomplishment"`
	Remarks              string   `json:"remarks"`
	WARIDs               []string `json:"war_ids"`
	Saved                bool     `json:"saved"`
}

// IPMTTable is the preview of one person.
type IPMTTable struct {
	Personnel *entity.User `json:"personnel"`
	Rows      []IPMTRow    `json:"rows"`
}

// IPMTPreview is the preview of a unit and month.
type IPMTPreview struct {
	UnitID string      `json:"unit_id"`
	Month  string      `json:"month"`
	Tables []IPMTTable `json:"tables"`
}

// Preview computes IPMT rows for each person against every active indicator
// of the unit. A stored non-empty narrative is reused unless Regenerate is set.
// Nothing is written.
func (s *IPMTService) Preview(ctx context.Context, actor Actor, input PreviewInput) (*IPMTPreview, error) {
	if err := authorize(actor, ActionViewReports); err != nil {
		return nil, err
	}
	if err := validateStruct(input); err != nil {
		return nil, err
	}
	if err := requireUnit(actor, ActionViewReports, input.UnitID); err != nil {
		return nil, err
	}
	if _, err := s.unitRepo.FindByID(ctx, input.UnitID); err != nil {
		return nil, lookupErr(err, "unit", input.UnitID)
	}

	indicators, err := s.indRepo.ListByUnit(ctx, input.UnitID, true)
	if err != nil {
		return nil, fmt.Errorf("list indicators: %w", err)
	}
	people, err := s.resolveAll(ctx, input.UnitID, input.Personnel)
	if err != nil {
		return nil, err
	}

	from, to := MonthRange(input.Year, input.Month)
	month := MonthKey(input.Year, input.Month)
	preview := &IPMTPreview{UnitID: input.UnitID, Month: month, Tables: make([]IPMTTable, 0, len(people))}

	for _, person := range people {
		table := IPMTTable{Personnel: person, Rows: make([]IPMTRow, 0, len(indicators))}
		for i := range indicators {
			ind := &indicators[i]
			wars, err := s.warRepo.List(ctx, repository.WARQuery{
				UnitID:      input.UnitID,
				PersonnelID: person.ID,
				IndicatorID: ind.ID,
				From:        &from,
				To:          &to,
			})
			if err != nil {
				return nil, fmt.Errorf("list wars: %w", err)
			}

			row := IPMTRow{
				IndicatorID:          ind.ID,
				IndicatorCode:        ind.Code,
				IndicatorDescription: ind.Description,
				WARIDs:               warIDs(wars),
			}

			stored, err := s.repo.FindByKey(ctx, person.ID, input.UnitID, month, ind.ID)
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return nil, fmt.Errorf("load ipmt entry: %w", err)
			}
			if stored != nil && stored.Accomplishment != "" && !input.Regenerate {
				row.Accomplishment = stored.Accomplishment
				row.Remarks = stored.Remarks
				if row.Remarks == "" {
					row.Remarks = DefaultRemarks(stored.Accomplishment)
				}
				if len(stored.Reports) > 0 {
					row.WARIDs = linkedIDs(stored.Reports)
				}
				row.Saved = true
			} else {
				row.Accomplishment = s.narrator.IPMTNarrative(ctx, wars)
				row.Remarks = DefaultRemarks(row.Accomplishment)
				row.Saved = stored != nil
			}
			table.Rows = append(table.Rows, row)
		}
		preview.Tables = append(preview.Tables, table)
	}
	return preview, nil
}

// SaveRowInput is one reviewed row. The indicator is given by id or by code;
// an unknown code creates the indicator.
type SaveRowInput struct {
	IndicatorID    string   `json:"indicator_id"`
	IndicatorCode  string   `json:"indicator_code"`
	Description    string   `json:"description"`
	Accomplishment string   `json:"accomplishment"`
	Remarks        string   `json:"remarks"`
	WARIDs         []string `json:"war_ids"`
}

// SaveInput stores the reviewed table of one person.
type SaveInput struct {
	UnitID    string         `json:"unit_id" validate:"required"`
	Year      int            `json:"year" validate:"required,min=2000,max=9999"`
	Month     int            `json:"month" validate:"required,min=1,max=12"`
	Personnel string         `json:"personnel" validate:"required"`
	Rows      []SaveRowInput `json:"rows" validate:"required,min=1"`
}

// Save upserts one entry per row keyed by (personnel, unit, month, indicator)
// and links exactly the WAR ids supplied.
func (s *IPMTService) Save(ctx context.Context, actor Actor, input SaveInput) ([]entity.IPMTEntry, error) {
	if err := authorize(actor, ActionEditReports); err != nil {
		return nil, err
	}
	if err := validateStruct(input); err != nil {
		return nil, err
	}
	if err := requireUnit(actor, ActionEditReports, input.UnitID); err != nil {
		return nil, err
	}
	if _, err := s.unitRepo.FindByID(ctx, input.UnitID); err != nil {
		return nil, lookupErr(err, "unit", input.UnitID)
	}
	person, err := s.resolve(ctx, input.UnitID, input.Personnel)
	if err != nil {
		return nil, err
	}

	type prepared struct {
		entry  *entity.IPMTEntry
		warIDs []string
	}
	month := MonthKey(input.Year, input.Month)
	rows := make([]prepared, 0, len(input.Rows))
	for _, r := range input.Rows {
		ind, err := s.rowIndicator(ctx, input.UnitID, r)
		if err != nil {
			return nil, err
		}
		ids := dedupe(r.WARIDs)
		if err := s.checkWARs(ctx, input.UnitID, ids); err != nil {
			return nil, err
		}
		accomplishment := strings.TrimSpace(r.Accomplishment)
		remarks := strings.TrimSpace(r.Remarks)
		if remarks == "" {
			remarks = DefaultRemarks(accomplishment)
		}
		rows = append(rows, prepared{
			entry: &entity.IPMTEntry{
				PersonnelID:    person.ID,
				UnitID:         input.UnitID,
				Month:          month,
				IndicatorID:    ind.ID,
				Accomplishment: accomplishment,
				Remarks:        remarks,
			},
			warIDs: ids,
		})
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		for _, p := range rows {
			if err := repo.Upsert(ctx, p.entry); err != nil {
				return fmt.Errorf("save ipmt entry: %w", err)
			}
			if err := repo.ReplaceReports(ctx, p.entry.ID, p.warIDs); err != nil {
				return fmt.Errorf("link wars: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]entity.IPMTEntry, 0, len(rows))
	for _, p := range rows {
		entry, err := s.repo.FindByID(ctx, p.entry.ID)
		if err != nil {
			return nil, lookupErr(err, "ipmt entry", p.entry.ID)
		}
		out = append(out, *entry)
	}
	return out, nil
}

func (s *IPMTService) rowIndicator(ctx context.Context, unitID string, r SaveRowInput) (*entity.SuccessIndicator, error) {
	if r.IndicatorID != "" {
		ind, err := s.indRepo.FindByID(ctx, r.IndicatorID)
		if err != nil {
			return nil, lookupErr(err, "indicator", r.IndicatorID)
		}
		if ind.UnitID != unitID {
			return nil, validationErr("indicator_id", "indicator belongs to another unit")
		}
		return ind, nil
	}
	if strings.TrimSpace(r.IndicatorCode) == "" {
		return nil, validationErr("indicator_code", "indicator_id or indicator_code is required")
	}
	return s.indicators.Ensure(ctx, unitID, r.IndicatorCode, r.Description)
}

func (s *IPMTService) checkWARs(ctx context.Context, unitID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	wars, err := s.warRepo.List(ctx, repository.WARQuery{IDs: ids})
	if err != nil {
		return fmt.Errorf("load wars: %w", err)
	}
	found := make(map[string]*entity.WorkAccomplishmentReport, len(wars))
	for i := range wars {
		found[wars[i].ID] = &wars[i]
	}
	for _, id := range ids {
		w, ok := found[id]
		if !ok {
			return &NotFoundError{Entity: "war", ID: id}
		}
		if w.UnitID != unitID {
			return validationErr("war_ids", "war "+w.ControlNumber+" belongs to another unit")
		}
	}
	return nil
}

// Regenerate recomputes the narrative of a saved entry from its linked WARs,
// or from the month's matching WARs when none are linked, and stores it.
func (s *IPMTService) Regenerate(ctx context.Context, actor Actor, id string) (*entity.IPMTEntry, error) {
	if err := authorize(actor, ActionEditReports); err != nil {
		return nil, err
	}
	entry, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "ipmt entry", id)
	}
	if err := requireUnit(actor, ActionEditReports, entry.UnitID); err != nil {
		return nil, err
	}

	var q repository.WARQuery
	relink := len(entry.Reports) == 0
	if relink {
		start, err := time.Parse("2006-01", entry.Month)
		if err != nil {
			return nil, fmt.Errorf("parse month %q: %w", entry.Month, err)
		}
		end := start.AddDate(0, 1, 0)
		q = repository.WARQuery{
			UnitID:      entry.UnitID,
			PersonnelID: entry.PersonnelID,
			IndicatorID: entry.IndicatorID,
			From:        &start,
			To:          &end,
		}
	} else {
		q = repository.WARQuery{IDs: linkedIDs(entry.Reports)}
	}
	wars, err := s.warRepo.List(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list wars: %w", err)
	}

	narrative := s.narrator.IPMTNarrative(ctx, wars)
	remarks := DefaultRemarks(narrative)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.UpdateAccomplishment(ctx, entry.ID, narrative, remarks); err != nil {
			return fmt.Errorf("update ipmt entry: %w", err)
		}
		if relink {
			return repo.ReplaceReports(ctx, entry.ID, warIDs(wars))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.FindByID(ctx, entry.ID)
	if err != nil {
		return nil, lookupErr(err, "ipmt entry", entry.ID)
	}
	return updated, nil
}

// Entries returns the saved entries of one person for a month.
func (s *IPMTService) Entries(ctx context.Context, actor Actor, unitID, personnel string, year, month int) (*entity.User, []entity.IPMTEntry, error) {
	if err := authorize(actor, ActionViewReports); err != nil {
		return nil, nil, err
	}
	if month < 1 || month > 12 {
		return nil, nil, validationErr("month", "must be between 1 and 12")
	}
	if unitID == "" {
		return nil, nil, validationErr("unit_id", "is required")
	}
	if err := requireUnit(actor, ActionViewReports, unitID); err != nil {
		return nil, nil, err
	}
	person, err := s.resolve(ctx, unitID, personnel)
	if err != nil {
		return nil, nil, err
	}
	entries, err := s.repo.ListByMonth(ctx, person.ID, unitID, MonthKey(year, month))
	if err != nil {
		return nil, nil, fmt.Errorf("list ipmt entries: %w", err)
	}
	return person, entries, nil
}

// resolve finds unit personnel by id, username or name.
func (s *IPMTService) resolve(ctx context.Context, unitID, ident string) (*entity.User, error) {
	ident = strings.TrimSpace(ident)
	if ident == "" {
		return nil, validationErr("personnel", "is required")
	}
	if u, err := s.userRepo.FindByID(ctx, ident); err == nil && u.Role == entity.RolePersonnel && u.InUnit(unitID) {
		return u, nil
	}
	u, err := s.userRepo.FindByIdentifier(ctx, unitID, ident)
	if err != nil {
		return nil, lookupErr(err, "personnel", ident)
	}
	return u, nil
}

func (s *IPMTService) resolveAll(ctx context.Context, unitID string, idents []string) ([]*entity.User, error) {
	out := make([]*entity.User, 0, len(idents))
	seen := make(map[string]bool, len(idents))
	for _, ident := range idents {
		u, err := s.resolve(ctx, unitID, ident)
		if err != nil {
			return nil, err
		}
		if seen[u.ID] {
			continue
		}
		seen[u.ID] = true
		out = append(out, u)
	}
	return out, nil
}

func warIDs(wars []entity.WorkAccomplishmentReport) []string {
	ids := make([]string, 0, len(wars))
	for i := range wars {
		ids = append(ids, wars[i].ID)
	}
	return ids
}

func linkedIDs(links []entity.IPMTReport) []string {
	ids := make([]string, 0, len(links))
	for _, l := range links {
		ids = append(ids, l.WARID)
	}
	return ids
}
