package repository

import (
	"context"
	"time"

	"github.com/jekmagalaman/gso/internal/gso/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// IndicatorRepository owns success indicators.
type IndicatorRepository struct {
	db *gorm.DB
}

func NewIndicatorRepository(db *gorm.DB) *IndicatorRepository {
	return &IndicatorRepository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *IndicatorRepository) WithTx(tx *gorm.DB) *IndicatorRepository {
	return &IndicatorRepository{db: tx}
}

func (r *IndicatorRepository) Create(ctx context.Context, ind *entity.SuccessIndicator) error {
	if ind.ID == "" {
		ind.ID = NewID()
	}
	return r.db.WithContext(ctx).Create(ind).Error
}

func (r *IndicatorRepository) FindByID(ctx context.Context, id string) (*entity.SuccessIndicator, error) {
	var ind entity.SuccessIndicator
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&ind).Error; err != nil {
		return nil, notFound(err)
	}
	return &ind, nil
}

func (r *IndicatorRepository) FindByCode(ctx context.Context, unitID, code string) (*entity.SuccessIndicator, error) {
	var ind entity.SuccessIndicator
	err := r.db.WithContext(ctx).
		Where("unit_id = ? AND code = ?", unitID, code).
		First(&ind).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &ind, nil
}

func (r *IndicatorRepository) ListByUnit(ctx context.Context, unitID string, activeOnly bool) ([]entity.SuccessIndicator, error) {
	var items []entity.SuccessIndicator
	query := r.db.WithContext(ctx).Where("unit_id = ?", unitID)
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	err := query.Order("code ASC").Find(&items).Error
	return items, err
}

func (r *IndicatorRepository) SetActive(ctx context.Context, id string, active bool) error {
	return r.db.WithContext(ctx).
		Model(&entity.SuccessIndicator{}).
		Where("id = ?", id).
		Update("is_active", active).Error
}

// WARRepository owns work accomplishment reports.
type WARRepository struct {
	db *gorm.DB
}

func NewWARRepository(db *gorm.DB) *WARRepository {
	return &WARRepository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *WARRepository) WithTx(tx *gorm.DB) *WARRepository {
	return &WARRepository{db: tx}
}

// Create inserts the WAR and its personnel snapshot.
func (r *WARRepository) Create(ctx context.Context, war *entity.WorkAccomplishmentReport, personnelIDs []string) error {
	if war.ID == "" {
		war.ID = NewID()
	}
	db := r.db.WithContext(ctx)
	if err := db.Omit("Personnel", "Unit", "Indicator").Create(war).Error; err != nil {
		return err
	}
	if len(personnelIDs) == 0 {
		return nil
	}
	rows := make([]entity.WARPersonnel, 0, len(personnelIDs))
	for _, uid := range personnelIDs {
		rows = append(rows, entity.WARPersonnel{WARID: war.ID, UserID: uid})
	}
	return db.Create(&rows).Error
}

func (r *WARRepository) FindByID(ctx context.Context, id string) (*entity.WorkAccomplishmentReport, error) {
	var war entity.WorkAccomplishmentReport
	err := r.db.WithContext(ctx).
		Preload("Unit").
		Preload("Indicator").
		Preload("Personnel").
		Where("id = ?", id).
		First(&war).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &war, nil
}

func (r *WARRepository) FindByRequestID(ctx context.Context, requestID string) (*entity.WorkAccomplishmentReport, error) {
	var war entity.WorkAccomplishmentReport
	err := r.db.WithContext(ctx).
		Preload("Indicator").
		Where("request_id = ?", requestID).
		First(&war).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &war, nil
}

func (r *WARRepository) CountByRequestID(ctx context.Context, requestID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.WorkAccomplishmentReport{}).
		Where("request_id = ?", requestID).
		Count(&count).Error
	return count, err
}

// WARQuery filters List. From/To bound date_started as [From, To).
type WARQuery struct {
	UnitID      string
	PersonnelID string
	IndicatorID string
	IDs         []string
	From        *time.Time
	To          *time.Time
}

func (r *WARRepository) List(ctx context.Context, q WARQuery) ([]entity.WorkAccomplishmentReport, error) {
	var items []entity.WorkAccomplishmentReport
	query := r.db.WithContext(ctx).Model(&entity.WorkAccomplishmentReport{})
	if q.UnitID != "" {
		query = query.Where("unit_id = ?", q.UnitID)
	}
	if q.PersonnelID != "" {
		query = query.Where("id IN (?)",
			r.db.Model(&entity.WARPersonnel{}).Select("war_id").Where("user_id = ?", q.PersonnelID))
	}
	if q.IndicatorID != "" {
		query = query.Where("indicator_id = ?", q.IndicatorID)
	}
	if q.IDs != nil {
		query = query.Where("id IN ?", q.IDs)
	}
	if q.From != nil {
		query = query.Where("date_started >= ?", *q.From)
	}
	if q.To != nil {
		query = query.Where("date_started < ?", *q.To)
	}
	err := query.
		Preload("Unit").
		Preload("Indicator").
		Preload("Personnel").
		Order("date_started ASC, control_number ASC").
		Find(&items).Error
	return items, err
}

// Update writes editable fields of a WAR.
func (r *WARRepository) Update(ctx context.Context, id string, updates map[string]interface{}) error {
	return r.db.WithContext(ctx).
		Model(&entity.WorkAccomplishmentReport{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// NextControlNumber increments the counter of month (YYYYMM) and returns
// the new value. The conflicting update keeps the counter row locked until
// the surrounding transaction ends, so concurrent callers get distinct
// values. A missing counter starts after the WARs already numbered in month.
func (r *WARRepository) NextControlNumber(ctx context.Context, month string) (int, error) {
	db := r.db.WithContext(ctx)
	var numbered int64
	if err := db.Model(&entity.WorkAccomplishmentReport{}).
		Where("control_number LIKE ?", "WAR-"+month+"-%").
		Count(&numbered).Error; err != nil {
		return 0, err
	}
	seq := entity.WARSequence{Month: month, Counter: int(numbered) + 1}
	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "month"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"counter": gorm.Expr("war_sequences.counter + 1"),
		}),
	}).Create(&seq).Error; err != nil {
		return 0, err
	}
	if err := db.Where("month = ?", month).Take(&seq).Error; err != nil {
		return 0, err
	}
	return seq.Counter, nil
}

// IPMTRepository owns IPMT entries and their WAR links.
type IPMTRepository struct {
	db *gorm.DB
}

func NewIPMTRepository(db *gorm.DB) *IPMTRepository {
	return &IPMTRepository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *IPMTRepository) WithTx(tx *gorm.DB) *IPMTRepository {
	return &IPMTRepository{db: tx}
}

func (r *IPMTRepository) FindByKey(ctx context.Context, personnelID, unitID, month, indicatorID string) (*entity.IPMTEntry, error) {
	var entry entity.IPMTEntry
	err := r.db.WithContext(ctx).
		Preload("Reports").
		Where("personnel_id = ? AND unit_id = ? AND month = ? AND indicator_id = ?", personnelID, unitID, month, indicatorID).
		First(&entry).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &entry, nil
}

func (r *IPMTRepository) FindByID(ctx context.Context, id string) (*entity.IPMTEntry, error) {
	var entry entity.IPMTEntry
	err := r.db.WithContext(ctx).
		Preload("Indicator").
		Preload("Reports").
		Where("id = ?", id).
		First(&entry).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &entry, nil
}

// Upsert creates the entry or overwrites narrative and remarks of the existing
// row with the same key. entry.ID is set to the stored row's id.
func (r *IPMTRepository) Upsert(ctx context.Context, entry *entity.IPMTEntry) error {
	if entry.ID == "" {
		entry.ID = NewID()
	}
	db := r.db.WithContext(ctx)
	err := db.Omit("Indicator", "Reports").Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "personnel_id"}, {Name: "unit_id"}, {Name: "month"}, {Name: "indicator_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"accomplishment", "remarks", "updated_at"}),
	}).Create(entry).Error
	if err != nil {
		return err
	}
	stored, err := r.FindByKey(ctx, entry.PersonnelID, entry.UnitID, entry.Month, entry.IndicatorID)
	if err != nil {
		return err
	}
	entry.ID = stored.ID
	entry.CreatedAt = stored.CreatedAt
	return nil
}

func (r *IPMTRepository) UpdateAccomplishment(ctx context.Context, id, accomplishment, remarks string) error {
	return r.db.WithContext(ctx).
		Model(&entity.IPMTEntry{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"accomplishment": accomplishment,
			"remarks":        remarks,
		}).Error
}

// ReplaceReports swaps the WAR links of an entry.
func (r *IPMTRepository) ReplaceReports(ctx context.Context, ipmtID string, warIDs []string) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("ipmt_id = ?", ipmtID).Delete(&entity.IPMTReport{}).Error; err != nil {
		return err
	}
	if len(warIDs) == 0 {
		return nil
	}
	rows := make([]entity.IPMTReport, 0, len(warIDs))
	for _, id := range warIDs {
		rows = append(rows, entity.IPMTReport{IPMTID: ipmtID, WARID: id})
	}
	return db.Create(&rows).Error
}

// ListByMonth returns the saved entries of a person in a unit and month.
func (r *IPMTRepository) ListByMonth(ctx context.Context, personnelID, unitID, month string) ([]entity.IPMTEntry, error) {
	var items []entity.IPMTEntry
	err := r.db.WithContext(ctx).
		Preload("Indicator").
		Preload("Reports").
		Where("personnel_id = ? AND unit_id = ? AND month = ?", personnelID, unitID, month).
		Find(&items).Error
	return items, err
}
