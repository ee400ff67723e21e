package repository

import (
	"context"
	"strings"

	"github.com/jekmagalaman/gso/internal/gso/entity"
	"gorm.io/gorm"
)

// RequestOrder selects the listing order of requests.
type RequestOrder string

const (
	// OrderEmergencyFirst lists emergencies first, newest first within each group.
	OrderEmergencyFirst RequestOrder = "emergency_first"
	// OrderNewest lists strictly by creation time, newest first.
	OrderNewest RequestOrder = "newest"
)

func (o RequestOrder) clause() string {
	switch o {
	case OrderNewest:
		return "service_requests.created_at DESC, service_requests.id DESC"
	default:
		return "service_requests.is_emergency DESC, service_requests.created_at DESC, service_requests.id DESC"
	}
}

// RequestQuery filters List. Empty fields do not filter.
type RequestQuery struct {
	Status      string
	Search      string
	UnitID      string
	RequestorID string
	PersonnelID string
	Order       RequestOrder
	Page        int
	PageSize    int
}

// RequestRepository owns requests, assignments, reservations and task reports.
type RequestRepository struct {
	db *gorm.DB
}

func NewRequestRepository(db *gorm.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *RequestRepository) WithTx(tx *gorm.DB) *RequestRepository {
	return &RequestRepository{db: tx}
}

func (r *RequestRepository) Create(ctx context.Context, req *entity.ServiceRequest) error {
	if req.ID == "" {
		req.ID = NewID()
	}
	return r.db.WithContext(ctx).Create(req).Error
}

func (r *RequestRepository) FindByID(ctx context.Context, id string) (*entity.ServiceRequest, error) {
	var req entity.ServiceRequest
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&req).Error; err != nil {
		return nil, notFound(err)
	}
	return &req, nil
}

// FindDetail loads the request with its people, materials and indicator.
func (r *RequestRepository) FindDetail(ctx context.Context, id string) (*entity.ServiceRequest, error) {
	var req entity.ServiceRequest
	err := r.db.WithContext(ctx).
		Preload("Requestor").
		Preload("Unit").
		Preload("Department").
		Preload("SelectedIndicator").
		Preload("Assignments.User").
		Preload("Materials.Item").
		Where("id = ?", id).
		First(&req).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &req, nil
}

// TransitionStatus applies updates only while the request is in one of the
// given statuses. It reports whether a row was changed.
func (r *RequestRepository) TransitionStatus(ctx context.Context, id string, from []string, updates map[string]interface{}) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&entity.ServiceRequest{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Update writes non-status fields.
func (r *RequestRepository) Update(ctx context.Context, id string, updates map[string]interface{}) error {
	return r.db.WithContext(ctx).
		Model(&entity.ServiceRequest{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *RequestRepository) List(ctx context.Context, q RequestQuery) ([]entity.ServiceRequest, int64, error) {
	var items []entity.ServiceRequest
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.ServiceRequest{})
	if q.Status != "" {
		query = query.Where("service_requests.status = ?", q.Status)
	}
	if q.UnitID != "" {
		query = query.Where("service_requests.unit_id = ?", q.UnitID)
	}
	if q.RequestorID != "" {
		query = query.Where("service_requests.requestor_id = ?", q.RequestorID)
	}
	if q.PersonnelID != "" {
		query = query.Where("service_requests.id IN (?)",
			r.db.Model(&entity.RequestAssignment{}).Select("request_id").Where("user_id = ?", q.PersonnelID))
	}
	if q.Search != "" {
		like := "%" + strings.ToLower(q.Search) + "%"
		query = query.Where("LOWER(service_requests.description) LIKE ? OR LOWER(service_requests.activity_name) LIKE ?", like, like)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset, limit := paginate(q.Page, q.PageSize)
	err := query.
		Preload("Unit").
		Preload("Requestor").
		Order(q.Order.clause()).
		Offset(offset).
		Limit(limit).
		Find(&items).Error
	return items, total, err
}

// CountByStatus counts requests per status for the same visibility filters as List.
func (r *RequestRepository) CountByStatus(ctx context.Context, q RequestQuery) (map[string]int64, error) {
	type row struct {
		Status string
		Count  int64
	}
	var rows []row
	query := r.db.WithContext(ctx).Model(&entity.ServiceRequest{}).Select("status, COUNT(*) AS count")
	if q.UnitID != "" {
		query = query.Where("unit_id = ?", q.UnitID)
	}
	if q.RequestorID != "" {
		query = query.Where("requestor_id = ?", q.RequestorID)
	}
	if q.PersonnelID != "" {
		query = query.Where("id IN (?)",
			r.db.Model(&entity.RequestAssignment{}).Select("request_id").Where("user_id = ?", q.PersonnelID))
	}
	if err := query.Group("status").Scan(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, rw := range rows {
		counts[rw.Status] = rw.Count
	}
	return counts, nil
}

// ReplaceAssignments swaps the full personnel set of a request.
func (r *RequestRepository) ReplaceAssignments(ctx context.Context, requestID string, userIDs []string) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("request_id = ?", requestID).Delete(&entity.RequestAssignment{}).Error; err != nil {
		return err
	}
	if len(userIDs) == 0 {
		return nil
	}
	rows := make([]entity.RequestAssignment, 0, len(userIDs))
	for _, uid := range userIDs {
		rows = append(rows, entity.RequestAssignment{RequestID: requestID, UserID: uid})
	}
	return db.Create(&rows).Error
}

func (r *RequestRepository) AssignedUserIDs(ctx context.Context, requestID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&entity.RequestAssignment{}).
		Where("request_id = ?", requestID).
		Order("created_at ASC").
		Pluck("user_id", &ids).Error
	return ids, err
}

func (r *RequestRepository) IsAssigned(ctx context.Context, requestID, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.RequestAssignment{}).
		Where("request_id = ? AND user_id = ?", requestID, userID).
		Count(&count).Error
	return count > 0, err
}

func (r *RequestRepository) ListMaterials(ctx context.Context, requestID string) ([]entity.RequestMaterial, error) {
	var items []entity.RequestMaterial
	err := r.db.WithContext(ctx).
		Preload("Item").
		Where("request_id = ?", requestID).
		Order("created_at ASC").
		Find(&items).Error
	return items, err
}

func (r *RequestRepository) CreateMaterial(ctx context.Context, m *entity.RequestMaterial) error {
	if m.ID == "" {
		m.ID = NewID()
	}
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *RequestRepository) DeleteMaterials(ctx context.Context, requestID string) error {
	return r.db.WithContext(ctx).Where("request_id = ?", requestID).Delete(&entity.RequestMaterial{}).Error
}

func (r *RequestRepository) CreateReport(ctx context.Context, report *entity.TaskReport) error {
	if report.ID == "" {
		report.ID = NewID()
	}
	return r.db.WithContext(ctx).Create(report).Error
}

func (r *RequestRepository) ListReports(ctx context.Context, requestID string) ([]entity.TaskReport, error) {
	var reports []entity.TaskReport
	err := r.db.WithContext(ctx).
		Preload("Personnel").
		Where("request_id = ?", requestID).
		Order("created_at ASC").
		Find(&reports).Error
	return reports, err
}
