package service

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/jekmagalaman/gso/internal/gso/entity"
	"github.com/jekmagalaman/gso/internal/gso/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Source statuses of each transition.
var (
	approvableStatuses  = []string{entity.RequestStatusPending}
	assignableStatuses  = []string{entity.RequestStatusPending, entity.RequestStatusApproved, entity.RequestStatusInProgress}
	startableStatuses   = []string{entity.RequestStatusApproved}
	submittableStatuses = []string{entity.RequestStatusInProgress}
	reviewableStatuses  = []string{entity.RequestStatusDoneForReview}
	cancellableStatuses = []string{entity.RequestStatusPending, entity.RequestStatusApproved}
	activeStatuses      = []string{entity.RequestStatusPending, entity.RequestStatusApproved, entity.RequestStatusInProgress}
)

var knownStatuses = []string{
	entity.RequestStatusPending,
	entity.RequestStatusApproved,
	entity.RequestStatusInProgress,
	entity.RequestStatusDoneForReview,
	entity.RequestStatusCompleted,
	entity.RequestStatusCancelled,
}

// RequestService is the request lifecycle manager. It owns request status,
// personnel assignments and material reservations.
type RequestService struct {
	db        *gorm.DB
	repo      *repository.RequestRepository
	userRepo  *repository.UserRepository
	unitRepo  *repository.UnitRepository
	indRepo   *repository.IndicatorRepository
	logRepo   *repository.ActivityLogRepository
	inventory *InventoryService
	wars      *WARService
	notifier  *NotificationService
	store     ObjectStore
	logger    *zap.Logger
	now       func() time.Time
}

func NewRequestService(db *gorm.DB, repos *repository.Repositories, inventory *InventoryService, wars *WARService, logger *zap.Logger) *RequestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RequestService{
		db:        db,
		repo:      repos.Request,
		userRepo:  repos.User,
		unitRepo:  repos.Unit,
		indRepo:   repos.Indicator,
		logRepo:   repos.ActivityLog,
		inventory: inventory,
		wars:      wars,
		logger:    logger,
		now:       utcNow,
	}
}

// SetNotifier sets the notification service.
func (s *RequestService) SetNotifier(n *NotificationService) {
	s.notifier = n
}

// SetObjectStore enables attachment uploads.
func (s *RequestService) SetObjectStore(store ObjectStore) {
	s.store = store
}

// CreateRequestInput is what a requestor submits.
type CreateRequestInput struct {
	UnitID              string     `json:"unit_id" validate:"required"`
	DepartmentID        string     `json:"department_id"`
	ActivityName        string     `json:"activity_name" validate:"max=255"`
	Description         string     `json:"description" validate:"required"`
	CustomFullName      string     `json:"custom_full_name" validate:"max=255"`
	CustomEmail         string     `json:"custom_email" validate:"omitempty,email"`
	CustomContactNumber string     `json:"custom_contact_number" validate:"max=50"`
	Labor               bool       `json:"labor"`
	MaterialsNeeded     bool       `json:"materials_needed"`
	OthersNeeded        bool       `json:"others_needed"`
	IsEmergency         bool       `json:"is_emergency"`
	ScheduleStart       *time.Time `json:"schedule_start"`
	ScheduleEnd         *time.Time `json:"schedule_end"`
	ScheduleRemarks     string     `json:"schedule_remarks"`
}

// Create files a new Pending request.
func (s *RequestService) Create(ctx context.Context, actor Actor, input CreateRequestInput) (*entity.ServiceRequest, error) {
	if err := authorize(actor, ActionCreateRequest); err != nil {
		return nil, err
	}
	input.Description = strings.TrimSpace(input.Description)
	input.UnitID = strings.TrimSpace(input.UnitID)
	if err := validateStruct(input); err != nil {
		return nil, err
	}
	if input.ScheduleStart != nil && input.ScheduleEnd != nil && !input.ScheduleEnd.After(*input.ScheduleStart) {
		return nil, validationErr("schedule_end", "must be after schedule_start")
	}

	if _, err := s.unitRepo.FindByID(ctx, input.UnitID); err != nil {
		return nil, lookupErr(err, "unit", input.UnitID)
	}

	req := &entity.ServiceRequest{
		RequestorID:         actor.UserID,
		UnitID:              input.UnitID,
		ActivityName:        strings.TrimSpace(input.ActivityName),
		Description:         input.Description,
		CustomFullName:      strings.TrimSpace(input.CustomFullName),
		CustomEmail:         strings.TrimSpace(input.CustomEmail),
		CustomContactNumber: strings.TrimSpace(input.CustomContactNumber),
		Labor:               input.Labor,
		MaterialsNeeded:     input.MaterialsNeeded,
		OthersNeeded:        input.OthersNeeded,
		IsEmergency:         input.IsEmergency,
		ScheduleRemarks:     input.ScheduleRemarks,
		Status:              entity.RequestStatusPending,
	}
	if input.DepartmentID != "" {
		if _, err := s.unitRepo.FindDepartmentByID(ctx, input.DepartmentID); err != nil {
			return nil, lookupErr(err, "department", input.DepartmentID)
		}
		req.DepartmentID = &input.DepartmentID
	}
	if input.ScheduleStart != nil {
		start := input.ScheduleStart.UTC()
		req.ScheduleStart = &start
	}
	if input.ScheduleEnd != nil {
		end := input.ScheduleEnd.UTC()
		req.ScheduleEnd = &end
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, req); err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		return s.logRepo.WithTx(tx).LogActivity(ctx, entity.ActivityEntityRequest, req.ID, string(ActionCreateRequest), "", req.Status, "", actor.UserID)
	})
	if err != nil {
		return nil, err
	}

	msg := "New service request awaits approval"
	if req.IsEmergency {
		msg = "New EMERGENCY service request awaits approval"
	}
	s.notifier.NotifyRole(ctx, entity.RoleDirector, "", req.ID, msg)
	s.notifier.RequestChanged(req.ID, req.UnitID, req.Status)

	return req, nil
}

// Approve moves a Pending request to Approved.
func (s *RequestService) Approve(ctx context.Context, actor Actor, id string) (*entity.ServiceRequest, error) {
	if err := authorize(actor, ActionApprove); err != nil {
		return nil, err
	}
	req, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireStatus(req, ActionApprove, approvableStatuses); err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.transition(ctx, tx, req, ActionApprove, approvableStatuses, entity.RequestStatusApproved, nil, "", actor.UserID)
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, []string{req.RequestorID}, req.ID, "Your service request has been approved")
	s.notifier.NotifyRole(ctx, entity.RoleUnitHead, req.UnitID, req.ID, "An approved request is ready for assignment")
	s.notifier.RequestChanged(req.ID, req.UnitID, entity.RequestStatusApproved)
	return s.load(ctx, id)
}

// MaterialLine reserves Quantity units of an inventory item.
type MaterialLine struct {
	ItemID   string `json:"item_id" validate:"required"`
	Quantity int    `json:"quantity" validate:"gt=0"`
}

// AssignInput replaces the full personnel and material sets of a request.
type AssignInput struct {
	PersonnelIDs []string       `json:"personnel_ids"`
	Materials    []MaterialLine `json:"materials" validate:"dive"`
}

// Assign replaces the assigned personnel and the material reservations in one
// transaction. Existing reservations are released before the new lines are
// reserved against live stock; any shortfall rolls everything back.
func (s *RequestService) Assign(ctx context.Context, actor Actor, id string, input AssignInput) (*entity.ServiceRequest, error) {
	if err := authorize(actor, ActionAssign); err != nil {
		return nil, err
	}
	req, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireUnit(actor, ActionAssign, req.UnitID); err != nil {
		return nil, err
	}
	if err := requireStatus(req, ActionAssign, assignableStatuses); err != nil {
		return nil, err
	}
	if err := validateStruct(input); err != nil {
		return nil, err
	}

	personnelIDs := dedupe(input.PersonnelIDs)
	if err := s.checkPersonnel(ctx, req.UnitID, personnelIDs); err != nil {
		return nil, err
	}
	lines := mergeLines(input.Materials)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ok, err := repo.TransitionStatus(ctx, req.ID, assignableStatuses, map[string]interface{}{"updated_at": s.now()})
		if err != nil {
			return fmt.Errorf("lock request: %w", err)
		}
		if !ok {
			return s.illegal(ctx, repo, req.ID, ActionAssign)
		}
		if err := repo.ReplaceAssignments(ctx, req.ID, personnelIDs); err != nil {
			return fmt.Errorf("replace assignments: %w", err)
		}
		if err := s.inventory.releaseRequest(ctx, tx, req.ID, actor.UserID); err != nil {
			return err
		}
		for _, line := range lines {
			if err := s.inventory.reserve(ctx, tx, req.UnitID, req.ID, line.ItemID, line.Quantity, actor.UserID); err != nil {
				return err
			}
		}
		content := fmt.Sprintf("%d personnel, %d material lines", len(personnelIDs), len(lines))
		return s.logRepo.WithTx(tx).LogActivity(ctx, entity.ActivityEntityRequest, req.ID, string(ActionAssign), req.Status, req.Status, content, actor.UserID)
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, personnelIDs, req.ID, "You have been assigned to a service request")
	return s.Detail(ctx, req.ID)
}

// checkPersonnel verifies every id is unit personnel.
func (s *RequestService) checkPersonnel(ctx context.Context, unitID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	users, err := s.userRepo.FindByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("load personnel: %w", err)
	}
	byID := make(map[string]*entity.User, len(users))
	for i := range users {
		byID[users[i].ID] = &users[i]
	}
	for _, uid := range ids {
		u, ok := byID[uid]
		if !ok {
			return &NotFoundError{Entity: "personnel", ID: uid}
		}
		if u.Role != entity.RolePersonnel {
			return validationErr("personnel_ids", u.FullName()+" is not personnel")
		}
		if !u.InUnit(unitID) {
			return validationErr("personnel_ids", u.FullName()+" belongs to another unit")
		}
	}
	return nil
}

// Start moves an Approved request to In Progress.
func (s *RequestService) Start(ctx context.Context, actor Actor, id string) (*entity.ServiceRequest, error) {
	if err := authorize(actor, ActionStart); err != nil {
		return nil, err
	}
	req, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireAssigned(ctx, actor, ActionStart, req.ID); err != nil {
		return nil, err
	}
	if err := requireStatus(req, ActionStart, startableStatuses); err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		extra := map[string]interface{}{"started_at": s.now()}
		return s.transition(ctx, tx, req, ActionStart, startableStatuses, entity.RequestStatusInProgress, extra, "", actor.UserID)
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, []string{req.RequestorID}, req.ID, "Work on your service request has started")
	s.notifier.RequestChanged(req.ID, req.UnitID, entity.RequestStatusInProgress)
	return s.load(ctx, id)
}

// SubmitForReview moves an In Progress request to Done for Review. A non-empty
// indicatorID selects the success indicator the WAR will carry.
func (s *RequestService) SubmitForReview(ctx context.Context, actor Actor, id, indicatorID string) (*entity.ServiceRequest, error) {
	if err := authorize(actor, ActionSubmitForReview); err != nil {
		return nil, err
	}
	req, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireAssigned(ctx, actor, ActionSubmitForReview, req.ID); err != nil {
		return nil, err
	}
	if err := requireStatus(req, ActionSubmitForReview, submittableStatuses); err != nil {
		return nil, err
	}

	var extra map[string]interface{}
	if indicatorID != "" {
		if err := s.checkIndicator(ctx, req.UnitID, indicatorID); err != nil {
			return nil, err
		}
		extra = map[string]interface{}{"selected_indicator_id": indicatorID}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.transition(ctx, tx, req, ActionSubmitForReview, submittableStatuses, entity.RequestStatusDoneForReview, extra, "", actor.UserID)
	})
	if err != nil {
		return nil, err
	}

	s.notifier.NotifyRole(ctx, entity.RoleUnitHead, req.UnitID, req.ID, "A service request is ready for review")
	s.notifier.RequestChanged(req.ID, req.UnitID, entity.RequestStatusDoneForReview)
	return s.load(ctx, id)
}

// CompletionResult is the outcome of ApproveCompletion.
type CompletionResult struct {
	Request *entity.ServiceRequest           `json:"request"`
	WAR     *entity.WorkAccomplishmentReport `json:"war"`
}

// ApproveCompletion completes a request under review and derives its WAR.
// The WAR narrative is computed before the transaction; the status change and
// the WAR insert commit together.
func (s *RequestService) ApproveCompletion(ctx context.Context, actor Actor, id string) (*CompletionResult, error) {
	if err := authorize(actor, ActionApproveCompletion); err != nil {
		return nil, err
	}
	req, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireUnit(actor, ActionApproveCompletion, req.UnitID); err != nil {
		return nil, err
	}
	if err := requireStatus(req, ActionApproveCompletion, reviewableStatuses); err != nil {
		return nil, err
	}

	draft, err := s.wars.draftFromRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	completedAt := s.now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		extra := map[string]interface{}{"completed_at": completedAt}
		if err := s.transition(ctx, tx, req, ActionApproveCompletion, reviewableStatuses, entity.RequestStatusCompleted, extra, "", actor.UserID); err != nil {
			return err
		}
		return s.wars.persist(ctx, tx, draft, completedAt)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("request completed",
		zap.String("request_id", req.ID),
		zap.String("war_id", draft.war.ID),
		zap.String("control_number", draft.war.ControlNumber))

	recipients := append([]string{req.RequestorID}, draft.personnelIDs...)
	s.notifier.Notify(ctx, recipients, req.ID, "Service request completed")
	s.notifier.RequestChanged(req.ID, req.UnitID, entity.RequestStatusCompleted)

	updated, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	war, err := s.wars.warRepo.FindByID(ctx, draft.war.ID)
	if err != nil {
		return nil, lookupErr(err, "war", draft.war.ID)
	}
	return &CompletionResult{Request: updated, WAR: war}, nil
}

// RejectCompletion sends a request under review back to In Progress.
func (s *RequestService) RejectCompletion(ctx context.Context, actor Actor, id, reason string) (*entity.ServiceRequest, error) {
	if err := authorize(actor, ActionRejectCompletion); err != nil {
		return nil, err
	}
	req, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireUnit(actor, ActionRejectCompletion, req.UnitID); err != nil {
		return nil, err
	}
	if err := requireStatus(req, ActionRejectCompletion, reviewableStatuses); err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.transition(ctx, tx, req, ActionRejectCompletion, reviewableStatuses, entity.RequestStatusInProgress, nil, strings.TrimSpace(reason), actor.UserID)
	})
	if err != nil {
		return nil, err
	}

	if ids, err := s.repo.AssignedUserIDs(ctx, req.ID); err == nil {
		s.notifier.Notify(ctx, ids, req.ID, "Completion was rejected; the request is back in progress")
	}
	s.notifier.RequestChanged(req.ID, req.UnitID, entity.RequestStatusInProgress)
	return s.load(ctx, id)
}

// Cancel cancels a Pending or Approved request and returns its reservations
// to stock in the same transaction.
func (s *RequestService) Cancel(ctx context.Context, actor Actor, id, reason string) (*entity.ServiceRequest, error) {
	if err := authorize(actor, ActionCancel); err != nil {
		return nil, err
	}
	req, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireOwner(actor, ActionCancel, req.RequestorID); err != nil {
		return nil, err
	}
	if err := requireStatus(req, ActionCancel, cancellableStatuses); err != nil {
		return nil, err
	}

	reason = strings.TrimSpace(reason)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		extra := map[string]interface{}{"cancel_reason": reason}
		if err := s.transition(ctx, tx, req, ActionCancel, cancellableStatuses, entity.RequestStatusCancelled, extra, reason, actor.UserID); err != nil {
			return err
		}
		return s.inventory.releaseRequest(ctx, tx, req.ID, actor.UserID)
	})
	if err != nil {
		return nil, err
	}

	if ids, err := s.repo.AssignedUserIDs(ctx, req.ID); err == nil {
		s.notifier.Notify(ctx, ids, req.ID, "A service request assigned to you was cancelled")
	}
	s.notifier.RequestChanged(req.ID, req.UnitID, entity.RequestStatusCancelled)
	return s.load(ctx, id)
}

// AddTaskReport appends a progress note from assigned personnel.
func (s *RequestService) AddTaskReport(ctx context.Context, actor Actor, id, text string) (*entity.TaskReport, error) {
	if err := authorize(actor, ActionAddReport); err != nil {
		return nil, err
	}
	req, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireAssigned(ctx, actor, ActionAddReport, req.ID); err != nil {
		return nil, err
	}
	if req.IsTerminal() {
		return nil, &IllegalTransitionError{Action: ActionAddReport, From: req.Status}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, validationErr("report_text", "is required")
	}

	report := &entity.TaskReport{RequestID: req.ID, PersonnelID: actor.UserID, ReportText: text}
	if err := s.repo.CreateReport(ctx, report); err != nil {
		return nil, fmt.Errorf("create task report: %w", err)
	}
	return report, nil
}

// SelectIndicator sets the success indicator of a non-terminal request.
func (s *RequestService) SelectIndicator(ctx context.Context, actor Actor, id, indicatorID string) (*entity.ServiceRequest, error) {
	if err := authorize(actor, ActionSelectIndicator); err != nil {
		return nil, err
	}
	req, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role == entity.RolePersonnel {
		err = s.requireAssigned(ctx, actor, ActionSelectIndicator, req.ID)
	} else {
		err = requireUnit(actor, ActionSelectIndicator, req.UnitID)
	}
	if err != nil {
		return nil, err
	}
	if req.IsTerminal() {
		return nil, &IllegalTransitionError{Action: ActionSelectIndicator, From: req.Status}
	}
	if indicatorID == "" {
		return nil, validationErr("indicator_id", "is required")
	}
	if err := s.checkIndicator(ctx, req.UnitID, indicatorID); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, req.ID, map[string]interface{}{"selected_indicator_id": indicatorID}); err != nil {
		return nil, fmt.Errorf("select indicator: %w", err)
	}
	return s.load(ctx, id)
}

func (s *RequestService) checkIndicator(ctx context.Context, unitID, indicatorID string) error {
	ind, err := s.indRepo.FindByID(ctx, indicatorID)
	if err != nil {
		return lookupErr(err, "indicator", indicatorID)
	}
	if ind.UnitID != unitID {
		return validationErr("indicator_id", "indicator belongs to another unit")
	}
	return nil
}

// UploadAttachment stores a file for the request and records its key.
func (s *RequestService) UploadAttachment(ctx context.Context, actor Actor, id, filename string, r io.Reader, size int64, contentType string) (*entity.ServiceRequest, error) {
	if err := authorize(actor, ActionUploadAttachment); err != nil {
		return nil, err
	}
	req, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireOwner(actor, ActionUploadAttachment, req.RequestorID); err != nil {
		return nil, err
	}
	if s.store == nil {
		return nil, validationErr("attachment", "file storage is not configured")
	}

	key := fmt.Sprintf("requests/%s/%s%s", req.ID, repository.NewID(), strings.ToLower(path.Ext(filename)))
	if err := s.store.Put(ctx, key, r, size, contentType); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, req.ID, map[string]interface{}{"attachment_path": key}); err != nil {
		return nil, fmt.Errorf("save attachment path: %w", err)
	}
	return s.load(ctx, id)
}

// OpenAttachment streams the stored attachment of a visible request.
func (s *RequestService) OpenAttachment(ctx context.Context, actor Actor, id string) (io.ReadCloser, string, error) {
	req, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, "", err
	}
	if req.AttachmentPath == "" {
		return nil, "", &NotFoundError{Entity: "attachment", ID: id}
	}
	if s.store == nil {
		return nil, "", validationErr("attachment", "file storage is not configured")
	}
	rc, err := s.store.Get(ctx, req.AttachmentPath)
	if err != nil {
		return nil, "", err
	}
	return rc, path.Base(req.AttachmentPath), nil
}

// Get returns the request with its people and materials when visible to the actor.
func (s *RequestService) Get(ctx context.Context, actor Actor, id string) (*entity.ServiceRequest, error) {
	if err := authorize(actor, ActionViewRequest); err != nil {
		return nil, err
	}
	req, err := s.Detail(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireVisible(ctx, actor, req); err != nil {
		return nil, err
	}
	return req, nil
}

// Detail loads a request with its relations without access checks.
func (s *RequestService) Detail(ctx context.Context, id string) (*entity.ServiceRequest, error) {
	req, err := s.repo.FindDetail(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "request", id)
	}
	return req, nil
}

// RequestFilter selects requests for listing. Order is required.
type RequestFilter struct {
	Status   string
	Query    string
	UnitID   string
	Order    repository.RequestOrder
	Page     int
	PageSize int
}

// ListRequests returns the requests visible to the actor in the given order.
func (s *RequestService) ListRequests(ctx context.Context, actor Actor, f RequestFilter) ([]entity.ServiceRequest, int64, error) {
	if err := authorize(actor, ActionViewRequest); err != nil {
		return nil, 0, err
	}
	if f.Order != repository.OrderEmergencyFirst && f.Order != repository.OrderNewest {
		return nil, 0, validationErr("order", "must be emergency_first or newest")
	}
	if f.Status != "" && !contains(knownStatuses, f.Status) {
		return nil, 0, validationErr("status", "unknown status "+f.Status)
	}

	q := repository.RequestQuery{
		Status:   f.Status,
		Search:   strings.TrimSpace(f.Query),
		UnitID:   f.UnitID,
		Order:    f.Order,
		Page:     f.Page,
		PageSize: f.PageSize,
	}
	scopeQuery(actor, &q)

	items, total, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, 0, fmt.Errorf("list requests: %w", err)
	}
	return items, total, nil
}

// scopeQuery narrows a query to what the actor may see.
func scopeQuery(actor Actor, q *repository.RequestQuery) {
	switch actor.Role {
	case entity.RoleGSO, entity.RoleDirector:
	case entity.RoleUnitHead:
		q.UnitID = actor.UnitID
	case entity.RolePersonnel:
		q.UnitID = ""
		q.PersonnelID = actor.UserID
	default:
		q.UnitID = ""
		q.RequestorID = actor.UserID
	}
}

func (s *RequestService) ListReports(ctx context.Context, actor Actor, id string) ([]entity.TaskReport, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	reports, err := s.repo.ListReports(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list task reports: %w", err)
	}
	return reports, nil
}

// History returns the status changes of a request, oldest first.
func (s *RequestService) History(ctx context.Context, actor Actor, id string) ([]entity.ActivityLog, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	logs, err := s.logRepo.FindByEntity(ctx, entity.ActivityEntityRequest, id)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return logs, nil
}

// Dashboard summarizes what the actor can see.
type Dashboard struct {
	Total    int64                    `json:"total"`
	ByStatus map[string]int64         `json:"by_status"`
	Stock    *repository.StockSummary `json:"stock,omitempty"`
}

func (s *RequestService) Dashboard(ctx context.Context, actor Actor) (*Dashboard, error) {
	if err := authorize(actor, ActionViewRequest); err != nil {
		return nil, err
	}
	var q repository.RequestQuery
	scopeQuery(actor, &q)
	counts, err := s.repo.CountByStatus(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("count requests: %w", err)
	}

	d := &Dashboard{ByStatus: make(map[string]int64, len(knownStatuses))}
	for _, st := range knownStatuses {
		d.ByStatus[st] = counts[st]
		d.Total += counts[st]
	}
	if authorize(actor, ActionViewInventory) == nil {
		stock, err := s.inventory.Summary(ctx, actor)
		if err != nil {
			return nil, err
		}
		d.Stock = stock
	}
	return d, nil
}

func (s *RequestService) load(ctx context.Context, id string) (*entity.ServiceRequest, error) {
	req, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "request", id)
	}
	return req, nil
}

// transition applies a conditional status update and records it. When no row
// matches, the current status is re-read and reported.
func (s *RequestService) transition(ctx context.Context, tx *gorm.DB, req *entity.ServiceRequest, action Action, from []string, to string, extra map[string]interface{}, content, operatorID string) error {
	updates := map[string]interface{}{"status": to, "updated_at": s.now()}
	for k, v := range extra {
		updates[k] = v
	}
	repo := s.repo.WithTx(tx)
	ok, err := repo.TransitionStatus(ctx, req.ID, from, updates)
	if err != nil {
		return fmt.Errorf("%s: %w", action, err)
	}
	if !ok {
		return s.illegal(ctx, repo, req.ID, action)
	}
	return s.logRepo.WithTx(tx).LogActivity(ctx, entity.ActivityEntityRequest, req.ID, string(action), req.Status, to, content, operatorID)
}

func (s *RequestService) illegal(ctx context.Context, repo *repository.RequestRepository, id string, action Action) error {
	current, err := repo.FindByID(ctx, id)
	if err != nil {
		return lookupErr(err, "request", id)
	}
	return &IllegalTransitionError{Action: action, From: current.Status}
}

func (s *RequestService) requireAssigned(ctx context.Context, actor Actor, action Action, requestID string) error {
	ok, err := s.repo.IsAssigned(ctx, requestID, actor.UserID)
	if err != nil {
		return fmt.Errorf("check assignment: %w", err)
	}
	if !ok {
		return forbidden(action, "not assigned to this request")
	}
	return nil
}

func (s *RequestService) requireVisible(ctx context.Context, actor Actor, req *entity.ServiceRequest) error {
	if isOverseer(actor) || req.RequestorID == actor.UserID {
		return nil
	}
	switch actor.Role {
	case entity.RoleUnitHead:
		if actor.UnitID != "" && actor.UnitID == req.UnitID {
			return nil
		}
	case entity.RolePersonnel:
		ok, err := s.repo.IsAssigned(ctx, req.ID, actor.UserID)
		if err != nil {
			return fmt.Errorf("check assignment: %w", err)
		}
		if ok {
			return nil
		}
	}
	return forbidden(ActionViewRequest, "request is not visible to this user")
}

func requireStatus(req *entity.ServiceRequest, action Action, from []string) error {
	if !contains(from, req.Status) {
		return &IllegalTransitionError{Action: action, From: req.Status}
	}
	return nil
}

// mergeLines sums quantities of repeated items, keeping first-seen order.
func mergeLines(lines []MaterialLine) []MaterialLine {
	out := make([]MaterialLine, 0, len(lines))
	index := make(map[string]int, len(lines))
	for _, l := range lines {
		if i, ok := index[l.ItemID]; ok {
			out[i].Quantity += l.Quantity
			continue
		}
		index[l.ItemID] = len(out)
		out = append(out, l)
	}
	return out
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
