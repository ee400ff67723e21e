package entity

import (
	"time"
)

// ServiceRequest statuses
const (
	RequestStatusPending       = "Pending"
	RequestStatusApproved      = "Approved"
	RequestStatusInProgress    = "In Progress"
	RequestStatusDoneForReview = "Done for Review"
	RequestStatusCompleted     = "Completed"
	RequestStatusCancelled     = "Cancelled"
)

// ServiceRequest is a request for service addressed to one unit.
type ServiceRequest struct {
	ID           string  `json:"id" gorm:"primaryKey;size:32"`
	RequestorID  string  `json:"requestor_id" gorm:"size:32;not null;index"`
	UnitID       string  `json:"unit_id" gorm:"size:32;not null;index"`
	DepartmentID *string `json:"department_id" gorm:"size:32"`

	CustomFullName      string `json:"custom_full_name" gorm:"size:255"`
	CustomEmail         string `json:"custom_email" gorm:"size:255"`
	CustomContactNumber string `json:"custom_contact_number" gorm:"size:50"`
	AttachmentPath      string `json:"attachment_path" gorm:"size:512"`

	Labor           bool `json:"labor"`
	MaterialsNeeded bool `json:"materials_needed"`
	OthersNeeded    bool `json:"others_needed"`
	IsEmergency     bool `json:"is_emergency" gorm:"index"`

	ScheduleStart   *time.Time `json:"schedule_start"`
	ScheduleEnd     *time.Time `json:"schedule_end"`
	ScheduleRemarks string     `json:"schedule_remarks" gorm:"type:text"`

	ActivityName string `json:"activity_name" gorm:"size:255"`
	Description  string `json:"description" gorm:"type:text;not null"`
	Status       string `json:"status" gorm:"size:20;not null;index"`
	CancelReason string `json:"cancel_reason" gorm:"type:text"`

	SelectedIndicatorID *string `json:"selected_indicator_id" gorm:"size:32"`

	CreatedAt   time.Time  `json:"created_at" gorm:"index"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`

	Requestor         *User               `json:"requestor,omitempty" gorm:"foreignKey:RequestorID"`
	Unit              *Unit               `json:"unit,omitempty" gorm:"foreignKey:UnitID"`
	Department        *Department         `json:"department,omitempty" gorm:"foreignKey:DepartmentID"`
	SelectedIndicator *SuccessIndicator   `json:"selected_indicator,omitempty" gorm:"foreignKey:SelectedIndicatorID"`
	Assignments       []RequestAssignment `json:"assignments,omitempty" gorm:"foreignKey:RequestID"`
	Materials         []RequestMaterial   `json:"materials,omitempty" gorm:"foreignKey:RequestID"`
}

func (ServiceRequest) TableName() string { return "service_requests" }

// IsTerminal reports whether no further work can happen on the request.
func (r *ServiceRequest) IsTerminal() bool {
	return r.Status == RequestStatusCompleted || r.Status == RequestStatusCancelled
}

// RequestAssignment links a request to one assigned personnel.
type RequestAssignment struct {
	RequestID string    `json:"request_id" gorm:"primaryKey;size:32"`
	UserID    string    `json:"user_id" gorm:"primaryKey;size:32;index"`
	CreatedAt time.Time `json:"created_at"`

	User *User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

func (RequestAssignment) TableName() string { return "request_assignments" }

// RequestMaterial is a reservation of inventory quantity for a request.
type RequestMaterial struct {
	ID        string    `json:"id" gorm:"primaryKey;size:32"`
	RequestID string    `json:"request_id" gorm:"size:32;not null;index"`
	ItemID    string    `json:"item_id" gorm:"size:32;not null;index"`
	Quantity  int       `json:"quantity" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`

	Item *InventoryItem `json:"item,omitempty" gorm:"foreignKey:ItemID"`
}

func (RequestMaterial) TableName() string { return "request_materials" }

// TaskReport is an append-only progress note written by assigned personnel.
type TaskReport struct {
	ID          string    `json:"id" gorm:"primaryKey;size:32"`
	RequestID   string    `json:"request_id" gorm:"size:32;not null;index"`
	PersonnelID string    `json:"personnel_id" gorm:"size:32;not null"`
	ReportText  string    `json:"report_text" gorm:"type:text;not null"`
	CreatedAt   time.Time `json:"created_at"`

	Personnel *User `json:"personnel,omitempty" gorm:"foreignKey:PersonnelID"`
}

func (TaskReport) TableName() string { return "task_reports" }

// Feedback is the requestor's satisfaction survey for a completed request.
type Feedback struct {
	ID            string    `json:"id" gorm:"primaryKey;size:32"`
	RequestID     string    `json:"request_id" gorm:"size:32;not null;uniqueIndex"`
	UserID        string    `json:"user_id" gorm:"size:32;not null"`
	CC1           string    `json:"cc1" gorm:"size:10"`
	CC2           string    `json:"cc2" gorm:"size:10"`
	CC3           string    `json:"cc3" gorm:"size:10"`
	SQD1          *int      `json:"sqd1"`
	SQD2          *int      `json:"sqd2"`
	SQD3          *int      `json:"sqd3"`
	SQD4          *int      `json:"sqd4"`
	SQD5          *int      `json:"sqd5"`
	SQD6          *int      `json:"sqd6"`
	SQD7          *int      `json:"sqd7"`
	SQD8          *int      `json:"sqd8"`
	SQD9          *int      `json:"sqd9"`
	Suggestions   string    `json:"suggestions" gorm:"type:text"`
	AverageScore  *float64  `json:"average_score"`
	DateSubmitted time.Time `json:"date_submitted"`
}

func (Feedback) TableName() string { return "feedback" }

// SQDScores returns the nine service-quality answers in order.
func (f *Feedback) SQDScores() []*int {
	return []*int{f.SQD1, f.SQD2, f.SQD3, f.SQD4, f.SQD5, f.SQD6, f.SQD7, f.SQD8, f.SQD9}
}

// ComputeAverage sets AverageScore to the mean of the answered SQD items.
func (f *Feedback) ComputeAverage() {
	sum, n := 0, 0
	for _, s := range f.SQDScores() {
		if s != nil {
			sum += *s
			n++
		}
	}
	if n == 0 {
		f.AverageScore = nil
		return
	}
	avg := float64(sum) / float64(n)
	f.AverageScore = &avg
}

// Notification is an in-app message for one user.
type Notification struct {
	ID        string    `json:"id" gorm:"primaryKey;size:32"`
	UserID    string    `json:"user_id" gorm:"size:32;not null;index"`
	RequestID *string   `json:"request_id" gorm:"size:32"`
	Message   string    `json:"message" gorm:"type:text;not null"`
	IsRead    bool      `json:"is_read" gorm:"default:false"`
	CreatedAt time.Time `json:"created_at"`
}

func (Notification) TableName() string { return "notifications" }

// Activity entity types
const (
	ActivityEntityRequest   = "service_request"
	ActivityEntityInventory = "inventory_item"
	ActivityEntityWAR       = "war"
)

// ActivityLog records who moved an entity from one status to another.
type ActivityLog struct {
	ID         string    `json:"id" gorm:"primaryKey;size:32"`
	EntityType string    `json:"entity_type" gorm:"size:30;not null;index:idx_activity_entity"`
	EntityID   string    `json:"entity_id" gorm:"size:32;not null;index:idx_activity_entity"`
	Action     string    `json:"action" gorm:"size:30;not null"`
	FromStatus string    `json:"from_status" gorm:"size:20"`
	ToStatus   string    `json:"to_status" gorm:"size:20"`
	Content    string    `json:"content" gorm:"type:text"`
	OperatorID string    `json:"operator_id" gorm:"size:32"`
	CreatedAt  time.Time `json:"created_at"`
}

func (ActivityLog) TableName() string { return "activity_logs" }

// Models lists every persisted type in migration order.
func Models() []interface{} {
	return []interface{}{
		&Unit{},
		&Department{},
		&User{},
		&SuccessIndicator{},
		&InventoryItem{},
		&InventoryTransaction{},
		&ServiceRequest{},
		&RequestAssignment{},
		&RequestMaterial{},
		&TaskReport{},
		&Feedback{},
		&Notification{},
		&ActivityLog{},
		&WorkAccomplishmentReport{},
		&WARSequence{},
		&WARPersonnel{},
		&IPMTEntry{},
		&IPMTReport{},
	}
}
