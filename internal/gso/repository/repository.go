package repository

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("record not found")
)

// Repositories groups the GSO repositories.
type Repositories struct {
	User         *UserRepository
	Unit         *UnitRepository
	Request      *RequestRepository
	Inventory    *InventoryRepository
	Indicator    *IndicatorRepository
	WAR          *WARRepository
	IPMT         *IPMTRepository
	Feedback     *FeedbackRepository
	Notification *NotificationRepository
	ActivityLog  *ActivityLogRepository
}

// NewRepositories builds every repository on the same connection.
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:         NewUserRepository(db),
		Unit:         NewUnitRepository(db),
		Request:      NewRequestRepository(db),
		Inventory:    NewInventoryRepository(db),
		Indicator:    NewIndicatorRepository(db),
		WAR:          NewWARRepository(db),
		IPMT:         NewIPMTRepository(db),
		Feedback:     NewFeedbackRepository(db),
		Notification: NewNotificationRepository(db),
		ActivityLog:  NewActivityLogRepository(db),
	}
}

// NewID returns a 32 character identifier.
func NewID() string {
	return uuid.New().String()[:32]
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func paginate(page, pageSize int) (offset, limit int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 200 {
		pageSize = 200
	}
	return (page - 1) * pageSize, pageSize
}
