package repository

import (
	"context"

	"github.com/jekmagalaman/gso/internal/gso/entity"
	"gorm.io/gorm"
)

// ActivityLogRepository records status changes.
type ActivityLogRepository struct {
	db *gorm.DB
}

func NewActivityLogRepository(db *gorm.DB) *ActivityLogRepository {
	return &ActivityLogRepository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *ActivityLogRepository) WithTx(tx *gorm.DB) *ActivityLogRepository {
	return &ActivityLogRepository{db: tx}
}

func (r *ActivityLogRepository) Create(ctx context.Context, log *entity.ActivityLog) error {
	if log.ID == "" {
		log.ID = NewID()
	}
	return r.db.WithContext(ctx).Create(log).Error
}

// LogActivity records one entry.
func (r *ActivityLogRepository) LogActivity(ctx context.Context, entityType, entityID, action, fromStatus, toStatus, content, operatorID string) error {
	return r.Create(ctx, &entity.ActivityLog{
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		FromStatus: fromStatus,
		ToStatus:   toStatus,
		Content:    content,
		OperatorID: operatorID,
	})
}

func (r *ActivityLogRepository) FindByEntity(ctx context.Context, entityType, entityID string) ([]entity.ActivityLog, error) {
	var items []entity.ActivityLog
	err := r.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("created_at ASC").
		Find(&items).Error
	return items, err
}
