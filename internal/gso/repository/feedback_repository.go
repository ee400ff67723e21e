package repository

import (
	"context"
	"time"

	"github.com/jekmagalaman/gso/internal/gso/entity"
	"gorm.io/gorm"
)

// FeedbackRepository stores requestor satisfaction surveys.
type FeedbackRepository struct {
	db *gorm.DB
}

func NewFeedbackRepository(db *gorm.DB) *FeedbackRepository {
	return &FeedbackRepository{db: db}
}

func (r *FeedbackRepository) Create(ctx context.Context, fb *entity.Feedback) error {
	if fb.ID == "" {
		fb.ID = NewID()
	}
	return r.db.WithContext(ctx).Create(fb).Error
}

func (r *FeedbackRepository) FindByRequestID(ctx context.Context, requestID string) (*entity.Feedback, error) {
	var fb entity.Feedback
	if err := r.db.WithContext(ctx).Where("request_id = ?", requestID).First(&fb).Error; err != nil {
		return nil, notFound(err)
	}
	return &fb, nil
}

// FeedbackQuery filters List. Month bounds date_submitted as [From, To).
type FeedbackQuery struct {
	UnitID string
	From   *time.Time
	To     *time.Time
}

func (r *FeedbackRepository) List(ctx context.Context, q FeedbackQuery) ([]entity.Feedback, error) {
	var items []entity.Feedback
	query := r.db.WithContext(ctx).Model(&entity.Feedback{})
	if q.UnitID != "" {
		query = query.Where("request_id IN (?)",
			r.db.Model(&entity.ServiceRequest{}).Select("id").Where("unit_id = ?", q.UnitID))
	}
	if q.From != nil {
		query = query.Where("date_submitted >= ?", *q.From)
	}
	if q.To != nil {
		query = query.Where("date_submitted < ?", *q.To)
	}
	err := query.Order("date_submitted DESC").Find(&items).Error
	return items, err
}
