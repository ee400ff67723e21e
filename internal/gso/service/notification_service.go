package service

import (
	"context"
	"fmt"

	"github.com/jekmagalaman/gso/internal/gso/entity"
	"github.com/jekmagalaman/gso/internal/gso/repository"
	"github.com/jekmagalaman/gso/internal/gso/sse"
	"go.uber.org/zap"
)

// NotificationService stores in-app notifications and pushes them live.
// Delivery is best effort: failures are logged, never returned to the
// operation that triggered them.
type NotificationService struct {
	repo     *repository.NotificationRepository
	userRepo *repository.UserRepository
	hub      *sse.Hub
	logger   *zap.Logger
}

func NewNotificationService(repo *repository.NotificationRepository, userRepo *repository.UserRepository, hub *sse.Hub, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{repo: repo, userRepo: userRepo, hub: hub, logger: logger}
}

// Notify sends message to each user.
func (s *NotificationService) Notify(ctx context.Context, userIDs []string, requestID, message string) {
	if s == nil {
		return
	}
	var reqRef *string
	if requestID != "" {
		reqRef = &requestID
	}
	seen := make(map[string]bool, len(userIDs))
	for _, uid := range userIDs {
		if uid == "" || seen[uid] {
			continue
		}
		seen[uid] = true

		n := &entity.Notification{UserID: uid, RequestID: reqRef, Message: message}
		if err := s.repo.Create(ctx, n); err != nil {
			s.logger.Warn("store notification failed", zap.String("user_id", uid), zap.Error(err))
			continue
		}
		if s.hub != nil {
			s.hub.PublishJSON(uid, sse.EventNotification, n)
		}
	}
}

// RequestChanged announces a committed status change to every connected client.
func (s *NotificationService) RequestChanged(requestID, unitID, status string) {
	if s == nil || s.hub == nil {
		return
	}
	s.hub.BroadcastJSON(sse.EventRequestUpdate, map[string]string{
		"request_id": requestID,
		"unit_id":    unitID,
		"status":     status,
	})
}

// NotifyRole sends message to every active user with role, limited to unitID when set.
func (s *NotificationService) NotifyRole(ctx context.Context, role entity.Role, unitID, requestID, message string) {
	if s == nil {
		return
	}
	users, err := s.userRepo.List(ctx, repository.UserQuery{Role: role, UnitID: unitID})
	if err != nil {
		s.logger.Warn("load notification recipients failed", zap.String("role", string(role)), zap.Error(err))
		return
	}
	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	s.Notify(ctx, ids, requestID, message)
}

// List returns the actor's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, actor Actor, unreadOnly bool) ([]entity.Notification, error) {
	items, err := s.repo.ListByUser(ctx, actor.UserID, unreadOnly, 100)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return items, nil
}

// MarkRead marks one of the actor's notifications read.
func (s *NotificationService) MarkRead(ctx context.Context, actor Actor, id string) error {
	ok, err := s.repo.MarkRead(ctx, id, actor.UserID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if !ok {
		return &NotFoundError{Entity: "notification", ID: id}
	}
	return nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, actor Actor) error {
	if err := s.repo.MarkAllRead(ctx, actor.UserID); err != nil {
		return fmt.Errorf("mark notifications read: %w", err)
	}
	return nil
}
