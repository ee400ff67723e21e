package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jekmagalaman/gso/internal/gso/entity"
	"github.com/jekmagalaman/gso/internal/gso/repository"
)

// FeedbackService records requestor satisfaction surveys.
type FeedbackService struct {
	repo    *repository.FeedbackRepository
	reqRepo *repository.RequestRepository
	now     func() time.Time
}

func NewFeedbackService(repo *repository.FeedbackRepository, reqRepo *repository.RequestRepository) *FeedbackService {
	return &FeedbackService{repo: repo, reqRepo: reqRepo, now: utcNow}
}

// FeedbackInput is the survey form. SQD answers are optional, 1 to 5.
type FeedbackInput struct {
	CC1         string `json:"cc1" validate:"max=10"`
	CC2         string `json:"cc2" validate:"max=10"`
	CC3         string `json:"cc3" validate:"max=10"`
	SQD1        *int   `json:"sqd1" validate:"omitempty,min=1,max=5"`
	SQD2        *int   `json:"sqd2" validate:"omitempty,min=1,max=5"`
	SQD3        *int   `json:"sqd3" validate:"omitempty,min=1,max=5"`
	SQD4        *int   `json:"sqd4" validate:"omitempty,min=1,max=5"`
	SQD5        *int   `json:"sqd5" validate:"omitempty,min=1,max=5"`
	SQD6        *int   `json:"sqd6" validate:"omitempty,min=1,max=5"`
	SQD7        *int   `json:"sqd7" validate:"omitempty,min=1,max=5"`
	SQD8        *int   `json:"sqd8" validate:"omitempty,min=1,max=5"`
	SQD9        *int   `json:"sqd9" validate:"omitempty,min=1,max=5"`
	Suggestions string `json:"suggestions"`
}

// Submit stores the requestor's feedback on a completed request, once.
func (s *FeedbackService) Submit(ctx context.Context, actor Actor, requestID string, input FeedbackInput) (*entity.Feedback, error) {
	if err := authorize(actor, ActionSubmitFeedback); err != nil {
		return nil, err
	}
	req, err := s.reqRepo.FindByID(ctx, requestID)
	if err != nil {
		return nil, lookupErr(err, "request", requestID)
	}
	if err := requireOwner(actor, ActionSubmitFeedback, req.RequestorID); err != nil {
		return nil, err
	}
	if req.Status != entity.RequestStatusCompleted {
		return nil, &IllegalTransitionError{Action: ActionSubmitFeedback, From: req.Status}
	}
	if err := validateStruct(input); err != nil {
		return nil, err
	}
	if _, err := s.repo.FindByRequestID(ctx, requestID); err == nil {
		return nil, validationErr("request_id", "feedback was already submitted")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("load feedback: %w", err)
	}

	fb := &entity.Feedback{
		RequestID:     requestID,
		UserID:        actor.UserID,
		CC1:           strings.TrimSpace(input.CC1),
		CC2:           strings.TrimSpace(input.CC2),
		CC3:           strings.TrimSpace(input.CC3),
		SQD1:          input.SQD1,
		SQD2:          input.SQD2,
		SQD3:          input.SQD3,
		SQD4:          input.SQD4,
		SQD5:          input.SQD5,
		SQD6:          input.SQD6,
		SQD7:          input.SQD7,
		SQD8:          input.SQD8,
		SQD9:          input.SQD9,
		Suggestions:   strings.TrimSpace(input.Suggestions),
		DateSubmitted: s.now(),
	}
	fb.ComputeAverage()

	if err := s.repo.Create(ctx, fb); err != nil {
		return nil, fmt.Errorf("create feedback: %w", err)
	}
	return fb, nil
}

// Get returns the feedback of a request to its requestor or an overseer.
func (s *FeedbackService) Get(ctx context.Context, actor Actor, requestID string) (*entity.Feedback, error) {
	req, err := s.reqRepo.FindByID(ctx, requestID)
	if err != nil {
		return nil, lookupErr(err, "request", requestID)
	}
	if !isOverseer(actor) {
		if err := requireOwner(actor, ActionViewFeedback, req.RequestorID); err != nil {
			return nil, err
		}
	}
	fb, err := s.repo.FindByRequestID(ctx, requestID)
	if err != nil {
		return nil, lookupErr(err, "feedback", requestID)
	}
	return fb, nil
}

// FeedbackFilter narrows List. Year and Month apply together.
type FeedbackFilter struct {
	UnitID string
	Year   int
	Month  int
}

func (s *FeedbackService) List(ctx context.Context, actor Actor, f FeedbackFilter) ([]entity.Feedback, error) {
	if err := authorize(actor, ActionViewFeedback); err != nil {
		return nil, err
	}
	q := repository.FeedbackQuery{UnitID: f.UnitID}
	if f.Month != 0 {
		if f.Month < 1 || f.Month > 12 || f.Year < 1 {
			return nil, validationErr("month", "year and month 1-12 are required together")
		}
		from, to := MonthRange(f.Year, f.Month)
		q.From, q.To = &from, &to
	}
	items, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	return items, nil
}
