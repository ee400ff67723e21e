package service

import (
	"errors"
	"fmt"

	"github.com/jekmagalaman/gso/internal/gso/repository"
)

// ValidationError reports malformed input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// AuthorizationError reports a wrong role, unit or ownership for an action.
type AuthorizationError struct {
	Action Action
	Reason string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("not allowed to %s: %s", e.Action, e.Reason)
}

// IllegalTransitionError reports an action attempted from the wrong status.
type IllegalTransitionError struct {
	Action Action
	From   string
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("cannot %s a request in status %q", e.Action, e.From)
}

// InsufficientStockError reports a reservation that would overdraw an item.
type InsufficientStockError struct {
	ItemID    string
	ItemName  string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", e.ItemName, e.Requested, e.Available)
}

// NotFoundError reports a missing referenced record.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func validationErr(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

func forbidden(action Action, reason string) error {
	return &AuthorizationError{Action: action, Reason: reason}
}

// lookupErr turns repository.ErrNotFound into a NotFoundError and wraps the rest.
func lookupErr(err error, entityName, id string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return &NotFoundError{Entity: entityName, ID: id}
	}
	return fmt.Errorf("load %s: %w", entityName, err)
}
