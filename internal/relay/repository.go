package relay

import (
	"context"
	"errors"
	"strings"
)

var ErrNotificationNotFound = errors.New("notification not found")

// ValidationError carries one message per rejected field.
type ValidationError struct {
	Details []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Details, "; ")
}

// Repository stores notifications in a log that keeps only the most recent
// entries. ListNotifications returns matches oldest first.
type Repository interface {
	CreateNotification(ctx context.Context, n Notification) (*Notification, error)
	GetNotificationByID(ctx context.Context, id string) (*Notification, error)
	ListNotifications(ctx context.Context, f Filter) ([]Notification, error)
}
