package dashboard

import (
	"context"

	"hostdesk/internal/models"
)

// API is the reservations service the dashboard reads and mutates.
type API interface {
	ListReservations(ctx context.Context, date string) ([]models.Reservation, error)
	ListTables(ctx context.Context) ([]models.Table, error)
	FinishReservation(ctx context.Context, tableID int64) error
}

// Confirmer asks the host a yes/no question.
type Confirmer interface {
	Confirm(ctx context.Context, message string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, message string) bool

func (f ConfirmFunc) Confirm(ctx context.Context, message string) bool { return f(ctx, message) }

// Navigator moves the host to another dashboard location.
type Navigator interface {
	Push(location string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(location string)

func (f NavigatorFunc) Push(location string) { f(location) }

// EventPublisher receives host actions such as finished tables.
type EventPublisher interface {
	PublishJSON(eventType string, payload any) error
}
