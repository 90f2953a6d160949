package service

import (
	"context"
	"time"

	"github.com/iliyamo/express-reservations/internal/model"
	"github.com/iliyamo/express-reservations/internal/tasks"
)

// Store is the persistence contract shared by every storage engine.
// Calls made with the context handed to a WithTx callback join that
// transaction.  GetCategoryForUpdate holds the category lock until the
// transaction ends.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	ListCategories(ctx context.Context) ([]model.Category, error)
	GetCategoryForUpdate(ctx context.Context, name string) (model.Category, error)
	SumReservedQuantity(ctx context.Context, categoryID int64, start, end time.Time, statuses []model.ReservationStatus) (int, error)
	CreateReservation(ctx context.Context, res *model.Reservation) error
	GetReservation(ctx context.Context, id string) (model.Reservation, error)
	MarkPaid(ctx context.Context, id string, paidAt time.Time) (bool, error)
}

// Dispatcher hands a post-payment task to background processing.  It must
// return promptly and never report delivery outcomes.
type Dispatcher interface {
	Dispatch(ctx context.Context, task tasks.PostPaymentTask)
}
