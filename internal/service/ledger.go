package service

import (
	"context"
	"time"

	"github.com/iliyamo/express-reservations/internal/model"
)

// QuantityReader is the read side of the store used by the ledger.
type QuantityReader interface {
	SumReservedQuantity(ctx context.Context, categoryID int64, start, end time.Time, statuses []model.ReservationStatus) (int, error)
}

// Ledger answers capacity questions for a category over a half-open
// range.  It reads through whatever context it is given, so inside an
// atomic section it sees that section's view.
type Ledger struct {
	store QuantityReader
}

func NewLedger(store QuantityReader) *Ledger {
	return &Ledger{store: store}
}

// ReservedQuantity sums the quantity of reservations of the category that
// intersect [start, end) and have one of statuses.
func (l *Ledger) ReservedQuantity(ctx context.Context, categoryID int64, start, end time.Time, statuses []model.ReservationStatus) (int, error) {
	return l.store.SumReservedQuantity(ctx, categoryID, start, end, statuses)
}

// Available returns capacity minus capacity-holding reservations, never
// below zero, together with the reserved quantity.
func (l *Ledger) Available(ctx context.Context, cat model.Category, start, end time.Time) (available, reserved int, err error) {
	reserved, err = l.ReservedQuantity(ctx, cat.ID, start, end, model.CapacityHoldingStatuses)
	if err != nil {
		return 0, 0, err
	}
	available = cat.Capacity - reserved
	if available < 0 {
		available = 0
	}
	return available, reserved, nil
}
