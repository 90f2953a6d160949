package service

import (
	"context"
	"fmt"

	"github.com/iliyamo/express-reservations/internal/model"
	"github.com/iliyamo/express-reservations/internal/telemetry"
	"github.com/iliyamo/express-reservations/internal/utils"
)

// CategoryAvailability is one row of the availability listing.
type CategoryAvailability struct {
	Category  string      `json:"category"`
	Capacity  int         `json:"capacity"`
	Reserved  int         `json:"reserved"`
	Available int         `json:"available"`
	Price     model.Money `json:"price"`
}

// AvailabilityService lists per-category availability over a date range.
// It counts the same statuses as the create path.
type AvailabilityService struct {
	store  Store
	ledger *Ledger
}

func NewAvailabilityService(store Store) *AvailabilityService {
	return &AvailabilityService{store: store, ledger: NewLedger(store)}
}

// Check returns one row per category, in category order.
func (s *AvailabilityService) Check(ctx context.Context, startDate, endDate string) ([]CategoryAvailability, error) {
	start, end, err := utils.ParseRange(startDate, endDate)
	if err != nil {
		return nil, ErrInvalidDateRange
	}

	ctx, span := telemetry.StartSpan(ctx, "availability.check")
	defer span.End()

	cats, err := s.store.ListCategories(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("availability: %w", err)
	}

	out := make([]CategoryAvailability, 0, len(cats))
	for _, c := range cats {
		available, reserved, err := s.ledger.Available(ctx, c, start, end)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, fmt.Errorf("availability for %s: %w", c.Name, err)
		}
		out = append(out, CategoryAvailability{
			Category:  c.Name,
			Capacity:  c.Capacity,
			Reserved:  reserved,
			Available: available,
			Price:     c.Price,
		})
	}
	return out, nil
}
