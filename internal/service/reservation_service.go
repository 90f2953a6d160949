// Package service holds the reservation core: capacity accounting, the
// atomic create path, the checkout state machine and the availability
// listing.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/iliyamo/express-reservations/internal/clock"
	"github.com/iliyamo/express-reservations/internal/model"
	"github.com/iliyamo/express-reservations/internal/repository"
	"github.com/iliyamo/express-reservations/internal/telemetry"
	"github.com/iliyamo/express-reservations/internal/ticket"
	"github.com/iliyamo/express-reservations/internal/utils"
)

// CreateReservationInput is a guest's booking request.  Dates are
// YYYY-MM-DD or RFC3339.
type CreateReservationInput struct {
	Email     string
	Category  string
	StartDate string
	EndDate   string
	Quantity  int
}

// ReservationService creates reservations without overbooking and serves
// reservation lookups and tickets.
type ReservationService struct {
	store    Store
	ledger   *Ledger
	renderer ticket.Renderer
	clock    clock.Clock
	log      *zap.Logger
	newID    func() string
}

type ReservationServiceOption func(*ReservationService)

// WithIDGenerator replaces the UUID v4 generator.
func WithIDGenerator(fn func() string) ReservationServiceOption {
	return func(s *ReservationService) {
		if fn != nil {
			s.newID = fn
		}
	}
}

func NewReservationService(store Store, renderer ticket.Renderer, clk clock.Clock, log *zap.Logger, opts ...ReservationServiceOption) *ReservationService {
	s := &ReservationService{
		store:    store,
		ledger:   NewLedger(store),
		renderer: renderer,
		clock:    clk,
		log:      log.Named("reservations"),
		newID:    func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates in and, inside one atomic section, locks the category,
// checks availability and inserts a PENDING reservation.  Checks run in
// order: quantity, dates, category, capacity.
func (s *ReservationService) Create(ctx context.Context, in CreateReservationInput) (model.Reservation, error) {
	ctx, span := telemetry.StartSpan(ctx, "reservation.create",
		attribute.String("category", in.Category),
		attribute.Int("quantity", in.Quantity))
	defer span.End()

	if in.Quantity < 1 {
		return model.Reservation{}, ErrInvalidQuantity
	}
	start, end, err := utils.ParseRange(in.StartDate, in.EndDate)
	if err != nil {
		return model.Reservation{}, ErrInvalidDateRange
	}
	category := strings.ToUpper(strings.TrimSpace(in.Category))
	if category == "" {
		return model.Reservation{}, ErrInvalidCategory
	}

	var created model.Reservation
	err = s.store.WithTx(ctx, func(txCtx context.Context) error {
		cat, err := s.store.GetCategoryForUpdate(txCtx, category)
		if err != nil {
			if errors.Is(err, repository.ErrCategoryNotFound) {
				return ErrInvalidCategory
			}
			return err
		}

		available, reserved, err := s.ledger.Available(txCtx, cat, start, end)
		if err != nil {
			return err
		}
		if in.Quantity > available {
			s.log.Info("reservation rejected, not enough availability",
				zap.String("category", cat.Name),
				zap.Int("requested", in.Quantity),
				zap.Int("reserved", reserved),
				zap.Int("capacity", cat.Capacity))
			return ErrInsufficientCapacity
		}

		res := model.Reservation{
			ID:         s.newID(),
			Email:      strings.TrimSpace(in.Email),
			CategoryID: cat.ID,
			Category:   cat.Name,
			StartDate:  start,
			EndDate:    end,
			Quantity:   in.Quantity,
			Total:      cat.Price.Mul(in.Quantity),
			Status:     model.StatusPending,
			CreatedAt:  s.clock.Now(),
		}
		if err := s.store.CreateReservation(txCtx, &res); err != nil {
			return err
		}
		created = res
		return nil
	})
	if err != nil {
		if KindOf(err) == KindInternal {
			telemetry.RecordError(span, err)
			return model.Reservation{}, fmt.Errorf("create reservation: %w", err)
		}
		return model.Reservation{}, err
	}

	s.log.Info("reservation created",
		zap.String("reservation_id", created.ID),
		zap.String("category", created.Category),
		zap.Int("quantity", created.Quantity),
		zap.String("total", created.Total.String()))
	return created, nil
}

// Get returns the reservation with id.
func (s *ReservationService) Get(ctx context.Context, id string) (model.Reservation, error) {
	res, err := s.store.GetReservation(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, repository.ErrReservationNotFound) {
			return model.Reservation{}, ErrReservationNotFound
		}
		return model.Reservation{}, fmt.Errorf("get reservation: %w", err)
	}
	return res, nil
}

// Ticket renders the PDF ticket of an existing reservation on demand.
// Nothing is stored.
func (s *ReservationService) Ticket(ctx context.Context, id string) ([]byte, error) {
	ctx, span := telemetry.StartSpan(ctx, "reservation.ticket", attribute.String("reservation.id", id))
	defer span.End()

	res, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	doc, err := s.renderer.Render(ticket.FieldsFrom(res))
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("ticket for %s: %w", res.ID, err)
	}
	return doc, nil
}
