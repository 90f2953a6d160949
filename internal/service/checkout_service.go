package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/iliyamo/express-reservations/internal/clock"
	"github.com/iliyamo/express-reservations/internal/model"
	"github.com/iliyamo/express-reservations/internal/repository"
	"github.com/iliyamo/express-reservations/internal/tasks"
	"github.com/iliyamo/express-reservations/internal/telemetry"
	"github.com/iliyamo/express-reservations/internal/utils"
)

// CheckoutInput is a simulated card payment.  Card data is only checked,
// never stored or charged.
type CheckoutInput struct {
	ReservationID string
	CardNumber    string
	CardHolder    string
	Expiration    string
	CVV           string
}

// CheckoutResult describes a completed payment.
type CheckoutResult struct {
	ReservationID string                  `json:"reservationId"`
	Status        model.ReservationStatus `json:"status"`
	TotalPaid     model.Money             `json:"totalPaid"`
	PaidAt        time.Time               `json:"paidAt"`
}

// CheckoutService moves reservations from PENDING to PAID exactly once and
// hands ticket delivery to the dispatcher.
type CheckoutService struct {
	store      Store
	dispatcher Dispatcher
	clock      clock.Clock
	log        *zap.Logger
}

func NewCheckoutService(store Store, dispatcher Dispatcher, clk clock.Clock, log *zap.Logger) *CheckoutService {
	return &CheckoutService{
		store:      store,
		dispatcher: dispatcher,
		clock:      clk,
		log:        log.Named("checkout"),
	}
}

// Pay validates the card and marks the reservation PAID.  Errors, in
// order: ErrReservationNotFound, ErrAlreadyPaid, ErrInvalidCard.  The
// state change is a conditional update, so of two concurrent payments for
// the same reservation exactly one succeeds and the other gets
// ErrAlreadyPaid.  The post-payment task is dispatched after the update
// and its fate never affects the result.
func (s *CheckoutService) Pay(ctx context.Context, in CheckoutInput) (CheckoutResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "checkout.pay", attribute.String("reservation.id", in.ReservationID))
	defer span.End()

	id := strings.TrimSpace(in.ReservationID)
	res, err := s.store.GetReservation(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrReservationNotFound) {
			return CheckoutResult{}, ErrReservationNotFound
		}
		telemetry.RecordError(span, err)
		return CheckoutResult{}, fmt.Errorf("checkout: %w", err)
	}
	if res.Status == model.StatusPaid {
		return CheckoutResult{}, ErrAlreadyPaid
	}
	if !utils.IsValidCard(in.CardNumber) {
		return CheckoutResult{}, ErrInvalidCard
	}

	paidAt := s.clock.Now()
	ok, err := s.store.MarkPaid(ctx, res.ID, paidAt)
	if err != nil {
		telemetry.RecordError(span, err)
		return CheckoutResult{}, fmt.Errorf("checkout: %w", err)
	}
	if !ok {
		return CheckoutResult{}, ErrAlreadyPaid
	}

	res.Status = model.StatusPaid
	res.PaidAt = &paidAt
	s.log.Info("reservation paid",
		zap.String("reservation_id", res.ID),
		zap.String("total", res.Total.String()))

	s.dispatcher.Dispatch(context.WithoutCancel(ctx), tasks.NewPostPaymentTask(res))

	return CheckoutResult{
		ReservationID: res.ID,
		Status:        res.Status,
		TotalPaid:     res.Total,
		PaidAt:        paidAt,
	}, nil
}
