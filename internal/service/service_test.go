package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/express-reservations/internal/clock"
	"github.com/iliyamo/express-reservations/internal/model"
	"github.com/iliyamo/express-reservations/internal/repository"
	"github.com/iliyamo/express-reservations/internal/tasks"
	"github.com/iliyamo/express-reservations/internal/ticket"
)

var testNow = time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)

type recordingDispatcher struct {
	mu    sync.Mutex
	tasks []tasks.PostPaymentTask
	ctxs  []context.Context
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, task tasks.PostPaymentTask) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tasks = append(d.tasks, task)
	d.ctxs = append(d.ctxs, ctx)
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.tasks)
}

type fixture struct {
	store        *repository.MemoryReservationRepo
	reservations *ReservationService
	checkout     *CheckoutService
	availability *AvailabilityService
	dispatcher   *recordingDispatcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repository.NewMemoryReservationRepo(model.DefaultCategories())
	clk := clock.NewFixed(testNow)
	d := &recordingDispatcher{}
	log := zap.NewNop()
	return &fixture{
		store:        store,
		reservations: NewReservationService(store, ticket.NewPDFRenderer(), clk, log),
		checkout:     NewCheckoutService(store, d, clk, log),
		availability: NewAvailabilityService(store),
		dispatcher:   d,
	}
}

func basic(qty int) CreateReservationInput {
	return CreateReservationInput{
		Email:     "guest@example.com",
		Category:  "BASIC",
		StartDate: "2026-01-10",
		EndDate:   "2026-01-12",
		Quantity:  qty,
	}
}

const validCard = "4242 4242 4242 4242"
