package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/express-reservations/internal/model"
)

// MemoryReservationRepo keeps categories and reservations in process
// memory.  It is used for local runs (DB_DRIVER=memory) and by the service
// tests.  WithTx serialises atomic sections on a single mutex and buffers
// their writes until fn returns nil.
type MemoryReservationRepo struct {
	section sync.Mutex

	mu           sync.RWMutex
	categories   []model.Category
	reservations map[string]model.Reservation
}

// NewMemoryReservationRepo returns a repository seeded with categories.
// Category ids are assigned in order starting at 1.
func NewMemoryReservationRepo(categories []model.Category) *MemoryReservationRepo {
	seeded := make([]model.Category, len(categories))
	for i, c := range categories {
		c.ID = int64(i + 1)
		seeded[i] = c
	}
	return &MemoryReservationRepo{
		categories:   seeded,
		reservations: make(map[string]model.Reservation),
	}
}

type memTxKey struct{}

type memTx struct {
	created []model.Reservation
	paid    map[string]time.Time
}

func memTxFromContext(ctx context.Context) *memTx {
	tx, _ := ctx.Value(memTxKey{}).(*memTx)
	return tx
}

func (r *MemoryReservationRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if memTxFromContext(ctx) != nil {
		return fn(ctx)
	}

	r.section.Lock()
	defer r.section.Unlock()

	tx := &memTx{paid: make(map[string]time.Time)}
	if err := fn(context.WithValue(ctx, memTxKey{}, tx)); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, res := range tx.created {
		r.reservations[res.ID] = res
	}
	for id, at := range tx.paid {
		r.markPaidLocked(id, at)
	}
	return nil
}

func (r *MemoryReservationRepo) ListCategories(ctx context.Context) ([]model.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Category, len(r.categories))
	copy(out, r.categories)
	return out, nil
}

// GetCategoryForUpdate returns the named category.  The lock it stands for
// is the section mutex held by WithTx.
func (r *MemoryReservationRepo) GetCategoryForUpdate(ctx context.Context, name string) (model.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.categories {
		if c.Name == name {
			return c, nil
		}
	}
	return model.Category{}, ErrCategoryNotFound
}

func (r *MemoryReservationRepo) SumReservedQuantity(ctx context.Context, categoryID int64, start, end time.Time, statuses []model.ReservationStatus) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := 0
	count := func(res model.Reservation) {
		if res.CategoryID == categoryID && res.HoldsCapacity(statuses) && res.Overlaps(start, end) {
			total += res.Quantity
		}
	}
	for _, res := range r.reservations {
		count(res)
	}
	if tx := memTxFromContext(ctx); tx != nil {
		for _, res := range tx.created {
			count(res)
		}
	}
	return total, nil
}

func (r *MemoryReservationRepo) CreateReservation(ctx context.Context, res *model.Reservation) error {
	if tx := memTxFromContext(ctx); tx != nil {
		tx.created = append(tx.created, *res)
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reservations[res.ID] = *res
	return nil
}

func (r *MemoryReservationRepo) GetReservation(ctx context.Context, id string) (model.Reservation, error) {
	if tx := memTxFromContext(ctx); tx != nil {
		for _, res := range tx.created {
			if res.ID == id {
				return r.withCategoryName(res), nil
			}
		}
	}
	r.mu.RLock()
	res, ok := r.reservations[id]
	r.mu.RUnlock()
	if !ok {
		return model.Reservation{}, ErrReservationNotFound
	}
	return r.withCategoryName(res), nil
}

func (r *MemoryReservationRepo) MarkPaid(ctx context.Context, id string, paidAt time.Time) (bool, error) {
	if tx := memTxFromContext(ctx); tx != nil {
		r.mu.RLock()
		res, ok := r.reservations[id]
		r.mu.RUnlock()
		if _, already := tx.paid[id]; !ok || already || res.Status != model.StatusPending {
			return false, nil
		}
		tx.paid[id] = paidAt
		return true, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.markPaidLocked(id, paidAt), nil
}

func (r *MemoryReservationRepo) markPaidLocked(id string, paidAt time.Time) bool {
	res, ok := r.reservations[id]
	if !ok || res.Status != model.StatusPending {
		return false
	}
	at := paidAt.UTC()
	res.Status = model.StatusPaid
	res.PaidAt = &at
	r.reservations[id] = res
	return true
}

// Reservations returns a snapshot of all stored reservations ordered by
// creation time.
func (r *MemoryReservationRepo) Reservations() []model.Reservation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Reservation, 0, len(r.reservations))
	for _, res := range r.reservations {
		out = append(out, r.withCategoryNameLocked(res))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r *MemoryReservationRepo) withCategoryName(res model.Reservation) model.Reservation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.withCategoryNameLocked(res)
}

func (r *MemoryReservationRepo) withCategoryNameLocked(res model.Reservation) model.Reservation {
	for _, c := range r.categories {
		if c.ID == res.CategoryID {
			res.Category = c.Name
			break
		}
	}
	return res
}
