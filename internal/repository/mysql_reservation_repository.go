package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/express-reservations/internal/model"
)

// MySQLReservationRepo stores categories and reservations in MySQL.  All
// DATETIME columns are written and read in UTC (the DSN sets loc=UTC).
type MySQLReservationRepo struct {
	db *sql.DB
}

// NewMySQLReservationRepo returns a repository bound to the given database.
func NewMySQLReservationRepo(db *sql.DB) *MySQLReservationRepo {
	return &MySQLReservationRepo{db: db}
}

// WithTx runs fn in a transaction.  Repository calls made with the context
// passed to fn join that transaction.
func (r *MySQLReservationRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withSQLTx(ctx, r.db, fn)
}

func (r *MySQLReservationRepo) conn(ctx context.Context) dbtx {
	if tx := sqlTxFromContext(ctx); tx != nil {
		return tx
	}
	return r.db
}

// ListCategories returns every category ordered by id.
func (r *MySQLReservationRepo) ListCategories(ctx context.Context) ([]model.Category, error) {
	const q = `SELECT id, name, capacity, price_cents FROM categories ORDER BY id`
	rows, err := r.conn(ctx).QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []model.Category
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Capacity, &c.Price); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return out, nil
}

// GetCategoryForUpdate loads a category by name and, inside a transaction,
// holds an exclusive row lock on it until commit.  Concurrent creators for
// the same category queue on this lock.
func (r *MySQLReservationRepo) GetCategoryForUpdate(ctx context.Context, name string) (model.Category, error) {
	const q = `SELECT id, name, capacity, price_cents FROM categories WHERE name = ? FOR UPDATE`
	var c model.Category
	err := r.conn(ctx).QueryRowContext(ctx, q, name).Scan(&c.ID, &c.Name, &c.Capacity, &c.Price)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Category{}, ErrCategoryNotFound
		}
		return model.Category{}, fmt.Errorf("get category for update: %w", err)
	}
	return c, nil
}

// SumReservedQuantity returns the total quantity held by reservations of
// the category whose interval intersects [start, end) and whose status is
// one of statuses.
func (r *MySQLReservationRepo) SumReservedQuantity(ctx context.Context, categoryID int64, start, end time.Time, statuses []model.ReservationStatus) (int, error) {
	if len(statuses) == 0 {
		return 0, nil
	}
	args := make([]any, 0, 3+len(statuses))
	args = append(args, categoryID, end.UTC(), start.UTC())
	for _, s := range statuses {
		args = append(args, string(s))
	}
	q := `SELECT COALESCE(SUM(quantity), 0) FROM reservations
WHERE category_id = ? AND start_date < ? AND end_date > ? AND status IN (` + placeholders(len(statuses)) + `)`

	var total int
	if err := r.conn(ctx).QueryRowContext(ctx, q, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum reserved quantity: %w", err)
	}
	return total, nil
}

// CreateReservation inserts res.  The caller assigns the id, total, status
// and timestamps.
func (r *MySQLReservationRepo) CreateReservation(ctx context.Context, res *model.Reservation) error {
	const q = `INSERT INTO reservations
(id, email, category_id, start_date, end_date, quantity, total_cents, status, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.conn(ctx).ExecContext(ctx, q,
		res.ID, res.Email, res.CategoryID, res.StartDate.UTC(), res.EndDate.UTC(),
		res.Quantity, int64(res.Total), string(res.Status), res.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("create reservation: %w", err)
	}
	return nil
}

// GetReservation returns the reservation with the given id together with
// its category name.
func (r *MySQLReservationRepo) GetReservation(ctx context.Context, id string) (model.Reservation, error) {
	const q = `SELECT r.id, r.email, r.category_id, c.name, r.start_date, r.end_date,
       r.quantity, r.total_cents, r.status, r.created_at, r.paid_at
FROM reservations r
JOIN categories c ON c.id = r.category_id
WHERE r.id = ?`

	var (
		res    model.Reservation
		status string
		paidAt sql.NullTime
	)
	err := r.conn(ctx).QueryRowContext(ctx, q, id).Scan(
		&res.ID, &res.Email, &res.CategoryID, &res.Category, &res.StartDate, &res.EndDate,
		&res.Quantity, &res.Total, &status, &res.CreatedAt, &paidAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Reservation{}, ErrReservationNotFound
		}
		return model.Reservation{}, fmt.Errorf("get reservation: %w", err)
	}
	res.Status = model.ReservationStatus(status)
	if paidAt.Valid {
		t := paidAt.Time.UTC()
		res.PaidAt = &t
	}
	return res, nil
}

// MarkPaid moves a PENDING reservation to PAID.  It reports false when no
// row was updated, i.e. the reservation does not exist or is already paid.
func (r *MySQLReservationRepo) MarkPaid(ctx context.Context, id string, paidAt time.Time) (bool, error) {
	const q = `UPDATE reservations SET status = ?, paid_at = ? WHERE id = ? AND status = ?`
	result, err := r.conn(ctx).ExecContext(ctx, q, string(model.StatusPaid), paidAt.UTC(), id, string(model.StatusPending))
	if err != nil {
		return false, fmt.Errorf("mark reservation paid: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark reservation paid: %w", err)
	}
	return n == 1, nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
