package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iliyamo/express-reservations/internal/model"
)

// PostgresReservationRepo stores categories and reservations in PostgreSQL
// through a pgx connection pool.
type PostgresReservationRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresReservationRepo(pool *pgxpool.Pool) *PostgresReservationRepo {
	return &PostgresReservationRepo{pool: pool}
}

type pgTxKey struct{}

// WithTx runs fn in a READ COMMITTED transaction carried in the context.
func (r *PostgresReservationRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if pgTxFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	txCtx := context.WithValue(ctx, pgTxKey{}, tx)
	if err := fn(txCtx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func pgTxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(pgTxKey{}).(pgx.Tx)
	return tx
}

func (r *PostgresReservationRepo) queryRow(ctx context.Context, query string, args ...any) pgx.Row {
	if tx := pgTxFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, query, args...)
	}
	return r.pool.QueryRow(ctx, query, args...)
}

func (r *PostgresReservationRepo) query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	if tx := pgTxFromContext(ctx); tx != nil {
		return tx.Query(ctx, query, args...)
	}
	return r.pool.Query(ctx, query, args...)
}

func (r *PostgresReservationRepo) exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	if tx := pgTxFromContext(ctx); tx != nil {
		return tx.Exec(ctx, query, args...)
	}
	return r.pool.Exec(ctx, query, args...)
}

func (r *PostgresReservationRepo) ListCategories(ctx context.Context) ([]model.Category, error) {
	const query = `SELECT id, name, capacity, price_cents FROM categories ORDER BY id`
	rows, err := r.query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []model.Category
	for rows.Next() {
		var (
			c     model.Category
			price int64
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.Capacity, &price); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.Price = model.Money(price)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return out, nil
}

func (r *PostgresReservationRepo) GetCategoryForUpdate(ctx context.Context, name string) (model.Category, error) {
	const query = `SELECT id, name, capacity, price_cents FROM categories WHERE name = $1 FOR UPDATE`
	var (
		c     model.Category
		price int64
	)
	err := r.queryRow(ctx, query, name).Scan(&c.ID, &c.Name, &c.Capacity, &price)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Category{}, ErrCategoryNotFound
		}
		return model.Category{}, fmt.Errorf("get category for update: %w", err)
	}
	c.Price = model.Money(price)
	return c, nil
}

func (r *PostgresReservationRepo) SumReservedQuantity(ctx context.Context, categoryID int64, start, end time.Time, statuses []model.ReservationStatus) (int, error) {
	if len(statuses) == 0 {
		return 0, nil
	}
	const query = `
SELECT COALESCE(SUM(quantity), 0)
FROM reservations
WHERE category_id = $1 AND start_date < $2 AND end_date > $3 AND status = ANY($4)`

	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}
	var total int64
	if err := r.queryRow(ctx, query, categoryID, end.UTC(), start.UTC(), names).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum reserved quantity: %w", err)
	}
	return int(total), nil
}

func (r *PostgresReservationRepo) CreateReservation(ctx context.Context, res *model.Reservation) error {
	const query = `
INSERT INTO reservations (id, email, category_id, start_date, end_date, quantity, total_cents, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.exec(ctx, query,
		res.ID, res.Email, res.CategoryID, res.StartDate.UTC(), res.EndDate.UTC(),
		res.Quantity, int64(res.Total), string(res.Status), res.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("create reservation: %w", err)
	}
	return nil
}

func (r *PostgresReservationRepo) GetReservation(ctx context.Context, id string) (model.Reservation, error) {
	const query = `
SELECT r.id::text, r.email, r.category_id, c.name, r.start_date, r.end_date,
       r.quantity, r.total_cents, r.status, r.created_at, r.paid_at
FROM reservations r
JOIN categories c ON c.id = r.category_id
WHERE r.id = $1`

	var (
		res    model.Reservation
		total  int64
		status string
		paidAt *time.Time
	)
	err := r.queryRow(ctx, query, id).Scan(
		&res.ID, &res.Email, &res.CategoryID, &res.Category, &res.StartDate, &res.EndDate,
		&res.Quantity, &total, &status, &res.CreatedAt, &paidAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidUUID(err) {
			return model.Reservation{}, ErrReservationNotFound
		}
		return model.Reservation{}, fmt.Errorf("get reservation: %w", err)
	}
	res.Total = model.Money(total)
	res.Status = model.ReservationStatus(status)
	res.StartDate = res.StartDate.UTC()
	res.EndDate = res.EndDate.UTC()
	res.CreatedAt = res.CreatedAt.UTC()
	if paidAt != nil {
		t := paidAt.UTC()
		res.PaidAt = &t
	}
	return res, nil
}

func (r *PostgresReservationRepo) MarkPaid(ctx context.Context, id string, paidAt time.Time) (bool, error) {
	const query = `UPDATE reservations SET status = $1, paid_at = $2 WHERE id = $3 AND status = $4`
	tag, err := r.exec(ctx, query, string(model.StatusPaid), paidAt.UTC(), id, string(model.StatusPending))
	if err != nil {
		if isInvalidUUID(err) {
			return false, nil
		}
		return false, fmt.Errorf("mark reservation paid: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func isInvalidUUID(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "22P02"
}
