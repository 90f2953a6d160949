package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iliyamo/express-reservations/internal/model"
)

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS categories (
  id          BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
  name        VARCHAR(32)     NOT NULL,
  capacity    INT             NOT NULL,
  price_cents BIGINT          NOT NULL,
  UNIQUE KEY uq_categories_name (name)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS reservations (
  id          CHAR(36)        NOT NULL PRIMARY KEY,
  email       VARCHAR(255)    NOT NULL,
  category_id BIGINT UNSIGNED NOT NULL,
  start_date  DATETIME        NOT NULL,
  end_date    DATETIME        NOT NULL,
  quantity    INT             NOT NULL,
  total_cents BIGINT          NOT NULL,
  status      ENUM('PENDING','PAID') NOT NULL DEFAULT 'PENDING',
  created_at  DATETIME        NOT NULL,
  paid_at     DATETIME        NULL,
  KEY idx_reservations_range (category_id, start_date, end_date),
  CONSTRAINT fk_reservations_category FOREIGN KEY (category_id) REFERENCES categories (id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS categories (
  id          BIGSERIAL PRIMARY KEY,
  name        TEXT   NOT NULL UNIQUE,
  capacity    INT    NOT NULL CHECK (capacity > 0),
  price_cents BIGINT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS reservations (
  id          UUID        PRIMARY KEY,
  email       TEXT        NOT NULL,
  category_id BIGINT      NOT NULL REFERENCES categories (id),
  start_date  TIMESTAMPTZ NOT NULL,
  end_date    TIMESTAMPTZ NOT NULL,
  quantity    INT         NOT NULL CHECK (quantity >= 1),
  total_cents BIGINT      NOT NULL,
  status      TEXT        NOT NULL DEFAULT 'PENDING' CHECK (status IN ('PENDING','PAID')),
  created_at  TIMESTAMPTZ NOT NULL,
  paid_at     TIMESTAMPTZ NULL,
  CHECK (end_date > start_date)
)`,
	`CREATE INDEX IF NOT EXISTS idx_reservations_range ON reservations (category_id, start_date, end_date)`,
}

// MigrateMySQL creates the tables if missing and seeds the categories.
// Existing categories are left untouched.
func MigrateMySQL(ctx context.Context, db *sql.DB, categories []model.Category) error {
	for _, stmt := range mysqlSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate mysql: %w", err)
		}
	}
	const seed = `INSERT IGNORE INTO categories (name, capacity, price_cents) VALUES (?, ?, ?)`
	for _, c := range categories {
		if _, err := db.ExecContext(ctx, seed, c.Name, c.Capacity, int64(c.Price)); err != nil {
			return fmt.Errorf("seed category %s: %w", c.Name, err)
		}
	}
	return nil
}

// MigratePostgres creates the tables if missing and seeds the categories.
// Existing categories are left untouched.
func MigratePostgres(ctx context.Context, pool *pgxpool.Pool, categories []model.Category) error {
	for _, stmt := range postgresSchema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate postgres: %w", err)
		}
	}
	const seed = `INSERT INTO categories (name, capacity, price_cents) VALUES ($1, $2, $3) ON CONFLICT (name) DO NOTHING`
	for _, c := range categories {
		if _, err := pool.Exec(ctx, seed, c.Name, c.Capacity, int64(c.Price)); err != nil {
			return fmt.Errorf("seed category %s: %w", c.Name, err)
		}
	}
	return nil
}
