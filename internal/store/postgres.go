// Package store persists the product catalog in PostgreSQL.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/JonMunkholm/bowlhouse/internal/catalog"
	"github.com/JonMunkholm/bowlhouse/internal/config"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// TxBeginner starts transactions. *pgxpool.Pool implements it.
type TxBeginner interface {
	DBTX
	Begin(context.Context) (pgx.Tx, error)
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS products (
	id         UUID PRIMARY KEY,
	name       TEXT NOT NULL CHECK (name <> ''),
	category   TEXT NOT NULL CHECK (category <> ''),
	bowl_type  TEXT NOT NULL CHECK (bowl_type IN ('gm250', 'gm350', 'gm500', 'custom')),
	price      BIGINT NOT NULL CHECK (price >= 0),
	calories   BIGINT NOT NULL CHECK (calories >= 0),
	protein    BIGINT NOT NULL CHECK (protein >= 0),
	carbs      BIGINT NOT NULL CHECK (carbs >= 0),
	fat        BIGINT NOT NULL CHECK (fat >= 0),
	fiber      BIGINT NOT NULL CHECK (fiber >= 0),
	sugar      BIGINT NOT NULL CHECK (sugar >= 0),
	active     BOOLEAN NOT NULL DEFAULT TRUE,
	recipe     JSONB NOT NULL DEFAULT '[]'::jsonb,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS products_name_key ON products (lower(name));
`

const insertProductSQL = `
INSERT INTO products (id, name, category, bowl_type, price, calories, protein, carbs, fat, fiber, sugar, active, recipe)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

const listProductsSQL = `
SELECT name, category, bowl_type, price, calories, protein, carbs, fat, fiber, sugar, active, recipe
FROM products`

// Store is the PostgreSQL-backed catalog.
type Store struct {
	db TxBeginner
}

// New wraps a pool (or any TxBeginner) as a catalog store.
func New(db TxBeginner) *Store {
	return &Store{db: db}
}

// Connect opens a pool with the configured limits and verifies it with a ping.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Migrate creates the products table and its case-insensitive name index.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("migrate products: %w", err)
	}
	return nil
}

// Ping checks that the database answers.
func (s *Store) Ping(ctx context.Context) error {
	var one int
	return s.db.QueryRow(ctx, "SELECT 1").Scan(&one)
}

// BulkCreateProducts inserts products in one transaction and returns how many
// were stored. A row that violates a constraint (most often a duplicate name)
// is rolled back to its savepoint and skipped; any other failure aborts the
// whole batch.
func (s *Store) BulkCreateProducts(ctx context.Context, products []catalog.Product) (int, error) {
	if len(products) == 0 {
		return 0, nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	inserted := 0
	for i, p := range products {
		savepoint := fmt.Sprintf("sp_%d", i)
		if _, err := tx.Exec(ctx, "SAVEPOINT "+savepoint); err != nil {
			return 0, fmt.Errorf("create savepoint: %w", err)
		}

		if err := insertProduct(ctx, tx, p); err != nil {
			if !isConstraintViolation(err) {
				return 0, fmt.Errorf("insert %q: %w", p.Name, err)
			}
			if _, rbErr := tx.Exec(ctx, "ROLLBACK TO SAVEPOINT "+savepoint); rbErr != nil {
				return 0, fmt.Errorf("rollback savepoint: %w", rbErr)
			}
			slog.Debug("product rejected by catalog", "name", p.Name, "error", err)
			continue
		}

		if _, err := tx.Exec(ctx, "RELEASE SAVEPOINT "+savepoint); err != nil {
			return 0, fmt.Errorf("release savepoint: %w", err)
		}
		inserted++
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

func insertProduct(ctx context.Context, db DBTX, p catalog.Product) error {
	recipe := p.Recipe
	if recipe == nil {
		recipe = []catalog.RecipeItem{}
	}
	recipeJSON, err := json.Marshal(recipe)
	if err != nil {
		return fmt.Errorf("encode recipe: %w", err)
	}

	_, err = db.Exec(ctx, insertProductSQL,
		uuid.New(), p.Name, p.Category, string(p.BowlType),
		p.Price, p.Calories, p.Protein, p.Carbs, p.Fat, p.Fiber, p.Sugar,
		p.Active, recipeJSON,
	)
	return err
}

// isConstraintViolation matches SQLSTATE class 23 (integrity constraint violation).
func isConstraintViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "23")
}

// ListProducts returns the catalog ordered by name. Inactive products are
// left out unless opts.IncludeInactive is set.
func (s *Store) ListProducts(ctx context.Context, opts catalog.ListOptions) ([]catalog.Product, error) {
	query := listProductsSQL
	if !opts.IncludeInactive {
		query += " WHERE active"
	}
	query += " ORDER BY lower(name)"

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := []catalog.Product{}
	for rows.Next() {
		var (
			p          catalog.Product
			bowlType   string
			recipeJSON []byte
		)
		if err := rows.Scan(&p.Name, &p.Category, &bowlType,
			&p.Price, &p.Calories, &p.Protein, &p.Carbs, &p.Fat, &p.Fiber, &p.Sugar,
			&p.Active, &recipeJSON); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		p.BowlType = catalog.BowlType(bowlType)
		if len(recipeJSON) > 0 {
			if err := json.Unmarshal(recipeJSON, &p.Recipe); err != nil {
				return nil, fmt.Errorf("decode recipe for %q: %w", p.Name, err)
			}
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}
