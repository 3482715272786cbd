package store

import (
	"context"
	"testing"
	"time"

	"github.com/JonMunkholm/bowlhouse/internal/catalog"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestStore starts a throwaway PostgreSQL and returns a migrated store.
func setupTestStore(t *testing.T) (*Store, *pgxpool.Pool) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("bowlhouse"),
		postgres.WithUsername("bowl"),
		postgres.WithPassword("bowl"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	s := New(pool)
	require.NoError(t, s.Migrate(ctx))
	return s, pool
}

func TestStore_BulkCreateAndList(t *testing.T) {
	s, pool := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Ping(ctx))
	require.NoError(t, s.Migrate(ctx), "migrate must be repeatable")

	products := []catalog.Product{
		bowl("Greek Salad"),
		bowl("Caesar Salad"),
		bowl("caesar salad"),
	}
	products[0].BowlType = catalog.BowlGM250
	products[0].Calories = 280

	n, err := s.BulkCreateProducts(ctx, products)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "case-insensitive duplicate is skipped")

	_, err = pool.Exec(ctx, `UPDATE products SET active = false WHERE name = 'Greek Salad'`)
	require.NoError(t, err)

	active, err := s.ListProducts(ctx, catalog.ListOptions{})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Caesar Salad", active[0].Name)
	assert.Empty(t, active[0].Recipe)

	all, err := s.ListProducts(ctx, catalog.ListOptions{IncludeInactive: true})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Caesar Salad", all[0].Name)
	assert.Equal(t, "Greek Salad", all[1].Name)
	assert.Equal(t, catalog.BowlGM250, all[1].BowlType)
	assert.Equal(t, int64(280), all[1].Calories)
	assert.False(t, all[1].Active)
}

func TestStore_DuplicatesAcrossBatches(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	n, err := s.BulkCreateProducts(ctx, []catalog.Product{bowl("Poke Bowl")})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.BulkCreateProducts(ctx, []catalog.Product{bowl("POKE BOWL"), bowl("Buddha Bowl")})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.BulkCreateProducts(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestStore_RecipeRoundTrip(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	p := bowl("Harvest Bowl")
	p.Recipe = []catalog.RecipeItem{{Ingredient: "quinoa", Quantity: 120}}
	_, err := s.BulkCreateProducts(ctx, []catalog.Product{p})
	require.NoError(t, err)

	got, err := s.ListProducts(ctx, catalog.ListOptions{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, p.Recipe, got[0].Recipe)
}

func TestIsConstraintViolation(t *testing.T) {
	assert.False(t, isConstraintViolation(context.Canceled))
	assert.False(t, isConstraintViolation(nil))
}
