package testhelpers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/trafficbandit/allocator/internal/db"
)

// PostgresContainer holds the testcontainer instance and connection details
// used by integration tests against the real allocation schema.
type PostgresContainer struct {
	Container     *postgres.PostgresContainer
	ConnectionStr string
	DB            *db.DB
	cleanupFuncs  []func()
	t             *testing.T
}

// SetupTestDatabase starts a disposable PostgreSQL container and wires a
// pool to it. Callers apply migrations separately via ApplyMigrations.
func SetupTestDatabase(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16",
		postgres.WithDatabase("allocator_test"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("testpassword"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("failed to get connection string: %v", err)
	}

	config, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("failed to parse connection string: %v", err)
	}
	config.MaxConns = 5
	config.MinConns = 1
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("failed to create connection pool: %v", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		container.Terminate(ctx)
		t.Fatalf("failed to ping database: %v", err)
	}

	database := &db.DB{}
	database.SetPool(pool)

	tc := &PostgresContainer{
		Container:     container,
		ConnectionStr: connStr,
		DB:            database,
		cleanupFuncs:  []func(){},
		t:             t,
	}

	t.Cleanup(tc.Cleanup)

	return tc
}

// ApplyMigrations runs every *.sql file under migrationsPath in numeric
// filename order, the same ordering internal/db.Migrator uses at runtime.
func (tc *PostgresContainer) ApplyMigrations(migrationsPath string) error {
	tc.t.Helper()

	ctx := context.Background()
	pool := tc.DB.Pool()

	files, err := filepath.Glob(filepath.Join(migrationsPath, "*.sql"))
	if err != nil {
		return fmt.Errorf("failed to list migration files: %w", err)
	}
	sort.Slice(files, func(i, j int) bool {
		return filepath.Base(files[i]) < filepath.Base(files[j])
	})

	for _, migrationFile := range files {
		tc.t.Logf("applying migration: %s", filepath.Base(migrationFile))

		sqlBytes, err := os.ReadFile(migrationFile)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", migrationFile, err)
		}

		if _, err := pool.Exec(ctx, string(sqlBytes)); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", filepath.Base(migrationFile), err)
		}
	}

	return nil
}

// AddCleanup registers a cleanup function to be called during teardown, in
// reverse registration order.
func (tc *PostgresContainer) AddCleanup(fn func()) {
	tc.cleanupFuncs = append(tc.cleanupFuncs, fn)
}

// Cleanup terminates the container and runs any registered cleanup funcs.
func (tc *PostgresContainer) Cleanup() {
	ctx := context.Background()

	for i := len(tc.cleanupFuncs) - 1; i >= 0; i-- {
		tc.cleanupFuncs[i]()
	}

	if tc.DB != nil {
		tc.DB.Close()
	}

	if tc.Container != nil {
		if err := tc.Container.Terminate(ctx); err != nil {
			tc.t.Logf("failed to terminate container: %v", err)
		}
	}
}

// TruncateAllTables clears every allocator table, useful for isolating
// tests that share one container across a test binary.
func (tc *PostgresContainer) TruncateAllTables() error {
	ctx := context.Background()
	pool := tc.DB.Pool()

	tables := []string{
		"allocation_details",
		"allocation_records",
		"daily_metrics",
		"raw_metrics",
		"variants",
		"experiments",
	}

	for _, table := range tables {
		if _, err := pool.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)); err != nil {
			return fmt.Errorf("failed to truncate %s: %w", table, err)
		}
	}

	return nil
}

// ExecuteSQL runs arbitrary SQL, useful for seeding fixtures in tests.
func (tc *PostgresContainer) ExecuteSQL(sql string) error {
	ctx := context.Background()
	pool := tc.DB.Pool()

	_, err := pool.Exec(ctx, sql)
	return err
}
