//go:build integration

// Package testdb opens the Postgres database used by integration tests,
// brings its schema up to date and isolates each test in a transaction
// that is always rolled back.
//
// Tests using this package carry the integration build tag and skip
// themselves when no database URL is configured:
//
//	go test -tags=integration ./...
package testdb

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"github.com/phrazzld/fileserver-api/internal/platform/postgres/migrations"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/require"
)

// Environment variables checked, in order, for the test database URL.
const (
	EnvTestDatabaseURL = "TEST_DATABASE_URL"
	EnvDatabaseURL     = "DATABASE_URL"
)

// TestTimeout bounds connection checks and migrations.
const TestTimeout = 10 * time.Second

var migrateOnce struct {
	sync.Mutex
	done map[string]bool
}

// GetTestDatabaseURL returns the configured database URL, or "".
func GetTestDatabaseURL() string {
	if u := os.Getenv(EnvTestDatabaseURL); u != "" {
		return u
	}
	return os.Getenv(EnvDatabaseURL)
}

// ShouldSkipDatabaseTest reports whether no database is configured.
func ShouldSkipDatabaseTest() bool {
	return GetTestDatabaseURL() == ""
}

// GetTestDBWithT opens the test database, applies migrations once per URL
// and closes the pool when the test ends. It skips t when no database is
// configured.
func GetTestDBWithT(t *testing.T) *sql.DB {
	t.Helper()

	dbURL := GetTestDatabaseURL()
	if dbURL == "" {
		t.Skipf("%s or %s not set, skipping database test", EnvTestDatabaseURL, EnvDatabaseURL)
	}

	db, err := sql.Open("pgx", dbURL)
	require.NoError(t, err, "failed to open test database")
	t.Cleanup(func() { _ = db.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	defer cancel()
	require.NoError(t, db.PingContext(ctx), "test database is unreachable")

	SetupTestDatabaseSchema(t, db, dbURL)
	return db
}

// SetupTestDatabaseSchema applies the embedded migrations. It only runs
// once per database URL in a test binary.
func SetupTestDatabaseSchema(t *testing.T, db *sql.DB, dbURL string) {
	t.Helper()

	migrateOnce.Lock()
	defer migrateOnce.Unlock()
	if migrateOnce.done[dbURL] {
		return
	}

	goose.SetBaseFS(migrations.FS)
	defer goose.SetBaseFS(nil)
	require.NoError(t, goose.SetDialect("postgres"))

	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	defer cancel()
	require.NoError(t, goose.UpContext(ctx, db, "."), "failed to apply migrations")

	if migrateOnce.done == nil {
		migrateOnce.done = make(map[string]bool)
	}
	migrateOnce.done[dbURL] = true
}

// WithTx runs fn inside a transaction that is rolled back afterwards, so
// tests can write freely and still run in parallel.
func WithTx(t *testing.T, db *sql.DB, fn func(t *testing.T, tx *sql.Tx)) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	defer cancel()

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err, "failed to begin test transaction")

	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			t.Logf("failed to roll back test transaction: %v", err)
		}
	}()

	fn(t, tx)
}
