// Package testutil provides a shared PostgreSQL test fixture for fragment's
// integration tests: a singleton testcontainers instance, one throwaway
// database per test, and helpers to stand up the fs/fo/chase schemas a
// pipeline run expects.
package testutil

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"sync"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/fragmentdb/fragment/pkg/schema"
	"github.com/fragmentdb/fragment/pkg/store"
)

var (
	singletonOnce sync.Once
	singletonDSN  string
	singletonErr  error
)

// ensureSingleton lazily starts one PostgreSQL container shared by every
// test in the process. Safe for concurrent access via sync.Once.
func ensureSingleton() (string, error) {
	singletonOnce.Do(func() {
		ctx := context.Background()

		container, err := postgres.Run(ctx,
			"postgres:18-alpine",
			postgres.WithDatabase("postgres"),
			postgres.WithUsername("test"),
			postgres.WithPassword("test"),
			testcontainers.WithEnv(map[string]string{
				"POSTGRES_INITDB_ARGS": "--auth-host=trust",
			}),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second),
			),
		)
		if err != nil {
			singletonErr = fmt.Errorf("failed to start PostgreSQL container: %w", err)
			return
		}

		dsn, err := container.ConnectionString(ctx)
		if err != nil {
			_ = container.Terminate(ctx)
			singletonErr = fmt.Errorf("failed to get PostgreSQL connection string: %w", err)
			return
		}

		singletonDSN = dsn + "sslmode=disable"
	})

	return singletonDSN, singletonErr
}

// DB returns a connection to a fresh, empty database, cleaned up when the
// test completes. Callers are responsible for creating whatever
// schemas/relations their scenario needs (see SeedSchema).
func DB(tb testing.TB) *sql.DB {
	tb.Helper()

	adminDSN, err := ensureSingleton()
	require.NoError(tb, err, "failed to start PostgreSQL container")

	dbName := uniqueDBName("fragment_test")
	require.NoError(tb, createDatabase(adminDSN, dbName), "failed to create test database")

	dbDSN := replaceDBName(adminDSN, dbName)
	db, err := sql.Open("pgx", dbDSN)
	require.NoError(tb, err, "failed to connect to test database")
	require.NoError(tb, db.Ping(), "failed to ping test database")

	tb.Cleanup(func() {
		_ = db.Close()
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = dropDatabase(ctx, adminDSN, dbName)
		}()
	})

	return db
}

// SeedSchema creates schemaName (if absent) and an empty, correctly typed
// relation for every relation in sc, returning a Store scoped to it. Used
// to stand up the fs/fo/chase schemas a pipeline.Run invocation expects.
func SeedSchema(tb testing.TB, db *sql.DB, schemaName string, sc *schema.Schema) *store.Store {
	tb.Helper()
	ctx := context.Background()

	st := store.New(db, schemaName)
	require.NoError(tb, st.EnsureSchema(ctx), "ensuring schema %s", schemaName)
	for _, name := range sc.Names() {
		rel, err := sc.Relation(name)
		require.NoError(tb, err)
		require.NoError(tb, st.EnsureRelation(ctx, rel), "ensuring relation %s in %s", name, schemaName)
	}
	return st
}

func uniqueDBName(prefix string) string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return fmt.Sprintf("%s_%s", prefix, hex.EncodeToString(b))
}

func createDatabase(adminDSN, name string) error {
	db, err := sql.Open("pgx", adminDSN)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	_, err = db.Exec(fmt.Sprintf("CREATE DATABASE %s", name))
	return err
}

func dropDatabase(ctx context.Context, adminDSN, name string) error {
	db, err := sql.Open("pgx", adminDSN)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	_, _ = db.ExecContext(ctx, fmt.Sprintf(`
		SELECT pg_terminate_backend(pid)
		FROM pg_stat_activity
		WHERE datname = '%s' AND pid <> pg_backend_pid()
	`, name))

	_, err = db.ExecContext(ctx, fmt.Sprintf("DROP DATABASE IF EXISTS %s", name))
	return err
}

// replaceDBName swaps the database name in a postgres DSN URL.
func replaceDBName(dsn, newName string) string {
	// dsn is a postgres:// URL; the path segment after the host is the
	// database name, followed by an optional query string.
	schemeSplit := "://"
	idx := indexOf(dsn, schemeSplit)
	if idx < 0 {
		return dsn
	}
	rest := dsn[idx+len(schemeSplit):]
	slash := indexOf(rest, "/")
	if slash < 0 {
		return dsn
	}
	pathAndQuery := rest[slash+1:]
	q := indexOf(pathAndQuery, "?")
	suffix := ""
	if q >= 0 {
		suffix = pathAndQuery[q:]
	}
	return dsn[:idx+len(schemeSplit)] + rest[:slash+1] + newName + suffix
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
