// Package dbtest starts a disposable postgres container with the schema
// migrated, for integration tests in other packages.
package dbtest

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"runtime"
	"time"

	"giftlist/internal/database"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Teardown stops the container and closes the pool
type Teardown func(context.Context) error

// Start runs postgres:15, applies migrations and returns an open pool.
func Start(ctx context.Context) (*sql.DB, Teardown, error) {
	var (
		dbName = "testdb"
		dbPwd  = "password"
		dbUser = "user"
	)

	dbContainer, err := postgres.Run(
		ctx,
		"postgres:15",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPwd),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		return nil, nil, err
	}

	terminate := func(ctx context.Context) error {
		return dbContainer.Terminate(ctx)
	}

	connStr, err := dbContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, terminate, err
	}

	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, terminate, err
	}

	if err := database.RunMigrationsContext(ctx, db, MigrationsDir(), zap.NewNop()); err != nil {
		db.Close()
		return nil, terminate, err
	}

	return db, func(ctx context.Context) error {
		db.Close()
		return terminate(ctx)
	}, nil
}

// MigrationsDir locates the repository's migrations directory regardless of
// which package's test binary is running.
func MigrationsDir() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "..", "migrations")
}

// Truncate empties the given tables and resets their sequences
func Truncate(ctx context.Context, db *sql.DB, tables ...string) error {
	for _, table := range tables {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", table)); err != nil {
			return fmt.Errorf("failed to truncate %s: %w", table, err)
		}
	}
	return nil
}
