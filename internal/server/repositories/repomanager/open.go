package repomanager

import (
	"context"
	"database/sql"
	"fmt"
)

// Open connects to the database named by driver ("sqlite" or "postgres"),
// checks the connection and applies migrations.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, RepositoryManager, error) {
	var (
		m          RepositoryManager
		driverName string
	)

	switch driver {
	case "sqlite", "sqlite3":
		m, driverName = NewSQLiteRepositoryManager(), "sqlite"
	case "postgres", "pgx":
		m, driverName = NewPostgresRepositoryManager(), "pgx"
	default:
		return nil, nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("db open error: %w", err)
	}
	if driverName == "sqlite" {
		// SQLite allows a single writer; serialize through one connection.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("db ping error: %w", err)
	}

	if err := m.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("db migration error: %w", err)
	}

	return db, m, nil
}
