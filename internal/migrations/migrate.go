package migrations

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed sql/postgres/*.sql sql/sqlite/*.sql
var files embed.FS

type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// Up applies every pending migration for the dialect and returns the schema
// version the database is left at.
func Up(ctx context.Context, db *sql.DB, dialect Dialect) (uint, error) {
	if db == nil {
		return 0, fmt.Errorf("database is required")
	}

	src, err := Source(dialect)
	if err != nil {
		return 0, err
	}

	driver, release, err := newDriver(ctx, db, dialect)
	if err != nil {
		return 0, err
	}
	defer release()

	m, err := migrate.NewWithInstance("iofs", src, string(dialect), driver)
	if err != nil {
		return 0, fmt.Errorf("init migrate: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("schema version %d is dirty", version)
	}
	return version, nil
}

// Version reports the schema version recorded in db and whether the last
// migration left it dirty. A database with no migrations applied reports 0.
func Version(ctx context.Context, db *sql.DB, dialect Dialect) (uint, bool, error) {
	if db == nil {
		return 0, false, fmt.Errorf("database is required")
	}

	src, err := Source(dialect)
	if err != nil {
		return 0, false, err
	}

	driver, release, err := newDriver(ctx, db, dialect)
	if err != nil {
		return 0, false, err
	}
	defer release()

	m, err := migrate.NewWithInstance("iofs", src, string(dialect), driver)
	if err != nil {
		return 0, false, fmt.Errorf("init migrate: %w", err)
	}

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read schema version: %w", err)
	}
	return version, dirty, nil
}

// Source opens the embedded migration files of a dialect.
func Source(dialect Dialect) (source.Driver, error) {
	switch dialect {
	case Postgres, SQLite:
	default:
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}
	src, err := iofs.New(files, "sql/"+string(dialect))
	if err != nil {
		return nil, fmt.Errorf("open %s migrations: %w", dialect, err)
	}
	return src, nil
}

// newDriver returns a migrate driver that does not own db. Closing the
// postgres driver built from the pool would close the pool, so it gets a
// dedicated connection that release hands back.
func newDriver(ctx context.Context, db *sql.DB, dialect Dialect) (database.Driver, func(), error) {
	switch dialect {
	case Postgres:
		conn, err := db.Conn(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("acquire connection: %w", err)
		}
		driver, err := postgres.WithConnection(ctx, conn, &postgres.Config{})
		if err != nil {
			_ = conn.Close()
			return nil, nil, fmt.Errorf("init postgres driver: %w", err)
		}
		return driver, func() { _ = conn.Close() }, nil
	case SQLite:
		driver, err := sqlite.WithInstance(db, &sqlite.Config{})
		if err != nil {
			return nil, nil, fmt.Errorf("init sqlite driver: %w", err)
		}
		return driver, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported dialect %q", dialect)
	}
}
