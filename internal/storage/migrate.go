package storage

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

const (
	dialectPostgres = "postgres"
	dialectSQLite   = "sqlite"
)

// RunMigrations applies the embedded migrations for dialect against dsn.
func RunMigrations(dialect, dsn string) error {
	driverName := "sqlite"
	if dialect == dialectPostgres {
		driverName = "pgx"
	}

	// Create a separate connection for migrations to avoid interfering with the main connection
	migrateDB, err := sql.Open(driverName, dsn)
	if err != nil {
		return fmt.Errorf("open migration database: %w", err)
	}
	defer migrateDB.Close()

	var driver database.Driver
	switch dialect {
	case dialectPostgres:
		driver, err = migratepgx.WithInstance(migrateDB, &migratepgx.Config{})
	case dialectSQLite:
		driver, err = sqlite.WithInstance(migrateDB, &sqlite.Config{})
	default:
		return fmt.Errorf("unsupported migration dialect: %s", dialect)
	}
	if err != nil {
		return fmt.Errorf("create %s driver: %w", dialect, err)
	}

	d, err := iofs.New(migrationsFS, "migrations/"+dialect)
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", d, dialect, driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}
