package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	contactdomain "github.com/revolutionai/storefront/internal/contact/domain"
	orderdomain "github.com/revolutionai/storefront/internal/order/domain"
	paymentdomain "github.com/revolutionai/storefront/internal/payment/domain"
	"gorm.io/gorm"
)

//go:embed sql/*.sql
var embeddedMigrations embed.FS

const migrationsDir = "sql"

// Run brings the schema up to date. Postgres uses the versioned SQL files;
// other dialects fall back to gorm's AutoMigrate.
func Run(conn *gorm.DB, dbType, table string) error {
	switch strings.ToLower(strings.TrimSpace(dbType)) {
	case "postgres", "":
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB, table)
	default:
		return AutoMigrate(conn)
	}
}

func RunMigrations(db *sql.DB, table string) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: table})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Closing the migrator would close the shared *sql.DB.

	return nil
}

// AutoMigrate creates the schema from the gorm models.
func AutoMigrate(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&orderdomain.Order{},
		&orderdomain.StatusEntry{},
		&paymentdomain.EventRecord{},
		&contactdomain.Booking{},
	)
}
