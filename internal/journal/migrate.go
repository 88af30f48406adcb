// internal/journal/migrate.go
package journal

import (
	"fmt"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// Migrate applies all pending schema migrations from dir.
func (p *Postgres) Migrate(dir string) error {
	migrator, err := p.newMigrator(dir)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer migrator.Close()

	if err := migrator.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("migration up failed: %w", err)
	}

	p.logger.Info("Journal migrations applied")
	return nil
}

// MigrationVersion returns the current schema version.
func (p *Postgres) MigrationVersion(dir string) (uint, bool, error) {
	migrator, err := p.newMigrator(dir)
	if err != nil {
		return 0, false, fmt.Errorf("failed to create migrator: %w", err)
	}
	defer migrator.Close()

	version, dirty, err := migrator.Version()
	if err != nil {
		return 0, false, fmt.Errorf("failed to get version: %w", err)
	}
	return version, dirty, nil
}

func (p *Postgres) newMigrator(dir string) (*migrate.Migrate, error) {
	driver, err := postgres.WithInstance(p.db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}

	path, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve migrations path: %w", err)
	}

	migrator, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", path), "postgres", driver)
	if err != nil {
		return nil, err
	}
	return migrator, nil
}
