// Package migrations holds the journal schema and applies it with
// golang-migrate.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed files/*.sql
var migrationFiles embed.FS

const migrationDir = "files"

// Schema problems reported by Check.
var (
	ErrUninitialized = errors.New("journal has no schema")
	ErrDirty         = errors.New("journal schema is dirty after a failed migration")
	ErrOutdated      = errors.New("journal schema is older than this binary")
	ErrTooNew        = errors.New("journal schema was written by a newer binary")
)

// SchemaStatus describes the journal schema against the embedded migrations.
type SchemaStatus struct {
	Version uint // 0 when no migration has run
	Latest  uint
	Dirty   bool
}

// LatestVersion returns the highest embedded migration version.
func LatestVersion() (uint, error) {
	entries, err := fs.ReadDir(migrationFiles, migrationDir)
	if err != nil {
		return 0, fmt.Errorf("reading embedded migrations: %w", err)
	}
	var latest uint
	for _, e := range entries {
		m, err := source.Parse(e.Name())
		if err != nil {
			return 0, fmt.Errorf("parsing migration %s: %w", e.Name(), err)
		}
		latest = max(latest, m.Version)
	}
	if latest == 0 {
		return 0, errors.New("no embedded migrations")
	}
	return latest, nil
}

// Status reads the schema version recorded in db.
func Status(db *sql.DB) (SchemaStatus, error) {
	latest, err := LatestVersion()
	if err != nil {
		return SchemaStatus{}, err
	}
	m, err := newMigrate(db)
	if err != nil {
		return SchemaStatus{}, err
	}
	// m is not closed: closing it closes the caller's db.

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return SchemaStatus{Latest: latest}, nil
	}
	if err != nil {
		return SchemaStatus{}, fmt.Errorf("reading schema version: %w", err)
	}
	return SchemaStatus{Version: version, Latest: latest, Dirty: dirty}, nil
}

// Check returns nil when the journal named name is at the latest schema.
// Otherwise the error wraps one of ErrUninitialized, ErrDirty, ErrOutdated
// or ErrTooNew.
func Check(db *sql.DB, name string) error {
	st, err := Status(db)
	if err != nil {
		return fmt.Errorf("journal %s: %w", name, err)
	}
	switch {
	case st.Dirty:
		return fmt.Errorf("journal %s: %w (version %d)", name, ErrDirty, st.Version)
	case st.Version == 0:
		return fmt.Errorf("journal %s: %w", name, ErrUninitialized)
	case st.Version < st.Latest:
		return fmt.Errorf("journal %s: %w (version %d, want %d)", name, ErrOutdated, st.Version, st.Latest)
	case st.Version > st.Latest:
		return fmt.Errorf("journal %s: %w (version %d, this binary knows %d)", name, ErrTooNew, st.Version, st.Latest)
	}
	return nil
}

// Up applies every pending migration. It is a no-op on an up-to-date journal.
func Up(db *sql.DB) error {
	m, err := newMigrate(db)
	if err != nil {
		return err
	}
	// m is not closed: closing it closes the caller's db.

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrating journal schema: %w", err)
	}
	return nil
}

func newMigrate(db *sql.DB) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationFiles, migrationDir)
	if err != nil {
		return nil, fmt.Errorf("opening embedded migrations: %w", err)
	}
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("opening journal for migration: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("creating migrator: %w", err)
	}
	return m, nil
}
