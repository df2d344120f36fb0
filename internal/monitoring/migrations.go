package monitoring

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationFiles embed.FS

// ErrNoMigration indicates no migration has been applied yet.
var ErrNoMigration = errors.New("monitoring: no migration")

// migrator applies NNN_name.up.sql / NNN_name.down.sql files in order,
// tracking the current version in a schema_migrations table.
type migrator struct {
	db      *sql.DB
	dialect dialect
	files   fs.FS
	dir     string
}

// migration is a single up/down pair.
type migration struct {
	version  uint
	name     string
	upFile   string
	downFile string
}

func newMigrator(db *sql.DB, d dialect) *migrator {
	return &migrator{db: db, dialect: d, files: migrationFiles, dir: path.Join("migrations", string(d))}
}

func (m *migrator) ensureSchemaTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

// Up applies all pending migrations in ascending version order.
func (m *migrator) Up(ctx context.Context) error {
	if err := m.ensureSchemaTable(ctx); err != nil {
		return fmt.Errorf("monitoring: failed to create schema table: %w", err)
	}
	migrations, err := m.load()
	if err != nil {
		return err
	}
	current, err := m.Version(ctx)
	if err != nil && !errors.Is(err, ErrNoMigration) {
		return err
	}

	for _, mig := range migrations {
		if mig.version <= current {
			continue
		}
		script, err := fs.ReadFile(m.files, mig.upFile)
		if err != nil {
			return fmt.Errorf("monitoring: failed to read %s: %w", mig.upFile, err)
		}
		if _, err := m.db.ExecContext(ctx, string(script)); err != nil {
			return fmt.Errorf("monitoring: failed to apply version %d (%s): %w", mig.version, mig.name, err)
		}
		if _, err := m.db.ExecContext(ctx, m.dialect.rebind("INSERT INTO schema_migrations (version) VALUES (?)"), mig.version); err != nil {
			return fmt.Errorf("monitoring: failed to record version %d: %w", mig.version, err)
		}
	}
	return nil
}

// Down rolls back every applied migration in descending version order.
func (m *migrator) Down(ctx context.Context) error {
	migrations, err := m.load()
	if err != nil {
		return err
	}
	current, err := m.Version(ctx)
	if errors.Is(err, ErrNoMigration) {
		return nil
	}
	if err != nil {
		return err
	}

	sort.Slice(migrations, func(i, j int) bool { return migrations[i].version > migrations[j].version })
	for _, mig := range migrations {
		if mig.version > current || mig.downFile == "" {
			continue
		}
		script, err := fs.ReadFile(m.files, mig.downFile)
		if err != nil {
			return fmt.Errorf("monitoring: failed to read %s: %w", mig.downFile, err)
		}
		if _, err := m.db.ExecContext(ctx, string(script)); err != nil {
			return fmt.Errorf("monitoring: failed to roll back version %d (%s): %w", mig.version, mig.name, err)
		}
		if _, err := m.db.ExecContext(ctx, m.dialect.rebind("DELETE FROM schema_migrations WHERE version = ?"), mig.version); err != nil {
			return fmt.Errorf("monitoring: failed to remove version %d: %w", mig.version, err)
		}
	}
	return nil
}

// Version returns the highest applied migration version, or ErrNoMigration.
func (m *migrator) Version(ctx context.Context) (uint, error) {
	var version uint
	err := m.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("monitoring: failed to query version: %w", err)
	}
	if version == 0 {
		return 0, ErrNoMigration
	}
	return version, nil
}

// load parses the migration files of the dialect directory, sorted by
// version.
func (m *migrator) load() ([]migration, error) {
	entries, err := fs.ReadDir(m.files, m.dir)
	if err != nil {
		return nil, fmt.Errorf("monitoring: failed to read migrations: %w", err)
	}

	byVersion := make(map[uint]*migration)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		prefix, rest, ok := strings.Cut(name, "_")
		if !ok {
			continue
		}
		v, err := strconv.ParseUint(prefix, 10, 64)
		if err != nil {
			continue
		}
		version := uint(v)
		mig, ok := byVersion[version]
		if !ok {
			mig = &migration{version: version}
			byVersion[version] = mig
		}
		full := path.Join(m.dir, name)
		switch {
		case strings.HasSuffix(rest, ".up.sql"):
			mig.name = strings.TrimSuffix(rest, ".up.sql")
			mig.upFile = full
		case strings.HasSuffix(rest, ".down.sql"):
			mig.downFile = full
		}
	}

	migrations := make([]migration, 0, len(byVersion))
	for _, mig := range byVersion {
		if mig.upFile == "" {
			continue
		}
		migrations = append(migrations, *mig)
	}
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].version < migrations[j].version })
	return migrations, nil
}
