package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"embed"
	"encoding/hex"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"github.com/pressly/goose/v3"

	"github.com/wyrecliff/docvault/docerr"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migrator applies the migration registry and validates that every
// already-applied migration's on-disk checksum still matches the checksum
// docvault recorded (in schema_migrations) at apply time. Vanilla goose has
// no checksum column of its own to compare against; the specification
// requires this check as a fatal startup error on mismatch.
type Migrator struct {
	db *sql.DB
}

// NewMigrator opens a database/sql handle over the same DSN used by the
// pgx pool, since goose operates on *sql.DB rather than pgxpool.Pool.
func NewMigrator(databaseURL string) (*Migrator, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("store: open migration handle: %w", err)
	}
	goose.SetBaseFS(migrationFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return nil, fmt.Errorf("store: set goose dialect: %w", err)
	}
	return &Migrator{db: db}, nil
}

// Close releases the migrator's database handle.
func (m *Migrator) Close() error {
	return m.db.Close()
}

// ValidateChecksums compares the checksum docvault recorded in
// schema_migrations for every applied migration against the current on-disk
// file's SHA-256. A mismatch means a migration file was edited after being
// applied in production, which the specification treats as a fatal startup
// error. schema_migrations is itself created by migration 00007, so on a
// brand-new database (nothing applied yet) or immediately after upgrading
// onto this migration before it has run, the table may not exist yet; in
// both cases there is nothing recorded to validate against, so this is a
// no-op rather than a failure.
func (m *Migrator) ValidateChecksums(ctx context.Context) error {
	applied, err := goose.GetDBVersion(m.db)
	if err != nil {
		return fmt.Errorf("store: read applied migration version: %w", err)
	}
	if applied == 0 {
		return nil
	}

	rows, err := m.db.QueryContext(ctx, `SELECT version_id, is_applied FROM goose_db_version ORDER BY version_id`)
	if err != nil {
		return fmt.Errorf("store: read migration history: %w", err)
	}
	defer rows.Close()

	onDisk, err := checksumsByVersion()
	if err != nil {
		return err
	}

	for rows.Next() {
		var versionID int64
		var isApplied bool
		if err := rows.Scan(&versionID, &isApplied); err != nil {
			return fmt.Errorf("store: scan migration history row: %w", err)
		}
		if !isApplied {
			continue
		}
		if _, ok := onDisk[versionID]; !ok {
			return docerr.New(docerr.StoreFatal,
				fmt.Sprintf("migration version %d is recorded as applied but its file is missing", versionID))
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	exists, err := m.tableExists(ctx, "schema_migrations")
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}

	recorded, err := m.db.QueryContext(ctx, `SELECT version, checksum FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("store: read recorded migration checksums: %w", err)
	}
	defer recorded.Close()

	for recorded.Next() {
		var version int64
		var checksum string
		if err := recorded.Scan(&version, &checksum); err != nil {
			return fmt.Errorf("store: scan recorded migration checksum: %w", err)
		}
		current, ok := onDisk[version]
		if !ok {
			return docerr.New(docerr.StoreFatal,
				fmt.Sprintf("migration version %d is recorded as applied but its file is missing", version))
		}
		if current != checksum {
			return docerr.New(docerr.StoreFatal,
				fmt.Sprintf("migration version %d has been edited since it was applied: checksum mismatch", version))
		}
	}
	return recorded.Err()
}

// tableExists reports whether name exists in the connected database's
// search path, used to tolerate schema_migrations not existing yet (a
// brand-new database, or a database upgrading onto migration 00007 for the
// first time).
func (m *Migrator) tableExists(ctx context.Context, name string) (bool, error) {
	var regclass sql.NullString
	if err := m.db.QueryRowContext(ctx, `SELECT to_regclass($1)::text`, name).Scan(&regclass); err != nil {
		return false, fmt.Errorf("store: check table %s exists: %w", name, err)
	}
	return regclass.Valid, nil
}

// recordChecksums backfills schema_migrations with the on-disk checksum of
// every currently-applied migration that doesn't have a row yet. It never
// overwrites an existing row, since the whole point is to detect edits made
// after the original apply, not to track the file's current state.
func (m *Migrator) recordChecksums(ctx context.Context) error {
	exists, err := m.tableExists(ctx, "schema_migrations")
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}

	onDisk, err := checksumsByVersion()
	if err != nil {
		return err
	}

	rows, err := m.db.QueryContext(ctx, `SELECT version_id FROM goose_db_version WHERE is_applied = true`)
	if err != nil {
		return fmt.Errorf("store: read applied migration versions: %w", err)
	}
	defer rows.Close()

	var applied []int64
	for rows.Next() {
		var versionID int64
		if err := rows.Scan(&versionID); err != nil {
			return fmt.Errorf("store: scan applied migration version: %w", err)
		}
		applied = append(applied, versionID)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, version := range applied {
		checksum, ok := onDisk[version]
		if !ok {
			continue
		}
		if _, err := m.db.ExecContext(ctx, `
			INSERT INTO schema_migrations (version, checksum) VALUES ($1, $2)
			ON CONFLICT (version) DO NOTHING
		`, version, checksum); err != nil {
			return fmt.Errorf("store: record migration checksum for version %d: %w", version, err)
		}
	}
	return nil
}

// checksumsByVersion hashes every embedded migration file, keyed by its
// goose version number (the leading numeric prefix of the filename).
func checksumsByVersion() (map[int64]string, error) {
	out := make(map[int64]string)
	err := fs.WalkDir(migrationFS, "migrations", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".sql") {
			return err
		}
		contents, readErr := migrationFS.ReadFile(path)
		if readErr != nil {
			return readErr
		}
		sum := sha256.Sum256(contents)
		version, parseErr := goose.NumericComponent(d.Name())
		if parseErr != nil {
			return nil
		}
		out[version] = hex.EncodeToString(sum[:])
		return nil
	})
	return out, err
}

// Up applies every pending migration, each within its own transaction, in
// registration order. Dependencies between migrations are expressed purely
// by the numeric ordering of the embedded files.
func (m *Migrator) Up(ctx context.Context) error {
	if err := m.ValidateChecksums(ctx); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, m.db, "migrations"); err != nil {
		return docerr.Wrap(docerr.StoreFatal, "apply pending migrations", err)
	}
	if err := m.recordChecksums(ctx); err != nil {
		return docerr.Wrap(docerr.StoreFatal, "record migration checksums", err)
	}
	return nil
}

// Pending lists the versions of migrations that have not yet been applied,
// respecting registration order.
func (m *Migrator) Pending(ctx context.Context) ([]int64, error) {
	migrations, err := goose.CollectMigrations("migrations", 0, goose.MaxVersion)
	if err != nil {
		return nil, fmt.Errorf("store: collect migrations: %w", err)
	}
	applied, err := goose.GetDBVersion(m.db)
	if err != nil {
		return nil, fmt.Errorf("store: read applied migration version: %w", err)
	}
	var pending []int64
	for _, mig := range migrations {
		if mig.Version > applied {
			pending = append(pending, mig.Version)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i] < pending[j] })
	return pending, nil
}
