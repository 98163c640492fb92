package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	stdfs "io/fs"
	"regexp"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// Migrations are versioned .sql files under internal/db/migrations:
//
//	0001_name.up.sql / 0001_name.down.sql
//
// A file starting with "-- NO_TX" runs outside a transaction.

//go:embed migrations/*.sql
var migrationsFS embed.FS

type migration struct {
	version  int
	name     string
	upFile   string
	downFile string
}

var migFileRe = regexp.MustCompile(`^([0-9]{4})_(.+)\.(up|down)\.sql$`)

// Migrate applies every pending up migration in version order.
func Migrate(ctx context.Context, d *sql.DB) error {
	migs, err := loadMigrations(migrationsFS)
	if err != nil {
		return err
	}
	return applyMigrations(ctx, d, migrationsFS, migs)
}

// RollbackLast rolls back the most recently applied migration.
func RollbackLast(ctx context.Context, d *sql.DB) error {
	if d == nil {
		return errors.New("nil db")
	}
	if err := ensureMigrationsTable(ctx, d); err != nil {
		return err
	}

	var version int
	err := d.QueryRowContext(ctx, `SELECT version FROM schema_migrations ORDER BY version DESC LIMIT 1`).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	} else if err != nil {
		return err
	}

	migs, err := loadMigrations(migrationsFS)
	if err != nil {
		return err
	}
	m, ok := migs[version]
	if !ok || m.downFile == "" {
		return fmt.Errorf("no down migration found for version %d", version)
	}

	sqlText, err := migrationsFS.ReadFile(m.downFile)
	if err != nil {
		return err
	}
	if err := run(ctx, d, string(sqlText), `DELETE FROM schema_migrations WHERE version = $1`, version); err != nil {
		return fmt.Errorf("rollback %04d failed: %w", version, err)
	}

	logrus.WithFields(logrus.Fields{"version": version, "name": m.name}).Info("Migration rolled back")
	return nil
}

func loadMigrations(fsys stdfs.FS) (map[int]migration, error) {
	entries := map[int]migration{}
	list, err := stdfs.ReadDir(fsys, "migrations")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}
	for _, de := range list {
		if de.IsDir() {
			continue
		}
		name := de.Name()
		m := migFileRe.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		verStr, migName, kind := m[1], m[2], m[3]
		var ver int
		if _, err := fmt.Sscanf(verStr, "%04d", &ver); err != nil {
			continue
		}
		item := entries[ver]
		item.version = ver
		item.name = migName
		p := "migrations/" + name
		if kind == "up" {
			item.upFile = p
		} else {
			item.downFile = p
		}
		entries[ver] = item
	}
	return entries, nil
}

func ensureMigrationsTable(ctx context.Context, d *sql.DB) error {
	_, err := d.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`)
	return err
}

func appliedVersions(ctx context.Context, d *sql.DB) (map[int]bool, error) {
	if err := ensureMigrationsTable(ctx, d); err != nil {
		return nil, err
	}
	rows, err := d.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	got := map[int]bool{}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		got[v] = true
	}
	return got, rows.Err()
}

func applyMigrations(ctx context.Context, d *sql.DB, fsys stdfs.FS, migs map[int]migration) error {
	if len(migs) == 0 {
		return nil
	}
	applied, err := appliedVersions(ctx, d)
	if err != nil {
		return err
	}

	versions := make([]int, 0, len(migs))
	for v := range migs {
		versions = append(versions, v)
	}
	sort.Ints(versions)

	for _, v := range versions {
		if applied[v] {
			continue
		}
		m := migs[v]
		if strings.TrimSpace(m.upFile) == "" {
			return fmt.Errorf("missing up migration for version %04d", v)
		}
		sqlText, err := stdfs.ReadFile(fsys, m.upFile)
		if err != nil {
			return err
		}
		if err := run(ctx, d, string(sqlText), `INSERT INTO schema_migrations(version) VALUES($1)`, v); err != nil {
			return fmt.Errorf("migration %04d failed: %w", v, err)
		}
		logrus.WithFields(logrus.Fields{"version": v, "name": m.name}).Info("Migration applied")
	}
	return nil
}

// run executes a migration script and its bookkeeping statement, inside one
// transaction unless the script opts out.
func run(ctx context.Context, d *sql.DB, script, bookkeeping string, version int) error {
	if strings.HasPrefix(strings.TrimSpace(script), "-- NO_TX") {
		if _, err := d.ExecContext(ctx, script); err != nil {
			return err
		}
		_, err := d.ExecContext(ctx, bookkeeping, version)
		return err
	}

	tx, err := d.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, script); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx, bookkeeping, version); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
