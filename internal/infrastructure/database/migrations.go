package database

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strings"
)

// Schema holds the NNNNNNNN_NNNNNN_name.{up,down}.sql files. The
// migrations package sets it at init.
var Schema fs.FS

// ErrMissingDown is returned when a rollback reaches a migration that
// ships without a .down.sql file.
var ErrMissingDown = errors.New("database: migration has no down file")

var migrationFile = regexp.MustCompile(`^(\d{8}_\d{6})_([a-z0-9_]+)\.(up|down)\.sql$`)

// Migration is one versioned schema step.
type Migration struct {
	Version string `json:"version"`
	Name    string `json:"name"`
	up      string
	down    string
}

// SchemaStatus describes how far the database has been migrated.
type SchemaStatus struct {
	// Version is the newest applied migration, empty on a fresh database.
	Version string      `json:"version"`
	Applied []Migration `json:"applied"`
	Pending []Migration `json:"pending"`
}

// Current reports whether every known migration is applied.
func (s SchemaStatus) Current() bool { return len(s.Pending) == 0 }

// Migrate applies every pending migration in version order, each in its
// own transaction.
func (db *DB) Migrate(ctx context.Context) error {
	status, err := db.SchemaStatus(ctx)
	if err != nil {
		return err
	}
	for _, m := range status.Pending {
		if err := db.step(ctx, m, true); err != nil {
			return err
		}
	}
	return nil
}

// Rollback reverts the newest steps applied migrations and returns their
// versions, newest first.
func (db *DB) Rollback(ctx context.Context, steps int) ([]string, error) {
	status, err := db.SchemaStatus(ctx)
	if err != nil {
		return nil, err
	}

	var reverted []string
	for i := len(status.Applied) - 1; i >= 0 && len(reverted) < steps; i-- {
		m := status.Applied[i]
		if m.down == "" {
			return reverted, fmt.Errorf("%w: %s_%s", ErrMissingDown, m.Version, m.Name)
		}
		if err := db.step(ctx, m, false); err != nil {
			return reverted, err
		}
		reverted = append(reverted, m.Version)
	}
	return reverted, nil
}

// SchemaStatus splits the known migrations into applied and pending.
// Applied versions with no file on disk are reported by version only.
func (db *DB) SchemaStatus(ctx context.Context) (SchemaStatus, error) {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`); err != nil {
		return SchemaStatus{}, fmt.Errorf("creating schema_migrations: %w", err)
	}

	known, err := loadMigrations(Schema)
	if err != nil {
		return SchemaStatus{}, err
	}

	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_migrations ORDER BY version`)
	if err != nil {
		return SchemaStatus{}, fmt.Errorf("reading schema_migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	var status SchemaStatus
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return SchemaStatus{}, fmt.Errorf("scanning schema_migrations: %w", err)
		}
		applied[v] = true
		status.Version = v
	}
	if err := rows.Err(); err != nil {
		return SchemaStatus{}, fmt.Errorf("reading schema_migrations: %w", err)
	}

	byVersion := make(map[string]Migration, len(known))
	for _, m := range known {
		byVersion[m.Version] = m
		if !applied[m.Version] {
			status.Pending = append(status.Pending, m)
		}
	}
	for v := range applied {
		m, ok := byVersion[v]
		if !ok {
			m = Migration{Version: v}
		}
		status.Applied = append(status.Applied, m)
	}
	sort.Slice(status.Applied, func(i, j int) bool {
		return status.Applied[i].Version < status.Applied[j].Version
	})
	return status, nil
}

func (db *DB) step(ctx context.Context, m Migration, up bool) error {
	dir, script := "up", m.up
	if !up {
		dir, script = "down", m.down
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migration %s %s: %w", m.Version, dir, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, script); err != nil {
		return fmt.Errorf("migration %s_%s %s: %w", m.Version, m.Name, dir, err)
	}
	if up {
		_, err = tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, m.Version)
	} else {
		_, err = tx.ExecContext(ctx, `DELETE FROM schema_migrations WHERE version = ?`, m.Version)
	}
	if err != nil {
		return fmt.Errorf("recording migration %s: %w", m.Version, err)
	}
	return tx.Commit()
}

// loadMigrations reads fsys in version order. A nil fsys has no
// migrations; files that do not follow the naming scheme are ignored.
func loadMigrations(fsys fs.FS) ([]Migration, error) {
	if fsys == nil {
		return nil, nil
	}
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("reading migrations: %w", err)
	}

	byVersion := make(map[string]*Migration)
	for _, e := range entries {
		parts := migrationFile.FindStringSubmatch(e.Name())
		if e.IsDir() || parts == nil {
			continue
		}
		raw, err := fs.ReadFile(fsys, e.Name())
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", e.Name(), err)
		}

		m := byVersion[parts[1]]
		if m == nil {
			m = &Migration{Version: parts[1], Name: parts[2]}
			byVersion[parts[1]] = m
		}
		if parts[3] == "up" {
			m.up = string(raw)
		} else {
			m.down = string(raw)
		}
	}

	out := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if strings.TrimSpace(m.up) == "" {
			return nil, fmt.Errorf("migration %s_%s has no up file", m.Version, m.Name)
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}
