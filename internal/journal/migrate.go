package journal

import (
	"context"
	"database/sql"
	"embed"
	"io/fs"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// migrate applies all pending SQL migrations in lexicographic order.
func migrate(ctx context.Context, db *sql.DB) error {
	log := zap.L().With(zap.String("component", "journal.migrate"))

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename   TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`); err != nil {
		return eris.Wrap(err, "journal: ensure migration table")
	}

	entries, err := fs.ReadDir(migrationFS, "migrations")
	if err != nil {
		return eris.Wrap(err, "journal: read migration dir")
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	applied := make(map[string]bool)
	rows, err := db.QueryContext(ctx, "SELECT filename FROM schema_migrations")
	if err != nil {
		return eris.Wrap(err, "journal: query applied migrations")
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return eris.Wrap(err, "journal: scan migration row")
		}
		applied[name] = true
	}
	if err := rows.Err(); err != nil {
		return eris.Wrap(err, "journal: iterate migrations")
	}

	for _, entry := range entries {
		name := entry.Name()
		if applied[name] {
			continue
		}

		data, err := migrationFS.ReadFile("migrations/" + name)
		if err != nil {
			return eris.Wrapf(err, "journal: read migration %s", name)
		}

		log.Info("applying migration", zap.String("file", name))

		if _, err := db.ExecContext(ctx, string(data)); err != nil {
			return eris.Wrapf(err, "journal: apply migration %s", name)
		}
		if _, err := db.ExecContext(ctx,
			"INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return eris.Wrapf(err, "journal: record migration %s", name)
		}
	}

	return nil
}
