package database

import (
	"context"
	"fmt"
	"strings"
)

// migration defines a single idempotent schema migration.
type migration struct {
	name  string
	sql   string
	check string // query that returns true if the migration is already applied
}

// migrations is the ordered list of schema migrations to apply.
// Each must be idempotent (use IF NOT EXISTS, IF EXISTS, etc.).
var migrations = []migration{
	{
		name:  "add recordings.duration_seconds",
		sql:   `ALTER TABLE recordings ADD COLUMN IF NOT EXISTS duration_seconds double precision`,
		check: `SELECT EXISTS (SELECT 1 FROM information_schema.columns WHERE table_name = 'recordings' AND column_name = 'duration_seconds')`,
	},
	{
		name:  "add runs recording index",
		sql:   `CREATE INDEX IF NOT EXISTS idx_runs_recording ON transformation_runs (recording_id, started_at DESC) WHERE recording_id IS NOT NULL`,
		check: `SELECT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_runs_recording')`,
	},
	{
		name:  "add runs transformation index",
		sql:   `CREATE INDEX IF NOT EXISTS idx_runs_transformation ON transformation_runs (transformation_id, started_at DESC)`,
		check: `SELECT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_runs_transformation')`,
	},
}

// Migrate runs all pending schema migrations.
// For each migration, it first checks whether the change is already present.
// If not, it attempts to apply it. If the apply fails (e.g. insufficient
// privileges), the error is returned — the caller should treat this as fatal
// since the application's queries depend on these columns existing.
func (db *DB) Migrate(ctx context.Context) error {
	var pending []migration
	for _, m := range migrations {
		if m.check != "" {
			var exists bool
			if err := db.Pool.QueryRow(ctx, m.check).Scan(&exists); err == nil && exists {
				continue
			}
		}
		pending = append(pending, m)
	}

	if len(pending) == 0 {
		return nil
	}

	applied := 0
	for _, m := range pending {
		if _, err := db.Pool.Exec(ctx, m.sql); err != nil {
			return &MigrationError{failed: m, pending: pending[applied:], err: err}
		}
		db.log.Info().Str("migration", m.name).Msg("schema migration applied")
		applied++
	}
	db.log.Info().Int("applied", applied).Msg("schema migrations complete")
	return nil
}

// MigrationError is returned when a migration fails.
// It includes the SQL needed to apply all remaining migrations manually.
type MigrationError struct {
	failed  migration
	pending []migration
	err     error
}

func (e *MigrationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "migration %q failed: %v\n", e.failed.name, e.err)
	b.WriteString("apply the remaining migrations manually:\n")
	for _, m := range e.pending {
		fmt.Fprintf(&b, "-- %s\n%s;\n", m.name, m.sql)
	}
	return b.String()
}

func (e *MigrationError) Unwrap() error { return e.err }
