package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration moves a schema to Version by running Statements in order.
type Migration struct {
	Version    int
	Statements []string
}

// SchemaVersion returns the highest applied migration version, or 0 for a
// fresh database.
func (db *DB) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	err := db.conn.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return version, err
}

func (db *DB) migrate(migrations []Migration) error {
	ctx := context.Background()
	if _, err := db.conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)
	`); err != nil {
		return err
	}

	current, err := db.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		db.logger.Debug("Applying schema migration",
			"path", db.dbPath,
			"from_version", current,
			"to_version", m.Version)

		err := db.WithTx(ctx, func(tx *sql.Tx) error {
			for _, stmt := range m.Statements {
				if _, err := tx.Exec(stmt); err != nil {
					return fmt.Errorf("migration %d: %w", m.Version, err)
				}
			}
			if _, err := tx.Exec("DELETE FROM schema_version"); err != nil {
				return err
			}
			_, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.Version)
			return err
		})
		if err != nil {
			return err
		}
		current = m.Version
	}
	return nil
}
