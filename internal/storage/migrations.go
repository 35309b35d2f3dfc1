package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Items and price entry versions",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS items (
					id TEXT PRIMARY KEY,
					tenant_id TEXT NOT NULL,
					family TEXT NOT NULL DEFAULT '',
					type_name TEXT NOT NULL DEFAULT '',
					category TEXT NOT NULL DEFAULT '',
					system_type TEXT NOT NULL DEFAULT '',
					quantity REAL NOT NULL DEFAULT 0,
					unit TEXT NOT NULL DEFAULT '',
					material TEXT NOT NULL DEFAULT '',
					part_number TEXT NOT NULL DEFAULT '',
					width_mm REAL,
					height_mm REAL,
					diameter_mm REAL,
					angle_deg REAL,
					code INTEGER,
					code_override INTEGER,
					canonical_key TEXT NOT NULL DEFAULT '',
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_items_tenant ON items(tenant_id)`,
				`CREATE INDEX idx_items_canonical ON items(tenant_id, canonical_key)`,

				`CREATE TABLE IF NOT EXISTS price_entries (
					id TEXT PRIMARY KEY,
					code INTEGER NOT NULL,
					description TEXT NOT NULL,
					unit_price TEXT NOT NULL,
					currency TEXT NOT NULL,
					vat_rate TEXT,
					unit TEXT NOT NULL DEFAULT '',
					material TEXT NOT NULL DEFAULT '',
					part_number TEXT NOT NULL DEFAULT '',
					vendor_sku TEXT NOT NULL DEFAULT '',
					source TEXT NOT NULL DEFAULT '',
					annotation TEXT NOT NULL DEFAULT '',
					width_mm REAL,
					height_mm REAL,
					diameter_mm REAL,
					angle_deg REAL,
					valid_from DATETIME NOT NULL,
					valid_to DATETIME,
					is_current INTEGER NOT NULL DEFAULT 1
				)`,
				// Classification blocking must hit this index, never a scan.
				`CREATE INDEX idx_prices_code_current ON price_entries(code, is_current)`,
				`CREATE INDEX idx_prices_part_number ON price_entries(part_number) WHERE part_number != ''`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "SCD Type-2 mapping memory",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS mappings (
					id TEXT PRIMARY KEY,
					tenant_id TEXT NOT NULL,
					canonical_key TEXT NOT NULL,
					price_entry_id TEXT NOT NULL,
					start_ts DATETIME NOT NULL,
					end_ts DATETIME,
					actor TEXT NOT NULL,
					created_by TEXT NOT NULL,
					reason TEXT NOT NULL,
					FOREIGN KEY (price_entry_id) REFERENCES price_entries(id)
				)`,
				// The single-active-row invariant lives here, not in
				// application code: two writers racing on the same key
				// cannot both insert an open row.
				`CREATE UNIQUE INDEX idx_mappings_active ON mappings(tenant_id, canonical_key) WHERE end_ts IS NULL`,
				`CREATE INDEX idx_mappings_key_ts ON mappings(tenant_id, canonical_key, start_ts)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Append-only match results",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS match_results (
					id TEXT PRIMARY KEY,
					tenant_id TEXT NOT NULL,
					item_id TEXT NOT NULL,
					price_entry_id TEXT NOT NULL DEFAULT '',
					score INTEGER NOT NULL,
					method TEXT NOT NULL,
					decision TEXT NOT NULL,
					flags TEXT NOT NULL DEFAULT '[]',
					reason TEXT NOT NULL,
					actor TEXT NOT NULL,
					created_at DATETIME NOT NULL,
					FOREIGN KEY (item_id) REFERENCES items(id)
				)`,
				`CREATE INDEX idx_results_item_created ON match_results(item_id, created_at DESC)`,
				`CREATE INDEX idx_results_tenant_decision ON match_results(tenant_id, decision)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
