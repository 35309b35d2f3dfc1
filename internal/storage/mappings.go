package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/costlink/costlink/internal/common"
	"github.com/costlink/costlink/internal/model"
)

const mappingColumns = `id, tenant_id, canonical_key, price_entry_id,
	start_ts, end_ts, actor, created_by, reason`

// LookupMapping reads the single active mapping row for a key. Returns
// common.ErrNotFound when the key has never been mapped or its mapping was
// closed. The read rides the partial unique index, so it is O(1).
func (s *SQLiteStorage) LookupMapping(ctx context.Context, tenantID, canonicalKey string) (*model.MappingRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(tenantID, "tenantID"); err != nil {
		return nil, err
	}
	if err := validateString(canonicalKey, "canonicalKey"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT `+mappingColumns+`
		FROM mappings
		WHERE tenant_id = ? AND canonical_key = ? AND end_ts IS NULL
	`, tenantID, canonicalKey)

	record, err := scanMapping(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("mapping %s/%s: %w", tenantID, canonicalKey, common.ErrNotFound)
	}
	if err != nil {
		return nil, wrapSQLiteError(err, "failed to lookup mapping")
	}
	return record, nil
}

// WriteMapping closes any existing active row and inserts a new active row
// in one transaction. The partial unique index on the active subset makes a
// double-active row structurally impossible: if two writers race on the
// same key, the loser's insert fails with ErrIntegrity instead of silently
// overwriting.
func (s *SQLiteStorage) WriteMapping(ctx context.Context, record *model.MappingRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateMapping(record); err != nil {
		return err
	}

	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.StartTS.IsZero() {
		record.StartTS = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Close-then-insert as a single atomic unit of work. Historical rows
	// are only ever closed here, never updated otherwise or deleted.
	_, err = tx.ExecContext(ctx, `
		UPDATE mappings
		SET end_ts = ?
		WHERE tenant_id = ? AND canonical_key = ? AND end_ts IS NULL
	`, record.StartTS, record.TenantID, record.CanonicalKey)
	if err != nil {
		return wrapSQLiteError(err, "failed to close active mapping")
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO mappings (
			id, tenant_id, canonical_key, price_entry_id,
			start_ts, end_ts, actor, created_by, reason
		) VALUES (?, ?, ?, ?, ?, NULL, ?, ?, ?)
	`,
		record.ID, record.TenantID, record.CanonicalKey, record.PriceEntryID,
		record.StartTS, string(record.Actor), record.CreatedBy, record.Reason,
	)
	if err != nil {
		return wrapSQLiteError(err, "failed to insert mapping")
	}

	return tx.Commit()
}

// MappingAsOf returns the row whose [start_ts, end_ts) interval contains
// the given instant, or ErrNotFound if no mapping covered it.
func (s *SQLiteStorage) MappingAsOf(ctx context.Context, tenantID, canonicalKey string, asOf time.Time) (*model.MappingRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(tenantID, "tenantID"); err != nil {
		return nil, err
	}
	if err := validateString(canonicalKey, "canonicalKey"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT `+mappingColumns+`
		FROM mappings
		WHERE tenant_id = ? AND canonical_key = ?
		  AND start_ts <= ?
		  AND (end_ts IS NULL OR end_ts > ?)
	`, tenantID, canonicalKey, asOf, asOf)

	record, err := scanMapping(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("mapping %s/%s at %s: %w", tenantID, canonicalKey, asOf.Format(time.RFC3339), common.ErrNotFound)
	}
	if err != nil {
		return nil, wrapSQLiteError(err, "failed to query mapping as of")
	}
	return record, nil
}

// GetMappingHistory returns every mapping version for a key, oldest first.
func (s *SQLiteStorage) GetMappingHistory(ctx context.Context, tenantID, canonicalKey string) ([]model.MappingRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(tenantID, "tenantID"); err != nil {
		return nil, err
	}
	if err := validateString(canonicalKey, "canonicalKey"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+mappingColumns+`
		FROM mappings
		WHERE tenant_id = ? AND canonical_key = ?
		ORDER BY start_ts, id
	`, tenantID, canonicalKey)
	if err != nil {
		return nil, wrapSQLiteError(err, "failed to query mapping history")
	}
	defer func() { _ = rows.Close() }()

	return collectMappings(rows)
}

// GetActiveMappings returns all active mapping rows for a tenant, ordered
// by canonical key.
func (s *SQLiteStorage) GetActiveMappings(ctx context.Context, tenantID string) ([]model.MappingRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(tenantID, "tenantID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+mappingColumns+`
		FROM mappings
		WHERE tenant_id = ? AND end_ts IS NULL
		ORDER BY canonical_key
	`, tenantID)
	if err != nil {
		return nil, wrapSQLiteError(err, "failed to query active mappings")
	}
	defer func() { _ = rows.Close() }()

	return collectMappings(rows)
}

func scanMapping(row rowScanner) (*model.MappingRecord, error) {
	var record model.MappingRecord
	var endTS sql.NullTime
	var actor string

	err := row.Scan(
		&record.ID, &record.TenantID, &record.CanonicalKey, &record.PriceEntryID,
		&record.StartTS, &endTS, &actor, &record.CreatedBy, &record.Reason,
	)
	if err != nil {
		return nil, err
	}

	record.Actor = model.MappingActor(actor)
	if endTS.Valid {
		t := endTS.Time
		record.EndTS = &t
	}
	return &record, nil
}

func collectMappings(rows *sql.Rows) ([]model.MappingRecord, error) {
	var records []model.MappingRecord
	for rows.Next() {
		record, err := scanMapping(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mapping: %w", err)
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapSQLiteError(err, "failed to iterate mappings")
	}
	return records, nil
}
