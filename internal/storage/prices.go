package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/costlink/costlink/internal/common"
	"github.com/costlink/costlink/internal/model"
)

const priceColumns = `id, code, description, unit_price, currency, vat_rate,
	unit, material, part_number, vendor_sku, source, annotation,
	width_mm, height_mm, diameter_mm, angle_deg,
	valid_from, valid_to, is_current`

// SavePriceEntries inserts a batch of price entry versions. A price change
// is a new row: when a version arrives for an id that already exists, the
// insert fails rather than mutating history.
func (s *SQLiteStorage) SavePriceEntries(ctx context.Context, entries []model.PriceEntry) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validatePriceEntries(entries); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i := range entries {
		entry := &entries[i]

		// A new current version supersedes prior current versions of the
		// same part number from the same source.
		if entry.IsCurrent && entry.PartNumber != "" {
			_, err = tx.ExecContext(ctx, `
				UPDATE price_entries
				SET is_current = 0, valid_to = ?
				WHERE part_number = ? AND source = ? AND is_current = 1 AND id != ?
			`, entry.ValidFrom, entry.PartNumber, entry.Source, entry.ID)
			if err != nil {
				return wrapSQLiteError(err, "failed to close prior price versions")
			}
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO price_entries (
				id, code, description, unit_price, currency, vat_rate,
				unit, material, part_number, vendor_sku, source, annotation,
				width_mm, height_mm, diameter_mm, angle_deg,
				valid_from, valid_to, is_current
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			entry.ID, entry.Code, entry.Description, entry.UnitPrice.String(), entry.Currency,
			nullDecimal(entry.VATRate),
			entry.Unit, entry.Material, entry.PartNumber, entry.VendorSKU, entry.Source, entry.Annotation,
			nullFloat(entry.WidthMM), nullFloat(entry.HeightMM), nullFloat(entry.DiameterMM), nullFloat(entry.AngleDeg),
			entry.ValidFrom, nullTime(entry.ValidTo), entry.IsCurrent,
		)
		if err != nil {
			return wrapSQLiteError(err, fmt.Sprintf("failed to save price entry %s", entry.ID))
		}
	}

	return tx.Commit()
}

// GetPriceEntryByID retrieves a single price entry version.
func (s *SQLiteStorage) GetPriceEntryByID(ctx context.Context, id string) (*model.PriceEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+priceColumns+` FROM price_entries WHERE id = ?`, id)
	entry, err := scanPriceEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("price entry %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, wrapSQLiteError(err, "failed to get price entry")
	}
	return entry, nil
}

// GetCurrentPricesByCode retrieves current price versions sharing a
// classification code. This is the blocking query; it rides the
// (code, is_current) index and is ordered by id for determinism.
func (s *SQLiteStorage) GetCurrentPricesByCode(ctx context.Context, code int, limit int) ([]model.PriceEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", ErrInvalidPrice)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+priceColumns+`
		FROM price_entries
		WHERE code = ? AND is_current = 1
		ORDER BY id
		LIMIT ?
	`, code, limit)
	if err != nil {
		return nil, wrapSQLiteError(err, "failed to query prices by code")
	}
	defer func() { _ = rows.Close() }()

	return collectPriceEntries(rows)
}

// GetCurrentPricesRelaxed is the escape-hatch query: current prices with no
// classification filter, optionally narrowed by unit, ordered by id.
func (s *SQLiteStorage) GetCurrentPricesRelaxed(ctx context.Context, unit string, limit int) ([]model.PriceEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", ErrInvalidPrice)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+priceColumns+`
		FROM price_entries
		WHERE is_current = 1 AND (? = '' OR unit = ?)
		ORDER BY id
		LIMIT ?
	`, unit, unit, limit)
	if err != nil {
		return nil, wrapSQLiteError(err, "failed to query relaxed prices")
	}
	defer func() { _ = rows.Close() }()

	return collectPriceEntries(rows)
}

func scanPriceEntry(row rowScanner) (*model.PriceEntry, error) {
	var entry model.PriceEntry
	var priceStr string
	var vatStr sql.NullString
	var width, height, diameter, angle sql.NullFloat64
	var validTo sql.NullTime

	err := row.Scan(
		&entry.ID, &entry.Code, &entry.Description, &priceStr, &entry.Currency, &vatStr,
		&entry.Unit, &entry.Material, &entry.PartNumber, &entry.VendorSKU, &entry.Source, &entry.Annotation,
		&width, &height, &diameter, &angle,
		&entry.ValidFrom, &validTo, &entry.IsCurrent,
	)
	if err != nil {
		return nil, err
	}

	entry.UnitPrice, err = decimal.NewFromString(priceStr)
	if err != nil {
		return nil, fmt.Errorf("corrupt unit price %q for entry %s: %w", priceStr, entry.ID, err)
	}
	if vatStr.Valid {
		vat, vatErr := decimal.NewFromString(vatStr.String)
		if vatErr != nil {
			return nil, fmt.Errorf("corrupt VAT rate %q for entry %s: %w", vatStr.String, entry.ID, vatErr)
		}
		entry.VATRate = &vat
	}

	entry.WidthMM = floatPtr(width)
	entry.HeightMM = floatPtr(height)
	entry.DiameterMM = floatPtr(diameter)
	entry.AngleDeg = floatPtr(angle)
	if validTo.Valid {
		t := validTo.Time
		entry.ValidTo = &t
	}
	return &entry, nil
}

func collectPriceEntries(rows *sql.Rows) ([]model.PriceEntry, error) {
	var entries []model.PriceEntry
	for rows.Next() {
		entry, err := scanPriceEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan price entry: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapSQLiteError(err, "failed to iterate price entries")
	}
	return entries, nil
}

func nullDecimal(v *decimal.Decimal) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: v.String(), Valid: true}
}

func nullTime(v *time.Time) sql.NullTime {
	if v == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *v, Valid: true}
}
