package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/costlink/costlink/internal/common"
	"github.com/costlink/costlink/internal/model"
	"github.com/costlink/costlink/internal/service"
)

const itemColumns = `id, tenant_id, family, type_name, category, system_type,
	quantity, unit, material, part_number,
	width_mm, height_mm, diameter_mm, angle_deg,
	code, code_override, canonical_key, created_at`

// SaveItems inserts a batch of items. Items are immutable for a schedule
// revision, so an existing row is left untouched rather than overwritten.
func (s *SQLiteStorage) SaveItems(ctx context.Context, items []model.Item) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateItems(items); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i := range items {
		item := &items[i]
		_, err = tx.ExecContext(ctx, `
			INSERT INTO items (
				id, tenant_id, family, type_name, category, system_type,
				quantity, unit, material, part_number,
				width_mm, height_mm, diameter_mm, angle_deg,
				code, code_override, canonical_key
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO NOTHING
		`,
			item.ID, item.TenantID, item.Family, item.TypeName, item.Category, item.SystemType,
			item.Quantity, item.Unit, item.Material, item.PartNumber,
			nullFloat(item.WidthMM), nullFloat(item.HeightMM), nullFloat(item.DiameterMM), nullFloat(item.AngleDeg),
			nullInt(item.Code), nullInt(item.CodeOverride), item.CanonicalKey,
		)
		if err != nil {
			return wrapSQLiteError(err, fmt.Sprintf("failed to save item %s", item.ID))
		}
	}

	return tx.Commit()
}

// GetItemByID retrieves a single item.
func (s *SQLiteStorage) GetItemByID(ctx context.Context, id string) (*model.Item, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("item %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, wrapSQLiteError(err, "failed to get item")
	}
	return item, nil
}

// GetItems retrieves items matching the filter, ordered by id for
// reproducible output.
func (s *SQLiteStorage) GetItems(ctx context.Context, filter service.ItemFilter) ([]model.Item, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(filter.TenantID, "tenantID"); err != nil {
		return nil, err
	}

	query := `SELECT ` + itemColumns + ` FROM items WHERE tenant_id = ?`
	args := []any{filter.TenantID}

	if filter.OnlyUnmatched {
		query += ` AND id NOT IN (SELECT DISTINCT item_id FROM match_results)`
	}
	query += ` ORDER BY id`
	if filter.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapSQLiteError(err, "failed to query items")
	}
	defer func() { _ = rows.Close() }()

	return collectItems(rows)
}

// GetItemsToMatch retrieves all items in a tenant with no match result yet.
func (s *SQLiteStorage) GetItemsToMatch(ctx context.Context, tenantID string) ([]model.Item, error) {
	return s.GetItems(ctx, service.ItemFilter{TenantID: tenantID, OnlyUnmatched: true})
}

// UpdateItemClassification records the classification code and canonical
// key assigned by the matching core. This is the only mutation items ever
// receive.
func (s *SQLiteStorage) UpdateItemClassification(ctx context.Context, itemID string, code int, canonicalKey string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(itemID, "itemID"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE items SET code = ?, canonical_key = ? WHERE id = ?
	`, code, canonicalKey, itemID)
	if err != nil {
		return wrapSQLiteError(err, "failed to update item classification")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("item %s: %w", itemID, common.ErrNotFound)
	}
	return nil
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*model.Item, error) {
	var item model.Item
	var width, height, diameter, angle sql.NullFloat64
	var code, override sql.NullInt64

	err := row.Scan(
		&item.ID, &item.TenantID, &item.Family, &item.TypeName, &item.Category, &item.SystemType,
		&item.Quantity, &item.Unit, &item.Material, &item.PartNumber,
		&width, &height, &diameter, &angle,
		&code, &override, &item.CanonicalKey, &item.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	item.WidthMM = floatPtr(width)
	item.HeightMM = floatPtr(height)
	item.DiameterMM = floatPtr(diameter)
	item.AngleDeg = floatPtr(angle)
	item.Code = intPtr(code)
	item.CodeOverride = intPtr(override)
	return &item, nil
}

func collectItems(rows *sql.Rows) ([]model.Item, error) {
	var items []model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapSQLiteError(err, "failed to iterate items")
	}
	return items, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}
