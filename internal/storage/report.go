package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/costlink/costlink/internal/service"
)

// GetReportRows joins items to the mapping row active at asOf and to the
// price entry that mapping references. Rows come back ordered by item id so
// identical (tenant, asOf) arguments always produce byte-identical output,
// regardless of writes that happened after asOf.
func (s *SQLiteStorage) GetReportRows(ctx context.Context, tenantID string, asOf time.Time) ([]service.ReportRow, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(tenantID, "tenantID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT
			i.id, i.family, i.type_name, i.quantity,
			COALESCE(i.code, 0), i.canonical_key,
			m.id, m.price_entry_id, m.start_ts,
			p.description, p.unit_price, p.currency
		FROM items i
		LEFT JOIN mappings m
			ON m.tenant_id = i.tenant_id
			AND m.canonical_key = i.canonical_key
			AND i.canonical_key != ''
			AND m.start_ts <= ?
			AND (m.end_ts IS NULL OR m.end_ts > ?)
		LEFT JOIN price_entries p ON p.id = m.price_entry_id
		WHERE i.tenant_id = ?
		ORDER BY i.id
	`, asOf, asOf, tenantID)
	if err != nil {
		return nil, wrapSQLiteError(err, "failed to query report rows")
	}
	defer func() { _ = rows.Close() }()

	var report []service.ReportRow
	for rows.Next() {
		var row service.ReportRow
		var mappingID, priceEntryID, description, unitPrice, currency sql.NullString
		var mappedAt sql.NullTime

		err := rows.Scan(
			&row.ItemID, &row.Family, &row.TypeName, &row.Quantity,
			&row.Code, &row.CanonicalKey,
			&mappingID, &priceEntryID, &mappedAt,
			&description, &unitPrice, &currency,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report row: %w", err)
		}

		if mappingID.Valid {
			row.Mapped = true
			row.PriceEntryID = priceEntryID.String
			row.Description = description.String
			row.UnitPrice = unitPrice.String
			row.Currency = currency.String
			if mappedAt.Valid {
				t := mappedAt.Time
				row.MappedAt = &t
			}
		}

		report = append(report, row)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapSQLiteError(err, "failed to iterate report rows")
	}
	return report, nil
}
