package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/costlink/costlink/internal/common"
	"github.com/costlink/costlink/internal/model"
)

const resultColumns = `id, tenant_id, item_id, price_entry_id, score,
	method, decision, flags, reason, actor, created_at`

// SaveMatchResult appends one match result. Results are never updated; the
// latest result per item is derived by timestamp ordering.
func (s *SQLiteStorage) SaveMatchResult(ctx context.Context, result *model.MatchResult) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateMatchResult(result); err != nil {
		return err
	}

	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now().UTC()
	}

	flagsJSON, err := json.Marshal(result.Flags)
	if err != nil {
		return fmt.Errorf("failed to encode flags: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO match_results (
			id, tenant_id, item_id, price_entry_id, score,
			method, decision, flags, reason, actor, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		result.ID, result.TenantID, result.ItemID, result.PriceEntryID, result.Score,
		string(result.Method), string(result.Decision), string(flagsJSON),
		result.Reason, result.Actor, result.CreatedAt,
	)
	if err != nil {
		return wrapSQLiteError(err, "failed to save match result")
	}
	return nil
}

// GetLatestMatchResult returns the most recent result for an item, breaking
// timestamp ties by id so the answer is stable.
func (s *SQLiteStorage) GetLatestMatchResult(ctx context.Context, itemID string) (*model.MatchResult, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(itemID, "itemID"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT `+resultColumns+`
		FROM match_results
		WHERE item_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, itemID)

	result, err := scanMatchResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("match result for item %s: %w", itemID, common.ErrNotFound)
	}
	if err != nil {
		return nil, wrapSQLiteError(err, "failed to get latest match result")
	}
	return result, nil
}

// GetMatchResultsByDecision returns the latest result per item that carries
// the given decision, ordered by item id.
func (s *SQLiteStorage) GetMatchResultsByDecision(ctx context.Context, tenantID string, decision model.Decision) ([]model.MatchResult, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(tenantID, "tenantID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+resultColumns+`
		FROM match_results r
		WHERE tenant_id = ?
		  AND decision = ?
		  AND NOT EXISTS (
			SELECT 1 FROM match_results newer
			WHERE newer.item_id = r.item_id
			  AND (newer.created_at > r.created_at
			       OR (newer.created_at = r.created_at AND newer.id > r.id))
		  )
		ORDER BY item_id
	`, tenantID, string(decision))
	if err != nil {
		return nil, wrapSQLiteError(err, "failed to query match results")
	}
	defer func() { _ = rows.Close() }()

	var results []model.MatchResult
	for rows.Next() {
		result, scanErr := scanMatchResult(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan match result: %w", scanErr)
		}
		results = append(results, *result)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapSQLiteError(err, "failed to iterate match results")
	}
	return results, nil
}

func scanMatchResult(row rowScanner) (*model.MatchResult, error) {
	var result model.MatchResult
	var method, decision, flagsJSON string

	err := row.Scan(
		&result.ID, &result.TenantID, &result.ItemID, &result.PriceEntryID, &result.Score,
		&method, &decision, &flagsJSON, &result.Reason, &result.Actor, &result.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	result.Method = model.MatchMethod(method)
	result.Decision = model.Decision(decision)
	if err := json.Unmarshal([]byte(flagsJSON), &result.Flags); err != nil {
		return nil, fmt.Errorf("corrupt flags for result %s: %w", result.ID, err)
	}
	return &result, nil
}
