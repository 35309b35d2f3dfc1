package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/costlink/costlink/internal/model"
)

// Validation errors.
var (
	ErrNilContext     = errors.New("context cannot be nil")
	ErrEmptyString    = errors.New("string parameter cannot be empty")
	ErrNilParameter   = errors.New("parameter cannot be nil")
	ErrEmptySlice     = errors.New("slice cannot be empty")
	ErrInvalidItem    = errors.New("invalid item")
	ErrInvalidPrice   = errors.New("invalid price entry")
	ErrInvalidMapping = errors.New("invalid mapping record")
	ErrInvalidResult  = errors.New("invalid match result")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateItems validates a slice of items.
func validateItems(items []model.Item) error {
	if items == nil {
		return fmt.Errorf("%w: items", ErrNilParameter)
	}
	if len(items) == 0 {
		return fmt.Errorf("%w: items", ErrEmptySlice)
	}

	for i, item := range items {
		if err := validateItem(&item); err != nil {
			return fmt.Errorf("item at index %d: %w", i, err)
		}
	}
	return nil
}

// validateItem validates a single item.
func validateItem(item *model.Item) error {
	if item == nil {
		return fmt.Errorf("%w: item", ErrNilParameter)
	}
	if item.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidItem)
	}
	if item.TenantID == "" {
		return fmt.Errorf("%w: missing tenant ID", ErrInvalidItem)
	}
	if item.Family == "" && item.TypeName == "" && item.Category == "" {
		return fmt.Errorf("%w: no descriptive fields", ErrInvalidItem)
	}
	return nil
}

// validatePriceEntries validates a slice of price entries.
func validatePriceEntries(entries []model.PriceEntry) error {
	if entries == nil {
		return fmt.Errorf("%w: entries", ErrNilParameter)
	}
	if len(entries) == 0 {
		return fmt.Errorf("%w: entries", ErrEmptySlice)
	}

	for i, entry := range entries {
		if err := validatePriceEntry(&entry); err != nil {
			return fmt.Errorf("price entry at index %d: %w", i, err)
		}
	}
	return nil
}

// validatePriceEntry validates a single price entry version.
func validatePriceEntry(entry *model.PriceEntry) error {
	if entry == nil {
		return fmt.Errorf("%w: entry", ErrNilParameter)
	}
	if entry.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidPrice)
	}
	if entry.Code <= 0 {
		return fmt.Errorf("%w: missing classification code", ErrInvalidPrice)
	}
	if entry.Description == "" {
		return fmt.Errorf("%w: missing description", ErrInvalidPrice)
	}
	if entry.Currency == "" {
		return fmt.Errorf("%w: missing currency", ErrInvalidPrice)
	}
	if entry.ValidFrom.IsZero() {
		return fmt.Errorf("%w: missing valid_from", ErrInvalidPrice)
	}
	return nil
}

// validateMapping validates a mapping record prior to write.
func validateMapping(record *model.MappingRecord) error {
	if record == nil {
		return fmt.Errorf("%w: record", ErrNilParameter)
	}
	if record.TenantID == "" {
		return fmt.Errorf("%w: missing tenant ID", ErrInvalidMapping)
	}
	if record.CanonicalKey == "" {
		return fmt.Errorf("%w: missing canonical key", ErrInvalidMapping)
	}
	if record.PriceEntryID == "" {
		return fmt.Errorf("%w: missing price entry reference", ErrInvalidMapping)
	}
	if record.Actor == "" {
		return fmt.Errorf("%w: missing actor", ErrInvalidMapping)
	}
	if record.Reason == "" {
		return fmt.Errorf("%w: missing reason", ErrInvalidMapping)
	}
	return nil
}

// validateMatchResult validates a match result prior to insert.
func validateMatchResult(result *model.MatchResult) error {
	if result == nil {
		return fmt.Errorf("%w: result", ErrNilParameter)
	}
	if result.TenantID == "" {
		return fmt.Errorf("%w: missing tenant ID", ErrInvalidResult)
	}
	if result.ItemID == "" {
		return fmt.Errorf("%w: missing item reference", ErrInvalidResult)
	}
	if result.Score < 0 || result.Score > 100 {
		return fmt.Errorf("%w: score %d out of range", ErrInvalidResult, result.Score)
	}
	if result.Decision == "" {
		return fmt.Errorf("%w: missing decision", ErrInvalidResult)
	}
	if result.Reason == "" {
		return fmt.Errorf("%w: missing reason", ErrInvalidResult)
	}
	return nil
}
