// Package model defines the core domain models used throughout the application.
package model

import "time"

// CodeUnknown is the reserved classification code for items no rule matched.
// It is a valid terminal classification, not an error; items carrying it are
// routed to manual review downstream.
const CodeUnknown = 9999

// Item represents a single BIM schedule item awaiting price matching.
// Items are created by ingestion and never mutated by the matching core.
type Item struct {
	CreatedAt    time.Time
	ID           string
	TenantID     string
	Family       string
	TypeName     string
	Category     string
	SystemType   string
	Unit         string
	Material     string
	PartNumber   string // Manufacturer part number, if known
	CanonicalKey string
	Quantity     float64
	WidthMM      *float64
	HeightMM     *float64
	DiameterMM   *float64
	AngleDeg     *float64
	Code         *int // Classification code; nil until classified
	CodeOverride *int // Explicit classification supplied by the source
}

// Classified reports whether the item carries a classification code,
// including the Unknown sentinel.
func (i *Item) Classified() bool {
	return i.Code != nil
}

// Dimensions returns the populated numeric dimensions keyed by field name.
// Only non-nil fields appear, so callers can iterate what is actually set.
func (i *Item) Dimensions() map[string]float64 {
	dims := make(map[string]float64, 4)
	if i.WidthMM != nil {
		dims["width_mm"] = *i.WidthMM
	}
	if i.HeightMM != nil {
		dims["height_mm"] = *i.HeightMM
	}
	if i.DiameterMM != nil {
		dims["diameter_mm"] = *i.DiameterMM
	}
	if i.AngleDeg != nil {
		dims["angle_deg"] = *i.AngleDeg
	}
	return dims
}
