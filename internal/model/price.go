package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceEntry represents one version of a vendor price-book row.
// Price changes never mutate a row; ingestion inserts a new version with its
// own validity window and flips is_current.
type PriceEntry struct {
	ValidFrom   time.Time
	ValidTo     *time.Time
	ID          string
	Code        int
	Description string
	Currency    string
	Unit        string
	Material    string
	PartNumber  string // Manufacturer part number
	VendorSKU   string
	Source      string // Ingestion attribution, e.g. "datanorm:2025-08"
	Annotation  string // Freeform vendor remark, if any
	UnitPrice   decimal.Decimal
	VATRate     *decimal.Decimal
	WidthMM     *float64
	HeightMM    *float64
	DiameterMM  *float64
	AngleDeg    *float64
	IsCurrent   bool
}

// Dimensions returns the populated numeric dimensions keyed by field name.
func (p *PriceEntry) Dimensions() map[string]float64 {
	dims := make(map[string]float64, 4)
	if p.WidthMM != nil {
		dims["width_mm"] = *p.WidthMM
	}
	if p.HeightMM != nil {
		dims["height_mm"] = *p.HeightMM
	}
	if p.DiameterMM != nil {
		dims["diameter_mm"] = *p.DiameterMM
	}
	if p.AngleDeg != nil {
		dims["angle_deg"] = *p.AngleDeg
	}
	return dims
}
