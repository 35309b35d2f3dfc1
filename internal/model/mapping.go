package model

import "time"

// MappingActor identifies what created a mapping row.
type MappingActor string

const (
	// ActorAuto marks mappings written by the auto-accept path.
	ActorAuto MappingActor = "AUTO"
	// ActorReviewer marks mappings confirmed through manual review.
	ActorReviewer MappingActor = "REVIEWER"
	// ActorCorrection marks mappings written by an explicit correction.
	ActorCorrection MappingActor = "CORRECTION"
)

// MappingRecord is one SCD Type-2 row of the mapping memory: for a tenant
// and canonical key, the price entry that was considered correct during
// [StartTS, EndTS). EndTS == nil means the row is active. Rows are closed,
// never deleted; at most one row per (tenant, canonical key) is active at
// any instant, enforced by a partial unique index in storage.
type MappingRecord struct {
	StartTS      time.Time
	EndTS        *time.Time
	ID           string
	TenantID     string
	CanonicalKey string
	PriceEntryID string
	Actor        MappingActor
	CreatedBy    string // Human or process identifier
	Reason       string
}

// Active reports whether the row is the current mapping for its key.
func (m *MappingRecord) Active() bool {
	return m.EndTS == nil
}

// Covers reports whether the row was active at the given instant.
func (m *MappingRecord) Covers(t time.Time) bool {
	if t.Before(m.StartTS) {
		return false
	}
	return m.EndTS == nil || t.Before(*m.EndTS)
}
