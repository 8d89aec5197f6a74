package model

import (
	"time"

	"gridforge/internal/grid"
)

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// Snapshot is the full engine state written after every generation.
type Snapshot struct {
	VersionedRecord
	RunID        string                      `json:"run_id,omitempty"`
	SavedAt      time.Time                   `json:"saved_at"`
	NextMemberID int64                       `json:"next_member_id"`
	Generation   int                         `json:"generation"`
	Populations  map[string]PopulationRecord `json:"populations"`
}

type PopulationRecord struct {
	Phase           int            `json:"phase"`
	PhaseGeneration int            `json:"phase_generation"`
	Families        []FamilyRecord `json:"families"`
}

type FamilyRecord struct {
	LastImproved int            `json:"last_improved"`
	Members      []MemberRecord `json:"members"`
}

// MemberRecord stores a scored grid. Metrics and Score are informational;
// they are recomputed on load.
type MemberRecord struct {
	ID      int64          `json:"id"`
	Grid    *grid.Grid     `json:"grid"`
	Metrics map[string]any `json:"metrics,omitempty"`
	Score   float64        `json:"score"`
}

// GenerationDiagnostics summarizes one population's pass through a
// generation.
type GenerationDiagnostics struct {
	Generation  int     `json:"generation"`
	Population  string  `json:"population"`
	Phase       int     `json:"phase"`
	Candidates  int     `json:"candidates"`
	Failed      int     `json:"failed"`
	Families    int     `json:"families"`
	Pruned      int     `json:"pruned"`
	Promoted    int     `json:"promoted"`
	BestScore   float64 `json:"best_score"`
	BestMember  int64   `json:"best_member,omitempty"`
	ElapsedMsec int64   `json:"elapsed_msec"`
}
