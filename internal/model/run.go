package model

import "time"

// RunStats aggregates the soft-error counters for one import run. None of
// these conditions is fatal; they are reported in the run summary and stored
// alongside the run row.
type RunStats struct {
	Places            int64 `json:"places"`
	Names             int64 `json:"names"`
	MalformedPlaces   int64 `json:"malformed_places"`
	MalformedNames    int64 `json:"malformed_names"`
	DuplicateDefiners int64 `json:"duplicate_definers"`
	MissingParents    int64 `json:"missing_parents"`
	SpatialFallbacks  int64 `json:"spatial_fallbacks"`
	WalkupFallbacks   int64 `json:"walkup_fallbacks"`
	RootPlaces        int64 `json:"root_places"`
	OrphanNames       int64 `json:"orphan_names"`
}

// Conflicts returns the total number of hierarchy conflicts observed.
func (s *RunStats) Conflicts() int64 {
	return s.DuplicateDefiners + s.MissingParents
}

// ImportRun records one completed (or failed) import for the import_runs
// bookkeeping table.
type ImportRun struct {
	ID         string
	PlacesPath string
	NamesPath  string
	Status     string
	StartedAt  time.Time
	FinishedAt time.Time
	Stats      RunStats
}

// Run statuses.
const (
	RunStatusComplete = "complete"
	RunStatusFailed   = "failed"
)
