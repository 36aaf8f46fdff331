package model

// NameRecord is one row of the alternate names feed. GeonameID is a foreign
// reference to a place that is not required to resolve at merge time; names
// for unknown places are persisted anyway and counted as orphans.
type NameRecord struct {
	GeonameID   int64
	Lang        string
	Name        string
	IsPreferred bool
	IsShort     bool
}
