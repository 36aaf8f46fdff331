// Package model defines the data types shared across the import pipeline.
package model

// PlaceRecord is one row of the GeoNames places feed. It is immutable once
// parsed; resolution wraps it in a ResolvedPlace rather than mutating it.
type PlaceRecord struct {
	GeonameID   int64
	Name        string
	FeatureCode string
	CountryCode string
	Admin1      string
	Admin2      string
	Admin3      string
	Admin4      string
	Lat         float64
	Lon         float64
}

// AdminCodes returns the ordered admin code path of the record.
func (p *PlaceRecord) AdminCodes() [4]string {
	return [4]string{p.Admin1, p.Admin2, p.Admin3, p.Admin4}
}

// ResolvedPlace is a PlaceRecord with its resolved parent. ParentID is nil
// only for roots (country records, or records whose country has no usable
// ancestors in the feed).
type ResolvedPlace struct {
	PlaceRecord
	ParentID *int64
}
