package hierarchy

import (
	"github.com/sells-group/geonames-cli/internal/model"
)

// Resolver assigns each place record its single parent. It owns the admin
// index and the spatial index for the lifetime of one import run; both must
// be fully populated (all tiers Country through District defined, all
// district coordinates indexed) before fine-grained records are resolved.
//
// Resolution never fails: a missing parent degrades through the documented
// fallback chain and is recorded on the run's counters.
type Resolver struct {
	index   *AdminIndex
	spatial *SpatialIndex
	stats   *model.RunStats
}

// NewResolver wires a resolver over run-scoped indexes and counters.
func NewResolver(index *AdminIndex, spatial *SpatialIndex, stats *model.RunStats) *Resolver {
	return &Resolver{index: index, spatial: spatial, stats: stats}
}

// Index returns the resolver's admin key index.
func (r *Resolver) Index() *AdminIndex { return r.index }

// Resolve determines the parent of rec and returns the resolved place.
// Country-tier records are roots. Administrative tiers look up their
// immediate coarser tier by exact code path. Populated and unclassified
// records first try the exact district match, then the nearest district by
// great-circle distance, then walk up County, Region, Country.
func (r *Resolver) Resolve(rec *model.PlaceRecord) *model.ResolvedPlace {
	tier := ClassifyTier(rec.FeatureCode)

	parent, found := r.findParent(rec, tier)
	if found && parent == rec.GeonameID {
		// A record can never parent itself; degrade to root.
		found = false
	}

	resolved := &model.ResolvedPlace{PlaceRecord: *rec}
	if found {
		resolved.ParentID = &parent
	} else if tier != TierCountry {
		r.stats.RootPlaces++
	}
	return resolved
}

func (r *Resolver) findParent(rec *model.PlaceRecord, tier Tier) (int64, bool) {
	switch tier {
	case TierCountry:
		return 0, false

	case TierRegion:
		return r.exact(rec, TierCountry)

	case TierCounty:
		return r.exact(rec, TierRegion, rec.Admin1)

	case TierDistrict:
		return r.exact(rec, TierCounty, rec.Admin1, rec.Admin2)

	case TierSubdistrict:
		return r.exact(rec, TierDistrict, rec.Admin1, rec.Admin2, rec.Admin3)

	default: // TierPopulated, TierOther
		if id, ok := r.exact(rec, TierDistrict, rec.Admin1, rec.Admin2, rec.Admin3); ok {
			return id, true
		}
		if id, ok := r.spatial.NearestDistrict(rec.CountryCode, rec.Lat, rec.Lon); ok {
			r.stats.SpatialFallbacks++
			return id, true
		}
		return r.walkUp(rec)
	}
}

// exact performs the primary lookup for a tier's immediate parent, counting
// a missing-parent conflict when it fails.
func (r *Resolver) exact(rec *model.PlaceRecord, parentTier Tier, path ...string) (int64, bool) {
	id, ok := r.index.Lookup(parentTier, rec.CountryCode, path...)
	if !ok {
		r.stats.MissingParents++
	}
	return id, ok
}

// walkUp attaches a record to the coarsest available ancestor when its
// country has no districts at all: County, then Region, then Country.
func (r *Resolver) walkUp(rec *model.PlaceRecord) (int64, bool) {
	if id, ok := r.index.Lookup(TierCounty, rec.CountryCode, rec.Admin1, rec.Admin2); ok {
		r.stats.WalkupFallbacks++
		return id, true
	}
	if id, ok := r.index.Lookup(TierRegion, rec.CountryCode, rec.Admin1); ok {
		r.stats.WalkupFallbacks++
		return id, true
	}
	if id, ok := r.index.Lookup(TierCountry, rec.CountryCode); ok {
		r.stats.WalkupFallbacks++
		return id, true
	}
	return 0, false
}
