package hierarchy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/geonames-cli/internal/model"
)

// testChain builds a resolver preloaded with a consistent
// country -> region -> county -> district chain for DE/BY.
func testChain(t *testing.T) (*Resolver, *model.RunStats) {
	t.Helper()

	stats := &model.RunStats{}
	index := NewAdminIndex()
	spatial := NewSpatialIndex(0)

	records := []*model.PlaceRecord{
		{GeonameID: 1, FeatureCode: "PCLI", CountryCode: "DE"},
		{GeonameID: 2, FeatureCode: "ADM1", CountryCode: "DE", Admin1: "BY"},
		{GeonameID: 3, FeatureCode: "ADM2", CountryCode: "DE", Admin1: "BY", Admin2: "091"},
		{GeonameID: 4, FeatureCode: "ADM3", CountryCode: "DE", Admin1: "BY", Admin2: "091", Admin3: "09162", Lat: 48.137, Lon: 11.575},
	}
	for _, rec := range records {
		tier := ClassifyTier(rec.FeatureCode)
		require.True(t, index.Define(tier, rec))
		if tier == TierDistrict {
			spatial.Add(rec.CountryCode, rec.GeonameID, rec.Lat, rec.Lon)
		}
	}

	return NewResolver(index, spatial, stats), stats
}

func TestResolver_CountryIsRoot(t *testing.T) {
	r, stats := testChain(t)

	resolved := r.Resolve(&model.PlaceRecord{GeonameID: 1, FeatureCode: "PCLI", CountryCode: "DE"})
	assert.Nil(t, resolved.ParentID)
	assert.Zero(t, stats.RootPlaces, "country roots are not conflicts")
}

func TestResolver_AdminChain(t *testing.T) {
	r, stats := testChain(t)

	tests := []struct {
		name     string
		rec      *model.PlaceRecord
		expected int64
	}{
		{
			name:     "region parents to country",
			rec:      &model.PlaceRecord{GeonameID: 2, FeatureCode: "ADM1", CountryCode: "DE", Admin1: "BY"},
			expected: 1,
		},
		{
			name:     "county parents to region",
			rec:      &model.PlaceRecord{GeonameID: 3, FeatureCode: "ADM2", CountryCode: "DE", Admin1: "BY", Admin2: "091"},
			expected: 2,
		},
		{
			name:     "district parents to county",
			rec:      &model.PlaceRecord{GeonameID: 4, FeatureCode: "ADM3", CountryCode: "DE", Admin1: "BY", Admin2: "091", Admin3: "09162"},
			expected: 3,
		},
		{
			name:     "subdistrict parents to district",
			rec:      &model.PlaceRecord{GeonameID: 5, FeatureCode: "ADM4", CountryCode: "DE", Admin1: "BY", Admin2: "091", Admin3: "09162", Admin4: "0916200"},
			expected: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolved := r.Resolve(tt.rec)
			require.NotNil(t, resolved.ParentID)
			assert.Equal(t, tt.expected, *resolved.ParentID)
		})
	}
	assert.Zero(t, stats.MissingParents)
	assert.Zero(t, stats.SpatialFallbacks)
}

func TestResolver_PopulatedExactMatch(t *testing.T) {
	r, stats := testChain(t)

	resolved := r.Resolve(&model.PlaceRecord{
		GeonameID: 10, FeatureCode: "PPLA", CountryCode: "DE",
		Admin1: "BY", Admin2: "091", Admin3: "09162",
		Lat: 48.14, Lon: 11.58,
	})
	require.NotNil(t, resolved.ParentID)
	assert.Equal(t, int64(4), *resolved.ParentID)
	assert.Zero(t, stats.SpatialFallbacks, "exact match must not invoke fallback")
}

func TestResolver_PopulatedSpatialFallback(t *testing.T) {
	stats := &model.RunStats{}
	index := NewAdminIndex()
	spatial := NewSpatialIndex(0)

	districts := []*model.PlaceRecord{
		{GeonameID: 1, FeatureCode: "ADM3", CountryCode: "DE", Admin1: "BY", Admin2: "091", Admin3: "A", Lat: 48.137, Lon: 11.575},
		{GeonameID: 2, FeatureCode: "ADM3", CountryCode: "DE", Admin1: "BY", Admin2: "092", Admin3: "B", Lat: 49.453, Lon: 11.077},
		{GeonameID: 3, FeatureCode: "ADM3", CountryCode: "DE", Admin1: "BY", Admin2: "093", Admin3: "C", Lat: 49.894, Lon: 10.885},
	}
	for _, d := range districts {
		require.True(t, index.Define(TierDistrict, d))
		spatial.Add(d.CountryCode, d.GeonameID, d.Lat, d.Lon)
	}
	r := NewResolver(index, spatial, stats)

	// Admin path has no district definer, but the point sits next to
	// district 2: fallback must pick it over the other two.
	resolved := r.Resolve(&model.PlaceRecord{
		GeonameID: 10, FeatureCode: "PPL", CountryCode: "DE",
		Admin1: "BY", Admin2: "999", Admin3: "Z",
		Lat: 49.45, Lon: 11.08,
	})
	require.NotNil(t, resolved.ParentID)
	assert.Equal(t, int64(2), *resolved.ParentID)
	assert.Equal(t, int64(1), stats.MissingParents)
	assert.Equal(t, int64(1), stats.SpatialFallbacks)
}

func TestResolver_PopulatedWalkupWhenNoDistricts(t *testing.T) {
	stats := &model.RunStats{}
	index := NewAdminIndex()
	require.True(t, index.Define(TierCountry, &model.PlaceRecord{GeonameID: 1, FeatureCode: "PCLI", CountryCode: "MC"}))
	r := NewResolver(index, NewSpatialIndex(0), stats)

	resolved := r.Resolve(&model.PlaceRecord{
		GeonameID: 10, FeatureCode: "PPLC", CountryCode: "MC", Lat: 43.73, Lon: 7.42,
	})
	require.NotNil(t, resolved.ParentID)
	assert.Equal(t, int64(1), *resolved.ParentID)
	assert.Equal(t, int64(1), stats.WalkupFallbacks)
}

func TestResolver_PopulatedRootWhenCountryEmpty(t *testing.T) {
	stats := &model.RunStats{}
	r := NewResolver(NewAdminIndex(), NewSpatialIndex(0), stats)

	resolved := r.Resolve(&model.PlaceRecord{
		GeonameID: 10, FeatureCode: "PPL", CountryCode: "XZ", Lat: 1, Lon: 1,
	})
	assert.Nil(t, resolved.ParentID)
	assert.Equal(t, int64(1), stats.RootPlaces)
}

func TestResolver_RegionWithoutCountryBecomesRoot(t *testing.T) {
	stats := &model.RunStats{}
	r := NewResolver(NewAdminIndex(), NewSpatialIndex(0), stats)

	resolved := r.Resolve(&model.PlaceRecord{GeonameID: 2, FeatureCode: "ADM1", CountryCode: "DE", Admin1: "BY"})
	assert.Nil(t, resolved.ParentID)
	assert.Equal(t, int64(1), stats.MissingParents)
	assert.Equal(t, int64(1), stats.RootPlaces)
}

func TestResolver_OtherAttachesLikePopulated(t *testing.T) {
	r, _ := testChain(t)

	resolved := r.Resolve(&model.PlaceRecord{
		GeonameID: 20, FeatureCode: "STM", CountryCode: "DE",
		Admin1: "BY", Admin2: "091", Admin3: "09162",
		Lat: 48.14, Lon: 11.58,
	})
	require.NotNil(t, resolved.ParentID)
	assert.Equal(t, int64(4), *resolved.ParentID)
}

// TestResolver_NoCyclesInParentGraph resolves a full consistent tree and
// walks every parent chain to a fixed depth bound, asserting each chain
// terminates at a root.
func TestResolver_NoCyclesInParentGraph(t *testing.T) {
	r, _ := testChain(t)

	records := []*model.PlaceRecord{
		{GeonameID: 1, FeatureCode: "PCLI", CountryCode: "DE"},
		{GeonameID: 2, FeatureCode: "ADM1", CountryCode: "DE", Admin1: "BY"},
		{GeonameID: 3, FeatureCode: "ADM2", CountryCode: "DE", Admin1: "BY", Admin2: "091"},
		{GeonameID: 4, FeatureCode: "ADM3", CountryCode: "DE", Admin1: "BY", Admin2: "091", Admin3: "09162"},
		{GeonameID: 5, FeatureCode: "ADM4", CountryCode: "DE", Admin1: "BY", Admin2: "091", Admin3: "09162", Admin4: "1"},
		{GeonameID: 6, FeatureCode: "PPLA", CountryCode: "DE", Admin1: "BY", Admin2: "091", Admin3: "09162", Lat: 48.1, Lon: 11.5},
	}

	parents := make(map[int64]*int64)
	for _, rec := range records {
		resolved := r.Resolve(rec)
		require.NotEqual(t, rec.GeonameID, derefOr(resolved.ParentID, -1), "no self-loops")
		parents[rec.GeonameID] = resolved.ParentID
	}

	const depthBound = 10
	for id := range parents {
		current := id
		terminated := false
		for i := 0; i < depthBound; i++ {
			p := parents[current]
			if p == nil {
				terminated = true
				break
			}
			current = *p
		}
		assert.True(t, terminated, "parent chain from %d must reach a root", id)
	}
}

func derefOr(p *int64, def int64) int64 {
	if p == nil {
		return def
	}
	return *p
}
