package hierarchy

import (
	"github.com/dhconnelly/rtreego"
	"github.com/golang/geo/s2"
)

// earthRadiusKM is the mean Earth radius used to convert great-circle
// angles to kilometers.
const earthRadiusKM = 6371.0088

// defaultNearestCandidates is how many R-tree neighbors are pulled before
// great-circle re-ranking when the caller does not configure a value.
const defaultNearestCandidates = 8

// pointTolerance sizes the degenerate rectangle stored per district point.
const pointTolerance = 1e-6

// districtPoint is one District record in the index.
type districtPoint struct {
	id  int64
	ll  s2.LatLng
	loc rtreego.Point
}

func (p *districtPoint) Bounds() rtreego.Rect {
	return p.loc.ToRect(pointTolerance)
}

// SpatialIndex answers nearest-District queries, scoped per country so that
// coordinates are never compared across borders. Candidate pruning uses a
// planar R-tree over (lon, lat); final ranking uses the s2 great-circle
// distance, which is the authoritative metric for fallback resolution.
// Great-circle ties are broken by the lower geonameid so results are
// reproducible across runs.
//
// The index must be fully built before the first query; Add and
// NearestDistrict must not interleave.
type SpatialIndex struct {
	byCountry  map[string]*rtreego.Rtree
	candidates int
}

// NewSpatialIndex returns an empty index. candidates controls how many
// R-tree neighbors are re-ranked per query; <= 0 selects the default.
func NewSpatialIndex(candidates int) *SpatialIndex {
	if candidates <= 0 {
		candidates = defaultNearestCandidates
	}
	return &SpatialIndex{
		byCountry:  make(map[string]*rtreego.Rtree),
		candidates: candidates,
	}
}

// Add inserts a District record into its country's tree.
func (s *SpatialIndex) Add(country string, id int64, lat, lon float64) {
	if country == "" {
		return
	}
	rt, ok := s.byCountry[country]
	if !ok {
		rt = rtreego.NewTree(2, 25, 50)
		s.byCountry[country] = rt
	}
	rt.Insert(&districtPoint{
		id:  id,
		ll:  s2.LatLngFromDegrees(lat, lon),
		loc: rtreego.Point{lon, lat},
	})
}

// Districts returns the number of indexed districts for a country.
func (s *SpatialIndex) Districts(country string) int {
	rt, ok := s.byCountry[country]
	if !ok {
		return 0
	}
	return rt.Size()
}

// NearestDistrict returns the geonameid of the district nearest to
// (lat, lon) within the given country by great-circle distance. Returns
// false when the country has no districts.
func (s *SpatialIndex) NearestDistrict(country string, lat, lon float64) (int64, bool) {
	rt, ok := s.byCountry[country]
	if !ok || rt.Size() == 0 {
		return 0, false
	}

	neighbors := rt.NearestNeighbors(s.candidates, rtreego.Point{lon, lat})
	from := s2.LatLngFromDegrees(lat, lon)

	var (
		bestID   int64
		bestDist float64
		found    bool
	)
	for _, n := range neighbors {
		dp, ok := n.(*districtPoint)
		if !ok {
			continue
		}
		d := from.Distance(dp.ll).Radians() * earthRadiusKM
		if !found || d < bestDist || (d == bestDist && dp.id < bestID) {
			bestID = dp.id
			bestDist = d
			found = true
		}
	}
	return bestID, found
}
