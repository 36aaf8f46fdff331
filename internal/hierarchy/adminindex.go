package hierarchy

import (
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/geonames-cli/internal/model"
)

// pathSep joins admin code paths inside index keys. Admin codes in the feed
// never contain the unit separator.
const pathSep = "\x1f"

// adminKey identifies one administrative unit: country, tier, and the
// ordered admin codes down to that tier.
type adminKey struct {
	country string
	tier    Tier
	path    string
}

// AdminIndex maps admin keys to the geonameid of the record that defines
// that administrative unit. At most one definer exists per key; on duplicate
// definitions the first-seen record in feed order wins and a conflict is
// recorded. The index is owned by a single resolver run and is not safe for
// concurrent use.
type AdminIndex struct {
	defs       map[adminKey]int64
	duplicates int64
}

// NewAdminIndex returns an empty index.
func NewAdminIndex() *AdminIndex {
	return &AdminIndex{defs: make(map[adminKey]int64)}
}

// Define registers rec as the definer of its own admin key. Returns false
// when the record cannot define a key (empty code path) or a definer already
// exists; the latter is counted as a conflict.
func (ix *AdminIndex) Define(tier Tier, rec *model.PlaceRecord) bool {
	if !tier.Admin() {
		return false
	}

	key, ok := makeKey(tier, rec.CountryCode, definePath(tier, rec))
	if !ok {
		return false
	}

	if prev, exists := ix.defs[key]; exists {
		ix.duplicates++
		zap.L().Debug("duplicate admin definer",
			zap.String("tier", tier.String()),
			zap.String("country", rec.CountryCode),
			zap.Int64("kept", prev),
			zap.Int64("dropped", rec.GeonameID),
		)
		return false
	}

	ix.defs[key] = rec.GeonameID
	return true
}

// Lookup returns the definer of (country, tier, path). Exact match only: a
// missing definer or an empty code component yields no result.
func (ix *AdminIndex) Lookup(tier Tier, country string, path ...string) (int64, bool) {
	key, ok := makeKey(tier, country, path)
	if !ok {
		return 0, false
	}
	id, ok := ix.defs[key]
	return id, ok
}

// Duplicates returns the number of duplicate-definer conflicts recorded.
func (ix *AdminIndex) Duplicates() int64 { return ix.duplicates }

// Len returns the number of defined administrative units.
func (ix *AdminIndex) Len() int { return len(ix.defs) }

// definePath returns the code path that identifies rec at its own tier.
func definePath(tier Tier, rec *model.PlaceRecord) []string {
	codes := rec.AdminCodes()
	return codes[:int(tier-TierCountry)]
}

// makeKey builds an index key. Empty country codes or empty path components
// cannot identify a unit and never match, mirroring the NULL-never-joins
// behavior of the relational formulation of this hierarchy.
func makeKey(tier Tier, country string, path []string) (adminKey, bool) {
	if country == "" {
		return adminKey{}, false
	}
	for _, code := range path {
		if code == "" {
			return adminKey{}, false
		}
	}
	return adminKey{
		country: country,
		tier:    tier,
		path:    strings.Join(path, pathSep),
	}, true
}
