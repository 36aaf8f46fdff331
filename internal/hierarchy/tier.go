// Package hierarchy reconstructs the administrative parent tree from flat
// GeoNames records carrying only admin codes.
package hierarchy

import "strings"

// Tier is one level of the administrative hierarchy, ordered coarse to fine.
type Tier int

const (
	TierCountry Tier = iota
	TierRegion
	TierCounty
	TierDistrict
	TierSubdistrict
	TierPopulated
	TierOther
)

// tierNames indexed by Tier.
var tierNames = [...]string{
	"country",
	"region",
	"county",
	"district",
	"subdistrict",
	"populated",
	"other",
}

func (t Tier) String() string {
	if t < TierCountry || t > TierOther {
		return "unknown"
	}
	return tierNames[t]
}

// Admin reports whether the tier defines an administrative unit that can be
// a lookup target (Country through District).
func (t Tier) Admin() bool {
	return t >= TierCountry && t <= TierDistrict
}

// ClassifyTier maps a GeoNames feature code to its hierarchy tier.
// Unknown codes classify as Other and are attached like populated places.
func ClassifyTier(featureCode string) Tier {
	switch {
	case strings.HasPrefix(featureCode, "PCLI"):
		return TierCountry
	case featureCode == "ADM1":
		return TierRegion
	case featureCode == "ADM2":
		return TierCounty
	case featureCode == "ADM3":
		return TierDistrict
	case featureCode == "ADM4":
		return TierSubdistrict
	case strings.HasPrefix(featureCode, "PPL"):
		return TierPopulated
	default:
		return TierOther
	}
}
