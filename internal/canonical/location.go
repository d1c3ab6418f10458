package canonical

import (
	"strings"

	"github.com/mmcloughlin/geohash"

	"github.com/yourorg/hotel-broker/internal/adapter"
	"github.com/yourorg/hotel-broker/internal/domain"
)

// Geohash precisions: 6 chars (~1.2 km cells) identify a place, 4 chars
// (~39 km cells) say two points are in the same area.
const (
	dedupPrecision = 6
	areaPrecision  = 4
)

func hasCoordinates(lat, lon float64) bool {
	return lat != 0 || lon != 0
}

// MergeLocations folds candidate sets from several lookups into one list,
// keeping provider order. Candidates that fall into the same 6-char geohash
// cell as an earlier one are dropped; candidates without coordinates are
// deduplicated by id.
func MergeLocations(sets ...[]adapter.Candidate) []domain.Location {
	var out []domain.Location
	seen := map[string]bool{}
	for _, set := range sets {
		for _, c := range set {
			loc := domain.Location{
				ID:        domain.CompositeID(c.Provider, c.Code),
				Name:      strings.TrimSpace(c.Name),
				Latitude:  c.Latitude,
				Longitude: c.Longitude,
				Locality:  strings.TrimSpace(c.Locality),
				Country:   strings.TrimSpace(c.Country),
			}
			key := loc.ID
			if hasCoordinates(c.Latitude, c.Longitude) {
				loc.Geohash = geohash.EncodeWithPrecision(c.Latitude, c.Longitude, dedupPrecision)
				key = loc.Geohash
			}
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, loc)
		}
	}
	return out
}

// fillLocality completes a hotel location from the first merged location in
// the same 4-char geohash area. Locations that already name a locality are
// left alone.
func fillLocality(loc *domain.Location, merged []domain.Location) {
	if loc.Locality != "" || len(loc.Geohash) < areaPrecision {
		return
	}
	area := loc.Geohash[:areaPrecision]
	for _, m := range merged {
		if m.Locality == "" || !strings.HasPrefix(m.Geohash, area) {
			continue
		}
		loc.Locality = m.Locality
		if loc.Country == "" {
			loc.Country = m.Country
		}
		return
	}
}
