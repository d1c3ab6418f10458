// Package canonical turns partially normalized adapter records into the
// provider-agnostic hotel, rate and location model.
package canonical

import (
	"sort"
	"strings"

	"github.com/mmcloughlin/geohash"

	"github.com/yourorg/hotel-broker/internal/adapter"
	"github.com/yourorg/hotel-broker/internal/domain"
)

// Rate types reported by the inventory.
const (
	RateBookable = "BOOKABLE"
	RateRecheck  = "RECHECK"
)

// StatusText is the guest-facing text of a rate type.
func StatusText(rateType string) string {
	switch strings.ToUpper(rateType) {
	case RateBookable:
		return "Available"
	case RateRecheck:
		return "Price to be confirmed"
	default:
		return "On request"
	}
}

// Builder merges adapter records into canonical hotels.
type Builder struct {
	categories *CategoryMap
}

// NewBuilder creates a Builder. A nil map uses DefaultCategoryMap.
func NewBuilder(categories *CategoryMap) *Builder {
	if categories == nil {
		categories = DefaultCategoryMap()
	}
	return &Builder{categories: categories}
}

// Build converts inventory records and geocode candidate sets into canonical
// hotels and merged locations. Prices are left for the pricing engine: only
// the upstream inputs of each rate are populated. Hotels without a bookable
// rate are dropped. A negative net price fails the whole build.
func (b *Builder) Build(records []adapter.HotelRecord, locations ...[]adapter.Candidate) ([]domain.Hotel, []domain.Location, error) {
	merged := MergeLocations(locations...)

	hotels := make([]domain.Hotel, 0, len(records))
	for _, rec := range records {
		h, err := b.hotel(rec, merged)
		if err != nil {
			return nil, nil, err
		}
		if len(h.Rates) == 0 {
			continue
		}
		hotels = append(hotels, h)
	}
	return hotels, merged, nil
}

func (b *Builder) hotel(rec adapter.HotelRecord, merged []domain.Location) (domain.Hotel, error) {
	id := domain.CompositeID(domain.ProviderInventory, rec.Code)
	h := domain.Hotel{
		ID:          id,
		Code:        rec.Code,
		Name:        rec.Name,
		Stars:       b.categories.Stars(rec.CategoryCode),
		Destination: rec.Destination,
		Tags:        b.categories.Tags(rec.CategoryCode, rec.SegmentCodes),
		Currency:    rec.Currency,
		Location: domain.Location{
			ID:        id,
			Name:      rec.Name,
			Latitude:  rec.Latitude,
			Longitude: rec.Longitude,
			Locality:  rec.Zone,
		},
	}
	if hasCoordinates(rec.Latitude, rec.Longitude) {
		h.Location.Geohash = geohash.EncodeWithPrecision(rec.Latitude, rec.Longitude, dedupPrecision)
	}
	fillLocality(&h.Location, merged)

	for _, rr := range rec.Rates {
		r, ok, err := rate(id, rec.Currency, rr)
		if err != nil {
			return domain.Hotel{}, err
		}
		if ok {
			h.Rates = append(h.Rates, r)
		}
	}
	h.Boards = SummarizeBoards(h.Rates)
	return h, nil
}

// rate converts one record. ok is false for rates that cannot be booked: no
// rate key or a zero net price.
func rate(hotelID, currency string, rr adapter.RateRecord) (domain.Rate, bool, error) {
	if rr.Net.IsNegative() {
		return domain.Rate{}, false, domain.Invalid("rate.net", "rate %s has negative net price %s", rr.RateKey, rr.Net)
	}
	if rr.RateKey == "" || rr.Net.IsZero() {
		return domain.Rate{}, false, nil
	}
	rooms := rr.Rooms
	if rooms < 1 {
		rooms = 1
	}
	r := domain.Rate{
		ID:           domain.CompositeID(domain.ProviderInventory, rr.RateKey),
		HotelID:      hotelID,
		RateKey:      rr.RateKey,
		RoomCode:     rr.RoomCode,
		RoomName:     rr.RoomName,
		Rooms:        rooms,
		Adults:       rr.Adults,
		ChildAges:    rr.ChildAges,
		MinimumStay:  rr.MinimumStay,
		Remaining:    rr.Remaining,
		StatusCode:   rr.RateType,
		StatusText:   StatusText(rr.RateType),
		Currency:     currency,
		Cancellation: Cancellation(rr.Fees),
		Net:          rr.Net,
		SellingRate:  rr.SellingRate,
		OfferAmount:  rr.OfferAmount,
		IncludedTax:  rr.IncludedTax,
		PayAtHotel:   rr.PayAtHotel,
	}
	if rr.BoardCode != "" {
		name := rr.BoardName
		if name == "" {
			name = rr.BoardCode
		}
		r.Board = domain.Board{Code: rr.BoardCode, Name: name}
	}
	return r, true, nil
}

// Cancellation orders fee tiers by start, tiers without a start first. The
// free cancellation window ends at the earliest tier start; a tier that
// applies immediately means there is no free window.
func Cancellation(fees []adapter.FeeRecord) domain.CancellationPolicy {
	if len(fees) == 0 {
		return domain.CancellationPolicy{}
	}
	tiers := make([]domain.FeeTier, 0, len(fees))
	for _, f := range fees {
		tiers = append(tiers, domain.FeeTier{EffectiveAfter: f.From, Fee: f.Amount})
	}
	sort.SliceStable(tiers, func(i, j int) bool {
		a, b := tiers[i].EffectiveAfter, tiers[j].EffectiveAfter
		switch {
		case a == nil:
			return b != nil
		case b == nil:
			return false
		default:
			return a.Before(*b)
		}
	})
	p := domain.CancellationPolicy{Tiers: tiers}
	if first := tiers[0].EffectiveAfter; first != nil {
		expiry := *first
		p.Expiry = &expiry
	}
	return p
}
