// Package domain holds the provider-agnostic model every stage of the
// pipeline operates on: hotels, rates, guest parties and locations.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RoomOnlyCode is the board code upstreams use for "no meals".
const RoomOnlyCode = "RO"

// Location is a geographic point with its human-facing locality.
type Location struct {
	ID        string  `json:"id,omitempty"`
	Name      string  `json:"name,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Locality  string  `json:"locality,omitempty"`
	Country   string  `json:"country,omitempty"`
	Geohash   string  `json:"geohash,omitempty"`
}

// Board is one meal-plan tier.
type Board struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// IsRoomOnly reports whether b is the no-meal baseline.
func (b Board) IsRoomOnly() bool {
	return b.Code == RoomOnlyCode
}

// BoardSummary is the guest-facing description of the boards a hotel offers.
type BoardSummary struct {
	Text      string  `json:"text"`
	HasBoards bool    `json:"hasBoards"`
	Boards    []Board `json:"boards"`
}

// FeeTier is a cancellation fee that applies from EffectiveAfter on. A nil
// EffectiveAfter means the fee applies immediately.
type FeeTier struct {
	EffectiveAfter *time.Time      `json:"effectiveAfter"`
	Fee            decimal.Decimal `json:"fee"`
}

// CancellationPolicy lists fee tiers ordered by start time. Expiry is the end
// of the free cancellation window, nil when there is none.
type CancellationPolicy struct {
	Expiry *time.Time `json:"expiry"`
	Tiers  []FeeTier  `json:"tiers"`
}

// FreeAt reports whether cancelling at now is still free of charge.
func (c CancellationPolicy) FreeAt(now time.Time) bool {
	return c.Expiry != nil && now.Before(*c.Expiry)
}

// Installment is a single due payment.
type Installment struct {
	DueDate time.Time       `json:"dueDate"`
	Amount  decimal.Decimal `json:"amount"`
}

// PaymentSchedule is an ordered list of installments.
type PaymentSchedule []Installment

// Sum adds up every installment.
func (s PaymentSchedule) Sum() decimal.Decimal {
	total := decimal.Zero
	for _, in := range s {
		total = total.Add(in.Amount)
	}
	return total
}

// Validate checks that the installments add up to total and are ordered.
func (s PaymentSchedule) Validate(total decimal.Decimal) error {
	for i := 1; i < len(s); i++ {
		if s[i].DueDate.Before(s[i-1].DueDate) {
			return Invalid("schedule", "installment %d is due before installment %d", i, i-1)
		}
	}
	if sum := s.Sum(); !sum.Equal(total) {
		return Invalid("schedule", "installments sum to %s, rate total is %s", sum, total)
	}
	return nil
}

// Rate is one bookable offer of a hotel.
type Rate struct {
	ID           string             `json:"id"`
	HotelID      string             `json:"hotelId"`
	RateKey      string             `json:"rateKey"`
	Board        Board              `json:"board"`
	RoomCode     string             `json:"roomCode"`
	RoomName     string             `json:"roomName"`
	Rooms        int                `json:"rooms"`
	Adults       int                `json:"adults"`
	ChildAges    []int              `json:"childAges"`
	MinimumStay  int                `json:"minimumStay"`
	Remaining    int                `json:"remaining"`
	StatusCode   string             `json:"statusCode"`
	StatusText   string             `json:"statusText"`
	Currency     string             `json:"currency"`
	Cancellation CancellationPolicy `json:"cancellation"`
	Schedule     PaymentSchedule    `json:"schedule"`

	// Upstream inputs.
	Net         decimal.Decimal `json:"-"`
	SellingRate decimal.Decimal `json:"-"`
	OfferAmount decimal.Decimal `json:"-"`
	IncludedTax decimal.Decimal `json:"-"`
	PayAtHotel  decimal.Decimal `json:"payAtHotel"`

	// Pricing outputs.
	Margin       decimal.Decimal `json:"-"`
	Tax          decimal.Decimal `json:"tax"`
	Discount     decimal.Decimal `json:"discount"`
	Total        decimal.Decimal `json:"total"`
	PerRoomTotal decimal.Decimal `json:"perRoomTotal"`
}

// ProfitPercentage is (Total − Net) / Net, recomputed on every call.
func (r Rate) ProfitPercentage() decimal.Decimal {
	if r.Net.IsZero() {
		return decimal.Zero
	}
	return r.Total.Sub(r.Net).Div(r.Net)
}

// Hotel is the canonical hotel with its rates for one search response.
type Hotel struct {
	ID          string          `json:"id"`
	Code        string          `json:"code"`
	Name        string          `json:"name"`
	Stars       int             `json:"stars"`
	Location    Location        `json:"location"`
	Destination string          `json:"destination"`
	Tags        []string        `json:"tags"`
	Boards      BoardSummary    `json:"boards"`
	Rates       []Rate          `json:"rates"`
	Special     bool            `json:"special"`
	Currency    string          `json:"currency"`
	MinPrice    decimal.Decimal `json:"minPrice"`
	SalePrice   decimal.Decimal `json:"salePrice"`
}

// HasTag reports whether the hotel was mapped to tag.
func (h Hotel) HasTag(tag string) bool {
	for _, t := range h.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
