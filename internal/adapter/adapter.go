// Package adapter defines the capability interfaces implemented by each
// upstream adapter and the partially-normalized records they produce.
// Adapters own one upstream's wire protocol and quirks: request building,
// authentication, decoding and error classification. They do not price,
// group or merge; that happens in the canonical builder.
package adapter

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/yourorg/hotel-broker/internal/domain"
)

// LocationLookup resolves a free-text query into location candidates.
// An empty or whitespace query returns no candidates without any network call.
type LocationLookup interface {
	Name() string
	Search(ctx context.Context, query, lang string) ([]Candidate, error)
}

// InventoryProvider returns hotel availability for a destination and party.
type InventoryProvider interface {
	Availability(ctx context.Context, req AvailabilityRequest) ([]HotelRecord, error)
}

// PaymentGateway creates payment orders and reads back transactions.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, req OrderRequest) (OrderReceipt, error)
	GetTransaction(ctx context.Context, transactionID string) (Transaction, error)
}

// Candidate is one location suggestion from a geocode provider.
type Candidate struct {
	Provider  domain.ProviderID
	Code      string
	Name      string
	Locality  string
	Country   string
	Latitude  float64
	Longitude float64
}

// AvailabilityRequest is the inventory query for one search.
type AvailabilityRequest struct {
	Destination string
	CheckIn     time.Time
	CheckOut    time.Time
	Party       []domain.PartyItem
	Language    string
}

// HotelRecord is a hotel as reported by the inventory upstream, with wire
// quirks already resolved but no pricing applied.
type HotelRecord struct {
	Code         string
	Name         string
	CategoryCode string
	SegmentCodes []int
	Destination  string
	Zone         string
	Latitude     float64
	Longitude    float64
	Currency     string
	Rates        []RateRecord
}

// RateRecord is one rate of a HotelRecord.
type RateRecord struct {
	RateKey     string
	RateType    string
	RoomCode    string
	RoomName    string
	BoardCode   string
	BoardName   string
	Rooms       int
	Adults      int
	ChildAges   []int
	MinimumStay int
	Remaining   int
	Net         decimal.Decimal
	SellingRate decimal.Decimal
	OfferAmount decimal.Decimal
	IncludedTax decimal.Decimal
	PayAtHotel  decimal.Decimal
	Fees        []FeeRecord
}

// FeeRecord is an upstream cancellation fee at net price. A nil From means
// the fee applies from booking.
type FeeRecord struct {
	From   *time.Time
	Amount decimal.Decimal
}

// OrderRequest asks the gateway to open a payment order.
type OrderRequest struct {
	Reference      string
	SourceCode     string
	Amount         decimal.Decimal
	Currency       string
	Description    string
	ReturnURL      string
	IdempotencyKey string
}

// OrderReceipt is the gateway's answer to CreateOrder.
type OrderReceipt struct {
	OrderCode   string
	RedirectURL string
}

// Transaction is a gateway transaction as read back for verification.
type Transaction struct {
	ID        string
	OrderCode string
	Amount    decimal.Decimal
	Currency  string
	Status    string
}
