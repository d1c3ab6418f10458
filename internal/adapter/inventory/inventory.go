// Package inventory speaks the hotel availability upstream's JSON API.
package inventory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"

	"github.com/yourorg/hotel-broker/internal/adapter"
	"github.com/yourorg/hotel-broker/internal/adapter/wire"
	"github.com/yourorg/hotel-broker/internal/canonical"
	"github.com/yourorg/hotel-broker/internal/domain"
	"github.com/yourorg/hotel-broker/internal/upstream"
)

const (
	availabilityPath = "/hotels/availability"
	dateLayout       = "2006-01-02"
)

// Doer is the part of *upstream.Client the adapter needs.
type Doer interface {
	Do(ctx context.Context, r upstream.Request, out any) error
}

// Credentials sign every request.
type Credentials struct {
	APIKey string
	Secret string
}

// Adapter implements adapter.InventoryProvider.
type Adapter struct {
	client Doer
	creds  Credentials
	now    func() time.Time
}

var _ adapter.InventoryProvider = (*Adapter)(nil)

// New creates an inventory adapter over client.
func New(client Doer, creds Credentials) *Adapter {
	return &Adapter{client: client, creds: creds, now: time.Now}
}

// Availability queries rates for the destination and party of req. A request
// without destination returns no hotels and makes no call.
func (a *Adapter) Availability(ctx context.Context, req adapter.AvailabilityRequest) ([]adapter.HotelRecord, error) {
	if strings.TrimSpace(req.Destination) == "" {
		return nil, nil
	}
	occupancies, err := canonical.GroupParty(req.Party)
	if err != nil {
		return nil, err
	}
	if !req.CheckOut.After(req.CheckIn) {
		return nil, domain.Invalid("checkOut", "check-out %s is not after check-in %s",
			req.CheckOut.Format(dateLayout), req.CheckIn.Format(dateLayout))
	}

	body := availabilityRequest{
		Stay: stay{
			CheckIn:  req.CheckIn.Format(dateLayout),
			CheckOut: req.CheckOut.Format(dateLayout),
		},
		Destination: destination{Code: strings.ToUpper(strings.TrimSpace(req.Destination))},
		Language:    languageCode(req.Language),
	}
	for _, o := range occupancies {
		occ := occupancy{Rooms: o.Rooms, Adults: o.Adults, Children: len(o.ChildAges)}
		for _, age := range o.ChildAges {
			occ.Paxes = append(occ.Paxes, pax{Type: "CH", Age: age})
		}
		body.Occupancies = append(body.Occupancies, occ)
	}

	var resp availabilityResponse
	err = a.client.Do(ctx, upstream.Request{
		Method: http.MethodPost,
		Path:   availabilityPath,
		Header: a.signature(),
		Body:   body,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("inventory: availability: %w", err)
	}

	records := make([]adapter.HotelRecord, 0, len(resp.Hotels.Hotels))
	for _, h := range resp.Hotels.Hotels {
		rec, err := h.record(req.Language)
		if err != nil {
			return nil, fmt.Errorf("inventory: hotel %s: %w", h.Code, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// signature builds the Api-Key / X-Signature pair: SHA-256 over key, secret
// and the current unix time in seconds.
func (a *Adapter) signature() http.Header {
	ts := strconv.FormatInt(a.now().Unix(), 10)
	sum := sha256.Sum256([]byte(a.creds.APIKey + a.creds.Secret + ts))
	return http.Header{
		"Api-Key":     {a.creds.APIKey},
		"X-Signature": {hex.EncodeToString(sum[:])},
	}
}

// languageCode renders a hint as the upstream's upper-case ISO 639-2 code.
func languageCode(hint string) string {
	base, _ := adapter.ParseLanguage(hint).Base()
	return strings.ToUpper(base.ISO3())
}

type availabilityRequest struct {
	Stay        stay        `json:"stay"`
	Occupancies []occupancy `json:"occupancies"`
	Destination destination `json:"destination"`
	Language    string      `json:"language"`
}

type stay struct {
	CheckIn  string `json:"checkIn"`
	CheckOut string `json:"checkOut"`
}

type occupancy struct {
	Rooms    int   `json:"rooms"`
	Adults   int   `json:"adults"`
	Children int   `json:"children"`
	Paxes    []pax `json:"paxes,omitempty"`
}

type pax struct {
	Type string `json:"type"`
	Age  int    `json:"age"`
}

type destination struct {
	Code string `json:"code"`
}

type availabilityResponse struct {
	Hotels struct {
		Hotels []hotelDTO `json:"hotels"`
		Total  int        `json:"total"`
	} `json:"hotels"`
}

type hotelDTO struct {
	Code            wire.FlexString `json:"code"`
	Name            string          `json:"name"`
	CategoryCode    string          `json:"categoryCode"`
	DestinationName string          `json:"destinationName"`
	ZoneName        string          `json:"zoneName"`
	Latitude        wire.FlexString `json:"latitude"`
	Longitude       wire.FlexString `json:"longitude"`
	Currency        string          `json:"currency"`
	SegmentCodes    []wire.FlexInt  `json:"segmentCodes"`
	Rooms           []roomDTO       `json:"rooms"`
}

type roomDTO struct {
	Code  string    `json:"code"`
	Name  string    `json:"name"`
	Rates []rateDTO `json:"rates"`
}

type rateDTO struct {
	RateKey       string            `json:"rateKey"`
	RateType      string            `json:"rateType"`
	Net           decimal.Decimal   `json:"net"`
	SellingRate   decimal.Decimal   `json:"sellingRate"`
	Allotment     wire.FlexInt      `json:"allotment"`
	BoardCode     string            `json:"boardCode"`
	BoardName     string            `json:"boardName"`
	Rooms         wire.FlexInt      `json:"rooms"`
	Adults        wire.FlexInt      `json:"adults"`
	Children      wire.FlexInt      `json:"children"`
	ChildrenAges  string            `json:"childrenAges"`
	MinimumStay   wire.FlexInt      `json:"minimumStay"`
	Cancellations []cancellationDTO `json:"cancellationPolicies"`
	Taxes         taxesDTO          `json:"taxes"`
	Offers        []offerDTO        `json:"offers"`
}

type cancellationDTO struct {
	Amount decimal.Decimal   `json:"amount"`
	From   wire.NullableTime `json:"from"`
}

type taxesDTO struct {
	Taxes []struct {
		Included bool            `json:"included"`
		Amount   decimal.Decimal `json:"amount"`
	} `json:"taxes"`
}

type offerDTO struct {
	Amount decimal.Decimal `json:"amount"`
}

func (h hotelDTO) record(lang string) (adapter.HotelRecord, error) {
	lat, err := coordinate(h.Latitude)
	if err != nil {
		return adapter.HotelRecord{}, err
	}
	lon, err := coordinate(h.Longitude)
	if err != nil {
		return adapter.HotelRecord{}, err
	}
	caser := cases.Title(adapter.ParseLanguage(lang))
	rec := adapter.HotelRecord{
		Code:         h.Code.String(),
		Name:         strings.TrimSpace(h.Name),
		CategoryCode: strings.TrimSpace(h.CategoryCode),
		Destination:  caser.String(strings.ToLower(strings.TrimSpace(h.DestinationName))),
		Zone:         strings.TrimSpace(h.ZoneName),
		Latitude:     lat,
		Longitude:    lon,
		Currency:     strings.ToUpper(h.Currency),
	}
	for _, s := range h.SegmentCodes {
		rec.SegmentCodes = append(rec.SegmentCodes, s.Int())
	}
	for _, room := range h.Rooms {
		for _, r := range room.Rates {
			rr, err := r.record(room)
			if err != nil {
				return adapter.HotelRecord{}, err
			}
			rec.Rates = append(rec.Rates, rr)
		}
	}
	return rec, nil
}

func (r rateDTO) record(room roomDTO) (adapter.RateRecord, error) {
	ages, err := parseAges(r.ChildrenAges)
	if err != nil {
		return adapter.RateRecord{}, err
	}
	rec := adapter.RateRecord{
		RateKey:     r.RateKey,
		RateType:    strings.ToUpper(r.RateType),
		RoomCode:    room.Code,
		RoomName:    room.Name,
		BoardCode:   strings.ToUpper(strings.TrimSpace(r.BoardCode)),
		BoardName:   strings.TrimSpace(r.BoardName),
		Rooms:       r.Rooms.Int(),
		Adults:      r.Adults.Int(),
		ChildAges:   ages,
		MinimumStay: r.MinimumStay.Int(),
		Remaining:   r.Allotment.Int(),
		Net:         r.Net,
		SellingRate: r.SellingRate,
		IncludedTax: decimal.Zero,
		PayAtHotel:  decimal.Zero,
		OfferAmount: decimal.Zero,
	}
	for _, t := range r.Taxes.Taxes {
		if t.Included {
			rec.IncludedTax = rec.IncludedTax.Add(t.Amount)
		} else {
			rec.PayAtHotel = rec.PayAtHotel.Add(t.Amount)
		}
	}
	for _, o := range r.Offers {
		rec.OfferAmount = rec.OfferAmount.Add(o.Amount.Abs())
	}
	for _, c := range r.Cancellations {
		rec.Fees = append(rec.Fees, adapter.FeeRecord{From: c.From.Ptr(), Amount: c.Amount})
	}
	return rec, nil
}

func coordinate(v wire.FlexString) (float64, error) {
	if v == "" {
		return 0, nil
	}
	f, err := v.Float()
	if err != nil {
		return 0, domain.Protocol(upstream.Inventory, err)
	}
	return f, nil
}

// parseAges splits the upstream's comma separated child ages, e.g. "4,9".
func parseAges(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	ages := make([]int, 0, len(parts))
	for _, p := range parts {
		age, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, domain.Protocol(upstream.Inventory, &wire.TokenError{Type: "childrenAges", Value: s})
		}
		ages = append(ages, age)
	}
	return ages, nil
}
