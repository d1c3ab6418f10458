// Package pricing turns net rates into guest-facing prices: margin floor,
// special-hotel discount, fee scaling and payment schedules. All amounts are
// exact decimals rounded half-up to cents.
package pricing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/yourorg/hotel-broker/internal/domain"
)

const cents = 2

var hundred = decimal.NewFromInt(100)

// Options are fixed at startup and passed by value into NewEngine.
type Options struct {
	MinMarginPercent       int
	SpecialDiscountPercent int
	// PrepayPercent is the share charged up front while free cancellation
	// is still open.
	PrepayPercent int
}

// DefaultOptions returns a 10% margin floor, a 5% special discount and a 30%
// prepayment.
func DefaultOptions() Options {
	return Options{MinMarginPercent: 10, SpecialDiscountPercent: 5, PrepayPercent: 30}
}

// MarginFraction is MinMarginPercent as a fraction, e.g. 0.10.
func (o Options) MarginFraction() decimal.Decimal {
	return decimal.NewFromInt(int64(o.MinMarginPercent)).Div(hundred)
}

// SpecialMultiplier is the factor applied to special-hotel prices, e.g. 0.95.
func (o Options) SpecialMultiplier() decimal.Decimal {
	return decimal.NewFromInt(int64(100 - o.SpecialDiscountPercent)).Div(hundred)
}

// Validate checks that every percentage is within 0..100.
func (o Options) Validate() error {
	for name, v := range map[string]int{
		"minMarginPercent":       o.MinMarginPercent,
		"specialDiscountPercent": o.SpecialDiscountPercent,
		"prepayPercent":          o.PrepayPercent,
	} {
		if v < 0 || v > 100 {
			return domain.Invalid("pricing."+name, "%d outside 0..100", v)
		}
	}
	return nil
}

// Quote is the price of one rate.
type Quote struct {
	Floor    decimal.Decimal
	Retail   decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
	Margin   decimal.Decimal
}

// Engine prices rates and hotels. It holds no mutable state.
type Engine struct {
	opts       Options
	margin     decimal.Decimal
	multiplier decimal.Decimal
	now        func() time.Time
}

// NewEngine creates an Engine from validated options.
func NewEngine(opts Options) (*Engine, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		opts:       opts,
		margin:     opts.MarginFraction(),
		multiplier: opts.SpecialMultiplier(),
		now:        time.Now,
	}, nil
}

// Options returns the options the engine was built with.
func (e *Engine) Options() Options { return e.opts }

// Validate rejects net prices the formulas must never see.
func (e *Engine) Validate(net decimal.Decimal) error {
	if net.IsNegative() {
		return domain.Invalid("net", "net price %s is negative", net)
	}
	return nil
}

func round(d decimal.Decimal) decimal.Decimal { return d.Round(cents) }

// Quote prices a net amount. suggested is the upstream's recommended selling
// rate and may be zero. The floor is net × (1 + margin), rounded up to the
// cent so rounding never erodes it. For special hotels the discount applies
// after the floor and the result is clamped back to the floor.
func (e *Engine) Quote(net, suggested decimal.Decimal, special bool) (Quote, error) {
	if err := e.Validate(net); err != nil {
		return Quote{}, err
	}
	floor := net.Mul(decimal.NewFromInt(1).Add(e.margin)).RoundCeil(cents)
	retail := decimal.Max(floor, round(suggested))

	total := retail
	if special {
		// The floor wins over the special discount, so a special hotel priced
		// at the floor gets no discount. Whether the discount may cut into the
		// margin is still an open question for the business owner; revisit
		// this clamp once it is answered.
		total = decimal.Max(floor, round(retail.Mul(e.multiplier)))
	}
	return Quote{
		Floor:    floor,
		Retail:   retail,
		Discount: retail.Sub(total),
		Total:    total,
		Margin:   total.Sub(net),
	}, nil
}

// EffectiveSalePrice returns proposed when it is strictly above minPrice and
// zero otherwise.
func EffectiveSalePrice(proposed, minPrice decimal.Decimal) decimal.Decimal {
	if proposed.GreaterThan(minPrice) {
		return proposed
	}
	return decimal.Zero
}

// PerRoomTotal splits a total over rooms.
func PerRoomTotal(total decimal.Decimal, rooms int) decimal.Decimal {
	if rooms < 1 {
		rooms = 1
	}
	return round(total.Div(decimal.NewFromInt(int64(rooms))))
}

// scale converts a net-denominated amount to the guest-facing price level.
func scale(amount, net, total decimal.Decimal) decimal.Decimal {
	if net.IsZero() {
		return amount
	}
	return round(amount.Mul(total).Div(net))
}

// Schedule splits total into installments. While free cancellation is open
// at now, PrepayPercent is due now and the rest at the deadline; otherwise
// everything is due now. Zero installments are left out.
func (e *Engine) Schedule(total decimal.Decimal, c domain.CancellationPolicy, now time.Time) (domain.PaymentSchedule, error) {
	var s domain.PaymentSchedule
	if c.FreeAt(now) {
		prepay := round(total.Mul(decimal.NewFromInt(int64(e.opts.PrepayPercent))).Div(hundred))
		if prepay.IsPositive() {
			s = append(s, domain.Installment{DueDate: now, Amount: prepay})
		}
		if rest := total.Sub(prepay); rest.IsPositive() {
			s = append(s, domain.Installment{DueDate: *c.Expiry, Amount: rest})
		}
	} else {
		s = domain.PaymentSchedule{{DueDate: now, Amount: total}}
	}
	if err := s.Validate(total); err != nil {
		return nil, fmt.Errorf("pricing: schedule: %w", err)
	}
	return s, nil
}

// Prepay is the amount due now under s when it is less than the total, or
// zero for a single full payment.
func Prepay(s domain.PaymentSchedule) decimal.Decimal {
	if len(s) < 2 {
		return decimal.Zero
	}
	return s[0].Amount
}

// PriceRate fills the pricing outputs of r.
func (e *Engine) PriceRate(r domain.Rate, special bool) (domain.Rate, error) {
	q, err := e.Quote(r.Net, r.SellingRate, special)
	if err != nil {
		return domain.Rate{}, fmt.Errorf("pricing: rate %s: %w", r.ID, err)
	}
	r.Total = q.Total
	r.Margin = q.Margin
	r.Discount = q.Discount
	r.Tax = round(r.IncludedTax)
	r.PayAtHotel = round(r.PayAtHotel)
	r.PerRoomTotal = PerRoomTotal(q.Total, r.Rooms)

	tiers := make([]domain.FeeTier, len(r.Cancellation.Tiers))
	for i, t := range r.Cancellation.Tiers {
		tiers[i] = domain.FeeTier{
			EffectiveAfter: t.EffectiveAfter,
			Fee:            decimal.Min(scale(t.Fee, r.Net, q.Total), q.Total),
		}
	}
	r.Cancellation.Tiers = tiers

	r.Schedule, err = e.Schedule(q.Total, r.Cancellation, e.now())
	if err != nil {
		return domain.Rate{}, err
	}
	return r, nil
}

// wasPrice is the price a rate would have had without the upstream's offers.
func wasPrice(r domain.Rate) decimal.Decimal {
	if !r.OfferAmount.IsPositive() {
		return decimal.Zero
	}
	return scale(r.Net.Add(r.OfferAmount), r.Net, r.Total)
}

// PriceHotel prices every rate of h and derives MinPrice and SalePrice. The
// input is not modified.
func (e *Engine) PriceHotel(h domain.Hotel, special bool) (domain.Hotel, error) {
	rates := make([]domain.Rate, 0, len(h.Rates))
	minPrice, was := decimal.Zero, decimal.Zero
	for i, r := range h.Rates {
		priced, err := e.PriceRate(r, special)
		if err != nil {
			return domain.Hotel{}, fmt.Errorf("hotel %s: %w", h.ID, err)
		}
		if i == 0 || priced.Total.LessThan(minPrice) {
			minPrice = priced.Total
		}
		was = decimal.Max(was, wasPrice(priced))
		rates = append(rates, priced)
	}
	h.Rates = rates
	h.Special = special
	h.MinPrice = minPrice
	h.SalePrice = EffectiveSalePrice(was, minPrice)
	return h, nil
}

// SpecialFunc decides whether a hotel gets the special discount.
type SpecialFunc func(domain.Hotel) (bool, error)

// Price prices every hotel. A nil special treats every hotel as regular.
func (e *Engine) Price(hotels []domain.Hotel, special SpecialFunc) ([]domain.Hotel, error) {
	out := make([]domain.Hotel, 0, len(hotels))
	for _, h := range hotels {
		isSpecial := false
		if special != nil {
			var err error
			if isSpecial, err = special(h); err != nil {
				return nil, fmt.Errorf("pricing: hotel %s: %w", h.ID, err)
			}
		}
		priced, err := e.PriceHotel(h, isSpecial)
		if err != nil {
			return nil, err
		}
		out = append(out, priced)
	}
	return out, nil
}
