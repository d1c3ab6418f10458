package pricing

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/hotel-broker/internal/domain"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(DefaultOptions())
	require.NoError(t, err)
	e.now = func() time.Time { return time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC) }
	return e
}

func TestOptions(t *testing.T) {
	o := DefaultOptions()
	assert.True(t, o.MarginFraction().Equal(dec("0.10")))
	assert.True(t, o.SpecialMultiplier().Equal(dec("0.95")))
	assert.NoError(t, o.Validate())

	o.SpecialDiscountPercent = 101
	assert.ErrorIs(t, o.Validate(), domain.ErrValidation)
	_, err := NewEngine(o)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestQuote_NeverBelowFloor(t *testing.T) {
	e := newEngine(t)
	nets := []string{"0.01", "0.05", "1", "9.99", "10.005", "33.33", "99.99", "100", "123.456", "1000000.07"}
	suggested := []string{"0", "1", "50", "110", "150.55"}

	for _, n := range nets {
		for _, s := range suggested {
			for _, special := range []bool{false, true} {
				t.Run(fmt.Sprintf("%s/%s/%v", n, s, special), func(t *testing.T) {
					net := dec(n)
					q, err := e.Quote(net, dec(s), special)
					require.NoError(t, err)
					exactFloor := net.Mul(dec("1.10"))
					assert.True(t, q.Total.GreaterThanOrEqual(exactFloor), "total %s below floor %s", q.Total, exactFloor)
					assert.True(t, q.Margin.Equal(q.Total.Sub(net)))
					assert.True(t, q.Discount.Equal(q.Retail.Sub(q.Total)))
					assert.False(t, q.Discount.IsNegative())
					assert.Equal(t, q.Total.StringFixed(2), q.Total.Round(2).StringFixed(2))
				})
			}
		}
	}
}

func TestQuote_FloorWhenNothingElseApplies(t *testing.T) {
	e := newEngine(t)
	q, err := e.Quote(dec("100"), decimal.Zero, false)
	require.NoError(t, err)
	assert.Equal(t, "110.00", q.Total.StringFixed(2))
	assert.True(t, q.Total.Equal(q.Floor))
	assert.True(t, q.Discount.IsZero())
}

// The floor is rounded up to the cent, so without a discount the total sits
// at most one cent short of exact equality with net × (1 + margin).
func TestQuote_FloorRoundsUpToTheCent(t *testing.T) {
	e := newEngine(t)
	oneCent := dec("0.01")
	for _, net := range []string{"10.05", "10.00", "0.01", "99.99", "123.456"} {
		t.Run(net, func(t *testing.T) {
			n := dec(net)
			exact := n.Mul(dec("1").Add(e.Options().MarginFraction()))
			q, err := e.Quote(n, decimal.Zero, false)
			require.NoError(t, err)
			assert.True(t, q.Total.Equal(q.Floor))
			assert.True(t, q.Total.GreaterThanOrEqual(exact), "total %s below exact floor %s", q.Total, exact)
			assert.True(t, q.Total.Sub(exact).LessThan(oneCent), "total %s more than a cent above %s", q.Total, exact)
		})
	}

	q, err := e.Quote(dec("10.05"), decimal.Zero, false)
	require.NoError(t, err)
	assert.Equal(t, "11.06", q.Total.StringFixed(2))
}

func TestQuote_SpecialAppliedAfterFloor(t *testing.T) {
	e := newEngine(t)

	regular, err := e.Quote(dec("100"), dec("200"), false)
	require.NoError(t, err)
	special, err := e.Quote(dec("100"), dec("200"), true)
	require.NoError(t, err)

	assert.Equal(t, "200.00", regular.Total.StringFixed(2))
	assert.True(t, special.Total.Equal(regular.Total.Mul(e.Options().SpecialMultiplier())))
	assert.Equal(t, "10.00", special.Discount.StringFixed(2))

	// At the floor the discount would cut into the margin: the floor wins.
	clamped, err := e.Quote(dec("100"), decimal.Zero, true)
	require.NoError(t, err)
	assert.Equal(t, "110.00", clamped.Total.StringFixed(2))
	assert.True(t, clamped.Discount.IsZero())
}

func TestQuote_RoundsHalfUp(t *testing.T) {
	e := newEngine(t)
	q, err := e.Quote(dec("10"), dec("12.345"), false)
	require.NoError(t, err)
	assert.Equal(t, "12.35", q.Total.StringFixed(2))

	q, err = e.Quote(dec("10"), dec("12.355"), false)
	require.NoError(t, err)
	assert.Equal(t, "12.36", q.Total.StringFixed(2), "no banker's rounding")
}

func TestQuote_RejectsNegativeNet(t *testing.T) {
	_, err := newEngine(t).Quote(dec("-0.01"), decimal.Zero, false)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestEffectiveSalePrice(t *testing.T) {
	minPrice := dec("100")
	assert.True(t, EffectiveSalePrice(dec("90"), minPrice).IsZero())
	assert.True(t, EffectiveSalePrice(dec("100"), minPrice).IsZero())
	assert.True(t, EffectiveSalePrice(dec("120"), minPrice).Equal(dec("120")))
}

func TestPerRoomTotal(t *testing.T) {
	assert.Equal(t, "33.33", PerRoomTotal(dec("100"), 3).StringFixed(2))
	assert.Equal(t, "100.00", PerRoomTotal(dec("100"), 0).StringFixed(2))
}

func TestSchedule(t *testing.T) {
	e := newEngine(t)
	now := e.now()
	deadline := now.Add(72 * time.Hour)

	t.Run("free cancellation open", func(t *testing.T) {
		s, err := e.Schedule(dec("110.01"), domain.CancellationPolicy{Expiry: &deadline}, now)
		require.NoError(t, err)
		require.Len(t, s, 2)
		assert.Equal(t, "33.00", s[0].Amount.StringFixed(2))
		assert.Equal(t, "77.01", s[1].Amount.StringFixed(2))
		assert.Equal(t, deadline, s[1].DueDate)
		assert.True(t, s.Sum().Equal(dec("110.01")))
		assert.True(t, Prepay(s).Equal(dec("33")))
	})

	t.Run("window closed", func(t *testing.T) {
		past := now.Add(-time.Hour)
		s, err := e.Schedule(dec("110"), domain.CancellationPolicy{Expiry: &past}, now)
		require.NoError(t, err)
		require.Len(t, s, 1)
		assert.True(t, Prepay(s).IsZero())
	})

	t.Run("non refundable", func(t *testing.T) {
		s, err := e.Schedule(dec("110"), domain.CancellationPolicy{}, now)
		require.NoError(t, err)
		assert.Len(t, s, 1)
	})
}

func TestPriceHotel(t *testing.T) {
	e := newEngine(t)
	deadline := time.Date(2026, 6, 20, 0, 0, 0, 0, time.UTC)
	h := domain.Hotel{
		ID: "1-1",
		Rates: []domain.Rate{
			{ID: "1-a", Net: dec("100"), Rooms: 2, IncludedTax: dec("9.999"),
				Cancellation: domain.CancellationPolicy{Expiry: &deadline, Tiers: []domain.FeeTier{{EffectiveAfter: &deadline, Fee: dec("50")}}}},
			{ID: "1-b", Net: dec("200"), Rooms: 1, OfferAmount: dec("40")},
		},
	}

	priced, err := e.PriceHotel(h, false)
	require.NoError(t, err)
	assert.True(t, h.Rates[0].Total.IsZero(), "input not modified")

	a, b := priced.Rates[0], priced.Rates[1]
	assert.Equal(t, "110.00", a.Total.StringFixed(2))
	assert.Equal(t, "55.00", a.PerRoomTotal.StringFixed(2))
	assert.Equal(t, "10.00", a.Tax.StringFixed(2))
	assert.Equal(t, "55.00", a.Cancellation.Tiers[0].Fee.StringFixed(2), "fees scaled by total/net")
	require.Len(t, a.Schedule, 2)
	require.NoError(t, a.Schedule.Validate(a.Total))
	assert.True(t, a.ProfitPercentage().Equal(dec("0.1")))

	assert.Equal(t, "220.00", b.Total.StringFixed(2))
	require.Len(t, b.Schedule, 1)

	assert.Equal(t, "110.00", priced.MinPrice.StringFixed(2))
	assert.Equal(t, "264.00", priced.SalePrice.StringFixed(2), "was price of the offer rate")
	assert.False(t, priced.Special)
}

func TestPrice_SpecialFunc(t *testing.T) {
	e := newEngine(t)
	hotels := []domain.Hotel{
		{ID: "1-1", Stars: 5, Rates: []domain.Rate{{Net: dec("100"), SellingRate: dec("200")}}},
		{ID: "1-2", Stars: 3, Rates: []domain.Rate{{Net: dec("100"), SellingRate: dec("200")}}},
	}
	priced, err := e.Price(hotels, func(h domain.Hotel) (bool, error) { return h.Stars == 5, nil })
	require.NoError(t, err)
	assert.True(t, priced[0].Special)
	assert.Equal(t, "190.00", priced[0].MinPrice.StringFixed(2))
	assert.Equal(t, "200.00", priced[1].MinPrice.StringFixed(2))

	_, err = e.Price(hotels, func(domain.Hotel) (bool, error) { return false, fmt.Errorf("rule failed") })
	assert.Error(t, err)

	bad := []domain.Hotel{{ID: "1-3", Rates: []domain.Rate{{Net: dec("-5")}}}}
	_, err = e.Price(bad, nil)
	assert.ErrorIs(t, err, domain.ErrValidation)
}
