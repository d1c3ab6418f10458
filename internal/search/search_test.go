package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/yourorg/hotel-broker/internal/adapter"
	"github.com/yourorg/hotel-broker/internal/adapter/mock"
	"github.com/yourorg/hotel-broker/internal/canonical"
	"github.com/yourorg/hotel-broker/internal/domain"
	"github.com/yourorg/hotel-broker/internal/facet"
	"github.com/yourorg/hotel-broker/internal/logging"
	"github.com/yourorg/hotel-broker/internal/logging/loggingtest"
	"github.com/yourorg/hotel-broker/internal/metrics"
	"github.com/yourorg/hotel-broker/internal/pricing"
	"github.com/yourorg/hotel-broker/internal/requestctx"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var (
	checkIn  = time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	checkOut = time.Date(2026, 7, 4, 0, 0, 0, 0, time.UTC)
)

func records() []adapter.HotelRecord {
	return []adapter.HotelRecord{
		{
			Code: "100", Name: "Sea View", CategoryCode: "4EST", SegmentCodes: []int{81},
			Latitude: 39.5693, Longitude: 2.6479, Currency: "EUR",
			Rates: []adapter.RateRecord{
				{RateKey: "a", RateType: "BOOKABLE", BoardCode: "BB", BoardName: "BED AND BREAKFAST", Rooms: 1, Net: dec("100")},
				{RateKey: "b", RateType: "BOOKABLE", BoardCode: "RO", Rooms: 1, Net: dec("80")},
			},
		},
		{
			Code: "200", Name: "City Inn", CategoryCode: "3EST", SegmentCodes: []int{29},
			Currency: "EUR",
			Rates: []adapter.RateRecord{
				{RateKey: "c", RateType: "BOOKABLE", BoardCode: "RO", Rooms: 1, Net: dec("60"), SellingRate: dec("90")},
			},
		},
		{Code: "300", Name: "Sold Out", CategoryCode: "2EST"},
	}
}

type harness struct {
	service   *Service
	inventory *mock.Inventory
	placesA   *mock.LocationLookup
	placesB   *mock.LocationLookup
	sink      *loggingtest.MemorySink
	metrics   *metrics.Metrics
	spans     *tracetest.SpanRecorder
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		inventory: mock.NewInventory(records()...),
		placesA: mock.NewLocationLookup("geocode-a",
			adapter.Candidate{Provider: domain.ProviderGeocodeA, Code: "pa", Name: "Palma", Locality: "Palma", Country: "Spain", Latitude: 39.5696, Longitude: 2.6502}),
		placesB: mock.NewLocationLookup("geocode-b",
			adapter.Candidate{Provider: domain.ProviderGeocodeB, Code: "77", Name: "Palma de Mallorca", Locality: "Palma", Latitude: 39.5696, Longitude: 2.6502}),
		sink:    &loggingtest.MemorySink{},
		metrics: metrics.New(prometheus.NewRegistry()),
		spans:   tracetest.NewSpanRecorder(),
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(h.spans))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	engine, err := pricing.NewEngine(pricing.DefaultOptions())
	require.NoError(t, err)
	opts = append([]Option{WithSink(h.sink), WithMetrics(h.metrics), WithTracerProvider(tp)}, opts...)
	h.service = New(h.inventory, []adapter.LocationLookup{h.placesA, h.placesB}, canonical.NewBuilder(nil), engine, opts...)
	return h
}

func searches(t *testing.T, m *metrics.Metrics) uint64 {
	t.Helper()
	var pb dto.Metric
	require.NoError(t, m.SearchDuration.Write(&pb))
	return pb.GetHistogram().GetSampleCount()
}

func request() Request {
	return Request{
		Query:       "Palma",
		Destination: "PMI",
		CheckIn:     checkIn,
		CheckOut:    checkOut,
		Party: []domain.PartyItem{
			{Adults: 2, Rooms: 1},
			{Adults: 2, Rooms: 1},
		},
		Language: "es-ES",
	}
}

func TestSearch_Pipeline(t *testing.T) {
	h := newHarness(t)
	var got adapter.AvailabilityRequest
	h.inventory.AvailabilityFunc = func(_ context.Context, req adapter.AvailabilityRequest) ([]adapter.HotelRecord, error) {
		got = req
		return records(), nil
	}

	resp, err := h.service.Search(context.Background(), request())
	require.NoError(t, err)

	assert.Equal(t, "PMI", got.Destination)
	assert.Equal(t, "es-ES", got.Language)
	require.Len(t, got.Party, 1, "equal party items are grouped")
	assert.Equal(t, 2, got.Party[0].Rooms)

	require.Len(t, resp.Hotels, 2, "hotels without rates are dropped")
	assert.Equal(t, "Sea View", resp.Hotels[0].Name, "ordered by minimum price")
	assert.Equal(t, "88.00", resp.Hotels[0].MinPrice.StringFixed(2))
	assert.Equal(t, "90.00", resp.Hotels[1].MinPrice.StringFixed(2))
	for _, hotel := range resp.Hotels {
		for _, r := range hotel.Rates {
			assert.True(t, r.Total.GreaterThanOrEqual(r.Net.Mul(dec("1.1"))))
		}
	}

	require.Len(t, resp.Locations, 1, "the same place from both providers is merged")
	assert.Equal(t, "2-pa", resp.Locations[0].ID)
	assert.Equal(t, "Palma", resp.Hotels[0].Location.Locality)
	assert.Empty(t, resp.Degraded)
	assert.NotEmpty(t, resp.Filters)

	assert.Equal(t, uint64(1), searches(t, h.metrics))
	assert.Equal(t, 2.0, testutil.ToFloat64(h.metrics.SearchHotels))
	spans := h.spans.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "search", spans[0].Name())
}

func TestSearch_SpecialHotels(t *testing.T) {
	h := newHarness(t, WithSpecial(func(hotel domain.Hotel) (bool, error) { return hotel.Stars >= 3, nil }))
	resp, err := h.service.Search(context.Background(), request())
	require.NoError(t, err)

	var city domain.Hotel
	for _, hotel := range resp.Hotels {
		if hotel.Name == "City Inn" {
			city = hotel
		}
	}
	require.True(t, city.Special)
	assert.Equal(t, "85.50", city.MinPrice.StringFixed(2), "5% off the suggested 90.00")
}

func TestSearch_Selection(t *testing.T) {
	h := newHarness(t)
	req := request()
	req.Selection = facet.Selection{Values: map[string][]string{facet.Board: {"BB"}}}

	resp, err := h.service.Search(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, resp.Hotels, 1)
	assert.Equal(t, "Sea View", resp.Hotels[0].Name)
	require.Len(t, resp.Hotels[0].Rates, 1)
	assert.Equal(t, "110.00", resp.Hotels[0].MinPrice.StringFixed(2))

	var board facet.Filter
	for _, f := range resp.Filters {
		if f.ID == facet.Board {
			board = f
		}
	}
	require.Len(t, board.Values, 2)
}

func TestSearch_GeocodeUnavailableDegrades(t *testing.T) {
	h := newHarness(t)
	h.placesA.SearchFunc = func(context.Context, string, string) ([]adapter.Candidate, error) {
		return nil, domain.Unavailable("geocode-a", errors.New("503"))
	}

	resp, err := h.service.Search(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, []string{"geocode-a"}, resp.Degraded)
	assert.Len(t, resp.Locations, 1)
	assert.Len(t, resp.Hotels, 2)

	events := h.sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, logging.KindAdapterDegraded, events[0].Kind)
	assert.Equal(t, "geocode-a", events[0].Upstream)
}

func TestSearch_BothGeocodersDown(t *testing.T) {
	h := newHarness(t)
	down := func(context.Context, string, string) ([]adapter.Candidate, error) {
		return nil, domain.Unavailable("geocode", context.DeadlineExceeded)
	}
	h.placesA.SearchFunc = down
	h.placesB.SearchFunc = down

	resp, err := h.service.Search(context.Background(), request())
	require.NoError(t, err)
	assert.Len(t, resp.Degraded, 2)
	assert.Empty(t, resp.Locations)
	assert.Len(t, resp.Hotels, 2)
}

func TestSearch_GeocodeProtocolErrorIsSurfaced(t *testing.T) {
	h := newHarness(t)
	h.placesB.SearchFunc = func(context.Context, string, string) ([]adapter.Candidate, error) {
		return nil, domain.Protocol("geocode-b", errors.New("unexpected token"))
	}
	_, err := h.service.Search(context.Background(), request())
	assert.ErrorIs(t, err, domain.ErrUpstreamProtocol)
}

func TestSearch_InventoryFailureIsFatal(t *testing.T) {
	h := newHarness(t)
	h.inventory.AvailabilityFunc = func(context.Context, adapter.AvailabilityRequest) ([]adapter.HotelRecord, error) {
		return nil, domain.Unavailable("inventory", errors.New("breaker open"))
	}

	_, err := h.service.Search(context.Background(), request())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)

	spans := h.spans.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Zero(t, searches(t, h.metrics))
}

func TestSearch_CancellationPropagates(t *testing.T) {
	h := newHarness(t)
	h.inventory.AvailabilityFunc = func(ctx context.Context, _ adapter.AvailabilityRequest) ([]adapter.HotelRecord, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.service.Search(ctx, request())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSearch_LanguageFromRequestContext(t *testing.T) {
	h := newHarness(t)
	var lang string
	h.placesA.SearchFunc = func(_ context.Context, _, l string) ([]adapter.Candidate, error) {
		lang = l
		return nil, nil
	}
	req := request()
	req.Language = ""
	ctx := requestctx.With(context.Background(), requestctx.TraceContext{Language: "de"})

	_, err := h.service.Search(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "de", lang)
}

func TestValidate(t *testing.T) {
	h := newHarness(t)
	tests := []struct {
		name   string
		mutate func(*Request)
		field  string
	}{
		{"no destination", func(r *Request) { r.Query, r.Destination = " ", "" }, "destination"},
		{"no check-in", func(r *Request) { r.CheckIn = time.Time{} }, "checkIn"},
		{"no check-out", func(r *Request) { r.CheckOut = time.Time{} }, "checkOut"},
		{"check-out before check-in", func(r *Request) { r.CheckOut = r.CheckIn.Add(-24 * time.Hour) }, "checkOut"},
		{"same day", func(r *Request) { r.CheckOut = r.CheckIn }, "checkOut"},
		{"too long", func(r *Request) { r.CheckOut = r.CheckIn.AddDate(0, 0, MaxNights+1) }, "checkOut"},
		{"no party", func(r *Request) { r.Party = nil }, ""},
		{"child too old", func(r *Request) { r.Party = []domain.PartyItem{{Adults: 1, ChildAges: []int{18}, Rooms: 1}} }, ""},
		{"unknown facet", func(r *Request) { r.Selection = facet.Selection{Values: map[string][]string{"pool": {"yes"}}} }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := request()
			tt.mutate(&req)
			_, err := h.service.Search(context.Background(), req)
			require.ErrorIs(t, err, domain.ErrValidation)
			if tt.field != "" {
				var verr *domain.ValidationError
				require.ErrorAs(t, err, &verr)
				assert.Equal(t, tt.field, verr.Field)
			}
		})
	}
	assert.Zero(t, h.inventory.Count("Availability"), "invalid requests make no upstream call")
}
