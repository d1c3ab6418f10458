package mock

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/hotel-broker/internal/adapter"
	"github.com/yourorg/hotel-broker/internal/domain"
)

func TestLocationLookup_DefaultBehavior(t *testing.T) {
	m := NewLocationLookup("geocode-a", adapter.Candidate{Provider: domain.ProviderGeocodeA, Code: "p1"})
	assert.Equal(t, "geocode-a", m.Name())

	got, err := m.Search(context.Background(), "rome", "it")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "p1", got[0].Code)

	got, err = m.Search(context.Background(), "", "it")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, 2, m.Count("Search"))
}

func TestLocationLookup_WithCustomFunc(t *testing.T) {
	boom := errors.New("boom")
	m := NewLocationLookup("geocode-b")
	m.SearchFunc = func(context.Context, string, string) ([]adapter.Candidate, error) {
		return nil, domain.Unavailable("geocode-b", boom)
	}

	_, err := m.Search(context.Background(), "x", "en")
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
	assert.ErrorIs(t, err, boom)
}

func TestInventory(t *testing.T) {
	m := NewInventory(adapter.HotelRecord{Code: "1"}, adapter.HotelRecord{Code: "2"})
	got, err := m.Availability(context.Background(), adapter.AvailabilityRequest{Destination: "PMI"})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got[0].Code = "changed"
	assert.Equal(t, "1", m.Hotels[0].Code, "callers get a copy of the slice")

	var seen adapter.AvailabilityRequest
	m.AvailabilityFunc = func(_ context.Context, req adapter.AvailabilityRequest) ([]adapter.HotelRecord, error) {
		seen = req
		return nil, nil
	}
	_, _ = m.Availability(context.Background(), adapter.AvailabilityRequest{Destination: "BCN"})
	assert.Equal(t, "BCN", seen.Destination)
	assert.Equal(t, 2, m.Count("Availability"))
}

func TestGateway(t *testing.T) {
	tx := adapter.Transaction{ID: "t1", OrderCode: "A1", Amount: decimal.NewFromInt(100), Status: "F"}
	g := NewGateway(tx)

	receipt, err := g.CreateOrder(context.Background(), adapter.OrderRequest{Reference: "r"})
	require.NoError(t, err)
	assert.NotEmpty(t, receipt.OrderCode)
	assert.Contains(t, receipt.RedirectURL, receipt.OrderCode)
	require.Len(t, g.Orders, 1)
	assert.Equal(t, "r", g.Orders[0].Reference)

	got, err := g.GetTransaction(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, tx, got)

	_, err = g.GetTransaction(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrUnknownTransaction)
	assert.Equal(t, 2, g.Count("GetTransaction"))
	assert.Equal(t, 1, g.Count("CreateOrder"))
}
