// Package geocode holds the two location lookup adapters: an autocomplete
// API (geocode-a) and a Nominatim-compatible search API (geocode-b).
package geocode

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/yourorg/hotel-broker/internal/adapter"
	"github.com/yourorg/hotel-broker/internal/adapter/wire"
	"github.com/yourorg/hotel-broker/internal/domain"
	"github.com/yourorg/hotel-broker/internal/upstream"
)

// Doer is the part of *upstream.Client the adapters need.
type Doer interface {
	Do(ctx context.Context, r upstream.Request, out any) error
}

// PlacesAdapter queries the autocomplete upstream.
type PlacesAdapter struct {
	client Doer
	apiKey string
}

var _ adapter.LocationLookup = (*PlacesAdapter)(nil)

// NewPlacesAdapter creates the geocode-a adapter.
func NewPlacesAdapter(client Doer, apiKey string) *PlacesAdapter {
	return &PlacesAdapter{client: client, apiKey: apiKey}
}

func (p *PlacesAdapter) Name() string { return upstream.GeocodeA }

type placesResponse struct {
	Status      string       `json:"status"`
	Error       string       `json:"error_message"`
	Predictions []prediction `json:"predictions"`
}

type prediction struct {
	PlaceID     wire.FlexString `json:"place_id"`
	Description string          `json:"description"`
	Structured  struct {
		MainText      string `json:"main_text"`
		SecondaryText string `json:"secondary_text"`
	} `json:"structured_formatting"`
	Terms []struct {
		Value string `json:"value"`
	} `json:"terms"`
	Geometry struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
	} `json:"geometry"`
}

// Search returns autocomplete candidates for query.
func (p *PlacesAdapter) Search(ctx context.Context, query, lang string) ([]adapter.Candidate, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	var resp placesResponse
	err := p.client.Do(ctx, upstream.Request{
		Method: http.MethodGet,
		Path:   "/autocomplete",
		Query: url.Values{
			"input":    {query},
			"language": {adapter.LanguageCode(lang)},
			"key":      {p.apiKey},
		},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("geocode-a: search: %w", err)
	}

	switch resp.Status {
	case "OK", "ZERO_RESULTS":
	default:
		return nil, domain.Protocol(upstream.GeocodeA, fmt.Errorf("status %q: %s", resp.Status, resp.Error))
	}

	candidates := make([]adapter.Candidate, 0, len(resp.Predictions))
	for _, pr := range resp.Predictions {
		c := adapter.Candidate{
			Provider:  domain.ProviderGeocodeA,
			Code:      pr.PlaceID.String(),
			Name:      pr.Description,
			Locality:  pr.Structured.MainText,
			Latitude:  pr.Geometry.Location.Lat,
			Longitude: pr.Geometry.Location.Lng,
		}
		if n := len(pr.Terms); n > 1 {
			c.Country = pr.Terms[n-1].Value
		}
		if c.Code == "" {
			continue
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}
