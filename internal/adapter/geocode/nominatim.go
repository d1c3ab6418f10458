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

const nominatimLimit = "10"

// NominatimAdapter queries a Nominatim-compatible forward search API.
type NominatimAdapter struct {
	client Doer
}

var _ adapter.LocationLookup = (*NominatimAdapter)(nil)

// NewNominatimAdapter creates the geocode-b adapter.
func NewNominatimAdapter(client Doer) *NominatimAdapter {
	return &NominatimAdapter{client: client}
}

func (n *NominatimAdapter) Name() string { return upstream.GeocodeB }

type place struct {
	PlaceID     wire.FlexString `json:"place_id"`
	Lat         wire.FlexString `json:"lat"`
	Lon         wire.FlexString `json:"lon"`
	Name        string          `json:"name"`
	DisplayName string          `json:"display_name"`
	Address     struct {
		City    string `json:"city"`
		Town    string `json:"town"`
		Village string `json:"village"`
		Country string `json:"country"`
	} `json:"address"`
}

// locality picks the most specific settlement name available.
func (p place) locality() string {
	for _, s := range []string{p.Address.City, p.Address.Town, p.Address.Village} {
		if s != "" {
			return s
		}
	}
	return p.Name
}

// Search returns forward-geocoding candidates for query.
func (n *NominatimAdapter) Search(ctx context.Context, query, lang string) ([]adapter.Candidate, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	var places []place
	err := n.client.Do(ctx, upstream.Request{
		Method: http.MethodGet,
		Path:   "/search",
		Query: url.Values{
			"q":               {query},
			"format":          {"jsonv2"},
			"addressdetails":  {"1"},
			"limit":           {nominatimLimit},
			"accept-language": {adapter.LanguageCode(lang)},
		},
	}, &places)
	if err != nil {
		return nil, fmt.Errorf("geocode-b: search: %w", err)
	}

	candidates := make([]adapter.Candidate, 0, len(places))
	for _, p := range places {
		lat, err := p.Lat.Float()
		if err != nil {
			return nil, domain.Protocol(upstream.GeocodeB, err)
		}
		lon, err := p.Lon.Float()
		if err != nil {
			return nil, domain.Protocol(upstream.GeocodeB, err)
		}
		candidates = append(candidates, adapter.Candidate{
			Provider:  domain.ProviderGeocodeB,
			Code:      p.PlaceID.String(),
			Name:      p.DisplayName,
			Locality:  p.locality(),
			Country:   p.Address.Country,
			Latitude:  lat,
			Longitude: lon,
		})
	}
	return candidates, nil
}
