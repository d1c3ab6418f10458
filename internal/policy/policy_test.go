package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/hotel-broker/internal/domain"
)

func hotel() domain.Hotel {
	return domain.Hotel{
		Code:        "6613",
		Name:        "Hotel Almudaina",
		Stars:       4,
		Destination: "Palma De Mallorca",
		Tags:        []string{"beach", "family"},
		Location:    domain.Location{Locality: "Palma", Country: "Spain"},
		Rates:       []domain.Rate{{}, {}},
	}
}

func TestNewSpecialHotelPolicy_EmptyAndNilRules(t *testing.T) {
	p, err := NewSpecialHotelPolicy(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, p.Len())

	special, err := p.IsSpecial(hotel())
	require.NoError(t, err)
	assert.False(t, special)

	var nilPolicy *SpecialHotelPolicy
	special, err = nilPolicy.IsSpecial(hotel())
	require.NoError(t, err)
	assert.False(t, special)
}

func TestNewSpecialHotelPolicy_CompilationError(t *testing.T) {
	_, err := NewSpecialHotelPolicy([]Rule{
		{ID: "ok", Expression: "stars > 3"},
		{ID: "broken", Expression: "stars =="},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to compile rule ID 'broken'")

	_, err = NewSpecialHotelPolicy([]Rule{{ID: "blank", Expression: "  "}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "policy rule ID 'blank' has an empty expression")
}

func TestSpecialHotelPolicy_IsSpecial(t *testing.T) {
	p, err := NewSpecialHotelPolicy([]Rule{
		{ID: "luxury", Expression: "stars >= 5"},
		{ID: "beach-4", Expression: "stars >= 4 && 'beach' IN tags"},
		{ID: "featured", Expression: "code == '1234'"},
	})
	require.NoError(t, err)

	tests := []struct {
		name string
		edit func(h *domain.Hotel)
		want bool
	}{
		{name: "four star beach", edit: func(*domain.Hotel) {}, want: true},
		{name: "five star", edit: func(h *domain.Hotel) { h.Stars = 5; h.Tags = nil }, want: true},
		{name: "featured code", edit: func(h *domain.Hotel) { h.Stars = 1; h.Code = "1234" }, want: true},
		{name: "three star beach", edit: func(h *domain.Hotel) { h.Stars = 3 }, want: false},
		{name: "four star city", edit: func(h *domain.Hotel) { h.Tags = []string{"city"} }, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := hotel()
			tt.edit(&h)
			got, err := p.IsSpecial(h)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSpecialHotelPolicy_EvaluationErrors(t *testing.T) {
	t.Run("unknown parameter", func(t *testing.T) {
		p, err := NewSpecialHotelPolicy([]Rule{{ID: "missing", Expression: "undefinedParam > 10"}})
		require.NoError(t, err)
		_, err = p.IsSpecial(hotel())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "No parameter 'undefinedParam' found.")
	})

	t.Run("not a boolean", func(t *testing.T) {
		p, err := NewSpecialHotelPolicy([]Rule{{ID: "arith", Expression: "stars + 1"}})
		require.NoError(t, err)
		_, err = p.IsSpecial(hotel())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "want bool")
	})
}

func TestParseRules(t *testing.T) {
	rules := ParseRules("luxury: stars >= 5 ; ; code == '7';beach:'beach' IN tags")
	assert.Equal(t, []Rule{
		{ID: "luxury", Expression: "stars >= 5"},
		{ID: "rule-3", Expression: "code == '7'"},
		{ID: "beach", Expression: "'beach' IN tags"},
	}, rules)
	assert.Empty(t, ParseRules(""))
}
