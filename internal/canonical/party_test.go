package canonical

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/hotel-broker/internal/domain"
)

func TestValidateParty(t *testing.T) {
	tests := []struct {
		name    string
		party   []domain.PartyItem
		wantErr bool
	}{
		{name: "single room", party: []domain.PartyItem{{Adults: 2, Rooms: 1}}},
		{name: "nine rooms", party: []domain.PartyItem{{Adults: 1, Rooms: 4}, {Adults: 2, Rooms: 5}}},
		{name: "empty", party: nil, wantErr: true},
		{name: "ten rooms", party: []domain.PartyItem{{Adults: 1, Rooms: 5}, {Adults: 2, Rooms: 5}}, wantErr: true},
		{name: "room without adults", party: []domain.PartyItem{{Adults: 2, Rooms: 1}, {Adults: 0, ChildAges: []int{8}, Rooms: 1}}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateParty(tt.party)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrValidation)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestGroupParty(t *testing.T) {
	party := []domain.PartyItem{
		{Adults: 2, ChildAges: []int{2, 6}, Rooms: 1},
		{Adults: 2, ChildAges: []int{6, 2}, Rooms: 1},
		{Adults: 2, ChildAges: []int{2, 6}, Rooms: 2},
		{Adults: 1, Rooms: 1},
	}

	grouped, err := GroupParty(party)
	require.NoError(t, err)
	require.Len(t, grouped, 3, "child order keeps [2,6] and [6,2] apart")
	assert.Equal(t, domain.PartyItem{Adults: 2, ChildAges: []int{2, 6}, Rooms: 3}, grouped[0])
	assert.Equal(t, domain.PartyItem{Adults: 2, ChildAges: []int{6, 2}, Rooms: 1}, grouped[1])
	assert.Equal(t, domain.PartyItem{Adults: 1, Rooms: 1}, grouped[2])

	grouped[0].ChildAges[0] = 99
	assert.Equal(t, 2, party[0].ChildAges[0], "grouping copies child ages")
	assert.Equal(t, 1, party[0].Rooms, "grouping does not touch the input")
}

func TestGroupParty_Invalid(t *testing.T) {
	_, err := GroupParty([]domain.PartyItem{{Adults: 1, ChildAges: []int{18}, Rooms: 1}})
	assert.ErrorIs(t, err, domain.ErrValidation)
}
