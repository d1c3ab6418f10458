package canonical

import (
	"github.com/yourorg/hotel-broker/internal/domain"
)

// ValidateParty checks a multi-room party: at least one item, every item
// valid and no more than domain.MaxRooms rooms in total.
func ValidateParty(items []domain.PartyItem) error {
	if len(items) == 0 {
		return domain.Invalid("party", "at least one room is required")
	}
	rooms := 0
	for _, it := range items {
		if err := it.Validate(); err != nil {
			return err
		}
		rooms += it.Rooms
	}
	if rooms > domain.MaxRooms {
		return domain.Invalid("party.rooms", "%d rooms requested, at most %d allowed", rooms, domain.MaxRooms)
	}
	return nil
}

// GroupParty validates items and merges equal ones into a single entry with
// summed Rooms, keeping the order of first appearance. The result is what
// the inventory upstream receives as occupancies.
func GroupParty(items []domain.PartyItem) ([]domain.PartyItem, error) {
	if err := ValidateParty(items); err != nil {
		return nil, err
	}
	index := make(map[string]int, len(items))
	grouped := make([]domain.PartyItem, 0, len(items))
	for _, it := range items {
		key := it.Key()
		if i, ok := index[key]; ok {
			grouped[i].Rooms += it.Rooms
			continue
		}
		index[key] = len(grouped)
		it.ChildAges = append([]int(nil), it.ChildAges...)
		grouped = append(grouped, it)
	}
	return grouped, nil
}
