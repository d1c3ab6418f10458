package domain

import (
	"encoding/binary"
	"hash/fnv"
	"strconv"
	"strings"
)

// Limits applied when validating a party.
const (
	MaxChildAge = 17
	MaxRooms    = 9
)

// PartyItem is the guest composition of one room type: adults, ordered child
// ages and how many identical rooms are requested.
type PartyItem struct {
	Adults    int   `json:"adults"`
	ChildAges []int `json:"childAges"`
	Rooms     int   `json:"rooms"`
}

// Equal reports whether p and o describe the same guests. Child ages are
// compared element-wise in order; Rooms is not part of the identity.
func (p PartyItem) Equal(o PartyItem) bool {
	if p.Adults != o.Adults || len(p.ChildAges) != len(o.ChildAges) {
		return false
	}
	for i := range p.ChildAges {
		if p.ChildAges[i] != o.ChildAges[i] {
			return false
		}
	}
	return true
}

// Hash is an order-sensitive FNV-1a digest of the adult count and child
// ages. Equal items always hash equally.
func (p PartyItem) Hash() uint64 {
	h := fnv.New64a()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(p.Adults))
	_, _ = h.Write(buf[:])
	for _, age := range p.ChildAges {
		binary.LittleEndian.PutUint64(buf[:], uint64(age))
		_, _ = h.Write(buf[:])
	}
	return h.Sum64()
}

// Key renders the identity of p as a string usable as a map key, e.g. "2|5,9".
func (p PartyItem) Key() string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(p.Adults))
	b.WriteByte('|')
	for i, age := range p.ChildAges {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(age))
	}
	return b.String()
}

// Guests is the number of people in a single room of this item.
func (p PartyItem) Guests() int {
	return p.Adults + len(p.ChildAges)
}

// Validate checks one item of a party.
func (p PartyItem) Validate() error {
	if p.Adults < 1 {
		return Invalid("party.adults", "every room needs at least one adult, got %d", p.Adults)
	}
	if p.Rooms < 1 {
		return Invalid("party.rooms", "room count must be positive, got %d", p.Rooms)
	}
	for _, age := range p.ChildAges {
		if age < 0 || age > MaxChildAge {
			return Invalid("party.childAges", "child age %d outside 0..%d", age, MaxChildAge)
		}
	}
	return nil
}
