package domain

import (
	"strconv"
	"strings"
)

// ProviderID enumerates the upstream sources that issue identifiers.
type ProviderID int

const (
	ProviderUnknown ProviderID = iota
	ProviderInventory
	ProviderGeocodeA
	ProviderGeocodeB
)

func (p ProviderID) String() string {
	switch p {
	case ProviderInventory:
		return "inventory"
	case ProviderGeocodeA:
		return "geocode-a"
	case ProviderGeocodeB:
		return "geocode-b"
	default:
		return "unknown"
	}
}

// CompositeID renders the (provider, code) tuple used for hotel, rate and
// location ids, e.g. "1-12345".
func CompositeID(provider ProviderID, code string) string {
	return strconv.Itoa(int(provider)) + "-" + code
}

// ParseCompositeID splits an id produced by CompositeID. The code part may
// itself contain dashes.
func ParseCompositeID(id string) (ProviderID, string, error) {
	prefix, code, ok := strings.Cut(id, "-")
	if !ok || code == "" {
		return ProviderUnknown, "", Invalid("id", "malformed composite id %q", id)
	}
	n, err := strconv.Atoi(prefix)
	if err != nil {
		return ProviderUnknown, "", Invalid("id", "malformed provider in %q", id)
	}
	p := ProviderID(n)
	if p <= ProviderUnknown || p > ProviderGeocodeB {
		return ProviderUnknown, "", Invalid("id", "unknown provider %d in %q", n, id)
	}
	return p, code, nil
}

