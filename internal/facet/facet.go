// Package facet derives filterable dimensions from a priced result set and
// applies a user's selection to it.
package facet

import (
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/yourorg/hotel-broker/internal/canonical"
	"github.com/yourorg/hotel-broker/internal/domain"
	"github.com/yourorg/hotel-broker/internal/pricing"
)

// Facet ids.
const (
	Board        = "board"
	Stars        = "stars"
	Cancellation = "cancellation"
	Tags         = "tags"
	Price        = "price"
)

// Cancellation facet values.
const (
	FreeCancellation = "free_cancellation"
	NonRefundable    = "non_refundable"
)

// Value is one option of a values facet.
type Value struct {
	ID   string
	Name string
}

// Dimension describes how to facet rates. A dimension without Extract is a
// range over rate totals.
type Dimension struct {
	ID          string
	Name        string
	MultipleAND bool
	// Extract lists the values a rate carries.
	Extract func(h domain.Hotel, r domain.Rate, now time.Time) []Value
	// Less orders values for display; nil sorts by name.
	Less func(a, b Value) bool
}

// IsRange reports whether d is a range facet.
func (d Dimension) IsRange() bool { return d.Extract == nil }

// DefaultDimensions are board (OR), stars (OR), cancellation (OR), tags (AND)
// and price (range).
func DefaultDimensions() []Dimension {
	return []Dimension{
		{
			ID:   Board,
			Name: "Board",
			Extract: func(_ domain.Hotel, r domain.Rate, _ time.Time) []Value {
				if r.Board.Code == "" {
					return nil
				}
				return []Value{{ID: r.Board.Code, Name: r.Board.Name}}
			},
		},
		{
			ID:   Stars,
			Name: "Stars",
			Extract: func(h domain.Hotel, _ domain.Rate, _ time.Time) []Value {
				s := strconv.Itoa(h.Stars)
				return []Value{{ID: s, Name: s}}
			},
			Less: func(a, b Value) bool { return a.ID > b.ID },
		},
		{
			ID:   Cancellation,
			Name: "Cancellation",
			Extract: func(_ domain.Hotel, r domain.Rate, now time.Time) []Value {
				if r.Cancellation.FreeAt(now) {
					return []Value{{ID: FreeCancellation, Name: "Free cancellation"}}
				}
				return []Value{{ID: NonRefundable, Name: "Non-refundable"}}
			},
		},
		{
			ID:          Tags,
			Name:        "Features",
			MultipleAND: true,
			Extract: func(h domain.Hotel, _ domain.Rate, _ time.Time) []Value {
				vs := make([]Value, len(h.Tags))
				for i, t := range h.Tags {
					vs[i] = Value{ID: t, Name: t}
				}
				return vs
			},
		},
		{ID: Price, Name: "Price"},
	}
}

// Selection holds the active filters: selected value ids per facet and an
// optional price range.
type Selection struct {
	Values   map[string][]string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
}

// Empty reports whether nothing is selected.
func (s Selection) Empty() bool {
	for _, v := range s.Values {
		if len(v) > 0 {
			return false
		}
	}
	return s.MinPrice == nil && s.MaxPrice == nil
}

// FilterValue is one option of a values filter. Count ignores the filter's
// own selection; FilteredCount applies every active selection.
type FilterValue struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Count         int    `json:"count"`
	FilteredCount int    `json:"filteredCount"`
}

// Filter is a range filter (Min/Max) or a values filter.
type Filter struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Range       bool             `json:"range"`
	MultipleAND bool             `json:"isMultipleAND"`
	Min         *decimal.Decimal `json:"min,omitempty"`
	Max         *decimal.Decimal `json:"max,omitempty"`
	Values      []FilterValue    `json:"values,omitempty"`
}

// Builder computes facets over a fixed set of dimensions.
type Builder struct {
	dims []Dimension
	now  func() time.Time
}

// NewBuilder creates a Builder. No dimensions means DefaultDimensions.
func NewBuilder(dims ...Dimension) *Builder {
	if len(dims) == 0 {
		dims = DefaultDimensions()
	}
	return &Builder{dims: dims, now: time.Now}
}

// Validate checks that sel only names known facets and has a sane range.
func (b *Builder) Validate(sel Selection) error {
	known := map[string]Dimension{}
	for _, d := range b.dims {
		known[d.ID] = d
	}
	for id, vs := range sel.Values {
		d, ok := known[id]
		if !ok {
			return domain.Invalid("filters."+id, "unknown facet")
		}
		if d.IsRange() && len(vs) > 0 {
			return domain.Invalid("filters."+id, "range facet takes min/max, not values")
		}
	}
	if sel.MinPrice != nil && sel.MaxPrice != nil && sel.MinPrice.GreaterThan(*sel.MaxPrice) {
		return domain.Invalid("filters.price", "min %s above max %s", sel.MinPrice, sel.MaxPrice)
	}
	return nil
}

// item is one rate with the facet values it carries, by dimension index.
type item struct {
	hotel  int
	rate   int
	total  decimal.Decimal
	values [][]Value
}

func (b *Builder) items(hotels []domain.Hotel) []item {
	now := b.now()
	var items []item
	for hi, h := range hotels {
		for ri, r := range h.Rates {
			it := item{hotel: hi, rate: ri, total: r.Total, values: make([][]Value, len(b.dims))}
			for di, d := range b.dims {
				if !d.IsRange() {
					it.values[di] = d.Extract(h, r, now)
				}
			}
			items = append(items, it)
		}
	}
	return items
}

// matchesDim reports whether it satisfies the selection of dimension di.
func (b *Builder) matchesDim(it item, di int, sel Selection) bool {
	d := b.dims[di]
	if d.IsRange() {
		if sel.MinPrice != nil && it.total.LessThan(*sel.MinPrice) {
			return false
		}
		if sel.MaxPrice != nil && it.total.GreaterThan(*sel.MaxPrice) {
			return false
		}
		return true
	}
	selected := sel.Values[d.ID]
	if len(selected) == 0 {
		return true
	}
	carried := map[string]bool{}
	for _, v := range it.values[di] {
		carried[v.ID] = true
	}
	if d.MultipleAND {
		for _, id := range selected {
			if !carried[id] {
				return false
			}
		}
		return true
	}
	for _, id := range selected {
		if carried[id] {
			return true
		}
	}
	return false
}

// matchesExcept reports whether it satisfies every dimension but skip. A skip
// of -1 checks them all.
func (b *Builder) matchesExcept(it item, skip int, sel Selection) bool {
	for di := range b.dims {
		if di != skip && !b.matchesDim(it, di, sel) {
			return false
		}
	}
	return true
}

// Build computes one Filter per dimension over the rates of hotels.
func (b *Builder) Build(hotels []domain.Hotel, sel Selection) []Filter {
	items := b.items(hotels)
	filters := make([]Filter, 0, len(b.dims))
	for di, d := range b.dims {
		f := Filter{ID: d.ID, Name: d.Name, Range: d.IsRange(), MultipleAND: d.MultipleAND}
		if d.IsRange() {
			for _, it := range items {
				if !b.matchesExcept(it, di, sel) {
					continue
				}
				if f.Min == nil || it.total.LessThan(*f.Min) {
					v := it.total
					f.Min = &v
				}
				if f.Max == nil || it.total.GreaterThan(*f.Max) {
					v := it.total
					f.Max = &v
				}
			}
			filters = append(filters, f)
			continue
		}

		index := map[string]int{}
		for _, it := range items {
			others := b.matchesExcept(it, di, sel)
			all := others && b.matchesDim(it, di, sel)
			for _, v := range it.values[di] {
				i, ok := index[v.ID]
				if !ok {
					i = len(f.Values)
					index[v.ID] = i
					f.Values = append(f.Values, FilterValue{ID: v.ID, Name: v.Name})
				}
				if others {
					f.Values[i].Count++
				}
				if all {
					f.Values[i].FilteredCount++
				}
			}
		}
		less := d.Less
		if less == nil {
			less = func(x, y Value) bool { return x.Name < y.Name }
		}
		sort.SliceStable(f.Values, func(i, j int) bool {
			return less(Value{ID: f.Values[i].ID, Name: f.Values[i].Name}, Value{ID: f.Values[j].ID, Name: f.Values[j].Name})
		})
		filters = append(filters, f)
	}
	return filters
}

// Apply keeps only the rates matching every active selection, drops hotels
// left without rates and orders the rest by minimum total, then name.
// MinPrice, SalePrice and the board summary are recomputed over the
// remaining rates.
func (b *Builder) Apply(hotels []domain.Hotel, sel Selection) []domain.Hotel {
	items := b.items(hotels)
	keep := map[[2]int]bool{}
	for _, it := range items {
		if b.matchesExcept(it, -1, sel) {
			keep[[2]int{it.hotel, it.rate}] = true
		}
	}

	out := make([]domain.Hotel, 0, len(hotels))
	for hi, h := range hotels {
		var rates []domain.Rate
		for ri, r := range h.Rates {
			if keep[[2]int{hi, ri}] {
				rates = append(rates, r)
			}
		}
		if len(rates) == 0 {
			continue
		}
		minPrice := rates[0].Total
		for _, r := range rates[1:] {
			minPrice = decimal.Min(minPrice, r.Total)
		}
		h.Rates = rates
		h.Boards = canonical.SummarizeBoards(rates)
		h.MinPrice = minPrice
		h.SalePrice = pricing.EffectiveSalePrice(h.SalePrice, minPrice)
		out = append(out, h)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].MinPrice.Cmp(out[j].MinPrice); c != 0 {
			return c < 0
		}
		return out[i].Name < out[j].Name
	})
	return out
}
