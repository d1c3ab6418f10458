// Package settlement opens payment orders and verifies that a completed
// gateway transaction matches the amounts the broker quoted.
package settlement

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// State of a payment order.
type State int

const (
	StateCreated State = iota
	StatePending
	StateConfirmed
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "Created"
	case StatePending:
		return "Pending"
	case StateConfirmed:
		return "Confirmed"
	case StateRejected:
		return "Rejected"
	default:
		return "Unknown"
	}
}

// Terminal reports whether no further transition is allowed.
func (s State) Terminal() bool { return s == StateConfirmed || s == StateRejected }

// ErrInvalidTransition is returned when an order is moved out of turn.
var ErrInvalidTransition = errors.New("invalid order state transition")

// Order is one checkout attempt, correlated 1:1 with a gateway order code.
type Order struct {
	OrderCode   string
	SourceCode  string
	Reference   string
	Amount      decimal.Decimal
	Prepay      decimal.Decimal
	Currency    string
	RedirectURL string
	CreatedAt   time.Time

	mu    sync.Mutex
	state State
}

// State returns the current state.
func (o *Order) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Await moves a created order to Pending while the gateway settles it.
func (o *Order) Await() error {
	return o.transition(StatePending, StateCreated)
}

// Apply moves a pending order to the state of d.
func (o *Order) Apply(d Decision) error {
	if d.OrderCode != o.OrderCode {
		return fmt.Errorf("%w: decision for order %s applied to %s", ErrInvalidTransition, d.OrderCode, o.OrderCode)
	}
	to := StateRejected
	if d.Status == StatusConfirmed {
		to = StateConfirmed
	}
	return o.transition(to, StatePending)
}

func (o *Order) transition(to State, from State) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != from {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.state, to)
	}
	o.state = to
	return nil
}

// OrderBuilder picks the gateway source code for a checkout from the origin
// the request declared.
type OrderBuilder struct {
	defaultCode string
	partners    map[string]string
}

// NewOrderBuilder creates a builder routing partner domains (host → source
// code) and everything else to defaultCode.
func NewOrderBuilder(defaultCode string, partners map[string]string) *OrderBuilder {
	p := make(map[string]string, len(partners))
	for host, code := range partners {
		p[strings.ToLower(strings.TrimPrefix(strings.TrimSpace(host), "."))] = code
	}
	return &OrderBuilder{defaultCode: defaultCode, partners: p}
}

// ParsePartners reads "domain=code,domain=code".
func ParsePartners(s string) (map[string]string, error) {
	out := map[string]string{}
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		host, code, ok := strings.Cut(pair, "=")
		host, code = strings.TrimSpace(host), strings.TrimSpace(code)
		if !ok || host == "" || code == "" {
			return nil, fmt.Errorf("settlement: malformed partner entry %q, want domain=code", pair)
		}
		out[host] = code
	}
	return out, nil
}

// SourceCodeFor matches the host of origin (an Origin or Referer value)
// against the partner domains, exactly or as a subdomain.
func (b *OrderBuilder) SourceCodeFor(origin string) string {
	origin = strings.TrimSpace(origin)
	if origin == "" {
		return b.defaultCode
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		// Bare host names carry no scheme.
		u, err = url.Parse("//" + origin)
		if err != nil {
			return b.defaultCode
		}
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return b.defaultCode
	}

	best, code := "", b.defaultCode
	for domain, c := range b.partners {
		if host != domain && !strings.HasSuffix(host, "."+domain) {
			continue
		}
		if len(domain) > len(best) {
			best, code = domain, c
		}
	}
	return code
}
