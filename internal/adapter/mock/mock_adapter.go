// Package mock provides in-memory implementations of the adapter
// capabilities for tests and local runs without upstream credentials.
package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/yourorg/hotel-broker/internal/adapter"
)

// ErrUnknownTransaction is returned by Gateway for ids it does not hold.
var ErrUnknownTransaction = errors.New("mock: unknown transaction")

// Calls counts invocations per method.
type Calls struct {
	mu sync.Mutex
	n  map[string]int
}

func (c *Calls) inc(method string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.n == nil {
		c.n = map[string]int{}
	}
	c.n[method]++
}

// Count returns how often method was called.
func (c *Calls) Count(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n[method]
}

// LocationLookup is a mock adapter.LocationLookup. Without SearchFunc it
// returns Candidates for any non-blank query.
type LocationLookup struct {
	Calls
	LookupName string
	Candidates []adapter.Candidate
	SearchFunc func(ctx context.Context, query, lang string) ([]adapter.Candidate, error)
}

var _ adapter.LocationLookup = (*LocationLookup)(nil)

// NewLocationLookup creates a lookup that answers with candidates.
func NewLocationLookup(name string, candidates ...adapter.Candidate) *LocationLookup {
	return &LocationLookup{LookupName: name, Candidates: candidates}
}

func (m *LocationLookup) Name() string { return m.LookupName }

func (m *LocationLookup) Search(ctx context.Context, query, lang string) ([]adapter.Candidate, error) {
	m.inc("Search")
	if m.SearchFunc != nil {
		return m.SearchFunc(ctx, query, lang)
	}
	if query == "" {
		return nil, nil
	}
	return append([]adapter.Candidate(nil), m.Candidates...), nil
}

// Inventory is a mock adapter.InventoryProvider.
type Inventory struct {
	Calls
	Hotels           []adapter.HotelRecord
	AvailabilityFunc func(ctx context.Context, req adapter.AvailabilityRequest) ([]adapter.HotelRecord, error)
}

var _ adapter.InventoryProvider = (*Inventory)(nil)

// NewInventory creates an inventory that always answers with hotels.
func NewInventory(hotels ...adapter.HotelRecord) *Inventory {
	return &Inventory{Hotels: hotels}
}

func (m *Inventory) Availability(ctx context.Context, req adapter.AvailabilityRequest) ([]adapter.HotelRecord, error) {
	m.inc("Availability")
	if m.AvailabilityFunc != nil {
		return m.AvailabilityFunc(ctx, req)
	}
	return append([]adapter.HotelRecord(nil), m.Hotels...), nil
}

// Gateway is a mock adapter.PaymentGateway. By default CreateOrder issues a
// random order code and GetTransaction looks up Transactions by id.
type Gateway struct {
	Calls
	txMu               sync.Mutex
	Transactions       map[string]adapter.Transaction
	Orders             []adapter.OrderRequest
	CreateOrderFunc    func(ctx context.Context, req adapter.OrderRequest) (adapter.OrderReceipt, error)
	GetTransactionFunc func(ctx context.Context, id string) (adapter.Transaction, error)
}

var _ adapter.PaymentGateway = (*Gateway)(nil)

// NewGateway creates a gateway that knows the given transactions.
func NewGateway(txs ...adapter.Transaction) *Gateway {
	g := &Gateway{Transactions: make(map[string]adapter.Transaction, len(txs))}
	for _, tx := range txs {
		g.Transactions[tx.ID] = tx
	}
	return g
}

func (m *Gateway) CreateOrder(ctx context.Context, req adapter.OrderRequest) (adapter.OrderReceipt, error) {
	m.inc("CreateOrder")
	m.txMu.Lock()
	m.Orders = append(m.Orders, req)
	m.txMu.Unlock()
	if m.CreateOrderFunc != nil {
		return m.CreateOrderFunc(ctx, req)
	}
	code := uuid.NewString()
	return adapter.OrderReceipt{OrderCode: code, RedirectURL: "https://gateway.invalid/pay/" + code}, nil
}

func (m *Gateway) GetTransaction(ctx context.Context, id string) (adapter.Transaction, error) {
	m.inc("GetTransaction")
	if m.GetTransactionFunc != nil {
		return m.GetTransactionFunc(ctx, id)
	}
	m.txMu.Lock()
	defer m.txMu.Unlock()
	tx, ok := m.Transactions[id]
	if !ok {
		return adapter.Transaction{}, ErrUnknownTransaction
	}
	return tx, nil
}
