// Package reporting summarizes settlement decisions after the fact.
package reporting

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/yourorg/hotel-broker/internal/settlement"
)

// Entry is one recorded settlement decision.
type Entry struct {
	Timestamp     time.Time
	OrderCode     string
	TransactionID string
	Status        settlement.Status
	Amount        decimal.Decimal
	Currency      string
	Mismatches    []string // mismatching fields, e.g. "amount"
}

// EntryFromDecision flattens a decision into an Entry.
func EntryFromDecision(d settlement.Decision) Entry {
	e := Entry{
		Timestamp:     d.DecidedAt,
		OrderCode:     d.OrderCode,
		TransactionID: d.TransactionID,
		Status:        d.Status,
		Amount:        d.Transaction.Amount,
		Currency:      d.Transaction.Currency,
	}
	for _, m := range d.Mismatches {
		e.Mismatches = append(e.Mismatches, m.Field)
	}
	return e
}

// RetrospectiveReport summarizes a set of settlement decisions.
type RetrospectiveReport struct {
	TotalDecisions    int                        `json:"totalDecisions"`
	Confirmed         int                        `json:"confirmed"`
	Rejected          int                        `json:"rejected"`
	AmountSettled     decimal.Decimal            `json:"amountSettled"`    // confirmed only
	AmountByCurrency  map[string]decimal.Decimal `json:"amountByCurrency"` // confirmed only
	MismatchBreakdown map[string]int             `json:"mismatchBreakdown"`
	DateFrom          time.Time                  `json:"dateFrom"`
	DateTo            time.Time                  `json:"dateTo"`
	Duration          time.Duration              `json:"durationNs"`
}

// RetrospectiveReporter generates retrospective reports from entries.
type RetrospectiveReporter struct{}

// NewRetrospectiveReporter creates a new RetrospectiveReporter.
func NewRetrospectiveReporter() *RetrospectiveReporter {
	return &RetrospectiveReporter{}
}

// GenerateRetrospective analyzes entries and produces a RetrospectiveReport.
func (rr *RetrospectiveReporter) GenerateRetrospective(entries []Entry) (*RetrospectiveReport, error) {
	report := &RetrospectiveReport{
		AmountByCurrency:  make(map[string]decimal.Decimal),
		MismatchBreakdown: make(map[string]int),
	}
	if len(entries) == 0 {
		return report, nil
	}

	report.DateFrom = entries[0].Timestamp
	report.DateTo = entries[0].Timestamp
	for _, e := range entries {
		report.TotalDecisions++
		if e.Timestamp.Before(report.DateFrom) {
			report.DateFrom = e.Timestamp
		}
		if e.Timestamp.After(report.DateTo) {
			report.DateTo = e.Timestamp
		}

		switch e.Status {
		case settlement.StatusConfirmed:
			report.Confirmed++
			report.AmountSettled = report.AmountSettled.Add(e.Amount)
			report.AmountByCurrency[e.Currency] = report.AmountByCurrency[e.Currency].Add(e.Amount)
		case settlement.StatusRejected:
			report.Rejected++
			for _, field := range e.Mismatches {
				report.MismatchBreakdown[field]++
			}
		}
	}
	report.Duration = report.DateTo.Sub(report.DateFrom)
	return report, nil
}

// Recorder keeps the most recent decisions in memory for reporting. It is
// a settlement.Observer and safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	limit   int
	entries []Entry
}

var _ settlement.Observer = (*Recorder)(nil)

// NewRecorder keeps at most limit entries; limit <= 0 keeps all.
func NewRecorder(limit int) *Recorder {
	return &Recorder{limit: limit}
}

func (r *Recorder) Observe(_ context.Context, d settlement.Decision) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, EntryFromDecision(d))
	if r.limit > 0 && len(r.entries) > r.limit {
		r.entries = append([]Entry(nil), r.entries[len(r.entries)-r.limit:]...)
	}
}

// Entries returns a copy of the recorded entries, oldest first.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}

// Report summarizes the recorded entries.
func (r *Recorder) Report() (*RetrospectiveReport, error) {
	return NewRetrospectiveReporter().GenerateRetrospective(r.Entries())
}
