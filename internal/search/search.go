// Package search runs one hotel search end to end: it fans out to the
// inventory and geocode upstreams in parallel, builds the canonical model,
// prices it and derives the facets of the result.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/yourorg/hotel-broker/internal/adapter"
	"github.com/yourorg/hotel-broker/internal/canonical"
	"github.com/yourorg/hotel-broker/internal/domain"
	"github.com/yourorg/hotel-broker/internal/facet"
	"github.com/yourorg/hotel-broker/internal/logging"
	"github.com/yourorg/hotel-broker/internal/metrics"
	"github.com/yourorg/hotel-broker/internal/pricing"
	"github.com/yourorg/hotel-broker/internal/requestctx"
)

const instrumentationName = "github.com/yourorg/hotel-broker/internal/search"

// MaxNights bounds the length of a stay.
const MaxNights = 30

// Request is one search. Destination is the inventory destination code and
// defaults to Query, the free text sent to the geocoders.
type Request struct {
	Query       string
	Destination string
	CheckIn     time.Time
	CheckOut    time.Time
	Party       []domain.PartyItem
	Language    string
	Selection   facet.Selection
}

// Response is the priced, filtered result of a search.
type Response struct {
	Hotels    []domain.Hotel
	Filters   []facet.Filter
	Locations []domain.Location
	// Degraded names the optional upstreams that did not answer.
	Degraded []string
}

// Service assembles the search pipeline.
type Service struct {
	inventory adapter.InventoryProvider
	lookups   []adapter.LocationLookup
	builder   *canonical.Builder
	engine    *pricing.Engine
	special   pricing.SpecialFunc
	facets    *facet.Builder
	sink      logging.Sink
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithSpecial sets the rule deciding which hotels get the special discount.
func WithSpecial(f pricing.SpecialFunc) Option { return func(s *Service) { s.special = f } }

func WithFacets(b *facet.Builder) Option { return func(s *Service) { s.facets = b } }

func WithSink(sink logging.Sink) Option { return func(s *Service) { s.sink = sink } }

func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) { s.tracer = tp.Tracer(instrumentationName) }
}

// New creates a Service. lookups are optional: their unavailability
// degrades the result instead of failing it.
func New(inventory adapter.InventoryProvider, lookups []adapter.LocationLookup, builder *canonical.Builder, engine *pricing.Engine, opts ...Option) *Service {
	s := &Service{
		inventory: inventory,
		lookups:   lookups,
		builder:   builder,
		engine:    engine,
		facets:    facet.NewBuilder(),
		sink:      logging.NopSink{},
		tracer:    otel.Tracer(instrumentationName),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Validate checks req and returns the grouped party sent upstream.
func (s *Service) Validate(req Request) ([]domain.PartyItem, error) {
	if strings.TrimSpace(req.Query) == "" && strings.TrimSpace(req.Destination) == "" {
		return nil, domain.Invalid("destination", "a destination or a query is required")
	}
	if req.CheckIn.IsZero() {
		return nil, domain.Invalid("checkIn", "check-in is required")
	}
	if req.CheckOut.IsZero() {
		return nil, domain.Invalid("checkOut", "check-out is required")
	}
	if !req.CheckOut.After(req.CheckIn) {
		return nil, domain.Invalid("checkOut", "check-out %s is not after check-in %s", req.CheckOut.Format(time.DateOnly), req.CheckIn.Format(time.DateOnly))
	}
	if nights := req.CheckOut.Sub(req.CheckIn).Hours() / 24; nights > MaxNights {
		return nil, domain.Invalid("checkOut", "%.0f nights requested, at most %d allowed", nights, MaxNights)
	}
	if err := s.facets.Validate(req.Selection); err != nil {
		return nil, err
	}
	return canonical.GroupParty(req.Party)
}

// Search runs the pipeline for req.
func (s *Service) Search(ctx context.Context, req Request) (*Response, error) {
	started := s.now()
	ctx, span := s.tracer.Start(ctx, "search", trace.WithAttributes(
		attribute.String("search.destination", req.Destination),
		attribute.String("search.query", req.Query),
	))
	defer span.End()

	resp, err := s.search(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("search.hotels", len(resp.Hotels)),
		attribute.StringSlice("search.degraded", resp.Degraded),
	)
	s.metrics.ObserveSearch(s.now().Sub(started), len(resp.Hotels))
	return resp, nil
}

func (s *Service) search(ctx context.Context, req Request) (*Response, error) {
	party, err := s.Validate(req)
	if err != nil {
		return nil, err
	}
	lang := req.Language
	if lang == "" {
		if tc, ok := requestctx.From(ctx); ok {
			lang = tc.Language
		}
	}
	destination := req.Destination
	if destination == "" {
		destination = strings.TrimSpace(req.Query)
	}

	var (
		records    []adapter.HotelRecord
		candidates = make([][]adapter.Candidate, len(s.lookups))
		degraded   = make([]string, len(s.lookups))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		recs, err := s.inventory.Availability(gctx, adapter.AvailabilityRequest{
			Destination: destination,
			CheckIn:     req.CheckIn,
			CheckOut:    req.CheckOut,
			Party:       party,
			Language:    lang,
		})
		if err != nil {
			return fmt.Errorf("search: inventory: %w", err)
		}
		records = recs
		return nil
	})
	for i, lookup := range s.lookups {
		g.Go(func() error {
			cands, err := lookup.Search(gctx, req.Query, lang)
			switch {
			case err == nil:
				candidates[i] = cands
			case errors.Is(err, domain.ErrUpstreamUnavailable) && gctx.Err() == nil:
				degraded[i] = lookup.Name()
				s.sink.Emit(ctx, logging.Event{
					Kind:     logging.KindAdapterDegraded,
					Upstream: lookup.Name(),
					Cause:    err,
				})
			default:
				return fmt.Errorf("search: %s: %w", lookup.Name(), err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	hotels, locations, err := s.builder.Build(records, candidates...)
	if err != nil {
		return nil, fmt.Errorf("search: build: %w", err)
	}
	priced, err := s.engine.Price(hotels, s.special)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	resp := &Response{
		Filters:   s.facets.Build(priced, req.Selection),
		Hotels:    s.facets.Apply(priced, req.Selection),
		Locations: locations,
	}
	for _, name := range degraded {
		if name != "" {
			resp.Degraded = append(resp.Degraded, name)
		}
	}
	return resp, nil
}
