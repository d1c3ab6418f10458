package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/yourorg/hotel-broker/internal/adapter"
	"github.com/yourorg/hotel-broker/internal/adapter/geocode"
	"github.com/yourorg/hotel-broker/internal/adapter/inventory"
	"github.com/yourorg/hotel-broker/internal/adapter/payment"
	"github.com/yourorg/hotel-broker/internal/canonical"
	"github.com/yourorg/hotel-broker/internal/config"
	"github.com/yourorg/hotel-broker/internal/logging"
	"github.com/yourorg/hotel-broker/internal/metrics"
	"github.com/yourorg/hotel-broker/internal/monitor"
	"github.com/yourorg/hotel-broker/internal/policy"
	"github.com/yourorg/hotel-broker/internal/pricing"
	"github.com/yourorg/hotel-broker/internal/reporting"
	"github.com/yourorg/hotel-broker/internal/resilience"
	"github.com/yourorg/hotel-broker/internal/resilience/circuitbreaker"
	"github.com/yourorg/hotel-broker/internal/search"
	"github.com/yourorg/hotel-broker/internal/settlement"
	"github.com/yourorg/hotel-broker/internal/upstream"
)

// upstreams are the breakers reported by /healthz.
var upstreams = []string{upstream.Inventory, upstream.GeocodeA, upstream.GeocodeB, upstream.Payment}

// app holds everything the HTTP handlers need.
type app struct {
	name      string
	logger    *slog.Logger
	search    *search.Service
	verifier  *settlement.Verifier
	recorder  *reporting.Recorder
	contracts map[string]*monitor.ContractMonitor
	breaker   *circuitbreaker.CircuitBreaker
	gatherer  prometheus.Gatherer
	tracer    trace.TracerProvider
	origins   []string
}

// deps are the upstream capabilities an app is built on.
type deps struct {
	inventory adapter.InventoryProvider
	lookups   []adapter.LocationLookup
	gateway   adapter.PaymentGateway
}

func newTracerProvider(cfg *config.Config) (*sdktrace.TracerProvider, error) {
	var opts []sdktrace.TracerProviderOption
	if cfg.TracingStdout {
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout trace exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}
	return sdktrace.NewTracerProvider(opts...), nil
}

func newSink(cfg *config.Config, logger *slog.Logger) (logging.Sink, func() error, error) {
	sinks := logging.MultiSink{logging.NewSlogSink(logger)}
	closeFn := func() error { return nil }
	if cfg.FluentBit.Enabled {
		client, err := logging.NewFluentClient(logging.FluentConfig{
			Host:      cfg.FluentBit.Host,
			Port:      cfg.FluentBit.Port,
			TagPrefix: cfg.AppName,
		})
		if err != nil {
			return nil, nil, err
		}
		fs, err := logging.NewFluentSink(client, logger)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, fs)
		closeFn = client.Close
	}
	return sinks, closeFn, nil
}

// newUpstreams builds the HTTP adapters for every upstream.
func newUpstreams(cfg *config.Config, exec *resilience.Executor) (deps, error) {
	factory := upstream.NewFactory(exec, map[string]upstream.Config{
		upstream.Inventory: {BaseURL: cfg.Inventory.URL, Timeout: cfg.UpstreamTimeout, Class: resilience.Standard},
		upstream.GeocodeA:  {BaseURL: cfg.GeocodeA.URL, Timeout: cfg.UpstreamTimeout, Class: resilience.Standard},
		upstream.GeocodeB:  {BaseURL: cfg.GeocodeB.URL, Timeout: cfg.UpstreamTimeout, Class: resilience.Standard},
		upstream.Payment:   {BaseURL: cfg.Payment.URL, Timeout: cfg.UpstreamTimeout, Class: resilience.Payment},
	})
	clients := map[string]*upstream.Client{}
	for _, name := range upstreams {
		c, err := factory.Client(name)
		if err != nil {
			return deps{}, err
		}
		clients[name] = c
	}
	return deps{
		inventory: inventory.New(clients[upstream.Inventory], inventory.Credentials{APIKey: cfg.Inventory.APIKey, Secret: cfg.Inventory.Secret}),
		lookups: []adapter.LocationLookup{
			geocode.NewPlacesAdapter(clients[upstream.GeocodeA], cfg.GeocodeA.APIKey),
			geocode.NewNominatimAdapter(clients[upstream.GeocodeB]),
		},
		gateway: payment.New(clients[upstream.Payment], payment.Credentials{MerchantID: cfg.Payment.MerchantID, APIKey: cfg.Payment.APIKey}),
	}, nil
}

// newApp assembles the pipeline. d may be nil to build the HTTP adapters
// from cfg.
func newApp(cfg *config.Config, logger *slog.Logger, tp trace.TracerProvider, sink logging.Sink, d *deps) (*app, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	cb := circuitbreaker.NewCircuitBreaker(circuitbreaker.Config{})
	exec := resilience.NewExecutor(cb,
		resilience.WithSink(sink),
		resilience.WithMetrics(m),
		resilience.WithTracerProvider(tp),
	)
	if d == nil {
		built, err := newUpstreams(cfg, exec)
		if err != nil {
			return nil, err
		}
		d = &built
	}

	categories, err := canonical.LoadCategoryMap(cfg.CategoryMapPath)
	if err != nil {
		return nil, err
	}
	engine, err := pricing.NewEngine(cfg.Pricing)
	if err != nil {
		return nil, err
	}
	special, err := policy.NewSpecialHotelPolicy(policy.ParseRules(cfg.SpecialHotelRules))
	if err != nil {
		return nil, err
	}
	contracts, err := monitor.LoadContracts(cfg.ContractsDir)
	if err != nil {
		return nil, err
	}

	recorder := reporting.NewRecorder(cfg.SettlementHistory)
	return &app{
		name:   cfg.AppName,
		logger: logger,
		search: search.New(d.inventory, d.lookups, canonical.NewBuilder(categories), engine,
			search.WithSpecial(special.IsSpecial),
			search.WithSink(sink),
			search.WithMetrics(m),
			search.WithTracerProvider(tp),
		),
		verifier: settlement.NewVerifier(d.gateway,
			settlement.NewOrderBuilder(cfg.Payment.DefaultSource, cfg.Payment.Partners),
			settlement.WithSink(sink),
			settlement.WithMetrics(m),
			settlement.WithTracerProvider(tp),
			settlement.WithObserver(recorder),
		),
		recorder:  recorder,
		contracts: contracts,
		breaker:   cb,
		gatherer:  registry,
		tracer:    tp,
		origins:   cfg.CORSAllowedOrigins,
	}, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger := logging.NewLogger(logging.Config{Level: logging.ParseLevel(cfg.Log.Level), Format: cfg.Log.Format})
	slog.SetDefault(logger)

	tp, err := newTracerProvider(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}
	otel.SetTracerProvider(tp)

	sink, closeSink, err := newSink(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to initialize event sink: %v", err)
	}

	a, err := newApp(cfg, logger, tp, sink, nil)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           a.handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		logger.Info("starting server", "addr", srv.Addr, "app", cfg.AppName)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to run server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		logger.Error("tracer shutdown failed", "error", err)
	}
	if err := closeSink(); err != nil {
		logger.Error("event sink close failed", "error", err)
	}
}
