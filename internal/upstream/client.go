// Package upstream hands out one named HTTP client per third-party service.
// Every request a client sends goes through the resilience executor, so
// adapters only describe requests and decode answers.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yourorg/hotel-broker/internal/domain"
	"github.com/yourorg/hotel-broker/internal/resilience"
)

// Names of the upstreams the broker talks to.
const (
	Inventory = "inventory"
	GeocodeA  = "geocode-a"
	GeocodeB  = "geocode-b"
	Payment   = "payment"
)

const (
	defaultTimeout = 10 * time.Second
	maxErrorBody   = 4 << 10
)

// Config describes one upstream.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Class   resilience.Class
	// Transport overrides the HTTP transport, e.g. in tests.
	Transport http.RoundTripper
}

// Request describes one call relative to the client's base URL.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	// Body is JSON-encoded once and re-sent unchanged on every attempt.
	Body any
}

// Client sends JSON requests to a single upstream.
type Client struct {
	name    string
	baseURL *url.URL
	class   resilience.Class
	http    *http.Client
	exec    *resilience.Executor
}

// NewClient creates a client for upstream name.
func NewClient(name string, cfg Config, exec *resilience.Executor) (*Client, error) {
	if exec == nil {
		return nil, fmt.Errorf("upstream: executor cannot be nil")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("upstream: invalid base URL %q for %s", cfg.BaseURL, name)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		name:    name,
		baseURL: base,
		class:   cfg.Class,
		http:    &http.Client{Timeout: timeout, Transport: cfg.Transport},
		exec:    exec,
	}, nil
}

// Name returns the upstream name the client was registered under.
func (c *Client) Name() string { return c.name }

// Do sends r and decodes a 2xx JSON answer into out (when out is non-nil).
// Failures come back as *domain.UpstreamError after the resilience policies
// of the client's class have run.
func (c *Client) Do(ctx context.Context, r Request, out any) error {
	var payload []byte
	if r.Body != nil {
		b, err := json.Marshal(r.Body)
		if err != nil {
			return fmt.Errorf("upstream %s: encode request: %w", c.name, err)
		}
		payload = b
	}
	target := c.resolve(r)

	return c.exec.Execute(ctx, c.name, c.class, func(ctx context.Context) error {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		method := r.Method
		if method == "" {
			method = http.MethodGet
		}
		req, err := http.NewRequestWithContext(ctx, method, target, body)
		if err != nil {
			return resilience.Permanent(err)
		}
		for k, vs := range r.Header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer func() {
			_ = resp.Body.Close()
		}()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			return &resilience.StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
		}
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return domain.Protocol(c.name, fmt.Errorf("decode response: %w", err))
		}
		return nil
	})
}

func (c *Client) resolve(r Request) string {
	u := *c.baseURL
	u.Path = c.baseURL.Path + "/" + strings.TrimLeft(r.Path, "/")
	if len(r.Query) > 0 {
		u.RawQuery = r.Query.Encode()
	}
	return u.String()
}

// Factory builds clients from per-upstream configuration.
type Factory struct {
	exec    *resilience.Executor
	configs map[string]Config
}

// NewFactory creates a Factory. Configs are copied.
func NewFactory(exec *resilience.Executor, configs map[string]Config) *Factory {
	cp := make(map[string]Config, len(configs))
	for k, v := range configs {
		cp[k] = v
	}
	return &Factory{exec: exec, configs: cp}
}

// Client returns a new client for the named upstream.
func (f *Factory) Client(name string) (*Client, error) {
	cfg, ok := f.configs[name]
	if !ok {
		return nil, fmt.Errorf("upstream: no configuration registered for %q", name)
	}
	return NewClient(name, cfg, f.exec)
}
