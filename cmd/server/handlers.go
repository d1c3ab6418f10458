package main

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/text/language"

	"github.com/yourorg/hotel-broker/internal/adapter"
	"github.com/yourorg/hotel-broker/internal/domain"
	"github.com/yourorg/hotel-broker/internal/facet"
	"github.com/yourorg/hotel-broker/internal/monitor"
	"github.com/yourorg/hotel-broker/internal/requestctx"
	"github.com/yourorg/hotel-broker/internal/search"
	"github.com/yourorg/hotel-broker/internal/settlement"
)

const requestIDHeader = "X-Request-ID"

type filtersRequest struct {
	Values   map[string][]string `json:"values"`
	MinPrice *decimal.Decimal    `json:"minPrice"`
	MaxPrice *decimal.Decimal    `json:"maxPrice"`
}

type searchRequest struct {
	Query       string             `json:"query"`
	Destination string             `json:"destination"`
	CheckIn     string             `json:"checkIn"`
	CheckOut    string             `json:"checkOut"`
	Party       []domain.PartyItem `json:"party"`
	Language    string             `json:"language"`
	Filters     *filtersRequest    `json:"filters"`
}

type searchResponse struct {
	Hotels    []domain.Hotel    `json:"hotels"`
	Filters   []facet.Filter    `json:"filters"`
	Locations []domain.Location `json:"locations"`
	Degraded  []string          `json:"degraded,omitempty"`
}

type checkoutRequest struct {
	Reference   string           `json:"reference"`
	Amount      decimal.Decimal  `json:"amount"`
	Prepay      *decimal.Decimal `json:"prepay"`
	Currency    string           `json:"currency"`
	Description string           `json:"description"`
	ReturnURL   string           `json:"returnUrl"`
}

type orderResponse struct {
	OrderCode   string          `json:"orderCode"`
	SourceCode  string          `json:"sourceCode"`
	Reference   string          `json:"reference"`
	Amount      decimal.Decimal `json:"amount"`
	Prepay      decimal.Decimal `json:"prepay"`
	Currency    string          `json:"currency"`
	RedirectURL string          `json:"redirectUrl,omitempty"`
	State       string          `json:"state"`
	CreatedAt   time.Time       `json:"createdAt"`
}

type verifyRequest struct {
	OrderCode     string           `json:"orderCode"`
	TransactionID string           `json:"transactionId"`
	Total         decimal.Decimal  `json:"total"`
	Prepay        *decimal.Decimal `json:"prepay"`
}

type breakerStatus struct {
	State    string `json:"state"`
	Failures int    `json:"failures"`
}

func parseDate(field, s string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, domain.Invalid(field, "expected YYYY-MM-DD, got %q", s)
	}
	return t, nil
}

// acceptLanguage picks the preferred base language of an Accept-Language
// header, or "" when none is usable.
func acceptLanguage(header string) string {
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(tags) == 0 {
		return ""
	}
	return adapter.LanguageCode(tags[0].String())
}

// writeError maps pipeline errors onto HTTP statuses.
func (a *app) writeError(c *gin.Context, err error) {
	var verr *domain.ValidationError
	var uerr *domain.UpstreamError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "field": verr.Field})
	case errors.Is(err, domain.ErrSettlementMismatch), errors.Is(err, settlement.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &uerr):
		status := http.StatusServiceUnavailable
		if errors.Is(uerr, domain.ErrUpstreamProtocol) {
			status = http.StatusBadGateway
		}
		c.JSON(status, gin.H{"error": err.Error(), "upstream": uerr.Upstream})
	default:
		a.logger.ErrorContext(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// requestContext attaches the caller's trace context to the request.
func requestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		tc := requestctx.NewTraceContext()
		if id := c.GetHeader(requestIDHeader); id != "" {
			if _, err := uuid.Parse(id); err == nil {
				tc.TraceID = id
			}
		}
		tc.Origin = c.GetHeader("Origin")
		tc.Referer = c.GetHeader("Referer")
		tc.Language = acceptLanguage(c.GetHeader("Accept-Language"))
		c.Request = c.Request.WithContext(requestctx.With(c.Request.Context(), tc))
		c.Header(requestIDHeader, tc.TraceID)
		c.Next()
	}
}

func accessLog(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.InfoContext(c.Request.Context(), "request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"trace_id", requestctx.TraceID(c.Request.Context()),
		)
	}
}

// contract rejects bodies that do not satisfy the named JSON schema and
// rewinds the body for the handler.
func (a *app) contract(name string) gin.HandlerFunc {
	cm := a.contracts[name]
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
			return
		}
		valid, validationErrs, err := cm.Validate(body)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
			return
		}
		if !valid {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": monitor.FormatErrors(validationErrs), "details": validationErrs})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		c.Next()
	}
}

func (a *app) searchHandler(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}
	checkIn, err := parseDate("checkIn", req.CheckIn)
	if err != nil {
		a.writeError(c, err)
		return
	}
	checkOut, err := parseDate("checkOut", req.CheckOut)
	if err != nil {
		a.writeError(c, err)
		return
	}
	for i := range req.Party {
		if req.Party[i].Rooms == 0 {
			req.Party[i].Rooms = 1
		}
	}
	sr := search.Request{
		Query:       req.Query,
		Destination: req.Destination,
		CheckIn:     checkIn,
		CheckOut:    checkOut,
		Party:       req.Party,
		Language:    req.Language,
	}
	if f := req.Filters; f != nil {
		sr.Selection = facet.Selection{Values: f.Values, MinPrice: f.MinPrice, MaxPrice: f.MaxPrice}
	}

	resp, err := a.search.Search(c.Request.Context(), sr)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, searchResponse{
		Hotels:    resp.Hotels,
		Filters:   resp.Filters,
		Locations: resp.Locations,
		Degraded:  resp.Degraded,
	})
}

func (a *app) createOrderHandler(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}
	co := settlement.Checkout{
		Reference:      req.Reference,
		Amount:         req.Amount,
		Currency:       req.Currency,
		Description:    req.Description,
		ReturnURL:      req.ReturnURL,
		IdempotencyKey: c.GetHeader("Idempotency-Key"),
	}
	if req.Prepay != nil {
		co.Prepay = *req.Prepay
	}
	order, err := a.verifier.CreateOrder(c.Request.Context(), co)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, orderResponse{
		OrderCode:   order.OrderCode,
		SourceCode:  order.SourceCode,
		Reference:   order.Reference,
		Amount:      order.Amount,
		Prepay:      order.Prepay,
		Currency:    order.Currency,
		RedirectURL: order.RedirectURL,
		State:       order.State().String(),
		CreatedAt:   order.CreatedAt,
	})
}

func (a *app) verifyHandler(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}
	decision, err := a.verifier.Verify(c.Request.Context(), settlement.VerifyRequest{
		OrderCode:     req.OrderCode,
		TransactionID: req.TransactionID,
		Total:         req.Total,
		Prepay:        req.Prepay,
	})
	var mismatch *settlement.MismatchError
	switch {
	case errors.As(err, &mismatch):
		c.JSON(http.StatusConflict, mismatch.Decision)
	case err != nil:
		a.writeError(c, err)
	default:
		c.JSON(http.StatusOK, decision)
	}
}

func (a *app) reportHandler(c *gin.Context) {
	report, err := a.recorder.Report()
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (a *app) healthHandler(c *gin.Context) {
	breakers := make(map[string]breakerStatus, len(upstreams))
	for _, name := range upstreams {
		state, failures := a.breaker.GetProviderStatus(name)
		breakers[name] = breakerStatus{State: state.String(), Failures: failures}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "app": a.name, "breakers": breakers})
}

func setupRouter(a *app) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(a.name, otelgin.WithTracerProvider(a.tracer)))
	router.Use(requestContext())
	router.Use(accessLog(a.logger))

	v1 := router.Group("/v1")
	v1.POST("/search", a.contract(monitor.SearchContract), a.searchHandler)
	v1.POST("/checkout/orders", a.contract(monitor.CheckoutOrderContract), a.createOrderHandler)
	v1.POST("/checkout/verify", a.contract(monitor.VerifyContract), a.verifyHandler)
	v1.GET("/reports/settlements", a.reportHandler)

	router.GET("/healthz", a.healthHandler)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{})))
	return router
}

// handler wraps the router with CORS.
func (a *app) handler() http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   a.origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Accept-Language", requestIDHeader, "Idempotency-Key"},
		ExposedHeaders:   []string{requestIDHeader},
		AllowCredentials: false,
	}).Handler(setupRouter(a))
}
