package router

import (
	"context"
	"net/http"
	"time"

	"github.com/erp/icledger/internal/application/finance"
	"github.com/erp/icledger/internal/infrastructure/logger"
	"github.com/erp/icledger/internal/infrastructure/telemetry"
	"github.com/erp/icledger/internal/interfaces/http/handler"
	"github.com/erp/icledger/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RouteRegistrar defines the interface for registering routes
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// HealthCheck reports whether a dependency is reachable
type HealthCheck func(ctx context.Context) error

// Router manages HTTP route registration
type Router struct {
	engine     *gin.Engine
	apiVersion string
	registrars []RouteRegistrar
	checks     map[string]HealthCheck
}

// RouterOption is a functional option for Router configuration
type RouterOption func(*Router)

// WithAPIVersion sets the API version prefix (e.g., "v1", "v2")
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) {
		r.apiVersion = version
	}
}

// WithHealthCheck adds a named dependency check to /ready
func WithHealthCheck(name string, check HealthCheck) RouterOption {
	return func(r *Router) {
		r.checks[name] = check
	}
}

// NewRouter creates a new Router instance
func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{
		engine:     engine,
		apiVersion: "v1",
		registrars: make([]RouteRegistrar, 0),
		checks:     make(map[string]HealthCheck),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Register adds a RouteRegistrar to be registered later
func (r *Router) Register(registrars ...RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrars...)
	return r
}

// Setup registers the probes and all API routes with the engine
func (r *Router) Setup() {
	r.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.engine.GET("/ready", r.ready)

	api := r.engine.Group("/api/" + r.apiVersion)
	for _, registrar := range r.registrars {
		registrar.RegisterRoutes(api)
	}
}

func (r *Router) ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(r.checks))
	for name, check := range r.checks {
		if err := check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			results[name] = err.Error()
			continue
		}
		results[name] = "ok"
	}
	c.JSON(status, gin.H{"checks": results})
}

// EngineConfig selects the middleware applied to every request
type EngineConfig struct {
	Logger        *zap.Logger
	MeterProvider *telemetry.MeterProvider
	Tracing       middleware.TracingConfig
	Metrics       bool
	Security      middleware.SecurityConfig
	MaxBodyBytes  int64
	Group         middleware.GroupConfig
}

// NewEngine builds a gin engine with the standard middleware chain.
// Order matters: the span must exist before the logger reads its ids, and
// the group must be resolved before metrics and span attributes use it.
func NewEngine(cfg EngineConfig) *gin.Engine {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	middleware.SetupValidator()

	engine := gin.New()
	engine.Use(
		logger.Recovery(cfg.Logger),
		middleware.TracingWithConfig(cfg.Tracing),
		middleware.SpanErrorMarker(),
		logger.GinMiddleware(cfg.Logger),
		middleware.SecureWithConfig(cfg.Security),
		middleware.BodyLimit(cfg.MaxBodyBytes),
		middleware.GroupWithConfig(cfg.Group),
		middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
			MeterProvider: cfg.MeterProvider,
			Enabled:       cfg.Metrics,
		}),
		middleware.TracingAttributeInjector(),
	)
	return engine
}

// FinanceRoutes returns the registrars for every ledger endpoint. queue
// may be nil when no background worker is configured.
func FinanceRoutes(e *finance.Engine, queue handler.TaskQueue) []RouteRegistrar {
	return []RouteRegistrar{
		handler.NewSubsidiaryHandler(e.Tenancy),
		handler.NewAgreementHandler(e.Agreements),
		handler.NewCostPoolHandler(e.CostPools),
		handler.NewInvoiceHandler(e.Invoices),
		handler.NewLedgerHandler(e.Poster, queue),
		handler.NewPaymentHandler(e.Payments, e.Credits),
		handler.NewPeriodLockHandler(e.Locks),
		handler.NewMonthCloseHandler(e.Close, queue),
		handler.NewTaxHandler(e.Tax),
		handler.NewCreditHandler(e.Credit),
	}
}
