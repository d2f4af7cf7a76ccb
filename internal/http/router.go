package http

import (
	"context"
	"log/slog"

	"github.com/geocoder89/expensetracker/internal/config"
	"github.com/geocoder89/expensetracker/internal/events"
	"github.com/geocoder89/expensetracker/internal/http/handlers"
	"github.com/geocoder89/expensetracker/internal/http/middlewares"
	"github.com/geocoder89/expensetracker/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Deps are the collaborators the router wires into handlers.
// Limiter, Publisher, Prom, Gatherer and Ping may be nil.
type Deps struct {
	Store     handlers.ExpenseStore
	Identity  handlers.IdentityGateway
	Limiter   middlewares.Limiter
	Publisher events.Publisher
	Prom      *observability.Prom
	Gatherer  prometheus.Gatherer
	Ping      func(ctx context.Context) error
}

func NewRouter(log *slog.Logger, cfg config.Config, deps Deps) *gin.Engine {
	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// middleware
	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(otelgin.Middleware(cfg.ServiceName))
	if deps.Prom != nil {
		r.Use(deps.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.RequestLogger(log))
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(cfg.CORSAllowedOrigins))
	if cfg.MaxBodyBytes > 0 {
		r.Use(middlewares.MaxBodyBytes(cfg.MaxBodyBytes))
	}
	r.Use(middlewares.RequireJSON())

	// probes and tooling
	health := handlers.NewHealthHandler(deps.Ping)
	r.GET("/healthz", health.Healthz)
	r.GET("/readyz", health.Readyz)
	r.GET("/docs", handlers.SwaggerUI)
	r.GET("/docs/openapi.yaml", handlers.OpenAPISpec)

	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api")
	api.GET("/health", health.Health)

	// auth
	authHandler := handlers.NewAuthHandler(deps.Identity, log)

	limiter := deps.Limiter
	if limiter == nil {
		limiter = middlewares.NewMemoryLimiter(cfg.AuthRateLimit, cfg.AuthRateWindow)
	}

	onLimited := func(route string) {
		if deps.Prom != nil {
			deps.Prom.RateLimitedTotal.WithLabelValues(route).Inc()
		}
	}

	authGroup := api.Group("/auth")
	authGroup.Use(middlewares.RateLimit(limiter, middlewares.KeyByIPAndRoute, onLimited, log))
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.POST("/verify-token", authHandler.VerifyToken)

	// expenses, always scoped to the token subject
	authMW := middlewares.NewAuthMiddleware(deps.Identity, log)
	expensesHandler := handlers.NewExpensesHandler(deps.Store, deps.Publisher, log)

	expenses := api.Group("/expenses")
	expenses.Use(authMW.RequireAuth())
	expenses.GET("/:userId", middlewares.RequireOwnerParam("userId"), expensesHandler.ListByOwner)
	expenses.POST("", expensesHandler.Create)
	expenses.PUT("/:expenseId", expensesHandler.Replace)
	expenses.DELETE("/:expenseId", expensesHandler.Delete)

	return r
}
