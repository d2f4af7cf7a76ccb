package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/expensetracker/internal/auth"
	"github.com/geocoder89/expensetracker/internal/config"
	"github.com/geocoder89/expensetracker/internal/db"
	"github.com/geocoder89/expensetracker/internal/events"
	"github.com/geocoder89/expensetracker/internal/gcloud"
	httpx "github.com/geocoder89/expensetracker/internal/http"
	"github.com/geocoder89/expensetracker/internal/http/middlewares"
	"github.com/geocoder89/expensetracker/internal/observability"
	"github.com/geocoder89/expensetracker/internal/redisclient"
	"github.com/geocoder89/expensetracker/internal/repo/firestore"
	"github.com/geocoder89/expensetracker/internal/repo/memory"
	"github.com/geocoder89/expensetracker/internal/repo/metered"
	"github.com/geocoder89/expensetracker/internal/repo/postgres"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/option"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "expensetracker: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load the config set up
	cfg := config.Load()

	// start up the observability logger
	log := observability.NewLogger(cfg.Env)

	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		// tracing is optional; keep serving without it
		log.Warn("tracer_init_failed", "err", err)
		shutdownTracer = func(context.Context) error { return nil }
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewProm(reg)

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	gateway, err := openIdentity(ctx, cfg)
	if err != nil {
		return err
	}
	identity := auth.NewMetered(gateway, prom)

	seedCtx, cancelSeed := config.WithTimeout(ctx, 10*time.Second)
	if err := auth.EnsureUser(seedCtx, identity, cfg.SeedUserEmail, cfg.SeedUserPassword); err != nil {
		log.Warn("seed_user_failed", "email", cfg.SeedUserEmail, "err", err)
	}
	cancelSeed()

	limiter, closeLimiter := openLimiter(ctx, cfg, log)
	defer closeLimiter()

	publisher := openPublisher(cfg, log)
	defer publisher.Close()

	router := httpx.NewRouter(log, cfg, httpx.Deps{
		Store:     metered.NewExpensesRepo(store, prom),
		Identity:  identity,
		Limiter:   limiter,
		Publisher: publisher,
		Prom:      prom,
		Gatherer:  reg,
		Ping:      store.Ping,
	})

	// server set up
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env, "identity", cfg.IdentityBackend, "store", cfg.ExpenseStore)

		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		log.Info("server shutting down")

		shutdownCtx, cancel := config.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "err", err)
			return err
		}

		if err := shutdownTracer(shutdownCtx); err != nil {
			log.Warn("tracer_shutdown_failed", "err", err)
		}

		log.Info("shutdown complete")
		return nil
	})

	return g.Wait()
}

func openStore(ctx context.Context, cfg config.Config, log *slog.Logger) (metered.ExpenseStore, func(), error) {
	switch cfg.ExpenseStore {
	case config.StoreFirestore:
		opts := []option.ClientOption{option.WithScopes(firestore.Scope)}
		if cfg.GoogleCredentials != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.GoogleCredentials))
		}

		api, err := gcloud.New(ctx, firestore.DefaultEndpoint, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("firestore client: %w", err)
		}

		return firestore.NewExpensesRepo(api, firestore.Config{
			ProjectID:  cfg.FirebaseProjectID,
			Database:   cfg.FirestoreDatabase,
			Collection: cfg.FirestoreCollection,
		}), func() {}, nil

	case config.StorePostgres:
		if err := db.Migrate(cfg.DBURL); err != nil {
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}

		pool, err := db.NewPool(ctx, cfg.DBURL)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres: %w", err)
		}

		return postgres.NewExpensesRepo(pool), pool.Close, nil

	default:
		log.Warn("using in-memory expense store; data is lost on restart")
		return memory.NewExpensesRepo(), func() {}, nil
	}
}

func openIdentity(ctx context.Context, cfg config.Config) (auth.Gateway, error) {
	if cfg.IdentityBackend == config.IdentityLocal {
		return auth.NewLocalGateway(memory.NewUsersRepo(), auth.NewManager(cfg.JWTSecret, cfg.JWTAccessTTL())), nil
	}

	opts := []option.ClientOption{option.WithScopes(auth.IdentityScope)}
	if cfg.GoogleCredentials != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.GoogleCredentials))
	}

	admin, err := gcloud.New(ctx, auth.IdentityToolkitEndpoint, opts...)
	if err != nil {
		return nil, fmt.Errorf("identity toolkit client: %w", err)
	}

	// sign-in goes through the public, API-key authenticated surface
	public := gcloud.NewWithHTTPClient(&http.Client{Timeout: 10 * time.Second}, auth.IdentityToolkitEndpoint)

	verifier := auth.NewIDTokenVerifier(cfg.FirebaseProjectID, auth.NewKeySource(auth.GoogleCertsURL, nil))

	return auth.NewFirebaseGateway(admin, public, verifier, auth.FirebaseConfig{
		ProjectID:    cfg.FirebaseProjectID,
		APIKey:       cfg.FirebaseWebAPIKey,
		CheckRevoked: cfg.FirebaseCheckRevoked,
	}), nil
}

func openLimiter(ctx context.Context, cfg config.Config, log *slog.Logger) (middlewares.Limiter, func()) {
	if cfg.RedisAddr == "" {
		return middlewares.NewMemoryLimiter(cfg.AuthRateLimit, cfg.AuthRateWindow), func() {}
	}

	rc := redisclient.New(redisclient.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})

	pingCtx, cancel := config.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := rc.Ping(pingCtx); err != nil {
		// the limiter fails open per request, so a late Redis is tolerated
		log.Warn("redis_unreachable", "addr", cfg.RedisAddr, "err", err)
	}

	return rc.NewLimiter(cfg.AuthRateLimit, cfg.AuthRateWindow), func() { _ = rc.Close() }
}

func openPublisher(cfg config.Config, log *slog.Logger) events.Publisher {
	if cfg.AMQPURL == "" {
		return events.Nop{}
	}

	pub, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	if err != nil {
		log.Warn("event_publisher_unavailable", "err", err)
		return events.Nop{}
	}

	return events.NewBreaker(pub, events.BreakerConfig{})
}
