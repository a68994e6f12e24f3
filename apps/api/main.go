package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	oapimiddleware "github.com/oapi-codegen/nethttp-middleware"
	"go.uber.org/zap"

	"github.com/zenGate-Global/retailops/contracts"
	lifecyclehandler "github.com/zenGate-Global/retailops/domains/module-lifecycle/be/handler"
	"github.com/zenGate-Global/retailops/domains/module-lifecycle/be/notify"
	lifecyclerepo "github.com/zenGate-Global/retailops/domains/module-lifecycle/be/repo"
	"github.com/zenGate-Global/retailops/domains/module-lifecycle/be/service"
	"github.com/zenGate-Global/retailops/platform/go/events"
	platformlogging "github.com/zenGate-Global/retailops/platform/go/logging"
	"github.com/zenGate-Global/retailops/platform/go/metrics"
	platformmiddleware "github.com/zenGate-Global/retailops/platform/go/middleware"
	"github.com/zenGate-Global/retailops/platform/go/persistence"
)

type config struct {
	Port                string        `env:"PORT" envDefault:"3000"`
	ShutdownTimeout     time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	RequestTimeout      time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`
	LogLevel            string        `env:"LOG_LEVEL" envDefault:"info"`
	DatabaseURL         string        `env:"DATABASE_URL,required"`
	DBMaxConns          int32         `env:"DB_MAX_CONNS" envDefault:"10"`
	DBConnectTimeout    time.Duration `env:"DB_CONNECT_TIMEOUT" envDefault:"5s"`
	LifecycleSchema     string        `env:"LIFECYCLE_SCHEMA" envDefault:"module_lifecycle"`
	BootstrapSchema     bool          `env:"BOOTSTRAP_SCHEMA" envDefault:"false"`
	AuthProvider        string        `env:"AUTH_PROVIDER" envDefault:"firebase"` // firebase | dev
	FirebaseCredentials string        `env:"FIREBASE_CREDENTIALS_FILE"`
	RedisURL            string        `env:"REDIS_URL"` // empty disables event publishing
	EventsPrefix        string        `env:"EVENTS_CHANNEL_PREFIX" envDefault:"module-lifecycle"`
	MaxAutomaticRetries int           `env:"MAX_AUTOMATIC_RETRIES" envDefault:"3"`
	MetricsEnabled      bool          `env:"METRICS_ENABLED" envDefault:"true"`
	CORSOrigins         []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
}

func main() {
	ctx := context.Background()

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := platformlogging.NewLogger(platformlogging.Config{
		Component: "api-server",
		Level:     cfg.LogLevel,
	})
	if err != nil {
		log.Fatalf("init zap logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	pool, err := persistence.NewPool(ctx, persistence.PoolConfig{
		ConnString:      cfg.DatabaseURL,
		ApplicationName: "retailops-api",
		MaxConns:        cfg.DBMaxConns,
		ConnectTimeout:  cfg.DBConnectTimeout,
	})
	if err != nil {
		logger.Fatal("init postgres pool", zap.Error(err))
	}
	defer persistence.ClosePool(pool)

	if cfg.BootstrapSchema {
		if err := persistence.BootstrapLifecycleSchema(ctx, pool, cfg.LifecycleSchema); err != nil {
			logger.Fatal("bootstrap lifecycle schema", zap.Error(err))
		}
		logger.Info("lifecycle schema ready", zap.String("schema", cfg.LifecycleSchema))
	}

	lifecycleDB := persistence.NewLifecycleDB(persistence.LifecycleDBConfig{Pool: pool, Schema: cfg.LifecycleSchema})
	repo, err := lifecyclerepo.NewPostgresRepository(lifecycleDB)
	if err != nil {
		logger.Fatal("init lifecycle repository", zap.Error(err))
	}

	auth := buildAuth(ctx, cfg, logger)

	var (
		provisioner service.Provisioner = notify.Discard{Logger: logger}
		notifier    service.Notifier    = notify.Discard{Logger: logger}
	)
	if cfg.RedisURL != "" {
		client, err := events.Connect(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal("connect event bus", zap.Error(err))
		}
		defer client.Close()

		bus, err := events.NewPublisher(client, cfg.EventsPrefix)
		if err != nil {
			logger.Fatal("init event publisher", zap.Error(err))
		}
		pub, err := notify.NewPublisher(bus, logger)
		if err != nil {
			logger.Fatal("init lifecycle publisher", zap.Error(err))
		}
		provisioner, notifier = pub, pub
	} else {
		logger.Warn("REDIS_URL not set; lifecycle events are discarded")
	}

	policies := service.NewPolicyResolver(repo)
	audit := service.NewAuditTrail(repo)
	lifecycle := service.NewLifecycleService(repo, policies, audit, service.Options{
		Provisioner:         provisioner,
		Logger:              logger,
		MaxAutomaticRetries: cfg.MaxAutomaticRetries,
	})
	approvals := service.NewApprovalWorkflow(repo, lifecycle, policies, service.ApprovalOptions{
		Notifier:  notifier,
		Directory: auth.directory,
		Logger:    logger,
	})
	lifecycleHTTPHandler := lifecyclehandler.New(lifecyclehandler.Deps{
		Lifecycle: lifecycle,
		Approvals: approvals,
		History:   audit,
		Stats:     service.NewStatsAggregator(repo),
	}, logger)

	rootRouter := chi.NewRouter()

	rootRouter.Use(
		chimw.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		chimw.Timeout(cfg.RequestTimeout),
		platformmiddleware.CORS(cfg.CORSOrigins...),
	)

	rootRouter.Use(platformlogging.RequestLogger(logger))

	rootRouter.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	rootRouter.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		pingCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(pingCtx); err != nil {
			logger.Warn("readiness check failed", zap.Error(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	if cfg.MetricsEnabled {
		rootRouter.Handle("/metrics", metrics.Handler())
	}

	spec := mustLoadSpec(logger)

	// ---- Swagger UI + OpenAPI JSON (public) ----
	registerDocsRoutes(rootRouter, spec, logger)

	apiRouter := chi.NewRouter()
	apiRouter.Use(auth.middleware)
	apiRouter.Use(platformmiddleware.RequestTrace)
	apiRouter.Group(func(r chi.Router) {
		r.Use(newSpecValidator(spec))
		lifecycleHTTPHandler.Routes(r)
	})

	rootRouter.Mount("/api/v1", apiRouter)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      rootRouter,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	go func() {
		logger.Info("starting api server", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server listen failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// newSpecValidator enforces the contract on every /api/v1 request, including
// the role scopes declared on bearerAuth.
func newSpecValidator(spec *openapi3.T) func(http.Handler) http.Handler {
	return oapimiddleware.OapiRequestValidatorWithOptions(spec, &oapimiddleware.Options{
		Options: openapi3filter.Options{
			AuthenticationFunc: platformmiddleware.ValidateAuthenticationViaSwagger,
		},
	})
}

func mustLoadSpec(logger *zap.Logger) *openapi3.T {
	spec, err := contracts.ModuleLifecycle()
	if err != nil {
		logger.Fatal("load openapi contract", zap.Error(err))
	}
	logSecuritySchemes(logger, spec)
	return spec
}

func logSecuritySchemes(logger *zap.Logger, spec *openapi3.T) {
	names := make([]string, 0, len(spec.Components.SecuritySchemes))
	for name := range spec.Components.SecuritySchemes {
		names = append(names, name)
	}
	logger.Info("loaded security schemes", zap.String("contract", spec.Info.Title), zap.Strings("names", names))
}
