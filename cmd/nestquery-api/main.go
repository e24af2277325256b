package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/nestquery/nestquery/internal/agent"
	"github.com/nestquery/nestquery/internal/api"
	"github.com/nestquery/nestquery/internal/auth"
	"github.com/nestquery/nestquery/internal/config"
	"github.com/nestquery/nestquery/internal/listings"
	listingspostgres "github.com/nestquery/nestquery/internal/listings/postgres"
	"github.com/nestquery/nestquery/internal/llm"
	"github.com/nestquery/nestquery/internal/observability"
	"github.com/nestquery/nestquery/internal/preferences"
	"github.com/nestquery/nestquery/internal/query"
	duckdbexec "github.com/nestquery/nestquery/internal/query/duckdb"
	postgresexec "github.com/nestquery/nestquery/internal/query/postgres"
	s3store "github.com/nestquery/nestquery/internal/storage/s3"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv("nestquery-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, cleanup, err := buildDependencies(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize dependencies", slog.Any("error", err))
		os.Exit(1)
	}
	defer cleanup()

	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      api.NewHandler(cfg, deps),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		logger.Info("starting api server",
			slog.String("addr", cfg.HTTP.Address),
			slog.String("backend", cfg.Database.Backend),
			slog.String("provider", cfg.AI.Provider),
			slog.String("model", cfg.AI.Model),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		cleanup()
		os.Exit(1)
	}
}

// buildDependencies wires the configured query backend, completion provider,
// session store and optional snapshot publishing.
func buildDependencies(ctx context.Context, cfg config.Config, logger *slog.Logger) (api.Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
		closers = nil
	}
	fail := func(err error) (api.Dependencies, func(), error) {
		cleanup()
		return api.Dependencies{}, func() {}, err
	}

	var (
		db    *sql.DB
		repo  *listingspostgres.Repository
		store *s3store.Store
		err   error
	)
	if cfg.Database.DSN != "" {
		db, err = listingspostgres.Open(ctx, listingspostgres.DBConfigFrom(cfg.Database))
		if err != nil {
			return fail(fmt.Errorf("open listings db: %w", err))
		}
		closers = append(closers, func() { _ = db.Close() })
		repo = listingspostgres.NewRepository(db)
	}
	if cfg.ObjectStore.Endpoint != "" {
		store, err = s3store.New(ctx, s3store.ConfigFrom(cfg.ObjectStore))
		if err != nil {
			return fail(fmt.Errorf("initialize object store: %w", err))
		}
	}

	var executor query.Executor
	readiness := []api.ReadinessCheck{api.Named("completion", api.CheckCompletionConfig(cfg))}
	switch cfg.Database.Backend {
	case config.BackendPostgres:
		if db == nil {
			return fail(errors.New("postgres backend requires NESTQUERY_DB_DSN or DATABASE_URL"))
		}
		executor = postgresexec.NewExecutor(db, cfg.Database.QueryTimeout)
	case config.BackendDuckDB:
		if store == nil {
			return fail(errors.New("duckdb backend requires NESTQUERY_OBJECTSTORE_ENDPOINT"))
		}
		executor = duckdbexec.NewExecutor(store, cfg.ObjectStore.SnapshotKey, cfg.Database.QueryTimeout)
	default:
		return fail(fmt.Errorf("unsupported database backend %q", cfg.Database.Backend))
	}
	if repo != nil {
		readiness = append(readiness, api.Named("database", repo.HealthCheck))
	}
	if store != nil {
		readiness = append(readiness, api.Named("object_store", store.HealthCheck))
	}

	completer, err := llm.New(cfg.AI)
	if err != nil {
		return fail(fmt.Errorf("initialize completion provider: %w", err))
	}
	searchAgent, err := agent.New(agent.Options{
		Completer:      completer,
		Executor:       executor,
		Logger:         logger,
		Schema:         listings.SchemaDescription(),
		TopN:           cfg.Agent.TopN,
		MaxQueryLength: cfg.Agent.MaxQueryLength,
	})
	if err != nil {
		return fail(fmt.Errorf("initialize agent: %w", err))
	}

	sessions := preferences.NewSessionStore(cfg.Sessions.TTL, uint64(cfg.Sessions.Capacity))
	go sessions.Start()
	closers = append(closers, sessions.Stop)

	deps := api.Dependencies{
		Logger:            logger,
		Agent:             searchAgent,
		Sessions:          sessions,
		Readiness:         api.CombineReadinessChecks(readiness...),
		DependencyTimeout: 2 * time.Second,
	}
	if repo != nil {
		deps.Listings = repo
		if store != nil {
			deps.Publisher = listings.NewPublisher(repo, store, cfg.ObjectStore.SnapshotKey)
		}
	}
	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			return fail(fmt.Errorf("parse static auth keys: %w", err))
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
		logger.Info("api key auth enabled", slog.Int("keys", validator.Len()))
	}
	return deps, cleanup, nil
}
