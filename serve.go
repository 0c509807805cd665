package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"ballunia/config"
	"ballunia/handlers"
	"ballunia/logging"
	"ballunia/repository"
	"ballunia/services"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

// app is the wired service graph shared by the commands.
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	airtable *repository.AirtableClient
	bundles  services.BundleService
	carts    services.CartService
	products services.ProductService
	delivery services.DeliveryService
	sqs      services.SquarespaceService
	closers  []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("close failed", zap.Error(err))
		}
	}
	_ = a.log.Sync()
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogDev)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	a := &app{cfg: cfg, log: log}

	kv, err := a.openCartStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.airtable, err = repository.NewAirtableClient(repository.AirtableConfig{
		BaseURL:   cfg.AirtableURL,
		Token:     cfg.AirtablePAT,
		BaseID:    cfg.AirtableBaseID,
		Timeout:   cfg.UpstreamTimeout,
		RateLimit: cfg.AirtableRateLimit,
	}, log)
	if err != nil {
		a.Close()
		return nil, err
	}
	if !cfg.HasAirtable() {
		log.Warn("airtable credentials are not set, catalog endpoints will fail")
	}
	catalog, err := repository.NewCatalogRepository(a.airtable)
	if err != nil {
		a.Close()
		return nil, err
	}
	delivery, err := repository.NewDeliveryRepository(a.airtable, cfg.TerritoriesTable)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.bundles = services.NewBundleService(catalog, log)
	a.carts = services.NewCartService(kv, &a.bundles, cfg.CheckoutBaseURL, log)
	a.products = services.NewProductService(catalog, cfg.DebugTokenHash, log)
	a.delivery = services.NewDeliveryService(delivery, log)
	a.sqs = services.NewSquarespaceService(cfg.SquarespaceURL, cfg.SquarespaceKey, cfg.SquarespaceSiteID, cfg.UpstreamTimeout, log)
	return a, nil
}

func (a *app) openCartStore(ctx context.Context) (repository.KeyValueStore, error) {
	switch a.cfg.CartStorage {
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     a.cfg.RedisAddr,
			Password: a.cfg.RedisPassword,
			DB:       0,
		})
		pingCtx, cncl := context.WithTimeout(ctx, 5*time.Second)
		defer cncl()
		store, err := repository.NewRedisStore(pingCtx, rdb, a.cfg.CartTTL)
		if err != nil {
			rdb.Close()
			return nil, fmt.Errorf("redis is not working: %w", err)
		}
		a.closers = append(a.closers, rdb.Close)
		a.log.Info("redis connected", zap.String("addr", a.cfg.RedisAddr))
		return store, nil
	case "postgres":
		return a.openSQL(ctx, "postgres", a.cfg.DatabaseURL, repository.DialectPostgres)
	case "sqlite":
		if dir := filepath.Dir(a.cfg.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("sqlite dir: %w", err)
			}
		}
		return a.openSQL(ctx, "sqlite3", a.cfg.SQLitePath, repository.DialectSQLite)
	default:
		a.log.Info("using in-memory cart storage")
		return repository.NewMemoryStore(), nil
	}
}

func (a *app) openSQL(ctx context.Context, driver, dsn string, dialect repository.Dialect) (repository.KeyValueStore, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if dialect == repository.DialectSQLite {
		db.SetMaxOpenConns(1)
	}
	store, err := repository.NewSQLStore(ctx, db, dialect)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: %w", driver, err)
	}
	a.closers = append(a.closers, db.Close)
	a.log.Info("db connected", zap.String("driver", driver))
	return store, nil
}

func (a *app) router() http.Handler {
	h := handlers.NewHandler(handlers.HandlerParams{
		BndService:    a.bundles,
		CrtService:    a.carts,
		PrdService:    a.products,
		DlvService:    a.delivery,
		SqsService:    a.sqs,
		Logger:        a.log,
		AirtableReady: a.airtable.Configured(),
	})
	router := mux.NewRouter()
	h.Register(router)
	return handlers.CORS(a.cfg.AllowedOrigins, router)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      a.cfg.UpstreamTimeout + 15*time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.log.Info("shutting down")
	shutdownCtx, cncl := context.WithTimeout(context.Background(), 10*time.Second)
	defer cncl()
	return srv.Shutdown(shutdownCtx)
}
