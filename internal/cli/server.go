package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vocab-quest-service/internal/app"
	"vocab-quest-service/internal/config"
	"vocab-quest-service/internal/domain"
	"vocab-quest-service/internal/infra/memory"
	"vocab-quest-service/internal/infra/postgres"
	redisstore "vocab-quest-service/internal/infra/redis"
	"vocab-quest-service/internal/infra/sqlite"
	transport "vocab-quest-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quest server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// catalogStore is a catalog backend that can also be seeded.
type catalogStore interface {
	memory.CatalogLoader
	SaveSession(ctx context.Context, q domain.QuestSession) error
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	stores, cleanup, err := buildStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	location, err := cfg.Location()
	if err != nil {
		return fmt.Errorf("streak timezone: %w", err)
	}
	service := app.NewQuestService(stores,
		app.WithLogger(logger.Named("quest")),
		app.WithXPRules(cfg.XPRules()),
		app.WithLocation(location),
	)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	transport.NewAPIHandler(service, logger.Named("api")).Register(mux)
	mux.HandleFunc("/ws", transport.NewWSHandler(service, logger.Named("ws")).ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("starting vocab quest service", zap.String("addr", server.Addr), zap.String("storage", cfg.Storage.Driver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to start server", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutting down server")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// buildStores wires the configured storage driver, with Redis in front of the catalog, attempts
// and optionally the XP ledger.
func buildStores(ctx context.Context, cfg config.Config, logger *zap.Logger) (app.Stores, func(), error) {
	var (
		stores  app.Stores
		loader  catalogStore
		closers []func()
	)
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
			return stores, cleanup, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return stores, cleanup, fmt.Errorf("connect postgres: %w", err)
		}
		closers = append(closers, pool.Close)
		loader = postgres.NewCatalogLoader(pool)
		stores.Words = postgres.NewWordStateStore(pool)
		stores.Ledger = postgres.NewLedger(pool)
		stores.Completions = postgres.NewCompletionStore(pool)
		stores.Activity = postgres.NewActivityRecorder(pool)
	case config.DriverSQLite:
		path := cfg.Storage.SQLitePath
		if path == "" {
			path = filepath.Join("data", "quest.db")
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return stores, cleanup, fmt.Errorf("create data directory: %w", err)
		}
		db, err := sqlite.Open(path)
		if err != nil {
			return stores, cleanup, err
		}
		closers = append(closers, func() { db.Close() })
		loader = sqlite.NewCatalogLoader(db)
		stores.Words = sqlite.NewWordStateStore(db)
		stores.Ledger = sqlite.NewLedger(db)
		stores.Completions = sqlite.NewCompletionStore(db)
		stores.Activity = sqlite.NewActivityRecorder(db)
	default:
		stores.Words = memory.NewWordStateStore()
		stores.Ledger = memory.NewLedger()
		stores.Completions = memory.NewCompletionStore()
		stores.Activity = memory.NewActivityLog()
	}

	var catalogLoader memory.CatalogLoader = memory.NewStaticCatalogLoader(sampleSessions())
	if loader != nil {
		if err := seedCatalog(ctx, loader, logger); err != nil {
			return stores, cleanup, err
		}
		catalogLoader = loader
	}

	catalogTTL := config.TTLDuration(cfg.Catalog.TTL, 10*time.Minute)
	if cfg.Redis.Addr == "" {
		if cfg.Ledger.Backend == "redis" {
			return stores, cleanup, fmt.Errorf("ledger backend redis needs redis.addr")
		}
		stores.Catalog = memory.NewCatalogRepository(catalogLoader, catalogTTL)
		stores.Attempts = memory.NewAttemptStore()
		return stores, cleanup, nil
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	closers = append(closers, func() { redisClient.Close() })
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 30*time.Minute)

	stores.Catalog = redisstore.NewCatalogRepository(redisClient, catalogLoader, catalogTTL)
	stores.Attempts = redisstore.NewAttemptStore(redisClient, redisTTL)
	if cfg.Ledger.Backend == "redis" {
		stores.Ledger = redisstore.NewLedger(redisClient)
	}
	return stores, cleanup, nil
}

// seedCatalog installs the sample sessions into an empty catalog.
func seedCatalog(ctx context.Context, store catalogStore, logger *zap.Logger) error {
	existing, err := store.LoadSessions(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	for _, q := range sampleSessions() {
		if err := store.SaveSession(ctx, q); err != nil {
			return err
		}
	}
	logger.Info("seeded sample catalog", zap.Int("sessions", len(sampleSessions())))
	return nil
}

// sampleSessions is the starter catalog used when the configured store has none.
func sampleSessions() []domain.QuestSession {
	return []domain.QuestSession{
		{
			ID:     "greetings",
			Number: 1,
			Title:  "Greetings",
			Words: []domain.WordRef{
				{ID: "hello", Term: "hello"},
				{ID: "goodbye", Term: "goodbye"},
				{ID: "please", Term: "please"},
				{ID: "thank-you", Term: "thank you"},
				{ID: "sorry", Term: "sorry"},
			},
		},
		{
			ID:     "food",
			Number: 2,
			Title:  "At the market",
			Words: []domain.WordRef{
				{ID: "apple", Term: "apple"},
				{ID: "bread", Term: "bread"},
				{ID: "cheese", Term: "cheese"},
				{ID: "water", Term: "water"},
				{ID: "price", Term: "price"},
			},
		},
		{
			ID:     "travel",
			Number: 3,
			Title:  "Getting around",
			Words: []domain.WordRef{
				{ID: "ticket", Term: "ticket"},
				{ID: "station", Term: "station"},
				{ID: "left", Term: "left"},
				{ID: "right", Term: "right"},
				{ID: "map", Term: "map"},
			},
		},
	}
}
