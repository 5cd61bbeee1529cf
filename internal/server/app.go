// Package server initializes and runs the FlockSync backend: Postgres and
// Redis connections, schema migrations, the realtime change hub and the
// HTTP API, with graceful shutdown on OS signals.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/dmitrijs2005/flocksync/internal/logging"
	"github.com/dmitrijs2005/flocksync/internal/server/config"
	"github.com/dmitrijs2005/flocksync/internal/server/database"
	"github.com/dmitrijs2005/flocksync/internal/server/httpapi"
	"github.com/dmitrijs2005/flocksync/internal/server/hub"
	"github.com/dmitrijs2005/flocksync/internal/server/media"
	"github.com/dmitrijs2005/flocksync/internal/server/repositories"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config *config.Config
	logger logging.Logger

	pool  *pgxpool.Pool
	redis *redis.Client
	hub   *hub.Hub
	api   *httpapi.Server
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	level := logging.ParseLevel(cfg.LogLevel)
	var logger logging.Logger
	if cfg.LogFile != "" {
		logger = logging.NewRotating(cfg.LogFile, level)
	} else {
		logger = logging.NewJSON(os.Stdout, level)
	}

	if err := database.RunMigrations(ctx, cfg.DatabaseURL); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	redisClient, err := database.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("redis init error: %w", err)
	}

	records := repositories.NewPostgresRecordRepository(pool)
	changeHub := hub.New(records, []byte(cfg.JWTSecret), logger)

	api := httpapi.NewServer(httpapi.Deps{
		Users:       repositories.NewPostgresUserRepository(pool),
		Records:     records,
		Engagements: repositories.NewPostgresEngagementRepository(pool),
		Presigner:   media.NewPresigner(cfg),
		Publisher:   hub.NewRedisPublisher(redisClient),
		Changes:     changeHub,
		Log:         logger,
		JWTSecret:   []byte(cfg.JWTSecret),
		JWTExpiry:   cfg.JWTExpiry,
	})

	return &App{
		config: cfg,
		logger: logger,
		pool:   pool,
		redis:  redisClient,
		hub:    changeHub,
		api:    api,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves until ctx is cancelled or a SIGINT/SIGTERM/SIGQUIT arrives,
// then shuts the HTTP server down gracefully and closes the stores.
func (app *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	app.initSignalHandler(cancel)

	server := &http.Server{
		Addr:    ":" + app.config.ServerPort,
		Handler: app.api.Router(),
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		err := app.hub.Run(ctx, app.redis)
		if err != nil && !errors.Is(err, context.Canceled) {
			app.logger.Error(ctx, "change hub stopped", "error", err)
			cancel()
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(shutdownCtx, "server shutdown error", "error", err)
		}
	}()

	app.logger.Info(ctx, "starting http server", "port", app.config.ServerPort)

	err := server.ListenAndServe()
	cancel()
	wg.Wait()
	app.close()

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	app.logger.Info(context.Background(), "server stopped")
	return nil
}

func (app *App) close() {
	app.pool.Close()
	if err := app.redis.Close(); err != nil {
		app.logger.Warn(context.Background(), "redis close error", "error", err)
	}
}
