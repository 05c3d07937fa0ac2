package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/amanas96/slot-swapper/internal/cache"
	"github.com/amanas96/slot-swapper/internal/config"
	"github.com/amanas96/slot-swapper/internal/controller"
	"github.com/amanas96/slot-swapper/internal/controller/handlers"
	"github.com/amanas96/slot-swapper/internal/identity"
	"github.com/amanas96/slot-swapper/internal/notify"
	"github.com/amanas96/slot-swapper/internal/repository"
	"github.com/amanas96/slot-swapper/internal/repository/memory"
	"github.com/amanas96/slot-swapper/internal/service"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// App собранное приложение: хранилище, сервисы, HTTP и фоновые задачи
type App struct {
	cfg       *config.Config
	logger    *zap.Logger
	pool      *pgxpool.Pool
	rdb       *redis.Client
	store     repository.Store
	scheduler *Scheduler
	server    *http.Server
}

// New поднимает зависимости по конфигу. Для postgres перед стартом применяются миграции.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger}

	store, err := a.openStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.store = store

	a.rdb, err = cache.Connect(ctx, cfg.RedisAddr, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	engineOpts := []service.EngineOption{service.WithCommitCheckTimeout(cfg.CommitCheckTimeout)}
	var (
		invalidator service.CacheInvalidator
		tradeable   service.TradeableCache
	)
	if a.rdb != nil {
		c := cache.NewTradeableCache(a.rdb, cfg.CacheTTL, logger)
		invalidator, tradeable = c, c
		engineOpts = append(engineOpts, service.WithInvalidator(c))
	}

	notifier, err := a.buildNotifier()
	if err != nil {
		a.Close()
		return nil, err
	}

	h := handlers.NewHandlers(
		service.NewSwapEngine(store, logger, engineOpts...),
		service.NewSlotService(store, invalidator, logger),
		service.NewQueryService(store, tradeable, logger),
		service.NewRetrier(cfg.ConflictMaxRetries, 0, logger),
		logger,
	)
	httpController := controller.NewHTTPController(h, identity.NewVerifier(cfg.JWTSecret), cfg.CORSAllowedOrigins, logger)

	a.scheduler = NewScheduler(store, notifier, RelayConfig{
		PollInterval: cfg.OutboxPollInterval,
		BatchSize:    cfg.OutboxBatchSize,
		MaxAttempts:  cfg.OutboxMaxAttempts,
	}, logger)

	a.server = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpController.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return a, nil
}

func (a *App) openStore(ctx context.Context) (repository.Store, error) {
	if a.cfg.StoreDriver == config.StoreDriverMemory {
		a.logger.Warn("Using in-memory store, data is lost on restart")
		return memory.NewStore(), nil
	}

	pool, err := OpenPool(ctx, a.cfg.DBDSN, a.cfg.DBMaxConns)
	if err != nil {
		return nil, err
	}
	a.pool = pool

	migrator, err := NewMigrator(pool, a.logger)
	if err != nil {
		return nil, err
	}
	defer migrator.Close()

	if err := migrator.Up(ctx); err != nil {
		return nil, err
	}

	a.logger.Info("Connected to PostgreSQL", zap.Int("max_conns", a.cfg.DBMaxConns))
	return repository.NewPostgresStore(pool), nil
}

func (a *App) buildNotifier() (notify.Notifier, error) {
	notifiers := notify.Fanout{notify.NewLogNotifier(a.logger)}

	if !a.cfg.TelegramEnabled() {
		a.logger.Info("Telegram notifications disabled")
		return notifiers, nil
	}

	b, err := notify.NewTelegramBot(a.cfg.TelegramToken)
	if err != nil {
		return nil, err
	}
	notifiers = append(notifiers, notify.NewTelegramNotifier(b, a.cfg.TelegramChatID, a.logger))
	a.logger.Info("Telegram notifications enabled", zap.Int64("chat_id", a.cfg.TelegramChatID))
	return notifiers, nil
}

// Run обслуживает HTTP и outbox до отмены ctx, затем плавно останавливается
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	a.scheduler.Start(ctx)

	g.Go(func() error {
		a.logger.Info("HTTP server listening", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		a.scheduler.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		a.logger.Info("HTTP server stopped")
		return nil
	})

	return g.Wait()
}

// Close освобождает соединения
func (a *App) Close() {
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.logger.Warn("Failed to close redis client", zap.Error(err))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

// OpenPool создаёт пул pgx и проверяет соединение
func OpenPool(ctx context.Context, dsn string, maxConns int) (*pgxpool.Pool, error) {
	if dsn == "" {
		return nil, fmt.Errorf("db: empty connection string")
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("db: parse config: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("db: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db: ping: %w", err)
	}
	return pool, nil
}
