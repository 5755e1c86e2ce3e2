package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/nightpass/internal/api/http"
	"github.com/spec-kit/nightpass/internal/api/http/handlers"
	"github.com/spec-kit/nightpass/internal/auth"
	"github.com/spec-kit/nightpass/internal/config"
	"github.com/spec-kit/nightpass/internal/events"
	"github.com/spec-kit/nightpass/internal/lock"
	"github.com/spec-kit/nightpass/internal/observability"
	"github.com/spec-kit/nightpass/internal/persistence"
	"github.com/spec-kit/nightpass/internal/repository"
	"github.com/spec-kit/nightpass/internal/service"
	"github.com/spec-kit/nightpass/internal/tokens"
	"github.com/spec-kit/nightpass/internal/worker"
)

type stores struct {
	accounts repository.AccountRepository
	pools    repository.PoolRepository
	ledger   repository.LedgerRepository
	pinger   handlers.Pinger
	close    func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}
	defer store.close()

	deps := map[string]handlers.Pinger{cfg.Store.Driver: store.pinger}

	var locker lock.Locker = lock.NewLocalLocker()
	if cfg.Lock.UseRedis {
		redis := persistence.NewRedis(ctx, cfg.Redis, logger)
		defer redis.Close()
		locker = lock.NewRedisLocker(redis.Client, cfg.Lock.TTL(), logger)
		deps["redis"] = redis
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	loc, err := cfg.Tokens.Location()
	if err != nil {
		logger.Fatal("invalid timezone", zap.Error(err))
	}
	schedule := tokens.NewSchedule(loc, cfg.Tokens.ResetHour)
	engine := tokens.NewEngine(schedule, tokens.NewIssuer(schedule, tokens.IssuerConfig{
		DailyCount:  cfg.Tokens.DailyCount,
		WeeklyCount: cfg.Tokens.WeeklyCount,
	}))

	dispatcher := events.NewInMemoryDispatcher()
	ledgerService := service.NewLedgerService(dispatcher, store.ledger, logger)
	worker.StartLedgerWorker(ledgerService)

	authService := service.NewAuthService(cfg.Auth, store.accounts, logger)
	tokenService := service.NewTokenService(service.TokenDependencies{
		Engine:      engine,
		AccountRepo: store.accounts,
		PoolRepo:    store.pools,
		Locker:      locker,
		Clock:       clockwork.NewRealClock(),
		Dispatcher:  dispatcher,
		Metrics:     metrics,
		Logger:      logger,
	})
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), store.accounts)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name, DisableStartupMessage: true})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, deps),
		Accounts:       handlers.NewAccountsHandler(authService),
		Subscription:   handlers.NewSubscriptionHandler(tokenService),
		Tokens:         handlers.NewTokensHandler(tokenService, ledgerService),
		AuthMiddleware: authMiddleware,
		Gatherer:       registry,
		AllowDevReset:  cfg.App.AllowDevReset,
	})

	logger.Info("starting server",
		zap.String("addr", cfg.App.Addr()),
		zap.String("store", cfg.Store.Driver),
		zap.String("timezone", loc.String()),
		zap.Int("reset_hour", cfg.Tokens.ResetHour),
		zap.Bool("redis_locks", cfg.Lock.UseRedis))

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*stores, error) {
	if cfg.Store.Driver == config.StoreDriverPostgres {
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, err
		}
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
				pg.Close()
				return nil, err
			}
		}
		pool := pg.PoolHandle()
		return &stores{
			accounts: repository.NewAccountRepository(pool),
			pools:    repository.NewPoolRepository(pool),
			ledger:   repository.NewLedgerRepository(pool),
			pinger:   pg,
			close:    pg.Close,
		}, nil
	}

	db, err := persistence.NewSQLite(ctx, cfg.Store.SQLitePath, logger)
	if err != nil {
		return nil, err
	}
	return &stores{
		accounts: repository.NewSQLiteAccountRepository(db.DB),
		pools:    repository.NewSQLitePoolRepository(db.DB),
		ledger:   repository.NewSQLiteLedgerRepository(db.DB),
		pinger:   db,
		close:    db.Close,
	}, nil
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
