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

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/event-checkin/internal/clock"
	"github.com/iliyamo/event-checkin/internal/config"
	"github.com/iliyamo/event-checkin/internal/database"
	"github.com/iliyamo/event-checkin/internal/handler"
	"github.com/iliyamo/event-checkin/internal/idgen"
	"github.com/iliyamo/event-checkin/internal/logger"
	"github.com/iliyamo/event-checkin/internal/repository"
	"github.com/iliyamo/event-checkin/internal/router"
	"github.com/iliyamo/event-checkin/internal/scan"
	"github.com/iliyamo/event-checkin/internal/service"
	"github.com/iliyamo/event-checkin/internal/syncbridge"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	lg, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, lg); err != nil {
		lg.Fatal("server stopped", zap.Error(err))
	}
	lg.Info("server stopped")
}

func run(ctx context.Context, cfg config.Config, lg *zap.Logger) error {
	clk := clock.NewSystem()
	cache := syncbridge.NewCache()
	deps := service.Deps{
		Cache:   cache,
		IDs:     idgen.New(),
		Clock:   clk,
		EventID: cfg.EventID,
		Log:     lg,
	}
	cacheCfg := config.LoadCacheConfig()
	opts := router.Options{
		RateLimit: config.LoadRateLimitConfig(),
		Cache:     cacheCfg,
		Log:       lg,
	}

	var bridge *syncbridge.Bridge
	if cfg.Remote() {
		db, err := database.Open(ctx, cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := database.Migrate(ctx, db); err != nil {
			return err
		}
		tickets := repository.NewTicketRepo(db)
		staff := repository.NewStaffRepo(db)
		if err := seedOrganizer(ctx, staff, cfg, lg); err != nil {
			return err
		}

		rdb := config.NewRedisClient(ctx)
		if rdb == nil {
			lg.Warn("redis unreachable: scan gate is per process, rate limit and qr cache disabled")
			deps.Gate = scan.NewDeviceGate(cfg.ScanCooldown, clk)
		} else {
			defer rdb.Close()
			deps.Gate = scan.NewRedisGate(rdb, cfg.ScanCooldown, "")
		}

		feed := syncbridge.NewAMQPFeed(cfg.RabbitURL, syncbridge.DefaultExchange, cfg.Instance, clk, lg)
		defer feed.Close()
		bridge = syncbridge.NewBridge(syncbridge.BridgeConfig{URL: cfg.RabbitURL}, cache, tickets, clk, lg)

		deps.Tickets = tickets
		deps.Settings = repository.NewSettingsRepo(db)
		deps.Feed = feed
		deps.Sync = bridge

		opts.Auth = handler.NewAuthHandler(handler.AuthConfig{
			JWTSecret:  cfg.JWTSecret,
			AccessTTL:  cfg.AccessTTL(),
			RefreshTTL: cfg.RefreshTTL(),
			BcryptCost: cfg.BcryptCost,
		}, staff, repository.NewTokenRepo(db), clk, lg)
		opts.JWTSecret = cfg.JWTSecret
		opts.Redis = rdb
	} else {
		store, err := repository.OpenLocalStore(cfg.DataDir)
		if err != nil {
			return err
		}
		list, err := store.ListAll(ctx)
		if err != nil {
			return err
		}
		cache.Replace(list)
		deps.Tickets = store
		deps.Settings = store
		deps.Feed = syncbridge.NewLocalFeed(cache, cfg.Instance, clk)
		deps.Gate = scan.NewDeviceGate(cfg.ScanCooldown, clk)
	}

	app := service.NewApp(deps)
	opts.Tickets = handler.NewTicketHandler(app, lg, cacheCfg.QRSize)
	opts.Door = handler.NewDoorHandler(app, lg)
	e := router.New(opts)

	g, ctx := errgroup.WithContext(ctx)
	if bridge != nil {
		g.Go(func() error {
			if err := bridge.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		addr := ":" + cfg.Port
		lg.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env), zap.String("backend", cfg.Backend))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return e.Shutdown(sctx)
	})
	return g.Wait()
}

// seedOrganizer creates the first organizer account from the environment.
func seedOrganizer(ctx context.Context, staff *repository.StaffRepo, cfg config.Config, lg *zap.Logger) error {
	if cfg.SeedEmail == "" || cfg.SeedPassword == "" {
		return nil
	}
	_, err := staff.Create(ctx, cfg.SeedEmail, cfg.SeedPassword, repository.RoleOrganizer, cfg.BcryptCost)
	switch {
	case err == nil:
		lg.Info("organizer account created", zap.String("email", cfg.SeedEmail))
	case errors.Is(err, repository.ErrEmailExists):
	default:
		return err
	}
	return nil
}
