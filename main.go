package main

import (
	"context"
	"errors"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kevinaaaquil/unilib/config"
	"github.com/kevinaaaquil/unilib/events"
	"github.com/kevinaaaquil/unilib/handlers"
	"github.com/kevinaaaquil/unilib/models"
	"github.com/kevinaaaquil/unilib/service"
	"github.com/kevinaaaquil/unilib/store"
	"github.com/kevinaaaquil/unilib/utils"
	"github.com/kevinaaaquil/unilib/workers"
	"golang.org/x/sync/errgroup"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config: ", err)
	}
	utils.InitLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("exit", "err", err)
		log.Fatal(err)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	db, err := store.NewMongoDB(ctx, cfg.MongoURI, cfg.DBName)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Disconnect(context.Background()); err != nil {
			slog.Warn("mongodb disconnect", "err", err)
		}
	}()
	if err := db.EnsureIndexes(ctx); err != nil {
		return err
	}

	bus, err := newBus(ctx, cfg)
	if err != nil {
		return err
	}
	if c, ok := bus.(io.Closer); ok {
		defer c.Close()
	}

	policy := service.NewPolicyProvider(db, models.FinePolicy{
		Currency:        cfg.Policy.Currency,
		LateFeePerDay:   cfg.Policy.LateFeePerDay,
		DamageFeeRate:   cfg.Policy.DamageFeeRate,
		LostBookFeeRate: cfg.Policy.LostBookFeeRate,
	})
	if _, err := policy.Init(ctx); err != nil {
		return err
	}
	accounts := service.NewAccountService(db)
	if err := accounts.SeedAdmin(ctx, cfg.AuthEmail, cfg.AuthPass); err != nil {
		return err
	}

	var metadata *service.MetadataClient
	if cfg.MetadataLookup {
		metadata = service.NewMetadataClient()
	}
	returns := service.NewReturnService(db, bus, policy)
	extensions := service.NewExtensionService(db, bus)
	loans := service.NewLoanService(db, bus, returns, extensions)
	loans.SetDueSoonWindow(cfg.DueSoon)
	dispatcher := service.NewNotificationDispatcher(db)

	server := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: handlers.NewRouter(handlers.Deps{
			JWTSecret:     cfg.JWTSecret,
			TokenTTL:      cfg.TokenTTL,
			CORSOrigins:   cfg.CORSOrigins,
			Accounts:      accounts,
			Catalog:       service.NewCatalogService(db, metadata),
			Loans:         loans,
			Returns:       returns,
			Extensions:    extensions,
			Fines:         service.NewFineService(db, bus),
			Policy:        policy,
			Notifications: dispatcher,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	scheduler := workers.NewScheduler(time.Local,
		workers.Job{Name: "overdue_sweep", At: cfg.OverdueClock, Run: loans.SweepOverdue},
		workers.Job{Name: "due_soon_sweep", At: cfg.DueSoonClock, Run: loans.SweepDueSoon},
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server listening", "port", cfg.Port, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return bus.Run(gctx, dispatcher.Handle)
	})
	g.Go(func() error {
		return scheduler.Run(gctx)
	})
	return g.Wait()
}

// newBus uses the Redis stream when REDIS_ADDR is set, otherwise an in-process channel.
func newBus(ctx context.Context, cfg *config.Config) (events.Bus, error) {
	if cfg.RedisAddr == "" {
		slog.Info("event bus", "kind", "channel")
		return events.NewChannelBus(1024), nil
	}
	bus, err := events.NewRedisBus(events.RedisBusConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		Stream:   cfg.EventStream,
	})
	if err != nil {
		return nil, err
	}
	if err := bus.Ping(ctx); err != nil {
		return nil, err
	}
	slog.Info("event bus", "kind", "redis", "addr", cfg.RedisAddr)
	return bus, nil
}
