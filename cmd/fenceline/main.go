package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fenceline-lab/fenceline/internal/access"
	"github.com/fenceline-lab/fenceline/internal/consumer"
	corecfg "github.com/fenceline-lab/fenceline/internal/core/config"
	"github.com/fenceline-lab/fenceline/internal/core/storage/postgres"
	"github.com/fenceline-lab/fenceline/internal/handlers"
	"github.com/fenceline-lab/fenceline/internal/ingestion"
	"github.com/fenceline-lab/fenceline/internal/migrations"
	"github.com/fenceline-lab/fenceline/internal/rules"
	"github.com/fenceline-lab/fenceline/internal/server"
	"github.com/fenceline-lab/fenceline/internal/tripwire"
	"github.com/fenceline-lab/fenceline/internal/userstate"
)

func main() {
	configPath := flag.String("config", "fenceline.yaml", "Path to configuration file")
	flag.Parse()

	// 0. Initialize Logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 1. Load Configuration
	cfg, err := corecfg.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	slog.Info("Loaded config",
		"server", cfg.Server,
		"stores_type", cfg.Stores.Type,
		"consumer", cfg.Consumer,
	)

	// 2. Initialize the Event Log (PostgreSQL)
	logAdapter, err := postgres.NewAdapter(
		cfg.Database.DSN,
		cfg.Database.MaxOpenConns,
		cfg.Database.MaxIdleConns,
	)
	if err != nil {
		slog.Error("Failed to initialize event log", "error", err)
		os.Exit(1)
	}
	defer logAdapter.Close()

	// 2.1. Run Database Migrations
	if err := migrations.RunMigrations(logAdapter.DB(), cfg.Database.AutoMigrate); err != nil {
		slog.Error("Failed to run database migrations", "error", err)
		os.Exit(1)
	}

	cursorStore, err := postgres.NewCursorAdapter(logAdapter.DB())
	if err != nil {
		slog.Error("Failed to initialize consumer cursor", "error", err)
		os.Exit(1)
	}

	// 3. Initialize the User State and Tripwire Stores
	userStore, err := userstate.NewStore(userstate.Config{
		Type: userstate.StoreType(cfg.Stores.Type),
		Redis: userstate.RedisConfig{
			Addr:      cfg.Stores.Redis.Addr,
			Password:  cfg.Stores.Redis.Password,
			DB:        cfg.Stores.Redis.UserDB,
			KeyPrefix: cfg.Stores.Redis.KeyPrefix + ":user:",
		},
	})
	if err != nil {
		slog.Error("Failed to initialize user state store", "error", err)
		os.Exit(1)
	}

	tripStore, err := tripwire.NewStore(tripwire.Config{
		Type: tripwire.StoreType(cfg.Stores.Type),
		Redis: tripwire.RedisConfig{
			Addr:      cfg.Stores.Redis.Addr,
			Password:  cfg.Stores.Redis.Password,
			DB:        cfg.Stores.Redis.TripwireDB,
			KeyPrefix: cfg.Stores.Redis.KeyPrefix + ":tripwire:",
		},
	})
	if err != nil {
		slog.Error("Failed to initialize tripwire store", "error", err)
		os.Exit(1)
	}

	// 4. Initialize the Rule Engine
	tripwireManager := tripwire.NewManager(
		tripStore,
		rules.TripwireSettings(cfg.RuleSettings),
		tripwire.Settings{Threshold: 10, Window: time.Minute, ResetCooldown: 5 * time.Minute},
	)

	engine := rules.NewEngine(tripwireManager)
	builtins, err := rules.BuildBuiltinRules(cfg.RuleSettings)
	if err != nil {
		slog.Error("Failed to build rules", "error", err)
		os.Exit(1)
	}
	for _, rule := range builtins {
		if err := engine.Register(rule); err != nil {
			slog.Error("Failed to register rule", "error", err)
			os.Exit(1)
		}
	}

	registry := handlers.NewRegistry()
	if err := handlers.RegisterDefaults(registry); err != nil {
		slog.Error("Failed to register event handlers", "error", err)
		os.Exit(1)
	}

	// 5. Initialize the Stream Consumer
	streamConsumer := consumer.New(
		logAdapter,
		cursorStore,
		registry,
		engine,
		userStore,
		consumer.Options{
			PollInterval: cfg.Consumer.PollIntervalDuration(),
			BatchSize:    cfg.Consumer.BatchSize,
			RetryBackoff: cfg.Consumer.RetryBackoffDuration(),
			MaxBackoff:   cfg.Consumer.MaxBackoffDuration(),
		},
	)

	// 6. Initialize HTTP Services
	ingestionSvc := ingestion.NewService(logAdapter, cfg.Server.MaxBodySizeMB)
	accessSvc := access.NewService(userStore, tripwireManager)

	// 7. Initialize Server
	srv := server.New(fmtAddr(cfg.Server.Host, cfg.Server.Port), cfg.Server.Mode)
	ingestionSvc.RegisterRoutes(srv.Engine)
	accessSvc.RegisterRoutes(srv.Engine)

	srv.RegisterHealthCheck("database", server.HealthFunc(logAdapter.Ping))
	if us, ok := userStore.(*userstate.RedisStore); ok {
		srv.RegisterHealthCheck("user_store", server.HealthFunc(us.Ping))
		defer us.Close()
	}
	if ts, ok := tripStore.(*tripwire.RedisStore); ok {
		srv.RegisterHealthCheck("tripwire_store", server.HealthFunc(ts.Ping))
		defer ts.Close()
	}
	srv.RegisterHealthCheck("consumer", server.HealthFunc(func(ctx context.Context) error {
		if streamConsumer.Healthy() {
			return nil
		}
		if err := streamConsumer.LastError(); err != nil {
			return err
		}
		return fmt.Errorf("consumer degraded")
	}))

	// 8. Start Services
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Signal handler triggers the shutdown sequence below.
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		slog.Info("Signal received, shutting down...")
		cancel()
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return streamConsumer.Run(gctx) })
	g.Go(func() error { return srv.Run(gctx) })

	if err := g.Wait(); err != nil {
		slog.Error("Service stopped with error", "error", err)
		os.Exit(1)
	}

	slog.Info("Shutdown complete")
}

func fmtAddr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
