// Package main provides the battle server binary: the raid and duel engines behind a gRPC service.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/legendraid/internal/config"
	"github.com/cory-johannsen/legendraid/internal/observability"
	"github.com/cory-johannsen/legendraid/internal/server"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	healthInterval := flag.Duration("health-interval", 30*time.Second, "database health check interval")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	a, cleanup, err := initializeApp(ctx, &cfg, logger)
	if err != nil {
		logger.Fatal("initializing battle server", zap.Error(err))
	}
	defer cleanup()
	defer a.raids.Shutdown()

	lifecycle := server.NewLifecycle(logger)
	lifecycle.Add("grpc", a.grpc)
	lifecycle.Add("session-sweeper", server.NewLoopService(a.sweeper.Run))
	lifecycle.Add("postgres-health", server.NewLoopService(func(ctx context.Context) error {
		ticker := time.NewTicker(*healthInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if err := a.pool.Health(ctx, 5*time.Second); err != nil {
					logger.Warn("database health check failed", zap.Error(err))
				}
			}
		}
	}))

	logger.Info("battle server initialized",
		zap.Duration("startup", time.Since(start)),
		zap.String("grpc_addr", cfg.BattleServer.Addr()),
		zap.Bool("precompute", cfg.Precompute.Enabled),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Error("server error", zap.Error(err))
	}
}
