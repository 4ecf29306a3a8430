package main

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/cory-johannsen/legendraid/internal/battle"
	"github.com/cory-johannsen/legendraid/internal/battleserver"
	"github.com/cory-johannsen/legendraid/internal/config"
	"github.com/cory-johannsen/legendraid/internal/game/session"
	"github.com/cory-johannsen/legendraid/internal/server"
	"github.com/cory-johannsen/legendraid/internal/storage/postgres"
)

// app holds the long-lived components main hands to the lifecycle.
type app struct {
	grpc    *server.GRPCService
	sweeper *session.Sweeper
	pool    *postgres.Pool
	raids   *battle.RaidEngine
}

func providePool(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*postgres.Pool, func(), error) {
	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("database connected", zap.String("host", cfg.Database.Host))
	return pool, pool.Close, nil
}

func provideDB(pool *postgres.Pool) *pgxpool.Pool {
	return pool.DB()
}

func newApp(cfg *config.Config, pool *postgres.Pool, raids *battle.RaidEngine, srv *battleserver.Server, logger *zap.Logger) *app {
	gs := grpc.NewServer()
	battleserver.RegisterBattleServiceServer(gs, srv)
	return &app{
		grpc:    server.NewGRPCService(cfg.BattleServer.Addr(), gs),
		sweeper: session.NewSweeper(cfg.Battle.SweepInterval, logger, raids.Sessions()),
		pool:    pool,
		raids:   raids,
	}
}
