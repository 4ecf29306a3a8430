//go:build wireinject

package main

import (
	"context"

	"github.com/google/wire"
	"go.uber.org/zap"

	"github.com/cory-johannsen/legendraid/internal/battle"
	"github.com/cory-johannsen/legendraid/internal/battleserver"
	"github.com/cory-johannsen/legendraid/internal/config"
	"github.com/cory-johannsen/legendraid/internal/game/dice"
	"github.com/cory-johannsen/legendraid/internal/precompute"
	"github.com/cory-johannsen/legendraid/internal/storage/postgres"
)

func initializeApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, func(), error) {
	wire.Build(
		wire.FieldsOf(new(*config.Config), "Battle", "Precompute"),
		providePool,
		provideDB,
		postgres.ProviderSet,
		precompute.NewGenerator,
		dice.NewCryptoSource,
		battle.ProviderSet,
		battleserver.NewServer,
		newApp,
	)
	return nil, nil, nil
}
