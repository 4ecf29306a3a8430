// Package main imports the boss catalog and optional seed characters into the database.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/legendraid/internal/config"
	"github.com/cory-johannsen/legendraid/internal/game/boss"
	"github.com/cory-johannsen/legendraid/internal/game/character"
	"github.com/cory-johannsen/legendraid/internal/game/stats"
	"github.com/cory-johannsen/legendraid/internal/observability"
	"github.com/cory-johannsen/legendraid/internal/storage/postgres"
)

// seedCharacter is one entry of a character seed file.
type seedCharacter struct {
	ID     string            `yaml:"id"`
	Owner  string            `yaml:"owner"`
	Name   string            `yaml:"name"`
	Scores stats.Scores      `yaml:"scores"`
	Skills []character.Skill `yaml:"skills"`
}

func loadSeeds(path string) ([]*character.Character, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var seeds []seedCharacter
	if err := yaml.Unmarshal(data, &seeds); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	out := make([]*character.Character, 0, len(seeds))
	for _, s := range seeds {
		c, err := character.Build(s.Owner, s.Name, s.Scores, s.Skills)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		c.ID = s.ID
		out = append(out, c)
	}
	return out, nil
}

func main() {
	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	bossDir := flag.String("bosses", "content/bosses", "directory of boss YAML files")
	seedFile := flag.String("characters", "", "optional YAML file of seed characters")
	dryRun := flag.Bool("dry-run", false, "validate the content without writing it")
	flag.Parse()

	start := time.Now()
	bosses, err := boss.LoadDirectory(*bossDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	var seeds []*character.Character
	if *seedFile != "" {
		if seeds, err = loadSeeds(*seedFile); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	}
	if *dryRun {
		for _, b := range bosses {
			fmt.Printf("boss %-12s stage %d  hp %d  party %d  %s\n", b.ID, b.Stage, b.HP(), b.Limit(), b.Name)
		}
		for _, c := range seeds {
			fmt.Printf("character %-12s owner %s  hp %d\n", c.Name, c.OwnerID, stats.MaxHP(c.Scores))
		}
		fmt.Printf("%d bosses and %d characters valid\n", len(bosses), len(seeds))
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("connecting to database", zap.Error(err))
	}
	defer pool.Close()

	bossRepo := postgres.NewBossRepository(pool.DB())
	for _, b := range bosses {
		if err := bossRepo.Upsert(ctx, b); err != nil {
			logger.Fatal("importing boss", zap.String("boss_id", b.ID), zap.Error(err))
		}
		logger.Info("boss imported", zap.String("boss_id", b.ID), zap.String("name", b.Name))
	}

	charRepo := postgres.NewCharacterRepository(pool.DB())
	created := 0
	for _, c := range seeds {
		out, err := charRepo.Create(ctx, c)
		if errors.Is(err, postgres.ErrCharacterExists) {
			logger.Info("character already present", zap.String("character_id", c.ID))
			continue
		}
		if err != nil {
			logger.Fatal("importing character", zap.String("name", c.Name), zap.Error(err))
		}
		created++
		logger.Info("character imported", zap.String("character_id", out.ID), zap.String("name", out.Name))
	}
	fmt.Printf("imported %d bosses and %d characters in %s\n", len(bosses), created, time.Since(start).Round(time.Millisecond))
}
