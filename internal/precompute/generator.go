// Package precompute generates the affinity, effect, and threat tables a battle needs before
// it can start. The output is untrusted: the battle engines coerce it into complete tables.
package precompute

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/cory-johannsen/legendraid/internal/battle"
	"github.com/cory-johannsen/legendraid/internal/config"
	"github.com/cory-johannsen/legendraid/internal/game/tables"
)

// ErrEmptyResponse is returned when the model answers without any text.
var ErrEmptyResponse = errors.New("model returned no text")

// messageCreator is the slice of the Anthropic messages API the generator uses.
type messageCreator interface {
	New(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// AnthropicGenerator asks a Claude model for battle tables.
type AnthropicGenerator struct {
	messages  messageCreator
	model     string
	maxTokens int64
	logger    *zap.Logger
}

// NewAnthropicGenerator creates a generator backed by the Anthropic API.
//
// Precondition: cfg.APIKey must be non-empty.
func NewAnthropicGenerator(cfg config.PrecomputeConfig, logger *zap.Logger) *AnthropicGenerator {
	client := anthropic.NewClient(option.WithAPIKey(cfg.APIKey))
	return newAnthropicGenerator(&client.Messages, cfg, logger)
}

func newAnthropicGenerator(messages messageCreator, cfg config.PrecomputeConfig, logger *zap.Logger) *AnthropicGenerator {
	return &AnthropicGenerator{
		messages:  messages,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		logger:    logger,
	}
}

// Generate returns the model's JSON payload for req with fences and surrounding prose removed.
//
// Postcondition: Returns ErrEmptyResponse when the reply carries no text block.
func (g *AnthropicGenerator) Generate(ctx context.Context, req battle.SetupRequest) ([]byte, error) {
	system, user, err := Prompts(req)
	if err != nil {
		return nil, err
	}
	msg, err := g.messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model),
		MaxTokens: g.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%s %s: generating tables: %w", req.Mode, req.BattleID, err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("%s %s: %w", req.Mode, req.BattleID, ErrEmptyResponse)
	}
	g.logger.Debug("tables generated",
		zap.String("mode", string(req.Mode)),
		zap.String("battle_id", req.BattleID),
		zap.Int("bytes", text.Len()),
	)
	return []byte(tables.ExtractJSON(text.String())), nil
}

// NewGenerator returns the configured table generator: the Anthropic generator when
// precomputation is enabled, otherwise one that always yields default tables.
func NewGenerator(cfg config.PrecomputeConfig, logger *zap.Logger) battle.TableGenerator {
	if !cfg.Enabled {
		logger.Info("table precomputation disabled, battles use default tables")
		return battle.DefaultTables{}
	}
	return NewAnthropicGenerator(cfg, logger)
}
