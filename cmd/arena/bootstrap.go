package main

import (
	"context"
	"fmt"

	"trading-arena/internal/agent"
	"trading-arena/internal/interfaces"
	"trading-arena/internal/ledger"
	"trading-arena/internal/llm/noop"
	"trading-arena/internal/llm/openai"
	"trading-arena/internal/logger"
	"trading-arena/internal/news"
	"trading-arena/internal/prices"
	"trading-arena/internal/store"
	"trading-arena/internal/trade"

	"github.com/joho/godotenv"
)

// initializeSystem loads environment variables and brings up logging.
func initializeSystem() error {
	_ = godotenv.Load()
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

func loadConfig(ctx context.Context, path string) (*store.Config, error) {
	cfg, err := store.LoadConfig(path)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err, "path", path)
		return nil, err
	}
	return cfg, nil
}

// initializeDecider picks the decision backend for one agent profile.
func initializeDecider(ctx context.Context, cfg *store.Config, profile store.AgentConfig) interfaces.Decider {
	switch cfg.LLM.Provider {
	case "OPENAI":
		return openai.NewOpenAIDecider(cfg, profile)
	default:
		logger.Warn(ctx, "No LLM provider configured, using noop decider", "agent", profile.Signature)
		return noop.NewNoopDecider()
	}
}

func buildAgents(ctx context.Context, cfg *store.Config, ledgerStore *ledger.Store, priceIndex *prices.Index, executor *trade.Executor, newsSvc *news.Service) []*agent.Agent {
	var agents []*agent.Agent
	for _, profile := range cfg.Agents {
		if !profile.Enabled {
			logger.Info(ctx, "Skipping disabled agent", "agent", profile.Signature)
			continue
		}
		decider := initializeDecider(ctx, cfg, profile)
		agents = append(agents, agent.New(cfg, profile, ledgerStore, priceIndex, executor, decider, newsSvc))
	}
	return agents
}
