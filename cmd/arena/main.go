package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"trading-arena/internal/agent"
	"trading-arena/internal/ledger"
	"trading-arena/internal/logger"
	"trading-arena/internal/metrics"
	"trading-arena/internal/news"
	"trading-arena/internal/prices"
	"trading-arena/internal/trade"
)

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to the arena config file")
	skipMetrics := flag.Bool("skip-metrics", false, "do not compute performance metrics after the run")
	flag.Parse()

	must(initializeSystem())
	defer logger.Shutdown(context.Background())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadConfig(ctx, *configPath)
	must(err)

	priceIndex, err := prices.Load(ctx, cfg.PricesPath())
	must(err)
	if len(priceIndex.Symbols()) == 0 {
		logger.Warn(ctx, "Price index is empty", "path", cfg.PricesPath())
	}

	ledgerStore := ledger.NewStore(cfg.Data.Dir)
	executor := trade.NewExecutor(ledgerStore, priceIndex)
	newsSvc := news.NewService(cfg.News)

	agents := buildAgents(ctx, cfg, ledgerStore, priceIndex, executor, newsSvc)
	if len(agents) == 0 {
		logger.Warn(ctx, "No enabled agents in config")
		return
	}

	for _, a := range agents {
		must(a.Register(ctx))
	}

	// Agents are independent; the ledger serializes per-agent access so
	// they can trade the same dates in parallel.
	var wg sync.WaitGroup
	errs := make(chan error, len(agents))
	for _, a := range agents {
		wg.Add(1)
		go func(a *agent.Agent) {
			defer wg.Done()
			if err := a.RunDateRange(ctx); err != nil {
				logger.ErrorWithErr(ctx, "Agent run failed", err, "agent", a.Signature())
				errs <- err
			}
		}(a)
	}
	wg.Wait()
	close(errs)

	failed := len(errs) > 0

	if !*skipMetrics {
		engine := metrics.NewEngine(ledgerStore, priceIndex, cfg.Universe, cfg.Data.Dir)
		for _, a := range agents {
			report, err := engine.Compute(ctx, a.Signature(), "", "")
			if err != nil {
				logger.ErrorWithErr(ctx, "Metrics computation failed", err, "agent", a.Signature())
				continue
			}
			row, err := engine.Save(ctx, report)
			if err != nil {
				logger.ErrorWithErr(ctx, "Metrics save failed", err, "agent", a.Signature())
				continue
			}
			metrics.Print(os.Stdout, row)
		}
	}

	if failed {
		os.Exit(1)
	}
}
