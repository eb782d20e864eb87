package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"trading-arena/internal/ledger"
	"trading-arena/internal/logger"
	"trading-arena/internal/metrics"
	"trading-arena/internal/prices"
	"trading-arena/internal/store"

	"github.com/joho/godotenv"
)

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to the arena config file")
	agentName := flag.String("agent", "", "agent signature to report on (default: all enabled agents)")
	startDate := flag.String("start", "", "analysis start date YYYY-MM-DD (default: first ledger date)")
	endDate := flag.String("end", "", "analysis end date YYYY-MM-DD (default: last ledger date)")
	history := flag.Int("history", 0, "show the last N saved reports instead of computing a new one")
	flag.Parse()

	_ = godotenv.Load()
	must(logger.Init())
	ctx := context.Background()
	defer logger.Shutdown(ctx)

	cfg, err := store.LoadConfig(*configPath)
	must(err)

	priceIndex, err := prices.Load(ctx, cfg.PricesPath())
	must(err)
	ledgerStore := ledger.NewStore(cfg.Data.Dir)
	engine := metrics.NewEngine(ledgerStore, priceIndex, cfg.Universe, cfg.Data.Dir)

	targets := selectAgents(cfg, *agentName)
	if len(targets) == 0 {
		log.Fatalf("no agent matching %q in config", *agentName)
	}

	for _, sig := range targets {
		if *history > 0 {
			rows, err := engine.History(ctx, sig, *history)
			must(err)
			if len(rows) == 0 {
				fmt.Printf("No saved reports for %s\n", sig)
				continue
			}
			for i := range rows {
				metrics.Print(os.Stdout, &rows[i])
				fmt.Println()
			}
			continue
		}

		report, err := engine.Compute(ctx, sig, *startDate, *endDate)
		if err != nil {
			logger.ErrorWithErr(ctx, "Report computation failed", err, "agent", sig)
			continue
		}
		row, err := engine.Save(ctx, report)
		must(err)
		metrics.Print(os.Stdout, row)
		fmt.Println()
	}
}

func selectAgents(cfg *store.Config, name string) []string {
	var targets []string
	for _, a := range cfg.Agents {
		if name != "" {
			if a.Signature == name {
				return []string{a.Signature}
			}
			continue
		}
		if a.Enabled {
			targets = append(targets, a.Signature)
		}
	}
	return targets
}
