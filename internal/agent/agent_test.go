package agent

import (
	"context"
	"strings"
	"testing"

	"trading-arena/internal/ledger"
	"trading-arena/internal/llm/noop"
	"trading-arena/internal/prices"
	"trading-arena/internal/store"
	"trading-arena/internal/trade"
	"trading-arena/internal/types"
)

const agentDataset = `{"Meta Data":{"2. Symbol":"AAPL"},"Time Series (Daily)":{"2025-10-13":{"1. buy price":"100","2. high":"102","3. low":"99","4. sell price":"101","5. volume":"1"},"2025-10-14":{"1. buy price":"101","2. high":"103","3. low":"100","4. sell price":"102","5. volume":"1"}}}
`

// scriptedDecider returns canned decisions in order and records the
// states it was shown.
type scriptedDecider struct {
	decisions []types.Decision
	states    []types.AgentState
}

func (d *scriptedDecider) Decide(ctx context.Context, state types.AgentState) (types.Decision, error) {
	d.states = append(d.states, state)
	if len(d.decisions) == 0 {
		return types.Decision{Action: types.DecisionDone, Reason: "script exhausted"}, nil
	}
	next := d.decisions[0]
	d.decisions = d.decisions[1:]
	return next, nil
}

func testConfig(t *testing.T) *store.Config {
	t.Helper()
	cfg := &store.Config{}
	cfg.Mode = "SIM"
	cfg.Data.Dir = t.TempDir()
	cfg.DateRange.InitDate = "2025-10-13"
	cfg.DateRange.EndDate = "2025-10-14"
	cfg.Agent.MaxSteps = 5
	cfg.Agent.MaxRetries = 1
	cfg.Agent.InitialCash = 10000
	cfg.Universe = []string{"AAPL"}
	return cfg
}

func newTestAgent(t *testing.T, cfg *store.Config, decider *scriptedDecider) (*Agent, *ledger.Store) {
	t.Helper()
	ctx := context.Background()

	ledgerStore := ledger.NewStore(cfg.Data.Dir)
	index, err := prices.LoadReader(ctx, strings.NewReader(agentDataset))
	if err != nil {
		t.Fatalf("LoadReader: %v", err)
	}
	executor := trade.NewExecutor(ledgerStore, index)
	profile := store.AgentConfig{Name: "GPT Test", Signature: "gpt-test", Enabled: true}

	var a *Agent
	if decider != nil {
		a = New(cfg, profile, ledgerStore, index, executor, decider, nil)
	} else {
		a = New(cfg, profile, ledgerStore, index, executor, noop.NewNoopDecider(), nil)
	}
	if err := a.Register(ctx); err != nil {
		t.Fatalf("Register: %v", err)
	}
	return a, ledgerStore
}

func TestRunSessionNoTradeBridges(t *testing.T) {
	cfg := testConfig(t)
	a, ledgerStore := newTestAgent(t, cfg, nil)
	ctx := context.Background()

	result, err := a.RunSession(ctx, "2025-10-14")
	if err != nil {
		t.Fatalf("RunSession: %v", err)
	}
	if result.Trades != 0 || !result.Bridge {
		t.Errorf("result = %+v, want no trades and a bridge", result)
	}

	records, _ := ledgerStore.Records(ctx, "gpt-test")
	last := records[len(records)-1]
	if last.Date != "2025-10-14" || last.Action == nil || last.Action.Action != types.ActionNoTrade {
		t.Errorf("expected a no_trade record, got %+v", last)
	}
}

func TestRunSessionExecutesTrades(t *testing.T) {
	cfg := testConfig(t)
	decider := &scriptedDecider{decisions: []types.Decision{
		{Action: types.DecisionBuy, Symbol: "AAPL", Qty: 10, Reason: "test buy"},
		{Action: types.DecisionDone, Reason: "done"},
	}}
	a, ledgerStore := newTestAgent(t, cfg, decider)
	ctx := context.Background()

	result, err := a.RunSession(ctx, "2025-10-13")
	if err != nil {
		t.Fatalf("RunSession: %v", err)
	}
	if result.Trades != 1 || result.Bridge {
		t.Errorf("result = %+v, want 1 trade and no bridge", result)
	}

	pos, _, err := ledgerStore.LatestAsOf(ctx, "gpt-test", "2025-10-13")
	if err != nil {
		t.Fatalf("LatestAsOf: %v", err)
	}
	if pos["AAPL"] != 10 || pos.Cash() != 9000 {
		t.Errorf("positions = %v", pos)
	}
}

func TestRunSessionFeedsRejectionsBack(t *testing.T) {
	cfg := testConfig(t)
	decider := &scriptedDecider{decisions: []types.Decision{
		{Action: types.DecisionBuy, Symbol: "AAPL", Qty: 1000, Reason: "too big"},
		{Action: types.DecisionDone, Reason: "give up"},
	}}
	a, ledgerStore := newTestAgent(t, cfg, decider)
	ctx := context.Background()

	result, err := a.RunSession(ctx, "2025-10-13")
	if err != nil {
		t.Fatalf("rejection must not fail the session: %v", err)
	}
	if result.Trades != 0 {
		t.Errorf("trades = %d, want 0", result.Trades)
	}

	// The second decide call must see the rejection as a tool result.
	if len(decider.states) != 2 {
		t.Fatalf("decide calls = %d, want 2", len(decider.states))
	}
	second := decider.states[1]
	if len(second.ToolResults) != 1 || !strings.Contains(second.ToolResults[0], "rejected") {
		t.Errorf("tool results = %v", second.ToolResults)
	}

	// Rejected-only day still bridges.
	records, _ := ledgerStore.Records(ctx, "gpt-test")
	last := records[len(records)-1]
	if last.Action == nil || last.Action.Action != types.ActionNoTrade {
		t.Errorf("expected bridge record, got %+v", last)
	}
}

func TestRunSessionStopsAtMaxSteps(t *testing.T) {
	cfg := testConfig(t)
	cfg.Agent.MaxSteps = 3
	// Never says DONE; alternating rejections keep the loop going.
	decider := &scriptedDecider{decisions: []types.Decision{
		{Action: types.DecisionBuy, Symbol: "AAPL", Qty: 1000},
		{Action: types.DecisionBuy, Symbol: "AAPL", Qty: 1000},
		{Action: types.DecisionBuy, Symbol: "AAPL", Qty: 1000},
		{Action: types.DecisionBuy, Symbol: "AAPL", Qty: 1000},
	}}
	a, _ := newTestAgent(t, cfg, decider)

	result, err := a.RunSession(context.Background(), "2025-10-13")
	if err != nil {
		t.Fatalf("RunSession: %v", err)
	}
	if result.Steps != 3 {
		t.Errorf("steps = %d, want 3", result.Steps)
	}
}

func TestBuildStateIncludesOpensAndYesterdayProfit(t *testing.T) {
	cfg := testConfig(t)
	decider := &scriptedDecider{decisions: []types.Decision{
		{Action: types.DecisionBuy, Symbol: "AAPL", Qty: 5},
		{Action: types.DecisionDone},
	}}
	a, _ := newTestAgent(t, cfg, decider)
	ctx := context.Background()

	if _, err := a.RunSession(ctx, "2025-10-13"); err != nil {
		t.Fatalf("RunSession day 1: %v", err)
	}

	decider.decisions = []types.Decision{{Action: types.DecisionDone}}
	if _, err := a.RunSession(ctx, "2025-10-14"); err != nil {
		t.Fatalf("RunSession day 2: %v", err)
	}

	day2 := decider.states[len(decider.states)-1]
	if day2.OpenPrices["AAPL"] != 101 {
		t.Errorf("open prices = %v", day2.OpenPrices)
	}
	// Bought 5 on the 13th; that day closed 1 above its open.
	if day2.YesterdayProfit["AAPL"] != 5 {
		t.Errorf("yesterday profit = %v, want AAPL: 5", day2.YesterdayProfit)
	}
	if day2.Cash != 9500 {
		t.Errorf("cash = %v, want 9500", day2.Cash)
	}
}

func TestTradingDatesFreshAndResume(t *testing.T) {
	cfg := testConfig(t)
	a, ledgerStore := newTestAgent(t, cfg, nil)
	ctx := context.Background()

	dates, err := a.TradingDates(ctx)
	if err != nil {
		t.Fatalf("TradingDates: %v", err)
	}
	if len(dates) != 2 || dates[0] != "2025-10-13" || dates[1] != "2025-10-14" {
		t.Errorf("fresh dates = %v", dates)
	}

	// A record for the 13th moves the resume point past it.
	if err := ledgerStore.BridgeNoTrade(ctx, "gpt-test", "2025-10-13"); err != nil {
		t.Fatalf("BridgeNoTrade: %v", err)
	}
	dates, err = a.TradingDates(ctx)
	if err != nil {
		t.Fatalf("TradingDates: %v", err)
	}
	if len(dates) != 1 || dates[0] != "2025-10-14" {
		t.Errorf("resumed dates = %v", dates)
	}
}

func TestRunDateRange(t *testing.T) {
	cfg := testConfig(t)
	a, ledgerStore := newTestAgent(t, cfg, nil)
	ctx := context.Background()

	if err := a.RunDateRange(ctx); err != nil {
		t.Fatalf("RunDateRange: %v", err)
	}

	earliest, latest, err := ledgerStore.DateRange(ctx, "gpt-test")
	if err != nil {
		t.Fatalf("DateRange: %v", err)
	}
	if earliest != "2025-10-13" || latest != "2025-10-14" {
		t.Errorf("range = %s..%s", earliest, latest)
	}

	// A second run has nothing left to do and must not duplicate days.
	records, _ := ledgerStore.Records(ctx, "gpt-test")
	before := len(records)
	if err := a.RunDateRange(ctx); err != nil {
		t.Fatalf("second RunDateRange: %v", err)
	}
	records, _ = ledgerStore.Records(ctx, "gpt-test")
	if len(records) != before {
		t.Errorf("second run appended records: %d -> %d", before, len(records))
	}
}
