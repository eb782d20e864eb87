package ledger

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"

	"trading-arena/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(t.TempDir())
}

func bootstrapAgent(t *testing.T, s *Store, agent string) {
	t.Helper()
	err := s.Bootstrap(context.Background(), agent, 10000, []string{"AAPL", "MSFT"}, "2025-10-13")
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
}

func TestBootstrapWritesZeroFilledSnapshot(t *testing.T) {
	s := newTestStore(t)
	bootstrapAgent(t, s, "gpt-test")

	records, err := s.Records(context.Background(), "gpt-test")
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("record count = %d, want 1", len(records))
	}
	rec := records[0]
	if rec.ID != 0 || rec.Date != "2025-10-13" || rec.Action != nil {
		t.Errorf("unexpected bootstrap record: %+v", rec)
	}
	if rec.Positions.Cash() != 10000 {
		t.Errorf("cash = %v, want 10000", rec.Positions.Cash())
	}
	if v, ok := rec.Positions["AAPL"]; !ok || v != 0 {
		t.Errorf("AAPL should be zero-filled, got %v (present %v)", v, ok)
	}
}

func TestBootstrapIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	bootstrapAgent(t, s, "gpt-test")
	bootstrapAgent(t, s, "gpt-test")

	records, err := s.Records(context.Background(), "gpt-test")
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("second bootstrap appended a record: count = %d", len(records))
	}
}

func TestAppendAssignsMonotonicIDs(t *testing.T) {
	s := newTestStore(t)
	bootstrapAgent(t, s, "gpt-test")
	ctx := context.Background()

	pos := types.Positions{"AAPL": 5, types.CashKey: 9000}
	action := &types.TradeAction{Action: types.ActionBuy, Symbol: "AAPL", Amount: 5}
	rec1, err := s.Append(ctx, "gpt-test", "2025-10-13", action, pos)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	rec2, err := s.Append(ctx, "gpt-test", "2025-10-13", action, pos)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if rec1.ID != 1 || rec2.ID != 2 {
		t.Errorf("ids = %d, %d, want 1, 2", rec1.ID, rec2.ID)
	}
}

func TestLatestAsOfSameDay(t *testing.T) {
	s := newTestStore(t)
	bootstrapAgent(t, s, "gpt-test")
	ctx := context.Background()

	pos := types.Positions{"AAPL": 3, types.CashKey: 9400}
	if _, err := s.Append(ctx, "gpt-test", "2025-10-13", &types.TradeAction{Action: types.ActionBuy, Symbol: "AAPL", Amount: 3}, pos); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got, id, err := s.LatestAsOf(ctx, "gpt-test", "2025-10-13")
	if err != nil {
		t.Fatalf("LatestAsOf: %v", err)
	}
	if id != 1 {
		t.Errorf("id = %d, want 1", id)
	}
	if got["AAPL"] != 3 || got.Cash() != 9400 {
		t.Errorf("positions = %v", got)
	}
}

func TestLatestAsOfLooksBackOneBusinessDay(t *testing.T) {
	s := newTestStore(t)
	// Bootstrap on Friday, then query Monday: one hop back resolves it.
	err := s.Bootstrap(context.Background(), "gpt-test", 10000, []string{"AAPL"}, "2025-10-10")
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	pos, id, err := s.LatestAsOf(context.Background(), "gpt-test", "2025-10-13")
	if err != nil {
		t.Fatalf("LatestAsOf: %v", err)
	}
	if id != 0 || pos.Cash() != 10000 {
		t.Errorf("Monday should resolve to Friday's snapshot, got id=%d pos=%v", id, pos)
	}
}

func TestLatestAsOfDoesNotLookBackTwoDays(t *testing.T) {
	s := newTestStore(t)
	err := s.Bootstrap(context.Background(), "gpt-test", 10000, []string{"AAPL"}, "2025-10-10")
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	// Tuesday is two business days after Friday: no record on Monday
	// means no resolvable history.
	pos, id, err := s.LatestAsOf(context.Background(), "gpt-test", "2025-10-14")
	if err != nil {
		t.Fatalf("LatestAsOf: %v", err)
	}
	if id != NoHistoryID {
		t.Errorf("id = %d, want %d", id, NoHistoryID)
	}
	if len(pos) != 0 {
		t.Errorf("positions should be empty, got %v", pos)
	}
}

func TestBridgeNoTradeRestoresLookback(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	err := s.Bootstrap(ctx, "gpt-test", 10000, []string{"AAPL"}, "2025-10-10")
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	if err := s.BridgeNoTrade(ctx, "gpt-test", "2025-10-13"); err != nil {
		t.Fatalf("BridgeNoTrade: %v", err)
	}

	pos, id, err := s.LatestAsOf(ctx, "gpt-test", "2025-10-14")
	if err != nil {
		t.Fatalf("LatestAsOf: %v", err)
	}
	if id == NoHistoryID {
		t.Fatal("Tuesday should resolve through Monday's bridge record")
	}
	if pos.Cash() != 10000 {
		t.Errorf("bridged cash = %v, want 10000", pos.Cash())
	}

	records, _ := s.Records(ctx, "gpt-test")
	last := records[len(records)-1]
	if last.Action == nil || last.Action.Action != types.ActionNoTrade {
		t.Errorf("bridge record action = %+v, want no_trade", last.Action)
	}
}

func TestRecordsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	bootstrapAgent(t, s, "gpt-test")

	pos := types.Positions{"AAPL": 2, "MSFT": 0, types.CashKey: 9600.5}
	action := &types.TradeAction{Action: types.ActionBuy, Symbol: "AAPL", Amount: 2}
	want, err := s.Append(ctx, "gpt-test", "2025-10-13", action, pos)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	records, err := s.Records(ctx, "gpt-test")
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	got := records[len(records)-1]
	if got.ID != want.ID || got.Date != want.Date {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, want)
	}
	if got.Action == nil || got.Action.Symbol != "AAPL" || got.Action.Amount != 2 {
		t.Errorf("action round trip mismatch: %+v", got.Action)
	}
	if got.Positions.Cash() != 9600.5 || got.Positions["AAPL"] != 2 {
		t.Errorf("positions round trip mismatch: %v", got.Positions)
	}
}

func TestRecordsSkipsMalformedLines(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	bootstrapAgent(t, s, "gpt-test")

	f, err := os.OpenFile(s.PositionFile("gpt-test"), os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	fmt.Fprintln(f, "{broken json")
	f.Close()

	if _, err := s.Append(ctx, "gpt-test", "2025-10-13", &types.TradeAction{Action: types.ActionNoTrade}, types.Positions{types.CashKey: 10000}); err != nil {
		t.Fatalf("Append after corruption: %v", err)
	}

	records, err := s.Records(ctx, "gpt-test")
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("record count = %d, want 2 (malformed line skipped)", len(records))
	}
}

func TestConcurrentAppendsKeepIDsUnique(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	bootstrapAgent(t, s, "gpt-test")

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pos := types.Positions{types.CashKey: 10000}
			if _, err := s.Append(ctx, "gpt-test", "2025-10-13", &types.TradeAction{Action: types.ActionNoTrade}, pos); err != nil {
				t.Errorf("Append: %v", err)
			}
		}()
	}
	wg.Wait()

	records, err := s.Records(ctx, "gpt-test")
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if len(records) != n+1 {
		t.Fatalf("record count = %d, want %d", len(records), n+1)
	}
	// Ids must be strictly increasing in file order, starting at 0.
	for i, rec := range records {
		if rec.ID != i {
			t.Fatalf("record %d has id %d", i, rec.ID)
		}
	}
}

func TestDateRangeAndLastRecord(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	bootstrapAgent(t, s, "gpt-test")
	if err := s.BridgeNoTrade(ctx, "gpt-test", "2025-10-14"); err != nil {
		t.Fatalf("BridgeNoTrade: %v", err)
	}

	earliest, latest, err := s.DateRange(ctx, "gpt-test")
	if err != nil {
		t.Fatalf("DateRange: %v", err)
	}
	if earliest != "2025-10-13" || latest != "2025-10-14" {
		t.Errorf("range = %s..%s", earliest, latest)
	}

	last, ok, err := s.LastRecord(ctx, "gpt-test")
	if err != nil || !ok {
		t.Fatalf("LastRecord: %v ok=%v", err, ok)
	}
	if last.Date != "2025-10-14" {
		t.Errorf("last record date = %s", last.Date)
	}
}

func TestMissingLedgerReadsEmpty(t *testing.T) {
	s := newTestStore(t)
	records, err := s.Records(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if records != nil {
		t.Errorf("expected nil records, got %v", records)
	}
	if s.Exists("ghost") {
		t.Error("Exists should be false for an unregistered agent")
	}
}
