// Package ledger persists the append-only per-agent position log.
//
// Each agent owns one JSONL file of position snapshots with strictly
// increasing ids. Records are never mutated or deleted; a trade or a
// no-trade bridge appends the next snapshot. Lookups resolve "the
// effective position as of a date" with at most one hop back to the
// previous business day; the daily bridge record is what keeps that
// single hop sufficient.
package ledger

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"trading-arena/internal/calendar"
	"trading-arena/internal/logger"
	"trading-arena/internal/types"
)

// NoHistoryID is returned by LatestAsOf when no record resolves for the
// date or its immediate predecessor.
const NoHistoryID = -1

// Store manages the position ledgers under one data directory. Appends
// for the same agent are serialized by a per-agent mutex; different
// agents never contend.
type Store struct {
	dataDir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewStore(dataDir string) *Store {
	return &Store{
		dataDir: dataDir,
		locks:   map[string]*sync.Mutex{},
	}
}

func (s *Store) agentLock(agent string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.locks[agent]
	if l == nil {
		l = &sync.Mutex{}
		s.locks[agent] = l
	}
	return l
}

// DataDir returns the root data directory this store writes under.
func (s *Store) DataDir() string { return s.dataDir }

// PositionFile returns the ledger path for an agent.
func (s *Store) PositionFile(agent string) string {
	return filepath.Join(s.dataDir, "agent_data", agent, "position", "position.jsonl")
}

// Exists reports whether an agent has been registered.
func (s *Store) Exists(agent string) bool {
	_, err := os.Stat(s.PositionFile(agent))
	return err == nil
}

// Bootstrap registers an agent by writing the id=0 snapshot: every
// tracked symbol zero-filled plus the initial cash balance. Registering
// an existing agent is a logged no-op.
func (s *Store) Bootstrap(ctx context.Context, agent string, initialCash float64, symbols []string, initDate string) error {
	lock := s.agentLock(agent)
	lock.Lock()
	defer lock.Unlock()

	path := s.PositionFile(agent)
	if _, err := os.Stat(path); err == nil {
		logger.Info(ctx, "Ledger already exists, skipping registration", "agent", agent, "path", path)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create ledger dir: %w", err)
	}

	positions := make(types.Positions, len(symbols)+1)
	for _, sym := range symbols {
		positions[sym] = 0
	}
	positions[types.CashKey] = initialCash

	rec := types.PositionRecord{Date: initDate, ID: 0, Positions: positions}
	if err := appendRecord(path, rec); err != nil {
		return err
	}

	logger.Info(ctx, "Agent registered", "agent", agent, "init_date", initDate,
		"initial_cash", initialCash, "symbols", len(symbols))
	return nil
}

// LatestAsOf resolves the effective position for a date: the max-id
// record on the date itself, else the max-id record on exactly the
// previous business day, else (empty, NoHistoryID). The single hop is a
// deliberate constraint: an agent that skips two consecutive business
// days without even a bridge record has no resolvable history, which is
// why the orchestrator bridges every session day.
func (s *Store) LatestAsOf(ctx context.Context, agent, date string) (types.Positions, int, error) {
	records, err := s.Records(ctx, agent)
	if err != nil {
		return types.Positions{}, NoHistoryID, err
	}

	target := date
	for hop := 0; hop < 2; hop++ {
		if pos, id, ok := latestOn(records, target); ok {
			return pos, id, nil
		}
		target = calendar.PreviousBusinessDay(target)
	}
	return types.Positions{}, NoHistoryID, nil
}

func latestOn(records []types.PositionRecord, date string) (types.Positions, int, bool) {
	maxID := NoHistoryID
	var positions types.Positions
	for _, rec := range records {
		if rec.Date == date && rec.ID > maxID {
			maxID = rec.ID
			positions = rec.Positions
		}
	}
	if maxID == NoHistoryID {
		return nil, NoHistoryID, false
	}
	return positions, maxID, true
}

// Append writes the next snapshot for an agent. The id is computed from
// the effective position as of the record's date; the read-increment-
// write sequence holds the agent lock so concurrent appends for one
// agent cannot race the same id.
func (s *Store) Append(ctx context.Context, agent, date string, action *types.TradeAction, positions types.Positions) (types.PositionRecord, error) {
	lock := s.agentLock(agent)
	lock.Lock()
	defer lock.Unlock()

	return s.appendLocked(ctx, agent, date, action, positions)
}

func (s *Store) appendLocked(ctx context.Context, agent, date string, action *types.TradeAction, positions types.Positions) (types.PositionRecord, error) {
	_, latestID, err := s.LatestAsOf(ctx, agent, date)
	if err != nil {
		return types.PositionRecord{}, err
	}

	rec := types.PositionRecord{
		Date:      date,
		ID:        latestID + 1,
		Action:    action,
		Positions: positions,
	}

	path := s.PositionFile(agent)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return types.PositionRecord{}, fmt.Errorf("create ledger dir: %w", err)
	}
	if err := appendRecord(path, rec); err != nil {
		return types.PositionRecord{}, err
	}

	logger.Debug(ctx, "Ledger record appended", "agent", agent, "date", date, "id", rec.ID)
	return rec, nil
}

// BridgeNoTrade appends a no_trade record carrying the latest positions
// forward, unless a newer record already exists for the date (a real
// trade happened, so the day needs no bridge).
func (s *Store) BridgeNoTrade(ctx context.Context, agent, date string) error {
	lock := s.agentLock(agent)
	lock.Lock()
	defer lock.Unlock()

	positions, latestID, err := s.LatestAsOf(ctx, agent, date)
	if err != nil {
		return err
	}

	records, err := s.Records(ctx, agent)
	if err != nil {
		return err
	}
	for _, rec := range records {
		if rec.Date == date && rec.ID > latestID {
			logger.Debug(ctx, "Trade already recorded today, no bridge needed", "agent", agent, "date", date)
			return nil
		}
	}

	action := &types.TradeAction{Action: types.ActionNoTrade}
	_, err = s.appendLocked(ctx, agent, date, action, positions)
	if err == nil {
		logger.Info(ctx, "No-trade day bridged", "agent", agent, "date", date, "id", latestID+1)
	}
	return err
}

// Records reads the full ledger in file order. Malformed lines are
// skipped with a warning, never fatal; a missing ledger reads as empty.
func (s *Store) Records(ctx context.Context, agent string) ([]types.PositionRecord, error) {
	f, err := os.Open(s.PositionFile(agent))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var records []types.PositionRecord
	skipped := 0
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var rec types.PositionRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			skipped++
			continue
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if skipped > 0 {
		logger.Warn(ctx, "Skipped malformed ledger records", "agent", agent, "skipped", skipped)
	}
	return records, nil
}

// DateRange returns the earliest and latest dates observed in the
// ledger, or empty strings when there is no history.
func (s *Store) DateRange(ctx context.Context, agent string) (earliest, latest string, err error) {
	records, err := s.Records(ctx, agent)
	if err != nil {
		return "", "", err
	}
	for _, rec := range records {
		if rec.Date == "" {
			continue
		}
		if earliest == "" || rec.Date < earliest {
			earliest = rec.Date
		}
		if rec.Date > latest {
			latest = rec.Date
		}
	}
	return earliest, latest, nil
}

// LastRecord returns the final record in file order, used by the
// orchestrator to resume a date range where the ledger left off.
func (s *Store) LastRecord(ctx context.Context, agent string) (types.PositionRecord, bool, error) {
	records, err := s.Records(ctx, agent)
	if err != nil || len(records) == 0 {
		return types.PositionRecord{}, false, err
	}
	return records[len(records)-1], true, nil
}

func appendRecord(path string, rec types.PositionRecord) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(f, string(b))
	return err
}
