package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"trading-arena/internal/logger"
	"trading-arena/internal/types"
)

// transcript appends the session's decisions, fills and rejections to
// agent_data/<agent>/log/<date>/log.jsonl so a day can be replayed
// afterwards.
type transcript struct {
	f     *os.File
	agent string
	date  string
}

type transcriptEntry struct {
	Timestamp string `json:"timestamp"`
	Step      int    `json:"step"`
	Event     string `json:"event"`
	Payload   any    `json:"payload,omitempty"`
}

func newTranscript(dataDir string, sess types.Session) (*transcript, error) {
	dir := filepath.Join(dataDir, "agent_data", sess.Agent, "log", sess.Date)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create session log dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, "log.jsonl"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open session log: %w", err)
	}
	return &transcript{f: f, agent: sess.Agent, date: sess.Date}, nil
}

// Record writes one event line. Logging failures are reported but never
// abort the session.
func (t *transcript) Record(ctx context.Context, step int, event string, payload any) {
	entry := transcriptEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Step:      step,
		Event:     event,
		Payload:   payload,
	}
	line, err := json.Marshal(entry)
	if err != nil {
		logger.Warn(ctx, "Failed to marshal transcript entry", "agent", t.agent, "date", t.date, "error", err.Error())
		return
	}
	if _, err := fmt.Fprintln(t.f, string(line)); err != nil {
		logger.Warn(ctx, "Failed to write transcript entry", "agent", t.agent, "date", t.date, "error", err.Error())
	}
}

func (t *transcript) Close() error {
	return t.f.Close()
}
