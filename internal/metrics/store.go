package metrics

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"trading-arena/internal/logger"
)

// PersistedReport is the JSONL row written to the metrics file. The id is
// one greater than the highest id already in the file, so a rerun appends
// a new row instead of clobbering history.
type PersistedReport struct {
	ID                 int                `json:"id"`
	Agent              string             `json:"agent"`
	GeneratedAt        string             `json:"generated_at"`
	AnalysisPeriod     AnalysisPeriod     `json:"analysis_period"`
	PerformanceMetrics PerformanceMetrics `json:"performance_metrics"`
	PortfolioSummary   PortfolioSummary   `json:"portfolio_summary"`
}

type AnalysisPeriod struct {
	StartDate        string `json:"start_date"`
	EndDate          string `json:"end_date"`
	TotalTradingDays int    `json:"total_trading_days"`
}

type PerformanceMetrics struct {
	SharpeRatio      float64 `json:"sharpe_ratio"`
	MaxDrawdown      float64 `json:"max_drawdown"`
	MaxDrawdownStart string  `json:"max_drawdown_start"`
	MaxDrawdownEnd   string  `json:"max_drawdown_end"`
	CumulativeReturn float64 `json:"cumulative_return"`
	AnnualizedReturn float64 `json:"annualized_return"`
	Volatility       float64 `json:"volatility"`
	WinRate          float64 `json:"win_rate"`
	ProfitLossRatio  float64 `json:"profit_loss_ratio"`
}

type PortfolioSummary struct {
	InitialValue       float64 `json:"initial_value"`
	FinalValue         float64 `json:"final_value"`
	ValueChange        float64 `json:"value_change"`
	ValueChangePercent float64 `json:"value_change_percent"`
}

// MetricsFile is where an agent's performance reports accumulate.
func (e *Engine) MetricsFile(agent string) string {
	return filepath.Join(e.dataDir, "agent_data", agent, "metrics", "performance_metrics.jsonl")
}

// Save appends the report to the agent's metrics file and returns the
// persisted row.
func (e *Engine) Save(ctx context.Context, report *Report) (*PersistedReport, error) {
	path := e.MetricsFile(report.Agent)
	existing, err := e.readAll(ctx, report.Agent)
	if err != nil {
		return nil, err
	}
	nextID := 0
	for _, row := range existing {
		if row.ID >= nextID {
			nextID = row.ID + 1
		}
	}

	initial := report.PortfolioValues[0].Value
	final := report.PortfolioValues[len(report.PortfolioValues)-1].Value
	changePct := 0.0
	if initial != 0 {
		changePct = round4((final - initial) / initial * 100)
	}

	row := &PersistedReport{
		ID:          nextID,
		Agent:       report.Agent,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		AnalysisPeriod: AnalysisPeriod{
			StartDate:        report.StartDate,
			EndDate:          report.EndDate,
			TotalTradingDays: report.TotalTradingDays,
		},
		PerformanceMetrics: PerformanceMetrics{
			SharpeRatio:      report.SharpeRatio,
			MaxDrawdown:      report.MaxDrawdown,
			MaxDrawdownStart: report.MaxDrawdownStart,
			MaxDrawdownEnd:   report.MaxDrawdownEnd,
			CumulativeReturn: report.CumulativeReturn,
			AnnualizedReturn: report.AnnualizedReturn,
			Volatility:       report.Volatility,
			WinRate:          report.WinRate,
			ProfitLossRatio:  report.ProfitLossRatio,
		},
		PortfolioSummary: PortfolioSummary{
			InitialValue:       round4(initial),
			FinalValue:         round4(final),
			ValueChange:        round4(final - initial),
			ValueChangePercent: changePct,
		},
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create metrics dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open metrics file: %w", err)
	}
	defer f.Close()

	line, err := json.Marshal(row)
	if err != nil {
		return nil, fmt.Errorf("marshal metrics record: %w", err)
	}
	if _, err := fmt.Fprintln(f, string(line)); err != nil {
		return nil, fmt.Errorf("append metrics record: %w", err)
	}

	logger.Info(ctx, "Metrics saved", "agent", report.Agent, "id", nextID, "path", path)
	return row, nil
}

// Latest returns the highest-id report on file, or nil when none exist.
func (e *Engine) Latest(ctx context.Context, agent string) (*PersistedReport, error) {
	rows, err := e.readAll(ctx, agent)
	if err != nil {
		return nil, err
	}
	var latest *PersistedReport
	for i := range rows {
		if latest == nil || rows[i].ID > latest.ID {
			latest = &rows[i]
		}
	}
	return latest, nil
}

// History returns up to limit reports, newest first. limit <= 0 means
// all of them.
func (e *Engine) History(ctx context.Context, agent string, limit int) ([]PersistedReport, error) {
	rows, err := e.readAll(ctx, agent)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (e *Engine) readAll(ctx context.Context, agent string) ([]PersistedReport, error) {
	path := e.MetricsFile(agent)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open metrics file: %w", err)
	}
	defer f.Close()

	var rows []PersistedReport
	skipped := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var row PersistedReport
		if err := json.Unmarshal(line, &row); err != nil {
			skipped++
			continue
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan metrics file: %w", err)
	}
	if skipped > 0 {
		logger.Warn(ctx, "Skipped malformed metrics records", "agent", agent, "count", skipped)
	}
	return rows, nil
}
