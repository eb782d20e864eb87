// Package metrics replays an agent's position ledger against the price
// index to build a daily valuation series and derive return and risk
// statistics from it.
package metrics

import (
	"context"
	"fmt"
	"math"
	"sort"

	"trading-arena/internal/calendar"
	"trading-arena/internal/ledger"
	"trading-arena/internal/logger"
	"trading-arena/internal/prices"
	"trading-arena/internal/types"
)

// Annualization assumes 252 trading days per year; the risk-free rate is
// the 2% the arena has always benchmarked against.
const (
	tradingDaysPerYear  = 252
	DefaultRiskFreeRate = 0.02
)

// DailyValue is one point of the portfolio valuation series.
type DailyValue struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// Report bundles every statistic computed for one analysis run.
type Report struct {
	Agent            string       `json:"agent"`
	StartDate        string       `json:"start_date"`
	EndDate          string       `json:"end_date"`
	TotalTradingDays int          `json:"total_trading_days"`
	PortfolioValues  []DailyValue `json:"portfolio_values"`
	DailyReturns     []float64    `json:"daily_returns"`
	SharpeRatio      float64      `json:"sharpe_ratio"`
	MaxDrawdown      float64      `json:"max_drawdown"`
	MaxDrawdownStart string       `json:"max_drawdown_start"`
	MaxDrawdownEnd   string       `json:"max_drawdown_end"`
	CumulativeReturn float64      `json:"cumulative_return"`
	AnnualizedReturn float64      `json:"annualized_return"`
	Volatility       float64      `json:"volatility"`
	WinRate          float64      `json:"win_rate"`
	ProfitLossRatio  float64      `json:"profit_loss_ratio"`
}

// Engine computes reports for agents stored in one data directory.
type Engine struct {
	ledger   *ledger.Store
	prices   *prices.Index
	universe []string
	dataDir  string
}

func NewEngine(l *ledger.Store, p *prices.Index, universe []string, dataDir string) *Engine {
	return &Engine{ledger: l, prices: p, universe: universe, dataDir: dataDir}
}

// DailyPortfolioValues builds the valuation series between start and end
// inclusive. Only dates that have at least one ledger record produce a
// point: the highest-id snapshot of the date, valued at that date's
// closing prices (a missing close contributes nothing) plus cash. Gaps
// are not interpolated.
func (e *Engine) DailyPortfolioValues(ctx context.Context, agent, start, end string) ([]DailyValue, error) {
	records, err := e.ledger.Records(ctx, agent)
	if err != nil {
		return nil, err
	}

	latestByDate := map[string]types.PositionRecord{}
	for _, rec := range records {
		if rec.Date == "" || (start != "" && rec.Date < start) || (end != "" && rec.Date > end) {
			continue
		}
		if prev, ok := latestByDate[rec.Date]; !ok || rec.ID > prev.ID {
			latestByDate[rec.Date] = rec
		}
	}

	values := make([]DailyValue, 0, len(latestByDate))
	for date, rec := range latestByDate {
		total := rec.Positions.Cash()
		for sym, shares := range rec.Positions {
			if sym == types.CashKey || shares <= 0 {
				continue
			}
			if close, ok := e.prices.ClosePrice(sym, date); ok {
				total += shares * close
			}
		}
		values = append(values, DailyValue{Date: date, Value: total})
	}
	sort.Slice(values, func(i, j int) bool { return values[i].Date < values[j].Date })
	return values, nil
}

// DailyReturns is the simple percentage change between consecutive
// values. Fewer than two values yield an empty series.
func DailyReturns(values []DailyValue) []float64 {
	if len(values) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		prev := values[i-1].Value
		if prev > 0 {
			returns = append(returns, (values[i].Value-prev)/prev)
		}
	}
	return returns
}

// SharpeRatio annualizes the mean daily return and the sample standard
// deviation, then divides the excess return by the volatility. Zero
// volatility (or fewer than two returns) yields 0 rather than a division
// blow-up.
func SharpeRatio(returns []float64, riskFreeRate float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	annualizedReturn := mean(returns) * tradingDaysPerYear
	annualizedVol := sampleStdDev(returns) * math.Sqrt(tradingDaysPerYear)
	if annualizedVol == 0 {
		return 0
	}
	return (annualizedReturn - riskFreeRate) / annualizedVol
}

// MaxDrawdown runs the peak-tracking algorithm over the value series and
// returns the worst peak-to-trough fraction with its date pair.
func MaxDrawdown(values []DailyValue) (drawdown float64, peakDate, troughDate string) {
	if len(values) == 0 {
		return 0, "", ""
	}
	peak := values[0].Value
	currentPeakDate := values[0].Date
	for _, dv := range values {
		if dv.Value > peak {
			peak = dv.Value
			currentPeakDate = dv.Date
		}
		dd := (peak - dv.Value) / peak
		if dd > drawdown {
			drawdown = dd
			peakDate = currentPeakDate
			troughDate = dv.Date
		}
	}
	return drawdown, peakDate, troughDate
}

// CumulativeReturn is the total fractional change from the first to the
// last value.
func CumulativeReturn(values []DailyValue) float64 {
	if len(values) == 0 {
		return 0
	}
	initial := values[0].Value
	if initial == 0 {
		return 0
	}
	return (values[len(values)-1].Value - initial) / initial
}

// AnnualizedReturn compounds the cumulative return over the actual
// calendar days elapsed: (1+total)^(365/days) - 1.
func AnnualizedReturn(values []DailyValue) float64 {
	if len(values) == 0 {
		return 0
	}
	initial := values[0].Value
	if initial == 0 {
		return 0
	}
	days := calendar.DaysBetween(values[0].Date, values[len(values)-1].Date)
	if days == 0 {
		return 0
	}
	total := (values[len(values)-1].Value - initial) / initial
	return math.Pow(1+total, 365/float64(days)) - 1
}

// Volatility is the annualized sample standard deviation of daily
// returns.
func Volatility(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	return sampleStdDev(returns) * math.Sqrt(tradingDaysPerYear)
}

// WinRate is the fraction of strictly positive daily returns.
func WinRate(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	positive := 0
	for _, r := range returns {
		if r > 0 {
			positive++
		}
	}
	return float64(positive) / float64(len(returns))
}

// ProfitLossRatio divides the mean positive return by the magnitude of
// the mean negative return; 0 when either side is empty.
func ProfitLossRatio(returns []float64) float64 {
	var pos, neg []float64
	for _, r := range returns {
		if r > 0 {
			pos = append(pos, r)
		} else if r < 0 {
			neg = append(neg, r)
		}
	}
	if len(pos) == 0 || len(neg) == 0 {
		return 0
	}
	avgLoss := math.Abs(mean(neg))
	if avgLoss == 0 {
		return 0
	}
	return mean(pos) / avgLoss
}

// Compute builds a full report for the agent. Empty start/end default to
// the ledger's observed date range.
func (e *Engine) Compute(ctx context.Context, agent, start, end string) (*Report, error) {
	ctx, span := logger.StartSpan(ctx, "metrics.Compute")
	defer span.End()

	if start == "" || end == "" {
		earliest, latest, err := e.ledger.DateRange(ctx, agent)
		if err != nil {
			return nil, err
		}
		if earliest == "" {
			return nil, fmt.Errorf("no ledger history for agent %s", agent)
		}
		if start == "" {
			start = earliest
		}
		if end == "" {
			end = latest
		}
	}

	values, err := e.DailyPortfolioValues(ctx, agent, start, end)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("no portfolio values for agent %s between %s and %s", agent, start, end)
	}

	returns := DailyReturns(values)
	dd, ddStart, ddEnd := MaxDrawdown(values)

	report := &Report{
		Agent:            agent,
		StartDate:        values[0].Date,
		EndDate:          values[len(values)-1].Date,
		TotalTradingDays: len(values),
		PortfolioValues:  values,
		DailyReturns:     returns,
		SharpeRatio:      round4(SharpeRatio(returns, DefaultRiskFreeRate)),
		MaxDrawdown:      round4(dd),
		MaxDrawdownStart: ddStart,
		MaxDrawdownEnd:   ddEnd,
		CumulativeReturn: round4(CumulativeReturn(values)),
		AnnualizedReturn: round4(AnnualizedReturn(values)),
		Volatility:       round4(Volatility(returns)),
		WinRate:          round4(WinRate(returns)),
		ProfitLossRatio:  round4(ProfitLossRatio(returns)),
	}

	logger.Info(ctx, "Metrics computed", "agent", agent,
		"start", report.StartDate, "end", report.EndDate,
		"trading_days", report.TotalTradingDays,
		"cumulative_return", report.CumulativeReturn,
		"sharpe", report.SharpeRatio)
	return report, nil
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// sampleStdDev uses the n-1 denominator.
func sampleStdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	sum := 0.0
	for _, x := range xs {
		d := x - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(xs)-1))
}

func round4(x float64) float64 {
	return math.Round(x*10000) / 10000
}
