package metrics

import (
	"fmt"
	"io"
)

// Print writes a human-readable rendering of a persisted report.
func Print(w io.Writer, row *PersistedReport) {
	fmt.Fprintf(w, "Performance report #%d for %s\n", row.ID, row.Agent)
	fmt.Fprintf(w, "  Period:            %s to %s (%d trading days)\n",
		row.AnalysisPeriod.StartDate, row.AnalysisPeriod.EndDate, row.AnalysisPeriod.TotalTradingDays)
	fmt.Fprintf(w, "  Initial value:     %.2f\n", row.PortfolioSummary.InitialValue)
	fmt.Fprintf(w, "  Final value:       %.2f\n", row.PortfolioSummary.FinalValue)
	fmt.Fprintf(w, "  Change:            %.2f (%.2f%%)\n",
		row.PortfolioSummary.ValueChange, row.PortfolioSummary.ValueChangePercent)
	fmt.Fprintf(w, "  Cumulative return: %.4f\n", row.PerformanceMetrics.CumulativeReturn)
	fmt.Fprintf(w, "  Annualized return: %.4f\n", row.PerformanceMetrics.AnnualizedReturn)
	fmt.Fprintf(w, "  Sharpe ratio:      %.4f\n", row.PerformanceMetrics.SharpeRatio)
	fmt.Fprintf(w, "  Volatility:        %.4f\n", row.PerformanceMetrics.Volatility)
	if row.PerformanceMetrics.MaxDrawdownStart != "" {
		fmt.Fprintf(w, "  Max drawdown:      %.4f (%s to %s)\n",
			row.PerformanceMetrics.MaxDrawdown,
			row.PerformanceMetrics.MaxDrawdownStart, row.PerformanceMetrics.MaxDrawdownEnd)
	} else {
		fmt.Fprintf(w, "  Max drawdown:      %.4f\n", row.PerformanceMetrics.MaxDrawdown)
	}
	fmt.Fprintf(w, "  Win rate:          %.4f\n", row.PerformanceMetrics.WinRate)
	fmt.Fprintf(w, "  Profit/loss ratio: %.4f\n", row.PerformanceMetrics.ProfitLossRatio)
}
