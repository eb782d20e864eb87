// Package agent runs the daily trading session loop for one configured
// agent: build state, ask the decider, execute trades, and bridge the
// day with a no-trade record when nothing fills.
package agent

import (
	"context"
	"fmt"
	"time"

	"trading-arena/internal/calendar"
	"trading-arena/internal/interfaces"
	"trading-arena/internal/ledger"
	"trading-arena/internal/logger"
	"trading-arena/internal/news"
	"trading-arena/internal/prices"
	"trading-arena/internal/store"
	"trading-arena/internal/trade"
	"trading-arena/internal/types"
)

type Agent struct {
	cfg     *store.Config
	profile store.AgentConfig
	ledger  *ledger.Store
	prices  *prices.Index
	exec    *trade.Executor
	decider interfaces.Decider
	news    *news.Service
}

func New(cfg *store.Config, profile store.AgentConfig, l *ledger.Store, p *prices.Index, exec *trade.Executor, decider interfaces.Decider, newsSvc *news.Service) *Agent {
	return &Agent{
		cfg:     cfg,
		profile: profile,
		ledger:  l,
		prices:  p,
		exec:    exec,
		decider: decider,
		news:    newsSvc,
	}
}

func (a *Agent) Signature() string { return a.profile.Signature }

// Register writes the zero-position bootstrap record unless the agent
// already has a ledger.
func (a *Agent) Register(ctx context.Context) error {
	return a.ledger.Bootstrap(ctx, a.profile.Signature, a.cfg.Agent.InitialCash, a.cfg.Universe, a.cfg.DateRange.InitDate)
}

// TradingDates returns the business days this agent still has to trade.
// An agent with session history resumes from the day after its last
// record; a freshly bootstrapped agent starts at the configured init
// date. The bootstrap snapshot carries no action and does not count as
// a completed session.
func (a *Agent) TradingDates(ctx context.Context) ([]string, error) {
	last, ok, err := a.ledger.LastRecord(ctx, a.profile.Signature)
	if err != nil {
		return nil, err
	}
	start := calendar.PreviousBusinessDay(a.cfg.DateRange.InitDate)
	if ok && last.Action != nil && last.Date >= a.cfg.DateRange.InitDate {
		start = last.Date
	}
	return calendar.BusinessDaysBetween(start, a.cfg.DateRange.EndDate), nil
}

// RunDateRange trades every pending date in order, retrying a failed
// session with a linear backoff before giving up on the whole run.
func (a *Agent) RunDateRange(ctx context.Context) error {
	dates, err := a.TradingDates(ctx)
	if err != nil {
		return err
	}
	if len(dates) == 0 {
		logger.Info(ctx, "Agent is up to date", "agent", a.profile.Signature)
		return nil
	}
	logger.Info(ctx, "Starting trading run", "agent", a.profile.Signature,
		"from", dates[0], "to", dates[len(dates)-1], "days", len(dates))

	baseDelay := time.Duration(a.cfg.Agent.BaseDelaySec * float64(time.Second))
	for _, date := range dates {
		var lastErr error
		for attempt := 1; attempt <= a.cfg.Agent.MaxRetries; attempt++ {
			result, err := a.RunSession(ctx, date)
			if err == nil {
				logger.Info(ctx, "Session completed", "agent", a.profile.Signature, "date", date,
					"steps", result.Steps, "trades", result.Trades, "bridge", result.Bridge)
				lastErr = nil
				break
			}
			lastErr = err
			logger.Warn(ctx, "Session attempt failed", "agent", a.profile.Signature,
				"date", date, "attempt", attempt, "error", err.Error())
			if attempt < a.cfg.Agent.MaxRetries {
				time.Sleep(baseDelay * time.Duration(attempt))
			}
		}
		if lastErr != nil {
			return fmt.Errorf("session %s on %s: %w", a.profile.Signature, date, lastErr)
		}
	}
	return nil
}

// RunSession executes one trading day: the decider is consulted up to
// MaxSteps times, each BUY or SELL goes through the executor, and typed
// rejections are fed back as tool results instead of failing the day.
func (a *Agent) RunSession(ctx context.Context, date string) (*types.SessionResult, error) {
	ctx, span := logger.StartSpan(ctx, "agent-session")
	defer span.End()

	sess := types.Session{Agent: a.profile.Signature, Date: date}
	transcript, err := newTranscript(a.ledger.DataDir(), sess)
	if err != nil {
		return nil, err
	}
	defer transcript.Close()

	state, err := a.buildState(ctx, sess)
	if err != nil {
		return nil, err
	}

	result := &types.SessionResult{Agent: sess.Agent, Date: date}
	for step := 1; step <= a.cfg.Agent.MaxSteps; step++ {
		state.Step = step

		decision, err := a.decider.Decide(ctx, *state)
		if err != nil {
			return nil, fmt.Errorf("decider step %d: %w", step, err)
		}
		result.Steps = step
		logger.Decision(ctx, sess.Agent, date, decision.Action, decision.Symbol, decision.Confidence, decision.Reason)
		transcript.Record(ctx, step, "decision", decision)

		if decision.Action == types.DecisionDone {
			break
		}

		positions, err := a.execute(ctx, sess, decision)
		if err != nil {
			if !trade.IsRejection(err) {
				return nil, err
			}
			feedback := fmt.Sprintf("%s %d %s rejected: %s", decision.Action, decision.Qty, decision.Symbol, err.Error())
			state.ToolResults = append(state.ToolResults, feedback)
			transcript.Record(ctx, step, "rejection", map[string]string{"error": err.Error()})
			continue
		}

		result.Trades++
		state.Positions = positions
		state.Cash = positions.Cash()
		state.ToolResults = append(state.ToolResults,
			fmt.Sprintf("%s %d %s filled, cash %.2f", decision.Action, decision.Qty, decision.Symbol, state.Cash))
		transcript.Record(ctx, step, "fill", positions)
	}

	if result.Trades == 0 {
		if err := a.ledger.BridgeNoTrade(ctx, sess.Agent, date); err != nil {
			return nil, err
		}
		result.Bridge = true
		transcript.Record(ctx, result.Steps, "no_trade", nil)
	}
	return result, nil
}

func (a *Agent) execute(ctx context.Context, sess types.Session, decision types.Decision) (types.Positions, error) {
	switch decision.Action {
	case types.DecisionBuy:
		return a.exec.Buy(ctx, sess, decision.Symbol, decision.Qty)
	case types.DecisionSell:
		return a.exec.Sell(ctx, sess, decision.Symbol, decision.Qty)
	default:
		return nil, fmt.Errorf("unknown decision action %q", decision.Action)
	}
}

// buildState assembles the morning snapshot the decider sees: current
// positions, today's opens, yesterday's per-holding profit, and recent
// headlines for held symbols.
func (a *Agent) buildState(ctx context.Context, sess types.Session) (*types.AgentState, error) {
	positions, _, err := a.ledger.LatestAsOf(ctx, sess.Agent, sess.Date)
	if err != nil {
		return nil, err
	}

	state := &types.AgentState{
		Agent:      sess.Agent,
		Date:       sess.Date,
		MaxSteps:   a.cfg.Agent.MaxSteps,
		Positions:  positions,
		Cash:       positions.Cash(),
		OpenPrices: a.prices.OpenPrices(sess.Date, a.cfg.Universe),
	}

	prevDay := calendar.PreviousBusinessDay(sess.Date)
	opens, closes := a.prices.OpenAndClose(prevDay, a.cfg.Universe)
	profit := map[string]float64{}
	for sym, shares := range positions {
		if sym == types.CashKey || shares <= 0 {
			continue
		}
		open, hasOpen := opens[sym]
		close, hasClose := closes[sym]
		if hasOpen && hasClose {
			profit[sym] = (close - open) * shares
		}
	}
	if len(profit) > 0 {
		state.YesterdayProfit = profit
	}

	if a.news != nil {
		for sym, shares := range positions {
			if sym == types.CashKey || shares <= 0 {
				continue
			}
			state.Headlines = append(state.Headlines, a.news.Headlines(ctx, sym)...)
			if len(state.Headlines) >= a.cfg.News.MaxArticles {
				state.Headlines = state.Headlines[:a.cfg.News.MaxArticles]
				break
			}
		}
	}

	return state, nil
}
