package types

// CashKey is the reserved positions key holding the cash balance.
const CashKey = "CASH"

// Positions maps ticker symbols (plus CashKey) to held quantity.
// Stock quantities are whole shares; CASH is a float balance.
type Positions map[string]float64

// Clone returns a copy safe to mutate.
func (p Positions) Clone() Positions {
	out := make(Positions, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Cash returns the cash balance, zero when absent.
func (p Positions) Cash() float64 {
	return p[CashKey]
}

// Trade actions recorded in the position ledger.
const (
	ActionBuy     = "buy"
	ActionSell    = "sell"
	ActionNoTrade = "no_trade"
)

// TradeAction tags a ledger record with the mutation that produced it.
type TradeAction struct {
	Action string `json:"action"`
	Symbol string `json:"symbol"`
	Amount int    `json:"amount"`
}

// PositionRecord is one line of an agent's position ledger. Ids are
// strictly increasing in append order, starting at 0 for the bootstrap
// record (which carries no action).
type PositionRecord struct {
	Date      string       `json:"date"`
	ID        int          `json:"id"`
	Action    *TradeAction `json:"this_action,omitempty"`
	Positions Positions    `json:"positions"`
}

// Bar holds one day of OHLCV data for a symbol. The most recent date in
// the dataset carries only Open; the remaining fields read as zero with
// the Has* flags unset.
type Bar struct {
	Open, High, Low, Close float64
	Volume                 float64
	HasOpen, HasClose      bool
}

// Session identifies the agent and trading date a tool call executes
// under. It is supplied explicitly by the orchestrator rather than read
// from ambient state so agents can run concurrently.
type Session struct {
	Agent string
	Date  string
}

// Decider actions returned by an LLM (or noop) decision step.
const (
	DecisionBuy  = "BUY"
	DecisionSell = "SELL"
	DecisionDone = "DONE"
)

// Decision is one step of an agent's daily session.
type Decision struct {
	Action     string  `json:"action"`
	Symbol     string  `json:"symbol,omitempty"`
	Qty        int     `json:"qty,omitempty"`
	Reason     string  `json:"reason"`
	Confidence float64 `json:"confidence"`
}

// AgentState is the snapshot handed to a decider on each session step.
type AgentState struct {
	Agent           string             `json:"agent"`
	Date            string             `json:"date"`
	Step            int                `json:"step"`
	MaxSteps        int                `json:"max_steps"`
	Positions       Positions          `json:"positions"`
	Cash            float64            `json:"cash"`
	OpenPrices      map[string]float64 `json:"open_prices"`
	YesterdayProfit map[string]float64 `json:"yesterday_profit,omitempty"`
	Headlines       []NewsArticle      `json:"headlines,omitempty"`
	ToolResults     []string           `json:"tool_results,omitempty"`
}

// NewsArticle is a scraped headline used as decision context.
type NewsArticle struct {
	Source      string `json:"source"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Summary     string `json:"summary,omitempty"`
	Symbol      string `json:"symbol,omitempty"`
	PublishedAt string `json:"published_at,omitempty"`
}

// SessionResult summarizes one agent trading day.
type SessionResult struct {
	Agent  string `json:"agent"`
	Date   string `json:"date"`
	Steps  int    `json:"steps"`
	Trades int    `json:"trades"`
	Bridge bool   `json:"bridged"` // true when the day ended with a no-trade record
}
