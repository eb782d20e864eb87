package noop

import (
	"context"

	"trading-arena/internal/types"
)

// NoopDecider is a fallback decider used when no LLM provider is
// configured.
type NoopDecider struct{}

// NewNoopDecider returns a new instance that always decides DONE.
func NewNoopDecider() *NoopDecider {
	return &NoopDecider{}
}

// Decide implements the Decider interface. It always ends the session
// without trading.
func (d *NoopDecider) Decide(ctx context.Context, state types.AgentState) (types.Decision, error) {
	return types.Decision{
		Action:     types.DecisionDone,
		Reason:     "noop_decider_fallback",
		Confidence: 0.0,
	}, nil
}
