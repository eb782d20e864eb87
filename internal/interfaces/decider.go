package interfaces

import (
	"context"

	"trading-arena/internal/types"
)

// Decider produces the next trading decision for an agent given the
// current session state.
type Decider interface {
	Decide(ctx context.Context, state types.AgentState) (types.Decision, error)
}
