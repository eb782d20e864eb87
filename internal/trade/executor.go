// Package trade validates buy and sell intents against the latest ledger
// snapshot and the price index, appending a new ledger record on
// success. Both operations are all-or-nothing: the append is the final
// step, so any failure leaves the ledger exactly as it was.
package trade

import (
	"context"

	"trading-arena/internal/ledger"
	"trading-arena/internal/logger"
	"trading-arena/internal/prices"
	"trading-arena/internal/types"
)

// Executor applies simulated trades at the session date's opening price.
type Executor struct {
	ledger *ledger.Store
	prices *prices.Index
}

func NewExecutor(l *ledger.Store, p *prices.Index) *Executor {
	return &Executor{ledger: l, prices: p}
}

// Buy purchases amount shares of symbol at the day's opening price. On
// success the new position snapshot is appended to the ledger and
// returned. Business-rule violations come back as typed rejection
// errors; infrastructure failures propagate.
func (e *Executor) Buy(ctx context.Context, sess types.Session, symbol string, amount int) (types.Positions, error) {
	ctx, span := logger.StartSpan(ctx, "trade.Buy")
	defer span.End()

	if amount <= 0 {
		return nil, &InvalidAmountError{Amount: amount}
	}

	current, _, err := e.ledger.LatestAsOf(ctx, sess.Agent, sess.Date)
	if err != nil {
		return nil, err
	}

	price, ok := e.prices.OpenPrices(sess.Date, []string{symbol})[symbol]
	if !ok {
		return nil, &UnknownSymbolError{Symbol: symbol, Date: sess.Date}
	}

	cost := price * float64(amount)
	cashLeft := current.Cash() - cost
	if cashLeft < 0 {
		logger.Warn(ctx, "Buy rejected: insufficient cash",
			"agent", sess.Agent, "date", sess.Date, "symbol", symbol,
			"required", cost, "available", current.Cash())
		return nil, &InsufficientCashError{Symbol: symbol, Required: cost, Available: current.Cash()}
	}

	next := current.Clone()
	next[types.CashKey] = cashLeft
	next[symbol] = next[symbol] + float64(amount)

	action := &types.TradeAction{Action: types.ActionBuy, Symbol: symbol, Amount: amount}
	if _, err := e.ledger.Append(ctx, sess.Agent, sess.Date, action, next); err != nil {
		return nil, err
	}

	logger.Trade(ctx, sess.Agent, sess.Date, types.ActionBuy, symbol, amount, price, cashLeft)
	return next, nil
}

// Sell liquidates amount shares of symbol at the day's opening price.
func (e *Executor) Sell(ctx context.Context, sess types.Session, symbol string, amount int) (types.Positions, error) {
	ctx, span := logger.StartSpan(ctx, "trade.Sell")
	defer span.End()

	if amount <= 0 {
		return nil, &InvalidAmountError{Amount: amount}
	}

	current, _, err := e.ledger.LatestAsOf(ctx, sess.Agent, sess.Date)
	if err != nil {
		return nil, err
	}

	price, ok := e.prices.OpenPrices(sess.Date, []string{symbol})[symbol]
	if !ok {
		return nil, &UnknownSymbolError{Symbol: symbol, Date: sess.Date}
	}

	held := int(current[symbol])
	if held == 0 {
		logger.Warn(ctx, "Sell rejected: no position",
			"agent", sess.Agent, "date", sess.Date, "symbol", symbol)
		return nil, &NoPositionError{Symbol: symbol}
	}
	if held < amount {
		logger.Warn(ctx, "Sell rejected: insufficient shares",
			"agent", sess.Agent, "date", sess.Date, "symbol", symbol,
			"held", held, "requested", amount)
		return nil, &InsufficientSharesError{Symbol: symbol, Held: held, Requested: amount}
	}

	proceeds := price * float64(amount)
	next := current.Clone()
	next[symbol] = next[symbol] - float64(amount)
	next[types.CashKey] = next.Cash() + proceeds

	action := &types.TradeAction{Action: types.ActionSell, Symbol: symbol, Amount: amount}
	if _, err := e.ledger.Append(ctx, sess.Agent, sess.Date, action, next); err != nil {
		return nil, err
	}

	logger.Trade(ctx, sess.Agent, sess.Date, types.ActionSell, symbol, amount, price, next.Cash())
	return next, nil
}
