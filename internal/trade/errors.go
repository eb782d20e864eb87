package trade

import "fmt"

// Rejection errors are business-rule violations returned as values so
// the calling agent loop can react and retry with a different action.
// They never leave the ledger modified.

// UnknownSymbolError means no opening price exists for the symbol on the
// session date.
type UnknownSymbolError struct {
	Symbol string
	Date   string
}

func (e *UnknownSymbolError) Error() string {
	return fmt.Sprintf("no price found for symbol %s on %s", e.Symbol, e.Date)
}

// InsufficientCashError reports a buy whose cost exceeds the balance.
type InsufficientCashError struct {
	Symbol    string
	Required  float64
	Available float64
}

func (e *InsufficientCashError) Error() string {
	return fmt.Sprintf("insufficient cash for %s: need %.2f, have %.2f", e.Symbol, e.Required, e.Available)
}

// NoPositionError reports a sell against a symbol with no holding.
type NoPositionError struct {
	Symbol string
}

func (e *NoPositionError) Error() string {
	return fmt.Sprintf("no position in %s", e.Symbol)
}

// InsufficientSharesError reports a sell larger than the holding.
type InsufficientSharesError struct {
	Symbol    string
	Held      int
	Requested int
}

func (e *InsufficientSharesError) Error() string {
	return fmt.Sprintf("insufficient shares of %s: hold %d, want to sell %d", e.Symbol, e.Held, e.Requested)
}

// InvalidAmountError reports a non-positive trade amount.
type InvalidAmountError struct {
	Amount int
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("amount must be a positive integer, got %d", e.Amount)
}

// IsRejection reports whether err is a business-rule rejection rather
// than an infrastructure failure.
func IsRejection(err error) bool {
	switch err.(type) {
	case *UnknownSymbolError, *InsufficientCashError, *NoPositionError,
		*InsufficientSharesError, *InvalidAmountError:
		return true
	}
	return false
}
