package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is one open position as reported by the exchange. Size is signed:
// positive for long, negative for short. A closed position simply disappears
// from the next snapshot.
type Position struct {
	Coin             string
	Dex              string // empty for natively listed perps, builder dex name for HIP-3
	Size             decimal.Decimal
	EntryPrice       decimal.Decimal
	MarkPrice        decimal.Decimal
	LiquidationPrice decimal.Decimal
	Leverage         int
	MarginUsed       decimal.Decimal
	UnrealizedPnL    decimal.Decimal
}

func (p *Position) Side() Side {
	if p.Size.IsNegative() {
		return SideShort
	}
	return SideLong
}

// Notional is the absolute position value at mark price.
func (p *Position) Notional() decimal.Decimal {
	return p.Size.Abs().Mul(p.MarkPrice)
}

// AccountSnapshot is a point-in-time read of the account, fetched fresh for
// every risk evaluation and never cached beyond it.
type AccountSnapshot struct {
	Address      string
	Equity       decimal.Decimal
	Withdrawable decimal.Decimal
	MarginUsed   decimal.Decimal
	Positions    []Position
	Taken        time.Time
}

// FindPosition returns the open position for coin, or nil.
func (s *AccountSnapshot) FindPosition(coin string) *Position {
	for i := range s.Positions {
		if s.Positions[i].Coin == coin {
			return &s.Positions[i]
		}
	}
	return nil
}

// OpenCount counts open positions across all dexes.
func (s *AccountSnapshot) OpenCount() int {
	return len(s.Positions)
}

// TotalNotional sums absolute position values at mark price.
func (s *AccountSnapshot) TotalNotional() decimal.Decimal {
	total := decimal.Zero
	for i := range s.Positions {
		total = total.Add(s.Positions[i].Notional())
	}
	return total
}
