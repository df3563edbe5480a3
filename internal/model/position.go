package model

import (
	"time"

	"sx-futures/internal/types"

	"github.com/shopspring/decimal"
)

// Position is a directional exposure to one symbol. At most one open
// position may exist per (account, symbol, side); stores enforce this over
// the open subset.
type Position struct {
	ID               string             `json:"id"`
	AccountID        string             `json:"account_id"`
	Symbol           string             `json:"symbol"`
	Side             types.PositionSide `json:"side"`
	Quantity         decimal.Decimal    `json:"quantity"`
	EntryPrice       decimal.Decimal    `json:"entry_price"`
	Leverage         int                `json:"leverage"`
	MarginMode       types.MarginMode   `json:"margin_mode"`
	Margin           decimal.Decimal    `json:"margin"`
	LiquidationPrice decimal.Decimal    `json:"liquidation_price"`
	TakeProfit       *decimal.Decimal   `json:"take_profit"`
	StopLoss         *decimal.Decimal   `json:"stop_loss"`
	RealizedPnL      decimal.Decimal    `json:"realized_pnl"`
	IsOpen           bool               `json:"is_open"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
	ClosedAt         *time.Time         `json:"closed_at"`
}

// UnrealizedPnL marks the open quantity against the given price.
func (p Position) UnrealizedPnL(markPrice decimal.Decimal) decimal.Decimal {
	if p.Side == types.PositionSideLong {
		return markPrice.Sub(p.EntryPrice).Mul(p.Quantity)
	}
	return p.EntryPrice.Sub(markPrice).Mul(p.Quantity)
}

// ROE is the unrealized return on the position's margin, in percent.
func (p Position) ROE(markPrice decimal.Decimal) decimal.Decimal {
	if p.Margin.IsZero() {
		return decimal.Zero
	}
	return p.UnrealizedPnL(markPrice).Div(p.Margin).Mul(decimal.NewFromInt(100))
}
