package model

import (
	"time"

	"sx-futures/internal/types"

	"github.com/shopspring/decimal"
)

// Trade is an immutable execution record. Order and position references are
// weak: the opening trade of a brand-new position carries no position id
// because the record captures the position that existed before the fill.
type Trade struct {
	ID              string          `json:"id"`
	AccountID       string          `json:"account_id"`
	OrderID         *string         `json:"order_id"`
	PositionID      *string         `json:"position_id"`
	Symbol          string          `json:"symbol"`
	Side            types.OrderSide `json:"side"`
	Price           decimal.Decimal `json:"price"`
	Quantity        decimal.Decimal `json:"quantity"`
	Commission      decimal.Decimal `json:"commission"`
	CommissionAsset string          `json:"commission_asset"`
	RealizedPnL     decimal.Decimal `json:"realized_pnl"`
	ExecutedAt      time.Time       `json:"executed_at"`
}

// Value is the trade's notional in quote currency.
func (t Trade) Value() decimal.Decimal {
	return t.Price.Mul(t.Quantity)
}
