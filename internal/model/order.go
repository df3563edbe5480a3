package model

import (
	"time"

	"sx-futures/internal/types"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID             string            `json:"id"`
	AccountID      string            `json:"account_id"`
	Symbol         string            `json:"symbol"`
	Side           types.OrderSide   `json:"side"`
	Type           types.OrderType   `json:"order_type"`
	Status         types.OrderStatus `json:"status"`
	Price          *decimal.Decimal  `json:"price"`
	StopPrice      *decimal.Decimal  `json:"stop_price"`
	Quantity       decimal.Decimal   `json:"quantity"`
	FilledQuantity decimal.Decimal   `json:"filled_quantity"`
	Leverage       int               `json:"leverage"`
	MarginMode     types.MarginMode  `json:"margin_mode"`
	MarginUsed     decimal.Decimal   `json:"margin_used"`
	AveragePrice   *decimal.Decimal  `json:"average_price"`
	Commission     decimal.Decimal   `json:"commission"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	FilledAt       *time.Time        `json:"filled_at"`
	CancelledAt    *time.Time        `json:"cancelled_at"`
}

func (o Order) RemainingQuantity() decimal.Decimal {
	return o.Quantity.Sub(o.FilledQuantity)
}

// IsActive reports whether the order can still fill or be cancelled.
func (o Order) IsActive() bool {
	switch o.Status {
	case types.OrderStatusPending, types.OrderStatusOpen, types.OrderStatusPartiallyFilled:
		return true
	}
	return false
}
