package types

type OrderSide string

type OrderType string

type OrderStatus string

type PositionSide string

type MarginMode string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

const (
	OrderTypeLimit      OrderType = "limit"
	OrderTypeMarket     OrderType = "market"
	OrderTypeStopLimit  OrderType = "stop_limit"
	OrderTypeStopMarket OrderType = "stop_market"
	OrderTypeTakeProfit OrderType = "take_profit"
	OrderTypeStopLoss   OrderType = "stop_loss"
)

const (
	OrderStatusPending         OrderStatus = "pending"
	OrderStatusOpen            OrderStatus = "open"
	OrderStatusPartiallyFilled OrderStatus = "partially_filled"
	OrderStatusFilled          OrderStatus = "filled"
	OrderStatusCancelled       OrderStatus = "cancelled"
	OrderStatusRejected        OrderStatus = "rejected"
)

const (
	PositionSideLong  PositionSide = "long"
	PositionSideShort PositionSide = "short"
)

const (
	MarginModeCross    MarginMode = "cross"
	MarginModeIsolated MarginMode = "isolated"
)

func (s OrderSide) Valid() bool {
	return s == OrderSideBuy || s == OrderSideSell
}

func (t OrderType) Valid() bool {
	switch t {
	case OrderTypeLimit, OrderTypeMarket, OrderTypeStopLimit, OrderTypeStopMarket, OrderTypeTakeProfit, OrderTypeStopLoss:
		return true
	}
	return false
}

// RequiresPrice reports whether the order type cannot be submitted without a limit price.
func (t OrderType) RequiresPrice() bool {
	return t == OrderTypeLimit || t == OrderTypeStopLimit
}

// RequiresStopPrice reports whether the order type needs a trigger price.
func (t OrderType) RequiresStopPrice() bool {
	switch t {
	case OrderTypeStopLimit, OrderTypeStopMarket, OrderTypeTakeProfit, OrderTypeStopLoss:
		return true
	}
	return false
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusOpen, OrderStatusPartiallyFilled, OrderStatusFilled, OrderStatusCancelled, OrderStatusRejected:
		return true
	}
	return false
}

func (m MarginMode) Valid() bool {
	return m == MarginModeCross || m == MarginModeIsolated
}
