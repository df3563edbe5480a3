// Package engine implements order execution and position accounting for the
// simulated futures backend: it reserves margin on submission, fills orders
// against a supplied price, opens/merges/reduces positions, realizes PnL and
// commission, and keeps the wallet consistent. Every mutating operation runs
// as one atomic transaction over a single account's state.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"sx-futures/internal/model"
	"sx-futures/internal/storage"
	"sx-futures/internal/types"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

// Futures fee schedule. The maker rate exists for maker-side fills, but every
// simulated fill executes as taker against the reference price.
var (
	TakerFee = decimal.NewFromFloat(0.0004)
	MakerFee = decimal.NewFromFloat(0.0002)
)

// liqBuffer scales the price move that exhausts a position's margin. The
// resulting liquidation price is an approximation, not an exchange-grade
// maintenance-margin formula.
var liqBuffer = decimal.NewFromFloat(0.9)

var one = decimal.NewFromInt(1)

// ErrInvalidState is returned for operations against orders or positions
// whose lifecycle no longer permits them, e.g. cancelling a filled order.
var ErrInvalidState = errors.New("invalid state")

// ValidationError marks a malformed or inconsistent request. No state is
// mutated when one is returned.
type ValidationError struct {
	Msg string
}

func (e ValidationError) Error() string { return e.Msg }

func validationf(format string, args ...any) error {
	return ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// PriceSource supplies the reference execution price for a symbol. The engine
// calls it before a transaction opens, never from within one.
type PriceSource interface {
	CurrentPrice(symbol string) (decimal.Decimal, error)
}

type Engine struct {
	store           storage.Store
	prices          PriceSource
	startingBalance decimal.Decimal
}

func New(store storage.Store, prices PriceSource, startingBalance decimal.Decimal) *Engine {
	if !startingBalance.GreaterThan(decimal.Zero) {
		startingBalance = model.DefaultStartingBalance
	}
	return &Engine{store: store, prices: prices, startingBalance: startingBalance}
}

// OrderSpec is the validated order request the API boundary hands to the
// engine.
type OrderSpec struct {
	Symbol     string
	Side       types.OrderSide
	Type       types.OrderType
	Price      *decimal.Decimal
	StopPrice  *decimal.Decimal
	Quantity   decimal.Decimal
	Leverage   int
	MarginMode types.MarginMode
}

func (s *OrderSpec) validate() error {
	s.Symbol = strings.ToUpper(strings.TrimSpace(s.Symbol))
	if s.Symbol == "" {
		return validationf("symbol required")
	}
	if !s.Side.Valid() {
		return validationf("invalid side %q", s.Side)
	}
	if !s.Type.Valid() {
		return validationf("invalid order type %q", s.Type)
	}
	if !s.Quantity.GreaterThan(decimal.Zero) {
		return validationf("quantity must be positive")
	}
	if s.Type.RequiresPrice() && s.Price == nil {
		return validationf("price required for %s order", s.Type)
	}
	if s.Price != nil && !s.Price.GreaterThan(decimal.Zero) {
		return validationf("price must be positive")
	}
	if s.Type.RequiresStopPrice() && s.StopPrice == nil {
		return validationf("stop_price required for %s order", s.Type)
	}
	if s.StopPrice != nil && !s.StopPrice.GreaterThan(decimal.Zero) {
		return validationf("stop_price must be positive")
	}
	if s.Leverage == 0 {
		s.Leverage = 10
	}
	if s.Leverage < 1 {
		return validationf("leverage must be at least 1")
	}
	if s.MarginMode == "" {
		s.MarginMode = types.MarginModeCross
	}
	if !s.MarginMode.Valid() {
		return validationf("invalid margin_mode %q", s.MarginMode)
	}
	return nil
}

// SubmitOrder validates the spec, reserves margin and creates the order.
// Market orders fill synchronously at the reference price; everything else
// parks as open awaiting a trigger that this simulation never fires.
func (e *Engine) SubmitOrder(ctx context.Context, accountID string, spec OrderSpec) (model.Order, error) {
	if err := spec.validate(); err != nil {
		return model.Order{}, err
	}

	execPrice := decimal.Zero
	if spec.Price != nil {
		execPrice = *spec.Price
	} else {
		p, err := e.prices.CurrentPrice(spec.Symbol)
		if err != nil {
			return model.Order{}, fmt.Errorf("price for %s: %w", spec.Symbol, err)
		}
		execPrice = p
	}

	notional := spec.Quantity.Mul(execPrice)
	requiredMargin := notional.Div(decimal.NewFromInt(int64(spec.Leverage)))

	var out model.Order
	err := e.store.Update(ctx, accountID, func(tx storage.Tx) error {
		wallet, err := tx.Wallet()
		if err != nil {
			return err
		}
		if err := wallet.Reserve(requiredMargin); err != nil {
			return err
		}

		now := time.Now().UTC()
		order := model.Order{
			ID:             newID(),
			AccountID:      accountID,
			Symbol:         spec.Symbol,
			Side:           spec.Side,
			Type:           spec.Type,
			Status:         types.OrderStatusPending,
			Price:          spec.Price,
			StopPrice:      spec.StopPrice,
			Quantity:       spec.Quantity,
			FilledQuantity: decimal.Zero,
			Leverage:       spec.Leverage,
			MarginMode:     spec.MarginMode,
			MarginUsed:     requiredMargin,
			Commission:     decimal.Zero,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := tx.CreateOrder(order); err != nil {
			return err
		}

		if spec.Type == types.OrderTypeMarket {
			order, err = e.fill(tx, order, execPrice, &wallet)
			if err != nil {
				return err
			}
		} else {
			order.Status = types.OrderStatusOpen
			if err := tx.SaveOrder(order); err != nil {
				return err
			}
		}

		wallet.UpdatedAt = time.Now().UTC()
		if err := tx.SaveWallet(wallet); err != nil {
			return err
		}
		out = order
		return nil
	})
	return out, err
}

// fill executes an order in full at execPrice: marks it filled, applies the
// position transition, records the trade and charges commission. Wallet
// mutations accumulate on the caller's copy; the caller saves it.
func (e *Engine) fill(tx storage.Tx, order model.Order, execPrice decimal.Decimal, wallet *model.Wallet) (model.Order, error) {
	notional := order.Quantity.Mul(execPrice)
	commission := notional.Mul(TakerFee)
	now := time.Now().UTC()

	order.Status = types.OrderStatusFilled
	order.FilledQuantity = order.Quantity
	order.AveragePrice = &execPrice
	order.Commission = commission
	order.FilledAt = &now
	order.UpdatedAt = now
	if err := tx.SaveOrder(order); err != nil {
		return order, err
	}

	// The trade records the position as it stood before this fill, so the
	// opening trade of a new position carries no position reference.
	var positionID *string
	existing, err := tx.OpenPosition(order.Symbol)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		if err := e.openPosition(tx, order, execPrice, now); err != nil {
			return order, err
		}
	case err != nil:
		return order, err
	default:
		id := existing.ID
		positionID = &id
		if existing.Side == positionSideFor(order.Side) {
			if err := addToPosition(tx, existing, order, execPrice, now); err != nil {
				return order, err
			}
		} else {
			if err := reducePosition(tx, existing, order, execPrice, wallet, now); err != nil {
				return order, err
			}
		}
	}

	orderID := order.ID
	trade := model.Trade{
		ID:              newID(),
		AccountID:       order.AccountID,
		OrderID:         &orderID,
		PositionID:      positionID,
		Symbol:          order.Symbol,
		Side:            order.Side,
		Price:           execPrice,
		Quantity:        order.Quantity,
		Commission:      commission,
		CommissionAsset: "USDT",
		RealizedPnL:     decimal.Zero,
		ExecutedAt:      now,
	}
	if err := tx.CreateTrade(trade); err != nil {
		return order, err
	}

	wallet.DeductCommission(commission)
	return order, nil
}

func (e *Engine) openPosition(tx storage.Tx, order model.Order, execPrice decimal.Decimal, now time.Time) error {
	side := positionSideFor(order.Side)
	notional := order.Quantity.Mul(execPrice)
	margin := notional.Div(decimal.NewFromInt(int64(order.Leverage)))
	pos := model.Position{
		ID:               newID(),
		AccountID:        order.AccountID,
		Symbol:           order.Symbol,
		Side:             side,
		Quantity:         order.Quantity,
		EntryPrice:       execPrice,
		Leverage:         order.Leverage,
		MarginMode:       order.MarginMode,
		Margin:           margin,
		LiquidationPrice: liquidationPrice(side, execPrice, order.Leverage),
		RealizedPnL:      decimal.Zero,
		IsOpen:           true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	return tx.CreatePosition(pos)
}

func addToPosition(tx storage.Tx, pos model.Position, order model.Order, execPrice decimal.Decimal, now time.Time) error {
	totalValue := pos.EntryPrice.Mul(pos.Quantity).Add(execPrice.Mul(order.Quantity))
	pos.Quantity = pos.Quantity.Add(order.Quantity)
	pos.EntryPrice = totalValue.Div(pos.Quantity)
	pos.Margin = pos.Margin.Add(order.MarginUsed)
	pos.LiquidationPrice = liquidationPrice(pos.Side, pos.EntryPrice, pos.Leverage)
	pos.UpdatedAt = now
	return tx.SavePosition(pos)
}

// reducePosition applies an opposite-direction fill against an open position.
// Margin mode is deliberately ignored here: isolated positions take the same
// unclamped loss path as cross.
func reducePosition(tx storage.Tx, pos model.Position, order model.Order, execPrice decimal.Decimal, wallet *model.Wallet, now time.Time) error {
	closeQty := order.Quantity
	if pos.Quantity.LessThan(closeQty) {
		closeQty = pos.Quantity
	}
	pnl := realizedPnL(pos.Side, pos.EntryPrice, execPrice, closeQty)

	var released decimal.Decimal
	if order.Quantity.GreaterThanOrEqual(pos.Quantity) {
		released = pos.Margin
		pos.RealizedPnL = pos.RealizedPnL.Add(pnl)
		pos.IsOpen = false
		pos.ClosedAt = &now
	} else {
		ratio := order.Quantity.Div(pos.Quantity)
		released = pos.Margin.Mul(ratio)
		pos.Quantity = pos.Quantity.Sub(order.Quantity)
		pos.Margin = pos.Margin.Sub(released)
		pos.RealizedPnL = pos.RealizedPnL.Add(pnl)
	}
	pos.UpdatedAt = now
	if err := tx.SavePosition(pos); err != nil {
		return err
	}

	// The position's margin was never debited from total balance, only
	// from available, so releasing it credits both sides. The order's own
	// reservation goes back to available: it backed an order that reduced
	// exposure instead of opening it.
	wallet.ApplyPnL(pnl.Add(released))
	wallet.Release(order.MarginUsed)
	return nil
}

// CancelOrder releases the order's reserved margin and marks it cancelled.
// Cancelling an inactive order fails with ErrInvalidState and changes
// nothing, so a double cancel can never double-release margin.
func (e *Engine) CancelOrder(ctx context.Context, accountID, orderID string) (model.Order, error) {
	var out model.Order
	err := e.store.Update(ctx, accountID, func(tx storage.Tx) error {
		order, err := tx.Order(orderID)
		if err != nil {
			return err
		}
		if !order.IsActive() {
			return fmt.Errorf("order %s cannot be cancelled: %w", order.ID, ErrInvalidState)
		}
		wallet, err := tx.Wallet()
		if err != nil {
			return err
		}
		wallet.Release(order.MarginUsed)

		now := time.Now().UTC()
		order.Status = types.OrderStatusCancelled
		order.CancelledAt = &now
		order.UpdatedAt = now
		if err := tx.SaveOrder(order); err != nil {
			return err
		}
		wallet.UpdatedAt = now
		if err := tx.SaveWallet(wallet); err != nil {
			return err
		}
		out = order
		return nil
	})
	return out, err
}

// CancelAllOrders cancels the account's active orders, optionally filtered by
// symbol. Each cancellation is its own transaction; orders that fail (e.g. a
// fill won the race) are skipped and excluded from the count.
func (e *Engine) CancelAllOrders(ctx context.Context, accountID, symbol string) (int, error) {
	var active []model.Order
	err := e.store.View(ctx, accountID, func(tx storage.Tx) error {
		orders, err := tx.Orders(storage.OrderFilter{Symbol: strings.ToUpper(symbol), ActiveOnly: true})
		active = orders
		return err
	})
	if err != nil {
		return 0, err
	}

	cancelled := 0
	for _, o := range active {
		if _, err := e.CancelOrder(ctx, accountID, o.ID); err != nil {
			continue
		}
		cancelled++
	}
	return cancelled, nil
}

// ClosePosition closes up to quantity of an open position at the given price,
// or at the current reference price when none is supplied. Returns the
// updated position and the closing trade.
func (e *Engine) ClosePosition(ctx context.Context, accountID, positionID string, price, quantity *decimal.Decimal) (model.Position, model.Trade, error) {
	if price != nil && !price.GreaterThan(decimal.Zero) {
		return model.Position{}, model.Trade{}, validationf("price must be positive")
	}
	if quantity != nil && !quantity.GreaterThan(decimal.Zero) {
		return model.Position{}, model.Trade{}, validationf("quantity must be positive")
	}

	var closePrice decimal.Decimal
	if price != nil {
		closePrice = *price
	} else {
		pos, err := e.Position(ctx, accountID, positionID)
		if err != nil {
			return model.Position{}, model.Trade{}, err
		}
		closePrice, err = e.prices.CurrentPrice(pos.Symbol)
		if err != nil {
			return model.Position{}, model.Trade{}, fmt.Errorf("price for %s: %w", pos.Symbol, err)
		}
	}

	var (
		outPos   model.Position
		outTrade model.Trade
	)
	err := e.store.Update(ctx, accountID, func(tx storage.Tx) error {
		pos, err := tx.Position(positionID)
		if err != nil {
			return err
		}
		if !pos.IsOpen {
			return fmt.Errorf("position %s is already closed: %w", pos.ID, ErrInvalidState)
		}

		closeQty := pos.Quantity
		if quantity != nil {
			closeQty = *quantity
		}
		if closeQty.GreaterThan(pos.Quantity) {
			return validationf("close quantity exceeds position size")
		}

		pnl := realizedPnL(pos.Side, pos.EntryPrice, closePrice, closeQty)
		commission := closeQty.Mul(closePrice).Mul(TakerFee)
		now := time.Now().UTC()

		tradeSide := types.OrderSideSell
		if pos.Side == types.PositionSideShort {
			tradeSide = types.OrderSideBuy
		}
		posID := pos.ID
		trade := model.Trade{
			ID:              newID(),
			AccountID:       accountID,
			PositionID:      &posID,
			Symbol:          pos.Symbol,
			Side:            tradeSide,
			Price:           closePrice,
			Quantity:        closeQty,
			Commission:      commission,
			CommissionAsset: "USDT",
			RealizedPnL:     pnl,
			ExecutedAt:      now,
		}
		if err := tx.CreateTrade(trade); err != nil {
			return err
		}

		var released decimal.Decimal
		if closeQty.GreaterThanOrEqual(pos.Quantity) {
			released = pos.Margin
			pos.RealizedPnL = pos.RealizedPnL.Add(pnl)
			pos.Quantity = decimal.Zero
			pos.IsOpen = false
			pos.ClosedAt = &now
		} else {
			ratio := closeQty.Div(pos.Quantity)
			released = pos.Margin.Mul(ratio)
			pos.Quantity = pos.Quantity.Sub(closeQty)
			pos.Margin = pos.Margin.Sub(released)
			pos.RealizedPnL = pos.RealizedPnL.Add(pnl)
		}
		pos.UpdatedAt = now
		if err := tx.SavePosition(pos); err != nil {
			return err
		}

		wallet, err := tx.Wallet()
		if err != nil {
			return err
		}
		wallet.ApplyPnL(pnl.Sub(commission).Add(released))
		wallet.UpdatedAt = now
		if err := tx.SaveWallet(wallet); err != nil {
			return err
		}

		outPos = pos
		outTrade = trade
		return nil
	})
	return outPos, outTrade, err
}

// UpdatePositionThresholds sets take-profit and/or stop-loss levels on an
// open position. Nil arguments leave the corresponding level unchanged.
func (e *Engine) UpdatePositionThresholds(ctx context.Context, accountID, positionID string, takeProfit, stopLoss *decimal.Decimal) (model.Position, error) {
	if takeProfit != nil && !takeProfit.GreaterThan(decimal.Zero) {
		return model.Position{}, validationf("take_profit must be positive")
	}
	if stopLoss != nil && !stopLoss.GreaterThan(decimal.Zero) {
		return model.Position{}, validationf("stop_loss must be positive")
	}

	var out model.Position
	err := e.store.Update(ctx, accountID, func(tx storage.Tx) error {
		pos, err := tx.Position(positionID)
		if err != nil {
			return err
		}
		if !pos.IsOpen {
			return storage.ErrNotFound
		}
		if takeProfit != nil {
			pos.TakeProfit = takeProfit
		}
		if stopLoss != nil {
			pos.StopLoss = stopLoss
		}
		pos.UpdatedAt = time.Now().UTC()
		if err := tx.SavePosition(pos); err != nil {
			return err
		}
		out = pos
		return nil
	})
	return out, err
}

// Wallet returns the account's wallet, creating it with the starting balance
// on first access.
func (e *Engine) Wallet(ctx context.Context, accountID string) (model.Wallet, error) {
	var out model.Wallet
	err := e.store.Update(ctx, accountID, func(tx storage.Tx) error {
		w, err := tx.Wallet()
		if err != nil {
			return err
		}
		out = w
		return nil
	})
	return out, err
}

// ResetWallet is a hard reset: balances are overwritten to the starting
// balance, open positions are force-closed with no PnL realized, and active
// orders are force-cancelled with no margin release accounting.
func (e *Engine) ResetWallet(ctx context.Context, accountID string) (model.Wallet, error) {
	var out model.Wallet
	err := e.store.Update(ctx, accountID, func(tx storage.Tx) error {
		wallet, err := tx.Wallet()
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		wallet.Balance = e.startingBalance
		wallet.Available = e.startingBalance
		wallet.UpdatedAt = now
		if err := tx.SaveWallet(wallet); err != nil {
			return err
		}

		open, err := tx.Positions(storage.PositionFilter{OpenOnly: true})
		if err != nil {
			return err
		}
		for _, pos := range open {
			closedAt := now
			pos.IsOpen = false
			pos.ClosedAt = &closedAt
			pos.UpdatedAt = now
			if err := tx.SavePosition(pos); err != nil {
				return err
			}
		}

		active, err := tx.Orders(storage.OrderFilter{ActiveOnly: true})
		if err != nil {
			return err
		}
		for _, order := range active {
			cancelledAt := now
			order.Status = types.OrderStatusCancelled
			order.CancelledAt = &cancelledAt
			order.UpdatedAt = now
			if err := tx.SaveOrder(order); err != nil {
				return err
			}
		}

		out = wallet
		return nil
	})
	return out, err
}

// Order returns one of the account's orders.
func (e *Engine) Order(ctx context.Context, accountID, orderID string) (model.Order, error) {
	var out model.Order
	err := e.store.View(ctx, accountID, func(tx storage.Tx) error {
		o, err := tx.Order(orderID)
		out = o
		return err
	})
	return out, err
}

// Orders lists the account's orders, newest first.
func (e *Engine) Orders(ctx context.Context, accountID string, f storage.OrderFilter) ([]model.Order, error) {
	var out []model.Order
	err := e.store.View(ctx, accountID, func(tx storage.Tx) error {
		orders, err := tx.Orders(f)
		out = orders
		return err
	})
	return out, err
}

// Position returns one of the account's positions.
func (e *Engine) Position(ctx context.Context, accountID, positionID string) (model.Position, error) {
	var out model.Position
	err := e.store.View(ctx, accountID, func(tx storage.Tx) error {
		p, err := tx.Position(positionID)
		out = p
		return err
	})
	return out, err
}

// Positions lists the account's positions, newest first.
func (e *Engine) Positions(ctx context.Context, accountID string, f storage.PositionFilter) ([]model.Position, error) {
	var out []model.Position
	err := e.store.View(ctx, accountID, func(tx storage.Tx) error {
		positions, err := tx.Positions(f)
		out = positions
		return err
	})
	return out, err
}

// Trades lists the account's trade history, newest first.
func (e *Engine) Trades(ctx context.Context, accountID, symbol string, limit int) ([]model.Trade, error) {
	var out []model.Trade
	err := e.store.View(ctx, accountID, func(tx storage.Tx) error {
		trades, err := tx.Trades(strings.ToUpper(symbol), limit)
		out = trades
		return err
	})
	return out, err
}

func positionSideFor(side types.OrderSide) types.PositionSide {
	if side == types.OrderSideBuy {
		return types.PositionSideLong
	}
	return types.PositionSideShort
}

func realizedPnL(side types.PositionSide, entry, exit, qty decimal.Decimal) decimal.Decimal {
	if side == types.PositionSideLong {
		return exit.Sub(entry).Mul(qty)
	}
	return entry.Sub(exit).Mul(qty)
}

func liquidationPrice(side types.PositionSide, entry decimal.Decimal, leverage int) decimal.Decimal {
	offset := liqBuffer.Div(decimal.NewFromInt(int64(leverage)))
	if side == types.PositionSideLong {
		return entry.Mul(one.Sub(offset))
	}
	return entry.Mul(one.Add(offset))
}

func newID() string {
	return ulid.Make().String()
}
