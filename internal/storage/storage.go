// Package storage defines the persistence contract the execution engine
// depends on. A Tx scopes one account's wallet, orders, positions and trades;
// every lookup is ownership-scoped so one account can never observe another's
// rows.
package storage

import (
	"context"
	"errors"

	"sx-futures/internal/model"
	"sx-futures/internal/types"
)

// ErrNotFound covers unknown ids and ids owned by a different account.
var ErrNotFound = errors.New("not found")

type Store interface {
	// Update runs fn as one atomic transaction over a single account's
	// state. Mutations commit iff fn returns nil; any error rolls back
	// every change made through the Tx.
	Update(ctx context.Context, accountID string, fn func(tx Tx) error) error
	// View runs fn with read access to a single account's state.
	View(ctx context.Context, accountID string, fn func(tx Tx) error) error
}

type Tx interface {
	// Wallet returns the account's wallet, creating it with the store's
	// starting balance on first access.
	Wallet() (model.Wallet, error)
	SaveWallet(w model.Wallet) error

	Order(id string) (model.Order, error)
	CreateOrder(o model.Order) error
	SaveOrder(o model.Order) error
	Orders(f OrderFilter) ([]model.Order, error)

	Position(id string) (model.Position, error)
	// OpenPosition returns the account's open position for symbol,
	// regardless of side. ErrNotFound when none is open.
	OpenPosition(symbol string) (model.Position, error)
	CreatePosition(p model.Position) error
	SavePosition(p model.Position) error
	Positions(f PositionFilter) ([]model.Position, error)

	CreateTrade(t model.Trade) error
	Trades(symbol string, limit int) ([]model.Trade, error)
}

type OrderFilter struct {
	Symbol     string
	Status     types.OrderStatus
	ActiveOnly bool
	Limit      int
}

type PositionFilter struct {
	Symbol   string
	OpenOnly bool
	Limit    int
}
