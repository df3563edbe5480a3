// Package memory is the default storage backend: all state lives in process.
// Each account's state is guarded by its own mutex, so operations on
// different accounts never contend, and transactions run against a working
// copy that only replaces the committed state when the callback succeeds.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"sx-futures/internal/model"
	"sx-futures/internal/storage"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

type Store struct {
	mu       sync.Mutex
	start    decimal.Decimal
	accounts map[string]*accountState
}

type accountState struct {
	mu        sync.Mutex
	wallet    *model.Wallet
	orders    map[string]model.Order
	orderSeq  []string
	positions map[string]model.Position
	posSeq    []string
	trades    []model.Trade
}

func New(startingBalance decimal.Decimal) *Store {
	if !startingBalance.GreaterThan(decimal.Zero) {
		startingBalance = model.DefaultStartingBalance
	}
	return &Store{start: startingBalance, accounts: make(map[string]*accountState)}
}

func (s *Store) account(accountID string) *accountState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.accounts[accountID]
	if !ok {
		st = &accountState{
			orders:    make(map[string]model.Order),
			positions: make(map[string]model.Position),
		}
		s.accounts[accountID] = st
	}
	return st
}

func (s *Store) Update(ctx context.Context, accountID string, fn func(tx storage.Tx) error) error {
	return s.run(ctx, accountID, fn, true)
}

func (s *Store) View(ctx context.Context, accountID string, fn func(tx storage.Tx) error) error {
	return s.run(ctx, accountID, fn, false)
}

func (s *Store) run(ctx context.Context, accountID string, fn func(tx storage.Tx) error, commit bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	st := s.account(accountID)
	st.mu.Lock()
	defer st.mu.Unlock()

	work := st.clone()
	tx := &memTx{state: work, accountID: accountID, start: s.start}
	if err := fn(tx); err != nil {
		return err
	}
	if commit {
		st.replace(work)
	}
	return nil
}

func (st *accountState) clone() *accountState {
	out := &accountState{
		orders:    make(map[string]model.Order, len(st.orders)),
		orderSeq:  append([]string(nil), st.orderSeq...),
		positions: make(map[string]model.Position, len(st.positions)),
		posSeq:    append([]string(nil), st.posSeq...),
		trades:    append([]model.Trade(nil), st.trades...),
	}
	if st.wallet != nil {
		w := *st.wallet
		out.wallet = &w
	}
	for id, o := range st.orders {
		out.orders[id] = o
	}
	for id, p := range st.positions {
		out.positions[id] = p
	}
	return out
}

func (st *accountState) replace(work *accountState) {
	st.wallet = work.wallet
	st.orders = work.orders
	st.orderSeq = work.orderSeq
	st.positions = work.positions
	st.posSeq = work.posSeq
	st.trades = work.trades
}

type memTx struct {
	state     *accountState
	accountID string
	start     decimal.Decimal
}

func (t *memTx) Wallet() (model.Wallet, error) {
	if t.state.wallet == nil {
		now := time.Now().UTC()
		t.state.wallet = &model.Wallet{
			ID:        ulid.Make().String(),
			AccountID: t.accountID,
			Balance:   t.start,
			Available: t.start,
			CreatedAt: now,
			UpdatedAt: now,
		}
	}
	return *t.state.wallet, nil
}

func (t *memTx) SaveWallet(w model.Wallet) error {
	t.state.wallet = &w
	return nil
}

func (t *memTx) Order(id string) (model.Order, error) {
	o, ok := t.state.orders[id]
	if !ok {
		return model.Order{}, storage.ErrNotFound
	}
	return o, nil
}

func (t *memTx) CreateOrder(o model.Order) error {
	if _, exists := t.state.orders[o.ID]; exists {
		return fmt.Errorf("order %s already exists", o.ID)
	}
	t.state.orders[o.ID] = o
	t.state.orderSeq = append(t.state.orderSeq, o.ID)
	return nil
}

func (t *memTx) SaveOrder(o model.Order) error {
	if _, exists := t.state.orders[o.ID]; !exists {
		return storage.ErrNotFound
	}
	t.state.orders[o.ID] = o
	return nil
}

func (t *memTx) Orders(f storage.OrderFilter) ([]model.Order, error) {
	symbol := strings.ToUpper(f.Symbol)
	out := make([]model.Order, 0, len(t.state.orderSeq))
	// Newest first: iterate insertion order backwards.
	for i := len(t.state.orderSeq) - 1; i >= 0; i-- {
		o := t.state.orders[t.state.orderSeq[i]]
		if symbol != "" && o.Symbol != symbol {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		if f.ActiveOnly && !o.IsActive() {
			continue
		}
		out = append(out, o)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out, nil
}

func (t *memTx) Position(id string) (model.Position, error) {
	p, ok := t.state.positions[id]
	if !ok {
		return model.Position{}, storage.ErrNotFound
	}
	return p, nil
}

func (t *memTx) OpenPosition(symbol string) (model.Position, error) {
	symbol = strings.ToUpper(symbol)
	for i := len(t.state.posSeq) - 1; i >= 0; i-- {
		p := t.state.positions[t.state.posSeq[i]]
		if p.IsOpen && p.Symbol == symbol {
			return p, nil
		}
	}
	return model.Position{}, storage.ErrNotFound
}

func (t *memTx) CreatePosition(p model.Position) error {
	if _, exists := t.state.positions[p.ID]; exists {
		return fmt.Errorf("position %s already exists", p.ID)
	}
	if p.IsOpen {
		for _, existing := range t.state.positions {
			if existing.IsOpen && existing.Symbol == p.Symbol && existing.Side == p.Side {
				return fmt.Errorf("open %s %s position already exists", p.Symbol, p.Side)
			}
		}
	}
	t.state.positions[p.ID] = p
	t.state.posSeq = append(t.state.posSeq, p.ID)
	return nil
}

func (t *memTx) SavePosition(p model.Position) error {
	if _, exists := t.state.positions[p.ID]; !exists {
		return storage.ErrNotFound
	}
	t.state.positions[p.ID] = p
	return nil
}

func (t *memTx) Positions(f storage.PositionFilter) ([]model.Position, error) {
	symbol := strings.ToUpper(f.Symbol)
	out := make([]model.Position, 0, len(t.state.posSeq))
	for i := len(t.state.posSeq) - 1; i >= 0; i-- {
		p := t.state.positions[t.state.posSeq[i]]
		if symbol != "" && p.Symbol != symbol {
			continue
		}
		if f.OpenOnly && !p.IsOpen {
			continue
		}
		out = append(out, p)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out, nil
}

func (t *memTx) CreateTrade(trade model.Trade) error {
	t.state.trades = append(t.state.trades, trade)
	return nil
}

func (t *memTx) Trades(symbol string, limit int) ([]model.Trade, error) {
	symbol = strings.ToUpper(symbol)
	out := make([]model.Trade, 0, len(t.state.trades))
	for i := len(t.state.trades) - 1; i >= 0; i-- {
		tr := t.state.trades[i]
		if symbol != "" && tr.Symbol != symbol {
			continue
		}
		out = append(out, tr)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
