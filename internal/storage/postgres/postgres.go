// Package postgres is the durable storage backend. Engine transactions map
// to serializable database transactions; every query is scoped by account_id
// so lookups never cross account boundaries.
package postgres

import (
	"context"
	"errors"
	"strings"

	"sx-futures/internal/model"
	"sx-futures/internal/storage"
	"sx-futures/internal/types"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

type Store struct {
	pool  *pgxpool.Pool
	start decimal.Decimal
}

func New(pool *pgxpool.Pool, startingBalance decimal.Decimal) *Store {
	if !startingBalance.GreaterThan(decimal.Zero) {
		startingBalance = model.DefaultStartingBalance
	}
	return &Store{pool: pool, start: startingBalance}
}

func (s *Store) Update(ctx context.Context, accountID string, fn func(tx storage.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := fn(&pgTx{tx: tx, ctx: ctx, accountID: accountID, start: s.start}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) View(ctx context.Context, accountID string, fn func(tx storage.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	// Reads only: always roll back so a stray write cannot land.
	defer tx.Rollback(ctx)
	return fn(&pgTx{tx: tx, ctx: ctx, accountID: accountID, start: s.start})
}

type pgTx struct {
	tx        pgx.Tx
	ctx       context.Context
	accountID string
	start     decimal.Decimal
}

const walletCols = "id, account_id, balance, available_balance, created_at, updated_at"

func (t *pgTx) Wallet() (model.Wallet, error) {
	var w model.Wallet
	err := t.tx.QueryRow(t.ctx, "select "+walletCols+" from wallets where account_id = $1 for update", t.accountID).
		Scan(&w.ID, &w.AccountID, &w.Balance, &w.Available, &w.CreatedAt, &w.UpdatedAt)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return w, err
	}
	err = t.tx.QueryRow(t.ctx,
		"insert into wallets (id, account_id, balance, available_balance) values ($1, $2, $3, $3) returning "+walletCols,
		ulid.Make().String(), t.accountID, t.start).
		Scan(&w.ID, &w.AccountID, &w.Balance, &w.Available, &w.CreatedAt, &w.UpdatedAt)
	return w, err
}

func (t *pgTx) SaveWallet(w model.Wallet) error {
	_, err := t.tx.Exec(t.ctx,
		"update wallets set balance = $1, available_balance = $2, updated_at = $3 where id = $4 and account_id = $5",
		w.Balance, w.Available, w.UpdatedAt, w.ID, t.accountID)
	return err
}

const orderCols = "id, account_id, symbol, side, order_type, status, price, stop_price, quantity, filled_quantity, leverage, margin_mode, margin_used, average_price, commission, created_at, updated_at, filled_at, cancelled_at"

func scanOrder(row pgx.Row) (model.Order, error) {
	var o model.Order
	var side, typ, status, marginMode string
	err := row.Scan(&o.ID, &o.AccountID, &o.Symbol, &side, &typ, &status, &o.Price, &o.StopPrice,
		&o.Quantity, &o.FilledQuantity, &o.Leverage, &marginMode, &o.MarginUsed, &o.AveragePrice,
		&o.Commission, &o.CreatedAt, &o.UpdatedAt, &o.FilledAt, &o.CancelledAt)
	if err != nil {
		return o, err
	}
	o.Side = types.OrderSide(side)
	o.Type = types.OrderType(typ)
	o.Status = types.OrderStatus(status)
	o.MarginMode = types.MarginMode(marginMode)
	return o, nil
}

func (t *pgTx) Order(id string) (model.Order, error) {
	o, err := scanOrder(t.tx.QueryRow(t.ctx,
		"select "+orderCols+" from orders where id = $1 and account_id = $2 for update", id, t.accountID))
	if errors.Is(err, pgx.ErrNoRows) {
		return o, storage.ErrNotFound
	}
	return o, err
}

func (t *pgTx) CreateOrder(o model.Order) error {
	_, err := t.tx.Exec(t.ctx,
		"insert into orders ("+orderCols+") values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)",
		o.ID, o.AccountID, o.Symbol, string(o.Side), string(o.Type), string(o.Status), o.Price, o.StopPrice,
		o.Quantity, o.FilledQuantity, o.Leverage, string(o.MarginMode), o.MarginUsed, o.AveragePrice,
		o.Commission, o.CreatedAt, o.UpdatedAt, o.FilledAt, o.CancelledAt)
	return err
}

func (t *pgTx) SaveOrder(o model.Order) error {
	_, err := t.tx.Exec(t.ctx,
		"update orders set status = $1, price = $2, filled_quantity = $3, average_price = $4, commission = $5, updated_at = $6, filled_at = $7, cancelled_at = $8 where id = $9 and account_id = $10",
		string(o.Status), o.Price, o.FilledQuantity, o.AveragePrice, o.Commission, o.UpdatedAt, o.FilledAt, o.CancelledAt, o.ID, t.accountID)
	return err
}

func (t *pgTx) Orders(f storage.OrderFilter) ([]model.Order, error) {
	query := "select " + orderCols + " from orders where account_id = $1" +
		" and ($2 = '' or symbol = $2)" +
		" and ($3 = '' or status = $3)" +
		" and (not $4 or status in ('pending', 'open', 'partially_filled'))" +
		" order by created_at desc, id desc"
	args := []any{t.accountID, strings.ToUpper(f.Symbol), string(f.Status), f.ActiveOnly}
	if f.Limit > 0 {
		query += " limit $5"
		args = append(args, f.Limit)
	}
	rows, err := t.tx.Query(t.ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

const positionCols = "id, account_id, symbol, side, quantity, entry_price, leverage, margin_mode, margin, liquidation_price, take_profit, stop_loss, realized_pnl, is_open, created_at, updated_at, closed_at"

func scanPosition(row pgx.Row) (model.Position, error) {
	var p model.Position
	var side, marginMode string
	err := row.Scan(&p.ID, &p.AccountID, &p.Symbol, &side, &p.Quantity, &p.EntryPrice, &p.Leverage,
		&marginMode, &p.Margin, &p.LiquidationPrice, &p.TakeProfit, &p.StopLoss, &p.RealizedPnL,
		&p.IsOpen, &p.CreatedAt, &p.UpdatedAt, &p.ClosedAt)
	if err != nil {
		return p, err
	}
	p.Side = types.PositionSide(side)
	p.MarginMode = types.MarginMode(marginMode)
	return p, nil
}

func (t *pgTx) Position(id string) (model.Position, error) {
	p, err := scanPosition(t.tx.QueryRow(t.ctx,
		"select "+positionCols+" from positions where id = $1 and account_id = $2 for update", id, t.accountID))
	if errors.Is(err, pgx.ErrNoRows) {
		return p, storage.ErrNotFound
	}
	return p, err
}

func (t *pgTx) OpenPosition(symbol string) (model.Position, error) {
	p, err := scanPosition(t.tx.QueryRow(t.ctx,
		"select "+positionCols+" from positions where account_id = $1 and symbol = $2 and is_open order by created_at desc limit 1 for update",
		t.accountID, strings.ToUpper(symbol)))
	if errors.Is(err, pgx.ErrNoRows) {
		return p, storage.ErrNotFound
	}
	return p, err
}

func (t *pgTx) CreatePosition(p model.Position) error {
	_, err := t.tx.Exec(t.ctx,
		"insert into positions ("+positionCols+") values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)",
		p.ID, p.AccountID, p.Symbol, string(p.Side), p.Quantity, p.EntryPrice, p.Leverage,
		string(p.MarginMode), p.Margin, p.LiquidationPrice, p.TakeProfit, p.StopLoss, p.RealizedPnL,
		p.IsOpen, p.CreatedAt, p.UpdatedAt, p.ClosedAt)
	return err
}

func (t *pgTx) SavePosition(p model.Position) error {
	_, err := t.tx.Exec(t.ctx,
		"update positions set quantity = $1, entry_price = $2, margin = $3, liquidation_price = $4, take_profit = $5, stop_loss = $6, realized_pnl = $7, is_open = $8, updated_at = $9, closed_at = $10 where id = $11 and account_id = $12",
		p.Quantity, p.EntryPrice, p.Margin, p.LiquidationPrice, p.TakeProfit, p.StopLoss,
		p.RealizedPnL, p.IsOpen, p.UpdatedAt, p.ClosedAt, p.ID, t.accountID)
	return err
}

func (t *pgTx) Positions(f storage.PositionFilter) ([]model.Position, error) {
	query := "select " + positionCols + " from positions where account_id = $1" +
		" and ($2 = '' or symbol = $2)" +
		" and (not $3 or is_open)" +
		" order by created_at desc, id desc"
	args := []any{t.accountID, strings.ToUpper(f.Symbol), f.OpenOnly}
	if f.Limit > 0 {
		query += " limit $4"
		args = append(args, f.Limit)
	}
	rows, err := t.tx.Query(t.ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

const tradeCols = "id, account_id, order_id, position_id, symbol, side, price, quantity, commission, commission_asset, realized_pnl, executed_at"

func (t *pgTx) CreateTrade(tr model.Trade) error {
	_, err := t.tx.Exec(t.ctx,
		"insert into trades ("+tradeCols+") values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)",
		tr.ID, tr.AccountID, tr.OrderID, tr.PositionID, tr.Symbol, string(tr.Side), tr.Price,
		tr.Quantity, tr.Commission, tr.CommissionAsset, tr.RealizedPnL, tr.ExecutedAt)
	return err
}

func (t *pgTx) Trades(symbol string, limit int) ([]model.Trade, error) {
	query := "select " + tradeCols + " from trades where account_id = $1 and ($2 = '' or symbol = $2) order by executed_at desc, id desc"
	args := []any{t.accountID, strings.ToUpper(symbol)}
	if limit > 0 {
		query += " limit $3"
		args = append(args, limit)
	}
	rows, err := t.tx.Query(t.ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Trade
	for rows.Next() {
		var tr model.Trade
		var side string
		if err := rows.Scan(&tr.ID, &tr.AccountID, &tr.OrderID, &tr.PositionID, &tr.Symbol, &side,
			&tr.Price, &tr.Quantity, &tr.Commission, &tr.CommissionAsset, &tr.RealizedPnL, &tr.ExecutedAt); err != nil {
			return nil, err
		}
		tr.Side = types.OrderSide(side)
		out = append(out, tr)
	}
	return out, rows.Err()
}
