package postgres

import "context"

// Migrate creates the schema when it does not exist yet. The partial unique
// index on positions enforces at most one open position per account, symbol
// and side.
func (s *Store) Migrate(ctx context.Context) error {
	statements := []string{
		`create table if not exists wallets (
			id text primary key,
			account_id text not null unique,
			balance numeric(20,8) not null,
			available_balance numeric(20,8) not null,
			created_at timestamptz not null default now(),
			updated_at timestamptz not null default now()
		)`,
		`create table if not exists orders (
			id text primary key,
			account_id text not null,
			symbol text not null,
			side text not null,
			order_type text not null,
			status text not null,
			price numeric(20,8),
			stop_price numeric(20,8),
			quantity numeric(20,8) not null,
			filled_quantity numeric(20,8) not null default 0,
			leverage integer not null default 10,
			margin_mode text not null default 'cross',
			margin_used numeric(20,8) not null default 0,
			average_price numeric(20,8),
			commission numeric(20,8) not null default 0,
			created_at timestamptz not null,
			updated_at timestamptz not null,
			filled_at timestamptz,
			cancelled_at timestamptz
		)`,
		`create index if not exists orders_account_symbol_status_idx on orders (account_id, symbol, status)`,
		`create index if not exists orders_symbol_status_idx on orders (symbol, status)`,
		`create table if not exists positions (
			id text primary key,
			account_id text not null,
			symbol text not null,
			side text not null,
			quantity numeric(20,8) not null,
			entry_price numeric(20,8) not null,
			leverage integer not null default 10,
			margin_mode text not null default 'cross',
			margin numeric(20,8) not null,
			liquidation_price numeric(20,8),
			take_profit numeric(20,8),
			stop_loss numeric(20,8),
			realized_pnl numeric(20,8) not null default 0,
			is_open boolean not null default true,
			created_at timestamptz not null,
			updated_at timestamptz not null,
			closed_at timestamptz
		)`,
		`create index if not exists positions_account_symbol_open_idx on positions (account_id, symbol, is_open)`,
		`create unique index if not exists positions_unique_open_idx on positions (account_id, symbol, side) where is_open`,
		`create table if not exists trades (
			id text primary key,
			account_id text not null,
			order_id text,
			position_id text,
			symbol text not null,
			side text not null,
			price numeric(20,8) not null,
			quantity numeric(20,8) not null,
			commission numeric(20,8) not null default 0,
			commission_asset text not null default 'USDT',
			realized_pnl numeric(20,8) not null default 0,
			executed_at timestamptz not null
		)`,
		`create index if not exists trades_account_symbol_idx on trades (account_id, symbol)`,
		`create index if not exists trades_executed_at_idx on trades (executed_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
