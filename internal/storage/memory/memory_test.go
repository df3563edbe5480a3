package memory

import (
	"context"
	"errors"
	"testing"

	"sx-futures/internal/model"
	"sx-futures/internal/storage"
	"sx-futures/internal/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalletLazyCreation(t *testing.T) {
	t.Parallel()
	s := New(decimal.NewFromInt(5000))
	ctx := context.Background()

	var w model.Wallet
	err := s.Update(ctx, "acct", func(tx storage.Tx) error {
		var err error
		w, err = tx.Wallet()
		return err
	})
	require.NoError(t, err)
	assert.NotEmpty(t, w.ID)
	assert.Equal(t, "acct", w.AccountID)
	assert.True(t, w.Balance.Equal(decimal.NewFromInt(5000)))
	assert.True(t, w.Available.Equal(decimal.NewFromInt(5000)))

	// Same wallet on the next transaction.
	err = s.View(ctx, "acct", func(tx storage.Tx) error {
		again, err := tx.Wallet()
		require.NoError(t, err)
		assert.Equal(t, w.ID, again.ID)
		return nil
	})
	require.NoError(t, err)
}

func TestUpdateRollsBackOnError(t *testing.T) {
	t.Parallel()
	s := New(decimal.NewFromInt(10000))
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.Update(ctx, "acct", func(tx storage.Tx) error {
		if err := tx.CreateOrder(model.Order{ID: "o1", Symbol: "BTCUSDT", Status: types.OrderStatusOpen}); err != nil {
			return err
		}
		w, err := tx.Wallet()
		if err != nil {
			return err
		}
		w.Balance = decimal.Zero
		if err := tx.SaveWallet(w); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	err = s.View(ctx, "acct", func(tx storage.Tx) error {
		_, err := tx.Order("o1")
		require.ErrorIs(t, err, storage.ErrNotFound)
		w, err := tx.Wallet()
		require.NoError(t, err)
		assert.True(t, w.Balance.Equal(decimal.NewFromInt(10000)))
		return nil
	})
	require.NoError(t, err)
}

func TestViewNeverCommits(t *testing.T) {
	t.Parallel()
	s := New(decimal.NewFromInt(10000))
	ctx := context.Background()

	err := s.View(ctx, "acct", func(tx storage.Tx) error {
		return tx.CreateOrder(model.Order{ID: "o1", Symbol: "BTCUSDT"})
	})
	require.NoError(t, err)

	err = s.View(ctx, "acct", func(tx storage.Tx) error {
		_, err := tx.Order("o1")
		require.ErrorIs(t, err, storage.ErrNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestUniqueOpenPositionPerSymbolSide(t *testing.T) {
	t.Parallel()
	s := New(decimal.NewFromInt(10000))
	ctx := context.Background()

	err := s.Update(ctx, "acct", func(tx storage.Tx) error {
		return tx.CreatePosition(model.Position{ID: "p1", Symbol: "BTCUSDT", Side: types.PositionSideLong, IsOpen: true})
	})
	require.NoError(t, err)

	err = s.Update(ctx, "acct", func(tx storage.Tx) error {
		return tx.CreatePosition(model.Position{ID: "p2", Symbol: "BTCUSDT", Side: types.PositionSideLong, IsOpen: true})
	})
	require.Error(t, err)

	// A closed duplicate and a different side are both fine.
	err = s.Update(ctx, "acct", func(tx storage.Tx) error {
		if err := tx.CreatePosition(model.Position{ID: "p3", Symbol: "BTCUSDT", Side: types.PositionSideLong}); err != nil {
			return err
		}
		return tx.CreatePosition(model.Position{ID: "p4", Symbol: "BTCUSDT", Side: types.PositionSideShort, IsOpen: true})
	})
	require.NoError(t, err)
}

func TestListingsNewestFirstWithFilters(t *testing.T) {
	t.Parallel()
	s := New(decimal.NewFromInt(10000))
	ctx := context.Background()

	err := s.Update(ctx, "acct", func(tx storage.Tx) error {
		orders := []model.Order{
			{ID: "o1", Symbol: "BTCUSDT", Status: types.OrderStatusOpen},
			{ID: "o2", Symbol: "ETHUSDT", Status: types.OrderStatusFilled},
			{ID: "o3", Symbol: "BTCUSDT", Status: types.OrderStatusCancelled},
		}
		for _, o := range orders {
			if err := tx.CreateOrder(o); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	err = s.View(ctx, "acct", func(tx storage.Tx) error {
		all, err := tx.Orders(storage.OrderFilter{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "o3", all[0].ID)
		assert.Equal(t, "o1", all[2].ID)

		btc, err := tx.Orders(storage.OrderFilter{Symbol: "btcusdt"})
		require.NoError(t, err)
		require.Len(t, btc, 2)

		active, err := tx.Orders(storage.OrderFilter{ActiveOnly: true})
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, "o1", active[0].ID)

		limited, err := tx.Orders(storage.OrderFilter{Limit: 2})
		require.NoError(t, err)
		require.Len(t, limited, 2)
		return nil
	})
	require.NoError(t, err)
}

func TestOpenPositionLookup(t *testing.T) {
	t.Parallel()
	s := New(decimal.NewFromInt(10000))
	ctx := context.Background()

	err := s.Update(ctx, "acct", func(tx storage.Tx) error {
		if err := tx.CreatePosition(model.Position{ID: "p1", Symbol: "BTCUSDT", Side: types.PositionSideLong}); err != nil {
			return err
		}
		return tx.CreatePosition(model.Position{ID: "p2", Symbol: "BTCUSDT", Side: types.PositionSideShort, IsOpen: true})
	})
	require.NoError(t, err)

	err = s.View(ctx, "acct", func(tx storage.Tx) error {
		p, err := tx.OpenPosition("BTCUSDT")
		require.NoError(t, err)
		assert.Equal(t, "p2", p.ID)

		_, err = tx.OpenPosition("ETHUSDT")
		require.ErrorIs(t, err, storage.ErrNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestAccountsIsolated(t *testing.T) {
	t.Parallel()
	s := New(decimal.NewFromInt(10000))
	ctx := context.Background()

	err := s.Update(ctx, "alice", func(tx storage.Tx) error {
		return tx.CreateOrder(model.Order{ID: "o1", Symbol: "BTCUSDT", Status: types.OrderStatusOpen})
	})
	require.NoError(t, err)

	err = s.View(ctx, "bob", func(tx storage.Tx) error {
		orders, err := tx.Orders(storage.OrderFilter{})
		require.NoError(t, err)
		assert.Empty(t, orders)
		return nil
	})
	require.NoError(t, err)
}
