package engine

import (
	"context"
	"errors"
	"testing"

	"sx-futures/internal/model"
	"sx-futures/internal/storage"
	"sx-futures/internal/storage/memory"
	"sx-futures/internal/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPrices map[string]decimal.Decimal

func (s stubPrices) CurrentPrice(symbol string) (decimal.Decimal, error) {
	p, ok := s[symbol]
	if !ok {
		return decimal.Decimal{}, errors.New("unknown symbol " + symbol)
	}
	return p, nil
}

func newTestEngine(prices stubPrices) *Engine {
	store := memory.New(model.DefaultStartingBalance)
	return New(store, prices, model.DefaultStartingBalance)
}

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func dp(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

func requireDecimalEqual(t *testing.T, want, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	require.True(t, want.Equal(got), "want %s, got %s (%v)", want, got, msgAndArgs)
}

func TestSubmitMarketBuyOpensPosition(t *testing.T) {
	t.Parallel()
	eng := newTestEngine(stubPrices{"BTCUSDT": d("95000")})
	ctx := context.Background()

	order, err := eng.SubmitOrder(ctx, "acct", OrderSpec{
		Symbol:   "btcusdt",
		Side:     types.OrderSideBuy,
		Type:     types.OrderTypeMarket,
		Quantity: d("0.1"),
		Leverage: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, types.OrderStatusFilled, order.Status)
	assert.Equal(t, "BTCUSDT", order.Symbol)
	require.NotNil(t, order.AveragePrice)
	requireDecimalEqual(t, d("95000"), *order.AveragePrice)
	requireDecimalEqual(t, d("0.1"), order.FilledQuantity)
	requireDecimalEqual(t, d("950"), order.MarginUsed)
	// 0.1 * 95000 * 0.0004
	requireDecimalEqual(t, d("3.8"), order.Commission)
	require.NotNil(t, order.FilledAt)

	positions, err := eng.Positions(ctx, "acct", storage.PositionFilter{OpenOnly: true})
	require.NoError(t, err)
	require.Len(t, positions, 1)
	pos := positions[0]
	assert.Equal(t, types.PositionSideLong, pos.Side)
	requireDecimalEqual(t, d("0.1"), pos.Quantity)
	requireDecimalEqual(t, d("95000"), pos.EntryPrice)
	requireDecimalEqual(t, d("950"), pos.Margin)
	// entry * (1 - 0.9/10)
	requireDecimalEqual(t, d("86450"), pos.LiquidationPrice)
	assert.True(t, pos.IsOpen)

	wallet, err := eng.Wallet(ctx, "acct")
	require.NoError(t, err)
	requireDecimalEqual(t, d("9996.2"), wallet.Balance)
	requireDecimalEqual(t, d("9046.2"), wallet.Available)
}

func TestSubmitLimitOrderParksOpen(t *testing.T) {
	t.Parallel()
	eng := newTestEngine(stubPrices{})
	ctx := context.Background()

	order, err := eng.SubmitOrder(ctx, "acct", OrderSpec{
		Symbol:   "ETHUSDT",
		Side:     types.OrderSideSell,
		Type:     types.OrderTypeLimit,
		Price:    dp("3300"),
		Quantity: d("2"),
		Leverage: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, types.OrderStatusOpen, order.Status)
	requireDecimalEqual(t, d("1320"), order.MarginUsed)
	requireDecimalEqual(t, decimal.Zero, order.Commission)
	assert.Nil(t, order.FilledAt)

	wallet, err := eng.Wallet(ctx, "acct")
	require.NoError(t, err)
	requireDecimalEqual(t, d("10000"), wallet.Balance)
	requireDecimalEqual(t, d("8680"), wallet.Available)

	positions, err := eng.Positions(ctx, "acct", storage.PositionFilter{OpenOnly: true})
	require.NoError(t, err)
	assert.Empty(t, positions)
}

func TestSubmitOrderValidation(t *testing.T) {
	t.Parallel()
	eng := newTestEngine(stubPrices{"BTCUSDT": d("95000")})
	ctx := context.Background()

	cases := []struct {
		name string
		spec OrderSpec
	}{
		{"missing symbol", OrderSpec{Side: types.OrderSideBuy, Type: types.OrderTypeMarket, Quantity: d("1")}},
		{"bad side", OrderSpec{Symbol: "BTCUSDT", Side: "hold", Type: types.OrderTypeMarket, Quantity: d("1")}},
		{"bad type", OrderSpec{Symbol: "BTCUSDT", Side: types.OrderSideBuy, Type: "iceberg", Quantity: d("1")}},
		{"zero quantity", OrderSpec{Symbol: "BTCUSDT", Side: types.OrderSideBuy, Type: types.OrderTypeMarket, Quantity: decimal.Zero}},
		{"limit without price", OrderSpec{Symbol: "BTCUSDT", Side: types.OrderSideBuy, Type: types.OrderTypeLimit, Quantity: d("1")}},
		{"negative price", OrderSpec{Symbol: "BTCUSDT", Side: types.OrderSideBuy, Type: types.OrderTypeLimit, Price: dp("-5"), Quantity: d("1")}},
		{"stop limit without stop", OrderSpec{Symbol: "BTCUSDT", Side: types.OrderSideBuy, Type: types.OrderTypeStopLimit, Price: dp("90000"), Quantity: d("1")}},
		{"zero leverage floor", OrderSpec{Symbol: "BTCUSDT", Side: types.OrderSideBuy, Type: types.OrderTypeMarket, Quantity: d("1"), Leverage: -3}},
		{"bad margin mode", OrderSpec{Symbol: "BTCUSDT", Side: types.OrderSideBuy, Type: types.OrderTypeMarket, Quantity: d("1"), MarginMode: "hedged"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := eng.SubmitOrder(ctx, "acct", tc.spec)
			var verr ValidationError
			require.ErrorAs(t, err, &verr)
		})
	}

	// Nothing above should have created state.
	orders, err := eng.Orders(ctx, "acct", storage.OrderFilter{})
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestSubmitOrderDefaults(t *testing.T) {
	t.Parallel()
	eng := newTestEngine(stubPrices{"BTCUSDT": d("100")})
	ctx := context.Background()

	order, err := eng.SubmitOrder(ctx, "acct", OrderSpec{
		Symbol:   "BTCUSDT",
		Side:     types.OrderSideBuy,
		Type:     types.OrderTypeMarket,
		Quantity: d("1"),
	})
	require.NoError(t, err)
	assert.Equal(t, 10, order.Leverage)
	assert.Equal(t, types.MarginModeCross, order.MarginMode)
	// notional 100 at 10x
	requireDecimalEqual(t, d("10"), order.MarginUsed)
}

func TestSubmitOrderInsufficientMargin(t *testing.T) {
	t.Parallel()
	eng := newTestEngine(stubPrices{"BTCUSDT": d("95000")})
	ctx := context.Background()

	// 2 BTC at 95000, 10x = 19000 margin > 10000 available.
	_, err := eng.SubmitOrder(ctx, "acct", OrderSpec{
		Symbol:   "BTCUSDT",
		Side:     types.OrderSideBuy,
		Type:     types.OrderTypeMarket,
		Quantity: d("2"),
		Leverage: 10,
	})
	require.ErrorIs(t, err, model.ErrInsufficientMargin)

	orders, err := eng.Orders(ctx, "acct", storage.OrderFilter{})
	require.NoError(t, err)
	assert.Empty(t, orders)

	wallet, err := eng.Wallet(ctx, "acct")
	require.NoError(t, err)
	requireDecimalEqual(t, d("10000"), wallet.Balance)
	requireDecimalEqual(t, d("10000"), wallet.Available)
}

func TestAddToPositionAveragesEntry(t *testing.T) {
	t.Parallel()
	eng := newTestEngine(stubPrices{})
	ctx := context.Background()

	_, err := eng.SubmitOrder(ctx, "acct", OrderSpec{
		Symbol: "SOLUSDT", Side: types.OrderSideBuy, Type: types.OrderTypeMarket,
		Price: dp("100"), Quantity: d("1"), Leverage: 10,
	})
	require.NoError(t, err)
	_, err = eng.SubmitOrder(ctx, "acct", OrderSpec{
		Symbol: "SOLUSDT", Side: types.OrderSideBuy, Type: types.OrderTypeMarket,
		Price: dp("200"), Quantity: d("2"), Leverage: 10,
	})
	require.NoError(t, err)

	positions, err := eng.Positions(ctx, "acct", storage.PositionFilter{OpenOnly: true})
	require.NoError(t, err)
	require.Len(t, positions, 1)
	pos := positions[0]
	requireDecimalEqual(t, d("3"), pos.Quantity)
	// (1*100 + 2*200) / 3
	requireDecimalEqual(t, d("500").Div(d("3")), pos.EntryPrice)
	// 10 + 40
	requireDecimalEqual(t, d("50"), pos.Margin)
	requireDecimalEqual(t, pos.EntryPrice.Mul(d("0.91")), pos.LiquidationPrice)
}

func TestOppositeFillReducesPosition(t *testing.T) {
	t.Parallel()
	eng := newTestEngine(stubPrices{})
	ctx := context.Background()

	_, err := eng.SubmitOrder(ctx, "acct", OrderSpec{
		Symbol: "SOLUSDT", Side: types.OrderSideBuy, Type: types.OrderTypeMarket,
		Price: dp("100"), Quantity: d("2"), Leverage: 10,
	})
	require.NoError(t, err)
	// balance 10000 - 0.08 commission, available 10000 - 20 - 0.08

	_, err = eng.SubmitOrder(ctx, "acct", OrderSpec{
		Symbol: "SOLUSDT", Side: types.OrderSideSell, Type: types.OrderTypeMarket,
		Price: dp("120"), Quantity: d("1"), Leverage: 10,
	})
	require.NoError(t, err)

	positions, err := eng.Positions(ctx, "acct", storage.PositionFilter{OpenOnly: true})
	require.NoError(t, err)
	require.Len(t, positions, 1)
	pos := positions[0]
	requireDecimalEqual(t, d("1"), pos.Quantity)
	requireDecimalEqual(t, d("10"), pos.Margin)
	requireDecimalEqual(t, d("20"), pos.RealizedPnL)
	assert.True(t, pos.IsOpen)

	// Sell leg: reserve 12, pnl +20, released 10, order margin 12 back,
	// commission 0.048. Balance: 10000 - 0.08 + 20 + 10 - 0.048.
	wallet, err := eng.Wallet(ctx, "acct")
	require.NoError(t, err)
	requireDecimalEqual(t, d("10029.872"), wallet.Balance)
	// Available: 10000 - 20 - 0.08 - 12 + 20 + 10 + 12 - 0.048
	requireDecimalEqual(t, d("10009.872"), wallet.Available)
}

func TestOppositeFillFullClose(t *testing.T) {
	t.Parallel()
	eng := newTestEngine(stubPrices{})
	ctx := context.Background()

	_, err := eng.SubmitOrder(ctx, "acct", OrderSpec{
		Symbol: "SOLUSDT", Side: types.OrderSideBuy, Type: types.OrderTypeMarket,
		Price: dp("100"), Quantity: d("1"), Leverage: 10,
	})
	require.NoError(t, err)

	_, err = eng.SubmitOrder(ctx, "acct", OrderSpec{
		Symbol: "SOLUSDT", Side: types.OrderSideSell, Type: types.OrderTypeMarket,
		Price: dp("90"), Quantity: d("1"), Leverage: 10,
	})
	require.NoError(t, err)

	open, err := eng.Positions(ctx, "acct", storage.PositionFilter{OpenOnly: true})
	require.NoError(t, err)
	assert.Empty(t, open)

	all, err := eng.Positions(ctx, "acct", storage.PositionFilter{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	pos := all[0]
	assert.False(t, pos.IsOpen)
	requireDecimalEqual(t, d("-10"), pos.RealizedPnL)
	require.NotNil(t, pos.ClosedAt)

	// Long leg: commission 0.04. Sell leg: reserve 9, pnl -10 offset by the
	// released margin 10, reserve back, commission 0.036.
	wallet, err := eng.Wallet(ctx, "acct")
	require.NoError(t, err)
	requireDecimalEqual(t, d("9999.924"), wallet.Balance)
	// The loss consumed the opening margin, so available stays 10 short of
	// balance.
	requireDecimalEqual(t, d("9989.924"), wallet.Available)
}

func TestTradeRecordsPreFillPosition(t *testing.T) {
	t.Parallel()
	eng := newTestEngine(stubPrices{})
	ctx := context.Background()

	_, err := eng.SubmitOrder(ctx, "acct", OrderSpec{
		Symbol: "SOLUSDT", Side: types.OrderSideBuy, Type: types.OrderTypeMarket,
		Price: dp("100"), Quantity: d("1"), Leverage: 10,
	})
	require.NoError(t, err)
	_, err = eng.SubmitOrder(ctx, "acct", OrderSpec{
		Symbol: "SOLUSDT", Side: types.OrderSideBuy, Type: types.OrderTypeMarket,
		Price: dp("110"), Quantity: d("1"), Leverage: 10,
	})
	require.NoError(t, err)

	trades, err := eng.Trades(ctx, "acct", "SOLUSDT", 0)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	// Newest first: the add references the position, the opener does not.
	assert.NotNil(t, trades[0].PositionID)
	assert.Nil(t, trades[1].PositionID)
	require.NotNil(t, trades[1].OrderID)
	requireDecimalEqual(t, decimal.Zero, trades[0].RealizedPnL)
	assert.Equal(t, "USDT", trades[0].CommissionAsset)
}

func TestCancelOrderReleasesMarginOnce(t *testing.T) {
	t.Parallel()
	eng := newTestEngine(stubPrices{})
	ctx := context.Background()

	order, err := eng.SubmitOrder(ctx, "acct", OrderSpec{
		Symbol: "BTCUSDT", Side: types.OrderSideBuy, Type: types.OrderTypeLimit,
		Price: dp("90000"), Quantity: d("0.05"), Leverage: 10,
	})
	require.NoError(t, err)

	cancelled, err := eng.CancelOrder(ctx, "acct", order.ID)
	require.NoError(t, err)
	assert.Equal(t, types.OrderStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)

	wallet, err := eng.Wallet(ctx, "acct")
	require.NoError(t, err)
	requireDecimalEqual(t, d("10000"), wallet.Available)

	// Second cancel must fail without releasing margin again.
	_, err = eng.CancelOrder(ctx, "acct", order.ID)
	require.ErrorIs(t, err, ErrInvalidState)

	wallet, err = eng.Wallet(ctx, "acct")
	require.NoError(t, err)
	requireDecimalEqual(t, d("10000"), wallet.Available)
}

func TestCancelUnknownOrder(t *testing.T) {
	t.Parallel()
	eng := newTestEngine(stubPrices{})
	_, err := eng.CancelOrder(context.Background(), "acct", "nope")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCancelAllOrdersIsBestEffort(t *testing.T) {
	t.Parallel()
	eng := newTestEngine(stubPrices{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := eng.SubmitOrder(ctx, "acct", OrderSpec{
			Symbol: "BTCUSDT", Side: types.OrderSideBuy, Type: types.OrderTypeLimit,
			Price: dp("90000"), Quantity: d("0.01"), Leverage: 10,
		})
		require.NoError(t, err)
	}
	_, err := eng.SubmitOrder(ctx, "acct", OrderSpec{
		Symbol: "ETHUSDT", Side: types.OrderSideSell, Type: types.OrderTypeLimit,
		Price: dp("3300"), Quantity: d("1"), Leverage: 10,
	})
	require.NoError(t, err)

	count, err := eng.CancelAllOrders(ctx, "acct", "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	active, err := eng.Orders(ctx, "acct", storage.OrderFilter{ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "ETHUSDT", active[0].Symbol)

	wallet, err := eng.Wallet(ctx, "acct")
	require.NoError(t, err)
	// Only ETH margin (330) still held.
	requireDecimalEqual(t, d("9670"), wallet.Available)
}

func TestClosePositionFull(t *testing.T) {
	t.Parallel()
	eng := newTestEngine(stubPrices{})
	ctx := context.Background()

	_, err := eng.SubmitOrder(ctx, "acct", OrderSpec{
		Symbol: "BTCUSDT", Side: types.OrderSideBuy, Type: types.OrderTypeMarket,
		Price: dp("95000"), Quantity: d("1"), Leverage: 10,
	})
	require.NoError(t, err)
	// Margin 9500, commission 38: balance 9962, available 462.

	positions, err := eng.Positions(ctx, "acct", storage.PositionFilter{OpenOnly: true})
	require.NoError(t, err)
	require.Len(t, positions, 1)

	pos, trade, err := eng.ClosePosition(ctx, "acct", positions[0].ID, dp("100000"), nil)
	require.NoError(t, err)
	assert.False(t, pos.IsOpen)
	requireDecimalEqual(t, decimal.Zero, pos.Quantity)
	requireDecimalEqual(t, d("5000"), pos.RealizedPnL)
	require.NotNil(t, pos.ClosedAt)

	assert.Equal(t, types.OrderSideSell, trade.Side)
	requireDecimalEqual(t, d("5000"), trade.RealizedPnL)
	// 1 * 100000 * 0.0004
	requireDecimalEqual(t, d("40"), trade.Commission)
	require.NotNil(t, trade.PositionID)
	assert.Nil(t, trade.OrderID)

	wallet, err := eng.Wallet(ctx, "acct")
	require.NoError(t, err)
	// 9962 + (5000 - 40 + 9500)
	requireDecimalEqual(t, d("24422"), wallet.Balance)
	requireDecimalEqual(t, d("14922"), wallet.Available)
}

func TestClosePositionPartial(t *testing.T) {
	t.Parallel()
	eng := newTestEngine(stubPrices{})
	ctx := context.Background()

	_, err := eng.SubmitOrder(ctx, "acct", OrderSpec{
		Symbol: "SOLUSDT", Side: types.OrderSideSell, Type: types.OrderTypeMarket,
		Price: dp("200"), Quantity: d("4"), Leverage: 10,
	})
	require.NoError(t, err)

	positions, err := eng.Positions(ctx, "acct", storage.PositionFilter{OpenOnly: true})
	require.NoError(t, err)
	require.Len(t, positions, 1)
	require.Equal(t, types.PositionSideShort, positions[0].Side)

	pos, trade, err := eng.ClosePosition(ctx, "acct", positions[0].ID, dp("180"), dp("1"))
	require.NoError(t, err)
	assert.True(t, pos.IsOpen)
	requireDecimalEqual(t, d("3"), pos.Quantity)
	// 80 total margin, quarter released
	requireDecimalEqual(t, d("60"), pos.Margin)
	// Short gains on the way down: (200-180)*1
	requireDecimalEqual(t, d("20"), pos.RealizedPnL)
	assert.Equal(t, types.OrderSideBuy, trade.Side)
	requireDecimalEqual(t, d("20"), trade.RealizedPnL)
}

func TestClosePositionQuantityExceedsSize(t *testing.T) {
	t.Parallel()
	eng := newTestEngine(stubPrices{})
	ctx := context.Background()

	_, err := eng.SubmitOrder(ctx, "acct", OrderSpec{
		Symbol: "SOLUSDT", Side: types.OrderSideBuy, Type: types.OrderTypeMarket,
		Price: dp("100"), Quantity: d("1"), Leverage: 10,
	})
	require.NoError(t, err)

	positions, err := eng.Positions(ctx, "acct", storage.PositionFilter{OpenOnly: true})
	require.NoError(t, err)
	require.Len(t, positions, 1)

	_, _, err = eng.ClosePosition(ctx, "acct", positions[0].ID, dp("100"), dp("2"))
	var verr ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestClosePositionAlreadyClosed(t *testing.T) {
	t.Parallel()
	eng := newTestEngine(stubPrices{})
	ctx := context.Background()

	_, err := eng.SubmitOrder(ctx, "acct", OrderSpec{
		Symbol: "SOLUSDT", Side: types.OrderSideBuy, Type: types.OrderTypeMarket,
		Price: dp("100"), Quantity: d("1"), Leverage: 10,
	})
	require.NoError(t, err)

	positions, err := eng.Positions(ctx, "acct", storage.PositionFilter{OpenOnly: true})
	require.NoError(t, err)
	_, _, err = eng.ClosePosition(ctx, "acct", positions[0].ID, dp("100"), nil)
	require.NoError(t, err)

	_, _, err = eng.ClosePosition(ctx, "acct", positions[0].ID, dp("100"), nil)
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestClosePositionUsesReferencePrice(t *testing.T) {
	t.Parallel()
	eng := newTestEngine(stubPrices{"SOLUSDT": d("150")})
	ctx := context.Background()

	_, err := eng.SubmitOrder(ctx, "acct", OrderSpec{
		Symbol: "SOLUSDT", Side: types.OrderSideBuy, Type: types.OrderTypeMarket,
		Price: dp("100"), Quantity: d("1"), Leverage: 10,
	})
	require.NoError(t, err)

	positions, err := eng.Positions(ctx, "acct", storage.PositionFilter{OpenOnly: true})
	require.NoError(t, err)

	_, trade, err := eng.ClosePosition(ctx, "acct", positions[0].ID, nil, nil)
	require.NoError(t, err)
	requireDecimalEqual(t, d("150"), trade.Price)
	requireDecimalEqual(t, d("50"), trade.RealizedPnL)
}

func TestUpdatePositionThresholds(t *testing.T) {
	t.Parallel()
	eng := newTestEngine(stubPrices{})
	ctx := context.Background()

	_, err := eng.SubmitOrder(ctx, "acct", OrderSpec{
		Symbol: "SOLUSDT", Side: types.OrderSideBuy, Type: types.OrderTypeMarket,
		Price: dp("100"), Quantity: d("1"), Leverage: 10,
	})
	require.NoError(t, err)
	positions, err := eng.Positions(ctx, "acct", storage.PositionFilter{OpenOnly: true})
	require.NoError(t, err)
	posID := positions[0].ID

	pos, err := eng.UpdatePositionThresholds(ctx, "acct", posID, dp("150"), nil)
	require.NoError(t, err)
	require.NotNil(t, pos.TakeProfit)
	requireDecimalEqual(t, d("150"), *pos.TakeProfit)
	assert.Nil(t, pos.StopLoss)

	// Nil leaves the existing level alone.
	pos, err = eng.UpdatePositionThresholds(ctx, "acct", posID, nil, dp("80"))
	require.NoError(t, err)
	require.NotNil(t, pos.TakeProfit)
	requireDecimalEqual(t, d("150"), *pos.TakeProfit)
	require.NotNil(t, pos.StopLoss)
	requireDecimalEqual(t, d("80"), *pos.StopLoss)

	_, err = eng.UpdatePositionThresholds(ctx, "acct", posID, dp("-1"), nil)
	var verr ValidationError
	require.ErrorAs(t, err, &verr)

	_, _, err = eng.ClosePosition(ctx, "acct", posID, dp("100"), nil)
	require.NoError(t, err)
	_, err = eng.UpdatePositionThresholds(ctx, "acct", posID, dp("150"), nil)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestResetWallet(t *testing.T) {
	t.Parallel()
	eng := newTestEngine(stubPrices{})
	ctx := context.Background()

	_, err := eng.SubmitOrder(ctx, "acct", OrderSpec{
		Symbol: "SOLUSDT", Side: types.OrderSideBuy, Type: types.OrderTypeMarket,
		Price: dp("100"), Quantity: d("1"), Leverage: 10,
	})
	require.NoError(t, err)
	_, err = eng.SubmitOrder(ctx, "acct", OrderSpec{
		Symbol: "SOLUSDT", Side: types.OrderSideBuy, Type: types.OrderTypeLimit,
		Price: dp("90"), Quantity: d("1"), Leverage: 10,
	})
	require.NoError(t, err)

	wallet, err := eng.ResetWallet(ctx, "acct")
	require.NoError(t, err)
	requireDecimalEqual(t, d("10000"), wallet.Balance)
	requireDecimalEqual(t, d("10000"), wallet.Available)

	positions, err := eng.Positions(ctx, "acct", storage.PositionFilter{OpenOnly: true})
	require.NoError(t, err)
	assert.Empty(t, positions)

	active, err := eng.Orders(ctx, "acct", storage.OrderFilter{ActiveOnly: true})
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestAccountsAreIsolated(t *testing.T) {
	t.Parallel()
	eng := newTestEngine(stubPrices{})
	ctx := context.Background()

	_, err := eng.SubmitOrder(ctx, "alice", OrderSpec{
		Symbol: "SOLUSDT", Side: types.OrderSideBuy, Type: types.OrderTypeMarket,
		Price: dp("100"), Quantity: d("1"), Leverage: 10,
	})
	require.NoError(t, err)

	wallet, err := eng.Wallet(ctx, "bob")
	require.NoError(t, err)
	requireDecimalEqual(t, d("10000"), wallet.Balance)

	orders, err := eng.Orders(ctx, "bob", storage.OrderFilter{})
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestLiquidationPrice(t *testing.T) {
	t.Parallel()
	requireDecimalEqual(t, d("86450"), liquidationPrice(types.PositionSideLong, d("95000"), 10))
	requireDecimalEqual(t, d("103550"), liquidationPrice(types.PositionSideShort, d("95000"), 10))
	// 1x long liquidates at 10% of entry under the buffered formula.
	requireDecimalEqual(t, d("10"), liquidationPrice(types.PositionSideLong, d("100"), 1))
}
