package orderbook

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/elinsky/Intern-Trading-Game-sub002/pkg/types"
)

func price(p float64) *float64 { return &p }

func newTestOrder(id string, side types.Side, qty int64, px float64) *types.Order {
	o := types.NewOrder(types.SubmitOrderRequest{
		TeamID:       "team-" + id,
		InstrumentID: "SPX-CALL-4500",
		OrderType:    types.Limit,
		Side:         side,
		Quantity:     qty,
		Price:        price(px),
	}, time.Now())
	o.OrderID = id
	return o
}

func TestBook_AddOrdersSortedByPrice(t *testing.T) {
	b := NewBook("SPX-CALL-4500", zap.NewNop())

	require.NoError(t, b.Add(newTestOrder("bid-low", types.Buy, 10, 5.00)))
	require.NoError(t, b.Add(newTestOrder("bid-high", types.Buy, 10, 5.25)))
	require.NoError(t, b.Add(newTestOrder("ask-high", types.Sell, 10, 6.00)))
	require.NoError(t, b.Add(newTestOrder("ask-low", types.Sell, 10, 5.75)))

	bidPx, bidQty, ok := b.BestBid()
	require.True(t, ok)
	assert.Equal(t, 5.25, bidPx)
	assert.Equal(t, int64(10), bidQty)

	askPx, askQty, ok := b.BestAsk()
	require.True(t, ok)
	assert.Equal(t, 5.75, askPx)
	assert.Equal(t, int64(10), askQty)
}

func TestBook_FIFOWithinPriceLevel(t *testing.T) {
	b := NewBook("SPX-CALL-4500", zap.NewNop())

	require.NoError(t, b.Add(newTestOrder("first", types.Buy, 5, 5.00)))
	require.NoError(t, b.Add(newTestOrder("second", types.Buy, 5, 5.00)))

	front, ok := b.PeekBest(types.Buy)
	require.True(t, ok)
	assert.Equal(t, "first", front.OrderID)

	_, err := b.Consume(types.Buy, 5)
	require.NoError(t, err)

	front, ok = b.PeekBest(types.Buy)
	require.True(t, ok)
	assert.Equal(t, "second", front.OrderID)
}

func TestBook_ConsumePartialLeavesRemainder(t *testing.T) {
	b := NewBook("SPX-CALL-4500", zap.NewNop())
	require.NoError(t, b.Add(newTestOrder("resting", types.Sell, 10, 5.50)))

	consumed, err := b.Consume(types.Sell, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(6), consumed.RemainingQty)

	_, qty, ok := b.BestAsk()
	require.True(t, ok)
	assert.Equal(t, int64(6), qty)
}

func TestBook_ConsumeFullRemovesLevel(t *testing.T) {
	b := NewBook("SPX-CALL-4500", zap.NewNop())
	require.NoError(t, b.Add(newTestOrder("only", types.Sell, 10, 5.50)))

	_, err := b.Consume(types.Sell, 10)
	require.NoError(t, err)

	_, _, ok := b.BestAsk()
	assert.False(t, ok)
	assert.True(t, b.IsEmptySide(types.Sell))
}

func TestBook_CancelByOwner(t *testing.T) {
	b := NewBook("SPX-CALL-4500", zap.NewNop())
	o := newTestOrder("mine", types.Buy, 10, 5.00)
	require.NoError(t, b.Add(o))

	ok := b.Cancel("mine", o.TraderID)
	assert.True(t, ok)
	assert.True(t, b.IsEmptySide(types.Buy))
}

func TestBook_CancelWrongOwnerFails(t *testing.T) {
	b := NewBook("SPX-CALL-4500", zap.NewNop())
	o := newTestOrder("mine", types.Buy, 10, 5.00)
	require.NoError(t, b.Add(o))

	ok := b.Cancel("mine", "someone-else")
	assert.False(t, ok)
	assert.False(t, b.IsEmptySide(types.Buy))
}

func TestBook_CancelUnknownOrderFails(t *testing.T) {
	b := NewBook("SPX-CALL-4500", zap.NewNop())
	assert.False(t, b.Cancel("nope", "anyone"))
}

func TestBook_DepthSnapshotRespectsMaxLevels(t *testing.T) {
	b := NewBook("SPX-CALL-4500", zap.NewNop())
	require.NoError(t, b.Add(newTestOrder("b1", types.Buy, 1, 5.00)))
	require.NoError(t, b.Add(newTestOrder("b2", types.Buy, 1, 5.10)))
	require.NoError(t, b.Add(newTestOrder("b3", types.Buy, 1, 5.20)))

	bids, _ := b.DepthSnapshot(2)
	require.Len(t, bids, 2)
	assert.Equal(t, 5.20, bids[0].Price)
	assert.Equal(t, 5.10, bids[1].Price)
}

func TestBook_ClearCancelsEverything(t *testing.T) {
	b := NewBook("SPX-CALL-4500", zap.NewNop())
	require.NoError(t, b.Add(newTestOrder("b1", types.Buy, 1, 5.00)))
	require.NoError(t, b.Add(newTestOrder("a1", types.Sell, 1, 6.00)))

	cleared := b.Clear()
	assert.Len(t, cleared, 2)
	assert.True(t, b.IsEmptySide(types.Buy))
	assert.True(t, b.IsEmptySide(types.Sell))
}

func TestBook_RejectsMarketOrderRest(t *testing.T) {
	b := NewBook("SPX-CALL-4500", zap.NewNop())
	o := types.NewOrder(types.SubmitOrderRequest{
		TeamID: "t", InstrumentID: "SPX-CALL-4500",
		OrderType: types.Market, Side: types.Buy, Quantity: 5,
	}, time.Now())

	err := b.Add(o)
	assert.Error(t, err)
}

func TestPriceTicksRoundTrip(t *testing.T) {
	assert.Equal(t, int64(52500), PriceToTicks(5.25))
	assert.Equal(t, 5.25, TicksToPrice(52500))
}
