package venue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/elinsky/Intern-Trading-Game-sub002/internal/matching"
	"github.com/elinsky/Intern-Trading-Game-sub002/internal/phase"
	xerrors "github.com/elinsky/Intern-Trading-Game-sub002/pkg/errors"
	"github.com/elinsky/Intern-Trading-Game-sub002/pkg/types"
)

func px(p float64) *float64 { return &p }

func newTestVenue(mgr phase.Manager) *Venue {
	now := func() time.Time { return time.Now() }
	cont := matching.NewContinuousEngine(now, zap.NewNop())
	batch := matching.NewBatchEngine(now, zap.NewNop())
	v := New(mgr, cont, batch, now, zap.NewNop())
	_ = v.ListInstrument(types.Instrument{Symbol: "SPX-CALL-4500"})
	return v
}

func submitReq(team string, side types.Side, qty int64, price float64) *types.Order {
	return types.NewOrder(types.SubmitOrderRequest{
		TeamID: team, InstrumentID: "SPX-CALL-4500",
		OrderType: types.Limit, Side: side, Quantity: qty, Price: px(price),
	}, time.Now())
}

func TestVenue_RejectsSubmitWhenMarketClosed(t *testing.T) {
	v := newTestVenue(closedManager{})
	_, err := v.SubmitOrder(submitReq("team-a", types.Buy, 10, 5.00))
	require.Error(t, err)
	code, ok := xerrors.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, xerrors.MarketClosed, code)
}

func TestVenue_ParksOrderDuringPreOpen(t *testing.T) {
	v := newTestVenue(preOpenManager{})
	res, err := v.SubmitOrder(submitReq("team-a", types.Buy, 10, 5.00))
	require.NoError(t, err)
	assert.Equal(t, types.StatusAccepted, res.Status)
	assert.Empty(t, res.Fills)

	bids, _, err := v.GetOrderBook("SPX-CALL-4500", 10)
	require.NoError(t, err)
	require.Len(t, bids, 1)
}

func TestVenue_RoutesContinuousMatching(t *testing.T) {
	v := newTestVenue(phase.AlwaysContinuousManager{})

	_, err := v.SubmitOrder(submitReq("team-maker", types.Sell, 10, 5.50))
	require.NoError(t, err)

	res, err := v.SubmitOrder(submitReq("team-taker", types.Buy, 10, 5.60))
	require.NoError(t, err)
	assert.Equal(t, types.StatusFilled, res.Status)
	require.Len(t, res.Fills, 1)

	history := v.GetTradeHistory("SPX-CALL-4500")
	require.Len(t, history, 1, "continuous trades are recorded to venue history same as auction trades")
	assert.Equal(t, int64(10), history[0].Quantity)
}

func TestVenue_UnknownInstrumentRejected(t *testing.T) {
	v := newTestVenue(phase.AlwaysContinuousManager{})
	o := types.NewOrder(types.SubmitOrderRequest{
		TeamID: "team-a", InstrumentID: "NOPE",
		OrderType: types.Limit, Side: types.Buy, Quantity: 10, Price: px(5.00),
	}, time.Now())
	_, err := v.SubmitOrder(o)
	require.Error(t, err)
	code, _ := xerrors.CodeOf(err)
	assert.Equal(t, xerrors.UnknownInstrument, code)
}

func TestVenue_CancelRequiresOwnership(t *testing.T) {
	v := newTestVenue(phase.AlwaysContinuousManager{})
	o := submitReq("team-a", types.Buy, 10, 5.00)
	_, err := v.SubmitOrder(o)
	require.NoError(t, err)

	ok, err := v.CancelOrder("SPX-CALL-4500", o.OrderID, "team-b")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = v.CancelOrder("SPX-CALL-4500", o.OrderID, "team-a")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVenue_ExecuteOpeningAuctionRollsSurvivorsIntoContinuousBook(t *testing.T) {
	v := newTestVenue(preOpenManager{})
	_, err := v.SubmitOrder(submitReq("mm-1", types.Buy, 100, 5.50))
	require.NoError(t, err)
	_, err = v.SubmitOrder(submitReq("mm-2", types.Buy, 50, 5.25))
	require.NoError(t, err)
	_, err = v.SubmitOrder(submitReq("hf-1", types.Sell, 80, 5.30))
	require.NoError(t, err)
	_, err = v.SubmitOrder(submitReq("hf-2", types.Sell, 100, 5.40))
	require.NoError(t, err)

	results, err := v.ExecuteOpeningAuction()
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 5.40, results[0].ClearingPrice)

	history := v.GetTradeHistory("SPX-CALL-4500")
	var total int64
	for _, tr := range history {
		total += tr.Quantity
	}
	assert.Equal(t, int64(100), total)

	bids, asks, err := v.GetOrderBook("SPX-CALL-4500", 10)
	require.NoError(t, err)
	require.Len(t, bids, 1)
	assert.Equal(t, 5.25, bids[0].Price)
	require.Len(t, asks, 1)
	assert.Equal(t, int64(80), asks[0].Quantity)
}

func TestVenue_CancelAllOrders(t *testing.T) {
	v := newTestVenue(phase.AlwaysContinuousManager{})
	_, err := v.SubmitOrder(submitReq("team-a", types.Buy, 10, 5.00))
	require.NoError(t, err)

	cancelled := v.CancelAllOrders()
	assert.Equal(t, 1, cancelled)

	bids, _, err := v.GetOrderBook("SPX-CALL-4500", 10)
	require.NoError(t, err)
	assert.Empty(t, bids)
}

type closedManager struct{}

func (closedManager) State(time.Time) types.PhaseState {
	return types.PhaseStateFor(types.Closed)
}

type preOpenManager struct{}

func (preOpenManager) State(time.Time) types.PhaseState {
	return types.PhaseStateFor(types.PreOpen)
}
