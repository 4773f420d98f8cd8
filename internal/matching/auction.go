package matching

import (
	"math/rand/v2"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/elinsky/Intern-Trading-Game-sub002/internal/orderbook"
	"github.com/elinsky/Intern-Trading-Game-sub002/pkg/types"
)

// AuctionResult is the outcome of crossing one instrument's book at a
// single clearing price.
type AuctionResult struct {
	InstrumentID  string
	ClearingPrice float64
	HasTrades     bool
	Trades        []types.Trade
}

// BatchEngine crosses an instrument's accumulated pre-open book at a
// single clearing price that maximizes executable volume.
type BatchEngine struct {
	clock  Clock
	logger *zap.Logger
}

// NewBatchEngine constructs an opening-auction engine.
func NewBatchEngine(clock Clock, logger *zap.Logger) *BatchEngine {
	if clock == nil {
		clock = time.Now
	}
	return &BatchEngine{clock: clock, logger: logger}
}

// candidateLevel is one side's aggregated view at a single price.
type candidateLevel struct {
	priceTicks int64
	orders     []*types.Order
}

// RunAuction crosses book at a single clearing price. previousReference,
// if non-nil, is the instrument's last clearing or continuous trade
// price and is used to break ties among clearing prices that tie for
// maximal executable volume. If either side of the book is empty, it
// returns a zero-trade result.
func (e *BatchEngine) RunAuction(book *orderbook.Book, previousReference *float64) (AuctionResult, error) {
	result := AuctionResult{InstrumentID: book.InstrumentID}

	bidOrders := book.AllRestingOrders(types.Buy)
	askOrders := book.AllRestingOrders(types.Sell)
	if len(bidOrders) == 0 || len(askOrders) == 0 {
		return result, nil
	}

	bidLevels := levelsByPrice(bidOrders)
	askLevels := levelsByPrice(askOrders)

	candidates := candidatePrices(bidLevels, askLevels)
	clearingTicks, volume := bestClearingPrice(candidates, bidLevels, askLevels, previousReference)
	if volume == 0 {
		return result, nil
	}

	clearingPrice := orderbook.TicksToPrice(clearingTicks)
	result.ClearingPrice = clearingPrice

	qualifyingBids := ordersAtOrBetter(bidLevels, clearingTicks, true)
	qualifyingAsks := ordersAtOrBetter(askLevels, clearingTicks, false)

	e.shuffleMarginal(qualifyingBids, clearingTicks, true)
	e.shuffleMarginal(qualifyingAsks, clearingTicks, false)

	trades, consumedBids, consumedAsks := cross(book.InstrumentID, qualifyingBids, qualifyingAsks, clearingPrice, volume, e.clock())
	result.Trades = trades
	result.HasTrades = len(trades) > 0

	book.RemoveMany(consumedBids)
	book.RemoveMany(consumedAsks)

	e.logger.Info("opening auction executed",
		zap.String("instrument", book.InstrumentID),
		zap.Float64("clearing_price", clearingPrice),
		zap.Int64("volume", volume),
		zap.Int("trade_count", len(trades)))

	return result, nil
}

func levelsByPrice(orders []*types.Order) []candidateLevel {
	byPrice := make(map[int64][]*types.Order)
	for _, o := range orders {
		ticks := orderbook.PriceToTicks(*o.Price)
		byPrice[ticks] = append(byPrice[ticks], o)
	}
	levels := make([]candidateLevel, 0, len(byPrice))
	for ticks, os := range byPrice {
		levels = append(levels, candidateLevel{priceTicks: ticks, orders: os})
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i].priceTicks < levels[j].priceTicks })
	return levels
}

func candidatePrices(bids, asks []candidateLevel) []int64 {
	seen := make(map[int64]bool)
	var prices []int64
	for _, l := range bids {
		if !seen[l.priceTicks] {
			seen[l.priceTicks] = true
			prices = append(prices, l.priceTicks)
		}
	}
	for _, l := range asks {
		if !seen[l.priceTicks] {
			seen[l.priceTicks] = true
			prices = append(prices, l.priceTicks)
		}
	}
	sort.Slice(prices, func(i, j int) bool { return prices[i] < prices[j] })
	return prices
}

func demandAt(bids []candidateLevel, priceTicks int64) int64 {
	var total int64
	for _, l := range bids {
		if l.priceTicks >= priceTicks {
			total += sumQty(l.orders)
		}
	}
	return total
}

func supplyAt(asks []candidateLevel, priceTicks int64) int64 {
	var total int64
	for _, l := range asks {
		if l.priceTicks <= priceTicks {
			total += sumQty(l.orders)
		}
	}
	return total
}

func sumQty(orders []*types.Order) int64 {
	var total int64
	for _, o := range orders {
		total += o.RemainingQty
	}
	return total
}

// bestClearingPrice picks the candidate price that maximizes
// min(demand, supply). Ties are broken by distance to
// previousReference; with no reference, the lowest tying price wins.
func bestClearingPrice(candidates []int64, bids, asks []candidateLevel, previousReference *float64) (int64, int64) {
	var best int64
	var bestVolume int64 = -1
	var tying []int64

	for _, p := range candidates {
		vol := min64(demandAt(bids, p), supplyAt(asks, p))
		if vol > bestVolume {
			bestVolume = vol
			tying = []int64{p}
		} else if vol == bestVolume && vol > 0 {
			tying = append(tying, p)
		}
	}
	if bestVolume <= 0 {
		return 0, 0
	}
	if len(tying) == 1 {
		return tying[0], bestVolume
	}

	if previousReference != nil {
		refTicks := orderbook.PriceToTicks(*previousReference)
		best = tying[0]
		bestDist := abs64(tying[0] - refTicks)
		for _, p := range tying[1:] {
			if d := abs64(p - refTicks); d < bestDist {
				bestDist = d
				best = p
			}
		}
		return best, bestVolume
	}

	best = tying[0]
	for _, p := range tying[1:] {
		if p < best {
			best = p
		}
	}
	return best, bestVolume
}

// ordersAtOrBetter returns the orders that qualify to execute at
// clearingTicks, in price priority order with the marginal
// (clearing-price) group last: asks are naturally ascending already
// (best/lowest first, clearing price highest-qualifying last); bids
// need to be walked in descending price order (best/highest first,
// clearing price lowest-qualifying last), so levels — sorted
// ascending — are walked in reverse for that side.
func ordersAtOrBetter(levels []candidateLevel, clearingTicks int64, isBid bool) []*types.Order {
	var out []*types.Order
	if isBid {
		for i := len(levels) - 1; i >= 0; i-- {
			l := levels[i]
			if l.priceTicks < clearingTicks {
				continue
			}
			out = append(out, l.orders...)
		}
		return out
	}
	for _, l := range levels {
		if l.priceTicks > clearingTicks {
			continue
		}
		out = append(out, l.orders...)
	}
	return out
}

// shuffleMarginal randomizes the arrival order of orders resting
// exactly at the clearing price — the marginal price level, where
// demand/supply cannot be fully satisfied and fair random selection
// applies. Orders strictly inside the cross keep arrival order.
func (e *BatchEngine) shuffleMarginal(orders []*types.Order, clearingTicks int64, isBid bool) {
	start := -1
	for i, o := range orders {
		if orderbook.PriceToTicks(*o.Price) == clearingTicks {
			if start == -1 {
				start = i
			}
		}
	}
	if start == -1 {
		return
	}
	marginal := orders[start:]
	rand.Shuffle(len(marginal), func(i, j int) {
		marginal[i], marginal[j] = marginal[j], marginal[i]
	})
}

// cross executes the clearing volume against bids then asks in the
// order given (price-priority, arrival order except at the shuffled
// margin), returning the trades and the orders to remove from the
// book (fully consumed ones; partially consumed resting orders have
// had RemainingQty reduced in place but are left on the book).
func cross(instrumentID string, bids, asks []*types.Order, clearingPrice float64, volume int64, now time.Time) ([]types.Trade, []*types.Order, []*types.Order) {
	bidQueue := newAuctionQueue(bids, volume)
	askQueue := newAuctionQueue(asks, volume)

	var trades []types.Trade
	var consumedBids, consumedAsks []*types.Order

	for bidQueue.remaining() > 0 && askQueue.remaining() > 0 {
		buyOrder := bidQueue.front()
		sellOrder := askQueue.front()
		qty := min64(buyOrder.RemainingQty, sellOrder.RemainingQty)

		trade := types.NewTrade(instrumentID, buyOrder.TraderID, sellOrder.TraderID,
			buyOrder.OrderID, sellOrder.OrderID, clearingPrice, qty, now, types.NoAggressor)
		trades = append(trades, trade)

		buyOrder.RemainingQty -= qty
		sellOrder.RemainingQty -= qty
		bidQueue.consumed += qty
		askQueue.consumed += qty

		if buyOrder.RemainingQty == 0 {
			consumedBids = append(consumedBids, buyOrder)
		}
		if sellOrder.RemainingQty == 0 {
			consumedAsks = append(consumedAsks, sellOrder)
		}
	}
	return trades, consumedBids, consumedAsks
}

// auctionQueue walks a side's qualifying orders in order, capping
// total consumption at volume.
type auctionQueue struct {
	orders   []*types.Order
	idx      int
	volume   int64
	consumed int64
}

func newAuctionQueue(orders []*types.Order, volume int64) *auctionQueue {
	return &auctionQueue{orders: orders, volume: volume}
}

func (q *auctionQueue) remaining() int64 {
	return q.volume - q.consumed
}

// front returns the first order with quantity left to consume,
// advancing past any already-exhausted orders ahead of it.
func (q *auctionQueue) front() *types.Order {
	for q.idx < len(q.orders) && q.orders[q.idx].RemainingQty == 0 {
		q.idx++
	}
	return q.orders[q.idx]
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
