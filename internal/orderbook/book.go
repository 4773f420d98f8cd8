// Package orderbook implements the per-instrument order book: two
// sorted price levels (bids descending, asks ascending), each level a
// strict FIFO queue of resting orders.
//
// The price levels are backed by github.com/emirpasic/gods/v2's
// red-black tree rather than a hash map, matching the data model's
// "price levels are sorted, not hashed" requirement. Prices are stored
// as fixed-point int64 ticks so the tree's comparator never has to
// reason about float equality.
package orderbook

import (
	"container/list"
	"sync"

	rbt "github.com/emirpasic/gods/v2/trees/redblacktree"
	"go.uber.org/zap"

	xerrors "github.com/elinsky/Intern-Trading-Game-sub002/pkg/errors"
	"github.com/elinsky/Intern-Trading-Game-sub002/pkg/types"
)

// TickScale converts a decimal price to the fixed-point tick used as
// the tree key. Four decimal places is enough headroom for the
// fractional option premiums ($0.01 increments and below) this
// exchange quotes.
const TickScale = 10000

// PriceToTicks converts a decimal price to its tick representation.
func PriceToTicks(price float64) int64 {
	return int64(price*TickScale + 0.5)
}

// TicksToPrice converts a tick value back to a decimal price.
func TicksToPrice(ticks int64) float64 {
	return float64(ticks) / TickScale
}

// priceLevel holds every resting order at one price, in strict arrival
// (FIFO) order.
type priceLevel struct {
	PriceTicks int64
	Orders     *list.List // of *types.Order
	Volume     int64
}

// handle is the opaque value stashed on an order via SetListElem so
// Cancel/Consume can locate it in O(1) without a second index.
type handle struct {
	elem  *list.Element
	level *priceLevel
	side  types.Side
}

// PriceLevelView is a read-only depth entry.
type PriceLevelView struct {
	Price    float64
	Quantity int64
}

// Book is the order book for a single instrument.
type Book struct {
	InstrumentID string

	mu   sync.Mutex
	bids *rbt.Tree[int64, *priceLevel] // descending: best bid first
	asks *rbt.Tree[int64, *priceLevel] // ascending: best ask first

	orders map[string]*types.Order

	logger *zap.Logger
}

func descendingTicks(a, b int64) int {
	switch {
	case a > b:
		return -1
	case a < b:
		return 1
	default:
		return 0
	}
}

func ascendingTicks(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// NewBook constructs an empty book for one instrument.
func NewBook(instrumentID string, logger *zap.Logger) *Book {
	return &Book{
		InstrumentID: instrumentID,
		bids:         rbt.NewWith[int64, *priceLevel](descendingTicks),
		asks:         rbt.NewWith[int64, *priceLevel](ascendingTicks),
		orders:       make(map[string]*types.Order),
		logger:       logger,
	}
}

func (b *Book) treeFor(side types.Side) *rbt.Tree[int64, *priceLevel] {
	if side == types.Buy {
		return b.bids
	}
	return b.asks
}

// Add rests an order on its side of the book. The order must already
// be a limit order with RemainingQty > 0; callers are expected to have
// run matching first (Add never matches).
func (b *Book) Add(o *types.Order) error {
	if err := o.Validate(); err != nil {
		return err
	}
	if o.OrderType != types.Limit {
		return xerrors.New(xerrors.InvalidOrder, "only limit orders may rest on the book")
	}
	if o.RemainingQty <= 0 {
		return xerrors.New(xerrors.InvalidQuantity, "cannot rest an order with no remaining quantity")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	ticks := PriceToTicks(*o.Price)
	tree := b.treeFor(o.Side)
	level, found := tree.Get(ticks)
	if !found {
		level = &priceLevel{PriceTicks: ticks, Orders: list.New()}
		tree.Put(ticks, level)
	}
	elem := level.Orders.PushBack(o)
	level.Volume += o.RemainingQty
	o.SetListElem(&handle{elem: elem, level: level, side: o.Side})
	b.orders[o.OrderID] = o

	b.logger.Debug("order rested",
		zap.String("instrument", b.InstrumentID),
		zap.String("order_id", o.OrderID),
		zap.String("side", string(o.Side)),
		zap.Float64("price", *o.Price),
		zap.Int64("remaining_qty", o.RemainingQty))

	return nil
}

// Cancel removes an order if it is still resting and owned by
// traderID. A missing order or ownership mismatch returns false, not
// an error — cancellation failures are not exceptional.
func (b *Book) Cancel(orderID, traderID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	o, ok := b.orders[orderID]
	if !ok {
		return false
	}
	if o.TraderID != traderID {
		return false
	}
	b.removeLocked(o)
	return true
}

// removeLocked detaches o from its FIFO queue and, if the level is now
// empty, from the price tree. Caller must hold b.mu.
func (b *Book) removeLocked(o *types.Order) {
	h, ok := o.ListElem().(*handle)
	if !ok || h == nil {
		delete(b.orders, o.OrderID)
		return
	}
	h.level.Orders.Remove(h.elem)
	h.level.Volume -= o.RemainingQty
	if h.level.Orders.Len() == 0 {
		b.treeFor(h.side).Remove(h.level.PriceTicks)
	}
	o.SetListElem(nil)
	delete(b.orders, o.OrderID)
}

// PeekBest returns the earliest-arrived order at the best price level
// on side, without removing it.
func (b *Book) PeekBest(side types.Side) (*types.Order, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.peekBestLocked(side)
}

func (b *Book) peekBestLocked(side types.Side) (*types.Order, bool) {
	node := b.treeFor(side).Left()
	if node == nil {
		return nil, false
	}
	front := node.Value.Orders.Front()
	if front == nil {
		return nil, false
	}
	return front.Value.(*types.Order), true
}

// Consume reduces the front resting order on side by qty (which must
// not exceed its remaining quantity) and removes it from the book if
// it is now fully filled. It returns the order that was consumed from
// (already mutated in place) so the caller can read its updated
// RemainingQty.
func (b *Book) Consume(side types.Side, qty int64) (*types.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	o, ok := b.peekBestLocked(side)
	if !ok {
		return nil, xerrors.New(xerrors.InternalError, "consume called on empty book side")
	}
	if qty > o.RemainingQty {
		return nil, xerrors.New(xerrors.InternalError, "consume quantity exceeds resting order's remaining quantity")
	}

	h := o.ListElem().(*handle)
	o.RemainingQty -= qty
	h.level.Volume -= qty

	if o.RemainingQty == 0 {
		b.removeLocked(o)
	}
	return o, nil
}

// BestBid returns the best bid price and aggregate quantity at that
// price, if any resting bids exist.
func (b *Book) BestBid() (price float64, qty int64, ok bool) {
	return b.best(b.bids)
}

// BestAsk returns the best ask price and aggregate quantity at that
// price, if any resting asks exist.
func (b *Book) BestAsk() (price float64, qty int64, ok bool) {
	return b.best(b.asks)
}

func (b *Book) best(tree *rbt.Tree[int64, *priceLevel]) (float64, int64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	node := tree.Left()
	if node == nil {
		return 0, 0, false
	}
	return TicksToPrice(node.Value.PriceTicks), node.Value.Volume, true
}

// DepthSnapshot returns up to maxLevels aggregated (price, quantity)
// tuples per side, best price first.
func (b *Book) DepthSnapshot(maxLevels int) (bids, asks []PriceLevelView) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return levelsOf(b.bids, maxLevels), levelsOf(b.asks, maxLevels)
}

func levelsOf(tree *rbt.Tree[int64, *priceLevel], maxLevels int) []PriceLevelView {
	keys := tree.Keys()
	n := len(keys)
	if maxLevels > 0 && n > maxLevels {
		n = maxLevels
	}
	out := make([]PriceLevelView, 0, n)
	for i := 0; i < n; i++ {
		level, _ := tree.Get(keys[i])
		out = append(out, PriceLevelView{Price: TicksToPrice(level.PriceTicks), Quantity: level.Volume})
	}
	return out
}

// IsEmptySide reports whether side has no resting orders.
func (b *Book) IsEmptySide(side types.Side) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.treeFor(side).Size() == 0
}

// Clear cancels every resting order on both sides and returns them,
// for the caller (the venue, on market close) to notify.
func (b *Book) Clear() []*types.Order {
	b.mu.Lock()
	defer b.mu.Unlock()

	cleared := make([]*types.Order, 0, len(b.orders))
	for _, o := range b.orders {
		cleared = append(cleared, o)
	}
	for _, o := range cleared {
		o.SetListElem(nil)
	}
	b.orders = make(map[string]*types.Order)
	b.bids = rbt.NewWith[int64, *priceLevel](descendingTicks)
	b.asks = rbt.NewWith[int64, *priceLevel](ascendingTicks)
	return cleared
}

// AllRestingOrders returns every order currently resting on side, best
// price first and in arrival order within a price. It is used by the
// batch engine to collect the demand/supply curve without matching.
func (b *Book) AllRestingOrders(side types.Side) []*types.Order {
	b.mu.Lock()
	defer b.mu.Unlock()

	tree := b.treeFor(side)
	var out []*types.Order
	for _, k := range tree.Keys() {
		level, _ := tree.Get(k)
		for e := level.Orders.Front(); e != nil; e = e.Next() {
			out = append(out, e.Value.(*types.Order))
		}
	}
	return out
}

// RemoveMany detaches the given orders from the book without regard
// to side bookkeeping order — used by the batch engine to remove the
// orders an auction fully consumed.
func (b *Book) RemoveMany(orders []*types.Order) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, o := range orders {
		if _, ok := b.orders[o.OrderID]; ok {
			b.removeLocked(o)
		}
	}
}
