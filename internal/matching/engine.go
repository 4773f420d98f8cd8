// Package matching implements the two matching engines: continuous
// price/time-priority matching and the batch opening-auction cross.
// The continuous engine matches one incoming order against the book it
// targets; the batch engine crosses a whole accumulated book at once.
// Neither engine mutates positions or emits any side-effect beyond the
// returned trades and book state.
package matching

import (
	"time"

	"go.uber.org/zap"

	"github.com/elinsky/Intern-Trading-Game-sub002/internal/orderbook"
	xerrors "github.com/elinsky/Intern-Trading-Game-sub002/pkg/errors"
	"github.com/elinsky/Intern-Trading-Game-sub002/pkg/types"
)

// Clock lets tests control trade timestamps; production wiring passes
// time.Now.
type Clock func() time.Time

// Engine is the per-order matching contract ContinuousEngine satisfies.
// BatchEngine does not implement it; it exposes RunAuction instead.
type Engine interface {
	Match(book *orderbook.Book, incoming *types.Order) (types.MatchResult, error)
}

// ContinuousEngine matches an incoming order immediately against the
// resting book, walking price levels in priority order and resting
// any unfilled limit remainder.
type ContinuousEngine struct {
	clock  Clock
	logger *zap.Logger
}

// NewContinuousEngine constructs a continuous-matching engine.
func NewContinuousEngine(clock Clock, logger *zap.Logger) *ContinuousEngine {
	if clock == nil {
		clock = time.Now
	}
	return &ContinuousEngine{clock: clock, logger: logger}
}

// Match walks the opposite side of book in price-time priority,
// consuming resting orders until incoming is exhausted, the book side
// empties, or (for a limit order) the next resting price no longer
// crosses. Self-trading is not prevented: an incoming order may match
// against a resting order from the same trader.
func (e *ContinuousEngine) Match(book *orderbook.Book, incoming *types.Order) (types.MatchResult, error) {
	if err := incoming.Validate(); err != nil {
		return types.MatchResult{}, err
	}

	opposite := incoming.Side.Opposite()
	var fills []types.Trade

	for incoming.RemainingQty > 0 {
		resting, ok := book.PeekBest(opposite)
		if !ok {
			break
		}
		if incoming.IsLimit() && !crosses(incoming, resting) {
			break
		}

		qty := min64(incoming.RemainingQty, resting.RemainingQty)
		consumedResting, err := book.Consume(opposite, qty)
		if err != nil {
			return types.MatchResult{}, xerrors.Wrap(err, xerrors.InternalError, "failed to consume resting order")
		}
		incoming.RemainingQty -= qty

		trade := tradeFor(incoming, consumedResting, qty, e.clock())
		fills = append(fills, trade)

		e.logger.Debug("trade executed",
			zap.String("instrument", book.InstrumentID),
			zap.String("trade_id", trade.TradeID),
			zap.Float64("price", trade.Price),
			zap.Int64("quantity", trade.Quantity))
	}

	status := statusFor(incoming)
	if incoming.RemainingQty > 0 && incoming.IsLimit() {
		if err := book.Add(incoming); err != nil {
			return types.MatchResult{}, err
		}
	}

	return types.MatchResult{
		OrderID:      incoming.OrderID,
		Fills:        fills,
		RemainingQty: incoming.RemainingQty,
		Status:       status,
	}, nil
}

// crosses reports whether incoming's limit price crosses resting's
// price: a buy crosses when its price is at or above the ask, a sell
// when its price is at or below the bid.
func crosses(incoming, resting *types.Order) bool {
	if incoming.Side == types.Buy {
		return *incoming.Price >= *resting.Price
	}
	return *incoming.Price <= *resting.Price
}

// tradeFor builds a trade at the resting order's price (the maker sets
// price) with the incoming order's side as aggressor.
func tradeFor(incoming, resting *types.Order, qty int64, now time.Time) types.Trade {
	var buyerID, sellerID, buyerOrderID, sellerOrderID string
	if incoming.Side == types.Buy {
		buyerID, buyerOrderID = incoming.TraderID, incoming.OrderID
		sellerID, sellerOrderID = resting.TraderID, resting.OrderID
	} else {
		sellerID, sellerOrderID = incoming.TraderID, incoming.OrderID
		buyerID, buyerOrderID = resting.TraderID, resting.OrderID
	}
	return types.NewTrade(incoming.InstrumentID, buyerID, sellerID, buyerOrderID, sellerOrderID,
		*resting.Price, qty, now, incoming.Side)
}

// statusFor classifies the incoming order's outcome. A market order
// that finds no liquidity at all (no fills, nothing rests) is rejected
// rather than accepted — "accepted" would otherwise describe an order
// that never executed and never will, since market orders never rest.
func statusFor(o *types.Order) types.OrderStatus {
	switch {
	case o.RemainingQty == 0:
		return types.StatusFilled
	case o.RemainingQty < o.Quantity:
		return types.StatusPartial
	case o.OrderType == types.Market:
		return types.StatusRejected
	default:
		return types.StatusAccepted
	}
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
