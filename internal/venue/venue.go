// Package venue implements the exchange venue: the component that
// owns every instrument's order book, consults the phase manager on
// every submission, and routes to the matching engine the current
// phase calls for.
package venue

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/elinsky/Intern-Trading-Game-sub002/internal/matching"
	"github.com/elinsky/Intern-Trading-Game-sub002/internal/orderbook"
	"github.com/elinsky/Intern-Trading-Game-sub002/internal/phase"
	xerrors "github.com/elinsky/Intern-Trading-Game-sub002/pkg/errors"
	"github.com/elinsky/Intern-Trading-Game-sub002/pkg/types"
)

// Venue owns every instrument's book and routes submissions through
// the phase manager to the matching engine the current phase calls
// for. Reads of the instrument registry are lock-free (copy-on-write
// atomic.Value); writes (registering a new instrument) take the
// registry mutex.
type Venue struct {
	books       atomic.Value // map[string]*orderbook.Book
	registryMu  sync.Mutex
	instruments sync.Map // instrument_id -> types.Instrument

	tradesMu sync.Mutex
	trades   map[string][]types.Trade // instrument_id -> history
	refPrice map[string]float64       // instrument_id -> last clearing/trade price

	phases    phase.Manager
	cont      *matching.ContinuousEngine
	batch     *matching.BatchEngine
	clock     func() time.Time
	logger    *zap.Logger
}

// New constructs an empty venue.
func New(phases phase.Manager, cont *matching.ContinuousEngine, batch *matching.BatchEngine, clock func() time.Time, logger *zap.Logger) *Venue {
	if clock == nil {
		clock = time.Now
	}
	v := &Venue{
		trades:   make(map[string][]types.Trade),
		refPrice: make(map[string]float64),
		phases:   phases,
		cont:     cont,
		batch:    batch,
		clock:    clock,
		logger:   logger,
	}
	v.books.Store(make(map[string]*orderbook.Book))
	return v
}

// ListInstrument registers an instrument and creates its empty book.
// Re-registering an already-known instrument is a no-op.
func (v *Venue) ListInstrument(inst types.Instrument) error {
	if err := inst.Validate(); err != nil {
		return err
	}

	if _, ok := v.instruments.Load(inst.Symbol); ok {
		return nil
	}

	v.registryMu.Lock()
	defer v.registryMu.Unlock()

	books := v.books.Load().(map[string]*orderbook.Book)
	if _, ok := books[inst.Symbol]; ok {
		return nil
	}

	newBooks := make(map[string]*orderbook.Book, len(books)+1)
	for k, b := range books {
		newBooks[k] = b
	}
	newBooks[inst.Symbol] = orderbook.NewBook(inst.Symbol, v.logger)
	v.books.Store(newBooks)
	v.instruments.Store(inst.Symbol, inst)

	v.logger.Info("instrument listed", zap.String("instrument", inst.Symbol))
	return nil
}

func (v *Venue) bookFor(instrumentID string) (*orderbook.Book, error) {
	books := v.books.Load().(map[string]*orderbook.Book)
	b, ok := books[instrumentID]
	if !ok {
		return nil, xerrors.New(xerrors.UnknownInstrument, "unknown instrument: "+instrumentID)
	}
	return b, nil
}

// SubmitOrder runs the submission protocol: fetch the current phase,
// reject if submission is closed, park if the phase is batch, or
// route to the continuous engine otherwise.
func (v *Venue) SubmitOrder(o *types.Order) (types.MatchResult, error) {
	state := v.phases.State(v.clock())
	if !state.AllowSubmit {
		return types.MatchResult{}, xerrors.New(xerrors.MarketClosed, "market is not accepting orders")
	}

	book, err := v.bookFor(o.InstrumentID)
	if err != nil {
		return types.MatchResult{}, err
	}

	switch state.ExecutionStyle {
	case types.ExecutionBatch:
		if !o.IsLimit() {
			return types.MatchResult{}, xerrors.New(xerrors.InvalidOrder, "market orders cannot be parked while the book is accumulating for the opening auction")
		}
		if err := book.Add(o); err != nil {
			return types.MatchResult{}, err
		}
		return types.MatchResult{OrderID: o.OrderID, RemainingQty: o.RemainingQty, Status: types.StatusAccepted}, nil
	case types.ExecutionContinuous:
		result, err := v.cont.Match(book, o)
		if err != nil {
			return types.MatchResult{}, err
		}
		v.recordTrades(o.InstrumentID, result.Fills)
		return result, nil
	default:
		return types.MatchResult{}, xerrors.New(xerrors.MarketClosed, "matching is not enabled in the current phase")
	}
}

// CancelOrder cancels a resting order. The instrument must be known
// and the current phase must allow cancellation.
func (v *Venue) CancelOrder(instrumentID, orderID, traderID string) (bool, error) {
	state := v.phases.State(v.clock())
	if !state.AllowCancel {
		return false, xerrors.New(xerrors.MarketClosed, "cancellation is not allowed in the current phase")
	}
	book, err := v.bookFor(instrumentID)
	if err != nil {
		return false, err
	}
	return book.Cancel(orderID, traderID), nil
}

// GetOrderBook returns a read-only depth snapshot.
func (v *Venue) GetOrderBook(instrumentID string, maxLevels int) (bids, asks []orderbook.PriceLevelView, err error) {
	book, err := v.bookFor(instrumentID)
	if err != nil {
		return nil, nil, err
	}
	bids, asks = book.DepthSnapshot(maxLevels)
	return bids, asks, nil
}

// GetTradeHistory returns the trades recorded for instrumentID, oldest
// first.
func (v *Venue) GetTradeHistory(instrumentID string) []types.Trade {
	v.tradesMu.Lock()
	defer v.tradesMu.Unlock()
	history := v.trades[instrumentID]
	out := make([]types.Trade, len(history))
	copy(out, history)
	return out
}

func (v *Venue) recordTrades(instrumentID string, trades []types.Trade) {
	if len(trades) == 0 {
		return
	}
	v.tradesMu.Lock()
	defer v.tradesMu.Unlock()
	v.trades[instrumentID] = append(v.trades[instrumentID], trades...)
	v.refPrice[instrumentID] = trades[len(trades)-1].Price
}

// ExecuteOpeningAuction runs the batch engine against every known
// instrument's book, records the resulting trades, and rolls any
// surviving limit orders into the continuous book (they keep their
// original arrival timestamp — the batch engine never re-stamps
// orders it leaves resting). It returns every instrument's result,
// including instruments with no trades.
func (v *Venue) ExecuteOpeningAuction() ([]matching.AuctionResult, error) {
	books := v.books.Load().(map[string]*orderbook.Book)
	results := make([]matching.AuctionResult, 0, len(books))

	for instrumentID, book := range books {
		v.tradesMu.Lock()
		ref, hasRef := v.refPrice[instrumentID]
		v.tradesMu.Unlock()

		var refPtr *float64
		if hasRef {
			refPtr = &ref
		}

		result, err := v.batch.RunAuction(book, refPtr)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
		v.recordTrades(instrumentID, result.Trades)
	}

	v.logger.Info("opening auction complete", zap.Int("instrument_count", len(results)))
	return results, nil
}

// CancelAllOrders cancels every resting order across every instrument,
// typically called when the market closes.
func (v *Venue) CancelAllOrders() int {
	books := v.books.Load().(map[string]*orderbook.Book)
	var total int
	for instrumentID, book := range books {
		cleared := book.Clear()
		total += len(cleared)
		if len(cleared) > 0 {
			v.logger.Info("orders cancelled on market close",
				zap.String("instrument", instrumentID), zap.Int("count", len(cleared)))
		}
	}
	return total
}
