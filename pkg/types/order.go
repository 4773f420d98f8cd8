package types

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	xerrors "github.com/elinsky/Intern-Trading-Game-sub002/pkg/errors"
)

// Side is the direction of an order or trade.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"

	// NoAggressor is the sentinel aggressor_side for auction trades,
	// where no single order forced the cross.
	NoAggressor Side = ""
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// OrderType distinguishes resting limit orders from sweep-and-drop
// market orders.
type OrderType string

const (
	Limit  OrderType = "limit"
	Market OrderType = "market"
)

// SubmitOrderRequest is the inbound shape the API layer hands to the
// core. Structural validation (go-playground/validator tags) happens
// here; role/position/rate constraints are the validator's job.
type SubmitOrderRequest struct {
	TeamID        string    `validate:"required"`
	InstrumentID  string    `validate:"required"`
	OrderType     OrderType `validate:"required,oneof=limit market"`
	Side          Side      `validate:"required,oneof=buy sell"`
	Quantity      int64     `validate:"required,gt=0"`
	Price         *float64  `validate:"omitempty,gt=0"`
	ClientOrderID string
}

// Order is an order as tracked by the book. OrderID is assigned by
// NewOrder when the order is constructed; the trader only ever owns the
// returned OrderID.
type Order struct {
	OrderID          string
	ClientOrderID    string
	InstrumentID     string
	TraderID         string
	Side             Side
	Quantity         int64
	Price            *float64 // nil for market orders
	OrderType        OrderType
	RemainingQty     int64
	Timestamp        time.Time

	// listElem is an opaque handle the order book uses for O(1)
	// removal from its FIFO queue; nil until the order rests.
	listElem interface{}
}

// NewOrder constructs an order with a freshly assigned OrderID and
// RemainingQty initialized to Quantity.
func NewOrder(req SubmitOrderRequest, now time.Time) *Order {
	return &Order{
		OrderID:       uuid.NewString(),
		ClientOrderID: req.ClientOrderID,
		InstrumentID:  req.InstrumentID,
		TraderID:      req.TeamID,
		Side:          req.Side,
		Quantity:      req.Quantity,
		Price:         req.Price,
		OrderType:     req.OrderType,
		RemainingQty:  req.Quantity,
		Timestamp:     now,
	}
}

// IsLimit reports whether this is a limit order.
func (o *Order) IsLimit() bool { return o.OrderType == Limit }

// IsMarket reports whether this is a market order.
func (o *Order) IsMarket() bool { return o.OrderType == Market }

// Validate enforces the order invariants from the data model.
func (o *Order) Validate() error {
	if o.Quantity <= 0 {
		return xerrors.New(xerrors.InvalidQuantity, fmt.Sprintf("quantity must be positive, got %d", o.Quantity))
	}
	if o.RemainingQty < 0 || o.RemainingQty > o.Quantity {
		return xerrors.New(xerrors.InvalidQuantity, fmt.Sprintf("remaining_quantity %d out of range [0, %d]", o.RemainingQty, o.Quantity))
	}
	if o.OrderType == Limit && o.Price == nil {
		return xerrors.New(xerrors.InvalidPrice, "limit orders must carry a price")
	}
	if o.OrderType == Market && o.Price != nil {
		return xerrors.New(xerrors.InvalidPrice, "market orders must not carry a price")
	}
	if o.Price != nil && *o.Price <= 0 {
		return xerrors.New(xerrors.InvalidPrice, fmt.Sprintf("price must be positive, got %v", *o.Price))
	}
	return nil
}

// SignedDelta returns the signed position impact of this order's full
// original quantity: +quantity for buys, -quantity for sells.
func (o *Order) SignedDelta() int64 {
	if o.Side == Buy {
		return o.Quantity
	}
	return -o.Quantity
}

// ListElem returns the order book's opaque FIFO handle for this order.
func (o *Order) ListElem() interface{} { return o.listElem }

// SetListElem stores the order book's opaque FIFO handle.
func (o *Order) SetListElem(e interface{}) { o.listElem = e }
