package types

import (
	"time"

	"github.com/segmentio/ksuid"
)

// Trade is an immutable record of a single execution between two orders.
type Trade struct {
	TradeID        string
	InstrumentID   string
	BuyerID        string
	SellerID       string
	BuyerOrderID   string
	SellerOrderID  string
	Price          float64
	Quantity       int64
	Timestamp      time.Time
	AggressorSide  Side
}

// NewTrade constructs a Trade with a freshly assigned, time-sortable
// TradeID.
func NewTrade(instrumentID, buyerID, sellerID, buyerOrderID, sellerOrderID string, price float64, qty int64, now time.Time, aggressor Side) Trade {
	return Trade{
		TradeID:       ksuid.New().String(),
		InstrumentID:  instrumentID,
		BuyerID:       buyerID,
		SellerID:      sellerID,
		BuyerOrderID:  buyerOrderID,
		SellerOrderID: sellerOrderID,
		Price:         price,
		Quantity:      qty,
		Timestamp:     now,
		AggressorSide: aggressor,
	}
}

// Value returns price * quantity.
func (t Trade) Value() float64 {
	return t.Price * float64(t.Quantity)
}
