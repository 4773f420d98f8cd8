package types

// ValidationContext is constructed per submission and handed to the
// constraint validator; it is never persisted.
type ValidationContext struct {
	Order            *Order
	TraderID         string
	TraderRole       string
	CurrentPositions map[string]int64 // instrument_id -> signed position
	OrdersThisSecond int64
}

// ValidationStatus is the outcome of running the constraint validator.
type ValidationStatus string

const (
	Accepted ValidationStatus = "accepted"
	Rejected ValidationStatus = "rejected"
)

// ValidationResult is returned by the constraint validator.
type ValidationResult struct {
	Status       ValidationStatus
	ErrorCode    string
	ErrorMessage string
}

// FeeSchedule is the per-role maker/taker fee table. Positive values
// credit the trader; negative values debit.
type FeeSchedule struct {
	MakerRebate float64
	TakerFee    float64
}

// LiquidityType classifies a trade participant as the passive or
// aggressive side.
type LiquidityType string

const (
	Maker LiquidityType = "maker"
	Taker LiquidityType = "taker"
)
