package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/elinsky/Intern-Trading-Game-sub002/pkg/types"
)

func buyOrder(qty int64) *types.Order {
	price := 5.25
	return types.NewOrder(types.SubmitOrderRequest{
		TeamID: "mm-1", InstrumentID: "SPX_4500_CALL",
		OrderType: types.Limit, Side: types.Buy, Quantity: qty, Price: &price,
	}, time.Now())
}

func TestValidator_PositionLimitRejection(t *testing.T) {
	v := NewValidator(NewRateLimiter(), zap.NewNop())
	v.LoadConstraints("market_maker", []Constraint{
		{PositionLimit: &PositionLimitConstraint{MaxPosition: 50, Symmetric: true}},
	})

	ctx := types.ValidationContext{
		Order:            buyOrder(10),
		TraderID:         "mm-1",
		TraderRole:       "market_maker",
		CurrentPositions: map[string]int64{"SPX_4500_CALL": 45},
	}

	result := v.Validate(ctx)
	assert.Equal(t, types.Rejected, result.Status)
	assert.Equal(t, "MM_POS_LIMIT", result.ErrorCode)
	assert.Contains(t, result.ErrorMessage, "Position exceeds ±50")
}

func TestValidator_PositionLimitAccepted(t *testing.T) {
	v := NewValidator(NewRateLimiter(), zap.NewNop())
	v.LoadConstraints("market_maker", []Constraint{
		{PositionLimit: &PositionLimitConstraint{MaxPosition: 50, Symmetric: true}},
	})

	ctx := types.ValidationContext{
		Order:            buyOrder(5),
		TraderID:         "mm-1",
		TraderRole:       "market_maker",
		CurrentPositions: map[string]int64{"SPX_4500_CALL": 40},
	}

	result := v.Validate(ctx)
	assert.Equal(t, types.Accepted, result.Status)
}

func TestValidator_RateLimitRejectsFourthOrderInSameSecond(t *testing.T) {
	v := NewValidator(NewRateLimiter(), zap.NewNop())
	v.LoadConstraints("retail", []Constraint{
		{OrderRate: &OrderRateConstraint{MaxOrdersPerSecond: 3}},
	})

	ctx := types.ValidationContext{Order: buyOrder(1), TraderID: "team-x", TraderRole: "retail"}

	for i := 0; i < 3; i++ {
		result := v.Validate(ctx)
		assert.Equal(t, types.Accepted, result.Status, "order %d should be accepted", i+1)
	}

	result := v.Validate(ctx)
	assert.Equal(t, types.Rejected, result.Status)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", result.ErrorCode)
}

func TestValidator_InstrumentNotAllowed(t *testing.T) {
	v := NewValidator(NewRateLimiter(), zap.NewNop())
	v.LoadConstraints("retail", []Constraint{
		{InstrumentAllowed: &InstrumentAllowedConstraint{
			AllowedInstruments: map[string]struct{}{"SPX_4400_CALL": {}},
		}},
	})

	ctx := types.ValidationContext{Order: buyOrder(1), TraderID: "team-x", TraderRole: "retail"}
	result := v.Validate(ctx)
	assert.Equal(t, types.Rejected, result.Status)
	assert.Equal(t, "INVALID_INSTRUMENT", result.ErrorCode)
}

func TestValidator_UnknownRoleAccepted(t *testing.T) {
	v := NewValidator(NewRateLimiter(), zap.NewNop())
	ctx := types.ValidationContext{Order: buyOrder(1), TraderID: "team-x", TraderRole: "nonexistent"}
	result := v.Validate(ctx)
	assert.Equal(t, types.Accepted, result.Status)
}

func TestValidator_ShortCircuitsOnFirstFailure(t *testing.T) {
	v := NewValidator(NewRateLimiter(), zap.NewNop())
	v.LoadConstraints("market_maker", []Constraint{
		{InstrumentAllowed: &InstrumentAllowedConstraint{AllowedInstruments: map[string]struct{}{}}},
		{PositionLimit: &PositionLimitConstraint{MaxPosition: 1, Symmetric: true}},
	})

	ctx := types.ValidationContext{
		Order: buyOrder(100), TraderID: "mm-1", TraderRole: "market_maker",
	}
	result := v.Validate(ctx)
	assert.Equal(t, "INVALID_INSTRUMENT", result.ErrorCode, "the first registered constraint should fail before the second is evaluated")
}
