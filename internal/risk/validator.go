// Package risk implements the role-indexed constraint validator:
// position limits, instrument whitelists, and per-second order-rate
// limits, evaluated in registration order with first-failure
// short-circuit.
package risk

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	xerrors "github.com/elinsky/Intern-Trading-Game-sub002/pkg/errors"
	"github.com/elinsky/Intern-Trading-Game-sub002/pkg/types"
)

// Constraint is a sum type over the constraint kinds a role can carry.
// Exactly one of the embedded pointers is non-nil.
type Constraint struct {
	PositionLimit     *PositionLimitConstraint
	InstrumentAllowed *InstrumentAllowedConstraint
	OrderRate         *OrderRateConstraint
}

// PositionLimitConstraint bounds the post-trade position. ErrorCode and
// ErrorMessage, if set, override the constraint's default rejection
// code/message (spec.md §3 models both as per-constraint parameters).
type PositionLimitConstraint struct {
	MaxPosition  int64
	Symmetric    bool
	ErrorCode    string
	ErrorMessage string
}

// InstrumentAllowedConstraint restricts the tradeable instrument set.
type InstrumentAllowedConstraint struct {
	AllowedInstruments map[string]struct{}
	ErrorCode          string
	ErrorMessage       string
}

// OrderRateConstraint bounds accepted orders per second per team.
type OrderRateConstraint struct {
	MaxOrdersPerSecond int64
	ErrorCode          string
	ErrorMessage       string
}

// Validator holds the role-keyed, registration-ordered constraint
// lists and evaluates them against a ValidationContext.
type Validator struct {
	mu          sync.RWMutex
	byRole      map[string][]Constraint
	rateLimiter *RateLimiter
	logger      *zap.Logger
}

// NewValidator constructs an empty validator. rateLimiter backs every
// OrderRateConstraint across every role.
func NewValidator(rateLimiter *RateLimiter, logger *zap.Logger) *Validator {
	return &Validator{
		byRole:      make(map[string][]Constraint),
		rateLimiter: rateLimiter,
		logger:      logger,
	}
}

// LoadConstraints replaces role's constraint list, preserving
// registration order for short-circuit evaluation.
func (v *Validator) LoadConstraints(role string, constraints []Constraint) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.byRole[role] = constraints
	v.logger.Info("constraints loaded", zap.String("role", role), zap.Int("count", len(constraints)))
}

// Validate runs role's constraint chain against ctx. Unknown roles are
// accepted unconditionally — there is nothing registered to check.
func (v *Validator) Validate(ctx types.ValidationContext) types.ValidationResult {
	v.mu.RLock()
	constraints, ok := v.byRole[ctx.TraderRole]
	v.mu.RUnlock()
	if !ok {
		return types.ValidationResult{Status: types.Accepted}
	}

	for _, c := range constraints {
		if result, rejected := v.check(c, ctx); rejected {
			return result
		}
	}
	return types.ValidationResult{Status: types.Accepted}
}

func (v *Validator) check(c Constraint, ctx types.ValidationContext) (types.ValidationResult, bool) {
	switch {
	case c.InstrumentAllowed != nil:
		return checkInstrumentAllowed(*c.InstrumentAllowed, ctx)
	case c.PositionLimit != nil:
		return checkPositionLimit(*c.PositionLimit, ctx)
	case c.OrderRate != nil:
		return v.checkOrderRate(*c.OrderRate, ctx)
	default:
		return types.ValidationResult{}, false
	}
}

func checkInstrumentAllowed(c InstrumentAllowedConstraint, ctx types.ValidationContext) (types.ValidationResult, bool) {
	if _, ok := c.AllowedInstruments[ctx.Order.InstrumentID]; ok {
		return types.ValidationResult{}, false
	}
	code := c.ErrorCode
	if code == "" {
		code = string(xerrors.InvalidInstrument)
	}
	message := c.ErrorMessage
	if message == "" {
		message = fmt.Sprintf("instrument %s is not in the allowed set for this role", ctx.Order.InstrumentID)
	}
	return types.ValidationResult{
		Status:       types.Rejected,
		ErrorCode:    code,
		ErrorMessage: message,
	}, true
}

func checkPositionLimit(c PositionLimitConstraint, ctx types.ValidationContext) (types.ValidationResult, bool) {
	current := ctx.CurrentPositions[ctx.Order.InstrumentID]
	newPosition := current + ctx.Order.SignedDelta()

	var violated bool
	if c.Symmetric {
		violated = abs64(newPosition) > c.MaxPosition
	} else if newPosition >= 0 {
		violated = newPosition > c.MaxPosition
	} else {
		violated = -newPosition > c.MaxPosition
	}
	if !violated {
		return types.ValidationResult{}, false
	}
	code := c.ErrorCode
	if code == "" {
		code = string(xerrors.PositionLimit)
	}
	message := c.ErrorMessage
	if message == "" {
		message = fmt.Sprintf("Position exceeds ±%d", c.MaxPosition)
	}
	return types.ValidationResult{
		Status:       types.Rejected,
		ErrorCode:    code,
		ErrorMessage: message,
	}, true
}

func (v *Validator) checkOrderRate(c OrderRateConstraint, ctx types.ValidationContext) (types.ValidationResult, bool) {
	allowed := true
	if v.rateLimiter != nil {
		allowed = v.rateLimiter.Allow(ctx.TraderID, c.MaxOrdersPerSecond)
	} else {
		allowed = ctx.OrdersThisSecond < c.MaxOrdersPerSecond
	}
	if allowed {
		return types.ValidationResult{}, false
	}
	code := c.ErrorCode
	if code == "" {
		code = string(xerrors.RateLimitExceeded)
	}
	message := c.ErrorMessage
	if message == "" {
		message = fmt.Sprintf("order rate exceeds %d per second", c.MaxOrdersPerSecond)
	}
	return types.ValidationResult{
		Status:       types.Rejected,
		ErrorCode:    code,
		ErrorMessage: message,
	}, true
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
