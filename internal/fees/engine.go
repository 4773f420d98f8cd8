// Package fees implements the role-indexed maker/taker fee table:
// given a quantity, role and liquidity type, it returns the signed fee
// (positive credits the trader, negative debits).
package fees

import (
	"fmt"
	"sort"

	xerrors "github.com/elinsky/Intern-Trading-Game-sub002/pkg/errors"
	"github.com/elinsky/Intern-Trading-Game-sub002/pkg/types"
)

// Engine holds one FeeSchedule per role.
type Engine struct {
	schedules map[string]types.FeeSchedule
}

// NewEngine constructs a fee engine from a role->schedule table.
func NewEngine(schedules map[string]types.FeeSchedule) *Engine {
	copied := make(map[string]types.FeeSchedule, len(schedules))
	for role, s := range schedules {
		copied[role] = s
	}
	return &Engine{schedules: copied}
}

// Schedule returns role's fee schedule, or an error listing the known
// roles if role is not configured.
func (e *Engine) Schedule(role string) (types.FeeSchedule, error) {
	s, ok := e.schedules[role]
	if !ok {
		return types.FeeSchedule{}, e.unknownRoleError(role)
	}
	return s, nil
}

// Fee returns the signed fee for quantity contracts traded by role as
// liquidityType. Zero quantity always yields zero fee, independent of
// role validity.
func (e *Engine) Fee(quantity int64, role string, liquidityType types.LiquidityType) (float64, error) {
	if quantity == 0 {
		return 0, nil
	}
	schedule, err := e.Schedule(role)
	if err != nil {
		return 0, err
	}
	switch liquidityType {
	case types.Maker:
		return float64(quantity) * schedule.MakerRebate, nil
	case types.Taker:
		return float64(quantity) * schedule.TakerFee, nil
	default:
		return 0, xerrors.New(xerrors.InvalidOrder, fmt.Sprintf("invalid liquidity type: %q", liquidityType))
	}
}

// LiquidityType classifies orderSide as maker or taker by comparing it
// to the trade's aggressor side: matching the aggressor means taker,
// opposing it means maker.
func (e *Engine) LiquidityType(orderSide, aggressorSide types.Side) types.LiquidityType {
	if orderSide == aggressorSide {
		return types.Taker
	}
	return types.Maker
}

func (e *Engine) unknownRoleError(role string) error {
	roles := make([]string, 0, len(e.schedules))
	for r := range e.schedules {
		roles = append(roles, r)
	}
	sort.Strings(roles)
	return xerrors.New(xerrors.InvalidOrder, fmt.Sprintf("unknown role: %s (known roles: %v)", role, roles))
}
