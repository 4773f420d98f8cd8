package bootstrap

import (
	"time"

	"github.com/elinsky/Intern-Trading-Game-sub002/internal/phase"
	"github.com/elinsky/Intern-Trading-Game-sub002/internal/risk"
	"github.com/elinsky/Intern-Trading-Game-sub002/pkg/types"
)

// RoleConfig is one role's fee schedule and registration-ordered
// constraint list.
type RoleConfig struct {
	Role        string
	Fees        types.FeeSchedule
	Constraints []risk.Constraint
}

// CadenceConfig holds the exchange's timing knobs.
type CadenceConfig struct {
	PhaseCheckInterval time.Duration
	OrderQueueTimeout  time.Duration
}

// CoordinatorConfig holds the response coordinator's capacity and
// timeout knobs.
type CoordinatorConfig struct {
	MaxPendingRequests     int
	DefaultTimeoutSeconds  int
	CleanupIntervalSeconds int
}

// Config is the full bootstrap configuration: everything an external
// loader would parse and hand to New. It is consumed here, not owned —
// config parsing itself lives outside this package.
type Config struct {
	Instruments []types.Instrument
	Roles       []RoleConfig
	TeamRoles   map[string]string // seed team_id -> role assignments
	Schedule    phase.Schedule
	Cadence     CadenceConfig
	Coordinator CoordinatorConfig

	// QueueBufferSize bounds each pipeline stage's input queue depth.
	QueueBufferSize int
	// FanOutPoolSize bounds the websocket fan-out goroutine pool.
	FanOutPoolSize int
}

// DefaultCoordinatorConfig mirrors a reasonable production default.
func DefaultCoordinatorConfig() CoordinatorConfig {
	return CoordinatorConfig{
		MaxPendingRequests:     10000,
		DefaultTimeoutSeconds:  5,
		CleanupIntervalSeconds: 10,
	}
}

// DefaultCadenceConfig mirrors a reasonable production default.
func DefaultCadenceConfig() CadenceConfig {
	return CadenceConfig{
		PhaseCheckInterval: time.Second,
		OrderQueueTimeout:  2 * time.Second,
	}
}
