// Package bootstrap wires the exchange's value-constructed object
// graph — venue, coordinator, stores, pipeline workers — in one
// explicit function, and exposes the three inbound operations
// (SubmitOrder, CancelOrder, QueryPositions) an HTTP/WebSocket
// transport layer would call.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	validator "github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/elinsky/Intern-Trading-Game-sub002/internal/coordinator"
	"github.com/elinsky/Intern-Trading-Game-sub002/internal/fees"
	"github.com/elinsky/Intern-Trading-Game-sub002/internal/matching"
	"github.com/elinsky/Intern-Trading-Game-sub002/internal/metrics"
	"github.com/elinsky/Intern-Trading-Game-sub002/internal/phase"
	"github.com/elinsky/Intern-Trading-Game-sub002/internal/pipeline"
	"github.com/elinsky/Intern-Trading-Game-sub002/internal/positions"
	"github.com/elinsky/Intern-Trading-Game-sub002/internal/risk"
	"github.com/elinsky/Intern-Trading-Game-sub002/internal/teams"
	"github.com/elinsky/Intern-Trading-Game-sub002/internal/venue"
	xerrors "github.com/elinsky/Intern-Trading-Game-sub002/pkg/errors"
	"github.com/elinsky/Intern-Trading-Game-sub002/pkg/types"
)

// App is the fully-wired exchange core.
type App struct {
	cfg Config

	Venue       *venue.Venue
	Coordinator *coordinator.Coordinator
	Positions   *positions.Store
	Validator   *risk.Validator
	Fees        *fees.Engine
	Teams       *teams.Registry
	Metrics     *metrics.Exchange
	Bus         *pipeline.Bus

	phases phase.Manager
	logger *zap.Logger
	dto    *validator.Validate

	fanOut *pipeline.FanOutStage
	group  *errgroup.Group
	cancel context.CancelFunc
}

// New builds the exchange's object graph from cfg. phases and sink are
// supplied by the caller: phases is usually a phase.ScheduledManager
// (or phase.AlwaysContinuousManager in tests); sink is the transport
// layer's websocket fan-out implementation.
func New(cfg Config, phases phase.Manager, sink pipeline.FanOut, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if phases == nil {
		phases = phase.NewScheduledManager(cfg.Schedule)
	}

	clock := time.Now
	cont := matching.NewContinuousEngine(clock, logger)
	batch := matching.NewBatchEngine(clock, logger)
	v := venue.New(phases, cont, batch, clock, logger)

	for _, inst := range cfg.Instruments {
		if err := v.ListInstrument(inst); err != nil {
			return nil, fmt.Errorf("bootstrap: listing instrument %s: %w", inst.Symbol, err)
		}
	}

	rateLimiter := risk.NewRateLimiter()
	val := risk.NewValidator(rateLimiter, logger)
	feeSchedules := make(map[string]types.FeeSchedule, len(cfg.Roles))
	for _, rc := range cfg.Roles {
		val.LoadConstraints(rc.Role, rc.Constraints)
		feeSchedules[rc.Role] = rc.Fees
	}
	feeEngine := fees.NewEngine(feeSchedules)

	coordCfg := cfg.Coordinator
	if coordCfg.MaxPendingRequests == 0 {
		coordCfg = DefaultCoordinatorConfig()
	}
	coord := coordinator.New(
		coordCfg.MaxPendingRequests,
		time.Duration(coordCfg.DefaultTimeoutSeconds)*time.Second,
		time.Duration(coordCfg.CleanupIntervalSeconds)*time.Second,
		logger,
	)

	posStore := positions.NewStore(logger)
	registry := teams.NewRegistry(cfg.TeamRoles)
	m := metrics.New()

	bufferSize := cfg.QueueBufferSize
	if bufferSize == 0 {
		bufferSize = 1000
	}
	bus := pipeline.NewBus(bufferSize, logger)

	poolSize := cfg.FanOutPoolSize
	if poolSize == 0 {
		poolSize = 32
	}
	fanOut, err := pipeline.NewFanOutStage(bus, sink, poolSize, logger)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: constructing fan-out stage: %w", err)
	}

	cadence := cfg.Cadence
	if cadence.PhaseCheckInterval == 0 {
		cadence = DefaultCadenceConfig()
	}
	cfg.Cadence = cadence
	cfg.Coordinator = coordCfg

	return &App{
		cfg:         cfg,
		Venue:       v,
		Coordinator: coord,
		Positions:   posStore,
		Validator:   val,
		Fees:        feeEngine,
		Teams:       registry,
		Metrics:     m,
		Bus:         bus,
		phases:      phases,
		logger:      logger,
		dto:         validator.New(),
		fanOut:      fanOut,
	}, nil
}

// Start launches the four pipeline stage workers, the websocket
// fan-out worker, and the phase-state poller as a coordinated group:
// any stage panic is fail-fast and terminates the whole group rather
// than being silently recovered.
func (a *App) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	group, gctx := errgroup.WithContext(ctx)
	a.group = group

	validatorStage := &pipeline.ValidatorStage{
		Bus: a.Bus, Validator: a.Validator, Positions: a.Positions,
		Coordinator: a.Coordinator, Metrics: a.Metrics, Logger: a.logger,
	}
	matcherStage := &pipeline.MatcherStage{
		Bus: a.Bus, Venue: a.Venue, Coordinator: a.Coordinator,
		Roles: a.Teams.Role, Metrics: a.Metrics, Logger: a.logger,
	}
	publisherStage := &pipeline.PublisherStage{Bus: a.Bus, Fees: a.Fees, Logger: a.logger}
	trackerStage := &pipeline.PositionTrackerStage{Bus: a.Bus, Positions: a.Positions, Logger: a.logger}

	group.Go(func() error { return validatorStage.Run(gctx) })
	group.Go(func() error { return matcherStage.Run(gctx) })
	group.Go(func() error { return publisherStage.Run(gctx) })
	group.Go(func() error { return trackerStage.Run(gctx) })
	group.Go(func() error { return a.fanOut.Run(gctx) })
	group.Go(func() error { return a.runPhasePoller(gctx) })
}

// runPhasePoller re-queries the phase manager on a fixed interval and
// drives the phase-boundary side effects the venue does not trigger on
// its own: it starts the opening auction the instant the schedule
// enters the opening_auction window, and sweeps resting orders the
// instant the schedule closes for the day.
func (a *App) runPhasePoller(ctx context.Context) error {
	ticker := time.NewTicker(a.cfg.Cadence.PhaseCheckInterval)
	defer ticker.Stop()

	var previous types.PhaseType
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			current := a.phases.State(time.Now()).PhaseType
			if current == previous {
				continue
			}
			switch current {
			case types.OpeningAuction:
				if _, err := a.Venue.ExecuteOpeningAuction(); err != nil {
					a.logger.Error("phase poller: opening auction failed", zap.Error(err))
				}
			case types.Closed:
				a.Venue.CancelAllOrders()
			}
			previous = current
		}
	}
}

// Shutdown stops the pipeline workers, drains the coordinator's
// pending table (unblocking every waiter with SERVICE_SHUTDOWN), and
// releases the fan-out pool.
func (a *App) Shutdown() error {
	a.Coordinator.Shutdown()
	if a.cancel != nil {
		a.cancel()
	}
	var err error
	if a.group != nil {
		err = a.group.Wait()
	}
	a.fanOut.Close()
	_ = a.Bus.Close()
	return err
}

// SubmitOrder is the programmatic form of the exchange's submit-order
// inbound request: structural validation, request-ID assignment, and
// synchronous wait for the pipeline's eventual result.
func (a *App) SubmitOrder(req types.SubmitOrderRequest) types.ApiResponse {
	now := time.Now()
	if err := a.dto.Struct(req); err != nil {
		return errorResponse("", xerrors.InvalidOrder, err.Error(), now)
	}

	role := a.Teams.Role(req.TeamID)
	reg, err := a.Coordinator.Register(req.TeamID)
	if err != nil {
		code, _ := xerrors.CodeOf(err)
		a.Metrics.RecordRejection(string(code))
		return errorResponse("", code, err.Error(), now)
	}
	a.Metrics.OrdersSubmitted.Inc()

	order := types.NewOrder(req, now)
	item := types.ValidatorItem{Order: order, Team: types.TeamInfo{TeamID: req.TeamID, Role: role}, RequestID: reg.RequestID}

	if err := a.publishValidatorItem(item); err != nil {
		return errorResponse(reg.RequestID, xerrors.InternalError, err.Error(), now)
	}

	result := a.Coordinator.WaitForCompletion(reg.RequestID, a.cfg.Cadence.OrderQueueTimeout)
	if result.Status == coordinator.TimedOut {
		return types.ApiResponse{
			Success: false, RequestID: reg.RequestID,
			ErrorCode: result.ErrorCode, ErrorMsg: "timed out awaiting pipeline completion",
			Timestamp: now.UnixNano(),
		}
	}
	if resp, ok := result.Payload.(types.ApiResponse); ok {
		resp.Timestamp = now.UnixNano()
		return resp
	}
	return errorResponse(reg.RequestID, xerrors.InternalError, "pipeline returned an unrecognized result", now)
}

func (a *App) publishValidatorItem(item types.ValidatorItem) error {
	return pipeline.PublishValidatorItem(a.Bus, item)
}

// CancelOrder cancels a resting order; the caller must be the order's
// original owner.
func (a *App) CancelOrder(teamID, instrumentID, orderID string) (bool, error) {
	return a.Venue.CancelOrder(instrumentID, orderID, teamID)
}

// QueryPositions returns a defensive copy of teamID's holdings.
func (a *App) QueryPositions(teamID string) map[string]int64 {
	return a.Positions.GetAll(teamID)
}

func errorResponse(requestID string, code xerrors.Code, message string, now time.Time) types.ApiResponse {
	return types.ApiResponse{
		Success: false, RequestID: requestID,
		ErrorCode: string(code), ErrorMsg: message,
		Timestamp: now.UnixNano(),
	}
}
