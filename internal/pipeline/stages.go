package pipeline

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/elinsky/Intern-Trading-Game-sub002/internal/coordinator"
	"github.com/elinsky/Intern-Trading-Game-sub002/internal/fees"
	"github.com/elinsky/Intern-Trading-Game-sub002/internal/metrics"
	"github.com/elinsky/Intern-Trading-Game-sub002/internal/positions"
	"github.com/elinsky/Intern-Trading-Game-sub002/internal/risk"
	"github.com/elinsky/Intern-Trading-Game-sub002/internal/venue"
	xerrors "github.com/elinsky/Intern-Trading-Game-sub002/pkg/errors"
	"github.com/elinsky/Intern-Trading-Game-sub002/pkg/types"
)

// FanOut is the capability interface the websocket transport layer
// implements; the core only ever hands it fully-formed WsMessages.
type FanOut interface {
	Send(teamID string, payload interface{})
}

// ValidatorStage pulls ValidatorItems, builds a ValidationContext from
// the position store, and either rejects (notifying the coordinator
// immediately) or forwards to the matcher queue.
type ValidatorStage struct {
	Bus         *Bus
	Validator   *risk.Validator
	Positions   *positions.Store
	Coordinator *coordinator.Coordinator
	Metrics     *metrics.Exchange
	Logger      *zap.Logger
}

// Run subscribes to TopicValidate and processes items until ctx is
// cancelled or the topic's channel is closed (the pipeline's shutdown
// sentinel).
func (s *ValidatorStage) Run(ctx context.Context) error {
	messages, err := s.Bus.subscribe(ctx, TopicValidate)
	if err != nil {
		return err
	}
	for msg := range messages {
		var item types.ValidatorItem
		if err := json.Unmarshal(msg.Payload, &item); err != nil {
			s.Logger.Error("validator: malformed queue item", zap.Error(err))
			msg.Ack()
			continue
		}
		s.process(item)
		msg.Ack()
	}
	return nil
}

func (s *ValidatorStage) process(item types.ValidatorItem) {
	ctx := types.ValidationContext{
		Order:            item.Order,
		TraderID:         item.Team.TeamID,
		TraderRole:       item.Team.Role,
		CurrentPositions: s.Positions.GetAll(item.Team.TeamID),
	}

	result := s.Validator.Validate(ctx)
	if result.Status == types.Rejected {
		if s.Metrics != nil {
			s.Metrics.RecordRejection(result.ErrorCode)
		}
		s.Coordinator.NotifyCompletion(item.RequestID, coordinator.Result{
			ErrorCode: result.ErrorCode,
			Payload: types.ApiResponse{
				Success:   false,
				RequestID: item.RequestID,
				ErrorCode: result.ErrorCode,
				ErrorMsg:  result.ErrorMessage,
			},
		})
		return
	}

	if err := publish(s.Bus, TopicMatch, types.MatcherItem(item)); err != nil {
		s.Logger.Error("validator: failed to forward to matcher queue", zap.Error(err))
		s.Coordinator.NotifyCompletion(item.RequestID, coordinator.Result{
			ErrorCode: string(xerrors.InternalError),
		})
	}
}

// MatcherStage pulls MatcherItems, asks the venue to process the order
// under the current phase, notifies the coordinator immediately with a
// summary, and emits one TradeEvent per fill to the publisher queue.
type MatcherStage struct {
	Bus         *Bus
	Venue       *venue.Venue
	Coordinator *coordinator.Coordinator
	Roles       RoleLookup
	Metrics     *metrics.Exchange
	Logger      *zap.Logger
}

// RoleLookup resolves a team ID to its configured role, for attaching
// buyer/seller roles to outgoing TradeEvents.
type RoleLookup func(teamID string) string

func (s *MatcherStage) Run(ctx context.Context) error {
	messages, err := s.Bus.subscribe(ctx, TopicMatch)
	if err != nil {
		return err
	}
	for msg := range messages {
		var item types.MatcherItem
		if err := json.Unmarshal(msg.Payload, &item); err != nil {
			s.Logger.Error("matcher: malformed queue item", zap.Error(err))
			msg.Ack()
			continue
		}
		s.process(item)
		msg.Ack()
	}
	return nil
}

func (s *MatcherStage) process(item types.MatcherItem) {
	result, err := s.Venue.SubmitOrder(item.Order)
	if err != nil {
		code, _ := xerrors.CodeOf(err)
		s.Coordinator.NotifyCompletion(item.RequestID, coordinator.Result{
			ErrorCode: string(code),
			Payload: types.ApiResponse{
				Success:   false,
				RequestID: item.RequestID,
				ErrorCode: string(code),
				ErrorMsg:  err.Error(),
			},
		})
		return
	}

	s.Coordinator.NotifyCompletion(item.RequestID, coordinator.Result{
		Payload: types.ApiResponse{
			Success:   true,
			RequestID: item.RequestID,
			OrderID:   result.OrderID,
			Data:      &result,
		},
	})

	for _, trade := range result.Fills {
		if s.Metrics != nil {
			s.Metrics.RecordTrade(trade.Quantity)
		}
		event := types.TradeEvent{
			Trade:         trade,
			BuyerRole:     s.Roles(trade.BuyerID),
			SellerRole:    s.Roles(trade.SellerID),
			AggressorSide: trade.AggressorSide,
		}
		if err := publish(s.Bus, TopicTrades, event); err != nil {
			s.Logger.Error("matcher: failed to publish trade event", zap.Error(err))
		}
	}
}

// PublisherStage pulls TradeEvents, computes fees for each participant
// side, emits an outbound WsMessage per side, and forwards a
// PositionDelta per side to the position-tracker queue.
type PublisherStage struct {
	Bus    *Bus
	Fees   *fees.Engine
	Logger *zap.Logger
}

func (s *PublisherStage) Run(ctx context.Context) error {
	messages, err := s.Bus.subscribe(ctx, TopicTrades)
	if err != nil {
		return err
	}
	for msg := range messages {
		var event types.TradeEvent
		if err := json.Unmarshal(msg.Payload, &event); err != nil {
			s.Logger.Error("publisher: malformed queue item", zap.Error(err))
			msg.Ack()
			continue
		}
		s.process(event)
		msg.Ack()
	}
	return nil
}

func (s *PublisherStage) process(event types.TradeEvent) {
	trade := event.Trade

	s.publishSide(trade.BuyerID, event.BuyerRole, types.Buy, event, trade.Quantity)
	s.publishSide(trade.SellerID, event.SellerRole, types.Sell, event, -trade.Quantity)
}

func (s *PublisherStage) publishSide(teamID, role string, side types.Side, event types.TradeEvent, signedDelta int64) {
	liquidity := s.Fees.LiquidityType(side, event.AggressorSide)
	fee, err := s.Fees.Fee(event.Trade.Quantity, role, liquidity)
	if err != nil {
		s.Logger.Warn("publisher: fee lookup failed", zap.String("team_id", teamID), zap.Error(err))
	}

	if err := publish(s.Bus, TopicFanOut, types.WsMessage{
		TeamID: teamID,
		Payload: map[string]interface{}{
			"trade_id":       event.Trade.TradeID,
			"instrument_id":  event.Trade.InstrumentID,
			"price":          event.Trade.Price,
			"quantity":       event.Trade.Quantity,
			"side":           side,
			"liquidity_type": liquidity,
			"fee":            fee,
		},
	}); err != nil {
		s.Logger.Error("publisher: failed to publish ws message", zap.Error(err))
	}

	if err := publish(s.Bus, TopicDeltas, types.PositionDelta{
		TeamID:       teamID,
		InstrumentID: event.Trade.InstrumentID,
		SignedDelta:  signedDelta,
	}); err != nil {
		s.Logger.Error("publisher: failed to publish position delta", zap.Error(err))
	}
}

// PositionTrackerStage pulls PositionDeltas and applies them to the
// position store — the only stage allowed to mutate positions.
type PositionTrackerStage struct {
	Bus       *Bus
	Positions *positions.Store
	Logger    *zap.Logger
}

func (s *PositionTrackerStage) Run(ctx context.Context) error {
	messages, err := s.Bus.subscribe(ctx, TopicDeltas)
	if err != nil {
		return err
	}
	for msg := range messages {
		var delta types.PositionDelta
		if err := json.Unmarshal(msg.Payload, &delta); err != nil {
			s.Logger.Error("position-tracker: malformed queue item", zap.Error(err))
			msg.Ack()
			continue
		}
		s.Positions.Update(delta.TeamID, delta.InstrumentID, delta.SignedDelta)
		msg.Ack()
	}
	return nil
}
