package pipeline

import (
	"context"
	"encoding/json"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/elinsky/Intern-Trading-Game-sub002/pkg/types"
)

// FanOutStage pulls WsMessages and dispatches each to the transport
// layer's per-team listener via a bounded goroutine pool: fanning one
// trade event out to a handful of listening connections is a
// bursty-parallel-task shape, so a pooled dispatch avoids spinning an
// unbounded goroutine per message.
type FanOutStage struct {
	Bus    *Bus
	Sink   FanOut
	Logger *zap.Logger

	pool *ants.Pool
}

// NewFanOutStage constructs a fan-out stage backed by a pool of
// poolSize goroutines.
func NewFanOutStage(bus *Bus, sink FanOut, poolSize int, logger *zap.Logger) (*FanOutStage, error) {
	pool, err := ants.NewPool(poolSize, ants.WithPanicHandler(func(r interface{}) {
		logger.Error("fanout: dispatch task panicked", zap.Any("panic", r))
	}))
	if err != nil {
		return nil, err
	}
	return &FanOutStage{Bus: bus, Sink: sink, Logger: logger, pool: pool}, nil
}

// Run subscribes to TopicFanOut and submits each message to the pool
// for concurrent delivery to the sink.
func (s *FanOutStage) Run(ctx context.Context) error {
	messages, err := s.Bus.subscribe(ctx, TopicFanOut)
	if err != nil {
		return err
	}
	for msg := range messages {
		var wsMsg types.WsMessage
		if err := json.Unmarshal(msg.Payload, &wsMsg); err != nil {
			s.Logger.Error("fanout: malformed queue item", zap.Error(err))
			msg.Ack()
			continue
		}
		msg.Ack()
		if err := s.pool.Submit(func() { s.Sink.Send(wsMsg.TeamID, wsMsg.Payload) }); err != nil {
			s.Logger.Error("fanout: failed to submit dispatch task", zap.Error(err))
		}
	}
	return nil
}

// Close releases the underlying goroutine pool.
func (s *FanOutStage) Close() {
	s.pool.Release()
}
