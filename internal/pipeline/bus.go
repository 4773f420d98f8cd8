// Package pipeline wires the four cooperating worker stages (validator,
// matcher, publisher, position-tracker) plus the websocket fan-out
// stage over bounded in-process queues, implementing the end-to-end
// order lifecycle. Each stage subscribes to one topic on a watermill
// gochannel broker and publishes to the next, giving a queue-based
// worker-loop shape without a hand-rolled channel-of-structs per stage.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"go.uber.org/zap"

	"github.com/elinsky/Intern-Trading-Game-sub002/pkg/types"
)

// Topic names for the pipeline's internal queues.
const (
	TopicValidate = "pipeline.validate"
	TopicMatch    = "pipeline.match"
	TopicTrades   = "pipeline.trades"
	TopicDeltas   = "pipeline.deltas"
	TopicFanOut   = "pipeline.fanout"
)

// Bus is the in-process message broker every stage publishes to and
// subscribes from. OutputChannelBuffer is the bound on each topic's
// queue depth; Persistent is false because this system keeps no
// durable queue state across restarts.
type Bus struct {
	pubSub *gochannel.GoChannel
	logger *zap.Logger
}

// NewBus constructs a Bus with the given per-topic buffer size.
func NewBus(bufferSize int, logger *zap.Logger) *Bus {
	wmLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer: int64(bufferSize),
			Persistent:          false,
		},
		wmLogger,
	)
	return &Bus{pubSub: pubSub, logger: logger}
}

// publish marshals v to JSON and publishes it to topic.
func publish[T any](b *Bus, topic string, v T) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("pipeline: marshal payload for %s: %w", topic, err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	return b.pubSub.Publish(topic, msg)
}

// subscribe returns the raw message channel for topic; callers decode
// payloads with json.Unmarshal and must Ack (or Nack) every message.
func (b *Bus) subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return b.pubSub.Subscribe(ctx, topic)
}

// Close shuts down every topic's underlying channel.
func (b *Bus) Close() error {
	return b.pubSub.Close()
}

// PublishValidatorItem is the entry point the public API uses to hand
// a freshly registered submission to the validator stage's queue.
func PublishValidatorItem(b *Bus, item types.ValidatorItem) error {
	return publish(b, TopicValidate, item)
}
