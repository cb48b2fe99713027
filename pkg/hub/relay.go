package hub

import (
	"context"
	"fmt"
	"time"

	"github.com/canopy-network/canopyvote/pkg/retry"
	"github.com/go-jose/go-jose/v4/json"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RelayChannel is the Pub/Sub channel shared by every API instance.
const RelayChannel = "canopyvote:events"

// PubSub is the subset of the redis client the relay needs.
type PubSub interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	PSubscribe(ctx context.Context, patterns ...string) *goredis.PubSub
}

// Relay makes Broadcast reach subscribers on every instance: events are published to
// RelayChannel and each instance delivers what it receives to its local subscribers.
// While the subscription is down the hub falls back to local delivery.
type Relay struct {
	client  PubSub
	hub     *Hub
	logger  *zap.Logger
	channel string
	backoff retry.Config
}

func NewRelay(client PubSub, h *Hub, logger *zap.Logger) *Relay {
	return &Relay{
		client:  client,
		hub:     h,
		logger:  logger,
		channel: RelayChannel,
		backoff: retry.Config{
			InitialDelay:  time.Second,
			MaxDelay:      30 * time.Second,
			Multiplier:    2.0,
			JitterEnabled: true,
		},
	}
}

func (r *Relay) Publish(ctx context.Context, payload []byte) error {
	return r.client.Publish(ctx, r.channel, payload)
}

// Run keeps the subscription alive until ctx is cancelled, reconnecting with
// exponential backoff and jitter.
func (r *Relay) Run(ctx context.Context) {
	defer r.hub.SetPublisher(nil)

	attempt := 0
	for {
		if ctx.Err() != nil {
			r.logger.Info("Relay subscription cancelled")
			return
		}
		attempt++

		err := r.subscribe(ctx, attempt)
		r.hub.SetPublisher(nil)
		if ctx.Err() != nil {
			r.logger.Info("Relay subscription cancelled")
			return
		}

		wait := retry.Backoff(r.backoff, attempt)
		if err != nil {
			r.logger.Warn("Relay subscription failed, will retry",
				zap.Error(err),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", wait))
		} else {
			// The subscription was healthy before it closed; start over from the initial delay.
			attempt = 0
			r.logger.Warn("Relay subscription channel closed, will retry", zap.Duration("backoff", wait))
		}

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			r.logger.Info("Relay subscription cancelled during backoff")
			return
		}
	}
}

func (r *Relay) subscribe(ctx context.Context, attempt int) error {
	pubsub := r.client.PSubscribe(ctx, r.channel)
	defer func() {
		if err := pubsub.Close(); err != nil {
			r.logger.Debug("Error closing relay subscription", zap.Error(err))
		}
	}()

	receiveCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := pubsub.Receive(receiveCtx); err != nil {
		return fmt.Errorf("confirm relay subscription: %w", err)
	}

	r.logger.Info("Relay subscribed", zap.String("channel", r.channel), zap.Int("attempt", attempt))
	r.hub.SetPublisher(r)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var e Event
			if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
				r.logger.Error("Failed to parse relay message", zap.Error(err), zap.String("channel", msg.Channel))
				continue
			}
			r.hub.Deliver(e)
		}
	}
}
