package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"goplay/internal/domain/game"
)

const channelPrefix = "game:"

func channel(gameID int64) string {
	return channelPrefix + strconv.FormatInt(gameID, 10)
}

// RedisPublisher sends events through Redis pub/sub so every server process
// relays them to its own connections.
type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, gameID int64, event game.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event.Type, err)
	}
	return p.client.Publish(ctx, channel(gameID), data).Err()
}

// Relay feeds events published on Redis into the local hub.
type Relay struct {
	client *redis.Client
	hub    *Hub
	log    *zap.SugaredLogger
}

func NewRelay(client *redis.Client, hub *Hub, log *zap.SugaredLogger) *Relay {
	return &Relay{client: client, hub: hub, log: log}
}

// Start subscribes and returns once Redis confirmed the subscription. Events
// are forwarded until ctx ends.
func (r *Relay) Start(ctx context.Context) error {
	pubsub := r.client.PSubscribe(ctx, channelPrefix+"*")
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("subscribe to game events: %w", err)
	}

	go func() {
		defer pubsub.Close()

		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				r.forward(ctx, msg)
			}
		}
	}()
	return nil
}

func (r *Relay) forward(ctx context.Context, msg *redis.Message) {
	gameID, err := strconv.ParseInt(strings.TrimPrefix(msg.Channel, channelPrefix), 10, 64)
	if err != nil {
		r.log.Warnw("ignoring event on unexpected channel", "channel", msg.Channel)
		return
	}
	if err = r.hub.PublishRaw(ctx, gameID, []byte(msg.Payload)); err != nil {
		r.log.Debugw("relay stopped forwarding", "game_id", gameID, "err", err)
	}
}
