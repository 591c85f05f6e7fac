package hub

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"crimson-casino/internal/store"
)

// RedisRelay mirrors events between instances over a Redis pub/sub channel.
// Each relay stamps outgoing events with its own origin and skips incoming
// events that carry it, so a published event never loops back.
type RedisRelay struct {
	rdb     *redis.Client
	channel string
	origin  string
}

func NewRedisRelay(addr, channel string) *RedisRelay {
	return &RedisRelay{
		rdb:     redis.NewClient(&redis.Options{Addr: addr}),
		channel: channel,
		origin:  store.NewID(),
	}
}

func (r *RedisRelay) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func (r *RedisRelay) Publish(ev Event) {
	ev.Origin = r.origin
	msg, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := r.rdb.Publish(context.Background(), r.channel, msg).Err(); err != nil {
		log.Warn().Err(err).Str("channel", r.channel).Msg("relay publish failed")
	}
}

// Run subscribes to the channel and feeds foreign events into the hub until
// the context ends.
func (r *RedisRelay) Run(ctx context.Context, h *Hub) error {
	sub := r.rdb.Subscribe(ctx, r.channel)
	defer func() { _ = sub.Close() }()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Warn().Err(err).Str("channel", r.channel).Msg("bad relay payload")
				continue
			}
			if ev.Origin == r.origin {
				continue
			}
			h.Ingest(ev)
		}
	}
}

func (r *RedisRelay) Close() error {
	return r.rdb.Close()
}
