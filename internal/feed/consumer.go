package feed

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"crimson-casino/internal/metrics"
)

// Sink receives one raw outcome descriptor per feed key. The engine's result
// registry implements it.
type Sink interface {
	Deliver(feedKey, raw string)
}

// Message is the JSON body of an outcome record. Producers that cannot emit
// JSON put the feed key in the Kafka message key and the descriptor in the
// value instead.
type Message struct {
	FeedKey string `json:"feed_key"`
	Outcome string `json:"outcome"`
}

// Consumer reads externally-sourced round outcomes off Kafka and hands them
// to the engine. Dealer results for live tables arrive here.
type Consumer struct {
	reader *kafka.Reader
	sink   Sink
}

func NewConsumer(brokers []string, topic, groupID string, sink Sink) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			GroupID:  groupID,
			Topic:    topic,
			MinBytes: 1e3,
			MaxBytes: 10e6,
		}),
		sink: sink,
	}
}

// Run consumes until the context ends. Read errors back off and retry; a
// malformed record is logged and skipped, never fatal.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn().Err(err).Msg("kafka read failed")
			if err := sleepCtx(ctx, time.Second); err != nil {
				return err
			}
			continue
		}
		metrics.FeedMessages.Inc()

		key, outcome := parseRecord(msg.Key, msg.Value)
		if key == "" || outcome == "" {
			log.Warn().Str("key", string(msg.Key)).Msg("feed record without key or outcome")
			continue
		}
		log.Debug().Str("feed_key", key).Str("outcome", outcome).Msg("feed outcome")
		c.sink.Deliver(key, outcome)
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

func parseRecord(key, value []byte) (string, string) {
	var m Message
	if err := json.Unmarshal(value, &m); err == nil && m.FeedKey != "" && m.Outcome != "" {
		return m.FeedKey, m.Outcome
	}
	return strings.TrimSpace(string(key)), strings.TrimSpace(string(value))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
