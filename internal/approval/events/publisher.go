package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Publisher delivers workflow events to one destination.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Fanout publishes every event to all configured publishers. A state
// transition never fails because a notification destination is down:
// Fanout logs per-publisher failures and returns an error only when
// every destination failed.
type Fanout struct {
	publishers []Publisher
	log        *zap.Logger
}

// NewFanout builds a fanout over the given publishers.
func NewFanout(log *zap.Logger, publishers ...Publisher) *Fanout {
	return &Fanout{publishers: publishers, log: log}
}

// Publish implements Publisher.
func (f *Fanout) Publish(ctx context.Context, event Event) error {
	if len(f.publishers) == 0 {
		return nil
	}

	var lastErr error
	successCount := 0

	for i, publisher := range f.publishers {
		if err := publisher.Publish(ctx, event); err != nil {
			f.log.Error("failed to publish workflow event",
				zap.Int("publisher_index", i),
				zap.String("event_type", string(event.Type)),
				zap.String("task_id", event.TaskID.String()),
				zap.Error(err),
			)
			lastErr = err
		} else {
			successCount++
		}
	}

	f.log.Debug("published workflow event",
		zap.String("event_type", string(event.Type)),
		zap.String("task_id", event.TaskID.String()),
		zap.String("trade_id", event.TradeID.String()),
		zap.String("status", string(event.Status)),
		zap.Int("publishers_success", successCount),
		zap.Int("publishers_total", len(f.publishers)),
	)

	if successCount == 0 {
		return fmt.Errorf("all %d event publishers failed: %w", len(f.publishers), lastErr)
	}
	return nil
}

// KafkaPublisher writes workflow events to a kafka topic, keyed by
// task ID so one task's events stay ordered within a partition.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher builds a kafka publisher for the given brokers and topic.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.Hash{},
		},
	}
}

// Publish implements Publisher.
func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.TaskID.String()),
		Value: payload,
	})
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// RedisPublisher publishes workflow events on a redis pub/sub channel
// for the UI layer to render.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

// NewRedisPublisher builds a redis publisher on the given channel.
func NewRedisPublisher(addr, channel string) *RedisPublisher {
	return &RedisPublisher{
		client:  redis.NewClient(&redis.Options{Addr: addr}),
		channel: channel,
	}
}

// Publish implements Publisher.
func (p *RedisPublisher) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return p.client.Publish(ctx, p.channel, payload).Err()
}

// Close closes the redis connection.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

// Bus is an in-process publisher for tests and embedded use. Events
// are delivered to subscribers on a buffered channel; slow subscribers
// drop events rather than blocking the engine.
type Bus struct {
	mu   sync.RWMutex
	subs map[int]chan Event
	next int
}

// NewBus returns an empty in-process event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe registers a subscriber. The returned cancel function
// removes the subscription and closes the channel.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan Event, 64)
	b.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
}

// Publish implements Publisher.
func (b *Bus) Publish(_ context.Context, event Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}
