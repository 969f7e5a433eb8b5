package fanout

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Bus is the at-most-once publish/subscribe fanout collaborator. No
// persistence, no delivery guarantees, no replay.
type Bus interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// Envelope is what local subscribers receive on their channel.
type Envelope struct {
	Topic   string
	Payload []byte
}

// RedisBus publishes to redis pub/sub, the production fanout.
type RedisBus struct {
	client *redis.Client
}

func NewRedisBus(client *redis.Client) *RedisBus {
	return &RedisBus{client: client}
}

func (b *RedisBus) Publish(ctx context.Context, topic string, payload []byte) error {
	return b.client.Publish(ctx, topic, payload).Err()
}

// LocalBus is the in-process fanout used in self-contained mode. Subscribers
// register a channel per session, delivery drops on a full channel rather than
// blocking a publisher.
type LocalBus struct {
	mutex       sync.RWMutex
	subscribers map[string]map[int64]chan<- Envelope
}

func NewLocalBus() *LocalBus {
	return &LocalBus{subscribers: make(map[string]map[int64]chan<- Envelope)}
}

func (b *LocalBus) Subscribe(topic string, sessionID int64, ch chan<- Envelope) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.subscribers[topic] == nil {
		b.subscribers[topic] = make(map[int64]chan<- Envelope)
	}
	b.subscribers[topic][sessionID] = ch
}

func (b *LocalBus) Unsubscribe(topic string, sessionID int64) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	delete(b.subscribers[topic], sessionID)
	if len(b.subscribers[topic]) == 0 {
		delete(b.subscribers, topic)
	}
}

func (b *LocalBus) UnsubscribeAll(sessionID int64) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	for topic := range b.subscribers {
		delete(b.subscribers[topic], sessionID)
		if len(b.subscribers[topic]) == 0 {
			delete(b.subscribers, topic)
		}
	}
}

func (b *LocalBus) Publish(_ context.Context, topic string, payload []byte) error {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	for _, ch := range b.subscribers[topic] {
		select {
		case ch <- Envelope{Topic: topic, Payload: payload}:
		default:
			// subscriber too slow, at-most-once means we drop
		}
	}
	return nil
}

// NopBus satisfies Bus without side effects, for tests and tooling.
type NopBus struct{}

func (NopBus) Publish(context.Context, string, []byte) error { return nil }
