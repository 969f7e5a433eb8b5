package fanout_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"discreetx-backend/internal/fanout"
	"discreetx-backend/internal/models"
	"discreetx-backend/internal/store"

	"go.uber.org/zap"
)

func TestTopicDeterminism(t *testing.T) {
	tests := []struct {
		name     string
		build    func() string
		expected string
	}{
		{"server", func() string { return fanout.ServerTopic(42) }, "server:42"},
		{"messages", func() string { return fanout.MessagesTopic(7) }, "chat:7:messages"},
		{"messages update", func() string { return fanout.MessagesUpdateTopic(7) }, "chat:7:messages:update"},
		{"typing", func() string { return fanout.TypingTopic(7, 99) }, "chat:7:istyping:99"},
		{"call answer", func() string { return fanout.CallTopic(42, 13, fanout.CallAnswer) }, "server:42:call:13:answer"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			first := tc.build()
			if first != tc.expected {
				t.Errorf("topic = %q, want %q", first, tc.expected)
			}
			if second := tc.build(); second != first {
				t.Errorf("same inputs produced %q then %q", first, second)
			}
		})
	}
}

type captureBus struct {
	mutex  sync.Mutex
	topics []string
	bodies [][]byte
	err    error
}

func (b *captureBus) Publish(_ context.Context, topic string, payload []byte) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.err != nil {
		return b.err
	}
	b.topics = append(b.topics, topic)
	b.bodies = append(b.bodies, payload)
	return nil
}

func TestRouterMessageCreated(t *testing.T) {
	bus := &captureBus{}
	router := fanout.NewRouter(bus, zap.NewNop().Sugar())

	msg := models.Message{ID: 1, ChannelID: 7, Content: "hi"}
	router.MessageCreated(context.Background(), store.ChannelScope(7), msg)

	if len(bus.topics) != 1 || bus.topics[0] != "chat:7:messages" {
		t.Fatalf("published topics = %v, want [chat:7:messages]", bus.topics)
	}

	var decoded models.Message
	if err := json.Unmarshal(bus.bodies[0], &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Content != "hi" {
		t.Errorf("payload content = %q, want %q", decoded.Content, "hi")
	}
}

func TestRouterStructuralEventShape(t *testing.T) {
	bus := &captureBus{}
	router := fanout.NewRouter(bus, zap.NewNop().Sugar())

	router.ServerEvent(context.Background(), 42, fanout.EventChannelCreated, models.Channel{ID: 5})

	var decoded struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(bus.bodies[0], &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Type != fanout.EventChannelCreated {
		t.Errorf("event type = %q, want %q", decoded.Type, fanout.EventChannelCreated)
	}
}

func TestRouterSwallowsPublishFailure(t *testing.T) {
	bus := &captureBus{err: errors.New("bus is down")}
	router := fanout.NewRouter(bus, zap.NewNop().Sugar())

	// must not panic or propagate, the mutation already committed
	router.MessageCreated(context.Background(), store.ChannelScope(1), models.Message{})
}

func TestLocalBusDelivery(t *testing.T) {
	bus := fanout.NewLocalBus()
	ch := make(chan fanout.Envelope, 1)

	bus.Subscribe("chat:1:messages", 100, ch)
	if err := bus.Publish(context.Background(), "chat:1:messages", []byte("x")); err != nil {
		t.Fatal(err)
	}

	select {
	case env := <-ch:
		if env.Topic != "chat:1:messages" || string(env.Payload) != "x" {
			t.Errorf("got envelope %+v", env)
		}
	default:
		t.Fatal("expected a delivery")
	}

	bus.Unsubscribe("chat:1:messages", 100)
	if err := bus.Publish(context.Background(), "chat:1:messages", []byte("y")); err != nil {
		t.Fatal(err)
	}

	select {
	case env := <-ch:
		t.Errorf("unexpected delivery after unsubscribe: %+v", env)
	default:
	}
}

func TestLocalBusDropsOnFullChannel(t *testing.T) {
	bus := fanout.NewLocalBus()
	ch := make(chan fanout.Envelope) // unbuffered, no reader

	bus.Subscribe("t", 1, ch)
	// must not block
	if err := bus.Publish(context.Background(), "t", []byte("x")); err != nil {
		t.Fatal(err)
	}
}
