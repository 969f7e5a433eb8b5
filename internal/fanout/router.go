package fanout

import (
	"context"
	"encoding/json"

	"discreetx-backend/internal/models"
	"discreetx-backend/internal/store"

	"go.uber.org/zap"
)

// Router computes the topic for a committed mutation and publishes the result.
// Publishing is fire and forget: the mutation is already durable, so a publish
// failure is logged and swallowed, never surfaced to the caller.
type Router struct {
	bus   Bus
	sugar *zap.SugaredLogger
}

func NewRouter(bus Bus, sugar *zap.SugaredLogger) *Router {
	return &Router{bus: bus, sugar: sugar}
}

func (r *Router) publish(ctx context.Context, topic string, payload any) {
	bytes, err := json.Marshal(payload)
	if err != nil {
		r.sugar.Errorf("marshalling payload for topic %s: %v", topic, err)
		return
	}

	if err := r.bus.Publish(ctx, topic, bytes); err != nil {
		r.sugar.Errorf("publishing to topic %s: %v", topic, err)
	}
}

func (r *Router) MessageCreated(ctx context.Context, scope store.Scope, msg models.Message) {
	r.publish(ctx, MessagesTopic(scope.ID()), msg)
}

// MessageUpdated covers both edits and soft deletes, clients reconcile by id.
func (r *Router) MessageUpdated(ctx context.Context, scope store.Scope, msg models.Message) {
	r.publish(ctx, MessagesUpdateTopic(scope.ID()), msg)
}

func (r *Router) Typing(ctx context.Context, scope store.Scope, memberID int64, isTyping bool) {
	r.publish(ctx, TypingTopic(scope.ID(), memberID), isTyping)
}

type structuralEvent struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

func (r *Router) ServerEvent(ctx context.Context, serverID int64, eventType string, data any) {
	r.publish(ctx, ServerTopic(serverID), structuralEvent{Type: eventType, Data: data})
}

func (r *Router) CallEvent(ctx context.Context, serverID, otherProfileID int64, suffix string, payload any) {
	r.publish(ctx, CallTopic(serverID, otherProfileID, suffix), payload)
}
