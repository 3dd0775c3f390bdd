package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vaidashi/getmethis-dashboard/pkg/kafka"
	"github.com/vaidashi/getmethis-dashboard/pkg/logger"
)

// EventAuthChanged is the type of every event the bridge publishes
const EventAuthChanged = "auth_changed"

const (
	publishTimeout = 5 * time.Second
	relayCapacity  = 64
)

// AuthEvent is the payload published on every local session change
type AuthEvent struct {
	EventID    string    `json:"event_id"`
	Type       string    `json:"type"`
	InstanceID string    `json:"instance_id"`
	Reason     Reason    `json:"reason"`
	LoggedIn   bool      `json:"logged_in"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Bridge keeps several dashboard instances that share one storage profile in
// step. Local changes are published to a topic; events from other instances
// make the local store reload from storage.
type Bridge struct {
	store       *Store
	publisher   kafka.Publisher
	topic       string
	instanceID  string
	logger      logger.Logger
	relay       *kafka.Relay
	unsubscribe func()
}

// NewBridge creates a bridge for store. Call Start to begin publishing.
func NewBridge(store *Store, publisher kafka.Publisher, topic string, logger logger.Logger) *Bridge {
	b := &Bridge{
		store:      store,
		publisher:  publisher,
		topic:      topic,
		instanceID: uuid.New().String(),
		logger:     logger,
	}
	b.relay = kafka.NewRelay("session", relayCapacity, b.publish, logger)
	return b
}

// InstanceID identifies this process in published events
func (b *Bridge) InstanceID() string {
	return b.instanceID
}

// Start subscribes to local session changes and starts publishing them in
// the background
func (b *Bridge) Start() {
	b.relay.Start()
	b.unsubscribe = b.store.Subscribe(b.onChange)
}

// Stop stops publishing local changes. Changes already queued are still sent.
func (b *Bridge) Stop() {
	if b.unsubscribe != nil {
		b.unsubscribe()
	}
	b.relay.Stop()
}

func (b *Bridge) onChange(change Change) {
	// Changes we picked up from another instance are not echoed back
	if change.Reason == ReasonExternal {
		return
	}

	event := AuthEvent{
		EventID:    uuid.New().String(),
		Type:       EventAuthChanged,
		InstanceID: b.instanceID,
		Reason:     change.Reason,
		LoggedIn:   change.LoggedIn(),
		OccurredAt: time.Now().UTC(),
	}

	payload, err := json.Marshal(event)

	if err != nil {
		b.logger.Error("Failed to marshal auth event", "error", err)
		return
	}

	if !b.relay.Enqueue(kafka.Message{Key: b.instanceID, Value: payload}) {
		b.logger.Warn("Auth event not published", "eventID", event.EventID, "reason", event.Reason)
	}
}

func (b *Bridge) publish(ctx context.Context, msg kafka.Message) {
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := b.publisher.SendMessage(pubCtx, b.topic, msg.Key, msg.Value); err != nil {
		b.logger.Error("Failed to publish auth event", "error", err)
		return
	}

	b.logger.Debug("Published auth event", "topic", b.topic)
}

// HandleMessage implements kafka.MessageHandler
func (b *Bridge) HandleMessage(ctx context.Context, topic string, key, value []byte) error {
	var event AuthEvent

	if err := json.Unmarshal(value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal auth event: %w", err)
	}

	if event.Type != EventAuthChanged {
		b.logger.Debug("Ignoring event", "type", event.Type)
		return nil
	}

	if event.InstanceID == b.instanceID {
		return nil
	}

	b.logger.Info("Auth changed on another instance",
		"instanceID", event.InstanceID,
		"reason", event.Reason,
	)

	return b.store.Reload(ctx)
}
