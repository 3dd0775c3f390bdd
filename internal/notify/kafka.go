package notify

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/vaidashi/getmethis-dashboard/pkg/circuitbreaker"
	apperrors "github.com/vaidashi/getmethis-dashboard/pkg/errors"
	"github.com/vaidashi/getmethis-dashboard/pkg/kafka"
	"github.com/vaidashi/getmethis-dashboard/pkg/logger"
	"github.com/vaidashi/getmethis-dashboard/pkg/retry"
)

// relayCapacity bounds the notifications waiting for the broker
const relayCapacity = 256

// KafkaNotifier relays notifications to a topic so a separate delivery
// service (push, e-mail) can pick them up. Notify only queues the payload;
// a background relay publishes it, so broker trouble never reaches the caller.
// Failures are only logged.
type KafkaNotifier struct {
	publisher   kafka.Publisher
	topic       string
	key         string
	logger      logger.Logger
	retryConfig *retry.RetryConfig
	breaker     *circuitbreaker.CircuitBreaker
	relay       *kafka.Relay
}

// NewKafkaNotifier creates a KafkaNotifier. key partitions the stream,
// typically the storage profile of this dashboard instance. Call Start before
// notifications are raised.
func NewKafkaNotifier(publisher kafka.Publisher, topic, key string, logger logger.Logger) *KafkaNotifier {
	n := &KafkaNotifier{
		publisher: publisher,
		topic:     topic,
		key:       key,
		logger:    logger,
		retryConfig: &retry.RetryConfig{
			MaxAttempts:     3,
			BackoffStrategy: retry.NewPublishBackoff(),
			Logger:          logger,
		},
	}
	n.relay = kafka.NewRelay("notifications", relayCapacity, n.publish, logger)
	return n
}

// WithBreaker stops relaying while the broker keeps failing. Notifications
// raised while the breaker is open are dropped from the relay only.
func (n *KafkaNotifier) WithBreaker(cb *circuitbreaker.CircuitBreaker) *KafkaNotifier {
	n.breaker = cb
	return n
}

// WithRetryConfig overrides the publish retry policy
func (n *KafkaNotifier) WithRetryConfig(cfg *retry.RetryConfig) *KafkaNotifier {
	n.retryConfig = cfg
	return n
}

// Start starts the background relay
func (n *KafkaNotifier) Start() {
	n.relay.Start()
}

// Stop publishes what is still queued and stops the relay
func (n *KafkaNotifier) Stop() {
	n.relay.Stop()
}

func (n *KafkaNotifier) Notify(ctx context.Context, note Notification) {
	payload, err := json.Marshal(note)

	if err != nil {
		n.logger.Error("Failed to marshal notification", "error", err, "code", note.Code)
		return
	}

	if !n.relay.Enqueue(kafka.Message{Key: n.key, Value: payload}) {
		n.logger.Warn("Notification not relayed", "topic", n.topic, "code", note.Code)
	}
}

func (n *KafkaNotifier) publish(ctx context.Context, msg kafka.Message) {
	pubCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	send := func() error {
		return retry.Retry(pubCtx, func(ctx context.Context) error {
			if err := n.publisher.SendMessage(ctx, n.topic, msg.Key, msg.Value); err != nil {
				return markTemporary(err)
			}
			return nil
		}, n.retryConfig)
	}

	var err error
	if n.breaker != nil {
		err = n.breaker.Execute(send)
	} else {
		err = send()
	}

	if errors.Is(err, circuitbreaker.ErrOpen) {
		n.logger.Warn("Notification relay suspended", "topic", n.topic)
		return
	}

	if err != nil {
		n.logger.Error("Failed to relay notification", "error", err, "topic", n.topic)
	}
}

// markTemporary classifies broker failures as retryable
func markTemporary(err error) error {
	e := apperrors.NewTemporaryError(err.Error())
	e.Err = err
	return e
}
