// Package publisher emits an event to RabbitMQ for every new artifact so that
// downstream consumers do not have to poll the artifact store.
package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"channel_digest/internal/domain"
)

const ActionCreated = "created"

var ErrNotConfirmed = errors.New("broker did not confirm message")

type Config struct {
	URL        string
	Exchange   string
	RoutingKey string
	QueueName  string
}

// RabbitMQ publishes artifact events on a confirm-mode channel. Publish
// returns only after the broker has acknowledged the message.
type RabbitMQ struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	routingKey string
	mu         sync.Mutex
	logger     *slog.Logger
}

func NewRabbitMQ(cfg Config, logger *slog.Logger) (*RabbitMQ, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := setupChannel(ch, cfg); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	logger = logger.With("component", "publisher")
	logger.Info("connected to rabbitmq",
		"exchange", cfg.Exchange,
		"queue", cfg.QueueName,
		"routing_key", cfg.RoutingKey,
	)

	return &RabbitMQ{
		conn:       conn,
		channel:    ch,
		exchange:   cfg.Exchange,
		routingKey: cfg.RoutingKey,
		logger:     logger,
	}, nil
}

// setupChannel declares a durable direct exchange with one bound queue and
// switches the channel to confirm mode.
func setupChannel(ch *amqp.Channel, cfg Config) error {
	if err := ch.ExchangeDeclare(cfg.Exchange, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", cfg.Exchange, err)
	}

	q, err := ch.QueueDeclare(cfg.QueueName, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", cfg.QueueName, err)
	}

	if err := ch.QueueBind(q.Name, cfg.RoutingKey, cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", q.Name, err)
	}

	if err := ch.Confirm(false); err != nil {
		return fmt.Errorf("enable publisher confirms: %w", err)
	}
	return nil
}

// ArtifactEvent is the body of every message.
type ArtifactEvent struct {
	Action     string          `json:"action"`
	Artifact   domain.Artifact `json:"artifact"`
	OccurredAt time.Time       `json:"occurredAt"`
}

func (r *RabbitMQ) Publish(ctx context.Context, artifact *domain.Artifact) error {
	now := time.Now().UTC()
	body, err := json.Marshal(ArtifactEvent{
		Action:     ActionCreated,
		Artifact:   *artifact,
		OccurredAt: now,
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		MessageId:    artifact.ID,
		Type:         "artifact." + ActionCreated,
		Timestamp:    now,
		Headers: amqp.Table{
			"source_id":  artifact.SourceID,
			"channel_id": artifact.ChannelID,
		},
		Body: body,
	}

	r.mu.Lock()
	confirm, err := r.channel.PublishWithDeferredConfirmWithContext(ctx, r.exchange, r.routingKey, false, false, msg)
	r.mu.Unlock()
	if err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("wait for confirm: %w", err)
	}
	if !acked {
		return fmt.Errorf("%w: artifact %s", ErrNotConfirmed, artifact.ID)
	}

	r.logger.Debug("published artifact event",
		"artifact_id", artifact.ID,
		"source_id", artifact.SourceID,
	)
	return nil
}

func (r *RabbitMQ) Close() error {
	if r.channel != nil {
		_ = r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
