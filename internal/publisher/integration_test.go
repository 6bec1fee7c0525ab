//go:build integration

package publisher

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"
	"github.com/testcontainers/testcontainers-go/wait"

	"channel_digest/internal/domain"
	"channel_digest/testdata/utils"
)

type RabbitMQIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *rabbitmq.RabbitMQContainer
	amqpURL   string
	logger    *slog.Logger
}

func (s *RabbitMQIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()
	s.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	container, err := rabbitmq.Run(s.ctx,
		"rabbitmq:3.13-management-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Server startup complete").
				WithStartupTimeout(60*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	amqpURL, err := container.AmqpURL(s.ctx)
	s.Require().NoError(err)
	s.amqpURL = amqpURL
}

func (s *RabbitMQIntegrationSuite) TearDownSuite() {
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func TestRabbitMQIntegrationSuite(t *testing.T) {
	suite.Run(t, new(RabbitMQIntegrationSuite))
}

func (s *RabbitMQIntegrationSuite) config(name string) Config {
	return Config{
		URL:        s.amqpURL,
		Exchange:   "exchange-" + name,
		RoutingKey: "artifacts-" + name,
		QueueName:  "queue-" + name,
	}
}

func testArtifact() *domain.Artifact {
	now := time.Now().Truncate(time.Millisecond)
	return &domain.Artifact{
		ID:           "7a4f0c1e-1111-4222-8333-944455556666",
		SourceID:     "dQw4w9WgXcQ",
		ChannelID:    "UC1",
		ChannelName:  "Channel One",
		Title:        "Weekly Crypto Digest",
		VideoTitle:   "Market update",
		PublishedAt:  now,
		SourceURL:    domain.WatchURL("dQw4w9WgXcQ"),
		ThumbnailURL: utils.Ptr("https://i.ytimg.com/vi/dQw4w9WgXcQ/maxresdefault.jpg"),
		Summary: domain.Summary{
			Title:       "Weekly Crypto Digest",
			Overview:    "overview",
			KeyTakeaway: "takeaway",
			Disclaimer:  "not advice",
		},
		CreatedAt: now,
	}
}

func (s *RabbitMQIntegrationSuite) TestPublisher_DeclaresTopology() {
	cfg := s.config("topology")
	pub, err := NewRabbitMQ(cfg, s.logger)
	s.Require().NoError(err)
	s.NoError(pub.Close())

	conn, err := amqp.Dial(s.amqpURL)
	s.Require().NoError(err)
	defer conn.Close()
	ch, err := conn.Channel()
	s.Require().NoError(err)
	defer ch.Close()

	q, err := ch.QueueDeclarePassive(cfg.QueueName, true, false, false, false, nil)
	s.Require().NoError(err)
	s.Equal(0, q.Messages)
}

func (s *RabbitMQIntegrationSuite) TestPublisher_PublishIsConfirmed() {
	cfg := s.config("publish")
	pub, err := NewRabbitMQ(cfg, s.logger)
	s.Require().NoError(err)
	defer pub.Close()

	artifact := testArtifact()
	s.Require().NoError(pub.Publish(s.ctx, artifact))

	delivery := s.nextDelivery(cfg.QueueName)
	s.Require().NotNil(delivery)

	s.Equal("application/json", delivery.ContentType)
	s.Equal("artifact.created", delivery.Type)
	s.Equal(artifact.ID, delivery.MessageId)
	s.Equal(uint8(amqp.Persistent), delivery.DeliveryMode)
	s.Equal("dQw4w9WgXcQ", delivery.Headers["source_id"])
	s.Equal("UC1", delivery.Headers["channel_id"])

	var event ArtifactEvent
	s.Require().NoError(json.Unmarshal(delivery.Body, &event))
	s.Equal(ActionCreated, event.Action)
	s.Equal("Weekly Crypto Digest", event.Artifact.Title)
	s.Equal("takeaway", event.Artifact.Summary.KeyTakeaway)
	s.Require().NotNil(event.Artifact.ThumbnailURL)
	s.False(event.OccurredAt.IsZero())
}

func (s *RabbitMQIntegrationSuite) nextDelivery(queue string) *amqp.Delivery {
	conn, err := amqp.Dial(s.amqpURL)
	s.Require().NoError(err)
	defer conn.Close()

	ch, err := conn.Channel()
	s.Require().NoError(err)
	defer ch.Close()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		d, ok, err := ch.Get(queue, true)
		s.Require().NoError(err)
		if ok {
			return &d
		}
		time.Sleep(50 * time.Millisecond)
	}
	s.Fail("no message in queue " + queue)
	return nil
}
