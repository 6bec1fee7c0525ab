package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"channel_digest/internal/domain"
)

type Source interface {
	ResolveChannel(ctx context.Context, channelID string) (*domain.ChannelInfo, error)
	ListLatestItems(ctx context.Context, channelID string) ([]domain.ContentItem, error)
}

type Extractor interface {
	Extract(ctx context.Context, sourceID string) ([]domain.Segment, error)
}

type Transformer interface {
	Transform(ctx context.Context, segments []domain.Segment) (*domain.Summary, error)
}

type ArtifactStore interface {
	FindBySourceID(ctx context.Context, sourceID string) (*domain.Artifact, error)
	Create(ctx context.Context, artifact *domain.Artifact) (string, error)
}

type ChannelStore interface {
	Upsert(ctx context.Context, channel *domain.Channel) error
}

type SubscriberStore interface {
	ListEmails(ctx context.Context) ([]string, error)
}

type Notifier interface {
	Send(ctx context.Context, artifact *domain.Artifact, recipient string) error
}

type Publisher interface {
	Publish(ctx context.Context, artifact *domain.Artifact) error
	Close() error
}

// Locker guards the check-then-create sequence of a single source id.
type Locker interface {
	TryLock(ctx context.Context, key string) (unlock func(), acquired bool, err error)
}
