package youtube

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"time"

	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	"channel_digest/internal/domain"
)

type APIConfig struct {
	APIKey     string
	Timeout    time.Duration
	MaxResults int64
	// Endpoint and HTTPClient override the Google defaults.
	Endpoint   string
	HTTPClient *http.Client
}

// APISource lists channels through the YouTube Data API v3.
type APISource struct {
	service    *yt.Service
	timeout    time.Duration
	maxResults int64
	logger     *slog.Logger
}

func NewAPISource(ctx context.Context, cfg APIConfig, logger *slog.Logger) (*APISource, error) {
	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	service, err := yt.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 1
	}

	return &APISource{
		service:    service,
		timeout:    cfg.Timeout,
		maxResults: maxResults,
		logger:     logger.With("source", "youtube_api"),
	}, nil
}

func (s *APISource) ResolveChannel(ctx context.Context, channelID string) (*domain.ChannelInfo, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.service.Channels.List([]string{"snippet"}).
		Id(channelID).
		Context(ctx).
		Do()
	if err != nil {
		return nil, classifyAPIError("resolve channel", err)
	}

	if len(resp.Items) == 0 || resp.Items[0].Snippet == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrChannelNotFound, channelID)
	}

	return &domain.ChannelInfo{
		ID:           channelID,
		ResolvedName: resp.Items[0].Snippet.Title,
	}, nil
}

// ListLatestItems returns the newest uploads of a channel, newest first.
func (s *APISource) ListLatestItems(ctx context.Context, channelID string) ([]domain.ContentItem, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.service.Search.List([]string{"snippet"}).
		ChannelId(channelID).
		Order("date").
		MaxResults(s.maxResults).
		Type("video").
		Context(ctx).
		Do()
	if err != nil {
		return nil, classifyAPIError("search channel videos", err)
	}

	items := make([]domain.ContentItem, 0, len(resp.Items))
	for _, r := range resp.Items {
		if r.Id == nil || r.Id.VideoId == "" || r.Snippet == nil {
			continue
		}

		publishedAt, err := time.Parse(time.RFC3339, r.Snippet.PublishedAt)
		if err != nil {
			s.logger.Warn("unparseable publish time",
				"source_id", r.Id.VideoId,
				"published_at", r.Snippet.PublishedAt,
			)
		}

		items = append(items, domain.ContentItem{
			SourceID:     r.Id.VideoId,
			ChannelID:    channelID,
			Title:        html.UnescapeString(r.Snippet.Title),
			PublishedAt:  publishedAt,
			ThumbnailURL: pickThumbnail(r.Snippet.Thumbnails),
		})
	}

	s.logger.Debug("listed channel videos", "channel_id", channelID, "count", len(items))

	return items, nil
}
