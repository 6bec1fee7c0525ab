package youtube

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"

	"channel_digest/internal/domain"
)

type FeedConfig struct {
	// FeedURL is the channel feed endpoint; channel_id is added as a query parameter.
	FeedURL    string
	Timeout    time.Duration
	MaxResults int64
	HTTPClient *http.Client
}

// FeedSource lists channels through the public Atom feed. It needs no API key
// but only exposes the latest 15 uploads of a channel.
type FeedSource struct {
	parser     *gofeed.Parser
	feedURL    string
	timeout    time.Duration
	maxResults int
	logger     *slog.Logger
}

func NewFeedSource(cfg FeedConfig, logger *slog.Logger) *FeedSource {
	parser := gofeed.NewParser()
	parser.UserAgent = userAgent
	parser.Client = cfg.HTTPClient
	if parser.Client == nil {
		parser.Client = &http.Client{}
	}

	feedURL := cfg.FeedURL
	if feedURL == "" {
		feedURL = DefaultFeedURL
	}

	maxResults := int(cfg.MaxResults)
	if maxResults <= 0 {
		maxResults = 1
	}

	return &FeedSource{
		parser:     parser,
		feedURL:    feedURL,
		timeout:    cfg.Timeout,
		maxResults: maxResults,
		logger:     logger.With("source", "youtube_feed"),
	}
}

func (s *FeedSource) ResolveChannel(ctx context.Context, channelID string) (*domain.ChannelInfo, error) {
	feed, err := s.fetch(ctx, "resolve channel", channelID)
	if err != nil {
		return nil, err
	}

	name := feed.Title
	if feed.Author != nil && feed.Author.Name != "" {
		name = feed.Author.Name
	}

	return &domain.ChannelInfo{ID: channelID, ResolvedName: name}, nil
}

// ListLatestItems returns the newest uploads of a channel, newest first.
func (s *FeedSource) ListLatestItems(ctx context.Context, channelID string) ([]domain.ContentItem, error) {
	feed, err := s.fetch(ctx, "fetch channel feed", channelID)
	if err != nil {
		return nil, err
	}

	items := make([]domain.ContentItem, 0, len(feed.Items))
	for _, it := range feed.Items {
		id := videoID(it)
		if id == "" {
			s.logger.Warn("feed entry without video id", "channel_id", channelID, "guid", it.GUID)
			continue
		}

		var publishedAt time.Time
		if it.PublishedParsed != nil {
			publishedAt = *it.PublishedParsed
		} else if it.UpdatedParsed != nil {
			publishedAt = *it.UpdatedParsed
		}

		items = append(items, domain.ContentItem{
			SourceID:     id,
			ChannelID:    channelID,
			Title:        it.Title,
			PublishedAt:  publishedAt,
			ThumbnailURL: feedThumbnail(it),
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].PublishedAt.After(items[j].PublishedAt)
	})
	if len(items) > s.maxResults {
		items = items[:s.maxResults]
	}

	return items, nil
}

func (s *FeedSource) fetch(ctx context.Context, op, channelID string) (*gofeed.Feed, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	u, err := url.Parse(s.feedURL)
	if err != nil {
		return nil, fmt.Errorf("parse feed url: %w", err)
	}
	q := u.Query()
	q.Set("channel_id", channelID)
	u.RawQuery = q.Encode()

	feed, err := s.parser.ParseURLWithContext(u.String(), ctx)
	if err != nil {
		var httpErr gofeed.HTTPError
		if errors.As(err, &httpErr) {
			if httpErr.StatusCode == http.StatusNotFound {
				return nil, fmt.Errorf("%s: %w: %s", op, domain.ErrChannelNotFound, channelID)
			}
			return nil, classifyStatus(op, httpErr.StatusCode)
		}
		return nil, classifyTransportError(op, err)
	}

	return feed, nil
}

func videoID(it *gofeed.Item) string {
	if v := extensionValue(it.Extensions, "yt", "videoId"); v != "" {
		return v
	}
	return strings.TrimPrefix(it.GUID, "yt:video:")
}

func feedThumbnail(it *gofeed.Item) *string {
	for _, group := range it.Extensions["media"]["group"] {
		for _, th := range group.Children["thumbnail"] {
			if u := th.Attrs["url"]; u != "" {
				return &u
			}
		}
	}
	if it.Image != nil && it.Image.URL != "" {
		u := it.Image.URL
		return &u
	}
	return nil
}

func extensionValue(exts ext.Extensions, space, name string) string {
	for _, e := range exts[space][name] {
		if v := strings.TrimSpace(e.Value); v != "" {
			return v
		}
	}
	return ""
}
