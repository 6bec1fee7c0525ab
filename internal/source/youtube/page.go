package youtube

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

const maxBodySize = 10 << 20

type PageConfig struct {
	WatchURL   string
	Language   string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// PageClient downloads watch pages and caption tracks.
type PageClient struct {
	httpClient *http.Client
	watchURL   string
	language   string
	timeout    time.Duration
	logger     *slog.Logger
}

func NewPageClient(cfg PageConfig, logger *slog.Logger) *PageClient {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	watchURL := cfg.WatchURL
	if watchURL == "" {
		watchURL = DefaultWatchURL
	}

	return &PageClient{
		httpClient: client,
		watchURL:   watchURL,
		language:   cfg.Language,
		timeout:    cfg.Timeout,
		logger:     logger.With("source", "youtube_page"),
	}
}

// FetchWatchPage returns the raw HTML of a video's watch page.
func (c *PageClient) FetchWatchPage(ctx context.Context, sourceID string) ([]byte, error) {
	u, err := url.Parse(c.watchURL)
	if err != nil {
		return nil, fmt.Errorf("parse watch url: %w", err)
	}
	q := u.Query()
	q.Set("v", sourceID)
	u.RawQuery = q.Encode()

	return c.get(ctx, "fetch watch page", u.String())
}

// FetchCaptionTrack returns the raw caption document at trackURL.
func (c *PageClient) FetchCaptionTrack(ctx context.Context, trackURL string) ([]byte, error) {
	return c.get(ctx, "fetch caption track", trackURL)
}

func (c *PageClient) get(ctx context.Context, op, target string) ([]byte, error) {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)
	if c.language != "" {
		req.Header.Set("Accept-Language", c.language)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(op, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, classifyTransportError(op, fmt.Errorf("read body: %w", err))
	}

	c.logger.Debug("downloaded page",
		"op", op,
		"bytes", len(body),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return body, nil
}
