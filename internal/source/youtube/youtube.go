// Package youtube talks to YouTube: channel listings through the Data API or
// the public channel feed, and raw watch pages and caption tracks for
// transcript extraction.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"google.golang.org/api/googleapi"
	yt "google.golang.org/api/youtube/v3"

	"channel_digest/internal/domain"
)

const (
	DefaultFeedURL  = "https://www.youtube.com/feeds/videos.xml"
	DefaultWatchURL = "https://www.youtube.com/watch"

	userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// pickThumbnail returns the best available thumbnail URL, largest first.
func pickThumbnail(t *yt.ThumbnailDetails) *string {
	if t == nil {
		return nil
	}
	for _, th := range []*yt.Thumbnail{t.Maxres, t.Standard, t.High, t.Medium, t.Default} {
		if th != nil && th.Url != "" {
			url := th.Url
			return &url
		}
	}
	return nil
}

// classifyAPIError maps a Data API failure onto the domain errors. Server
// errors, throttling and transport failures are transient.
func classifyAPIError(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == http.StatusNotFound:
			return fmt.Errorf("%s: %w", op, domain.ErrChannelNotFound)
		case gerr.Code == http.StatusTooManyRequests || gerr.Code >= 500:
			return domain.Transient(op, err)
		default:
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return classifyTransportError(op, err)
}

// classifyStatus turns a non-2xx HTTP status into an error.
func classifyStatus(op string, status int) error {
	err := fmt.Errorf("unexpected status: %d", status)
	if status == http.StatusTooManyRequests || status >= 500 {
		return domain.Transient(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func classifyTransportError(op string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.As(err, &netErr) {
		return domain.Transient(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
