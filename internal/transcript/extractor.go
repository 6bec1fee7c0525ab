// Package transcript turns a video id into its ordered caption segments.
package transcript

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"channel_digest/internal/domain"
)

var sourceIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// PageFetcher downloads the raw documents the extractor works on.
type PageFetcher interface {
	FetchWatchPage(ctx context.Context, sourceID string) ([]byte, error)
	FetchCaptionTrack(ctx context.Context, trackURL string) ([]byte, error)
}

type Extractor struct {
	pages    PageFetcher
	language string
	logger   *slog.Logger
}

func NewExtractor(pages PageFetcher, language string, logger *slog.Logger) *Extractor {
	return &Extractor{
		pages:    pages,
		language: language,
		logger:   logger.With("component", "transcript"),
	}
}

// ValidSourceID reports whether id is a well-formed video id.
func ValidSourceID(id string) bool {
	return sourceIDPattern.MatchString(id)
}

// Extract returns the caption segments of a video in document order. It
// fails with domain.ErrInvalidIdentifier before any network call when the id
// is malformed, domain.ErrNoCaptionsAvailable when the video has no caption
// track and domain.ErrCaptionParse when the track cannot be read.
func (e *Extractor) Extract(ctx context.Context, sourceID string) ([]domain.Segment, error) {
	if !ValidSourceID(sourceID) {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidIdentifier, sourceID)
	}

	start := time.Now()
	logger := e.logger.With("source_id", sourceID)

	page, err := e.pages.FetchWatchPage(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	tracks, err := findCaptionTracks(page)
	if err != nil {
		return nil, err
	}
	if len(tracks) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrNoCaptionsAvailable, sourceID)
	}

	track := pickTrack(tracks, e.language)
	logger.Debug("selected caption track",
		"language", track.LanguageCode,
		"kind", track.Kind,
		"available", len(tracks),
	)

	raw, err := e.pages.FetchCaptionTrack(ctx, track.URL())
	if err != nil {
		return nil, err
	}

	segments, err := ParseCaptions(raw)
	if err != nil {
		return nil, err
	}

	logger.Info("extracted transcript",
		"segments", len(segments),
		"total_duration", domain.TotalDuration(segments),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return segments, nil
}
