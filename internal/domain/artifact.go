package domain

import (
	"encoding/json"
	"time"
)

const watchURLPrefix = "https://www.youtube.com/watch?v="

// RequiredSummaryKeys lists the sections every transform result must carry.
var RequiredSummaryKeys = []string{
	"title",
	"overview",
	"marketUpdate",
	"technicalCorner",
	"projectSpotlight",
	"keyTakeaway",
	"disclaimer",
}

type Summary struct {
	Title            string          `json:"title"`
	Overview         string          `json:"overview"`
	MarketUpdate     string          `json:"marketUpdate"`
	TechnicalCorner  string          `json:"technicalCorner"`
	ProjectSpotlight string          `json:"projectSpotlight"`
	KeyTakeaway      string          `json:"keyTakeaway"`
	Disclaimer       string          `json:"disclaimer"`
	MentionedTokens  json.RawMessage `json:"mentionedTokens,omitempty"`
}

// Artifact is the persisted summary of a single content item. It is never
// updated once created.
type Artifact struct {
	ID           string    `json:"id"`
	SourceID     string    `json:"sourceId"`
	ChannelID    string    `json:"channelId"`
	ChannelName  string    `json:"channelName"`
	Title        string    `json:"title"`
	VideoTitle   string    `json:"videoTitle"`
	PublishedAt  time.Time `json:"publishedAt"`
	SourceURL    string    `json:"sourceUrl"`
	ThumbnailURL *string   `json:"thumbnailUrl,omitempty"`
	Summary      Summary   `json:"summary"`
	CreatedAt    time.Time `json:"createdAt"`
}

// WatchURL returns the public page of a content item.
func WatchURL(sourceID string) string {
	return watchURLPrefix + sourceID
}

// NewArtifact combines a transform result with the provenance of the item it
// was derived from.
func NewArtifact(channel Channel, item ContentItem, summary Summary, now time.Time) *Artifact {
	return &Artifact{
		SourceID:     item.SourceID,
		ChannelID:    channel.ID,
		ChannelName:  channel.DisplayName,
		Title:        summary.Title,
		VideoTitle:   item.Title,
		PublishedAt:  item.PublishedAt,
		SourceURL:    WatchURL(item.SourceID),
		ThumbnailURL: item.ThumbnailURL,
		Summary:      summary,
		CreatedAt:    now,
	}
}
