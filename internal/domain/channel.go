package domain

import "time"

type Channel struct {
	ID            string    `db:"id" json:"id"`
	DisplayName   string    `db:"display_name" json:"displayName"`
	ResolvedName  string    `db:"resolved_name" json:"resolvedName"`
	LastCheckedAt time.Time `db:"last_checked_at" json:"lastCheckedAt"`
}

// ChannelInfo is the provider-side metadata returned when resolving a channel id.
type ChannelInfo struct {
	ID           string
	ResolvedName string
}

type ContentItem struct {
	SourceID     string
	ChannelID    string
	Title        string
	PublishedAt  time.Time
	ThumbnailURL *string
}

// Segment is one caption cue. Start and Duration are in seconds.
type Segment struct {
	Text     string  `json:"text"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}

// TotalDuration sums the duration of every segment.
func TotalDuration(segments []Segment) float64 {
	var total float64
	for _, s := range segments {
		total += s.Duration
	}
	return total
}

type Subscriber struct {
	ID           int64     `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	SubscribedAt time.Time `db:"subscribed_at" json:"subscribedAt"`
}
