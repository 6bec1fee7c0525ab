package domain

import "time"

// Skip reasons recorded in CheckResult.ItemsSkipped.
const (
	SkipAlreadyProcessed = "already_processed"
	SkipInFlight         = "in_flight"
	SkipStale            = "stale"
)

// CheckOptions tune a single channel check.
type CheckOptions struct {
	// ForceSummary processes items outside the freshness window.
	ForceSummary bool
	// ForceSendEmail re-delivers the existing artifact of already processed items.
	ForceSendEmail bool
}

type ProcessedItem struct {
	SourceID    string    `json:"sourceId"`
	ArtifactID  string    `json:"artifactId"`
	Title       string    `json:"title"`
	PublishedAt time.Time `json:"publishedAt"`
}

type SkippedItem struct {
	SourceID string `json:"sourceId"`
	Reason   string `json:"reason"`
}

type FailedItem struct {
	SourceID string `json:"sourceId"`
	Title    string `json:"title"`
	Error    string `json:"error"`
	Err      error  `json:"-"`
}

// CheckResult holds the outcome of one check of one channel.
type CheckResult struct {
	ChannelID      string          `json:"channelId"`
	ChannelName    string          `json:"channelName"`
	ItemsSeen      int             `json:"itemsSeen"`
	ItemsProcessed []ProcessedItem `json:"itemsProcessed"`
	ItemsSkipped   []SkippedItem   `json:"itemsSkipped"`
	ItemsFailed    []FailedItem    `json:"itemsFailed"`
	LastCheckedAt  time.Time       `json:"lastCheckedAt"`
	Duration       time.Duration   `json:"-"`
}

// HasFailures reports whether any item of the check failed.
func (r *CheckResult) HasFailures() bool {
	return len(r.ItemsFailed) > 0
}
