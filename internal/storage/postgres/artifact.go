package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"channel_digest/internal/domain"
)

type ArtifactStore struct {
	db    *sqlx.DB
	newID func() string
}

func NewArtifactStore(db *sqlx.DB) *ArtifactStore {
	return &ArtifactStore{db: db, newID: uuid.NewString}
}

type artifactRow struct {
	ID           string         `db:"id"`
	SourceID     string         `db:"source_id"`
	ChannelID    string         `db:"channel_id"`
	ChannelName  string         `db:"channel_name"`
	Title        string         `db:"title"`
	VideoTitle   string         `db:"video_title"`
	PublishedAt  time.Time      `db:"published_at"`
	SourceURL    string         `db:"source_url"`
	ThumbnailURL sql.NullString `db:"thumbnail_url"`
	Summary      []byte         `db:"summary"`
	CreatedAt    time.Time      `db:"created_at"`
}

func (r artifactRow) toDomain() (*domain.Artifact, error) {
	a := &domain.Artifact{
		ID:          r.ID,
		SourceID:    r.SourceID,
		ChannelID:   r.ChannelID,
		ChannelName: r.ChannelName,
		Title:       r.Title,
		VideoTitle:  r.VideoTitle,
		PublishedAt: r.PublishedAt,
		SourceURL:   r.SourceURL,
		CreatedAt:   r.CreatedAt,
	}
	if r.ThumbnailURL.Valid {
		url := r.ThumbnailURL.String
		a.ThumbnailURL = &url
	}
	if err := json.Unmarshal(r.Summary, &a.Summary); err != nil {
		return nil, fmt.Errorf("decode summary: %w", err)
	}
	return a, nil
}

// FindBySourceID returns the artifact derived from sourceID, or nil when there
// is none.
func (s *ArtifactStore) FindBySourceID(ctx context.Context, sourceID string) (*domain.Artifact, error) {
	query := `
		SELECT id, source_id, channel_id, channel_name, title, video_title,
			published_at, source_url, thumbnail_url, summary, created_at
		FROM artifacts
		WHERE source_id = $1`

	var row artifactRow
	err := s.db.GetContext(ctx, &row, query, sourceID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain()
}

// Create stores a new artifact and returns its generated id. A second artifact
// for the same source id fails with domain.ErrAlreadyProcessed.
func (s *ArtifactStore) Create(ctx context.Context, artifact *domain.Artifact) (string, error) {
	summary, err := json.Marshal(artifact.Summary)
	if err != nil {
		return "", fmt.Errorf("encode summary: %w", err)
	}

	createdAt := artifact.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := `
		INSERT INTO artifacts (
			id, source_id, channel_id, channel_name, title, video_title,
			published_at, source_url, thumbnail_url, summary, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)`

	id := s.newID()
	_, err = s.db.ExecContext(ctx, query,
		id,
		artifact.SourceID,
		artifact.ChannelID,
		artifact.ChannelName,
		artifact.Title,
		artifact.VideoTitle,
		artifact.PublishedAt,
		artifact.SourceURL,
		artifact.ThumbnailURL,
		summary,
		createdAt,
	)
	if isUniqueViolation(err) {
		return "", fmt.Errorf("%w: %s", domain.ErrAlreadyProcessed, artifact.SourceID)
	}
	if err != nil {
		return "", err
	}

	return id, nil
}

// ListByChannel returns the most recent artifacts of a channel.
func (s *ArtifactStore) ListByChannel(ctx context.Context, channelID string, limit int) ([]domain.Artifact, error) {
	query := `
		SELECT id, source_id, channel_id, channel_name, title, video_title,
			published_at, source_url, thumbnail_url, summary, created_at
		FROM artifacts
		WHERE channel_id = $1
		ORDER BY published_at DESC
		LIMIT $2`

	var rows []artifactRow
	if err := s.db.SelectContext(ctx, &rows, query, channelID, limit); err != nil {
		return nil, err
	}

	artifacts := make([]domain.Artifact, 0, len(rows))
	for _, r := range rows {
		a, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, *a)
	}
	return artifacts, nil
}
