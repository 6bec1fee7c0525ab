package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"channel_digest/internal/domain"
)

type ChannelStore struct {
	db *sqlx.DB
}

func NewChannelStore(db *sqlx.DB) *ChannelStore {
	return &ChannelStore{db: db}
}

func (s *ChannelStore) Get(ctx context.Context, id string) (*domain.Channel, error) {
	var ch domain.Channel
	query := `
		SELECT id, display_name, resolved_name, last_checked_at
		FROM channels
		WHERE id = $1`

	err := s.db.GetContext(ctx, &ch, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrChannelNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

// Upsert stores the channel. last_checked_at never moves backwards.
func (s *ChannelStore) Upsert(ctx context.Context, ch *domain.Channel) error {
	query := `
		INSERT INTO channels (id, display_name, resolved_name, last_checked_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			resolved_name = EXCLUDED.resolved_name,
			last_checked_at = GREATEST(channels.last_checked_at, EXCLUDED.last_checked_at),
			updated_at = NOW()`

	_, err := s.db.ExecContext(ctx, query,
		ch.ID,
		ch.DisplayName,
		ch.ResolvedName,
		ch.LastCheckedAt,
	)
	return err
}
