package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"channel_digest/internal/domain"
)

const uniqueViolation = "23505"

type SubscriberStore struct {
	db *sqlx.DB
}

func NewSubscriberStore(db *sqlx.DB) *SubscriberStore {
	return &SubscriberStore{db: db}
}

func (s *SubscriberStore) Add(ctx context.Context, email string) (*domain.Subscriber, error) {
	email = strings.TrimSpace(email)

	query := `
		INSERT INTO subscribers (email, subscribed_at)
		VALUES ($1, NOW())
		RETURNING id, email, subscribed_at`

	var sub domain.Subscriber
	err := s.db.GetContext(ctx, &sub, query, email)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%w: %s", domain.ErrAlreadySubscribed, email)
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *SubscriberStore) ListEmails(ctx context.Context) ([]string, error) {
	var emails []string
	err := s.db.SelectContext(ctx, &emails, `SELECT email FROM subscribers ORDER BY id`)
	return emails, err
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
