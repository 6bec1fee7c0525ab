// Package notify delivers finished artifacts to recipients, either as a
// rendered email through a transactional provider or as a Loops event.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/codeGROOVE-dev/retry"
)

type RetryConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 30 * time.Second
	}
	return c
}

// statusError is returned for a non-2xx provider response.
type statusError struct {
	Provider string
	Code     int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s: HTTP %d", e.Provider, e.Code)
}

// checkStatus turns a non-2xx response into an error. Client errors other
// than throttling are not retried.
func checkStatus(provider string, code int) error {
	if code >= 200 && code < 300 {
		return nil
	}
	err := &statusError{Provider: provider, Code: code}
	if code >= 400 && code < 500 && code != http.StatusTooManyRequests {
		return retry.Unrecoverable(err)
	}
	return err
}

func doWithRetry(ctx context.Context, cfg RetryConfig, logger *slog.Logger, provider string, fn func() error) error {
	cfg = cfg.withDefaults()

	err := retry.Do(
		fn,
		retry.Attempts(uint(cfg.MaxAttempts)),
		retry.Delay(cfg.InitialBackoff),
		retry.MaxDelay(cfg.MaxBackoff),
		retry.MaxJitter(cfg.InitialBackoff),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			logger.Info("retrying delivery after error", "provider", provider, "attempt", n, "error", err)
		}),
	)
	if err != nil {
		return fmt.Errorf("%s delivery: %w", provider, err)
	}
	return nil
}
