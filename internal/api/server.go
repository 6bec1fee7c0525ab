// Package api exposes the manual triggers of the digest service over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"channel_digest/internal/domain"
	"channel_digest/internal/service"
)

type Monitor interface {
	CheckChannel(ctx context.Context, channelID string, opts domain.CheckOptions) (*domain.CheckResult, error)
	State() service.State
}

type SubscriberStore interface {
	Add(ctx context.Context, email string) (*domain.Subscriber, error)
}

type ArtifactStore interface {
	ListByChannel(ctx context.Context, channelID string, limit int) ([]domain.Artifact, error)
}

// Dependencies are the collaborators behind the routes. Transformer,
// Notifier, Subscribers and Artifacts are optional; routes needing a missing
// one answer 503.
type Dependencies struct {
	Monitor     Monitor
	Extractor   service.Extractor
	Transformer service.Transformer
	Notifier    service.Notifier
	Subscribers SubscriberStore
	Artifacts   ArtifactStore
}

type Options struct {
	// Recipient receives transcripts summarized with sendEmail=true.
	Recipient      string
	RequestTimeout time.Duration
}

type Handler struct {
	deps    Dependencies
	opts    Options
	logger  *slog.Logger
	now     func() time.Time
	started time.Time
}

func NewHandler(deps Dependencies, opts Options, logger *slog.Logger) *Handler {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 10 * time.Minute
	}
	return &Handler{
		deps:    deps,
		opts:    opts,
		logger:  logger.With("component", "api"),
		now:     time.Now,
		started: time.Now(),
	}
}

// NewRouter constructs a Gin engine with registered routes.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(h.logger))

	r.GET("/health", h.handleHealth)

	r.GET("/check-channel/:channelId", h.handleCheckChannel)
	r.POST("/check-channel/:channelId", h.handleCheckChannel)

	r.GET("/transcript/:videoId", h.handleTranscript)

	r.GET("/channels/:channelId/artifacts", h.handleListArtifacts)

	r.POST("/subscribers", h.handleAddSubscriber)

	return r
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request handled",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

// detached returns a context that outlives the client connection but not the
// request timeout.
func (h *Handler) detached(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(c.Request.Context()), h.opts.RequestTimeout)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidIdentifier):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNoCaptionsAvailable),
		errors.Is(err, domain.ErrUnknownChannel),
		errors.Is(err, domain.ErrChannelNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadySubscribed):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNoChannelsAvailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrTransient):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) respondError(c *gin.Context, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(msg, "path", c.FullPath(), "error", err)
	} else {
		h.logger.Warn(msg, "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"error": msg, "details": err.Error()})
}
