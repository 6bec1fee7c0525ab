package api

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"channel_digest/internal/domain"
)

const (
	defaultArtifactLimit = 20
	maxArtifactLimit     = 100
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type healthResponse struct {
	Status    string          `json:"status"`
	Timestamp time.Time       `json:"timestamp"`
	Uptime    string          `json:"uptime"`
	Monitor   string          `json:"monitor"`
	Services  map[string]bool `json:"services"`
}

func (h *Handler) handleHealth(c *gin.Context) {
	resp := healthResponse{
		Status:    "healthy",
		Timestamp: h.now().UTC(),
		Uptime:    h.now().Sub(h.started).Truncate(time.Second).String(),
		Services: map[string]bool{
			"monitor":     h.deps.Monitor != nil,
			"extractor":   h.deps.Extractor != nil,
			"transformer": h.deps.Transformer != nil,
			"notifier":    h.deps.Notifier != nil,
			"subscribers": h.deps.Subscribers != nil,
			"artifacts":   h.deps.Artifacts != nil,
		},
	}
	if h.deps.Monitor != nil {
		resp.Monitor = h.deps.Monitor.State().String()
	}
	c.JSON(http.StatusOK, resp)
}

type checkResponse struct {
	Success bool `json:"success"`
	*domain.CheckResult
	Error string `json:"error,omitempty"`
}

func (h *Handler) handleCheckChannel(c *gin.Context) {
	channelID := c.Param("channelId")
	opts := domain.CheckOptions{
		ForceSummary:   queryFlag(c, "summary"),
		ForceSendEmail: queryFlag(c, "sendEmail"),
	}

	h.logger.Info("channel check requested",
		"channel_id", channelID,
		"force_summary", opts.ForceSummary,
		"force_send_email", opts.ForceSendEmail,
	)

	ctx, cancel := h.detached(c)
	defer cancel()

	result, err := h.deps.Monitor.CheckChannel(ctx, channelID, opts)
	if err != nil && result == nil {
		h.respondError(c, "channel check failed", err)
		return
	}
	if err != nil {
		h.logger.Error("channel check incomplete", "channel_id", channelID, "error", err)
		c.JSON(http.StatusInternalServerError, checkResponse{CheckResult: result, Error: err.Error()})
		return
	}
	if result.HasFailures() {
		c.JSON(http.StatusInternalServerError, checkResponse{CheckResult: result, Error: "one or more items failed"})
		return
	}

	c.JSON(http.StatusOK, checkResponse{Success: true, CheckResult: result})
}

type transcriptMetadata struct {
	TotalEntries  int     `json:"totalEntries"`
	TotalDuration float64 `json:"totalDuration"`
}

type transcriptResponse struct {
	VideoID  string             `json:"videoId"`
	Metadata transcriptMetadata `json:"metadata"`
	Summary  *domain.Summary    `json:"summary,omitempty"`
}

func (h *Handler) handleTranscript(c *gin.Context) {
	videoID := c.Param("videoId")
	wantSummary := queryFlag(c, "summary")
	sendEmail := queryFlag(c, "sendEmail")

	ctx, cancel := h.detached(c)
	defer cancel()

	segments, err := h.deps.Extractor.Extract(ctx, videoID)
	if err != nil {
		h.respondError(c, "failed to fetch transcript", err)
		return
	}

	resp := transcriptResponse{
		VideoID: videoID,
		Metadata: transcriptMetadata{
			TotalEntries:  len(segments),
			TotalDuration: domain.TotalDuration(segments),
		},
	}

	if wantSummary {
		if h.deps.Transformer == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "summaries are not configured"})
			return
		}
		summary, err := h.deps.Transformer.Transform(ctx, segments)
		if err != nil {
			h.respondError(c, "failed to generate summary", err)
			return
		}
		resp.Summary = summary

		if sendEmail {
			h.sendSummary(c, videoID, summary)
		}
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) sendSummary(c *gin.Context, videoID string, summary *domain.Summary) {
	if h.deps.Notifier == nil || h.opts.Recipient == "" {
		h.logger.Warn("summary email requested but no notifier or recipient configured", "source_id", videoID)
		return
	}

	ctx, cancel := h.detached(c)
	defer cancel()

	item := domain.ContentItem{SourceID: videoID, Title: summary.Title}
	artifact := domain.NewArtifact(domain.Channel{}, item, *summary, h.now())
	if err := h.deps.Notifier.Send(ctx, artifact, h.opts.Recipient); err != nil {
		h.logger.Warn("summary email failed", "source_id", videoID, "error", err)
		return
	}
	h.logger.Info("summary email sent", "source_id", videoID, "recipient", h.opts.Recipient)
}

func (h *Handler) handleListArtifacts(c *gin.Context) {
	if h.deps.Artifacts == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "artifact store is not configured"})
		return
	}

	limit := defaultArtifactLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxArtifactLimit)
	}

	channelID := c.Param("channelId")
	artifacts, err := h.deps.Artifacts.ListByChannel(c.Request.Context(), channelID, limit)
	if err != nil {
		h.respondError(c, "failed to list artifacts", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"channelId": channelID, "artifacts": artifacts})
}

type subscribeRequest struct {
	Email string `json:"email"`
}

func (h *Handler) handleAddSubscriber(c *gin.Context) {
	if h.deps.Subscribers == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "subscriptions are not configured"})
		return
	}

	var req subscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	email := strings.TrimSpace(req.Email)
	if email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email is required"})
		return
	}
	if !emailPattern.MatchString(email) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid email format"})
		return
	}

	sub, err := h.deps.Subscribers.Add(c.Request.Context(), email)
	if err != nil {
		h.respondError(c, "failed to add subscriber", err)
		return
	}

	h.logger.Info("subscriber added", "subscriber_id", sub.ID)
	c.JSON(http.StatusCreated, gin.H{"message": "subscription successful", "data": sub})
}

// queryFlag reads a boolean query parameter; anything unparsable is false.
func queryFlag(c *gin.Context, name string) bool {
	v, err := strconv.ParseBool(c.Query(name))
	return err == nil && v
}
