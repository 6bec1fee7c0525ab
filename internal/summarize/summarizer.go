// Package summarize turns caption segments into a structured summary with a
// chat completion model.
package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"channel_digest/internal/domain"
)

type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
	JSONMode    bool
	Timeout     time.Duration
	HTTPClient  *http.Client
}

type Summarizer struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	jsonMode    bool
	timeout     time.Duration
	logger      *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Summarizer {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		clientCfg.HTTPClient = cfg.HTTPClient
	}

	return &Summarizer{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		jsonMode:    cfg.JSONMode,
		timeout:     cfg.Timeout,
		logger:      logger.With("component", "summarizer"),
	}
}

// Transform asks the model for a summary of the concatenated segment text.
// Missing sections fail with *domain.IncompleteTransformError and output that
// is not a JSON object with domain.ErrTransformParse.
func (s *Summarizer) Transform(ctx context.Context, segments []domain.Segment) (*domain.Summary, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	req := openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPromptPrefix + joinText(segments)},
		},
		MaxTokens:   s.maxTokens,
		Temperature: s.temperature,
	}
	if s.jsonMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	start := time.Now()
	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, classifyError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: response has no choices", domain.ErrTransformParse)
	}

	s.logger.Info("chat completion finished",
		"model", resp.Model,
		"segments", len(segments),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"finish_reason", resp.Choices[0].FinishReason,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return ParseSummary(resp.Choices[0].Message.Content)
}

// ParseSummary validates raw model output. Surrounding code fences are
// ignored; every required key must be present and non-null.
func ParseSummary(content string) (*domain.Summary, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTransformParse, err)
	}

	var missing []string
	values := make(map[string]string, len(domain.RequiredSummaryKeys))
	for _, key := range domain.RequiredSummaryKeys {
		raw, ok := fields[key]
		if !ok || string(raw) == "null" {
			missing = append(missing, key)
			continue
		}
		values[key] = sectionText(raw)
	}
	if len(missing) > 0 {
		return nil, &domain.IncompleteTransformError{Missing: missing}
	}

	summary := &domain.Summary{
		Title:            values["title"],
		Overview:         values["overview"],
		MarketUpdate:     values["marketUpdate"],
		TechnicalCorner:  values["technicalCorner"],
		ProjectSpotlight: values["projectSpotlight"],
		KeyTakeaway:      values["keyTakeaway"],
		Disclaimer:       values["disclaimer"],
	}
	if tokens, ok := fields["mentionedTokens"]; ok && string(tokens) != "null" {
		summary.MentionedTokens = tokens
	}
	return summary, nil
}

// sectionText returns string values as is and any other JSON value in its
// compact form.
func sectionText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func joinText(segments []domain.Segment) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		parts = append(parts, seg.Text)
	}
	return strings.Join(parts, " ")
}

// classifyError marks throttling, server errors and transport failures as
// transient.
func classifyError(err error) error {
	const op = "create chat completion"

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500 {
			return domain.Transient(op, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500 {
			return domain.Transient(op, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	return domain.Transient(op, err)
}
