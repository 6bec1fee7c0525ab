package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"channel_digest/internal/config"
	"channel_digest/internal/domain"
	"channel_digest/internal/lock"
	"channel_digest/internal/scheduler"
)

type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	default:
		return "uninitialized"
	}
}

// Dependencies are the collaborators of a Monitor. Subscribers, Notifier,
// Publisher and Locker are optional.
type Dependencies struct {
	Source      Source
	Extractor   Extractor
	Transformer Transformer
	Artifacts   ArtifactStore
	Channels    ChannelStore
	Subscribers SubscriberStore
	Notifier    Notifier
	Publisher   Publisher
	Locker      Locker
}

type Options struct {
	Channels  []config.ChannelConfig
	Monitor   config.MonitorConfig
	Recipient string
}

// Monitor watches a fixed set of channels and turns every new item into a
// single persisted artifact.
type Monitor struct {
	source      Source
	extractor   Extractor
	transformer Transformer
	artifacts   ArtifactStore
	channels    ChannelStore
	subscribers SubscriberStore
	notifier    Notifier
	publisher   Publisher
	locker      Locker

	configured []config.ChannelConfig
	config     config.MonitorConfig
	recipient  string
	logger     *slog.Logger
	now        func() time.Time

	initMu  sync.Mutex
	mu      sync.RWMutex
	state   State
	watched []*domain.Channel
	byID    map[string]*domain.Channel
}

func NewMonitor(deps Dependencies, opts Options, logger *slog.Logger) *Monitor {
	locker := deps.Locker
	if locker == nil {
		locker = lock.NewMemory()
	}

	return &Monitor{
		source:      deps.Source,
		extractor:   deps.Extractor,
		transformer: deps.Transformer,
		artifacts:   deps.Artifacts,
		channels:    deps.Channels,
		subscribers: deps.Subscribers,
		notifier:    deps.Notifier,
		publisher:   deps.Publisher,
		locker:      locker,
		configured:  opts.Channels,
		config:      opts.Monitor,
		recipient:   opts.Recipient,
		logger:      logger.With("component", "monitor"),
		now:         time.Now,
		byID:        make(map[string]*domain.Channel),
	}
}

func (m *Monitor) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Channels returns a snapshot of the watched channels.
func (m *Monitor) Channels() []domain.Channel {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.Channel, len(m.watched))
	for i, ch := range m.watched {
		out[i] = *ch
	}
	return out
}

// Initialize resolves the configured channels against the source. Channels
// that cannot be resolved are left out; if none resolve it fails with
// domain.ErrNoChannelsAvailable. Calling it again once ready is a no-op.
func (m *Monitor) Initialize(ctx context.Context) error {
	if m.State() == StateReady {
		return nil
	}

	m.initMu.Lock()
	defer m.initMu.Unlock()

	if m.State() == StateReady {
		return nil
	}
	m.setState(StateInitializing)

	m.logger.Info("initializing monitor", "configured_channels", len(m.configured))

	var watched []*domain.Channel
	for _, cc := range m.configured {
		info, err := m.source.ResolveChannel(ctx, cc.ID)
		if err != nil {
			m.logger.Error("failed to resolve channel",
				"channel_id", cc.ID,
				"display_name", cc.DisplayName,
				"error", err,
			)
			continue
		}

		channel := &domain.Channel{
			ID:            cc.ID,
			DisplayName:   cc.DisplayName,
			ResolvedName:  info.ResolvedName,
			LastCheckedAt: m.now(),
		}
		if channel.DisplayName == "" {
			channel.DisplayName = info.ResolvedName
		}
		watched = append(watched, channel)

		snapshot := *channel
		if err := m.channels.Upsert(ctx, &snapshot); err != nil {
			m.logger.Warn("failed to store channel", "channel_id", channel.ID, "error", err)
		}

		m.logger.Info("watching channel",
			"channel_id", channel.ID,
			"display_name", channel.DisplayName,
			"resolved_name", channel.ResolvedName,
		)
	}

	if len(watched) == 0 {
		m.setState(StateUninitialized)
		return domain.ErrNoChannelsAvailable
	}

	m.mu.Lock()
	m.watched = watched
	for _, ch := range watched {
		m.byID[ch.ID] = ch
	}
	m.state = StateReady
	m.mu.Unlock()

	m.logger.Info("monitor initialized", "channels", len(watched))
	return nil
}

// CheckChannel looks for new items on a watched channel and processes each of
// them. Failures of individual items are recorded in the result and do not
// fail the check.
func (m *Monitor) CheckChannel(ctx context.Context, channelID string, opts domain.CheckOptions) (*domain.CheckResult, error) {
	if err := m.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("initialize monitor: %w", err)
	}

	channel, ok := m.channel(channelID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownChannel, channelID)
	}

	startTime := time.Now()
	logger := m.logger.With("channel_id", channel.ID, "channel_name", channel.DisplayName)
	logger.Info("checking channel",
		"force_summary", opts.ForceSummary,
		"force_send_email", opts.ForceSendEmail,
	)

	items, err := m.source.ListLatestItems(ctx, channel.ID)
	if err != nil {
		return nil, fmt.Errorf("list latest items: %w", err)
	}

	logger.Info("fetched latest items", "count", len(items))

	result := &domain.CheckResult{
		ChannelID:      channel.ID,
		ChannelName:    channel.DisplayName,
		ItemsSeen:      len(items),
		ItemsProcessed: []domain.ProcessedItem{},
		ItemsSkipped:   []domain.SkippedItem{},
		ItemsFailed:    []domain.FailedItem{},
	}

	for _, item := range items {
		m.processItem(ctx, logger, channel, item, opts, result)
	}

	checkedAt, err := m.markChecked(ctx, channel.ID)
	result.LastCheckedAt = checkedAt
	result.Duration = time.Since(startTime)
	if err != nil {
		return result, fmt.Errorf("update channel: %w", err)
	}

	logger.Info("channel check completed",
		"seen", result.ItemsSeen,
		"processed", len(result.ItemsProcessed),
		"skipped", len(result.ItemsSkipped),
		"failed", len(result.ItemsFailed),
		"duration", result.Duration,
	)

	return result, nil
}

// CheckAll checks every watched channel one after another.
func (m *Monitor) CheckAll(ctx context.Context) []*domain.CheckResult {
	var results []*domain.CheckResult
	for _, ch := range m.Channels() {
		if ctx.Err() != nil {
			m.logger.Info("context cancelled, stopping check cycle", "error", ctx.Err())
			break
		}

		result, err := m.CheckChannel(ctx, ch.ID, domain.CheckOptions{})
		if err != nil {
			m.logger.Error("channel check failed", "channel_id", ch.ID, "error", err)
		}
		if result != nil {
			results = append(results, result)
		}
	}
	return results
}

// RunCycle implements scheduler.Job.
func (m *Monitor) RunCycle(ctx context.Context) error {
	m.CheckAll(ctx)
	return ctx.Err()
}

// StartPolling initializes the monitor in the background, checks every channel
// once and then again at every interval. It returns without blocking.
func (m *Monitor) StartPolling(ctx context.Context, interval time.Duration) *scheduler.Handle {
	sched := scheduler.NewScheduler(m, interval, m.logger,
		scheduler.WithSetup(m.Initialize),
		scheduler.WithCycleTimeout(m.config.CycleTimeout),
	)
	return sched.Go(ctx)
}

func (m *Monitor) processItem(
	ctx context.Context,
	logger *slog.Logger,
	channel domain.Channel,
	item domain.ContentItem,
	opts domain.CheckOptions,
	result *domain.CheckResult,
) {
	logger = logger.With("source_id", item.SourceID)
	logger.Info("found item", "title", item.Title, "published_at", item.PublishedAt.Format(time.RFC3339))

	skip := func(reason string) {
		logger.Info("skipping item", "reason", reason)
		result.ItemsSkipped = append(result.ItemsSkipped, domain.SkippedItem{SourceID: item.SourceID, Reason: reason})
	}
	fail := func(err error) {
		logger.Error("item processing failed", "title", item.Title, "error", err)
		result.ItemsFailed = append(result.ItemsFailed, domain.FailedItem{
			SourceID: item.SourceID,
			Title:    item.Title,
			Error:    err.Error(),
			Err:      err,
		})
	}

	if m.isStale(item) && !opts.ForceSummary {
		skip(domain.SkipStale)
		return
	}

	unlock, acquired, err := m.locker.TryLock(ctx, item.SourceID)
	if err != nil {
		fail(fmt.Errorf("acquire lock: %w", err))
		return
	}
	if !acquired {
		skip(domain.SkipInFlight)
		return
	}
	defer unlock()

	existing, err := m.artifacts.FindBySourceID(ctx, item.SourceID)
	if err != nil {
		fail(fmt.Errorf("find artifact: %w", err))
		return
	}
	if existing != nil {
		skip(domain.SkipAlreadyProcessed)
		if opts.ForceSendEmail {
			m.notify(ctx, logger, existing)
		}
		return
	}

	logger.Info("processing new item")

	artifact, err := m.buildArtifact(ctx, channel, item)
	if err != nil {
		fail(err)
		return
	}

	id, err := m.artifacts.Create(ctx, artifact)
	if errors.Is(err, domain.ErrAlreadyProcessed) {
		skip(domain.SkipAlreadyProcessed)
		return
	}
	if err != nil {
		fail(fmt.Errorf("create artifact: %w", err))
		return
	}
	artifact.ID = id

	m.publish(ctx, logger, artifact)
	m.notify(ctx, logger, artifact)

	logger.Info("item processed", "artifact_id", id)
	result.ItemsProcessed = append(result.ItemsProcessed, domain.ProcessedItem{
		SourceID:    item.SourceID,
		ArtifactID:  id,
		Title:       item.Title,
		PublishedAt: item.PublishedAt,
	})
}

func (m *Monitor) buildArtifact(ctx context.Context, channel domain.Channel, item domain.ContentItem) (*domain.Artifact, error) {
	segments, err := m.extractor.Extract(ctx, item.SourceID)
	if err != nil {
		return nil, fmt.Errorf("extract content: %w", err)
	}

	summary, err := m.transformer.Transform(ctx, segments)
	if err != nil {
		return nil, fmt.Errorf("transform content: %w", err)
	}

	return domain.NewArtifact(channel, item, *summary, m.now()), nil
}

func (m *Monitor) publish(ctx context.Context, logger *slog.Logger, artifact *domain.Artifact) {
	if m.publisher == nil {
		return
	}
	if err := m.publisher.Publish(ctx, artifact); err != nil {
		logger.Warn("failed to publish artifact event", "artifact_id", artifact.ID, "error", err)
	}
}

func (m *Monitor) notify(ctx context.Context, logger *slog.Logger, artifact *domain.Artifact) {
	if m.notifier == nil {
		return
	}

	for _, recipient := range m.recipients(ctx, logger) {
		if err := m.notifier.Send(ctx, artifact, recipient); err != nil {
			logger.Warn("notification failed", "recipient", recipient, "error", err)
			continue
		}
		logger.Info("notification sent", "recipient", recipient)
	}
}

func (m *Monitor) recipients(ctx context.Context, logger *slog.Logger) []string {
	candidates := []string{m.recipient}
	if m.subscribers != nil {
		emails, err := m.subscribers.ListEmails(ctx)
		if err != nil {
			logger.Warn("failed to list subscribers", "error", err)
		}
		candidates = append(candidates, emails...)
	}

	seen := make(map[string]struct{}, len(candidates))
	var out []string
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		key := strings.ToLower(c)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}

func (m *Monitor) isStale(item domain.ContentItem) bool {
	if m.config.MaxItemAge <= 0 || item.PublishedAt.IsZero() {
		return false
	}
	return m.now().Sub(item.PublishedAt) > m.config.MaxItemAge
}

func (m *Monitor) channel(id string) (domain.Channel, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ch, ok := m.byID[id]
	if !ok {
		return domain.Channel{}, false
	}
	return *ch, true
}

// markChecked advances the channel's LastCheckedAt, strictly, and stores it.
func (m *Monitor) markChecked(ctx context.Context, id string) (time.Time, error) {
	m.mu.Lock()
	ch := m.byID[id]
	checkedAt := m.now()
	if !checkedAt.After(ch.LastCheckedAt) {
		checkedAt = ch.LastCheckedAt.Add(time.Microsecond)
	}
	ch.LastCheckedAt = checkedAt
	snapshot := *ch
	m.mu.Unlock()

	return checkedAt, m.channels.Upsert(ctx, &snapshot)
}

func (m *Monitor) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}
