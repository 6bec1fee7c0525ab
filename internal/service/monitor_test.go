package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"channel_digest/internal/config"
	"channel_digest/internal/domain"
	"channel_digest/internal/service/mocks"
	"channel_digest/testdata/utils"
)

const (
	testChannelID = "UC_test_channel"
	testVideoA    = "aaaaaaaaaaa"
	testVideoB    = "bbbbbbbbbbb"
)

type MonitorTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller

	source      *mocks.MockSource
	extractor   *mocks.MockExtractor
	transformer *mocks.MockTransformer
	artifacts   *mocks.MockArtifactStore
	channels    *mocks.MockChannelStore
	subscribers *mocks.MockSubscriberStore
	notifier    *mocks.MockNotifier
	publisher   *mocks.MockPublisher

	monitor *Monitor
	clock   time.Time
	logger  *slog.Logger
}

func (s *MonitorTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())

	s.source = mocks.NewMockSource(s.ctrl)
	s.extractor = mocks.NewMockExtractor(s.ctrl)
	s.transformer = mocks.NewMockTransformer(s.ctrl)
	s.artifacts = mocks.NewMockArtifactStore(s.ctrl)
	s.channels = mocks.NewMockChannelStore(s.ctrl)
	s.subscribers = mocks.NewMockSubscriberStore(s.ctrl)
	s.notifier = mocks.NewMockNotifier(s.ctrl)
	s.publisher = mocks.NewMockPublisher(s.ctrl)

	s.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	s.clock = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	s.monitor = s.newMonitor(Dependencies{
		Source:      s.source,
		Extractor:   s.extractor,
		Transformer: s.transformer,
		Artifacts:   s.artifacts,
		Channels:    s.channels,
		Subscribers: s.subscribers,
		Notifier:    s.notifier,
		Publisher:   s.publisher,
	}, config.MonitorConfig{MaxItemAge: 7 * 24 * time.Hour})
}

func (s *MonitorTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestMonitorTestSuite(t *testing.T) {
	suite.Run(t, new(MonitorTestSuite))
}

func (s *MonitorTestSuite) newMonitor(deps Dependencies, cfg config.MonitorConfig) *Monitor {
	m := NewMonitor(deps, Options{
		Channels:  []config.ChannelConfig{{ID: testChannelID, DisplayName: "Test Channel"}},
		Monitor:   cfg,
		Recipient: "owner@example.com",
	}, s.logger)
	m.now = func() time.Time { return s.clock }
	return m
}

func (s *MonitorTestSuite) expectReady() {
	s.source.EXPECT().ResolveChannel(gomock.Any(), testChannelID).
		Return(&domain.ChannelInfo{ID: testChannelID, ResolvedName: "Test Channel Official"}, nil)
	s.channels.EXPECT().Upsert(gomock.Any(), gomock.Any()).Return(nil)
}

func (s *MonitorTestSuite) item(id string) domain.ContentItem {
	return domain.ContentItem{
		SourceID:     id,
		ChannelID:    testChannelID,
		Title:        "Video " + id,
		PublishedAt:  s.clock.Add(-time.Hour),
		ThumbnailURL: utils.Ptr("https://i.ytimg.com/vi/" + id + "/hqdefault.jpg"),
	}
}

func testSegments() []domain.Segment {
	return []domain.Segment{
		{Text: "Bitcoin held support this week", Start: 0, Duration: 4.2},
		{Text: "and ether followed", Start: 4.2, Duration: 2.1},
	}
}

func testSummary() *domain.Summary {
	return &domain.Summary{
		Title:            "Weekly Crypto Digest",
		Overview:         "overview",
		MarketUpdate:     "market update",
		TechnicalCorner:  "technical corner",
		ProjectSpotlight: "project spotlight",
		KeyTakeaway:      "key takeaway",
		Disclaimer:       "not financial advice",
	}
}

func (s *MonitorTestSuite) TestCheckChannel_NewItem() {
	ctx := context.Background()
	s.expectReady()

	item := s.item(testVideoA)
	s.source.EXPECT().ListLatestItems(gomock.Any(), testChannelID).Return([]domain.ContentItem{item}, nil)
	s.artifacts.EXPECT().FindBySourceID(gomock.Any(), testVideoA).Return(nil, nil)
	s.extractor.EXPECT().Extract(gomock.Any(), testVideoA).Return(testSegments(), nil)
	s.transformer.EXPECT().Transform(gomock.Any(), testSegments()).Return(testSummary(), nil)

	var created *domain.Artifact
	s.artifacts.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, a *domain.Artifact) (string, error) {
			created = a
			return "artifact-1", nil
		},
	)
	s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil)
	s.subscribers.EXPECT().ListEmails(gomock.Any()).Return([]string{"reader@example.com", "OWNER@example.com"}, nil)
	s.notifier.EXPECT().Send(gomock.Any(), gomock.Any(), "owner@example.com").Return(nil)
	s.notifier.EXPECT().Send(gomock.Any(), gomock.Any(), "reader@example.com").Return(nil)

	var stored domain.Channel
	s.channels.EXPECT().Upsert(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, ch *domain.Channel) error {
			stored = *ch
			return nil
		},
	)

	result, err := s.monitor.CheckChannel(ctx, testChannelID, domain.CheckOptions{})

	s.Require().NoError(err)
	s.Equal(1, result.ItemsSeen)
	s.Require().Len(result.ItemsProcessed, 1)
	s.Equal(testVideoA, result.ItemsProcessed[0].SourceID)
	s.Equal("artifact-1", result.ItemsProcessed[0].ArtifactID)
	s.Empty(result.ItemsSkipped)
	s.Empty(result.ItemsFailed)
	s.False(result.HasFailures())

	s.Require().NotNil(created)
	s.Equal("artifact-1", created.ID)
	s.Equal(testVideoA, created.SourceID)
	s.Equal(testChannelID, created.ChannelID)
	s.Equal("Test Channel", created.ChannelName)
	s.Equal("Weekly Crypto Digest", created.Title)
	s.Equal("Video "+testVideoA, created.VideoTitle)
	s.Equal("https://www.youtube.com/watch?v="+testVideoA, created.SourceURL)
	s.Equal("key takeaway", created.Summary.KeyTakeaway)

	s.Equal(testChannelID, stored.ID)
	s.True(stored.LastCheckedAt.After(s.clock))
	s.Equal(stored.LastCheckedAt, result.LastCheckedAt)
}

func (s *MonitorTestSuite) TestCheckChannel_AlreadyProcessed() {
	ctx := context.Background()
	s.expectReady()

	s.source.EXPECT().ListLatestItems(gomock.Any(), testChannelID).Return([]domain.ContentItem{s.item(testVideoA)}, nil)
	s.artifacts.EXPECT().FindBySourceID(gomock.Any(), testVideoA).Return(&domain.Artifact{ID: "existing", SourceID: testVideoA}, nil)
	s.channels.EXPECT().Upsert(gomock.Any(), gomock.Any()).Return(nil)

	result, err := s.monitor.CheckChannel(ctx, testChannelID, domain.CheckOptions{})

	s.Require().NoError(err)
	s.Empty(result.ItemsProcessed)
	s.Require().Len(result.ItemsSkipped, 1)
	s.Equal(domain.SkippedItem{SourceID: testVideoA, Reason: domain.SkipAlreadyProcessed}, result.ItemsSkipped[0])
}

func (s *MonitorTestSuite) TestCheckChannel_SecondCheckSkipsProcessedItem() {
	ctx := context.Background()
	s.expectReady()

	item := s.item(testVideoA)
	s.source.EXPECT().ListLatestItems(gomock.Any(), testChannelID).Return([]domain.ContentItem{item}, nil).Times(2)

	var stored *domain.Artifact
	s.artifacts.EXPECT().FindBySourceID(gomock.Any(), testVideoA).DoAndReturn(
		func(context.Context, string) (*domain.Artifact, error) { return stored, nil },
	).Times(2)
	s.extractor.EXPECT().Extract(gomock.Any(), testVideoA).Return(testSegments(), nil).Times(1)
	s.transformer.EXPECT().Transform(gomock.Any(), gomock.Any()).Return(testSummary(), nil).Times(1)
	s.artifacts.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, a *domain.Artifact) (string, error) {
			stored = a
			return "artifact-1", nil
		},
	).Times(1)
	s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil)
	s.subscribers.EXPECT().ListEmails(gomock.Any()).Return(nil, nil)
	s.notifier.EXPECT().Send(gomock.Any(), gomock.Any(), "owner@example.com").Return(nil)
	s.channels.EXPECT().Upsert(gomock.Any(), gomock.Any()).Return(nil).Times(2)

	first, err := s.monitor.CheckChannel(ctx, testChannelID, domain.CheckOptions{})
	s.Require().NoError(err)
	s.Len(first.ItemsProcessed, 1)

	second, err := s.monitor.CheckChannel(ctx, testChannelID, domain.CheckOptions{})
	s.Require().NoError(err)
	s.Empty(second.ItemsProcessed)
	s.Require().Len(second.ItemsSkipped, 1)
	s.Equal(domain.SkipAlreadyProcessed, second.ItemsSkipped[0].Reason)
}

func (s *MonitorTestSuite) TestCheckChannel_ItemFailureIsIsolated() {
	ctx := context.Background()
	s.expectReady()

	s.source.EXPECT().ListLatestItems(gomock.Any(), testChannelID).
		Return([]domain.ContentItem{s.item(testVideoA), s.item(testVideoB)}, nil)
	s.artifacts.EXPECT().FindBySourceID(gomock.Any(), gomock.Any()).Return(nil, nil).Times(2)
	s.extractor.EXPECT().Extract(gomock.Any(), testVideoA).Return(nil, domain.ErrNoCaptionsAvailable)
	s.extractor.EXPECT().Extract(gomock.Any(), testVideoB).Return(testSegments(), nil)
	s.transformer.EXPECT().Transform(gomock.Any(), gomock.Any()).Return(testSummary(), nil)
	s.artifacts.EXPECT().Create(gomock.Any(), gomock.Any()).Return("artifact-b", nil)
	s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil)
	s.subscribers.EXPECT().ListEmails(gomock.Any()).Return(nil, nil)
	s.notifier.EXPECT().Send(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	s.channels.EXPECT().Upsert(gomock.Any(), gomock.Any()).Return(nil)

	result, err := s.monitor.CheckChannel(ctx, testChannelID, domain.CheckOptions{})

	s.Require().NoError(err)
	s.True(result.HasFailures())
	s.Require().Len(result.ItemsFailed, 1)
	s.Equal(testVideoA, result.ItemsFailed[0].SourceID)
	s.ErrorIs(result.ItemsFailed[0].Err, domain.ErrNoCaptionsAvailable)
	s.Contains(result.ItemsFailed[0].Error, "extract content")
	s.Require().Len(result.ItemsProcessed, 1)
	s.Equal(testVideoB, result.ItemsProcessed[0].SourceID)
}

func (s *MonitorTestSuite) TestCheckChannel_LastCheckedAdvancesWhenAllItemsFail() {
	ctx := context.Background()
	s.expectReady()

	s.source.EXPECT().ListLatestItems(gomock.Any(), testChannelID).Return([]domain.ContentItem{s.item(testVideoA)}, nil).Times(2)
	s.artifacts.EXPECT().FindBySourceID(gomock.Any(), testVideoA).Return(nil, nil).Times(2)
	s.extractor.EXPECT().Extract(gomock.Any(), testVideoA).Return(testSegments(), nil).Times(2)
	s.transformer.EXPECT().Transform(gomock.Any(), gomock.Any()).
		Return(nil, &domain.IncompleteTransformError{Missing: []string{"disclaimer"}}).Times(2)

	var checks []time.Time
	s.channels.EXPECT().Upsert(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, ch *domain.Channel) error {
			checks = append(checks, ch.LastCheckedAt)
			return nil
		},
	).Times(2)

	first, err := s.monitor.CheckChannel(ctx, testChannelID, domain.CheckOptions{})
	s.Require().NoError(err)
	s.Len(first.ItemsFailed, 1)
	s.ErrorIs(first.ItemsFailed[0].Err, domain.ErrIncompleteTransformResult)

	second, err := s.monitor.CheckChannel(ctx, testChannelID, domain.CheckOptions{})
	s.Require().NoError(err)

	s.Require().Len(checks, 2)
	s.True(checks[0].After(s.clock))
	s.True(checks[1].After(checks[0]))
	s.Equal(checks[1], second.LastCheckedAt)
}

func (s *MonitorTestSuite) TestCheckChannel_ListFailureKeepsLastChecked() {
	ctx := context.Background()
	s.expectReady()

	listErr := domain.Transient("list latest items", errors.New("503 backend error"))
	s.source.EXPECT().ListLatestItems(gomock.Any(), testChannelID).Return(nil, listErr)

	result, err := s.monitor.CheckChannel(ctx, testChannelID, domain.CheckOptions{})

	s.Nil(result)
	s.ErrorIs(err, domain.ErrTransient)
	s.Equal(s.clock, s.monitor.Channels()[0].LastCheckedAt)
}

func (s *MonitorTestSuite) TestCheckChannel_UnknownChannel() {
	ctx := context.Background()
	s.expectReady()

	result, err := s.monitor.CheckChannel(ctx, "UC_not_watched", domain.CheckOptions{})

	s.Nil(result)
	s.ErrorIs(err, domain.ErrUnknownChannel)
}

func (s *MonitorTestSuite) TestCheckChannel_StaleItemSkipped() {
	ctx := context.Background()
	s.expectReady()

	old := s.item(testVideoA)
	old.PublishedAt = s.clock.Add(-30 * 24 * time.Hour)
	s.source.EXPECT().ListLatestItems(gomock.Any(), testChannelID).Return([]domain.ContentItem{old}, nil)
	s.channels.EXPECT().Upsert(gomock.Any(), gomock.Any()).Return(nil)

	result, err := s.monitor.CheckChannel(ctx, testChannelID, domain.CheckOptions{})

	s.Require().NoError(err)
	s.Require().Len(result.ItemsSkipped, 1)
	s.Equal(domain.SkipStale, result.ItemsSkipped[0].Reason)
}

func (s *MonitorTestSuite) TestCheckChannel_ForceSummaryIgnoresAge() {
	ctx := context.Background()
	s.expectReady()

	old := s.item(testVideoA)
	old.PublishedAt = s.clock.Add(-30 * 24 * time.Hour)
	s.source.EXPECT().ListLatestItems(gomock.Any(), testChannelID).Return([]domain.ContentItem{old}, nil)
	s.artifacts.EXPECT().FindBySourceID(gomock.Any(), testVideoA).Return(nil, nil)
	s.extractor.EXPECT().Extract(gomock.Any(), testVideoA).Return(testSegments(), nil)
	s.transformer.EXPECT().Transform(gomock.Any(), gomock.Any()).Return(testSummary(), nil)
	s.artifacts.EXPECT().Create(gomock.Any(), gomock.Any()).Return("artifact-1", nil)
	s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil)
	s.subscribers.EXPECT().ListEmails(gomock.Any()).Return(nil, nil)
	s.notifier.EXPECT().Send(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	s.channels.EXPECT().Upsert(gomock.Any(), gomock.Any()).Return(nil)

	result, err := s.monitor.CheckChannel(ctx, testChannelID, domain.CheckOptions{ForceSummary: true})

	s.Require().NoError(err)
	s.Len(result.ItemsProcessed, 1)
}

func (s *MonitorTestSuite) TestCheckChannel_ForceSendEmailResendsExisting() {
	ctx := context.Background()
	s.expectReady()

	existing := &domain.Artifact{ID: "existing", SourceID: testVideoA}
	s.source.EXPECT().ListLatestItems(gomock.Any(), testChannelID).Return([]domain.ContentItem{s.item(testVideoA)}, nil)
	s.artifacts.EXPECT().FindBySourceID(gomock.Any(), testVideoA).Return(existing, nil)
	s.subscribers.EXPECT().ListEmails(gomock.Any()).Return(nil, nil)
	s.notifier.EXPECT().Send(gomock.Any(), existing, "owner@example.com").Return(nil)
	s.channels.EXPECT().Upsert(gomock.Any(), gomock.Any()).Return(nil)

	result, err := s.monitor.CheckChannel(ctx, testChannelID, domain.CheckOptions{ForceSendEmail: true})

	s.Require().NoError(err)
	s.Require().Len(result.ItemsSkipped, 1)
	s.Equal(domain.SkipAlreadyProcessed, result.ItemsSkipped[0].Reason)
}

func (s *MonitorTestSuite) TestCheckChannel_NotificationFailureIsNotItemFailure() {
	ctx := context.Background()
	s.expectReady()

	s.source.EXPECT().ListLatestItems(gomock.Any(), testChannelID).Return([]domain.ContentItem{s.item(testVideoA)}, nil)
	s.artifacts.EXPECT().FindBySourceID(gomock.Any(), testVideoA).Return(nil, nil)
	s.extractor.EXPECT().Extract(gomock.Any(), testVideoA).Return(testSegments(), nil)
	s.transformer.EXPECT().Transform(gomock.Any(), gomock.Any()).Return(testSummary(), nil)
	s.artifacts.EXPECT().Create(gomock.Any(), gomock.Any()).Return("artifact-1", nil)
	s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(errors.New("channel closed"))
	s.subscribers.EXPECT().ListEmails(gomock.Any()).Return(nil, errors.New("db down"))
	s.notifier.EXPECT().Send(gomock.Any(), gomock.Any(), "owner@example.com").Return(errors.New("smtp refused"))
	s.channels.EXPECT().Upsert(gomock.Any(), gomock.Any()).Return(nil)

	result, err := s.monitor.CheckChannel(ctx, testChannelID, domain.CheckOptions{})

	s.Require().NoError(err)
	s.Len(result.ItemsProcessed, 1)
	s.Empty(result.ItemsFailed)
}

func (s *MonitorTestSuite) TestCheckChannel_ConcurrentCreateCountsAsSkip() {
	ctx := context.Background()
	s.expectReady()

	s.source.EXPECT().ListLatestItems(gomock.Any(), testChannelID).Return([]domain.ContentItem{s.item(testVideoA)}, nil)
	s.artifacts.EXPECT().FindBySourceID(gomock.Any(), testVideoA).Return(nil, nil)
	s.extractor.EXPECT().Extract(gomock.Any(), testVideoA).Return(testSegments(), nil)
	s.transformer.EXPECT().Transform(gomock.Any(), gomock.Any()).Return(testSummary(), nil)
	s.artifacts.EXPECT().Create(gomock.Any(), gomock.Any()).Return("", domain.ErrAlreadyProcessed)
	s.channels.EXPECT().Upsert(gomock.Any(), gomock.Any()).Return(nil)

	result, err := s.monitor.CheckChannel(ctx, testChannelID, domain.CheckOptions{})

	s.Require().NoError(err)
	s.Empty(result.ItemsProcessed)
	s.Empty(result.ItemsFailed)
	s.Require().Len(result.ItemsSkipped, 1)
	s.Equal(domain.SkipAlreadyProcessed, result.ItemsSkipped[0].Reason)
}

func (s *MonitorTestSuite) TestCheckChannel_InFlightItemSkipped() {
	ctx := context.Background()
	locker := mocks.NewMockLocker(s.ctrl)
	m := s.newMonitor(Dependencies{
		Source:      s.source,
		Extractor:   s.extractor,
		Transformer: s.transformer,
		Artifacts:   s.artifacts,
		Channels:    s.channels,
		Locker:      locker,
	}, config.MonitorConfig{})
	s.expectReady()

	s.source.EXPECT().ListLatestItems(gomock.Any(), testChannelID).Return([]domain.ContentItem{s.item(testVideoA)}, nil)
	locker.EXPECT().TryLock(gomock.Any(), testVideoA).Return(nil, false, nil)
	s.channels.EXPECT().Upsert(gomock.Any(), gomock.Any()).Return(nil)

	result, err := m.CheckChannel(ctx, testChannelID, domain.CheckOptions{})

	s.Require().NoError(err)
	s.Require().Len(result.ItemsSkipped, 1)
	s.Equal(domain.SkipInFlight, result.ItemsSkipped[0].Reason)
}

func (s *MonitorTestSuite) TestCheckChannel_WithoutOptionalCollaborators() {
	ctx := context.Background()
	m := s.newMonitor(Dependencies{
		Source:      s.source,
		Extractor:   s.extractor,
		Transformer: s.transformer,
		Artifacts:   s.artifacts,
		Channels:    s.channels,
	}, config.MonitorConfig{})
	s.expectReady()

	s.source.EXPECT().ListLatestItems(gomock.Any(), testChannelID).Return([]domain.ContentItem{s.item(testVideoA)}, nil)
	s.artifacts.EXPECT().FindBySourceID(gomock.Any(), testVideoA).Return(nil, nil)
	s.extractor.EXPECT().Extract(gomock.Any(), testVideoA).Return(testSegments(), nil)
	s.transformer.EXPECT().Transform(gomock.Any(), gomock.Any()).Return(testSummary(), nil)
	s.artifacts.EXPECT().Create(gomock.Any(), gomock.Any()).Return("artifact-1", nil)
	s.channels.EXPECT().Upsert(gomock.Any(), gomock.Any()).Return(nil)

	result, err := m.CheckChannel(ctx, testChannelID, domain.CheckOptions{})

	s.Require().NoError(err)
	s.Len(result.ItemsProcessed, 1)
}

func (s *MonitorTestSuite) TestInitialize_NoChannelsAvailable() {
	ctx := context.Background()
	s.source.EXPECT().ResolveChannel(gomock.Any(), testChannelID).Return(nil, domain.ErrChannelNotFound)

	err := s.monitor.Initialize(ctx)

	s.ErrorIs(err, domain.ErrNoChannelsAvailable)
	s.Equal(StateUninitialized, s.monitor.State())
	s.Empty(s.monitor.Channels())
}

func (s *MonitorTestSuite) TestInitialize_SkipsUnresolvableChannels() {
	ctx := context.Background()
	m := NewMonitor(Dependencies{
		Source:    s.source,
		Artifacts: s.artifacts,
		Channels:  s.channels,
	}, Options{
		Channels: []config.ChannelConfig{
			{ID: "UC_gone", DisplayName: "Gone"},
			{ID: testChannelID},
		},
	}, s.logger)

	s.source.EXPECT().ResolveChannel(gomock.Any(), "UC_gone").Return(nil, domain.ErrChannelNotFound)
	s.source.EXPECT().ResolveChannel(gomock.Any(), testChannelID).
		Return(&domain.ChannelInfo{ID: testChannelID, ResolvedName: "Resolved Name"}, nil)
	s.channels.EXPECT().Upsert(gomock.Any(), gomock.Any()).Return(errors.New("db down"))

	err := m.Initialize(ctx)

	s.Require().NoError(err)
	s.Equal(StateReady, m.State())
	channels := m.Channels()
	s.Require().Len(channels, 1)
	s.Equal(testChannelID, channels[0].ID)
	s.Equal("Resolved Name", channels[0].DisplayName)

	_, err = m.CheckChannel(ctx, "UC_gone", domain.CheckOptions{})
	s.ErrorIs(err, domain.ErrUnknownChannel)
}

func (s *MonitorTestSuite) TestInitialize_Idempotent() {
	ctx := context.Background()
	s.expectReady()

	s.Require().NoError(s.monitor.Initialize(ctx))
	s.Require().NoError(s.monitor.Initialize(ctx))

	s.Equal(StateReady, s.monitor.State())
	s.Len(s.monitor.Channels(), 1)
}

func (s *MonitorTestSuite) TestInitialize_ConcurrentCallsResolveOnce() {
	ctx := context.Background()
	s.expectReady()

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.NoError(s.monitor.Initialize(ctx))
		}()
	}
	wg.Wait()

	s.Equal(StateReady, s.monitor.State())
}

func (s *MonitorTestSuite) TestStartPolling_ChecksImmediately() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.expectReady()

	checked := make(chan struct{})
	s.source.EXPECT().ListLatestItems(gomock.Any(), testChannelID).Return(nil, nil).MinTimes(1)
	s.channels.EXPECT().Upsert(gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, *domain.Channel) error {
			select {
			case <-checked:
			default:
				close(checked)
			}
			return nil
		},
	).MinTimes(1)

	handle := s.monitor.StartPolling(ctx, time.Hour)

	select {
	case <-checked:
	case <-time.After(2 * time.Second):
		s.Fail("first cycle did not run")
	}

	handle.Stop()
	s.NoError(handle.Err())
}

func (s *MonitorTestSuite) TestStartPolling_InitFailureIsReported() {
	ctx := context.Background()
	s.source.EXPECT().ResolveChannel(gomock.Any(), testChannelID).Return(nil, domain.ErrChannelNotFound)

	handle := s.monitor.StartPolling(ctx, time.Hour)

	select {
	case <-handle.Done():
	case <-time.After(2 * time.Second):
		s.Fail("polling did not stop after failed initialization")
	}
	s.ErrorIs(handle.Err(), domain.ErrNoChannelsAvailable)
}
