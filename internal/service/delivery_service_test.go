package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hostelhub/residence-api/internal/dto"
	"github.com/hostelhub/residence-api/internal/models"
	"github.com/hostelhub/residence-api/internal/notifier"
	"github.com/hostelhub/residence-api/internal/repository"
	appErrors "github.com/hostelhub/residence-api/pkg/errors"
	"github.com/hostelhub/residence-api/pkg/jobs"
)

type mockDeliveryRepo struct {
	statuses map[string]*models.DeliveryStatus
	failures []*models.FailedDelivery
	nextID   int
}

func newMockDeliveryRepo() *mockDeliveryRepo {
	return &mockDeliveryRepo{statuses: make(map[string]*models.DeliveryStatus)}
}

func (m *mockDeliveryRepo) byID(id string) *models.DeliveryStatus {
	for _, status := range m.statuses {
		if status.ID == id {
			return status
		}
	}
	return nil
}

func (m *mockDeliveryRepo) Create(ctx context.Context, status *models.DeliveryStatus, channels []models.DeliveryChannel) error {
	if _, exists := m.statuses[status.AnnouncementID]; exists {
		return fmt.Errorf("duplicate delivery")
	}
	m.nextID++
	status.ID = fmt.Sprintf("dlv-%d", m.nextID)
	for _, ch := range channels {
		status.Channels = append(status.Channels, models.ChannelStats{
			DeliveryID: status.ID, Channel: ch, Pending: status.TotalRecipients,
		})
	}
	stored := *status
	stored.Channels = append([]models.ChannelStats(nil), status.Channels...)
	m.statuses[status.AnnouncementID] = &stored
	return nil
}

func (m *mockDeliveryRepo) GetByAnnouncement(ctx context.Context, announcementID string) (*models.DeliveryStatus, error) {
	status, ok := m.statuses[announcementID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *status
	clone.Channels = append([]models.ChannelStats(nil), status.Channels...)
	return &clone, nil
}

func (m *mockDeliveryRepo) UpdateState(ctx context.Context, id string, from []models.DeliveryState, to models.DeliveryState) error {
	status := m.byID(id)
	if status == nil {
		return sql.ErrNoRows
	}
	allowed := false
	for _, state := range from {
		if status.State == state {
			allowed = true
			break
		}
	}
	if !allowed {
		return sql.ErrNoRows
	}
	status.State = to
	return nil
}

func (m *mockDeliveryRepo) Pause(ctx context.Context, id, reason string, autoResumeAt *time.Time) error {
	status := m.byID(id)
	if status == nil || (status.State != models.DeliveryStateProcessing && status.State != models.DeliveryStatePending) {
		return sql.ErrNoRows
	}
	status.State = models.DeliveryStatePaused
	status.PauseReason = &reason
	status.AutoResumeAt = autoResumeAt
	return nil
}

func (m *mockDeliveryRepo) Resume(ctx context.Context, id string, restartBatch bool) error {
	status := m.byID(id)
	if status == nil || status.State != models.DeliveryStatePaused {
		return sql.ErrNoRows
	}
	status.State = models.DeliveryStateProcessing
	status.PauseReason = nil
	status.AutoResumeAt = nil
	return nil
}

func (m *mockDeliveryRepo) AdvanceBatch(ctx context.Context, id string, currentBatch, completedBatches int) error {
	status := m.byID(id)
	if status == nil {
		return sql.ErrNoRows
	}
	status.CurrentBatch = currentBatch
	status.CompletedBatches = completedBatches
	return nil
}

func (m *mockDeliveryRepo) ApplyChannelDeltas(ctx context.Context, deliveryID string, deltas []repository.ChannelDelta) error {
	status := m.byID(deliveryID)
	if status == nil {
		return sql.ErrNoRows
	}
	for _, delta := range deltas {
		for i := range status.Channels {
			if status.Channels[i].Channel != delta.Channel {
				continue
			}
			status.Channels[i].Sent += delta.Sent
			status.Channels[i].Delivered += delta.Delivered
			status.Channels[i].Failed += delta.Failed
			status.Channels[i].Pending -= delta.Sent
		}
	}
	return nil
}

func (m *mockDeliveryRepo) RecordFailure(ctx context.Context, failure *models.FailedDelivery) error {
	m.nextID++
	failure.ID = fmt.Sprintf("fail-%d", m.nextID)
	failure.FailedAt = time.Now().UTC()
	stored := *failure
	m.failures = append(m.failures, &stored)
	return nil
}

func (m *mockDeliveryRepo) ListFailures(ctx context.Context, filter repository.FailureFilter) ([]models.FailedDelivery, int, error) {
	var out []models.FailedDelivery
	for _, failure := range m.failures {
		if failure.AnnouncementID != filter.AnnouncementID {
			continue
		}
		if filter.UnresolvedOnly && failure.Resolved {
			continue
		}
		if len(filter.StudentIDs) > 0 {
			match := false
			for _, id := range filter.StudentIDs {
				if failure.StudentID == id {
					match = true
					break
				}
			}
			if !match {
				continue
			}
		}
		out = append(out, *failure)
	}
	total := len(out)
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, total, nil
}

func (m *mockDeliveryRepo) MarkFailureRetried(ctx context.Context, id string, resolved bool) error {
	for _, failure := range m.failures {
		if failure.ID == id {
			failure.RetryCount++
			failure.Resolved = resolved
			return nil
		}
	}
	return sql.ErrNoRows
}

func (m *mockDeliveryRepo) ListAutoResumable(ctx context.Context, now time.Time) ([]models.DeliveryStatus, error) {
	var out []models.DeliveryStatus
	for _, status := range m.statuses {
		if status.State == models.DeliveryStatePaused && status.AutoResumeAt != nil && !status.AutoResumeAt.After(now) {
			out = append(out, *status)
		}
	}
	return out, nil
}

type mockAudience struct {
	recipients []models.Recipient
}

func (m *mockAudience) Resolve(ctx context.Context, announcement *models.Announcement) ([]models.Recipient, error) {
	out := make([]models.Recipient, len(m.recipients))
	copy(out, m.recipients)
	return out, nil
}

type fakeSender struct {
	channel models.DeliveryChannel
	sent    []string
	failFor map[string]bool
}

func (f *fakeSender) Channel() models.DeliveryChannel { return f.channel }

func (f *fakeSender) Send(ctx context.Context, msg notifier.Message, recipient models.Recipient) error {
	if f.failFor[recipient.StudentID] {
		return fmt.Errorf("mailbox unreachable")
	}
	f.sent = append(f.sent, recipient.StudentID)
	return nil
}

func publishedAnnouncement(id string) *models.Announcement {
	now := time.Now().UTC()
	return &models.Announcement{
		ID: id, HostelID: testHostelID,
		Title: "Fire drill on Friday", Content: "Assemble at the front lawn by 08:00.",
		Status: models.AnnouncementStatusPublished, PublishedAt: &now,
	}
}

func newTestDeliveryService(batchSize int) (*DeliveryService, *mockDeliveryRepo, *mockAnnouncementRepo, *fakeSender) {
	repo := newMockDeliveryRepo()
	announcements := newMockAnnouncementRepo()
	announcements.announcements["ann-1"] = publishedAnnouncement("ann-1")
	sender := &fakeSender{channel: models.ChannelInApp, failFor: map[string]bool{}}
	audience := &mockAudience{recipients: testRoster().recipients}
	svc := NewDeliveryService(repo, announcements, audience, notifier.NewRegistry(sender), DeliveryConfig{
		DefaultBatchSize: batchSize,
		DefaultChannels:  []models.DeliveryChannel{models.ChannelInApp},
		Workers:          1,
		MaxRetries:       2,
	}, nil, zap.NewNop())
	return svc, repo, announcements, sender
}

func runBatch(t *testing.T, svc *DeliveryService, announcementID string, batch int) {
	t.Helper()
	status, err := svc.repo.GetByAnnouncement(context.Background(), announcementID)
	require.NoError(t, err)
	err = svc.handleBatch(context.Background(), jobs.Job{
		Type:    "delivery.batch",
		Payload: batchJob{DeliveryID: status.ID, AnnouncementID: announcementID, Batch: batch},
	})
	require.NoError(t, err)
}

func TestDeliveryServiceStartManual(t *testing.T) {
	svc, repo, _, _ := newTestDeliveryService(2)

	status, err := svc.StartManual(context.Background(), "ann-1", dto.StartDeliveryRequest{
		Channels: []models.DeliveryChannel{models.ChannelInApp, models.ChannelInApp},
	}, staffActor())
	require.NoError(t, err)

	assert.Equal(t, models.DeliveryStateProcessing, status.State)
	assert.Equal(t, 4, status.TotalRecipients)
	assert.Equal(t, 2, status.TotalBatches)
	require.Len(t, repo.statuses["ann-1"].Channels, 1, "duplicate channels collapse")
}

func TestDeliveryServiceStartManualRejectsDraft(t *testing.T) {
	svc, _, announcements, _ := newTestDeliveryService(2)
	announcements.announcements["ann-1"].Status = models.AnnouncementStatusDraft

	_, err := svc.StartManual(context.Background(), "ann-1", dto.StartDeliveryRequest{
		Channels: []models.DeliveryChannel{models.ChannelInApp},
	}, staffActor())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestDeliveryServiceStartTwiceConflicts(t *testing.T) {
	svc, _, _, _ := newTestDeliveryService(2)

	_, err := svc.StartManual(context.Background(), "ann-1", dto.StartDeliveryRequest{
		Channels: []models.DeliveryChannel{models.ChannelInApp},
	}, staffActor())
	require.NoError(t, err)

	_, err = svc.StartManual(context.Background(), "ann-1", dto.StartDeliveryRequest{
		Channels: []models.DeliveryChannel{models.ChannelInApp},
	}, staffActor())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestDeliveryServiceEmptyAudienceCompletesImmediately(t *testing.T) {
	repo := newMockDeliveryRepo()
	announcements := newMockAnnouncementRepo()
	announcements.announcements["ann-1"] = publishedAnnouncement("ann-1")
	sender := &fakeSender{channel: models.ChannelInApp}
	svc := NewDeliveryService(repo, announcements, &mockAudience{}, notifier.NewRegistry(sender), DeliveryConfig{}, nil, zap.NewNop())

	err := svc.StartDefault(context.Background(), announcements.announcements["ann-1"])
	require.NoError(t, err)

	assert.Equal(t, models.DeliveryStateCompleted, repo.statuses["ann-1"].State)
	assert.Empty(t, sender.sent)
}

func TestDeliveryServiceBatchesRunToCompletion(t *testing.T) {
	svc, repo, _, sender := newTestDeliveryService(2)

	_, err := svc.StartManual(context.Background(), "ann-1", dto.StartDeliveryRequest{
		Channels: []models.DeliveryChannel{models.ChannelInApp},
	}, staffActor())
	require.NoError(t, err)

	runBatch(t, svc, "ann-1", 0)
	stored := repo.statuses["ann-1"]
	assert.Equal(t, models.DeliveryStateProcessing, stored.State)
	assert.Equal(t, 1, stored.CurrentBatch)
	assert.Len(t, sender.sent, 2)

	runBatch(t, svc, "ann-1", 1)
	assert.Equal(t, models.DeliveryStateCompleted, stored.State)
	assert.Equal(t, 2, stored.CompletedBatches)
	assert.Len(t, sender.sent, 4)
	assert.Equal(t, 4, stored.Channels[0].Sent)
	assert.Equal(t, 4, stored.Channels[0].Delivered)
	assert.Zero(t, stored.Channels[0].Pending)
}

func TestDeliveryServiceBatchRecordsFailures(t *testing.T) {
	svc, repo, _, sender := newTestDeliveryService(10)
	sender.failFor[studentIDBob] = true

	_, err := svc.StartManual(context.Background(), "ann-1", dto.StartDeliveryRequest{
		Channels: []models.DeliveryChannel{models.ChannelInApp},
	}, staffActor())
	require.NoError(t, err)

	runBatch(t, svc, "ann-1", 0)

	stored := repo.statuses["ann-1"]
	assert.Equal(t, models.DeliveryStateCompleted, stored.State)
	assert.Equal(t, 4, stored.Channels[0].Sent)
	assert.Equal(t, 3, stored.Channels[0].Delivered)
	assert.Equal(t, 1, stored.Channels[0].Failed)
	require.Len(t, repo.failures, 1)
	assert.Equal(t, studentIDBob, repo.failures[0].StudentID)
	assert.Equal(t, "mailbox unreachable", repo.failures[0].Reason)
}

func TestDeliveryServicePausedBatchDoesNotSend(t *testing.T) {
	svc, repo, _, sender := newTestDeliveryService(2)

	_, err := svc.StartManual(context.Background(), "ann-1", dto.StartDeliveryRequest{
		Channels: []models.DeliveryChannel{models.ChannelInApp},
	}, staffActor())
	require.NoError(t, err)

	_, err = svc.Pause(context.Background(), "ann-1", dto.PauseDeliveryRequest{Reason: "smtp maintenance"}, staffActor())
	require.NoError(t, err)

	runBatch(t, svc, "ann-1", 0)
	assert.Empty(t, sender.sent)
	assert.Equal(t, models.DeliveryStatePaused, repo.statuses["ann-1"].State)
}

func TestDeliveryServicePauseResume(t *testing.T) {
	svc, repo, _, _ := newTestDeliveryService(2)

	_, err := svc.StartManual(context.Background(), "ann-1", dto.StartDeliveryRequest{
		Channels: []models.DeliveryChannel{models.ChannelInApp},
	}, staffActor())
	require.NoError(t, err)

	// Resume before pause is a conflict.
	_, err = svc.Resume(context.Background(), "ann-1", dto.ResumeDeliveryRequest{}, staffActor())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	paused, err := svc.Pause(context.Background(), "ann-1", dto.PauseDeliveryRequest{Reason: "smtp maintenance"}, staffActor())
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryStatePaused, paused.State)
	require.NotNil(t, paused.PauseReason)

	resumed, err := svc.Resume(context.Background(), "ann-1", dto.ResumeDeliveryRequest{}, staffActor())
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryStateProcessing, resumed.State)
	assert.Nil(t, repo.statuses["ann-1"].PauseReason)
}

func TestDeliveryServicePauseValidation(t *testing.T) {
	svc, _, _, _ := newTestDeliveryService(2)

	_, err := svc.Pause(context.Background(), "ann-1", dto.PauseDeliveryRequest{
		Reason: "brb",
	}, staffActor())
	require.Error(t, err, "reason below ten characters")
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Pause(context.Background(), "ann-1", dto.PauseDeliveryRequest{
		Reason: "smtp maintenance", AutoResume: true,
	}, staffActor())
	require.Error(t, err, "auto-resume without a delay")
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	tooSoon := 3
	_, err = svc.Pause(context.Background(), "ann-1", dto.PauseDeliveryRequest{
		Reason: "smtp maintenance", AutoResume: true, ResumeAfterMinutes: &tooSoon,
	}, staffActor())
	require.Error(t, err, "delay below five minutes")
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestDeliveryServiceCancelFinishedConflicts(t *testing.T) {
	svc, repo, _, _ := newTestDeliveryService(10)

	_, err := svc.StartManual(context.Background(), "ann-1", dto.StartDeliveryRequest{
		Channels: []models.DeliveryChannel{models.ChannelInApp},
	}, staffActor())
	require.NoError(t, err)
	runBatch(t, svc, "ann-1", 0)
	require.Equal(t, models.DeliveryStateCompleted, repo.statuses["ann-1"].State)

	err = svc.Cancel(context.Background(), "ann-1", staffActor())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestDeliveryServiceReport(t *testing.T) {
	svc, _, _, sender := newTestDeliveryService(10)
	sender.failFor[studentIDBob] = true

	_, err := svc.StartManual(context.Background(), "ann-1", dto.StartDeliveryRequest{
		Channels: []models.DeliveryChannel{models.ChannelInApp},
	}, staffActor())
	require.NoError(t, err)
	runBatch(t, svc, "ann-1", 0)

	report, err := svc.Report(context.Background(), "ann-1", staffActor())
	require.NoError(t, err)

	assert.Equal(t, models.DeliveryStateCompleted, report.Status.State)
	assert.InDelta(t, 75.0, report.DeliveryRate, 0.01)
	assert.Equal(t, 1, report.TotalFailures)
	require.Len(t, report.Failures, 1)
	assert.False(t, report.HasMore)
}

func TestDeliveryServiceRetryFailed(t *testing.T) {
	svc, repo, _, sender := newTestDeliveryService(10)
	sender.failFor[studentIDBob] = true

	_, err := svc.StartManual(context.Background(), "ann-1", dto.StartDeliveryRequest{
		Channels: []models.DeliveryChannel{models.ChannelInApp},
	}, staffActor())
	require.NoError(t, err)
	runBatch(t, svc, "ann-1", 0)
	require.Len(t, repo.failures, 1)

	// The mailbox recovers.
	delete(sender.failFor, studentIDBob)

	summary, err := svc.RetryFailed(context.Background(), "ann-1", dto.RetryFailedRequest{}, staffActor())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Attempted)
	assert.Equal(t, 1, summary.SuccessCount)
	assert.Zero(t, summary.FailureCount)
	assert.True(t, repo.failures[0].Resolved)
	assert.Equal(t, 1, repo.failures[0].RetryCount)
	assert.Equal(t, 4, repo.statuses["ann-1"].Channels[0].Delivered)
	assert.Equal(t, 0, repo.statuses["ann-1"].Channels[0].Failed)
}

func TestDeliveryServiceRetryStopsAtLimit(t *testing.T) {
	svc, repo, _, sender := newTestDeliveryService(10)
	sender.failFor[studentIDBob] = true

	_, err := svc.StartManual(context.Background(), "ann-1", dto.StartDeliveryRequest{
		Channels: []models.DeliveryChannel{models.ChannelInApp},
	}, staffActor())
	require.NoError(t, err)
	runBatch(t, svc, "ann-1", 0)

	// Two failing retries hit MaxRetries, the third is refused outright.
	for i := 0; i < 2; i++ {
		summary, err := svc.RetryFailed(context.Background(), "ann-1", dto.RetryFailedRequest{}, staffActor())
		require.NoError(t, err)
		assert.Equal(t, 1, summary.FailureCount)
		assert.Equal(t, "mailbox unreachable", summary.Outcomes[0].Error)
	}
	require.Equal(t, 2, repo.failures[0].RetryCount)

	summary, err := svc.RetryFailed(context.Background(), "ann-1", dto.RetryFailedRequest{}, staffActor())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.FailureCount)
	assert.Equal(t, "retry limit reached", summary.Outcomes[0].Error)
	assert.Equal(t, 2, repo.failures[0].RetryCount, "no further send attempts")
}

func TestDeliveryServiceRetryMaxAttemptsOverride(t *testing.T) {
	svc, repo, _, sender := newTestDeliveryService(10)
	sender.failFor[studentIDBob] = true

	_, err := svc.StartManual(context.Background(), "ann-1", dto.StartDeliveryRequest{
		Channels: []models.DeliveryChannel{models.ChannelInApp},
	}, staffActor())
	require.NoError(t, err)
	runBatch(t, svc, "ann-1", 0)
	require.Len(t, repo.failures, 1)

	// A request cap of one refuses the second attempt even though the
	// delivery default allows two.
	one := 1
	summary, err := svc.RetryFailed(context.Background(), "ann-1", dto.RetryFailedRequest{MaxRetryAttempts: &one}, staffActor())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.FailureCount)
	require.Equal(t, 1, repo.failures[0].RetryCount)

	summary, err = svc.RetryFailed(context.Background(), "ann-1", dto.RetryFailedRequest{MaxRetryAttempts: &one}, staffActor())
	require.NoError(t, err)
	assert.Equal(t, "retry limit reached", summary.Outcomes[0].Error)
	assert.Equal(t, 1, repo.failures[0].RetryCount, "no further send attempts")

	zero := 0
	_, err = svc.RetryFailed(context.Background(), "ann-1", dto.RetryFailedRequest{MaxRetryAttempts: &zero}, staffActor())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestDeliveryServiceRetryFallbackChannel(t *testing.T) {
	repo := newMockDeliveryRepo()
	announcements := newMockAnnouncementRepo()
	announcements.announcements["ann-1"] = publishedAnnouncement("ann-1")
	email := &fakeSender{channel: models.ChannelEmail, failFor: map[string]bool{studentIDBob: true}}
	push := &fakeSender{channel: models.ChannelPush, failFor: map[string]bool{}}
	svc := NewDeliveryService(repo, announcements, &mockAudience{recipients: testRoster().recipients},
		notifier.NewRegistry(email, push), DeliveryConfig{
			DefaultBatchSize: 10,
			DefaultChannels:  []models.DeliveryChannel{models.ChannelEmail},
			Workers:          1,
			MaxRetries:       2,
		}, nil, zap.NewNop())

	_, err := svc.StartManual(context.Background(), "ann-1", dto.StartDeliveryRequest{
		Channels: []models.DeliveryChannel{models.ChannelEmail},
	}, staffActor())
	require.NoError(t, err)
	runBatch(t, svc, "ann-1", 0)
	require.Len(t, repo.failures, 1)

	// Bob's mailbox stays broken; the push channel takes over.
	fallback := models.ChannelPush
	summary, err := svc.RetryFailed(context.Background(), "ann-1", dto.RetryFailedRequest{FallbackChannel: &fallback}, staffActor())
	require.NoError(t, err)
	require.Equal(t, 1, summary.SuccessCount)
	assert.Equal(t, models.ChannelPush, summary.Outcomes[0].Channel)
	assert.Equal(t, []string{studentIDBob}, push.sent)
	assert.True(t, repo.failures[0].Resolved)
}

func TestDeliveryServiceRetryDeferredByDelay(t *testing.T) {
	svc, repo, _, sender := newTestDeliveryService(10)
	sender.failFor[studentIDBob] = true

	_, err := svc.StartManual(context.Background(), "ann-1", dto.StartDeliveryRequest{
		Channels: []models.DeliveryChannel{models.ChannelInApp},
	}, staffActor())
	require.NoError(t, err)
	runBatch(t, svc, "ann-1", 0)
	require.Len(t, repo.failures, 1)

	delete(sender.failFor, studentIDBob)

	delay := 5
	summary, err := svc.RetryFailed(context.Background(), "ann-1", dto.RetryFailedRequest{DelayMinutes: &delay}, staffActor())
	require.NoError(t, err)
	assert.True(t, summary.Scheduled)
	require.NotNil(t, summary.RunAt)
	assert.Equal(t, 1, summary.Attempted)
	assert.Empty(t, summary.Outcomes)
	assert.False(t, repo.failures[0].Resolved, "nothing sent before the delay elapses")
}

func TestDeliveryServiceResumeAutoPaused(t *testing.T) {
	svc, repo, _, _ := newTestDeliveryService(2)

	_, err := svc.StartManual(context.Background(), "ann-1", dto.StartDeliveryRequest{
		Channels: []models.DeliveryChannel{models.ChannelInApp},
	}, staffActor())
	require.NoError(t, err)

	minutes := 30
	_, err = svc.Pause(context.Background(), "ann-1", dto.PauseDeliveryRequest{
		Reason: "smtp maintenance", AutoResume: true, ResumeAfterMinutes: &minutes,
	}, staffActor())
	require.NoError(t, err)
	require.NotNil(t, repo.statuses["ann-1"].AutoResumeAt)

	// Not due yet.
	resumed, err := svc.ResumeAutoPaused(context.Background())
	require.NoError(t, err)
	assert.Zero(t, resumed)

	past := time.Now().Add(-time.Minute).UTC()
	repo.statuses["ann-1"].AutoResumeAt = &past
	resumed, err = svc.ResumeAutoPaused(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, resumed)
	assert.Equal(t, models.DeliveryStateProcessing, repo.statuses["ann-1"].State)
}
