package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hostelhub/residence-api/internal/dto"
	"github.com/hostelhub/residence-api/internal/models"
	"github.com/hostelhub/residence-api/internal/notifier"
	"github.com/hostelhub/residence-api/internal/repository"
	appErrors "github.com/hostelhub/residence-api/pkg/errors"
	"github.com/hostelhub/residence-api/pkg/jobs"
)

type deliveryStore interface {
	Create(ctx context.Context, status *models.DeliveryStatus, channels []models.DeliveryChannel) error
	GetByAnnouncement(ctx context.Context, announcementID string) (*models.DeliveryStatus, error)
	UpdateState(ctx context.Context, id string, from []models.DeliveryState, to models.DeliveryState) error
	Pause(ctx context.Context, id, reason string, autoResumeAt *time.Time) error
	Resume(ctx context.Context, id string, restartBatch bool) error
	AdvanceBatch(ctx context.Context, id string, currentBatch, completedBatches int) error
	ApplyChannelDeltas(ctx context.Context, deliveryID string, deltas []repository.ChannelDelta) error
	RecordFailure(ctx context.Context, failure *models.FailedDelivery) error
	ListFailures(ctx context.Context, filter repository.FailureFilter) ([]models.FailedDelivery, int, error)
	MarkFailureRetried(ctx context.Context, id string, resolved bool) error
	ListAutoResumable(ctx context.Context, now time.Time) ([]models.DeliveryStatus, error)
}

type audienceResolver interface {
	Resolve(ctx context.Context, announcement *models.Announcement) ([]models.Recipient, error)
}

type deliveryAnnouncementGateway interface {
	GetByID(ctx context.Context, id string) (*models.Announcement, error)
}

// DeliveryConfig tunes batching and worker behaviour.
type DeliveryConfig struct {
	DefaultBatchSize int
	DefaultChannels  []models.DeliveryChannel
	Workers          int
	MaxRetries       int
}

// DeliveryService fans announcements out to recipients in batches through
// the channel senders. Batches run on an in-memory job queue; progress and
// failures are persisted so a pause or crash never loses accounting.
type DeliveryService struct {
	repo          deliveryStore
	announcements deliveryAnnouncementGateway
	targeting     audienceResolver
	senders       notifier.Registry
	queue         *jobs.Queue
	validator     *validator.Validate
	logger        *zap.Logger
	cfg           DeliveryConfig
}

type batchJob struct {
	DeliveryID     string
	AnnouncementID string
	Batch          int
}

// NewDeliveryService constructs the service and its batch queue. Call Start
// before publishing anything.
func NewDeliveryService(repo deliveryStore, announcements deliveryAnnouncementGateway, targeting audienceResolver, senders notifier.Registry, cfg DeliveryConfig, validate *validator.Validate, logger *zap.Logger) *DeliveryService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultBatchSize <= 0 {
		cfg.DefaultBatchSize = 100
	}
	if len(cfg.DefaultChannels) == 0 {
		cfg.DefaultChannels = []models.DeliveryChannel{models.ChannelInApp, models.ChannelEmail}
	}
	s := &DeliveryService{
		repo:          repo,
		announcements: announcements,
		targeting:     targeting,
		senders:       senders,
		validator:     validate,
		logger:        logger,
		cfg:           cfg,
	}
	s.queue = jobs.NewQueue("delivery", s.handleBatch, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		Logger:     logger,
	})
	return s
}

// Start launches the batch workers.
func (s *DeliveryService) Start(ctx context.Context) { s.queue.Start(ctx) }

// Stop drains the batch workers.
func (s *DeliveryService) Stop() { s.queue.Stop() }

// StartDefault begins delivery with default channels and batching. Invoked
// by publication; any prior delivery record for the announcement blocks it.
func (s *DeliveryService) StartDefault(ctx context.Context, announcement *models.Announcement) error {
	_, err := s.begin(ctx, announcement, s.cfg.DefaultChannels, models.DeliveryStrategyBatched, s.cfg.DefaultBatchSize)
	return err
}

// StartManual begins delivery with caller-chosen channels and strategy.
func (s *DeliveryService) StartManual(ctx context.Context, announcementID string, req dto.StartDeliveryRequest, actor *models.JWTClaims) (*models.DeliveryStatus, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	announcement, err := s.announcements.GetByID(ctx, announcementID)
	if err != nil {
		return nil, err
	}
	if err := checkHostelScope(actor, announcement.HostelID); err != nil {
		return nil, err
	}
	if announcement.Status != models.AnnouncementStatusPublished {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "only published announcements can be delivered")
	}

	channels := make([]models.DeliveryChannel, 0, len(req.Channels))
	seen := make(map[models.DeliveryChannel]bool, len(req.Channels))
	for _, ch := range req.Channels {
		if !seen[ch] {
			seen[ch] = true
			channels = append(channels, ch)
		}
	}
	strategy := models.DeliveryStrategyBatched
	if req.Strategy != "" {
		strategy = req.Strategy
	}
	batchSize := s.cfg.DefaultBatchSize
	if req.BatchSize != nil {
		batchSize = *req.BatchSize
	}
	return s.begin(ctx, announcement, channels, strategy, batchSize)
}

func (s *DeliveryService) begin(ctx context.Context, announcement *models.Announcement, channels []models.DeliveryChannel, strategy models.DeliveryStrategy, batchSize int) (*models.DeliveryStatus, error) {
	if existing, err := s.repo.GetByAnnouncement(ctx, announcement.ID); err == nil && existing != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "delivery already started for this announcement")
	} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check delivery status")
	}

	recipients, err := s.targeting.Resolve(ctx, announcement)
	if err != nil {
		return nil, err
	}
	if strategy == models.DeliveryStrategyImmediate {
		batchSize = len(recipients)
		if batchSize == 0 {
			batchSize = 1
		}
	}
	totalBatches := (len(recipients) + batchSize - 1) / batchSize
	if totalBatches == 0 {
		totalBatches = 1
	}

	status := &models.DeliveryStatus{
		AnnouncementID:  announcement.ID,
		State:           models.DeliveryStatePending,
		Strategy:        strategy,
		BatchSize:       &batchSize,
		TotalBatches:    totalBatches,
		TotalRecipients: len(recipients),
		MaxRetries:      s.cfg.MaxRetries,
	}
	if err := s.repo.Create(ctx, status, channels); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create delivery status")
	}

	if len(recipients) == 0 {
		if err := s.repo.UpdateState(ctx, status.ID, []models.DeliveryState{models.DeliveryStatePending}, models.DeliveryStateCompleted); err != nil && !errors.Is(err, sql.ErrNoRows) {
			s.logger.Error("completing empty delivery failed", zap.String("delivery_id", status.ID), zap.Error(err))
		}
		status.State = models.DeliveryStateCompleted
		return status, nil
	}

	if err := s.repo.UpdateState(ctx, status.ID, []models.DeliveryState{models.DeliveryStatePending}, models.DeliveryStateProcessing); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to start delivery")
	}
	status.State = models.DeliveryStateProcessing
	s.enqueueBatch(status.ID, announcement.ID, 0)
	return status, nil
}

func (s *DeliveryService) enqueueBatch(deliveryID, announcementID string, batch int) {
	err := s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    "delivery.batch",
		Payload: batchJob{DeliveryID: deliveryID, AnnouncementID: announcementID, Batch: batch},
	})
	if err != nil {
		s.logger.Error("enqueueing delivery batch failed",
			zap.String("delivery_id", deliveryID), zap.Int("batch", batch), zap.Error(err))
	}
}

func (s *DeliveryService) handleBatch(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(batchJob)
	if !ok {
		return fmt.Errorf("unexpected payload type %T", job.Payload)
	}

	status, err := s.repo.GetByAnnouncement(ctx, payload.AnnouncementID)
	if err != nil {
		return fmt.Errorf("loading delivery %s: %w", payload.DeliveryID, err)
	}
	// A pause or cancel between batches simply stops the chain; resume
	// re-enqueues from the stored batch cursor.
	if status.State != models.DeliveryStateProcessing {
		s.logger.Info("delivery batch skipped",
			zap.String("delivery_id", status.ID),
			zap.String("state", string(status.State)))
		return nil
	}

	announcement, err := s.announcements.GetByID(ctx, payload.AnnouncementID)
	if err != nil {
		return err
	}
	recipients, err := s.targeting.Resolve(ctx, announcement)
	if err != nil {
		return err
	}

	batchSize := s.cfg.DefaultBatchSize
	if status.BatchSize != nil && *status.BatchSize > 0 {
		batchSize = *status.BatchSize
	}
	start := payload.Batch * batchSize
	if start >= len(recipients) {
		return s.complete(ctx, status)
	}
	end := start + batchSize
	if end > len(recipients) {
		end = len(recipients)
	}

	msg := notifier.Message{
		AnnouncementID: announcement.ID,
		Title:          announcement.Title,
		Content:        announcement.Content,
		Category:       announcement.Category,
		Priority:       announcement.Priority,
		IsUrgent:       announcement.IsUrgent,
	}
	deltas := s.sendBatch(ctx, status, msg, recipients[start:end])

	if err := s.repo.ApplyChannelDeltas(ctx, status.ID, deltas); err != nil {
		s.logger.Error("recording channel deltas failed",
			zap.String("delivery_id", status.ID), zap.Error(err))
	}

	next := payload.Batch + 1
	if err := s.repo.AdvanceBatch(ctx, status.ID, next, next); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("advancing batch: %w", err)
	}
	if next*batchSize >= len(recipients) {
		return s.complete(ctx, status)
	}
	s.enqueueBatch(status.ID, announcement.ID, next)
	return nil
}

func (s *DeliveryService) sendBatch(ctx context.Context, status *models.DeliveryStatus, msg notifier.Message, recipients []models.Recipient) []repository.ChannelDelta {
	byChannel := make(map[models.DeliveryChannel]*repository.ChannelDelta, len(status.Channels))
	deltas := make([]repository.ChannelDelta, 0, len(status.Channels))
	for _, ch := range status.Channels {
		deltas = append(deltas, repository.ChannelDelta{Channel: ch.Channel})
		byChannel[ch.Channel] = &deltas[len(deltas)-1]
	}

	for _, recipient := range recipients {
		for channel, delta := range byChannel {
			sender, ok := s.senders[channel]
			if !ok {
				continue
			}
			delta.Sent++
			if err := sender.Send(ctx, msg, recipient); err != nil {
				delta.Failed++
				s.recordFailure(ctx, status, recipient.StudentID, channel, err)
				continue
			}
			delta.Delivered++
		}
	}
	return deltas
}

func (s *DeliveryService) recordFailure(ctx context.Context, status *models.DeliveryStatus, studentID string, channel models.DeliveryChannel, sendErr error) {
	failure := &models.FailedDelivery{
		DeliveryID:     status.ID,
		AnnouncementID: status.AnnouncementID,
		StudentID:      studentID,
		Channel:        channel,
		Reason:         sendErr.Error(),
	}
	if err := s.repo.RecordFailure(ctx, failure); err != nil {
		s.logger.Error("recording delivery failure lost",
			zap.String("delivery_id", status.ID),
			zap.String("student_id", studentID),
			zap.Error(err))
	}
}

func (s *DeliveryService) complete(ctx context.Context, status *models.DeliveryStatus) error {
	from := []models.DeliveryState{models.DeliveryStateProcessing}
	if err := s.repo.UpdateState(ctx, status.ID, from, models.DeliveryStateCompleted); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("completing delivery: %w", err)
	}
	s.logger.Info("delivery completed",
		zap.String("delivery_id", status.ID),
		zap.String("announcement_id", status.AnnouncementID),
		zap.Int("recipients", status.TotalRecipients))
	return nil
}

// Pause halts batch processing. Queued batches observe the paused state and
// drop out.
func (s *DeliveryService) Pause(ctx context.Context, announcementID string, req dto.PauseDeliveryRequest, actor *models.JWTClaims) (*models.DeliveryStatus, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if req.AutoResume && req.ResumeAfterMinutes == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "auto-resume needs a resume delay in minutes")
	}
	var autoResumeAt *time.Time
	if req.AutoResume {
		at := time.Now().UTC().Add(time.Duration(*req.ResumeAfterMinutes) * time.Minute)
		autoResumeAt = &at
	}
	status, err := s.loadForActor(ctx, announcementID, actor)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Pause(ctx, status.ID, req.Reason, autoResumeAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "delivery is not pausable in its current state")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to pause delivery")
	}
	paused, err := s.repo.GetByAnnouncement(ctx, announcementID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load delivery status")
	}
	return paused, nil
}

// Resume continues a paused delivery from its batch cursor.
func (s *DeliveryService) Resume(ctx context.Context, announcementID string, req dto.ResumeDeliveryRequest, actor *models.JWTClaims) (*models.DeliveryStatus, error) {
	status, err := s.loadForActor(ctx, announcementID, actor)
	if err != nil {
		return nil, err
	}
	if status.State != models.DeliveryStatePaused {
		return nil, appErrors.Clone(appErrors.ErrConflict, "delivery is not paused")
	}
	if err := s.repo.Resume(ctx, status.ID, req.RestartCurrentBatch); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "delivery is not paused")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resume delivery")
	}
	resumed, err := s.repo.GetByAnnouncement(ctx, announcementID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load delivery status")
	}
	s.enqueueBatch(resumed.ID, announcementID, resumed.CurrentBatch)
	return resumed, nil
}

// Cancel aborts a delivery permanently.
func (s *DeliveryService) Cancel(ctx context.Context, announcementID string, actor *models.JWTClaims) error {
	status, err := s.loadForActor(ctx, announcementID, actor)
	if err != nil {
		return err
	}
	from := []models.DeliveryState{models.DeliveryStatePending, models.DeliveryStateProcessing, models.DeliveryStatePaused}
	if err := s.repo.UpdateState(ctx, status.ID, from, models.DeliveryStateCancelled); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrConflict, "delivery already finished")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel delivery")
	}
	return nil
}

// Report returns progress plus a bounded failure sample.
func (s *DeliveryService) Report(ctx context.Context, announcementID string, actor *models.JWTClaims) (*models.DeliveryReport, error) {
	status, err := s.loadForActor(ctx, announcementID, actor)
	if err != nil {
		return nil, err
	}
	const sampleSize = 100
	failures, total, err := s.repo.ListFailures(ctx, repository.FailureFilter{
		AnnouncementID: announcementID,
		UnresolvedOnly: true,
		Limit:          sampleSize,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list failures")
	}
	return &models.DeliveryReport{
		Status:        *status,
		DeliveryRate:  status.DeliveryRate(),
		Failures:      failures,
		TotalFailures: total,
		HasMore:       total > len(failures),
	}, nil
}

// RetryFailed re-sends unresolved failures, optionally narrowed to specific
// students or channels. A delay defers the run to a background timer.
func (s *DeliveryService) RetryFailed(ctx context.Context, announcementID string, req dto.RetryFailedRequest, actor *models.JWTClaims) (*models.RetrySummary, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	status, err := s.loadForActor(ctx, announcementID, actor)
	if err != nil {
		return nil, err
	}
	announcement, err := s.announcements.GetByID(ctx, announcementID)
	if err != nil {
		return nil, err
	}

	failures, _, err := s.repo.ListFailures(ctx, repository.FailureFilter{
		AnnouncementID: announcementID,
		StudentIDs:     dedupeStrings(req.StudentIDs),
		Channels:       req.Channels,
		UnresolvedOnly: true,
		Limit:          1000,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list failures")
	}

	recipients, err := s.targeting.Resolve(ctx, announcement)
	if err != nil {
		return nil, err
	}
	byStudent := make(map[string]models.Recipient, len(recipients))
	for _, r := range recipients {
		byStudent[r.StudentID] = r
	}

	msg := notifier.Message{
		AnnouncementID: announcement.ID,
		Title:          announcement.Title,
		Content:        announcement.Content,
		Category:       announcement.Category,
		Priority:       announcement.Priority,
		IsUrgent:       announcement.IsUrgent,
	}

	retryLimit := status.MaxRetries
	if req.MaxRetryAttempts != nil {
		retryLimit = *req.MaxRetryAttempts
	}

	if req.DelayMinutes != nil && *req.DelayMinutes > 0 {
		delay := time.Duration(*req.DelayMinutes) * time.Minute
		runAt := time.Now().UTC().Add(delay)
		time.AfterFunc(delay, func() {
			deferred := s.performRetry(context.Background(), status, msg, failures, byStudent, retryLimit, req.FallbackChannel)
			s.logger.Info("deferred retry finished",
				zap.String("delivery_id", status.ID),
				zap.Int("succeeded", deferred.SuccessCount),
				zap.Int("failed", deferred.FailureCount))
		})
		return &models.RetrySummary{Attempted: len(failures), Scheduled: true, RunAt: &runAt}, nil
	}

	return s.performRetry(ctx, status, msg, failures, byStudent, retryLimit, req.FallbackChannel), nil
}

// performRetry re-sends each failure once. A fallback channel replaces the
// failed channel; counter deltas then move the failure off the original
// channel and the delivery onto the fallback.
func (s *DeliveryService) performRetry(ctx context.Context, status *models.DeliveryStatus, msg notifier.Message, failures []models.FailedDelivery, byStudent map[string]models.Recipient, retryLimit int, fallback *models.DeliveryChannel) *models.RetrySummary {
	summary := &models.RetrySummary{Attempted: len(failures)}
	record := func(failure models.FailedDelivery, channel models.DeliveryChannel, success bool, message string) {
		if success {
			summary.SuccessCount++
		} else {
			summary.FailureCount++
		}
		summary.Outcomes = append(summary.Outcomes, models.RetryOutcome{
			FailureID: failure.ID,
			StudentID: failure.StudentID,
			Channel:   channel,
			Success:   success,
			Error:     message,
		})
	}

	deltaIndex := make(map[models.DeliveryChannel]*repository.ChannelDelta)
	bump := func(channel models.DeliveryChannel) *repository.ChannelDelta {
		delta, ok := deltaIndex[channel]
		if !ok {
			delta = &repository.ChannelDelta{Channel: channel}
			deltaIndex[channel] = delta
		}
		return delta
	}

	for _, failure := range failures {
		channel := failure.Channel
		if fallback != nil {
			channel = *fallback
		}
		if failure.RetryCount >= retryLimit {
			record(failure, channel, false, "retry limit reached")
			continue
		}
		sender, ok := s.senders[channel]
		if !ok {
			record(failure, channel, false, fmt.Sprintf("no sender for channel %s", channel))
			continue
		}
		recipient, ok := byStudent[failure.StudentID]
		if !ok {
			// Student left the audience since the original send.
			if err := s.repo.MarkFailureRetried(ctx, failure.ID, true); err != nil {
				s.logger.Error("resolving stale failure failed", zap.String("failure_id", failure.ID), zap.Error(err))
			}
			record(failure, channel, true, "")
			continue
		}

		sendErr := sender.Send(ctx, msg, recipient)
		resolved := sendErr == nil
		if err := s.repo.MarkFailureRetried(ctx, failure.ID, resolved); err != nil {
			s.logger.Error("updating failure after retry failed", zap.String("failure_id", failure.ID), zap.Error(err))
		}
		if resolved {
			bump(failure.Channel).Failed--
			bump(channel).Delivered++
			record(failure, channel, true, "")
		} else {
			record(failure, channel, false, sendErr.Error())
		}
	}
	if len(deltaIndex) > 0 {
		deltas := make([]repository.ChannelDelta, 0, len(deltaIndex))
		for _, delta := range deltaIndex {
			deltas = append(deltas, *delta)
		}
		if err := s.repo.ApplyChannelDeltas(ctx, status.ID, deltas); err != nil {
			s.logger.Error("recording retry deltas failed", zap.String("delivery_id", status.ID), zap.Error(err))
		}
	}
	return summary
}

func dedupeStrings(values []string) []string {
	if len(values) < 2 {
		return values
	}
	seen := make(map[string]struct{}, len(values))
	out := values[:0]
	for _, v := range values {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// ResumeAutoPaused restarts paused deliveries whose auto-resume time has
// passed. Called by the scheduler tick.
func (s *DeliveryService) ResumeAutoPaused(ctx context.Context) (int, error) {
	due, err := s.repo.ListAutoResumable(ctx, time.Now().UTC())
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list auto-resumable deliveries")
	}
	resumed := 0
	for i := range due {
		if err := s.repo.Resume(ctx, due[i].ID, false); err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				s.logger.Error("auto-resume failed", zap.String("delivery_id", due[i].ID), zap.Error(err))
			}
			continue
		}
		s.enqueueBatch(due[i].ID, due[i].AnnouncementID, due[i].CurrentBatch)
		resumed++
	}
	return resumed, nil
}

func (s *DeliveryService) loadForActor(ctx context.Context, announcementID string, actor *models.JWTClaims) (*models.DeliveryStatus, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	announcement, err := s.announcements.GetByID(ctx, announcementID)
	if err != nil {
		return nil, err
	}
	if err := checkHostelScope(actor, announcement.HostelID); err != nil {
		return nil, err
	}
	status, err := s.repo.GetByAnnouncement(ctx, announcementID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no delivery started for this announcement")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load delivery status")
	}
	return status, nil
}
