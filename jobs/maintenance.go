package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/newsdesk/newsdesk/internal/contacts"
	jobmetrics "github.com/newsdesk/newsdesk/internal/jobs"
)

// ArchiveReadPayload tunes the contact archiving run.
type ArchiveReadPayload struct {
	OlderThanDays int `json:"older_than_days"`
}

// NewContactsArchiveReadTask builds the periodic archiving task.
func NewContactsArchiveReadTask(olderThanDays int) (*asynq.Task, error) {
	data, err := json.Marshal(ArchiveReadPayload{OlderThanDays: olderThanDays})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskContactsArchiveRead, data), nil
}

// NewNewsletterPurgeTokensTask builds the periodic token purge task.
func NewNewsletterPurgeTokensTask() *asynq.Task {
	return asynq.NewTask(TaskNewsletterPurgeTokens, nil)
}

// ContactArchiver is the slice of the contacts service used by the worker.
type ContactArchiver interface {
	ArchiveRead(ctx context.Context, olderThan time.Duration) (contacts.Affected, error)
}

// TokenPurger is the slice of the newsletter service used by the worker.
type TokenPurger interface {
	PurgeExpiredTokens(ctx context.Context) (int64, error)
}

// ContactsArchiveJob archives read contact messages.
type ContactsArchiveJob struct {
	Contacts ContactArchiver
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// NewContactsArchiveJob wires dependencies for the archiving handler.
func NewContactsArchiveJob(svc ContactArchiver, logger *slog.Logger, metrics *jobmetrics.Metrics) *ContactsArchiveJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &ContactsArchiveJob{Contacts: svc, Logger: logger, Metrics: metrics}
}

// Handle processes TaskContactsArchiveRead tasks.
func (j *ContactsArchiveJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Contacts == nil {
		return errors.New("contacts archive: handler not configured")
	}
	var payload ArchiveReadPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	tracker := j.Metrics.Track(TaskContactsArchiveRead)
	out, err := j.Contacts.ArchiveRead(ctx, time.Duration(payload.OlderThanDays)*24*time.Hour)
	if err != nil {
		j.Logger.Error("archive read contacts", slog.Any("error", err))
		return tracker.End(err)
	}
	j.Metrics.AddProcessed(TaskContactsArchiveRead, out.Affected)
	j.Logger.Info("contacts archive finished", slog.Int64("affected", out.Affected))
	return tracker.End(nil)
}

// NewsletterPurgeJob clears expired confirmation tokens.
type NewsletterPurgeJob struct {
	Newsletter TokenPurger
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
}

// NewNewsletterPurgeJob wires dependencies for the purge handler.
func NewNewsletterPurgeJob(svc TokenPurger, logger *slog.Logger, metrics *jobmetrics.Metrics) *NewsletterPurgeJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &NewsletterPurgeJob{Newsletter: svc, Logger: logger, Metrics: metrics}
}

// Handle processes TaskNewsletterPurgeTokens tasks.
func (j *NewsletterPurgeJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Newsletter == nil {
		return errors.New("newsletter purge: handler not configured")
	}
	tracker := j.Metrics.Track(TaskNewsletterPurgeTokens)
	n, err := j.Newsletter.PurgeExpiredTokens(ctx)
	if err != nil {
		j.Logger.Error("purge newsletter tokens", slog.Any("error", err))
		return tracker.End(err)
	}
	j.Metrics.AddProcessed(TaskNewsletterPurgeTokens, n)
	return tracker.End(nil)
}

// DefaultKeyRetention is how long idempotency keys are kept.
const DefaultKeyRetention = 48 * time.Hour

// NewIdempotencyCleanupTask builds the periodic key cleanup task.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskIdempotencyCleanup, nil)
}

// KeyCleaner removes idempotency keys older than a retention window.
type KeyCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// IdempotencyCleanupJob drops idempotency keys past Retention.
type IdempotencyCleanupJob struct {
	Keys      KeyCleaner
	Retention time.Duration
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewIdempotencyCleanupJob wires dependencies for the cleanup handler.
func NewIdempotencyCleanupJob(keys KeyCleaner, logger *slog.Logger, metrics *jobmetrics.Metrics) *IdempotencyCleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &IdempotencyCleanupJob{Keys: keys, Retention: DefaultKeyRetention, Logger: logger, Metrics: metrics}
}

// Handle processes TaskIdempotencyCleanup tasks.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Keys == nil {
		return errors.New("idempotency cleanup: handler not configured")
	}
	retention := j.Retention
	if retention <= 0 {
		retention = DefaultKeyRetention
	}
	tracker := j.Metrics.Track(TaskIdempotencyCleanup)
	n, err := j.Keys.Cleanup(ctx, retention)
	if err != nil {
		j.Logger.Error("cleanup idempotency keys", slog.Any("error", err))
		return tracker.End(err)
	}
	j.Metrics.AddProcessed(TaskIdempotencyCleanup, n)
	return tracker.End(nil)
}
