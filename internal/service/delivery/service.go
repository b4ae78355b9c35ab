// Package delivery converts due notification jobs into sent emails.
//
// Each sweep claims a bounded batch of due jobs, attempts delivery once
// per job and moves every job through the state machine:
//
//	pending -> processing -> sent
//	                      -> pending   (retryable failure, backoff applied)
//	                      -> failed    (permanent failure or retries exhausted)
//	                      -> cancelled (recipient no longer notifiable)
//
// Jobs are isolated from each other: one job's failure never aborts the
// rest of the batch.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/bangbuy/notification-service/internal/model"
	"github.com/bangbuy/notification-service/internal/repository/recipient"
	"github.com/bangbuy/notification-service/pkg/email"
)

// DefaultBackoff is the retry delay schedule indexed by completed
// attempts. It grows monotonically and is capped at its last value.
var DefaultBackoff = []time.Duration{
	1 * time.Minute,
	2 * time.Minute,
	5 * time.Minute,
	10 * time.Minute,
	30 * time.Minute,
	60 * time.Minute,
}

const (
	defaultBatchSize   = 20
	defaultMaxAttempts = 5

	// staleClaimAge is how long a job may sit in processing before a sweep
	// assumes its claimer died and releases it back to pending.
	staleClaimAge = 15 * time.Minute
)

// Summary aggregates the outcome of one sweep.
type Summary struct {
	Processed int `json:"processed"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
	Errors    int `json:"errors"`
}

type jobRepository interface {
	ClaimDue(ctx context.Context, limit int) ([]model.NotificationJob, error)
	MarkSent(ctx context.Context, id uuid.UUID) error
	Reschedule(ctx context.Context, id uuid.UUID, nextAttemptAt time.Time) error
	Release(ctx context.Context, id uuid.UUID, nextAttemptAt time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID) error
	Cancel(ctx context.Context, id uuid.UUID) error
	ReleaseStale(ctx context.Context, olderThan time.Duration) (int, error)
	GetStatusByID(ctx context.Context, id uuid.UUID) (model.JobStatus, error)
}

type prefsRepository interface {
	Get(ctx context.Context, userID uuid.UUID) (model.RecipientPrefs, error)
}

type sender interface {
	Send(m email.Message) (string, error)
}

type cache interface {
	SetWithRetry(ctx context.Context, strategy retry.Strategy, key string, value interface{}) error
	GetWithRetry(ctx context.Context, strategy retry.Strategy, key string) (string, error)
}

type Service struct {
	jobs   jobRepository
	prefs  prefsRepository
	sender sender
	cache  cache

	batchSize   int
	maxAttempts int
	schedule    []time.Duration
}

func NewService(jobs jobRepository, prefs prefsRepository, sender sender, cache cache, batchSize, maxAttempts int, schedule []time.Duration) *Service {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	if len(schedule) == 0 {
		schedule = DefaultBackoff
	}

	return &Service{
		jobs:        jobs,
		prefs:       prefs,
		sender:      sender,
		cache:       cache,
		batchSize:   batchSize,
		maxAttempts: maxAttempts,
		schedule:    schedule,
	}
}

// Sweep claims up to the batch cap of due jobs and attempts delivery for
// each. Only a total inability to query the job store returns an error;
// per-job failures are folded into the summary.
func (s *Service) Sweep(ctx context.Context, strategy retry.Strategy) (Summary, error) {
	released, err := s.jobs.ReleaseStale(ctx, staleClaimAge)
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to release stale claims")
	} else if released > 0 {
		zlog.Logger.Warn().Int("count", released).Msg("released stale processing jobs")
	}

	jobs, err := s.jobs.ClaimDue(ctx, s.batchSize)
	if err != nil {
		return Summary{}, fmt.Errorf("claim due jobs: %w", err)
	}

	var sum Summary
	for _, j := range jobs {
		sum.Processed++

		switch s.process(ctx, strategy, j) {
		case outcomeSent:
			sum.Sent++
		case outcomeFailed:
			sum.Failed++
		case outcomeError:
			sum.Errors++
		}
	}

	return sum, nil
}

type outcome int

const (
	outcomeSent outcome = iota
	outcomeFailed
	outcomeRetried
	outcomeSkipped
	outcomeError
)

func (s *Service) process(ctx context.Context, strategy retry.Strategy, j model.NotificationJob) outcome {
	attempt := j.Attempts + 1

	prefs, err := s.prefs.Get(ctx, j.RecipientID)
	if err != nil {
		if errors.Is(err, recipient.ErrPrefsNotFound) {
			return s.cancel(ctx, strategy, j)
		}

		zlog.Logger.Error().Err(err).Str("job_id", j.ID.String()).Msg("failed to get recipient prefs")
		return s.release(ctx, strategy, j)
	}

	if !prefs.Enabled {
		return s.cancel(ctx, strategy, j)
	}

	providerID, err := s.sender.Send(renderDigest(j, prefs.Email))
	if err != nil {
		return s.handleSendFailure(ctx, strategy, j, attempt, err)
	}

	if err := s.jobs.MarkSent(ctx, j.ID); err != nil {
		zlog.Logger.Error().Err(err).Str("job_id", j.ID.String()).Msg("failed to mark job sent")
		return outcomeError
	}

	s.cacheStatus(ctx, strategy, j.ID, model.StatusSent)
	zlog.Logger.Info().
		Str("job_id", j.ID.String()).
		Str("provider_id", providerID).
		Int("attempt", attempt).
		Msg("digest email sent")

	return outcomeSent
}

func (s *Service) handleSendFailure(ctx context.Context, strategy retry.Strategy, j model.NotificationJob, attempt int, err error) outcome {
	var sendErr *email.SendError
	retryable := true
	if errors.As(err, &sendErr) {
		retryable = sendErr.Retryable()
	}

	if !retryable || attempt >= s.maxAttempts {
		if markErr := s.jobs.MarkFailed(ctx, j.ID); markErr != nil {
			zlog.Logger.Error().Err(markErr).Str("job_id", j.ID.String()).Msg("failed to mark job failed")
			return outcomeError
		}

		s.cacheStatus(ctx, strategy, j.ID, model.StatusFailed)
		zlog.Logger.Error().Err(err).
			Str("job_id", j.ID.String()).
			Int("attempt", attempt).
			Bool("permanent", !retryable).
			Msg("job failed permanently")

		return outcomeFailed
	}

	return s.retryLater(ctx, strategy, j, attempt)
}

// retryLater puts the job back to pending with the next attempt gated by
// the backoff schedule.
func (s *Service) retryLater(ctx context.Context, strategy retry.Strategy, j model.NotificationJob, attempt int) outcome {
	next := time.Now().UTC().Add(s.backoff(attempt))
	if err := s.jobs.Reschedule(ctx, j.ID, next); err != nil {
		zlog.Logger.Error().Err(err).Str("job_id", j.ID.String()).Msg("failed to reschedule job")
		return outcomeError
	}

	s.cacheStatus(ctx, strategy, j.ID, model.StatusPending)
	zlog.Logger.Warn().
		Str("job_id", j.ID.String()).
		Int("attempt", attempt).
		Time("next_attempt_at", next).
		Msg("delivery failed, job rescheduled")

	return outcomeRetried
}

// release puts the job back to pending without consuming a delivery
// attempt. No provider call happened, so the attempts counter must not
// move; the job just waits out the first schedule slot.
func (s *Service) release(ctx context.Context, strategy retry.Strategy, j model.NotificationJob) outcome {
	next := time.Now().UTC().Add(s.schedule[0])
	if err := s.jobs.Release(ctx, j.ID, next); err != nil {
		zlog.Logger.Error().Err(err).Str("job_id", j.ID.String()).Msg("failed to release job")
		return outcomeError
	}

	s.cacheStatus(ctx, strategy, j.ID, model.StatusPending)
	zlog.Logger.Warn().
		Str("job_id", j.ID.String()).
		Time("next_attempt_at", next).
		Msg("delivery not attempted, job released")

	return outcomeRetried
}

func (s *Service) cancel(ctx context.Context, strategy retry.Strategy, j model.NotificationJob) outcome {
	if err := s.jobs.Cancel(ctx, j.ID); err != nil {
		zlog.Logger.Error().Err(err).Str("job_id", j.ID.String()).Msg("failed to cancel job")
		return outcomeError
	}

	s.cacheStatus(ctx, strategy, j.ID, model.StatusCancelled)
	zlog.Logger.Info().Str("job_id", j.ID.String()).Msg("recipient not notifiable, job cancelled")

	return outcomeSkipped
}

// backoff returns the delay after the given completed attempt count,
// capped at the schedule's last value.
func (s *Service) backoff(attempt int) time.Duration {
	idx := attempt - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(s.schedule) {
		idx = len(s.schedule) - 1
	}

	return s.schedule[idx]
}

// Status returns the current status of a job, cache-first with a
// fallthrough to the job store on a miss.
func (s *Service) Status(ctx context.Context, strategy retry.Strategy, id uuid.UUID) (model.JobStatus, error) {
	cached, err := s.cache.GetWithRetry(ctx, strategy, id.String())
	if err != nil && !errors.Is(err, redis.Nil) {
		zlog.Logger.Error().Err(err).Str("job_id", id.String()).Msg("failed to get job status from cache")
	}

	if err == nil && cached != "" {
		return model.JobStatus(cached), nil
	}

	status, err := s.jobs.GetStatusByID(ctx, id)
	if err != nil {
		return "", fmt.Errorf("get job status: %w", err)
	}

	s.cacheStatus(ctx, strategy, id, status)

	return status, nil
}

func (s *Service) cacheStatus(ctx context.Context, strategy retry.Strategy, id uuid.UUID, status model.JobStatus) {
	if err := s.cache.SetWithRetry(ctx, strategy, id.String(), string(status)); err != nil {
		zlog.Logger.Error().Err(err).Str("job_id", id.String()).Msg("failed to cache job status")
	}
}
