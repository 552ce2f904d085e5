package pipeline

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/serenitylab/meditation-pipeline/internal/fault"
	"github.com/serenitylab/meditation-pipeline/internal/records"
	"github.com/serenitylab/meditation-pipeline/internal/telemetry"
	"github.com/serenitylab/meditation-pipeline/providers/video/tavus"
)

// StatusBackend reads the current state of a render job.
type StatusBackend interface {
	Status(ctx context.Context, videoID string) (tavus.Job, error)
}

// PollConfig bounds the polling loop.
type PollConfig struct {
	MaxAttempts   int
	Interval      time.Duration
	BackoffBase   time.Duration
	BackoffCap    time.Duration
	BackoffFactor float64
}

func (c PollConfig) withDefaults() PollConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 60
	}
	if c.Interval <= 0 {
		c.Interval = 10 * time.Second
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 10 * time.Second
	}
	if c.BackoffCap <= 0 {
		c.BackoffCap = 30 * time.Second
	}
	if c.BackoffFactor <= 1 {
		c.BackoffFactor = 1.2
	}
	return c
}

// PollResult is the terminal outcome of one polling loop.
type PollResult struct {
	Job      tavus.Job
	Attempts int
}

// Poller tracks a render job until the backend reports a terminal status
// or the attempt budget runs out.
type Poller struct {
	backend StatusBackend
	cfg     PollConfig
	records *records.BestEffort
	emitter telemetry.Emitter
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewPoller wires the polling stage.
func NewPoller(backend StatusBackend, cfg PollConfig, store *records.BestEffort, emitter telemetry.Emitter) *Poller {
	if emitter == nil {
		emitter = telemetry.Noop{}
	}
	return &Poller{
		backend: backend,
		cfg:     cfg.withDefaults(),
		records: store,
		emitter: emitter,
		sleep:   sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// backoffDelay grows geometrically per attempt and is capped.
func (p *Poller) backoffDelay(attempt int) time.Duration {
	delay := time.Duration(float64(p.cfg.BackoffBase) * math.Pow(p.cfg.BackoffFactor, float64(attempt-1)))
	if delay > p.cfg.BackoffCap {
		delay = p.cfg.BackoffCap
	}
	return delay
}

// PollUntilDone waits for the job to finish. A job submitted already
// terminal resolves immediately without any status call. onUpdate, when
// non-nil, observes every fetched status including the terminal one.
func (p *Poller) PollUntilDone(ctx context.Context, job tavus.Job, onUpdate func(tavus.Job)) (PollResult, error) {
	correlation := telemetry.Correlation{JobID: job.VideoID, Stage: "poll"}

	if job.Status.Terminal() {
		return p.finish(ctx, job, 0, correlation)
	}

	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		current, err := p.backend.Status(ctx, job.VideoID)
		if err != nil {
			if !fault.Retryable(fault.KindOf(err)) {
				p.failRecordByJob(ctx, job.VideoID, err.Error())
				return PollResult{Attempts: attempt}, err
			}
			delay := p.backoffDelay(attempt)
			p.emitter.EmitLog("warn",
				fmt.Sprintf("status check failed (attempt %d/%d), backing off %s: %v", attempt, p.cfg.MaxAttempts, delay, err),
				nil, correlation)
			if sleepErr := p.sleep(ctx, delay); sleepErr != nil {
				return PollResult{Attempts: attempt}, fault.FromNetwork("tavus", sleepErr)
			}
			continue
		}

		if onUpdate != nil {
			onUpdate(current)
		}
		if current.Status.Terminal() {
			return p.finish(ctx, current, attempt, correlation)
		}
		if sleepErr := p.sleep(ctx, p.cfg.Interval); sleepErr != nil {
			return PollResult{Attempts: attempt}, fault.FromNetwork("tavus", sleepErr)
		}
	}

	p.failRecordByJob(ctx, job.VideoID, "render timed out")
	return PollResult{Job: job, Attempts: p.cfg.MaxAttempts},
		fault.New(fault.KindTimeout, "tavus",
			fmt.Sprintf("video %s not ready after %d attempts", job.VideoID, p.cfg.MaxAttempts))
}

func (p *Poller) finish(ctx context.Context, job tavus.Job, attempts int, correlation telemetry.Correlation) (PollResult, error) {
	p.emitter.EmitMetric(telemetry.MetricPollAttempts, float64(attempts), "count", nil, correlation)
	result := PollResult{Job: job, Attempts: attempts}

	if job.Status == tavus.StatusFailed {
		reason := job.FailureReason
		if reason == "" {
			reason = "render failed"
		}
		p.failRecordByJob(ctx, job.VideoID, reason)
		return result, fault.New(fault.KindUpstream, "tavus", reason)
	}

	if p.records != nil {
		if rec, ok := p.records.GetByJobID(ctx, job.VideoID); ok {
			p.records.Update(ctx, rec.ID, records.Patch{
				Status:          records.StatusPtr(records.StatusCompleted),
				ArtifactURL:     records.StringPtr(job.ResultURL()),
				DurationSeconds: records.IntPtr(int(job.DurationSeconds + 0.5)),
			})
		}
	}
	return result, nil
}

func (p *Poller) failRecordByJob(ctx context.Context, jobID, reason string) {
	if p.records == nil || jobID == "" {
		return
	}
	if rec, ok := p.records.GetByJobID(ctx, jobID); ok {
		p.records.Update(ctx, rec.ID, records.Patch{
			Status:   records.StatusPtr(records.StatusFailed),
			Metadata: map[string]any{"failure_reason": reason},
		})
	}
}
