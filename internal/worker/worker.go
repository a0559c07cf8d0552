// Package worker implements the bounded-concurrency pool that claims
// jobs from the registry and drives each through the pipeline runner.
package worker

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kushagrasharma/censorly/internal/asr"
	"github.com/kushagrasharma/censorly/internal/jobs"
	"github.com/kushagrasharma/censorly/internal/metrics"
	"github.com/kushagrasharma/censorly/internal/pipeline"
	"github.com/kushagrasharma/censorly/internal/quota"
	"github.com/kushagrasharma/censorly/internal/registry"
)

// cancelRegistry maps a running job's ID to the context.CancelFunc that
// terminates its pipeline run, so an out-of-band cancel request
// (POST /jobs/{id}/cancel) can interrupt an in-flight ffmpeg/ASR subprocess
// instead of waiting for the job to run to completion obliviously.
type cancelRegistry struct {
	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func newCancelRegistry() *cancelRegistry {
	return &cancelRegistry{cancels: make(map[string]context.CancelFunc)}
}

func (r *cancelRegistry) register(jobID string, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancels[jobID] = cancel
}

func (r *cancelRegistry) unregister(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cancels, jobID)
}

// Cancel triggers the cancel func registered for jobID, if that job is
// currently running on this pool. It reports whether a running job was
// found.
func (r *cancelRegistry) Cancel(jobID string) bool {
	r.mu.Lock()
	cancel, ok := r.cancels[jobID]
	r.mu.Unlock()
	if !ok {
		return false
	}
	cancel()
	return true
}

// Config tunes the pool, per spec.md §4.10's defaults.
type Config struct {
	MaxConcurrentJobs int
	JobTimeout        time.Duration
	PollInterval      time.Duration
	WorkspaceRoot     string
	WorkerID          string
}

func (c Config) withDefaults() Config {
	if c.MaxConcurrentJobs <= 0 {
		c.MaxConcurrentJobs = 3
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = time.Hour
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.WorkspaceRoot == "" {
		c.WorkspaceRoot = os.TempDir()
	}
	if c.WorkerID == "" {
		c.WorkerID = "worker-" + time.Now().UTC().Format("150405")
	}
	return c
}

// Pool is the bounded-concurrency job executor.
type Pool struct {
	cfg     Config
	store   registry.Store
	runner  *pipeline.Runner
	quota   quota.Provider
	sem     chan struct{}
	cancels *cancelRegistry
}

// New creates a Pool.
func New(cfg Config, store registry.Store, runner *pipeline.Runner, q quota.Provider) *Pool {
	cfg = cfg.withDefaults()
	return &Pool{
		cfg:     cfg,
		store:   store,
		runner:  runner,
		quota:   q,
		sem:     make(chan struct{}, cfg.MaxConcurrentJobs),
		cancels: newCancelRegistry(),
	}
}

// Cancel interrupts the job's active pipeline run if it is currently
// claimed by this pool, returning false if the job isn't running here
// (already finished, or claimed by a different pool instance/process).
// Callers should still call the registry's Cancel to flip the job's row
// to cancelled regardless of this result.
func (p *Pool) Cancel(jobID string) bool {
	return p.cancels.Cancel(jobID)
}

// Run blocks, polling and dispatching jobs until ctx is cancelled. It
// fans claimed jobs out across an errgroup bounded by the semaphore
// channel, so at most MaxConcurrentJobs run at once regardless of how
// fast jobs are claimed.
func (p *Pool) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for {
		select {
		case <-ctx.Done():
			return g.Wait()
		case p.sem <- struct{}{}:
		}

		job, err := p.store.ClaimNext(ctx, p.cfg.WorkerID)
		if err != nil {
			<-p.sem
			slog.Error("claim_next failed", "error", err)
			p.sleepPoll(ctx)
			continue
		}
		if job == nil {
			<-p.sem
			p.sleepPoll(ctx)
			continue
		}

		metrics.JobsClaimedTotal.Inc()
		g.Go(func() error {
			defer func() { <-p.sem }()
			p.runOne(ctx, job)
			return nil
		})
	}
}

func (p *Pool) sleepPoll(ctx context.Context) {
	jitter := time.Duration(rand.Int64N(int64(p.cfg.PollInterval)))
	select {
	case <-ctx.Done():
	case <-time.After(p.cfg.PollInterval/2 + jitter/2):
	}
}

// runOne enforces the quota precheck, per-job timeout, and workspace
// cleanup guarantee around one claimed job.
func (p *Pool) runOne(ctx context.Context, job *jobs.Job) {
	metrics.JobsActive.Inc()
	defer metrics.JobsActive.Dec()

	if ok, err := p.checkQuota(ctx, job); !ok {
		detail := "monthly quota exhausted"
		if err != nil {
			detail = err.Error()
		}
		p.fail(ctx, job, jobs.ErrQuotaExceeded, detail)
		metrics.JobsCompletedTotal.WithLabelValues("failed").Inc()
		return
	}

	workDir, err := os.MkdirTemp(p.cfg.WorkspaceRoot, "job-"+job.ID+"-")
	if err != nil {
		p.fail(ctx, job, jobs.ErrInternal, "create workspace: "+err.Error())
		metrics.JobsCompletedTotal.WithLabelValues("failed").Inc()
		return
	}
	defer os.RemoveAll(workDir)

	// ASR quality is resolved here from the caller's subscription plan,
	// never accepted from the submit request: the detector and the
	// client are both unaware of plan tiers.
	job.Config.ASRQuality = string(p.resolveASRQuality(ctx, job.UserID))

	runCtx, cancel := context.WithTimeout(ctx, p.cfg.JobTimeout)
	defer cancel()

	p.cancels.register(job.ID, cancel)
	defer p.cancels.unregister(job.ID)

	result, err := p.runner.Run(runCtx, job, workDir, func(ev pipeline.Event) {
		if uerr := p.store.UpdateProgress(ctx, job.ID, ev.Progress); uerr != nil {
			slog.Warn("update_progress failed", "job_id", job.ID, "error", uerr)
		}
	})

	if err != nil {
		kind := jobs.KindOf(err)
		if runCtx.Err() == context.DeadlineExceeded {
			kind = jobs.ErrTimeout
		} else if runCtx.Err() == context.Canceled {
			kind = jobs.ErrCancelled
		} else if ctx.Err() != nil {
			kind = jobs.ErrCancelled
		}
		p.fail(ctx, job, kind, err.Error())
		metrics.JobsCompletedTotal.WithLabelValues(outcomeFor(kind)).Inc()
		return
	}

	if cerr := p.store.Complete(ctx, job.ID, result.OutputObjectRef, result.CensoredIntervalCount, result.TotalCensoredDurationS, result.ProcessingTimeS); cerr != nil {
		slog.Error("complete failed", "job_id", job.ID, "error", cerr)
	}
	if p.quota != nil {
		if rerr := p.quota.RecordUsage(ctx, job.UserID, job.InputDurationS/60); rerr != nil {
			slog.Warn("record_usage failed", "job_id", job.ID, "error", rerr)
		}
	}
	metrics.JobsCompletedTotal.WithLabelValues("completed").Inc()
}

// resolveASRQuality picks the ASR quality tier to request for job, from
// the user's subscription plan (free->base, basic->medium, pro->large,
// enterprise->large). With no quota provider configured, every user
// resolves to the free plan's quality.
func (p *Pool) resolveASRQuality(ctx context.Context, userID string) asr.Quality {
	if p.quota == nil {
		return asr.QualityForTier("")
	}
	limits, err := p.quota.PlanLimits(ctx, userID)
	if err != nil {
		slog.Warn("plan_limits failed, defaulting asr quality to free tier", "user_id", userID, "error", err)
		return asr.QualityForTier("")
	}
	return asr.QualityForTier(limits.PlanTier)
}

func (p *Pool) checkQuota(ctx context.Context, job *jobs.Job) (bool, error) {
	if p.quota == nil {
		return true, nil
	}
	limits, err := p.quota.PlanLimits(ctx, job.UserID)
	if err != nil {
		return false, err
	}
	neededMinutes := job.InputDurationS / 60
	return limits.Remaining() >= neededMinutes, nil
}

func (p *Pool) fail(ctx context.Context, job *jobs.Job, kind jobs.ErrKind, detail string) {
	if err := p.store.Fail(ctx, job.ID, kind, detail); err != nil {
		slog.Error("fail transition failed", "job_id", job.ID, "error", err)
	}
	metrics.Errors.WithLabelValues("worker", string(kind)).Inc()
}

func outcomeFor(kind jobs.ErrKind) string {
	if kind == jobs.ErrCancelled {
		return "cancelled"
	}
	return "failed"
}
