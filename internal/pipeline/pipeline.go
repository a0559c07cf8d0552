// Package pipeline runs a single job through its deterministic stage
// sequence: audio extraction (C5), transcription (C6), segment mapping
// (C7), and censoring (C8).
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/kushagrasharma/censorly/internal/asr"
	"github.com/kushagrasharma/censorly/internal/detector"
	"github.com/kushagrasharma/censorly/internal/jobs"
	"github.com/kushagrasharma/censorly/internal/media"
	"github.com/kushagrasharma/censorly/internal/metrics"
	"github.com/kushagrasharma/censorly/internal/objectstore"
	"github.com/kushagrasharma/censorly/internal/segment"
	"github.com/kushagrasharma/censorly/internal/trace"
)

// Stage names one point in the job state machine.
type Stage string

const (
	StageInit            Stage = "init"
	StageAudioExtracted  Stage = "audio_extracted"
	StageTranscribed     Stage = "transcribed"
	StageSegmented       Stage = "segmented"
	StageCensored        Stage = "censored"
	StageFinalized       Stage = "finalized"
)

// Config wires the collaborators a Runner needs. One Config is shared
// across all jobs; Run is safe to call concurrently from multiple workers
// provided each call uses its own workDir.
type Config struct {
	Detector    *detector.Detector
	ASRClient   asr.Client
	ObjectStore objectstore.Store
	Tracer      *trace.Tracer

	// MergeGapS overrides the §4.6 interval merge-gap default for every
	// job run by this Runner when set; zero means "use
	// segment.DefaultMapConfig". Padding is a per-job override instead
	// (see jobs.Config.PaddingBeforeS/PaddingAfterS), not process-wide.
	MergeGapS float64
}

// Runner drives one job through C5 → C6 → C7 → C8.
type Runner struct {
	cfg Config
}

// New creates a Runner.
func New(cfg Config) *Runner {
	return &Runner{cfg: cfg}
}

// Event is one progress notification emitted during Run.
type Event struct {
	Stage    Stage
	Progress int
	Message  string
}

// EventCallback receives pipeline progress; onEvent is never called from
// more than one goroutine concurrently for the same Run call.
type EventCallback func(Event)

// Result summarizes a successful run.
type Result struct {
	OutputObjectRef        string
	CensoredIntervalCount  int
	TotalCensoredDurationS float64
	ProcessingTimeS        float64
}

// Run executes the full pipeline for job against a job-scoped workDir,
// which the caller owns (creation and cleanup are the worker pool's
// responsibility — see internal/worker). ctx cancellation is checked
// between every stage and passed into each subprocess-backed stage so
// cancellation kills any in-flight ffmpeg/ASR subprocess immediately.
func (r *Runner) Run(ctx context.Context, job *jobs.Job, workDir string, onEvent EventCallback) (result *Result, err error) {
	runStart := time.Now()
	runID := ""
	if r.cfg.Tracer != nil {
		runID = r.cfg.Tracer.StartRun()
	}
	defer func() {
		r.endRun(runID, runStart, job, result, err)
	}()

	emit := func(stage Stage, progress int, msg string) {
		if onEvent != nil {
			onEvent(Event{Stage: stage, Progress: progress, Message: msg})
		}
	}
	emit(StageInit, 0, "starting")

	srcPath := filepath.Join(workDir, "input"+filepath.Ext(job.InputObjectRef))
	if err := r.fetchInput(ctx, job.InputObjectRef, srcPath, runID); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, jobs.Wrap(jobs.ErrCancelled, "cancelled before audio extraction", err)
	}

	wavPath := filepath.Join(workDir, "audio.wav")
	if err := r.stageExtract(ctx, srcPath, wavPath, runID); err != nil {
		return nil, err
	}
	emit(StageAudioExtracted, 20, "audio extracted")

	if err := ctx.Err(); err != nil {
		return nil, jobs.Wrap(jobs.ErrCancelled, "cancelled before transcription", err)
	}
	transcript, err := r.stageTranscribe(ctx, wavPath, job, runID)
	if err != nil {
		return nil, err
	}
	emit(StageTranscribed, 50, fmt.Sprintf("%d segments transcribed", len(transcript.Segments)))

	if err := ctx.Err(); err != nil {
		return nil, jobs.Wrap(jobs.ErrCancelled, "cancelled before segmentation", err)
	}
	intervals, err := r.stageSegment(ctx, transcript, job, runID)
	if err != nil {
		return nil, err
	}
	emit(StageSegmented, 70, fmt.Sprintf("%d abusive intervals", len(intervals)))

	if err := ctx.Err(); err != nil {
		return nil, jobs.Wrap(jobs.ErrCancelled, "cancelled before censoring", err)
	}
	outPath := filepath.Join(workDir, "output"+filepath.Ext(job.InputObjectRef))
	if err := r.stageCensor(ctx, job, intervals, srcPath, workDir, outPath, runID); err != nil {
		return nil, err
	}
	emit(StageCensored, 90, "censoring applied")

	if err := ctx.Err(); err != nil {
		return nil, jobs.Wrap(jobs.ErrCancelled, "cancelled before finalizing", err)
	}
	outRef, err := r.stageFinalize(ctx, job, outPath, runID)
	if err != nil {
		return nil, err
	}
	emit(StageFinalized, 100, "done")

	var totalCensoredS float64
	for _, iv := range intervals {
		totalCensoredS += iv.EndS - iv.StartS
	}

	metrics.E2EDuration.Observe(time.Since(runStart).Seconds())
	return &Result{
		OutputObjectRef:        outRef,
		CensoredIntervalCount:  len(intervals),
		TotalCensoredDurationS: totalCensoredS,
		ProcessingTimeS:        time.Since(runStart).Seconds(),
	}, nil
}

func (r *Runner) fetchInput(ctx context.Context, ref, dstPath string, runID string) error {
	start := time.Now()
	rc, err := r.cfg.ObjectStore.Get(ctx, ref)
	if err != nil {
		r.traceSpan(runID, "fetch_input", start, ref, "", err)
		return jobs.Wrap(jobs.ErrInputUnreadable, "fetch input object", err)
	}
	defer rc.Close()

	f, err := os.Create(dstPath)
	if err != nil {
		r.traceSpan(runID, "fetch_input", start, ref, "", err)
		return jobs.Wrap(jobs.ErrInternal, "create local input file", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, rc); err != nil {
		r.traceSpan(runID, "fetch_input", start, ref, "", err)
		return jobs.Wrap(jobs.ErrInputUnreadable, "write local input file", err)
	}
	r.traceSpan(runID, "fetch_input", start, ref, dstPath, nil)
	return nil
}

func (r *Runner) stageExtract(ctx context.Context, srcPath, wavPath string, runID string) error {
	start := time.Now()
	err := media.ExtractAudio(ctx, srcPath, wavPath)
	r.traceSpan(runID, "audio_extract", start, srcPath, wavPath, err)
	metrics.StageDuration.WithLabelValues("audio_extract").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.Errors.WithLabelValues("audio_extract", string(jobs.KindOf(err))).Inc()
		return err
	}
	return nil
}

func (r *Runner) stageTranscribe(ctx context.Context, wavPath string, job *jobs.Job, runID string) (*asr.Transcript, error) {
	start := time.Now()
	quality := asr.Quality(job.Config.ASRQuality)
	transcript, err := r.cfg.ASRClient.Transcribe(ctx, wavPath, quality, job.Config.Languages)
	r.traceSpan(runID, "asr", start, wavPath, summarizeTranscript(transcript), err)
	metrics.StageDuration.WithLabelValues("asr").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.Errors.WithLabelValues("asr", string(jobs.KindOf(err))).Inc()
		return nil, jobs.Wrap(jobs.ErrASRFailed, "transcription failed", err)
	}
	return transcript, nil
}

// stageSegment builds this job's own MapConfig and ensemble policy
// override from job.Config — padding and ensemble_policy are per-job,
// not shared across the Runner's concurrent jobs. MergeGapS has no
// per-job override; r.cfg.MergeGapS, when set, applies to every job.
func (r *Runner) stageSegment(ctx context.Context, transcript *asr.Transcript, job *jobs.Job, runID string) ([]segment.Interval, error) {
	start := time.Now()
	cfg := segment.DefaultMapConfig(job.Config.Threshold, job.InputDurationS)
	if r.cfg.MergeGapS > 0 {
		cfg.MergeGapS = r.cfg.MergeGapS
	}
	if job.Config.PaddingBeforeS > 0 {
		cfg.PaddingBeforeS = job.Config.PaddingBeforeS
	}
	if job.Config.PaddingAfterS > 0 {
		cfg.PaddingAfterS = job.Config.PaddingAfterS
	}

	policy := detector.Policy(job.Config.EnsemblePolicy)
	intervals, err := segment.Map(ctx, transcript.Segments, r.cfg.Detector, cfg, policy)
	if err != nil {
		r.traceSpan(runID, "segment", start, fmt.Sprintf("segments=%d", len(transcript.Segments)), "", err)
		metrics.StageDuration.WithLabelValues("segment").Observe(time.Since(start).Seconds())
		if errors.Is(err, segment.ErrMLUnavailable) {
			return nil, jobs.Wrap(jobs.ErrDetectorUnavailable, "ml classifier unavailable under ml_only policy", err)
		}
		return nil, jobs.Wrap(jobs.ErrInternal, "segment mapping failed", err)
	}
	r.traceSpan(runID, "segment", start, fmt.Sprintf("segments=%d", len(transcript.Segments)), fmt.Sprintf("intervals=%d", len(intervals)), nil)
	metrics.StageDuration.WithLabelValues("segment").Observe(time.Since(start).Seconds())
	return intervals, nil
}

func (r *Runner) stageCensor(ctx context.Context, job *jobs.Job, intervals []segment.Interval, srcPath, workDir, outPath string, runID string) error {
	start := time.Now()
	plan := media.CensorPlan{Mode: job.Config.Mode, Intervals: intervals}
	err := media.Censor(ctx, plan, srcPath, filepath.Join(workDir, "censor"), outPath)
	r.traceSpan(runID, "censor", start, fmt.Sprintf("mode=%s intervals=%d", job.Config.Mode, len(intervals)), outPath, err)
	metrics.StageDuration.WithLabelValues("censor").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.Errors.WithLabelValues("censor", string(jobs.KindOf(err))).Inc()
		return err
	}
	metrics.CensoredIntervalsTotal.Add(float64(len(intervals)))
	return nil
}

func (r *Runner) stageFinalize(ctx context.Context, job *jobs.Job, outPath string, runID string) (string, error) {
	start := time.Now()
	f, err := os.Open(outPath)
	if err != nil {
		return "", jobs.Wrap(jobs.ErrInternal, "open censored output", err)
	}
	defer f.Close()

	outRef := "outputs/" + job.ID + filepath.Ext(outPath)
	if _, err := r.cfg.ObjectStore.Put(ctx, outRef, f); err != nil {
		r.traceSpan(runID, "finalize", start, outPath, "", err)
		return "", jobs.Wrap(jobs.ErrInternal, "upload censored output", err)
	}
	r.traceSpan(runID, "finalize", start, outPath, outRef, nil)
	return outRef, nil
}

func (r *Runner) traceSpan(runID, name string, start time.Time, input, output string, err error) {
	if r.cfg.Tracer == nil || runID == "" {
		return
	}
	status, errMsg := "ok", ""
	if err != nil {
		status, errMsg = "error", err.Error()
	}
	r.cfg.Tracer.RecordSpan(runID, name, start, float64(time.Since(start).Milliseconds()), input, output, status, errMsg)
	slog.Info("pipeline_stage", "stage", name, "duration_ms", time.Since(start).Milliseconds(), "status", status)
}

func (r *Runner) endRun(runID string, start time.Time, job *jobs.Job, result *Result, runErr error) {
	if r.cfg.Tracer == nil {
		return
	}
	status, outputSummary := "done", ""
	if runErr != nil {
		status, outputSummary = "error", runErr.Error()
	} else if result != nil {
		outputSummary = result.OutputObjectRef
	}
	r.cfg.Tracer.EndRun(runID, float64(time.Since(start).Milliseconds()), job.InputObjectRef, outputSummary, status)
}

func summarizeTranscript(t *asr.Transcript) string {
	if t == nil {
		return ""
	}
	return fmt.Sprintf("segments=%d lang=%s", len(t.Segments), t.Language)
}
