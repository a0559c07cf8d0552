package media

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kushagrasharma/censorly/internal/audio"
	"github.com/kushagrasharma/censorly/internal/jobs"
	"github.com/kushagrasharma/censorly/internal/segment"
)

// ToneFrequencyHz and toneAmplitude fix the beep mode's default tone, per
// the censoring contract: 1000 Hz at -6 dB full scale.
const (
	ToneFrequencyHz = 1000.0
	toneAmplitude   = 0.5012 // 10^(-6/20)
	fadeS           = 0.010
	minOutputS      = 1.0
)

// CensorPlan is the derived, job-scoped censoring instruction: a mode and
// the final (merged, padded) interval list to apply.
type CensorPlan struct {
	Mode      jobs.Mode
	Intervals []segment.Interval
}

// Censor applies plan to srcVideo, using workDir for intermediate files,
// and writes the result to outPath. Intermediate files are removed before
// returning, on both success and failure.
func Censor(ctx context.Context, plan CensorPlan, srcVideo, workDir, outPath string) error {
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return jobs.Wrap(jobs.ErrInternal, "create workspace", err)
	}
	defer os.RemoveAll(workDir)

	switch plan.Mode {
	case jobs.ModeCut:
		return censorCut(ctx, plan, srcVideo, workDir, outPath)
	default:
		return censorAudioReplace(ctx, plan, srcVideo, workDir, outPath)
	}
}

// censorAudioReplace implements mute and beep: extract audio, rewrite
// samples within each interval, re-mux with the original video track
// stream-copied.
func censorAudioReplace(ctx context.Context, plan CensorPlan, srcVideo, workDir, outPath string) error {
	extractedWav := filepath.Join(workDir, "extracted.wav")
	if err := ExtractAudio(ctx, srcVideo, extractedWav); err != nil {
		return err
	}

	data, err := os.ReadFile(extractedWav)
	if err != nil {
		return jobs.Wrap(jobs.ErrMediaMuxFailed, "read extracted audio", err)
	}
	wav, err := audio.DecodeWAV(data)
	if err != nil {
		return jobs.Wrap(jobs.ErrMediaMuxFailed, "decode extracted audio", err)
	}

	for _, iv := range plan.Intervals {
		applyInterval(wav.Samples, wav.SampleRate, iv, plan.Mode)
	}

	censoredWav := filepath.Join(workDir, "censored.wav")
	if err := os.WriteFile(censoredWav, audio.SamplesToWAV(wav.Samples, wav.SampleRate), 0o644); err != nil {
		return jobs.Wrap(jobs.ErrMediaMuxFailed, "write censored audio", err)
	}

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-y",
		"-i", srcVideo,
		"-i", censoredWav,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", "copy",
		"-c:a", "aac",
		"-shortest",
		outPath+".tmp",
	)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := runKillable(ctx, cmd); err != nil {
		return jobs.Wrap(jobs.ErrMediaMuxFailed, "ffmpeg remux: "+lastLines(stderr.String(), 5), err)
	}
	return os.Rename(outPath+".tmp", outPath)
}

// applyInterval overwrites samples in [iv.StartS, iv.EndS) with silence
// (mute) or a faded sine tone (beep).
func applyInterval(samples []float32, sampleRate int, iv segment.Interval, mode jobs.Mode) {
	start := max(0, int(iv.StartS*float64(sampleRate)))
	end := min(len(samples), int(iv.EndS*float64(sampleRate)))
	if start >= end {
		return
	}

	fadeSamples := int(fadeS * float64(sampleRate))
	for i := start; i < end; i++ {
		var v float32
		if mode == jobs.ModeBeep {
			t := float64(i-start) / float64(sampleRate)
			v = float32(toneAmplitude * math.Sin(2*math.Pi*ToneFrequencyHz*t))
			v *= fadeGain(i, start, end, fadeSamples)
		}
		samples[i] = v
	}
}

// fadeGain returns a linear fade-in/fade-out multiplier for sample index
// i within [start, end), ramping across fadeSamples at each edge to avoid
// clicks at the interval boundary.
func fadeGain(i, start, end, fadeSamples int) float32 {
	if fadeSamples <= 0 {
		return 1
	}
	if d := i - start; d < fadeSamples {
		return float32(d) / float32(fadeSamples)
	}
	if d := end - i; d < fadeSamples {
		return float32(d) / float32(fadeSamples)
	}
	return 1
}

// censorCut computes the complement of plan.Intervals within
// [0, duration], extracts each complement range with stream copy, and
// concatenates them via the concat demuxer.
func censorCut(ctx context.Context, plan CensorPlan, srcVideo, workDir, outPath string) error {
	probe, err := ProbeDuration(ctx, srcVideo)
	if err != nil {
		return err
	}

	keep := complement(plan.Intervals, probe.DurationS)
	if len(keep) == 0 {
		return jobs.Wrap(jobs.ErrEmptyOutput, "censored intervals cover the entire input", nil)
	}

	var remaining float64
	for _, r := range keep {
		remaining += r.end - r.start
	}
	if remaining < minOutputS {
		return jobs.Wrap(jobs.ErrOutputTooShort, fmt.Sprintf("post-cut duration %.3fs below minimum", remaining), nil)
	}

	listPath := filepath.Join(workDir, "segments.txt")
	var listLines []string
	for i, r := range keep {
		segPath := filepath.Join(workDir, fmt.Sprintf("seg_%03d.mp4", i))
		cmd := exec.CommandContext(ctx, "ffmpeg",
			"-y",
			"-ss", strconv.FormatFloat(r.start, 'f', 3, 64),
			"-to", strconv.FormatFloat(r.end, 'f', 3, 64),
			"-i", srcVideo,
			"-c", "copy",
			"-avoid_negative_ts", "make_zero",
			segPath,
		)
		var stderr strings.Builder
		cmd.Stderr = &stderr
		if err := runKillable(ctx, cmd); err != nil {
			return jobs.Wrap(jobs.ErrMediaMuxFailed, "ffmpeg segment extract: "+lastLines(stderr.String(), 5), err)
		}
		listLines = append(listLines, "file '"+segPath+"'")
	}
	if err := os.WriteFile(listPath, []byte(strings.Join(listLines, "\n")+"\n"), 0o644); err != nil {
		return jobs.Wrap(jobs.ErrMediaMuxFailed, "write concat list", err)
	}

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		outPath+".tmp",
	)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := runKillable(ctx, cmd); err != nil {
		return jobs.Wrap(jobs.ErrMediaMuxFailed, "ffmpeg concat: "+lastLines(stderr.String(), 5), err)
	}
	return os.Rename(outPath+".tmp", outPath)
}

type span struct{ start, end float64 }

// complement returns the sorted ranges of [0, duration] not covered by
// any interval. intervals is assumed sorted and disjoint, per segment.Map's
// output guarantee.
func complement(intervals []segment.Interval, duration float64) []span {
	var out []span
	cursor := 0.0
	for _, iv := range intervals {
		if iv.StartS > cursor {
			out = append(out, span{cursor, iv.StartS})
		}
		cursor = max(cursor, iv.EndS)
	}
	if cursor < duration {
		out = append(out, span{cursor, duration})
	}
	return out
}
