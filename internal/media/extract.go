// Package media wraps the ffmpeg subprocess invocations behind the audio
// extractor (C5) and censor operator (C8): extracting a mono WAV track
// for transcription, and beeping/muting/cutting the source video.
package media

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/kushagrasharma/censorly/internal/jobs"
)

// Probe holds the subset of ffprobe output the pipeline needs.
type Probe struct {
	DurationS float64
}

// ProbeDuration runs ffprobe against srcPath and returns its duration.
func ProbeDuration(ctx context.Context, srcPath string) (Probe, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		srcPath,
	)
	out, err := cmd.Output()
	if err != nil {
		return Probe{}, jobs.Wrap(jobs.ErrInputUnreadable, "ffprobe failed", err)
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return Probe{}, jobs.Wrap(jobs.ErrInputUnreadable, "ffprobe duration unparseable", err)
	}
	return Probe{DurationS: d}, nil
}

// ExtractAudio extracts a mono, 16kHz, 16-bit PCM WAV track from srcPath
// into dstWavPath, writing to a temp file and renaming into place so a
// reader never observes a partial file, per the transcode pipeline's
// atomic-write convention.
func ExtractAudio(ctx context.Context, srcPath, dstWavPath string) error {
	tmp := dstWavPath + ".tmp"
	defer os.Remove(tmp)

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-y",
		"-i", srcPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-acodec", "pcm_s16le",
		tmp,
	)
	var stderr strings.Builder
	cmd.Stderr = &stderr

	if err := runKillable(ctx, cmd); err != nil {
		return jobs.Wrap(jobs.ErrMediaExtractFailed, "ffmpeg audio extract: "+lastLines(stderr.String(), 5), err)
	}

	info, err := os.Stat(tmp)
	if err != nil || info.Size() <= 44 {
		return jobs.Wrap(jobs.ErrMediaExtractFailed, "ffmpeg produced empty audio", nil)
	}

	if err := os.Rename(tmp, dstWavPath); err != nil {
		return jobs.Wrap(jobs.ErrMediaExtractFailed, "finalize extracted audio", err)
	}
	return nil
}

// runKillable starts cmd and, if ctx is cancelled before it exits, kills
// the process so a cancelled job never leaves an orphaned ffmpeg running.
func runKillable(ctx context.Context, cmd *exec.Cmd) error {
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-done
		return ctx.Err()
	case err := <-done:
		return err
	}
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) <= n {
		return strings.Join(lines, " | ")
	}
	return strings.Join(lines[len(lines)-n:], " | ")
}
