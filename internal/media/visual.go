package media

import (
	"context"

	"github.com/kushagrasharma/censorly/internal/segment"
)

// VisualIntervalSource is a named but unimplemented extension point: a
// future visual NSFW detector could contribute additional cut-mode
// intervals alongside the audio-derived ones. No implementation is wired
// to it; Censor only ever consumes the audio-derived interval list.
type VisualIntervalSource interface {
	VisualIntervals(ctx context.Context, videoPath string) ([]segment.Interval, error)
}
