package trace

import "time"

// Session groups trace runs. censorlyd opens one session, with ID
// "censorlyd", at startup and records every job's run under it.
type Session struct {
	ID        string    `json:"id"`
	Metadata  string    `json:"metadata"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	RunCount  int       `json:"run_count,omitempty"`
}

// Run represents one pipeline execution (one job's audio_extract → asr →
// segment → censor state-machine run). InputRef is the job's input
// object ref; OutputSummary is the censored output's object ref on
// success, or the failure detail on error.
type Run struct {
	ID            string    `json:"id"`
	SessionID     string    `json:"session_id"`
	StartedAt     time.Time `json:"started_at"`
	DurationMs    float64   `json:"duration_ms,omitempty"`
	InputRef      string    `json:"input_ref,omitempty"`
	OutputSummary string    `json:"output_summary,omitempty"`
	Status        string    `json:"status"`
	SpanCount     int       `json:"span_count,omitempty"`
}

// Span represents one pipeline stage execution within a run.
type Span struct {
	ID         string    `json:"id"`
	RunID      string    `json:"run_id"`
	Name       string    `json:"name"`
	StartedAt  time.Time `json:"started_at"`
	DurationMs float64   `json:"duration_ms"`
	Input      string    `json:"input,omitempty"`
	Output     string    `json:"output,omitempty"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
}
