package jobs

import "time"

// Status is the Job lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Mode is the censoring mode requested for a job.
type Mode string

const (
	ModeBeep Mode = "beep"
	ModeMute Mode = "mute"
	ModeCut  Mode = "cut"
)

// Config is the per-job configuration. Mode, Threshold, Languages,
// PaddingBeforeS, PaddingAfterS, and EnsemblePolicy are user-supplied at
// submit and immutable thereafter; ASRQuality is resolved server-side by
// the worker from the caller's subscription plan (see internal/asr) and
// is never accepted from the client.
type Config struct {
	Mode       Mode     `json:"mode"`
	Threshold  float64  `json:"threshold"`
	Languages  []string `json:"languages"`
	ASRQuality string   `json:"asr_quality,omitempty"`

	// PaddingBeforeS/PaddingAfterS override the default interval padding
	// (segment.DefaultMapConfig) when positive; zero means "use the
	// default".
	PaddingBeforeS float64 `json:"padding_before_s"`
	PaddingAfterS  float64 `json:"padding_after_s"`

	// EnsemblePolicy overrides the detector's default ensemble policy for
	// this job only (regex_only|ml_only|fast_first|both); empty means
	// "use the detector's configured default".
	EnsemblePolicy string `json:"ensemble_policy,omitempty"`
}

// Job is the central entity: a single censoring run owned by one user,
// exclusively owned by the registry and mutated only by the worker that
// claimed it or by explicit cancellation.
type Job struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`

	InputObjectRef string `json:"input_object_ref"`
	InputSizeBytes int64  `json:"input_size_bytes"`
	InputDurationS float64 `json:"input_duration_s"`
	Config         Config `json:"config"`

	Status   Status `json:"status"`
	Progress int    `json:"progress"`

	OutputObjectRef        string  `json:"output_object_ref,omitempty"`
	CensoredIntervalCount  int     `json:"censored_interval_count"`
	TotalCensoredDurationS float64 `json:"total_censored_duration_s"`
	ProcessingTimeS        float64 `json:"processing_time_s"`

	ErrorKind   ErrKind `json:"error_kind,omitempty"`
	ErrorDetail string  `json:"error_detail,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	ExpiresAt  time.Time  `json:"expires_at"`
}

// Terminal reports whether the job has reached an immutable state.
func (j *Job) Terminal() bool {
	switch j.Status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}
