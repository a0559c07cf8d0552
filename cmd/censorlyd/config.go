package main

import (
	"encoding/json"
	"log/slog"
	"os"
	"time"

	"github.com/kushagrasharma/censorly/internal/env"
)

// tuning holds knobs loaded from censorly.json. These are values that may
// eventually move to a database; for now a JSON file keeps them out of
// env vars.
type tuning struct {
	DefaultThreshold    float64 `json:"default_threshold"`
	MergeGapS           float64 `json:"merge_gap_s"`
	PaddingBeforeS      float64 `json:"padding_before_s"`
	PaddingAfterS       float64 `json:"padding_after_s"`
	MaxConcurrentJobs   int     `json:"max_concurrent_jobs"`
	JobTimeoutMinutes   int     `json:"job_timeout_minutes"`
	MonthlyQuotaMinutes float64 `json:"monthly_quota_minutes"`
	// FuzzyMatchEnabled turns on the phonetic fallback (internal/fuzzyscan)
	// for words the regex scanner's literal patterns miss. Off by default:
	// it trades some false positives for catching ASR mis-transcriptions.
	FuzzyMatchEnabled bool `json:"fuzzy_match_enabled"`
}

// defaultTuning returns the defaults used for any knob censorly.json does
// not set, or for all of them when the file is absent.
func defaultTuning() tuning {
	return tuning{
		DefaultThreshold:    0.6,
		MergeGapS:           0.12,
		PaddingBeforeS:      0.05,
		PaddingAfterS:       0.05,
		MaxConcurrentJobs:   3,
		JobTimeoutMinutes:   60,
		MonthlyQuotaMinutes: 1000,
		FuzzyMatchEnabled:   false,
	}
}

// loadTuning reads path if present, otherwise returns defaults.
func loadTuning(path string) tuning {
	t := defaultTuning()
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Info("no config file, using defaults", "path", path)
		return t
	}
	if err = json.Unmarshal(data, &t); err != nil {
		slog.Warn("bad config file, using defaults", "path", path, "error", err)
		return defaultTuning()
	}
	slog.Info("loaded config", "path", path)
	return t
}

func (t tuning) jobTimeout() time.Duration {
	return time.Duration(t.JobTimeoutMinutes) * time.Minute
}

// deployment holds process-level config resolved from the environment.
type deployment struct {
	port string

	postgresURL string
	sqlitePath  string

	objectStoreRoot string
	minioEndpoint   string
	minioAccessKey  string
	minioSecretKey  string
	minioBucket     string
	minioUseSSL     bool

	asrServerURL  string
	mlInferenceURL string
	whisperControl string

	wordlistPath string

	serviceManagerKind string // "http" or "compose"
	composeFile        string
	composeEnvFile      string
	composeProject      string
}

func loadDeployment() deployment {
	return deployment{
		port: env.Str("CENSORLYD_PORT", "8080"),

		postgresURL: env.Str("POSTGRES_URL", ""),
		sqlitePath:  env.Str("SQLITE_PATH", "censorly.db"),

		objectStoreRoot: env.Str("OBJECTSTORE_ROOT", "./data/objects"),
		minioEndpoint:   env.Str("MINIO_ENDPOINT", ""),
		minioAccessKey:  env.Str("MINIO_ACCESS_KEY", ""),
		minioSecretKey:  env.Str("MINIO_SECRET_KEY", ""),
		minioBucket:     env.Str("MINIO_BUCKET", "censorly"),
		minioUseSSL:     env.Bool("MINIO_USE_SSL", true),

		asrServerURL:   env.Str("ASR_SERVER_URL", ""),
		mlInferenceURL: env.Str("ML_INFERENCE_URL", ""),
		whisperControl: env.Str("ASR_CONTROL_URL", ""),

		wordlistPath: env.Str("WORDLIST_PATH", "wordlist.yaml"),

		serviceManagerKind: env.Str("SERVICE_MANAGER", "http"),
		composeFile:        env.Str("COMPOSE_FILE", "docker-compose.yml"),
		composeEnvFile:     env.Str("COMPOSE_ENV_FILE", ".env"),
		composeProject:     env.Str("COMPOSE_PROJECT", "censorly"),
	}
}
