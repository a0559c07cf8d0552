// Package mlclassify provides the ML half of the hybrid abuse detector:
// a binary sequence classifier predicting (is_abusive, confidence) for a
// text, backed by one of two interchangeable implementations.
package mlclassify

import "context"

// Result is the outcome of a single prediction.
type Result struct {
	IsAbusive  bool
	Confidence float64
	Error      string
}

// Info describes a loaded classifier handle.
type Info struct {
	ModelKind           string // "sequence-classifier", "linear-tfidf", or "disabled"
	Labels              []string
	ConfidenceThreshold float64
	Loaded              bool
}

// Classifier is the capability set every backend implements, per the
// specification's "Classifier polymorphism" design note.
type Classifier interface {
	Predict(ctx context.Context, text string) Result
	PredictBatch(ctx context.Context, texts []string) []Result
	Info() Info
}

// disabled is returned whenever a configured classifier failed to load;
// the ensemble degrades to regex-only per §4.3.
type disabled struct{}

func (disabled) Predict(ctx context.Context, text string) Result {
	return Result{IsAbusive: false, Confidence: 0, Error: "model not loaded"}
}

func (d disabled) PredictBatch(ctx context.Context, texts []string) []Result {
	out := make([]Result, len(texts))
	for i := range texts {
		out[i] = d.Predict(ctx, texts[i])
	}
	return out
}

func (disabled) Info() Info {
	return Info{ModelKind: "disabled", Loaded: false}
}

// Disabled returns a classifier in the disabled state.
func Disabled() Classifier { return disabled{} }

// Config selects and configures a backend.
type Config struct {
	ArtifactPath        string
	InferenceURL        string // set for the HTTP sequence-classifier backend
	ConfidenceThreshold float64
}

// Load resolves a classifier backend by artifact inspection: an
// InferenceURL selects the HTTP sequence-classifier; an ArtifactPath
// pointing at a JSON linear-model file selects the in-process
// linear-tfidf backend. Load failure is non-fatal: the returned
// Classifier is Disabled() and the error is returned for logging only.
func Load(cfg Config) (Classifier, error) {
	if cfg.InferenceURL != "" {
		return NewHTTPSequenceClassifier(cfg.InferenceURL, cfg.ConfidenceThreshold), nil
	}
	if cfg.ArtifactPath != "" {
		clf, err := LoadLinearTFIDF(cfg.ArtifactPath, cfg.ConfidenceThreshold)
		if err != nil {
			return Disabled(), err
		}
		return clf, nil
	}
	return Disabled(), nil
}
