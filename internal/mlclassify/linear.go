package mlclassify

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/kushagrasharma/censorly/internal/textnorm"
)

// linearArtifact is the on-disk shape of a linear-tfidf model: a fixed
// vocabulary, per-term IDF weights, a linear weight vector over those
// terms, and a bias term. This mirrors the "linear model over a fixed
// vectorizer" backend named in §4.3.
type linearArtifact struct {
	Vocab   map[string]int `json:"vocab"`
	IDF     []float64      `json:"idf"`
	Weights []float64      `json:"weights"`
	Bias    float64        `json:"bias"`
	Labels  []string       `json:"labels"`
}

// LinearTFIDF is an in-process binary classifier: TF-IDF vectorize, then
// a single dot product + sigmoid.
type LinearTFIDF struct {
	artifact  linearArtifact
	threshold float64
}

// LoadLinearTFIDF reads a JSON artifact from path.
func LoadLinearTFIDF(path string, threshold float64) (*LinearTFIDF, error) {
	if threshold <= 0 {
		threshold = 0.5
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read classifier artifact: %w", err)
	}
	var a linearArtifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("parse classifier artifact: %w", err)
	}
	if len(a.Weights) != len(a.Vocab) || len(a.IDF) != len(a.Vocab) {
		return nil, fmt.Errorf("classifier artifact: vocab/idf/weights size mismatch")
	}
	return &LinearTFIDF{artifact: a, threshold: threshold}, nil
}

// Predict implements Classifier.
func (l *LinearTFIDF) Predict(ctx context.Context, text string) Result {
	vec := l.vectorize(text)
	score := l.artifact.Bias
	for i, v := range vec {
		score += v * l.artifact.Weights[i]
	}
	confidence := sigmoid(score)
	return Result{IsAbusive: confidence >= l.threshold, Confidence: confidence}
}

// PredictBatch implements Classifier.
func (l *LinearTFIDF) PredictBatch(ctx context.Context, texts []string) []Result {
	out := make([]Result, len(texts))
	for i, t := range texts {
		out[i] = l.Predict(ctx, t)
	}
	return out
}

// Info implements Classifier.
func (l *LinearTFIDF) Info() Info {
	return Info{
		ModelKind:           "linear-tfidf",
		Labels:              l.artifact.Labels,
		ConfidenceThreshold: l.threshold,
		Loaded:              true,
	}
}

func (l *LinearTFIDF) vectorize(text string) []float64 {
	tokens := strings.Fields(textnorm.Normalize(text))
	counts := make(map[int]float64, len(tokens))
	for _, tok := range tokens {
		idx, ok := l.artifact.Vocab[tok]
		if !ok {
			continue
		}
		counts[idx]++
	}

	vec := make([]float64, len(l.artifact.Vocab))
	if len(tokens) == 0 {
		return vec
	}
	for idx, tf := range counts {
		vec[idx] = (tf / float64(len(tokens))) * l.artifact.IDF[idx]
	}
	return vec
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}
