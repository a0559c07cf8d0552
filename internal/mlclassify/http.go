package mlclassify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kushagrasharma/censorly/internal/httpx"
)

// HTTPSequenceClassifier calls an external binary sequence-classifier
// inference server, adapted from the teacher's pipeline.ClassifyClient
// HTTP-adapter shape: POST a small JSON payload, decode a JSON response.
type HTTPSequenceClassifier struct {
	url       string
	client    *http.Client
	threshold float64
}

// NewHTTPSequenceClassifier creates a client pointed at an inference
// server implementing POST /predict -> {"probs": [p_clean, p_abuse]}.
func NewHTTPSequenceClassifier(url string, threshold float64) *HTTPSequenceClassifier {
	if threshold <= 0 {
		threshold = 0.5
	}
	return &HTTPSequenceClassifier{
		url:       url,
		threshold: threshold,
		client:    httpx.NewPooledClient(16, 5*time.Second),
	}
}

type predictResponse struct {
	Probs []float64 `json:"probs"`
}

// Predict implements Classifier.
func (c *HTTPSequenceClassifier) Predict(ctx context.Context, text string) Result {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return Result{Error: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/predict", bytes.NewReader(body))
	if err != nil {
		return Result{Error: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Result{Error: fmt.Sprintf("inference request: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return Result{Error: fmt.Sprintf("inference status %d: %s", resp.StatusCode, string(respBody))}
	}

	var pr predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return Result{Error: fmt.Sprintf("decode inference response: %v", err)}
	}
	if len(pr.Probs) != 2 {
		return Result{Error: "inference response missing [p_clean, p_abuse]"}
	}

	confidence := pr.Probs[1]
	return Result{IsAbusive: confidence >= c.threshold, Confidence: confidence}
}

// PredictBatch implements Classifier. Individual failures degrade to a
// clean/zero-confidence result without failing the batch, per §4.3.
func (c *HTTPSequenceClassifier) PredictBatch(ctx context.Context, texts []string) []Result {
	out := make([]Result, len(texts))
	for i, t := range texts {
		r := c.Predict(ctx, t)
		if r.Error != "" {
			r = Result{IsAbusive: false, Confidence: 0, Error: r.Error}
		}
		out[i] = r
	}
	return out
}

// Info implements Classifier.
func (c *HTTPSequenceClassifier) Info() Info {
	return Info{
		ModelKind:           "sequence-classifier",
		Labels:              []string{"clean", "abusive"},
		ConfidenceThreshold: c.threshold,
		Loaded:              true,
	}
}
