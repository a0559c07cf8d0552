package asr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kushagrasharma/censorly/internal/httpx"
	"github.com/kushagrasharma/censorly/internal/metrics"
)

// HTTPClient sends a WAV file to an external transcription server over
// multipart/form-data, generalizing the teacher's
// pipeline.ASRClient/buildMultipartAudio shape to a file-backed upload
// with word-level timestamps instead of a single text field.
type HTTPClient struct {
	url    string
	client *http.Client
}

// NewHTTPClient creates a client pointed at a transcription server
// exposing POST /transcribe.
func NewHTTPClient(serverURL string, poolSize int) *HTTPClient {
	return &HTTPClient{
		url:    strings.TrimRight(serverURL, "/"),
		client: httpx.NewPooledClient(poolSize, 5*time.Minute),
	}
}

type wireWord struct {
	Text   string  `json:"text"`
	StartS float64 `json:"start_s"`
	EndS   float64 `json:"end_s"`
}

type wireSegment struct {
	ID            string     `json:"id"`
	Text          string     `json:"text"`
	StartS        float64    `json:"start_s"`
	EndS          float64    `json:"end_s"`
	Words         []wireWord `json:"words"`
	LanguageGuess string     `json:"language_guess"`
}

type wireTranscript struct {
	Segments []wireSegment `json:"segments"`
	Language string        `json:"language"`
}

// Transcribe implements Client.
func (c *HTTPClient) Transcribe(ctx context.Context, wavPath string, quality Quality, langHint []string) (*Transcript, error) {
	start := time.Now()

	f, err := os.Open(wavPath)
	if err != nil {
		return nil, fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()

	body, contentType, err := buildMultipartUpload(f, filepath.Base(wavPath))
	if err != nil {
		return nil, fmt.Errorf("build upload: %w", err)
	}

	q := url.Values{}
	q.Set("model", string(quality))
	for _, lang := range langHint {
		q.Add("lang_hint", lang)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/transcribe?"+q.Encode(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.client.Do(req)
	if err != nil {
		metrics.Errors.WithLabelValues("asr", "transport").Inc()
		return nil, fmt.Errorf("asr request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		metrics.Errors.WithLabelValues("asr", "status").Inc()
		return nil, fmt.Errorf("asr status %d: %s", resp.StatusCode, string(respBody))
	}

	var wire wireTranscript
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		metrics.Errors.WithLabelValues("asr", "decode").Inc()
		return nil, fmt.Errorf("decode asr response: %w", err)
	}

	metrics.StageDuration.WithLabelValues("asr").Observe(time.Since(start).Seconds())
	return fromWire(wire), nil
}

func fromWire(w wireTranscript) *Transcript {
	t := &Transcript{Language: w.Language, Segments: make([]Segment, len(w.Segments))}
	for i, s := range w.Segments {
		words := make([]Word, len(s.Words))
		for j, wd := range s.Words {
			words[j] = Word{Text: wd.Text, StartS: wd.StartS, EndS: wd.EndS}
		}
		t.Segments[i] = Segment{
			ID: s.ID, Text: s.Text, StartS: s.StartS, EndS: s.EndS,
			Words: words, LanguageGuess: s.LanguageGuess,
		}
	}
	return t
}

func buildMultipartUpload(r io.Reader, filename string) (io.Reader, string, error) {
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	go func() {
		defer pw.Close()
		defer writer.Close()

		part, err := writer.CreateFormFile("file", filename)
		if err != nil {
			pw.CloseWithError(fmt.Errorf("create form file: %w", err))
			return
		}
		if _, err := io.Copy(part, r); err != nil {
			pw.CloseWithError(fmt.Errorf("copy audio data: %w", err))
			return
		}
	}()

	return pr, writer.FormDataContentType(), nil
}
