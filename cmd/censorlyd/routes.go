package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kushagrasharma/censorly/internal/detector"
	"github.com/kushagrasharma/censorly/internal/fuzzyscan"
	"github.com/kushagrasharma/censorly/internal/jobs"
	"github.com/kushagrasharma/censorly/internal/objectstore"
	"github.com/kushagrasharma/censorly/internal/regexscan"
	"github.com/kushagrasharma/censorly/internal/registry"
	"github.com/kushagrasharma/censorly/internal/servicemgr"
	"github.com/kushagrasharma/censorly/internal/trace"
	"github.com/kushagrasharma/censorly/internal/wordlist"
	"github.com/kushagrasharma/censorly/internal/worker"
)

const (
	// maxUploadBytes bounds the JSON request body submit accepts; large
	// uploads should go straight to object storage out-of-band instead.
	maxUploadBytes = 2 << 30 // 2GiB

	// defaultListLimit is how many jobs list_jobs returns when the
	// caller omits ?limit=.
	defaultListLimit = 50

	defaultExpiry = 7 * 24 * time.Hour
)

type deps struct {
	store        registry.Store
	objStore     objectstore.Store
	det          *detector.Detector
	svcMgr       servicemgr.Manager
	pool         *worker.Pool
	traceStore   *trace.Store
	wsHandler    http.Handler
	wordlistPath string
	tuning       tuning
}

// registerRoutes wires all HTTP endpoints to the shared mux. This mux is
// explicitly unauthenticated per spec's non-goal: callers are expected to
// front it with an external auth layer.
func registerRoutes(mux *http.ServeMux, d deps) {
	mux.HandleFunc("GET /health", handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /jobs", d.handleSubmit)
	mux.HandleFunc("GET /jobs/{id}", d.handleGetJob)
	mux.HandleFunc("GET /jobs", d.handleListJobs)
	mux.HandleFunc("POST /jobs/{id}/cancel", d.handleCancelJob)
	mux.HandleFunc("GET /jobs/{id}/artifact", d.handleFetchArtifact)
	mux.Handle("GET /jobs/{id}/stream", d.wsHandler)

	mux.HandleFunc("POST /admin/wordlist/reload", d.handleWordlistReload)
	mux.HandleFunc("GET /admin/detector/stats", d.handleDetectorStats)
	mux.HandleFunc("GET /admin/services", d.handleServices)
	mux.HandleFunc("POST /admin/services/{name}/start", d.handleServiceStart)
	mux.HandleFunc("POST /admin/services/{name}/stop", d.handleServiceStop)

	mux.HandleFunc("GET /admin/traces", d.handleListTraceSessions)
	mux.HandleFunc("GET /admin/traces/{id}", d.handleGetTraceSession)
	mux.HandleFunc("GET /admin/traces/{id}/runs/{runId}", d.handleGetTraceRun)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// submitRequest mirrors spec.md §6's submit operation. asr_quality is
// deliberately absent: ASR quality is resolved server-side from the
// caller's subscription plan (see internal/worker.resolveASRQuality),
// never accepted from the client.
type submitRequest struct {
	UserID         string   `json:"user_id"`
	InputRef       string   `json:"input_object_ref"`
	SizeBytes      int64    `json:"input_size_bytes"`
	DurationS      float64  `json:"input_duration_s"`
	Mode           string   `json:"mode"`
	Threshold      float64  `json:"threshold"`
	Languages      []string `json:"languages"`
	PaddingBeforeS float64  `json:"padding_before_s"`
	PaddingAfterS  float64  `json:"padding_after_s"`
	EnsemblePolicy string   `json:"ensemble_policy"`
}

func (d deps) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxUploadBytes)).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if req.UserID == "" || req.InputRef == "" {
		writeJobError(w, jobs.Wrap(jobs.ErrInvalidConfig, "user_id and input_object_ref are required", nil))
		return
	}

	threshold := req.Threshold
	if threshold <= 0 {
		threshold = d.tuning.DefaultThreshold
	}
	paddingBefore := req.PaddingBeforeS
	if paddingBefore <= 0 {
		paddingBefore = d.tuning.PaddingBeforeS
	}
	paddingAfter := req.PaddingAfterS
	if paddingAfter <= 0 {
		paddingAfter = d.tuning.PaddingAfterS
	}
	cfg := jobs.Config{
		Mode:           jobs.Mode(orDefault(req.Mode, string(jobs.ModeBeep))),
		Threshold:      threshold,
		Languages:      req.Languages,
		PaddingBeforeS: paddingBefore,
		PaddingAfterS:  paddingAfter,
		EnsemblePolicy: req.EnsemblePolicy,
	}

	id, err := d.store.Submit(r.Context(), req.UserID, req.InputRef, req.SizeBytes, req.DurationS, cfg, time.Now().Add(defaultExpiry))
	if err != nil {
		slog.Error("submit job failed", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"job_id": id, "status": string(jobs.StatusPending)})
}

func (d deps) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := d.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(job)
}

func (d deps) handleListJobs(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}
	filter := registry.ListFilter{
		Status: jobs.Status(r.URL.Query().Get("status")),
		Limit:  queryInt(r, "limit", defaultListLimit),
		Offset: queryInt(r, "offset", 0),
	}
	list, err := d.store.List(r.Context(), userID, filter)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"jobs": list})
}

// handleCancelJob both flips the job row to cancelled and, if the job is
// actively running on this process's worker pool, cancels its runCtx so
// the pipeline's active ffmpeg/ASR subprocess is interrupted immediately
// rather than running to completion against an already-cancelled row.
func (d deps) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := d.store.Cancel(r.Context(), id); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if d.pool != nil {
		d.pool.Cancel(id)
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": string(jobs.StatusCancelled)})
}

func (d deps) handleFetchArtifact(w http.ResponseWriter, r *http.Request) {
	job, err := d.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if job.Status != jobs.StatusCompleted || job.OutputObjectRef == "" {
		http.Error(w, "artifact not ready", http.StatusConflict)
		return
	}

	rc, err := d.objStore.Get(r.Context(), job.OutputObjectRef)
	if err != nil {
		http.Error(w, "artifact missing from storage", http.StatusInternalServerError)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "video/mp4")
	io.Copy(w, rc)
}

func (d deps) handleWordlistReload(w http.ResponseWriter, r *http.Request) {
	doc, err := wordlist.Load(d.wordlistPath)
	if err != nil {
		slog.Error("wordlist reload failed", "path", d.wordlistPath, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	patterns := regexscan.Build(doc)
	d.det.SetPatterns(patterns)
	if d.tuning.FuzzyMatchEnabled {
		d.det.SetFuzzyMatcher(fuzzyscan.Build(doc))
	}
	slog.Info("wordlist reloaded", "path", d.wordlistPath, "warnings", patterns.Warnings())

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"status": "ok", "warnings": patterns.Warnings()})
}

func (d deps) handleDetectorStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(d.det.Snapshot())
}

func (d deps) handleServices(w http.ResponseWriter, r *http.Request) {
	services, err := d.svcMgr.StatusAll(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(services)
}

func (d deps) handleServiceStart(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := d.svcMgr.Start(r.Context(), name); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "starting"})
}

func (d deps) handleServiceStop(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := d.svcMgr.Stop(r.Context(), name); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "stopped"})
}

// handleListTraceSessions surfaces trace.Store.ListSessions for operators
// inspecting pipeline run history; it 404s when tracing isn't configured
// (no POSTGRES_URL).
func (d deps) handleListTraceSessions(w http.ResponseWriter, r *http.Request) {
	if d.traceStore == nil {
		http.Error(w, "tracing not enabled", http.StatusNotFound)
		return
	}
	sessions, total, err := d.traceStore.ListSessions(queryInt(r, "limit", defaultListLimit), queryInt(r, "offset", 0))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"sessions": sessions, "total": total})
}

func (d deps) handleGetTraceSession(w http.ResponseWriter, r *http.Request) {
	if d.traceStore == nil {
		http.Error(w, "tracing not enabled", http.StatusNotFound)
		return
	}
	session, runs, err := d.traceStore.GetSession(r.PathValue("id"))
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"session": session, "runs": runs})
}

func (d deps) handleGetTraceRun(w http.ResponseWriter, r *http.Request) {
	if d.traceStore == nil {
		http.Error(w, "tracing not enabled", http.StatusNotFound)
		return
	}
	run, spans, err := d.traceStore.GetRun(r.PathValue("id"), r.PathValue("runId"))
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"run": run, "spans": spans})
}

func writeJobError(w http.ResponseWriter, err *jobs.JobError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(map[string]string{"error_kind": string(err.Kind), "error_detail": err.Detail})
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func orDefault(val, fallback string) string {
	if val != "" {
		return val
	}
	return fallback
}
