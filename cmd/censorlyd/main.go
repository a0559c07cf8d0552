package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/kushagrasharma/censorly/internal/asr"
	"github.com/kushagrasharma/censorly/internal/detector"
	"github.com/kushagrasharma/censorly/internal/fuzzyscan"
	"github.com/kushagrasharma/censorly/internal/mlclassify"
	"github.com/kushagrasharma/censorly/internal/objectstore"
	"github.com/kushagrasharma/censorly/internal/pipeline"
	"github.com/kushagrasharma/censorly/internal/quota"
	"github.com/kushagrasharma/censorly/internal/regexscan"
	"github.com/kushagrasharma/censorly/internal/registry"
	"github.com/kushagrasharma/censorly/internal/servicemgr"
	"github.com/kushagrasharma/censorly/internal/trace"
	"github.com/kushagrasharma/censorly/internal/wordlist"
	"github.com/kushagrasharma/censorly/internal/worker"
	"github.com/kushagrasharma/censorly/internal/ws"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file, using process environment")
	}

	t := loadTuning("censorly.json")
	d := loadDeployment()

	store, err := openStore(d)
	if err != nil {
		slog.Error("open job registry failed", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	objStore, err := openObjectStore(d)
	if err != nil {
		slog.Error("open object store failed", "error", err)
		os.Exit(1)
	}

	det := buildDetector(d, t)

	asrClient := buildASRClient(d)

	var traceStore *trace.Store
	if d.postgresURL != "" {
		traceStore, err = trace.Open(d.postgresURL)
		if err != nil {
			slog.Error("trace store open failed", "error", err)
		} else {
			slog.Info("tracing enabled", "postgres", d.postgresURL)
		}
	}
	var tracer *trace.Tracer
	if traceStore != nil {
		_ = traceStore.CreateSession("censorlyd", "")
		tracer = trace.NewTracer(traceStore, "censorlyd")
		defer tracer.Close()
	}

	runner := pipeline.New(pipeline.Config{
		Detector:    det,
		ASRClient:   asrClient,
		ObjectStore: objStore,
		Tracer:      tracer,
		MergeGapS:   t.MergeGapS,
	})

	q := quota.NewInMemory(t.MonthlyQuotaMinutes)

	pool := worker.New(worker.Config{
		MaxConcurrentJobs: t.MaxConcurrentJobs,
		JobTimeout:        t.jobTimeout(),
		WorkspaceRoot:     os.TempDir(),
	}, store, runner, q)

	svcRegistry := servicemgr.NewRegistry(buildServiceMeta(d))
	svcMgr := buildServiceManager(d, svcRegistry)

	mux := http.NewServeMux()
	registerRoutes(mux, deps{
		store:        store,
		objStore:     objStore,
		det:          det,
		svcMgr:       svcMgr,
		pool:         pool,
		traceStore:   traceStore,
		wsHandler:    ws.NewHandler(store),
		wordlistPath: d.wordlistPath,
		tuning:       t,
	})

	addr := ":" + d.port
	srv := &http.Server{Addr: addr, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if runErr := pool.Run(ctx); runErr != nil {
			slog.Error("worker pool stopped", "error", runErr)
		}
	}()

	go awaitShutdown(ctx, srv)

	slog.Info("censorlyd starting", "addr", addr)
	if err = srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}

	slog.Info("censorlyd stopped")
}

func awaitShutdown(ctx context.Context, srv *http.Server) {
	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}

func openStore(d deployment) (registry.Store, error) {
	if d.postgresURL != "" {
		return registry.OpenPostgres(d.postgresURL)
	}
	return registry.OpenSQLite(d.sqlitePath)
}

func openObjectStore(d deployment) (objectstore.Store, error) {
	if d.minioEndpoint != "" {
		return objectstore.NewMinioStore(context.Background(), d.minioEndpoint, d.minioAccessKey, d.minioSecretKey, d.minioBucket, d.minioUseSSL)
	}
	return objectstore.NewFSStore(d.objectStoreRoot)
}

func buildDetector(d deployment, t tuning) *detector.Detector {
	doc, err := wordlist.Load(d.wordlistPath)
	if err != nil {
		slog.Error("wordlist load failed", "path", d.wordlistPath, "error", err)
		os.Exit(1)
	}
	patterns := regexscan.Build(doc)
	for _, w := range patterns.Warnings() {
		slog.Warn("wordlist compile warning", "warning", w)
	}

	var clf mlclassify.Classifier = mlclassify.Disabled()
	if d.mlInferenceURL != "" {
		clf, err = mlclassify.Load(mlclassify.Config{InferenceURL: d.mlInferenceURL, ConfidenceThreshold: t.DefaultThreshold})
		if err != nil {
			slog.Warn("ml classifier load failed, falling back to regex-only", "error", err)
		}
	}

	det := detector.New(patterns, clf, detector.PolicyFastFirst)
	if t.FuzzyMatchEnabled {
		det.SetFuzzyMatcher(fuzzyscan.Build(doc))
		slog.Info("fuzzy phonetic fallback enabled")
	}
	return det
}

func buildASRClient(d deployment) asr.Client {
	if d.asrServerURL == "" {
		return nil
	}
	return asr.NewHTTPClient(d.asrServerURL, 16)
}

// buildServiceManager selects the sidecar lifecycle backend: a Docker
// Compose-driven manager for containerized deployments, or a bare HTTP
// control-plane manager for deployments running ASR/ML as plain processes.
func buildServiceManager(d deployment, reg *servicemgr.Registry) servicemgr.Manager {
	if d.serviceManagerKind == "compose" {
		return servicemgr.NewComposeManager(d.composeFile, d.composeEnvFile, d.composeProject, reg)
	}
	return servicemgr.NewHTTPControlManager(reg)
}

func buildServiceMeta(d deployment) map[string]servicemgr.Meta {
	services := map[string]servicemgr.Meta{}
	if d.asrServerURL != "" {
		services["asr-server"] = servicemgr.Meta{
			Category:   "asr",
			HealthURL:  d.asrServerURL + "/health",
			ControlURL: d.whisperControl,
		}
	}
	if d.mlInferenceURL != "" {
		services["ml-inference"] = servicemgr.Meta{
			Category:  "ml-inference",
			HealthURL: d.mlInferenceURL + "/health",
		}
	}
	return services
}
