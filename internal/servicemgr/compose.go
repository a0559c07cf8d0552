package servicemgr

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os/exec"
	"strings"
	"time"
)

// ComposeManager manages the ASR and ML-inference sidecars as Docker
// Compose services via the docker CLI.
type ComposeManager struct {
	composePath string
	envFile     string
	projectName string
	registry    *Registry
	httpClient  *http.Client
}

// NewComposeManager creates a manager that shells out to docker compose.
func NewComposeManager(composePath, envFile, projectName string, registry *Registry) *ComposeManager {
	return &ComposeManager{
		composePath: composePath,
		envFile:     envFile,
		projectName: projectName,
		registry:    registry,
		httpClient:  &http.Client{Timeout: 3 * time.Second},
	}
}

var _ Manager = (*ComposeManager)(nil)

func (c *ComposeManager) composeArgs(args ...string) []string {
	base := []string{"compose", "-f", c.composePath, "--env-file", c.envFile, "-p", c.projectName}
	return append(base, args...)
}

// PullAll pre-pulls images for every registered service without starting them.
func (c *ComposeManager) PullAll(ctx context.Context) {
	names := c.registry.Names()
	slog.Info("pre-pulling sidecar images", "count", len(names))
	args := c.composeArgs(append([]string{"pull"}, names...)...)
	cmd := exec.CommandContext(ctx, "docker", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		slog.Warn("pre-pull failed (images will be pulled on first start)", "error", err, "output", string(out))
		return
	}
	slog.Info("all sidecar images pulled")
}

func (c *ComposeManager) Start(ctx context.Context, name string) error {
	if _, ok := c.registry.Lookup(name); !ok {
		return fmt.Errorf("service %q not in registry", name)
	}

	slog.Info("starting service", "name", name)
	args := c.composeArgs("up", "-d", "--force-recreate", name)
	cmd := exec.CommandContext(ctx, "docker", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("compose up %s: %w: %s", name, err, string(out))
	}
	slog.Info("service started", "name", name)
	return nil
}

func (c *ComposeManager) Stop(ctx context.Context, name string) error {
	if _, ok := c.registry.Lookup(name); !ok {
		return fmt.Errorf("service %q not in registry", name)
	}

	slog.Info("stopping service", "name", name)
	args := c.composeArgs("stop", name)
	cmd := exec.CommandContext(ctx, "docker", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("compose stop %s: %w: %s", name, err, string(out))
	}
	slog.Info("service stopped", "name", name)
	return nil
}

func (c *ComposeManager) Status(ctx context.Context, name string) (*Info, error) {
	meta, ok := c.registry.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("service %q not in registry", name)
	}

	info := &Info{Name: name, Category: meta.Category, Status: StatusStopped}

	state, err := c.containerState(ctx, name)
	if err != nil {
		return info, nil // container doesn't exist = stopped
	}
	if state != "running" {
		info.Status = StatusStarting
		return info, nil
	}

	info.Status = StatusRunning
	if meta.HealthURL != "" && c.probeHealth(ctx, meta.HealthURL) {
		info.Status = StatusHealthy
	}
	return info, nil
}

func (c *ComposeManager) StatusAll(ctx context.Context) ([]Info, error) {
	names := c.registry.Names()
	results := make([]Info, 0, len(names))
	for _, name := range names {
		info, _ := c.Status(ctx, name)
		results = append(results, *info)
	}
	return results, nil
}

type composePSEntry struct {
	State string `json:"State"`
}

func (c *ComposeManager) containerState(ctx context.Context, name string) (string, error) {
	args := c.composeArgs("ps", "--format", "json", name)
	cmd := exec.CommandContext(ctx, "docker", args...)
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}

	trimmed := strings.TrimSpace(string(out))
	if trimmed == "" {
		return "", fmt.Errorf("no container for %s", name)
	}

	var entry composePSEntry
	if err = json.Unmarshal([]byte(trimmed), &entry); err != nil {
		return "", fmt.Errorf("parse compose ps: %w", err)
	}
	return strings.ToLower(entry.State), nil
}

func (c *ComposeManager) probeHealth(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
