package servicemgr

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPControlManager manages services via lightweight HTTP control
// servers, for deployments that run the ASR/ML sidecars as bare
// processes fronted by a small control endpoint rather than containers.
type HTTPControlManager struct {
	httpClient *http.Client
	registry   *Registry
}

// NewHTTPControlManager creates a manager backed by HTTP control endpoints.
func NewHTTPControlManager(registry *Registry) *HTTPControlManager {
	return &HTTPControlManager{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		registry:   registry,
	}
}

var _ Manager = (*HTTPControlManager)(nil)

func (h *HTTPControlManager) Start(ctx context.Context, name string) error {
	meta, ok := h.registry.Lookup(name)
	if !ok {
		return fmt.Errorf("service %q not in registry", name)
	}
	if meta.ControlURL == "" {
		return fmt.Errorf("service %q has no control URL", name)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, meta.ControlURL+"/start", nil)
	if err != nil {
		return err
	}
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("start %s: %w", name, err)
	}
	resp.Body.Close()
	return nil
}

func (h *HTTPControlManager) Stop(ctx context.Context, name string) error {
	meta, ok := h.registry.Lookup(name)
	if !ok {
		return fmt.Errorf("service %q not in registry", name)
	}
	if meta.ControlURL == "" {
		return fmt.Errorf("service %q has no control URL", name)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, meta.ControlURL+"/stop", nil)
	if err != nil {
		return err
	}
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("stop %s: %w", name, err)
	}
	resp.Body.Close()
	return nil
}

func (h *HTTPControlManager) Status(ctx context.Context, name string) (*Info, error) {
	meta, ok := h.registry.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("service %q not in registry", name)
	}
	info := &Info{Name: name, Category: meta.Category, Status: StatusStopped}

	if meta.ControlURL == "" {
		return info, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, meta.ControlURL+"/status", nil)
	if err != nil {
		return info, nil
	}
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return info, nil
	}
	defer resp.Body.Close()

	var result struct {
		Running bool `json:"running"`
	}
	json.NewDecoder(resp.Body).Decode(&result)
	if !result.Running {
		return info, nil
	}

	info.Status = StatusRunning
	if meta.HealthURL != "" && h.probeHealth(ctx, meta.HealthURL) {
		info.Status = StatusHealthy
	}
	return info, nil
}

func (h *HTTPControlManager) StatusAll(ctx context.Context) ([]Info, error) {
	names := h.registry.Names()
	results := make([]Info, 0, len(names))
	for _, name := range names {
		info, _ := h.Status(ctx, name)
		results = append(results, *info)
	}
	return results, nil
}

func (h *HTTPControlManager) probeHealth(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
