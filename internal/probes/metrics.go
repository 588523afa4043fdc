package probes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/miradorstack/mirador-remediate/internal/models"
)

// MetricsSource collects a point-in-time metrics snapshot for a service.
type MetricsSource interface {
	Collect(ctx context.Context, svc models.Service) (map[string]float64, error)
}

// HTTPMetricsSource fetches a JSON summary document from each service, e.g.
// {"cpu_usage": 42.0, "memory_usage": 61.5, "latency_p95": 120, "error_rate": 2}.
type HTTPMetricsSource struct {
	path       string
	httpClient *http.Client
}

// NewHTTPMetricsSource constructs a metrics source polling the given path.
func NewHTTPMetricsSource(path string, timeout time.Duration) *HTTPMetricsSource {
	if path == "" {
		path = "/metrics/summary"
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPMetricsSource{
		path:       path,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Collect fetches and decodes the snapshot. Errors are returned for the
// caller to classify as a recoverable ProbeError.
func (s *HTTPMetricsSource) Collect(ctx context.Context, svc models.Service) (map[string]float64, error) {
	url := fmt.Sprintf("http://%s:%d%s", svc.Name, svc.Port, s.path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("metrics request for %s failed: %w", svc.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("metrics endpoint for %s returned %s", svc.Name, resp.Status)
	}

	var snapshot map[string]float64
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		return nil, fmt.Errorf("decode metrics for %s: %w", svc.Name, err)
	}
	if len(snapshot) == 0 {
		return nil, fmt.Errorf("metrics endpoint for %s returned an empty snapshot", svc.Name)
	}
	return snapshot, nil
}
