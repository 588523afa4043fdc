// Package probes provides the concrete health and metrics probe transports
// consumed by the orchestrator through narrow interfaces.
package probes

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/miradorstack/mirador-remediate/internal/models"
)

// HealthProbe reports whether a service answers its health endpoint.
// Implementations never block past their timeout and map every failure to false.
type HealthProbe interface {
	Check(ctx context.Context, svc models.Service) bool
}

// HTTPHealthProbe probes http://<name>:<port><healthEndpoint>, falling back to
// loopback when the service name does not resolve (single-host deployments).
type HTTPHealthProbe struct {
	httpClient *http.Client
}

// NewHTTPHealthProbe constructs a probe bounded by timeout.
func NewHTTPHealthProbe(timeout time.Duration) *HTTPHealthProbe {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPHealthProbe{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Check returns true only for a 200 response. Connection errors, timeouts and
// non-200 statuses all report unhealthy; nothing escapes this boundary.
func (p *HTTPHealthProbe) Check(ctx context.Context, svc models.Service) bool {
	endpoint := svc.HealthEndpoint
	if endpoint == "" {
		endpoint = "/health"
	}

	for _, host := range []string{svc.Name, "127.0.0.1"} {
		url := fmt.Sprintf("http://%s:%d%s", host, svc.Port, endpoint)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			continue
		}
		resp, err := p.httpClient.Do(req)
		if err != nil {
			continue
		}
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			return true
		}
	}
	return false
}
