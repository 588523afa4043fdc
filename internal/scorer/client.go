// Package scorer wraps the remote anomaly-scoring service. The model itself
// is a black box; the core only consumes its verdicts.
package scorer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

// Result is the scorer verdict for one metrics snapshot.
type Result struct {
	IsAnomaly   bool    `json:"is_anomaly"`
	Score       float64 `json:"score"`
	Probability float64 `json:"probability"`
}

// Scorer scores a metrics snapshot. A degraded or unreachable scorer is
// reported as an error; callers treat that cycle as non-anomalous.
type Scorer interface {
	Score(ctx context.Context, metrics map[string]float64) (Result, error)
}

// HTTPScorer posts snapshots to a remote scoring endpoint.
type HTTPScorer struct {
	baseURL    string
	scorePath  string
	httpClient *http.Client
}

// NewHTTPScorer constructs a client targeting the configured scoring service.
func NewHTTPScorer(baseURL, scorePath string, timeout time.Duration) *HTTPScorer {
	if scorePath == "" {
		scorePath = "/api/v1/score"
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &HTTPScorer{
		baseURL:    strings.TrimRight(baseURL, "/"),
		scorePath:  scorePath,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Score submits the snapshot and decodes the verdict. The probability is
// clamped into [0,1] so a misbehaving scorer cannot break the severity invariant.
func (c *HTTPScorer) Score(ctx context.Context, metrics map[string]float64) (Result, error) {
	if c == nil || c.baseURL == "" {
		return Result{}, fmt.Errorf("scorer not configured")
	}

	body, err := json.Marshal(map[string]any{"metrics": metrics})
	if err != nil {
		return Result{}, fmt.Errorf("marshal snapshot: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.scoreURL(), bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("scorer request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("scorer returned %s", resp.Status)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Result{}, fmt.Errorf("decode scorer response: %w", err)
	}

	if result.Probability < 0 {
		result.Probability = 0
	}
	if result.Probability > 1 {
		result.Probability = 1
	}
	return result, nil
}

func (c *HTTPScorer) scoreURL() string {
	cleaned := "/" + strings.TrimLeft(c.scorePath, "/")
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return c.baseURL + cleaned
	}
	u.Path = path.Join(u.Path, cleaned)
	return u.String()
}
