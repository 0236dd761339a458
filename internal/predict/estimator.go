package predict

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"treadle/internal/fingerprint"
)

const defaultEstimatorTimeout = 15 * time.Second

// EstimatorConfig captures the runtime settings required to reach a learned
// estimator service.
type EstimatorConfig struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

// Estimator is an HTTP client for a learned parameter estimator.
type Estimator struct {
	cfg        EstimatorConfig
	httpClient *http.Client
}

// EstimatorOption customizes the client.
type EstimatorOption func(*Estimator)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) EstimatorOption {
	return func(e *Estimator) {
		if client != nil {
			e.httpClient = client
		}
	}
}

// NewEstimator constructs an estimator client. Returns nil when no endpoint
// is configured so callers can pass the result straight to NewAdaptive.
func NewEstimator(cfg EstimatorConfig, opts ...EstimatorOption) *Estimator {
	cfg.Endpoint = strings.TrimSpace(cfg.Endpoint)
	if cfg.Endpoint == "" {
		return nil
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultEstimatorTimeout
	}
	est := &Estimator{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
	for _, opt := range opts {
		opt(est)
	}
	return est
}

type estimateRequest struct {
	Fingerprint fingerprint.Fingerprint `json:"fingerprint"`
}

// Estimate posts the fingerprint and decodes the recommendation. Any
// transport or payload problem is an error; the caller decides how to fall
// back.
func (e *Estimator) Estimate(ctx context.Context, fp fingerprint.Fingerprint) (Prediction, error) {
	var empty Prediction

	body, err := json.Marshal(estimateRequest{Fingerprint: fp})
	if err != nil {
		return empty, fmt.Errorf("estimator: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return empty, fmt.Errorf("estimator: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return empty, fmt.Errorf("estimator: request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return empty, fmt.Errorf("estimator: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return empty, fmt.Errorf("estimator: status %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var parsed Prediction
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return empty, fmt.Errorf("estimator: parse payload: %w", err)
	}
	parsed.ModelTier = strings.ToLower(strings.TrimSpace(parsed.ModelTier))
	if parsed.ModelTier == "" {
		return empty, errors.New("estimator: empty model tier")
	}
	if parsed.SearchWidth < 1 {
		parsed.SearchWidth = 1
	}
	if parsed.BatchSize < 1 {
		parsed.BatchSize = 1
	}
	parsed.Confidence = clamp01(parsed.Confidence)
	parsed.ExpectedQuality = clamp01(parsed.ExpectedQuality)
	parsed.Reasoning = strings.TrimSpace(parsed.Reasoning)
	if parsed.Reasoning == "" {
		parsed.Reasoning = "learned estimator recommendation"
	}
	return parsed, nil
}
