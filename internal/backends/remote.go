package backends

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shwetayenaji/Super-OTP-Predictor/internal/classify"
	"github.com/shwetayenaji/Super-OTP-Predictor/internal/features"
)

// RemoteConfig points at an HTTP inference service exposing POST /predict
// and, when Confidence is set, POST /predict_proba.
type RemoteConfig struct {
	URL        string
	APIKey     string
	Confidence bool
	Timeout    time.Duration
}

// Remote calls an HTTP inference service.
type Remote struct {
	url    string
	apiKey string
	client *http.Client
}

// RemoteWithConfidence is a Remote whose service also serves probabilities.
type RemoteWithConfidence struct {
	*Remote
}

// NewRemote returns a classifier for the service. The probability endpoint
// is only exposed when cfg.Confidence is set.
func NewRemote(cfg RemoteConfig) (classify.Predictor, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("remote classifier url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	r := &Remote{
		url:    strings.TrimSuffix(cfg.URL, "/"),
		apiKey: cfg.APIKey,
		client: &http.Client{Timeout: timeout},
	}
	if cfg.Confidence {
		return RemoteWithConfidence{r}, nil
	}
	return r, nil
}

type remoteRequest struct {
	Columns  []string `json:"columns"`
	Features []int    `json:"features"`
}

func (r *Remote) post(ctx context.Context, path string, v features.FeatureVector, out any) error {
	body, err := json.Marshal(remoteRequest{Columns: features.Names[:], Features: v[:]})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("inference connection error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("inference api error: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read inference response: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse inference response: %w", err)
	}
	return nil
}

func (r *Remote) Predict(ctx context.Context, v features.FeatureVector) (classify.Label, error) {
	var resp struct {
		Label *int `json:"label"`
	}
	if err := r.post(ctx, "/predict", v, &resp); err != nil {
		return 0, err
	}
	if resp.Label == nil {
		return 0, fmt.Errorf("inference response has no label")
	}
	return classify.Label(*resp.Label), nil
}

func (r RemoteWithConfidence) PredictProba(ctx context.Context, v features.FeatureVector) ([]float64, error) {
	var resp struct {
		Probabilities []float64 `json:"probabilities"`
	}
	if err := r.post(ctx, "/predict_proba", v, &resp); err != nil {
		return nil, err
	}
	return resp.Probabilities, nil
}
