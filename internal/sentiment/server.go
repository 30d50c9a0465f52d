package sentiment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"marketmood/internal/domain"
)

const (
	defaultServerURL = "http://127.0.0.1:8000"
	defaultModel     = "ProsusAI/finbert"
	defaultTimeout   = 30 * time.Second
)

// ServerClassifier calls a text-classification inference server over HTTP.
// It speaks the common transformers serving shape: POST a JSON body with an
// "inputs" field and read back a list of {label, score} candidates, either
// flat or nested one level as some servers batch their output.
type ServerClassifier struct {
	baseURL string
	model   string
	client  *http.Client
}

// ServerOption configures a ServerClassifier.
type ServerOption func(*ServerClassifier)

// WithBaseURL sets the inference endpoint URL.
func WithBaseURL(url string) ServerOption {
	return func(s *ServerClassifier) {
		if url != "" {
			s.baseURL = strings.TrimSuffix(url, "/")
		}
	}
}

// WithModel sets the model name sent with each request.
func WithModel(model string) ServerOption {
	return func(s *ServerClassifier) {
		if model != "" {
			s.model = model
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) ServerOption {
	return func(s *ServerClassifier) {
		if d > 0 {
			s.client.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) ServerOption {
	return func(s *ServerClassifier) {
		if c != nil {
			s.client = c
		}
	}
}

// NewServerClassifier builds a classifier against an inference server.
func NewServerClassifier(opts ...ServerOption) *ServerClassifier {
	s := &ServerClassifier{
		baseURL: defaultServerURL,
		model:   defaultModel,
		client:  &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements Classifier.
func (s *ServerClassifier) Name() string { return "server:" + s.model }

type classifyRequest struct {
	Inputs string `json:"inputs"`
	Model  string `json:"model,omitempty"`
}

type labelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Classify implements Classifier.
func (s *ServerClassifier) Classify(ctx context.Context, text string) (Result, error) {
	if strings.TrimSpace(text) == "" {
		return Result{}, ErrEmptyText
	}

	body, err := json.Marshal(classifyRequest{Inputs: text, Model: s.model})
	if err != nil {
		return Result{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("classify request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("classifier status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	candidates, err := parseCandidates(data)
	if err != nil {
		return Result{}, err
	}
	return pickBest(candidates)
}

// parseCandidates accepts both [{"label":...}] and [[{"label":...}]] forms.
func parseCandidates(data []byte) ([]labelScore, error) {
	var nested [][]labelScore
	if err := json.Unmarshal(data, &nested); err == nil && len(nested) > 0 {
		return nested[0], nil
	}
	var flat []labelScore
	if err := json.Unmarshal(data, &flat); err == nil && len(flat) > 0 {
		return flat, nil
	}
	return nil, fmt.Errorf("unexpected classifier response: %s", strings.TrimSpace(string(data)))
}

func pickBest(candidates []labelScore) (Result, error) {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Score > best.Score {
			best = c
		}
	}
	label, err := parseLabel(best.Label)
	if err != nil {
		return Result{}, err
	}
	return Result{Label: label, Confidence: clamp01(best.Score)}, nil
}

func parseLabel(s string) (domain.SentimentLabel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "positive":
		return domain.SentimentPositive, nil
	case "negative":
		return domain.SentimentNegative, nil
	case "neutral":
		return domain.SentimentNeutral, nil
	default:
		return "", fmt.Errorf("unexpected sentiment label %q", s)
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
