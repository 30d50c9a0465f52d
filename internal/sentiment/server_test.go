package sentiment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"marketmood/internal/domain"
)

func TestServerClassifierFlatResponse(t *testing.T) {
	var gotBody classifyRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"label":"positive","score":0.93},{"label":"negative","score":0.04},{"label":"neutral","score":0.03}]`))
	}))
	defer srv.Close()

	c := NewServerClassifier(WithBaseURL(srv.URL), WithModel("test-model"))
	res, err := c.Classify(context.Background(), "earnings beat expectations")
	if err != nil {
		t.Fatalf("Classify() error: %v", err)
	}
	if res.Label != domain.SentimentPositive {
		t.Errorf("label = %v, want positive", res.Label)
	}
	if res.Confidence != 0.93 {
		t.Errorf("confidence = %v, want 0.93", res.Confidence)
	}
	if gotBody.Inputs != "earnings beat expectations" {
		t.Errorf("inputs = %q", gotBody.Inputs)
	}
	if gotBody.Model != "test-model" {
		t.Errorf("model = %q, want test-model", gotBody.Model)
	}
}

func TestServerClassifierNestedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[[{"label":"NEGATIVE","score":0.88},{"label":"positive","score":0.07}]]`))
	}))
	defer srv.Close()

	c := NewServerClassifier(WithBaseURL(srv.URL))
	res, err := c.Classify(context.Background(), "guidance cut sharply")
	if err != nil {
		t.Fatalf("Classify() error: %v", err)
	}
	if res.Label != domain.SentimentNegative {
		t.Errorf("label = %v, want negative", res.Label)
	}
}

func TestServerClassifierPicksHighestScore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"label":"neutral","score":0.40},{"label":"negative","score":0.45},{"label":"positive","score":0.15}]`))
	}))
	defer srv.Close()

	c := NewServerClassifier(WithBaseURL(srv.URL))
	res, err := c.Classify(context.Background(), "mixed quarter")
	if err != nil {
		t.Fatalf("Classify() error: %v", err)
	}
	if res.Label != domain.SentimentNegative {
		t.Errorf("label = %v, want negative", res.Label)
	}
}

func TestServerClassifierEmptyText(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer srv.Close()

	c := NewServerClassifier(WithBaseURL(srv.URL))
	for _, text := range []string{"", "   ", "\n\t"} {
		if _, err := c.Classify(context.Background(), text); !errors.Is(err, ErrEmptyText) {
			t.Errorf("Classify(%q) error = %v, want ErrEmptyText", text, err)
		}
	}
	if requests != 0 {
		t.Errorf("server saw %d requests, want 0", requests)
	}
}

func TestServerClassifierErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model is loading", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewServerClassifier(WithBaseURL(srv.URL))
	_, err := c.Classify(context.Background(), "anything")
	if err == nil {
		t.Fatal("Classify() error = nil, want status error")
	}
	if !strings.Contains(err.Error(), "503") || !strings.Contains(err.Error(), "model is loading") {
		t.Errorf("error %q should carry status and body", err)
	}
}

func TestServerClassifierUnknownLabel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"label":"LABEL_1","score":0.99}]`))
	}))
	defer srv.Close()

	c := NewServerClassifier(WithBaseURL(srv.URL))
	if _, err := c.Classify(context.Background(), "anything"); err == nil {
		t.Fatal("Classify() error = nil, want unexpected label error")
	}
}

func TestServerClassifierMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"detail":"not a list"}`))
	}))
	defer srv.Close()

	c := NewServerClassifier(WithBaseURL(srv.URL))
	if _, err := c.Classify(context.Background(), "anything"); err == nil {
		t.Fatal("Classify() error = nil, want parse error")
	}
}
