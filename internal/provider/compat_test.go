package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCompatProviderGenerateText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("missing bearer auth header")
		}
		var body compatRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if body.Model != "test-model" {
			t.Errorf("model = %q, want test-model", body.Model)
		}
		resp := compatResponse{}
		resp.Choices = []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		}{{Message: struct {
			Content string `json:"content"`
		}{Content: "SELECT 1;"}}}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	p := NewCompatProvider("openrouter", "secret", "test-model", srv.URL)
	text, err := p.GenerateText(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, 0.2, 100)
	if err != nil {
		t.Fatalf("GenerateText error: %v", err)
	}
	if text != "SELECT 1;" {
		t.Errorf("got %q", text)
	}
}

func TestCompatProviderNoCredentials(t *testing.T) {
	p := NewCompatProvider("openrouter", "", "m", "http://example.invalid")
	if p.IsAvailable() {
		t.Fatal("expected unavailable with no API key")
	}
	_, err := p.GenerateText(context.Background(), nil, 0, 0)
	if err == nil {
		t.Fatal("expected error with no credentials")
	}
}

func TestCompatProviderRetryableStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewCompatProvider("cerebras", "secret", "m", srv.URL)
	_, err := p.GenerateText(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, 0, 0)
	if err == nil {
		t.Fatal("expected error")
	}
	var provErr *Error
	if !asError(err, &provErr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if !provErr.Retryable() {
		t.Error("429 should be retryable")
	}
}

func asError(err error, target **Error) bool {
	e, ok := err.(*Error)
	if ok {
		*target = e
	}
	return ok
}
