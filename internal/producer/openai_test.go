package producer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testClient(url string) *OpenAIClient {
	return NewOpenAIClient(OpenAIConfig{
		APIKey:       "test-key",
		BaseURL:      url,
		Model:        "test-model",
		SystemPrompt: "be a planner",
		Timeout:      5 * time.Second,
	})
}

func TestGeneratePlanSendsSystemAndUserMessages(t *testing.T) {
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("auth = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "  the plan  "}},
			},
		})
	}))
	defer srv.Close()

	out, err := testClient(srv.URL).GeneratePlan(context.Background(), "build it")
	if err != nil {
		t.Fatalf("GeneratePlan failed: %v", err)
	}
	if out != "the plan" {
		t.Errorf("output = %q, want trimmed completion", out)
	}
	if len(gotReq.Messages) != 2 {
		t.Fatalf("expected system + user messages, got %d", len(gotReq.Messages))
	}
	if gotReq.Messages[0].Role != "system" || gotReq.Messages[1].Content != "build it" {
		t.Errorf("messages = %+v", gotReq.Messages)
	}
	if gotReq.Model != "test-model" {
		t.Errorf("model = %q", gotReq.Model)
	}
}

func TestGeneratePlanSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "model overloaded", "type": "server"},
		})
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).GeneratePlan(context.Background(), "x")
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestGeneratePlanRetriesOn429(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "ok"}},
			},
		})
	}))
	defer srv.Close()

	out, err := testClient(srv.URL).GeneratePlan(context.Background(), "x")
	if err != nil {
		t.Fatalf("GeneratePlan failed: %v", err)
	}
	if out != "ok" || calls != 2 {
		t.Errorf("out = %q, calls = %d", out, calls)
	}
}

func TestGeneratePlanRequiresAPIKey(t *testing.T) {
	c := NewOpenAIClient(OpenAIConfig{BaseURL: "http://localhost:0"})
	if _, err := c.GeneratePlan(context.Background(), "x"); err == nil {
		t.Fatal("expected error without api key")
	}
}

func TestStaticProducerSequence(t *testing.T) {
	p := NewStaticProducer("first", "second")

	for i, want := range []string{"first", "second"} {
		got, err := p.GeneratePlan(context.Background(), "prompt")
		if err != nil {
			t.Fatalf("call %d failed: %v", i, err)
		}
		if got != want {
			t.Errorf("call %d = %q, want %q", i, got, want)
		}
	}
	if _, err := p.GeneratePlan(context.Background(), "prompt"); err == nil {
		t.Fatal("expected exhaustion error")
	}
	if p.Calls() != 2 {
		t.Errorf("calls = %d", p.Calls())
	}
}
