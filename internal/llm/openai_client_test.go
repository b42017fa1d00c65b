// ABOUTME: Tests for the OpenAI client against a local fake API server
// ABOUTME: Covers chat completion, embeddings, retries and student info extraction
package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newFakeAPI(t *testing.T, handler http.HandlerFunc) *OpenAIClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewOpenAIClientWithConfig(&ClientConfig{
		APIKey:      "test-key",
		BaseURL:     srv.URL + "/v1",
		MaxRetries:  2,
		RetryDelay:  time.Millisecond,
		CallTimeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewOpenAIClientWithConfig() error = %v", err)
	}
	return client
}

func chatReply(content string) map[string]interface{} {
	return map[string]interface{}{
		"id":     "chatcmpl-test",
		"object": "chat.completion",
		"model":  DefaultChatModel,
		"choices": []map[string]interface{}{
			{"index": 0, "message": map[string]string{"role": "assistant", "content": content}, "finish_reason": "stop"},
		},
	}
}

func TestNewOpenAIClient_RequiresKey(t *testing.T) {
	if _, err := NewOpenAIClient(""); err == nil {
		t.Error("NewOpenAIClient(\"\") should fail")
	}
}

func TestOpenAIClient_Complete(t *testing.T) {
	var gotFormat string
	client := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Model          string `json:"model"`
			ResponseFormat *struct {
				Type string `json:"type"`
			} `json:"response_format"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.ResponseFormat != nil {
			gotFormat = req.ResponseFormat.Type
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chatReply(`{"label": "math_expert"}`))
	})

	got, err := client.Complete(context.Background(), "system", "user", CompletionOptions{JSON: true})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got != `{"label": "math_expert"}` {
		t.Errorf("Complete() = %q", got)
	}
	if gotFormat != "json_object" {
		t.Errorf("response_format = %q, want json_object", gotFormat)
	}
}

func TestOpenAIClient_RetriesServerErrors(t *testing.T) {
	var calls int32
	client := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error": {"message": "overloaded", "type": "server_error"}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chatReply("listo"))
	})

	got, err := client.Complete(context.Background(), "system", "user", CompletionOptions{})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got != "listo" {
		t.Errorf("Complete() = %q, want listo", got)
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Errorf("calls = %d, want 3", n)
	}
}

func TestOpenAIClient_NoRetryOnAuthError(t *testing.T) {
	var calls int32
	client := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "bad key", "type": "invalid_request_error"}}`))
	})

	if _, err := client.Complete(context.Background(), "system", "user", CompletionOptions{}); err == nil {
		t.Fatal("Complete() should fail")
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("calls = %d, want 1", n)
	}
}

func TestOpenAIClient_GenerateEmbedding(t *testing.T) {
	client := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/embeddings") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"object": "list",
			"model":  string(DefaultEmbeddingModel),
			"data": []map[string]interface{}{
				{"object": "embedding", "index": 0, "embedding": []float32{0.5, -0.25, 1}},
			},
		})
	})

	got, err := client.GenerateEmbedding(context.Background(), "teorema de Pitágoras")
	if err != nil {
		t.Fatalf("GenerateEmbedding() error = %v", err)
	}
	want := []float64{0.5, -0.25, 1}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("embedding[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestOpenAIClient_ExtractStudentInfo(t *testing.T) {
	client := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chatReply(`{"name": "Ana", "level": "intermedio", "difficulty_areas": ["integrales"]}`))
	})

	info, err := client.ExtractStudentInfo(context.Background(), "Soy Ana y me cuestan las integrales")
	if err != nil {
		t.Fatalf("ExtractStudentInfo() error = %v", err)
	}
	if info["name"] != "Ana" || info["level"] != "intermedio" {
		t.Errorf("info = %v", info)
	}
	areas, ok := info["difficulty_areas"].([]interface{})
	if !ok || len(areas) != 1 || areas[0] != "integrales" {
		t.Errorf("difficulty_areas = %v", info["difficulty_areas"])
	}
}

func TestOpenAIClient_ContextCancelled(t *testing.T) {
	client := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chatReply("tarde"))
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := client.Complete(ctx, "system", "user", CompletionOptions{}); err == nil {
		t.Error("Complete() should fail with a cancelled context")
	}
}

func TestStripCodeFence(t *testing.T) {
	tests := []struct{ in, want string }{
		{`{"a": 1}`, `{"a": 1}`},
		{"```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"```\n{\"a\": 1}\n```", `{"a": 1}`},
	}
	for _, tt := range tests {
		if got := stripCodeFence(tt.in); got != tt.want {
			t.Errorf("stripCodeFence(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
