package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MikeSquared-Agency/contextbridge/internal/credential"
	"github.com/MikeSquared-Agency/contextbridge/internal/llm"
)

func TestGenerate_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta/models/gemini-2.5-flash:generateContent" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "test-key" {
			t.Errorf("expected x-goog-api-key test-key, got %q", r.Header.Get("x-goog-api-key"))
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("expected Content-Type application/json, got %q", r.Header.Get("Content-Type"))
		}

		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if len(req.Contents) != 1 || len(req.Contents[0].Parts) != 1 || req.Contents[0].Parts[0].Text != "hello" {
			t.Errorf("unexpected contents: %+v", req.Contents)
		}

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{
					"content": map[string]any{
						"role":  "model",
						"parts": []map[string]any{{"text": "wor"}, {"text": "ld"}},
					},
					"finishReason": "STOP",
				},
			},
		})
	}))
	defer server.Close()

	c := NewClient(server.URL+"/", time.Second)

	result, err := c.Generate(context.Background(), "gemini-2.5-flash", "hello", credential.Credential("test-key"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "world" {
		t.Errorf("expected 'world', got %q", result)
	}
}

func TestGenerate_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"invalid key", http.StatusBadRequest, nil},
		{"forbidden", http.StatusForbidden, llm.ErrUnauthorized},
		{"quota", http.StatusTooManyRequests, llm.ErrQuotaExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				json.NewEncoder(w).Encode(map[string]any{
					"error": map[string]any{
						"code":    tt.status,
						"message": "something went wrong",
						"status":  "FAILED",
					},
				})
			}))
			defer server.Close()

			c := NewClient(server.URL, time.Second)
			_, err := c.Generate(context.Background(), "m", "hi", credential.Credential("k"))
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestGenerate_NonJSONError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream exploded"))
	}))
	defer server.Close()

	c := NewClient(server.URL, time.Second)
	_, err := c.Generate(context.Background(), "m", "hi", credential.Credential("k"))
	if err == nil {
		t.Fatal("expected error for 502 response")
	}
}

func TestGenerate_EmptyCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{"candidates": []any{}})
	}))
	defer server.Close()

	c := NewClient(server.URL, time.Second)
	_, err := c.Generate(context.Background(), "m", "hi", credential.Credential("k"))
	if err == nil {
		t.Fatal("expected error for empty candidates")
	}
}

func TestGenerate_BlockedPrompt(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"promptFeedback": map[string]any{"blockReason": "SAFETY"},
		})
	}))
	defer server.Close()

	c := NewClient(server.URL, time.Second)
	_, err := c.Generate(context.Background(), "m", "hi", credential.Credential("k"))
	if err == nil {
		t.Fatal("expected error for blocked prompt")
	}
}

func TestGenerate_EmptyText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []any{}}, "finishReason": "MAX_TOKENS"},
			},
		})
	}))
	defer server.Close()

	c := NewClient(server.URL, time.Second)
	_, err := c.Generate(context.Background(), "m", "hi", credential.Credential("k"))
	if err == nil {
		t.Fatal("expected error for empty text")
	}
}
