package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/mindwell-app/speechcore/internal/speech"
)

func TestGenerateBeforeInitialize(t *testing.T) {
	c := New(Config{})
	_, err := c.Generate(context.Background(), "hello")
	if !errors.Is(err, speech.ErrNotInitialized) {
		t.Fatalf("Generate() error = %v, want ErrNotInitialized", err)
	}
}

func TestInitializeMissingArtifact(t *testing.T) {
	c := New(Config{ModelPath: filepath.Join(t.TempDir(), "missing.gguf")})
	if err := c.Initialize(); !errors.Is(err, speech.ErrNotFound) {
		t.Fatalf("Initialize() error = %v, want ErrNotFound", err)
	}
}

func TestGenerate(t *testing.T) {
	var gotReq generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/version" {
			w.WriteHeader(http.StatusOK)
			return
		}
		if r.URL.Path != "/api/generate" {
			t.Errorf("path = %q, want /api/generate", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		json.NewEncoder(w).Encode(generateResponse{Response: "  One mindful breath at a time.  ", Done: true})
	}))
	defer srv.Close()

	gguf := filepath.Join(t.TempDir(), "model.gguf")
	if err := os.WriteFile(gguf, []byte("gguf"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := New(Config{BaseURL: srv.URL, Model: "qwen2.5:0.5b", ModelPath: gguf, MaxTokens: 64})
	if err := c.Initialize(); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	defer c.Close()

	reply, err := c.Generate(context.Background(), "suggest a short meditation")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if reply != "One mindful breath at a time." {
		t.Errorf("Generate() = %q", reply)
	}
	if gotReq.Model != "qwen2.5:0.5b" {
		t.Errorf("request model = %q", gotReq.Model)
	}
	if gotReq.Stream {
		t.Error("request should not ask for streaming")
	}
	if gotReq.Options.NumPredict != 64 {
		t.Errorf("num_predict = %d, want 64", gotReq.Options.NumPredict)
	}
}

func TestGenerateHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	if err := c.Initialize(); err != nil {
		t.Fatal(err)
	}
	_, err := c.Generate(context.Background(), "hello")
	if !errors.Is(err, speech.ErrInference) {
		t.Fatalf("Generate() error = %v, want ErrInference", err)
	}
}

func TestGenerateServerReportedError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(generateResponse{Error: "context window exceeded"})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	if err := c.Initialize(); err != nil {
		t.Fatal(err)
	}
	_, err := c.Generate(context.Background(), "hello")
	if !errors.Is(err, speech.ErrInference) {
		t.Fatalf("Generate() error = %v, want ErrInference", err)
	}
}

func TestInitializeEndpointUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	srv.Close()

	c := New(Config{BaseURL: srv.URL})
	if err := c.Initialize(); err == nil {
		t.Fatal("Initialize() against a dead endpoint should fail")
	}

	// Failed Initialize leaves the completer uninitialized.
	if _, err := c.Generate(context.Background(), "hi"); !errors.Is(err, speech.ErrNotInitialized) {
		t.Errorf("Generate() error = %v, want ErrNotInitialized", err)
	}
}

func TestInitializeAndCloseIdempotent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})

	if err := c.Close(); err != nil {
		t.Fatalf("Close() before init error = %v", err)
	}
	if err := c.Initialize(); err != nil {
		t.Fatal(err)
	}
	if err := c.Initialize(); err != nil {
		t.Fatalf("second Initialize() error = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}

	if _, err := c.Generate(context.Background(), "hi"); !errors.Is(err, speech.ErrNotInitialized) {
		t.Errorf("Generate() after Close error = %v, want ErrNotInitialized", err)
	}
}
