// Package chat adapts a locally served GGUF language model for the
// wellness assistant. Inference runs out of process (llama-server or
// an Ollama-compatible endpoint); this package owns the artifact check
// and the request lifecycle.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mindwell-app/speechcore/internal/speech"
)

const (
	defaultBaseURL   = "http://localhost:11434"
	defaultTimeout   = 30 * time.Second
	defaultMaxTokens = 256
)

// Config describes the local completion endpoint and the GGUF artifact
// backing it.
type Config struct {
	BaseURL     string  // Ollama-compatible endpoint
	Model       string  // model name the server advertises
	ModelPath   string  // GGUF file on disk; verified at Initialize when set
	MaxTokens   int     // completion length cap
	Temperature float64 // sampling temperature
	Timeout     time.Duration
}

// Completer generates chat completions against one local model.
type Completer struct {
	cfg Config

	mu     sync.Mutex
	client *http.Client
}

// New creates an uninitialized Completer.
func New(cfg Config) *Completer {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Completer{cfg: cfg}
}

// Initialize verifies the GGUF artifact and prepares the HTTP client.
// Repeat calls on a live Completer log and return nil.
func (c *Completer) Initialize() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		slog.Debug("chat completer already initialized, skipping")
		return nil
	}

	if c.cfg.ModelPath != "" {
		stat, err := os.Stat(c.cfg.ModelPath)
		if err != nil || stat.IsDir() || stat.Size() == 0 {
			return fmt.Errorf("chat: %w: %s", speech.ErrNotFound, c.cfg.ModelPath)
		}
	}

	client := &http.Client{Timeout: c.cfg.Timeout}

	// Any HTTP response proves the endpoint is serving; a bare
	// llama-server answers 404 here and that still counts.
	req, err := http.NewRequest(http.MethodGet, c.cfg.BaseURL+"/api/version", nil)
	if err != nil {
		return fmt.Errorf("chat: bad endpoint %q: %w", c.cfg.BaseURL, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("chat: endpoint %s unreachable: %w", c.cfg.BaseURL, err)
	}
	resp.Body.Close()

	c.client = client
	slog.Info("chat completer initialized", "endpoint", c.cfg.BaseURL, "model", c.cfg.Model)
	return nil
}

type generateRequest struct {
	Model   string `json:"model"`
	Prompt  string `json:"prompt"`
	Stream  bool   `json:"stream"`
	Options struct {
		Temperature float64 `json:"temperature"`
		NumPredict  int     `json:"num_predict"`
	} `json:"options"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// Generate returns the model's completion for prompt. Failures at the
// endpoint wrap speech.ErrInference.
func (c *Completer) Generate(ctx context.Context, prompt string) (string, error) {
	c.mu.Lock()
	client := c.client
	c.mu.Unlock()

	if client == nil {
		return "", fmt.Errorf("chat: generate: %w", speech.ErrNotInitialized)
	}

	req := generateRequest{Model: c.cfg.Model, Prompt: prompt, Stream: false}
	req.Options.Temperature = c.cfg.Temperature
	req.Options.NumPredict = c.cfg.MaxTokens

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("chat: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("chat: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("chat: %w: %v", speech.ErrInference, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("chat: %w: HTTP %d: %s", speech.ErrInference, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("chat: decode response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("chat: %w: %s", speech.ErrInference, out.Error)
	}
	return strings.TrimSpace(out.Response), nil
}

// Close drops the HTTP client. Safe to call repeatedly and before
// Initialize.
func (c *Completer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		c.client.CloseIdleConnections()
		c.client = nil
	}
	return nil
}
