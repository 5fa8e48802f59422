// Package stt wraps an offline transducer speech recognizer behind an
// explicit initialize/transcribe/close lifecycle. The native engine is
// loaded at most once per Recognizer; each transcription uses a
// transient decode stream that is released on every exit path.
package stt

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/mindwell-app/speechcore/internal/speech"
)

// Config points the recognizer at the transducer sub-files.
type Config struct {
	Encoder    string
	Decoder    string
	Joiner     string
	Tokens     string
	SampleRate int // rate the model expects, typically 16000
	NumThreads int
}

// decodeBackend owns one loaded native model and mints per-call streams.
type decodeBackend interface {
	NewStream() (decodeStream, error)
	Release()
}

// decodeStream is a single-use native decoding stream.
type decodeStream interface {
	AcceptWaveform(sampleRate int, samples []float32)
	Decode() (string, error)
	Release()
}

// Recognizer converts audio sample buffers to text. It owns the native
// model handle; construct it where the pipeline is wired and share the
// one instance rather than loading the model twice.
type Recognizer struct {
	cfg Config

	mu      sync.Mutex
	backend decodeBackend

	// newBackend is swapped in tests to avoid loading native models.
	newBackend func(Config) (decodeBackend, error)
}

// New creates an uninitialized Recognizer. No native resources are
// acquired until Initialize.
func New(cfg Config) *Recognizer {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16000
	}
	if cfg.NumThreads == 0 {
		cfg.NumThreads = 2
	}
	return &Recognizer{cfg: cfg, newBackend: newSherpaBackend}
}

// Initialize loads the native model exactly once. Calling it again on a
// live Recognizer logs and returns nil. Missing sub-files surface as an
// error wrapping speech.ErrNotFound before any native load is attempted.
func (r *Recognizer) Initialize() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.backend != nil {
		slog.Debug("recognizer already initialized, skipping")
		return nil
	}

	for _, path := range []string{r.cfg.Encoder, r.cfg.Decoder, r.cfg.Joiner, r.cfg.Tokens} {
		if path == "" {
			return fmt.Errorf("stt: incomplete model config: %w", speech.ErrNotFound)
		}
	}

	b, err := r.newBackend(r.cfg)
	if err != nil {
		return fmt.Errorf("stt: load model: %w", err)
	}
	r.backend = b

	slog.Info("recognizer initialized", "encoder", r.cfg.Encoder, "sampleRate", r.cfg.SampleRate)
	return nil
}

// Transcribe decodes one utterance worth of mono float32 samples to
// text. The per-call decode stream is released whether decoding
// succeeds or fails. Decode failures wrap speech.ErrInference; there
// are no retries.
func (r *Recognizer) Transcribe(samples []float32, sampleRate int) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.backend == nil {
		return "", fmt.Errorf("stt: transcribe: %w", speech.ErrNotInitialized)
	}
	if sampleRate <= 0 {
		return "", fmt.Errorf("stt: invalid sample rate %d", sampleRate)
	}

	stream, err := r.backend.NewStream()
	if err != nil {
		return "", fmt.Errorf("stt: create stream: %w: %v", speech.ErrInference, err)
	}
	defer stream.Release()

	stream.AcceptWaveform(sampleRate, samples)

	text, err := stream.Decode()
	if err != nil {
		return "", fmt.Errorf("stt: decode: %w: %v", speech.ErrInference, err)
	}
	return strings.TrimSpace(text), nil
}

// Close releases the native model. It is safe to call any number of
// times, including on a Recognizer that was never initialized.
func (r *Recognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.backend != nil {
		r.backend.Release()
		r.backend = nil
	}
	return nil
}
