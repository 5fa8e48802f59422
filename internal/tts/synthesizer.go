// Package tts wraps an offline VITS speech synthesizer with the same
// initialize/synthesize/close lifecycle the stt package uses for
// recognition.
package tts

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/mindwell-app/speechcore/internal/speech"
)

// Config points the synthesizer at the VITS network and token table.
type Config struct {
	Model      string
	Tokens     string
	DataDir    string // espeak-ng data for piper voices, optional
	NumThreads int
}

// synthBackend owns one loaded native voice model.
type synthBackend interface {
	Generate(text string, speakerID int, speed float32) (*speech.Audio, error)
	Release()
}

// Synthesizer renders text to mono float32 audio.
type Synthesizer struct {
	cfg Config

	mu      sync.Mutex
	backend synthBackend

	// newBackend is swapped in tests to avoid loading native models.
	newBackend func(Config) (synthBackend, error)
}

// New creates an uninitialized Synthesizer.
func New(cfg Config) *Synthesizer {
	if cfg.NumThreads == 0 {
		cfg.NumThreads = 2
	}
	return &Synthesizer{cfg: cfg, newBackend: newSherpaTTS}
}

// Initialize loads the voice model exactly once; repeat calls log and
// return nil. Missing artifact paths wrap speech.ErrNotFound.
func (s *Synthesizer) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.backend != nil {
		slog.Debug("synthesizer already initialized, skipping")
		return nil
	}

	if s.cfg.Model == "" || s.cfg.Tokens == "" {
		return fmt.Errorf("tts: incomplete model config: %w", speech.ErrNotFound)
	}

	b, err := s.newBackend(s.cfg)
	if err != nil {
		return fmt.Errorf("tts: load voice: %w", err)
	}
	s.backend = b

	slog.Info("synthesizer initialized", "model", s.cfg.Model)
	return nil
}

// Synthesize renders text as audio. speakerID selects the voice in
// multi-speaker models (0 for single-speaker); speed 1.0 is normal pace.
func (s *Synthesizer) Synthesize(text string, speakerID int, speed float32) (*speech.Audio, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.backend == nil {
		return nil, fmt.Errorf("tts: synthesize: %w", speech.ErrNotInitialized)
	}
	if speed <= 0 {
		speed = 1.0
	}

	audio, err := s.backend.Generate(text, speakerID, speed)
	if err != nil {
		return nil, fmt.Errorf("tts: generate: %w: %v", speech.ErrInference, err)
	}
	return audio, nil
}

// Close releases the native voice model. Safe to call repeatedly and on
// a Synthesizer that was never initialized.
func (s *Synthesizer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.backend != nil {
		s.backend.Release()
		s.backend = nil
	}
	return nil
}
