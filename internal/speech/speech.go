// Package speech holds the shared vocabulary of the pipeline: audio
// buffers exchanged between capture, recognition, and synthesis, plus
// the error kinds every adapter reports through.
package speech

import (
	"errors"
	"time"
)

// Error kinds shared by all model adapters. Callers match them with
// errors.Is; adapters wrap them with context via fmt.Errorf("...: %w").
var (
	// ErrNotFound reports a missing model artifact or required sub-file.
	ErrNotFound = errors.New("model artifact not found")

	// ErrNotInitialized reports a call issued before Initialize succeeded.
	ErrNotInitialized = errors.New("model not initialized")

	// ErrPermissionDenied reports refused microphone access.
	ErrPermissionDenied = errors.New("microphone permission denied")

	// ErrInference reports a native decode or synthesis failure.
	ErrInference = errors.New("inference failed")
)

// Audio is a buffer of mono float32 samples at a fixed sample rate.
type Audio struct {
	Samples    []float32
	SampleRate int
}

// Duration returns the playback length of the buffer.
func (a *Audio) Duration() time.Duration {
	if a == nil || a.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(a.Samples)) / float64(a.SampleRate) * float64(time.Second))
}
