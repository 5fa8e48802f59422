// Package audio captures microphone input and delivers it as mono
// float32 frames on a channel, ready for voice-activity segmentation.
package audio

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"

	"github.com/mindwell-app/speechcore/internal/speech"
)

// frameChanDepth bounds how far capture may run ahead of the consumer.
// The device callback never blocks; overflowing frames are dropped.
const frameChanDepth = 64

// Recorder captures audio from the default microphone and streams it
// on Frames(). Start/Stop may be cycled; Close is terminal.
type Recorder struct {
	ctx        *malgo.AllocatedContext
	sampleRate uint32
	channels   uint32

	mu        sync.Mutex
	device    *malgo.Device
	frames    chan []float32
	capturing bool
	closed    bool
	dropped   atomic.Uint64
}

// NewRecorder acquires the platform audio context. A refusal here or at
// Start maps to speech.ErrPermissionDenied: on every supported platform
// the practical cause is missing microphone permission.
func NewRecorder(sampleRate, channels uint32) (*Recorder, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("audio: init context: %w: %v", speech.ErrPermissionDenied, err)
	}
	return &Recorder{
		ctx:        ctx,
		sampleRate: sampleRate,
		channels:   channels,
		frames:     make(chan []float32, frameChanDepth),
	}, nil
}

// Frames returns the capture stream. Each element is one device-sized
// chunk of mono float32 samples.
func (r *Recorder) Frames() <-chan []float32 {
	return r.frames
}

// Start opens the capture device and begins streaming frames.
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return fmt.Errorf("audio: recorder closed")
	}
	if r.capturing {
		return fmt.Errorf("audio: already capturing")
	}

	deviceCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceCfg.Capture.Format = malgo.FormatF32
	deviceCfg.Capture.Channels = r.channels
	deviceCfg.SampleRate = r.sampleRate

	device, err := malgo.InitDevice(r.ctx.Context, deviceCfg, malgo.DeviceCallbacks{Data: r.onData})
	if err != nil {
		return fmt.Errorf("audio: init capture device: %w: %v", speech.ErrPermissionDenied, err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("audio: start capture: %w", err)
	}

	r.device = device
	r.capturing = true
	return nil
}

// Stop halts capture. The frame channel stays open so a later Start can
// resume on the same stream.
func (r *Recorder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
}

func (r *Recorder) stopLocked() {
	if r.device != nil {
		// Uninit blocks until the data callback has quiesced.
		r.device.Uninit()
		r.device = nil
	}
	r.capturing = false
}

// IsCapturing reports whether the device is currently running.
func (r *Recorder) IsCapturing() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.capturing
}

// Dropped returns how many frames were discarded because the consumer
// fell behind.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

// Close stops capture, closes the frame channel, and releases the audio
// context. Safe to call any number of times.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.stopLocked()
	r.closed = true
	close(r.frames)
	r.mu.Unlock()

	if err := r.ctx.Uninit(); err != nil {
		return fmt.Errorf("audio: uninit context: %w", err)
	}
	r.ctx.Free()
	return nil
}

// onData runs on the device's realtime thread; it must never block.
func (r *Recorder) onData(_, pSample []byte, frameCount uint32) {
	samples := decodeF32LE(pSample, frameCount*r.channels)
	if len(samples) == 0 {
		return
	}

	select {
	case r.frames <- samples:
	default:
		// Stop holds the lock while waiting for this callback to
		// quiesce, so only lock-free state is touched here.
		if n := r.dropped.Add(1); n%100 == 1 {
			slog.Warn("audio consumer behind, dropping frames", "dropped", n)
		}
	}
}

// decodeF32LE reinterprets little-endian float32 PCM bytes.
func decodeF32LE(data []byte, sampleCount uint32) []float32 {
	n := int(sampleCount)
	if max := len(data) / 4; n > max {
		n = max
	}
	samples := make([]float32, n)
	for i := 0; i < n; i++ {
		bits := binary.LittleEndian.Uint32(data[i*4 : i*4+4])
		samples[i] = math.Float32frombits(bits)
	}
	return samples
}
