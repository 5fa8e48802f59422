// Package listener runs the continuous capture loop: microphone frames
// are segmented into utterances by voice activity, each segment is
// transcribed, and results are delivered on a bounded channel.
package listener

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Source supplies capture frames. audio.Recorder satisfies this; tests
// substitute a scripted source.
type Source interface {
	Start() error
	Frames() <-chan []float32
	Stop()
	Close() error
}

// Transcriber converts one utterance segment to text. stt.Recognizer
// satisfies this.
type Transcriber interface {
	Transcribe(samples []float32, sampleRate int) (string, error)
}

// Utterance is one transcribed speech segment.
type Utterance struct {
	ID       string
	Text     string
	Duration time.Duration
}

// State tracks the listener lifecycle.
type State int32

const (
	StateUninitialized State = iota
	StateInitialized
	StateListening
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateListening:
		return "listening"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Config tunes segmentation and delivery.
type Config struct {
	SampleRate   int
	QueueDepth   int // bounded utterance queue; oldest entries drop when full
	PrerollMs    int // audio kept from before the detected speech start
	MaxSegmentMs int // hard cap per utterance; 0 means 30s
	VAD          VADConfig
}

// DefaultConfig returns the tuning used by the wellness app.
func DefaultConfig() Config {
	return Config{
		SampleRate:   16000,
		QueueDepth:   8,
		PrerollMs:    300,
		MaxSegmentMs: 30000,
		VAD:          DefaultVADConfig(),
	}
}

// Listener owns the capture loop.
//
// Lifecycle: Uninitialized -> Initialized (Initialize) -> Listening
// (Listen) -> Stopped (Close). Listen is valid from Initialized or
// Listening; Close is valid from any state and is terminal.
type Listener struct {
	cfg    Config
	source Source
	stt    Transcriber

	mu    sync.Mutex
	state State
	quit  chan struct{}
	wg    sync.WaitGroup

	out     chan Utterance
	dropped atomic.Uint64
}

// New wires a Listener. Nothing is acquired until Initialize.
func New(cfg Config, source Source, stt Transcriber) *Listener {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = 8
	}
	if cfg.PrerollMs < 0 {
		cfg.PrerollMs = 0
	}
	if cfg.MaxSegmentMs <= 0 {
		cfg.MaxSegmentMs = 30000
	}
	cfg.VAD.SampleRate = cfg.SampleRate
	return &Listener{
		cfg:    cfg,
		source: source,
		stt:    stt,
		state:  StateUninitialized,
		quit:   make(chan struct{}),
		out:    make(chan Utterance, cfg.QueueDepth),
	}
}

// State returns the current lifecycle state.
func (l *Listener) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Dropped reports how many utterances were discarded because the
// consumer lagged behind speech.
func (l *Listener) Dropped() uint64 {
	return l.dropped.Load()
}

// Initialize acquires microphone capture. Repeat calls on a live
// listener log and return nil; a stopped listener cannot be revived.
func (l *Listener) Initialize() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case StateInitialized, StateListening:
		slog.Debug("listener already initialized, skipping")
		return nil
	case StateStopped:
		return fmt.Errorf("listener: initialize from %s state", l.state)
	}

	if err := l.source.Start(); err != nil {
		return fmt.Errorf("listener: %w", err)
	}
	l.state = StateInitialized
	return nil
}

// Listen starts the segmentation loop and returns the utterance
// channel. Calling it again while listening returns the same channel.
// The channel closes when the listener is closed.
func (l *Listener) Listen() (<-chan Utterance, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case StateListening:
		return l.out, nil
	case StateInitialized:
		l.state = StateListening
		l.wg.Add(1)
		go l.run()
		return l.out, nil
	default:
		return nil, fmt.Errorf("listener: listen from %s state", l.state)
	}
}

// Close stops capture and ends the loop. In-flight transcription of the
// current segment completes before the utterance channel closes. Safe
// to call any number of times from any state; the listener is done
// afterwards.
func (l *Listener) Close() error {
	l.mu.Lock()
	if l.state == StateStopped {
		l.mu.Unlock()
		return nil
	}
	wasListening := l.state == StateListening
	started := l.state == StateInitialized || wasListening
	l.state = StateStopped
	l.mu.Unlock()

	if started {
		l.source.Stop()
	}
	close(l.quit)
	l.wg.Wait()
	close(l.out)
	return l.source.Close()
}

// run is the capture loop: preroll ring, VAD boundaries, per-segment
// transcription.
func (l *Listener) run() {
	defer l.wg.Done()

	det := newVAD(l.cfg.VAD)
	prerollMax := l.cfg.PrerollMs * l.cfg.SampleRate / 1000
	segmentMax := l.cfg.MaxSegmentMs * l.cfg.SampleRate / 1000

	var preroll []float32
	var segment []float32
	inSegment := false

	frames := l.source.Frames()
	for {
		select {
		case <-l.quit:
			return
		case chunk, ok := <-frames:
			if !ok {
				return
			}

			if inSegment {
				segment = append(segment, chunk...)
			} else {
				preroll = append(preroll, chunk...)
				if len(preroll) > prerollMax {
					preroll = preroll[len(preroll)-prerollMax:]
				}
			}

			switch det.push(chunk) {
			case vadSpeechStart:
				if !inSegment {
					inSegment = true
					segment = append(segment[:0], preroll...)
					preroll = preroll[:0]
				}
			case vadSpeechEnd:
				if inSegment {
					l.finishSegment(segment)
					segment = nil
					inSegment = false
				}
			}

			// A segment that never goes silent is cut at the cap so one
			// long monologue cannot starve delivery.
			if inSegment && len(segment) >= segmentMax {
				l.finishSegment(segment)
				segment = nil
				inSegment = false
				det.reset()
			}
		}
	}
}

// finishSegment transcribes one utterance segment and queues the
// result. A failed or empty transcription never ends the session.
func (l *Listener) finishSegment(segment []float32) {
	duration := time.Duration(len(segment)) * time.Second / time.Duration(l.cfg.SampleRate)

	text, err := l.stt.Transcribe(segment, l.cfg.SampleRate)
	if err != nil {
		slog.Warn("utterance transcription failed", "duration", duration, "err", err)
		return
	}
	if text == "" {
		slog.Debug("utterance decoded to empty text", "duration", duration)
		return
	}

	l.deliver(Utterance{
		ID:       uuid.NewString(),
		Text:     text,
		Duration: duration,
	})
}

// deliver enqueues with drop-oldest backpressure: when the consumer is
// slower than speech, the stalest utterance is discarded first.
func (l *Listener) deliver(u Utterance) {
	for {
		select {
		case l.out <- u:
			return
		default:
		}
		select {
		case <-l.out:
			l.dropped.Add(1)
			slog.Warn("utterance queue full, dropping oldest", "dropped", l.dropped.Load())
		default:
		}
	}
}
