package listener

import "math"

// VADConfig tunes the energy-based voice activity detector.
//
// Segmentation policy: speech starts once RMS energy stays above
// EnergyThreshold for MinSpeechMs, and ends once it stays below for
// MinSilenceMs. One start/end pair brackets one utterance segment.
type VADConfig struct {
	EnergyThreshold float64 // RMS on the float32 [-1,1] scale
	MinSpeechMs     int     // duration to confirm speech started
	MinSilenceMs    int     // duration to confirm speech ended
	SampleRate      int
}

// DefaultVADConfig returns conservative defaults for 16kHz microphone
// input.
func DefaultVADConfig() VADConfig {
	return VADConfig{
		EnergyThreshold: 0.015,
		MinSpeechMs:     200,
		MinSilenceMs:    700,
		SampleRate:      16000,
	}
}

// vadEvent marks an utterance boundary.
type vadEvent int

const (
	vadNone vadEvent = iota
	vadSpeechStart
	vadSpeechEnd
)

// vad tracks speech/silence run lengths across arbitrarily sized
// capture chunks. It is not safe for concurrent use; the listener loop
// owns it.
type vad struct {
	cfg            VADConfig
	speaking       bool
	speechSamples  int
	silenceSamples int
}

func newVAD(cfg VADConfig) *vad {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	return &vad{cfg: cfg}
}

// push classifies one capture chunk and reports any boundary crossed.
func (v *vad) push(chunk []float32) vadEvent {
	if len(chunk) == 0 {
		return vadNone
	}

	msToSamples := v.cfg.SampleRate / 1000

	if rms(chunk) >= v.cfg.EnergyThreshold {
		v.silenceSamples = 0
		v.speechSamples += len(chunk)
		if !v.speaking && v.speechSamples >= v.cfg.MinSpeechMs*msToSamples {
			v.speaking = true
			return vadSpeechStart
		}
	} else {
		v.speechSamples = 0
		v.silenceSamples += len(chunk)
		if v.speaking && v.silenceSamples >= v.cfg.MinSilenceMs*msToSamples {
			v.speaking = false
			return vadSpeechEnd
		}
	}
	return vadNone
}

func (v *vad) reset() {
	v.speaking = false
	v.speechSamples = 0
	v.silenceSamples = 0
}

// rms computes root-mean-square energy of a float32 chunk.
func rms(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}
