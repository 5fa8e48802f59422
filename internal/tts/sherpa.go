package tts

import (
	"errors"

	sherpa "github.com/k2-fsa/sherpa-onnx-go/sherpa_onnx"

	"github.com/mindwell-app/speechcore/internal/speech"
)

// sherpaTTS drives a sherpa-onnx offline VITS synthesizer.
type sherpaTTS struct {
	tts *sherpa.OfflineTts
}

func newSherpaTTS(cfg Config) (synthBackend, error) {
	c := sherpa.OfflineTtsConfig{}
	c.Model.Vits.Model = cfg.Model
	c.Model.Vits.Tokens = cfg.Tokens
	c.Model.Vits.DataDir = cfg.DataDir
	c.Model.NumThreads = cfg.NumThreads

	tts := sherpa.NewOfflineTts(&c)
	if tts == nil {
		return nil, errors.New("sherpa-onnx refused tts config")
	}
	return &sherpaTTS{tts: tts}, nil
}

func (b *sherpaTTS) Generate(text string, speakerID int, speed float32) (*speech.Audio, error) {
	generated := b.tts.Generate(text, speakerID, speed)
	if generated == nil {
		return nil, errors.New("generation produced no audio")
	}
	return &speech.Audio{
		Samples:    generated.Samples,
		SampleRate: generated.SampleRate,
	}, nil
}

func (b *sherpaTTS) Release() {
	sherpa.DeleteOfflineTts(b.tts)
	b.tts = nil
}
