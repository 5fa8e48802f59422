package stt

import (
	"errors"

	sherpa "github.com/k2-fsa/sherpa-onnx-go/sherpa_onnx"
)

// sherpaBackend drives a sherpa-onnx offline transducer recognizer.
type sherpaBackend struct {
	rec *sherpa.OfflineRecognizer
}

// newSherpaBackend loads the transducer networks into ONNX Runtime.
func newSherpaBackend(cfg Config) (decodeBackend, error) {
	c := sherpa.OfflineRecognizerConfig{}
	c.FeatConfig.SampleRate = cfg.SampleRate
	c.FeatConfig.FeatureDim = 80
	c.ModelConfig.Transducer.Encoder = cfg.Encoder
	c.ModelConfig.Transducer.Decoder = cfg.Decoder
	c.ModelConfig.Transducer.Joiner = cfg.Joiner
	c.ModelConfig.Tokens = cfg.Tokens
	c.ModelConfig.NumThreads = cfg.NumThreads
	c.ModelConfig.ModelType = "transducer"
	c.DecodingMethod = "greedy_search"

	rec := sherpa.NewOfflineRecognizer(&c)
	if rec == nil {
		return nil, errors.New("sherpa-onnx refused recognizer config")
	}
	return &sherpaBackend{rec: rec}, nil
}

func (b *sherpaBackend) NewStream() (decodeStream, error) {
	st := sherpa.NewOfflineStream(b.rec)
	if st == nil {
		return nil, errors.New("sherpa-onnx stream allocation failed")
	}
	return &sherpaStream{rec: b.rec, st: st}, nil
}

func (b *sherpaBackend) Release() {
	sherpa.DeleteOfflineRecognizer(b.rec)
	b.rec = nil
}

// sherpaStream is one transient decoding stream.
type sherpaStream struct {
	rec *sherpa.OfflineRecognizer
	st  *sherpa.OfflineStream
}

func (s *sherpaStream) AcceptWaveform(sampleRate int, samples []float32) {
	s.st.AcceptWaveform(sampleRate, samples)
}

func (s *sherpaStream) Decode() (string, error) {
	s.rec.Decode(s.st)
	result := s.st.GetResult()
	if result == nil {
		return "", errors.New("no result from decode")
	}
	return result.Text, nil
}

func (s *sherpaStream) Release() {
	sherpa.DeleteOfflineStream(s.st)
	s.st = nil
}
