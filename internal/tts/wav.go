package tts

import (
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/mindwell-app/speechcore/internal/speech"
)

// WriteWAV encodes audio as 16-bit mono PCM WAV. The writer must be
// seekable because the RIFF header is patched after the data chunk.
func WriteWAV(w io.WriteSeeker, a *speech.Audio) error {
	if a == nil || a.SampleRate <= 0 {
		return fmt.Errorf("tts: cannot encode empty audio")
	}

	enc := wav.NewEncoder(w, a.SampleRate, 16, 1, 1)

	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: a.SampleRate},
		SourceBitDepth: 16,
		Data:           make([]int, len(a.Samples)),
	}
	for i, s := range a.Samples {
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		buf.Data[i] = int(s * 32767)
	}

	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("tts: encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("tts: finalize wav: %w", err)
	}
	return nil
}
