// Package models locates, downloads, and verifies the on-device model
// artifacts used by the speech pipeline: the transducer speech-to-text
// archive, the VITS text-to-speech archive, and the GGUF chat model.
package models

import "strings"

// Kind identifies what a model is used for.
type Kind string

const (
	KindSTT  Kind = "stt"
	KindTTS  Kind = "tts"
	KindChat Kind = "chat"
)

// ModelInfo describes one downloadable model artifact.
type ModelInfo struct {
	ID       string // unique identifier: "zipformer-en"
	Kind     Kind   // stt, tts, or chat
	Name     string // display name: "Zipformer EN (streaming transducer)"
	FileName string // file or archive name under the models directory
	URL      string // download URL
	Size     int64  // approximate size in bytes, for progress display
	Archive  bool   // .tar.gz that extracts into a sibling directory
}

// ExtractedDir returns the directory name an archive unpacks into,
// or "" for plain-file artifacts.
func (m ModelInfo) ExtractedDir() string {
	if !m.Archive {
		return ""
	}
	return strings.TrimSuffix(m.FileName, ".tar.gz")
}

// Catalog lists every model the pipeline knows how to fetch.
var Catalog = []ModelInfo{
	{
		ID:       "zipformer-en",
		Kind:     KindSTT,
		Name:     "Zipformer EN (transducer)",
		FileName: "sherpa-onnx-zipformer-en-2023-06-26.tar.gz",
		URL:      "https://github.com/k2-fsa/sherpa-onnx/releases/download/asr-models/sherpa-onnx-zipformer-en-2023-06-26.tar.gz",
		Size:     280 * 1024 * 1024,
		Archive:  true,
	},
	{
		ID:       "vits-piper-en-amy",
		Kind:     KindTTS,
		Name:     "Piper EN Amy (VITS)",
		FileName: "vits-piper-en_US-amy-low.tar.gz",
		URL:      "https://github.com/k2-fsa/sherpa-onnx/releases/download/tts-models/vits-piper-en_US-amy-low.tar.gz",
		Size:     80 * 1024 * 1024,
		Archive:  true,
	},
	{
		ID:       "chat-qwen2.5-0.5b",
		Kind:     KindChat,
		Name:     "Qwen2.5 0.5B Instruct (GGUF)",
		FileName: "qwen2.5-0.5b-instruct-q4_k_m.gguf",
		URL:      "https://huggingface.co/Qwen/Qwen2.5-0.5B-Instruct-GGUF/resolve/main/qwen2.5-0.5b-instruct-q4_k_m.gguf",
		Size:     386 * 1024 * 1024,
		Archive:  false,
	},
}

// Get returns the catalog entry with the given ID.
func Get(id string) (ModelInfo, bool) {
	for _, m := range Catalog {
		if m.ID == id {
			return m, true
		}
	}
	return ModelInfo{}, false
}

// ByKind returns all catalog entries of one kind.
func ByKind(kind Kind) []ModelInfo {
	var out []ModelInfo
	for _, m := range Catalog {
		if m.Kind == kind {
			out = append(out, m)
		}
	}
	return out
}

// DefaultID returns the default model for a kind, or "" if none exists.
func DefaultID(kind Kind) string {
	for _, m := range Catalog {
		if m.Kind == kind {
			return m.ID
		}
	}
	return ""
}
