package models

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mindwell-app/speechcore/internal/speech"
)

// ModelPaths is the resolved on-disk layout of one model. It is built
// once by Resolve and read-only afterwards.
type ModelPaths struct {
	ID  string
	Dir string

	// Transducer sub-files (speech-to-text).
	Encoder string
	Decoder string
	Joiner  string
	Tokens  string

	// Single-file models (text-to-speech ONNX, chat GGUF).
	Model string
}

// Resolve verifies the artifact layout for info and returns its paths.
// Archives that were downloaded but not yet unpacked are extracted
// first; an already-extracted directory is used as-is and the archive
// is never deleted. A missing required sub-file yields an error
// wrapping speech.ErrNotFound that names the file.
func (f *Fetcher) Resolve(info ModelInfo) (ModelPaths, error) {
	if info.Archive {
		dir := filepath.Join(f.dir, info.ExtractedDir())
		if stat, err := os.Stat(dir); err != nil || !stat.IsDir() {
			archive := f.ArtifactPath(info)
			if _, err := os.Stat(archive); err != nil {
				return ModelPaths{}, fmt.Errorf("%w: %s", speech.ErrNotFound, archive)
			}
			if err := extractTarGz(archive, f.dir); err != nil {
				return ModelPaths{}, fmt.Errorf("extracting %s: %w", info.FileName, err)
			}
		}
	}

	switch info.Kind {
	case KindSTT:
		return f.resolveTransducer(info)
	case KindTTS:
		return f.resolveTTS(info)
	case KindChat:
		return f.resolveFile(info)
	default:
		return ModelPaths{}, fmt.Errorf("unknown model kind %q", info.Kind)
	}
}

// resolveTransducer locates the encoder/decoder/joiner networks and the
// token table inside an extracted transducer directory. Sub-file names
// carry quantization suffixes, so each is matched by glob.
func (f *Fetcher) resolveTransducer(info ModelInfo) (ModelPaths, error) {
	dir := filepath.Join(f.dir, info.ExtractedDir())
	p := ModelPaths{ID: info.ID, Dir: dir}

	var err error
	if p.Encoder, err = globOne(dir, "encoder*.onnx"); err != nil {
		return ModelPaths{}, err
	}
	if p.Decoder, err = globOne(dir, "decoder*.onnx"); err != nil {
		return ModelPaths{}, err
	}
	if p.Joiner, err = globOne(dir, "joiner*.onnx"); err != nil {
		return ModelPaths{}, err
	}
	if p.Tokens, err = requireFile(filepath.Join(dir, "tokens.txt")); err != nil {
		return ModelPaths{}, err
	}
	return p, nil
}

// resolveTTS locates the VITS network and token table.
func (f *Fetcher) resolveTTS(info ModelInfo) (ModelPaths, error) {
	dir := filepath.Join(f.dir, info.ExtractedDir())
	p := ModelPaths{ID: info.ID, Dir: dir}

	var err error
	if p.Model, err = globOne(dir, "*.onnx"); err != nil {
		return ModelPaths{}, err
	}
	if p.Tokens, err = requireFile(filepath.Join(dir, "tokens.txt")); err != nil {
		return ModelPaths{}, err
	}
	return p, nil
}

// resolveFile checks a plain single-file artifact.
func (f *Fetcher) resolveFile(info ModelInfo) (ModelPaths, error) {
	path := f.ArtifactPath(info)
	if _, err := requireFile(path); err != nil {
		return ModelPaths{}, err
	}
	return ModelPaths{ID: info.ID, Dir: f.dir, Model: path}, nil
}

// globOne returns the single file in dir matching pattern.
func globOne(dir, pattern string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("%w: %s", speech.ErrNotFound, filepath.Join(dir, pattern))
	}
	if len(matches) > 1 {
		return "", fmt.Errorf("ambiguous model layout: %d files match %s in %s", len(matches), pattern, dir)
	}
	return matches[0], nil
}

// requireFile returns path if it exists as a non-empty regular file.
func requireFile(path string) (string, error) {
	stat, err := os.Stat(path)
	if err != nil || stat.IsDir() || stat.Size() == 0 {
		return "", fmt.Errorf("%w: %s", speech.ErrNotFound, path)
	}
	return path, nil
}
