package models

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// Fetcher downloads model artifacts into a local models directory and
// extracts archives next to them. One download runs at a time per Fetcher.
type Fetcher struct {
	dir      string
	client   *http.Client
	progress io.Writer // progress lines; defaults to io.Discard
}

// NewFetcher creates a Fetcher rooted at dir, creating it if needed.
func NewFetcher(dir string) (*Fetcher, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating models dir: %w", err)
	}
	return &Fetcher{
		dir:      dir,
		client:   http.DefaultClient,
		progress: io.Discard,
	}, nil
}

// SetProgress directs human-readable download progress to w.
func (f *Fetcher) SetProgress(w io.Writer) {
	if w == nil {
		w = io.Discard
	}
	f.progress = w
}

// Dir returns the models directory.
func (f *Fetcher) Dir() string { return f.dir }

// ArtifactPath returns where the raw artifact (file or archive) lives.
func (f *Fetcher) ArtifactPath(info ModelInfo) string {
	return filepath.Join(f.dir, info.FileName)
}

// Present reports whether the artifact is already usable on disk:
// a non-empty file, or for archives an already-extracted directory.
func (f *Fetcher) Present(info ModelInfo) bool {
	if info.Archive {
		stat, err := os.Stat(filepath.Join(f.dir, info.ExtractedDir()))
		return err == nil && stat.IsDir()
	}
	stat, err := os.Stat(f.ArtifactPath(info))
	return err == nil && stat.Size() > 0
}

// Fetch downloads the artifact if missing and extracts archives.
// It returns the path a consumer should resolve models from: the
// extracted directory for archives, the file itself otherwise.
func (f *Fetcher) Fetch(ctx context.Context, info ModelInfo) (string, error) {
	dest := f.ArtifactPath(info)
	usable := dest
	if info.Archive {
		usable = filepath.Join(f.dir, info.ExtractedDir())
	}

	if f.Present(info) {
		slog.Debug("model already present", "id", info.ID, "path", usable)
		return usable, nil
	}

	// The archive may exist from an earlier run that died before
	// extraction. Only download when the artifact itself is missing.
	if stat, err := os.Stat(dest); err != nil || stat.Size() == 0 {
		if err := f.download(ctx, info, dest); err != nil {
			return "", err
		}
	}

	if info.Archive {
		if err := extractTarGz(dest, f.dir); err != nil {
			return "", fmt.Errorf("extracting %s: %w", info.FileName, err)
		}
	}

	return usable, nil
}

// download streams the artifact to dest via a temp file so a partial
// download never masquerades as a complete model.
func (f *Fetcher) download(ctx context.Context, info ModelInfo, dest string) error {
	slog.Info("downloading model", "id", info.ID, "url", info.URL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, info.URL, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("downloading %s: %w", info.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("downloading %s: HTTP %d", info.ID, resp.StatusCode)
	}

	tmpPath := dest + ".tmp"
	out, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	total := resp.ContentLength
	if total <= 0 {
		total = info.Size
	}
	pw := &progressWriter{writer: out, out: f.progress, total: total, label: info.FileName}

	_, err = io.Copy(pw, resp.Body)
	out.Close()
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing %s: %w", info.FileName, err)
	}
	fmt.Fprintln(f.progress)

	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("moving %s into place: %w", info.FileName, err)
	}
	return nil
}

// extractTarGz unpacks a .tar.gz archive into destDir. The archive is
// left in place afterwards.
func extractTarGz(archive, destDir string) error {
	in, err := os.Open(archive)
	if err != nil {
		return err
	}
	defer in.Close()

	gz, err := gzip.NewReader(in)
	if err != nil {
		return fmt.Errorf("gzip: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("tar: %w", err)
		}

		target, err := securePath(destDir, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, hdr.FileInfo().Mode())
			if err != nil {
				return err
			}
			_, err = io.Copy(out, tr)
			out.Close()
			if err != nil {
				return err
			}
		default:
			// symlinks, devices etc. have no business in a model archive
		}
	}
}

// securePath joins name under destDir, rejecting path traversal.
func securePath(destDir, name string) (string, error) {
	target := filepath.Join(destDir, filepath.Clean(name))
	if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", fmt.Errorf("archive entry %q escapes destination", name)
	}
	return target, nil
}

// progressWriter wraps an io.Writer and prints download progress.
type progressWriter struct {
	writer  io.Writer
	out     io.Writer
	total   int64
	written int64
	label   string
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n, err := pw.writer.Write(p)
	pw.written += int64(n)
	mb := float64(pw.written) / (1024 * 1024)
	if pw.total > 0 {
		pct := float64(pw.written) / float64(pw.total) * 100
		fmt.Fprintf(pw.out, "\r  %s: %.1f MB / %.1f MB (%.0f%%)",
			pw.label, mb, float64(pw.total)/(1024*1024), pct)
	} else {
		fmt.Fprintf(pw.out, "\r  %s: %.1f MB downloaded", pw.label, mb)
	}
	return n, err
}
