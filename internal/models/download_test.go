package models

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

// tarGz builds an in-memory .tar.gz whose entries are rooted at dirName.
func tarGz(t *testing.T, dirName string, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	if err := tw.WriteHeader(&tar.Header{Name: dirName + "/", Typeflag: tar.TypeDir, Mode: 0o755}); err != nil {
		t.Fatal(err)
	}
	for name, content := range files {
		hdr := &tar.Header{
			Name: dirName + "/" + name,
			Mode: 0o644,
			Size: int64(len(content)),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestFetchPlainFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("gguf-bytes"))
	}))
	defer srv.Close()

	f, err := NewFetcher(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	info := ModelInfo{ID: "chat-test", Kind: KindChat, FileName: "model.gguf", URL: srv.URL}
	path, err := f.Fetch(context.Background(), info)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "gguf-bytes" {
		t.Errorf("fetched content = %q, want gguf-bytes", got)
	}

	// No stray temp file.
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind after successful fetch")
	}
}

func TestFetchSkipsExisting(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		w.Write([]byte("fresh"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	f, err := NewFetcher(dir)
	if err != nil {
		t.Fatal(err)
	}

	info := ModelInfo{ID: "chat-test", Kind: KindChat, FileName: "model.gguf", URL: srv.URL}
	if err := os.WriteFile(filepath.Join(dir, "model.gguf"), []byte("existing"), 0o644); err != nil {
		t.Fatal(err)
	}

	path, err := f.Fetch(context.Background(), info)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if hits != 0 {
		t.Errorf("server hit %d times for a present artifact, want 0", hits)
	}
	got, _ := os.ReadFile(path)
	if string(got) != "existing" {
		t.Errorf("existing artifact overwritten: %q", got)
	}
}

func TestFetchArchiveExtracts(t *testing.T) {
	payload := tarGz(t, "voice-pack", map[string]string{
		"model.onnx": "onnx-bytes",
		"tokens.txt": "a\nb\n",
	})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	dir := t.TempDir()
	f, err := NewFetcher(dir)
	if err != nil {
		t.Fatal(err)
	}

	info := ModelInfo{ID: "tts-test", Kind: KindTTS, FileName: "voice-pack.tar.gz", URL: srv.URL, Archive: true}
	path, err := f.Fetch(context.Background(), info)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if path != filepath.Join(dir, "voice-pack") {
		t.Errorf("Fetch() path = %q, want extracted dir", path)
	}

	got, err := os.ReadFile(filepath.Join(path, "model.onnx"))
	if err != nil {
		t.Fatalf("extracted file missing: %v", err)
	}
	if string(got) != "onnx-bytes" {
		t.Errorf("extracted content = %q", got)
	}

	// The archive is kept alongside the extracted directory.
	if _, err := os.Stat(filepath.Join(dir, "voice-pack.tar.gz")); err != nil {
		t.Errorf("archive deleted after extraction: %v", err)
	}
}

func TestFetchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	f, err := NewFetcher(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	info := ModelInfo{ID: "chat-test", Kind: KindChat, FileName: "model.gguf", URL: srv.URL}
	if _, err := f.Fetch(context.Background(), info); err == nil {
		t.Fatal("Fetch() should fail on HTTP 404")
	}
	if _, err := os.Stat(f.ArtifactPath(info)); !os.IsNotExist(err) {
		t.Error("failed download left an artifact behind")
	}
}

func TestExtractTarGzRejectsTraversal(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	if err := tw.WriteHeader(&tar.Header{Name: "../escape.txt", Mode: 0o644, Size: 4}); err != nil {
		t.Fatal(err)
	}
	tw.Write([]byte("evil"))
	tw.Close()
	gz.Close()

	dir := t.TempDir()
	archive := filepath.Join(dir, "bad.tar.gz")
	if err := os.WriteFile(archive, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := extractTarGz(archive, dir); err == nil {
		t.Fatal("extractTarGz should reject path traversal entries")
	}
}

func TestProgressWriter(t *testing.T) {
	var dest, report bytes.Buffer
	pw := &progressWriter{writer: &dest, out: &report, total: 100, label: "test"}

	n, err := pw.Write(make([]byte, 50))
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if n != 50 {
		t.Errorf("Write() n = %d, want 50", n)
	}
	if pw.written != 50 {
		t.Errorf("written = %d, want 50", pw.written)
	}
	if report.Len() == 0 {
		t.Error("no progress output written")
	}
}
