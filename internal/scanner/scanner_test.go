package scanner

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"yakusub/internal/avcode"
	"yakusub/internal/manifest"
	"yakusub/internal/testsupport"
)

func newTestScanner(t *testing.T) *Scanner {
	t.Helper()
	dir := t.TempDir()
	noise := filepath.Join(dir, "noise.txt")
	prefix := filepath.Join(dir, "prefix.txt")
	if err := os.WriteFile(noise, []byte("1080p\nFHD\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(prefix, []byte("ABC\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return New(avcode.New(noise, prefix, nil, nil), 2, nil)
}

func writeVideo(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("video payload "+filepath.Base(path)), 0o644); err != nil {
		t.Fatal(err)
	}
}

func findBySHA(t *testing.T, store *manifest.Store, sha string) *manifest.Video {
	t.Helper()
	session, err := store.Begin(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer session.Rollback()
	video, err := session.FindVideoBySHA(context.Background(), sha)
	if err != nil {
		t.Fatalf("FindVideoBySHA() error: %v", err)
	}
	return video
}

func TestFingerprintSmallFileHashesWhole(t *testing.T) {
	path := filepath.Join(t.TempDir(), "small.bin")
	content := []byte("tiny file well under the sample window")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := Fingerprint(path)
	if err != nil {
		t.Fatalf("Fingerprint() error: %v", err)
	}
	sum := sha256.Sum256(content)
	if want := hex.EncodeToString(sum[:]); got != want {
		t.Fatalf("Fingerprint() = %s, want %s", got, want)
	}
}

func TestFingerprintLargeFileSamplesCenter(t *testing.T) {
	dir := t.TempDir()
	content := bytes.Repeat([]byte("a"), 3*sampleWindow)

	base := filepath.Join(dir, "base.bin")
	if err := os.WriteFile(base, content, 0o644); err != nil {
		t.Fatal(err)
	}
	baseSHA, err := Fingerprint(base)
	if err != nil {
		t.Fatal(err)
	}

	// Mutating the header must not change the fingerprint.
	header := append([]byte{}, content...)
	header[0] = 'z'
	headerPath := filepath.Join(dir, "header.bin")
	if err := os.WriteFile(headerPath, header, 0o644); err != nil {
		t.Fatal(err)
	}
	headerSHA, err := Fingerprint(headerPath)
	if err != nil {
		t.Fatal(err)
	}
	if headerSHA != baseSHA {
		t.Fatal("header mutation changed the center-sample fingerprint")
	}

	// Mutating the center window must change it.
	center := append([]byte{}, content...)
	center[len(center)/2] = 'z'
	centerPath := filepath.Join(dir, "center.bin")
	if err := os.WriteFile(centerPath, center, 0o644); err != nil {
		t.Fatal(err)
	}
	centerSHA, err := Fingerprint(centerPath)
	if err != nil {
		t.Fatal(err)
	}
	if centerSHA == baseSHA {
		t.Fatal("center mutation did not change the fingerprint")
	}
}

func TestScanRegistersNewVideos(t *testing.T) {
	root := t.TempDir()
	writeVideo(t, filepath.Join(root, "ABC-123 [1080p].mp4"))
	writeVideo(t, filepath.Join(root, "sub", "readme.txt"))

	store := testsupport.MustOpenStore(t)
	scanner := newTestScanner(t)

	ids, err := scanner.Scan(context.Background(), store, root)
	if err != nil {
		t.Fatalf("Scan() error: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("touched movies = %d, want 1", len(ids))
	}

	session, err := store.Begin(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer session.Rollback()
	movie, err := session.FindMovieByCode(context.Background(), "ABC", "123")
	if err != nil {
		t.Fatalf("FindMovieByCode() error: %v", err)
	}
	if movie == nil {
		t.Fatal("expected movie ABC-123 to exist")
	}
	if len(movie.Videos) != 1 {
		t.Fatalf("videos = %d, want 1", len(movie.Videos))
	}
	if got := movie.Videos[0].Filename; got != "ABC-123 [1080p].mp4" {
		t.Fatalf("filename = %q", got)
	}
}

func TestScanAnonymousFallback(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "家庭録画.mp4")
	writeVideo(t, path)

	store := testsupport.MustOpenStore(t)
	scanner := newTestScanner(t)

	ids, err := scanner.Scan(context.Background(), store, root)
	if err != nil {
		t.Fatalf("Scan() error: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("touched movies = %d, want 1", len(ids))
	}

	sha, err := Fingerprint(path)
	if err != nil {
		t.Fatal(err)
	}
	session, err := store.Begin(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer session.Rollback()
	movie, err := session.FindMovieByCode(context.Background(), manifest.AnonymousLabel, sha)
	if err != nil {
		t.Fatal(err)
	}
	if movie == nil {
		t.Fatal("expected anonymous movie keyed on the fingerprint")
	}
}

func TestScanDetectsMove(t *testing.T) {
	root := t.TempDir()
	oldPath := filepath.Join(root, "ABC-123.mp4")
	writeVideo(t, oldPath)

	store := testsupport.MustOpenStore(t)
	scanner := newTestScanner(t)

	if _, err := scanner.Scan(context.Background(), store, root); err != nil {
		t.Fatalf("first Scan() error: %v", err)
	}
	sha, err := Fingerprint(oldPath)
	if err != nil {
		t.Fatal(err)
	}
	before := findBySHA(t, store, sha)
	if before == nil {
		t.Fatal("video not registered")
	}

	newPath := filepath.Join(root, "sorted", "ABC-123 retail.mp4")
	if err := os.MkdirAll(filepath.Dir(newPath), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(oldPath, newPath); err != nil {
		t.Fatal(err)
	}

	ids, err := scanner.Scan(context.Background(), store, root)
	if err != nil {
		t.Fatalf("second Scan() error: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("touched movies = %d, want 1", len(ids))
	}

	after := findBySHA(t, store, sha)
	if after == nil {
		t.Fatal("video lost after move")
	}
	if after.ID != before.ID {
		t.Fatalf("video id changed across move: %d != %d", after.ID, before.ID)
	}
	if after.AbsolutePath != newPath {
		t.Fatalf("path = %q, want %q", after.AbsolutePath, newPath)
	}
	if after.Filename != "ABC-123 retail.mp4" {
		t.Fatalf("filename = %q", after.Filename)
	}
}

func TestScanRerunIsIdempotent(t *testing.T) {
	root := t.TempDir()
	writeVideo(t, filepath.Join(root, "ABC-123.mp4"))
	writeVideo(t, filepath.Join(root, "XYZ-001.mkv"))

	store := testsupport.MustOpenStore(t)
	scanner := newTestScanner(t)

	first, err := scanner.Scan(context.Background(), store, root)
	if err != nil {
		t.Fatalf("first Scan() error: %v", err)
	}
	if len(first) != 2 {
		t.Fatalf("first scan touched %d movies, want 2", len(first))
	}

	second, err := scanner.Scan(context.Background(), store, root)
	if err != nil {
		t.Fatalf("second Scan() error: %v", err)
	}
	if len(second) != 0 {
		t.Fatalf("unchanged rescan touched %d movies, want 0", len(second))
	}
}

func TestScanSkipsUnreadableFile(t *testing.T) {
	root := t.TempDir()
	writeVideo(t, filepath.Join(root, "ABC-123.mp4"))
	// A dangling symlink with a video suffix fails to open; the scan must
	// still register the healthy file.
	if err := os.Symlink(filepath.Join(root, "missing.mp4"), filepath.Join(root, "broken.mp4")); err != nil {
		t.Skipf("symlink unsupported: %v", err)
	}

	store := testsupport.MustOpenStore(t)
	scanner := newTestScanner(t)

	ids, err := scanner.Scan(context.Background(), store, root)
	if err != nil {
		t.Fatalf("Scan() error: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("touched movies = %d, want 1", len(ids))
	}
}
