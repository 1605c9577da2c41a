package testsupport

import (
	"testing"

	"yakusub/internal/manifest"
)

// MustOpenStore opens a manifest.Store in a temp directory and registers
// cleanup.
func MustOpenStore(t testing.TB) *manifest.Store {
	t.Helper()

	store, err := manifest.Open(t.TempDir())
	if err != nil {
		t.Fatalf("manifest.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
