package scanner

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

const sampleWindow = 1 << 20

// Fingerprint returns the center-sample SHA256 of a file: the hex digest of
// a 1 MiB window starting at (size - 1 MiB) / 2, or of the whole file when
// it is smaller than the window. The sample position makes the fingerprint
// stable across container remuxes that only touch headers and trailers.
func Fingerprint(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open for fingerprint: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("stat for fingerprint: %w", err)
	}

	hasher := sha256.New()
	if info.Size() <= sampleWindow {
		if _, err := io.Copy(hasher, file); err != nil {
			return "", fmt.Errorf("hash file: %w", err)
		}
	} else {
		offset := (info.Size() - sampleWindow) / 2
		if _, err := io.Copy(hasher, io.NewSectionReader(file, offset, sampleWindow)); err != nil {
			return "", fmt.Errorf("hash sample window: %w", err)
		}
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
