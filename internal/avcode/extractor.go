// Package avcode turns noisy release filenames into canonical AV codes.
// Extraction is offline-first: a noise wash, two regex families, and a
// persisted known-prefix list resolve most names; the network is consulted
// only when several distinct candidates survive.
package avcode

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"golang.org/x/text/width"

	"yakusub/internal/logging"
)

// ErrNoCandidate indicates no canonical code could be derived from a filename.
var ErrNoCandidate = errors.New("no av code candidate")

// Code is a canonical movie identifier: uppercase label plus digit run.
type Code struct {
	Label  string
	Number string
}

func (c Code) String() string {
	return c.Label + "-" + c.Number
}

// Validator checks a candidate code against an online catalog. Used only
// when offline heuristics leave more than one candidate.
type Validator interface {
	ValidateCode(ctx context.Context, code Code) (bool, error)
}

// Extractor derives codes from filenames using two user-maintained files:
// a noise-word list and a known-prefix list. Both are read per extraction
// and appended on success.
type Extractor struct {
	noisePath  string
	prefixPath string
	validators []Validator
	logger     *slog.Logger
}

var (
	mainPattern    = regexp.MustCompile(`[A-Z]{2,8}[-_]?[0-9]{2,7}`)
	zeroPadPattern = regexp.MustCompile(`^([A-Z]{2,8})0+([1-9][0-9]{1,6})$`)
	splitPattern   = regexp.MustCompile(`^([A-Z]+)[-_]?([0-9]+)$`)
)

// New builds an Extractor. Validators may be empty, in which case ambiguous
// names resolve to the highest-priority candidate.
func New(noisePath, prefixPath string, validators []Validator, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Extractor{
		noisePath:  noisePath,
		prefixPath: prefixPath,
		validators: validators,
		logger:     logging.NewComponentLogger(logger, "avcode"),
	}
}

// Extract derives the canonical code for a video filename.
func (e *Extractor) Extract(ctx context.Context, filename string) (Code, error) {
	noise, err := readLines(e.noisePath)
	if err != nil {
		return Code{}, err
	}
	prefixes, err := readLines(e.prefixPath)
	if err != nil {
		return Code{}, err
	}
	known := make(map[string]struct{}, len(prefixes))
	for _, prefix := range prefixes {
		known[strings.ToUpper(prefix)] = struct{}{}
	}

	washed := wash(filename, noise)
	candidates := collectCandidates(washed)
	if len(candidates) == 0 {
		return Code{}, fmt.Errorf("%w: %q", ErrNoCandidate, filename)
	}

	if len(candidates) == 1 {
		return e.accept(candidates[0], known)
	}

	// Known prefixes sort first; zero-pad normalizations already precede
	// their raw forms within each prefix group.
	prioritized := prioritize(candidates, known)
	if _, ok := known[prioritized[0].Label]; ok {
		return e.accept(prioritized[0], known)
	}

	if len(e.validators) == 0 {
		return e.accept(prioritized[0], known)
	}

	for _, candidate := range prioritized {
		for _, validator := range e.validators {
			valid, err := validator.ValidateCode(ctx, candidate)
			if err != nil {
				e.logger.Warn("code validation failed",
					logging.String("candidate", candidate.String()),
					logging.Error(err))
				continue
			}
			if valid {
				return e.accept(candidate, known)
			}
		}
	}
	return Code{}, fmt.Errorf("%w: no candidate validated for %q", ErrNoCandidate, filename)
}

func (e *Extractor) accept(code Code, known map[string]struct{}) (Code, error) {
	if _, ok := known[code.Label]; !ok {
		if err := appendLine(e.prefixPath, code.Label); err != nil {
			e.logger.Warn("failed to persist known prefix",
				logging.String("prefix", code.Label), logging.Error(err))
		}
	}
	return code, nil
}

// wash removes noise tokens case-insensitively, replacing each with a space,
// after folding full-width characters to their ASCII forms.
func wash(filename string, noise []string) string {
	name := width.Narrow.String(filename)
	for _, token := range noise {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		pattern, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(token))
		if err != nil {
			continue
		}
		name = pattern.ReplaceAllString(name, " ")
	}
	return strings.ToUpper(name)
}

// collectCandidates runs both regex families over the washed name. A match
// with zero padding contributes its normalized form first, then the raw form.
func collectCandidates(washed string) []Code {
	var candidates []Code
	seen := make(map[string]struct{})
	add := func(code Code) {
		key := code.String()
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		candidates = append(candidates, code)
	}

	for _, match := range mainPattern.FindAllString(washed, -1) {
		parts := splitPattern.FindStringSubmatch(match)
		if parts == nil {
			continue
		}
		raw := Code{Label: parts[1], Number: parts[2]}
		if padded := zeroPadPattern.FindStringSubmatch(match); padded != nil {
			normalized := Code{Label: padded[1], Number: padded[2]}
			if validShape(normalized) {
				add(normalized)
			}
		}
		if validShape(raw) {
			add(raw)
		}
	}
	return candidates
}

func validShape(code Code) bool {
	return len(code.Label) >= 2 && len(code.Label) <= 8 &&
		len(code.Number) >= 2 && len(code.Number) <= 7
}

func prioritize(candidates []Code, known map[string]struct{}) []Code {
	prioritized := make([]Code, 0, len(candidates))
	var rest []Code
	for _, candidate := range candidates {
		if _, ok := known[candidate.Label]; ok {
			prioritized = append(prioritized, candidate)
		} else {
			rest = append(rest, candidate)
		}
	}
	return append(prioritized, rest...)
}

func readLines(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return lines, nil
}

func appendLine(path, line string) error {
	if path == "" {
		return nil
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s for append: %w", path, err)
	}
	defer file.Close()
	if _, err := fmt.Fprintln(file, line); err != nil {
		return fmt.Errorf("append to %s: %w", path, err)
	}
	return nil
}
