package subtitle

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Cue is one SRT block: index, time range, and one or more text lines
// joined with "\n".
type Cue struct {
	Index int
	Start time.Duration
	End   time.Duration
	Text  string
}

var timeLinePattern = regexp.MustCompile(`(\d{2}):(\d{2}):(\d{2}),(\d{3}) --> (\d{2}):(\d{2}):(\d{2}),(\d{3})`)

// Parse reads SRT cues from r. Lines that cannot start a block are skipped,
// which tolerates BOMs and stray blank lines between blocks.
func Parse(r io.Reader) ([]Cue, error) {
	var cues []Cue
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	current := Cue{}
	state := "index"
	var textLines []string

	for scanner.Scan() {
		line := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "\uFEFF"))

		switch state {
		case "index":
			if line == "" {
				continue
			}
			index, err := strconv.Atoi(line)
			if err != nil {
				continue
			}
			current.Index = index
			state = "time"

		case "time":
			if line == "" {
				continue
			}
			start, end, err := parseTimeLine(line)
			if err != nil {
				return nil, err
			}
			current.Start = start
			current.End = end
			state = "text"
			textLines = textLines[:0]

		case "text":
			if line == "" {
				if len(textLines) > 0 {
					current.Text = strings.Join(textLines, "\n")
					cues = append(cues, current)
					current = Cue{}
				}
				state = "index"
				textLines = textLines[:0]
			} else {
				textLines = append(textLines, line)
			}
		}
	}

	if state == "text" && len(textLines) > 0 {
		current.Text = strings.Join(textLines, "\n")
		cues = append(cues, current)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read srt: %w", err)
	}
	return cues, nil
}

// ParseString parses an in-memory SRT fragment.
func ParseString(s string) ([]Cue, error) {
	return Parse(strings.NewReader(s))
}

// ReadFile loads and parses an SRT file.
func ReadFile(path string) ([]Cue, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open srt file: %w", err)
	}
	defer file.Close()
	return Parse(file)
}

func parseTimeLine(line string) (time.Duration, time.Duration, error) {
	matches := timeLinePattern.FindStringSubmatch(line)
	if len(matches) != 9 {
		return 0, 0, fmt.Errorf("invalid srt time line: %q", line)
	}
	part := func(i int) time.Duration {
		n, _ := strconv.Atoi(matches[i])
		return time.Duration(n)
	}
	start := part(1)*time.Hour + part(2)*time.Minute + part(3)*time.Second + part(4)*time.Millisecond
	end := part(5)*time.Hour + part(6)*time.Minute + part(7)*time.Second + part(8)*time.Millisecond
	return start, end, nil
}

// FormatTime renders a duration in SRT time notation.
func FormatTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hours := int(d / time.Hour)
	minutes := int(d/time.Minute) % 60
	seconds := int(d/time.Second) % 60
	millis := int(d/time.Millisecond) % 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, seconds, millis)
}

// Render serializes cues back to SRT text. Each block ends with a blank line.
func Render(cues []Cue) string {
	var b strings.Builder
	for _, cue := range cues {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n",
			cue.Index, FormatTime(cue.Start), FormatTime(cue.End), cue.Text)
	}
	return b.String()
}

// WriteFile renders cues and writes them to path.
func WriteFile(path string, cues []Cue) error {
	if err := os.WriteFile(path, []byte(Render(cues)), 0o644); err != nil {
		return fmt.Errorf("write srt file: %w", err)
	}
	return nil
}

// Renumber returns a copy with cue indices rewritten 1..N in order.
// Timestamps and text are untouched.
func Renumber(cues []Cue) []Cue {
	out := make([]Cue, len(cues))
	copy(out, cues)
	for i := range out {
		out[i].Index = i + 1
	}
	return out
}

// MaxGap returns the largest gap between the end of one cue and the start of
// the next. Zero for fewer than two cues.
func MaxGap(cues []Cue) time.Duration {
	var max time.Duration
	for i := 1; i < len(cues); i++ {
		if gap := cues[i].Start - cues[i-1].End; gap > max {
			max = gap
		}
	}
	return max
}
