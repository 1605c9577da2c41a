package subtitle

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Intro holds the metadata rendered as the opening card sequence of the
// bilingual asset. Empty fields are skipped.
type Intro struct {
	Title       string
	Actors      []string
	Categories  []string
	Studio      string
	Director    string
	ReleaseDate string
}

const (
	styleMain        = "CHS_Main"
	styleSub         = "JPN_Sub"
	styleIntroLarge  = "Intro_Large"
	styleIntroNormal = "Intro_Normal"
	styleIntroSmall  = "Intro_Small"

	// Maximum start and end drift between a source cue and its translated
	// counterpart for them to be rendered as one bilingual event.
	pairTolerance = 500 * time.Millisecond

	introCardDuration = time.Second
)

const assHeader = `[Script Info]
ScriptType: v4.00+
PlayResX: 1920
PlayResY: 1080
WrapStyle: 0
ScaledBorderAndShadow: yes

[V4+ Styles]
Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding
Style: CHS_Main,Microsoft YaHei,75,&H00FFFFFF,&H000000FF,&H00000000,&H80000000,0,0,0,0,100,100,0,0,1,2,1,2,30,30,40,1
Style: JPN_Sub,Microsoft YaHei,55,&H00C8C8C8,&H000000FF,&H00000000,&H80000000,0,0,0,0,100,100,0,0,1,2,1,2,30,30,10,1
Style: Intro_Large,Microsoft YaHei,80,&H00FFFFFF,&H000000FF,&H00000000,&H80000000,1,0,0,0,100,100,0,0,1,2,1,5,30,30,40,1
Style: Intro_Normal,Microsoft YaHei,65,&H00FFFFFF,&H000000FF,&H00000000,&H80000000,0,0,0,0,100,100,0,0,1,2,1,5,30,30,40,1
Style: Intro_Small,Microsoft YaHei,50,&H00C8C8C8,&H000000FF,&H00000000,&H80000000,0,0,0,0,100,100,0,0,1,2,1,5,30,30,40,1

[Events]
Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text
`

// ComposeASS builds the bilingual subtitle document. Source cues are the
// blueprint: each is paired with a translated cue whose start and end fall
// within the tolerance, rendered as Chinese over Japanese. Unmatched source
// cues are rendered alone.
func ComposeASS(intro Intro, source, translated []Cue) string {
	var b strings.Builder
	b.WriteString(assHeader)

	cursor := time.Duration(0)
	card := func(style, text string) {
		if strings.TrimSpace(text) == "" {
			return
		}
		writeDialogue(&b, cursor, cursor+introCardDuration, style, text)
		cursor += introCardDuration
	}

	card(styleIntroLarge, intro.Title)
	card(styleIntroNormal, strings.Join(compactStrings(intro.Actors), " / "))
	card(styleIntroSmall, strings.Join(compactStrings(intro.Categories), " / "))
	card(styleIntroSmall, intro.Studio)
	card(styleIntroSmall, strings.TrimSpace(strings.Join(compactStrings([]string{intro.Director, intro.ReleaseDate}), "  ")))

	for _, cue := range source {
		match, ok := matchCue(cue, translated)
		if ok {
			text := assText(match.Text) + `\N` + `{\r` + styleSub + `}` + assText(cue.Text)
			writeDialogue(&b, cue.Start, cue.End, styleMain, text)
		} else {
			writeDialogue(&b, cue.Start, cue.End, styleSub, assText(cue.Text))
		}
	}
	return b.String()
}

// WriteASSFile composes and writes the asset to path.
func WriteASSFile(path string, intro Intro, source, translated []Cue) error {
	if err := os.WriteFile(path, []byte(ComposeASS(intro, source, translated)), 0o644); err != nil {
		return fmt.Errorf("write ass file: %w", err)
	}
	return nil
}

func matchCue(cue Cue, candidates []Cue) (Cue, bool) {
	for _, candidate := range candidates {
		if within(cue.Start, candidate.Start) && within(cue.End, candidate.End) {
			return candidate, true
		}
	}
	return Cue{}, false
}

func within(a, b time.Duration) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff <= pairTolerance
}

func writeDialogue(b *strings.Builder, start, end time.Duration, style, text string) {
	fmt.Fprintf(b, "Dialogue: 0,%s,%s,%s,,0,0,0,,%s\n",
		formatASSTime(start), formatASSTime(end), style, text)
}

// formatASSTime renders H:MM:SS.cc with centisecond precision.
func formatASSTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hours := int(d / time.Hour)
	minutes := int(d/time.Minute) % 60
	seconds := int(d/time.Second) % 60
	centis := int(d/(10*time.Millisecond)) % 100
	return fmt.Sprintf("%d:%02d:%02d.%02d", hours, minutes, seconds, centis)
}

func assText(text string) string {
	return strings.ReplaceAll(text, "\n", `\N`)
}

func compactStrings(values []string) []string {
	var out []string
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
