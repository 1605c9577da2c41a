package subtitle

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComposeASSHeaderAndIntro(t *testing.T) {
	intro := Intro{
		Title:       "夏日记忆",
		Actors:      []string{"花子", "桃子"},
		Categories:  []string{"剧情"},
		Studio:      "工作室B",
		Director:    "导演A",
		ReleaseDate: "2024-05-01",
	}
	doc := ComposeASS(intro, nil, nil)

	assert.Contains(t, doc, "PlayResX: 1920")
	assert.Contains(t, doc, "PlayResY: 1080")
	for _, style := range []string{"CHS_Main", "JPN_Sub", "Intro_Large", "Intro_Normal", "Intro_Small"} {
		assert.Contains(t, doc, "Style: "+style)
	}

	assert.Contains(t, doc, "Dialogue: 0,0:00:00.00,0:00:01.00,Intro_Large,,0,0,0,,夏日记忆")
	assert.Contains(t, doc, "Dialogue: 0,0:00:01.00,0:00:02.00,Intro_Normal,,0,0,0,,花子 / 桃子")
	assert.Contains(t, doc, "Dialogue: 0,0:00:04.00,0:00:05.00,Intro_Small,,0,0,0,,导演A  2024-05-01")
}

func TestComposeASSSkipsMissingIntroSections(t *testing.T) {
	doc := ComposeASS(Intro{Title: "夏日记忆", Director: "导演A"}, nil, nil)

	assert.NotContains(t, doc, "Intro_Normal,")
	// The director card follows the title immediately when the middle
	// sections are absent.
	assert.Contains(t, doc, "Dialogue: 0,0:00:01.00,0:00:02.00,Intro_Small,,0,0,0,,导演A")
}

func TestComposeASSPairsCuesWithinTolerance(t *testing.T) {
	source := []Cue{
		{Index: 1, Start: 10 * time.Second, End: 13 * time.Second, Text: "こんにちは"},
		{Index: 2, Start: 20 * time.Second, End: 22 * time.Second, Text: "さようなら"},
	}
	translated := []Cue{
		// Within the 500 ms pairing tolerance on both edges.
		{Index: 1, Start: 10*time.Second + 400*time.Millisecond, End: 13*time.Second - 300*time.Millisecond, Text: "你好"},
		// Start drifts beyond tolerance.
		{Index: 2, Start: 21 * time.Second, End: 22 * time.Second, Text: "再见"},
	}

	doc := ComposeASS(Intro{}, source, translated)

	assert.Contains(t, doc, `Dialogue: 0,0:00:10.00,0:00:13.00,CHS_Main,,0,0,0,,你好\N{\rJPN_Sub}こんにちは`)
	assert.Contains(t, doc, "Dialogue: 0,0:00:20.00,0:00:22.00,JPN_Sub,,0,0,0,,さようなら")
	assert.NotContains(t, doc, "再见")
}

func TestComposeASSEmptySourceHasNoDialogue(t *testing.T) {
	doc := ComposeASS(Intro{Title: "夏日记忆"}, nil, []Cue{{Index: 1, Text: "你好"}})
	lines := strings.Split(doc, "\n")
	var dialogues int
	for _, line := range lines {
		if strings.HasPrefix(line, "Dialogue:") {
			dialogues++
		}
	}
	require.Equal(t, 1, dialogues, "only the intro card should remain")
}

func TestComposeASSMissingTranslationEmitsSourceOnly(t *testing.T) {
	source := []Cue{{Index: 1, Start: time.Second, End: 2 * time.Second, Text: "一行目\n二行目"}}
	doc := ComposeASS(Intro{}, source, nil)
	assert.Contains(t, doc, `JPN_Sub,,0,0,0,,一行目\N二行目`)
}

func TestFormatASSTime(t *testing.T) {
	assert.Equal(t, "1:02:03.45",
		formatASSTime(time.Hour+2*time.Minute+3*time.Second+456*time.Millisecond))
	assert.Equal(t, "0:00:00.00", formatASSTime(-time.Minute))
}
