package subtitle

import "github.com/abadojack/whatlanggo"

// DominantLanguage returns the ISO 639-1 code of the most common detected
// language across all cue texts. Empty for an empty cue list.
func DominantLanguage(cues []Cue) string {
	if len(cues) == 0 {
		return ""
	}

	counts := make(map[string]int)
	for _, cue := range cues {
		lang := whatlanggo.DetectLang(cue.Text).Iso6391()
		counts[lang]++
	}

	var top string
	var topCount int
	for lang, count := range counts {
		if count > topCount {
			top = lang
			topCount = count
		}
	}
	return top
}
