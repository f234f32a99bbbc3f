package story

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"manaforge.ai/internal/tuning"
)

// moodOf returns the first mood with a keyword that starts a word of text.
// Keywords may be stems ("celebrat"), so only the word start is anchored.
func moodOf(moods []tuning.Mood, text string) Mood {
	lower := strings.ToLower(text)
	for _, m := range moods {
		for _, kw := range m.Keywords {
			if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" && startsWord(lower, kw) {
				return Mood(m.Label)
			}
		}
	}
	return MoodNeutral
}

func startsWord(text, kw string) bool {
	for off := 0; off < len(text); {
		i := strings.Index(text[off:], kw)
		if i < 0 {
			return false
		}
		at := off + i
		if at == 0 {
			return true
		}
		prev, _ := utf8.DecodeLastRuneInString(text[:at])
		if !unicode.IsLetter(prev) && !unicode.IsDigit(prev) {
			return true
		}
		off = at + 1
	}
	return false
}
