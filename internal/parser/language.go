package parser

import (
	"unicode"

	"transaction-automation-service/internal/models"
)

// ScriptCounts holds the number of letters seen per script
type ScriptCounts struct {
	Latin    int
	Ethiopic int
}

// CountScripts counts Latin and Ethiopic letters in text
func CountScripts(text string) ScriptCounts {
	var counts ScriptCounts
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Ethiopic, r) && unicode.IsLetter(r):
			counts.Ethiopic++
		case unicode.Is(unicode.Latin, r):
			counts.Latin++
		}
	}
	return counts
}

// DetectLanguage classifies text as English, Amharic or mixed. A script wins
// when it has more than margin letters and outnumbers the other script.
func DetectLanguage(text string, margin int) models.Language {
	counts := CountScripts(text)
	switch {
	case counts.Latin > margin && counts.Latin > counts.Ethiopic:
		return models.LanguageEnglish
	case counts.Ethiopic > margin && counts.Ethiopic > counts.Latin:
		return models.LanguageAmharic
	default:
		return models.LanguageMixed
	}
}
