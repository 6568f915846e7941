package extract

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// CleanText normalises text to NFC and collapses runs of whitespace
func CleanText(s string) string {
	s = norm.NFC.String(s)
	return strings.Join(strings.Fields(s), " ")
}

// CleanField trims whitespace and trailing punctuation from an extracted value
func CleanField(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || r == '.' || r == ',' || r == ';' || r == ':' || r == '-' || r == '።' || r == '፣'
	})
}

// MatchKeyword returns the first keyword contained in text, compared
// case-insensitively. Keywords are tried in order.
func MatchKeyword(text string, keywords []string) (string, bool) {
	lower := strings.ToLower(text)
	for _, keyword := range keywords {
		if keyword == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(keyword)) {
			return keyword, true
		}
	}
	return "", false
}

// ContainsWord reports whether text contains word as a whole word,
// compared case-insensitively. Non-Latin words fall back to substring matching.
func ContainsWord(text, word string) bool {
	lower := strings.ToLower(text)
	word = strings.ToLower(word)
	if word == "" {
		return false
	}

	for start := 0; ; {
		idx := strings.Index(lower[start:], word)
		if idx < 0 {
			return false
		}
		idx += start
		end := idx + len(word)
		if boundary(lower, idx-1) && boundary(lower, end) {
			return true
		}
		start = idx + 1
		if start >= len(lower) {
			return false
		}
	}
}

func boundary(s string, i int) bool {
	if i < 0 || i >= len(s) {
		return true
	}
	c := s[i]
	if c >= 0x80 {
		// Inside a multi-byte rune: treat Ethiopic and other scripts as unsegmented
		return true
	}
	return !(c >= 'a' && c <= 'z' || c >= '0' && c <= '9')
}
