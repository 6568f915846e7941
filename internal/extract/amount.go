// Package extract holds the field-extraction primitives shared by the
// template parser and the keyword fallback: amount normalisation, date
// resolution and text cleanup.
package extract

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// ethiopicNumerals maps the supported Ethiopic numeral symbols to their values.
// Only ፩..፲ are recognised.
var ethiopicNumerals = map[rune]int{
	'፩': 1,
	'፪': 2,
	'፫': 3,
	'፬': 4,
	'፭': 5,
	'፮': 6,
	'፯': 7,
	'፰': 8,
	'፱': 9,
	'፲': 10,
}

// currencyTokens are stripped from amount strings before parsing
var currencyTokens = []string{"ETB", "BIRR", "BR.", "BR", "ብር"}

// ReplaceEthiopicNumerals rewrites every contiguous run of Ethiopic numerals
// as the decimal sum of its symbols, so "፲፭" becomes "15".
func ReplaceEthiopicNumerals(s string) string {
	if !strings.ContainsFunc(s, isEthiopicNumeral) {
		return s
	}

	var b strings.Builder
	run := 0
	inRun := false
	for _, r := range s {
		if v, ok := ethiopicNumerals[r]; ok {
			run += v
			inRun = true
			continue
		}
		if inRun {
			fmt.Fprintf(&b, "%d", run)
			run, inRun = 0, false
		}
		b.WriteRune(r)
	}
	if inRun {
		fmt.Fprintf(&b, "%d", run)
	}
	return b.String()
}

func isEthiopicNumeral(r rune) bool {
	_, ok := ethiopicNumerals[r]
	return ok
}

// ParseAmount parses a monetary amount written with locale separators.
// Currency codes, spaces and apostrophes are ignored. When both ',' and '.'
// appear the later one is the decimal separator. A lone ',' followed by
// exactly three digits is a thousands separator, otherwise a decimal one.
func ParseAmount(s string) (decimal.Decimal, error) {
	original := s
	s = ReplaceEthiopicNumerals(strings.TrimSpace(s))
	upper := strings.ToUpper(s)
	for _, token := range currencyTokens {
		upper = strings.ReplaceAll(upper, token, "")
	}
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '\'' {
			return -1
		}
		return r
	}, upper)
	s = strings.TrimRight(s, ".")

	if s == "" {
		return decimal.Zero, fmt.Errorf("amount string cannot be empty")
	}

	normalized, err := normalizeSeparators(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount '%s': %w", original, err)
	}

	d, err := decimal.NewFromString(normalized)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount '%s': %w", original, err)
	}
	return d, nil
}

// ParsePositiveAmount parses an amount and rejects zero or negative values
func ParsePositiveAmount(s string) (decimal.Decimal, error) {
	d, err := ParseAmount(s)
	if err != nil {
		return decimal.Zero, err
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("amount %s is not positive", d.String())
	}
	return d, nil
}

func normalizeSeparators(s string) (string, error) {
	for i, r := range s {
		if !(r >= '0' && r <= '9') && r != ',' && r != '.' && !(i == 0 && (r == '-' || r == '+')) {
			return "", fmt.Errorf("unexpected character %q", r)
		}
	}

	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")

	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			return strings.Replace(s, ",", ".", 1), nil
		}
		return strings.ReplaceAll(s, ",", ""), nil
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 || isThousandsGroup(s[lastComma+1:]) {
			return strings.ReplaceAll(s, ",", ""), nil
		}
		return strings.Replace(s, ",", ".", 1), nil
	case strings.Count(s, ".") > 1:
		return strings.ReplaceAll(s, ".", ""), nil
	}
	return s, nil
}

func isThousandsGroup(tail string) bool {
	return len(tail) == 3
}
