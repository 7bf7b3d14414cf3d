package util

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	reQuotes     = regexp.MustCompile(`["'` + "`" + `«»“”]`)
	reNonAllowed = regexp.MustCompile(`[^a-z0-9\-/\s.']`)
	reSpaces     = regexp.MustCompile(`\s+`)
)

// NormalizeHeader is the canonical form of a column header: lower-case,
// trimmed, embedded line breaks removed and whitespace collapsed.
func NormalizeHeader(input string) string {
	s := strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(input)
	s = strings.TrimPrefix(s, "\ufeff")
	s = reSpaces.ReplaceAllString(s, " ")
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeDescription is the key used to merge and search work items.
func NormalizeDescription(input string) string {
	s := strings.ToLower(input)
	repl := strings.NewReplacer("×", "x", "*", "x", "²", "2", "³", "3")
	s = repl.Replace(s)
	s = reQuotes.ReplaceAllString(s, " ")
	s = reNonAllowed.ReplaceAllString(s, " ")
	s = reSpaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func NormalizeSpaces(input string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(input, " "))
}

func TrimQuotes(input string) string {
	return strings.Trim(strings.TrimSpace(input), `"'`+"`“”")
}

func NormalizeCode(input string) string {
	s := strings.ToUpper(TrimQuotes(input))
	out := strings.Builder{}
	for _, r := range s {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' || r == '/' || r == '.' {
			out.WriteRune(r)
		}
	}
	return strings.TrimSuffix(out.String(), ".")
}

func Tokenize(input string) []string {
	norm := NormalizeDescription(input)
	parts := strings.Split(norm, " ")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(p, ".-/")
		if utf8.RuneCountInString(p) >= 2 {
			out = append(out, p)
		}
	}
	return out
}

func LooksLikeCode(input string) bool {
	input = strings.TrimSpace(input)
	if input == "" || strings.Contains(input, " ") {
		return false
	}
	hasDigit := false
	for _, r := range input {
		if r >= '0' && r <= '9' {
			hasDigit = true
		}
	}
	return hasDigit
}

func DiceCoefficient(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	pairs := func(s string) []string {
		r := []rune(s)
		if len(r) < 2 {
			return nil
		}
		out := make([]string, 0, len(r)-1)
		for i := 0; i < len(r)-1; i++ {
			out = append(out, string(r[i:i+2]))
		}
		return out
	}

	aPairs := pairs(a)
	bPairs := pairs(b)
	if len(aPairs) == 0 || len(bPairs) == 0 {
		return 0
	}

	bCount := map[string]int{}
	for _, p := range bPairs {
		bCount[p]++
	}
	inter := 0
	for _, p := range aPairs {
		if bCount[p] > 0 {
			inter++
			bCount[p]--
		}
	}

	return float64(2*inter) / float64(len(aPairs)+len(bPairs))
}

func FloatPtr(v float64) *float64 { return &v }
