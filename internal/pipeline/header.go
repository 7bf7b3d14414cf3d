package pipeline

import (
	"sort"
	"strings"
)

const (
	SimpleScanWindow   = 20
	AdvancedScanWindow = 30
	DefaultMinMatches  = 2
)

type HeaderOptions struct {
	Window     int
	MinMatches int
	Keywords   []string
}

func (o HeaderOptions) withDefaults() HeaderOptions {
	if o.Window <= 0 {
		o.Window = SimpleScanWindow
	}
	if o.MinMatches <= 0 {
		o.MinMatches = DefaultMinMatches
	}
	if len(o.Keywords) == 0 {
		o.Keywords = DefaultVocabulary().HeaderKeywords
	}
	return o
}

// LocateHeader returns the physical index of the first line within the window
// carrying at least MinMatches keywords, or 0. A data row that mentions two
// keywords wins over a later real header.
func LocateHeader(lines []string, delimiter rune, opts HeaderOptions) int {
	opts = opts.withDefaults()
	for i, line := range lines {
		if i >= opts.Window {
			break
		}
		if HeaderScore(line, delimiter, opts.Keywords) >= opts.MinMatches {
			return i
		}
	}
	return 0
}

// HeaderScore counts the keywords found in the line, case-insensitively, with
// delimiters read as spaces. Longer keywords match first and the text they
// cover is consumed, so "harga satuan" does not also count as "satuan".
func HeaderScore(line string, delimiter rune, keywords []string) int {
	text := strings.ToLower(line)
	if delimiter != 0 {
		text = strings.ReplaceAll(text, string(delimiter), " ")
	}

	sorted := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			sorted = append(sorted, kw)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })

	score := 0
	for _, kw := range sorted {
		if strings.Contains(text, kw) {
			score++
			text = strings.ReplaceAll(text, kw, "\x00")
		}
	}
	return score
}
