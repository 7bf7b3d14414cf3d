package pipeline

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/gogs/chardet"
	"golang.org/x/text/encoding/htmlindex"

	"smartrab/internal"
)

const (
	DefaultDelimiter   = ','
	dialectSampleLines = 5

	encodingUTF8  = "utf-8"
	encodingLossy = "utf-8 (lossy)"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DecodeText converts raw bytes to UTF-8. It never fails: when no charset
// decodes cleanly, invalid sequences become U+FFFD.
func DecodeText(raw []byte) (string, string) {
	raw = bytes.TrimPrefix(raw, utf8BOM)
	if utf8.Valid(raw) {
		return string(raw), encodingUTF8
	}

	if det, err := chardet.NewTextDetector().DetectBest(raw); err == nil && det != nil {
		charset := strings.ToLower(det.Charset)
		if enc, err := htmlindex.Get(charset); err == nil && enc != nil {
			if out, err := enc.NewDecoder().Bytes(raw); err == nil && utf8.Valid(out) {
				return string(out), charset
			}
		}
	}

	return strings.ToValidUTF8(string(raw), "\uFFFD"), encodingLossy
}

// SplitLines keeps blank lines so that indexes stay physical line numbers.
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}
	text = strings.NewReplacer("\r\n", "\n", "\r", "\n").Replace(text)
	text = strings.TrimSuffix(text, "\n")
	return strings.Split(text, "\n")
}

// DetectDelimiter looks at the first few non-empty lines; ';' wins over ','
// whenever any of them carries it.
func DetectDelimiter(lines []string) rune {
	seen := 0
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if strings.ContainsRune(line, ';') {
			return ';'
		}
		seen++
		if seen >= dialectSampleLines {
			break
		}
	}
	return DefaultDelimiter
}

// NewTextRecord decodes raw delimited text and detects its delimiter.
func NewTextRecord(name string, content []byte) internal.RawRecord {
	text, enc := DecodeText(content)
	lines := SplitLines(text)
	return internal.RawRecord{
		Name:      name,
		Kind:      internal.SourceText,
		Content:   content,
		Encoding:  enc,
		Delimiter: DetectDelimiter(lines),
		Lines:     lines,
	}
}
