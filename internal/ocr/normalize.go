package ocr

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	reCRLF       = regexp.MustCompile(`\r\n?|\x{2028}|\x{2029}`)
	reMultiBlank = regexp.MustCompile(`\n{4,}`)
	reBoxNoise   = regexp.MustCompile(`(?m)^\s*[_\-]{3,}\s*$`)
)

// invisible runes removed before any whitespace handling
var invisible = map[rune]bool{
	'\u200b': true, // zero width space
	'\u200c': true,
	'\u200d': true,
	'\u200e': true,
	'\u200f': true,
	'\u2060': true, // word joiner
	'\ufeff': true, // BOM
	'\u00ad': true, // soft hyphen
}

// Clean normalizes extracted text: one line ending, no invisible characters,
// single spaces inside lines, at most two consecutive blank lines.
// Clean(Clean(s)) == Clean(s).
func Clean(s string) string {
	if s == "" {
		return s
	}
	s = reCRLF.ReplaceAllString(s, "\n")

	lines := strings.Split(s, "\n")
	var b strings.Builder
	for i, ln := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(cleanLine(ln))
	}

	s = reMultiBlank.ReplaceAllString(b.String(), "\n\n\n")
	return strings.TrimSpace(s)
}

func cleanLine(ln string) string {
	var b strings.Builder
	b.Grow(len(ln))
	space := false
	for _, r := range ln {
		if invisible[r] {
			continue
		}
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if unicode.IsControl(r) {
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}

// usableChars counts characters that carry content.
func usableChars(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}
