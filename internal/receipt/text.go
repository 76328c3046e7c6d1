package receipt

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// clean composes accents so one visible character is one rune, which is what
// the single-byte code pages count as one column.
func clean(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// wrap breaks s into lines of at most width runes. Words longer than a line
// are split at rune boundaries. Runs of whitespace collapse to one space.
func wrap(s string, width int) []string {
	if width < 1 {
		width = 1
	}
	var lines []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			lines = append(lines, string(cur))
			cur = nil
		}
	}
	for _, word := range strings.Fields(clean(s)) {
		w := []rune(word)
		for len(w) > width {
			flush()
			lines = append(lines, string(w[:width]))
			w = w[width:]
		}
		if len(w) == 0 {
			continue
		}
		switch {
		case len(cur) == 0:
			cur = append(cur, w...)
		case len(cur)+1+len(w) <= width:
			cur = append(cur, ' ')
			cur = append(cur, w...)
		default:
			flush()
			cur = append(cur, w...)
		}
	}
	flush()
	return lines
}

// wrapIndent wraps s and prefixes every line with indent spaces.
func wrapIndent(s string, width, indent int) []string {
	if indent >= width {
		indent = 0
	}
	lines := wrap(s, width-indent)
	if indent == 0 {
		return lines
	}
	pad := strings.Repeat(" ", indent)
	for i := range lines {
		lines[i] = pad + lines[i]
	}
	return lines
}

// columns lays out a left-justified label and a right-justified value. The
// value shares the last label line when both fit, otherwise it goes on its
// own line.
func columns(left, right string, width, indent int) []string {
	lines := wrapIndent(left, width, indent)
	right = clean(right)
	if right == "" {
		return lines
	}
	if n := utf8.RuneCountInString(right); n > width {
		right = string([]rune(right)[:width])
	}
	rn := utf8.RuneCountInString(right)
	if len(lines) > 0 {
		last := lines[len(lines)-1]
		ln := utf8.RuneCountInString(last)
		if ln+1+rn <= width {
			lines[len(lines)-1] = last + strings.Repeat(" ", width-ln-rn) + right
			return lines
		}
	}
	return append(lines, strings.Repeat(" ", width-rn)+right)
}
