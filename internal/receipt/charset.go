package receipt

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

const placeholder = '?'

// DefaultCodePage has the euro sign and western accents.
const DefaultCodePage = "cp858"

type codePage struct {
	table *charmap.Charmap
	// number selected with ESC t n (Epson numbering)
	escpos byte
}

var codePages = map[string]codePage{
	"cp437":   {charmap.CodePage437, 0},
	"cp850":   {charmap.CodePage850, 2},
	"cp852":   {charmap.CodePage852, 18},
	"cp858":   {charmap.CodePage858, 19},
	"cp866":   {charmap.CodePage866, 17},
	"wpc1252": {charmap.Windows1252, 16},
}

// CodePages lists the supported printer character sets.
func CodePages() []string {
	names := make([]string, 0, len(codePages))
	for name := range codePages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lookupCodePage(name string) (codePage, error) {
	if name == "" {
		name = DefaultCodePage
	}
	cp, ok := codePages[strings.ToLower(name)]
	if !ok {
		return codePage{}, fmt.Errorf("unsupported code page %q", name)
	}
	return cp, nil
}

// encode maps each rune to exactly one byte of the code page. Runes the page
// cannot represent and control characters become the placeholder, so user
// text can never inject printer commands.
func (cp codePage) encode(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		switch {
		case r < 0x20 || r == 0x7F:
			out = append(out, placeholder)
		case r < 0x80:
			out = append(out, byte(r))
		default:
			b, ok := cp.table.EncodeRune(r)
			if !ok || b < 0x80 {
				b = placeholder
			}
			out = append(out, b)
		}
	}
	return out
}
