package receipt

import (
	"bytes"
)

// FormattingError means a receipt could not be turned into printer bytes.
// Well-formed orders never produce one.
type FormattingError struct {
	Err error
}

func (e *FormattingError) Error() string {
	return "receipt formatting failed: " + e.Err.Error()
}

func (e *FormattingError) Unwrap() error { return e.Err }

type style struct {
	align  Align
	bold   bool
	double bool
}

// Encode renders a document as an ESC/POS byte stream: reset, code page,
// the lines, feed and cut.
func Encode(doc Document, codePageName string) ([]byte, error) {
	cp, err := lookupCodePage(codePageName)
	if err != nil {
		return nil, &FormattingError{Err: err}
	}

	var buf bytes.Buffer
	buf.Write(cmdInit)
	buf.Write(cmdCodePage(cp.escpos))

	var cur style
	apply := func(next style) {
		if next.align != cur.align {
			buf.Write(cmdAlign(next.align))
		}
		if next.bold != cur.bold {
			buf.Write(cmdBold(next.bold))
		}
		if next.double != cur.double {
			buf.Write(cmdSize(next.double))
		}
		cur = next
	}

	for _, l := range doc.Lines {
		apply(style{align: l.Align, bold: l.Bold, double: l.Double})
		if l.QR != "" {
			writeQR(&buf, l.QR)
			buf.WriteByte('\n')
			continue
		}
		buf.Write(cp.encode(l.Text))
		buf.WriteByte('\n')
	}
	apply(style{})

	buf.Write(FeedAndCut())
	return buf.Bytes(), nil
}
