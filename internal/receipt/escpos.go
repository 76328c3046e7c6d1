package receipt

import "bytes"

// ESC/POS command bytes.
var (
	cmdInit  = []byte{0x1B, 0x40}             // ESC @
	cmdFeed3 = []byte{0x1B, 0x64, 0x03}       // ESC d 3 - feed 3 lines
	cmdCut   = []byte{0x1D, 0x56, 0x41, 0x00} // GS V A 0 - partial cut
)

// CutCommand returns the partial-cut sequence that ends every receipt.
func CutCommand() []byte {
	return bytes.Clone(cmdCut)
}

// InitCommand returns the printer reset sequence that starts every receipt.
func InitCommand() []byte {
	return bytes.Clone(cmdInit)
}

// FeedAndCut returns the trailer written after the last line.
func FeedAndCut() []byte {
	out := make([]byte, 0, len(cmdFeed3)+len(cmdCut))
	out = append(out, cmdFeed3...)
	return append(out, cmdCut...)
}

func cmdCodePage(n byte) []byte { return []byte{0x1B, 0x74, n} } // ESC t n

func cmdAlign(a Align) []byte { return []byte{0x1B, 0x61, byte(a)} } // ESC a n

func cmdBold(on bool) []byte { // ESC E n
	if on {
		return []byte{0x1B, 0x45, 0x01}
	}
	return []byte{0x1B, 0x45, 0x00}
}

func cmdSize(double bool) []byte { // GS ! n
	if double {
		return []byte{0x1D, 0x21, 0x11}
	}
	return []byte{0x1D, 0x21, 0x00}
}

// maxQRData keeps the QR symbol small enough for an 80mm roll.
const maxQRData = 700

// writeQR emits the GS ( k sequence for a model 2 QR code.
func writeQR(buf *bytes.Buffer, data string) {
	n := len(data) + 3
	buf.Write([]byte{0x1D, 0x28, 0x6B, 0x04, 0x00, 0x31, 0x41, 0x32, 0x00}) // model 2
	buf.Write([]byte{0x1D, 0x28, 0x6B, 0x03, 0x00, 0x31, 0x43, 0x06})       // module size 6
	buf.Write([]byte{0x1D, 0x28, 0x6B, 0x03, 0x00, 0x31, 0x45, 0x31})       // error correction M
	buf.Write([]byte{0x1D, 0x28, 0x6B, byte(n), byte(n >> 8), 0x31, 0x50, 0x30})
	buf.WriteString(data)
	buf.Write([]byte{0x1D, 0x28, 0x6B, 0x03, 0x00, 0x31, 0x51, 0x30}) // print
}
