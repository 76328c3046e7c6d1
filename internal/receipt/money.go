package receipt

import "strconv"

// FormatCents renders an amount in minor units as a fixed-point string with
// two decimals. 1050 -> "10.50", -200 -> "-2.00".
func FormatCents(cents int64) string {
	neg := cents < 0
	u := uint64(cents)
	if neg {
		u = uint64(-(cents + 1)) + 1
	}
	frac := u % 100
	s := strconv.FormatUint(u/100, 10) + "."
	if frac < 10 {
		s += "0"
	}
	s += strconv.FormatUint(frac, 10)
	if neg {
		return "-" + s
	}
	return s
}

// formatDelta renders a price adjustment with an explicit sign. Zero yields "".
func formatDelta(cents int64) string {
	switch {
	case cents > 0:
		return "+" + FormatCents(cents)
	case cents < 0:
		return FormatCents(cents)
	}
	return ""
}
