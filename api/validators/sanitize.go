package validators

import (
	"strings"
	"unicode"
)

// CleanText folds whitespace runs to single spaces, drops control characters
// and caps the result at maxRunes characters. A cap of zero or less keeps the
// full string.
func CleanText(input string, maxRunes int) string {
	var b strings.Builder
	b.Grow(len(input))
	runes, pendingSpace := 0, false
	for _, r := range input {
		switch {
		case unicode.IsSpace(r):
			pendingSpace = b.Len() > 0
			continue
		case unicode.IsControl(r) || r == unicode.ReplacementChar:
			continue
		}
		if maxRunes > 0 && runes+btoi(pendingSpace) >= maxRunes {
			break
		}
		if pendingSpace {
			b.WriteByte(' ')
			runes++
			pendingSpace = false
		}
		b.WriteRune(r)
		runes++
	}
	return b.String()
}

func btoi(v bool) int {
	if v {
		return 1
	}
	return 0
}
