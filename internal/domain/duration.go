package domain

import (
	"strconv"
	"strings"
)

// FormatDuration renders catalog seconds as "H:MM:SS", "M:SS" or "S".
// Hours are omitted when zero, minutes are omitted when both hours and minutes
// are zero. Seconds are padded only under nonzero minutes, so 3605 is "1:00:5".
// Non-positive input yields an empty string.
func FormatDuration(seconds float64) string {
	if seconds <= 0 {
		return ""
	}
	total := int(seconds)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60

	var b strings.Builder
	if h > 0 {
		b.WriteString(strconv.Itoa(h))
		b.WriteByte(':')
		b.WriteString(pad2(m))
		b.WriteByte(':')
		if m > 0 {
			b.WriteString(pad2(s))
		} else {
			b.WriteString(strconv.Itoa(s))
		}
		return b.String()
	}
	if m > 0 {
		b.WriteString(strconv.Itoa(m))
		b.WriteByte(':')
		b.WriteString(pad2(s))
		return b.String()
	}
	return strconv.Itoa(s)
}

func pad2(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}
