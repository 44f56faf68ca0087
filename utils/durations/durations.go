// Package durations parses the human-readable runtime strings entries carry,
// e.g. "2h 11m" or "95m".
package durations

import (
	"strconv"
	"strings"
)

// Minutes parses a runtime string into whole minutes. Accepted forms are any
// mix of "<N>h" and "<N>m" tokens separated by spaces ("2h", "1h 43m",
// "95m"). ok is false for anything unparseable; a blank string is simply 0.
func Minutes(s string) (minutes int, ok bool) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, false
	}

	matched := false
	for _, field := range strings.Fields(s) {
		switch {
		case strings.HasSuffix(field, "h"):
			n, err := strconv.Atoi(strings.TrimSuffix(field, "h"))
			if err != nil || n < 0 {
				return 0, false
			}
			minutes += n * 60
			matched = true
		case strings.HasSuffix(field, "m"):
			n, err := strconv.Atoi(strings.TrimSuffix(field, "m"))
			if err != nil || n < 0 {
				return 0, false
			}
			minutes += n
			matched = true
		default:
			return 0, false
		}
	}

	return minutes, matched
}
