package profile

import (
	"strconv"
	"strings"
)

// Compare orders API version strings such as "2017-05-10" and
// "2018-02-01-preview". Dates compare numerically; a suffixed version sorts
// before the plain version of the same date. Non-date strings fall back to
// lexical order.
func Compare(a, b string) int {
	da, sa, okA := split(a)
	db, sb, okB := split(b)
	if !okA || !okB {
		return strings.Compare(a, b)
	}
	for i := range da {
		if da[i] != db[i] {
			if da[i] < db[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case sa == sb:
		return 0
	case sa == "":
		return 1
	case sb == "":
		return -1
	default:
		return strings.Compare(sa, sb)
	}
}

func split(v string) ([3]int, string, bool) {
	var date [3]int
	parts := strings.SplitN(strings.TrimSpace(v), "-", 4)
	if len(parts) < 3 {
		return date, "", false
	}
	for i := 0; i < 3; i++ {
		n, err := strconv.Atoi(parts[i])
		if err != nil {
			return date, "", false
		}
		date[i] = n
	}
	suffix := ""
	if len(parts) == 4 {
		suffix = strings.ToLower(parts[3])
	}
	return date, suffix, true
}
