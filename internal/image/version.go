package image

import (
	"strconv"
	"strings"
	"unicode"
)

// splitVersion breaks a loose version string into numeric and alphabetic
// components, e.g. "1.10b2" becomes [1 10 b 2].
func splitVersion(v string) []string {
	var parts []string
	var cur strings.Builder
	var curDigit bool
	flush := func() {
		if cur.Len() > 0 {
			parts = append(parts, cur.String())
			cur.Reset()
		}
	}
	for _, r := range v {
		switch {
		case r == '.' || r == '-' || r == '_':
			flush()
		case unicode.IsDigit(r):
			if cur.Len() > 0 && !curDigit {
				flush()
			}
			curDigit = true
			cur.WriteRune(r)
		default:
			if cur.Len() > 0 && curDigit {
				flush()
			}
			curDigit = false
			cur.WriteRune(r)
		}
	}
	flush()
	return parts
}

// CompareVersions returns a negative number, zero or a positive number when a
// is lower than, equal to or greater than b. Numeric components compare as
// numbers so "1.10" is greater than "1.9". A numeric component sorts before an
// alphabetic one and a version sorts before any version it is a prefix of.
func CompareVersions(a, b string) int {
	pa, pb := splitVersion(a), splitVersion(b)
	for i := 0; i < len(pa) && i < len(pb); i++ {
		if c := compareComponent(pa[i], pb[i]); c != 0 {
			return c
		}
	}
	return len(pa) - len(pb)
}

func compareComponent(a, b string) int {
	na, errA := strconv.ParseUint(a, 10, 64)
	nb, errB := strconv.ParseUint(b, 10, 64)
	switch {
	case errA == nil && errB == nil:
		switch {
		case na < nb:
			return -1
		case na > nb:
			return 1
		}
		return 0
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	}
	return strings.Compare(a, b)
}
