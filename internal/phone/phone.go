// Package phone normalizes Bangladeshi mobile numbers to the canonical
// 11-digit local form ("01XXXXXXXXX").
package phone

import (
	"regexp"
	"strings"
)

const countryCode = "880"

var canonicalRe = regexp.MustCompile(`^01[3-9][0-9]{8}$`)

// Normalize strips separators and converts "+880…"/"880…" to the local form.
// Inputs that cannot be normalized are returned cleaned but otherwise untouched.
func Normalize(raw string) string {
	s := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '.':
			return -1
		}
		return r
	}, strings.TrimSpace(raw))

	s = strings.TrimPrefix(s, "+")
	if strings.HasPrefix(s, countryCode) && len(s) == len(countryCode)+10 {
		s = "0" + s[len(countryCode):]
	}
	return s
}

// Valid reports whether raw normalizes to a canonical mobile number.
func Valid(raw string) bool {
	return canonicalRe.MatchString(Normalize(raw))
}

// Alternate returns the other stored form of a number: "01…" becomes "8801…"
// and "8801…" becomes "01…". Legacy rows were written in either form.
func Alternate(raw string) (string, bool) {
	s := strings.TrimPrefix(strings.TrimSpace(raw), "+")
	switch {
	case strings.HasPrefix(s, countryCode) && len(s) == len(countryCode)+10:
		return "0" + s[len(countryCode):], true
	case strings.HasPrefix(s, "01") && len(s) == 11:
		return countryCode + s[1:], true
	}
	return "", false
}
