// Package phone normalizes WhatsApp sender identifiers into canonical
// phone numbers so webhook callbacks and chat sessions key the same user.
package phone

import "strings"

// DefaultCountryCode is prepended to bare national numbers.
const DefaultCountryCode = "91"

var jidSuffixes = []string{"@s.whatsapp.net", "@c.us", "@g.us"}

// Canonical converts a raw sender identifier into canonical digits-only
// form with a country code prefix. Inputs may be WhatsApp JIDs
// ("919812345678@s.whatsapp.net"), formatted numbers ("+91 98123-45678"),
// or bare ten-digit numbers.
func Canonical(raw string) string {
	return CanonicalWithCountryCode(raw, DefaultCountryCode)
}

// CanonicalWithCountryCode is Canonical with an explicit country code.
func CanonicalWithCountryCode(raw, countryCode string) string {
	s := strings.TrimSpace(raw)
	for _, suffix := range jidSuffixes {
		if idx := strings.Index(s, suffix); idx >= 0 {
			s = s[:idx]
			break
		}
	}

	var digits strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	n := digits.String()
	if n == "" {
		return ""
	}

	if !strings.HasPrefix(n, countryCode) {
		n = countryCode + n
	}
	// A number like "919812345678" gains a second prefix above when the
	// national part itself starts with the country code digits. Strip the
	// doubled prefix back down.
	doubled := countryCode + countryCode
	if strings.HasPrefix(n, doubled) && len(n) > len(doubled)+8 {
		n = n[len(countryCode):]
	}
	return n
}

// SameUser reports whether two raw identifiers refer to the same canonical
// number.
func SameUser(a, b string) bool {
	ca := Canonical(a)
	return ca != "" && ca == Canonical(b)
}

// Suffix returns the last n digits of the canonical form of raw, or the
// whole canonical number when shorter than n. Used for request id tails.
func Suffix(raw string, n int) string {
	c := Canonical(raw)
	if len(c) <= n {
		return c
	}
	return c[len(c)-n:]
}
