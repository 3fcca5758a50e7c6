// Package phone normalizes raw phone strings into the forms used by the
// helpdesk directory search and the messaging gateway.
package phone

import "strings"

// CoreLength is the length of a national subscriber number without the
// country/trunk prefix.
const CoreLength = 10

// Digits returns raw with every non-digit character removed.
func Digits(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		if ch := raw[i]; ch >= '0' && ch <= '9' {
			b.WriteByte(ch)
		}
	}
	return b.String()
}

// HasDigit reports whether raw contains at least one ASCII digit.
func HasDigit(raw string) bool {
	return strings.ContainsAny(raw, "0123456789")
}

// Core returns the 10-digit national number for raw. An 11-digit number with a
// leading 7 or 8 loses its first digit. Any other digit string is returned
// unchanged, so callers must treat len != CoreLength as an ambiguous format.
func Core(raw string) string {
	d := Digits(raw)
	if len(d) == CoreLength+1 && (d[0] == '7' || d[0] == '8') {
		return d[1:]
	}
	return d
}

// IsCore reports whether core is a well-formed national number.
func IsCore(core string) bool {
	return len(core) == CoreLength
}

// MessagingFormat returns raw in the gateway's international form with a
// leading country code 7.
func MessagingFormat(raw string) string {
	d := Digits(raw)
	switch {
	case len(d) == CoreLength:
		return "7" + d
	case len(d) == CoreLength+1 && d[0] == '8':
		return "7" + d[1:]
	default:
		return d
	}
}

// SearchVariants returns the directory search terms for raw: the three
// prefixed spellings of a well-formed core, otherwise raw itself.
func SearchVariants(raw string) []string {
	core := Core(raw)
	if !IsCore(core) {
		return []string{raw}
	}
	return []string{"7" + core, "8" + core, "+7" + core}
}
