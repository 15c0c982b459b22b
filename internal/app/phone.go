package app

import "strings"

// NormalizePhone strips everything but digits, drops a single leading zero and
// prefixes countryCode when exactly ten digits remain. Longer numbers are assumed
// to already carry a country code and pass through.
func NormalizePhone(raw, countryCode string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := strings.TrimPrefix(b.String(), "0")
	if len(digits) == 10 {
		digits = countryCode + digits
	}
	return digits
}

// ChatID builds the provider recipient id, e.g. 919876543210@c.us.
func ChatID(normalizedPhone, suffix string) string {
	return normalizedPhone + "@" + suffix
}
