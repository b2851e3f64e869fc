package payment

import (
	"strings"

	"github.com/quickbite/orderflow/internal/fault"
)

// NormalizePhone converts a user-entered number into the gateway's
// international digits-only format. A national number (leading zero) gets the
// configured country code prefixed.
func NormalizePhone(raw, countryCode string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '.':
			return -1
		}
		return r
	}, strings.TrimSpace(raw))

	switch {
	case strings.HasPrefix(cleaned, "+"):
		cleaned = cleaned[1:]
	case strings.HasPrefix(cleaned, "00"):
		cleaned = cleaned[2:]
	case strings.HasPrefix(cleaned, "0"):
		cleaned = countryCode + cleaned[1:]
	}

	if len(cleaned) < 8 || len(cleaned) > 15 {
		return "", fault.Validation("invalid_phone", "phone number has an invalid length")
	}
	for _, r := range cleaned {
		if r < '0' || r > '9' {
			return "", fault.Validation("invalid_phone", "phone number contains non-digits")
		}
	}

	return cleaned, nil
}
