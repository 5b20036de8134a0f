package notify

import (
	"fmt"
	"strings"
)

// NormalizeRecipient canonicalizes a phone number to international format
// ("+<country><subscriber>") before it is used for lock keys or dispatch.
// defaultCountryCode is applied to local numbers (leading zero or bare
// subscriber digits). Malformed input fails with ErrInvalidRecipient.
func NormalizeRecipient(raw, defaultCountryCode string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '.':
			return -1
		}
		return r
	}, strings.TrimSpace(raw))

	if cleaned == "" {
		return "", fmt.Errorf("%w: empty number", ErrInvalidRecipient)
	}

	// "00" international prefix is equivalent to "+".
	if strings.HasPrefix(cleaned, "00") {
		cleaned = "+" + cleaned[2:]
	}

	hasPlus := strings.HasPrefix(cleaned, "+")
	digits := cleaned
	if hasPlus {
		digits = cleaned[1:]
	}

	for _, r := range digits {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("%w: %q", ErrInvalidRecipient, raw)
		}
	}

	if !hasPlus {
		// Local number: strip a single trunk zero and apply the default
		// country code.
		digits = strings.TrimPrefix(digits, "0")
		digits = defaultCountryCode + digits
	}

	// E.164 allows at most 15 digits; anything under 8 is junk input.
	if len(digits) < 8 || len(digits) > 15 {
		return "", fmt.Errorf("%w: %q", ErrInvalidRecipient, raw)
	}

	return "+" + digits, nil
}
