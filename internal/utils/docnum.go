package utils

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// Document number prefixes. The formatted numbers appear in client-facing
// messages and documents, so the 3-letter-prefix + zero-padded 5-digit shape
// is part of the external contract.
const (
	PrefixQuotation = "QT"
	PrefixProject   = "PRJ"
	PrefixInvoice   = "INV"
)

var docNumRe = regexp.MustCompile(`^([A-Z]{2,3})(\d{5,})$`)

// FormatDocNumber renders a counter value as a human-readable document
// number, e.g. FormatDocNumber("PRJ", 7) == "PRJ00007". Counters beyond
// 99999 simply widen.
func FormatDocNumber(prefix string, seq uint64) string {
	return fmt.Sprintf("%s%05d", prefix, seq)
}

// ParseDocNumber splits a document number back into its prefix and counter
// value. It is lenient about width but not about shape.
func ParseDocNumber(s string) (string, uint64, error) {
	m := docNumRe.FindStringSubmatch(s)
	if m == nil {
		return "", 0, errors.New("invalid document number format")
	}
	seq, err := strconv.ParseUint(m[2], 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("invalid document number sequence: %w", err)
	}
	return m[1], seq, nil
}
