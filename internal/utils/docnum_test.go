package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatDocNumber(t *testing.T) {
	assert.Equal(t, "QT00001", FormatDocNumber(PrefixQuotation, 1))
	assert.Equal(t, "PRJ00042", FormatDocNumber(PrefixProject, 42))
	assert.Equal(t, "INV99999", FormatDocNumber(PrefixInvoice, 99999))
}

func TestFormatDocNumberWidensBeyondPadding(t *testing.T) {
	assert.Equal(t, "QT100000", FormatDocNumber(PrefixQuotation, 100000))
}

func TestParseDocNumber(t *testing.T) {
	prefix, seq, err := ParseDocNumber("PRJ00007")
	require.NoError(t, err)
	assert.Equal(t, "PRJ", prefix)
	assert.Equal(t, uint64(7), seq)
}

func TestParseDocNumberRoundTrip(t *testing.T) {
	for _, p := range []string{PrefixQuotation, PrefixProject, PrefixInvoice} {
		formatted := FormatDocNumber(p, 123)
		prefix, seq, err := ParseDocNumber(formatted)
		require.NoError(t, err)
		assert.Equal(t, p, prefix)
		assert.Equal(t, uint64(123), seq)
	}
}

func TestParseDocNumberRejectsMalformed(t *testing.T) {
	for _, s := range []string{"", "QT", "00001", "qt00001", "QT1", "QUOT00001", "QT0000a"} {
		_, _, err := ParseDocNumber(s)
		assert.Error(t, err, "expected %q to be rejected", s)
	}
}

func TestNewAccessToken(t *testing.T) {
	a := NewAccessToken()
	b := NewAccessToken()
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 64)
	assert.NotContains(t, a, "-")
}
