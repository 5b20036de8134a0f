package notify

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeRecipientInternational(t *testing.T) {
	got, err := NormalizeRecipient("+91 98765 43210", "91")
	require.NoError(t, err)
	assert.Equal(t, "+919876543210", got)
}

func TestNormalizeRecipientDoubleZeroPrefix(t *testing.T) {
	got, err := NormalizeRecipient("00919876543210", "91")
	require.NoError(t, err)
	assert.Equal(t, "+919876543210", got)
}

func TestNormalizeRecipientLocalWithTrunkZero(t *testing.T) {
	got, err := NormalizeRecipient("098765 43210", "91")
	require.NoError(t, err)
	assert.Equal(t, "+919876543210", got)
}

func TestNormalizeRecipientLocalWithoutTrunkZero(t *testing.T) {
	got, err := NormalizeRecipient("9876543210", "91")
	require.NoError(t, err)
	assert.Equal(t, "+919876543210", got)
}

func TestNormalizeRecipientStripsFormatting(t *testing.T) {
	got, err := NormalizeRecipient("(098) 765-432.10", "91")
	require.NoError(t, err)
	assert.Equal(t, "+919876543210", got)
}

func TestNormalizeRecipientRejectsJunk(t *testing.T) {
	for _, raw := range []string{"", "   ", "not-a-number", "+12ab34567890", "12345", "+1234567890123456"} {
		_, err := NormalizeRecipient(raw, "91")
		require.Error(t, err, "expected %q to be rejected", raw)
		assert.True(t, errors.Is(err, ErrInvalidRecipient))
	}
}
