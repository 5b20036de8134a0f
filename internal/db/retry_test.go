package db

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestWithRetriesSucceedsFirstTry(t *testing.T) {
	calls := 0
	err := WithRetries(func() error {
		calls++
		return nil
	}, 3, func(err error) bool { return true })
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithRetriesRetriesRetryableErrors(t *testing.T) {
	calls := 0
	err := WithRetries(func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, 3, func(err error) bool { return true })
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetriesStopsOnNonRetryable(t *testing.T) {
	calls := 0
	permanent := errors.New("permanent")
	err := WithRetries(func() error {
		calls++
		return permanent
	}, 3, func(err error) bool { return false })
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestWithRetriesExhaustsAttempts(t *testing.T) {
	calls := 0
	err := WithRetries(func() error {
		calls++
		return errors.New("still failing")
	}, 2, func(err error) bool { return true })
	assert.Error(t, err)
	assert.Equal(t, 3, calls, "initial attempt plus two retries")
}

func TestIsMongoDuplicateKeyError(t *testing.T) {
	dup := mongo.WriteException{
		WriteErrors: mongo.WriteErrors{{Code: 11000, Message: "E11000 duplicate key error"}},
	}
	assert.True(t, IsMongoDuplicateKeyError(dup))

	other := mongo.WriteException{
		WriteErrors: mongo.WriteErrors{{Code: 121, Message: "Document failed validation"}},
	}
	assert.False(t, IsMongoDuplicateKeyError(other))
	assert.False(t, IsMongoDuplicateKeyError(errors.New("plain error")))
	assert.False(t, IsMongoDuplicateKeyError(nil))
}

func TestIsTransientTxnError(t *testing.T) {
	transient := mongo.CommandError{
		Code:   112,
		Labels: []string{"TransientTransactionError"},
	}
	assert.True(t, IsTransientTxnError(transient))

	plain := mongo.CommandError{Code: 11601}
	assert.False(t, IsTransientTxnError(plain))
	assert.False(t, IsTransientTxnError(nil))
}
