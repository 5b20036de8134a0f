package db

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

// Operation is a function that performs an action and returns an error if it fails.
type Operation func() error

// RetryableCheck is a function that decides whether a failure is worth another attempt.
type RetryableCheck func(err error) bool

const DefaultMaxRetries = 3

// Try executes an operation with default retry settings for transient
// transaction conflicts and duplicate key races.
func Try(op Operation) error {
	return WithRetries(op, DefaultMaxRetries, func(err error) bool {
		return IsTransientTxnError(err) || IsMongoDuplicateKeyError(err)
	})
}

// WithRetries executes an operation with a retry mechanism for retryable errors.
// It attempts the operation up to maxRetries times beyond the initial attempt,
// with a simple incremental backoff between attempts.
func WithRetries(op Operation, maxRetries int, isRetryable RetryableCheck) error {
	var err error
	// Loop for initial attempt (attempt = 0) + maxRetries
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err = op()
		if err == nil {
			return nil // Success
		}

		// If this was the last attempt, break out of the loop to return the error.
		if attempt == maxRetries {
			break
		}

		if isRetryable(err) {
			time.Sleep(time.Duration(50*(attempt+1)) * time.Millisecond)
			// Continue to the next attempt (handled by the loop)
		} else {
			return err // Not retryable, return immediately
		}
	}
	return err // All attempts failed or last attempt failed
}

// IsMongoDuplicateKeyError checks if an error from MongoDB is a duplicate key error (code 11000).
func IsMongoDuplicateKeyError(err error) bool {
	var e mongo.WriteException
	if errors.As(err, &e) {
		for _, we := range e.WriteErrors {
			if we.Code == 11000 {
				return true
			}
		}
	}
	// Also check for BulkWriteException, which can contain duplicate key errors
	var bwe mongo.BulkWriteException
	if errors.As(err, &bwe) {
		for _, writeError := range bwe.WriteErrors {
			if writeError.Code == 11000 {
				return true
			}
		}
	}
	return false
}
