package db

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

// TxnRunner executes fn inside one atomic unit. All reads and writes made by
// fn with the provided context either all land or none do. Implementations
// decide the isolation mechanics; callers only rely on the atomicity.
type TxnRunner func(ctx context.Context, fn func(ctx context.Context) error) error

// NewTxnRunner returns a TxnRunner backed by a MongoDB multi-document
// transaction with snapshot read concern and majority write concern.
// Requires a replica set or mongos.
func NewTxnRunner(client *mongo.Client) TxnRunner {
	return func(ctx context.Context, fn func(ctx context.Context) error) error {
		sess, err := client.StartSession()
		if err != nil {
			return err
		}
		defer sess.EndSession(ctx)

		txnOpts := options.Transaction().
			SetReadConcern(readconcern.Snapshot()).
			SetWriteConcern(writeconcern.Majority())

		_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
			return nil, fn(sc)
		}, txnOpts)
		return err
	}
}

// NoTxn executes fn without any transaction. Used in tests and against
// standalone mongod instances where sessions are unavailable; the writes are
// applied directly and are not atomic as a group.
func NoTxn(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// IsTransientTxnError reports whether a transaction failed due to a
// transient conflict (e.g. a write conflict with a concurrent transaction)
// and is worth retrying from the top.
func IsTransientTxnError(err error) bool {
	if err == nil {
		return false
	}
	if ce, ok := err.(mongo.CommandError); ok {
		return ce.HasErrorLabel("TransientTransactionError") ||
			ce.HasErrorLabel("UnknownTransactionCommitResult")
	}
	if le, ok := err.(mongo.LabeledError); ok {
		return le.HasErrorLabel("TransientTransactionError") ||
			le.HasErrorLabel("UnknownTransactionCommitResult")
	}
	return false
}
