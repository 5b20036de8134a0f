package services

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ICounterService hands out sequential document numbers. The increment is a
// separate atomic operation performed outside the main transaction: if the
// transaction later aborts, the counter is not rolled back, so numbers may
// have gaps. Uniqueness matters more than density.
type ICounterService interface {
	Next(ctx context.Context, name string) (uint64, error)
}

const countersCollection = "counters"

// counterService implements ICounterService.
type counterService struct {
	db *mongo.Database
}

// NewCounterService creates a new CounterService.
func NewCounterService(db *mongo.Database) ICounterService {
	return &counterService{db: db}
}

// Next atomically increments and returns the named counter, creating it at 1
// on first use.
func (s *counterService) Next(ctx context.Context, name string) (uint64, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var doc struct {
		Seq uint64 `bson:"seq"`
	}
	err := s.db.Collection(countersCollection).FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": 1}},
		opts,
	).Decode(&doc)
	if err != nil {
		return 0, fmt.Errorf("failed to increment counter %s: %w", name, err)
	}
	return doc.Seq, nil
}
