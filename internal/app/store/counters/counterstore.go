// internal/app/store/counters/counterstore.go
package counterstore

import (
	"context"
	"errors"

	"github.com/dalemusser/rulepost/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("counters")}
}

// Get returns the counter value, or 0 when the counter does not exist.
func (s *Store) Get(ctx context.Context, name string) (int, error) {
	var c models.Counter
	err := s.c.FindOne(ctx, bson.M{"_id": name}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return c.Value, nil
}

// Set writes the counter value, creating the counter if needed.
func (s *Store) Set(ctx context.Context, name string, value int) error {
	_, err := s.c.UpdateOne(ctx,
		bson.M{"_id": name},
		bson.M{"$set": bson.M{"value": value}},
		options.Update().SetUpsert(true))
	return err
}
