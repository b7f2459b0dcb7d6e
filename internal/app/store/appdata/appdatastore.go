// internal/app/store/appdata/appdatastore.go
package appdatastore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/rulepost/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const dateTimesID = "date_times"

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("app_data")}
}

// GetDateTimes returns the schedule document. A missing document yields
// a zero value with its id set.
func (s *Store) GetDateTimes(ctx context.Context) (models.DateTimes, error) {
	var d models.DateTimes
	err := s.c.FindOne(ctx, bson.M{"_id": dateTimesID}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.DateTimes{ID: dateTimesID}, nil
	}
	if err != nil {
		return models.DateTimes{}, err
	}
	return d, nil
}

// SetNextCommentPublication stores the next comment publication slot.
func (s *Store) SetNextCommentPublication(ctx context.Context, at time.Time) error {
	_, err := s.c.UpdateOne(ctx,
		bson.M{"_id": dateTimesID},
		bson.M{"$set": bson.M{
			"next_comment_publication_time": at.UTC(),
			"updated_at":                    time.Now().UTC(),
		}},
		options.Update().SetUpsert(true))
	return err
}
