// internal/app/store/publishevents/publisheventstore.go
package publisheventstore

import (
	"context"
	"time"

	"github.com/dalemusser/rulepost/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefaultBatch bounds how many pending events one digest run reads.
const DefaultBatch = 500

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("publish_events")}
}

// Collection exposes the underlying collection for bulk writers.
func (s *Store) Collection() *mongo.Collection { return s.c }

// InsertModel is the bulk form of queuing one event.
func InsertModel(e models.PublishEvent) mongo.WriteModel {
	if e.ID.IsZero() {
		e.ID = primitive.NewObjectID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	e.Processed = false
	return mongo.NewInsertOneModel().SetDocument(e)
}

// ListPending returns up to limit unprocessed events in publication order.
func (s *Store) ListPending(ctx context.Context, limit int) ([]models.PublishEvent, error) {
	if limit <= 0 {
		limit = DefaultBatch
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "published_at", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit))
	cur, err := s.c.Find(ctx, bson.M{"processed": false}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.PublishEvent
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkProcessed flags the given events as sent.
func (s *Store) MarkProcessed(ctx context.Context, ids []primitive.ObjectID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.c.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}},
		bson.M{"$set": bson.M{"processed": true, "processed_at": at.UTC()}})
	return err
}

// DeletePendingFor removes unprocessed events that reference any of the
// given posts, as enquiry, response or comment.
func (s *Store) DeletePendingFor(ctx context.Context, postIDs []primitive.ObjectID) (int64, error) {
	if len(postIDs) == 0 {
		return 0, nil
	}
	in := bson.M{"$in": postIDs}
	res, err := s.c.DeleteMany(ctx, bson.M{
		"processed": false,
		"$or": bson.A{
			bson.M{"enquiry_id": in},
			bson.M{"response_id": in},
			bson.M{"comment_id": in},
		},
	})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
