// internal/app/store/drafts/draftstore.go
package draftstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/rulepost/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrNotFound = errors.New("draft not found")

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("drafts")}
}

// Collection exposes the underlying collection for bulk writers.
func (s *Store) Collection() *mongo.Collection { return s.c }

func (s *Store) Insert(ctx context.Context, d models.Draft) error {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	if d.ParentIDs == nil {
		d.ParentIDs = []primitive.ObjectID{}
	}
	_, err := s.c.InsertOne(ctx, d)
	return err
}

func (s *Store) Get(ctx context.Context, postID primitive.ObjectID) (models.Draft, error) {
	var d models.Draft
	err := s.c.FindOne(ctx, bson.M{"_id": postID}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Draft{}, ErrNotFound
	}
	if err != nil {
		return models.Draft{}, err
	}
	return d, nil
}

// ListByTeam returns a team's drafts, newest first.
func (s *Store) ListByTeam(ctx context.Context, team string) ([]models.Draft, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := s.c.Find(ctx, bson.M{"author_team": team}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Draft
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteMany removes the drafts of the given posts.
func (s *Store) DeleteMany(ctx context.Context, postIDs []primitive.ObjectID) (int64, error) {
	if len(postIDs) == 0 {
		return 0, nil
	}
	res, err := s.c.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": postIDs}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// DeleteByParent removes every draft whose parent chain contains parentID.
func (s *Store) DeleteByParent(ctx context.Context, parentID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"parent_ids": parentID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// DeleteModel is the bulk form of a single draft delete.
func DeleteModel(postID primitive.ObjectID) mongo.WriteModel {
	return mongo.NewDeleteOneModel().SetFilter(bson.M{"_id": postID})
}
