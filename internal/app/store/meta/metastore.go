// internal/app/store/meta/metastore.go
package metastore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/rulepost/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var ErrNotFound = errors.New("post meta not found")

// Store holds the private author identity of every post.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("post_meta")}
}

func (s *Store) Insert(ctx context.Context, m models.PostMeta) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err := s.c.InsertOne(ctx, m)
	return err
}

func (s *Store) Get(ctx context.Context, postID primitive.ObjectID) (models.PostMeta, error) {
	var m models.PostMeta
	err := s.c.FindOne(ctx, bson.M{"_id": postID}).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.PostMeta{}, ErrNotFound
	}
	if err != nil {
		return models.PostMeta{}, err
	}
	return m, nil
}

// DeleteMany removes the meta records of the given posts.
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
