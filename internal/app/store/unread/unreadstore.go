// internal/app/store/unread/unreadstore.go
package unreadstore

import (
	"context"
	"time"

	"github.com/dalemusser/rulepost/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("unread_posts")}
}

// Collection exposes the underlying collection for bulk writers.
func (s *Store) Collection() *mongo.Collection { return s.c }

// Ref identifies a post by id, type and display alias.
type Ref struct {
	PostID   primitive.ObjectID
	PostType string
	Alias    string
}

// MarkUnreadModel upserts an unread marker of post for user. Parent and
// grandparent ids are stored so a client can walk up the thread.
func MarkUnreadModel(userID primitive.ObjectID, post Ref, parentID, grandparentID *primitive.ObjectID, now time.Time) mongo.WriteModel {
	set := bson.M{
		"user_id":    userID,
		"post_id":    post.PostID,
		"post_type":  post.PostType,
		"post_alias": post.Alias,
		"is_unread":  true,
	}
	if parentID != nil {
		set["parent_id"] = *parentID
	}
	if grandparentID != nil {
		set["grandparent_id"] = *grandparentID
	}
	return mongo.NewUpdateOneModel().
		SetFilter(bson.M{"_id": models.UnreadID(userID, post.PostID)}).
		SetUpdate(bson.M{
			"$set":         set,
			"$setOnInsert": bson.M{"has_unread_child": false, "created_at": now},
		}).
		SetUpsert(true)
}

// MarkChildModel flags ancestor as having an unread descendant for user,
// creating the marker when the ancestor itself was already read.
func MarkChildModel(userID primitive.ObjectID, ancestor Ref, now time.Time) mongo.WriteModel {
	return mongo.NewUpdateOneModel().
		SetFilter(bson.M{"_id": models.UnreadID(userID, ancestor.PostID)}).
		SetUpdate(bson.M{
			"$set": bson.M{"has_unread_child": true},
			"$setOnInsert": bson.M{
				"user_id":    userID,
				"post_id":    ancestor.PostID,
				"post_type":  ancestor.PostType,
				"post_alias": ancestor.Alias,
				"is_unread":  false,
				"created_at": now,
			},
		}).
		SetUpsert(true)
}

// ListForUser returns the user's markers that still carry an unread flag.
func (s *Store) ListForUser(ctx context.Context, userID primitive.ObjectID) ([]models.UnreadPost, error) {
	filter := bson.M{
		"user_id": userID,
		"$or":     bson.A{bson.M{"is_unread": true}, bson.M{"has_unread_child": true}},
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.UnreadPost
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkRead clears the unread flag of one post for one user.
func (s *Store) MarkRead(ctx context.Context, userID, postID primitive.ObjectID) error {
	_, err := s.c.UpdateOne(ctx,
		bson.M{"_id": models.UnreadID(userID, postID)},
		bson.M{"$set": bson.M{"is_unread": false}})
	return err
}

// DeleteByPosts removes every marker of the given posts.
func (s *Store) DeleteByPosts(ctx context.Context, postIDs []primitive.ObjectID) (int64, error) {
	if len(postIDs) == 0 {
		return 0, nil
	}
	res, err := s.c.DeleteMany(ctx, bson.M{"post_id": bson.M{"$in": postIDs}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
