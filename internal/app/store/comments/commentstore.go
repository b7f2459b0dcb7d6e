// internal/app/store/comments/commentstore.go
package commentstore

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

var (
	ErrNotFound         = errors.New("comment not found")
	ErrAlreadyPublished = errors.New("comment already published")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("comments")}
}

func (s *Store) Insert(ctx context.Context, c models.Comment) (models.Comment, error) {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if _, err := s.c.InsertOne(ctx, c); err != nil {
		return models.Comment{}, err
	}
	return c, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Comment, error) {
	var c models.Comment
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Comment{}, ErrNotFound
	}
	if err != nil {
		return models.Comment{}, err
	}
	return c, nil
}

// ListUnpublished returns a response's unpublished comments in submission order.
func (s *Store) ListUnpublished(ctx context.Context, responseID primitive.ObjectID) ([]models.Comment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{"response_id": responseID, "is_published": false}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Comment
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CountUnpublishedInRound counts the pending comments of an enquiry's round.
func (s *Store) CountUnpublishedInRound(ctx context.Context, enquiryID primitive.ObjectID, round int) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{
		"enquiry_id":   enquiryID,
		"round_number": round,
		"is_published": false,
	})
}

// CountPublished returns how many comments on a response are published.
func (s *Store) CountPublished(ctx context.Context, responseID primitive.ObjectID) (int, error) {
	n, err := s.c.CountDocuments(ctx, bson.M{"response_id": responseID, "is_published": true})
	return int(n), err
}

// Publish marks an unpublished comment as published with the given number.
func (s *Store) Publish(ctx context.Context, id primitive.ObjectID, number int) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "is_published": false},
		bson.M{
			"$set":         bson.M{"is_published": true, "comment_number": number},
			"$currentDate": bson.M{"published_at": true},
		})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrAlreadyPublished
	}
	return nil
}

// UpdateDraft rewrites the text of a draft comment. It reports false when
// no draft matched.
func (s *Store) UpdateDraft(ctx context.Context, id primitive.ObjectID, postText string) (bool, error) {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "is_published": false},
		bson.M{"$set": bson.M{"post_text": postText}})
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

// DeleteUnpublished removes a draft comment.
func (s *Store) DeleteUnpublished(ctx context.Context, id primitive.ObjectID) (bool, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id, "is_published": false})
	if err != nil {
		return false, err
	}
	return res.DeletedCount == 1, nil
}

// DeleteByResponse removes every comment on a response.
func (s *Store) DeleteByResponse(ctx context.Context, responseID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"response_id": responseID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// DeleteByEnquiry removes every comment under an enquiry.
func (s *Store) DeleteByEnquiry(ctx context.Context, enquiryID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"enquiry_id": enquiryID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// IDsByEnquiry returns the ids of every comment under an enquiry.
func (s *Store) IDsByEnquiry(ctx context.Context, enquiryID primitive.ObjectID) ([]primitive.ObjectID, error) {
	return s.ids(ctx, bson.M{"enquiry_id": enquiryID})
}

// IDsByResponse returns the ids of every comment on a response.
func (s *Store) IDsByResponse(ctx context.Context, responseID primitive.ObjectID) ([]primitive.ObjectID, error) {
	return s.ids(ctx, bson.M{"response_id": responseID})
}

func (s *Store) ids(ctx context.Context, filter bson.M) ([]primitive.ObjectID, error) {
	cur, err := s.c.Find(ctx, filter, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []primitive.ObjectID
	for cur.Next(ctx) {
		var row struct {
			ID primitive.ObjectID `bson:"_id"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		out = append(out, row.ID)
	}
	return out, cur.Err()
}
