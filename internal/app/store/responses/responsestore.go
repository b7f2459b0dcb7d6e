// internal/app/store/responses/responsestore.go
package responsestore

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
	ErrNotFound         = errors.New("response not found")
	ErrAlreadyPublished = errors.New("response already published")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("responses")}
}

func (s *Store) Insert(ctx context.Context, r models.Response) (models.Response, error) {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	if _, err := s.c.InsertOne(ctx, r); err != nil {
		return models.Response{}, err
	}
	return r, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Response, error) {
	var r models.Response
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Response{}, ErrNotFound
	}
	if err != nil {
		return models.Response{}, err
	}
	return r, nil
}

// ListUnpublished returns unpublished responses of an enquiry for one
// round, restricted to RC or team authors, in submission order.
func (s *Store) ListUnpublished(ctx context.Context, enquiryID primitive.ObjectID, round int, fromRC bool) ([]models.Response, error) {
	return s.find(ctx, bson.M{
		"enquiry_id":   enquiryID,
		"round_number": round,
		"from_rc":      fromRC,
		"is_published": false,
	})
}

// ListPublishedTeam returns published team responses of an enquiry for one round.
func (s *Store) ListPublishedTeam(ctx context.Context, enquiryID primitive.ObjectID, round int) ([]models.Response, error) {
	return s.find(ctx, bson.M{
		"enquiry_id":   enquiryID,
		"round_number": round,
		"from_rc":      false,
		"is_published": true,
	})
}

// ListByEnquiry returns every response of an enquiry.
func (s *Store) ListByEnquiry(ctx context.Context, enquiryID primitive.ObjectID) ([]models.Response, error) {
	return s.find(ctx, bson.M{"enquiry_id": enquiryID})
}

func (s *Store) find(ctx context.Context, filter bson.M) ([]models.Response, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Response
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Publish marks an unpublished response as published with the given number.
func (s *Store) Publish(ctx context.Context, id primitive.ObjectID, number int) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "is_published": false},
		bson.M{
			"$set":         bson.M{"is_published": true, "response_number": number},
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

// IncCommentCount adds n to the response's published comment count.
func (s *Store) IncCommentCount(ctx context.Context, id primitive.ObjectID, n int) error {
	_, err := s.c.UpdateByID(ctx, id, bson.M{"$inc": bson.M{"comment_count": n}})
	return err
}

// SetAttachments replaces the attachment list.
func (s *Store) SetAttachments(ctx context.Context, id primitive.ObjectID, atts []models.Attachment) error {
	_, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{"attachments": atts}})
	return err
}

// UpdateDraft rewrites the text and attachments of a draft response. It
// reports false when no draft matched.
func (s *Store) UpdateDraft(ctx context.Context, id primitive.ObjectID, postText string, atts []models.Attachment) (bool, error) {
	update := bson.M{"$set": bson.M{"post_text": postText, "attachments": atts}}
	if len(atts) == 0 {
		update = bson.M{
			"$set":   bson.M{"post_text": postText},
			"$unset": bson.M{"attachments": ""},
		}
	}
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id, "is_published": false}, update)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

// DeleteUnpublished removes a draft response. Published responses are kept.
func (s *Store) DeleteUnpublished(ctx context.Context, id primitive.ObjectID) (bool, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id, "is_published": false})
	if err != nil {
		return false, err
	}
	return res.DeletedCount == 1, nil
}

// DeleteByEnquiry removes every response of an enquiry.
func (s *Store) DeleteByEnquiry(ctx context.Context, enquiryID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"enquiry_id": enquiryID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
