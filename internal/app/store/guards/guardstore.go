// internal/app/store/guards/guardstore.go
package guardstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/rulepost/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// ErrDuplicate means the team already responded in this round.
var ErrDuplicate = errors.New("team already responded in this round")

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("response_guards")}
}

// GuardID is the create-only key of a team's response in a round.
func GuardID(enquiryID primitive.ObjectID, team string, round int) string {
	return fmt.Sprintf("%s:%s_%d", enquiryID.Hex(), team, round)
}

// Create inserts the guard. A second guard for the same enquiry, team and
// round returns ErrDuplicate.
func (s *Store) Create(ctx context.Context, enquiryID primitive.ObjectID, team string, round int, responseID primitive.ObjectID) error {
	g := models.ResponseGuard{
		ID:         GuardID(enquiryID, team, round),
		EnquiryID:  enquiryID,
		Team:       team,
		Round:      round,
		ResponseID: responseID,
		CreatedAt:  time.Now().UTC(),
	}
	if _, err := s.c.InsertOne(ctx, g); err != nil {
		if wafflemongo.IsDup(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// Exists reports whether the team already holds the guard for the round.
func (s *Store) Exists(ctx context.Context, enquiryID primitive.ObjectID, team string, round int) (bool, error) {
	n, err := s.c.CountDocuments(ctx, bson.M{"_id": GuardID(enquiryID, team, round)})
	return n > 0, err
}

// DeleteByResponse frees the guard held by a deleted draft response.
func (s *Store) DeleteByResponse(ctx context.Context, responseID primitive.ObjectID) error {
	_, err := s.c.DeleteMany(ctx, bson.M{"response_id": responseID})
	return err
}

// DeleteByEnquiry removes every guard of an enquiry.
func (s *Store) DeleteByEnquiry(ctx context.Context, enquiryID primitive.ObjectID) error {
	_, err := s.c.DeleteMany(ctx, bson.M{"enquiry_id": enquiryID})
	return err
}
