// internal/app/store/slotruns/slotrunstore.go
package slotrunstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/rulepost/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	StatusRunning = "running"
	StatusOK      = "ok"
	StatusFailed  = "failed"
)

var ErrNotFound = errors.New("slot run not found")

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("orchestrator_runs")}
}

// RunKey is the claim id of a slot on a local date ("2006-01-02").
func RunKey(slot, date string) string {
	return slot + "@" + date
}

// Claim inserts the run record for slot on date. It returns false when
// another process already claimed the same slot and date.
func (s *Store) Claim(ctx context.Context, slot, date, runID string, now time.Time) (bool, error) {
	run := models.SlotRun{
		ID:        RunKey(slot, date),
		Slot:      slot,
		RunID:     runID,
		Status:    StatusRunning,
		StartedAt: now.UTC(),
	}
	if _, err := s.c.InsertOne(ctx, run); err != nil {
		if wafflemongo.IsDup(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Finish records the outcome of a claimed run.
func (s *Store) Finish(ctx context.Context, slot, date string, runErr error, now time.Time) error {
	set := bson.M{"status": StatusOK, "finished_at": now.UTC()}
	if runErr != nil {
		set["status"] = StatusFailed
		set["error"] = runErr.Error()
	}
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": RunKey(slot, date)}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Release deletes a claim so a failed run can be retried by the next tick.
func (s *Store) Release(ctx context.Context, slot, date string) error {
	_, err := s.c.DeleteOne(ctx, bson.M{"_id": RunKey(slot, date), "status": bson.M{"$ne": StatusOK}})
	return err
}

func (s *Store) Get(ctx context.Context, slot, date string) (models.SlotRun, error) {
	var r models.SlotRun
	err := s.c.FindOne(ctx, bson.M{"_id": RunKey(slot, date)}).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.SlotRun{}, ErrNotFound
	}
	if err != nil {
		return models.SlotRun{}, err
	}
	return r, nil
}

// Recent returns the latest run records, newest first.
func (s *Store) Recent(ctx context.Context, limit int64) ([]models.SlotRun, error) {
	opts := options.Find().SetSort(bson.D{{Key: "started_at", Value: -1}}).SetLimit(limit)
	cur, err := s.c.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.SlotRun
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
