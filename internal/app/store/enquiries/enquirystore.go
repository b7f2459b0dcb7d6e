// internal/app/store/enquiries/enquirystore.go
package enquirystore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/rulepost/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrNotFound            = errors.New("enquiry not found")
	ErrDuplicateNumber     = errors.New("enquiry number already in use")
	ErrStageChanged        = errors.New("enquiry stage changed concurrently")
	ErrPublishedNotDeleted = errors.New("published enquiries cannot be deleted")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("enquiries")}
}

// Insert stores a new enquiry. The caller assigns ID and EnquiryNumber.
func (s *Store) Insert(ctx context.Context, e models.Enquiry) (models.Enquiry, error) {
	e.TitleCI = text.Fold(e.Title)
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if _, err := s.c.InsertOne(ctx, e); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Enquiry{}, ErrDuplicateNumber
		}
		return models.Enquiry{}, err
	}
	return e, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Enquiry, error) {
	var e models.Enquiry
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&e)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Enquiry{}, ErrNotFound
	}
	if err != nil {
		return models.Enquiry{}, err
	}
	return e, nil
}

// MaxEnquiryNumber returns the highest enquiry_number in use, or 0.
func (s *Store) MaxEnquiryNumber(ctx context.Context) (int, error) {
	opts := options.FindOne().
		SetSort(bson.D{{Key: "enquiry_number", Value: -1}}).
		SetProjection(bson.M{"enquiry_number": 1})
	var row struct {
		EnquiryNumber int `bson:"enquiry_number"`
	}
	err := s.c.FindOne(ctx, bson.M{}, opts).Decode(&row)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return row.EnquiryNumber, nil
}

// ListUnpublished returns enquiries awaiting their first publication,
// oldest number first.
func (s *Store) ListUnpublished(ctx context.Context) ([]models.Enquiry, error) {
	return s.find(ctx, bson.M{"is_published": false})
}

// ListInCommentWindow returns open, published enquiries whose comment window is open.
func (s *Store) ListInCommentWindow(ctx context.Context) ([]models.Enquiry, error) {
	return s.find(ctx, bson.M{
		"is_open":           true,
		"is_published":      true,
		"teams_can_comment": true,
	})
}

// ListRespondWindowEnded returns open, published enquiries in their respond
// window whose deadline is before now.
func (s *Store) ListRespondWindowEnded(ctx context.Context, now time.Time) ([]models.Enquiry, error) {
	return s.find(ctx, bson.M{
		"is_open":           true,
		"is_published":      true,
		"teams_can_respond": true,
		"stage_ends":        bson.M{"$lt": now},
	})
}

// ListAwaitingCommitteeEnded returns open, published enquiries with both
// windows closed whose deadline is before now.
func (s *Store) ListAwaitingCommitteeEnded(ctx context.Context, now time.Time) ([]models.Enquiry, error) {
	return s.find(ctx, bson.M{
		"is_open":           true,
		"is_published":      true,
		"teams_can_respond": false,
		"teams_can_comment": false,
		"stage_ends":        bson.M{"$lt": now},
	})
}

func (s *Store) find(ctx context.Context, filter bson.M) ([]models.Enquiry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "enquiry_number", Value: 1}})
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Enquiry
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Transition describes a conditional stage change. The update only
// applies when the stored round and flags still equal From; otherwise
// Apply returns ErrStageChanged and nothing is written.
type Transition struct {
	FromRound int
	From      models.StageFlags
	ToRound   int
	To        models.StageFlags

	StageEnds     *time.Time // nil leaves stage_ends unchanged
	StartStage    bool       // stamp stage_starts with the server time
	MarkPublished bool       // stamp published_at with the server time
	Conclusion    *string
}

// Apply performs t on enquiry id.
func (s *Store) Apply(ctx context.Context, id primitive.ObjectID, t Transition) error {
	filter := bson.M{
		"_id":               id,
		"round_number":      t.FromRound,
		"is_open":           t.From.IsOpen,
		"is_published":      t.From.IsPublished,
		"teams_can_respond": t.From.TeamsCanRespond,
		"teams_can_comment": t.From.TeamsCanComment,
	}

	set := bson.M{
		"round_number":      t.ToRound,
		"is_open":           t.To.IsOpen,
		"is_published":      t.To.IsPublished,
		"teams_can_respond": t.To.TeamsCanRespond,
		"teams_can_comment": t.To.TeamsCanComment,
		"updated_at":        time.Now().UTC(),
	}
	if t.StageEnds != nil {
		set["stage_ends"] = t.StageEnds.UTC()
	}
	if t.Conclusion != nil {
		set["conclusion"] = *t.Conclusion
	}

	update := bson.M{"$set": set}
	stamps := bson.M{}
	if t.StartStage {
		stamps["stage_starts"] = true
	}
	if t.MarkPublished {
		stamps["published_at"] = true
	}
	if len(stamps) > 0 {
		update["$currentDate"] = stamps
	}

	res, err := s.c.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrStageChanged
	}
	return nil
}

// Window selects the team window a submission needs open.
type Window int

const (
	AnyWindow Window = iota
	RespondWindow
	CommentWindow
)

// NoteSubmission bumps submission_seq on an open, published enquiry that
// is still in round and, for team posts, still has w open. It is the
// enquiry-side write of every response and comment submission, so a
// concurrent stage transition on the same enquiry conflicts with it.
// ErrStageChanged means the enquiry moved on since it was read.
func (s *Store) NoteSubmission(ctx context.Context, id primitive.ObjectID, round int, w Window) error {
	filter := bson.M{
		"_id":          id,
		"is_open":      true,
		"is_published": true,
		"round_number": round,
	}
	switch w {
	case RespondWindow:
		filter["teams_can_respond"] = true
	case CommentWindow:
		filter["teams_can_comment"] = true
	}
	res, err := s.c.UpdateOne(ctx, filter, bson.M{"$inc": bson.M{"submission_seq": 1}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrStageChanged
	}
	return nil
}

// SetStageLength changes stage_length and stage_ends, conditional on the
// stored stage_length still being fromLength.
func (s *Store) SetStageLength(ctx context.Context, id primitive.ObjectID, fromLength, toLength int, stageEnds *time.Time) error {
	set := bson.M{
		"stage_length": toLength,
		"updated_at":   time.Now().UTC(),
	}
	if stageEnds != nil {
		set["stage_ends"] = stageEnds.UTC()
	}
	filter := bson.M{"_id": id, "stage_length": fromLength}
	res, err := s.c.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrStageChanged
	}
	return nil
}

// SetAttachments replaces the attachment list.
func (s *Store) SetAttachments(ctx context.Context, id primitive.ObjectID, atts []models.Attachment) error {
	_, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{"attachments": atts}})
	return err
}

// UpdateDraft rewrites the title, body and attachments of an unpublished
// enquiry. It reports false when no unpublished enquiry matched.
func (s *Store) UpdateDraft(ctx context.Context, id primitive.ObjectID, title, body string, atts []models.Attachment) (bool, error) {
	set := bson.M{
		"title":      title,
		"title_ci":   text.Fold(title),
		"body_text":  body,
		"updated_at": time.Now().UTC(),
	}
	update := bson.M{"$set": set}
	if len(atts) > 0 {
		set["attachments"] = atts
	} else {
		update["$unset"] = bson.M{"attachments": ""}
	}
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id, "is_published": false}, update)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

// DeleteUnpublished removes an enquiry that has not been published yet.
func (s *Store) DeleteUnpublished(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id, "is_published": false})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		if _, err := s.GetByID(ctx, id); errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return ErrPublishedNotDeleted
	}
	return nil
}
