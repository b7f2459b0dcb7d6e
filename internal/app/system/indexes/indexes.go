// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

/*
EnsureAll is called at startup. Each ensure* function is idempotent.
We aggregate errors so any problem is visible and startup can fail fast.
*/
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	sets := []struct {
		name string
		fn   func(context.Context, *mongo.Database) error
	}{
		{"users", ensureUsers},
		{"enquiries", ensureEnquiries},
		{"responses", ensureResponses},
		{"comments", ensureComments},
		{"drafts", ensureDrafts},
		{"response_guards", ensureResponseGuards},
		{"publish_events", ensurePublishEvents},
		{"unread_posts", ensureUnreadPosts},
		{"orchestrator_runs", ensureOrchestratorRuns},
		{"audit_events", ensureAuditEvents},
	}
	for _, s := range sets {
		if err := s.fn(ctx, db); err != nil {
			problems = append(problems, s.name+": "+err.Error())
		}
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Core helper: reconcile a set of desired indexes for one collection         */
/* -------------------------------------------------------------------------- */

type existingIndex struct {
	Name   string `bson:"name"`
	Key    bson.D `bson:"key"`
	Unique *bool  `bson:"unique,omitempty"`
}

func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

func boolValue(p *bool) bool {
	return p != nil && *p
}

func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	if mongo.IsDuplicateKeyError(err) {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "E11000") || strings.Contains(strings.ToLower(s), "duplicate key")
}

// Mongo/DocDB sometimes returns IndexOptionsConflict when an index with the
// same keys already exists under a different name (or options differ).
func isOptionsConflictErr(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "IndexOptionsConflict")
}

func listExisting(ctx context.Context, coll *mongo.Collection) map[string]existingIndex {
	out := map[string]existingIndex{} // sig -> index
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		return out
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var idx existingIndex
		if err := cur.Decode(&idx); err != nil {
			zap.L().Warn("failed to decode existing index",
				zap.String("collection", coll.Name()),
				zap.Error(err))
			continue
		}
		out[keySig(idx.Key)] = idx
	}
	return out
}

// recreate drops an index and creates the desired one in its place.
func recreate(ctx context.Context, coll *mongo.Collection, old string, m mongo.IndexModel) error {
	if _, err := coll.Indexes().DropOne(ctx, old); err != nil {
		return fmt.Errorf("drop %s: %w", old, err)
	}
	if _, err := coll.Indexes().CreateOne(ctx, m); err != nil {
		return err
	}
	return nil
}

func ensureIndexSet(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) error {
	var errs []string

	for _, m := range models {
		var desiredName string
		var desiredUnique *bool
		if m.Options != nil {
			if m.Options.Name != nil {
				desiredName = *m.Options.Name
			}
			desiredUnique = m.Options.Unique
		}
		desiredSig := keySig(m.Keys.(bson.D))
		unique := boolValue(desiredUnique)

		start := time.Now()
		log := zap.L().With(
			zap.String("collection", coll.Name()),
			zap.String("name", desiredName),
			zap.String("keys", desiredSig),
			zap.Bool("unique", unique))

		fail := func(err error) {
			if isDuplicateKeyErr(err) && unique {
				errs = append(errs, fmt.Sprintf("%s(%s): cannot create unique index (duplicates present)", coll.Name(), desiredName))
				return
			}
			log.Warn("index ensure failed", zap.Error(err))
			errs = append(errs, fmt.Sprintf("%s(%s): %v", coll.Name(), desiredName, err))
		}

		ex, found := listExisting(ctx, coll)[desiredSig]
		if !found {
			_, err := coll.Indexes().CreateOne(ctx, m)
			if err != nil && isOptionsConflictErr(err) {
				// An index with the same keys appeared under another name.
				if ex, found = listExisting(ctx, coll)[desiredSig]; found {
					err = recreate(ctx, coll, ex.Name, m)
				}
			}
			if err != nil {
				fail(err)
				continue
			}
			log.Info("index ensured", zap.Duration("took", time.Since(start)))
			continue
		}

		switch {
		case unique != boolValue(ex.Unique):
			// Options mismatch (e.g., upgrading to unique).
			if err := recreate(ctx, coll, ex.Name, m); err != nil {
				fail(err)
				continue
			}
			log.Info("index dropped and recreated", zap.Duration("took", time.Since(start)))
		case desiredName != "" && ex.Name != desiredName:
			if err := recreate(ctx, coll, ex.Name, m); err != nil {
				fail(err)
				continue
			}
			log.Info("index renamed", zap.String("from", ex.Name), zap.Duration("took", time.Since(start)))
		default:
			log.Debug("reusing existing index", zap.String("existing", ex.Name))
		}
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Collection-specific index sets                                              */
/* -------------------------------------------------------------------------- */

func ensureUsers(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("users"), []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "email", Value: 1}},
			Options: options.Index().
				SetName("uniq_users_email").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"email": bson.M{"$type": "string", "$gt": ""}}),
		},
		{
			Keys:    bson.D{{Key: "team", Value: 1}, {Key: "full_name_ci", Value: 1}},
			Options: options.Index().SetName("idx_users_team_fullnameci"),
		},
		{
			Keys:    bson.D{{Key: "email_notifications_on", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("idx_users_notify_status"),
		},
	})
}

func ensureEnquiries(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("enquiries"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "enquiry_number", Value: 1}},
			Options: options.Index().SetName("uniq_enquiries_number").SetUnique(true),
		},
		{
			// batch publisher scans
			Keys: bson.D{
				{Key: "is_open", Value: 1},
				{Key: "is_published", Value: 1},
				{Key: "teams_can_respond", Value: 1},
				{Key: "teams_can_comment", Value: 1},
				{Key: "stage_ends", Value: 1},
			},
			Options: options.Index().SetName("idx_enquiries_stage"),
		},
	})
}

func ensureResponses(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("responses"), []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "enquiry_id", Value: 1},
				{Key: "round_number", Value: 1},
				{Key: "from_rc", Value: 1},
				{Key: "is_published", Value: 1},
				{Key: "created_at", Value: 1},
			},
			Options: options.Index().SetName("idx_responses_enquiry_round"),
		},
	})
}

func ensureComments(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("comments"), []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "response_id", Value: 1},
				{Key: "is_published", Value: 1},
				{Key: "created_at", Value: 1},
			},
			Options: options.Index().SetName("idx_comments_response_pub"),
		},
		{
			Keys:    bson.D{{Key: "enquiry_id", Value: 1}},
			Options: options.Index().SetName("idx_comments_enquiry"),
		},
	})
}

func ensureDrafts(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("drafts"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "author_team", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_drafts_team_created"),
		},
		{
			Keys:    bson.D{{Key: "parent_ids", Value: 1}},
			Options: options.Index().SetName("idx_drafts_parents"),
		},
	})
}

func ensureResponseGuards(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("response_guards"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "response_id", Value: 1}},
			Options: options.Index().SetName("idx_guards_response"),
		},
		{
			Keys:    bson.D{{Key: "enquiry_id", Value: 1}},
			Options: options.Index().SetName("idx_guards_enquiry"),
		},
	})
}

func ensurePublishEvents(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("publish_events"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "processed", Value: 1}, {Key: "published_at", Value: 1}},
			Options: options.Index().SetName("idx_events_pending"),
		},
	})
}

func ensureUnreadPosts(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("unread_posts"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_unread_user_created"),
		},
		{
			Keys:    bson.D{{Key: "post_id", Value: 1}},
			Options: options.Index().SetName("idx_unread_post"),
		},
	})
}

func ensureOrchestratorRuns(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("orchestrator_runs"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "slot", Value: 1}, {Key: "started_at", Value: -1}},
			Options: options.Index().SetName("idx_runs_slot_started"),
		},
	})
}

func ensureAuditEvents(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("audit_events"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_ts"),
		},
		{
			Keys:    bson.D{{Key: "enquiry_id", Value: 1}, {Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_enquiry_ts"),
		},
		{
			Keys:    bson.D{{Key: "category", Value: 1}, {Key: "event_type", Value: 1}, {Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_cat_type_ts"),
		},
	})
}
