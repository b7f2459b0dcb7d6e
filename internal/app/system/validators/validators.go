// internal/app/system/validators/validators.go
package validators

import (
	"context"
	"errors"
	"strings"

	"github.com/dalemusser/rulepost/internal/domain/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// EnsureAll creates collections (if missing) and tries to attach JSON-Schema
// validators. On servers that don't support collMod/validators (e.g. some
// DocumentDB versions), we log and skip gracefully.
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	ensure := func(coll string, schema bson.M) {
		if _, err := ensureCollection(ctx, db, coll); err != nil {
			problems = append(problems, coll+": "+err.Error())
			return
		}
		if schema == nil {
			return
		}
		if err := setValidator(ctx, db, coll, schema); err != nil {
			if isNoSuchCommand(err) || isNotImplemented(err) {
				zap.L().Info("validator skipped (unsupported)", zap.String("collection", coll))
				return
			}
			problems = append(problems, coll+": "+err.Error())
		}
	}

	ensure("users", usersSchema())
	ensure("enquiries", enquiriesSchema())
	ensure("responses", responsesSchema())
	ensure("comments", commentsSchema())
	ensure("drafts", authoredSchema())
	ensure("post_meta", authoredSchema())

	// No validator; the collections are still created up front.
	ensure("publish_events", nil)
	ensure("unread_posts", nil)
	ensure("audit_events", nil)

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* ---------------------- collection helpers & logging ---------------------- */

// collectionExists returns true when <name> already exists.
// Uses ListCollectionNames to avoid "created collection" log when it didn't.
func collectionExists(ctx context.Context, db *mongo.Database, name string) (bool, error) {
	names, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

// ensureCollection idempotently makes sure <name> exists.
// Returns created==true only if we actually created it.
func ensureCollection(ctx context.Context, db *mongo.Database, name string) (created bool, err error) {
	exists, listErr := collectionExists(ctx, db, name)
	if listErr == nil && exists {
		zap.L().Info("collection exists", zap.String("collection", name))
		return false, nil
	}
	// If listing failed, fall back to create-and-handle-race.
	if err := db.CreateCollection(ctx, name); err != nil {
		// NamespaceExists / already exists is fine (race or prior run).
		if isNamespaceExistsErr(err) {
			zap.L().Info("collection exists", zap.String("collection", name))
			return false, nil
		}
		zap.L().Warn("createCollection failed", zap.String("collection", name), zap.Error(err))
		return false, err
	}
	zap.L().Info("created collection", zap.String("collection", name))
	return true, nil
}

/* ------------------------------ validators ------------------------------- */

func setValidator(ctx context.Context, db *mongo.Database, name string, validator bson.M) error {
	cmd := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
		{Key: "validationLevel", Value: "moderate"},
		{Key: "validationAction", Value: "error"},
	}
	var out bson.M
	if err := db.RunCommand(ctx, cmd).Decode(&out); err != nil {
		return err
	}
	zap.L().Info("validator ensured", zap.String("collection", name))
	return nil
}

/* ------------------------- error helpers ------------------------- */

func isNamespaceExistsErr(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 48 || strings.Contains(strings.ToLower(ce.Message), "already exists")) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "already exists") || strings.Contains(s, "namespace exists")
}

func isNoSuchCommand(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 59 || strings.Contains(strings.ToLower(ce.Message), "no such command")) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "no such command")
}

func isNotImplemented(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 115 ||
		strings.Contains(strings.ToLower(ce.Message), "not implemented") ||
		strings.Contains(strings.ToLower(ce.Message), "not supported")) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "not implemented") || strings.Contains(s, "not supported")
}

/* ------------------------- JSON-Schema docs ---------------------- */

var intTypes = bson.A{"int", "long"}

func nonBlank() bson.M {
	return bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"}
}

func usersSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"full_name", "email", "role"},
			"properties": bson.M{
				"full_name":    bson.M{"bsonType": "string"},
				"full_name_ci": bson.M{"bsonType": "string"},
				"email":        nonBlank(),
				"role":         bson.M{"enum": bson.A{models.RoleAdmin, models.RoleUser}},
				"team":         bson.M{"bsonType": "string"},
				"status":       bson.M{"enum": bson.A{"active", "disabled"}},
			},
		},
	}
}

func enquiriesSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"enquiry_number", "round_number", "is_open", "is_published"},
			"properties": bson.M{
				"enquiry_number":    bson.M{"bsonType": intTypes, "minimum": 1},
				"title":             bson.M{"bsonType": "string"},
				"round_number":      bson.M{"bsonType": intTypes, "minimum": 1},
				"stage_length":      bson.M{"bsonType": intTypes, "minimum": 0},
				"is_open":           bson.M{"bsonType": "bool"},
				"is_published":      bson.M{"bsonType": "bool"},
				"teams_can_respond": bson.M{"bsonType": "bool"},
				"teams_can_comment": bson.M{"bsonType": "bool"},
			},
		},
	}
}

func responsesSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"enquiry_id", "post_text", "round_number", "from_rc", "is_published"},
			"properties": bson.M{
				"enquiry_id":   bson.M{"bsonType": "objectId"},
				"post_text":    bson.M{"bsonType": "string"},
				"round_number": bson.M{"bsonType": intTypes, "minimum": 1},
				"from_rc":      bson.M{"bsonType": "bool"},
				"is_published": bson.M{"bsonType": "bool"},
			},
		},
	}
}

func commentsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"enquiry_id", "response_id", "post_text", "is_published"},
			"properties": bson.M{
				"enquiry_id":   bson.M{"bsonType": "objectId"},
				"response_id":  bson.M{"bsonType": "objectId"},
				"post_text":    bson.M{"bsonType": "string"},
				"is_published": bson.M{"bsonType": "bool"},
			},
		},
	}
}

// authoredSchema covers drafts and post metadata: both carry the post
// type and its author.
func authoredSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"post_type", "author_uid", "author_team"},
			"properties": bson.M{
				"post_type":   bson.M{"enum": bson.A{models.PostTypeEnquiry, models.PostTypeResponse, models.PostTypeComment}},
				"author_uid":  bson.M{"bsonType": "objectId"},
				"author_team": bson.M{"bsonType": "string"},
			},
		},
	}
}
