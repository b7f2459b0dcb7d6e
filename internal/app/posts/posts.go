// Package posts accepts new enquiries, responses and comments and lets
// a team manage its unpublished drafts.
package posts

import (
	"context"
	"errors"
	"time"

	commentstore "github.com/dalemusser/rulepost/internal/app/store/comments"
	counterstore "github.com/dalemusser/rulepost/internal/app/store/counters"
	draftstore "github.com/dalemusser/rulepost/internal/app/store/drafts"
	enquirystore "github.com/dalemusser/rulepost/internal/app/store/enquiries"
	guardstore "github.com/dalemusser/rulepost/internal/app/store/guards"
	metastore "github.com/dalemusser/rulepost/internal/app/store/meta"
	publisheventstore "github.com/dalemusser/rulepost/internal/app/store/publishevents"
	responsestore "github.com/dalemusser/rulepost/internal/app/store/responses"
	unreadstore "github.com/dalemusser/rulepost/internal/app/store/unread"
	"github.com/dalemusser/rulepost/internal/app/system/apperr"
	"github.com/dalemusser/rulepost/internal/app/system/attachments"
	"github.com/dalemusser/rulepost/internal/app/system/normalize"
	"github.com/dalemusser/rulepost/internal/app/system/ratelimit"
	"github.com/dalemusser/rulepost/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// DefaultCooldown is the minimum gap between two submissions by one user.
const DefaultCooldown = 10 * time.Second

type Service struct {
	db        *mongo.Database
	enquiries *enquirystore.Store
	responses *responsestore.Store
	comments  *commentstore.Store
	meta      *metastore.Store
	drafts    *draftstore.Store
	guards    *guardstore.Store
	counters  *counterstore.Store
	events    *publisheventstore.Store
	unread    *unreadstore.Store
	files     attachments.Store
	cooldown  ratelimit.Cooldown
	log       *zap.Logger
}

// New builds the service. cooldown may be nil to disable the
// per-user submission limit.
func New(db *mongo.Database, files attachments.Store, cooldown ratelimit.Cooldown, logger *zap.Logger) *Service {
	return &Service{
		db:        db,
		enquiries: enquirystore.New(db),
		responses: responsestore.New(db),
		comments:  commentstore.New(db),
		meta:      metastore.New(db),
		drafts:    draftstore.New(db),
		guards:    guardstore.New(db),
		counters:  counterstore.New(db),
		events:    publisheventstore.New(db),
		unread:    unreadstore.New(db),
		files:     files,
		cooldown:  cooldown,
		log:       logger,
	}
}

func callerTeam(caller models.Caller) (string, error) {
	team := normalize.Team(caller.Team)
	if team == "" {
		return "", apperr.New(apperr.FailedPrecondition, "No team assigned to this user.")
	}
	return team, nil
}

// ListDrafts returns the caller team's unpublished posts, newest first.
func (s *Service) ListDrafts(ctx context.Context, caller models.Caller) ([]models.Draft, error) {
	team, err := callerTeam(caller)
	if err != nil {
		return nil, err
	}
	return s.drafts.ListByTeam(ctx, team)
}

// PostAuthor returns the private author record of a post. Only admins
// and the committee may see who wrote what.
func (s *Service) PostAuthor(ctx context.Context, caller models.Caller, postID primitive.ObjectID) (models.PostMeta, error) {
	if !caller.Privileged() {
		return models.PostMeta{}, apperr.New(apperr.PermissionDenied, "Admin/RC function only.")
	}
	m, err := s.meta.Get(ctx, postID)
	if errors.Is(err, metastore.ErrNotFound) {
		return models.PostMeta{}, apperr.New(apperr.NotFound, "Post does not exist.")
	}
	return m, err
}
