// Package notify records who has not yet read a published post and
// mails the digest of recent publications.
package notify

import (
	"context"
	"time"

	publisheventstore "github.com/dalemusser/rulepost/internal/app/store/publishevents"
	unreadstore "github.com/dalemusser/rulepost/internal/app/store/unread"
	userstore "github.com/dalemusser/rulepost/internal/app/store/users"
	"github.com/dalemusser/rulepost/internal/app/system/bulkwrite"
	"github.com/dalemusser/rulepost/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Published describes a post that has just been published. Ancestors
// are ordered nearest first (response, then enquiry for a comment).
type Published struct {
	Post      unreadstore.Ref
	Ancestors []unreadstore.Ref
	Event     models.PublishEvent
}

// Fanout queues unread markers and publish events for published posts.
type Fanout struct {
	users  *userstore.Store
	unread *unreadstore.Store
	events *publisheventstore.Store
	log    *zap.Logger
}

func NewFanout(db *mongo.Database, logger *zap.Logger) *Fanout {
	return &Fanout{
		users:  userstore.New(db),
		unread: unreadstore.New(db),
		events: publisheventstore.New(db),
		log:    logger,
	}
}

// Queue adds the markers and events for posts to w. The writes are
// best-effort; only failing to list recipients is returned.
func (f *Fanout) Queue(ctx context.Context, w *bulkwrite.Writer, posts []Published, now time.Time) error {
	if len(posts) == 0 {
		return nil
	}
	userIDs, err := f.users.ListActiveIDs(ctx)
	if err != nil {
		return err
	}
	f.queue(w, userIDs, posts, now)
	return nil
}

func (f *Fanout) queue(w *bulkwrite.Writer, userIDs []primitive.ObjectID, posts []Published, now time.Time) {
	unreadColl := f.unread.Collection()
	for _, p := range posts {
		var parent, grandparent *primitive.ObjectID
		if len(p.Ancestors) > 0 {
			parent = &p.Ancestors[0].PostID
		}
		if len(p.Ancestors) > 1 {
			grandparent = &p.Ancestors[1].PostID
		}
		for _, uid := range userIDs {
			w.Add(unreadColl, unreadstore.MarkUnreadModel(uid, p.Post, parent, grandparent, now))
			for _, a := range p.Ancestors {
				w.Add(unreadColl, unreadstore.MarkChildModel(uid, a, now))
			}
		}

		ev := p.Event
		if ev.PublishedAt.IsZero() {
			ev.PublishedAt = now
		}
		w.Add(f.events.Collection(), publisheventstore.InsertModel(ev))
	}
	f.log.Debug("unread fan-out queued",
		zap.Int("posts", len(posts)),
		zap.Int("users", len(userIDs)))
}
