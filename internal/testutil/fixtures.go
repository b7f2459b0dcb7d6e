package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/rulepost/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx, ok := r.Context().Value(chi.RouteCtxKey).(*chi.Context)
	if !ok || rctx == nil {
		rctx = chi.NewRouteContext()
		r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
	}
	rctx.URLParams.Add(key, value)
	return r
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateUser inserts a user on team with the given role.
func (f *Fixtures) CreateUser(ctx context.Context, fullName, email, role, team string, notify bool) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	u := models.User{
		ID:                   primitive.NewObjectID(),
		FullName:             fullName,
		FullNameCI:           text.Fold(fullName),
		Email:                email,
		Role:                 role,
		Team:                 team,
		EmailNotificationsOn: notify,
		Status:               "active",
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if _, err := f.db.Collection("users").InsertOne(ctx, u); err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}
	return u
}

// CreateTeamMember inserts a regular user on team.
func (f *Fixtures) CreateTeamMember(ctx context.Context, team string) models.User {
	f.t.Helper()
	id := primitive.NewObjectID().Hex()
	return f.CreateUser(ctx, "Member "+team, team+"."+id+"@test.com", models.RoleUser, team, false)
}

// CreateAdmin inserts an admin without a team.
func (f *Fixtures) CreateAdmin(ctx context.Context) models.User {
	f.t.Helper()
	id := primitive.NewObjectID().Hex()
	return f.CreateUser(ctx, "Admin", "admin."+id+"@test.com", models.RoleAdmin, "", false)
}

// EnquiryOpts tweaks a fixture enquiry. Zero values give a published
// round 1 enquiry in its respond window.
type EnquiryOpts struct {
	Number      int
	Unpublished bool
	Closed      bool
	Round       int
	Stage       models.StageFlags // used when non-zero
	StageEnds   *time.Time
	StageLength int
}

// CreateEnquiry inserts an enquiry directly, bypassing submission.
func (f *Fixtures) CreateEnquiry(ctx context.Context, title string, o EnquiryOpts) models.Enquiry {
	f.t.Helper()

	now := time.Now().UTC()
	if o.Number == 0 {
		o.Number = int(now.UnixNano() % 1_000_000_000)
	}
	if o.Round == 0 {
		o.Round = 1
	}
	flags := o.Stage
	if flags == (models.StageFlags{}) {
		flags = models.StageFlags{IsOpen: true, IsPublished: true, TeamsCanRespond: true}
		if o.Unpublished {
			flags = models.StageFlags{IsOpen: true}
		}
	}
	if o.Closed {
		flags.IsOpen = false
		flags.TeamsCanRespond = false
		flags.TeamsCanComment = false
	}

	e := models.Enquiry{
		ID:              primitive.NewObjectID(),
		EnquiryNumber:   o.Number,
		Title:           title,
		TitleCI:         text.Fold(title),
		BodyText:        "Body of " + title,
		IsOpen:          flags.IsOpen,
		IsPublished:     flags.IsPublished,
		TeamsCanRespond: flags.TeamsCanRespond,
		TeamsCanComment: flags.TeamsCanComment,
		RoundNumber:     o.Round,
		StageLength:     o.StageLength,
		StageEnds:       o.StageEnds,
		CreatedAt:       now,
	}
	if e.IsPublished {
		e.PublishedAt = &now
		e.StageStarts = &now
	}
	if _, err := f.db.Collection("enquiries").InsertOne(ctx, e); err != nil {
		f.t.Fatalf("failed to create test enquiry: %v", err)
	}
	return e
}

// CreateResponse inserts a response with its meta record. Unpublished
// responses also get a draft marker.
func (f *Fixtures) CreateResponse(ctx context.Context, enq models.Enquiry, team string, round int, published bool) models.Response {
	f.t.Helper()

	now := time.Now().UTC()
	r := models.Response{
		ID:          primitive.NewObjectID(),
		EnquiryID:   enq.ID,
		PostText:    "Response from " + team,
		FromRC:      team == models.TeamRC,
		RoundNumber: round,
		IsPublished: published,
		CreatedAt:   now,
	}
	if published {
		n := 1
		if r.FromRC {
			n = 0
		}
		r.ResponseNumber = &n
		r.PublishedAt = &now
	}
	author := primitive.NewObjectID()
	f.insert(ctx, "responses", r)
	f.insert(ctx, "post_meta", models.PostMeta{
		ID: r.ID, PostType: models.PostTypeResponse, AuthorUID: author, AuthorTeam: team, CreatedAt: now,
	})
	if !published {
		f.insert(ctx, "drafts", models.Draft{
			ID: r.ID, PostType: models.PostTypeResponse, ParentIDs: []primitive.ObjectID{enq.ID},
			AuthorUID: author, AuthorTeam: team, CreatedAt: now,
		})
	}
	return r
}

// CreateComment inserts an unpublished comment on resp.
func (f *Fixtures) CreateComment(ctx context.Context, resp models.Response, team string) models.Comment {
	f.t.Helper()

	now := time.Now().UTC()
	c := models.Comment{
		ID:          primitive.NewObjectID(),
		EnquiryID:   resp.EnquiryID,
		ResponseID:  resp.ID,
		PostText:    "Comment from " + team,
		RoundNumber: resp.RoundNumber,
		CreatedAt:   now,
	}
	author := primitive.NewObjectID()
	f.insert(ctx, "comments", c)
	f.insert(ctx, "post_meta", models.PostMeta{
		ID: c.ID, PostType: models.PostTypeComment, AuthorUID: author, AuthorTeam: team, CreatedAt: now,
	})
	f.insert(ctx, "drafts", models.Draft{
		ID: c.ID, PostType: models.PostTypeComment, ParentIDs: []primitive.ObjectID{resp.EnquiryID, resp.ID},
		AuthorUID: author, AuthorTeam: team, CreatedAt: now,
	})
	return c
}

func (f *Fixtures) insert(ctx context.Context, coll string, doc any) {
	f.t.Helper()
	if _, err := f.db.Collection(coll).InsertOne(ctx, doc); err != nil {
		f.t.Fatalf("failed to insert into %s: %v", coll, err)
	}
}
