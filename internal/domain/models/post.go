// internal/domain/models/post.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Post types accepted by submission and used in drafts, meta records,
// unread markers and publish events.
const (
	PostTypeEnquiry  = "enquiry"
	PostTypeResponse = "response"
	PostTypeComment  = "comment"
)

// TeamRC is the reserved team id of the Rules Committee.
const TeamRC = "RC"

// ValidPostType reports whether t is one of the three post types.
func ValidPostType(t string) bool {
	switch t {
	case PostTypeEnquiry, PostTypeResponse, PostTypeComment:
		return true
	}
	return false
}

// Attachment is a file stored in the attachment store.
// Token is empty until the owning post is published.
type Attachment struct {
	Name        string `bson:"name" json:"name"`
	Path        string `bson:"path" json:"path"`
	ContentType string `bson:"content_type" json:"content_type"`
	Size        int64  `bson:"size" json:"size"`
	Token       string `bson:"token,omitempty" json:"token,omitempty"`
}

// Response is a reply to an enquiry from exactly one team or the RC.
//
// ResponseNumber is nil until publish. RC responses are always 0,
// team responses 1..N in shuffled order.
type Response struct {
	ID             primitive.ObjectID `bson:"_id" json:"id"`
	EnquiryID      primitive.ObjectID `bson:"enquiry_id" json:"enquiry_id"`
	PostText       string             `bson:"post_text" json:"post_text"`
	Attachments    []Attachment       `bson:"attachments,omitempty" json:"attachments,omitempty"`
	FromRC         bool               `bson:"from_rc" json:"from_rc"`
	Colour         string             `bson:"colour,omitempty" json:"colour,omitempty"`
	RoundNumber    int                `bson:"round_number" json:"round_number"`
	ResponseNumber *int               `bson:"response_number,omitempty" json:"response_number,omitempty"`
	IsPublished    bool               `bson:"is_published" json:"is_published"`
	PublishedAt    *time.Time         `bson:"published_at,omitempty" json:"published_at,omitempty"`
	CommentCount   int                `bson:"comment_count" json:"comment_count"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// Comment is a reply to a team response. Comments never carry attachments.
type Comment struct {
	ID            primitive.ObjectID `bson:"_id" json:"id"`
	EnquiryID     primitive.ObjectID `bson:"enquiry_id" json:"enquiry_id"`
	ResponseID    primitive.ObjectID `bson:"response_id" json:"response_id"`
	PostText      string             `bson:"post_text" json:"post_text"`
	Colour        string             `bson:"colour,omitempty" json:"colour,omitempty"`
	RoundNumber   int                `bson:"round_number" json:"round_number"`
	CommentNumber *int               `bson:"comment_number,omitempty" json:"comment_number,omitempty"`
	IsPublished   bool               `bson:"is_published" json:"is_published"`
	PublishedAt   *time.Time         `bson:"published_at,omitempty" json:"published_at,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// PostMeta holds the author identity of a post. It is kept out of the
// public post documents and only read by privileged code paths.
type PostMeta struct {
	ID         primitive.ObjectID `bson:"_id" json:"id"` // same as the post id
	PostType   string             `bson:"post_type" json:"post_type"`
	AuthorUID  primitive.ObjectID `bson:"author_uid" json:"author_uid"`
	AuthorTeam string             `bson:"author_team" json:"author_team"`
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
}

// Draft lets a team find its own unpublished posts.
// ParentIDs is [] for enquiries, [enquiry] for responses and
// [enquiry, response] for comments.
type Draft struct {
	ID         primitive.ObjectID   `bson:"_id" json:"id"` // same as the post id
	PostType   string               `bson:"post_type" json:"post_type"`
	ParentIDs  []primitive.ObjectID `bson:"parent_ids" json:"parent_ids"`
	AuthorUID  primitive.ObjectID   `bson:"author_uid" json:"author_uid"`
	AuthorTeam string               `bson:"author_team" json:"author_team"`
	CreatedAt  time.Time            `bson:"created_at" json:"created_at"`
}

// ResponseGuard is created once per team per round per enquiry.
// Its _id makes a second response from the same team in the same round
// fail with a duplicate key.
type ResponseGuard struct {
	ID         string             `bson:"_id" json:"id"`
	EnquiryID  primitive.ObjectID `bson:"enquiry_id" json:"enquiry_id"`
	Team       string             `bson:"team" json:"team"`
	Round      int                `bson:"round" json:"round"`
	ResponseID primitive.ObjectID `bson:"response_id" json:"response_id"`
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
}
