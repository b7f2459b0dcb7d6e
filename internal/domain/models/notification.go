// internal/domain/models/notification.go
package models

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Publish event kinds queued for the digest.
const (
	EventEnquiry           = "enquiry"
	EventTeamResponse      = "team_response"
	EventCommitteeResponse = "committee_response"
	EventComment           = "comment"
)

// PublishEvent is one entry in the digest queue. Processed flips once
// the digest has been sent (or skipped for lack of recipients).
type PublishEvent struct {
	ID             primitive.ObjectID  `bson:"_id" json:"id"`
	Kind           string              `bson:"kind" json:"kind"`
	EnquiryID      primitive.ObjectID  `bson:"enquiry_id" json:"enquiry_id"`
	ResponseID     *primitive.ObjectID `bson:"response_id,omitempty" json:"response_id,omitempty"`
	CommentID      *primitive.ObjectID `bson:"comment_id,omitempty" json:"comment_id,omitempty"`
	EnquiryTitle   string              `bson:"enquiry_title" json:"enquiry_title"`
	EnquiryNumber  int                 `bson:"enquiry_number" json:"enquiry_number"`
	RoundNumber    int                 `bson:"round_number" json:"round_number"`
	ResponseNumber *int                `bson:"response_number,omitempty" json:"response_number,omitempty"`
	CommentNumber  *int                `bson:"comment_number,omitempty" json:"comment_number,omitempty"`
	PublishedAt    time.Time           `bson:"published_at" json:"published_at"`
	Processed      bool                `bson:"processed" json:"processed"`
	ProcessedAt    *time.Time          `bson:"processed_at,omitempty" json:"processed_at,omitempty"`
	CreatedAt      time.Time           `bson:"created_at" json:"created_at"`
}

// UnreadPost marks a post as unread for one user. A parent is marked
// HasUnreadChild when one of its descendants is published.
type UnreadPost struct {
	ID             string              `bson:"_id" json:"id"` // "{userID}:{postID}"
	UserID         primitive.ObjectID  `bson:"user_id" json:"user_id"`
	PostID         primitive.ObjectID  `bson:"post_id" json:"post_id"`
	PostType       string              `bson:"post_type" json:"post_type"`
	PostAlias      string              `bson:"post_alias" json:"post_alias"`
	ParentID       *primitive.ObjectID `bson:"parent_id,omitempty" json:"parent_id,omitempty"`
	GrandparentID  *primitive.ObjectID `bson:"grandparent_id,omitempty" json:"grandparent_id,omitempty"`
	IsUnread       bool                `bson:"is_unread" json:"is_unread"`
	HasUnreadChild bool                `bson:"has_unread_child" json:"has_unread_child"`
	CreatedAt      time.Time           `bson:"created_at" json:"created_at"`
}

// UnreadID builds the _id of an unread marker.
func UnreadID(userID, postID primitive.ObjectID) string {
	return userID.Hex() + ":" + postID.Hex()
}

func enquiryAlias(number int, title string) string {
	return fmt.Sprintf("RE #%d - %s", number, title)
}

// ResponseAlias labels a published response, e.g. "RE #12 - R2.3".
func ResponseAlias(enquiryNumber, round, responseNumber int) string {
	return fmt.Sprintf("RE #%d - R%d.%d", enquiryNumber, round, responseNumber)
}

// CommentAlias labels a published comment, e.g. "RE #12 - R2.3 C4".
func CommentAlias(enquiryNumber, round, responseNumber, commentNumber int) string {
	return fmt.Sprintf("RE #%d - R%d.%d C%d", enquiryNumber, round, responseNumber, commentNumber)
}
