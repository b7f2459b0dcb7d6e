// internal/domain/models/enquiry.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultStageLength is the number of working days a stage lasts when
// the enquiry has not been adjusted by an admin.
const DefaultStageLength = 4

// Enquiry is the root rules question. Its stage flags are the storage
// form of lifecycle.Stage; code that makes transitions goes through
// the lifecycle package rather than flipping the booleans directly.
type Enquiry struct {
	ID            primitive.ObjectID `bson:"_id" json:"id"`
	EnquiryNumber int                `bson:"enquiry_number" json:"enquiry_number"`
	Title         string             `bson:"title" json:"title"`
	TitleCI       string             `bson:"title_ci" json:"title_ci"` // lowercase, diacritics-stripped
	BodyText      string             `bson:"body_text" json:"body_text"`
	Attachments   []Attachment       `bson:"attachments,omitempty" json:"attachments,omitempty"`

	IsOpen          bool       `bson:"is_open" json:"is_open"`
	IsPublished     bool       `bson:"is_published" json:"is_published"`
	PublishedAt     *time.Time `bson:"published_at,omitempty" json:"published_at,omitempty"`
	RoundNumber     int        `bson:"round_number" json:"round_number"`
	TeamsCanRespond bool       `bson:"teams_can_respond" json:"teams_can_respond"`
	TeamsCanComment bool       `bson:"teams_can_comment" json:"teams_can_comment"`
	StageLength     int        `bson:"stage_length" json:"stage_length"`
	StageStarts     *time.Time `bson:"stage_starts,omitempty" json:"stage_starts,omitempty"`
	StageEnds       *time.Time `bson:"stage_ends,omitempty" json:"stage_ends,omitempty"`
	Conclusion      string     `bson:"conclusion,omitempty" json:"conclusion,omitempty"`
	SubmissionSeq   int64      `bson:"submission_seq,omitempty" json:"-"` // bumped by every response and comment submission

	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt *time.Time `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// EffectiveStageLength returns StageLength, or the default when unset.
func (e *Enquiry) EffectiveStageLength() int {
	if e.StageLength <= 0 {
		return DefaultStageLength
	}
	return e.StageLength
}

// Alias is the human-readable label used in notifications, e.g. "RE #12 - Mast rake".
func (e *Enquiry) Alias() string {
	return enquiryAlias(e.EnquiryNumber, e.Title)
}

// StageFlags is the stored form of an enquiry's stage.
type StageFlags struct {
	IsOpen          bool
	IsPublished     bool
	TeamsCanRespond bool
	TeamsCanComment bool
}

// Flags returns the enquiry's stored stage flags.
func (e *Enquiry) Flags() StageFlags {
	return StageFlags{
		IsOpen:          e.IsOpen,
		IsPublished:     e.IsPublished,
		TeamsCanRespond: e.TeamsCanRespond,
		TeamsCanComment: e.TeamsCanComment,
	}
}
