// Package lifecycle owns the enquiry stage machine: the Stage type, the
// legal transitions between stages, the deadline each transition sets,
// and the privileged actions (close, change stage length) that move an
// enquiry outside the batch schedule.
package lifecycle

import (
	"errors"
	"fmt"

	"github.com/dalemusser/rulepost/internal/domain/models"
)

// Stage is the phase an enquiry is in. Storage keeps it as four flags;
// StageOf and Flags convert at that boundary.
type Stage int

const (
	Draft Stage = iota // before first submission; never stored
	AwaitingPublish
	RespondWindow
	CommentWindow
	AwaitingCommittee
	Closed
)

var stageNames = map[Stage]string{
	Draft:             "draft",
	AwaitingPublish:   "awaiting_publish",
	RespondWindow:     "respond_window",
	CommentWindow:     "comment_window",
	AwaitingCommittee: "awaiting_committee",
	Closed:            "closed",
}

func (s Stage) String() string {
	if n, ok := stageNames[s]; ok {
		return n
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// ErrIllegalFlags is returned for flag combinations no stage maps to.
var ErrIllegalFlags = errors.New("lifecycle: illegal stage flags")

// StageOf decodes stored flags. Respond and comment windows open at the
// same time, or either open on an unpublished enquiry, is illegal.
func StageOf(f models.StageFlags) (Stage, error) {
	if f.TeamsCanRespond && f.TeamsCanComment {
		return 0, fmt.Errorf("%w: respond and comment both open", ErrIllegalFlags)
	}
	if !f.IsOpen {
		return Closed, nil
	}
	if !f.IsPublished {
		if f.TeamsCanRespond || f.TeamsCanComment {
			return 0, fmt.Errorf("%w: window open before publication", ErrIllegalFlags)
		}
		return AwaitingPublish, nil
	}
	switch {
	case f.TeamsCanRespond:
		return RespondWindow, nil
	case f.TeamsCanComment:
		return CommentWindow, nil
	default:
		return AwaitingCommittee, nil
	}
}

// Flags encodes s for storage. published carries over the publication
// state for Closed, which can be reached from AwaitingPublish.
func Flags(s Stage, published bool) models.StageFlags {
	switch s {
	case AwaitingPublish, Draft:
		return models.StageFlags{IsOpen: true}
	case RespondWindow:
		return models.StageFlags{IsOpen: true, IsPublished: true, TeamsCanRespond: true}
	case CommentWindow:
		return models.StageFlags{IsOpen: true, IsPublished: true, TeamsCanComment: true}
	case AwaitingCommittee:
		return models.StageFlags{IsOpen: true, IsPublished: true}
	default:
		return models.StageFlags{IsPublished: published}
	}
}

// Of returns the stage of e.
func Of(e *models.Enquiry) (Stage, error) {
	return StageOf(e.Flags())
}
