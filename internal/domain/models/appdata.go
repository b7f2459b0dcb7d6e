// internal/domain/models/appdata.go
package models

import "time"

// DateTimes is the app_data document holding schedule values computed
// by the orchestrator for clients to display.
type DateTimes struct {
	ID                         string     `bson:"_id" json:"id"` // always "date_times"
	NextCommentPublicationTime *time.Time `bson:"next_comment_publication_time,omitempty" json:"next_comment_publication_time,omitempty"`
	UpdatedAt                  time.Time  `bson:"updated_at" json:"updated_at"`
}

// SlotRun records one execution of an orchestrator trigger. Its _id is
// the slot name plus the local date, so a second replica firing the same
// trigger collides on insert.
type SlotRun struct {
	ID         string     `bson:"_id" json:"id"`
	Slot       string     `bson:"slot" json:"slot"`
	RunID      string     `bson:"run_id" json:"run_id"`
	Status     string     `bson:"status" json:"status"` // running | ok | failed
	Error      string     `bson:"error,omitempty" json:"error,omitempty"`
	StartedAt  time.Time  `bson:"started_at" json:"started_at"`
	FinishedAt *time.Time `bson:"finished_at,omitempty" json:"finished_at,omitempty"`
}

// Counter is a named sequence hint. The enquiry-number counter is
// reconciled against the highest stored number before use, so a stale
// or missing counter never produces a duplicate.
type Counter struct {
	ID    string `bson:"_id" json:"id"`
	Value int    `bson:"value" json:"value"`
}

// CounterEnquiryNumber is the _id of the enquiry-number counter.
const CounterEnquiryNumber = "enquiry_number"
