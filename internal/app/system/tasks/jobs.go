// internal/app/system/tasks/jobs.go
package tasks

import (
	"context"
	"time"

	"github.com/dalemusser/rulepost/internal/app/notify"
	"github.com/dalemusser/rulepost/internal/app/publisher"
	"go.uber.org/zap"
)

// Job is one phase of a scheduled trigger. now is the trigger time.
// A returned error aborts the remaining phases of the trigger.
type Job struct {
	Name string
	Run  func(ctx context.Context, now time.Time) error
}

// EnquiryPublishJob publishes enquiries awaiting publication.
func EnquiryPublishJob(pub *publisher.Service) Job {
	return Job{
		Name: "enquiry-publish",
		Run: func(ctx context.Context, now time.Time) error {
			_, err := pub.PublishEnquiries(ctx, now)
			return err
		},
	}
}

// CommentPublishJob publishes pending comments and closes expired comment windows.
func CommentPublishJob(pub *publisher.Service) Job {
	return Job{
		Name: "comment-publish",
		Run: func(ctx context.Context, now time.Time) error {
			_, err := pub.PublishComments(ctx, now)
			return err
		},
	}
}

// CommitteeResponsePublishJob publishes committee responses whose wait has ended.
func CommitteeResponsePublishJob(pub *publisher.Service) Job {
	return Job{
		Name: "committee-response-publish",
		Run: func(ctx context.Context, now time.Time) error {
			_, err := pub.PublishCommitteeResponses(ctx, now)
			return err
		},
	}
}

// TeamResponsePublishJob publishes team responses whose respond window has ended.
func TeamResponsePublishJob(pub *publisher.Service) Job {
	return Job{
		Name: "team-response-publish",
		Run: func(ctx context.Context, now time.Time) error {
			_, err := pub.PublishTeamResponses(ctx, now)
			return err
		},
	}
}

// NextCommentSlotJob stores the next comment publication time.
func NextCommentSlotJob(pub *publisher.Service, logger *zap.Logger) Job {
	return Job{
		Name: "next-comment-slot",
		Run: func(ctx context.Context, now time.Time) error {
			next, err := pub.RefreshNextCommentPublication(ctx, now)
			if err != nil {
				return err
			}
			logger.Debug("next comment publication", zap.Time("at", next))
			return nil
		},
	}
}

// DigestJob mails the digest of everything published so far.
func DigestJob(d *notify.Digest) Job {
	return Job{
		Name: "digest",
		Run: func(ctx context.Context, now time.Time) error {
			_, err := d.Send(ctx, now)
			return err
		},
	}
}
