package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	publisheventstore "github.com/dalemusser/rulepost/internal/app/store/publishevents"
	userstore "github.com/dalemusser/rulepost/internal/app/store/users"
	"github.com/dalemusser/rulepost/internal/app/system/mailer"
	"github.com/dalemusser/rulepost/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// DigestResult reports one digest run.
type DigestResult struct {
	Events     int
	Recipients int
	Sent       bool
}

// Digest mails pending publish events to users who opted in.
type Digest struct {
	events   *publisheventstore.Store
	users    *userstore.Store
	sender   mailer.Sender
	siteName string
	baseURL  string
	from     string
	log      *zap.Logger
}

func NewDigest(db *mongo.Database, sender mailer.Sender, siteName, baseURL, from string, logger *zap.Logger) *Digest {
	if siteName == "" {
		siteName = "Rule Post"
	}
	return &Digest{
		events:   publisheventstore.New(db),
		users:    userstore.New(db),
		sender:   sender,
		siteName: siteName,
		baseURL:  strings.TrimRight(baseURL, "/"),
		from:     from,
		log:      logger,
	}
}

// Send mails one digest covering up to a batch of pending events and
// marks them processed. Without recipients the events are marked
// processed unsent. A send failure leaves them pending for the next run.
func (d *Digest) Send(ctx context.Context, now time.Time) (DigestResult, error) {
	pending, err := d.events.ListPending(ctx, publisheventstore.DefaultBatch)
	if err != nil {
		return DigestResult{}, fmt.Errorf("list pending events: %w", err)
	}
	if len(pending) == 0 {
		d.log.Info("digest: no pending events")
		return DigestResult{}, nil
	}
	res := DigestResult{Events: len(pending)}

	ids := make([]primitive.ObjectID, len(pending))
	for i, e := range pending {
		ids[i] = e.ID
	}

	recipients, err := d.users.ListNotificationRecipients(ctx)
	if err != nil {
		return res, fmt.Errorf("list recipients: %w", err)
	}
	res.Recipients = len(recipients)

	if len(recipients) > 0 {
		msg := mailer.BuildDigestEmail(BuildDigest(d.siteName, d.baseURL, pending))
		msg.To = d.from
		for _, u := range recipients {
			msg.Bcc = append(msg.Bcc, u.Email)
		}
		if err := d.sender.Send(ctx, msg); err != nil {
			return res, fmt.Errorf("send digest: %w", err)
		}
		res.Sent = true
	} else {
		d.log.Info("digest: no recipients; marking events processed without sending",
			zap.Int("events", len(pending)))
	}

	if err := d.events.MarkProcessed(ctx, ids, now); err != nil {
		return res, fmt.Errorf("mark processed: %w", err)
	}
	d.log.Info("digest sent",
		zap.Int("events", res.Events),
		zap.Int("recipients", res.Recipients),
		zap.Bool("sent", res.Sent))
	return res, nil
}

// BuildDigest groups events into digest lines. Comments on the same
// response collapse into one counted line.
func BuildDigest(siteName, baseURL string, events []models.PublishEvent) mailer.DigestEmailData {
	baseURL = strings.TrimRight(baseURL, "/")
	data := mailer.DigestEmailData{
		SiteName:    siteName,
		SettingsURL: baseURL + "/settings",
	}

	type commentKey struct{ enquiry, response primitive.ObjectID }
	counts := map[commentKey]int{}
	first := map[commentKey]models.PublishEvent{}
	var order []commentKey

	for _, e := range events {
		enquiryURL := baseURL + "/enquiries/" + e.EnquiryID.Hex()
		title := fmt.Sprintf("Rule Enquiry #%d - %s", e.EnquiryNumber, e.EnquiryTitle)

		switch e.Kind {
		case models.EventEnquiry:
			data.Enquiries = append(data.Enquiries, mailer.DigestLine{
				Prefix:   fmt.Sprintf("Rule Enquiry #%d - ", e.EnquiryNumber),
				LinkText: e.EnquiryTitle,
				URL:      enquiryURL,
			})
		case models.EventTeamResponse, models.EventCommitteeResponse:
			if e.ResponseID == nil {
				continue
			}
			data.Responses = append(data.Responses, mailer.DigestLine{
				LinkText: responseLabel(e),
				URL:      enquiryURL + "/responses/" + e.ResponseID.Hex(),
				Suffix:   " to " + title,
			})
		case models.EventComment:
			if e.ResponseID == nil {
				continue
			}
			k := commentKey{e.EnquiryID, *e.ResponseID}
			if counts[k] == 0 {
				order = append(order, k)
				first[k] = e
			}
			counts[k]++
		}
	}

	for _, k := range order {
		e := first[k]
		n := counts[k]
		noun := "comments"
		if n == 1 {
			noun = "comment"
		}
		data.Comments = append(data.Comments, mailer.DigestLine{
			Prefix:   fmt.Sprintf("%d %s on ", n, noun),
			LinkText: responseLabel(e),
			URL:      baseURL + "/enquiries/" + e.EnquiryID.Hex() + "/responses/" + e.ResponseID.Hex(),
			Suffix:   fmt.Sprintf(" of Rule Enquiry #%d - %s", e.EnquiryNumber, e.EnquiryTitle),
		})
	}
	return data
}

func responseLabel(e models.PublishEvent) string {
	n := 0
	if e.ResponseNumber != nil {
		n = *e.ResponseNumber
	}
	return fmt.Sprintf("Response %d.%d", e.RoundNumber, n)
}
