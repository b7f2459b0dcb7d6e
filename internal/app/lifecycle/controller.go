package lifecycle

import (
	"context"
	"errors"
	"strings"
	"time"

	enquirystore "github.com/dalemusser/rulepost/internal/app/store/enquiries"
	userstore "github.com/dalemusser/rulepost/internal/app/store/users"
	"github.com/dalemusser/rulepost/internal/app/system/apperr"
	"github.com/dalemusser/rulepost/internal/app/system/calendar"
	"github.com/dalemusser/rulepost/internal/app/system/htmlsanitize"
	"github.com/dalemusser/rulepost/internal/app/system/normalize"
	"github.com/dalemusser/rulepost/internal/app/system/stageclock"
	"github.com/dalemusser/rulepost/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// ErrProtectedTeam is returned when a destructive operation targets the
// Rules Committee team.
var ErrProtectedTeam = errors.New("lifecycle: the RC team is protected")

const (
	MinStageLength = 1
	MaxStageLength = 20

	// conditional updates retried when the enquiry changes underneath
	maxAttempts = 3
)

// Controller runs the privileged enquiry actions.
type Controller struct {
	enquiries *enquirystore.Store
	users     *userstore.Store
	policy    Policy
	log       *zap.Logger
	now       func() time.Time
}

func New(db *mongo.Database, cal *calendar.Calendar, logger *zap.Logger) *Controller {
	return &Controller{
		enquiries: enquirystore.New(db),
		users:     userstore.New(db),
		policy:    Policy{Cal: cal},
		log:       logger,
		now:       time.Now,
	}
}

// Policy returns the transition policy the controller applies.
func (c *Controller) Policy() Policy { return c.policy }

func requirePrivileged(caller models.Caller) error {
	if !caller.Privileged() {
		return apperr.New(apperr.PermissionDenied, "Admin/RC function only.")
	}
	return nil
}

func (c *Controller) load(ctx context.Context, id primitive.ObjectID) (models.Enquiry, error) {
	e, err := c.enquiries.GetByID(ctx, id)
	if errors.Is(err, enquirystore.ErrNotFound) {
		return models.Enquiry{}, apperr.Newf(apperr.NotFound, "Enquiry %s does not exist.", id.Hex())
	}
	return e, err
}

// Close ends an enquiry from any open stage. The conclusion is sanitized
// and stored with it.
func (c *Controller) Close(ctx context.Context, caller models.Caller, id primitive.ObjectID, conclusion string) (models.Enquiry, error) {
	if err := requirePrivileged(caller); err != nil {
		return models.Enquiry{}, err
	}
	clean := strings.TrimSpace(htmlsanitize.Sanitize(conclusion))

	for attempt := 0; attempt < maxAttempts; attempt++ {
		e, err := c.load(ctx, id)
		if err != nil {
			return models.Enquiry{}, err
		}
		if !e.IsOpen {
			return models.Enquiry{}, apperr.New(apperr.FailedPrecondition, "Enquiry is already closed.")
		}
		t, err := c.policy.Plan(&e, CloseEnquiry, c.now(), false)
		if err != nil {
			return models.Enquiry{}, err
		}
		if clean != "" {
			t.Conclusion = &clean
		}
		err = c.enquiries.Apply(ctx, id, t)
		if errors.Is(err, enquirystore.ErrStageChanged) {
			continue
		}
		if err != nil {
			return models.Enquiry{}, err
		}
		c.log.Info("enquiry closed",
			zap.String("enquiry_id", id.Hex()),
			zap.Int("enquiry_number", e.EnquiryNumber),
			zap.String("by_team", caller.Team))
		return c.load(ctx, id)
	}
	return models.Enquiry{}, apperr.New(apperr.FailedPrecondition, "Enquiry changed while closing; try again.")
}

// ChangeStageLength sets a new stage length and moves the current
// deadline by the difference in working days.
func (c *Controller) ChangeStageLength(ctx context.Context, caller models.Caller, id primitive.ObjectID, newLength int) (models.Enquiry, error) {
	if err := requirePrivileged(caller); err != nil {
		return models.Enquiry{}, err
	}
	if newLength < MinStageLength || newLength > MaxStageLength {
		return models.Enquiry{}, apperr.Newf(apperr.InvalidArgument,
			"Stage length must be between %d and %d working days.", MinStageLength, MaxStageLength)
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		e, err := c.load(ctx, id)
		if err != nil {
			return models.Enquiry{}, err
		}
		old := e.EffectiveStageLength()
		if old == newLength {
			return models.Enquiry{}, apperr.Newf(apperr.AlreadyExists, "Enquiry already has stage length %d.", newLength)
		}

		var ends *time.Time
		if e.StageEnds != nil {
			moved := stageclock.OffsetByWorkingDays(c.policy.Cal, *e.StageEnds, newLength-old)
			ends = &moved
		}
		err = c.enquiries.SetStageLength(ctx, id, e.StageLength, newLength, ends)
		if errors.Is(err, enquirystore.ErrStageChanged) {
			continue
		}
		if err != nil {
			return models.Enquiry{}, err
		}
		c.log.Info("stage length changed",
			zap.String("enquiry_id", id.Hex()),
			zap.Int("from", old),
			zap.Int("to", newLength))
		return c.load(ctx, id)
	}
	return models.Enquiry{}, apperr.New(apperr.FailedPrecondition, "Enquiry changed while updating; try again.")
}

// DisableTeam disables every account of a team. Admin only; the RC team
// cannot be disabled.
func (c *Controller) DisableTeam(ctx context.Context, caller models.Caller, team string) (int64, error) {
	if !caller.IsAdmin() {
		return 0, apperr.New(apperr.PermissionDenied, "Admin function only.")
	}
	team = normalize.Team(team)
	if team == "" {
		return 0, apperr.New(apperr.InvalidArgument, "Missing team.")
	}
	if team == models.TeamRC {
		return 0, apperr.Wrap(apperr.FailedPrecondition, ErrProtectedTeam, "The RC team cannot be disabled.")
	}
	n, err := c.users.DisableTeam(ctx, team)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, apperr.Newf(apperr.NotFound, "No active users found in team %s.", team)
	}
	c.log.Info("team disabled", zap.String("team", team), zap.Int64("accounts", n))
	return n, nil
}
