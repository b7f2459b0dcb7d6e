// internal/app/features/status/handler.go
package status

import (
	"time"

	errorsfeature "github.com/dalemusser/rulepost/internal/app/features/errors"
	"github.com/dalemusser/rulepost/internal/app/orchestrator"
	slotrunstore "github.com/dalemusser/rulepost/internal/app/store/slotruns"
	"github.com/dalemusser/rulepost/internal/app/system/calendar"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// SlotPlanner reports the next scheduled trigger.
type SlotPlanner interface {
	NextTrigger(now time.Time) (orchestrator.Slot, time.Time)
}

// AppConfig is the non-secret configuration shown on the status page.
type AppConfig struct {
	MongoDatabase      string
	RedisConfigured    bool
	SchedulerEnabled   bool
	SlotTimeout        time.Duration
	SubmissionCooldown time.Duration
	MailConfigured     bool
	BaseURL            string
}

// ConfigItem is one name/value pair.
type ConfigItem struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ConfigGroup is a titled list of config items.
type ConfigGroup struct {
	Name  string       `json:"name"`
	Items []ConfigItem `json:"items"`
}

type Handler struct {
	Runs    *slotrunstore.Store
	Planner SlotPlanner
	Cal     *calendar.Calendar
	AppCfg  AppConfig
	ErrLog  *errorsfeature.ErrorLogger
	Log     *zap.Logger

	now func() time.Time
}

// NewHandler constructs the admin status handler.
func NewHandler(db *mongo.Database, planner SlotPlanner, cal *calendar.Calendar, appCfg AppConfig, errLog *errorsfeature.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Runs:    slotrunstore.New(db),
		Planner: planner,
		Cal:     cal,
		AppCfg:  appCfg,
		ErrLog:  errLog,
		Log:     logger,
		now:     time.Now,
	}
}

// WithClock overrides the handler's clock.
func (h *Handler) WithClock(now func() time.Time) *Handler {
	h.now = now
	return h
}
