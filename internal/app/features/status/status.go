// internal/app/features/status/status.go
package status

import (
	"context"
	"net/http"
	"strconv"
	"time"

	errorsfeature "github.com/dalemusser/rulepost/internal/app/features/errors"
	"github.com/dalemusser/rulepost/internal/app/system/calendar"
	"github.com/dalemusser/rulepost/internal/app/system/stageclock"
	"github.com/dalemusser/rulepost/internal/app/system/timeouts"
	"github.com/dalemusser/rulepost/internal/domain/models"
)

const recentRuns = 20

type calendarStatus struct {
	TimeZone     string `json:"timezone"`
	Today        string `json:"today"`
	TodayWorking bool   `json:"today_working"`
	RaceDate     string `json:"race_date"`
	Cutoff       string `json:"saturday_cutoff"`
}

type triggerStatus struct {
	Slot string    `json:"slot"`
	At   time.Time `json:"at"`
}

type statusResponse struct {
	Time                   time.Time        `json:"time"`
	Calendar               calendarStatus   `json:"calendar"`
	NextTrigger            triggerStatus    `json:"next_trigger"`
	NextCommentPublication time.Time        `json:"next_comment_publication"`
	RecentRuns             []models.SlotRun `json:"recent_runs"`
	Config                 []ConfigGroup    `json:"config"`
}

// Serve handles GET /api/status.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	now := h.now()

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	runs, err := h.Runs.Recent(ctx, recentRuns)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	if runs == nil {
		runs = []models.SlotRun{}
	}

	slot, at := h.Planner.NextTrigger(now)
	loc := h.Cal.Location()
	errorsfeature.JSON(w, http.StatusOK, statusResponse{
		Time: now.In(loc),
		Calendar: calendarStatus{
			TimeZone:     loc.String(),
			Today:        h.Cal.DateOf(now).Format(calendar.DateLayout),
			TodayWorking: h.Cal.IsWorkingDay(now),
			RaceDate:     h.Cal.RaceDate().Format(calendar.DateLayout),
			Cutoff:       h.Cal.Cutoff().Format(calendar.DateLayout),
		},
		NextTrigger:            triggerStatus{Slot: slot.Name, At: at.In(loc)},
		NextCommentPublication: stageclock.NextPublicationSlot(h.Cal, now).In(loc),
		RecentRuns:             runs,
		Config:                 h.configGroups(),
	})
}

func (h *Handler) configGroups() []ConfigGroup {
	c := h.AppCfg
	return []ConfigGroup{
		{Name: "Storage", Items: []ConfigItem{
			{Name: "mongo_database", Value: c.MongoDatabase},
			{Name: "redis", Value: configured(c.RedisConfigured)},
		}},
		{Name: "Schedule", Items: []ConfigItem{
			{Name: "scheduler_enabled", Value: strconv.FormatBool(c.SchedulerEnabled)},
			{Name: "slot_timeout", Value: c.SlotTimeout.String()},
			{Name: "submission_cooldown", Value: c.SubmissionCooldown.String()},
		}},
		{Name: "Mail", Items: []ConfigItem{
			{Name: "smtp", Value: configured(c.MailConfigured)},
			{Name: "base_url", Value: c.BaseURL},
		}},
	}
}

func configured(b bool) string {
	if b {
		return "configured"
	}
	return "not configured"
}
