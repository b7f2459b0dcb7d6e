// internal/app/features/settings/handler.go
package settings

import (
	"context"
	"errors"
	"net/http"

	errorsfeature "github.com/dalemusser/rulepost/internal/app/features/errors"
	"github.com/dalemusser/rulepost/internal/app/features/shared/apiutil"
	userstore "github.com/dalemusser/rulepost/internal/app/store/users"
	"github.com/dalemusser/rulepost/internal/app/system/apperr"
	"github.com/dalemusser/rulepost/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves the signed-in user's own preferences.
type Handler struct {
	Users  *userstore.Store
	ErrLog *errorsfeature.ErrorLogger
	Log    *zap.Logger
}

func NewHandler(db *mongo.Database, errLog *errorsfeature.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Users:  userstore.New(db),
		ErrLog: errLog,
		Log:    logger,
	}
}

type notificationsBody struct {
	EmailNotificationsOn *bool `json:"email_notifications_on"`
}

type notificationsResponse struct {
	EmailNotificationsOn bool `json:"email_notifications_on"`
}

var errNoProfile = apperr.New(apperr.FailedPrecondition, "User profile not found.")

// Notifications handles GET /api/settings/notifications.
func (h *Handler) Notifications(w http.ResponseWriter, r *http.Request) {
	caller, ok := apiutil.Caller(w, r, h.ErrLog)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := h.Users.GetByID(ctx, caller.UserID)
	if errors.Is(err, userstore.ErrNotFound) {
		err = errNoProfile
	}
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	errorsfeature.JSON(w, http.StatusOK, notificationsResponse{EmailNotificationsOn: u.EmailNotificationsOn})
}

// SetNotifications handles PUT /api/settings/notifications. Users only
// ever change their own digest preference.
func (h *Handler) SetNotifications(w http.ResponseWriter, r *http.Request) {
	caller, ok := apiutil.Caller(w, r, h.ErrLog)
	if !ok {
		return
	}
	var body notificationsBody
	if !apiutil.DecodeJSON(w, r, h.ErrLog, &body) {
		return
	}
	if body.EmailNotificationsOn == nil {
		h.ErrLog.BadRequest(w, "email_notifications_on must be a boolean.")
		return
	}
	on := *body.EmailNotificationsOn

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	err := h.Users.SetEmailNotifications(ctx, caller.UserID, on)
	if errors.Is(err, userstore.ErrNotFound) {
		err = errNoProfile
	}
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	h.Log.Info("email notifications changed",
		zap.String("user_id", caller.UserID.Hex()),
		zap.Bool("on", on))
	errorsfeature.JSON(w, http.StatusOK, notificationsResponse{EmailNotificationsOn: on})
}
