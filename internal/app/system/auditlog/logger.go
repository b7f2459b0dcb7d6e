// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net/http"
	"strconv"

	"github.com/dalemusser/rulepost/internal/app/store/audit"
	"github.com/dalemusser/rulepost/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Destinations for a category.
const (
	ToAll = "all" // MongoDB + zap
	ToDB  = "db"
	ToLog = "log"
	Off   = "off"
)

// Config holds audit logging configuration.
type Config struct {
	// Moderation covers RC/admin actions on enquiries and posts.
	Moderation string
	// Admin covers account and operator actions.
	Admin string
}

// Valid reports whether v is a known destination.
func Valid(v string) bool {
	switch v {
	case ToAll, ToDB, ToLog, Off:
		return true
	}
	return false
}

// Logger records audit events to MongoDB (via audit.Store) and to zap.
type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger.
func New(store *audit.Store, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{
		store:  store,
		zapLog: zapLog,
		config: config,
	}
}

// getClientIP extracts the client IP from the request. r may be nil
// for actions taken outside HTTP.
func getClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}

func userAgent(r *http.Request) string {
	if r == nil {
		return ""
	}
	return r.UserAgent()
}

func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
	}
	if event.IP != "" {
		fields = append(fields, zap.String("ip", event.IP))
	}
	if event.ActorID != nil {
		fields = append(fields, zap.String("actor_id", event.ActorID.Hex()))
	}
	if event.ActorTeam != "" {
		fields = append(fields, zap.String("actor_team", event.ActorTeam))
	}
	if event.EnquiryID != nil {
		fields = append(fields, zap.String("enquiry_id", event.EnquiryID.Hex()))
	}
	if event.PostID != nil {
		fields = append(fields, zap.String("post_id", event.PostID.Hex()))
	}
	if event.Team != "" {
		fields = append(fields, zap.String("team", event.Team))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records an audit event according to the category's destination.
// A nil Logger is a no-op.
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	var setting string
	switch event.Category {
	case audit.CategoryModeration:
		setting = l.config.Moderation
	case audit.CategoryAdmin:
		setting = l.config.Admin
	default:
		setting = ToAll
	}
	if setting == "" {
		setting = ToAll
	}
	if setting == Off {
		return
	}

	if setting == ToAll || setting == ToLog {
		l.logToZap(event)
	}
	if setting == ToAll || setting == ToDB {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

func actorEvent(r *http.Request, caller models.Caller, category, eventType string) audit.Event {
	e := audit.Event{
		Category:  category,
		EventType: eventType,
		ActorRole: caller.Role,
		ActorTeam: caller.Team,
		IP:        getClientIP(r),
		UserAgent: userAgent(r),
		Success:   true,
	}
	if !caller.UserID.IsZero() {
		id := caller.UserID
		e.ActorID = &id
	}
	return e
}

// --- Moderation Events ---

// EnquiryPublished logs an instant publish of an enquiry's pending posts.
func (l *Logger) EnquiryPublished(ctx context.Context, r *http.Request, caller models.Caller, enquiryID primitive.ObjectID, published int) {
	e := actorEvent(r, caller, audit.CategoryModeration, audit.EventEnquiryPublished)
	e.EnquiryID = &enquiryID
	e.Details = map[string]string{"published": strconv.Itoa(published)}
	l.Log(ctx, e)
}

// EnquiryClosed logs the closing of an enquiry.
func (l *Logger) EnquiryClosed(ctx context.Context, r *http.Request, caller models.Caller, enquiryID primitive.ObjectID, round int) {
	e := actorEvent(r, caller, audit.CategoryModeration, audit.EventEnquiryClosed)
	e.EnquiryID = &enquiryID
	e.Details = map[string]string{"round": strconv.Itoa(round)}
	l.Log(ctx, e)
}

// StageLengthChanged logs a new stage length.
func (l *Logger) StageLengthChanged(ctx context.Context, r *http.Request, caller models.Caller, enquiryID primitive.ObjectID, length int) {
	e := actorEvent(r, caller, audit.CategoryModeration, audit.EventStageLengthChanged)
	e.EnquiryID = &enquiryID
	e.Details = map[string]string{"stage_length": strconv.Itoa(length)}
	l.Log(ctx, e)
}

// AuthorRevealed logs that an RC member or admin looked up the author
// of an anonymous post.
func (l *Logger) AuthorRevealed(ctx context.Context, r *http.Request, caller models.Caller, postType string, postID primitive.ObjectID) {
	e := actorEvent(r, caller, audit.CategoryModeration, audit.EventAuthorRevealed)
	e.PostID = &postID
	e.Details = map[string]string{"post_type": postType}
	l.Log(ctx, e)
}

// --- Admin Events ---

// TeamDisabled logs the disabling of every account of a team.
func (l *Logger) TeamDisabled(ctx context.Context, r *http.Request, caller models.Caller, team string, accounts int64) {
	e := actorEvent(r, caller, audit.CategoryAdmin, audit.EventTeamDisabled)
	e.Team = team
	e.Details = map[string]string{"accounts": strconv.FormatInt(accounts, 10)}
	l.Log(ctx, e)
}

// AdminEnsured logs the startup promotion or creation of the admin account.
func (l *Logger) AdminEnsured(ctx context.Context, userID primitive.ObjectID, created bool) {
	e := audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: audit.EventAdminEnsured,
		ActorRole: models.RoleAdmin,
		ActorID:   &userID,
		Success:   true,
		Details:   map[string]string{"created": strconv.FormatBool(created)},
	}
	l.Log(ctx, e)
}

// SlotRunManual logs an operator-triggered slot run.
func (l *Logger) SlotRunManual(ctx context.Context, slot, runID string, force bool, runErr error) {
	e := audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: audit.EventSlotRunManual,
		Success:   runErr == nil,
		Details: map[string]string{
			"slot":   slot,
			"run_id": runID,
			"force":  strconv.FormatBool(force),
		},
	}
	if runErr != nil {
		e.FailureReason = runErr.Error()
	}
	l.Log(ctx, e)
}
