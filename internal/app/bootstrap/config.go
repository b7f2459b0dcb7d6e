// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"time"

	"github.com/dalemusser/rulepost/internal/app/posts"
	"github.com/dalemusser/rulepost/internal/app/system/auditlog"
	"github.com/dalemusser/rulepost/internal/app/system/calendar"
	"github.com/dalemusser/rulepost/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for RulePost.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, calendar_file, etc.
//   - Environment variables: RULEPOST_MONGO_URI, RULEPOST_CALENDAR_FILE, etc.
//   - Command-line flags: --mongo_uri, --calendar_file, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "rulepost", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},
	{Name: "session_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Session signing key (must be strong in production)"},
	{Name: "session_name", Default: "rulepost-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "session_max_age", Default: "720h", Desc: "Session cookie lifetime"},

	// Submission cooldown backend
	{Name: "redis_addr", Default: "", Desc: "Redis address for the shared submission cooldown (blank: in-process)"},
	{Name: "redis_password", Default: "", Desc: "Redis password"},
	{Name: "redis_db", Default: 0, Desc: "Redis database number"},

	// Publication schedule
	{Name: "calendar_file", Default: "", Desc: "YAML working-day calendar (blank: built-in season calendar)"},
	{Name: "scheduler_enabled", Default: true, Desc: "Run the publication scheduler in this process"},
	{Name: "slot_timeout", Default: "10m", Desc: "Upper bound for one publication slot run"},
	{Name: "submission_cooldown", Default: "10s", Desc: "Minimum gap between two submissions of one user"},

	// Email/SMTP configuration
	{Name: "mail_smtp_host", Default: "", Desc: "SMTP server host (blank: log digests instead of sending)"},
	{Name: "mail_smtp_port", Default: 1025, Desc: "SMTP server port"},
	{Name: "mail_smtp_user", Default: "", Desc: "SMTP username"},
	{Name: "mail_smtp_pass", Default: "", Desc: "SMTP password"},
	{Name: "mail_from", Default: "noreply@rulepost.local", Desc: "From email address"},
	{Name: "mail_from_name", Default: "Rule Post", Desc: "From display name"},

	{Name: "base_url", Default: "http://localhost:3000", Desc: "Base URL for email links"},
	{Name: "site_name", Default: "Rule Post", Desc: "Site name used in email subjects"},

	{Name: "audit_moderation", Default: "all", Desc: "Audit destination for RC/admin enquiry actions (all|db|log|off)"},
	{Name: "audit_admin", Default: "all", Desc: "Audit destination for account and operator actions (all|db|log|off)"},

	{Name: "admin_email", Default: "", Desc: "Email of a user to promote (or create) as admin on startup"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles .env files, config files,
// environment variables (WAFFLE_* for core, RULEPOST_* for app) and
// command-line flags, merged with precedence flags > env > files > defaults.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "RULEPOST", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),
		SessionKey:       appValues.String("session_key"),
		SessionName:      appValues.String("session_name"),
		SessionDomain:    appValues.String("session_domain"),
		SessionMaxAge:    appValues.Duration("session_max_age", 30*24*time.Hour),

		RedisAddr:     appValues.String("redis_addr"),
		RedisPassword: appValues.String("redis_password"),
		RedisDB:       appValues.Int("redis_db"),

		CalendarFile:       appValues.String("calendar_file"),
		SchedulerEnabled:   appValues.Bool("scheduler_enabled"),
		SlotTimeout:        appValues.Duration("slot_timeout", timeouts.DefaultSlot),
		SubmissionCooldown: appValues.Duration("submission_cooldown", posts.DefaultCooldown),

		MailSMTPHost: appValues.String("mail_smtp_host"),
		MailSMTPPort: appValues.Int("mail_smtp_port"),
		MailSMTPUser: appValues.String("mail_smtp_user"),
		MailSMTPPass: appValues.String("mail_smtp_pass"),
		MailFrom:     appValues.String("mail_from"),
		MailFromName: appValues.String("mail_from_name"),

		BaseURL:  appValues.String("base_url"),
		SiteName: appValues.String("site_name"),

		AuditModeration: appValues.String("audit_moderation"),
		AuditAdmin:      appValues.String("audit_admin"),

		AdminEmail: appValues.String("admin_email"),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// The MongoDB URI is checked before connecting, and the calendar file is
// parsed here so a bad holiday range stops startup instead of failing
// the first publication slot.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}
	if appCfg.SlotTimeout <= 0 {
		return fmt.Errorf("slot_timeout must be positive, got %s", appCfg.SlotTimeout)
	}
	if appCfg.SubmissionCooldown < 0 {
		return fmt.Errorf("submission_cooldown must not be negative, got %s", appCfg.SubmissionCooldown)
	}
	if appCfg.MailSMTPHost != "" && (appCfg.MailSMTPPort <= 0 || appCfg.MailSMTPPort > 65535) {
		return fmt.Errorf("mail_smtp_port out of range: %d", appCfg.MailSMTPPort)
	}
	for name, v := range map[string]string{"audit_moderation": appCfg.AuditModeration, "audit_admin": appCfg.AuditAdmin} {
		if v != "" && !auditlog.Valid(v) {
			return fmt.Errorf("%s must be one of all, db, log, off; got %q", name, v)
		}
	}
	if _, err := calendar.Load(appCfg.CalendarFile); err != nil {
		logger.Error("invalid calendar", zap.String("calendar_file", appCfg.CalendarFile), zap.Error(err))
		return err
	}
	return nil
}
