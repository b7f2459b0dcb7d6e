// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). WAFFLE's CoreConfig covers
// ports, TLS, logging and CORS; everything specific to the rule forum
// lives here.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Session management configuration
	SessionKey    string // Secret key for signing session cookies (must be strong in production)
	SessionName   string // Cookie name for sessions (default: rulepost-session)
	SessionDomain string // Cookie domain (blank means current host)
	SessionMaxAge time.Duration

	// Redis backs the submission cooldown across replicas. Empty means an
	// in-process cooldown.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Publication schedule
	CalendarFile       string        // YAML calendar; empty uses the built-in season calendar
	SchedulerEnabled   bool          // run the slot scheduler in this process
	SlotTimeout        time.Duration // upper bound for one slot run
	SubmissionCooldown time.Duration // minimum gap between submissions of one user

	// Email/SMTP configuration
	MailSMTPHost string // SMTP server host; empty logs digests instead of sending
	MailSMTPPort int
	MailSMTPUser string
	MailSMTPPass string
	MailFrom     string
	MailFromName string

	// Base URL for links in digest emails
	BaseURL  string
	SiteName string

	// Audit destinations per category: all, db, log or off.
	AuditModeration string
	AuditAdmin      string

	// AdminEmail is promoted (or created) as an admin on startup.
	AdminEmail string
}
