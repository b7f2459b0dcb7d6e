// Package cli implements rulepostctl, the operator command line for
// running publication slots by hand and inspecting the working-day
// calendar.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/dalemusser/rulepost/internal/app/bootstrap"
	"github.com/dalemusser/rulepost/internal/app/system/calendar"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose       bool
	MongoURI      string
	MongoDatabase string
	CalendarFile  string
}

// NewRootCommand creates the root command for rulepostctl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "rulepostctl",
		Short: "Rule Post operator tools",
		Long:  "Run publication slots and inspect the working-day calendar of a Rule Post deployment.",
	}

	// Environment variables match the server's RULEPOST_ prefix.
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.MongoURI, "mongo-uri", envOr("RULEPOST_MONGO_URI", "mongodb://localhost:27017"), "MongoDB connection string")
	cmd.PersistentFlags().StringVar(&opts.MongoDatabase, "mongo-database", envOr("RULEPOST_MONGO_DATABASE", "rulepost"), "MongoDB database name")
	cmd.PersistentFlags().StringVar(&opts.CalendarFile, "calendar", os.Getenv("RULEPOST_CALENDAR_FILE"), "calendar YAML file (default season calendar when empty)")

	cmd.AddCommand(NewSlotCommand(opts))
	cmd.AddCommand(NewCalendarCommand(opts))
	cmd.AddCommand(NewTeamCommand(opts))

	return cmd
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func (o *RootOptions) logger() *zap.Logger {
	if o.Verbose {
		l, err := zap.NewDevelopment()
		if err == nil {
			return l
		}
	}
	l, err := zap.NewProduction()
	if err != nil {
		return zap.NewNop()
	}
	return l
}

func (o *RootOptions) calendar() (*calendar.Calendar, error) {
	return calendar.Load(o.CalendarFile)
}

// appConfig is the subset of server configuration the operator
// commands need. Mail settings come from the environment so a manual
// digest goes through the same relay as the scheduled one.
func (o *RootOptions) appConfig() bootstrap.AppConfig {
	return bootstrap.AppConfig{
		MongoURI:      o.MongoURI,
		MongoDatabase: o.MongoDatabase,
		CalendarFile:  o.CalendarFile,
		RedisAddr:     os.Getenv("RULEPOST_REDIS_ADDR"),
		MailSMTPHost:  os.Getenv("RULEPOST_MAIL_SMTP_HOST"),
		MailSMTPPort:  587,
		MailSMTPUser:  os.Getenv("RULEPOST_MAIL_SMTP_USER"),
		MailSMTPPass:  os.Getenv("RULEPOST_MAIL_SMTP_PASS"),
		MailFrom:      envOr("RULEPOST_MAIL_FROM", "noreply@rulepost.local"),
		MailFromName:  os.Getenv("RULEPOST_MAIL_FROM_NAME"),
		BaseURL:       os.Getenv("RULEPOST_BASE_URL"),
		SiteName:      os.Getenv("RULEPOST_SITE_NAME"),
	}
}

// connect opens the databases and builds the service graph. The
// returned func releases both.
func (o *RootOptions) connect(ctx context.Context, logger *zap.Logger) (*bootstrap.Services, func(), error) {
	appCfg := o.appConfig()
	deps, err := bootstrap.ConnectDB(ctx, nil, appCfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("connect: %w", err)
	}
	svc, err := bootstrap.NewServices(appCfg, deps, logger)
	if err != nil {
		_ = bootstrap.Shutdown(ctx, nil, appCfg, deps, logger)
		return nil, nil, err
	}
	deps.Services = svc
	return svc, func() {
		_ = bootstrap.Shutdown(context.Background(), nil, appCfg, deps, logger)
	}, nil
}
