// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	userstore "github.com/dalemusser/rulepost/internal/app/store/users"
	"github.com/dalemusser/rulepost/internal/app/system/auditlog"
	"github.com/dalemusser/rulepost/internal/app/system/timeouts"
	"github.com/dalemusser/rulepost/internal/domain/models"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Startup runs one-time application initialization after DB connections
// and schema setup are complete, but before the HTTP handler is built:
// timeouts, the service graph, the admin account and the scheduler.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	timeouts.Configure(timeouts.Config{Slot: appCfg.SlotTimeout})
	if n := timeouts.ConfigureFromEnv("RULEPOST_"); n > 0 {
		logger.Info("timeouts overridden from environment", zap.Int("count", n))
	}

	if err := deps.Services.build(appCfg, deps, logger); err != nil {
		return fmt.Errorf("build services: %w", err)
	}

	if appCfg.AdminEmail != "" {
		if err := ensureAdmin(ctx, deps, appCfg.AdminEmail, logger); err != nil {
			return fmt.Errorf("ensure admin: %w", err)
		}
	}

	if appCfg.SchedulerEnabled {
		deps.Services.StartScheduler(logger)
	} else {
		logger.Info("scheduler disabled; slots run only via rulepostctl")
	}
	return nil
}

// ensureAdmin promotes the user with email to admin, creating the
// account when it does not exist.
func ensureAdmin(ctx context.Context, deps DBDeps, email string, logger *zap.Logger) error {
	users := userstore.New(deps.RulePostMongoDatabase)
	var audit *auditlog.Logger
	if deps.Services != nil {
		audit = deps.Services.Audit
	}

	u, err := users.GetByEmail(ctx, email)
	if errors.Is(err, userstore.ErrNotFound) {
		created, err := users.Create(ctx, models.User{
			FullName: "Administrator",
			Email:    email,
			Role:     models.RoleAdmin,
		})
		if err != nil {
			return err
		}
		logger.Info("admin account created", zap.String("user_id", created.ID.Hex()))
		audit.AdminEnsured(ctx, created.ID, true)
		return nil
	}
	if err != nil {
		return err
	}
	if u.Role == models.RoleAdmin {
		return nil
	}
	if err := users.SetRole(ctx, u.ID, models.RoleAdmin); err != nil {
		return err
	}
	logger.Info("user promoted to admin", zap.String("user_id", u.ID.Hex()))
	audit.AdminEnsured(ctx, u.ID, false)
	return nil
}
