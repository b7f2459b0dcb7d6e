// internal/app/bootstrap/routes.go
package bootstrap

import (
	"context"
	"net/http"

	auditlogfeature "github.com/dalemusser/rulepost/internal/app/features/auditlog"
	enquiriesfeature "github.com/dalemusser/rulepost/internal/app/features/enquiries"
	errorsfeature "github.com/dalemusser/rulepost/internal/app/features/errors"
	healthfeature "github.com/dalemusser/rulepost/internal/app/features/health"
	postsfeature "github.com/dalemusser/rulepost/internal/app/features/posts"
	settingsfeature "github.com/dalemusser/rulepost/internal/app/features/settings"
	statusfeature "github.com/dalemusser/rulepost/internal/app/features/status"
	teamsfeature "github.com/dalemusser/rulepost/internal/app/features/teams"
	unreadfeature "github.com/dalemusser/rulepost/internal/app/features/unread"
	uploadsfeature "github.com/dalemusser/rulepost/internal/app/features/uploads"
	userstore "github.com/dalemusser/rulepost/internal/app/store/users"
	"github.com/dalemusser/rulepost/internal/app/system/auth"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler.
//
// WAFFLE calls this after configuration, DB connections, schema setup and
// Startup have completed. Sessions identify the caller (role and team);
// every /api route requires a signed-in user, and the services decide
// what that user may do.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	// Refresh role and team on each request so a disabled team loses
	// access immediately.
	sessionMgr.WithUserLoader(userstore.New(deps.RulePostMongoDatabase))

	return newRouter(appCfg, deps, sessionMgr, logger), nil
}

func newRouter(appCfg AppConfig, deps DBDeps, sessionMgr *auth.SessionManager, logger *zap.Logger) chi.Router {
	svc := deps.Services
	db := deps.RulePostMongoDatabase
	errLog := errorsfeature.NewErrorLogger(logger)

	r := chi.NewRouter()

	// Global auth middleware: loads SessionUser into context if logged in.
	r.Use(sessionMgr.LoadSessionUser)

	var cache healthfeature.Pinger
	if deps.Redis != nil {
		cache = redisPinger{deps.Redis}
	}
	healthHandler := healthfeature.NewHandler(deps.RulePostMongoClient, cache, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	errorsHandler := errorsfeature.NewHandler()
	r.Get("/forbidden", errorsHandler.Forbidden)
	r.Get("/unauthorized", errorsHandler.Unauthorized)

	uploadsHandler := uploadsfeature.NewHandler(svc.Files, errLog, logger)
	postsHandler := postsfeature.NewHandler(svc.Posts, errLog, svc.Audit, logger)
	enquiriesHandler := enquiriesfeature.NewHandler(svc.Publisher, svc.Lifecycle, errLog, svc.Audit, logger)
	unreadHandler := unreadfeature.NewHandler(db, errLog, logger)
	settingsHandler := settingsfeature.NewHandler(db, errLog, logger)
	teamsHandler := teamsfeature.NewHandler(svc.Lifecycle, errLog, svc.Audit, logger)
	auditHandler := auditlogfeature.NewHandler(db, svc.Calendar, errLog, logger)
	statusHandler := statusfeature.NewHandler(db, svc.Orchestrator, svc.Calendar, statusfeature.AppConfig{
		MongoDatabase:      appCfg.MongoDatabase,
		RedisConfigured:    deps.Redis != nil,
		SchedulerEnabled:   appCfg.SchedulerEnabled,
		SlotTimeout:        appCfg.SlotTimeout,
		SubmissionCooldown: appCfg.SubmissionCooldown,
		MailConfigured:     appCfg.MailSMTPHost != "",
		BaseURL:            appCfg.BaseURL,
	}, errLog, logger)

	r.Group(func(pr chi.Router) {
		pr.Use(sessionMgr.RequireSignedIn)
		pr.Mount("/files", uploadsfeature.FileRoutes(uploadsHandler))
	})

	r.Route("/api", func(api chi.Router) {
		api.Use(sessionMgr.RequireSignedIn)
		api.Mount("/posts", postsfeature.Routes(postsHandler))
		api.Mount("/drafts", postsfeature.DraftRoutes(postsHandler))
		api.Mount("/enquiries", enquiriesfeature.Routes(enquiriesHandler))
		api.Group(func(limited chi.Router) {
			limited.Use(svc.UploadLimit.Middleware)
			limited.Mount("/uploads", uploadsfeature.Routes(uploadsHandler))
		})
		api.Mount("/unread", unreadfeature.Routes(unreadHandler))
		api.Mount("/settings", settingsfeature.Routes(settingsHandler))
		api.Mount("/teams", teamsfeature.Routes(teamsHandler))
		api.Mount("/audit", auditlogfeature.Routes(auditHandler))
		api.Mount("/status", statusfeature.Routes(statusHandler, sessionMgr))
	})

	return r
}

type redisPinger struct {
	rdb *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.rdb.Ping(ctx).Err()
}
