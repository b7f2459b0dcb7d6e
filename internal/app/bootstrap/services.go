// internal/app/bootstrap/services.go
package bootstrap

import (
	"time"

	"github.com/dalemusser/rulepost/internal/app/lifecycle"
	"github.com/dalemusser/rulepost/internal/app/notify"
	"github.com/dalemusser/rulepost/internal/app/orchestrator"
	"github.com/dalemusser/rulepost/internal/app/posts"
	"github.com/dalemusser/rulepost/internal/app/publisher"
	"github.com/dalemusser/rulepost/internal/app/store/audit"
	"github.com/dalemusser/rulepost/internal/app/system/attachments"
	"github.com/dalemusser/rulepost/internal/app/system/auditlog"
	"github.com/dalemusser/rulepost/internal/app/system/calendar"
	"github.com/dalemusser/rulepost/internal/app/system/mailer"
	"github.com/dalemusser/rulepost/internal/app/system/ratelimit"
	"github.com/dalemusser/rulepost/internal/app/system/tasks"
	"github.com/dalemusser/rulepost/internal/app/system/workers"
	"go.uber.org/zap"
)

const (
	cooldownKeyPrefix = "rulepost:cooldown:"
	uploadsPerMinute  = 30
)

// Services is the application graph shared by the HTTP handlers, the
// scheduler and the operator CLI.
type Services struct {
	Calendar     *calendar.Calendar
	Files        attachments.Store
	Cooldown     ratelimit.Cooldown
	UploadLimit  *ratelimit.Limiter
	Mailer       mailer.Sender
	Audit        *auditlog.Logger
	Posts        *posts.Service
	Publisher    *publisher.Service
	Lifecycle    *lifecycle.Controller
	Digest       *notify.Digest
	Orchestrator *orchestrator.Orchestrator
	Scheduler    *workers.Scheduler // nil unless started

	memCooldown *ratelimit.MemoryCooldown
}

// NewServices builds the service graph over deps.
func NewServices(appCfg AppConfig, deps DBDeps, logger *zap.Logger) (*Services, error) {
	s := &Services{}
	if err := s.build(appCfg, deps, logger); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Services) build(appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	db := deps.RulePostMongoDatabase

	cal, err := calendar.Load(appCfg.CalendarFile)
	if err != nil {
		return err
	}
	s.Calendar = cal
	s.Files = attachments.NewGridFSStore(db)

	switch {
	case appCfg.SubmissionCooldown <= 0:
		logger.Info("submission cooldown disabled")
	case deps.Redis != nil:
		s.Cooldown = ratelimit.NewRedisCooldown(deps.Redis, cooldownKeyPrefix, appCfg.SubmissionCooldown)
	default:
		s.memCooldown = ratelimit.NewMemoryCooldown(appCfg.SubmissionCooldown)
		s.Cooldown = s.memCooldown
	}
	s.UploadLimit = ratelimit.New(uploadsPerMinute, time.Minute)

	s.Mailer = mailer.New(mailer.Config{
		Host:     appCfg.MailSMTPHost,
		Port:     appCfg.MailSMTPPort,
		User:     appCfg.MailSMTPUser,
		Pass:     appCfg.MailSMTPPass,
		From:     appCfg.MailFrom,
		FromName: appCfg.MailFromName,
	}, logger)

	s.Audit = auditlog.New(audit.New(db), logger, auditlog.Config{
		Moderation: appCfg.AuditModeration,
		Admin:      appCfg.AuditAdmin,
	})

	s.Posts = posts.New(db, s.Files, s.Cooldown, logger)
	s.Publisher = publisher.New(db, cal, s.Files, logger)
	s.Lifecycle = lifecycle.New(db, cal, logger)
	s.Digest = notify.NewDigest(db, s.Mailer, appCfg.SiteName, appCfg.BaseURL, appCfg.MailFrom, logger)

	slots := orchestrator.DefaultSlots(orchestrator.Phases{
		EnquiryPublish:           tasks.EnquiryPublishJob(s.Publisher),
		CommentPublish:           tasks.CommentPublishJob(s.Publisher),
		CommitteeResponsePublish: tasks.CommitteeResponsePublishJob(s.Publisher),
		TeamResponsePublish:      tasks.TeamResponsePublishJob(s.Publisher),
		NextCommentSlot:          tasks.NextCommentSlotJob(s.Publisher, logger),
		Digest:                   tasks.DigestJob(s.Digest),
	})
	s.Orchestrator = orchestrator.New(db, cal, slots, logger)
	return nil
}

// StartScheduler runs the slot scheduler in the background.
func (s *Services) StartScheduler(logger *zap.Logger) {
	s.Scheduler = workers.NewScheduler(s.Orchestrator, logger)
	s.Scheduler.Start()
}

// Close stops background workers. It is safe on a partly built graph.
func (s *Services) Close() {
	if s.Scheduler != nil {
		s.Scheduler.Stop()
	}
	if s.UploadLimit != nil {
		s.UploadLimit.Stop()
	}
	if s.memCooldown != nil {
		s.memCooldown.Stop()
	}
}
