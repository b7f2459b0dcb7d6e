// internal/app/features/auditlog/handler.go
package auditlog

import (
	errorsfeature "github.com/dalemusser/rulepost/internal/app/features/errors"
	"github.com/dalemusser/rulepost/internal/app/store/audit"
	"github.com/dalemusser/rulepost/internal/app/system/calendar"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Handler struct {
	Store  *audit.Store
	Cal    *calendar.Calendar
	Log    *zap.Logger
	ErrLog *errorsfeature.ErrorLogger
}

// NewHandler constructs an audit log feature handler bound to
// the given Mongo database and logger. Date filters are read as days
// in cal's timezone.
func NewHandler(db *mongo.Database, cal *calendar.Calendar, errLog *errorsfeature.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Store:  audit.New(db),
		Cal:    cal,
		Log:    logger,
		ErrLog: errLog,
	}
}
