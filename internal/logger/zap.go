package logger

import (
	"fmt"

	"go.uber.org/zap"
)

// ZapLogger forwards to a zap logger, success messages are logged at info level
type ZapLogger struct {
	lg *zap.Logger
}

var _ Logger = (*ZapLogger)(nil)

func NewZapLogger(lg *zap.Logger) *ZapLogger {
	if lg == nil {
		lg = zap.NewNop()
	}

	return &ZapLogger{lg: lg.With(zap.String("service", "kvtern"))}
}

func (zl *ZapLogger) Successf(format string, args ...interface{}) {
	zl.lg.Info(fmt.Sprintf(format, args...), zap.Bool("success", true))
}

func (zl *ZapLogger) Infof(format string, args ...interface{}) {
	zl.lg.Info(fmt.Sprintf(format, args...))
}

func (zl *ZapLogger) Debugf(format string, args ...interface{}) {
	zl.lg.Debug(fmt.Sprintf(format, args...))
}

func (zl *ZapLogger) Error(err error) {
	zl.lg.Error("migration error", zap.Error(err))
}
