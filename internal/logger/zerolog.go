package logger

import (
	"github.com/rs/zerolog"
)

type ZerologLogger struct {
	lg zerolog.Logger
}

var _ Logger = (*ZerologLogger)(nil)

func NewZerologLogger(lg zerolog.Logger) *ZerologLogger {
	return &ZerologLogger{lg: lg.With().Str("service", "kvtern").Logger()}
}

func (zl *ZerologLogger) Successf(format string, args ...interface{}) {
	zl.lg.Info().Bool("success", true).Msgf(format, args...)
}

func (zl *ZerologLogger) Infof(format string, args ...interface{}) {
	zl.lg.Info().Msgf(format, args...)
}

func (zl *ZerologLogger) Debugf(format string, args ...interface{}) {
	zl.lg.Debug().Msgf(format, args...)
}

func (zl *ZerologLogger) Error(err error) {
	zl.lg.Error().Err(err).Msg("migration error")
}
