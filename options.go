package kvtern

import (
	"github.com/benbjohnson/clock"
	"github.com/denismitr/kvtern/internal/logger"
	"github.com/denismitr/kvtern/migration"
	"github.com/rs/zerolog"
	"go.uber.org/zap"
)

type OptionFunc func(*Migrator) error
type ActionConfigurator func(o *migration.Options)

// WithDryRun executes migration bodies without touching the ledger
// or the persisted schema
func WithDryRun() ActionConfigurator {
	return func(o *migration.Options) {
		o.DryRun = true
	}
}

func UseColorLogger(p logger.Printer, printDebug bool) OptionFunc {
	return func(m *Migrator) error {
		m.lg = logger.NewColorLogger(p, printDebug)
		return nil
	}
}

func UseLogger(p logger.Printer, printDebug bool) OptionFunc {
	return func(m *Migrator) error {
		m.lg = logger.NewBWLogger(p, printDebug)
		return nil
	}
}

func UseZapLogger(l *zap.Logger) OptionFunc {
	return func(m *Migrator) error {
		m.lg = logger.NewZapLogger(l)
		return nil
	}
}

func UseZerologLogger(l zerolog.Logger) OptionFunc {
	return func(m *Migrator) error {
		m.lg = logger.NewZerologLogger(l)
		return nil
	}
}

// UseClock replaces the clock ledger timestamps and layout cache ages come from
func UseClock(c clock.Clock) OptionFunc {
	return func(m *Migrator) error {
		m.clock = c
		return nil
	}
}
