// Package logging builds the process-wide zap logger. The logger is
// constructed once in main and threaded through constructors; nothing in
// this repository reaches for a package-level logger singleton.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a production-profile logger unless debug is set, in which
// case it uses zap's development profile (console encoding, debug level).
func New(debug bool) (*zap.Logger, error) {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	return cfg.Build()
}
