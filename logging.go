/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// newLoggerConfig maps --log-level and --log-format onto a zap config. json
// selects zap's production config, console its development config. Both
// stamp entries with the logDate layout. --verbose forces debug.
func newLoggerConfig(cfg *Config) (zap.Config, error) {
	lvl := cfg.logLevel
	if cfg.verbose {
		lvl = "debug"
	}

	level, err := zapcore.ParseLevel(lvl)
	if err != nil {
		return zap.Config{}, fmt.Errorf("parsing log level %q: %w", lvl, err)
	}

	var zapCfg zap.Config
	switch cfg.logFormat {
	case "json":
		zapCfg = zap.NewProductionConfig()
	case "console":
		zapCfg = zap.NewDevelopmentConfig()
	default:
		return zap.Config{}, fmt.Errorf("unknown log format %q", cfg.logFormat)
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(logDate)

	return zapCfg, nil
}

func newLogger(cfg *Config) (*zap.Logger, error) {
	zapCfg, err := newLoggerConfig(cfg)
	if err != nil {
		return nil, err
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}

	return logger.With(zap.String("version", releaseVersion)), nil
}
