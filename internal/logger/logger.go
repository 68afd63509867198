package logger

import (
	"fmt"

	"github.com/parisxmas/fsdash/internal/config"
	"github.com/parisxmas/fsdash/internal/gelf"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process logger. format "json" selects the production encoder,
// anything else the development console encoder. When GelfAddr is set every
// entry is also shipped as a GELF datagram.
func New(cfg config.LoggingConfig, service string) (*zap.Logger, error) {
	level := ParseLevel(cfg.Level)

	var zc zap.Config
	if cfg.Format == "json" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	log, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	if cfg.GelfAddr != "" {
		w, err := gelf.New(cfg.GelfAddr, service)
		if err != nil {
			log.Warn("GELF init failed", zap.String("addr", cfg.GelfAddr), zap.Error(err))
		} else {
			gelfCore := zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), w, level)
			log = log.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
				return zapcore.NewTee(c, gelfCore)
			}))
			log.Info("GELF logging enabled", zap.String("addr", cfg.GelfAddr))
		}
	}

	return log.With(zap.String("service", service)), nil
}

// ParseLevel maps a config string to a zap level; unknown values mean info.
func ParseLevel(s string) zapcore.Level {
	switch s {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	}
	return zapcore.InfoLevel
}
