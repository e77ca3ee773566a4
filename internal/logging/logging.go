package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dunamismax/transformd/internal/config"
)

// New builds the process logger, named after the binary.
func New(cfg config.LogConfig, name string) (*zap.Logger, error) {
	return NewWith(cfg, func(*zap.Config) {}, name)
}

// NewWith builds a logger from a zap.Config adjusted by cfgFn.
func NewWith(cfg config.LogConfig, cfgFn func(*zap.Config), name string) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}

	if lvl := strings.TrimSpace(cfg.Level); lvl != "" {
		level, err := zapcore.ParseLevel(lvl)
		if err != nil {
			return nil, fmt.Errorf("parse log level %q: %w", lvl, err)
		}
		zcfg.Level.SetLevel(level)
	}
	cfgFn(&zcfg)

	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	if name != "" {
		logger = logger.Named(name)
	}
	return logger, nil
}
