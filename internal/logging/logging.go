// Package logging builds the zap logger used across the service and keeps
// a bounded ring of recent entries for the debug endpoint.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config mirrors the logging section of config.yaml.
type Config struct {
	Level    string `yaml:"level"`
	Encoding string `yaml:"encoding"` // json | console
	Debug    bool   `yaml:"debug"`
	// RingSize is how many recent entries /debug/logs keeps, 0 disables it.
	RingSize int `yaml:"ringSize"`
}

// New builds a logger from cfg. The returned ring is nil when disabled.
func New(cfg Config) (*zap.Logger, *Ring, error) {
	var zc zap.Config
	if cfg.Debug {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	if cfg.Encoding != "" {
		zc.Encoding = cfg.Encoding
	}
	if cfg.Level != "" {
		lvl, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, nil, err
		}
		zc.Level = zap.NewAtomicLevelAt(lvl)
	}

	logger, err := zc.Build()
	if err != nil {
		return nil, nil, err
	}
	if cfg.RingSize <= 0 {
		return logger, nil, nil
	}

	ring := NewRing(cfg.RingSize, zc.Level)
	logger = logger.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, ring)
	}))
	return logger, ring, nil
}

// NewCLI is the console logger for the command line tool.
func NewCLI(debug bool) *zap.SugaredLogger {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	cfg.Encoding = "console"
	logger, err := cfg.Build()
	if err != nil {
		panic("failed to initialise logger: " + err.Error())
	}
	return logger.Sugar()
}
