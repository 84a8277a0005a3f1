// Copyright (c) 2024 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

package zaputil

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LoggerConfig struct {
	Level zapcore.Level `config:"level"`
	// Format is console or json.
	Format string `config:"format" validate:"log-format"`
}

func DefaultLoggerConfig() LoggerConfig {
	return LoggerConfig{
		Level:  zap.InfoLevel,
		Format: "console",
	}
}

// NewLogger builds stderr logger. Console logger prints error stacks separately.
func NewLogger(conf LoggerConfig) (*zap.Logger, error) {
	if !IsFormat(conf.Format) {
		return nil, errors.Errorf("unknown log format %q: expected console or json", conf.Format)
	}
	zconf := zap.NewDevelopmentConfig()
	if conf.Format == "json" {
		zconf = zap.NewProductionConfig()
	}
	zconf.Level = zap.NewAtomicLevelAt(conf.Level)
	opts := []zap.Option{zap.AddCaller(), zap.AddStacktrace(zap.DPanicLevel)}
	if conf.Format != "json" {
		opts = append(opts, zap.WrapCore(NewStackExtractCore))
	}
	log, err := zconf.Build(opts...)
	if err != nil {
		return nil, errors.Wrap(err, "logger build failed")
	}
	return log, nil
}

// IsFormat checks that s is supported log format.
func IsFormat(s string) bool {
	return s == "console" || s == "json"
}
