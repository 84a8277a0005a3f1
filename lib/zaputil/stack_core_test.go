// Copyright (c) 2024 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

package zaputil

import (
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func plainFields() []zapcore.Field {
	return []zapcore.Field{
		zap.Int("seq", 1), zap.Error(fmt.Errorf("connection reset")),
	}
}

func TestStackExtractCore_NoStacks(t *testing.T) {
	nested, logs := observer.New(zap.DebugLevel)
	log := zap.New(NewStackExtractCore(nested))

	log.With(zap.String("url", "http://relay/s1")).Info("Segment uploaded", plainFields()...)
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Empty(t, entry.Stack)
	assert.Equal(t, append([]zapcore.Field{zap.String("url", "http://relay/s1")}, plainFields()...), entry.Context)
}

func TestStackExtractCore_StackInWrite(t *testing.T) {
	err := errors.New("segment connect failed")
	stack := fmt.Sprintf("%+v", err.(interface{ StackTrace() errors.StackTrace }).StackTrace())

	nested, logs := observer.New(zap.DebugLevel)
	core := NewStackExtractCore(nested)
	fields := append(plainFields(), zap.Error(err))
	fieldsCopy := append([]zapcore.Field(nil), fields...)
	entry := zapcore.Entry{Message: "test"}
	require.NoError(t, core.Write(entry, fields))

	require.Equal(t, 1, logs.Len())
	logged := logs.All()[0]
	assert.Equal(t, "error stacktrace:"+stack, logged.Stack)
	assert.Equal(t, append(plainFields(), zap.String("error", "segment connect failed")), logged.Context)
	assert.Equal(t, fieldsCopy, fields, "passed fields should not be modified")
}

func TestStackExtractCore_StackInWith(t *testing.T) {
	err := errors.New("create failed")
	nested, logs := observer.New(zap.DebugLevel)
	core := NewStackExtractCore(nested).With([]zapcore.Field{zap.NamedError("cause", err)})
	entry := zapcore.Entry{Message: "test", Stack: "entry stack"}
	require.NoError(t, core.Write(entry, nil))

	logged := logs.All()[0]
	assert.Contains(t, logged.Stack, "entry stack\ncause stacktrace:")
	assert.Equal(t, []zapcore.Field{zap.String("cause", "create failed")}, logged.Context)
}

func TestNewLogger(t *testing.T) {
	for _, format := range []string{"console", "json"} {
		conf := DefaultLoggerConfig()
		conf.Format = format
		log, err := NewLogger(conf)
		require.NoError(t, err, format)
		assert.True(t, log.Core().Enabled(zap.InfoLevel))
		assert.False(t, log.Core().Enabled(zap.DebugLevel))
	}
	log, err := NewLogger(LoggerConfig{Level: zap.DebugLevel, Format: "json"})
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zap.DebugLevel))

	conf := DefaultLoggerConfig()
	conf.Format = "xml"
	_, err = NewLogger(conf)
	assert.Error(t, err)
}
