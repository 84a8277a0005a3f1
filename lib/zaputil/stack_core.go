// Copyright (c) 2024 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

package zaputil

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/yandex/trickle/lib/errutil"
)

// NewStackExtractCore returns core that moves stacktraces of github.com/pkg/errors
// error fields to entry stack. Console encoder prints error field as
// message only, and stack below the entry.
// Underlying core Check is not called, only its LevelEnabler.
func NewStackExtractCore(c zapcore.Core) zapcore.Core {
	return &stackExtractCore{Core: c}
}

type stackExtractCore struct {
	zapcore.Core
	stacks []string // Extracted from With fields.
}

func (c *stackExtractCore) With(fields []zapcore.Field) zapcore.Core {
	fields, stacks := extractStacks(fields)
	return &stackExtractCore{
		Core:   c.Core.With(fields),
		stacks: append(append([]string(nil), c.stacks...), stacks...),
	}
}

func (c *stackExtractCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *stackExtractCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	fields, stacks := extractStacks(fields)
	stacks = append(append([]string(nil), c.stacks...), stacks...)
	if len(stacks) == 0 {
		return c.Core.Write(ent, fields)
	}
	if ent.Stack != "" {
		stacks = append([]string{ent.Stack}, stacks...)
	}
	ent.Stack = strings.Join(stacks, "\n")
	return c.Core.Write(ent, fields)
}

// extractStacks replaces stacked errors with their messages.
// Passed slice is not modified.
func extractStacks(fields []zapcore.Field) ([]zapcore.Field, []string) {
	var (
		stacks []string
		copied bool
	)
	for i, field := range fields {
		if field.Type != zapcore.ErrorType {
			continue
		}
		stacked, ok := field.Interface.(interface {
			error
			errutil.StackTracer
		})
		if !ok {
			continue
		}
		if !copied {
			fields = append([]zapcore.Field(nil), fields...)
			copied = true
		}
		fields[i] = zap.String(field.Key, stacked.Error())
		stacks = append(stacks, fmt.Sprintf("%s stacktrace:%+v", field.Key, stacked.StackTrace()))
	}
	return fields, stacks
}
