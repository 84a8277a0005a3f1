// Copyright (c) 2024 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

package testutil

import (
	"strings"
	"testing"

	"github.com/onsi/ginkgo"
	"github.com/onsi/gomega"
	"github.com/onsi/gomega/format"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// RunSuite runs ginkgo specs of package. Global logger writes to GinkgoWriter,
// so logs are shown only for failed specs.
func RunSuite(t *testing.T, description string) {
	// Errors with stack are printed by %v, not as struct dump.
	format.UseStringerRepresentation = true
	log := NewGinkgoLogger()
	zap.ReplaceGlobals(log)
	defer zap.RedirectStdLog(log)()
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, description)
}

func NewGinkgoLogger() *zap.Logger {
	encConf := zap.NewDevelopmentEncoderConfig()
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encConf),
		zapcore.AddSync(ginkgo.GinkgoWriter),
		zap.DebugLevel,
	)
	return zap.New(core, zap.AddCaller())
}

// ParseYAML parses config the way cli does, so keys are lowercased.
func ParseYAML(data string) map[string]interface{} {
	v := viper.New()
	v.SetConfigType("yaml")
	gomega.Expect(v.ReadConfig(strings.NewReader(data))).To(gomega.Succeed())
	return v.AllSettings()
}
