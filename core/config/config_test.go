// Copyright (c) 2024 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

package config

import (
	"net/url"
	"os"
	"time"

	"github.com/c2h5oh/datasize"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"
	"go.uber.org/zap/zapcore"

	"github.com/yandex/trickle/lib/zaputil"
)

type segmentConf struct {
	URL      string            `config:"url" validate:"required,stream-url"`
	Relay    *url.URL          `config:"relay"`
	Chunk    datasize.ByteSize `config:"chunk" validate:"min-size=1KB,max-size=1MB"`
	Duration time.Duration     `config:"duration" validate:"min-time=1s"`
	Level    zapcore.Level     `config:"level"`
	Listen   string            `config:"listen" validate:"omitempty,endpoint"`
	Nested   struct {
		Count int `config:"count" validate:"min=1"`
	} `config:"nested"`
}

func defaultSegmentConf() segmentConf {
	c := segmentConf{
		URL:      "http://localhost:2939/stream",
		Chunk:    16 * datasize.KB,
		Duration: 2 * time.Second,
	}
	c.Nested.Count = 1
	return c
}

var _ = Describe("Decode", func() {
	It("keeps defaults", func() {
		conf := defaultSegmentConf()
		err := DecodeAndValidate(map[string]interface{}{
			"chunk": "32KB",
		}, &conf)
		Expect(err).NotTo(HaveOccurred())
		Expect(conf.Chunk).To(Equal(32 * datasize.KB))
		Expect(conf.Duration).To(Equal(2 * time.Second))
		Expect(conf.URL).To(Equal("http://localhost:2939/stream"))
	})

	It("converts strings", func() {
		conf := defaultSegmentConf()
		err := DecodeAndValidate(map[string]interface{}{
			"relay":    "http://relay:2939/",
			"duration": "500ms",
			"level":    "debug",
		}, &conf)
		Expect(err).To(HaveOccurred(), "duration less than min-time")

		conf = defaultSegmentConf()
		err = DecodeAndValidate(map[string]interface{}{
			"relay":    "http://relay:2939/",
			"duration": "3s",
			"level":    "debug",
			"listen":   ":8080",
			"nested":   map[string]interface{}{"count": 3},
		}, &conf)
		Expect(err).NotTo(HaveOccurred())
		Expect(conf.Relay.Host).To(Equal("relay:2939"))
		Expect(conf.Duration).To(Equal(3 * time.Second))
		Expect(conf.Level).To(Equal(zapcore.DebugLevel))
		Expect(conf.Nested.Count).To(Equal(3))
	})

	It("fails on unknown keys", func() {
		conf := defaultSegmentConf()
		err := Decode(map[string]interface{}{"unknown": 1}, &conf)
		Expect(err).To(HaveOccurred())
	})

	It("fails on invalid values", func() {
		for _, data := range []map[string]interface{}{
			{"relay": "not url"},
			{"chunk": "lot"},
			{"level": "loud"},
		} {
			conf := defaultSegmentConf()
			Expect(Decode(data, &conf)).To(HaveOccurred(), "%v", data)
		}
		conf := defaultSegmentConf()
		conf.Chunk = 2 * datasize.MB
		Expect(Validate(&conf)).To(HaveOccurred())
		conf = defaultSegmentConf()
		conf.Listen = "localhost"
		Expect(Validate(&conf)).To(HaveOccurred())
	})

	Context("env variables", func() {
		BeforeEach(func() {
			Expect(os.Setenv("TRICKLE_TEST_HOST", "relay.local")).To(Succeed())
		})
		AfterEach(func() {
			Expect(os.Unsetenv("TRICKLE_TEST_HOST")).To(Succeed())
		})

		It("injected", func() {
			conf := defaultSegmentConf()
			err := DecodeAndValidate(map[string]interface{}{
				"url": "http://${env:TRICKLE_TEST_HOST}:2939/s1",
			}, &conf)
			Expect(err).NotTo(HaveOccurred())
			Expect(conf.URL).To(Equal("http://relay.local:2939/s1"))
		})

		It("missing fails", func() {
			conf := defaultSegmentConf()
			err := Decode(map[string]interface{}{
				"url": "http://${env:TRICKLE_TEST_MISSING}/s1",
			}, &conf)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("TRICKLE_TEST_MISSING"))
		})
	})
})

var _ = Describe("Encode", func() {
	It("round trips", func() {
		conf := defaultSegmentConf()
		conf.Level = zapcore.WarnLevel
		data, err := Encode(conf)
		Expect(err).NotTo(HaveOccurred())
		Expect(data["chunk"]).To(Equal("16KB"))
		Expect(data["duration"]).To(Equal("2s"))
		Expect(data["level"]).To(Equal("warn"))

		var decoded segmentConf
		Expect(Decode(data, &decoded)).To(Succeed())
		Expect(decoded).To(Equal(conf))
	})
})

var _ = DescribeTable("stream-url",
	func(s string, valid bool) {
		Expect(IsStreamURL(s)).To(Equal(valid))
	},
	Entry("http", "http://localhost:2939/s1", true),
	Entry("https without path", "https://relay.example.com", true),
	Entry("no scheme", "localhost:2939/s1", false),
	Entry("other scheme", "ftp://relay/s1", false),
	Entry("query", "http://relay/s1?token=x", false),
	Entry("relative", "/s1", false),
)

var _ = DescribeTable("seq-pattern",
	func(s string, valid bool) {
		Expect(IsSeqPattern(s)).To(Equal(valid))
	},
	Entry("default", "read-%d.ts", true),
	Entry("padded", "seg-%05d.ts", true),
	Entry("escaped percent", "100%%-%d.ts", true),
	Entry("no verb", "read.ts", false),
	Entry("string verb", "read-%s.ts", false),
	Entry("two verbs", "%d-%d.ts", false),
)

var _ = Describe("Validate", func() {
	It("checks endpoint", func() {
		Expect(IsEndpoint(":8080")).To(BeTrue())
		Expect(IsEndpoint("localhost:1234")).To(BeTrue())
		Expect(IsEndpoint("localhost")).To(BeFalse())
	})

	It("checks log format", func() {
		conf := zaputil.DefaultLoggerConfig()
		Expect(Validate(conf)).To(Succeed())
		conf.Format = "json"
		Expect(Validate(conf)).To(Succeed())
		conf.Format = "xml"
		err := Validate(conf)
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("log-format"))
	})

	It("checks bounds", func() {
		conf := defaultSegmentConf()
		conf.Chunk = 512 * datasize.B
		Expect(Validate(conf)).To(HaveOccurred())
		conf = defaultSegmentConf()
		conf.Duration = time.Second
		Expect(Validate(conf)).To(Succeed())
	})
})
