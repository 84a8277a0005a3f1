// Copyright (c) 2024 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

package config_test

import (
	"time"

	"github.com/c2h5oh/datasize"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/yandex/trickle/core/coretest"
	"github.com/yandex/trickle/core/trickle"
)

var _ = Describe("YAML", func() {
	It("decodes subscriber", func() {
		conf := trickle.DefaultSubscriberConfig()
		coretest.DecodeAndValidate(`
url: http://relay:2939/live/cam
start-seq: 3
chunk-size: 64KB
client:
  dial:
    timeout: 3s
`, &conf)
		Expect(conf.URL).To(Equal("http://relay:2939/live/cam"))
		Expect(conf.StartSeq).To(Equal(3))
		Expect(conf.ChunkSize).To(Equal(64 * datasize.KB))
		Expect(conf.Client.Dialer.Timeout).To(Equal(3 * time.Second))
		Expect(conf.MaxPreconnectErrors).To(Equal(trickle.DefaultMaxPreconnectErrors))
	})

	It("decodes publisher", func() {
		conf := trickle.DefaultPublisherConfig()
		coretest.DecodeAndValidate(`
url: https://relay/live/cam
mime-type: image/jpeg
chunk-queue-size: 0
`, &conf)
		Expect(conf.MimeType).To(Equal("image/jpeg"))
		Expect(conf.ChunkQueueSize).To(BeZero())
	})
})
