// Copyright (c) 2024 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

package coretest

import (
	"github.com/onsi/gomega"

	"github.com/yandex/trickle/core/config"
	"github.com/yandex/trickle/lib/testutil"
)

// DecodeAndValidate decodes YAML data into result, failing current spec on error.
func DecodeAndValidate(data string, result interface{}) {
	conf := testutil.ParseYAML(data)
	err := config.DecodeAndValidate(conf, result)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
}
