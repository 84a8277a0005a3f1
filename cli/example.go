// Copyright (c) 2024 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

package cli

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"github.com/yandex/trickle/components/dump"
	"github.com/yandex/trickle/components/echo"
	"github.com/yandex/trickle/components/repeater"
	"github.com/yandex/trickle/components/stress"
	"github.com/yandex/trickle/core/config"
)

func (a *app) configCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Config file tools",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "example",
		Short: "Print config file with default values of all commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := exampleConfig()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return errors.WithStack(err)
		},
	})
	return cmd
}

func exampleConfig() ([]byte, error) {
	pipe := dump.DefaultConfig()
	pipe.Files = false
	sections := []struct {
		path  []string
		value interface{}
	}{
		{[]string{"log"}, defaultAppConfig().Log},
		{[]string{"monitoring"}, defaultAppConfig().Monitoring},
		{[]string{"echo"}, echo.DefaultConfig()},
		{[]string{"dump"}, dump.DefaultConfig()},
		{[]string{"pipe"}, pipe},
		{[]string{"repeat"}, repeater.DefaultConfig()},
		{[]string{"stress", "publish"}, stress.DefaultPublishConfig()},
		{[]string{"stress", "subscribe"}, stress.DefaultSubscribeConfig()},
	}
	example := map[string]interface{}{}
	for _, s := range sections {
		encoded, err := config.Encode(s.value)
		if err != nil {
			return nil, errors.WithMessagef(err, "%v encode failed", s.path)
		}
		parent := example
		for _, key := range s.path[:len(s.path)-1] {
			next, ok := parent[key].(map[string]interface{})
			if !ok {
				next = map[string]interface{}{}
				parent[key] = next
			}
			parent = next
		}
		parent[s.path[len(s.path)-1]] = encoded
	}
	out, err := yaml.Marshal(example)
	return out, errors.WithStack(err)
}
