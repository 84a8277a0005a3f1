// Copyright (c) 2024 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

package cli

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/yandex/trickle/components/dump"
	"github.com/yandex/trickle/components/echo"
	"github.com/yandex/trickle/components/repeater"
	"github.com/yandex/trickle/core/config"
	"github.com/yandex/trickle/core/datasink"
	"github.com/yandex/trickle/core/datasource"
	"github.com/yandex/trickle/core/trickle"
)

func (a *app) echoCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "echo",
		Short: "Republish every segment of input stream to output stream",
		Args:  cobra.NoArgs,
	}
	flags := cmd.Flags()
	flags.String("in", "", "input stream URL")
	flags.String("out", "", "output stream URL")
	flags.Int("start-seq", 0, "first input segment, -1 is leading edge")
	keys := map[string]string{
		"in":        "subscribe.url",
		"out":       "publish.url",
		"start-seq": "subscribe.start-seq",
	}
	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		conf := echo.DefaultConfig()
		err := a.decode(cmd, "echo", keys, &conf)
		if err != nil {
			return err
		}
		sub := trickle.NewMetrics(a.newSet("subscriber"))
		pub := trickle.NewMetrics(a.newSet("publisher"))
		e, err := echo.New(conf, a.log, sub, pub)
		if err != nil {
			return err
		}
		return a.run(e.Run)
	}
	return cmd
}

var dumpFlagKeys = map[string]string{
	"url":       "subscribe.url",
	"start-seq": "subscribe.start-seq",
	"dir":       "segments.dir",
	"pattern":   "segments.pattern",
}

func (a *app) dumpCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Write every stream segment to own file",
		Args:  cobra.NoArgs,
	}
	addDumpFlags(cmd)
	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		conf := dump.DefaultConfig()
		err := a.decode(cmd, "dump", dumpFlagKeys, &conf)
		if err != nil {
			return err
		}
		return a.runDump(conf)
	}
	return cmd
}

func (a *app) pipeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pipe",
		Short: "Write stream segments to stdout one after another",
		Args:  cobra.NoArgs,
	}
	addDumpFlags(cmd)
	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		conf := dump.DefaultConfig()
		conf.Files = false
		err := a.decode(cmd, "pipe", dumpFlagKeys, &conf)
		if err != nil {
			return err
		}
		conf.Pipe = datasink.NewWriter(cmd.OutOrStdout())
		return a.runDump(conf)
	}
	return cmd
}

func addDumpFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String("url", "", "stream URL")
	flags.Int("start-seq", 0, "first segment, -1 is leading edge")
	flags.String("dir", "", "directory of segment files")
	flags.String("pattern", datasink.DefaultSegmentPattern, "segment file name format")
}

func (a *app) runDump(conf dump.Config) error {
	d, err := dump.New(a.fs, conf, a.log, trickle.NewMetrics(a.newSet("subscriber")))
	if err != nil {
		return err
	}
	return a.run(d.Run)
}

func (a *app) repeatCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repeat <image>",
		Short: "Publish image as stream of frames, one segment per frame",
		Long: "Publish image as stream of frames, one segment per frame.\n" +
			"Image is file path, or '-' for stdin.\n" +
			"Frames are published until interrupt, if both --count and --duration are zero.",
		Args: cobra.ExactArgs(1),
	}
	flags := cmd.Flags()
	flags.String("url", "", "stream URL")
	flags.String("subscribe", "", "stream URL to read in parallel")
	flags.Float64("fps", repeater.DefaultFPS, "frames per second")
	flags.Int64("count", repeater.DefaultFPS, "frames total")
	flags.Duration("duration", 0, "publish duration, used if count is zero")
	keys := map[string]string{
		"url":       "publish.url",
		"subscribe": "subscribe.url",
		"fps":       "frames.ops",
		"count":     "frames.count",
		"duration":  "frames.duration",
	}
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		conf := repeater.DefaultConfig()
		err := a.decode(cmd, "repeat", keys, &conf)
		if err != nil {
			return err
		}
		if conf.Subscribe.URL != "" {
			err = config.Validate(conf.Subscribe)
			if err != nil {
				return errors.WithMessage(err, "subscribe config invalid")
			}
		}
		if args[0] == "-" {
			conf.Image = datasource.NewReader(cmd.InOrStdin())
		} else {
			conf.Image = datasource.Parse(a.fs, args[0])
		}
		r := repeater.New(conf, a.log,
			trickle.NewMetrics(a.newSet("publisher")),
			trickle.NewMetrics(a.newSet("subscriber")),
		)
		return a.run(r.Run)
	}
	return cmd
}
