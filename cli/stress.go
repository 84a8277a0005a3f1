// Copyright (c) 2024 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/yandex/trickle/components/stress"
	"github.com/yandex/trickle/core"
	"github.com/yandex/trickle/core/aggregator"
	"github.com/yandex/trickle/core/datasink"
	"github.com/yandex/trickle/core/datasource"
	"github.com/yandex/trickle/core/trickle"
)

func (a *app) stressCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stress",
		Short: "Load relay with many streams and measure segment latency",
	}
	cmd.AddCommand(
		a.stressPublishCommand(),
		a.stressSubscribeCommand(),
		a.stressCompareCommand(),
	)
	return cmd
}

func addCommonStressFlags(flags *pflag.FlagSet, keys map[string]string) {
	flags.String("url", "", "relay base URL")
	flags.String("stream", "", "stream name prefix, stream index is appended")
	flags.Int("count", 0, "number of streams")
	flags.Int("shared-clients", 0, "number of HTTP clients shared by streams, 0 is client per stream")
	flags.StringP("samples", "o", "-", "samples output: file path, '-' for stdout, or 'none'")
	for _, name := range []string{"url", "stream", "count", "shared-clients"} {
		keys[name] = name
	}
}

func (a *app) samplesAggregator(cmd *cobra.Command) (core.Aggregator, error) {
	out, err := cmd.Flags().GetString("samples")
	if err != nil {
		return nil, err
	}
	conf := aggregator.DefaultJSONLinesAggregatorConfig()
	switch out {
	case "none":
		return aggregator.NewDiscard(), nil
	case "-":
		conf.Sink = datasink.NewWriter(cmd.OutOrStdout())
	default:
		conf.Sink = datasink.Parse(a.fs, out)
	}
	return aggregator.NewJSONLinesAggregator(conf), nil
}

func (a *app) stressPublishCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish random payload to many streams, reporting SHA-256 of every segment",
		Args:  cobra.NoArgs,
	}
	keys := map[string]string{
		"segments":         "segments",
		"segment-size":     "segment-size",
		"segment-duration": "segment-duration",
		"create":           "create",
	}
	flags := cmd.Flags()
	addCommonStressFlags(flags, keys)
	flags.Int("segments", stress.DefaultSegments, "segments per stream")
	flags.String("segment-size", stress.DefaultSegmentSize.String(), "segment payload size")
	flags.Duration("segment-duration", stress.DefaultSegmentDuration, "time segment chunks are spread over")
	flags.Bool("create", false, "announce streams before publish")
	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		conf := stress.DefaultPublishConfig()
		err := a.decode(cmd, "stress.publish", keys, &conf)
		if err != nil {
			return err
		}
		agg, err := a.samplesAggregator(cmd)
		if err != nil {
			return err
		}
		p := stress.NewPublishers(conf, a.log, trickle.NewMetrics(a.newSet("publisher")), agg)
		return a.run(p.Run)
	}
	return cmd
}

func (a *app) stressSubscribeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subscribe",
		Short: "Read many streams, reporting SHA-256 of every segment",
		Args:  cobra.NoArgs,
	}
	keys := map[string]string{
		"start-seq": "start-seq",
	}
	flags := cmd.Flags()
	addCommonStressFlags(flags, keys)
	flags.Int("start-seq", trickle.LatestSeq, "first segment, -1 is leading edge")
	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		conf := stress.DefaultSubscribeConfig()
		err := a.decode(cmd, "stress.subscribe", keys, &conf)
		if err != nil {
			return err
		}
		agg, err := a.samplesAggregator(cmd)
		if err != nil {
			return err
		}
		s := stress.NewSubscribers(conf, a.log, trickle.NewMetrics(a.newSet("subscriber")), agg)
		return a.run(s.Run)
	}
	return cmd
}

func (a *app) stressCompareCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "compare <subscriber samples> <publisher samples>",
		Short: "Compare samples of stress subscribe and publish: missing segments, SHA mismatches, latency",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := stress.CompareSources(
				datasource.Parse(a.fs, args[0]),
				datasource.Parse(a.fs, args[1]),
			)
			if err != nil {
				return err
			}
			return report.Print(cmd.OutOrStdout())
		},
	}
}
