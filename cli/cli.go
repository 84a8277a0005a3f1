// Copyright (c) 2024 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

// Package cli is trickle command line: stream tools and stress commands
// configured by flags and optional config file.
package cli

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/yandex/trickle/core/config"
	"github.com/yandex/trickle/lib/monitoring"
	"github.com/yandex/trickle/lib/zaputil"
)

const Version = "0.3.0"

type appConfig struct {
	Log        zaputil.LoggerConfig `config:"log"`
	Monitoring monitoringConfig     `config:"monitoring"`
}

func defaultAppConfig() appConfig {
	return appConfig{
		Log:        zaputil.DefaultLoggerConfig(),
		Monitoring: defaultMonitoringConfig(),
	}
}

// app is state shared by all commands of one run.
type app struct {
	fs         afero.Fs
	v          *viper.Viper
	configFile string
	conf       appConfig
	log        *zap.Logger
	sets       []*monitoring.Set
}

func Run() {
	err := NewRootCommand(afero.NewOsFs()).Execute()
	if err != nil {
		os.Exit(1)
	}
}

func NewRootCommand(fs afero.Fs) *cobra.Command {
	return newApp(fs).rootCommand()
}

func newApp(fs afero.Fs) *app {
	return &app{fs: fs, v: viper.New(), conf: defaultAppConfig(), log: zap.NewNop()}
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "trickle",
		Short:         "Segment-oriented live stream transport over chunked HTTP",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}
	flags := root.PersistentFlags()
	flags.StringVarP(&a.configFile, "config", "c", "", "config file (yaml, json, toml)")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-format", "", "log format: console or json")
	flags.Bool("expvar", false, "start HTTP server with monitoring variables")
	flags.String("expvar-address", "", "monitoring HTTP server address")
	flags.Duration("report-interval", 0, "period of metrics logging")
	flags.String("cpuprofile", "", "write cpu profile to file")
	flags.String("memprofile", "", "write memory profile to this file")
	root.AddCommand(
		a.echoCommand(),
		a.dumpCommand(),
		a.pipeCommand(),
		a.repeatCommand(),
		a.stressCommand(),
		a.configCommand(),
	)
	return root
}

var rootFlagKeys = map[string]string{
	"log-level":       "log.level",
	"log-format":      "log.format",
	"expvar":          "monitoring.expvar",
	"expvar-address":  "monitoring.address",
	"report-interval": "monitoring.report-interval",
	"cpuprofile":      "monitoring.cpu-profile",
	"memprofile":      "monitoring.mem-profile",
}

func (a *app) init(cmd *cobra.Command) error {
	if a.configFile != "" {
		a.v.SetFs(a.fs)
		a.v.SetConfigFile(a.configFile)
		err := a.v.ReadInConfig()
		if err != nil {
			return errors.Wrapf(err, "config %q read failed", a.configFile)
		}
	}
	// Root persistent flags are parsed into flag set of executed command.
	err := bindFlags(a.v, cmd.Flags(), rootFlagKeys)
	if err != nil {
		return err
	}
	settings := a.v.AllSettings()
	err = config.DecodeAndValidate(pick(settings, "log", "monitoring"), &a.conf)
	if err != nil {
		return errors.WithMessage(err, "config decode failed")
	}
	log, err := zaputil.NewLogger(a.conf.Log)
	if err != nil {
		return err
	}
	a.log = log
	zap.ReplaceGlobals(log)
	zap.RedirectStdLog(log)
	log.Debug("Trickle started", zap.String("version", Version), zap.String("config", a.v.ConfigFileUsed()))
	return nil
}

// decode fills conf, that should be prefilled with defaults, from config section and passed command flags.
func (a *app) decode(cmd *cobra.Command, section string, flagKeys map[string]string, conf interface{}) error {
	keys := make(map[string]string, len(flagKeys))
	for name, key := range flagKeys {
		keys[name] = section + "." + key
	}
	err := bindFlags(a.v, cmd.Flags(), keys)
	if err != nil {
		return err
	}
	var sub interface{} = map[string]interface{}{}
	if s := lookup(a.v.AllSettings(), section); s != nil {
		sub = s
	}
	err = config.DecodeAndValidate(sub, conf)
	if err != nil {
		return errors.WithMessagef(err, "%s config decode failed", section)
	}
	return nil
}

// run calls fn with context canceled on interrupt. Monitoring is running meanwhile.
func (a *app) run(fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	defer close(done)
	go handleSignals(done, a.log, cancel)

	stopMonitoring, err := startMonitoring(a.log, a.conf.Monitoring)
	if err != nil {
		return err
	}
	defer stopMonitoring()
	reportCtx, stopReport := context.WithCancel(context.Background())
	reported := make(chan struct{})
	go func() {
		defer close(reported)
		monitoring.Report(reportCtx, a.log, a.conf.Monitoring.ReportInterval, a.sets...)
	}()
	defer func() {
		stopReport()
		<-reported
	}()

	err = fn(ctx)
	if err != nil {
		a.log.Error("Run failed", zap.Error(err))
		return err
	}
	a.log.Info("Run successfully finished")
	return nil
}

// newSet returns metrics set, that is published to expvar if it is enabled.
func (a *app) newSet(prefix string) *monitoring.Set {
	var s *monitoring.Set
	if a.conf.Monitoring.Expvar {
		s = monitoring.NewSet(prefix)
	} else {
		s = monitoring.NewLocalSet(prefix)
	}
	a.sets = append(a.sets, s)
	return s
}

// bindFlags sets config keys of flags passed explicitly, so flag defaults don't
// override config file values.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) (err error) {
	flags.Visit(func(f *pflag.Flag) {
		key, ok := keys[f.Name]
		if !ok || err != nil {
			return
		}
		var val interface{}
		switch f.Value.Type() {
		case "bool":
			val, err = flags.GetBool(f.Name)
		case "int":
			val, err = flags.GetInt(f.Name)
		case "int64":
			val, err = flags.GetInt64(f.Name)
		case "float64":
			val, err = flags.GetFloat64(f.Name)
		case "duration":
			val, err = flags.GetDuration(f.Name)
		default:
			val = f.Value.String()
		}
		v.Set(key, val)
	})
	return errors.WithStack(err)
}

// lookup returns value of dot separated key in nested settings.
func lookup(settings map[string]interface{}, key string) interface{} {
	var cur interface{} = settings
	for _, part := range strings.Split(key, ".") {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil
		}
		cur, ok = m[part]
		if !ok {
			return nil
		}
	}
	return cur
}

func pick(settings map[string]interface{}, keys ...string) map[string]interface{} {
	out := map[string]interface{}{}
	for _, k := range keys {
		if val, ok := settings[k]; ok {
			out[k] = val
		}
	}
	return out
}

// handleSignals interrupts run on signal, until done is closed.
func handleSignals(done <-chan struct{}, log *zap.Logger, interrupt func()) {
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)
	select {
	case <-done:
		return
	case sig := <-sigs:
		switch sig {
		case syscall.SIGINT:
			const interruptTimeout = 5 * time.Second
			log.Info("SIGINT received. Trying to stop gracefully.", zap.Duration("timeout", interruptTimeout))
			interrupt()
			select {
			case <-done:
			case <-time.After(interruptTimeout):
				log.Fatal("Interrupt timeout exceeded")
			case sig := <-sigs:
				log.Fatal("Another signal received. Quiting.", zap.Stringer("signal", sig))
			}
		case syscall.SIGTERM:
			log.Info("SIGTERM received. Quiting.")
			interrupt()
		default:
			log.Info("Unexpected signal received. Quiting.", zap.Stringer("signal", sig))
			interrupt()
		}
	}
}
