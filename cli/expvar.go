// Copyright (c) 2024 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

package cli

import (
	"context"
	"net/http"
	"os"
	"runtime/pprof"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type monitoringConfig struct {
	// Expvar starts HTTP server with monitoring variables on /debug/vars.
	Expvar         bool          `config:"expvar"`
	Address        string        `config:"address" validate:"endpoint"`
	ReportInterval time.Duration `config:"report-interval" validate:"min-time=100ms"`
	CPUProfile     string        `config:"cpu-profile"`
	MemProfile     string        `config:"mem-profile"`
}

func defaultMonitoringConfig() monitoringConfig {
	return monitoringConfig{
		Address:        "localhost:1234",
		ReportInterval: 10 * time.Second,
	}
}

func startMonitoring(log *zap.Logger, conf monitoringConfig) (stop func(), err error) {
	var stops []func()
	stop = func() {
		for i := len(stops) - 1; i >= 0; i-- {
			stops[i]()
		}
	}
	if conf.Expvar {
		server := &http.Server{Addr: conf.Address, Handler: http.DefaultServeMux}
		go func() {
			err := server.ListenAndServe()
			if err != http.ErrServerClosed {
				log.Error("Monitoring server failed", zap.Error(err))
			}
		}()
		log.Info("Monitoring server started", zap.String("address", conf.Address))
		stops = append(stops, func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = server.Shutdown(ctx)
		})
	}
	if conf.CPUProfile != "" {
		f, err := os.Create(conf.CPUProfile)
		if err != nil {
			stop()
			return nil, errors.Wrap(err, "CPU profile file create fail")
		}
		err = pprof.StartCPUProfile(f)
		if err != nil {
			f.Close()
			stop()
			return nil, errors.Wrap(err, "CPU profile start fail")
		}
		stops = append(stops, func() {
			pprof.StopCPUProfile()
			f.Close()
		})
	}
	if conf.MemProfile != "" {
		f, err := os.Create(conf.MemProfile)
		if err != nil {
			stop()
			return nil, errors.Wrap(err, "memory profile file create fail")
		}
		stops = append(stops, func() {
			err := pprof.WriteHeapProfile(f)
			if err != nil {
				log.Error("Memory profile write failed", zap.Error(err))
			}
			f.Close()
		})
	}
	return stop, nil
}
