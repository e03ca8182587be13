// Copyright 2025 Emiliano Spinella (eminwux)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

package controller

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
)

const (
	DefaultServeAddr       = ":9464"
	DefaultRefreshSchedule = "@every 30s"

	shutdownTimeout = 10 * time.Second
)

type ServeOptions struct {
	Addr            string
	SweepSchedule   string
	RefreshSchedule string
}

// Handler serves /metrics from the controller's registry and a /healthz probe.
func (b *Exec) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(b.metrics.Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}

// Serve schedules sweeps and health refreshes and serves metrics until the controller
// context is cancelled.
func (b *Exec) Serve(opts ServeOptions) error {
	if opts.Addr == "" {
		opts.Addr = DefaultServeAddr
	}
	if opts.RefreshSchedule == "" {
		opts.RefreshSchedule = DefaultRefreshSchedule
	}

	stopSweeps, err := b.sweeper.Start(b.ctx, opts.SweepSchedule)
	if err != nil {
		return err
	}
	defer stopSweeps()

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err = c.AddFunc(opts.RefreshSchedule, b.scheduledRefresh); err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", opts.RefreshSchedule, err)
	}
	if b.opts.EventRetention > 0 {
		if _, err = c.AddFunc("@hourly", b.pruneEvents); err != nil {
			return fmt.Errorf("failed to schedule event pruning: %w", err)
		}
	}
	c.Start()
	defer func() { <-c.Stop().Done() }()

	srv := &http.Server{
		Addr:              opts.Addr,
		Handler:           b.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return b.ctx },
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	b.logger.InfoContext(b.ctx, "serving metrics", "addr", opts.Addr, "runtime", b.runtime.Name())

	select {
	case err = <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	case <-b.ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(b.ctx), shutdownTimeout)
	defer cancel()
	b.logger.InfoContext(b.ctx, "metrics server stopping")
	if err = srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("metrics server shutdown: %w", err)
	}
	return nil
}

func (b *Exec) scheduledRefresh() {
	result, err := b.Refresh()
	if err != nil {
		b.logger.DebugContext(b.ctx, "refresh interrupted", "err", err)
		return
	}
	if len(result.Updated) > 0 || len(result.Forgotten) > 0 || len(result.Errors) > 0 {
		b.logger.InfoContext(b.ctx, "refreshed containers",
			"updated", len(result.Updated), "forgotten", len(result.Forgotten), "errors", len(result.Errors))
	}
}
