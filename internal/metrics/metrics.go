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

// Package metrics holds the Prometheus collectors of the provisioning engine.
// Collectors live on a private registry; nothing is registered globally.
// All methods are safe on a nil *Metrics so callers can run without metrics.
package metrics

import (
	"time"

	"github.com/eminwux/kukebox/internal/modelhub"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "kukebox"

// Provide outcomes.
const (
	OutcomeReused  = "reused"
	OutcomeStarted = "started"
	OutcomeFailed  = "failed"
)

// Exec statuses.
const (
	ExecOK      = "ok"
	ExecNonZero = "nonzero"
	ExecError   = "error"
)

type Metrics struct {
	Registry *prometheus.Registry

	ProvideTotal    *prometheus.CounterVec
	ProvideDuration *prometheus.HistogramVec

	ExecTotal    *prometheus.CounterVec
	ExecDuration *prometheus.HistogramVec
	StreamRaw    prometheus.Counter

	OrphanedTotal prometheus.Counter
	SweepRuns     prometheus.Counter
	SweepReclaims *prometheus.CounterVec

	Containers *prometheus.GaugeVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,

		ProvideTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provide",
			Name:      "requests_total",
			Help:      "Total provide calls by outcome.",
		}, []string{"template", "outcome"}),

		ProvideDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "provide",
			Name:      "duration_seconds",
			Help:      "Provide call duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 120},
		}, []string{"outcome"}),

		ExecTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "exec",
			Name:      "commands_total",
			Help:      "Total commands executed inside sandboxes.",
		}, []string{"runtime", "status"}),

		ExecDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "exec",
			Name:      "duration_seconds",
			Help:      "Command execution duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"runtime"}),

		StreamRaw: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "exec",
			Name:      "raw_streams_total",
			Help:      "Exec sessions whose output was not multiplexed.",
		}),

		OrphanedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provide",
			Name:      "orphaned_total",
			Help:      "Containers detached from their identity after a platform mismatch.",
		}),

		SweepRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "runs_total",
			Help:      "Total TTL sweeps.",
		}),

		SweepReclaims: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "reclaims_total",
			Help:      "Expired containers handled by the sweep, by result.",
		}, []string{"result"}),

		Containers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "containers",
			Help:      "Registered containers by role.",
		}, []string{"role"}),
	}

	reg.MustRegister(
		m.ProvideTotal,
		m.ProvideDuration,
		m.ExecTotal,
		m.ExecDuration,
		m.StreamRaw,
		m.OrphanedTotal,
		m.SweepRuns,
		m.SweepReclaims,
		m.Containers,
	)
	return m
}

func (m *Metrics) ObserveProvide(template, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.ProvideTotal.WithLabelValues(template, outcome).Inc()
	m.ProvideDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// ObserveExec records one exec. err is the runtime error, if any.
func (m *Metrics) ObserveExec(runtime string, res modelhub.ExecResult, err error, d time.Duration) {
	if m == nil {
		return
	}
	status := ExecOK
	switch {
	case err != nil:
		status = ExecError
	case res.ExitCode != 0:
		status = ExecNonZero
	}
	m.ExecTotal.WithLabelValues(runtime, status).Inc()
	m.ExecDuration.WithLabelValues(runtime).Observe(d.Seconds())
	if err == nil && res.Raw {
		m.StreamRaw.Inc()
	}
}

func (m *Metrics) IncOrphaned() {
	if m == nil {
		return
	}
	m.OrphanedTotal.Inc()
}

func (m *Metrics) ObserveSweep(reclaimed, failed int) {
	if m == nil {
		return
	}
	m.SweepRuns.Inc()
	m.SweepReclaims.WithLabelValues("ok").Add(float64(reclaimed))
	m.SweepReclaims.WithLabelValues("error").Add(float64(failed))
}

// SetContainers replaces the container gauges with counts taken from recs.
func (m *Metrics) SetContainers(recs []modelhub.ContainerRecord) {
	if m == nil {
		return
	}
	counts := map[modelhub.Role]int{
		modelhub.RoleWorkspace: 0,
		modelhub.RoleDinD:      0,
	}
	for _, rec := range recs {
		counts[rec.Role]++
	}
	for role, n := range counts {
		m.Containers.WithLabelValues(string(role)).Set(float64(n))
	}
}
