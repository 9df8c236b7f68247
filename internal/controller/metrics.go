/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package controller

import (
	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

// Metrics holds every Prometheus collector the reconcilers report to,
// registered once with controller-runtime's global registry.
type Metrics struct {
	ReconcilesTotal       *prometheus.CounterVec
	ApplyTotal            *prometheus.CounterVec
	SSHFailuresTotal      *prometheus.CounterVec
	ReconcileDuration     *prometheus.HistogramVec
	ApplyDuration         *prometheus.HistogramVec
	ManagedMachines       prometheus.Gauge
	MachinesReachable     prometheus.Gauge
}

// NewMetrics constructs and registers the operator's metric collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		ReconcilesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reconciles_total",
			Help: "Total NixosConfiguration reconcile ticks, by result.",
		}, []string{"result"}),
		ApplyTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "apply_total",
			Help: "Total remote applier invocations, by mode and result.",
		}, []string{"mode", "result"}),
		SSHFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ssh_failures_total",
			Help: "Total SSH transport failures, by kind.",
		}, []string{"kind"}),
		ReconcileDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "reconcile_duration_seconds",
			Help:    "Duration of a NixosConfiguration reconcile tick.",
			Buckets: prometheus.DefBuckets,
		}, []string{"result"}),
		ApplyDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "apply_duration_seconds",
			Help:    "Duration of a remote applier invocation.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"mode"}),
		ManagedMachines: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "managed_machines",
			Help: "Number of Machine objects currently known to the operator.",
		}),
		MachinesReachable: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "machines_reachable",
			Help: "Number of Machine objects currently reporting reachable=true.",
		}),
	}

	metrics.Registry.MustRegister(
		m.ReconcilesTotal, m.ApplyTotal, m.SSHFailuresTotal,
		m.ReconcileDuration, m.ApplyDuration,
		m.ManagedMachines, m.MachinesReachable,
	)
	return m
}
