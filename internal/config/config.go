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

// Package config loads operator tunables from the environment, per the
// "ENVPREFIX_FIELD" convention of github.com/kelseyhightower/envconfig.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the prefix envconfig expects on every recognized variable,
// e.g. NIXOPS_WORKSPACE_BASE_PATH.
const EnvPrefix = "nixops"

// Config holds every operator-wide tunable. All fields are sourced from the
// environment; none are read directly elsewhere in the codebase.
type Config struct {
	// WorkspaceBasePath is the root directory under which per-reconcile
	// scratch git checkouts are created. Defaults to a memory-backed path.
	WorkspaceBasePath string `envconfig:"workspace_base_path" default:"/dev/shm/nixops-operator"`

	// KnownHostsPath is the file the known-hosts manager persists pinned
	// host keys to.
	KnownHostsPath string `envconfig:"known_hosts_path" default:"/var/lib/nixops-operator/known_hosts"`

	// DiscoveryInterval bounds how often Machine reachability and facts are
	// refreshed absent any triggering event.
	DiscoveryInterval time.Duration `envconfig:"discovery_interval" default:"5m"`

	// ReconcileInterval is the default NixosConfiguration polling cadence
	// when spec.pollingInterval is unset.
	ReconcileInterval time.Duration `envconfig:"reconcile_interval" default:"60s"`

	// ApplyTimeout bounds a single remote applier invocation.
	ApplyTimeout time.Duration `envconfig:"apply_timeout" default:"1h"`

	// RetryMaxAttempts caps retries of a retryable error before it is
	// surfaced as terminal.
	RetryMaxAttempts int `envconfig:"retry_max_attempts" default:"8"`

	// RetryInitialDelay is the first backoff interval.
	RetryInitialDelay time.Duration `envconfig:"retry_initial_delay" default:"2s"`

	// RetryMaxDelay caps the backoff interval.
	RetryMaxDelay time.Duration `envconfig:"retry_max_delay" default:"5m"`

	// RetryExponentialBase multiplies the delay on each attempt.
	RetryExponentialBase float64 `envconfig:"retry_exponential_base" default:"2.0"`

	// MetricsPort serves Prometheus-format metrics.
	MetricsPort int `envconfig:"metrics_port" default:"8080"`

	// HealthPort serves liveness/readiness/startup probes.
	HealthPort int `envconfig:"health_port" default:"8081"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `envconfig:"log_level" default:"info"`

	// MaxConcurrentReconciles caps in-flight NixosConfiguration
	// reconciliations per the concurrency model.
	MaxConcurrentReconciles int `envconfig:"max_concurrent_reconciles" default:"4"`

	// EventTailBytes bounds how much captured applier output is attached to
	// a terminal-error event body.
	EventTailBytes int `envconfig:"event_tail_bytes" default:"4096"`

	// LeaderElect enables controller-runtime leader election for
	// multi-replica deployments.
	LeaderElect bool `envconfig:"leader_elect" default:"false"`
}

// Load reads Config from the environment, applying defaults for anything
// unset.
func Load() (Config, error) {
	var c Config
	if err := envconfig.Process(EnvPrefix, &c); err != nil {
		return Config{}, fmt.Errorf("loading configuration: %w", err)
	}
	return c, nil
}
