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

// Package backoff computes the two-tier jittered retry delay the scheduler
// applies to retryable reconcile errors, layered on top of
// controller-runtime's own requeue mechanism.
package backoff

import (
	"time"

	cenkaltibackoff "github.com/cenkalti/backoff/v4"

	"github.com/nixops-sh/nixops-operator/internal/config"
	nixopserrors "github.com/nixops-sh/nixops-operator/internal/errors"
)

// Tiers holds the two independently configured exponential-backoff
// policies: Short for transient network/IO errors, Long for sustained
// unreachability.
type Tiers struct {
	Short *cenkaltibackoff.ExponentialBackOff
	Long  *cenkaltibackoff.ExponentialBackOff
}

// New builds the two backoff policies from operator configuration. Short
// uses cfg's tunables directly; Long stretches the same cap by an order of
// magnitude, since an unreachable host is expected to stay down longer
// than a single flaky network call.
func New(cfg config.Config) *Tiers {
	short := cenkaltibackoff.NewExponentialBackOff()
	short.InitialInterval = cfg.RetryInitialDelay
	short.MaxInterval = cfg.RetryMaxDelay
	short.Multiplier = cfg.RetryExponentialBase
	short.MaxElapsedTime = 0

	long := cenkaltibackoff.NewExponentialBackOff()
	long.InitialInterval = cfg.RetryInitialDelay * 5
	long.MaxInterval = cfg.RetryMaxDelay * 10
	long.Multiplier = cfg.RetryExponentialBase
	long.MaxElapsedTime = 0

	return &Tiers{Short: short, Long: long}
}

// Delay returns the next jittered delay for the attempt'th retry (1-based)
// of a given class, resetting and re-walking the policy each call; the
// policy keeps no per-resource state, and attempt is supplied by the caller
// from its own retry bookkeeping.
func (t *Tiers) Delay(class nixopserrors.BackoffClass, attempt int) time.Duration {
	policy := t.Short
	if class == nixopserrors.BackoffLong {
		policy = t.Long
	}
	policy.Reset()

	var d time.Duration
	for i := 0; i < attempt; i++ {
		d = policy.NextBackOff()
	}
	if d <= 0 {
		d = policy.MaxInterval
	}
	return d
}
