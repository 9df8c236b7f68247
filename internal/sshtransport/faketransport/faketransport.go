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

// Package faketransport is an in-memory sshtransport.Transport double used
// by controller tests so reconcile loops can be exercised without a real
// network or remote host.
package faketransport

import (
	"context"
	"fmt"
	"sync"

	nixopserrors "github.com/nixops-sh/nixops-operator/internal/errors"
	"github.com/nixops-sh/nixops-operator/internal/sshtransport"
)

// ExecHandler lets a test script respond to a specific command.
type ExecHandler func(ctx context.Context, target sshtransport.Target, cmd string) (sshtransport.Result, error)

// Transport is a scriptable fake implementing sshtransport.Transport.
type Transport struct {
	mu sync.Mutex

	// Reachable, keyed by hostname, controls Probe's outcome. Hosts absent
	// from the map are treated as reachable.
	Reachable map[string]bool

	// HostKeyMismatch, keyed by hostname, makes Probe and Exec fail with
	// KindHostKeyMismatch.
	HostKeyMismatch map[string]bool

	// ExecHandler, if set, answers every Exec/ExecStreaming call. Tests
	// that don't care about command content can leave it nil, in which
	// case calls succeed with an empty Result.
	ExecHandler ExecHandler

	// Files records every WriteFile call, keyed by "host:path".
	Files map[string][]byte

	// ExecLog records every command executed, for assertions that no
	// session beyond the reachability probe occurred (P3).
	ExecLog []string
}

// New constructs an empty fake transport.
func New() *Transport {
	return &Transport{
		Reachable:       make(map[string]bool),
		HostKeyMismatch: make(map[string]bool),
		Files:           make(map[string][]byte),
	}
}

func (t *Transport) Probe(ctx context.Context, target sshtransport.Target) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.HostKeyMismatch[target.Hostname] {
		return nixopserrors.New(nixopserrors.KindHostKeyMismatch, "fake host key mismatch for "+target.Hostname)
	}
	if reachable, known := t.Reachable[target.Hostname]; known && !reachable {
		return nixopserrors.New(nixopserrors.KindUnreachable, "fake unreachable host "+target.Hostname)
	}
	return nil
}

func (t *Transport) Exec(ctx context.Context, target sshtransport.Target, cmd string) (sshtransport.Result, error) {
	return t.exec(ctx, target, cmd)
}

func (t *Transport) ExecStreaming(ctx context.Context, target sshtransport.Target, cmd string, onOutput sshtransport.OutputFunc) (sshtransport.Result, error) {
	result, err := t.exec(ctx, target, cmd)
	if onOutput != nil && result.Stdout != "" {
		onOutput(result.Stdout, false)
	}
	return result, err
}

func (t *Transport) exec(ctx context.Context, target sshtransport.Target, cmd string) (sshtransport.Result, error) {
	if err := t.Probe(ctx, target); err != nil {
		return sshtransport.Result{}, err
	}

	t.mu.Lock()
	t.ExecLog = append(t.ExecLog, cmd)
	handler := t.ExecHandler
	t.mu.Unlock()

	if handler != nil {
		return handler(ctx, target, cmd)
	}
	return sshtransport.Result{}, nil
}

func (t *Transport) WriteFile(ctx context.Context, target sshtransport.Target, path string, content []byte, mode string, asSudo bool) error {
	if err := t.Probe(ctx, target); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Files[fmt.Sprintf("%s:%s", target.Hostname, path)] = append([]byte(nil), content...)
	return nil
}
