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

// Package applier drives the system-config toolchain: building a flake
// checkout and activating it on a remote host, in either bootstrap
// (destructive reimage) or switch (in-place activation) mode. Both tools
// are long-running local subprocesses that manage their own SSH hop to the
// target, in the idiom of nixos-rebuild --target-host and nixos-anywhere.
package applier

import (
	"bufio"
	"container/ring"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	nixopserrors "github.com/nixops-sh/nixops-operator/internal/errors"
	"github.com/nixops-sh/nixops-operator/internal/vault"
)

// Mode selects which tool invocation the applier performs.
type Mode string

const (
	// ModeSwitch activates a new generation on an already-provisioned host.
	ModeSwitch Mode = "switch"
	// ModeBootstrap fully reimages the host; destructive.
	ModeBootstrap Mode = "bootstrap"
)

const (
	switchTool    = "nixos-rebuild"
	bootstrapTool = "nixos-anywhere"

	// ringLines bounds how many of the most recent output lines are
	// retained for surfacing in status/events; the full stream is still
	// forwarded to onOutput for logging.
	ringLines = 200
)

// Target describes the remote host an apply is directed at.
type Target struct {
	Hostname string
	User     string
	Port     int32
}

// Input is everything one Apply invocation needs.
type Input struct {
	Mode Mode

	// WorkspaceDir is the resolved, file-injected git checkout.
	WorkspaceDir string
	// ConfigurationSubdir is the subdirectory of WorkspaceDir containing
	// the flake, or "" for the checkout root.
	ConfigurationSubdir string
	// Flake is the attribute path within the flake, e.g.
	// "nixosConfigurations.host".
	Flake string

	Target Target

	// SSHKey is materialized to a scratch file for the subprocess, which
	// cannot accept key material over stdin.
	SSHKey     *vault.Handle
	ScratchDir string

	// KnownHostsPath points the subprocess's own SSH hop at the same
	// trust-on-first-use known_hosts file sshtransport.KnownHosts
	// maintains, so the nixos-rebuild/nixos-anywhere connection is bound
	// by the same pinned host key as every other connection to the
	// Machine rather than trusting on every apply.
	KnownHostsPath string

	Timeout time.Duration

	// OnOutput, if set, receives every streamed output line for logging.
	OnOutput func(line string, isStderr bool)
}

// Result is the outcome of one apply invocation.
type Result struct {
	ExitCode int
	// Tail holds up to ringLines of the most recent combined output, for
	// attaching to a terminal-error event body.
	Tail string
}

// runner abstracts local subprocess execution so tests can substitute a
// scripted double without spawning real processes.
type runner interface {
	Run(ctx context.Context, name string, args []string, onOutput func(line string, isStderr bool)) (int, error)
}

// Applier drives the configured runner through bootstrap/switch
// invocations.
type Applier struct {
	run runner
}

// New constructs a production Applier backed by os/exec.
func New() *Applier {
	return &Applier{run: execRunner{}}
}

// NewWithRunner constructs an Applier over a custom runner, for tests.
func NewWithRunner(r runner) *Applier {
	return &Applier{run: r}
}

// Apply builds and activates in.Flake against in.Target using the tool
// selected by in.Mode, bounded by in.Timeout.
func (a *Applier) Apply(ctx context.Context, in Input) (Result, error) {
	if in.Timeout <= 0 {
		in.Timeout = time.Hour
	}
	ctx, cancel := context.WithTimeout(ctx, in.Timeout)
	defer cancel()

	keyPath, err := in.SSHKey.MaterializeKeyFile(in.ScratchDir)
	if err != nil {
		return Result{}, err
	}
	defer os.Remove(keyPath)

	flakeDir := in.WorkspaceDir
	if in.ConfigurationSubdir != "" {
		flakeDir = filepath.Join(in.WorkspaceDir, in.ConfigurationSubdir)
	}
	flakeRef := fmt.Sprintf("%s#%s", flakeDir, in.Flake)

	tool, args := commandFor(in.Mode, flakeRef, keyPath, in.KnownHostsPath, in.Target)

	buf := newTailBuffer(ringLines)
	onOutput := func(line string, isStderr bool) {
		buf.add(line)
		if in.OnOutput != nil {
			in.OnOutput(line, isStderr)
		}
	}

	exitCode, err := a.run.Run(ctx, tool, args, onOutput)
	if err != nil {
		if ctx.Err() != nil {
			return Result{Tail: buf.String()}, nixopserrors.Wrap(nixopserrors.KindTimeout, "apply timed out", ctx.Err())
		}
		return Result{Tail: buf.String()}, nixopserrors.Wrap(nixopserrors.KindNetworkError, "invoking applier", err)
	}
	if exitCode != 0 {
		return Result{ExitCode: exitCode, Tail: buf.String()},
			nixopserrors.WrapApplyFailed("apply exited non-zero", exitCode, fmt.Errorf("tail:\n%s", buf.String()))
	}
	return Result{ExitCode: 0, Tail: buf.String()}, nil
}

func commandFor(mode Mode, flakeRef, keyPath, knownHostsPath string, target Target) (string, []string) {
	port := target.Port
	if port == 0 {
		port = 22
	}
	targetHost := fmt.Sprintf("%s@%s", target.User, target.Hostname)
	// StrictHostKeyChecking=yes against the same known_hosts file C3
	// pins: the apply connection must honor a host key already rejected
	// or accepted by the probe/fact-collection path, never silently
	// trust a new key of its own accord.
	sshOpt := fmt.Sprintf("-p %d -i %s -o UserKnownHostsFile=%s -o StrictHostKeyChecking=yes", port, keyPath, knownHostsPath)

	switch mode {
	case ModeBootstrap:
		return bootstrapTool, []string{
			"--flake", flakeRef,
			"--target-host", targetHost,
			"--ssh-option", sshOpt,
		}
	default:
		return switchTool, []string{
			"switch",
			"--flake", flakeRef,
			"--target-host", targetHost,
			"--build-host", "localhost",
			"--use-remote-sudo",
			"--option", "ssh-option", sshOpt,
		}
	}
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args []string, onOutput func(line string, isStderr bool)) (int, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return -1, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return -1, err
	}

	if err := cmd.Start(); err != nil {
		return -1, err
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go streamPipe(stdout, false, onOutput, &wg)
	go streamPipe(stderr, true, onOutput, &wg)
	wg.Wait()

	err = cmd.Wait()
	if err == nil {
		return 0, nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode(), nil
	}
	return -1, err
}

func streamPipe(r io.Reader, isStderr bool, onOutput func(line string, isStderr bool), wg *sync.WaitGroup) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if onOutput != nil {
			onOutput(scanner.Text(), isStderr)
		}
	}
}

// tailBuffer retains the most recent n lines of output via container/ring,
// for attaching a bounded diagnostic tail to terminal-error events without
// holding the entire (potentially large) build log in memory.
type tailBuffer struct {
	mu sync.Mutex
	r  *ring.Ring
}

func newTailBuffer(n int) *tailBuffer {
	return &tailBuffer{r: ring.New(n)}
}

func (t *tailBuffer) add(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.r.Value = line
	t.r = t.r.Next()
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var lines []string
	t.r.Do(func(v interface{}) {
		if v != nil {
			lines = append(lines, v.(string))
		}
	})
	return strings.Join(lines, "\n")
}
