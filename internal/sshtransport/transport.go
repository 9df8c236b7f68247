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

// Package sshtransport implements remote command execution and file
// transfer over SSH, with trust-on-first-use host key pinning and
// context-driven cancellation.
package sshtransport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	nixopserrors "github.com/nixops-sh/nixops-operator/internal/errors"
	"github.com/nixops-sh/nixops-operator/internal/vault"
)

// Target identifies the remote endpoint and auth material for a session.
type Target struct {
	Hostname string
	User     string
	Port     int32
	Key      *vault.Handle
}

func (t Target) addr() string {
	port := t.Port
	if port == 0 {
		port = 22
	}
	return net.JoinHostPort(t.Hostname, fmt.Sprintf("%d", port))
}

// Result is the outcome of one remote command execution.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// OutputFunc receives streamed lines of remote stdout/stderr as they
// arrive, for the applier's progress feed.
type OutputFunc func(line string, isStderr bool)

// Transport is the seam the rest of the operator programs against; fake
// implementations back controller tests without a real network.
type Transport interface {
	// Probe verifies connectivity and host key trust without running a
	// command.
	Probe(ctx context.Context, target Target) error
	// Exec runs cmd to completion and captures its output.
	Exec(ctx context.Context, target Target, cmd string) (Result, error)
	// ExecStreaming runs cmd, invoking onOutput for each line as it
	// arrives, and returns once the remote process exits or ctx is
	// cancelled.
	ExecStreaming(ctx context.Context, target Target, cmd string, onOutput OutputFunc) (Result, error)
	// WriteFile writes content to path on the remote host with the given
	// POSIX mode, using sudo if asSudo is set.
	WriteFile(ctx context.Context, target Target, path string, content []byte, mode string, asSudo bool) error
}

// sshTransport is the production Transport backed by golang.org/x/crypto/ssh.
type sshTransport struct {
	knownHosts *KnownHosts
	dialer     net.Dialer
}

// New constructs the production SSH transport.
func New(kh *KnownHosts) Transport {
	return &sshTransport{knownHosts: kh}
}

func (t *sshTransport) dial(ctx context.Context, target Target) (*ssh.Client, error) {
	signer, err := ssh.ParsePrivateKey(target.Key.Bytes())
	if err != nil {
		return nil, nixopserrors.Wrap(nixopserrors.KindAuthFailed, "parsing SSH private key", err)
	}

	cfg := &ssh.ClientConfig{
		User:              target.User,
		Auth:              []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback:   t.knownHosts.HostKeyCallback(),
		HostKeyAlgorithms: t.knownHosts.HostKeyAlgorithms(target.addr()),
		Timeout:           15 * time.Second,
	}

	addr := target.addr()
	conn, err := t.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, nixopserrors.Wrap(nixopserrors.KindUnreachable, fmt.Sprintf("dialing %s", addr), err)
	}

	type dialResult struct {
		client *ssh.Client
		err    error
	}
	resultCh := make(chan dialResult, 1)
	go func() {
		sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
		if err != nil {
			resultCh <- dialResult{err: err}
			return
		}
		resultCh <- dialResult{client: ssh.NewClient(sshConn, chans, reqs)}
	}()

	select {
	case <-ctx.Done():
		conn.Close()
		return nil, ctx.Err()
	case r := <-resultCh:
		if r.err != nil {
			if re, ok := nixopserrors.As(r.err); ok {
				return nil, re
			}
			return nil, nixopserrors.Wrap(nixopserrors.KindNetworkError, "establishing SSH connection", r.err)
		}
		return r.client, nil
	}
}

func (t *sshTransport) Probe(ctx context.Context, target Target) error {
	client, err := t.dial(ctx, target)
	if err != nil {
		return err
	}
	defer client.Close()
	return nil
}

func (t *sshTransport) Exec(ctx context.Context, target Target, cmd string) (Result, error) {
	return t.exec(ctx, target, cmd, nil)
}

func (t *sshTransport) ExecStreaming(ctx context.Context, target Target, cmd string, onOutput OutputFunc) (Result, error) {
	return t.exec(ctx, target, cmd, onOutput)
}

func (t *sshTransport) exec(ctx context.Context, target Target, cmd string, onOutput OutputFunc) (Result, error) {
	client, err := t.dial(ctx, target)
	if err != nil {
		return Result{}, err
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return Result{}, nixopserrors.Wrap(nixopserrors.KindNetworkError, "opening SSH session", err)
	}
	defer session.Close()

	var stdoutBuf, stderrBuf bytes.Buffer
	stdoutPipe, err := session.StdoutPipe()
	if err != nil {
		return Result{}, nixopserrors.Wrap(nixopserrors.KindIO, "attaching stdout", err)
	}
	stderrPipe, err := session.StderrPipe()
	if err != nil {
		return Result{}, nixopserrors.Wrap(nixopserrors.KindIO, "attaching stderr", err)
	}

	done := make(chan struct{})
	go streamLines(stdoutPipe, &stdoutBuf, false, onOutput, done)
	go streamLines(stderrPipe, &stderrBuf, true, onOutput, done)

	if err := session.Start(cmd); err != nil {
		return Result{}, nixopserrors.Wrap(nixopserrors.KindIO, "starting remote command", err)
	}

	waitCh := make(chan error, 1)
	go func() { waitCh <- session.Wait() }()

	select {
	case <-ctx.Done():
		session.Signal(ssh.SIGKILL)
		session.Close()
		<-waitCh
		return Result{}, nixopserrors.Wrap(nixopserrors.KindTimeout, "remote command cancelled", ctx.Err())
	case waitErr := <-waitCh:
		<-done
		<-done
		exitCode := 0
		if waitErr != nil {
			if exitErr, ok := waitErr.(*ssh.ExitError); ok {
				exitCode = exitErr.ExitStatus()
			} else {
				return Result{}, nixopserrors.Wrap(nixopserrors.KindNetworkError, "waiting for remote command", waitErr)
			}
		}
		return Result{Stdout: stdoutBuf.String(), Stderr: stderrBuf.String(), ExitCode: exitCode}, nil
	}
}

func streamLines(r io.Reader, buf *bytes.Buffer, isStderr bool, onOutput OutputFunc, done chan<- struct{}) {
	defer func() { done <- struct{}{} }()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		buf.WriteString(line)
		buf.WriteByte('\n')
		if onOutput != nil {
			onOutput(line, isStderr)
		}
	}
}

// WriteFile writes content to the remote path by piping a base64-encoded
// payload through the shell, avoiding a dependency on a dedicated SFTP/SCP
// client for the small configuration files the injector produces.
func (t *sshTransport) WriteFile(ctx context.Context, target Target, path string, content []byte, mode string, asSudo bool) error {
	encoded := base64.StdEncoding.EncodeToString(content)
	inner := fmt.Sprintf("mkdir -p %q && echo %s | base64 -d > %q && chmod %s %q",
		dirOf(path), shellQuote(encoded), path, mode, path)
	cmd := inner
	if asSudo {
		cmd = fmt.Sprintf("sudo sh -c %s", shellQuote(inner))
	}
	result, err := t.Exec(ctx, target, cmd)
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return nixopserrors.WrapApplyFailed(fmt.Sprintf("writing remote file %s", path), result.ExitCode,
			fmt.Errorf("stderr: %s", result.Stderr))
	}
	return nil
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
