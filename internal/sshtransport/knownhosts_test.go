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

package sshtransport

import (
	"crypto/ed25519"
	"crypto/rand"
	"net"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/crypto/ssh"

	nixopserrors "github.com/nixops-sh/nixops-operator/internal/errors"
)

func genHostKey(t *testing.T) ssh.PublicKey {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generating host key: %v", err)
	}
	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		t.Fatalf("wrapping host key: %v", err)
	}
	return sshPub
}

// loopbackAddr is a stand-in remote.Addr; the callback never inspects it
// beyond passing it through to the underlying knownhosts matcher.
var loopbackAddr net.Addr = &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 22}

// ────────────────────────────────────────────────────────────────────────────
// KnownHosts.HostKeyCallback
// ────────────────────────────────────────────────────────────────────────────

func TestHostKeyCallback_PinsOnFirstConnection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "known_hosts")
	kh, err := NewKnownHosts(path)
	if err != nil {
		t.Fatalf("NewKnownHosts: %v", err)
	}

	key := genHostKey(t)
	cb := kh.HostKeyCallback()
	if err := cb("host1.example.com", loopbackAddr, key); err != nil {
		t.Fatalf("first connection should pin and accept, got: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading known_hosts: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected the pinned key to be persisted to the known_hosts file")
	}
}

func TestHostKeyCallback_AcceptsMatchingKeyOnSubsequentConnection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "known_hosts")
	kh, err := NewKnownHosts(path)
	if err != nil {
		t.Fatalf("NewKnownHosts: %v", err)
	}

	key := genHostKey(t)
	cb := kh.HostKeyCallback()
	if err := cb("host1.example.com", loopbackAddr, key); err != nil {
		t.Fatalf("first connection: %v", err)
	}
	if err := cb("host1.example.com", loopbackAddr, key); err != nil {
		t.Fatalf("second connection with the same key should be accepted, got: %v", err)
	}
}

func TestHostKeyCallback_RejectsChangedKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "known_hosts")
	kh, err := NewKnownHosts(path)
	if err != nil {
		t.Fatalf("NewKnownHosts: %v", err)
	}

	cb := kh.HostKeyCallback()
	if err := cb("host1.example.com", loopbackAddr, genHostKey(t)); err != nil {
		t.Fatalf("first connection: %v", err)
	}

	err = cb("host1.example.com", loopbackAddr, genHostKey(t))
	if err == nil {
		t.Fatal("expected a changed host key to be rejected")
	}
	re, ok := nixopserrors.As(err)
	if !ok || re.Kind != nixopserrors.KindHostKeyMismatch {
		t.Fatalf("expected KindHostKeyMismatch, got: %v", err)
	}
}

func TestHostKeyCallback_DoesNotOverwritePinnedEntryOnMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "known_hosts")
	kh, err := NewKnownHosts(path)
	if err != nil {
		t.Fatalf("NewKnownHosts: %v", err)
	}

	original := genHostKey(t)
	cb := kh.HostKeyCallback()
	if err := cb("host1.example.com", loopbackAddr, original); err != nil {
		t.Fatalf("first connection: %v", err)
	}
	_ = cb("host1.example.com", loopbackAddr, genHostKey(t))

	if err := cb("host1.example.com", loopbackAddr, original); err != nil {
		t.Fatalf("original key should still be trusted after a rejected mismatch, got: %v", err)
	}
}

func TestNewKnownHosts_CreatesMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "known_hosts")
	if _, err := NewKnownHosts(path); err != nil {
		t.Fatalf("NewKnownHosts: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected known_hosts file to be created: %v", err)
	}
}
