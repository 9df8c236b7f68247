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
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/skeema/knownhosts"
	"golang.org/x/crypto/ssh"

	nixopserrors "github.com/nixops-sh/nixops-operator/internal/errors"
)

// KnownHosts is a process-wide, trust-on-first-use host key store backed by
// a single known_hosts file. The first successful connection to a host
// pins its key; any later connection presenting a different key is
// rejected without updating the pinned entry (P6).
type KnownHosts struct {
	path string

	mu sync.Mutex
	db *knownhosts.HostKeyDB
}

// NewKnownHosts opens (creating if absent) the known_hosts file at path.
func NewKnownHosts(path string) (*KnownHosts, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, nixopserrors.Wrap(nixopserrors.KindIO, "creating known_hosts directory", err)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.WriteFile(path, nil, 0600); err != nil {
			return nil, nixopserrors.Wrap(nixopserrors.KindIO, "creating known_hosts file", err)
		}
	}
	db, err := knownhosts.New(path)
	if err != nil {
		return nil, nixopserrors.Wrap(nixopserrors.KindIO, "loading known_hosts", err)
	}
	return &KnownHosts{path: path, db: db}, nil
}

// HostKeyCallback returns a callback suitable for ssh.ClientConfig that
// implements trust-on-first-use: an unknown host's key is appended to the
// known_hosts file and accepted; a host with a differing recorded key is
// rejected with KindHostKeyMismatch.
func (k *KnownHosts) HostKeyCallback() ssh.HostKeyCallback {
	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		k.mu.Lock()
		defer k.mu.Unlock()

		cb := k.db.HostKeyCallback()
		err := cb(hostname, remote, key)
		if err == nil {
			return nil
		}
		if knownhosts.IsHostKeyChanged(err) {
			return nixopserrors.Wrap(nixopserrors.KindHostKeyMismatch,
				fmt.Sprintf("host key for %s does not match pinned entry", hostname), err)
		}
		if knownhosts.IsHostUnknown(err) {
			f, openErr := os.OpenFile(k.path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0600)
			if openErr != nil {
				return nixopserrors.Wrap(nixopserrors.KindIO, "opening known_hosts for append", openErr)
			}
			defer f.Close()
			line := knownhosts.Line([]string{knownhosts.Normalize(hostname)}, key)
			if _, writeErr := fmt.Fprintln(f, line); writeErr != nil {
				return nixopserrors.Wrap(nixopserrors.KindIO, "pinning host key", writeErr)
			}
			db, reloadErr := knownhosts.New(k.path)
			if reloadErr != nil {
				return nixopserrors.Wrap(nixopserrors.KindIO, "reloading known_hosts", reloadErr)
			}
			k.db = db
			return nil
		}
		return nixopserrors.Wrap(nixopserrors.KindHostKeyMismatch, "verifying host key", err)
	}
}

// HostKeyAlgorithms returns the preference order knownhosts recommends for
// the already-pinned key of hostname, so the client offers algorithms the
// server is known to support first.
func (k *KnownHosts) HostKeyAlgorithms(hostname string) []string {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.db.HostKeyAlgorithms(hostname)
}
