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

// Package vault mediates access to credential material pulled from
// Kubernetes Secrets. Callers never see a raw Secret object; they get a
// typed, ref-counted handle that is zeroed when released.
package vault

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"

	nixopserrors "github.com/nixops-sh/nixops-operator/internal/errors"
)

// Tag identifies the shape of credential material held in a Handle.
type Tag string

const (
	TagSSHKey    Tag = "sshKey"
	TagGitToken  Tag = "gitToken"
	TagGitSSHKey Tag = "gitSshKey"
)

const (
	sshPrivateKeyField = "ssh-privatekey"
	gitTokenField      = "token"
)

// Handle is an in-memory, ref-counted view of one secret's payload. The
// zero value is not usable; obtain one via Vault.LoadSSHKey, LoadGitAuth or
// LoadSecretKey.
type Handle struct {
	vault *Vault
	id    string
	tag   Tag
	buf   []byte

	mu   sync.Mutex
	refs int
}

// Tag reports the credential shape this handle carries.
func (h *Handle) Tag() Tag { return h.tag }

// Bytes returns the raw credential payload. The returned slice must not be
// retained past Release.
func (h *Handle) Bytes() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.buf
}

// Retain increments the reference count, allowing the same handle to be
// shared by concurrent callers within one reconcile.
func (h *Handle) Retain() {
	h.mu.Lock()
	h.refs++
	h.mu.Unlock()
}

// Release decrements the reference count. When it reaches zero the backing
// buffer is zeroed and the handle is forgotten by the vault.
func (h *Handle) Release() {
	h.mu.Lock()
	h.refs--
	done := h.refs <= 0
	if done {
		for i := range h.buf {
			h.buf[i] = 0
		}
		h.buf = nil
	}
	h.mu.Unlock()
	if done {
		h.vault.forget(h.id)
	}
}

// MaterializeKeyFile writes the handle's payload into an unpredictably
// named file under scratchDir with mode 0600, for the rare subprocess
// contract that cannot accept a key over stdin. The caller is responsible
// for removing the returned path; prefer ssh transport's in-memory signer
// path when the callee supports it.
func (h *Handle) MaterializeKeyFile(scratchDir string) (path string, err error) {
	if err := os.MkdirAll(scratchDir, 0700); err != nil {
		return "", nixopserrors.Wrap(nixopserrors.KindIO, "creating scratch dir", err)
	}
	suffix := make([]byte, 16)
	if _, err := rand.Read(suffix); err != nil {
		return "", nixopserrors.Wrap(nixopserrors.KindIO, "generating scratch name", err)
	}
	path = filepath.Join(scratchDir, ".key-"+hex.EncodeToString(suffix))
	if err := os.WriteFile(path, h.Bytes(), 0600); err != nil {
		return "", nixopserrors.Wrap(nixopserrors.KindIO, "writing key file", err)
	}
	return path, nil
}

// NewHandleForTesting builds a standalone Handle outside of any Vault, for
// tests in other packages that need credential material without a fake
// Kubernetes client.
func NewHandleForTesting(tag Tag, data []byte) *Handle {
	buf := make([]byte, len(data))
	copy(buf, data)
	return &Handle{vault: &Vault{handles: make(map[string]*Handle)}, id: "testing", tag: tag, buf: buf, refs: 1}
}

// Vault resolves Kubernetes Secret references into Handles and tracks them
// by a process-wide identity so that repeated loads of the same secret
// within a reconcile share one buffer.
type Vault struct {
	client client.Client

	mu      sync.Mutex
	handles map[string]*Handle
}

// New constructs a Vault backed by the given API client.
func New(c client.Client) *Vault {
	return &Vault{client: c, handles: make(map[string]*Handle)}
}

// LoadSSHKey loads the ssh-privatekey field of the named Secret.
func (v *Vault) LoadSSHKey(ctx context.Context, namespace, name string) (*Handle, error) {
	return v.load(ctx, namespace, name, sshPrivateKeyField, TagSSHKey)
}

// LoadGitAuth loads Git credentials, preferring an ssh-privatekey field and
// falling back to a bearer token field.
func (v *Vault) LoadGitAuth(ctx context.Context, namespace, name string) (*Handle, error) {
	secret := &corev1.Secret{}
	if err := v.client.Get(ctx, types.NamespacedName{Namespace: namespace, Name: name}, secret); err != nil {
		return nil, nixopserrors.Wrap(nixopserrors.KindSecretMissing, fmt.Sprintf("secret %s/%s", namespace, name), err)
	}
	if data, ok := secret.Data[sshPrivateKeyField]; ok {
		return v.loadFromData(namespace, name, sshPrivateKeyField, TagGitSSHKey, data)
	}
	if data, ok := secret.Data[gitTokenField]; ok {
		return v.loadFromData(namespace, name, gitTokenField, TagGitToken, data)
	}
	return nil, nixopserrors.New(nixopserrors.KindSecretMalformed,
		fmt.Sprintf("secret %s/%s has neither %q nor %q", namespace, name, sshPrivateKeyField, gitTokenField))
}

// LoadSecretKey loads an arbitrary field of a Secret, used by the file
// injector for additionalFiles.source.secretRef.
func (v *Vault) LoadSecretKey(ctx context.Context, namespace, name, key string) (*Handle, error) {
	return v.load(ctx, namespace, name, key, TagSSHKey)
}

func (v *Vault) load(ctx context.Context, namespace, name, field string, tag Tag) (*Handle, error) {
	secret := &corev1.Secret{}
	if err := v.client.Get(ctx, types.NamespacedName{Namespace: namespace, Name: name}, secret); err != nil {
		return nil, nixopserrors.Wrap(nixopserrors.KindSecretMissing, fmt.Sprintf("secret %s/%s", namespace, name), err)
	}
	data, ok := secret.Data[field]
	if !ok {
		return nil, nixopserrors.New(nixopserrors.KindSecretMalformed,
			fmt.Sprintf("secret %s/%s missing field %q", namespace, name, field))
	}
	return v.loadFromData(namespace, name, field, tag, data)
}

func (v *Vault) loadFromData(namespace, name, field string, tag Tag, data []byte) (*Handle, error) {
	id := namespace + "/" + name + "#" + field

	v.mu.Lock()
	defer v.mu.Unlock()

	if h, ok := v.handles[id]; ok {
		h.Retain()
		return h, nil
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	h := &Handle{vault: v, id: id, tag: tag, buf: buf, refs: 1}
	v.handles[id] = h
	return h, nil
}

func (v *Vault) forget(id string) {
	v.mu.Lock()
	delete(v.handles, id)
	v.mu.Unlock()
}
