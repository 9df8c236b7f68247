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

package vault

import (
	"context"
	"testing"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	nixopserrors "github.com/nixops-sh/nixops-operator/internal/errors"
)

func newTestVault(objs ...runtime.Object) *Vault {
	scheme := runtime.NewScheme()
	_ = clientgoscheme.AddToScheme(scheme)
	c := fake.NewClientBuilder().WithScheme(scheme).WithRuntimeObjects(objs...).Build()
	return New(c)
}

func secret(name string, data map[string][]byte) *corev1.Secret {
	return &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: "default"},
		Data:       data,
	}
}

// ────────────────────────────────────────────────────────────────────────────
// Vault.LoadSSHKey / LoadSecretKey
// ────────────────────────────────────────────────────────────────────────────

func TestLoadSSHKey_MissingSecret(t *testing.T) {
	v := newTestVault()
	_, err := v.LoadSSHKey(context.Background(), "default", "missing")
	re, ok := nixopserrors.As(err)
	if !ok || re.Kind != nixopserrors.KindSecretMissing {
		t.Fatalf("expected KindSecretMissing, got: %v", err)
	}
}

func TestLoadSSHKey_MissingField(t *testing.T) {
	v := newTestVault(secret("host1-key", map[string][]byte{"other": []byte("x")}))
	_, err := v.LoadSSHKey(context.Background(), "default", "host1-key")
	re, ok := nixopserrors.As(err)
	if !ok || re.Kind != nixopserrors.KindSecretMalformed {
		t.Fatalf("expected KindSecretMalformed, got: %v", err)
	}
}

func TestLoadSSHKey_ReturnsHandleWithTag(t *testing.T) {
	v := newTestVault(secret("host1-key", map[string][]byte{"ssh-privatekey": []byte("key-material")}))
	h, err := v.LoadSSHKey(context.Background(), "default", "host1-key")
	if err != nil {
		t.Fatalf("LoadSSHKey: %v", err)
	}
	defer h.Release()

	if h.Tag() != TagSSHKey {
		t.Fatalf("expected TagSSHKey, got %v", h.Tag())
	}
	if string(h.Bytes()) != "key-material" {
		t.Fatalf("expected key-material, got %q", h.Bytes())
	}
}

// ────────────────────────────────────────────────────────────────────────────
// Vault.LoadGitAuth
// ────────────────────────────────────────────────────────────────────────────

func TestLoadGitAuth_PrefersSSHKeyOverToken(t *testing.T) {
	v := newTestVault(secret("git-creds", map[string][]byte{
		"ssh-privatekey": []byte("priv"),
		"token":          []byte("tok"),
	}))
	h, err := v.LoadGitAuth(context.Background(), "default", "git-creds")
	if err != nil {
		t.Fatalf("LoadGitAuth: %v", err)
	}
	defer h.Release()
	if h.Tag() != TagGitSSHKey {
		t.Fatalf("expected TagGitSSHKey when both fields are present, got %v", h.Tag())
	}
}

func TestLoadGitAuth_FallsBackToToken(t *testing.T) {
	v := newTestVault(secret("git-creds", map[string][]byte{"token": []byte("tok")}))
	h, err := v.LoadGitAuth(context.Background(), "default", "git-creds")
	if err != nil {
		t.Fatalf("LoadGitAuth: %v", err)
	}
	defer h.Release()
	if h.Tag() != TagGitToken {
		t.Fatalf("expected TagGitToken, got %v", h.Tag())
	}
}

func TestLoadGitAuth_NeitherFieldPresent(t *testing.T) {
	v := newTestVault(secret("git-creds", map[string][]byte{"other": []byte("x")}))
	_, err := v.LoadGitAuth(context.Background(), "default", "git-creds")
	re, ok := nixopserrors.As(err)
	if !ok || re.Kind != nixopserrors.KindSecretMalformed {
		t.Fatalf("expected KindSecretMalformed, got: %v", err)
	}
}

// ────────────────────────────────────────────────────────────────────────────
// Handle ref-counting
// ────────────────────────────────────────────────────────────────────────────

func TestHandle_SharedAcrossConcurrentLoadsUntilAllReleased(t *testing.T) {
	v := newTestVault(secret("host1-key", map[string][]byte{"ssh-privatekey": []byte("key-material")}))

	h1, err := v.LoadSSHKey(context.Background(), "default", "host1-key")
	if err != nil {
		t.Fatalf("first load: %v", err)
	}
	h2, err := v.LoadSSHKey(context.Background(), "default", "host1-key")
	if err != nil {
		t.Fatalf("second load: %v", err)
	}
	if h1 != h2 {
		t.Fatal("expected the same handle instance to be returned for a concurrently-loaded secret")
	}

	h1.Release()
	if len(h2.Bytes()) == 0 {
		t.Fatal("expected the buffer to survive while a reference is still outstanding")
	}

	h2.Release()
	if h2.Bytes() != nil {
		t.Fatal("expected the buffer to be zeroed once the last reference is released")
	}

	v.mu.Lock()
	_, stillTracked := v.handles["default/host1-key#ssh-privatekey"]
	v.mu.Unlock()
	if stillTracked {
		t.Fatal("expected the vault to forget the handle once fully released")
	}
}

func TestHandle_MaterializeKeyFile(t *testing.T) {
	h := NewHandleForTesting(TagSSHKey, []byte("key-material"))
	defer h.Release()

	path, err := h.MaterializeKeyFile(t.TempDir())
	if err != nil {
		t.Fatalf("MaterializeKeyFile: %v", err)
	}
	if path == "" {
		t.Fatal("expected a non-empty path")
	}
}
