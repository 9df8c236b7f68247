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

// Package gitworkspace clones and resolves system-config repositories into
// scoped, per-reconcile scratch checkouts.
package gitworkspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	gitssh "github.com/go-git/go-git/v5/plumbing/transport/ssh"
	"github.com/google/uuid"

	nixopserrors "github.com/nixops-sh/nixops-operator/internal/errors"
	"github.com/nixops-sh/nixops-operator/internal/vault"
)

var fullCommitSHA = regexp.MustCompile(`^[0-9a-f]{40}$`)

// Result is the outcome of resolving a ref, independent of whether a full
// checkout was performed.
type Result struct {
	Commit string
	Ref    string
}

// Auth carries the credential handle and the connection shape it implies.
type Auth struct {
	Handle *vault.Handle
}

// ResolveAuth builds an Auth from a loaded vault handle, choosing the
// transport.AuthMethod shape by the handle's tag.
func ResolveAuth(h *vault.Handle) Auth {
	return Auth{Handle: h}
}

func (a Auth) method(repo string) (transport.AuthMethod, error) {
	if a.Handle == nil {
		return nil, nil
	}
	switch a.Handle.Tag() {
	case vault.TagGitSSHKey:
		signer, err := gitssh.NewPublicKeys("git", a.Handle.Bytes(), "")
		if err != nil {
			return nil, nixopserrors.Wrap(nixopserrors.KindAuthFailed, "parsing git SSH key", err)
		}
		signer.HostKeyCallback = gitssh.InsecureIgnoreHostKey()
		return signer, nil
	case vault.TagGitToken:
		return &githttp.BasicAuth{Username: "x-access-token", Password: string(a.Handle.Bytes())}, nil
	default:
		return nil, nixopserrors.New(nixopserrors.KindAuthFailed, fmt.Sprintf("unsupported git credential tag for %s", repo))
	}
}

// Workspace is a scoped, per-reconcile scratch checkout. Callers must call
// the release function Acquire returns alongside it when done.
type Workspace struct {
	Dir    string
	Commit string
}

// Client clones and resolves refs for system-config repositories rooted at
// a shared base directory.
type Client struct {
	basePath string
}

// New constructs a Client whose scratch checkouts live under basePath.
func New(basePath string) *Client {
	return &Client{basePath: basePath}
}

// LsRemote resolves ref against repo without performing a full clone,
// mirroring `git ls-remote`. A ref that is already a 40-character hex
// commit is returned unchanged.
func (c *Client) LsRemote(ctx context.Context, repo, ref string, auth Auth) (Result, error) {
	if fullCommitSHA.MatchString(ref) {
		return Result{Commit: ref, Ref: ref}, nil
	}

	method, err := auth.method(repo)
	if err != nil {
		return Result{}, err
	}

	remote := git.NewRemote(nil, &gitconfig.RemoteConfig{Name: "origin", URLs: []string{repo}})
	refs, err := remote.ListContext(ctx, &git.ListOptions{Auth: method})
	if err != nil {
		return Result{}, classifyGitError(err)
	}

	want := ref
	if want == "" || want == "HEAD" {
		for _, r := range refs {
			if r.Name() == plumbing.HEAD {
				target := r.Target()
				for _, r2 := range refs {
					if r2.Name() == target {
						return Result{Commit: r2.Hash().String(), Ref: target.Short()}, nil
					}
				}
			}
		}
		return Result{}, nixopserrors.New(nixopserrors.KindRefNotFound, fmt.Sprintf("could not resolve HEAD for %s", repo))
	}

	candidates := []plumbing.ReferenceName{
		plumbing.NewBranchReferenceName(want),
		plumbing.NewTagReferenceName(want),
		plumbing.ReferenceName(want),
	}
	for _, r := range refs {
		for _, cand := range candidates {
			if r.Name() == cand {
				return Result{Commit: r.Hash().String(), Ref: want}, nil
			}
		}
	}
	return Result{}, nixopserrors.New(nixopserrors.KindRefNotFound, fmt.Sprintf("ref %q not found in %s", ref, repo))
}

// Acquire clones repo at commit into a fresh scratch directory and returns
// a Workspace plus a release function that removes it. A ref that is
// already a full 40-hex commit hash triggers a full clone followed by
// checkout, since go-git cannot shallow-fetch an arbitrary historical
// commit that isn't currently a branch/tag tip; a branch or tag name
// instead uses a single-ref shallow clone of the matching kind.
func (c *Client) Acquire(ctx context.Context, repo, commit, ref string, auth Auth) (*Workspace, func(), error) {
	method, err := auth.method(repo)
	if err != nil {
		return nil, nil, err
	}

	dir := filepath.Join(c.basePath, uuid.NewString())
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, nil, nixopserrors.Wrap(nixopserrors.KindIO, "creating scratch workspace", err)
	}
	release := func() { os.RemoveAll(dir) }

	cloneOpts := &git.CloneOptions{
		URL:  repo,
		Auth: method,
	}
	switch {
	case fullCommitSHA.MatchString(ref):
		// go-git cannot shallow-fetch an arbitrary historical commit that
		// isn't currently a branch/tag tip; fetch the whole history and
		// check out the commit below.
	case ref != "" && ref != "HEAD":
		cloneOpts.ReferenceName = pickRefKind(ctx, repo, ref, method)
		cloneOpts.SingleBranch = true
		cloneOpts.Depth = 1
	}

	repository, err := git.PlainCloneContext(ctx, dir, false, cloneOpts)
	if err != nil {
		release()
		return nil, nil, classifyGitError(err)
	}

	worktree, err := repository.Worktree()
	if err != nil {
		release()
		return nil, nil, nixopserrors.Wrap(nixopserrors.KindIO, "opening worktree", err)
	}
	if err := worktree.Checkout(&git.CheckoutOptions{Hash: plumbing.NewHash(commit)}); err != nil {
		release()
		return nil, nil, nixopserrors.Wrap(nixopserrors.KindRefNotFound, fmt.Sprintf("checking out %s", commit), err)
	}

	return &Workspace{Dir: dir, Commit: commit}, release, nil
}

// pickRefKind determines whether ref names a branch or a tag by listing the
// remote's refs, so Acquire can shallow-fetch the correct reference rather
// than assuming every non-commit ref is a branch. Falls back to treating
// ref as a branch name if the remote can't be listed or ref matches
// neither kind, preserving the prior behavior in that case.
func pickRefKind(ctx context.Context, repo, ref string, method transport.AuthMethod) plumbing.ReferenceName {
	remote := git.NewRemote(nil, &gitconfig.RemoteConfig{Name: "origin", URLs: []string{repo}})
	refs, err := remote.ListContext(ctx, &git.ListOptions{Auth: method})
	if err != nil {
		return plumbing.NewBranchReferenceName(ref)
	}

	candidates := []plumbing.ReferenceName{
		plumbing.NewTagReferenceName(ref),
		plumbing.NewBranchReferenceName(ref),
		plumbing.ReferenceName(ref),
	}
	for _, r := range refs {
		for _, cand := range candidates {
			if r.Name() == cand {
				return cand
			}
		}
	}
	return plumbing.NewBranchReferenceName(ref)
}

func classifyGitError(err error) error {
	switch {
	case errors.Is(err, transport.ErrAuthenticationRequired), errors.Is(err, transport.ErrAuthorizationFailed):
		return nixopserrors.Wrap(nixopserrors.KindAuthFailed, "git authentication", err)
	case errors.Is(err, transport.ErrRepositoryNotFound):
		return nixopserrors.Wrap(nixopserrors.KindRefNotFound, "git repository not found", err)
	}
	return nixopserrors.Wrap(nixopserrors.KindNetworkError, "git operation", err)
}
