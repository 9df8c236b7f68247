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

// Package fakegit is an in-memory gitworkspace.Client double for controller
// tests: repositories are scripted maps from ref to commit, and Acquire
// materializes a plain directory instead of performing a real clone.
package fakegit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	nixopserrors "github.com/nixops-sh/nixops-operator/internal/errors"
	"github.com/nixops-sh/nixops-operator/internal/gitworkspace"
)

// Repo is one scripted fake repository.
type Repo struct {
	// Refs maps a branch/tag/HEAD name to the commit it resolves to.
	Refs map[string]string
	// Files are written into every acquired workspace, keyed by relative
	// path.
	Files map[string]string
}

// Client is a scriptable fake implementing the gitworkspace.Client surface
// the controller depends on.
type Client struct {
	basePath string

	mu    sync.Mutex
	repos map[string]Repo

	// LsRemoteCount and AcquireCount record call volume for idempotence
	// assertions (P3).
	LsRemoteCount int
	AcquireCount  int
}

// New constructs a fake Client rooted at basePath for scratch directories.
func New(basePath string) *Client {
	return &Client{basePath: basePath, repos: make(map[string]Repo)}
}

// AddRepo registers a scripted repository under name repo.
func (c *Client) AddRepo(repo string, r Repo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.repos[repo] = r
}

func (c *Client) LsRemote(ctx context.Context, repo, ref string, auth gitworkspace.Auth) (gitworkspace.Result, error) {
	c.mu.Lock()
	c.LsRemoteCount++
	r, ok := c.repos[repo]
	c.mu.Unlock()
	if !ok {
		return gitworkspace.Result{}, nixopserrors.New(nixopserrors.KindRefNotFound, fmt.Sprintf("unknown fake repo %s", repo))
	}
	lookup := ref
	if lookup == "" {
		lookup = "HEAD"
	}
	commit, ok := r.Refs[lookup]
	if !ok {
		return gitworkspace.Result{}, nixopserrors.New(nixopserrors.KindRefNotFound, fmt.Sprintf("ref %q not found in %s", ref, repo))
	}
	return gitworkspace.Result{Commit: commit, Ref: lookup}, nil
}

func (c *Client) Acquire(ctx context.Context, repo, commit, ref string, auth gitworkspace.Auth) (*gitworkspace.Workspace, func(), error) {
	c.mu.Lock()
	c.AcquireCount++
	r, ok := c.repos[repo]
	c.mu.Unlock()
	if !ok {
		return nil, nil, nixopserrors.New(nixopserrors.KindRefNotFound, fmt.Sprintf("unknown fake repo %s", repo))
	}

	dir, err := os.MkdirTemp(c.basePath, "fakegit-")
	if err != nil {
		return nil, nil, nixopserrors.Wrap(nixopserrors.KindIO, "creating fake workspace", err)
	}
	for path, content := range r.Files {
		full := filepath.Join(dir, path)
		if err := os.MkdirAll(filepath.Dir(full), 0700); err != nil {
			return nil, nil, nixopserrors.Wrap(nixopserrors.KindIO, "seeding fake workspace", err)
		}
		if err := os.WriteFile(full, []byte(content), 0644); err != nil {
			return nil, nil, nixopserrors.Wrap(nixopserrors.KindIO, "seeding fake workspace", err)
		}
	}
	release := func() { os.RemoveAll(dir) }
	return &gitworkspace.Workspace{Dir: dir, Commit: commit}, release, nil
}
