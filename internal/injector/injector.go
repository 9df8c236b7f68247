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

// Package injector materializes additionalFiles content into a resolved
// configuration checkout before it is built.
package injector

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	nixopserrors "github.com/nixops-sh/nixops-operator/internal/errors"
)

// File is one resolved file to write: its destination path (relative to
// the configuration root) and its already-resolved byte content.
type File struct {
	Path    string
	Content []byte
	Mode os.FileMode
}

const defaultMode = os.FileMode(0644)

// ParseMode converts a spec-level octal mode string (e.g. "0644") to an
// os.FileMode, defaulting when mode is empty.
func ParseMode(mode string) (os.FileMode, error) {
	if mode == "" {
		return defaultMode, nil
	}
	v, err := strconv.ParseUint(mode, 8, 32)
	if err != nil {
		return 0, nixopserrors.Wrap(nixopserrors.KindPathCollision, fmt.Sprintf("invalid file mode %q", mode), err)
	}
	return os.FileMode(v), nil
}

// ValidatePaths rejects any file set containing a path collision
// (duplicate destination) or a path that escapes the configuration root
// via ".." segments.
func ValidatePaths(files []File) error {
	seen := make(map[string]bool, len(files))
	for _, f := range files {
		clean, err := cleanRelative(f.Path)
		if err != nil {
			return err
		}
		if seen[clean] {
			return nixopserrors.New(nixopserrors.KindPathCollision, fmt.Sprintf("duplicate destination path %q", f.Path))
		}
		seen[clean] = true
	}
	return nil
}

// cleanRelative rejects absolute paths and any path containing a ".."
// segment, even one that would stay inside the configuration root, then
// returns the slash-cleaned form. The segment check runs before
// filepath.Clean collapses "..", since Clean alone would silently resolve
// an escape instead of rejecting it.
func cleanRelative(path string) (string, error) {
	if path == "" {
		return "", nixopserrors.New(nixopserrors.KindPathCollision, "empty destination path")
	}
	if filepath.IsAbs(path) {
		return "", nixopserrors.New(nixopserrors.KindPathCollision, fmt.Sprintf("absolute destination path %q", path))
	}
	for _, seg := range strings.Split(path, "/") {
		if seg == ".." {
			return "", nixopserrors.New(nixopserrors.KindPathCollision, fmt.Sprintf("path %q escapes configuration root", path))
		}
	}
	return filepath.Clean(path), nil
}

// Inject writes each file into root, in the order given, creating parent
// directories as needed. Files must already have passed ValidatePaths.
func Inject(root string, files []File) error {
	if err := ValidatePaths(files); err != nil {
		return err
	}
	for _, f := range files {
		clean, err := cleanRelative(f.Path)
		if err != nil {
			return err
		}
		full := filepath.Join(root, clean)
		if _, err := os.Lstat(full); err == nil {
			return nixopserrors.New(nixopserrors.KindPathCollision,
				fmt.Sprintf("additionalFiles path %q already exists in the clone", f.Path))
		} else if !os.IsNotExist(err) {
			return nixopserrors.Wrap(nixopserrors.KindIO, fmt.Sprintf("checking %s", f.Path), err)
		}
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			return nixopserrors.Wrap(nixopserrors.KindIO, fmt.Sprintf("creating directory for %s", f.Path), err)
		}
		mode := f.Mode
		if mode == 0 {
			mode = defaultMode
		}
		if err := os.WriteFile(full, f.Content, mode); err != nil {
			return nixopserrors.Wrap(nixopserrors.KindIO, fmt.Sprintf("writing %s", f.Path), err)
		}
	}
	return nil
}

// SortedForFingerprint returns a copy of files sorted by destination path.
// Per P4, the fingerprint must not depend on additionalFiles ordering in
// the spec, so the fingerprint calculator always consumes this view.
func SortedForFingerprint(files []File) []File {
	out := make([]File, len(files))
	copy(out, files)
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}
