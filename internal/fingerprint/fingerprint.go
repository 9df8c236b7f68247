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

// Package fingerprint computes a deterministic digest of everything that
// can change the result of applying a configuration, so the reconciler can
// decide whether an apply is necessary without re-running it.
//
// Deliberately built on crypto/sha256 rather than a third-party hashing
// library: the encoding is a small, fixed, length-prefixed scheme with no
// need for streaming, tree hashing, or alternate digest algorithms, so the
// standard library's hash.Hash is sufficient and no example in the corpus
// reaches for anything else to build a content fingerprint.
package fingerprint

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"os"
	"sort"
)

// Input is everything the fingerprint is a pure function of, per P4:
// resolved commit, flake attribute, configuration subdirectory,
// full-install mode, and the injected file set.
type Input struct {
	Commit              string
	Flake               string
	ConfigurationSubdir string
	FullInstall         bool
	Files               []FileInput
}

// FileInput is one injected file's destination, content, and mode, as
// consumed by the fingerprint. Order does not affect the result; files are
// sorted by Path before hashing.
type FileInput struct {
	Path    string
	Content []byte
	Mode    os.FileMode
}

// Compute returns the hex-encoded sha256 fingerprint of in.
func Compute(in Input) string {
	h := sha256.New()

	writeString(h, in.Commit)
	writeString(h, in.Flake)
	writeString(h, in.ConfigurationSubdir)
	writeBool(h, in.FullInstall)

	files := make([]FileInput, len(in.Files))
	copy(files, in.Files)
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	writeUint32(h, uint32(len(files)))
	for _, f := range files {
		writeString(h, f.Path)
		writeBytes(h, f.Content)
		writeUint32(h, uint32(f.Mode))
	}

	return hex.EncodeToString(h.Sum(nil))
}

func writeUint32(h interface{ Write([]byte) (int, error) }, v uint32) {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	h.Write(buf[:])
}

func writeBytes(h interface{ Write([]byte) (int, error) }, b []byte) {
	writeUint32(h, uint32(len(b)))
	h.Write(b)
}

func writeString(h interface{ Write([]byte) (int, error) }, s string) {
	writeBytes(h, []byte(s))
}

func writeBool(h interface{ Write([]byte) (int, error) }, b bool) {
	if b {
		h.Write([]byte{1})
	} else {
		h.Write([]byte{0})
	}
}
