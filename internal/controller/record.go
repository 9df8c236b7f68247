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

package controller

import (
	"sync"
	"time"
)

// reconcileRecord is the internal, non-persisted per-NixosConfiguration
// state the data model calls out separately from status: the most recent
// fingerprint, retry bookkeeping, and whether a tear-down has already been
// attempted this deletion. It does not survive an operator restart, which
// is fine since every field it holds is reconstructible from a fresh tick.
type reconcileRecord struct {
	lastFingerprint  string
	retryCount       int
	nextAttempt      time.Time
	teardownAttempted bool
}

// recordStore is a process-wide cache of reconcileRecords keyed by
// namespaced name, guarded by a single mutex since the scheduler already
// guarantees at most one in-flight reconcile per key.
type recordStore struct {
	mu      sync.Mutex
	records map[string]*reconcileRecord
}

func newRecordStore() *recordStore {
	return &recordStore{records: make(map[string]*reconcileRecord)}
}

func (s *recordStore) get(key string) *reconcileRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[key]
	if !ok {
		r = &reconcileRecord{}
		s.records[key] = r
	}
	return r
}

func (s *recordStore) delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
}
