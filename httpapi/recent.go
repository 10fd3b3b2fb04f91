//
// Copyright 2026 Intel Corporation
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS-IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
//
package httpapi

import (
	"sync"

	"github.com/hashicorp/golang-lru/simplelru"

	"github.com/intel/wult-go/record"
)

// RecentRecords wraps a record.Sink, caching every record that sink accepts
// in a bounded simplelru.LRU ring before forwarding it on, for the
// /debug/records introspection endpoint. It implements record.Sink itself,
// so it is a drop-in replacement for whatever sink the engine was built
// with.
type RecentRecords struct {
	inner record.Sink

	mu   sync.Mutex
	lru  *simplelru.LRU
	next uint64
}

// NewRecentRecords builds a RecentRecords forwarding to inner and caching up
// to cap of the most recently accepted records.
func NewRecentRecords(inner record.Sink, cap int) *RecentRecords {
	lru, err := simplelru.NewLRU(cap, nil)
	if err != nil {
		// cap <= 0; fall back to a single-entry cache rather than fail
		// construction over a debug-only endpoint.
		lru, _ = simplelru.NewLRU(1, nil)
	}
	return &RecentRecords{inner: inner, lru: lru}
}

// Submit implements record.Sink: it forwards to the wrapped sink first, and
// only caches the record if the wrapped sink accepted it, so /debug/records
// never shows a datapoint that was actually dropped for backpressure.
func (r *RecentRecords) Submit(rec *record.Record) error {
	if err := r.inner.Submit(rec); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	r.lru.Add(r.next, rec)
	return nil
}

// Values returns the cached records, oldest first.
func (r *RecentRecords) Values() []*record.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := r.lru.Keys()
	out := make([]*record.Record, 0, len(keys))
	for _, k := range keys {
		if v, ok := r.lru.Get(k); ok {
			out = append(out, v.(*record.Record))
		}
	}
	return out
}
