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
package record

import "github.com/intel/wult-go/errs"

// Sink is the consumer of emitted records (spec §6's "record sink"). A
// control surface or test harness implements this to receive completed
// datapoints.
type Sink interface {
	// Submit delivers a completed record. It returns SinkBackpressure if
	// the sink cannot currently accept it (spec §7): the caller must drop
	// the record, bump an overflow counter, and continue.
	Submit(r *Record) error
}

// ChanSink is a bounded, non-blocking Sink backed by a channel, matching
// spec §7's SinkBackpressure policy: once full, Submit fails immediately
// instead of blocking the armer.
type ChanSink struct {
	ch        chan *Record
	Overflows uint64
}

// NewChanSink builds a ChanSink with the given capacity.
func NewChanSink(capacity int) *ChanSink {
	return &ChanSink{ch: make(chan *Record, capacity)}
}

// Submit implements Sink.
func (s *ChanSink) Submit(r *Record) error {
	select {
	case s.ch <- r:
		return nil
	default:
		s.Overflows++
		return errs.SinkBackpressure("record sink is full")
	}
}

// Records returns the channel records can be drained from.
func (s *ChanSink) Records() <-chan *Record {
	return s.ch
}
