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
package des

import (
	"sync"
	"time"
)

// Monotonic is the monotonic high-resolution timer DES variant (spec §4.2):
// it arms at an absolute time on its injected ns clock using a timer
// conceptually pinned to the measured CPU, and its own callback is the only thing that ever invokes
// onInterrupt, so event attribution is trivial.
type Monotonic struct {
	now  func() uint64 // ns clock
	gran uint64

	mu            sync.Mutex
	cpu           int
	onInterrupt   func(cpu int)
	ltime         uint64
	armed         bool
	eventHappened bool
	timer         *time.Timer
}

// NewMonotonic builds a Monotonic DES variant. now must return a
// monotonically increasing nanosecond timestamp; gran is the timer
// subsystem's resolution in nanoseconds (spec's ldist_gran).
func NewMonotonic(now func() uint64, gran uint64) *Monotonic {
	return &Monotonic{now: now, gran: gran}
}

// Init implements DES.
func (m *Monotonic) Init(cpu int, onInterrupt func(cpu int)) (Capabilities, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cpu = cpu
	m.onInterrupt = onInterrupt
	return Capabilities{LdistMin: m.gran, LdistMax: uint64(10 * time.Second), LdistGran: m.gran}, nil
}

// Enable implements DES. Disabling cancels any in-flight timer.
func (m *Monotonic) Enable(on bool) error {
	if on {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.armed = false
	return nil
}

// Arm implements DES.
func (m *Monotonic) Arm(ldistNs uint64) error {
	m.mu.Lock()
	m.ltime = m.now() + ldistNs
	m.eventHappened = false
	m.armed = true
	m.timer = time.AfterFunc(time.Duration(ldistNs), m.fire)
	m.mu.Unlock()
	return nil
}

func (m *Monotonic) fire() {
	m.mu.Lock()
	m.eventHappened = true
	m.armed = false
	cb, cpu := m.onInterrupt, m.cpu
	m.mu.Unlock()
	if cb != nil {
		cb(cpu)
	}
}

// GetTimeBeforeIdle implements DES. The monotonic timer's clock is ns-native
// and the read itself is cheap, so adj is always zero.
func (m *Monotonic) GetTimeBeforeIdle() (uint64, uint64) { return m.now(), 0 }

// GetTimeAfterIdle implements DES.
func (m *Monotonic) GetTimeAfterIdle() (uint64, uint64) { return m.now(), 0 }

// GetIntrTime implements DES.
func (m *Monotonic) GetIntrTime() (uint64, uint64) { return m.now(), 0 }

// EventHasHappened implements DES.
func (m *Monotonic) EventHasHappened() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.eventHappened
}

// GetLaunchTime implements DES.
func (m *Monotonic) GetLaunchTime() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ltime
}

// TraceData implements DES; the monotonic variant has no extra fields.
func (m *Monotonic) TraceData() []TraceField { return nil }
