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

import "sync"

// Stub is a fully deterministic, in-memory DES used by every scenario in
// spec §8. Its timestamps are supplied directly by the test rather than by
// a real clock, so tests can construct exact before/after/interrupt
// timelines.
type Stub struct {
	Caps Capabilities

	mu            sync.Mutex
	cpu           int
	onInterrupt   func(cpu int)
	ltime         uint64
	armed         bool
	eventHappened bool
	armErr        error
	trace         []TraceField

	// TBI, TAI, TIntr are the values the next GetTimeBeforeIdle /
	// GetTimeAfterIdle / GetIntrTime calls will return, paired with their
	// adj values. Tests set these directly to script a scenario.
	TBI, TBIAdj     uint64
	TAI, TAIAdj     uint64
	TIntr, TIntrAdj uint64
}

// NewStub builds a Stub with the given capability bounds.
func NewStub(caps Capabilities) *Stub {
	return &Stub{Caps: caps}
}

// Init implements DES.
func (s *Stub) Init(cpu int, onInterrupt func(cpu int)) (Capabilities, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cpu = cpu
	s.onInterrupt = onInterrupt
	return s.Caps, nil
}

// Enable implements DES.
func (s *Stub) Enable(on bool) error { return nil }

// SetArmError makes the next Arm call (and every subsequent one until
// cleared) fail, modeling spec §7's ArmFailed.
func (s *Stub) SetArmError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.armErr = err
}

// Arm implements DES.
func (s *Stub) Arm(ldistNs uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.armErr != nil {
		return s.armErr
	}
	s.ltime = s.TBI + ldistNs
	s.eventHappened = false
	s.armed = true
	return nil
}

// Fire invokes the onInterrupt callback registered at Init, as a real
// device's interrupt would, and marks the event as attributable whenever an
// event is armed; an earlier SetEventHappened(false) does not prevent that. cpu is
// the CPU the simulated interrupt fired on, which tests can set to a value
// other than the CPU passed to Init to script spec §8 scenario 3 (a wrong-CPU
// interrupt).
func (s *Stub) Fire(cpu int) {
	s.mu.Lock()
	cb := s.onInterrupt
	if s.armed {
		s.eventHappened = true
	}
	s.armed = false
	s.mu.Unlock()
	if cb != nil {
		cb(cpu)
	}
}

// SetEventHappened sets the attribution result EventHasHappened reports. Arm
// resets it to false and Fire sets it to true while an event is armed, so it
// does not make the interrupt of an armed event read as a spurious wake.
func (s *Stub) SetEventHappened(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eventHappened = v
}

// SetLaunchTime overrides the absolute launch time Arm would otherwise
// compute, for tests that need an out-of-window ltime (spec §8 invariant 1).
func (s *Stub) SetLaunchTime(t uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ltime = t
}

// EventHasHappened implements DES.
func (s *Stub) EventHasHappened() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eventHappened
}

// GetLaunchTime implements DES.
func (s *Stub) GetLaunchTime() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ltime
}

// GetTimeBeforeIdle implements DES.
func (s *Stub) GetTimeBeforeIdle() (uint64, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.TBI, s.TBIAdj
}

// GetTimeAfterIdle implements DES.
func (s *Stub) GetTimeAfterIdle() (uint64, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.TAI, s.TAIAdj
}

// GetIntrTime implements DES.
func (s *Stub) GetIntrTime() (uint64, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.TIntr, s.TIntrAdj
}

// SetTraceData sets the fields the next TraceData call will return.
func (s *Stub) SetTraceData(fields []TraceField) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trace = fields
}

// TraceData implements DES.
func (s *Stub) TraceData() []TraceField {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trace
}
