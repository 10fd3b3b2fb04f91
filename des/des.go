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
// Package des implements the delayed-event source abstraction of spec §4.2:
// a small capability set that every hardware backend (monotonic timer,
// TSC-deadline timer, NIC alarm) implements, plus a deterministic stub used
// by tracer/armer/engine tests.
//
// The capability-set-as-interface shape is grounded on the teacher's
// EventLoaders map-of-functions pattern (google-schedviz's
// analysis/sched_event_loaders.go): a small set of named behaviors bound
// once at construction time and invoked polymorphically thereafter.
package des

// TraceField is one device-specific extra field that travels with every
// datapoint (spec §4.2's optional GetTraceData).
type TraceField struct {
	Name  string
	Value uint64
}

// Capabilities describes the hardware-imposed launch-distance bounds a DES
// variant reports once it is bound to a CPU (spec §3).
type Capabilities struct {
	LdistMin  uint64
	LdistMax  uint64
	LdistGran uint64
}

// DES is the capability set required of every delayed-event source variant
// (spec §4.2).
type DES interface {
	// Init binds the device to the measured CPU and returns its
	// launch-distance bounds. onInterrupt is invoked by the device from
	// interrupt context (or its Go analogue) whenever its armed event
	// fires, with the CPU the interrupt fired on; the device must not
	// invoke it for any other reason. Passing the CPU lets the tracer
	// detect an interrupt delivered to the wrong CPU (spec §1, §7's
	// WrongCpu, §8 scenario 3) instead of silently misattributing it.
	Init(cpu int, onInterrupt func(cpu int)) (Capabilities, error)
	// Enable attaches or detaches the device's probes/interrupt handlers.
	Enable(on bool) error
	// Arm programs the next event ldistNs nanoseconds in the future.
	Arm(ldistNs uint64) error
	// GetTimeBeforeIdle reads "now" in the device's clock, plus the
	// device-reported overhead already known to be baked into t.
	GetTimeBeforeIdle() (t uint64, adj uint64)
	// GetTimeAfterIdle is the after_idle analogue of GetTimeBeforeIdle.
	GetTimeAfterIdle() (t uint64, adj uint64)
	// GetIntrTime is the in_interrupt analogue of GetTimeBeforeIdle.
	GetIntrTime() (t uint64, adj uint64)
	// EventHasHappened reports whether the most recent wake is
	// attributable to the event this device armed.
	EventHasHappened() bool
	// GetLaunchTime returns the absolute target time, in the device's
	// clock, of the most recently armed event.
	GetLaunchTime() uint64
	// TraceData returns device-specific extra fields, or nil.
	TraceData() []TraceField
}
