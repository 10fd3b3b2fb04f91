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

// Deadline is the TSC-deadline-timer DES variant (spec §4.2): the kernel's
// hrtimer layer is used to actually arm the event, but ltime is re-read from
// the multiplexed deadline register at before_idle, since whatever deadline
// is loaded there is the one actually being measured. Attribution succeeds
// iff the register reads zero after wake, the register read at before_idle
// was nonzero, and the clock has passed that deadline.
type Deadline struct {
	now  func() uint64
	gran uint64

	mu          sync.Mutex
	cpu         int
	onInterrupt func(cpu int)
	// register models the architectural deadline register, shared (in the
	// real hardware) across every client that arms it. Zero means "no
	// deadline pending / already fired".
	register uint64
	// beforeIdleDeadline is the register value observed the last time
	// GetTimeBeforeIdle was called (i.e. at before_idle).
	beforeIdleDeadline uint64
	armed              bool
	timer              *time.Timer
}

// NewDeadline builds a Deadline DES variant.
func NewDeadline(now func() uint64, gran uint64) *Deadline {
	return &Deadline{now: now, gran: gran}
}

// Init implements DES.
func (d *Deadline) Init(cpu int, onInterrupt func(cpu int)) (Capabilities, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cpu = cpu
	d.onInterrupt = onInterrupt
	return Capabilities{LdistMin: d.gran, LdistMax: uint64(10 * time.Second), LdistGran: d.gran}, nil
}

// Enable implements DES.
func (d *Deadline) Enable(on bool) error {
	if on {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.armed = false
	d.register = 0
	return nil
}

// Arm implements DES: loads the deadline register and schedules the
// hrtimer that will actually fire the wake-up.
func (d *Deadline) Arm(ldistNs uint64) error {
	d.mu.Lock()
	d.register = d.now() + ldistNs
	d.armed = true
	d.timer = time.AfterFunc(time.Duration(ldistNs), d.fire)
	d.mu.Unlock()
	return nil
}

func (d *Deadline) fire() {
	d.mu.Lock()
	// The deadline was reached: the register reads zero from here on.
	d.register = 0
	d.armed = false
	cb, cpu := d.onInterrupt, d.cpu
	d.mu.Unlock()
	if cb != nil {
		cb(cpu)
	}
}

// GetTimeBeforeIdle implements DES, and also latches the currently-loaded
// deadline register so GetLaunchTime can later report it.
func (d *Deadline) GetTimeBeforeIdle() (uint64, uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.beforeIdleDeadline = d.register
	return d.now(), 0
}

// GetTimeAfterIdle implements DES.
func (d *Deadline) GetTimeAfterIdle() (uint64, uint64) { return d.now(), 0 }

// GetIntrTime implements DES.
func (d *Deadline) GetIntrTime() (uint64, uint64) { return d.now(), 0 }

// EventHasHappened implements DES, per the attribution rule in spec §4.2.
func (d *Deadline) EventHasHappened() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.register == 0 && d.beforeIdleDeadline != 0 && d.now() >= d.beforeIdleDeadline
}

// GetLaunchTime implements DES: returns the deadline observed at
// before_idle, which is whichever deadline was actually loaded.
func (d *Deadline) GetLaunchTime() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.beforeIdleDeadline
}

// TraceData implements DES; the deadline-timer variant has no extra fields.
func (d *Deadline) TraceData() []TraceField { return nil }
