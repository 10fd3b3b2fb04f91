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
// Package armer implements the pinned measurement control loop of spec §4.4:
// one goroutine, locked to the measured CPU's OS thread for its entire
// lifetime, that repeatedly picks a random launch distance, arms the tracer,
// waits for the event to fire, validates the outcome, and emits.
//
// The OS-thread-pinning shape is grounded on the other_examples ublk queue
// runner's ioLoop: runtime.LockOSThread() followed by
// unix.SchedSetaffinity, used there because the ublk driver requires one
// fixed thread per queue; wult needs the analogous guarantee that the
// armer's wait/arm/emit sequence always observes the same CPU's counters.
package armer

import (
	"context"
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/golang/glog"

	"github.com/intel/wult-go/errs"
)

// Tracer is the subset of *tracer.Tracer the armer drives. Declared locally
// (rather than importing the concrete type) so armer tests can inject a
// fake without constructing a real CSI/DES pair.
type Tracer interface {
	ArmEvent(ldistNs uint64) error
	EventsArmed() uint64
	EventsHappened() uint64
	SendData() (bool, error)
	// FatalErr returns a non-nil error once the tracer has latched a fatal
	// condition (e.g. WrongCpu from an interrupt attributed to the wrong
	// CPU, spec §8 scenario 3) that must disable the engine rather than
	// drop-and-continue.
	FatalErr() error
}

// Config is the subset of launch-distance configuration the armer reads on
// every iteration. Implementations must be safe to call concurrently with
// engine configuration writes (spec §4.5 serializes writes under the enable
// mutex, but the armer reads without taking it, tolerating a stale read for
// one iteration).
type Config interface {
	LdistRange() (from, to, gran uint64)
}

// Armer drives one measurement iteration at a time on a single pinned CPU.
type Armer struct {
	cpu    int
	tracer Tracer
	cfg    Config
	rng    *rand.Rand

	mu      sync.Mutex
	enabled bool
	cond    *sync.Cond
	stopped bool

	emitted atomic.Uint64
	drops   atomic.Uint64
}

// New builds an Armer for the given CPU.
func New(cpu int, tracer Tracer, cfg Config) *Armer {
	a := &Armer{cpu: cpu, tracer: tracer, cfg: cfg, rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
	a.cond = sync.NewCond(&a.mu)
	return a
}

// Emitted returns the number of records successfully emitted so far.
func (a *Armer) Emitted() uint64 { return a.emitted.Load() }

// Drops returns the number of iterations that ended without emitting
// (spurious wakes, out-of-window launch times, counter misorders).
func (a *Armer) Drops() uint64 { return a.drops.Load() }

// SetEnabled flips the armer's enabled flag and wakes it if it is parked
// waiting on the condition variable (spec §4.5's "wake the armer").
func (a *Armer) SetEnabled(on bool) {
	a.mu.Lock()
	a.enabled = on
	a.mu.Unlock()
	a.cond.Broadcast()
}

// Stop requests the loop to exit at its next suspension point.
func (a *Armer) Stop() {
	a.mu.Lock()
	a.stopped = true
	a.mu.Unlock()
	a.cond.Broadcast()
}

// Run executes the armer loop until Stop is called or ctx is cancelled. It
// is meant to run on its own goroutine for the engine's lifetime.
func (a *Armer) Run(ctx context.Context) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	pinToCPU(a.cpu)
	stopOnCancel := context.AfterFunc(ctx, a.Stop)
	defer stopOnCancel()

	for {
		if !a.waitEnabled(ctx) {
			return
		}
		if err := a.iterate(); err != nil {
			log.Errorf("armer: iteration failed on cpu %d, disabling: %v", a.cpu, err)
			a.mu.Lock()
			a.enabled = false
			a.mu.Unlock()
		}
	}
}

// waitEnabled blocks until enabled becomes true, a stop is requested, or ctx
// is cancelled. It returns false if the loop should exit.
func (a *Armer) waitEnabled(ctx context.Context) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for !a.enabled && !a.stopped {
		if ctx.Err() != nil {
			return false
		}
		a.cond.Wait()
	}
	return !a.stopped
}

// iterate runs steps 2-9 of spec §4.4's algorithm once.
func (a *Armer) iterate() error {
	if a.cpu >= 0 {
		if cpu := currentCPU(); cpu >= 0 && cpu != a.cpu {
			return errs.WrongCPU("armer: running on cpu %d, want %d", cpu, a.cpu)
		}
	}

	before := a.tracer.EventsHappened()
	from, to, gran := a.cfg.LdistRange()
	ldist := pickLdist(a.rng, from, to, gran)

	if err := a.tracer.ArmEvent(ldist); err != nil {
		return err
	}
	armed := a.tracer.EventsArmed()

	deadline := time.Duration(ldist)*time.Nanosecond + time.Second
	if !a.waitForEvent(before, deadline) {
		if err := a.tracer.FatalErr(); err != nil {
			return err
		}
		return errs.Timeout("armer: event did not fire within %s", deadline)
	}

	if err := a.tracer.FatalErr(); err != nil {
		return err
	}

	if a.tracer.EventsArmed() != a.tracer.EventsHappened() || armed != a.tracer.EventsArmed() {
		return errs.WrongCPU("armer: events_armed/events_happened mismatch after wait")
	}

	a.mu.Lock()
	enabled := a.enabled
	a.mu.Unlock()
	if !enabled {
		return nil
	}

	emitted, err := a.tracer.SendData()
	if err != nil {
		// CounterMisorder and similar drop-and-continue errors are logged
		// and swallowed here (spec §7): only arm/timeout/wrong-cpu
		// failures propagate to disable the engine.
		log.Warningf("armer: send_data dropped a datapoint: %v", err)
		a.drops.Add(1)
		return nil
	}
	if emitted {
		a.emitted.Add(1)
	} else {
		a.drops.Add(1)
	}
	return nil
}

// waitForEvent polls events_happened until it advances past before or the
// deadline elapses. A short poll interval stands in for the atomic-backed
// condition variable of spec §5: the armer's only two suspension points are
// this wait, which is bounded by deadline, and waitEnabled.
func (a *Armer) waitForEvent(before uint64, deadline time.Duration) bool {
	timer := time.NewTimer(deadline)
	defer timer.Stop()
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for {
		if a.tracer.EventsHappened() > before || a.tracer.FatalErr() != nil {
			return true
		}
		select {
		case <-timer.C:
			return a.tracer.EventsHappened() > before || a.tracer.FatalErr() != nil
		case <-ticker.C:
		}
	}
}

// pickLdist implements spec §4.4's random policy: uniform over
// [from, to], quantized up to a multiple of gran. If from > to the range
// collapses to to.
func pickLdist(rng *rand.Rand, from, to, gran uint64) uint64 {
	if from > to {
		from = to
	}
	var x uint64
	if to == from {
		x = from
	} else {
		x = from + uint64(rng.Int63n(int64(to-from+1)))
	}
	return quantizeUp(x, gran)
}

// quantizeUp rounds x up to the nearest multiple of gran. gran == 0 or 1
// disables quantization (spec §8's boundary behaviour).
func quantizeUp(x, gran uint64) uint64 {
	if gran <= 1 {
		return x
	}
	rem := x % gran
	if rem == 0 {
		return x
	}
	return x + (gran - rem)
}
