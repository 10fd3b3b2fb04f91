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
// Package tracer implements the idle-entry/idle-exit instrumentation state
// machine of spec §4.3: before_idle/after_idle/in_interrupt, the per-
// iteration Datapoint they fill, and the SendData emission pipeline.
//
// The progressive-fill-then-emit shape is grounded on the teacher's
// analysis/sched_thread_span.go / sched_thread_transition.go, where a
// single mutable struct accumulates sequential transitions and is later
// closed out into an emitted span; wult's three hot-paths play the role of
// those transitions, and SendData plays the role of closing the span out.
package tracer

import (
	"sync/atomic"
	"time"

	log "github.com/golang/glog"

	"github.com/intel/wult-go/csi"
	"github.com/intel/wult-go/des"
	"github.com/intel/wult-go/errs"
	"github.com/intel/wult-go/record"
)

// ExitCState is the sentinel requested-C-state value marking idle-exit in
// the idle notification stream (spec §4.3).
const ExitCState uint32 = ^uint32(0)

// PerfReader reads the APERF/MPERF-style instantaneous performance
// counters used to compute CPU frequency from a datapoint (spec §3's
// ai_aperf/intr_aperf/ai_mperf/intr_mperf fields). It is distinct from the
// csi package's active-cycle counter, which accumulates residency rather
// than an instantaneous frequency sample.
type PerfReader interface {
	ReadAperf() uint64
	ReadMperf() uint64
}

// SMINMIReader reads the running SMI/NMI counts for the measured CPU.
type SMINMIReader interface {
	Read() (smi, nmi uint64)
}

// Clock returns a monotonically increasing nanosecond timestamp.
type Clock func() uint64

// Tracer drives the three-phase measurement state machine for one CPU.
type Tracer struct {
	cpu  int
	csi  *csi.Registry
	des  des.DES
	sink record.Sink
	now  Clock
	perf PerfReader
	smi  SMINMIReader

	enabled       atomic.Bool
	armed         atomic.Bool
	eventHappened atomic.Bool
	// biFinished is touched only from the idle-notification stream, which
	// is single-threaded by construction (spec §4.3), so it needs no
	// synchronization of its own.
	biFinished bool

	eventsArmed    atomic.Uint64
	eventsHappened atomic.Uint64
	earlyIntr      atomic.Bool
	dp             Datapoint

	// wrongCPU latches a fatal WrongCpu condition once InInterrupt observes
	// an interrupt attributed to a CPU other than t.cpu (spec §8 scenario 3).
	// It is cleared only by Enable(true), so the condition survives until
	// the engine explicitly restarts the tracer.
	wrongCPU    atomic.Bool
	wrongCPUCPU atomic.Int32
}

// New builds a Tracer for the given CPU.
func New(cpu int, registry *csi.Registry, d des.DES, sink record.Sink, now Clock, perf PerfReader, smi SMINMIReader) *Tracer {
	return &Tracer{cpu: cpu, csi: registry, des: d, sink: sink, now: now, perf: perf, smi: smi}
}

// ResetCounters zeroes events_armed/events_happened, matching spec §4.5's
// enable transition ("zero events_armed and events_happened").
func (t *Tracer) ResetCounters() {
	t.eventsArmed.Store(0)
	t.eventsHappened.Store(0)
}

// clockBase anchors SystemClock; time.Since measures from it using Go's
// monotonic clock reading.
var clockBase = time.Now()

// SystemClock is a Clock backed by the monotonic clock, counting nanoseconds
// since package initialisation, suitable as a default when no test clock is
// injected.
func SystemClock() uint64 {
	return uint64(time.Since(clockBase))
}

// NopPerf is a PerfReader fallback that reports no frequency information.
// Used when the engine has no platform-specific APERF/MPERF backend wired
// in (see DESIGN.md: no third-party MSR-reading library exists in the
// retrieval pack, the same gap csi.CounterReader documents).
type NopPerf struct{}

func (NopPerf) ReadAperf() uint64 { return 0 }
func (NopPerf) ReadMperf() uint64 { return 0 }

// NopSMINMI is a SMINMIReader fallback that reports no SMI/NMI activity.
type NopSMINMI struct{}

func (NopSMINMI) Read() (uint64, uint64) { return 0, 0 }

// SetEarlyIntr stores the early_intr mode. before_idle does not read it, so
// setting it does not change how an iteration is measured.
func (t *Tracer) SetEarlyIntr(v bool) { t.earlyIntr.Store(v) }

// Enable attaches or detaches the DES's probes/interrupt handlers through
// des.Enable. It does not subscribe to an idle-notification source and does
// not touch the record sink: idle entry/exit reaches the tracer only through
// Consume calls. Disabling also clears any in-flight armed state so a stale event cannot
// be attributed after re-enabling.
func (t *Tracer) Enable(on bool) error {
	if err := t.des.Enable(on); err != nil {
		return err
	}
	t.enabled.Store(on)
	if on {
		t.ResetCounters()
		t.wrongCPU.Store(false)
	} else {
		t.armed.Store(false)
		t.eventHappened.Store(false)
		t.biFinished = false
	}
	return nil
}

// EventsArmed returns the number of events armed so far (spec §4.4's
// events_armed atomic).
func (t *Tracer) EventsArmed() uint64 { return t.eventsArmed.Load() }

// EventsHappened returns the number of interrupts observed so far (spec
// §4.4's events_happened atomic).
func (t *Tracer) EventsHappened() uint64 { return t.eventsHappened.Load() }

// FatalErr returns the latched WrongCpu error if InInterrupt has ever
// observed an interrupt attributed to a CPU other than this tracer's, or
// nil otherwise. The armer checks this after every wait and, if non-nil,
// disables the engine (spec §7: WrongCpu is not drop-and-continue).
func (t *Tracer) FatalErr() error {
	if !t.wrongCPU.Load() {
		return nil
	}
	return errs.WrongCPU("tracer: interrupt attributed to cpu %d, want %d", t.wrongCPUCPU.Load(), t.cpu)
}

// ArmEvent zeroes the datapoint, arms the DES, and bumps events_armed
// (spec §4.3's "armer.arm_event()" box, and spec §3's "the datapoint is
// zeroed by arm_event").
func (t *Tracer) ArmEvent(ldistNs uint64) error {
	t.dp = Datapoint{}
	t.armed.Store(true)
	t.eventHappened.Store(false)
	t.biFinished = false
	if err := t.des.Arm(ldistNs); err != nil {
		t.armed.Store(false)
		return errs.ArmFailed("failed to arm a delayed event %d nsec away: %v", ldistNs, err)
	}
	t.dp.LDist = ldistNs
	t.eventsArmed.Add(1)
	return nil
}

// beforeIdle is the before_idle hot-path (spec §4.3): it must not block,
// allocate, or take locks.
func (t *Tracer) beforeIdle(reqCState uint32) {
	smi, nmi := t.smi.Read()
	t.dp.SMIBI = smi
	t.dp.NMIBI = nmi
	t.dp.BIMono = t.now()

	t.csi.SnapCStates(0)
	t.csi.SnapReference(0)
	t.csi.SnapActive(0)
	t.dp.BITSC = t.csi.Reference(0)

	t.dp.ReqCState = reqCState
	t.dp.TBI, t.dp.TBIAdj = t.des.GetTimeBeforeIdle()
}

// Consume processes one idle-notification token (requested_cstate, cpu),
// implementing spec §4.3's cpu_idle_hook / tracepoint callback. reqCState
// is ExitCState to mark idle-exit.
func (t *Tracer) Consume(reqCState uint32, cpu int) {
	if !t.enabled.Load() || cpu != t.cpu {
		return
	}
	if reqCState == ExitCState {
		if t.biFinished {
			t.afterIdle()
		}
		t.biFinished = false
		return
	}
	if t.armed.Load() {
		t.beforeIdle(reqCState)
		t.biFinished = true
	}
}

// afterIdle is the after_idle hot-path.
func (t *Tracer) afterIdle() {
	t.dp.AITS1 = t.now()
	t.dp.TAI, t.dp.TAIAdj = t.des.GetTimeAfterIdle()
	t.dp.AIAperf = t.perf.ReadAperf()
	t.dp.AIMperf = t.perf.ReadMperf()

	if t.armed.CompareAndSwap(true, false) {
		// after_idle saw the counters first: the C-state entered kept
		// IRQs masked through the whole idle episode.
		t.csi.SnapActive(1)
		t.csi.SnapReference(1)
		happened := t.des.EventHasHappened()
		t.eventHappened.Store(happened)
		if happened {
			t.eventsHappened.Add(1)
		}
		t.dp.IRQsDisabled = true
	}
	t.dp.AITS2 = t.now()
}

// InInterrupt is the in_interrupt hot-path, invoked by the DES from
// interrupt context (its onInterrupt callback) with the CPU the interrupt
// fired on. A mismatch against this tracer's CPU is spec §8 scenario 3: it
// latches a fatal WrongCpu condition (see FatalErr) instead of attributing
// the event, so the armer can disable the engine rather than silently
// recording a datapoint for the wrong CPU.
func (t *Tracer) InInterrupt(cpu int) {
	if !t.enabled.Load() {
		return
	}
	if cpu != t.cpu {
		t.wrongCPUCPU.Store(int32(cpu))
		t.wrongCPU.Store(true)
		return
	}
	t.dp.IntrTS1 = t.now()
	t.dp.TIntr, t.dp.TIntrAdj = t.des.GetIntrTime()
	t.dp.IntrAperf = t.perf.ReadAperf()
	t.dp.IntrMperf = t.perf.ReadMperf()

	if t.armed.CompareAndSwap(true, false) {
		// in_interrupt saw the counters first: the interrupt fired
		// before idle-exit was observed (e.g. a poll-style C-state).
		t.csi.SnapActive(2)
		t.csi.SnapReference(2)
		happened := t.des.EventHasHappened()
		t.eventHappened.Store(happened)
		if happened {
			t.eventsHappened.Add(1)
		}
		t.dp.IRQsDisabled = false
	} else if !t.eventHappened.Load() && t.des.EventHasHappened() {
		// after_idle claimed the counters before the event was
		// attributable (IRQs stayed masked through idle); this interrupt
		// is what confirms the wake-up was ours.
		t.eventHappened.Store(true)
		t.eventsHappened.Add(1)
	}
	t.dp.IntrTS2 = t.now()

	// SMI/NMI counters are used to detect whether an SMI/NMI interrupted
	// the measurement itself, so they must be read last.
	smi, nmi := t.smi.Read()
	t.dp.SMIIntr = smi
	t.dp.NMIIntr = nmi
}

// SendData implements spec §4.3's emission pipeline. It returns
// (true, nil) if a record was submitted, (false, nil) if the datapoint was
// silently dropped (spurious wake or out-of-window launch time), and
// (false, err) if a CounterMisorder or SinkBackpressure error occurred.
// Precondition (enforced by the armer): the event has been observed, i.e.
// armed is false.
func (t *Tracer) SendData() (bool, error) {
	if !t.eventHappened.Load() {
		// The wake-up was not attributable to our armed event: drop
		// silently and keep measuring (spec §7's SpuriousWake).
		return false, nil
	}

	ltime := t.des.GetLaunchTime()
	t.dp.LTime = ltime
	if ltime <= t.dp.TBI || ltime >= t.dp.TAI || ltime >= t.dp.TIntr {
		log.Warningf("tracer: dropping out-of-window datapoint (tbi=%d ltime=%d tai=%d tintr=%d)", t.dp.TBI, ltime, t.dp.TAI, t.dp.TIntr)
		return false, nil
	}

	slot := 2
	if t.dp.IRQsDisabled {
		slot = 1
	}
	t.csi.SnapCStates(slot)
	deltas, err := t.csi.Calc(0, slot)
	if err != nil {
		// csi.Calc already returns a typed errs.CounterMisorder.
		return false, err
	}

	rec := t.buildRecord(deltas)
	if err := t.sink.Submit(rec); err != nil {
		return false, err
	}
	return true, nil
}

func (t *Tracer) buildRecord(deltas csi.Deltas) *record.Record {
	rec := &record.Record{
		LDist: t.dp.LDist, LTime: t.dp.LTime,
		TBI: t.dp.TBI, TBIAdj: t.dp.TBIAdj,
		TAI: t.dp.TAI, TAIAdj: t.dp.TAIAdj,
		TIntr: t.dp.TIntr, TIntrAdj: t.dp.TIntrAdj,
		ReqCState: t.dp.ReqCState,
		AITS1:     t.dp.AITS1, AITS2: t.dp.AITS2,
		IntrTS1: t.dp.IntrTS1, IntrTS2: t.dp.IntrTS2,
		TotCyc: deltas.DTsc, CC0Cyc: deltas.DMperf,
		SMICnt: t.dp.SMIIntr - t.dp.SMIBI,
		NMICnt: t.dp.NMIIntr - t.dp.NMIBI,
		AIAperf: t.dp.AIAperf, IntrAperf: t.dp.IntrAperf,
		AIMperf: t.dp.AIMperf, IntrMperf: t.dp.IntrMperf,
		BICyc: t.dp.BITSC, BIMonotonic: t.dp.BIMono,
	}
	for _, c := range t.csi.Entries() {
		if c.Absent {
			continue
		}
		rec.CStateCyc = append(rec.CStateCyc, record.NamedValue{Name: c.Name, Value: deltas.DCyc[c.Name]})
	}
	for _, f := range t.des.TraceData() {
		rec.Trace = append(rec.Trace, record.NamedValue{Name: f.Name, Value: f.Value})
	}
	return rec
}
