package tracer

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/intel/wult-go/csi"
	"github.com/intel/wult-go/des"
	"github.com/intel/wult-go/errs"
	"github.com/intel/wult-go/record"
	"google.golang.org/grpc/codes"
)

type fakeSink struct {
	records []*record.Record
}

func (s *fakeSink) Submit(r *record.Record) error {
	s.records = append(s.records, r)
	return nil
}

// newTestRegistry builds a one-counter registry. Each reader hands out its
// values in order: csi.New's probe read takes the first, before_idle's
// slot-0 snapshot the second, and the post-idle snapshot the third.
func newTestRegistry(tscVals, mperfVals, cc6Vals []uint64) *csi.Registry {
	descs := []csi.CounterDesc{
		{Name: "CC6", IsCore: true, Reader: &fakeCounter{vals: cc6Vals}},
	}
	return csi.New(&fakeCounter{vals: tscVals}, &fakeCounter{vals: mperfVals}, descs)
}

func newTestTracer(reg *csi.Registry, stub *des.Stub, sink record.Sink) *Tracer {
	return New(0, reg, stub, sink, func() uint64 { return 0 }, &fakePerf{aperf: 1, mperf: 2}, &fakeSMINMI{})
}

// TestDeepIdleEmitsRecord covers the deep-C-state path of spec §8's clean
// iteration scenario: IRQs stay masked through idle, so after_idle wins the
// slot-1/slot-2 race and claims attribution before the interrupt handler
// runs.
func TestDeepIdleEmitsRecord(t *testing.T) {
	reg := newTestRegistry([]uint64{1000, 1000, 2000}, []uint64{500, 500, 700}, []uint64{50, 50, 350})
	stub := des.NewStub(des.Capabilities{})
	stub.TBI, stub.TAI, stub.TIntr = 1000, 2000, 2100
	sink := &fakeSink{}
	tr := newTestTracer(reg, stub, sink)
	if _, err := stub.Init(0, tr.InInterrupt); err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	if err := tr.Enable(true); err != nil {
		t.Fatalf("Enable() error: %v", err)
	}

	if err := tr.ArmEvent(500); err != nil {
		t.Fatalf("ArmEvent() error: %v", err)
	}
	tr.Consume(3, 0)          // before_idle
	tr.Consume(ExitCState, 0) // after_idle claims the race
	stub.Fire(0)              // interrupt handler runs after, too late to claim

	emitted, err := tr.SendData()
	if err != nil {
		t.Fatalf("SendData() error: %v", err)
	}
	if !emitted {
		t.Fatalf("SendData() = false, want true")
	}
	if len(sink.records) != 1 {
		t.Fatalf("sink got %d records, want 1", len(sink.records))
	}
	got := sink.records[0]
	if got.TotCyc != 1000 || got.CC0Cyc != 200 {
		t.Errorf("TotCyc=%d CC0Cyc=%d, want 1000, 200", got.TotCyc, got.CC0Cyc)
	}
	want := []record.NamedValue{{Name: "CC6", Value: 300}}
	if diff := cmp.Diff(want, got.CStateCyc); diff != "" {
		t.Errorf("CStateCyc diff (-want +got):\n%s", diff)
	}
}

// TestPollIdleEmitsRecord covers the shallow/poll-style path: IRQs stay
// enabled, so the interrupt handler runs and claims the race before
// idle-exit is observed.
func TestPollIdleEmitsRecord(t *testing.T) {
	reg := newTestRegistry([]uint64{1000, 1000, 2000}, []uint64{500, 500, 700}, []uint64{50, 50, 350})
	stub := des.NewStub(des.Capabilities{})
	stub.TBI, stub.TAI, stub.TIntr = 1000, 2000, 2100
	sink := &fakeSink{}
	tr := newTestTracer(reg, stub, sink)
	if _, err := stub.Init(0, tr.InInterrupt); err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	if err := tr.Enable(true); err != nil {
		t.Fatalf("Enable() error: %v", err)
	}

	if err := tr.ArmEvent(500); err != nil {
		t.Fatalf("ArmEvent() error: %v", err)
	}
	tr.Consume(3, 0) // before_idle
	stub.Fire(0)     // interrupt claims the race first
	tr.Consume(ExitCState, 0)

	emitted, err := tr.SendData()
	if err != nil {
		t.Fatalf("SendData() error: %v", err)
	}
	if !emitted {
		t.Fatalf("SendData() = false, want true")
	}
	if sink.records[0].CStateCyc[0].Value != 300 {
		t.Errorf("CStateCyc[0].Value = %d, want 300", sink.records[0].CStateCyc[0].Value)
	}
}

// TestAfterIdleSelfOverheadTimestamps covers spec §3's ai_ts1/ai_ts2 pair:
// after_idle must bracket its own work with the injected clock so a
// consumer can subtract the self-overhead from the reported wake latency.
func TestAfterIdleSelfOverheadTimestamps(t *testing.T) {
	reg := newTestRegistry([]uint64{1000, 2000}, []uint64{500, 700}, []uint64{50, 350})
	stub := des.NewStub(des.Capabilities{})
	stub.TBI, stub.TAI, stub.TIntr = 1000, 2000, 2100
	sink := &fakeSink{}
	clock := &fakeClock{vals: []uint64{10, 20, 30}} // before_idle, ai_ts1, ai_ts2
	tr := New(0, reg, stub, sink, clock.next, &fakePerf{aperf: 1, mperf: 2}, &fakeSMINMI{})
	if _, err := stub.Init(0, tr.InInterrupt); err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	if err := tr.Enable(true); err != nil {
		t.Fatalf("Enable() error: %v", err)
	}

	if err := tr.ArmEvent(500); err != nil {
		t.Fatalf("ArmEvent() error: %v", err)
	}
	tr.Consume(3, 0)          // before_idle: BIMono = 10
	tr.Consume(ExitCState, 0) // after_idle: AITS1 = 20, AITS2 = 30
	stub.Fire(0)

	if tr.dp.BIMono != 10 {
		t.Errorf("BIMono = %d, want 10", tr.dp.BIMono)
	}
	if tr.dp.AITS1 != 20 || tr.dp.AITS2 != 30 {
		t.Errorf("AITS1=%d AITS2=%d, want 20, 30", tr.dp.AITS1, tr.dp.AITS2)
	}
}

// TestSpuriousWakeDropsSilently covers spec §8 scenario 2: a wake-up not
// attributable to the armed event must be dropped with no error.
func TestSpuriousWakeDropsSilently(t *testing.T) {
	reg := newTestRegistry([]uint64{1000, 2000}, []uint64{500, 700}, []uint64{50, 350})
	stub := des.NewStub(des.Capabilities{})
	stub.TBI, stub.TAI, stub.TIntr = 1000, 2000, 2100
	sink := &fakeSink{}
	tr := newTestTracer(reg, stub, sink)
	if err := tr.Enable(true); err != nil {
		t.Fatalf("Enable() error: %v", err)
	}

	if err := tr.ArmEvent(500); err != nil {
		t.Fatalf("ArmEvent() error: %v", err)
	}
	tr.Consume(3, 0)          // before_idle
	tr.Consume(ExitCState, 0) // after_idle claims the race, but the DES
	// never actually fired, so EventHasHappened() reports false.

	emitted, err := tr.SendData()
	if err != nil {
		t.Fatalf("SendData() error: %v", err)
	}
	if emitted {
		t.Fatalf("SendData() = true, want false (spurious wake)")
	}
	if len(sink.records) != 0 {
		t.Fatalf("sink got %d records, want 0", len(sink.records))
	}
}

// TestCounterMisorderDropsRecord covers spec §8 scenario 6: a decreasing
// counter read must surface as CounterMisorder and the datapoint must not
// be emitted.
func TestCounterMisorderDropsRecord(t *testing.T) {
	reg := newTestRegistry([]uint64{2000, 2000, 1000}, []uint64{500, 500, 700}, []uint64{50, 50, 350})
	stub := des.NewStub(des.Capabilities{})
	stub.TBI, stub.TAI, stub.TIntr = 1000, 2000, 2100
	sink := &fakeSink{}
	tr := newTestTracer(reg, stub, sink)
	if _, err := stub.Init(0, tr.InInterrupt); err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	if err := tr.Enable(true); err != nil {
		t.Fatalf("Enable() error: %v", err)
	}

	if err := tr.ArmEvent(500); err != nil {
		t.Fatalf("ArmEvent() error: %v", err)
	}
	tr.Consume(3, 0)
	tr.Consume(ExitCState, 0)
	stub.Fire(0)

	emitted, err := tr.SendData()
	if emitted {
		t.Fatalf("SendData() = true, want false")
	}
	if !errs.Is(err, codes.Internal) {
		t.Fatalf("SendData() error = %v, want CounterMisorder (Internal)", err)
	}
	if len(sink.records) != 0 {
		t.Fatalf("sink got %d records, want 0", len(sink.records))
	}
}

// TestOutOfWindowLaunchTimeDrops covers spec §8 invariant 1: a launch time
// outside (tbi, min(tai, tintr)) must be dropped without error.
func TestOutOfWindowLaunchTimeDrops(t *testing.T) {
	reg := newTestRegistry([]uint64{1000, 2000}, []uint64{500, 700}, []uint64{50, 350})
	stub := des.NewStub(des.Capabilities{})
	stub.TBI, stub.TAI, stub.TIntr = 1000, 1200, 2100
	sink := &fakeSink{}
	tr := newTestTracer(reg, stub, sink)
	if _, err := stub.Init(0, tr.InInterrupt); err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	if err := tr.Enable(true); err != nil {
		t.Fatalf("Enable() error: %v", err)
	}

	if err := tr.ArmEvent(500); err != nil {
		t.Fatalf("ArmEvent() error: %v", err)
	}
	// ltime = tbi + ldist = 1000 + 500 = 1500, which falls after tai=1200.
	tr.Consume(3, 0)
	tr.Consume(ExitCState, 0)
	stub.Fire(0)

	emitted, err := tr.SendData()
	if err != nil {
		t.Fatalf("SendData() error: %v", err)
	}
	if emitted {
		t.Fatalf("SendData() = true, want false (out-of-window launch time)")
	}
}

// TestWrongCPUInterruptLatchesFatalErr covers spec §8 scenario 3: the DES
// delivers the interrupt on a CPU other than the one this tracer was bound
// to, which must latch a fatal WrongCpu error rather than attribute the
// event.
func TestWrongCPUInterruptLatchesFatalErr(t *testing.T) {
	reg := newTestRegistry([]uint64{1000, 2000}, []uint64{500, 700}, []uint64{50, 350})
	stub := des.NewStub(des.Capabilities{})
	stub.TBI, stub.TAI, stub.TIntr = 1000, 2000, 2100
	sink := &fakeSink{}
	tr := newTestTracer(reg, stub, sink) // bound to cpu 0
	if _, err := stub.Init(0, tr.InInterrupt); err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	if err := tr.Enable(true); err != nil {
		t.Fatalf("Enable() error: %v", err)
	}

	if err := tr.ArmEvent(500); err != nil {
		t.Fatalf("ArmEvent() error: %v", err)
	}
	tr.Consume(3, 0) // before_idle
	stub.Fire(2)     // interrupt delivered on cpu 2, not the target cpu 0

	if err := tr.FatalErr(); err == nil {
		t.Fatalf("FatalErr() = nil, want WrongCpu")
	} else if !errs.Is(err, codes.FailedPrecondition) {
		t.Fatalf("FatalErr() = %v, want WrongCpu (FailedPrecondition)", err)
	}
	if tr.EventsHappened() != 0 {
		t.Errorf("EventsHappened() = %d, want 0 (wrong-cpu interrupt must not attribute)", tr.EventsHappened())
	}

	// Enable(true) clears the latch so a restarted engine can measure again.
	if err := tr.Enable(true); err != nil {
		t.Fatalf("Enable() error: %v", err)
	}
	if err := tr.FatalErr(); err != nil {
		t.Errorf("FatalErr() = %v after re-enable, want nil", err)
	}
}

// TestArmEventFailurePropagates covers spec §7's ArmFailed.
func TestArmEventFailurePropagates(t *testing.T) {
	reg := newTestRegistry([]uint64{1000, 2000}, []uint64{500, 700}, []uint64{50, 350})
	stub := des.NewStub(des.Capabilities{})
	stub.SetArmError(errs.ArmFailed("device busy"))
	sink := &fakeSink{}
	tr := newTestTracer(reg, stub, sink)

	err := tr.ArmEvent(500)
	if !errs.Is(err, codes.Aborted) {
		t.Fatalf("ArmEvent() error = %v, want ArmFailed (Aborted)", err)
	}
}
