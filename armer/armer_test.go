package armer

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"google.golang.org/grpc/codes"

	"github.com/intel/wult-go/errs"
)

type fakeTracer struct {
	armed    atomic.Uint64
	happened atomic.Uint64
	armErr   error
	sendEmit bool
	sendErr  error

	mu       sync.Mutex
	fatalErr error
}

func (f *fakeTracer) ArmEvent(ldistNs uint64) error {
	if f.armErr != nil {
		return f.armErr
	}
	f.armed.Add(1)
	return nil
}
func (f *fakeTracer) EventsArmed() uint64     { return f.armed.Load() }
func (f *fakeTracer) EventsHappened() uint64  { return f.happened.Load() }
func (f *fakeTracer) SendData() (bool, error) { return f.sendEmit, f.sendErr }
func (f *fakeTracer) fire()                   { f.happened.Add(1) }

func (f *fakeTracer) FatalErr() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fatalErr
}

// setFatalErr latches a fatal error, as Tracer.InInterrupt would on a
// wrong-CPU interrupt (spec §8 scenario 3).
func (f *fakeTracer) setFatalErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fatalErr = err
}

type fakeConfig struct {
	from, to, gran uint64
}

func (c *fakeConfig) LdistRange() (uint64, uint64, uint64) { return c.from, c.to, c.gran }

// TestCleanIterationEmits covers spec §8 scenario 1: a config with
// from==to produces one emitted record once the fake tracer reports the
// event fired.
func TestCleanIterationEmits(t *testing.T) {
	tr := &fakeTracer{sendEmit: true}
	cfg := &fakeConfig{from: 1000, to: 1000, gran: 1}
	a := New(-1, tr, cfg) // -1: currentCPU() check is skipped for cpu < 0
	a.SetEnabled(true)

	go func() {
		time.Sleep(5 * time.Millisecond)
		tr.fire()
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.Run(ctx)

	deadline := time.After(2 * time.Second)
	for a.Emitted() == 0 {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for emission, drops=%d", a.Drops())
		case <-time.After(time.Millisecond):
		}
	}
	a.Stop()
}

// TestTimeoutReturnsError covers spec §8 scenario 4: the fake tracer never
// fires, so the iteration must fail with Timeout once its ldist+1s deadline
// passes (a tiny ldist keeps that deadline close to 1s).
func TestTimeoutReturnsError(t *testing.T) {
	tr := &fakeTracer{sendEmit: true}
	cfg := &fakeConfig{from: 1, to: 1, gran: 1} // ldist=1ns -> deadline ~= 1s
	a := New(-1, tr, cfg)

	start := time.Now()
	err := a.iterate()
	if !errs.Is(err, codes.DeadlineExceeded) {
		t.Fatalf("iterate() error = %v, want Timeout", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("iterate() took %s, want well under 3s", elapsed)
	}
}

// TestWrongCPUDisablesEngine covers spec §8 scenario 3: a target CPU this
// process can never actually be scheduled on must fail fast with WrongCpu.
func TestWrongCPUDisablesEngine(t *testing.T) {
	tr := &fakeTracer{sendEmit: true}
	cfg := &fakeConfig{from: 100, to: 100, gran: 1}
	a := New(999999, tr, cfg)

	err := a.iterate()
	if err == nil {
		t.Fatalf("iterate() error = nil, want WrongCpu")
	}
	if !errs.Is(err, codes.FailedPrecondition) {
		t.Fatalf("iterate() error = %v, want WrongCpu (FailedPrecondition)", err)
	}
}

// TestFatalErrFromTracerDisablesEngine covers spec §8 scenario 3's
// propagation half: once the tracer itself latches a fatal WrongCpu error
// (as Tracer.InInterrupt does for an interrupt on the wrong CPU), iterate
// must surface it rather than wait out the full timeout or swallow it like
// a drop-and-continue error.
func TestFatalErrFromTracerDisablesEngine(t *testing.T) {
	tr := &fakeTracer{sendEmit: true}
	cfg := &fakeConfig{from: 1, to: 1, gran: 1} // tiny ldist -> short deadline
	a := New(-1, tr, cfg)

	go func() {
		time.Sleep(5 * time.Millisecond)
		tr.setFatalErr(errs.WrongCPU("interrupt attributed to cpu 2, want 1"))
	}()

	start := time.Now()
	err := a.iterate()
	if !errs.Is(err, codes.FailedPrecondition) {
		t.Fatalf("iterate() error = %v, want WrongCpu (FailedPrecondition)", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("iterate() took %s, want well under the 1s+ timeout deadline", elapsed)
	}
}

func TestPickLdistQuantizes(t *testing.T) {
	rng := deterministicRand(1)
	for i := 0; i < 50; i++ {
		v := pickLdist(rng, 100, 200, 7)
		if v < 100 || v%7 != 0 {
			t.Fatalf("pickLdist() = %d, want multiple of 7 >= 100", v)
		}
	}
}

func TestPickLdistCollapsesInvertedRange(t *testing.T) {
	rng := deterministicRand(2)
	if v := pickLdist(rng, 500, 100, 1); v != 100 {
		t.Errorf("pickLdist(500,100,1) = %d, want 100", v)
	}
}

func TestQuantizeUpGranOneIsIdentity(t *testing.T) {
	if quantizeUp(123, 1) != 123 {
		t.Errorf("quantizeUp(123,1) changed value")
	}
	if quantizeUp(123, 0) != 123 {
		t.Errorf("quantizeUp(123,0) changed value")
	}
}
