package des

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestMonotonicArmAndFire(t *testing.T) {
	var clock int64
	now := func() uint64 { return uint64(atomic.LoadInt64(&clock)) }
	m := NewMonotonic(now, 1)
	caps, err := m.Init(0, nil)
	if err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	if caps.LdistGran != 1 {
		t.Errorf("LdistGran = %d, want 1", caps.LdistGran)
	}

	var fired int32
	m.onInterrupt = func(cpu int) { atomic.StoreInt32(&fired, 1) }
	if err := m.Arm(uint64(time.Millisecond.Nanoseconds())); err != nil { // small real duration for a fast test
		t.Fatalf("Arm() error: %v", err)
	}
	if !m.armed {
		t.Fatalf("expected armed after Arm()")
	}

	deadline := time.Now().Add(time.Second)
	for atomic.LoadInt32(&fired) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if atomic.LoadInt32(&fired) == 0 {
		t.Fatalf("timer never fired")
	}
	if !m.EventHasHappened() {
		t.Errorf("EventHasHappened() = false after fire")
	}
}

func TestDeadlineAttribution(t *testing.T) {
	var clock uint64
	now := func() uint64 { return clock }
	d := NewDeadline(now, 1)
	d.Init(0, nil)

	if d.EventHasHappened() {
		t.Errorf("EventHasHappened() = true before arming")
	}
	d.register = 1000 // simulate an armed deadline without waiting on a real timer
	d.GetTimeBeforeIdle()
	if d.GetLaunchTime() != 1000 {
		t.Errorf("GetLaunchTime() = %d, want 1000", d.GetLaunchTime())
	}
	// Deadline not yet reached.
	clock = 500
	if d.EventHasHappened() {
		t.Errorf("EventHasHappened() = true before deadline reached")
	}
	// Deadline reached: register clears, clock passes it.
	d.register = 0
	clock = 1500
	if !d.EventHasHappened() {
		t.Errorf("EventHasHappened() = false after deadline reached")
	}
}

func TestNICLatchAdj(t *testing.T) {
	reads := []uint64{100, 106}
	i := 0
	n := NewNIC(func() uint64 {
		v := reads[i]
		if i < len(reads)-1 {
			i++
		}
		return v
	}, 1)
	n.Init(0, nil)
	tm, adj := n.GetTimeBeforeIdle()
	if tm != 106 {
		t.Errorf("latch time = %d, want 106", tm)
	}
	if adj != 9 { // span=6, 6/2+6=9
		t.Errorf("latch adj = %d, want 9", adj)
	}
}
