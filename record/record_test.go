package record

import (
	"testing"
)

func TestFormatCount(t *testing.T) {
	f := NewFormat([]string{"CC1", "CC6"}, []string{"NICClockNs"})
	want := len(commonFields) + 2 + 1
	if f.Count() != want {
		t.Errorf("Count() = %d, want %d", f.Count(), want)
	}
}

func TestEncodeRoundTripLength(t *testing.T) {
	f := NewFormat([]string{"CC1"}, nil)
	enc := NewEncoder(f)
	r := &Record{
		LDist: 1000, LTime: 2000, ReqCState: 3,
		CStateCyc: []NamedValue{{Name: "CC1", Value: 42}},
	}
	buf, err := enc.Encode(nil, r)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	wantLen := 0
	for _, fld := range f.Fields {
		wantLen += fld.Size
	}
	if len(buf) != wantLen {
		t.Errorf("encoded length = %d, want %d", len(buf), wantLen)
	}
}

func TestChanSinkBackpressure(t *testing.T) {
	s := NewChanSink(1)
	if err := s.Submit(&Record{}); err != nil {
		t.Fatalf("first Submit() error: %v", err)
	}
	if err := s.Submit(&Record{}); err == nil {
		t.Fatalf("second Submit() expected SinkBackpressure, got nil")
	}
	if s.Overflows != 1 {
		t.Errorf("Overflows = %d, want 1", s.Overflows)
	}
}
