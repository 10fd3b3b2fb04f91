package csi

import "errors"

// fakeReader is a deterministic CounterReader used by tests, returning
// successive values from a fixed sequence.
type fakeReader struct {
	vals []uint64
	i    int
	err  error
}

func (f *fakeReader) Read() (uint64, error) {
	if f.err != nil {
		return 0, f.err
	}
	if f.i >= len(f.vals) {
		return f.vals[len(f.vals)-1], nil
	}
	v := f.vals[f.i]
	f.i++
	return v, nil
}

var errRead = errors.New("read failed")
