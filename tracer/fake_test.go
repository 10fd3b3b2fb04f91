package tracer

// fakeCounter is a deterministic csi.CounterReader returning successive
// values from a fixed sequence, mirroring csi's own test double.
type fakeCounter struct {
	vals []uint64
	i    int
}

func (f *fakeCounter) Read() (uint64, error) {
	if f.i >= len(f.vals) {
		return f.vals[len(f.vals)-1], nil
	}
	v := f.vals[f.i]
	f.i++
	return v, nil
}

// fakePerf is a deterministic PerfReader.
type fakePerf struct {
	aperf, mperf uint64
}

func (f *fakePerf) ReadAperf() uint64 { return f.aperf }
func (f *fakePerf) ReadMperf() uint64 { return f.mperf }

// fakeSMINMI is a deterministic SMINMIReader.
type fakeSMINMI struct {
	smi, nmi uint64
}

func (f *fakeSMINMI) Read() (uint64, uint64) { return f.smi, f.nmi }

// fakeClock returns successive values from a fixed sequence, for scripting
// exact hot-path timestamps.
type fakeClock struct {
	vals []uint64
	i    int
}

func (f *fakeClock) next() uint64 {
	if f.i >= len(f.vals) {
		return f.vals[len(f.vals)-1]
	}
	v := f.vals[f.i]
	f.i++
	return v
}
