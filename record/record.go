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
package record

// NamedValue is a single (name, value) pair, used for the variable-length
// tails of a Record (per-C-state deltas and DES trace fields).
type NamedValue struct {
	Name  string
	Value uint64
}

// Record is one emitted wult_cpu_idle datapoint (spec §6), already
// validated and overhead-stamped by the tracer.
type Record struct {
	LDist, LTime                           uint64
	TBI, TBIAdj                            uint64
	TAI, TAIAdj                            uint64
	TIntr, TIntrAdj                        uint64
	ReqCState                              uint32
	AITS1, AITS2, IntrTS1, IntrTS2         uint64
	TotCyc, CC0Cyc                         uint64
	SMICnt, NMICnt                         uint64
	AIAperf, IntrAperf, AIMperf, IntrMperf uint64
	BICyc, BIMonotonic                     uint64

	// CStateCyc holds one entry per non-absent CSI registry entry, in
	// registry order, with Name equal to the CSI counter's Name and Value
	// its residency delta for this iteration.
	CStateCyc []NamedValue
	// Trace holds the DES's device-specific extra fields, if any.
	Trace []NamedValue
}

// fieldValue returns the uint64 value of one common field by name, used by
// the Encoder to walk the Format's declared order without duplicating the
// struct's layout.
func (r *Record) fieldValue(name string) uint64 {
	switch name {
	case "LDist":
		return r.LDist
	case "LTime":
		return r.LTime
	case "TBI":
		return r.TBI
	case "TBIAdj":
		return r.TBIAdj
	case "TAI":
		return r.TAI
	case "TAIAdj":
		return r.TAIAdj
	case "TIntr":
		return r.TIntr
	case "TIntrAdj":
		return r.TIntrAdj
	case "ReqCState":
		return uint64(r.ReqCState)
	case "AITS1":
		return r.AITS1
	case "AITS2":
		return r.AITS2
	case "IntrTS1":
		return r.IntrTS1
	case "IntrTS2":
		return r.IntrTS2
	case "TotCyc":
		return r.TotCyc
	case "CC0Cyc":
		return r.CC0Cyc
	case "SMICnt":
		return r.SMICnt
	case "NMICnt":
		return r.NMICnt
	case "AIAperf":
		return r.AIAperf
	case "IntrAperf":
		return r.IntrAperf
	case "AIMperf":
		return r.AIMperf
	case "IntrMperf":
		return r.IntrMperf
	case "BICyc":
		return r.BICyc
	case "BIMonotonic":
		return r.BIMonotonic
	}
	return 0
}
