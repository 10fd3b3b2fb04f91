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
package tracer

// Datapoint is the per-iteration scratch struct owned exclusively by the
// Tracer (spec §3's "Per-iteration datapoint"). It is zeroed by ArmEvent,
// filled progressively by the three instrumentation hot-paths — each of
// which only ever writes the fields spec §4.3 assigns it — and read by
// SendData under the engine's enable mutex.
type Datapoint struct {
	ReqCState uint32

	TBI, TBIAdj     uint64
	TAI, TAIAdj     uint64
	TIntr, TIntrAdj uint64
	LTime           uint64
	LDist           uint64

	BITSC, BIMono uint64

	AITS1, AITS2     uint64
	IntrTS1, IntrTS2 uint64

	SMIBI, NMIBI     uint64
	SMIIntr, NMIIntr uint64

	AIAperf, AIMperf     uint64
	IntrAperf, IntrMperf uint64

	// IRQsDisabled is true if the after_idle path observed the counters
	// first (slot 1 was claimed), false if in_interrupt did (slot 2).
	IRQsDisabled bool
}
