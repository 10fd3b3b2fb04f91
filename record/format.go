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
// Package record implements the upward interface of spec §6: the
// "wult_cpu_idle" synthetic event whose field order is fixed, plus the
// machinery to describe (Format) and serialize (Encoder) it, and the sink
// abstraction records are submitted to.
//
// Format is grounded on the teacher's traceparser/eventformat.go /
// formatparser.go: a small ordered table of named, sized fields describing
// a tracefs synthetic event, the same role this package's Format plays for
// wult_cpu_idle.
package record

import "fmt"

// FieldKind distinguishes the three groups of fields spec §6 declares, in
// order: fixed common fields, one u64 per non-absent CSI entry, and zero or
// more DES-supplied trace fields.
type FieldKind int

const (
	// CommonField is one of the fixed, always-present fields.
	CommonField FieldKind = iota
	// CStateField is a per-C-state residency delta, one per non-absent CSI
	// registry entry, in registry order.
	CStateField
	// TraceField is a DES-supplied device-specific extra field.
	TraceField
)

// Field describes one field of the wult_cpu_idle event.
type Field struct {
	Name string
	Kind FieldKind
	// Size is the field width in bytes: 4 for ReqCState, 8 for everything
	// else (spec §6: "All fields are 64-bit unsigned except ReqCState
	// (32-bit unsigned)").
	Size int
}

// commonFields is the fixed, declared field order from spec §6.
var commonFields = []string{
	"LDist", "LTime", "TBI", "TBIAdj", "TAI", "TAIAdj", "TIntr", "TIntrAdj",
	"ReqCState",
	"AITS1", "AITS2", "IntrTS1", "IntrTS2",
	"TotCyc", "CC0Cyc",
	"SMICnt", "NMICnt",
	"AIAperf", "IntrAperf", "AIMperf", "IntrMperf",
	"BICyc", "BIMonotonic",
}

// Format describes the full, ordered field list of an emitted record on a
// host with the given non-absent CSI entry names (in registry order) and
// DES trace field names.
type Format struct {
	Fields []Field
}

// NewFormat builds the Format for a host with the given CSI entry names (in
// registry order, already filtered to non-absent entries) and DES trace
// field names.
func NewFormat(cstateNames, traceNames []string) *Format {
	f := &Format{}
	for _, n := range commonFields {
		size := 8
		if n == "ReqCState" {
			size = 4
		}
		f.Fields = append(f.Fields, Field{Name: n, Kind: CommonField, Size: size})
	}
	for _, n := range cstateNames {
		f.Fields = append(f.Fields, Field{Name: n + "Cyc", Kind: CStateField, Size: 8})
	}
	for _, n := range traceNames {
		f.Fields = append(f.Fields, Field{Name: n, Kind: TraceField, Size: 8})
	}
	return f
}

// Count returns the total number of fields, matching spec §8 invariant 5:
// len(commonFields) + count(non-absent CSI entries) + count(DES trace
// fields).
func (f *Format) Count() int { return len(f.Fields) }

// String renders the format as a tracefs-style "field:TYPE NAME" listing,
// one per line, for the /format introspection endpoint.
func (f *Format) String() string {
	s := ""
	for _, fld := range f.Fields {
		typ := "u64"
		if fld.Size == 4 {
			typ = "unsigned int"
		}
		s += fmt.Sprintf("field:%s %s;\toffset; size:%d; signed:0;\n", typ, fld.Name, fld.Size)
	}
	return s
}
