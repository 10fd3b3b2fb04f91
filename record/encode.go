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

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"unsafe"
)

// nativeEndian is resolved once at package init, following the same
// idiom as the teacher's traceparser/tracereader.go SetNativeEndian: probe
// a known uint16 pattern's byte layout rather than assume.
var nativeEndian = func() binary.ByteOrder {
	buf := [2]byte{}
	*(*uint16)(unsafe.Pointer(&buf[0])) = uint16(0xABCD)
	if buf == [2]byte{0xCD, 0xAB} {
		return binary.LittleEndian
	}
	return binary.BigEndian
}()

// Encoder serializes Records into a flat binary page, one record after the
// next, in the field order declared by a Format. Unlike the teacher's
// ftrace ring-buffer decoder (traceparser/ringbuffer.go), which must handle
// variable-length padding/time-extend event types, wult's schema is fixed
// per host for the engine's lifetime, so the encoder only needs a flat
// struct writer; it keeps the teacher's native-endianness detection dance
// because the consumer reading this stream back may be a different
// process on the same host.
type Encoder struct {
	format *Format
	order  binary.ByteOrder
}

// NewEncoder builds an Encoder for the given Format, using the host's
// native byte order.
func NewEncoder(format *Format) *Encoder {
	return &Encoder{format: format, order: nativeEndian}
}

// Encode appends the binary encoding of r to the end of dst and returns the
// extended slice. Fields absent from r's CStateCyc/Trace tails relative to
// the Format (a mismatch that should never happen in practice) are written
// as zero.
func (e *Encoder) Encode(dst []byte, r *Record) ([]byte, error) {
	buf := bytes.NewBuffer(dst)
	cstate := indexValues(r.CStateCyc)
	trace := indexValues(r.Trace)
	for _, f := range e.format.Fields {
		var v uint64
		switch f.Kind {
		case CommonField:
			v = r.fieldValue(f.Name)
		case CStateField:
			v = cstate[f.Name]
		case TraceField:
			v = trace[f.Name]
		}
		if f.Size == 4 {
			if err := binary.Write(buf, e.order, uint32(v)); err != nil {
				return nil, fmt.Errorf("record: encoding field %q: %w", f.Name, err)
			}
			continue
		}
		if err := binary.Write(buf, e.order, v); err != nil {
			return nil, fmt.Errorf("record: encoding field %q: %w", f.Name, err)
		}
	}
	return buf.Bytes(), nil
}

func indexValues(nvs []NamedValue) map[string]uint64 {
	m := make(map[string]uint64, len(nvs))
	for _, nv := range nvs {
		// CStateField names carry a "Cyc" suffix in the Format but not in
		// the Record's NamedValue; index both so Encode's lookup by
		// Format field name (which already has the suffix) works.
		m[nv.Name] = nv.Value
		m[nv.Name+"Cyc"] = nv.Value
	}
	return m
}
