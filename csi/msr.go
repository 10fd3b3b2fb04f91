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
package csi

import (
	"encoding/binary"
	"fmt"
	"os"

	log "github.com/golang/glog"
)

// Well-known x86 MSR addresses used by the stock C-state residency and
// cycle counters (spec §4.1). These match the kernel's msr-index.h naming.
const (
	MSRTsc   = 0x10
	MSRAperf = 0xE8
	MSRMperf = 0xE7

	MSRCoreC3Residency = 0x3FC
	MSRCoreC6Residency = 0x3FD
	MSRCoreC7Residency = 0x3FE

	MSRPkgC2Residency  = 0x60D
	MSRPkgC3Residency  = 0x3F8
	MSRPkgC6Residency  = 0x3F9
	MSRPkgC7Residency  = 0x3FA
	MSRPkgC8Residency  = 0x630
	MSRPkgC9Residency  = 0x631
	MSRPkgC10Residency = 0x632
)

// MSRReader is a CounterReader backed by a single address of the per-CPU
// /dev/cpu/N/msr device file, the standard Linux MSR access path.
type MSRReader struct {
	f    *os.File
	addr int64
}

// OpenMSR opens the MSR device file for cpu and binds it to addr.
func OpenMSR(cpu int, addr int64) (*MSRReader, error) {
	f, err := os.OpenFile(fmt.Sprintf("/dev/cpu/%d/msr", cpu), os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open msr device for cpu %d: %w", cpu, err)
	}
	return &MSRReader{f: f, addr: addr}, nil
}

// Read implements CounterReader.
func (m *MSRReader) Read() (uint64, error) {
	var buf [8]byte
	if _, err := m.f.ReadAt(buf[:], m.addr); err != nil {
		return 0, fmt.Errorf("read msr 0x%x: %w", m.addr, err)
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// Close releases the underlying device file.
func (m *MSRReader) Close() error { return m.f.Close() }

// DefaultCStateDescs builds the stock core/package C-state descriptor table
// for cpu, opening an MSRReader for every counter except CC1, which has no
// dedicated MSR on most platforms and is left with a nil reader so the
// registry derives it as a residual (spec §4.1). A counter whose MSR device
// file cannot be opened (e.g. no msr kernel module, or running unprivileged)
// is also left with a nil reader rather than aborting construction: init
// marks it Absent the same way a failing probe read would.
func DefaultCStateDescs(cpu int) []CounterDesc {
	type entry struct {
		name   string
		isCore bool
		addr   int64
	}
	entries := []entry{
		{"CC3", true, MSRCoreC3Residency},
		{"CC6", true, MSRCoreC6Residency},
		{"CC7", true, MSRCoreC7Residency},
		{"PC2", false, MSRPkgC2Residency},
		{"PC3", false, MSRPkgC3Residency},
		{"PC6", false, MSRPkgC6Residency},
		{"PC7", false, MSRPkgC7Residency},
		{"PC8", false, MSRPkgC8Residency},
		{"PC9", false, MSRPkgC9Residency},
		{"PC10", false, MSRPkgC10Residency},
	}
	descs := make([]CounterDesc, 0, len(entries)+1)
	descs = append(descs, CounterDesc{Name: "CC1", IsCore: true, Reader: nil})
	for _, e := range entries {
		r, err := OpenMSR(cpu, e.addr)
		if err != nil {
			log.Warningf("csi: %v, counter %q will be absent", err, e.name)
			descs = append(descs, CounterDesc{Name: e.name, IsCore: e.isCore, Reader: nil})
			continue
		}
		descs = append(descs, CounterDesc{Name: e.name, IsCore: e.isCore, Reader: r})
	}
	return descs
}
