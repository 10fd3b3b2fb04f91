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
package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	log "github.com/golang/glog"

	"github.com/intel/wult-go/csi"
)

const msrSMICount = 0x34

// msrPerf is a tracer.PerfReader backed by the IA32_APERF/IA32_MPERF MSRs
// (spec §4.3's ai_aperf/intr_aperf/ai_mperf/intr_mperf fields).
type msrPerf struct {
	aperf *csi.MSRReader
	mperf *csi.MSRReader
}

func newMSRPerf(cpu int) (*msrPerf, error) {
	aperf, err := csi.OpenMSR(cpu, csi.MSRAperf)
	if err != nil {
		return nil, err
	}
	mperf, err := csi.OpenMSR(cpu, csi.MSRMperf)
	if err != nil {
		return nil, err
	}
	return &msrPerf{aperf: aperf, mperf: mperf}, nil
}

func (p *msrPerf) ReadAperf() uint64 { return readOrZero(p.aperf, "APERF") }
func (p *msrPerf) ReadMperf() uint64 { return readOrZero(p.mperf, "MPERF") }

func readOrZero(r *csi.MSRReader, name string) uint64 {
	v, err := r.Read()
	if err != nil {
		log.Warningf("hostreaders: %s read failed: %v", name, err)
		return 0
	}
	return v
}

// smiNMIReader implements tracer.SMINMIReader: SMI count comes from the
// MSR_SMI_COUNT MSR, NMI count from /proc/interrupts' "NMI" line, the only
// place a user-space process can observe the kernel's per-CPU NMI tally.
type smiNMIReader struct {
	smi    *csi.MSRReader
	cpu    int
	column int // parsed lazily on first read
}

func newSMINMIReader(cpu int) (*smiNMIReader, error) {
	smi, err := csi.OpenMSR(cpu, msrSMICount)
	if err != nil {
		return nil, err
	}
	return &smiNMIReader{smi: smi, cpu: cpu, column: -1}, nil
}

func (r *smiNMIReader) Read() (smi, nmi uint64) {
	smi = readOrZero(r.smi, "SMI_COUNT")
	nmi, err := r.readNMICount()
	if err != nil {
		log.Warningf("hostreaders: NMI count read failed: %v", err)
		return smi, 0
	}
	return smi, nmi
}

func (r *smiNMIReader) readNMICount() (uint64, error) {
	f, err := os.Open("/proc/interrupts")
	if err != nil {
		return 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return 0, fmt.Errorf("empty /proc/interrupts")
	}
	if r.column < 0 {
		cols := strings.Fields(scanner.Text())
		for i, c := range cols {
			if c == fmt.Sprintf("CPU%d", r.cpu) {
				r.column = i
				break
			}
		}
		if r.column < 0 {
			return 0, fmt.Errorf("CPU%d column not found in /proc/interrupts", r.cpu)
		}
	}
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || !strings.HasPrefix(fields[0], "NMI") {
			continue
		}
		// fields[0] is the "NMI:" label, so header column i is fields[i+1].
		if r.column+1 >= len(fields) {
			return 0, fmt.Errorf("NMI line too short for CPU%d", r.cpu)
		}
		v, err := strconv.ParseUint(fields[r.column+1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse NMI count: %w", err)
		}
		return v, nil
	}
	return 0, fmt.Errorf("NMI line not found in /proc/interrupts")
}
