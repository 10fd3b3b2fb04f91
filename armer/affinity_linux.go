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
//go:build linux

package armer

import (
	"unsafe"

	log "github.com/golang/glog"
	"golang.org/x/sys/unix"
)

// pinToCPU binds the calling (locked) OS thread to cpu, the Go-idiomatic
// analogue of pinning a kernel thread to the measured CPU.
func pinToCPU(cpu int) {
	if cpu < 0 {
		return
	}
	var mask unix.CPUSet
	mask.Set(cpu)
	if err := unix.SchedSetaffinity(0, &mask); err != nil {
		log.Errorf("armer: SchedSetaffinity(cpu=%d) failed: %v", cpu, err)
	}
}

// currentCPU returns the CPU the calling thread is currently running on, or
// -1 if it could not be determined.
func currentCPU() int {
	var cpu int
	_, _, errno := unix.RawSyscall(unix.SYS_GETCPU, uintptr(unsafe.Pointer(&cpu)), 0, 0)
	if errno != 0 {
		return -1
	}
	return cpu
}
