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
//go:build !linux

package armer

// pinToCPU is a no-op on non-Linux hosts: CPU affinity has no portable
// equivalent, and wult is a Linux-only measurement engine in production.
func pinToCPU(cpu int) {}

// currentCPU reports -1 (unknown) on non-Linux hosts, which iterate treats
// as "don't check."
func currentCPU() int { return -1 }
