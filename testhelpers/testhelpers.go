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
// Package testhelpers contains small helpers shared across this module's
// tests.
package testhelpers

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

// Diff fails the test with a readable diff if a and b are not equal.
func Diff(t *testing.T, name string, a, b interface{}) {
	t.Helper()
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("%s mismatch (-want +got):\n%s", name, diff)
	}
}
