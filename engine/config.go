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
// Package engine is the wult_info equivalent of spec §3/§4.5/§5: it owns
// the CSI registry, the DES, the tracer, and the armer as one instance,
// serializes enable/disable transitions and configuration writes under a
// single mutex, and guards against a second device registering.
package engine

import (
	"github.com/intel/wult-go/des"
	"github.com/intel/wult-go/errs"
)

// Config is the process-wide, mutable-only-while-disabled configuration of
// spec §3: the launch-distance sub-range and early-interrupt mode, plus the
// hardware-imposed bounds reported by the registered DES.
type Config struct {
	cpu int

	ldistMin, ldistMax, ldistGran uint64
	ldistFrom, ldistTo            uint64
	earlyIntr                     bool
}

// newConfig builds a Config bound to cpu with the DES-reported bounds,
// defaulting the selected sub-range to the full hardware range.
func newConfig(cpu int, caps des.Capabilities) *Config {
	return &Config{
		cpu:       cpu,
		ldistMin:  caps.LdistMin,
		ldistMax:  caps.LdistMax,
		ldistGran: caps.LdistGran,
		ldistFrom: caps.LdistMin,
		ldistTo:   caps.LdistMax,
	}
}

// CPU returns the target CPU (spec §6's read-only cpu field).
func (c *Config) CPU() int { return c.cpu }

// LdistBounds returns the hardware-imposed bounds (spec §6's read-only
// ldist_min_nsec/ldist_max_nsec).
func (c *Config) LdistBounds() (min, max, gran uint64) {
	return c.ldistMin, c.ldistMax, c.ldistGran
}

// LdistRange returns the currently selected sub-range, implementing the
// armer.Config interface.
func (c *Config) LdistRange() (from, to, gran uint64) {
	return c.ldistFrom, c.ldistTo, c.ldistGran
}

// EarlyIntr returns the current early_intr mode.
func (c *Config) EarlyIntr() bool { return c.earlyIntr }

func (c *Config) validateRange(from, to uint64) error {
	if from > to {
		return errs.InvalidConfig("ldist_from (%d) must be <= ldist_to (%d)", from, to)
	}
	for name, v := range map[string]uint64{"ldist_from": from, "ldist_to": to} {
		if v < c.ldistMin || v > c.ldistMax {
			return errs.InvalidConfig("%s=%d out of bounds [%d, %d]", name, v, c.ldistMin, c.ldistMax)
		}
		if c.ldistGran > 1 && v%c.ldistGran != 0 {
			return errs.InvalidConfig("%s=%d is not a multiple of ldist_gran=%d", name, v, c.ldistGran)
		}
	}
	return nil
}

// setLdistFrom validates and applies a new ldist_from, per spec §4.5's
// "ldist_from <= ldist_to" requirement.
func (c *Config) setLdistFrom(v uint64) error {
	if err := c.validateRange(v, c.ldistTo); err != nil {
		return err
	}
	c.ldistFrom = v
	return nil
}

// setLdistTo validates and applies a new ldist_to. Note this assigns to
// ldistTo, the field it names — spec.md flags a historical source revision
// that assigned ldist_from instead as a bug; this implementation is the
// fixed behavior.
func (c *Config) setLdistTo(v uint64) error {
	if err := c.validateRange(c.ldistFrom, v); err != nil {
		return err
	}
	c.ldistTo = v
	return nil
}

func (c *Config) setEarlyIntr(v bool) {
	c.earlyIntr = v
}
