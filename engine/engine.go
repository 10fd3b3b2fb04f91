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
package engine

import (
	"context"
	"sync"

	log "github.com/golang/glog"
	"github.com/google/uuid"

	"github.com/intel/wult-go/armer"
	"github.com/intel/wult-go/csi"
	"github.com/intel/wult-go/des"
	"github.com/intel/wult-go/errs"
	"github.com/intel/wult-go/record"
	"github.com/intel/wult-go/tracer"
)

// Option configures an Engine at construction time, grounded on the
// teacher's functional-option pattern
// (analysis/sched_collection_options.go's Option).
type Option func(*Engine)

// WithPerfReader overrides the tracer's APERF/MPERF backend.
func WithPerfReader(p tracer.PerfReader) Option {
	return func(e *Engine) { e.perf = p }
}

// WithSMINMIReader overrides the tracer's SMI/NMI backend.
func WithSMINMIReader(s tracer.SMINMIReader) Option {
	return func(e *Engine) { e.smi = s }
}

// WithClock overrides the tracer's monotonic clock source.
func WithClock(c tracer.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// Engine is the wult_info equivalent: one owned instance per measured CPU,
// wiring the CSI registry, the registered DES, the tracer, and the armer,
// and serializing enable/disable transitions and configuration writes
// under a single mutex (spec §5's "enable mutex").
type Engine struct {
	cpu  int
	csi  *csi.Registry
	sink record.Sink

	perf  tracer.PerfReader
	smi   tracer.SMINMIReader
	clock tracer.Clock

	mu         sync.Mutex
	cfg        *Config
	dev        des.DES
	devToken   uuid.UUID
	registered bool
	enabled    bool

	tracer *tracer.Tracer
	armer  *armer.Armer
	cancel context.CancelFunc
}

// New builds an unregistered Engine for the given CPU and CSI registry. A
// DES must be registered with Register before Enable can succeed.
func New(cpu int, registry *csi.Registry, sink record.Sink, opts ...Option) *Engine {
	e := &Engine{
		cpu:   cpu,
		csi:   registry,
		sink:  sink,
		perf:  tracer.NopPerf{},
		smi:   tracer.NopSMINMI{},
		clock: tracer.SystemClock,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CPU returns the target CPU.
func (e *Engine) CPU() int { return e.cpu }

// DeviceToken returns the registration token minted for the currently
// registered device (the uuid.UUID zero value if nothing is registered).
// Exposed at /config so an operator can tell, across a device
// unregister/re-register cycle, whether they are still looking at the
// device session they started with.
func (e *Engine) DeviceToken() uuid.UUID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.devToken
}

// Config returns the engine's live configuration (not a copy), or nil if no
// device is registered yet.
func (e *Engine) Config() *Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// Enabled reports whether the engine is currently enabled.
func (e *Engine) Enabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enabled
}

// Register binds a delayed-event source to this engine (spec §5's
// single-registration guarantee). Registering a second device while one is
// registered fails with AlreadyRegistered.
func (e *Engine) Register(d des.DES) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.registered {
		return errs.AlreadyRegistered("engine: a device is already registered on cpu %d", e.cpu)
	}

	tr := tracer.New(e.cpu, e.csi, d, e.sink, e.clock, e.perf, e.smi)
	caps, err := d.Init(e.cpu, tr.InInterrupt)
	if err != nil {
		return errs.NoDevice("engine: device init failed: %v", err)
	}

	e.cfg = newConfig(e.cpu, caps)
	e.dev = d
	e.devToken = uuid.New()
	e.tracer = tr
	e.armer = armer.New(e.cpu, tr, e.cfg)
	e.registered = true

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	go e.armer.Run(ctx)

	log.Infof("engine: registered device %T on cpu %d (token %s)", d, e.cpu, e.devToken)
	return nil
}

// Unregister detaches the registered device, disabling the engine first if
// needed. Safe to call when nothing is registered.
func (e *Engine) Unregister() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.registered {
		return nil
	}
	if e.enabled {
		if err := e.disableLocked(); err != nil {
			return err
		}
	}
	if e.armer != nil {
		e.armer.Stop()
	}
	if e.cancel != nil {
		e.cancel()
	}
	e.dev, e.tracer, e.armer, e.cfg = nil, nil, nil, nil
	e.registered = false
	return nil
}

// Enable implements spec §4.5's disabled→enabled transition.
func (e *Engine) Enable() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.registered {
		return errs.NoDevice("engine: no device registered on cpu %d", e.cpu)
	}
	if e.enabled {
		return nil
	}
	if err := e.tracer.Enable(true); err != nil {
		return err
	}
	e.enabled = true
	e.armer.SetEnabled(true)
	return nil
}

// Disable implements spec §4.5's enabled→disabled transition. Safe to call
// on an already-disabled engine.
func (e *Engine) Disable() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.disableLocked()
}

func (e *Engine) disableLocked() error {
	if !e.enabled {
		return nil
	}
	e.enabled = false
	e.armer.SetEnabled(false)
	return e.tracer.Enable(false)
}

// SetLdistFrom writes ldist_from, rejected with Busy while enabled.
func (e *Engine) SetLdistFrom(v uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.enabled {
		return errs.Busy("engine: cannot set ldist_from while enabled")
	}
	if e.cfg == nil {
		return errs.NoDevice("engine: no device registered")
	}
	return e.cfg.setLdistFrom(v)
}

// SetLdistTo writes ldist_to, rejected with Busy while enabled.
func (e *Engine) SetLdistTo(v uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.enabled {
		return errs.Busy("engine: cannot set ldist_to while enabled")
	}
	if e.cfg == nil {
		return errs.NoDevice("engine: no device registered")
	}
	return e.cfg.setLdistTo(v)
}

// SetEarlyIntr writes early_intr, rejected with Busy while enabled.
func (e *Engine) SetEarlyIntr(v bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.enabled {
		return errs.Busy("engine: cannot set early_intr while enabled")
	}
	if e.cfg == nil {
		return errs.NoDevice("engine: no device registered")
	}
	e.cfg.setEarlyIntr(v)
	e.tracer.SetEarlyIntr(v)
	return nil
}

// Format returns the wult_cpu_idle field layout for the currently
// registered device (spec §6's /format introspection), or nil if no device
// is registered.
func (e *Engine) Format() *record.Format {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.registered {
		return nil
	}
	var cstateNames []string
	for _, c := range e.csi.Entries() {
		if c.Absent {
			continue
		}
		cstateNames = append(cstateNames, c.Name)
	}
	var traceNames []string
	for _, f := range e.dev.TraceData() {
		traceNames = append(traceNames, f.Name)
	}
	return record.NewFormat(cstateNames, traceNames)
}

// Stats returns the armer's running emitted/dropped record counts.
func (e *Engine) Stats() (emitted, dropped uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.armer == nil {
		return 0, 0
	}
	return e.armer.Emitted(), e.armer.Drops()
}
