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
// Command wultd is the wake-up latency measurement daemon: it wires one
// Engine to a measured CPU and a delayed-event source, and serves the
// httpapi control surface over HTTP.
//
// Flags and startup sequencing are grounded on the teacher's
// server/server.go main(): flag-parsed configuration, a single runServer-
// style wiring function, and glog for all logging.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"

	log "github.com/golang/glog"

	"github.com/intel/wult-go/csi"
	"github.com/intel/wult-go/des"
	"github.com/intel/wult-go/engine"
	"github.com/intel/wult-go/httpapi"
	"github.com/intel/wult-go/record"
	"github.com/intel/wult-go/tracer"
)

var (
	cpu           = flag.Int("cpu", 0, "The CPU to measure.")
	port          = flag.Int("port", 7403, "The HTTP control surface port.")
	desVariant    = flag.String("des", "monotonic", "Delayed-event source variant: monotonic, deadline, or nic.")
	ldistGranNsec = flag.Uint64("ldist_gran_nsec", 1, "Launch-distance quantization granularity, in nanoseconds.")
	ldistFromNsec = flag.Uint64("ldist_from_nsec", 0, "Initial ldist_from, in nanoseconds (0 keeps the device's hardware minimum).")
	ldistToNsec   = flag.Uint64("ldist_to_nsec", 0, "Initial ldist_to, in nanoseconds (0 keeps the device's hardware maximum).")
	earlyIntr     = flag.Bool("early_intr", false, "Initial early_intr mode.")
	sinkCap       = flag.Int("sink_capacity", 256, "Bounded record sink capacity before backpressure kicks in.")
	recentCap     = flag.Int("recent_records", 200, "Number of recently emitted records kept for /debug/records.")
)

func buildDES(gran uint64) (des.DES, error) {
	switch *desVariant {
	case "monotonic":
		return des.NewMonotonic(tracer.SystemClock, gran), nil
	case "deadline":
		return des.NewDeadline(tracer.SystemClock, gran), nil
	case "nic":
		return des.NewNIC(tracer.SystemClock, gran), nil
	default:
		return nil, fmt.Errorf("unknown -des variant %q (want monotonic, deadline, or nic)", *desVariant)
	}
}

func buildRegistry(cpu int) (*csi.Registry, error) {
	tsc, err := csi.OpenMSR(cpu, csi.MSRTsc)
	if err != nil {
		return nil, err
	}
	mperf, err := csi.OpenMSR(cpu, csi.MSRMperf)
	if err != nil {
		return nil, err
	}
	return csi.New(tsc, mperf, csi.DefaultCStateDescs(cpu)), nil
}

func runServer(ctx context.Context) error {
	registry, err := buildRegistry(*cpu)
	if err != nil {
		return fmt.Errorf("build csi registry: %w", err)
	}

	chanSink := record.NewChanSink(*sinkCap)
	recent := httpapi.NewRecentRecords(chanSink, *recentCap)
	go drainSink(chanSink)

	opts := []engine.Option{}
	if perf, err := newMSRPerf(*cpu); err != nil {
		log.Warningf("wultd: no APERF/MPERF backend available: %v", err)
	} else {
		opts = append(opts, engine.WithPerfReader(perf))
	}
	if smi, err := newSMINMIReader(*cpu); err != nil {
		log.Warningf("wultd: no SMI/NMI backend available: %v", err)
	} else {
		opts = append(opts, engine.WithSMINMIReader(smi))
	}

	e := engine.New(*cpu, registry, recent, opts...)

	dev, err := buildDES(*ldistGranNsec)
	if err != nil {
		return err
	}
	if err := e.Register(dev); err != nil {
		return fmt.Errorf("register device: %w", err)
	}
	if *ldistFromNsec != 0 {
		if err := e.SetLdistFrom(*ldistFromNsec); err != nil {
			return fmt.Errorf("set ldist_from_nsec: %w", err)
		}
	}
	if *ldistToNsec != 0 {
		if err := e.SetLdistTo(*ldistToNsec); err != nil {
			return fmt.Errorf("set ldist_to_nsec: %w", err)
		}
	}
	if *earlyIntr {
		if err := e.SetEarlyIntr(true); err != nil {
			return fmt.Errorf("set early_intr: %w", err)
		}
	}

	srv := httpapi.NewServer(e, recent)
	log.Infof("wultd: serving cpu %d on :%d (des=%s)", *cpu, *port, *desVariant)
	return http.ListenAndServe(fmt.Sprintf(":%d", *port), srv.Handler())
}

// drainSink discards records once RecentRecords has already cached them, so
// the bounded sink never fills up on its own.
func drainSink(s *record.ChanSink) {
	for range s.Records() {
	}
}

func main() {
	flag.Parse()
	defer log.Flush()
	if err := runServer(context.Background()); err != nil {
		log.Exit(err)
	}
}
