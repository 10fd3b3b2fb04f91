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
// Package errs provides the typed error kinds used across the wult engine.
// Every kind from the engine's error taxonomy is a grpc code wrapped with
// status.Errorf, matching the idiom the rest of this module uses throughout
// (see google-schedviz's tracedata/trace_event.go and
// analysis/sched_types.go for the pattern this follows).
package errs

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Busy indicates the operation was rejected because the engine is enabled.
func Busy(format string, args ...interface{}) error {
	return status.Errorf(codes.FailedPrecondition, format, args...)
}

// InvalidConfig indicates a configuration value is out of range or
// mis-quantized.
func InvalidConfig(format string, args ...interface{}) error {
	return status.Errorf(codes.InvalidArgument, format, args...)
}

// NoDevice indicates no delayed-event source is registered.
func NoDevice(format string, args ...interface{}) error {
	return status.Errorf(codes.NotFound, format, args...)
}

// AlreadyRegistered indicates a second device was registered while one is
// already registered.
func AlreadyRegistered(format string, args ...interface{}) error {
	return status.Errorf(codes.AlreadyExists, format, args...)
}

// ArmFailed indicates the DES refused to arm an event.
func ArmFailed(format string, args ...interface{}) error {
	return status.Errorf(codes.Aborted, format, args...)
}

// WrongCPU indicates an event fired, or the armer ran, on a CPU other than
// the configured target.
func WrongCPU(format string, args ...interface{}) error {
	return status.Errorf(codes.FailedPrecondition, format, args...)
}

// Timeout indicates the armed event did not fire within its deadline.
func Timeout(format string, args ...interface{}) error {
	return status.Errorf(codes.DeadlineExceeded, format, args...)
}

// CounterMisorder indicates a C-state snapshot delta would be negative.
func CounterMisorder(format string, args ...interface{}) error {
	return status.Errorf(codes.Internal, format, args...)
}

// SinkBackpressure indicates the record sink's buffer is full.
func SinkBackpressure(format string, args ...interface{}) error {
	return status.Errorf(codes.ResourceExhausted, format, args...)
}

// Is reports whether err carries the given code.
func Is(err error, code codes.Code) bool {
	return status.Code(err) == code
}
