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
// Package httpapi is the HTTP control surface of spec §6: a small set of
// JSON endpoints for reading and writing the engine's configuration, plus a
// /format introspection endpoint and a /debug/records ring of recently
// emitted datapoints.
//
// The router shape, the err404/err500-style constants, and the
// send*HTTPResponse helpers are grounded verbatim on the teacher's
// server/server.go; the recent-records cache is grounded on
// server/storage_service.go's simplelru.LRU of recently-touched collections,
// re-homed here as a bounded ring of recently emitted records.
package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	log "github.com/golang/glog"
	"github.com/gorilla/mux"

	"github.com/intel/wult-go/engine"
)

const (
	err400 = "Bad request: %s"
	err500 = "Internal Server Error"
)

// Server is the HTTP control surface for one Engine.
type Server struct {
	e      *engine.Engine
	recent *RecentRecords
}

// NewServer builds a Server for e, serving /debug/records out of recent
// (see NewRecentRecords; the caller wires recent in as the engine's sink so
// it sees every emitted record).
func NewServer(e *engine.Engine, recent *RecentRecords) *Server {
	return &Server{e: e, recent: recent}
}

// Handler builds the mux.Router serving this Server's endpoints.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	handle(r, "/config", s.handleConfig)
	handle(r, "/enabled", s.handleEnabled)
	handle(r, "/ldist_from_nsec", s.handleLdistFrom)
	handle(r, "/ldist_to_nsec", s.handleLdistTo)
	handle(r, "/early_intr", s.handleEarlyIntr)
	handle(r, "/stats", s.handleStats)
	handle(r, "/format", s.handleFormat)
	handle(r, "/debug/records", s.handleDebugRecords)
	return r
}

var handle = func(r *mux.Router, path string, handler http.HandlerFunc) {
	r.HandleFunc(path, handler)
}

// configResponse is the full read-only+read-write configuration snapshot
// returned by GET /config (spec §6's config file set).
type configResponse struct {
	CPU           int    `json:"cpu"`
	Enabled       bool   `json:"enabled"`
	LdistMinNsec  uint64 `json:"ldist_min_nsec"`
	LdistMaxNsec  uint64 `json:"ldist_max_nsec"`
	LdistGranNsec uint64 `json:"ldist_gran_nsec"`
	LdistFromNsec uint64 `json:"ldist_from_nsec"`
	LdistToNsec   uint64 `json:"ldist_to_nsec"`
	EarlyIntr     bool   `json:"early_intr"`
	DeviceToken   string `json:"device_token"`
}

func (s *Server) handleConfig(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		http.Error(w, fmt.Sprintf(err400, "only GET is supported"), http.StatusMethodNotAllowed)
		return
	}
	cfg := s.e.Config()
	if cfg == nil {
		http.Error(w, fmt.Sprintf(err400, "no device registered"), http.StatusPreconditionFailed)
		return
	}
	min, max, gran := cfg.LdistBounds()
	from, to, _ := cfg.LdistRange()
	sendStructHTTPResponse(w, configResponse{
		CPU: cfg.CPU(), Enabled: s.e.Enabled(),
		LdistMinNsec: min, LdistMaxNsec: max, LdistGranNsec: gran,
		LdistFromNsec: from, LdistToNsec: to,
		EarlyIntr:   cfg.EarlyIntr(),
		DeviceToken: s.e.DeviceToken().String(),
	})
}

type enabledRequest struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) handleEnabled(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodGet:
		sendStructHTTPResponse(w, enabledRequest{Enabled: s.e.Enabled()})
	case http.MethodPost:
		var body enabledRequest
		if err := readJSONBody(req, &body); err != nil {
			http.Error(w, fmt.Sprintf(err400, err), http.StatusBadRequest)
			return
		}
		var err error
		if body.Enabled {
			err = s.e.Enable()
		} else {
			err = s.e.Disable()
		}
		if err != nil {
			writeEngineError(w, err)
			return
		}
		sendStructHTTPResponse(w, enabledRequest{Enabled: s.e.Enabled()})
	default:
		http.Error(w, fmt.Sprintf(err400, "only GET and POST are supported"), http.StatusMethodNotAllowed)
	}
}

type valueRequest struct {
	Value uint64 `json:"value"`
}

func (s *Server) handleLdistFrom(w http.ResponseWriter, req *http.Request) {
	s.handleUint64Write(w, req, s.e.SetLdistFrom)
}

func (s *Server) handleLdistTo(w http.ResponseWriter, req *http.Request) {
	s.handleUint64Write(w, req, s.e.SetLdistTo)
}

func (s *Server) handleUint64Write(w http.ResponseWriter, req *http.Request, set func(uint64) error) {
	if req.Method != http.MethodPost {
		http.Error(w, fmt.Sprintf(err400, "only POST is supported"), http.StatusMethodNotAllowed)
		return
	}
	var body valueRequest
	if err := readJSONBody(req, &body); err != nil {
		http.Error(w, fmt.Sprintf(err400, err), http.StatusBadRequest)
		return
	}
	if err := set(body.Value); err != nil {
		writeEngineError(w, err)
		return
	}
	sendStructHTTPResponse(w, body)
}

func (s *Server) handleEarlyIntr(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodPost:
		var body enabledRequest
		if err := readJSONBody(req, &body); err != nil {
			http.Error(w, fmt.Sprintf(err400, err), http.StatusBadRequest)
			return
		}
		if err := s.e.SetEarlyIntr(body.Enabled); err != nil {
			writeEngineError(w, err)
			return
		}
		sendStructHTTPResponse(w, body)
	default:
		http.Error(w, fmt.Sprintf(err400, "only POST is supported"), http.StatusMethodNotAllowed)
	}
}

type statsResponse struct {
	Emitted uint64 `json:"emitted"`
	Dropped uint64 `json:"dropped"`
}

func (s *Server) handleStats(w http.ResponseWriter, req *http.Request) {
	emitted, dropped := s.e.Stats()
	sendStructHTTPResponse(w, statsResponse{Emitted: emitted, Dropped: dropped})
}

func (s *Server) handleFormat(w http.ResponseWriter, req *http.Request) {
	f := s.e.Format()
	if f == nil {
		http.Error(w, fmt.Sprintf(err400, "no device registered"), http.StatusPreconditionFailed)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	if _, err := fmt.Fprint(w, f.String()); err != nil {
		http.Error(w, err500, http.StatusInternalServerError)
	}
}

func (s *Server) handleDebugRecords(w http.ResponseWriter, req *http.Request) {
	sendStructHTTPResponse(w, s.recent.Values())
}

func writeEngineError(w http.ResponseWriter, err error) {
	log.Warningf("httpapi: request rejected: %v", err)
	http.Error(w, err.Error(), http.StatusPreconditionFailed)
}

func readJSONBody(req *http.Request, v interface{}) error {
	defer req.Body.Close()
	return json.NewDecoder(req.Body).Decode(v)
}

func sendStructHTTPResponse(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err500, http.StatusInternalServerError)
	}
}
