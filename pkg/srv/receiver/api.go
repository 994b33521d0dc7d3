/*
 Licensed under the Apache License, Version 2.0 (the "License");
 you may not use this file except in compliance with the License.
 You may obtain a copy of the License at

     https://www.apache.org/licenses/LICENSE-2.0

 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

// go-rc6d API
//
// RESTful APIs to inspect a running go-rc6d receiver
//
//	Schemes: http
//	Host: localhost:8005
//	Version: 1.0.0
//
//	Produces:
//	- application/json
//
// swagger:meta
package receiver

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"jinr.ru/greenlab/go-rc6d/pkg/config"
	"jinr.ru/greenlab/go-rc6d/pkg/log"
)

// StateSource is what the API needs from a receiver server
type StateSource interface {
	LastControlState() (*Snapshot, error)
	AllControlStates() (map[string]*Snapshot, error)
	Stats() Stats
}

type ApiServer struct {
	context.Context
	*config.ApiConfig
	*mux.Router
	source   StateSource
	gatherer prometheus.Gatherer
}

func NewApiServer(ctx context.Context, cfg *config.ApiConfig, source StateSource, gatherer prometheus.Gatherer) *ApiServer {
	log.Debug("Initializing API server with address: %s port: %d", cfg.Address, cfg.Port)
	s := &ApiServer{
		Context:   ctx,
		ApiConfig: cfg,
		source:    source,
		gatherer:  gatherer,
	}
	s.configureRouter()
	return s
}

func (s *ApiServer) Addr() string {
	return net.JoinHostPort(s.ApiConfig.Address, strconv.Itoa(s.ApiConfig.Port))
}

// Handler returns the router wrapped with access logging
func (s *ApiServer) Handler() http.Handler {
	return handlers.LoggingHandler(log.Writer(), s.Router)
}

// Run serves the API until the context is done
func (s *ApiServer) Run() error {
	log.Info("Starting API server: address: %s", s.Addr())
	httpServer := &http.Server{
		Handler: s.Handler(),
		Addr:    s.Addr(),
	}
	go func() {
		<-s.Context.Done()
		httpServer.Close()
	}()
	err := httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *ApiServer) configureRouter() {
	s.Router = mux.NewRouter()
	subRouter := s.Router.PathPrefix("/api").Subrouter()
	// swagger:operation GET /state state getState
	// ---
	// summary: Return the last control state
	// responses:
	//   "200":
	//     description: snapshot of the last decoded control state
	//   "404":
	//     description: nothing received yet
	subRouter.HandleFunc("/state", s.handleState()).Methods("GET")
	// swagger:operation GET /states state getStates
	// ---
	// summary: Return the last control state of every receiver sharing the database
	// responses:
	//   "200":
	//     description: snapshots keyed by receiver name
	subRouter.HandleFunc("/states", s.handleStates()).Methods("GET")
	// swagger:operation GET /stats stats getStats
	// ---
	// summary: Return receive loop counters
	// responses:
	//   "200":
	//     description: counters and the last measured frequency
	subRouter.HandleFunc("/stats", s.handleStats()).Methods("GET")
	s.Router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods("GET")
}

func (s *ApiServer) handleState() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Debug("Handling state request")
		snapshot, err := s.source.LastControlState()
		if err != nil {
			if errors.As(err, &ErrNoState{}) {
				http.Error(w, err.Error(), http.StatusNotFound)
				return
			}
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(snapshot)
	}
}

func (s *ApiServer) handleStates() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Debug("Handling states request")
		snapshots, err := s.source.AllControlStates()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(snapshots)
	}
}

func (s *ApiServer) handleStats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Debug("Handling stats request")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(s.source.Stats())
	}
}
