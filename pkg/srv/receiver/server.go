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

package receiver

import (
	"context"
	"net"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"jinr.ru/greenlab/go-rc6d/pkg/config"
	"jinr.ru/greenlab/go-rc6d/pkg/layers"
	"jinr.ru/greenlab/go-rc6d/pkg/log"
	"jinr.ru/greenlab/go-rc6d/pkg/srv"
)

// Server runs a Receiver together with the state database and the API
type Server struct {
	srv.Server
	receiver *Receiver
	state    *State
	api      *ApiServer
	registry *prometheus.Registry
	stopApi  context.CancelFunc
	callback atomic.Pointer[Callback]
	chState  chan *layers.ControlState
}

var _ StateSource = &Server{}

func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	log.Info("Initializing receiver server: name: %s port: %d", cfg.Receiver.Name, cfg.Receiver.Port)

	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry, cfg.Receiver.Name)

	receiver, err := NewReceiverFromConfig(cfg.Receiver, WithMetrics(metrics))
	if err != nil {
		return nil, err
	}
	state, err := NewState(ctx, cfg.DBPath, cfg.Receiver.Name)
	if err != nil {
		receiver.Close()
		return nil, err
	}

	s := &Server{
		Server: srv.Server{
			Context: ctx,
			Config:  cfg,
		},
		receiver: receiver,
		state:    state,
		registry: registry,
		chState:  make(chan *layers.ControlState, 1),
	}
	s.UDPAddr, _ = receiver.LocalAddr().(*net.UDPAddr)
	apiCtx, stopApi := context.WithCancel(ctx)
	s.stopApi = stopApi
	s.api = NewApiServer(apiCtx, cfg.Api, s, registry)
	return s, nil
}

// OnReceive registers a consumer that is called after the state is queued for persisting
func (s *Server) OnReceive(cb Callback) {
	if cb == nil {
		s.callback.Store(nil)
		return
	}
	s.callback.Store(&cb)
}

func (s *Server) Receiver() *Receiver {
	return s.receiver
}

func (s *Server) Api() *ApiServer {
	return s.api
}

func (s *Server) Stats() Stats {
	return s.receiver.Stats()
}

func (s *Server) LastControlState() (*Snapshot, error) {
	return s.state.GetControlState(s.Config.Receiver.Name)
}

func (s *Server) AllControlStates() (map[string]*Snapshot, error) {
	return s.state.GetAllControlStates()
}

// Run starts the receive loop and the API and blocks until the context is done
// or the receiver socket is closed
func (s *Server) Run() error {
	defer s.state.Close()
	defer s.receiver.Close()
	defer s.stopApi()

	errChan := make(chan error, 1)
	stop := make(chan struct{})
	defer close(stop)

	// Persist the latest control state. The receive loop never waits for the database.
	go func() {
		for {
			select {
			case <-stop:
				return
			case cs := <-s.chState:
				if err := s.state.SetControlState(s.Config.Receiver.Name, cs); err != nil {
					log.Error("Error while persisting control state: %s", err)
				}
			}
		}
	}()

	go func() {
		if err := s.api.Run(); err != nil {
			log.Error("API server stopped: %s", err)
			errChan <- err
		}
	}()

	s.receiver.OnReceive(s.handleControlState)
	s.receiver.Start()

	select {
	case <-s.Context.Done():
		return s.Context.Err()
	case <-s.receiver.Done():
		return nil
	case err := <-errChan:
		return err
	}
}

func (s *Server) handleControlState(cs *layers.ControlState) {
	persisted := *cs
	select {
	case s.chState <- &persisted:
	default:
		// replace the state nobody has persisted yet
		select {
		case <-s.chState:
		default:
		}
		select {
		case s.chState <- &persisted:
		default:
		}
	}

	if cb := s.callback.Load(); cb != nil {
		(*cb)(cs)
	}
}
