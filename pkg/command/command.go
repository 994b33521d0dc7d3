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

package command

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"jinr.ru/greenlab/go-rc6d/pkg/config"
	"jinr.ru/greenlab/go-rc6d/pkg/layers"
	"jinr.ru/greenlab/go-rc6d/pkg/srv/receiver"
	"jinr.ru/greenlab/go-rc6d/pkg/srv/transmitter"
)

// signalContext is cancelled on SIGINT and SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// StartReceiverServer runs the receiver server until interrupted.
// Every decoded state is printed to out when out is not nil.
func StartReceiverServer(cfg *config.Config, out io.Writer) error {
	ctx, cancel := signalContext()
	defer cancel()

	s, err := receiver.NewServer(ctx, cfg)
	if err != nil {
		return err
	}
	if out != nil {
		s.OnReceive(func(cs *layers.ControlState) {
			fmt.Fprintln(out, cs.String())
		})
	}
	return ignoreCanceled(s.Run())
}

// StartTransmitter sends cs until interrupted or until count frames are sent
func StartTransmitter(cfg *config.Config, cs *layers.ControlState, count uint64) error {
	ctx, cancel := signalContext()
	defer cancel()

	t, err := transmitter.NewTransmitter(ctx, cfg)
	if err != nil {
		return err
	}
	if err := t.SetState(cs); err != nil {
		return err
	}
	t.SetCount(count)
	return ignoreCanceled(t.Run())
}

func ignoreCanceled(err error) error {
	if err == context.Canceled {
		return nil
	}
	return err
}
