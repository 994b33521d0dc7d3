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

package send

import (
	"fmt"

	"github.com/spf13/cobra"

	"jinr.ru/greenlab/go-rc6d/pkg/command"
	"jinr.ru/greenlab/go-rc6d/pkg/config"
	"jinr.ru/greenlab/go-rc6d/pkg/layers"
)

const (
	PeerOptionName    = "peer"
	PortOptionName    = "port"
	RateOptionName    = "rate"
	CountOptionName   = "count"
	ButtonsOptionName = "buttons"
)

func joystickFlags(cmd *cobra.Command, prefix string, j *layers.Joystick) {
	cmd.Flags().IntVar(&j.X, prefix+"-x", 0, "X axis")
	cmd.Flags().IntVar(&j.Y, prefix+"-y", 0, "Y axis")
	cmd.Flags().IntVar(&j.Z, prefix+"-z", 0, "Z axis")
	cmd.Flags().IntVar(&j.Button, prefix+"-button", 0, "Joystick button")
}

func NewCommand(cfg *config.Config) *cobra.Command {
	var peer string
	var port int
	var rate float64
	var count uint64
	var buttons []int
	cs := layers.NewControlState(0)
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send control state to a receiver at a fixed rate",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed(PeerOptionName) {
				cfg.Transmitter.PeerAddress = peer
			}
			if cmd.Flags().Changed(PortOptionName) {
				cfg.Transmitter.PeerPort = port
			}
			if cmd.Flags().Changed(RateOptionName) {
				cfg.Transmitter.Rate = rate
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if len(buttons) > layers.NumButtons {
				return fmt.Errorf("at most %d buttons allowed, got %d", layers.NumButtons, len(buttons))
			}
			copy(cs.Buttons[:], buttons)
			return command.StartTransmitter(cfg, cs, count)
		},
	}
	cmd.Flags().StringVar(&peer, PeerOptionName, "", fmt.Sprintf("Receiver address. E.g. %s", config.DefaultTransmitterPeer))
	cmd.Flags().IntVar(&port, PortOptionName, 0, fmt.Sprintf("Receiver port. E.g. %d", config.DefaultTransmitterPort))
	cmd.Flags().Float64Var(&rate, RateOptionName, 0, fmt.Sprintf("Frames per second. E.g. %g", config.DefaultTransmitterRate))
	cmd.Flags().Uint64Var(&count, CountOptionName, 0, "Number of frames to send. 0 means until interrupted")
	cmd.Flags().IntSliceVar(&buttons, ButtonsOptionName, nil, "Comma separated button values. E.g. 0,1,0,0,0,0,0,1")
	joystickFlags(cmd, "j1", &cs.Joystick1)
	joystickFlags(cmd, "j2", &cs.Joystick2)

	return cmd
}
